package v1

import "errors"

// Common API errors.
var (
	ErrInvalidRequest = errors.New("invalid request")
	ErrNotFound       = errors.New("resource not found")
	ErrJobRunning     = errors.New("an optimization job is already running")
	ErrNoFile         = errors.New("no sentence file uploaded")
	ErrEmptyFileName  = errors.New("no file selected")
)
