package jobclient

import (
	"errors"
	"fmt"
)

// FallbackSubmitMessage is reported when a rejected submission carries no
// readable error text.
const FallbackSubmitMessage = "failed to start optimization"

var (
	// ErrJobInFlight is returned when an operation needs an idle session but
	// a job is being submitted or polled.
	ErrJobInFlight = errors.New("a job is already in flight")

	// ErrResetRequired is returned when the session holds a terminal result
	// that has not been acknowledged with Reset.
	ErrResetRequired = errors.New("session must be reset before a new job")

	// ErrProtocolInconsistency marks a completed snapshot with neither an
	// error nor results.
	ErrProtocolInconsistency = errors.New("job reported complete without results or error")

	// ErrSessionReset is returned by Submit when Reset interrupted it.
	ErrSessionReset = errors.New("session reset during submission")

	// ErrNoOutputs is returned by DownloadRecent when the service lists no files.
	ErrNoOutputs = errors.New("no output files available")
)

// ValidationError reports invalid input. Nothing is sent to the service.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// SubmissionError reports a rejected or failed job submission.
type SubmissionError struct {
	// Status is the HTTP status code, zero when no response was received.
	Status  int
	Message string
	Err     error
}

func (e *SubmissionError) Error() string {
	return e.Message
}

func (e *SubmissionError) Unwrap() error {
	return e.Err
}

// ProgressError carries the error text of a completed snapshot.
type ProgressError struct {
	Message string
}

func (e *ProgressError) Error() string {
	return e.Message
}

// ProtocolError reports a snapshot that violates the progress protocol.
type ProtocolError struct {
	Stage string
}

func (e *ProtocolError) Error() string {
	if e.Stage == "" {
		return ErrProtocolInconsistency.Error()
	}
	return fmt.Sprintf("%s (stage %q)", ErrProtocolInconsistency.Error(), e.Stage)
}

func (e *ProtocolError) Is(target error) bool {
	return target == ErrProtocolInconsistency
}
