package sanitize

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// Validation errors for security checks.
var (
	// ErrPathTraversal indicates a path contains directory traversal sequences.
	ErrPathTraversal = errors.New("path contains directory traversal")

	// ErrEmptyName indicates an empty file name was provided.
	ErrEmptyName = errors.New("file name cannot be empty")

	// ErrUnsafeName indicates a name that is not a plain, visible file name.
	ErrUnsafeName = errors.New("unsafe file name")
)

// BaseName checks that name is a plain file name: no directory components,
// no leading dot. It returns name unchanged when it is.
func BaseName(name string) (string, error) {
	if name == "" {
		return "", ErrEmptyName
	}
	if strings.Contains(name, "..") {
		return "", fmt.Errorf("%w: contains '..'", ErrPathTraversal)
	}
	if strings.ContainsAny(name, `/\`) || name != filepath.Base(name) {
		return "", fmt.Errorf("%w: %q has directory components", ErrUnsafeName, name)
	}
	if strings.HasPrefix(name, ".") {
		return "", fmt.Errorf("%w: %q is hidden", ErrUnsafeName, name)
	}
	return name, nil
}

// Within joins dir and name after checking name with BaseName, and verifies
// the result still resolves inside dir.
func Within(dir, name string) (string, error) {
	if _, err := BaseName(name); err != nil {
		return "", err
	}

	absRoot, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("failed to resolve directory: %w", err)
	}
	absPath := filepath.Join(absRoot, name)

	rel, err := filepath.Rel(absRoot, absPath)
	if err != nil || rel != name {
		return "", fmt.Errorf("%w: path escapes %s", ErrPathTraversal, dir)
	}
	return absPath, nil
}
