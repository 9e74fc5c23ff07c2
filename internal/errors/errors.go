// Package errors provides custom error types and exit codes for trustfetch.
package errors

import (
	"errors"
	"fmt"
)

// Error is a custom error type that provides context about operations.
type Error struct {
	Op   string // Operation being performed (e.g., "add cert", "load ca bundle")
	Path string // File, URL or cert path involved
	Err  error  // Underlying error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error for error chain inspection.
func (e *Error) Unwrap() error {
	return e.Err
}

// Predefined errors for common scenarios.
var (
	ErrCertExpired      = errors.New("certificate has expired")
	ErrInvalidPEM       = errors.New("invalid PEM format")
	ErrCertNotFound     = errors.New("certificate not found")
	ErrStoreNotInit     = errors.New("certificate store not initialized")
	ErrStoreAlreadyInit = errors.New("certificate store already initialized")
	ErrNoCertificates   = errors.New("no certificates found")
	ErrInvalidName      = errors.New("invalid certificate name")
)

// Exit codes - use these constants in CLI commands instead of hardcoding values.
const (
	ExitSuccess      = 0 // Success
	ExitGeneralError = 1 // General error (file I/O, permissions)
	ExitConfigError  = 2 // Configuration error (invalid config, missing values)
	ExitCertError    = 3 // Certificate error (invalid cert, expired, verification failed)
	ExitNetworkError = 4 // Network error (download failed)
)

// IsError checks if the given error matches the target error using errors.Is.
func IsError(err, target error) bool {
	return errors.Is(err, target)
}
