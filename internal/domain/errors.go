package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrConfiguration reports invalid parameters, rejected before any work starts.
	ErrConfiguration = errors.New("invalid configuration")
	// ErrDimensionMismatch reports a vector whose length differs from the index dimension.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")
	// ErrNotReady reports a retrieval request against a session with nothing ingested.
	ErrNotReady = errors.New("no document ingested")
	// ErrCollaboratorUnavailable reports a failing embedding or generation backend.
	ErrCollaboratorUnavailable = errors.New("collaborator unavailable")
	// ErrNoContent reports a document without any extractable words.
	ErrNoContent = errors.New("no extractable text")
	// ErrSessionNotFound reports an unknown session id.
	ErrSessionNotFound = errors.New("session not found")
)

// ConfigError returns an error matching ErrConfiguration.
func ConfigError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConfiguration, fmt.Sprintf(format, args...))
}

// DimensionError describes a dimension mismatch.
type DimensionError struct {
	Want int
	Got  int
}

func (e *DimensionError) Error() string {
	return fmt.Sprintf("vector dimension mismatch: want %d, got %d", e.Want, e.Got)
}

func (e *DimensionError) Is(target error) bool { return target == ErrDimensionMismatch }

// CollaboratorError wraps a failure of an external embedding or generation service.
type CollaboratorError struct {
	Collaborator string
	Err          error
}

func (e *CollaboratorError) Error() string {
	return fmt.Sprintf("%s unavailable: %v", e.Collaborator, e.Err)
}

func (e *CollaboratorError) Unwrap() error { return e.Err }

func (e *CollaboratorError) Is(target error) bool { return target == ErrCollaboratorUnavailable }

// Unavailable wraps err as a CollaboratorError unless it already is one.
func Unavailable(collaborator string, err error) error {
	if err == nil {
		return nil
	}
	var ce *CollaboratorError
	if errors.As(err, &ce) {
		return err
	}
	return &CollaboratorError{Collaborator: collaborator, Err: err}
}
