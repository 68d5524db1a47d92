package errors

import (
	stderrors "errors"
	"fmt"
	"os"

	"github.com/julianstephens/habitcraft/internal/logger"
)

// Sentinels for the four failure classes. Typed errors below match them
// through errors.Is so callers can branch on the class without a type switch.
var (
	ErrValidation        = stderrors.New("validation failed")
	ErrNotFound          = stderrors.New("not found")
	ErrPersistence       = stderrors.New("persistence failed")
	ErrRemoteUnavailable = stderrors.New("remote unavailable")
)

// ValidationError reports malformed input. The operation had no side effects.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// NotFoundError reports a missing habit, sync code, or other keyed item.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.ID)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// PersistenceError reports a failed local storage read or write. In-memory
// state stays authoritative for the rest of the session.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("local storage %s failed: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

func (e *PersistenceError) Is(target error) bool { return target == ErrPersistence }

// RemoteUnavailableError reports a transport or timeout failure talking to the
// remote store or the advisory service.
type RemoteUnavailableError struct {
	Op  string
	Err error
}

func (e *RemoteUnavailableError) Error() string {
	return fmt.Sprintf("remote %s unavailable: %v", e.Op, e.Err)
}

func (e *RemoteUnavailableError) Unwrap() error { return e.Err }

func (e *RemoteUnavailableError) Is(target error) bool { return target == ErrRemoteUnavailable }

// NewValidation builds a ValidationError.
func NewValidation(field, format string, args ...interface{}) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// NewNotFound builds a NotFoundError.
func NewNotFound(kind, id string) error {
	return &NotFoundError{Kind: kind, ID: id}
}

// IsWarning reports whether err only signals that a change may not survive a
// restart; the operation itself took effect.
func IsWarning(err error) bool {
	return err != nil && stderrors.Is(err, ErrPersistence)
}

// Format formats an error message with a consistent "Error: " prefix
func Format(err error) string {
	if err == nil {
		return ""
	}
	return fmt.Sprintf("Error: %v", err)
}

// Fatal logs an error and exits the program with exit code 1
func Fatal(err error) {
	if err != nil {
		logger.Error("Command execution failed", "error", err)
		fmt.Fprintf(os.Stderr, "%s\n", Format(err))
		os.Exit(1)
	}
}
