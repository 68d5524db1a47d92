package errors

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"testing"
)

func TestTaxonomyMatchesSentinels(t *testing.T) {
	cause := errors.New("disk full")
	tests := []struct {
		name     string
		err      error
		sentinel error
		others   []error
	}{
		{
			name:     "validation",
			err:      NewValidation("title", "must not be empty"),
			sentinel: ErrValidation,
			others:   []error{ErrNotFound, ErrPersistence, ErrRemoteUnavailable},
		},
		{
			name:     "not found",
			err:      NewNotFound("habit", "h1"),
			sentinel: ErrNotFound,
			others:   []error{ErrValidation, ErrPersistence, ErrRemoteUnavailable},
		},
		{
			name:     "persistence",
			err:      &PersistenceError{Op: "write", Err: cause},
			sentinel: ErrPersistence,
			others:   []error{ErrValidation, ErrNotFound, ErrRemoteUnavailable},
		},
		{
			name:     "remote",
			err:      &RemoteUnavailableError{Op: "pull", Err: cause},
			sentinel: ErrRemoteUnavailable,
			others:   []error{ErrValidation, ErrNotFound, ErrPersistence},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !errors.Is(tt.err, tt.sentinel) {
				t.Errorf("errors.Is(%v, %v) = false, want true", tt.err, tt.sentinel)
			}
			wrapped := fmt.Errorf("outer: %w", tt.err)
			if !errors.Is(wrapped, tt.sentinel) {
				t.Errorf("wrapped error lost its class")
			}
			for _, other := range tt.others {
				if errors.Is(tt.err, other) {
					t.Errorf("errors.Is(%v, %v) = true, want false", tt.err, other)
				}
			}
		})
	}
}

func TestCauseIsUnwrapped(t *testing.T) {
	cause := errors.New("connection refused")
	err := &RemoteUnavailableError{Op: "push", Err: cause}
	if !errors.Is(err, cause) {
		t.Error("expected the cause to be reachable through Unwrap")
	}
	if !strings.Contains(err.Error(), "connection refused") {
		t.Errorf("Error() = %q, want it to mention the cause", err.Error())
	}
}

func TestErrorMessages(t *testing.T) {
	if got := NewValidation("title", "must not be empty").Error(); got != "invalid title: must not be empty" {
		t.Errorf("validation message = %q", got)
	}
	if got := NewValidation("", "habit limit reached").Error(); got != "habit limit reached" {
		t.Errorf("field-less validation message = %q", got)
	}
	if got := NewNotFound("sync code", "BADCODE").Error(); got != `sync code "BADCODE" not found` {
		t.Errorf("not found message = %q", got)
	}
}

func TestIsWarning(t *testing.T) {
	if IsWarning(nil) {
		t.Error("nil is not a warning")
	}
	if !IsWarning(&PersistenceError{Op: "write", Err: errors.New("quota")}) {
		t.Error("persistence errors are warnings")
	}
	if IsWarning(NewNotFound("habit", "x")) {
		t.Error("not found is not a warning")
	}
}

func TestFormat(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected string
	}{
		{name: "nil error", err: nil, expected: ""},
		{name: "simple error", err: errors.New("something went wrong"), expected: "Error: something went wrong"},
		{name: "typed error", err: NewNotFound("habit", "h1"), expected: `Error: habit "h1" not found`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Format(tt.err)
			if result != tt.expected {
				t.Errorf("Format(%v) = %q, want %q", tt.err, result, tt.expected)
			}
		})
	}
}

// TestFatal tests the Fatal function using exec helper process
func TestFatal(t *testing.T) {
	if os.Getenv("GO_TEST_FATAL") == "1" {
		Fatal(errors.New("test error"))
		return
	}

	cmd := exec.Command(os.Args[0], "-test.run=^TestFatal$")
	cmd.Env = append(os.Environ(), "GO_TEST_FATAL=1")
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	err := cmd.Run()
	if e, ok := err.(*exec.ExitError); ok && !e.Success() {
		if e.ExitCode() != 1 {
			t.Errorf("Fatal() exit code = %d, want 1", e.ExitCode())
		}
		if !strings.Contains(stderr.String(), "Error: test error") {
			t.Errorf("Fatal() stderr = %q, want to contain %q", stderr.String(), "Error: test error")
		}
	} else {
		t.Errorf("Fatal() did not exit with error: %v", err)
	}
}

// TestFatal_NilError tests that Fatal does nothing when passed a nil error
func TestFatal_NilError(t *testing.T) {
	if os.Getenv("GO_TEST_FATAL_NIL") == "1" {
		Fatal(nil)
		os.Exit(0)
	}

	cmd := exec.Command(os.Args[0], "-test.run=^TestFatal_NilError$")
	cmd.Env = append(os.Environ(), "GO_TEST_FATAL_NIL=1")

	if err := cmd.Run(); err != nil {
		t.Errorf("Fatal(nil) should not exit, but got error: %v", err)
	}
}
