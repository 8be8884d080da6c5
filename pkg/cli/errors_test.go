package cli

import (
	"errors"
	"fmt"
	"testing"
)

func TestConfigError(t *testing.T) {
	err := &ConfigError{
		Field:   "repository.dsn",
		Message: "dsn is required for the sql backend",
	}

	want := "config error in repository.dsn: dsn is required for the sql backend"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}

func TestConfigErrorNoField(t *testing.T) {
	err := NewConfigError("", "failed to load config: no such file")

	want := "config error: failed to load config: no such file"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}

func TestNewConfigError(t *testing.T) {
	err := NewConfigError("audit.backend", "must be one of: memory, sqlite")

	if err.Field != "audit.backend" {
		t.Errorf("Field = %q, want %q", err.Field, "audit.backend")
	}
	if err.Message != "must be one of: memory, sqlite" {
		t.Errorf("Message = %q, want %q", err.Message, "must be one of: memory, sqlite")
	}
}

func TestCommandError(t *testing.T) {
	inner := errors.New("rule pack contains 3 invalid rules")
	err := NewCommandError("lint", inner)

	want := "command lint failed: rule pack contains 3 invalid rules"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}

func TestCommandErrorUnwrap(t *testing.T) {
	inner := errors.New("store closed")
	err := NewCommandError("serve", fmt.Errorf("audit recorder: %w", inner))

	if !errors.Is(err, inner) {
		t.Error("errors.Is() should find the wrapped error through CommandError")
	}
}

func TestExitError(t *testing.T) {
	inner := errors.New("restriction imposed by rule 4")
	err := NewExitError(1, inner)

	if err.Code != 1 {
		t.Errorf("Code = %d, want 1", err.Code)
	}
	if err.Error() != inner.Error() {
		t.Errorf("Error() = %q, want %q", err.Error(), inner.Error())
	}
}

func TestExitErrorAs(t *testing.T) {
	err := fmt.Errorf("evaluate: %w", NewExitError(2, errors.New("unknown operator")))

	var exitErr *ExitError
	if !errors.As(err, &exitErr) {
		t.Fatal("errors.As() should find ExitError through wrapping")
	}
	if exitErr.Code != 2 {
		t.Errorf("Code = %d, want 2", exitErr.Code)
	}
}

func TestExitErrorUnwrap(t *testing.T) {
	inner := errors.New("malformed depends")
	err := NewExitError(2, inner)

	if !errors.Is(err, inner) {
		t.Error("errors.Is() should find the wrapped error through ExitError")
	}
}
