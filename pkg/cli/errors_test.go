package cli

import (
	"errors"
	"fmt"
	"testing"
)

func TestConfigError(t *testing.T) {
	err := NewConfigError("delivery.timezone", "unknown time zone")

	expected := "config error in delivery.timezone: unknown time zone"
	if err.Error() != expected {
		t.Errorf("Error() = %q, want %q", err.Error(), expected)
	}

	if got := NewConfigError("", "file not found").Error(); got != "config error: file not found" {
		t.Errorf("Error() = %q", got)
	}
}

func TestCommandErrorUnwrap(t *testing.T) {
	underlyingErr := errors.New("underlying error")
	err := NewCommandError("run", underlyingErr)

	if err.Error() != "command run failed: underlying error" {
		t.Errorf("Error() = %q", err.Error())
	}
	if !errors.Is(err, underlyingErr) {
		t.Error("errors.Is() should work with CommandError.Unwrap()")
	}
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"success", nil, ExitOK},
		{"failure", errors.New("boom"), ExitError},
		{"rejected", &RejectedError{Rejected: 1, Total: 2}, ExitRejected},
		{"wrapped rejection", fmt.Errorf("validate: %w", &RejectedError{Rejected: 1, Total: 1}), ExitRejected},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExitCode(tt.err); got != tt.want {
				t.Errorf("ExitCode() = %d, want %d", got, tt.want)
			}
		})
	}
}
