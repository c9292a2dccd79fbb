package errors

import (
	stderrors "errors"
	"fmt"
	"testing"
)

func TestIsMatchesByCode(t *testing.T) {
	err := New(CodeInvalidState, "not in a room")

	if !stderrors.Is(err, ErrInvalidState) {
		t.Error("errors.Is(err, ErrInvalidState) = false, want true")
	}
	if stderrors.Is(err, ErrOperationRejected) {
		t.Error("errors.Is(err, ErrOperationRejected) = true, want false")
	}
}

func TestIsThroughWrapping(t *testing.T) {
	inner := WithStatus(CodeOperationRejected, 32765, "game full")
	wrapped := fmt.Errorf("join room %q: %w", "lobby", inner)

	if !stderrors.Is(wrapped, ErrOperationRejected) {
		t.Error("wrapped error lost its code")
	}
	if got := CodeOf(wrapped); got != CodeOperationRejected {
		t.Errorf("CodeOf = %q, want %q", got, CodeOperationRejected)
	}

	var target *Error
	if !stderrors.As(wrapped, &target) {
		t.Fatal("errors.As failed")
	}
	if target.Status != 32765 {
		t.Errorf("Status = %d, want 32765", target.Status)
	}
}

func TestErrorMessage(t *testing.T) {
	tests := []struct {
		name string
		err  *Error
		want string
	}{
		{"code only", &Error{Code: CodeInvalidShape}, "INVALID_SHAPE"},
		{"message", New(CodeInvalidState, "not connected"), "not connected"},
		{"status", WithStatus(CodeConnection, 1040, "timeout"), "timeout (status 1040)"},
		{"cause", Wrap(CodeConnection, "dial", stderrors.New("refused")), "dial: refused"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCodeOfPlainError(t *testing.T) {
	if got := CodeOf(stderrors.New("boom")); got != "" {
		t.Errorf("CodeOf(plain) = %q, want empty", got)
	}
	if got := CodeOf(nil); got != "" {
		t.Errorf("CodeOf(nil) = %q, want empty", got)
	}
}
