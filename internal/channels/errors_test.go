package channels

import (
	"errors"
	"fmt"
	"testing"
)

func TestError_FormatAndUnwrap(t *testing.T) {
	base := errors.New("dial tcp: timeout")
	err := ErrConnection("gateway open failed", base)

	if got, want := err.Error(), "[CONNECTION_ERROR] gateway open failed: dial tcp: timeout"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
	if !errors.Is(err, base) {
		t.Error("errors.Is should see the wrapped error")
	}
	if got := ErrNotFound("no such channel", nil).Error(); got != "[NOT_FOUND] no such channel" {
		t.Errorf("Error() = %q", got)
	}
}

func TestClassification(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		code      ErrorCode
		retryable bool
	}{
		{name: "connection", err: ErrConnection("x", nil), code: ErrCodeConnection, retryable: true},
		{name: "unavailable", err: ErrUnavailable("x", nil), code: ErrCodeUnavailable, retryable: true},
		{name: "auth", err: ErrAuthentication("x", nil), code: ErrCodeAuthentication},
		{name: "permission", err: ErrPermission("x", nil), code: ErrCodePermission},
		{name: "not found", err: ErrNotFound("x", nil), code: ErrCodeNotFound},
		{name: "invalid", err: ErrInvalidInput("x", nil), code: ErrCodeInvalidInput},
		{name: "config", err: ErrConfig("x", nil), code: ErrCodeConfig},
		{name: "internal", err: ErrInternal("x", nil), code: ErrCodeInternal},
		{name: "wrapped", err: fmt.Errorf("outer: %w", ErrUnavailable("x", nil)), code: ErrCodeUnavailable, retryable: true},
		{name: "plain", err: errors.New("plain"), code: ErrCodeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := GetErrorCode(tt.err); got != tt.code {
				t.Errorf("GetErrorCode = %s, want %s", got, tt.code)
			}
			if got := IsRetryable(tt.err); got != tt.retryable {
				t.Errorf("IsRetryable = %v, want %v", got, tt.retryable)
			}
		})
	}

	if !IsNotFound(fmt.Errorf("wrap: %w", ErrNotFound("role", nil))) {
		t.Error("IsNotFound should see through wrapping")
	}
	if IsRetryable(nil) {
		t.Error("nil is not retryable")
	}
}
