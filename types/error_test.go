package types

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestError_ChainingAndHelpers(t *testing.T) {
	t.Parallel()

	root := errors.New("root")
	err := NewError(ErrUpstreamTimeout, "upstream timed out").
		WithCause(root).
		WithHTTPStatus(http.StatusGatewayTimeout).
		WithRetryable(true).
		WithProvider("mock")

	if GetErrorCode(err) != ErrUpstreamTimeout {
		t.Fatalf("expected code %s, got %s", ErrUpstreamTimeout, GetErrorCode(err))
	}
	if !IsRetryable(err) {
		t.Fatalf("expected retryable")
	}
	if !errors.Is(err, root) {
		t.Fatalf("expected errors.Is unwrap to root")
	}
	if got := err.Error(); got == "" {
		t.Fatalf("expected non-empty error string")
	}
}

func TestError_WrappedLookup(t *testing.T) {
	t.Parallel()

	inner := NewError(ErrNotFound, "run not found").WithHTTPStatus(http.StatusNotFound)
	wrapped := fmt.Errorf("load: %w", inner)

	if GetErrorCode(wrapped) != ErrNotFound {
		t.Fatalf("expected wrapped code lookup to succeed")
	}
	if StatusOf(wrapped) != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", StatusOf(wrapped))
	}
	if StatusOf(errors.New("plain")) != http.StatusInternalServerError {
		t.Fatalf("plain errors map to 500")
	}
}
