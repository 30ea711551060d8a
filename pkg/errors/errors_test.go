package errors

import (
	stdErrors "errors"
	"testing"
)

func TestErrorIncludesInternal(t *testing.T) {
	internal := stdErrors.New("boom")
	err := Wrap(internal, "failed")

	if err.Error() != "failed: boom" {
		t.Fatalf("unexpected error string: %s", err.Error())
	}
}

func TestWithInternalCopies(t *testing.T) {
	base := New("TEST", "test", 400)
	with := base.WithInternal(stdErrors.New("oops"))

	if with == base {
		t.Fatal("expected WithInternal to return a copy")
	}

	if base.Internal != nil {
		t.Fatal("expected original error to remain unchanged")
	}

	if with.Internal == nil {
		t.Fatal("expected internal error to be set")
	}
}

func TestFromError(t *testing.T) {
	appErr := ErrNotFound
	if out := FromError(appErr); out != appErr {
		t.Fatal("expected FromError to return the same AppError instance")
	}

	raw := stdErrors.New("raw")
	out := FromError(raw)
	if out.Code != ErrInternalServer.Code {
		t.Fatalf("expected internal server code, got %s", out.Code)
	}
	if out.Internal == nil {
		t.Fatal("expected internal error to be attached")
	}
}

func TestNewNotFoundKinds(t *testing.T) {
	err := NewNotFound("USER", "User not found")
	if err.Code != "USER_NOT_FOUND" {
		t.Fatalf("unexpected code: %s", err.Code)
	}
	if err.StatusCode != 404 {
		t.Fatalf("unexpected status: %d", err.StatusCode)
	}
}

func TestRetryableInfrastructure(t *testing.T) {
	err := WrapInfrastructure(stdErrors.New("dial tcp: refused"), "cache unreachable")
	if !IsRetryable(err) {
		t.Fatal("expected infrastructure error to be retryable")
	}
	if IsRetryable(ErrNotFound) {
		t.Fatal("expected not-found to be non-retryable")
	}

	wrapped := Wrap(err, "outer")
	_ = wrapped
	if !IsRetryable(FromError(err)) {
		t.Fatal("expected retryable flag to survive FromError")
	}
}
