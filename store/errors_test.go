package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net"
	"syscall"
	"testing"
)

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name     string
		errMsg   string
		wantKind error
	}{
		{"permission denied", "open /data: permission denied", ErrPermissionDenied},
		{"AccessDenied response", "AccessDenied: you do not have access", ErrPermissionDenied},
		{"HTTP 403", "received status 403", ErrPermissionDenied},
		{"no such file", "open /x: no such file or directory", ErrNotFound},
		{"NoSuchBucket", "NoSuchBucket: bucket missing", ErrNotFound},
		{"disk full", "write: no space left on device", ErrDiskFull},
		{"deadline", "context deadline exceeded", ErrTimeout},
		{"timed out", "operation timed out", ErrTimeout},
		{"SlowDown", "SlowDown: reduce request rate", ErrThrottled},
		{"HTTP 429", "status 429", ErrThrottled},
		{"no credentials", "NoCredentialProviders: no valid providers", ErrAuth},
		{"expired token", "ExpiredToken: token expired", ErrAuth},
		{"connection refused", "connection refused", ErrNetwork},
		{"dns", "lookup bucket: no such host", ErrNetwork},
		{"unknown", "something odd happened", ErrUnclassified},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classifyError(errors.New(tt.errMsg))
			if got != tt.wantKind {
				t.Errorf("classifyError(%q) = %v, want %v", tt.errMsg, got, tt.wantKind)
			}
		})
	}
}

type timeoutError struct{}

func (timeoutError) Error() string { return "i/o" }
func (timeoutError) Timeout() bool { return true }

func TestClassifyError_TimeoutInterface(t *testing.T) {
	if got := classifyError(fmt.Errorf("put: %w", timeoutError{})); got != ErrTimeout {
		t.Errorf("classifyError = %v, want ErrTimeout", got)
	}
}

func TestWrapErrors(t *testing.T) {
	if WrapWriteError(nil, "p") != nil {
		t.Error("WrapWriteError(nil) should be nil")
	}

	cause := errors.New("permission denied")
	err := WrapWriteError(cause, "datasets/x")

	var se *StorageError
	if !errors.As(err, &se) {
		t.Fatalf("expected *StorageError, got %T", err)
	}
	if se.Op != "write" || se.Path != "datasets/x" {
		t.Errorf("Op/Path = %q/%q", se.Op, se.Path)
	}
	if !errors.Is(err, ErrPermissionDenied) {
		t.Error("errors.Is(err, ErrPermissionDenied) should be true")
	}
	if !errors.Is(err, cause) {
		t.Error("cause should remain in the chain")
	}

	// Already classified errors are not wrapped twice.
	again := WrapReadError(err, "other")
	if again != err {
		t.Errorf("WrapReadError re-wrapped a StorageError: %v", again)
	}

	if got := WrapInitError(context.DeadlineExceeded, "ds"); !errors.Is(got, ErrTimeout) {
		t.Errorf("WrapInitError(DeadlineExceeded) kind = %v, want ErrTimeout", got)
	}
}

func TestStorageError_Error(t *testing.T) {
	withPath := NewStorageError(ErrNotFound, "read", "a/b", errors.New("boom"))
	if got, want := withPath.Error(), "read a/b: not found: boom"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
	noPath := NewStorageError(ErrNotFound, "read", "", errors.New("boom"))
	if got, want := noPath.Error(), "read: not found: boom"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestClassifyError_TypedCauses(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"fs permission", &fs.PathError{Op: "open", Path: "/x", Err: fs.ErrPermission}, ErrPermissionDenied},
		{"fs not exist", fmt.Errorf("stat: %w", fs.ErrNotExist), ErrNotFound},
		{"enospc", &fs.PathError{Op: "write", Path: "/x", Err: syscall.ENOSPC}, ErrDiskFull},
		{"net op", &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("refused")}, ErrNetwork},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := classifyError(tt.err); got != tt.want {
				t.Errorf("classifyError = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRetryable(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{WrapWriteError(errors.New("SlowDown"), "p"), true},
		{WrapWriteError(context.DeadlineExceeded, "p"), true},
		{WrapWriteError(errors.New("dial tcp: connection refused"), "p"), true},
		{WrapWriteError(errors.New("AccessDenied"), "p"), false},
		{WrapWriteError(errors.New("no space left on device"), "p"), false},
		{errors.New("plain"), false},
	}
	for _, tt := range tests {
		if got := Retryable(tt.err); got != tt.want {
			t.Errorf("Retryable(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}
