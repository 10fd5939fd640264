package kernel

import (
	"errors"
	"testing"
)

func TestBackendErrorUnwrap(t *testing.T) {
	cause := errors.New("driver busy")
	err := &BackendError{Msg: "launch failed", Cause: cause}
	if !errors.Is(err, cause) {
		t.Fatal("errors.Is did not find the wrapped cause")
	}
	if err.Error() != "launch failed: driver busy" {
		t.Fatalf("Error() = %q", err.Error())
	}
}

func TestDeviceErrorUnwrap(t *testing.T) {
	cause := errors.New("out of memory")
	err := &DeviceError{Msg: "allocation failed", Cause: cause}
	if !errors.Is(err, cause) {
		t.Fatal("errors.Is did not find the wrapped cause")
	}
}

func TestErrNotFoundMessage(t *testing.T) {
	err := &ErrNotFound{KernelName: "hodu_cuda_add_f32"}
	if err.Error() == "" {
		t.Fatal("expected non-empty error message")
	}
}
