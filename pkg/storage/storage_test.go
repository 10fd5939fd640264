package storage

import (
	"testing"

	"hodu/pkg/device"
	"hodu/pkg/dtype"
)

func TestNewCPUAndView(t *testing.T) {
	s, err := NewCPU(dtype.U32, 4)
	if err != nil {
		t.Fatal(err)
	}
	if s.NumElements() != 4 {
		t.Fatalf("NumElements = %d, want 4", s.NumElements())
	}
	v, err := View[uint32](s)
	if err != nil {
		t.Fatal(err)
	}
	for i := range v {
		v[i] = uint32(i * 2)
	}
	v2, err := View[uint32](s)
	if err != nil {
		t.Fatal(err)
	}
	for i, want := range []uint32{0, 2, 4, 6} {
		if v2[i] != want {
			t.Errorf("v2[%d] = %d, want %d", i, v2[i], want)
		}
	}
}

func TestViewWidthMismatch(t *testing.T) {
	s, err := NewCPU(dtype.U32, 4)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := View[uint64](s); err == nil {
		t.Fatal("expected width mismatch error")
	}
}

func TestNewCPUUnavailableDType(t *testing.T) {
	if _, err := NewCPU(dtype.DType(200), 1); err == nil {
		t.Fatal("expected error for out-of-range dtype")
	}
}

func TestRemoteStorageBytesPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic calling Bytes() on remote storage")
		}
	}()
	s, err := NewRemote(dtype.F32, device.Device{Type: "cuda"}, 4, "driver-handle")
	if err != nil {
		t.Fatal(err)
	}
	s.Bytes()
}
