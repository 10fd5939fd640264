// Package storage implements device-tagged, dtype-tagged buffers (spec
// §3 "Storage", §5 "Shared resources"). A Storage cannot change dtype
// or device after creation; operations producing a different dtype
// allocate a new storage (see NewCPU).
package storage

import (
	"fmt"
	"unsafe"

	"hodu/pkg/device"
	"hodu/pkg/dtype"
)

// Storage is a raw, device-resident buffer tagged with an element
// type. The CPU backend keeps data resident in process memory; GPU and
// command-encoder backends keep an opaque handle instead (see
// cpuStorage vs remoteStorage below) but share the same interface so
// the dispatcher never special-cases a backend by type-asserting past
// this boundary.
type Storage interface {
	DType() dtype.DType
	Device() device.Device
	// NumElements is the element count this storage was allocated for.
	NumElements() int
	// Bytes exposes the raw buffer for backends that operate on
	// pointer+length (CPU kernels); it panics for non-host storage.
	Bytes() []byte
}

// cpuStorage backs Storage on the host: a single owned byte slice,
// reinterpreted through typed views (ViewXxx helpers below) without a
// copy.
type cpuStorage struct {
	dt   dtype.DType
	dev  device.Device
	buf  []byte
	nels int
}

// ErrAllocation signals a failed allocation on a device (spec §7
// DeviceError).
type ErrAllocation struct {
	Device device.Device
	DType  dtype.DType
	NumEls int
	Reason string
}

func (e *ErrAllocation) Error() string {
	return fmt.Sprintf("storage: allocation of %d x %s on %s failed: %s", e.NumEls, e.DType, e.Device, e.Reason)
}

// NewCPU allocates a zero-initialised host buffer of numEls elements
// of the given dtype. Each op that produces a different dtype than its
// inputs calls NewCPU again rather than reinterpreting an existing
// buffer.
func NewCPU(dt dtype.DType, numEls int) (Storage, error) {
	if err := dtype.CheckAvailable(dt); err != nil {
		return nil, err
	}
	if numEls < 0 {
		return nil, &ErrAllocation{Device: device.Device{Type: "cpu"}, DType: dt, NumEls: numEls, Reason: "negative element count"}
	}
	return &cpuStorage{
		dt:   dt,
		dev:  device.Device{Type: "cpu"},
		buf:  make([]byte, numEls*dt.ByteWidth()),
		nels: numEls,
	}, nil
}

// NewCPUFromBytes wraps an existing host buffer, e.g. data read back
// from a tensor-format codec's load(path) contract (spec §6).
func NewCPUFromBytes(dt dtype.DType, buf []byte) (Storage, error) {
	if err := dtype.CheckAvailable(dt); err != nil {
		return nil, err
	}
	width := dt.ByteWidth()
	if width == 0 || len(buf)%width != 0 {
		return nil, fmt.Errorf("storage: buffer length %d is not a multiple of element width %d", len(buf), width)
	}
	return &cpuStorage{dt: dt, dev: device.Device{Type: "cpu"}, buf: buf, nels: len(buf) / width}, nil
}

func (s *cpuStorage) DType() dtype.DType    { return s.dt }
func (s *cpuStorage) Device() device.Device { return s.dev }
func (s *cpuStorage) NumElements() int      { return s.nels }
func (s *cpuStorage) Bytes() []byte         { return s.buf }

// View reinterprets a CPU storage's bytes as a typed slice without
// copying. T's size must match the storage's dtype width; callers are
// expected to pick T from the dtype via the kernel dispatch table,
// which is the only place that needs to do this unsafely.
func View[T any](s Storage) ([]T, error) {
	cs, ok := s.(*cpuStorage)
	if !ok {
		return nil, fmt.Errorf("storage: View requires a CPU-resident storage, got %T", s)
	}
	var zero T
	width := int(unsafe.Sizeof(zero))
	if width != cs.dt.ByteWidth() {
		return nil, fmt.Errorf("storage: element width mismatch for %s: type is %d bytes, dtype is %d bytes", cs.dt, width, cs.dt.ByteWidth())
	}
	if len(cs.buf) == 0 {
		return nil, nil
	}
	return unsafe.Slice((*T)(unsafe.Pointer(&cs.buf[0])), cs.nels), nil
}

// remoteStorage represents a buffer resident on a non-host device
// (GPU driver memory, or a command-encoder-managed buffer). The core
// dispatch table never reads its contents directly on the host; it
// only ever passes the handle on to the owning backend's launcher.
type remoteStorage struct {
	dt     dtype.DType
	dev    device.Device
	nels   int
	handle any // backend-specific buffer handle (driver pointer, MTLBuffer, ...)
}

// NewRemote wraps a backend-allocated handle for a non-CPU device.
func NewRemote(dt dtype.DType, dev device.Device, numEls int, handle any) (Storage, error) {
	if err := dtype.CheckAvailable(dt); err != nil {
		return nil, err
	}
	if dev.Type == "cpu" {
		return nil, fmt.Errorf("storage: NewRemote called with cpu device; use NewCPU")
	}
	return &remoteStorage{dt: dt, dev: dev, nels: numEls, handle: handle}, nil
}

func (s *remoteStorage) DType() dtype.DType    { return s.dt }
func (s *remoteStorage) Device() device.Device { return s.dev }
func (s *remoteStorage) NumElements() int      { return s.nels }
func (s *remoteStorage) Bytes() []byte {
	panic("storage: Bytes() is unavailable for non-CPU storage; pass the Handle to the backend launcher instead")
}

// Handle returns the backend-specific buffer handle for remote storage.
func (s *remoteStorage) Handle() any { return s.handle }

// RemoteHandle extracts the backend handle from a Storage known to be
// non-CPU, for use by GPU-driver and command-encoder launchers.
func RemoteHandle(s Storage) (any, bool) {
	rs, ok := s.(*remoteStorage)
	if !ok {
		return nil, false
	}
	return rs.handle, true
}
