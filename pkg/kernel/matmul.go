package kernel

import (
	"sync"

	"hodu/pkg/dtype"
	"hodu/pkg/storage"
)

// MatmulShape describes a batched matrix multiply over contiguous
// row-major operands: Batch identical leading batches of (M,K) x
// (K,N) -> (M,N). Matmul has no metadata-array wire format in spec §3
// (that format is defined only for the element-wise binary/unary
// families); callers are responsible for materialising contiguous
// operands before dispatch.
type MatmulShape struct {
	Batch   int
	M, K, N int
}

// MatmulLauncher invokes a typed batched matmul kernel.
type MatmulLauncher func(lhs, rhs, out storage.Storage, shape MatmulShape) error

var matmulLaunchers = struct {
	mu sync.RWMutex
	m  map[string]MatmulLauncher
}{m: map[string]MatmulLauncher{}}

// RegisterMatmul binds a mangled "hodu_<backend>_matmul_<dtype>"
// identifier to a launcher.
func RegisterMatmul(backend string, dt dtype.DType, fn MatmulLauncher) {
	name := Mangle(backend, "matmul", dt)
	matmulLaunchers.mu.Lock()
	defer matmulLaunchers.mu.Unlock()
	matmulLaunchers.m[name] = fn
}

// DispatchMatmul allocates the output storage and invokes the
// registered matmul launcher for (backend, dt).
func DispatchMatmul(backend string, dt dtype.DType, lhs, rhs storage.Storage, shape MatmulShape) (storage.Storage, error) {
	name := Mangle(backend, "matmul", dt)
	matmulLaunchers.mu.RLock()
	fn, ok := matmulLaunchers.m[name]
	matmulLaunchers.mu.RUnlock()
	if !ok {
		return nil, &ErrNotFound{KernelName: name}
	}

	out, err := allocate(backend, dt, shape.Batch*shape.M*shape.N, lhs.Device())
	if err != nil {
		return nil, err
	}
	if err := fn(lhs, rhs, out, shape); err != nil {
		return nil, &DeviceError{Msg: "kernel launch failed", Cause: err}
	}
	return out, nil
}
