package kernel

import (
	"sync"

	"hodu/pkg/dtype"
	"hodu/pkg/layout"
	"hodu/pkg/op"
	"hodu/pkg/storage"
)

// BinaryLauncher invokes a typed kernel over two input storages,
// filling out. md is the binary metadata array (spec §3) computed by
// the dispatcher from the three layouts.
type BinaryLauncher func(lhs, rhs, out storage.Storage, md layout.Metadata, params op.Params) error

// UnaryLauncher invokes a typed kernel over one input storage, filling
// out. md is the unary metadata array.
type UnaryLauncher func(in, out storage.Storage, md layout.Metadata, params op.Params) error

// table holds, for each backend, the static (op, dtype) -> launcher
// maps described in spec §4.1. Registration happens once at package
// init time from each backend's source file (cpu_bitwise.go,
// cpu_binary.go, ...); after that, lookups take only a read lock,
// matching spec §5 "lookups do not require locks after insertion" for
// the interned names — the table itself keeps a (cheap) RWMutex since,
// unlike the name pool, tests may register fixtures after init.
type table struct {
	mu     sync.RWMutex
	binary map[string]BinaryLauncher
	unary  map[string]UnaryLauncher
}

var backends = struct {
	mu sync.Mutex
	m  map[string]*table
}{m: map[string]*table{}}

func backendTable(name string) *table {
	backends.mu.Lock()
	defer backends.mu.Unlock()
	t, ok := backends.m[name]
	if !ok {
		t = &table{binary: map[string]BinaryLauncher{}, unary: map[string]UnaryLauncher{}}
		backends.m[name] = t
	}
	return t
}

// RegisterBinary binds a mangled kernel identifier to a binary
// launcher for the given backend.
func RegisterBinary(backend string, k op.Kind, dt dtype.DType, fn BinaryLauncher) {
	name := Mangle(backend, k.Name, dt)
	t := backendTable(backend)
	t.mu.Lock()
	defer t.mu.Unlock()
	t.binary[name] = fn
}

// RegisterUnary binds a mangled kernel identifier to a unary launcher
// for the given backend.
func RegisterUnary(backend string, k op.Kind, dt dtype.DType, fn UnaryLauncher) {
	name := Mangle(backend, k.Name, dt)
	t := backendTable(backend)
	t.mu.Lock()
	defer t.mu.Unlock()
	t.unary[name] = fn
}

func lookupBinary(backend, name string) (BinaryLauncher, bool) {
	t := backendTable(backend)
	t.mu.RLock()
	defer t.mu.RUnlock()
	fn, ok := t.binary[name]
	return fn, ok
}

func lookupUnary(backend, name string) (UnaryLauncher, bool) {
	t := backendTable(backend)
	t.mu.RLock()
	defer t.mu.RUnlock()
	fn, ok := t.unary[name]
	return fn, ok
}

// Backends lists the backend names with at least one registered
// kernel, for diagnostics and property tests.
func Backends() []string {
	backends.mu.Lock()
	defer backends.mu.Unlock()
	out := make([]string, 0, len(backends.m))
	for name := range backends.m {
		out = append(out, name)
	}
	return out
}
