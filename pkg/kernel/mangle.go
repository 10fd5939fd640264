// Package kernel implements the dispatch core (spec §4.1): name
// mangling, the per-backend dispatch table, CPU kernel launchers, and
// the GPU-driver / command-encoder launch-shape helpers.
package kernel

import (
	"fmt"
	"strings"
	"sync"

	"hodu/pkg/dtype"
)

// internPool is the process-global, append-only string pool backing
// mangled kernel identifiers (spec §5 "Kernel name interning"). Reads
// after insertion take no lock: sync.Map is built for exactly this
// write-once-read-many pattern.
var internPool sync.Map // string -> string

// Mangle constructs "hodu_<backend>_<op>_<dtype>" and interns it into
// the process-lived string pool so a stable reference can be handed to
// a backend (spec §4.1 "Name mangling").
func Mangle(backend, opName string, dt dtype.DType) string {
	name := fmt.Sprintf("hodu_%s_%s_%s", backend, opName, dt)
	if v, ok := internPool.Load(name); ok {
		return v.(string)
	}
	v, _ := internPool.LoadOrStore(name, name)
	return v.(string)
}

// ErrMalformedKernelName is returned by Demangle when a string does
// not match the "hodu_<backend>_<op>_<dtype>" grammar.
type ErrMalformedKernelName struct{ Name string }

func (e *ErrMalformedKernelName) Error() string {
	return fmt.Sprintf("kernel: malformed kernel identifier %q", e.Name)
}

// Demangle splits a mangled identifier back into (backend, op, dtype),
// the inverse of Mangle (spec §8 property 1: mangling bijectivity).
// The dtype is recovered by splitting at the last underscore, which is
// unambiguous because no dtype's stable string contains one; whatever
// remains between the first and last underscore is the op name,
// unambiguous in the other direction because op names never contain
// "hodu_<backend>_" as a prefix.
func Demangle(name string) (backend, opName string, dt dtype.DType, err error) {
	const prefix = "hodu_"
	if !strings.HasPrefix(name, prefix) {
		return "", "", 0, &ErrMalformedKernelName{Name: name}
	}
	rest := strings.TrimPrefix(name, prefix)

	firstUnderscore := strings.IndexByte(rest, '_')
	if firstUnderscore < 0 {
		return "", "", 0, &ErrMalformedKernelName{Name: name}
	}
	backend = rest[:firstUnderscore]
	middle := rest[firstUnderscore+1:]

	lastUnderscore := strings.LastIndexByte(middle, '_')
	if lastUnderscore < 0 {
		return "", "", 0, &ErrMalformedKernelName{Name: name}
	}
	opName = middle[:lastUnderscore]
	dtStr := middle[lastUnderscore+1:]

	dt, perr := dtype.Parse(dtStr)
	if perr != nil {
		return "", "", 0, &ErrMalformedKernelName{Name: name}
	}
	return backend, opName, dt, nil
}
