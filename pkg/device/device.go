// Package device implements device identity: the "type[::index]"
// grammar (spec §6), reference-counted device handles (spec §9 "Shared
// device handles"), and the host-triple detection used by plugin
// target resolution (spec §4.6).
package device

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
)

// Device identifies an execution target: a type ("cpu", "cuda",
// "metal", or a custom backend name) and an optional index.
type Device struct {
	Type  string
	Index int
	// HasIndex distinguishes "cpu" (no index) from a hypothetical
	// "cpu::0" — only multi-instance backends carry an index in
	// practice, but the grammar allows it uniformly.
	HasIndex bool
}

// ErrInvalidDeviceString is returned by Parse for malformed input.
type ErrInvalidDeviceString struct{ Input string }

func (e *ErrInvalidDeviceString) Error() string {
	return fmt.Sprintf("device: invalid device string %q", e.Input)
}

// Parse parses "TYPE" or "TYPE::INDEX" per the grammar in spec §6.
func Parse(s string) (Device, error) {
	parts := strings.SplitN(s, "::", 2)
	typ := parts[0]
	if !isValidType(typ) {
		return Device{}, &ErrInvalidDeviceString{Input: s}
	}
	if len(parts) == 1 {
		return Device{Type: typ}, nil
	}
	idx, err := strconv.Atoi(parts[1])
	if err != nil || idx < 0 {
		return Device{}, &ErrInvalidDeviceString{Input: s}
	}
	return Device{Type: typ, Index: idx, HasIndex: true}, nil
}

func isValidType(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9') {
			return false
		}
	}
	return true
}

// String renders back to the canonical "type" or "type::index" form.
func (d Device) String() string {
	if !d.HasIndex {
		return d.Type
	}
	return fmt.Sprintf("%s::%d", d.Type, d.Index)
}

// Equal reports whether two devices name the same execution target.
func (d Device) Equal(o Device) bool {
	return d.Type == o.Type && d.HasIndex == o.HasIndex && d.Index == o.Index
}

// ParseDeviceID extracts the optional index from a device string, per
// spec §8 property 8: parse_device_id("cuda::0") = Some(0);
// parse_device_id("cpu") = None.
func ParseDeviceID(s string) (int, bool) {
	d, err := Parse(s)
	if err != nil || !d.HasIndex {
		return 0, false
	}
	return d.Index, true
}

// Type returns just the backend-type component of a device string.
func Type(s string) (string, error) {
	d, err := Parse(s)
	if err != nil {
		return "", err
	}
	return d.Type, nil
}

// Handle is a reference-counted device handle: devices outlive any
// storage allocated on them (spec §9). Its reference count and
// released flag are mutated under Handle's lock, opaque to clients.
type Handle struct {
	dev Device

	mu       sync.Mutex
	refs     int
	released bool
}

var (
	registryMu sync.Mutex
	registry   = map[string]*Handle{}
)

// Acquire returns the process-wide shared handle for dev, creating it
// on first use and incrementing its reference count.
func Acquire(dev Device) *Handle {
	key := dev.String()
	registryMu.Lock()
	defer registryMu.Unlock()

	h, ok := registry[key]
	if !ok {
		h = &Handle{dev: dev}
		registry[key] = h
	}
	h.mu.Lock()
	h.refs++
	h.mu.Unlock()
	return h
}

// Release decrements the handle's reference count. It does not
// deallocate the device; devices are process-lived singletons in this
// model (spec §9 "no cycles").
func (h *Handle) Release() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.refs > 0 {
		h.refs--
	}
}

// RefCount returns the current reference count, for tests and
// diagnostics.
func (h *Handle) RefCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.refs
}

// Device returns the underlying device identity.
func (h *Handle) Device() Device { return h.dev }
