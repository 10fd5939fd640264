// Package manifest implements plugin manifest parsing and build-target
// resolution (spec §4.6): host-triple detection, `BuildTarget`
// matching against `*`-wildcard triple patterns, and the capability
// enum a manifest advertises.
package manifest

import (
	"strings"

	"hodu/pkg/device"
)

// HostTriple derives the running process's build triple, over the
// supported matrix {x86_64,aarch64} x {linux,macos,windows}; anything
// else falls back to "unknown" (spec §4.6). pkg/device already derives
// this pair for device-string resolution; this package reuses it
// rather than re-deriving arch/OS names of its own.
func HostTriple() string {
	return device.HostTriple()
}

// BuildTarget pairs a build triple with an execution device (spec
// §4.6).
type BuildTarget struct {
	Triple string
	Device device.Device
}

// MatchTriplePattern reports whether triple matches pattern, where "*"
// in pattern matches exactly one "-"-delimited segment of triple (spec
// §4.6, e.g. "x86_64-*-*").
func MatchTriplePattern(pattern, triple string) bool {
	pSegs := strings.Split(pattern, "-")
	tSegs := strings.Split(triple, "-")
	if len(pSegs) != len(tSegs) {
		return false
	}
	for i, p := range pSegs {
		if p != "*" && p != tSegs[i] {
			return false
		}
	}
	return true
}

// MatchesAny reports whether triple matches at least one of patterns.
// An empty patterns list matches nothing — a manifest with no declared
// targets supports no build target.
func MatchesAny(patterns []string, triple string) bool {
	for _, p := range patterns {
		if MatchTriplePattern(p, triple) {
			return true
		}
	}
	return false
}
