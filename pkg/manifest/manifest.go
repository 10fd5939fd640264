package manifest

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Manifest describes a plugin: its identity, the capabilities it
// implements, and the build-target patterns it supports (spec §4.5
// "capabilities advertised in initialize are a subset of" the
// manifest's declared set, §4.6 target-pattern matching).
type Manifest struct {
	Name         string       `yaml:"name"`
	Version      string       `yaml:"version"`
	Capabilities []Capability `yaml:"capabilities"`
	Targets      []string     `yaml:"targets"`
}

// ErrInvalidManifest is returned by Load/Parse for a structurally
// invalid manifest.
type ErrInvalidManifest struct{ Msg string }

func (e *ErrInvalidManifest) Error() string { return e.Msg }

// Load reads and parses a plugin manifest YAML file from path.
func Load(path string) (*Manifest, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(raw)
}

// Parse decodes manifest YAML from raw bytes.
func Parse(raw []byte) (*Manifest, error) {
	var m Manifest
	if err := yaml.Unmarshal(raw, &m); err != nil {
		return nil, &ErrInvalidManifest{Msg: fmt.Sprintf("manifest: parse: %v", err)}
	}
	if m.Name == "" {
		return nil, &ErrInvalidManifest{Msg: "manifest: missing name"}
	}
	return &m, nil
}

// CapabilityStrings renders m's capabilities as the method-name
// strings initialize's capabilities[] field expects (spec §4.5).
func (m *Manifest) CapabilityStrings() []string {
	out := make([]string, len(m.Capabilities))
	for i, c := range m.Capabilities {
		out[i] = c.String()
	}
	return out
}

// Has reports whether m advertises c.
func (m *Manifest) Has(c Capability) bool {
	for _, have := range m.Capabilities {
		if have == c {
			return true
		}
	}
	return false
}

// SupportsTarget reports whether m declares a target pattern matching
// triple (spec §4.6).
func (m *Manifest) SupportsTarget(triple string) bool {
	return MatchesAny(m.Targets, triple)
}
