package manifest

import "fmt"

// Capability names one RPC method a plugin advertises support for in
// its manifest and in its initialize response's capabilities[] (spec
// §4.5, §4.6 "Plugin backend/tensor-format capability split"). The
// split mirrors the original's backend-execution vs. model-format vs.
// tensor-format distinction.
type Capability int

const (
	CapabilityFormatLoadModel Capability = iota
	CapabilityFormatSaveModel
	CapabilityFormatLoadTensor
	CapabilityFormatSaveTensor
	CapabilityBackendRun
	CapabilityBackendBuild
)

var capabilityNames = [...]string{
	CapabilityFormatLoadModel:  "format.load_model",
	CapabilityFormatSaveModel:  "format.save_model",
	CapabilityFormatLoadTensor: "format.load_tensor",
	CapabilityFormatSaveTensor: "format.save_tensor",
	CapabilityBackendRun:       "backend.run",
	CapabilityBackendBuild:     "backend.build",
}

func (c Capability) String() string {
	if int(c) < 0 || int(c) >= len(capabilityNames) {
		return fmt.Sprintf("Capability(%d)", int(c))
	}
	return capabilityNames[c]
}

// MarshalYAML renders a Capability as its method-name string.
func (c Capability) MarshalYAML() (interface{}, error) {
	return c.String(), nil
}

// UnmarshalYAML parses a Capability from its method-name string.
func (c *Capability) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	parsed, err := ParseCapability(s)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// ParseCapability parses a method name into the Capability it
// advertises, per spec §6's method set.
func ParseCapability(s string) (Capability, error) {
	for i, name := range capabilityNames {
		if name == s {
			return Capability(i), nil
		}
	}
	return 0, fmt.Errorf("manifest: unknown capability %q", s)
}

// IsFormatCapability reports whether c is one of the model/tensor
// format-codec capabilities, as opposed to a backend-execution one.
func (c Capability) IsFormatCapability() bool {
	switch c {
	case CapabilityFormatLoadModel, CapabilityFormatSaveModel,
		CapabilityFormatLoadTensor, CapabilityFormatSaveTensor:
		return true
	default:
		return false
	}
}
