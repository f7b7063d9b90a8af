package enums

import "fmt"

// FlowVariant identifies the checkout layout assigned to a session.
type FlowVariant string

const (
	FlowVariantA FlowVariant = "a"
	FlowVariantB FlowVariant = "b"
)

var validFlowVariants = []FlowVariant{
	FlowVariantA,
	FlowVariantB,
}

// String implements fmt.Stringer.
func (v FlowVariant) String() string {
	return string(v)
}

// IsValid reports whether the value is a known FlowVariant.
func (v FlowVariant) IsValid() bool {
	for _, candidate := range validFlowVariants {
		if candidate == v {
			return true
		}
	}
	return false
}

// ParseFlowVariant converts raw input into a FlowVariant.
func ParseFlowVariant(value string) (FlowVariant, error) {
	for _, candidate := range validFlowVariants {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid flow variant %q", value)
}
