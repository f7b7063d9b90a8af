package enums

import "fmt"

// LookupStatus is the outcome of a postcode lookup.
type LookupStatus string

const (
	LookupStatusIdle                LookupStatus = "idle"
	LookupStatusLoading             LookupStatus = "loading"
	LookupStatusFound               LookupStatus = "found"
	LookupStatusInvalidFormat       LookupStatus = "invalid_format"
	LookupStatusCombinationNotFound LookupStatus = "combination_not_found"
	LookupStatusNetworkError        LookupStatus = "network_error"
	LookupStatusUnsupported         LookupStatus = "unsupported"
)

var validLookupStatuses = []LookupStatus{
	LookupStatusIdle,
	LookupStatusLoading,
	LookupStatusFound,
	LookupStatusInvalidFormat,
	LookupStatusCombinationNotFound,
	LookupStatusNetworkError,
	LookupStatusUnsupported,
}

// String implements fmt.Stringer.
func (v LookupStatus) String() string {
	return string(v)
}

// IsValid reports whether the value is a known LookupStatus.
func (v LookupStatus) IsValid() bool {
	for _, candidate := range validLookupStatuses {
		if candidate == v {
			return true
		}
	}
	return false
}

// ParseLookupStatus converts raw input into a LookupStatus.
func ParseLookupStatus(value string) (LookupStatus, error) {
	for _, candidate := range validLookupStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid lookup status %q", value)
}
