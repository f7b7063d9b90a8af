package enums

import "fmt"

// SubmissionStatus tracks an order submission from payment to the commerce backend.
type SubmissionStatus string

const (
	SubmissionStatusPending   SubmissionStatus = "pending"
	SubmissionStatusSubmitted SubmissionStatus = "submitted"
	SubmissionStatusFailed    SubmissionStatus = "failed"
	// SubmissionStatusExpired marks a pending submission whose payment never arrived.
	SubmissionStatusExpired SubmissionStatus = "expired"
)

var validSubmissionStatuses = []SubmissionStatus{
	SubmissionStatusPending,
	SubmissionStatusSubmitted,
	SubmissionStatusFailed,
	SubmissionStatusExpired,
}

// String implements fmt.Stringer.
func (v SubmissionStatus) String() string {
	return string(v)
}

// IsValid reports whether the value is a known SubmissionStatus.
func (v SubmissionStatus) IsValid() bool {
	for _, candidate := range validSubmissionStatuses {
		if candidate == v {
			return true
		}
	}
	return false
}

// ParseSubmissionStatus converts raw input into a SubmissionStatus.
func ParseSubmissionStatus(value string) (SubmissionStatus, error) {
	for _, candidate := range validSubmissionStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid submission status %q", value)
}
