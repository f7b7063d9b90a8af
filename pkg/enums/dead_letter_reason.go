package enums

import "fmt"

// DeadLetterReason records why the publisher stopped retrying an outbox event.
type DeadLetterReason string

const (
	DeadLetterMaxAttempts  DeadLetterReason = "max_attempts"
	DeadLetterNonRetryable DeadLetterReason = "non_retryable"
	// DeadLetterUndecodable marks rows whose payload is not an event envelope.
	DeadLetterUndecodable DeadLetterReason = "undecodable"
)

var validDeadLetterReasons = []DeadLetterReason{
	DeadLetterMaxAttempts,
	DeadLetterNonRetryable,
	DeadLetterUndecodable,
}

func (r DeadLetterReason) String() string {
	return string(r)
}

func (r DeadLetterReason) IsValid() bool {
	for _, candidate := range validDeadLetterReasons {
		if candidate == r {
			return true
		}
	}
	return false
}

// ParseDeadLetterReason converts a stored dead_reason back into the enum.
func ParseDeadLetterReason(value string) (DeadLetterReason, error) {
	for _, candidate := range validDeadLetterReasons {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid dead letter reason %q", value)
}
