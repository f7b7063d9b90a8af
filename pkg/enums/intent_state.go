package enums

import "fmt"

// IntentState tracks the payment intent orchestrator lifecycle.
type IntentState string

const (
	IntentStateUninitialized IntentState = "uninitialized"
	IntentStateCreating      IntentState = "creating"
	IntentStateReady         IntentState = "ready"
	IntentStateUpdating      IntentState = "updating"
	IntentStateFailed        IntentState = "failed"
	IntentStateConsumed      IntentState = "consumed"
)

var validIntentStates = []IntentState{
	IntentStateUninitialized,
	IntentStateCreating,
	IntentStateReady,
	IntentStateUpdating,
	IntentStateFailed,
	IntentStateConsumed,
}

// String implements fmt.Stringer.
func (v IntentState) String() string {
	return string(v)
}

// IsValid reports whether the value is a known IntentState.
func (v IntentState) IsValid() bool {
	for _, candidate := range validIntentStates {
		if candidate == v {
			return true
		}
	}
	return false
}

// ParseIntentState converts raw input into a IntentState.
func ParseIntentState(value string) (IntentState, error) {
	for _, candidate := range validIntentStates {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid intent state %q", value)
}
