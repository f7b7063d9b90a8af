package types

// StepState is the persisted position of a session in the checkout flow.
type StepState struct {
	Current    int `json:"currentStep"`
	MaxReached int `json:"maxStepReached"`
}
