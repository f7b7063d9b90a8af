// Package steps tracks where a session is in the checkout flow.
package steps

import "github.com/angelmondragon/storefront-checkout/pkg/types"

// Machine is the step position of one session. MaxReached never decreases
// until Reset.
type Machine struct {
	Current    int
	MaxReached int
	Total      int
}

func New(total int) *Machine {
	if total < 1 {
		total = 1
	}
	return &Machine{Current: 1, MaxReached: 1, Total: total}
}

// FromState rehydrates a machine, clamping persisted values into 1..total.
func FromState(state types.StepState, total int) *Machine {
	m := New(total)
	m.MaxReached = clamp(state.MaxReached, m.Total)
	m.Current = clamp(state.Current, m.Total)
	if m.MaxReached < m.Current {
		m.MaxReached = m.Current
	}
	return m
}

func clamp(step, total int) int {
	if step < 1 {
		return 1
	}
	if step > total {
		return total
	}
	return step
}

func (m *Machine) inRange(step int) bool {
	return step >= 1 && step <= m.Total
}

func (m *Machine) enter(step int) {
	m.Current = step
	if step > m.MaxReached {
		m.MaxReached = step
	}
}

// GoTo moves to any in-range step. Out-of-range steps are ignored.
func (m *Machine) GoTo(step int) bool {
	if !m.inRange(step) {
		return false
	}
	m.enter(step)
	return true
}

// CanNavigate reports whether the UI may offer step as a target.
func (m *Machine) CanNavigate(step int) bool {
	return m.inRange(step) && step <= m.MaxReached
}

// Navigate moves to a step the customer already reached. Other targets are ignored.
func (m *Machine) Navigate(step int) bool {
	if !m.CanNavigate(step) {
		return false
	}
	m.enter(step)
	return true
}

func (m *Machine) Reset() {
	m.Current = 1
	m.MaxReached = 1
}

func (m *Machine) State() types.StepState {
	return types.StepState{Current: m.Current, MaxReached: m.MaxReached}
}
