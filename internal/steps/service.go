package steps

import (
	"context"
	"fmt"

	"github.com/angelmondragon/storefront-checkout/internal/session"
	"github.com/angelmondragon/storefront-checkout/internal/variants"
)

// StepView is one entry of the step indicator.
type StepView struct {
	Number    int    `json:"number"`
	Name      string `json:"name"`
	Navigable bool   `json:"navigable"`
}

// View is the step state returned to the storefront.
type View struct {
	CurrentStep    int        `json:"currentStep"`
	MaxStepReached int        `json:"maxStepReached"`
	TotalSteps     int        `json:"totalSteps"`
	Accepted       bool       `json:"accepted"`
	Steps          []StepView `json:"steps"`
}

type Service interface {
	Get(ctx context.Context, sessionID string) (View, error)
	GoTo(ctx context.Context, sessionID string, step int) (View, error)
	Navigate(ctx context.Context, sessionID string, step int) (View, error)
	Reset(ctx context.Context, sessionID string) error
}

type service struct {
	store    *session.Store
	variants variants.Service
}

func NewService(store *session.Store, variantSvc variants.Service) (Service, error) {
	if store == nil {
		return nil, fmt.Errorf("session store required")
	}
	if variantSvc == nil {
		return nil, fmt.Errorf("variants service required")
	}
	return &service{store: store, variants: variantSvc}, nil
}

func (s *service) load(ctx context.Context, sessionID string) (*Machine, variants.Flow, error) {
	flow, err := s.variants.Assign(ctx, sessionID)
	if err != nil {
		return nil, variants.Flow{}, err
	}
	state, found, err := s.store.Steps(ctx, sessionID)
	if err != nil {
		return nil, variants.Flow{}, err
	}
	if !found {
		return New(flow.StepCount()), flow, nil
	}
	return FromState(state, flow.StepCount()), flow, nil
}

func (s *service) Get(ctx context.Context, sessionID string) (View, error) {
	m, flow, err := s.load(ctx, sessionID)
	if err != nil {
		return View{}, err
	}
	return render(m, flow, true), nil
}

func (s *service) GoTo(ctx context.Context, sessionID string, step int) (View, error) {
	return s.transition(ctx, sessionID, func(m *Machine) bool { return m.GoTo(step) })
}

func (s *service) Navigate(ctx context.Context, sessionID string, step int) (View, error) {
	return s.transition(ctx, sessionID, func(m *Machine) bool { return m.Navigate(step) })
}

func (s *service) transition(ctx context.Context, sessionID string, move func(*Machine) bool) (View, error) {
	m, flow, err := s.load(ctx, sessionID)
	if err != nil {
		return View{}, err
	}
	accepted := move(m)
	if accepted {
		if err := s.store.SaveSteps(ctx, sessionID, m.State()); err != nil {
			return View{}, err
		}
	}
	return render(m, flow, accepted), nil
}

func (s *service) Reset(ctx context.Context, sessionID string) error {
	flow, err := s.variants.Assign(ctx, sessionID)
	if err != nil {
		return err
	}
	m := New(flow.StepCount())
	return s.store.SaveSteps(ctx, sessionID, m.State())
}

func render(m *Machine, flow variants.Flow, accepted bool) View {
	view := View{
		CurrentStep:    m.Current,
		MaxStepReached: m.MaxReached,
		TotalSteps:     m.Total,
		Accepted:       accepted,
		Steps:          make([]StepView, 0, len(flow.Steps)),
	}
	for i, name := range flow.Steps {
		number := i + 1
		view.Steps = append(view.Steps, StepView{Number: number, Name: name, Navigable: m.CanNavigate(number)})
	}
	return view
}
