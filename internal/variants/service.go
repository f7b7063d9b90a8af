// Package variants assigns each checkout session to one of the flow variants.
package variants

import (
	"context"
	"fmt"
	"hash/fnv"
	"strings"

	"github.com/angelmondragon/storefront-checkout/internal/session"
	"github.com/angelmondragon/storefront-checkout/pkg/config"
	"github.com/angelmondragon/storefront-checkout/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-checkout/pkg/errors"
	"github.com/shopspring/decimal"
)

const (
	StepInformation = "information"
	StepShipping    = "shipping"
	StepOverview    = "overview"
	StepPayment     = "payment"
)

// Flow describes the layout and shipping threshold of a variant.
type Flow struct {
	Variant               enums.FlowVariant `json:"variant"`
	Steps                 []string          `json:"steps"`
	FreeShippingThreshold decimal.Decimal   `json:"freeShippingThreshold"`
}

// StepCount is the number of steps in the flow.
func (f Flow) StepCount() int {
	return len(f.Steps)
}

type Service interface {
	Assign(ctx context.Context, sessionID string) (Flow, error)
	Flow(variant enums.FlowVariant) Flow
}

type service struct {
	store  *session.Store
	cfg    config.VariantsConfig
	forced enums.FlowVariant
}

func NewService(store *session.Store, cfg config.VariantsConfig) (Service, error) {
	if store == nil {
		return nil, fmt.Errorf("session store required")
	}
	var forced enums.FlowVariant
	if raw := strings.ToLower(strings.TrimSpace(cfg.ForcedVariant)); raw != "" {
		parsed, err := enums.ParseFlowVariant(raw)
		if err != nil {
			return nil, fmt.Errorf("forced variant: %w", err)
		}
		forced = parsed
	}
	return &service{store: store, cfg: cfg, forced: forced}, nil
}

// Assign returns the session's sticky variant, persisting a fresh bucket on first use.
func (s *service) Assign(ctx context.Context, sessionID string) (Flow, error) {
	if strings.TrimSpace(sessionID) == "" {
		return Flow{}, pkgerrors.New(pkgerrors.CodeValidation, "session id is required")
	}
	if s.forced != "" {
		return s.Flow(s.forced), nil
	}

	variant, err := s.store.Variant(ctx, sessionID)
	if err != nil {
		return Flow{}, err
	}
	if variant == "" {
		variant = Bucket(sessionID, s.cfg.BPercent)
		if err := s.store.SaveVariant(ctx, sessionID, variant); err != nil {
			return Flow{}, err
		}
	}
	return s.Flow(variant), nil
}

func (s *service) Flow(variant enums.FlowVariant) Flow {
	if variant == enums.FlowVariantB {
		return Flow{
			Variant:               enums.FlowVariantB,
			Steps:                 []string{StepOverview, StepPayment},
			FreeShippingThreshold: s.cfg.BFreeShippingMinimum,
		}
	}
	return Flow{
		Variant:               enums.FlowVariantA,
		Steps:                 []string{StepInformation, StepShipping, StepPayment},
		FreeShippingThreshold: s.cfg.AFreeShippingMinimum,
	}
}

// Bucket deterministically maps a session id onto a variant. bPercent of the
// FNV-1a hash space lands on variant b.
func Bucket(sessionID string, bPercent int) enums.FlowVariant {
	if bPercent <= 0 {
		return enums.FlowVariantA
	}
	if bPercent >= 100 {
		return enums.FlowVariantB
	}
	h := fnv.New32a()
	_, _ = h.Write([]byte(sessionID))
	if int(h.Sum32()%100) < bPercent {
		return enums.FlowVariantB
	}
	return enums.FlowVariantA
}
