package address

import (
	"context"
	"errors"
	"strings"

	"github.com/angelmondragon/storefront-checkout/internal/session"
	"github.com/angelmondragon/storefront-checkout/pkg/debounce"
	"github.com/angelmondragon/storefront-checkout/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-checkout/pkg/errors"
	"github.com/angelmondragon/storefront-checkout/pkg/types"
)

const (
	TargetBilling  = "billing"
	TargetShipping = "shipping"
)

// AutofillRequest is a lookup applied to one address block of the stored form.
type AutofillRequest struct {
	LookupRequest
	Target string `json:"target,omitempty"`
}

// AutofillResult reports the outcome the storefront renders next to the address fields.
type AutofillResult struct {
	Status        enums.LookupStatus     `json:"status"`
	Address       *types.ResolvedAddress `json:"address,omitempty"`
	Message       string                 `json:"message,omitempty"`
	Retryable     bool                   `json:"retryable"`
	ManualAddress bool                   `json:"manualAddress"`
}

// Autofill debounces lookups per session, then writes the outcome into the stored form.
// Failed lookups always clear the previously filled street and city.
func (s *service) Autofill(ctx context.Context, sessionID string, req AutofillRequest) (AutofillResult, error) {
	target := strings.ToLower(strings.TrimSpace(req.Target))
	if target == "" {
		target = TargetBilling
	}
	if target != TargetBilling && target != TargetShipping {
		return AutofillResult{}, pkgerrors.New(pkgerrors.CodeValidation, "target must be billing or shipping")
	}

	form, err := s.sessions.Form(ctx, sessionID)
	if err != nil {
		return AutofillResult{}, err
	}
	if form.ManualAddress {
		return AutofillResult{Status: enums.LookupStatusIdle, ManualAddress: true}, nil
	}

	key := target + ":" + req.CacheKey()
	memo, err := s.sessions.LookupMemo(ctx, sessionID)
	if err != nil {
		return AutofillResult{}, err
	}
	if memo != nil && memo.Key == key {
		addr := memo.Result
		return AutofillResult{Status: enums.LookupStatusFound, Address: &addr}, nil
	}

	var (
		addr      types.ResolvedAddress
		lookupErr error
	)
	err = s.debouncer.Do(ctx, sessionID, func(callCtx context.Context) error {
		addr, lookupErr = s.Lookup(callCtx, req.LookupRequest)
		return nil
	})
	if err != nil {
		if errors.Is(err, debounce.ErrSuperseded) {
			return AutofillResult{}, pkgerrors.New(pkgerrors.CodeStateConflict, "superseded by a newer lookup")
		}
		return AutofillResult{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "address lookup interrupted")
	}

	// Re-read so form edits saved while the lookup was in flight are kept.
	form, err = s.sessions.Form(ctx, sessionID)
	if err != nil {
		return AutofillResult{}, err
	}
	block := &form.Billing
	if target == TargetShipping {
		block = &form.Shipping
	}
	block.Postcode = strings.TrimSpace(req.Postcode)
	block.HouseNumber = strings.TrimSpace(req.HouseNumber)
	block.Addition = strings.TrimSpace(req.Addition)
	if req.Country != "" {
		block.Country = strings.ToUpper(strings.TrimSpace(req.Country))
	}

	result := AutofillResult{Status: Status(lookupErr)}
	if lookupErr == nil {
		block.Street = addr.Street
		block.City = addr.City
		result.Address = &addr
		if err := s.sessions.SaveLookupMemo(ctx, sessionID, session.LookupMemo{Key: key, Result: addr}); err != nil {
			return AutofillResult{}, err
		}
	} else {
		block.Street = ""
		block.City = ""
		result.Message = lookupMessage(lookupErr)
		result.Retryable = result.Status == enums.LookupStatusNetworkError
		if result.Status == enums.LookupStatusCombinationNotFound || result.Status == enums.LookupStatusUnsupported {
			form.ManualAddress = true
		}
		if err := s.sessions.ClearLookupMemo(ctx, sessionID); err != nil {
			return AutofillResult{}, err
		}
	}
	result.ManualAddress = form.ManualAddress

	if err := s.sessions.SaveForm(ctx, sessionID, form); err != nil {
		return AutofillResult{}, err
	}
	return result, nil
}

func lookupMessage(err error) string {
	if typed := pkgerrors.As(err); typed != nil {
		return typed.Message()
	}
	return MessageNetwork
}
