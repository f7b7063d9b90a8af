// Package session keeps per-checkout-session state in Redis.
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/multierr"

	"github.com/angelmondragon/storefront-checkout/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-checkout/pkg/errors"
	"github.com/angelmondragon/storefront-checkout/pkg/redis"
	"github.com/angelmondragon/storefront-checkout/pkg/types"
)

const (
	fieldCart     = "cart"
	fieldForm     = "form"
	fieldSteps    = "steps"
	fieldDiscount = "discount"
	fieldBundle   = "bundle"
	fieldVariant  = "variant"
	fieldIntent   = "intent"
	fieldLookup   = "address_lookup"
)

// DefaultTTL is how long an idle checkout session survives.
const DefaultTTL = 7 * 24 * time.Hour

// checkoutFields are dropped when the cart empties.
var checkoutFields = []string{fieldCart, fieldForm, fieldDiscount, fieldSteps, fieldLookup}

// completedFields are dropped once payment succeeded. The variant stays sticky.
var completedFields = []string{fieldCart, fieldForm, fieldDiscount, fieldSteps, fieldLookup, fieldBundle, fieldIntent}

// LookupMemo remembers the last successful postcode lookup applied to the form.
type LookupMemo struct {
	Key    string                `json:"key"`
	Result types.ResolvedAddress `json:"result"`
}

// Store reads and writes checkout session state.
type Store struct {
	kv  redis.Store
	ttl time.Duration
	now func() time.Time
}

func NewStore(kv redis.Store, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Store{kv: kv, ttl: ttl, now: time.Now}
}

// WithClock overrides the time source, used for bundle expiry.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

func (s *Store) load(ctx context.Context, sessionID, field string, out any) (bool, error) {
	raw, err := s.kv.Get(ctx, redis.CheckoutKey(sessionID, field))
	if err != nil {
		if redis.IsNil(err) {
			return false, nil
		}
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load checkout "+field)
	}
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "decode checkout "+field)
	}
	return true, nil
}

func (s *Store) save(ctx context.Context, sessionID, field string, value any) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode checkout "+field)
	}
	if err := s.kv.Set(ctx, redis.CheckoutKey(sessionID, field), string(payload), s.ttl); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save checkout "+field)
	}
	return nil
}

func (s *Store) remove(ctx context.Context, sessionID string, fields ...string) error {
	var errs error
	for _, field := range fields {
		if err := s.kv.Del(ctx, redis.CheckoutKey(sessionID, field)); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("delete %s: %w", field, err))
		}
	}
	if errs != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, errs, "clear checkout session")
	}
	return nil
}

func (s *Store) Cart(ctx context.Context, sessionID string) ([]types.CartLine, error) {
	var lines []types.CartLine
	if _, err := s.load(ctx, sessionID, fieldCart, &lines); err != nil {
		return nil, err
	}
	return lines, nil
}

func (s *Store) SaveCart(ctx context.Context, sessionID string, lines []types.CartLine) error {
	return s.save(ctx, sessionID, fieldCart, lines)
}

func (s *Store) Form(ctx context.Context, sessionID string) (types.CheckoutFormData, error) {
	var form types.CheckoutFormData
	if _, err := s.load(ctx, sessionID, fieldForm, &form); err != nil {
		return types.CheckoutFormData{}, err
	}
	return form, nil
}

func (s *Store) SaveForm(ctx context.Context, sessionID string, form types.CheckoutFormData) error {
	return s.save(ctx, sessionID, fieldForm, form)
}

// Steps returns the stored step state and whether one was found.
func (s *Store) Steps(ctx context.Context, sessionID string) (types.StepState, bool, error) {
	var state types.StepState
	ok, err := s.load(ctx, sessionID, fieldSteps, &state)
	return state, ok, err
}

func (s *Store) SaveSteps(ctx context.Context, sessionID string, state types.StepState) error {
	return s.save(ctx, sessionID, fieldSteps, state)
}

func (s *Store) Discount(ctx context.Context, sessionID string) (*types.AppliedDiscount, error) {
	var discount types.AppliedDiscount
	ok, err := s.load(ctx, sessionID, fieldDiscount, &discount)
	if err != nil || !ok {
		return nil, err
	}
	return &discount, nil
}

func (s *Store) SaveDiscount(ctx context.Context, sessionID string, discount types.AppliedDiscount) error {
	return s.save(ctx, sessionID, fieldDiscount, discount)
}

func (s *Store) ClearDiscount(ctx context.Context, sessionID string) error {
	return s.remove(ctx, sessionID, fieldDiscount)
}

// Bundle returns the active bundle discount. Expired values read as absent and are purged.
func (s *Store) Bundle(ctx context.Context, sessionID string) (*types.BundleDiscount, error) {
	var bundle types.BundleDiscount
	ok, err := s.load(ctx, sessionID, fieldBundle, &bundle)
	if err != nil || !ok {
		return nil, err
	}
	if bundle.Expired(s.now()) {
		if err := s.remove(ctx, sessionID, fieldBundle); err != nil {
			return nil, err
		}
		return nil, nil
	}
	return &bundle, nil
}

func (s *Store) SaveBundle(ctx context.Context, sessionID string, bundle types.BundleDiscount) error {
	return s.save(ctx, sessionID, fieldBundle, bundle)
}

func (s *Store) ClearBundle(ctx context.Context, sessionID string) error {
	return s.remove(ctx, sessionID, fieldBundle)
}

// Variant returns the sticky flow variant, or "" when unassigned.
func (s *Store) Variant(ctx context.Context, sessionID string) (enums.FlowVariant, error) {
	var variant enums.FlowVariant
	if _, err := s.load(ctx, sessionID, fieldVariant, &variant); err != nil {
		return "", err
	}
	if !variant.IsValid() {
		return "", nil
	}
	return variant, nil
}

func (s *Store) SaveVariant(ctx context.Context, sessionID string, variant enums.FlowVariant) error {
	return s.save(ctx, sessionID, fieldVariant, variant)
}

// Intent returns the cached payment intent snapshot, if any.
func (s *Store) Intent(ctx context.Context, sessionID string) (*types.IntentSnapshot, error) {
	var snap types.IntentSnapshot
	ok, err := s.load(ctx, sessionID, fieldIntent, &snap)
	if err != nil || !ok {
		return nil, err
	}
	return &snap, nil
}

func (s *Store) SaveIntent(ctx context.Context, sessionID string, snap types.IntentSnapshot) error {
	return s.save(ctx, sessionID, fieldIntent, snap)
}

func (s *Store) LookupMemo(ctx context.Context, sessionID string) (*LookupMemo, error) {
	var memo LookupMemo
	ok, err := s.load(ctx, sessionID, fieldLookup, &memo)
	if err != nil || !ok {
		return nil, err
	}
	return &memo, nil
}

func (s *Store) SaveLookupMemo(ctx context.Context, sessionID string, memo LookupMemo) error {
	return s.save(ctx, sessionID, fieldLookup, memo)
}

func (s *Store) ClearLookupMemo(ctx context.Context, sessionID string) error {
	return s.remove(ctx, sessionID, fieldLookup)
}

// ClearCheckout drops cart-derived state once the cart is empty.
func (s *Store) ClearCheckout(ctx context.Context, sessionID string) error {
	return s.remove(ctx, sessionID, checkoutFields...)
}

// ClearAll drops everything but the variant assignment after a successful payment.
func (s *Store) ClearAll(ctx context.Context, sessionID string) error {
	return s.remove(ctx, sessionID, completedFields...)
}

// Complete ends a paid checkout: everything but the variant is dropped and the
// intent is left marked consumed so the next checkout starts a fresh one.
func (s *Store) Complete(ctx context.Context, sessionID string) error {
	if err := s.ClearAll(ctx, sessionID); err != nil {
		return err
	}
	return s.SaveIntent(ctx, sessionID, types.IntentSnapshot{
		State:     enums.IntentStateConsumed,
		UpdatedAt: s.now().UTC(),
	})
}

// ExclusionOwner scopes deleted addresses to the customer when known, else to the session.
func ExclusionOwner(customerID, sessionID string) string {
	if id := strings.TrimSpace(customerID); id != "" {
		return "customer:" + id
	}
	return "session:" + sessionID
}

// Exclusions returns the set of address ids the owner deleted.
func (s *Store) Exclusions(ctx context.Context, owner string) (map[string]struct{}, error) {
	set := map[string]struct{}{}
	raw, err := s.kv.Get(ctx, redis.ExclusionKey(owner))
	if err != nil {
		if redis.IsNil(err) {
			return set, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load address exclusions")
	}
	var ids []string
	if err := json.Unmarshal([]byte(raw), &ids); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "decode address exclusions")
	}
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set, nil
}

// AddExclusion records ids as deleted for owner. Customer-scoped lists do not expire.
func (s *Store) AddExclusion(ctx context.Context, owner string, ids ...string) error {
	set, err := s.Exclusions(ctx, owner)
	if err != nil {
		return err
	}
	added := false
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := set[id]; !ok {
			set[id] = struct{}{}
			added = true
		}
	}
	if !added {
		return nil
	}
	all := make([]string, 0, len(set))
	for existing := range set {
		all = append(all, existing)
	}

	payload, err := json.Marshal(all)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode address exclusions")
	}
	ttl := s.ttl
	if strings.HasPrefix(owner, "customer:") {
		ttl = 0
	}
	if err := s.kv.Set(ctx, redis.ExclusionKey(owner), string(payload), ttl); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save address exclusions")
	}
	return nil
}
