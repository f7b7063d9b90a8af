// Package payments keeps exactly one live payment intent per checkout session
// and refreshes its amount whenever the totals change.
package payments

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/angelmondragon/storefront-checkout/internal/cart"
	"github.com/angelmondragon/storefront-checkout/internal/orders"
	"github.com/angelmondragon/storefront-checkout/internal/pricing"
	"github.com/angelmondragon/storefront-checkout/internal/session"
	"github.com/angelmondragon/storefront-checkout/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-checkout/pkg/errors"
	"github.com/angelmondragon/storefront-checkout/pkg/logger"
	"github.com/angelmondragon/storefront-checkout/pkg/metrics"
	"github.com/angelmondragon/storefront-checkout/pkg/redis"
	stripeclient "github.com/angelmondragon/storefront-checkout/pkg/stripe"
	"github.com/angelmondragon/storefront-checkout/pkg/types"
	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v84"
)

const errorCodeUnexpectedState = "payment_intent_unexpected_state"

// SetupRemediation is returned with SETUP_ERROR so operators know what to fix.
var SetupRemediation = []string{
	"Set CHECKOUT_STRIPE_API_KEY to a Stripe secret key (sk_test_... in test mode, sk_live_... in live mode).",
	"Make sure CHECKOUT_STRIPE_ENV matches the key (test or live).",
	"Restart the checkout service so the payment client is initialized.",
}

type cartReader interface {
	Get(ctx context.Context, sessionID string) (cart.Summary, error)
}

type pendingRecorder interface {
	RecordPending(ctx context.Context, pending orders.PendingSubmission) error
}

// SyncResult is what the storefront needs to mount the hosted payment element.
type SyncResult struct {
	State           enums.IntentState `json:"state"`
	PaymentIntentID string            `json:"paymentIntentId"`
	ClientSecret    string            `json:"clientSecret"`
	Amount          decimal.Decimal   `json:"amount"`
	Currency        string            `json:"currency"`
	// SecretChanged tells the storefront to re-mount the payment element.
	SecretChanged bool         `json:"secretChanged"`
	Totals        types.Totals `json:"totals"`
}

// Status is the cached orchestrator state of a session.
type Status struct {
	State     enums.IntentState       `json:"state"`
	Intent    *types.PaymentIntentRef `json:"intent,omitempty"`
	Amount    decimal.Decimal         `json:"amount"`
	Currency  string                  `json:"currency,omitempty"`
	LastError string                  `json:"lastError,omitempty"`
}

type Service interface {
	Sync(ctx context.Context, sessionID, customerID string) (SyncResult, error)
	Status(ctx context.Context, sessionID string) (Status, error)
	Consume(ctx context.Context, sessionID string) (Status, error)
}

type ServiceParams struct {
	// Intents may be nil when no API key is configured; Sync then reports SETUP_ERROR.
	Intents  stripeclient.IntentAPI
	Cart     cartReader
	Sessions *session.Store
	Locks    redis.Store
	Recorder pendingRecorder
	Currency string
	LockTTL  time.Duration
	Metrics  *metrics.CheckoutMetrics
	Logger   *logger.Logger
	Clock    func() time.Time
}

type service struct {
	intents  stripeclient.IntentAPI
	cart     cartReader
	sessions *session.Store
	locks    redis.Store
	recorder pendingRecorder
	currency string
	lockTTL  time.Duration
	metrics  *metrics.CheckoutMetrics
	logg     *logger.Logger
	now      func() time.Time
}

func NewService(params ServiceParams) (Service, error) {
	if params.Cart == nil {
		return nil, fmt.Errorf("cart service required")
	}
	if params.Sessions == nil {
		return nil, fmt.Errorf("session store required")
	}
	if params.Locks == nil {
		return nil, fmt.Errorf("lock store required")
	}
	if params.Recorder == nil {
		return nil, fmt.Errorf("submission recorder required")
	}
	currency := strings.ToLower(strings.TrimSpace(params.Currency))
	if currency == "" {
		currency = "eur"
	}
	lockTTL := params.LockTTL
	if lockTTL <= 0 {
		lockTTL = 30 * time.Second
	}
	now := params.Clock
	if now == nil {
		now = time.Now
	}
	return &service{
		intents:  params.Intents,
		cart:     params.Cart,
		sessions: params.Sessions,
		locks:    params.Locks,
		recorder: params.Recorder,
		currency: currency,
		lockTTL:  lockTTL,
		metrics:  params.Metrics,
		logg:     params.Logger,
		now:      now,
	}, nil
}

func setupError() error {
	return pkgerrors.New(pkgerrors.CodeSetup, "payments are not configured on this deployment").
		WithDetails(map[string]any{"remediation": SetupRemediation})
}

// order is the fresh snapshot an intent is synced against.
type order struct {
	summary     cart.Summary
	form        types.CheckoutFormData
	submission  types.OrderSubmission
	amount      decimal.Decimal
	amountMinor int64
}

// Sync creates the session's intent or updates the live one in place. Totals are
// recomputed here, before any provider call.
func (s *service) Sync(ctx context.Context, sessionID, customerID string) (SyncResult, error) {
	if s.intents == nil {
		s.metrics.IncIntentOperation("sync", "setup_error")
		return SyncResult{}, setupError()
	}

	o, err := s.snapshotOrder(ctx, sessionID)
	if err != nil {
		return SyncResult{}, err
	}

	snap, err := s.sessions.Intent(ctx, sessionID)
	if err != nil {
		return SyncResult{}, err
	}

	var result SyncResult
	if live(snap) {
		result, err = s.update(ctx, sessionID, o, snap, false)
	} else {
		result, err = s.create(ctx, sessionID, o)
	}
	if err != nil {
		return SyncResult{}, err
	}

	if err := s.recorder.RecordPending(ctx, orders.PendingSubmission{
		PaymentIntentID: result.PaymentIntentID,
		SessionID:       sessionID,
		CustomerID:      customerID,
		Variant:         o.summary.Variant,
		Submission:      o.submission,
		AmountMinor:     o.amountMinor,
		Currency:        s.currency,
	}); err != nil {
		return SyncResult{}, err
	}
	result.Totals = o.summary.Totals
	return result, nil
}

func live(snap *types.IntentSnapshot) bool {
	return snap != nil && snap.Intent != nil && snap.Intent.ID != "" && snap.State != enums.IntentStateConsumed
}

func (s *service) snapshotOrder(ctx context.Context, sessionID string) (order, error) {
	summary, err := s.cart.Get(ctx, sessionID)
	if err != nil {
		return order{}, err
	}
	if summary.Empty() {
		return order{}, pkgerrors.New(pkgerrors.CodeStateConflict, "cart is empty")
	}
	amount := summary.Totals.FinalTotal
	minor := pricing.ToMinorUnits(amount)
	if minor <= 0 {
		return order{}, pkgerrors.New(pkgerrors.CodeStateConflict, "order total must be greater than zero")
	}
	form, err := s.sessions.Form(ctx, sessionID)
	if err != nil {
		return order{}, err
	}
	return order{
		summary:     summary,
		form:        form,
		submission:  orders.Assemble(summary.Lines, form, summary.Discount, summary.Totals),
		amount:      amount,
		amountMinor: minor,
	}, nil
}

func (s *service) metadata(sessionID string, o order) map[string]string {
	md := map[string]string{
		"checkout_session": sessionID,
		"variant":          o.summary.Variant.String(),
		"discount_code":    "",
	}
	if o.summary.Discount != nil {
		md["discount_code"] = o.summary.Discount.Code
	}
	return md
}

func (s *service) create(ctx context.Context, sessionID string, o order) (SyncResult, error) {
	lockKey := redis.LockKey("payment_intent", sessionID)
	acquired, err := s.locks.SetNX(ctx, lockKey, "1", s.lockTTL)
	if err != nil {
		return SyncResult{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "acquire payment intent lock")
	}
	if !acquired {
		s.metrics.IncIntentOperation("create", "conflict")
		return SyncResult{}, pkgerrors.New(pkgerrors.CodeStateConflict, "payment intent creation already in progress")
	}
	defer func() {
		if err := s.locks.Del(context.WithoutCancel(ctx), lockKey); err != nil {
			s.warn(ctx, "payments.lock.release_failed", err)
		}
	}()

	// A concurrent request may have finished creating while we waited for the latch.
	snap, err := s.sessions.Intent(ctx, sessionID)
	if err != nil {
		return SyncResult{}, err
	}
	if live(snap) {
		return s.update(ctx, sessionID, o, snap, true)
	}
	return s.createLocked(ctx, sessionID, o)
}

// createLocked creates a fresh intent. The caller holds the creation latch.
func (s *service) createLocked(ctx context.Context, sessionID string, o order) (SyncResult, error) {
	if err := s.save(ctx, sessionID, enums.IntentStateCreating, nil, o.amount, ""); err != nil {
		return SyncResult{}, err
	}

	params := &stripe.PaymentIntentCreateParams{
		Amount:   stripe.Int64(o.amountMinor),
		Currency: stripe.String(s.currency),
		AutomaticPaymentMethods: &stripe.PaymentIntentCreateAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
		Metadata: s.metadata(sessionID, o),
	}
	if email := strings.TrimSpace(o.form.Email); email != "" {
		params.ReceiptEmail = stripe.String(email)
	}

	pi, err := s.intents.Create(ctx, params)
	if err != nil {
		s.metrics.IncIntentOperation("create", "error")
		return SyncResult{}, s.fail(ctx, sessionID, nil, o.amount, err)
	}

	ref := &types.PaymentIntentRef{ID: pi.ID, ClientSecret: pi.ClientSecret}
	if err := s.save(ctx, sessionID, enums.IntentStateReady, ref, o.amount, ""); err != nil {
		return SyncResult{}, err
	}
	s.metrics.IncIntentOperation("create", "success")
	return SyncResult{
		State:           enums.IntentStateReady,
		PaymentIntentID: pi.ID,
		ClientSecret:    pi.ClientSecret,
		Amount:          o.amount,
		Currency:        s.currency,
		SecretChanged:   true,
	}, nil
}

// update refreshes the live intent in place. Its id never changes. latched
// reports whether the caller already holds the creation latch.
func (s *service) update(ctx context.Context, sessionID string, o order, snap *types.IntentSnapshot, latched bool) (SyncResult, error) {
	ref := *snap.Intent
	if snap.State == enums.IntentStateReady && snap.Amount.Equal(o.amount) && snap.Currency == s.currency {
		s.metrics.IncIntentOperation("update", "unchanged")
		return SyncResult{
			State:           enums.IntentStateReady,
			PaymentIntentID: ref.ID,
			ClientSecret:    ref.ClientSecret,
			Amount:          o.amount,
			Currency:        s.currency,
		}, nil
	}

	if err := s.save(ctx, sessionID, enums.IntentStateUpdating, &ref, snap.Amount, ""); err != nil {
		return SyncResult{}, err
	}

	params := &stripe.PaymentIntentUpdateParams{
		Amount:   stripe.Int64(o.amountMinor),
		Currency: stripe.String(s.currency),
		Metadata: s.metadata(sessionID, o),
	}
	pi, err := s.intents.Update(ctx, ref.ID, params)
	if err != nil {
		var stripeErr *stripe.Error
		if errors.As(err, &stripeErr) && string(stripeErr.Code) == errorCodeUnexpectedState {
			// The intent already succeeded or was cancelled; start a new one.
			s.metrics.IncIntentOperation("update", "stale")
			if err := s.save(ctx, sessionID, enums.IntentStateConsumed, nil, snap.Amount, ""); err != nil {
				return SyncResult{}, err
			}
			if latched {
				return s.createLocked(ctx, sessionID, o)
			}
			return s.create(ctx, sessionID, o)
		}
		s.metrics.IncIntentOperation("update", "error")
		return SyncResult{}, s.fail(ctx, sessionID, &ref, snap.Amount, err)
	}

	secret := ref.ClientSecret
	if pi.ClientSecret != "" {
		secret = pi.ClientSecret
	}
	next := &types.PaymentIntentRef{ID: ref.ID, ClientSecret: secret}
	if err := s.save(ctx, sessionID, enums.IntentStateReady, next, o.amount, ""); err != nil {
		return SyncResult{}, err
	}
	s.metrics.IncIntentOperation("update", "success")
	return SyncResult{
		State:           enums.IntentStateReady,
		PaymentIntentID: ref.ID,
		ClientSecret:    secret,
		Amount:          o.amount,
		Currency:        s.currency,
		SecretChanged:   secret != ref.ClientSecret,
	}, nil
}

// fail records the provider's message on the session and maps err to the error taxonomy.
func (s *service) fail(ctx context.Context, sessionID string, ref *types.PaymentIntentRef, amount decimal.Decimal, err error) error {
	msg := stripeclient.ErrorMessage(err)
	if saveErr := s.save(ctx, sessionID, enums.IntentStateFailed, ref, amount, msg); saveErr != nil {
		s.warn(ctx, "payments.intent.save_failed", saveErr)
	}
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) && stripeErr.HTTPStatusCode >= 400 && stripeErr.HTTPStatusCode < 500 {
		return pkgerrors.Wrap(pkgerrors.CodeUpstreamRejected, err, msg)
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "payment provider unavailable").
		WithDetails(map[string]any{"provider_message": msg})
}

func (s *service) save(ctx context.Context, sessionID string, state enums.IntentState, ref *types.PaymentIntentRef, amount decimal.Decimal, lastError string) error {
	return s.sessions.SaveIntent(ctx, sessionID, types.IntentSnapshot{
		State:     state,
		Intent:    ref,
		Amount:    amount,
		Currency:  s.currency,
		LastError: lastError,
		UpdatedAt: s.now().UTC(),
	})
}

func (s *service) Status(ctx context.Context, sessionID string) (Status, error) {
	snap, err := s.sessions.Intent(ctx, sessionID)
	if err != nil {
		return Status{}, err
	}
	if snap == nil {
		return Status{State: enums.IntentStateUninitialized, Amount: decimal.Zero}, nil
	}
	return Status{
		State:     snap.State,
		Intent:    snap.Intent,
		Amount:    snap.Amount,
		Currency:  snap.Currency,
		LastError: snap.LastError,
	}, nil
}

var completedStatuses = map[stripe.PaymentIntentStatus]bool{
	stripe.PaymentIntentStatusSucceeded:       true,
	stripe.PaymentIntentStatusProcessing:      true,
	stripe.PaymentIntentStatusRequiresCapture: true,
}

// Consume handles the storefront's payment success callback. The cached intent is
// dropped at once so the next checkout starts clean.
func (s *service) Consume(ctx context.Context, sessionID string) (Status, error) {
	snap, err := s.sessions.Intent(ctx, sessionID)
	if err != nil {
		return Status{}, err
	}
	if snap != nil && snap.State == enums.IntentStateConsumed {
		return Status{State: enums.IntentStateConsumed, Amount: snap.Amount, Currency: snap.Currency}, nil
	}
	if !live(snap) {
		return Status{}, pkgerrors.New(pkgerrors.CodeStateConflict, "no payment intent for this session")
	}

	if s.intents != nil {
		pi, err := s.intents.Retrieve(ctx, snap.Intent.ID, &stripe.PaymentIntentRetrieveParams{})
		if err != nil {
			return Status{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "payment provider unavailable")
		}
		if !completedStatuses[pi.Status] {
			s.metrics.IncIntentOperation("consume", "conflict")
			return Status{}, pkgerrors.New(pkgerrors.CodeStateConflict, "payment has not completed").
				WithDetails(map[string]any{"status": string(pi.Status)})
		}
	}

	if err := s.sessions.Complete(ctx, sessionID); err != nil {
		return Status{}, err
	}
	s.metrics.IncIntentOperation("consume", "success")
	return Status{State: enums.IntentStateConsumed, Amount: snap.Amount, Currency: snap.Currency}, nil
}

func (s *service) warn(ctx context.Context, msg string, err error) {
	if s.logg == nil {
		return
	}
	s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), msg)
}
