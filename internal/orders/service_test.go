package orders

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/angelmondragon/storefront-checkout/internal/session"
	"github.com/angelmondragon/storefront-checkout/pkg/commerce"
	"github.com/angelmondragon/storefront-checkout/pkg/db"
	"github.com/angelmondragon/storefront-checkout/pkg/db/models"
	"github.com/angelmondragon/storefront-checkout/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-checkout/pkg/errors"
	"github.com/angelmondragon/storefront-checkout/pkg/outbox"
	"github.com/angelmondragon/storefront-checkout/pkg/redis/redistest"
	"github.com/angelmondragon/storefront-checkout/pkg/types"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v84"
	"gorm.io/gorm"
)

type stubCommerce struct {
	requests []commerce.CreateOrderRequest
	err      error
}

func (s *stubCommerce) CreateOrder(_ context.Context, req commerce.CreateOrderRequest) (*commerce.Order, error) {
	s.requests = append(s.requests, req)
	if s.err != nil {
		return nil, s.err
	}
	return &commerce.Order{ID: "1001", Status: "processing"}, nil
}

// failingEmitter wraps the real outbox so a test can force the emit to fail.
type failingEmitter struct {
	next EventEmitter
	err  error
}

func (e *failingEmitter) Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error {
	if e.err != nil {
		return e.err
	}
	return e.next.Emit(ctx, tx, event)
}

type fixture struct {
	svc      Service
	repo     Repository
	db       *gorm.DB
	store    *session.Store
	commerce *stubCommerce
	emitter  *failingEmitter
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	conn := setupOrdersTestDB(t)
	repo := NewRepository(conn)
	store := session.NewStore(redistest.New(), time.Hour)
	creator := &stubCommerce{}
	emitter := &failingEmitter{next: outbox.NewService(outbox.NewRepository(conn), nil)}
	svc, err := NewService(ServiceParams{
		Repo:     repo,
		Commerce: creator,
		Sessions: store,
		DB:       db.NewFromConn(conn),
		Outbox:   emitter,
		Clock:    func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) },
	})
	require.NoError(t, err)
	return fixture{svc: svc, repo: repo, db: conn, store: store, commerce: creator, emitter: emitter}
}

func (f fixture) outboxEvents(t *testing.T) []models.OutboxEvent {
	t.Helper()
	var rows []models.OutboxEvent
	require.NoError(t, f.db.Order("created_at ASC").Find(&rows).Error)
	return rows
}

func (f fixture) seed(t *testing.T, intentID string) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, f.svc.RecordPending(ctx, PendingSubmission{
		PaymentIntentID: intentID,
		SessionID:       "session-1",
		CustomerID:      "42",
		Variant:         enums.FlowVariantB,
		Submission:      types.OrderSubmission{FinalTotal: decimal.RequireFromString("39.95")},
		AmountMinor:     3995,
		Currency:        "EUR",
	}))
	require.NoError(t, f.store.SaveCart(ctx, "session-1", []types.CartLine{{ID: "p1", Quantity: 1}}))
	require.NoError(t, f.store.SaveVariant(ctx, "session-1", enums.FlowVariantB))
	require.NoError(t, f.store.SaveIntent(ctx, "session-1", types.IntentSnapshot{
		State:  enums.IntentStateReady,
		Intent: &types.PaymentIntentRef{ID: intentID, ClientSecret: intentID + "_secret"},
	}))
}

func TestHandlePaymentSucceededCreatesOrderAndClearsSession(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seed(t, "pi_ok")

	require.NoError(t, f.svc.HandlePaymentSucceeded(ctx, &stripe.PaymentIntent{ID: "pi_ok"}))

	require.Len(t, f.commerce.requests, 1)
	assert.Equal(t, "pi_ok", f.commerce.requests[0].PaymentIntentID)
	assert.Equal(t, "42", f.commerce.requests[0].CustomerID)

	stored, err := f.repo.FindByIntentID(ctx, "pi_ok")
	require.NoError(t, err)
	assert.Equal(t, enums.SubmissionStatusSubmitted, stored.Status)
	assert.Equal(t, "eur", stored.Currency)

	events := f.outboxEvents(t)
	require.Len(t, events, 1)
	assert.Equal(t, enums.EventOrderCreated, events[0].EventType)
	assert.Equal(t, "pi_ok", events[0].AggregateID)
	envelope, err := outbox.DecodeEnvelope(events[0].Payload)
	require.NoError(t, err)
	var event OrderCreatedEvent
	require.NoError(t, json.Unmarshal(envelope.Data, &event))
	assert.Equal(t, "1001", event.CommerceOrderID)
	assert.Equal(t, enums.FlowVariantB, event.Variant)
	assert.Equal(t, int64(3995), event.AmountMinor)

	lines, err := f.store.Cart(ctx, "session-1")
	require.NoError(t, err)
	assert.Empty(t, lines)
	snap, err := f.store.Intent(ctx, "session-1")
	require.NoError(t, err)
	assert.Equal(t, enums.IntentStateConsumed, snap.State)
	variant, err := f.store.Variant(ctx, "session-1")
	require.NoError(t, err)
	assert.Equal(t, enums.FlowVariantB, variant)
}

func TestHandlePaymentSucceededIsIdempotent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seed(t, "pi_twice")

	require.NoError(t, f.svc.HandlePaymentSucceeded(ctx, &stripe.PaymentIntent{ID: "pi_twice"}))
	require.NoError(t, f.svc.HandlePaymentSucceeded(ctx, &stripe.PaymentIntent{ID: "pi_twice"}))
	assert.Len(t, f.commerce.requests, 1)
	assert.Len(t, f.outboxEvents(t), 1)
}

func TestHandlePaymentSucceededUnknownIntentIgnored(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.svc.HandlePaymentSucceeded(context.Background(), &stripe.PaymentIntent{ID: "pi_other"}))
	assert.Empty(t, f.commerce.requests)
}

func TestHandlePaymentSucceededCommerceFailureKeepsPending(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seed(t, "pi_down")
	f.commerce.err = pkgerrors.Wrap(pkgerrors.CodeDependency, errors.New("502"), "order_create unavailable")

	err := f.svc.HandlePaymentSucceeded(ctx, &stripe.PaymentIntent{ID: "pi_down"})
	require.Error(t, err)

	stored, err := f.repo.FindByIntentID(ctx, "pi_down")
	require.NoError(t, err)
	assert.Equal(t, enums.SubmissionStatusPending, stored.Status)
	lines, err := f.store.Cart(ctx, "session-1")
	require.NoError(t, err)
	assert.Len(t, lines, 1)
}

func TestHandlePaymentSucceededOutboxFailureRollsBack(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seed(t, "pi_outbox")
	f.emitter.err = errors.New("disk full")

	err := f.svc.HandlePaymentSucceeded(ctx, &stripe.PaymentIntent{ID: "pi_outbox"})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeDependency))

	stored, err := f.repo.FindByIntentID(ctx, "pi_outbox")
	require.NoError(t, err)
	assert.Equal(t, enums.SubmissionStatusPending, stored.Status)
	assert.Empty(t, f.outboxEvents(t))

	f.emitter.err = nil
	require.NoError(t, f.svc.HandlePaymentSucceeded(ctx, &stripe.PaymentIntent{ID: "pi_outbox"}))
	assert.Len(t, f.outboxEvents(t), 1)
}

func TestHandlePaymentSucceededWithoutOutbox(t *testing.T) {
	ctx := context.Background()
	conn := setupOrdersTestDB(t)
	repo := NewRepository(conn)
	store := session.NewStore(redistest.New(), time.Hour)
	svc, err := NewService(ServiceParams{Repo: repo, Commerce: &stubCommerce{}, Sessions: store})
	require.NoError(t, err)
	f := fixture{svc: svc, repo: repo, db: conn, store: store}
	f.seed(t, "pi_plain")

	require.NoError(t, svc.HandlePaymentSucceeded(ctx, &stripe.PaymentIntent{ID: "pi_plain"}))
	stored, err := repo.FindByIntentID(ctx, "pi_plain")
	require.NoError(t, err)
	assert.Equal(t, enums.SubmissionStatusSubmitted, stored.Status)
	assert.Empty(t, f.outboxEvents(t))
}

func TestHandlePaymentFailedMarksSubmissionAndIntent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seed(t, "pi_fail")

	intent := &stripe.PaymentIntent{ID: "pi_fail", LastPaymentError: &stripe.Error{Msg: "Your card was declined."}}
	require.NoError(t, f.svc.HandlePaymentFailed(ctx, intent))

	stored, err := f.repo.FindByIntentID(ctx, "pi_fail")
	require.NoError(t, err)
	assert.Equal(t, enums.SubmissionStatusFailed, stored.Status)
	assert.Equal(t, "Your card was declined.", *stored.LastError)

	snap, err := f.store.Intent(ctx, "session-1")
	require.NoError(t, err)
	assert.Equal(t, enums.IntentStateFailed, snap.State)
	assert.Equal(t, "Your card was declined.", snap.LastError)
	assert.Equal(t, "pi_fail", snap.Intent.ID)
}

func TestRecordPendingValidates(t *testing.T) {
	f := newFixture(t)
	err := f.svc.RecordPending(context.Background(), PendingSubmission{SessionID: "s"})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
	err = f.svc.RecordPending(context.Background(), PendingSubmission{PaymentIntentID: "pi"})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}
