// Package orders records what the customer is paying for and turns paid
// payment intents into commerce orders.
package orders

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/angelmondragon/storefront-checkout/internal/session"
	"github.com/angelmondragon/storefront-checkout/pkg/commerce"
	"github.com/angelmondragon/storefront-checkout/pkg/db/models"
	"github.com/angelmondragon/storefront-checkout/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-checkout/pkg/errors"
	"github.com/angelmondragon/storefront-checkout/pkg/logger"
	"github.com/angelmondragon/storefront-checkout/pkg/outbox"
	"github.com/angelmondragon/storefront-checkout/pkg/types"
	"github.com/stripe/stripe-go/v84"
	"gorm.io/gorm"
)

type orderCreator interface {
	CreateOrder(ctx context.Context, req commerce.CreateOrderRequest) (*commerce.Order, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// EventEmitter queues events in the caller's transaction.
type EventEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// PendingSubmission is what the payment step records before the customer pays.
type PendingSubmission struct {
	PaymentIntentID string
	SessionID       string
	CustomerID      string
	Variant         enums.FlowVariant
	Submission      types.OrderSubmission
	AmountMinor     int64
	Currency        string
}

// OrderCreatedEvent is published once the commerce backend accepted an order.
type OrderCreatedEvent struct {
	PaymentIntentID string            `json:"payment_intent_id"`
	CommerceOrderID string            `json:"commerce_order_id"`
	SessionID       string            `json:"session_id"`
	Variant         enums.FlowVariant `json:"variant"`
	AmountMinor     int64             `json:"amount_minor"`
	Currency        string            `json:"currency"`
	OccurredAt      time.Time         `json:"occurred_at"`
}

type Service interface {
	RecordPending(ctx context.Context, pending PendingSubmission) error
	HandlePaymentSucceeded(ctx context.Context, intent *stripe.PaymentIntent) error
	HandlePaymentFailed(ctx context.Context, intent *stripe.PaymentIntent) error
}

type ServiceParams struct {
	Repo     Repository
	Commerce orderCreator
	Sessions *session.Store

	// DB and Outbox are optional together; without them no order event is queued.
	DB     txRunner
	Outbox EventEmitter
	Logger *logger.Logger
	Clock  func() time.Time
}

type service struct {
	repo     Repository
	commerce orderCreator
	sessions *session.Store
	db       txRunner
	outbox   EventEmitter
	logg     *logger.Logger
	now      func() time.Time
}

func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("submission repository required")
	}
	if params.Commerce == nil {
		return nil, fmt.Errorf("commerce client required")
	}
	if params.Sessions == nil {
		return nil, fmt.Errorf("session store required")
	}
	now := params.Clock
	if now == nil {
		now = time.Now
	}
	return &service{
		repo:     params.Repo,
		commerce: params.Commerce,
		sessions: params.Sessions,
		db:       params.DB,
		outbox:   params.Outbox,
		logg:     params.Logger,
		now:      now,
	}, nil
}

func (s *service) RecordPending(ctx context.Context, pending PendingSubmission) error {
	if strings.TrimSpace(pending.PaymentIntentID) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "payment intent id is required")
	}
	if strings.TrimSpace(pending.SessionID) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "session id is required")
	}
	record := &models.CheckoutSubmission{
		PaymentIntentID: pending.PaymentIntentID,
		SessionID:       pending.SessionID,
		Variant:         pending.Variant,
		Payload:         pending.Submission,
		AmountMinor:     pending.AmountMinor,
		Currency:        strings.ToLower(pending.Currency),
	}
	if id := strings.TrimSpace(pending.CustomerID); id != "" {
		record.CustomerID = &id
	}
	return s.repo.UpsertPending(ctx, record)
}

// HandlePaymentSucceeded creates the commerce order for a paid intent and closes the
// checkout session. Replays of an already submitted intent are no-ops.
func (s *service) HandlePaymentSucceeded(ctx context.Context, intent *stripe.PaymentIntent) error {
	if intent == nil || intent.ID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "payment intent is required")
	}
	submission, err := s.repo.FindByIntentID(ctx, intent.ID)
	if err != nil {
		return err
	}
	if submission == nil {
		s.info(ctx, intent.ID, "orders.payment_succeeded.unknown_intent")
		return nil
	}
	if submission.Status == enums.SubmissionStatusSubmitted {
		return nil
	}

	req := commerce.CreateOrderRequest{
		PaymentIntentID: intent.ID,
		Submission:      submission.Payload,
	}
	if submission.CustomerID != nil {
		req.CustomerID = *submission.CustomerID
	}
	order, err := s.commerce.CreateOrder(ctx, req)
	if err != nil {
		return err
	}

	if err := s.markSubmitted(ctx, submission, order.ID.String()); err != nil {
		return err
	}

	if err := s.sessions.Complete(ctx, submission.SessionID); err != nil {
		return err
	}
	return nil
}

// HandlePaymentFailed keeps the submission for a retry and surfaces the provider's
// reason on the session's cached intent.
func (s *service) HandlePaymentFailed(ctx context.Context, intent *stripe.PaymentIntent) error {
	if intent == nil || intent.ID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "payment intent is required")
	}
	reason := "payment failed"
	if intent.LastPaymentError != nil && strings.TrimSpace(intent.LastPaymentError.Msg) != "" {
		reason = intent.LastPaymentError.Msg
	}

	submission, err := s.repo.FindByIntentID(ctx, intent.ID)
	if err != nil {
		return err
	}
	if submission == nil {
		s.info(ctx, intent.ID, "orders.payment_failed.unknown_intent")
		return nil
	}
	if err := s.repo.MarkFailed(ctx, intent.ID, reason); err != nil {
		return err
	}

	snap, err := s.sessions.Intent(ctx, submission.SessionID)
	if err != nil {
		return err
	}
	if snap != nil && snap.Intent != nil && snap.Intent.ID == intent.ID {
		snap.State = enums.IntentStateFailed
		snap.LastError = reason
		snap.UpdatedAt = s.now().UTC()
		return s.sessions.SaveIntent(ctx, submission.SessionID, *snap)
	}
	return nil
}

// markSubmitted records the commerce order id and queues order.created in one
// transaction.
func (s *service) markSubmitted(ctx context.Context, submission *models.CheckoutSubmission, orderID string) error {
	at := s.now()
	if s.db == nil || s.outbox == nil {
		return s.repo.MarkSubmitted(ctx, submission.PaymentIntentID, orderID, at)
	}
	return s.db.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).MarkSubmitted(ctx, submission.PaymentIntentID, orderID, at); err != nil {
			return err
		}
		event := outbox.DomainEvent{
			EventType:     enums.EventOrderCreated,
			AggregateType: enums.AggregateCheckoutSubmission,
			AggregateID:   submission.PaymentIntentID,
			OccurredAt:    at,
			Data: OrderCreatedEvent{
				PaymentIntentID: submission.PaymentIntentID,
				CommerceOrderID: orderID,
				SessionID:       submission.SessionID,
				Variant:         submission.Variant,
				AmountMinor:     submission.AmountMinor,
				Currency:        submission.Currency,
				OccurredAt:      at.UTC(),
			},
		}
		if err := s.outbox.Emit(ctx, tx, event); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "queue order event")
		}
		return nil
	})
}

func (s *service) info(ctx context.Context, intentID, msg string) {
	if s.logg == nil {
		return
	}
	s.logg.Info(s.logg.WithField(ctx, "payment_intent_id", intentID), msg)
}
