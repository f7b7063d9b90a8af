package orders

import (
	"context"
	"errors"
	"time"

	"github.com/angelmondragon/storefront-checkout/pkg/db/models"
	"github.com/angelmondragon/storefront-checkout/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-checkout/pkg/errors"
	"gorm.io/gorm"
)

// Repository persists checkout submissions keyed by payment intent id.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindByIntentID(ctx context.Context, paymentIntentID string) (*models.CheckoutSubmission, error)
	UpsertPending(ctx context.Context, submission *models.CheckoutSubmission) error
	MarkSubmitted(ctx context.Context, paymentIntentID, commerceOrderID string, at time.Time) error
	MarkFailed(ctx context.Context, paymentIntentID, reason string) error
	ExpirePendingBefore(ctx context.Context, cutoff time.Time, reason string) (int64, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a submissions repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// FindByIntentID returns nil without error when no submission exists.
func (r *repository) FindByIntentID(ctx context.Context, paymentIntentID string) (*models.CheckoutSubmission, error) {
	var submission models.CheckoutSubmission
	err := r.db.WithContext(ctx).
		Where("payment_intent_id = ?", paymentIntentID).
		First(&submission).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load checkout submission")
	}
	return &submission, nil
}

// UpsertPending creates the submission or refreshes it while still pending.
// Submitted orders are immutable; failed and expired ones return to pending on retry.
func (r *repository) UpsertPending(ctx context.Context, submission *models.CheckoutSubmission) error {
	if submission == nil || submission.PaymentIntentID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "payment intent id is required")
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing models.CheckoutSubmission
		err := tx.Where("payment_intent_id = ?", submission.PaymentIntentID).
			First(&existing).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			submission.Status = enums.SubmissionStatusPending
			if err := tx.Create(submission).Error; err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create checkout submission")
			}
			return nil
		case err != nil:
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load checkout submission")
		}

		if existing.Status == enums.SubmissionStatusSubmitted {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order was already submitted for this payment")
		}
		updates := map[string]any{
			"session_id":   submission.SessionID,
			"customer_id":  submission.CustomerID,
			"variant":      submission.Variant,
			"status":       enums.SubmissionStatusPending,
			"payload":      submission.Payload,
			"amount_minor": submission.AmountMinor,
			"currency":     submission.Currency,
			"last_error":   nil,
		}
		if err := tx.Model(&models.CheckoutSubmission{}).
			Where("payment_intent_id = ?", submission.PaymentIntentID).
			Updates(updates).Error; err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update checkout submission")
		}
		return nil
	})
}

func (r *repository) MarkSubmitted(ctx context.Context, paymentIntentID, commerceOrderID string, at time.Time) error {
	res := r.db.WithContext(ctx).
		Model(&models.CheckoutSubmission{}).
		Where("payment_intent_id = ? AND status <> ?", paymentIntentID, enums.SubmissionStatusSubmitted).
		Updates(map[string]any{
			"status":            enums.SubmissionStatusSubmitted,
			"commerce_order_id": commerceOrderID,
			"submitted_at":      at.UTC(),
			"last_error":        nil,
		})
	if res.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "mark checkout submission submitted")
	}
	if res.RowsAffected == 0 {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "checkout submission already submitted or missing")
	}
	return nil
}

func (r *repository) MarkFailed(ctx context.Context, paymentIntentID, reason string) error {
	res := r.db.WithContext(ctx).
		Model(&models.CheckoutSubmission{}).
		Where("payment_intent_id = ? AND status = ?", paymentIntentID, enums.SubmissionStatusPending).
		Updates(map[string]any{
			"status":     enums.SubmissionStatusFailed,
			"last_error": reason,
		})
	if res.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "mark checkout submission failed")
	}
	return nil
}

// ExpirePendingBefore moves pending submissions untouched since cutoff to
// expired. A late payment can still submit an expired row.
func (r *repository) ExpirePendingBefore(ctx context.Context, cutoff time.Time, reason string) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.CheckoutSubmission{}).
		Where("status = ? AND updated_at < ?", enums.SubmissionStatusPending, cutoff.UTC()).
		Updates(map[string]any{
			"status":     enums.SubmissionStatusExpired,
			"last_error": reason,
		})
	if res.Error != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "expire pending checkout submissions")
	}
	return res.RowsAffected, nil
}
