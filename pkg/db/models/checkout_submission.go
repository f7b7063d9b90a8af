package models

import (
	"time"

	"github.com/angelmondragon/storefront-checkout/pkg/enums"
	"github.com/angelmondragon/storefront-checkout/pkg/types"
)

// CheckoutSubmission is the durable record of an order awaiting or past payment.
type CheckoutSubmission struct {
	PaymentIntentID string                 `gorm:"column:payment_intent_id;primaryKey"`
	SessionID       string                 `gorm:"column:session_id;not null;index"`
	CustomerID      *string                `gorm:"column:customer_id"`
	Variant         enums.FlowVariant      `gorm:"column:variant;not null"`
	Status          enums.SubmissionStatus `gorm:"column:status;not null;default:'pending'"`
	Payload         types.OrderSubmission  `gorm:"column:payload;type:jsonb;not null"`
	AmountMinor     int64                  `gorm:"column:amount_minor;not null"`
	Currency        string                 `gorm:"column:currency;not null"`
	CommerceOrderID *string                `gorm:"column:commerce_order_id"`
	LastError       *string                `gorm:"column:last_error"`
	SubmittedAt     *time.Time             `gorm:"column:submitted_at"`
	CreatedAt       time.Time              `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time              `gorm:"column:updated_at;autoUpdateTime"`
}

func (CheckoutSubmission) TableName() string { return "checkout_submissions" }
