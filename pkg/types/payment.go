package types

import (
	"time"

	"github.com/angelmondragon/storefront-checkout/pkg/enums"
	"github.com/shopspring/decimal"
)

// PaymentIntentRef is the provider handle the storefront mounts its payment element with.
type PaymentIntentRef struct {
	ID           string `json:"id"`
	ClientSecret string `json:"clientSecret"`
}

// IntentSnapshot is the cached orchestrator view of a session's payment intent.
type IntentSnapshot struct {
	State     enums.IntentState `json:"state"`
	Intent    *PaymentIntentRef `json:"intent,omitempty"`
	Amount    decimal.Decimal   `json:"amount"`
	Currency  string            `json:"currency,omitempty"`
	LastError string            `json:"lastError,omitempty"`
	UpdatedAt time.Time         `json:"updatedAt"`
}
