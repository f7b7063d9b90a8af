package types

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

// OrderLineItem is a cart line as handed to order creation.
type OrderLineItem struct {
	ProductID string          `json:"product_id"`
	Variant   string          `json:"variant,omitempty"`
	Title     string          `json:"title"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
}

// OrderCustomer is the contact and address block of an order.
type OrderCustomer struct {
	Email     string      `json:"email"`
	Phone     string      `json:"phone,omitempty"`
	FirstName string      `json:"first_name"`
	LastName  string      `json:"last_name"`
	Billing   FormAddress `json:"billing"`
	Shipping  FormAddress `json:"shipping"`
	AddressID string      `json:"address_id,omitempty"`
}

// OrderSubmission is the single payload shape produced by every checkout flow.
type OrderSubmission struct {
	LineItems       []OrderLineItem  `json:"line_items"`
	Customer        OrderCustomer    `json:"customer"`
	AppliedDiscount *AppliedDiscount `json:"applied_discount,omitempty"`
	Totals          Totals           `json:"totals"`
	FinalTotal      decimal.Decimal  `json:"final_total"`
	PaymentMethod   string           `json:"payment_method,omitempty"`
}

// Value stores the submission as a JSON document column.
func (o OrderSubmission) Value() (driver.Value, error) {
	payload, err := json.Marshal(o)
	if err != nil {
		return nil, fmt.Errorf("order submission: marshal: %w", err)
	}
	return string(payload), nil
}

// Scan implements sql.Scanner for the JSON document column.
func (o *OrderSubmission) Scan(value any) error {
	switch v := value.(type) {
	case nil:
		*o = OrderSubmission{}
		return nil
	case []byte:
		return json.Unmarshal(v, o)
	case string:
		return json.Unmarshal([]byte(v), o)
	default:
		return fmt.Errorf("order submission: unsupported scan type %T", value)
	}
}
