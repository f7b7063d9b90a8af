package commerce

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"

	"github.com/shopspring/decimal"

	pkgerrors "github.com/angelmondragon/storefront-checkout/pkg/errors"
	"github.com/angelmondragon/storefront-checkout/pkg/types"
)

// ID accepts both numeric and string identifiers from the backend.
type ID string

func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*id = ID(n.String())
	return nil
}

func (id ID) String() string { return string(id) }

// CouponResult is the backend's verdict on a coupon code.
type CouponResult struct {
	DiscountAmount decimal.Decimal `json:"discount_amount"`
	DiscountType   string          `json:"discount_type"`
}

// Product is the catalog projection used to price cart lines.
type Product struct {
	ID     ID              `json:"id"`
	Name   string          `json:"name"`
	Price  decimal.Decimal `json:"price"`
	Images []struct {
		Src string `json:"src"`
	} `json:"images"`
}

// Image returns the first product image, if any.
func (p Product) Image() string {
	if len(p.Images) == 0 {
		return ""
	}
	return p.Images[0].Src
}

// PostalAddress is the backend's address shape, shared by profiles and orders.
type PostalAddress struct {
	ID        ID     `json:"id,omitempty"`
	Name      string `json:"name,omitempty"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Address1  string `json:"address_1"`
	City      string `json:"city"`
	Postcode  string `json:"postcode"`
	Country   string `json:"country"`
	IsDefault bool   `json:"is_default,omitempty"`
}

// Empty reports whether the address carries no street or postcode.
func (a PostalAddress) Empty() bool {
	return strings.TrimSpace(a.Address1) == "" && strings.TrimSpace(a.Postcode) == ""
}

// FullName joins first and last name.
func (a PostalAddress) FullName() string {
	return strings.TrimSpace(strings.TrimSpace(a.FirstName) + " " + strings.TrimSpace(a.LastName))
}

// Customer is the profile of a logged-in shopper.
type Customer struct {
	ID        ID              `json:"id"`
	Email     string          `json:"email"`
	Addresses []PostalAddress `json:"addresses"`
	// Shipping is the single address older profiles carry instead of Addresses.
	Shipping PostalAddress `json:"shipping"`
}

// Order is the subset of an order the checkout reads back.
type Order struct {
	ID       ID            `json:"id"`
	Status   string        `json:"status"`
	Shipping PostalAddress `json:"shipping"`
}

// CreateOrderRequest is the order creation payload.
type CreateOrderRequest struct {
	PaymentIntentID string                `json:"payment_intent_id"`
	CustomerID      string                `json:"customer_id,omitempty"`
	Submission      types.OrderSubmission `json:"order"`
}

// ValidateCoupon asks the backend whether code applies to an order of subtotal.
func (c *Client) ValidateCoupon(ctx context.Context, code string, subtotal decimal.Decimal) (CouponResult, error) {
	body := map[string]any{
		"coupon_code": code,
		"subtotal":    subtotal.StringFixed(2),
	}
	var out CouponResult
	if err := c.do(ctx, "coupon_validate", http.MethodPost, "coupons/validate", nil, body, nil, &out); err != nil {
		return CouponResult{}, err
	}
	return out, nil
}

// LookupPostcode resolves a postcode and house number to street and city.
func (c *Client) LookupPostcode(ctx context.Context, postcode, houseNumber, addition string) (types.ResolvedAddress, error) {
	q := url.Values{}
	q.Set("postcode", postcode)
	q.Set("houseNumber", houseNumber)
	if addition != "" {
		q.Set("addition", addition)
	}
	var out types.ResolvedAddress
	if err := c.do(ctx, "postcode_lookup", http.MethodGet, "postcode-lookup", q, nil, nil, &out); err != nil {
		return types.ResolvedAddress{}, err
	}
	return out, nil
}

// CustomerExists reports whether an account is registered for email.
func (c *Client) CustomerExists(ctx context.Context, email string) (bool, error) {
	q := url.Values{}
	q.Set("email", email)
	var out struct {
		Exists bool `json:"exists"`
	}
	if err := c.do(ctx, "customer_exists", http.MethodGet, "customers/exists", q, nil, nil, &out); err != nil {
		return false, err
	}
	return out.Exists, nil
}

// ProductsByIDs fetches catalog entries for the given ids.
func (c *Client) ProductsByIDs(ctx context.Context, ids []string) ([]Product, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	q := url.Values{}
	q.Set("include", strings.Join(ids, ","))
	var out []Product
	if err := c.do(ctx, "products", http.MethodGet, "products", q, nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CustomerProfile loads the profile of customerID.
func (c *Client) CustomerProfile(ctx context.Context, customerID string) (*Customer, error) {
	if strings.TrimSpace(customerID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "customer id is required")
	}
	var out Customer
	if err := c.do(ctx, "customer_profile", http.MethodGet, "customers/"+url.PathEscape(customerID), nil, nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CustomerOrders lists the order history of customerID.
func (c *Client) CustomerOrders(ctx context.Context, customerID string) ([]Order, error) {
	if strings.TrimSpace(customerID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "customer id is required")
	}
	q := url.Values{}
	q.Set("customer", customerID)
	var out []Order
	if err := c.do(ctx, "customer_orders", http.MethodGet, "orders", q, nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// DeleteCustomerAddress removes a saved address from the customer's profile.
func (c *Client) DeleteCustomerAddress(ctx context.Context, customerID, addressID string) error {
	path := "customers/" + url.PathEscape(customerID) + "/addresses/" + url.PathEscape(addressID)
	return c.do(ctx, "address_delete", http.MethodDelete, path, nil, nil, nil, nil)
}

// CreateOrder submits an order. The payment intent id doubles as the idempotency key.
func (c *Client) CreateOrder(ctx context.Context, req CreateOrderRequest) (*Order, error) {
	if strings.TrimSpace(req.PaymentIntentID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment intent id is required")
	}
	headers := map[string]string{"Idempotency-Key": "order-" + req.PaymentIntentID}
	var out Order
	if err := c.do(ctx, "order_create", http.MethodPost, "orders", nil, req, headers, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
