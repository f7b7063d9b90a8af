package types

import "strings"

// NewAddressID marks a form whose address was typed rather than picked from saved addresses.
const NewAddressID = "new"

type FormAddress struct {
	Street      string `json:"street" validate:"omitempty,max=200"`
	HouseNumber string `json:"houseNumber" validate:"omitempty,max=20"`
	Addition    string `json:"addition,omitempty" validate:"omitempty,max=20"`
	Postcode    string `json:"postcode" validate:"omitempty,postcode"`
	City        string `json:"city" validate:"omitempty,max=120"`
	Country     string `json:"country" validate:"omitempty,len=2"`
}

// CheckoutFormData is the customer's in-progress checkout form.
type CheckoutFormData struct {
	Email                 string      `json:"email" validate:"omitempty,email"`
	Phone                 string      `json:"phone" validate:"omitempty,phone"`
	FirstName             string      `json:"firstName" validate:"omitempty,max=100"`
	LastName              string      `json:"lastName" validate:"omitempty,max=100"`
	Billing               FormAddress `json:"billing"`
	Shipping              FormAddress `json:"shipping"`
	ShippingSameAsBilling bool        `json:"shippingSameAsBilling"`
	SelectedAddressID     string      `json:"selectedAddressId,omitempty"`
	PaymentMethod         string      `json:"paymentMethod,omitempty" validate:"omitempty,max=50"`
	ManualAddress         bool        `json:"manualAddress"`
}

// UsesNewAddress reports whether the customer entered a new address.
func (f CheckoutFormData) UsesNewAddress() bool {
	return f.SelectedAddressID == "" || f.SelectedAddressID == NewAddressID
}

// ShippingAddress resolves the effective shipping address.
func (f CheckoutFormData) ShippingAddress() FormAddress {
	if f.ShippingSameAsBilling {
		return f.Billing
	}
	return f.Shipping
}

// FullName joins first and last name.
func (f CheckoutFormData) FullName() string {
	return strings.TrimSpace(strings.TrimSpace(f.FirstName) + " " + strings.TrimSpace(f.LastName))
}
