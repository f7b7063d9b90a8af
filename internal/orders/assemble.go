package orders

import (
	"strings"

	"github.com/angelmondragon/storefront-checkout/pkg/types"
)

// Assemble builds the order payload from the cart, the form and freshly computed
// totals. Both flow variants submit this same shape.
func Assemble(lines []types.CartLine, form types.CheckoutFormData, discount *types.AppliedDiscount, totals types.Totals) types.OrderSubmission {
	items := make([]types.OrderLineItem, 0, len(lines))
	for _, line := range lines {
		if line.Quantity < 1 {
			continue
		}
		items = append(items, types.OrderLineItem{
			ProductID: line.ID,
			Variant:   line.Variant,
			Title:     line.Title,
			Quantity:  line.Quantity,
			Price:     line.Price,
		})
	}

	customer := types.OrderCustomer{
		Email:     strings.TrimSpace(form.Email),
		Phone:     strings.TrimSpace(form.Phone),
		FirstName: strings.TrimSpace(form.FirstName),
		LastName:  strings.TrimSpace(form.LastName),
		Billing:   form.Billing,
		Shipping:  form.ShippingAddress(),
	}
	if !form.UsesNewAddress() {
		customer.AddressID = form.SelectedAddressID
	}

	var applied *types.AppliedDiscount
	if discount != nil {
		copied := *discount
		applied = &copied
	}

	return types.OrderSubmission{
		LineItems:       items,
		Customer:        customer,
		AppliedDiscount: applied,
		Totals:          totals,
		FinalTotal:      totals.FinalTotal,
		PaymentMethod:   form.PaymentMethod,
	}
}
