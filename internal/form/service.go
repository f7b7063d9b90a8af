// Package form persists the customer's in-progress checkout form.
package form

import (
	"context"
	"fmt"
	"strings"

	"github.com/angelmondragon/storefront-checkout/internal/address"
	"github.com/angelmondragon/storefront-checkout/internal/session"
	pkgerrors "github.com/angelmondragon/storefront-checkout/pkg/errors"
	"github.com/angelmondragon/storefront-checkout/pkg/logger"
	"github.com/angelmondragon/storefront-checkout/pkg/types"
)

type customerDirectory interface {
	CustomerExists(ctx context.Context, email string) (bool, error)
}

// SaveResult echoes the stored form. CustomerExists is set when a guest's email
// belongs to a registered account, so the storefront can offer a login.
type SaveResult struct {
	Form           types.CheckoutFormData `json:"form"`
	CustomerExists *bool                  `json:"customerExists,omitempty"`
}

type Service interface {
	Get(ctx context.Context, sessionID string) (types.CheckoutFormData, error)
	Save(ctx context.Context, sessionID, customerID string, data types.CheckoutFormData) (SaveResult, error)
}

type service struct {
	store     *session.Store
	customers customerDirectory
	logg      *logger.Logger
}

func NewService(store *session.Store, customers customerDirectory, logg *logger.Logger) (Service, error) {
	if store == nil {
		return nil, fmt.Errorf("session store required")
	}
	return &service{store: store, customers: customers, logg: logg}, nil
}

func (s *service) Get(ctx context.Context, sessionID string) (types.CheckoutFormData, error) {
	return s.store.Form(ctx, sessionID)
}

func (s *service) Save(ctx context.Context, sessionID, customerID string, data types.CheckoutFormData) (SaveResult, error) {
	data = normalize(data)
	if details := postcodeErrors(data); len(details) > 0 {
		return SaveResult{}, pkgerrors.New(pkgerrors.CodeValidation, "validation failed").WithDetails(details)
	}
	if err := s.store.SaveForm(ctx, sessionID, data); err != nil {
		return SaveResult{}, err
	}

	result := SaveResult{Form: data}
	if customerID != "" || data.Email == "" || s.customers == nil {
		return result, nil
	}
	exists, err := s.customers.CustomerExists(ctx, data.Email)
	if err != nil {
		if s.logg != nil {
			s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "form.customer_exists_failed")
		}
		return result, nil
	}
	result.CustomerExists = &exists
	return result, nil
}

func normalize(data types.CheckoutFormData) types.CheckoutFormData {
	data.Email = strings.ToLower(strings.TrimSpace(data.Email))
	data.Phone = strings.TrimSpace(data.Phone)
	data.FirstName = strings.TrimSpace(data.FirstName)
	data.LastName = strings.TrimSpace(data.LastName)
	data.SelectedAddressID = strings.TrimSpace(data.SelectedAddressID)
	data.Billing = normalizeAddress(data.Billing)
	data.Shipping = normalizeAddress(data.Shipping)
	return data
}

func normalizeAddress(a types.FormAddress) types.FormAddress {
	a.Street = strings.TrimSpace(a.Street)
	a.HouseNumber = strings.TrimSpace(a.HouseNumber)
	a.Addition = strings.TrimSpace(a.Addition)
	a.Postcode = strings.ToUpper(strings.TrimSpace(a.Postcode))
	a.City = strings.TrimSpace(a.City)
	a.Country = strings.ToUpper(strings.TrimSpace(a.Country))
	return a
}

func postcodeErrors(data types.CheckoutFormData) map[string]string {
	details := map[string]string{}
	check := func(field string, a types.FormAddress) {
		if a.Postcode != "" && !address.ValidPostcode(a.Country, a.Postcode) {
			details[field] = "has an invalid format"
		}
	}
	check("billing.postcode", data.Billing)
	if !data.ShippingSameAsBilling {
		check("shipping.postcode", data.Shipping)
	}
	return details
}
