// Package address resolves postcodes and maintains a customer's saved addresses.
package address

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/angelmondragon/storefront-checkout/internal/session"
	"github.com/angelmondragon/storefront-checkout/pkg/commerce"
	"github.com/angelmondragon/storefront-checkout/pkg/config"
	"github.com/angelmondragon/storefront-checkout/pkg/debounce"
	"github.com/angelmondragon/storefront-checkout/pkg/logger"
	"github.com/angelmondragon/storefront-checkout/pkg/metrics"
	"github.com/angelmondragon/storefront-checkout/pkg/redis"
	"github.com/angelmondragon/storefront-checkout/pkg/types"
)

// Backend is the slice of the commerce client the address flows need.
type Backend interface {
	LookupPostcode(ctx context.Context, postcode, houseNumber, addition string) (types.ResolvedAddress, error)
	CustomerProfile(ctx context.Context, customerID string) (*commerce.Customer, error)
	CustomerOrders(ctx context.Context, customerID string) ([]commerce.Order, error)
	DeleteCustomerAddress(ctx context.Context, customerID, addressID string) error
}

type Service interface {
	Lookup(ctx context.Context, req LookupRequest) (types.ResolvedAddress, error)
	Autofill(ctx context.Context, sessionID string, req AutofillRequest) (AutofillResult, error)
	List(ctx context.Context, customerID, sessionID string) ([]types.SavedAddress, error)
	Delete(ctx context.Context, customerID, sessionID, addressID string) error
}

type ServiceParams struct {
	Backend       Backend
	Sessions      *session.Store
	Cache         redis.Store
	Config        config.AddressConfig
	DeleteTimeout time.Duration
	Metrics       *metrics.CheckoutMetrics
	Logger        *logger.Logger
}

type service struct {
	backend       Backend
	sessions      *session.Store
	cache         redis.Store
	cfg           config.AddressConfig
	deleteTimeout time.Duration
	debouncer     *debounce.Debouncer
	metrics       *metrics.CheckoutMetrics
	logg          *logger.Logger

	inflight sync.WaitGroup
}

func NewService(params ServiceParams) (Service, error) {
	svc, err := newService(params)
	if err != nil {
		return nil, err
	}
	return svc, nil
}

func newService(params ServiceParams) (*service, error) {
	if params.Backend == nil {
		return nil, fmt.Errorf("commerce backend required")
	}
	if params.Sessions == nil {
		return nil, fmt.Errorf("session store required")
	}
	if params.Cache == nil {
		return nil, fmt.Errorf("cache store required")
	}
	timeout := params.DeleteTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &service{
		backend:       params.Backend,
		sessions:      params.Sessions,
		cache:         params.Cache,
		cfg:           params.Config,
		deleteTimeout: timeout,
		debouncer:     debounce.New(params.Config.Debounce),
		metrics:       params.Metrics,
		logg:          params.Logger,
	}, nil
}

func (s *service) warn(ctx context.Context, msg string, err error) {
	if s.logg == nil {
		return
	}
	ctx = s.logg.WithField(ctx, "error", err.Error())
	s.logg.Warn(ctx, msg)
}
