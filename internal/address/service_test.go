package address

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/angelmondragon/storefront-checkout/internal/session"
	"github.com/angelmondragon/storefront-checkout/pkg/commerce"
	"github.com/angelmondragon/storefront-checkout/pkg/config"
	"github.com/angelmondragon/storefront-checkout/pkg/debounce"
	"github.com/angelmondragon/storefront-checkout/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-checkout/pkg/errors"
	"github.com/angelmondragon/storefront-checkout/pkg/metrics"
	"github.com/angelmondragon/storefront-checkout/pkg/redis/redistest"
	"github.com/angelmondragon/storefront-checkout/pkg/types"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubBackend struct {
	mu          sync.Mutex
	lookups     int
	lookupAddr  types.ResolvedAddress
	lookupErr   error
	profile     *commerce.Customer
	orders      []commerce.Order
	ordersErr   error
	deleted     []string
	deleteErr   error
	lookupDelay time.Duration
}

func (b *stubBackend) LookupPostcode(ctx context.Context, _, _, _ string) (types.ResolvedAddress, error) {
	b.mu.Lock()
	b.lookups++
	delay := b.lookupDelay
	b.mu.Unlock()
	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return types.ResolvedAddress{}, ctx.Err()
		}
	}
	return b.lookupAddr, b.lookupErr
}

func (b *stubBackend) CustomerProfile(context.Context, string) (*commerce.Customer, error) {
	if b.profile == nil {
		return &commerce.Customer{}, nil
	}
	return b.profile, nil
}

func (b *stubBackend) CustomerOrders(context.Context, string) ([]commerce.Order, error) {
	return b.orders, b.ordersErr
}

func (b *stubBackend) DeleteCustomerAddress(_ context.Context, _ string, addressID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.deleted = append(b.deleted, addressID)
	return b.deleteErr
}

func (b *stubBackend) lookupCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lookups
}

func newTestService(t *testing.T, backend *stubBackend, debounceWindow time.Duration) (*service, *session.Store) {
	t.Helper()
	kv := redistest.New()
	store := session.NewStore(kv, time.Hour)
	svc, err := newService(ServiceParams{
		Backend:  backend,
		Sessions: store,
		Cache:    kv,
		Config: config.AddressConfig{
			LookupCountries: []string{"NL"},
			Debounce:        debounceWindow,
			CacheTTL:        time.Hour,
		},
		DeleteTimeout: time.Second,
	})
	require.NoError(t, err)
	return svc, store
}

func TestDeriveIDMatchesReferenceValues(t *testing.T) {
	cases := []struct {
		street, postcode, want string
	}{
		{"", "", "0"},
		{"a", "", "61"},
		{"hello", "", "5e918d2"},
		{"polygenelubricants", "", "80000000"},
		{"Teststraat 12", "1234AB", "7b65beb1"},
		{"Straße 5", "1011AB", "48d334f5"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, DeriveID(tc.street, tc.postcode), "%s %s", tc.street, tc.postcode)
		assert.Equal(t, DeriveID(tc.street, tc.postcode), DeriveID(tc.street, tc.postcode))
	}
}

func TestLookupFoundIsCached(t *testing.T) {
	backend := &stubBackend{lookupAddr: types.ResolvedAddress{Street: "Teststraat 12", City: "Amsterdam"}}
	svc, _ := newTestService(t, backend, 0)
	ctx := context.Background()

	addr, err := svc.Lookup(ctx, LookupRequest{Postcode: "1234AB", HouseNumber: "12", Country: "NL"})
	require.NoError(t, err)
	assert.Equal(t, "Teststraat 12", addr.Street)
	assert.Equal(t, "Amsterdam", addr.City)

	again, err := svc.Lookup(ctx, LookupRequest{Postcode: "1234 ab", HouseNumber: "12", Country: "nl"})
	require.NoError(t, err)
	assert.Equal(t, addr, again)
	assert.Equal(t, 1, backend.lookupCount())
}

func TestLookupInvalidFormatSkipsNetwork(t *testing.T) {
	backend := &stubBackend{}
	svc, _ := newTestService(t, backend, 0)

	for _, postcode := range []string{"0123AB", "12345", "ABCD12", ""} {
		_, err := svc.Lookup(context.Background(), LookupRequest{Postcode: postcode, HouseNumber: "1", Country: "NL"})
		require.Error(t, err)
		assert.Equal(t, enums.LookupStatusInvalidFormat, Status(err))
		assert.Equal(t, MessageInvalidFormat, pkgerrors.As(err).Message())
	}
	assert.Zero(t, backend.lookupCount())
}

func TestLookupUnsupportedCountry(t *testing.T) {
	backend := &stubBackend{}
	svc, _ := newTestService(t, backend, 0)

	_, err := svc.Lookup(context.Background(), LookupRequest{Postcode: "10115", HouseNumber: "1", Country: "DE"})
	require.ErrorIs(t, err, ErrLookupUnsupported)
	assert.Equal(t, enums.LookupStatusUnsupported, Status(err))
	assert.Zero(t, backend.lookupCount())
}

func TestLookupFailureTaxonomy(t *testing.T) {
	cases := []struct {
		name     string
		upstream error
		status   enums.LookupStatus
	}{
		{"not found", pkgerrors.New(pkgerrors.CodeNotFound, "postcode_lookup not found"), enums.LookupStatusCombinationNotFound},
		{"rejected", pkgerrors.New(pkgerrors.CodeUpstreamRejected, "Invalid house number"), enums.LookupStatusCombinationNotFound},
		{"unavailable", pkgerrors.New(pkgerrors.CodeDependency, "postcode_lookup unavailable"), enums.LookupStatusNetworkError},
		{"transport", errors.New("dial tcp: refused"), enums.LookupStatusNetworkError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc, _ := newTestService(t, &stubBackend{lookupErr: tc.upstream}, 0)
			_, err := svc.Lookup(context.Background(), LookupRequest{Postcode: "1234AB", HouseNumber: "12", Country: "NL"})
			require.Error(t, err)
			assert.Equal(t, tc.status, Status(err))
		})
	}
}

func TestAutofillFillsFormAndSkipsRepeat(t *testing.T) {
	backend := &stubBackend{lookupAddr: types.ResolvedAddress{Street: "Teststraat 12", City: "Amsterdam"}}
	svc, store := newTestService(t, backend, 0)
	ctx := context.Background()
	req := AutofillRequest{LookupRequest: LookupRequest{Postcode: "1234AB", HouseNumber: "12", Country: "NL"}}

	result, err := svc.Autofill(ctx, "s", req)
	require.NoError(t, err)
	assert.Equal(t, enums.LookupStatusFound, result.Status)

	form, err := store.Form(ctx, "s")
	require.NoError(t, err)
	assert.Equal(t, "Teststraat 12", form.Billing.Street)
	assert.Equal(t, "Amsterdam", form.Billing.City)
	assert.Equal(t, "1234AB", form.Billing.Postcode)

	result, err = svc.Autofill(ctx, "s", req)
	require.NoError(t, err)
	assert.Equal(t, enums.LookupStatusFound, result.Status)
	assert.Equal(t, 1, backend.lookupCount())
}

func TestAutofillFailureClearsStaleFields(t *testing.T) {
	backend := &stubBackend{lookupErr: pkgerrors.New(pkgerrors.CodeNotFound, "not found")}
	svc, store := newTestService(t, backend, 0)
	ctx := context.Background()
	require.NoError(t, store.SaveForm(ctx, "s", types.CheckoutFormData{
		Billing: types.FormAddress{Street: "Oldstraat 1", City: "Utrecht"},
	}))

	result, err := svc.Autofill(ctx, "s", AutofillRequest{LookupRequest: LookupRequest{Postcode: "1234AB", HouseNumber: "99", Country: "NL"}})
	require.NoError(t, err)
	assert.Equal(t, enums.LookupStatusCombinationNotFound, result.Status)
	assert.Equal(t, MessageNotFound, result.Message)
	assert.True(t, result.ManualAddress)

	form, err := store.Form(ctx, "s")
	require.NoError(t, err)
	assert.Empty(t, form.Billing.Street)
	assert.Empty(t, form.Billing.City)
	assert.True(t, form.ManualAddress)
}

func TestAutofillNetworkErrorIsRetryable(t *testing.T) {
	backend := &stubBackend{lookupErr: errors.New("timeout")}
	svc, store := newTestService(t, backend, 0)
	ctx := context.Background()

	result, err := svc.Autofill(ctx, "s", AutofillRequest{
		LookupRequest: LookupRequest{Postcode: "1234AB", HouseNumber: "12", Country: "NL"},
		Target:        TargetShipping,
	})
	require.NoError(t, err)
	assert.Equal(t, enums.LookupStatusNetworkError, result.Status)
	assert.True(t, result.Retryable)
	assert.False(t, result.ManualAddress)

	form, err := store.Form(ctx, "s")
	require.NoError(t, err)
	assert.Equal(t, "1234AB", form.Shipping.Postcode)
	assert.False(t, form.ManualAddress)
}

func TestAutofillSkippedInManualMode(t *testing.T) {
	backend := &stubBackend{}
	svc, store := newTestService(t, backend, 0)
	ctx := context.Background()
	require.NoError(t, store.SaveForm(ctx, "s", types.CheckoutFormData{ManualAddress: true}))

	result, err := svc.Autofill(ctx, "s", AutofillRequest{LookupRequest: LookupRequest{Postcode: "1234AB", HouseNumber: "12", Country: "NL"}})
	require.NoError(t, err)
	assert.Equal(t, enums.LookupStatusIdle, result.Status)
	assert.Zero(t, backend.lookupCount())
}

func TestAutofillCancelAndRestart(t *testing.T) {
	backend := &stubBackend{lookupAddr: types.ResolvedAddress{Street: "Teststraat 12", City: "Amsterdam"}}
	svc, _ := newTestService(t, backend, 50*time.Millisecond)
	ctx := context.Background()

	firstErr := make(chan error, 1)
	go func() {
		_, err := svc.Autofill(ctx, "s", AutofillRequest{LookupRequest: LookupRequest{Postcode: "1234AB", HouseNumber: "1", Country: "NL"}})
		firstErr <- err
	}()
	require.Eventually(t, func() bool { return svc.debouncer.Pending() == 1 }, time.Second, time.Millisecond)

	result, err := svc.Autofill(ctx, "s", AutofillRequest{LookupRequest: LookupRequest{Postcode: "1234AB", HouseNumber: "12", Country: "NL"}})
	require.NoError(t, err)
	assert.Equal(t, enums.LookupStatusFound, result.Status)

	err = <-firstErr
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))
	assert.Equal(t, 1, backend.lookupCount())
}

func lookupsByStatus(t *testing.T, reg *prometheus.Registry) map[string]float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	out := map[string]float64{}
	for _, mf := range families {
		if mf.GetName() != "checkout_address_lookups_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			for _, label := range m.GetLabel() {
				if label.GetName() == "status" {
					out[label.GetValue()] = m.GetCounter().GetValue()
				}
			}
		}
	}
	return out
}

func TestLookupCancelledByNewerLookupIsNotANetworkError(t *testing.T) {
	backend := &stubBackend{lookupDelay: time.Minute}
	svc, _ := newTestService(t, backend, 0)
	reg := prometheus.NewRegistry()
	svc.metrics = metrics.NewCheckoutMetrics(reg)

	ctx, cancel := context.WithCancelCause(context.Background())
	cancel(debounce.ErrSuperseded)
	_, err := svc.Lookup(ctx, LookupRequest{Postcode: "1234AB", HouseNumber: "1", Country: "NL"})
	require.Error(t, err)

	backend.lookupDelay = 0
	backend.lookupErr = errors.New("connection refused")
	_, err = svc.Lookup(context.Background(), LookupRequest{Postcode: "1234AB", HouseNumber: "2", Country: "NL"})
	require.Error(t, err)

	counts := lookupsByStatus(t, reg)
	assert.Equal(t, float64(1), counts["superseded"])
	assert.Equal(t, float64(1), counts[enums.LookupStatusNetworkError.String()])
}

func TestListMergesDedupesAndExcludes(t *testing.T) {
	backend := &stubBackend{
		profile: &commerce.Customer{
			ID: "7",
			Addresses: []commerce.PostalAddress{
				{ID: "11", Name: "Home", FirstName: "Ada", LastName: "Lovelace", Address1: "Kerkstraat 1", Postcode: "1012AB", City: "Amsterdam", Country: "NL", IsDefault: true},
			},
			Shipping: commerce.PostalAddress{FirstName: "Ada", Address1: "Damrak 5", Postcode: "1012 LG", City: "Amsterdam", Country: "NL"},
		},
		orders: []commerce.Order{
			{ID: "100", Shipping: commerce.PostalAddress{Address1: "kerkstraat  1", Postcode: "1012 ab", City: "Amsterdam"}},
			{ID: "101", Shipping: commerce.PostalAddress{Address1: "Singel 9", Postcode: "1015AA", City: "Amsterdam"}},
			{ID: "102"},
		},
	}
	svc, _ := newTestService(t, backend, 0)
	ctx := context.Background()

	list, err := svc.List(ctx, "7", "s")
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, "Kerkstraat 1", list[0].Street)
	assert.Equal(t, "Home", list[0].Name)
	assert.True(t, list[0].IsDefault)
	assert.Equal(t, "Damrak 5", list[1].Street)
	assert.Equal(t, "Singel 9", list[2].Street)

	require.NoError(t, svc.Delete(ctx, "7", "s", list[2].ID))
	svc.inflight.Wait()

	list, err = svc.List(ctx, "7", "s")
	require.NoError(t, err)
	require.Len(t, list, 2)
	for _, addr := range list {
		assert.NotEqual(t, "Singel 9", addr.Street)
	}
	assert.Empty(t, backend.deleted)
}

func TestDeletedAddressStaysHiddenWhenOtherCopyRemains(t *testing.T) {
	backend := &stubBackend{
		profile: &commerce.Customer{Addresses: []commerce.PostalAddress{
			{ID: "11", Address1: "Kerkstraat 1", Postcode: "1012AB", City: "Amsterdam"},
		}},
		orders: []commerce.Order{
			{ID: "100", Shipping: commerce.PostalAddress{Address1: "kerkstraat  1", Postcode: "1012 ab", City: "Amsterdam"}},
		},
	}
	svc, _ := newTestService(t, backend, 0)
	ctx := context.Background()

	list, err := svc.List(ctx, "7", "s")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.NotEqual(t, DeriveID("kerkstraat  1", "1012 ab"), list[0].ID)

	require.NoError(t, svc.Delete(ctx, "7", "s", list[0].ID))
	svc.inflight.Wait()
	assert.Equal(t, []string{"11"}, backend.deleted)

	// upstream delete landed; only the order history copy is left
	backend.profile = &commerce.Customer{}

	list, err = svc.List(ctx, "7", "s")
	require.NoError(t, err)
	assert.Empty(t, list)

	// deleting by the order history copy's id hides the profile copy too
	backend.profile = &commerce.Customer{Addresses: []commerce.PostalAddress{
		{ID: "12", Address1: "Singel 9", Postcode: "1015AA"},
	}}
	backend.orders = []commerce.Order{
		{ID: "101", Shipping: commerce.PostalAddress{Address1: "SINGEL 9", Postcode: "1015 aa"}},
	}
	require.NoError(t, svc.Delete(ctx, "7", "s", DeriveID("SINGEL 9", "1015 aa")))
	svc.inflight.Wait()
	assert.Equal(t, []string{"11", "12"}, backend.deleted)

	list, err = svc.List(ctx, "7", "s")
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestDeleteProfileAddressCallsUpstream(t *testing.T) {
	backend := &stubBackend{
		profile: &commerce.Customer{Addresses: []commerce.PostalAddress{
			{ID: "11", Address1: "Kerkstraat 1", Postcode: "1012AB"},
		}},
		deleteErr: pkgerrors.New(pkgerrors.CodeDependency, "address_delete unavailable"),
	}
	svc, _ := newTestService(t, backend, 0)
	ctx := context.Background()

	id := DeriveID("Kerkstraat 1", "1012AB")
	require.NoError(t, svc.Delete(ctx, "7", "s", id))
	svc.inflight.Wait()
	assert.Equal(t, []string{"11"}, backend.deleted)

	list, err := svc.List(ctx, "7", "s")
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestListGuestIsEmpty(t *testing.T) {
	svc, _ := newTestService(t, &stubBackend{}, 0)
	list, err := svc.List(context.Background(), "", "s")
	require.NoError(t, err)
	assert.Empty(t, list)
}
