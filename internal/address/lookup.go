package address

import (
	"context"
	"encoding/json"
	"errors"
	"regexp"
	"strings"

	"github.com/angelmondragon/storefront-checkout/pkg/debounce"
	"github.com/angelmondragon/storefront-checkout/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-checkout/pkg/errors"
	"github.com/angelmondragon/storefront-checkout/pkg/redis"
	"github.com/angelmondragon/storefront-checkout/pkg/types"
)

const (
	MessageInvalidFormat = "Please check your postcode format."
	MessageNotFound      = "We could not find this address, please enter your address manually."
	MessageNetwork       = "The address service is unreachable right now, please try again."
	MessageUnsupported   = "Address lookup is not available for this country, please enter your address manually."
)

// ErrLookupUnsupported is returned for countries without postcode lookup.
var ErrLookupUnsupported = pkgerrors.New(pkgerrors.CodeValidation, MessageUnsupported)

var postcodePatterns = map[string]*regexp.Regexp{
	"NL": regexp.MustCompile(`^[1-9][0-9]{3}\s?[A-Za-z]{2}$`),
}

// ValidPostcode reports whether postcode matches the local format of country.
// Countries without a known format accept any non-empty value.
func ValidPostcode(country, postcode string) bool {
	postcode = strings.TrimSpace(postcode)
	if postcode == "" {
		return false
	}
	pattern, ok := postcodePatterns[strings.ToUpper(strings.TrimSpace(country))]
	return !ok || pattern.MatchString(postcode)
}

// LookupRequest is the postcode autofill input.
type LookupRequest struct {
	Postcode    string `json:"postcode"`
	HouseNumber string `json:"houseNumber"`
	Addition    string `json:"addition,omitempty"`
	Country     string `json:"country"`
}

func (r LookupRequest) normalized() LookupRequest {
	return LookupRequest{
		Postcode:    strings.ToUpper(strings.Join(strings.Fields(r.Postcode), "")),
		HouseNumber: strings.TrimSpace(r.HouseNumber),
		Addition:    strings.ToUpper(strings.TrimSpace(r.Addition)),
		Country:     strings.ToUpper(strings.TrimSpace(r.Country)),
	}
}

// CacheKey identifies identical lookups regardless of spacing and case.
func (r LookupRequest) CacheKey() string {
	n := r.normalized()
	return strings.Join([]string{n.Country, n.Postcode, n.HouseNumber, n.Addition}, "|")
}

// Status classifies a Lookup error for the storefront.
func Status(err error) enums.LookupStatus {
	switch {
	case err == nil:
		return enums.LookupStatusFound
	case errors.Is(err, ErrLookupUnsupported):
		return enums.LookupStatusUnsupported
	case pkgerrors.IsCode(err, pkgerrors.CodeValidation):
		return enums.LookupStatusInvalidFormat
	case pkgerrors.IsCode(err, pkgerrors.CodeNotFound):
		return enums.LookupStatusCombinationNotFound
	default:
		return enums.LookupStatusNetworkError
	}
}

func (s *service) Lookup(ctx context.Context, req LookupRequest) (types.ResolvedAddress, error) {
	addr, err := s.lookup(ctx, req)
	s.metrics.IncAddressLookup(lookupOutcome(ctx, err))
	return addr, err
}

// lookupOutcome labels a lookup for metrics. Lookups cancelled by a newer one
// for the same session are not network failures.
func lookupOutcome(ctx context.Context, err error) string {
	if err != nil && errors.Is(context.Cause(ctx), debounce.ErrSuperseded) {
		return "superseded"
	}
	return Status(err).String()
}

func (s *service) lookup(ctx context.Context, req LookupRequest) (types.ResolvedAddress, error) {
	n := req.normalized()
	if !s.cfg.LookupEnabled(n.Country) {
		return types.ResolvedAddress{}, ErrLookupUnsupported
	}
	if !ValidPostcode(n.Country, req.Postcode) || n.HouseNumber == "" {
		return types.ResolvedAddress{}, pkgerrors.New(pkgerrors.CodeValidation, MessageInvalidFormat)
	}

	cacheKey := redis.CacheKey("postcode", req.CacheKey())
	if cached, ok := s.cached(ctx, cacheKey); ok {
		return cached, nil
	}

	addr, err := s.backend.LookupPostcode(ctx, n.Postcode, n.HouseNumber, n.Addition)
	if err != nil {
		switch {
		case pkgerrors.IsCode(err, pkgerrors.CodeNotFound), pkgerrors.IsCode(err, pkgerrors.CodeUpstreamRejected):
			return types.ResolvedAddress{}, pkgerrors.Wrap(pkgerrors.CodeNotFound, err, MessageNotFound)
		default:
			return types.ResolvedAddress{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, MessageNetwork)
		}
	}
	if strings.TrimSpace(addr.Street) == "" && strings.TrimSpace(addr.City) == "" {
		return types.ResolvedAddress{}, pkgerrors.New(pkgerrors.CodeNotFound, MessageNotFound)
	}

	if payload, err := json.Marshal(addr); err == nil {
		if err := s.cache.Set(ctx, cacheKey, string(payload), s.cfg.CacheTTL); err != nil {
			s.warn(ctx, "address.lookup.cache_write_failed", err)
		}
	}
	return addr, nil
}

func (s *service) cached(ctx context.Context, key string) (types.ResolvedAddress, bool) {
	raw, err := s.cache.Get(ctx, key)
	if err != nil {
		if !redis.IsNil(err) {
			s.warn(ctx, "address.lookup.cache_read_failed", err)
		}
		return types.ResolvedAddress{}, false
	}
	var addr types.ResolvedAddress
	if err := json.Unmarshal([]byte(raw), &addr); err != nil {
		return types.ResolvedAddress{}, false
	}
	return addr, true
}
