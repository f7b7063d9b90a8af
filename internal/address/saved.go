package address

import (
	"context"
	"strconv"
	"strings"
	"unicode/utf16"

	"github.com/angelmondragon/storefront-checkout/internal/session"
	"github.com/angelmondragon/storefront-checkout/pkg/commerce"
	pkgerrors "github.com/angelmondragon/storefront-checkout/pkg/errors"
	"github.com/angelmondragon/storefront-checkout/pkg/types"
)

// DeriveID hashes street+postcode with the 31-multiplier rolling hash over UTF-16
// code units, wrapped to int32, and renders the absolute value as lowercase hex.
// Other systems derive the same ids, so the algorithm must not change.
func DeriveID(street, postcode string) string {
	var h int32
	for _, unit := range utf16.Encode([]rune(street + postcode)) {
		h = 31*h + int32(unit)
	}
	v := int64(h)
	if v < 0 {
		v = -v
	}
	return strconv.FormatInt(v, 16)
}

func fromPostal(addr commerce.PostalAddress) types.SavedAddress {
	street := strings.TrimSpace(addr.Address1)
	postcode := strings.TrimSpace(addr.Postcode)
	name := strings.TrimSpace(addr.Name)
	fullName := addr.FullName()
	if name == "" {
		name = fullName
	}
	return types.SavedAddress{
		ID:         DeriveID(street, postcode),
		Name:       name,
		FullName:   fullName,
		Street:     street,
		City:       strings.TrimSpace(addr.City),
		PostalCode: postcode,
		Country:    strings.TrimSpace(addr.Country),
		IsDefault:  addr.IsDefault,
	}
}

// List merges profile addresses, the legacy profile address and order history
// shipping addresses. The first address seen for a (street, postcode) pair wins
// and deleted addresses are left out, whichever copy of them wins the merge.
func (s *service) List(ctx context.Context, customerID, sessionID string) ([]types.SavedAddress, error) {
	customerID = strings.TrimSpace(customerID)
	if customerID == "" {
		return []types.SavedAddress{}, nil
	}

	candidates, err := s.candidates(ctx, customerID)
	if err != nil {
		return nil, err
	}

	excluded, err := s.sessions.Exclusions(ctx, session.ExclusionOwner(customerID, sessionID))
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{}, len(candidates))
	out := make([]types.SavedAddress, 0, len(candidates))
	for _, saved := range candidates {
		key := saved.DedupeKey()
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		if _, gone := excluded[saved.ID]; gone {
			continue
		}
		if _, gone := excluded[exclusionKey(key)]; gone {
			continue
		}
		out = append(out, saved)
	}
	return out, nil
}

// candidates returns every non-empty address in merge order, duplicates included.
func (s *service) candidates(ctx context.Context, customerID string) ([]types.SavedAddress, error) {
	profile, err := s.backend.CustomerProfile(ctx, customerID)
	if err != nil {
		return nil, err
	}

	raw := make([]commerce.PostalAddress, 0, len(profile.Addresses)+1)
	raw = append(raw, profile.Addresses...)
	if !profile.Shipping.Empty() {
		raw = append(raw, profile.Shipping)
	}

	orders, err := s.backend.CustomerOrders(ctx, customerID)
	if err != nil {
		s.warn(ctx, "address.list.order_history_unavailable", err)
	}
	for _, order := range orders {
		raw = append(raw, order.Shipping)
	}

	out := make([]types.SavedAddress, 0, len(raw))
	for _, addr := range raw {
		if addr.Empty() {
			continue
		}
		out = append(out, fromPostal(addr))
	}
	return out, nil
}

// exclusionKey marks a normalized (street, postcode) pair in the exclusion set.
// Ids are hex, so the prefix cannot collide with one.
func exclusionKey(dedupeKey string) string {
	return "key:" + dedupeKey
}

// Delete hides an address from every future List. The upstream profile delete
// runs in the background and its failures are only logged.
func (s *service) Delete(ctx context.Context, customerID, sessionID, addressID string) error {
	addressID = strings.ToLower(strings.TrimSpace(addressID))
	if addressID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "address id is required")
	}
	owner := session.ExclusionOwner(customerID, sessionID)
	customerID = strings.TrimSpace(customerID)
	if customerID == "" {
		return s.sessions.AddExclusion(ctx, owner, addressID)
	}

	// Other copies of the address carry different ids, so the normalized key is
	// excluded too.
	keys := []string{addressID}
	dedupeKey := ""
	candidates, err := s.candidates(ctx, customerID)
	if err != nil {
		s.warn(ctx, "address.delete.resolve_failed", err)
	}
	for _, saved := range candidates {
		if saved.ID == addressID {
			dedupeKey = saved.DedupeKey()
			keys = append(keys, exclusionKey(dedupeKey))
			break
		}
	}
	if err := s.sessions.AddExclusion(ctx, owner, keys...); err != nil {
		return err
	}

	bg, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.deleteTimeout)
	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()
		defer cancel()
		if err := s.deleteUpstream(bg, customerID, addressID, dedupeKey); err != nil {
			s.warn(bg, "address.delete.upstream_failed", err)
		}
	}()
	return nil
}

// deleteUpstream removes the first profile address matching the id or, when
// known, the normalized key.
func (s *service) deleteUpstream(ctx context.Context, customerID, addressID, dedupeKey string) error {
	profile, err := s.backend.CustomerProfile(ctx, customerID)
	if err != nil {
		return err
	}
	for _, addr := range profile.Addresses {
		if addr.ID == "" {
			continue
		}
		saved := fromPostal(addr)
		if saved.ID == addressID || (dedupeKey != "" && saved.DedupeKey() == dedupeKey) {
			return s.backend.DeleteCustomerAddress(ctx, customerID, addr.ID.String())
		}
	}
	return nil
}
