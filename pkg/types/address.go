package types

import "strings"

// SavedAddress is a shipping address a returning customer can pick instead of typing one.
type SavedAddress struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	FullName   string `json:"fullName"`
	Street     string `json:"street"`
	City       string `json:"city"`
	PostalCode string `json:"postalCode"`
	Country    string `json:"country"`
	IsDefault  bool   `json:"isDefault,omitempty"`
}

// DedupeKey normalizes the (street, postcode) pair used to collapse duplicates.
func (a SavedAddress) DedupeKey() string {
	street := strings.ToLower(strings.Join(strings.Fields(a.Street), " "))
	postcode := strings.ToLower(strings.ReplaceAll(a.PostalCode, " ", ""))
	return street + "|" + postcode
}

// ResolvedAddress is the street and city found for a postcode and house number.
type ResolvedAddress struct {
	Street string `json:"street"`
	City   string `json:"city"`
}
