package auth

import "github.com/golang-jwt/jwt/v5"

// CustomerTokenPayload captures the data available when minting a customer JWT.
type CustomerTokenPayload struct {
	CustomerID string
	Email      string
}

// CustomerClaims is the token the commerce platform issues to logged-in shoppers.
type CustomerClaims struct {
	CustomerID string `json:"customer_id"`
	Email      string `json:"email,omitempty"`
	jwt.RegisteredClaims
}
