package types

// SuccessEnvelope wraps every 2xx checkout payload.
type SuccessEnvelope struct {
	Data any `json:"data"`
}

// APIError is the public face of a failed checkout call. Retryable tells the
// storefront whether repeating the same request can succeed.
type APIError struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable,omitempty"`
	Details   any    `json:"details,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}
