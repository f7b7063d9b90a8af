package commerce

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	pkgerrors "github.com/angelmondragon/storefront-checkout/pkg/errors"
)

const (
	defaultTimeout             = 10 * time.Second
	responseBodyReadLimit int64 = 4096
)

var errBaseURLRequired = errors.New("commerce base url is required")

// Observer receives one callback per completed upstream request.
type Observer interface {
	ObserveCommerceRequest(endpoint, outcome string, elapsed time.Duration)
}

// Client talks to the storefront's commerce backend (catalog, customers, coupons, orders).
type Client struct {
	httpClient     *http.Client
	baseURL        string
	consumerKey    string
	consumerSecret string
	observer       Observer
}

// Option configures optional client behavior.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithCredentials sets the consumer key/secret sent as basic auth.
func WithCredentials(key, secret string) Option {
	return func(c *Client) {
		c.consumerKey = strings.TrimSpace(key)
		c.consumerSecret = strings.TrimSpace(secret)
	}
}

// WithTimeout overrides the per-request timeout of the default HTTP client.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.httpClient.Timeout = timeout
		}
	}
}

// WithObserver reports request latency and outcome.
func WithObserver(observer Observer) Option {
	return func(c *Client) {
		c.observer = observer
	}
}

// NewClient builds the commerce client for the given base URL.
func NewClient(baseURL string, opts ...Option) (*Client, error) {
	trimmed := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if trimmed == "" {
		return nil, errBaseURLRequired
	}
	if _, err := url.Parse(trimmed); err != nil {
		return nil, fmt.Errorf("parse commerce base url: %w", err)
	}

	client := &Client{
		baseURL:    trimmed,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}
	return client, nil
}

// do executes a request and decodes a 2xx JSON response into out (when non-nil).
func (c *Client) do(ctx context.Context, endpoint, method, path string, query url.Values, body any, headers map[string]string, out any) error {
	if c == nil {
		return pkgerrors.New(pkgerrors.CodeDependency, "commerce client not configured")
	}

	target := c.baseURL + "/" + strings.TrimLeft(path, "/")
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "marshal "+endpoint+" request")
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build "+endpoint+" request")
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.consumerKey != "" {
		req.SetBasicAuth(c.consumerKey, c.consumerSecret)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	started := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.observe(endpoint, "transport_error", started)
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, endpoint+" request failed")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.observe(endpoint, fmt.Sprintf("status_%dxx", resp.StatusCode/100), started)
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, responseBodyReadLimit))
		return statusError(endpoint, resp.StatusCode, raw)
	}
	c.observe(endpoint, "ok", started)

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode "+endpoint+" response")
	}
	return nil
}

func (c *Client) observe(endpoint, outcome string, started time.Time) {
	if c.observer != nil {
		c.observer.ObserveCommerceRequest(endpoint, outcome, time.Since(started))
	}
}

// statusError maps an upstream status to the error taxonomy: 404 is NOT_FOUND, other 4xx
// carry the backend message verbatim, and 5xx is a retryable dependency failure.
func statusError(endpoint string, status int, raw []byte) error {
	message := upstreamMessage(raw)
	cause := fmt.Errorf("status %d: %s", status, strings.TrimSpace(string(raw)))
	details := map[string]any{"status": status}
	if message != "" {
		details[detailBackendMessage] = message
	}

	switch {
	case status == http.StatusNotFound:
		if message == "" {
			message = endpoint + " not found"
		}
		return pkgerrors.Wrap(pkgerrors.CodeNotFound, cause, message).WithDetails(details)
	case status >= 400 && status < 500:
		if message == "" {
			message = endpoint + " rejected"
		}
		return pkgerrors.Wrap(pkgerrors.CodeUpstreamRejected, cause, message).WithDetails(details)
	default:
		return pkgerrors.Wrap(pkgerrors.CodeDependency, cause, endpoint+" unavailable")
	}
}

const detailBackendMessage = "backend_message"

// BackendMessage returns the message the backend put in its error body, if any.
func BackendMessage(err error) string {
	typed := pkgerrors.As(err)
	if typed == nil {
		return ""
	}
	details, ok := typed.Details().(map[string]any)
	if !ok {
		return ""
	}
	msg, _ := details[detailBackendMessage].(string)
	return msg
}

// upstreamMessage pulls a human readable message out of an error body.
func upstreamMessage(raw []byte) string {
	var body struct {
		Message string `json:"message"`
		Error   any    `json:"error"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		return ""
	}
	if msg := strings.TrimSpace(body.Message); msg != "" {
		return msg
	}
	switch v := body.Error.(type) {
	case string:
		return strings.TrimSpace(v)
	case map[string]any:
		if msg, ok := v["message"].(string); ok {
			return strings.TrimSpace(msg)
		}
	}
	return ""
}
