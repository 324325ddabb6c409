// Package balance is a typed HTTP client for the remote balance service.
package balance

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

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// DefaultBaseURL is the public balance service.
const DefaultBaseURL = "https://balance-management-pi44.onrender.com/api"

const maxBodyBytes = 1 << 20

// ErrMalformedResponse marks a 2xx answer whose payload is missing or undecodable.
var ErrMalformedResponse = errors.New("balance service returned a malformed response")

// StatusError is a non-2xx answer.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("balance service status %d: %s", e.StatusCode, e.Message)
}

// Client calls the balance service. It performs no retries of its own.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
}

// NewClient instantiates the client. A nil httpClient gets an otelhttp
// instrumented transport; per-call deadlines come from the caller's context.
func NewClient(baseURL string, httpClient *http.Client) (*Client, error) {
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		return nil, errors.New("balance service base URL is required")
	}
	parsed, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse balance service URL: %w", err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("balance service URL %q must be absolute", baseURL)
	}
	if httpClient == nil {
		httpClient = &http.Client{
			Timeout:   time.Minute,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		}
	}
	return &Client{baseURL: parsed, httpClient: httpClient}, nil
}

// Products fetches the catalog.
func (c *Client) Products(ctx context.Context) ([]Product, error) {
	products, err := do[[]Product](ctx, c, http.MethodGet, "/products", nil)
	if err != nil {
		return nil, err
	}
	return *products, nil
}

// Balance fetches the user's balance.
func (c *Client) Balance(ctx context.Context) (*Balance, error) {
	return do[Balance](ctx, c, http.MethodGet, "/balance", nil)
}

// CreatePreOrder reserves funds for an order.
func (c *Client) CreatePreOrder(ctx context.Context, req PreOrderRequest) (*PreOrderData, error) {
	return do[PreOrderData](ctx, c, http.MethodPost, "/balance/preorder", req)
}

// CompletePreOrder finalises a reservation.
func (c *Client) CompletePreOrder(ctx context.Context, orderID string) (*PreOrderData, error) {
	return do[PreOrderData](ctx, c, http.MethodPost, "/balance/complete", OrderRequest{OrderID: orderID})
}

// CancelPreOrder releases a reservation.
func (c *Client) CancelPreOrder(ctx context.Context, orderID string) (*PreOrderData, error) {
	return do[PreOrderData](ctx, c, http.MethodPost, "/balance/cancel", OrderRequest{OrderID: orderID})
}

func do[T any](ctx context.Context, c *Client, method, path string, body any) (*T, error) {
	if c == nil || c.httpClient == nil {
		return nil, errors.New("balance client not configured")
	}
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode %s request: %w", path, err)
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL.String()+path, reader)
	if err != nil {
		return nil, fmt.Errorf("build %s request: %w", path, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call balance service %s: %w", path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read balance service %s response: %w", path, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{StatusCode: resp.StatusCode, Message: errorMessage(raw, resp.StatusCode)}
	}

	var env envelope[T]
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("%w: decode %s: %v", ErrMalformedResponse, path, err)
	}
	if env.Data == nil {
		return nil, fmt.Errorf("%w: %s has no data", ErrMalformedResponse, path)
	}
	return env.Data, nil
}

func errorMessage(raw []byte, status int) string {
	var body errorBody
	if len(raw) > 0 && json.Unmarshal(raw, &body) == nil {
		if msg := strings.TrimSpace(body.Message); msg != "" {
			return msg
		}
		if msg := strings.TrimSpace(body.Error); msg != "" {
			return msg
		}
	}
	return FallbackMessage(status)
}

// FallbackMessage is used when an error response carries no message.
func FallbackMessage(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "Bad request"
	case http.StatusNotFound:
		return "Page Not Found"
	case http.StatusInternalServerError:
		return "Internal server error"
	default:
		return "An error occurred"
	}
}
