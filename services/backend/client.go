package backend

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

	"go.uber.org/zap"
)

const maxBodyBytes = 1 << 20

// Client talks to the booking backend: pricing, availability, settings,
// payment intents and bookings.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient creates a backend client with a per-request timeout.
func NewClient(baseURL string, timeout time.Duration, logger *zap.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}
}

// GetPricing fetches the price table. A nil payload means the backend sent none.
func (c *Client) GetPricing(ctx context.Context) (*PricingPayload, error) {
	var resp pricingResponse
	if err := c.do(ctx, "get pricing", http.MethodGet, "/pricing", nil, nil, &resp); err != nil {
		return nil, err
	}
	if resp.Success != nil && !*resp.Success {
		return nil, &RejectionError{Op: "get pricing", Message: resp.errorText()}
	}
	return resp.Pricing, nil
}

// GetAvailability fetches remaining seats per time slot for a date (YYYY-MM-DD).
func (c *Client) GetAvailability(ctx context.Context, date string) (map[string]int, error) {
	var resp availabilityResponse
	path := "/availability/" + url.PathEscape(date)
	if err := c.do(ctx, "get availability", http.MethodGet, path, nil, nil, &resp); err != nil {
		return nil, err
	}
	if resp.Availability == nil {
		return map[string]int{}, nil
	}
	return resp.Availability, nil
}

// PurchasesEnabled reads the global purchasing flag. A missing field means enabled.
func (c *Client) PurchasesEnabled(ctx context.Context) (bool, error) {
	return c.getFlag(ctx, "get purchases flag", "/settings/ticket-purchases-enabled")
}

// AttractionsEnabled reads the attraction add-on flag. A missing field means enabled.
func (c *Client) AttractionsEnabled(ctx context.Context) (bool, error) {
	return c.getFlag(ctx, "get attractions flag", "/settings/attractions-enabled")
}

func (c *Client) getFlag(ctx context.Context, op, path string) (bool, error) {
	var resp flagResponse
	if err := c.do(ctx, op, http.MethodGet, path, nil, nil, &resp); err != nil {
		return true, err
	}
	if resp.Enabled == nil {
		return true, nil
	}
	return *resp.Enabled, nil
}

// CreatePaymentIntent asks the backend to open a provider authorization.
func (c *Client) CreatePaymentIntent(ctx context.Context, req PaymentIntentRequest, idempotencyKey string) (*PaymentIntent, error) {
	const op = "create payment intent"
	var headers map[string]string
	if idempotencyKey != "" {
		headers = map[string]string{"Idempotency-Key": idempotencyKey}
	}
	var resp paymentIntentResponse
	if err := c.do(ctx, op, http.MethodPost, "/create-payment-intent", req, headers, &resp); err != nil {
		return nil, err
	}
	if resp.Success == nil || !*resp.Success {
		return nil, &RejectionError{Op: op, Message: resp.errorText()}
	}
	if resp.Data == nil || resp.Data.ClientSecret == "" || resp.Data.PaymentIntentID == "" {
		return nil, &TransportError{Op: op, Err: errors.New("response is missing the client secret or intent id")}
	}
	return resp.Data, nil
}

// CreateBooking posts an order and returns the tagged envelope. Only
// transport failures and 4xx rejections come back as errors; success and
// failure flags inside a well-formed answer are left for the caller.
func (c *Client) CreateBooking(ctx context.Context, body any, idempotencyKey string) (*BookingEnvelope, error) {
	var headers map[string]string
	if idempotencyKey != "" {
		headers = map[string]string{"Idempotency-Key": idempotencyKey}
	}
	var resp bookingResponse
	if err := c.do(ctx, "create booking", http.MethodPost, "/bookings", body, headers, &resp); err != nil {
		return nil, err
	}
	env := resp.envelope()
	return &env, nil
}

// do executes one request. Status handling:
//   - 2xx with JSON body: decoded into out
//   - 404: backend initializing (transport)
//   - 429: quota exceeded (transport)
//   - other 4xx with a JSON failure envelope: RejectionError
//   - anything else, or a non-JSON body: TransportError
func (c *Client) do(ctx context.Context, op, method, path string, body any, headers map[string]string, out any) error {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s: failed to encode request: %w", op, err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("%s: failed to create request: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("backend request failed", zap.String("op", op), zap.Error(err))
		return &TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return &TransportError{Op: op, StatusCode: resp.StatusCode, Err: fmt.Errorf("failed to read body: %w", err)}
	}
	c.logger.Debug("backend request",
		zap.String("op", op),
		zap.Int("status", resp.StatusCode),
		zap.Duration("took", time.Since(start)),
	)

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return &TransportError{Op: op, StatusCode: resp.StatusCode, Initializing: true, Err: errors.New("endpoint not found")}
	case resp.StatusCode == http.StatusTooManyRequests:
		return &TransportError{Op: op, StatusCode: resp.StatusCode, QuotaExceeded: true, Err: errors.New("quota exceeded")}
	case resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusRequestTimeout:
		var env baseEnvelope
		if json.Unmarshal(raw, &env) == nil && env.Success != nil && !*env.Success {
			return &RejectionError{Op: op, Message: env.errorText()}
		}
		return &TransportError{Op: op, StatusCode: resp.StatusCode, Err: fmt.Errorf("unexpected status: %s", snippet(raw))}
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return &TransportError{Op: op, StatusCode: resp.StatusCode, Err: fmt.Errorf("unexpected status: %s", snippet(raw))}
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return &TransportError{Op: op, StatusCode: resp.StatusCode, Err: fmt.Errorf("response is not JSON: %w", err)}
	}
	return nil
}

func snippet(b []byte) string {
	const max = 200
	s := strings.TrimSpace(string(b))
	if len(s) > max {
		return s[:max] + "..."
	}
	return s
}
