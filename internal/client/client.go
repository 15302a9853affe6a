// Package client talks to a running webhook service.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/rs/zerolog"

	"tvwebhook/internal/alert"
	"tvwebhook/internal/query"
)

// Options parameterise the client.
type Options struct {
	BaseURL    string
	Timeout    time.Duration
	MaxRetries uint64
	UserAgent  string
}

// Client calls the webhook endpoints.
type Client struct {
	opts    Options
	baseURL string
	client  *http.Client
	logger  zerolog.Logger
}

// APIError is an error envelope returned by the service.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("webhook api error (%d): %s", e.StatusCode, e.Message)
}

// StatusResponse is the GET /status body.
type StatusResponse struct {
	Status      string   `json:"status"`
	Message     string   `json:"message"`
	TotalAlerts int64    `json:"total_alerts"`
	ServerTime  string   `json:"server_time"`
	Version     string   `json:"version"`
	Endpoints   []string `json:"endpoints_available"`
}

// WebhookResponse is the POST /webhook body.
type WebhookResponse struct {
	Status    string `json:"status"`
	Message   string `json:"message"`
	AlertID   string `json:"alert_id"`
	Timestamp string `json:"timestamp"`
	AlertName string `json:"alert_name"`
	Symbol    string `json:"symbol"`
}

// TestResponse is the POST /test body.
type TestResponse struct {
	Status       string `json:"status"`
	Message      string `json:"message"`
	AlertID      string `json:"alert_id"`
	Timestamp    string `json:"timestamp"`
	SymbolParsed bool   `json:"symbol_parsed"`
}

// AlertsResponse is the GET /alerts body.
type AlertsResponse struct {
	Alerts         []query.Summary `json:"alerts"`
	AlertsReturned int             `json:"alerts_returned"`
	TotalCount     int64           `json:"total_count"`
	Message        string          `json:"message"`
}

// New constructs a client.
func New(opts Options, logger zerolog.Logger) *Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}
	if strings.TrimSpace(opts.UserAgent) == "" {
		opts.UserAgent = "tvwebhook-client/1.0"
	}
	return &Client{
		opts:    opts,
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
		logger:  logger.With().Str("component", "webhook_client").Logger(),
	}
}

// Status checks that the service is running.
func (c *Client) Status(ctx context.Context) (StatusResponse, error) {
	var out StatusResponse
	err := c.do(ctx, http.MethodGet, "/status", nil, &out)
	return out, err
}

// Send posts payload as a webhook alert.
func (c *Client) Send(ctx context.Context, payload alert.Payload) (WebhookResponse, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return WebhookResponse{}, fmt.Errorf("marshal payload: %w", err)
	}
	var out WebhookResponse
	err = c.do(ctx, http.MethodPost, "/webhook", body, &out)
	return out, err
}

// Test asks the service to store its synthetic alert.
func (c *Client) Test(ctx context.Context) (TestResponse, error) {
	var out TestResponse
	err := c.do(ctx, http.MethodPost, "/test", nil, &out)
	return out, err
}

// Alerts lists recent alerts. A non-positive count leaves the choice to the
// service.
func (c *Client) Alerts(ctx context.Context, count int) (AlertsResponse, error) {
	path := "/alerts"
	if count > 0 {
		path += "?" + url.Values{"count": {strconv.Itoa(count)}}.Encode()
	}
	var out AlertsResponse
	err := c.do(ctx, http.MethodGet, path, nil, &out)
	return out, err
}

// do retries transport failures and 5xx responses. Client errors are returned
// without retrying.
func (c *Client) do(ctx context.Context, method, path string, body []byte, out any) error {
	var final error
	attempt := 0
	op := func() error {
		attempt++
		err := c.once(ctx, method, path, body, out)
		if apiErr, ok := err.(*APIError); ok && apiErr.StatusCode < 500 {
			final = apiErr
			return nil
		}
		if err != nil {
			c.logger.Debug().Err(err).Int("attempt", attempt).Str("path", path).Msg("request failed")
		}
		return err
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 250 * time.Millisecond
	policy.MaxElapsedTime = time.Minute
	if err := backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(policy, c.opts.MaxRetries), ctx)); err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	if final != nil {
		return fmt.Errorf("%s %s: %w", method, path, final)
	}
	return nil
}

func (c *Client) once(ctx context.Context, method, path string, body []byte, out any) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.opts.UserAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return parseHTTPError(resp.StatusCode, payload)
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func parseHTTPError(status int, payload []byte) error {
	var envelope struct {
		Error   bool   `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(payload, &envelope); err == nil && envelope.Message != "" {
		return &APIError{StatusCode: status, Message: envelope.Message}
	}
	msg := strings.TrimSpace(string(payload))
	if msg == "" {
		msg = http.StatusText(status)
	}
	return &APIError{StatusCode: status, Message: msg}
}
