// Package client talks to the reconciliation service over HTTP on behalf of
// a device.
package client

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

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/iho/offledger/internal/domain"
)

const (
	// DefaultTimeout bounds a single request.
	DefaultTimeout = 15 * time.Second

	requestIDHeader      = "X-Request-ID"
	idempotencyKeyHeader = "Idempotency-Key"

	// maxErrorBody caps how much of an error response is kept for messages.
	maxErrorBody = 4 << 10
)

// Config configures a Client.
type Config struct {
	BaseURL    string
	Token      string
	Timeout    time.Duration
	HTTPClient *http.Client
	Logger     zerolog.Logger
}

// Client is an HTTP ReconciliationClient and ConnectivityChecker.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
	logger  zerolog.Logger
}

// New creates a Client for the service at cfg.BaseURL.
func New(cfg Config) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid server url %q", cfg.BaseURL)
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = DefaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	return &Client{
		baseURL: base.String(),
		token:   cfg.Token,
		http:    httpClient,
		logger:  cfg.Logger.With().Str("component", "sync_client").Logger(),
	}, nil
}

// ApplyBatch submits a batch. The batch id doubles as the idempotency key so
// a resent batch is answered from the server's replay store.
func (c *Client) ApplyBatch(ctx context.Context, req *domain.BatchRequest) (*domain.BatchResult, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode batch: %w", err)
	}

	path := "/api/v1/users/" + url.PathEscape(req.UserID) + "/batches"
	headers := map[string]string{idempotencyKeyHeader: req.BatchID}

	resp, err := c.do(ctx, http.MethodPost, path, body, headers)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return nil, err
	}

	return domain.DecodeBatchResult(resp.Body)
}

// GetBalance fetches the authoritative balance.
func (c *Client) GetBalance(ctx context.Context, userID string) (decimal.Decimal, error) {
	resp, err := c.do(ctx, http.MethodGet, "/api/v1/users/"+url.PathEscape(userID)+"/balance", nil, nil)
	if err != nil {
		return decimal.Zero, err
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return decimal.Zero, err
	}

	var out struct {
		UserID  string          `json:"user_id"`
		Balance decimal.Decimal `json:"balance"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return decimal.Zero, fmt.Errorf("%w: decode balance: %v", domain.ErrTransport, err)
	}

	return out.Balance, nil
}

// CreateProfile opens the user's authoritative balance on the server.
func (c *Client) CreateProfile(ctx context.Context, userID string, openingBalance decimal.Decimal) error {
	body, err := json.Marshal(map[string]any{
		"user_id":         userID,
		"opening_balance": openingBalance,
	})
	if err != nil {
		return err
	}

	resp, err := c.do(ctx, http.MethodPost, "/api/v1/profiles", body, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusConflict {
		return fmt.Errorf("%w: %s", domain.ErrProfileExists, userID)
	}

	return checkStatus(resp)
}

// Online reports whether the service answers its liveness probe.
func (c *Client) Online(ctx context.Context) bool {
	resp, err := c.do(ctx, http.MethodGet, "/health", nil, nil)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	return resp.StatusCode == http.StatusOK
}

func (c *Client) do(ctx context.Context, method, path string, body []byte, headers map[string]string) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	requestID := uuid.NewString()
	req.Header.Set(requestIDHeader, requestID)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrTransport, err)
	}

	c.logger.Debug().
		Str("request_id", requestID).
		Str("method", method).
		Str("path", path).
		Int("status", resp.StatusCode).
		Dur("duration", time.Since(start)).
		Msg("request completed")

	return resp, nil
}

// checkStatus maps a non-2xx response to the sync error taxonomy.
func checkStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	msg := errorMessage(resp.Body)

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return fmt.Errorf("%w: %s", domain.ErrNotAuthenticated, msg)
	case resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%w: %w", domain.ErrNotAuthenticated, domain.ErrForbidden)
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: %s", domain.ErrProfileNotFound, msg)
	case resp.StatusCode == http.StatusConflict:
		// another request with the same key is still in flight
		return fmt.Errorf("%w: %s", domain.ErrTransport, msg)
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return fmt.Errorf("%w: server returned %d: %s", domain.ErrTransport, resp.StatusCode, msg)
	default:
		return fmt.Errorf("%w: server returned %d: %s", domain.ErrMalformedBatch, resp.StatusCode, msg)
	}
}

func errorMessage(r io.Reader) string {
	raw, err := io.ReadAll(io.LimitReader(r, maxErrorBody))
	if err != nil {
		return ""
	}

	var body struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &body); err != nil || body.Error == "" {
		return strings.TrimSpace(string(raw))
	}

	if body.Message != "" {
		return body.Error + ": " + body.Message
	}

	return body.Error
}

// IsRetryable reports whether err is worth retrying later.
func IsRetryable(err error) bool {
	return errors.Is(err, domain.ErrTransport)
}
