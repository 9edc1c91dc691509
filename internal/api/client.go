// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Configuration constants for the backend API.
const (
	// DefaultTimeout is the default timeout for API requests.
	DefaultTimeout = 30 * time.Second

	// DefaultMaxRetries is the default number of retry attempts for
	// transient errors.
	DefaultMaxRetries = 3

	// retryBaseDelay is the base delay for exponential backoff.
	retryBaseDelay = 500 * time.Millisecond

	// retryMaxDelay is the maximum delay for exponential backoff.
	retryMaxDelay = 10 * time.Second

	// MaxResponseSize is the maximum allowed response body size.
	// SECURITY: Response size limit prevents memory exhaustion.
	MaxResponseSize = 10 * 1024 * 1024 // 10MB

	// userAgent identifies this client to the backend.
	userAgent = "traceagent/0.1.0"
)

// sharedHTTPClient pools connections across all backend requests.
// SECURITY: TLS 1.2 minimum for every connection.
var sharedHTTPClient = &http.Client{
	Transport: &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
		TLSClientConfig: &tls.Config{
			MinVersion: tls.VersionTLS12,
		},
	},
	Timeout: DefaultTimeout,
}

// Error variables for common backend errors.
var (
	// ErrAuthFailed indicates bad credentials or a rejected token.
	ErrAuthFailed = errors.New("authentication failed")

	// ErrRateLimited indicates too many requests were made.
	ErrRateLimited = errors.New("rate limited")

	// ErrNotFound indicates the requested resource does not exist.
	ErrNotFound = errors.New("not found")

	// ErrForbidden indicates the backend refused the request for this
	// identity.
	ErrForbidden = errors.New("access denied")
)

// APIError represents a structured error from the backend.
type APIError struct {
	Status  int
	Message string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("backend error (HTTP %d): %s", e.Status, e.Message)
	}
	return fmt.Sprintf("backend error (HTTP %d)", e.Status)
}

// apiErrorResponse is the backend's error envelope.
type apiErrorResponse struct {
	Error string `json:"error"`
}

// =============================================================================
// CLIENT
// =============================================================================

// Client is an HTTP client for the traceagent backend API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	maxRetries int
	timeout    time.Duration
	logger     zerolog.Logger
}

// NewClient creates a client for the backend at baseURL.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: sharedHTTPClient,
		maxRetries: DefaultMaxRetries,
		timeout:    DefaultTimeout,
		logger:     zerolog.Nop(),
	}
}

// WithTimeout sets the per-request timeout.
func (c *Client) WithTimeout(timeout time.Duration) *Client {
	c.timeout = timeout
	return c
}

// WithMaxRetries sets the total attempt budget. At least one attempt is
// always made.
func (c *Client) WithMaxRetries(maxRetries int) *Client {
	if maxRetries < 1 {
		maxRetries = 1
	}
	c.maxRetries = maxRetries
	return c
}

// WithLogger sets the structured logger for request/response events.
func (c *Client) WithLogger(logger zerolog.Logger) *Client {
	c.logger = logger
	return c
}

// WithHTTPClient replaces the underlying HTTP client (tests).
func (c *Client) WithHTTPClient(httpClient *http.Client) *Client {
	c.httpClient = httpClient
	return c
}

// BaseURL returns the configured backend base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// =============================================================================
// REQUEST PLUMBING
// =============================================================================

// logRequest records an API request without exposing sensitive data.
// SECURITY: No bodies, no headers — both may carry credentials.
func (c *Client) logRequest(method, path string) {
	c.logger.Debug().Str("method", method).Str("path", path).Msg("api request")
}

// logResponse records status code and duration only.
func (c *Client) logResponse(path string, status int, duration time.Duration) {
	c.logger.Debug().Str("path", path).Int("status", status).Dur("duration", duration).Msg("api response")
}

// readResponse reads a body with a size limit.
// SECURITY: Response size limit prevents memory exhaustion.
func readResponse(resp *http.Response) ([]byte, error) {
	limited := io.LimitReader(resp.Body, MaxResponseSize)
	body, err := io.ReadAll(limited)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if int64(len(body)) == MaxResponseSize {
		return nil, fmt.Errorf("response exceeded maximum size of %d bytes", MaxResponseSize)
	}
	return body, nil
}

// do performs one request with retry and exponential backoff for transient
// failures (network errors, 5xx, 429). Non-transient errors return
// immediately with a typed error.
func (c *Client) do(ctx context.Context, method, path string, reqBody any) ([]byte, error) {
	var payload []byte
	if reqBody != nil {
		var err error
		payload, err = json.Marshal(reqBody)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
	}

	var lastErr error
	for attempt := 0; attempt < c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.calculateBackoff(attempt)):
			}
		}

		body, err := c.doOnce(ctx, method, path, payload)
		if err == nil {
			return body, nil
		}
		if !isRetryable(err) {
			return nil, err
		}
		lastErr = err
	}
	return nil, fmt.Errorf("max retries exceeded: %w", lastErr)
}

// doOnce performs a single HTTP round trip.
func (c *Client) doOnce(ctx context.Context, method, path string, payload []byte) ([]byte, error) {
	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var bodyReader io.Reader
	if payload != nil {
		bodyReader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(reqCtx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)

	c.logRequest(method, req.URL.Path)
	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	c.logResponse(req.URL.Path, resp.StatusCode, time.Since(start))

	body, err := readResponse(resp)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		return nil, mapErrorResponse(resp.StatusCode, body)
	}
	return body, nil
}

// mapErrorResponse converts HTTP error responses to typed Go errors.
func mapErrorResponse(statusCode int, body []byte) error {
	message := ""
	var apiErr apiErrorResponse
	if err := json.Unmarshal(body, &apiErr); err == nil {
		message = apiErr.Error
	}

	wrap := func(sentinel error) error {
		if message != "" {
			return fmt.Errorf("%w: %s", sentinel, message)
		}
		return sentinel
	}

	switch statusCode {
	case http.StatusUnauthorized:
		return wrap(ErrAuthFailed)
	case http.StatusForbidden:
		return wrap(ErrForbidden)
	case http.StatusNotFound:
		return wrap(ErrNotFound)
	case http.StatusTooManyRequests:
		return wrap(ErrRateLimited)
	default:
		return &APIError{Status: statusCode, Message: message}
	}
}

// isRetryable determines if an error should trigger a retry.
func isRetryable(err error) bool {
	if errors.Is(err, ErrRateLimited) {
		return true
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status >= 500 && apiErr.Status < 600
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	// Plain transport failures (connection refused, reset) retry.
	var urlErr interface{ Timeout() bool }
	if errors.As(err, &urlErr) {
		return true
	}
	return strings.Contains(err.Error(), "request failed")
}

// calculateBackoff returns the delay before the next retry attempt.
func (c *Client) calculateBackoff(attempt int) time.Duration {
	delay := retryBaseDelay * time.Duration(1<<uint(attempt-1))
	if delay > retryMaxDelay {
		delay = retryMaxDelay
	}
	return delay
}
