// Package http is the JSON REST client used for outbound API calls.
package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/AminderM/Magic-33-sub001/internal/pkg/circuitbreaker"
	"github.com/AminderM/Magic-33-sub001/internal/pkg/logger"
	nrpkg "github.com/AminderM/Magic-33-sub001/internal/pkg/newrelic"
	"github.com/AminderM/Magic-33-sub001/internal/pkg/requestcontext"
	"github.com/AminderM/Magic-33-sub001/internal/pkg/retry"
)

const (
	defaultTimeout = 10 * time.Second
	maxErrorBody   = 512
)

// Config holds client configuration
type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
	Retry   *retry.Config          // nil uses retry.DefaultConfig
	Breaker *circuitbreaker.Config // nil uses circuitbreaker.DefaultConfig
	Logger  *logger.ZapLogger
}

// HTTPError is returned by GetJSON for a non 2xx response
type HTTPError struct {
	Method     string
	URL        string
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("%s %s returned status %d: %s", e.Method, e.URL, e.StatusCode, e.Body)
}

// Retryable reports whether the request may succeed when repeated
func (e *HTTPError) Retryable() bool {
	return e.StatusCode >= 500 || e.StatusCode == http.StatusTooManyRequests
}

// Client is an HTTP client for JSON APIs authenticated with an API key
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	retrier    *retry.Retrier
	breaker    *circuitbreaker.Breaker
	logger     *logger.ZapLogger
}

// NewClient creates a new HTTP client
func NewClient(config Config) *Client {
	timeout := config.Timeout
	if timeout == 0 {
		timeout = defaultTimeout
	}
	l := config.Logger
	if l == nil {
		l = logger.GetGlobalLogger()
	}

	retryConfig := retry.DefaultConfig()
	if config.Retry != nil {
		retryConfig = *config.Retry
	}
	if retryConfig.IsRetryable == nil {
		retryConfig.IsRetryable = isRetryable
	}

	breakerConfig := circuitbreaker.DefaultConfig(config.BaseURL)
	if config.Breaker != nil {
		breakerConfig = *config.Breaker
	}
	if breakerConfig.IsFailure == nil {
		breakerConfig.IsFailure = isRetryable
	}

	return &Client{
		baseURL:    config.BaseURL,
		apiKey:     config.APIKey,
		httpClient: &http.Client{Timeout: timeout},
		retrier:    retry.New(retryConfig, l),
		breaker:    circuitbreaker.New(breakerConfig, l),
		logger:     l,
	}
}

// Get performs a GET request
func (c *Client) Get(ctx context.Context, path string) (*http.Response, error) {
	return c.Do(ctx, http.MethodGet, path, nil)
}

// Do performs a single request. HTTP error statuses are not errors; the
// caller owns the response body.
func (c *Client) Do(ctx context.Context, method, path string, body interface{}) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.url(path), reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}
	if id := requestcontext.RequestID(ctx); id != "" {
		req.Header.Set("X-Request-ID", id)
	}

	resp, err := nrpkg.InstrumentHTTPRequest(ctx, req, func() (*http.Response, error) {
		return c.httpClient.Do(req)
	})
	if err != nil {
		return nil, fmt.Errorf("%s %s failed: %w", method, req.URL.Redacted(), err)
	}
	return resp, nil
}

// GetJSON GETs path and decodes a 2xx JSON body into out. Network errors
// and 5xx responses are retried with backoff behind a circuit breaker.
func (c *Client) GetJSON(ctx context.Context, path string, out interface{}) error {
	return c.breaker.Execute(ctx, func(ctx context.Context) error {
		return c.retrier.Execute(ctx, func(ctx context.Context) error {
			return c.getJSONOnce(ctx, path, out)
		})
	})
}

func (c *Client) getJSONOnce(ctx context.Context, path string, out interface{}) error {
	resp, err := c.Get(ctx, path)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &HTTPError{
			Method:     http.MethodGet,
			URL:        c.url(path),
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(snippet)),
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return retry.Permanent(fmt.Errorf("failed to decode response: %w", err))
	}
	return nil
}

func (c *Client) url(path string) string {
	return strings.TrimRight(c.baseURL, "/") + "/" + strings.TrimLeft(path, "/")
}

// isRetryable treats 5xx and transport failures as transient. Context
// cancellation and 4xx responses are final.
func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, circuitbreaker.ErrOpen) {
		return false
	}
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.Retryable()
	}
	return true
}
