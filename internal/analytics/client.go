// Package analytics is the authenticated client for the remote road-safety
// analytics API. It owns credential attachment, auth-result normalization,
// and the reaction to rejected credentials; callers never see a raw HTTP
// response. Session teardown on a 401 is published through the session
// manager's subscribers, so this package decides nothing about navigation
// or presentation.
package analytics

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/roadwatch-io/roadwatch/internal/circuitbreaker"
	"github.com/roadwatch-io/roadwatch/internal/metrics"
	"github.com/roadwatch-io/roadwatch/internal/session"
	"github.com/roadwatch-io/roadwatch/internal/traces"
)

var (
	// ErrUnauthorized is returned when the API rejects the credential.
	ErrUnauthorized = errors.New("analytics: unauthorized")
	// ErrNotFound is returned for 404s; data callers treat it as an empty set.
	ErrNotFound = errors.New("analytics: not found")
	// ErrUnavailable is returned when the circuit breaker is open for an
	// endpoint and the call was not attempted.
	ErrUnavailable = errors.New("analytics: endpoint unavailable")
)

// Config holds the client configuration.
type Config struct {
	BaseURL string
	Timeout time.Duration
}

// Client talks to the analytics API on behalf of one session.
type Client struct {
	cfg        Config
	httpClient *http.Client
	sessions   *session.Manager
	breaker    *circuitbreaker.Breaker
	logger     *slog.Logger
}

// NewClient creates a client bound to the given session manager. All
// credential handling happens inside the client's transport.
func NewClient(cfg Config, sessions *session.Manager, logger *slog.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
			Transport: &authTransport{
				base:     http.DefaultTransport,
				sessions: sessions,
			},
		},
		sessions: sessions,
		breaker:  circuitbreaker.New(5, 30*time.Second),
		logger:   logger,
	}
}

// Sessions exposes the manager so callers can read session state and
// subscribe to invalidation.
func (c *Client) Sessions() *session.Manager { return c.sessions }

// apiError is the error envelope the analytics API answers with.
type apiError struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// errorMessage pulls a human-readable message out of an error body, falling
// back to a generic string so auth results never surface raw JSON.
func errorMessage(body []byte, fallback string) string {
	var apiErr apiError
	if json.Unmarshal(body, &apiErr) == nil {
		if apiErr.Message != "" {
			return apiErr.Message
		}
		if apiErr.Error != "" {
			return apiErr.Error
		}
	}
	return fallback
}

// doRequest makes one call to the analytics API and returns the raw body.
// Status mapping: 401 → ErrUnauthorized, 404 → ErrNotFound, other >= 400 →
// an error carrying the body's message. The circuit breaker is keyed by
// path so one failing endpoint does not take down the rest.
func (c *Client) doRequest(ctx context.Context, method, path string, query url.Values, body any) (json.RawMessage, error) {
	if !c.breaker.Allow(path) {
		metrics.AnalyticsRequestsTotal.WithLabelValues(path, "circuit_open").Inc()
		return nil, ErrUnavailable
	}

	ctx, span := traces.StartSpan(ctx, "analytics.request", traces.Endpoint(path))
	defer span.End()

	timer := time.Now()
	raw, status, err := c.send(ctx, method, path, query, body)
	metrics.AnalyticsRequestDuration.WithLabelValues(path).Observe(time.Since(timer).Seconds())
	span.SetAttributes(traces.StatusCode(status))

	switch {
	case err == nil:
		c.breaker.RecordSuccess(path)
		metrics.AnalyticsRequestsTotal.WithLabelValues(path, "ok").Inc()
	case errors.Is(err, ErrUnauthorized):
		// A rejected credential is not an endpoint outage.
		c.breaker.RecordSuccess(path)
		metrics.AnalyticsRequestsTotal.WithLabelValues(path, "unauthorized").Inc()
	case errors.Is(err, ErrNotFound):
		c.breaker.RecordSuccess(path)
		metrics.AnalyticsRequestsTotal.WithLabelValues(path, "not_found").Inc()
	default:
		c.breaker.RecordFailure(path)
		metrics.AnalyticsRequestsTotal.WithLabelValues(path, "error").Inc()
		c.logger.Warn("analytics call failed", "method", method, "path", path, "error", err)
	}
	return raw, err
}

// send performs the HTTP exchange. Credential headers are attached by the
// transport, not here.
func (c *Client) send(ctx context.Context, method, path string, query url.Values, body any) (json.RawMessage, int, error) {
	u, err := url.Parse(c.cfg.BaseURL + path)
	if err != nil {
		return nil, 0, fmt.Errorf("invalid URL: %w", err)
	}
	if query != nil {
		u.RawQuery = query.Encode()
	}

	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, 0, fmt.Errorf("marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), reqBody)
	if err != nil {
		return nil, 0, fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("read response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return respBody, resp.StatusCode, fmt.Errorf("%w: %s",
			ErrUnauthorized, errorMessage(respBody, "authentication required"))
	case resp.StatusCode == http.StatusNotFound:
		return respBody, resp.StatusCode, ErrNotFound
	case resp.StatusCode >= 400:
		return respBody, resp.StatusCode, fmt.Errorf("API error (%d): %s",
			resp.StatusCode, errorMessage(respBody, string(respBody)))
	}

	return respBody, resp.StatusCode, nil
}
