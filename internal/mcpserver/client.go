package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// Config holds the configuration for connecting to the analytics API.
type Config struct {
	APIURL string // Base URL, e.g. "http://localhost:9000"
	APIKey string // API key, e.g. "rw_..."
}

// APIClient is a pure HTTP client for the road-safety analytics API. The MCP
// sidecar authenticates with a standalone API key rather than a browser
// session, so it carries no bearer token and never hits the account endpoints.
type APIClient struct {
	cfg        Config
	httpClient *http.Client
}

// NewAPIClient creates a new client for the analytics API.
func NewAPIClient(cfg Config) *APIClient {
	return &APIClient{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// apiError represents an error response from the analytics API.
type apiError struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// doRequest makes an HTTP request to the API and returns the response body.
func (c *APIClient) doRequest(ctx context.Context, path string, query url.Values) (json.RawMessage, error) {
	u, err := url.Parse(c.cfg.APIURL + path)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}
	if query != nil {
		u.RawQuery = query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("X-API-Key", c.cfg.APIKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode == http.StatusNotFound {
		// Missing area data is an empty result, not a tool failure.
		return json.RawMessage(`[]`), nil
	}
	if resp.StatusCode >= 400 {
		var apiErr apiError
		if json.Unmarshal(respBody, &apiErr) == nil && apiErr.Message != "" {
			return nil, fmt.Errorf("API error (%d): %s", resp.StatusCode, apiErr.Message)
		}
		return nil, fmt.Errorf("API error (%d): %s", resp.StatusCode, string(respBody))
	}

	return json.RawMessage(respBody), nil
}

// Hotspots returns the highest-casualty areas.
func (c *APIClient) Hotspots(ctx context.Context, limit int) (json.RawMessage, error) {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	return c.doRequest(ctx, "/areas/hotspots", q)
}

// Schools returns schools near casualty clusters, optionally for one area.
func (c *APIClient) Schools(ctx context.Context, areaCode string) (json.RawMessage, error) {
	q := url.Values{}
	if areaCode != "" {
		q.Set("area", areaCode)
	}
	return c.doRequest(ctx, "/schools", q)
}

// Casualties returns individual casualty records.
func (c *APIClient) Casualties(ctx context.Context, areaCode string, limit int) (json.RawMessage, error) {
	q := url.Values{}
	if areaCode != "" {
		q.Set("area", areaCode)
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	return c.doRequest(ctx, "/casualties", q)
}

// StatsSummary returns the dataset-wide summary.
func (c *APIClient) StatsSummary(ctx context.Context) (json.RawMessage, error) {
	return c.doRequest(ctx, "/stats/summary", nil)
}
