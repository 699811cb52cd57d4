package analytics

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/roadwatch-io/roadwatch/internal/metrics"
	"github.com/roadwatch-io/roadwatch/internal/retry"
	"github.com/roadwatch-io/roadwatch/internal/risk"
	"github.com/roadwatch-io/roadwatch/internal/traces"
)

// Data fetches are idempotent GETs, so they retry transient failures with
// backoff. A 404 is not a failure: the API answers it for areas with no
// recorded incidents, and callers get a valid empty slice.

const (
	dataMaxAttempts = 3
	dataBaseDelay   = 200 * time.Millisecond
)

// getJSON fetches path with retries and decodes the body into out.
// ErrUnauthorized and ErrNotFound are permanent; retrying them cannot help.
func (c *Client) getJSON(ctx context.Context, path string, query url.Values, out any) error {
	var raw json.RawMessage
	err := retry.Do(ctx, dataMaxAttempts, dataBaseDelay, func() error {
		var err error
		raw, err = c.doRequest(ctx, http.MethodGet, path, query, nil)
		if err != nil {
			if errors.Is(err, ErrUnauthorized) || errors.Is(err, ErrNotFound) || errors.Is(err, ErrUnavailable) {
				return retry.Permanent(err)
			}
			return err
		}
		return nil
	})
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

// Hotspots returns area-level casualty clusters, each tagged with its risk
// category. limit <= 0 means the API default.
func (c *Client) Hotspots(ctx context.Context, limit int) ([]Hotspot, error) {
	ctx, span := traces.StartSpan(ctx, "analytics.hotspots")
	defer span.End()

	var q url.Values
	if limit > 0 {
		q = url.Values{"limit": {strconv.Itoa(limit)}}
	}

	var items []Hotspot
	if err := c.getJSON(ctx, "/areas/hotspots", q, &items); err != nil {
		if errors.Is(err, ErrNotFound) {
			return []Hotspot{}, nil
		}
		return nil, err
	}

	for i := range items {
		items[i].Category = risk.ClassifyAreaScored(items[i].IncidentCount, items[i].DangerScore)
		metrics.RiskClassificationsTotal.WithLabelValues("area", string(items[i].Category)).Inc()
	}
	if len(items) > 0 {
		// The API ranks hotspots worst-first, so the head is the severest.
		span.SetAttributes(traces.RiskCategory(string(items[0].Category)))
	}
	return items, nil
}

// Schools returns schools with nearby incident counts, tagged with the
// school risk scale. An optional area code narrows the result.
func (c *Client) Schools(ctx context.Context, areaCode string) ([]School, error) {
	ctx, span := traces.StartSpan(ctx, "analytics.schools", traces.AreaCode(areaCode))
	defer span.End()

	var q url.Values
	if areaCode != "" {
		q = url.Values{"area": {areaCode}}
	}

	var items []School
	if err := c.getJSON(ctx, "/schools", q, &items); err != nil {
		if errors.Is(err, ErrNotFound) {
			return []School{}, nil
		}
		return nil, err
	}

	for i := range items {
		items[i].Category = risk.ClassifySchool(items[i].IncidentCount)
		metrics.RiskClassificationsTotal.WithLabelValues("school", string(items[i].Category)).Inc()
	}
	return items, nil
}

// Casualties returns individual casualty records for an area.
func (c *Client) Casualties(ctx context.Context, areaCode string, limit int) ([]Casualty, error) {
	ctx, span := traces.StartSpan(ctx, "analytics.casualties", traces.AreaCode(areaCode))
	defer span.End()

	q := url.Values{}
	if areaCode != "" {
		q.Set("area", areaCode)
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}

	var items []Casualty
	if err := c.getJSON(ctx, "/casualties", q, &items); err != nil {
		if errors.Is(err, ErrNotFound) {
			return []Casualty{}, nil
		}
		return nil, err
	}
	return items, nil
}

// StatsSummary returns the platform-wide statistics record.
func (c *Client) StatsSummary(ctx context.Context) (*Summary, error) {
	var s Summary
	if err := c.getJSON(ctx, "/stats/summary", nil, &s); err != nil {
		return nil, err
	}
	return &s, nil
}
