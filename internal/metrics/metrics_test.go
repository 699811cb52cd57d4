package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func gather(t *testing.T, name string) *dto.MetricFamily {
	t.Helper()
	families, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() == name {
			return mf
		}
	}
	return nil
}

func TestAnalyticsCountersRegistered(t *testing.T) {
	AnalyticsRequestsTotal.WithLabelValues("/areas/hotspots", "ok").Inc()
	AnalyticsRequestsTotal.WithLabelValues("/areas/hotspots", "error").Add(2)

	mf := gather(t, "roadwatch_analytics_requests_total")
	if mf == nil {
		t.Fatal("roadwatch_analytics_requests_total not registered")
	}

	var okSeen, errSeen bool
	for _, m := range mf.GetMetric() {
		for _, l := range m.GetLabel() {
			if l.GetName() == "result" && l.GetValue() == "ok" {
				okSeen = true
			}
			if l.GetName() == "result" && l.GetValue() == "error" {
				errSeen = true
				if m.GetCounter().GetValue() < 2 {
					t.Errorf("error counter = %v, want >= 2", m.GetCounter().GetValue())
				}
			}
		}
	}
	if !okSeen || !errSeen {
		t.Errorf("missing label combinations: ok=%v error=%v", okSeen, errSeen)
	}
}

func TestSessionEventCounter(t *testing.T) {
	SessionEventsTotal.WithLabelValues("invalidated").Inc()

	mf := gather(t, "roadwatch_session_events_total")
	if mf == nil {
		t.Fatal("roadwatch_session_events_total not registered")
	}
	if len(mf.GetMetric()) == 0 {
		t.Error("no series recorded")
	}
}

func TestStatusBucket(t *testing.T) {
	tests := []struct {
		code int
		want string
	}{
		{102, "1xx"},
		{200, "2xx"},
		{301, "3xx"},
		{404, "4xx"},
		{500, "5xx"},
	}
	for _, tt := range tests {
		if got := statusBucket(tt.code); got != tt.want {
			t.Errorf("statusBucket(%d) = %q, want %q", tt.code, got, tt.want)
		}
	}
}
