package circuitbreaker

import (
	"testing"
	"time"
)

func TestBreaker_AllowWhenClosed(t *testing.T) {
	b := New(3, 100*time.Millisecond)
	if !b.Allow("/areas/hotspots") {
		t.Fatal("expected closed circuit to allow")
	}
}

func TestBreaker_TripsAfterThreshold(t *testing.T) {
	b := New(3, 100*time.Millisecond)

	// 2 failures = still closed
	b.RecordFailure("/areas/hotspots")
	b.RecordFailure("/areas/hotspots")
	if !b.Allow("/areas/hotspots") {
		t.Fatal("should still allow before threshold")
	}

	// 3rd failure = open
	b.RecordFailure("/areas/hotspots")
	if b.Allow("/areas/hotspots") {
		t.Fatal("should be open after 3 failures")
	}
	if b.State("/areas/hotspots") != StateOpen {
		t.Fatalf("expected StateOpen, got %v", b.State("/areas/hotspots"))
	}
}

func TestBreaker_OpenToHalfOpenAfterDuration(t *testing.T) {
	b := New(2, 50*time.Millisecond)

	b.RecordFailure("/schools")
	b.RecordFailure("/schools")
	if b.Allow("/schools") {
		t.Fatal("should be open")
	}

	time.Sleep(60 * time.Millisecond)

	// Should transition to half-open and allow one probe.
	if !b.Allow("/schools") {
		t.Fatal("should allow probe in half-open")
	}
	if b.State("/schools") != StateHalfOpen {
		t.Fatalf("expected StateHalfOpen, got %v", b.State("/schools"))
	}

	// Second request while half-open should be rejected.
	if b.Allow("/schools") {
		t.Fatal("should reject second request in half-open")
	}
}

func TestBreaker_HalfOpenSuccessCloses(t *testing.T) {
	b := New(2, 50*time.Millisecond)

	b.RecordFailure("/schools")
	b.RecordFailure("/schools")
	time.Sleep(60 * time.Millisecond)
	b.Allow("/schools") // Transitions to half-open

	b.RecordSuccess("/schools")
	if b.State("/schools") != StateClosed {
		t.Fatalf("expected StateClosed after success, got %v", b.State("/schools"))
	}
	if !b.Allow("/schools") {
		t.Fatal("should allow after recovery")
	}
}

func TestBreaker_HalfOpenFailureReopens(t *testing.T) {
	b := New(2, 50*time.Millisecond)

	b.RecordFailure("/schools")
	b.RecordFailure("/schools")
	time.Sleep(60 * time.Millisecond)
	b.Allow("/schools") // Transitions to half-open

	b.RecordFailure("/schools")
	if b.State("/schools") != StateOpen {
		t.Fatalf("expected StateOpen after half-open failure, got %v", b.State("/schools"))
	}
}

func TestBreaker_SuccessResets(t *testing.T) {
	b := New(3, 100*time.Millisecond)

	b.RecordFailure("/casualties")
	b.RecordFailure("/casualties")
	b.RecordSuccess("/casualties")

	// Should not trip with only 1 more failure (counter was reset).
	b.RecordFailure("/casualties")
	if !b.Allow("/casualties") {
		t.Fatal("should still be closed after reset")
	}
}

func TestBreaker_IndependentEndpoints(t *testing.T) {
	b := New(2, 100*time.Millisecond)

	b.RecordFailure("/areas/hotspots")
	b.RecordFailure("/areas/hotspots")

	// One endpoint open, the other unaffected.
	if b.Allow("/areas/hotspots") {
		t.Fatal("/areas/hotspots should be open")
	}
	if !b.Allow("/stats/summary") {
		t.Fatal("/stats/summary should be closed")
	}
}

func TestBreaker_UnknownEndpointIsClosed(t *testing.T) {
	b := New(2, 100*time.Millisecond)
	if b.State("/never-called") != StateClosed {
		t.Fatalf("expected StateClosed for unknown endpoint, got %v", b.State("/never-called"))
	}
}

func TestState_String(t *testing.T) {
	tests := []struct {
		s    State
		want string
	}{
		{StateClosed, "closed"},
		{StateOpen, "open"},
		{StateHalfOpen, "half_open"},
		{State(99), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.s.String(); got != tt.want {
			t.Errorf("State(%d).String() = %q, want %q", tt.s, got, tt.want)
		}
	}
}
