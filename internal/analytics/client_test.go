package analytics

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/roadwatch-io/roadwatch/internal/risk"
	"github.com/roadwatch-io/roadwatch/internal/session"
)

func seededManager(t *testing.T) *session.Manager {
	t.Helper()
	m, err := session.NewManager(session.NewMemoryStore(), nil)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	err = m.Set(session.Session{
		Token:  "tok-live",
		APIKey: "rw_key_live",
		Profile: &session.Profile{
			ID: "u-1", Name: "Ada", Email: "ada@example.com", Tier: session.TierFree,
			CreatedAt: time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC),
		},
	})
	if err != nil {
		t.Fatalf("Set: %v", err)
	}
	return m
}

func newTestClient(t *testing.T, m *session.Manager, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(Config{BaseURL: srv.URL, Timeout: 5 * time.Second}, m, nil)
}

func TestAPIKeyNeverSentToUserEndpoints(t *testing.T) {
	headers := map[string]http.Header{}
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		headers[r.URL.Path] = r.Header.Clone()
		switch r.URL.Path {
		case "/users/verify-token":
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(`{}`))
		case "/areas/hotspots":
			w.Write([]byte(`[]`))
		}
	})

	m := seededManager(t)
	c := newTestClient(t, m, handler)

	if ok, err := c.VerifyToken(context.Background()); err != nil || !ok {
		t.Fatalf("VerifyToken = %v, %v", ok, err)
	}
	if _, err := c.Hotspots(context.Background(), 0); err != nil {
		t.Fatalf("Hotspots: %v", err)
	}

	if got := headers["/users/verify-token"].Get("X-API-Key"); got != "" {
		t.Errorf("X-API-Key sent to /users/ endpoint: %q", got)
	}
	if got := headers["/users/verify-token"].Get("Authorization"); got != "Bearer tok-live" {
		t.Errorf("Authorization on /users/verify-token = %q", got)
	}
	if got := headers["/areas/hotspots"].Get("X-API-Key"); got != "rw_key_live" {
		t.Errorf("X-API-Key on data endpoint = %q", got)
	}
}

func TestUnauthorizedDataResponseClearsWholeSession(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":"unauthorized","message":"key revoked"}`))
	})

	m := seededManager(t)
	var reasons []string
	m.OnInvalidate(func(reason string) { reasons = append(reasons, reason) })

	c := newTestClient(t, m, handler)
	if _, err := c.Schools(context.Background(), ""); err == nil {
		t.Fatal("expected error from 401")
	}

	// The whole credential must be gone, never just part of it.
	if m.Token() != "" || m.APIKey() != "" || m.Profile() != nil {
		t.Errorf("partial session after 401: token=%q key=%q profile=%v",
			m.Token(), m.APIKey(), m.Profile())
	}
	if len(reasons) != 1 || reasons[0] != "auth_rejected" {
		t.Errorf("invalidation events = %v", reasons)
	}
}

func TestLoginRejectionPreservesExistingSession(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":"unauthorized","message":"invalid credentials"}`))
	})

	m := seededManager(t)
	var invalidated bool
	m.OnInvalidate(func(string) { invalidated = true })

	c := newTestClient(t, m, handler)

	res := c.Login(context.Background(), "other@example.com", "wrong")
	if res.Success {
		t.Fatal("login should have failed")
	}
	if res.Error != "invalid credentials" {
		t.Errorf("error message = %q, want extracted body message", res.Error)
	}

	if m.Token() != "tok-live" || m.APIKey() != "rw_key_live" {
		t.Error("rejected login attempt must not touch the existing session")
	}
	if invalidated {
		t.Error("login 401 must not publish an invalidation event")
	}
}

func TestLoginSuccessInstallsCompositeSession(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/users/login" || r.Method != http.MethodPost {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		w.Write([]byte(`{
			"access_token": "tok-new",
			"user": {"id":"u-9","name":"Grace","email":"grace@example.com",
			         "tier":"developer","api_key":"rw_key_new",
			         "created_at":"2026-02-01T00:00:00Z"}
		}`))
	})

	m, _ := session.NewManager(session.NewMemoryStore(), nil)
	c := newTestClient(t, m, handler)

	res := c.Login(context.Background(), "grace@example.com", "pw")
	if !res.Success {
		t.Fatalf("login failed: %s", res.Error)
	}

	if m.Token() != "tok-new" {
		t.Errorf("Token = %q", m.Token())
	}
	if m.APIKey() != "rw_key_new" {
		t.Errorf("APIKey = %q", m.APIKey())
	}
	p := m.Profile()
	if p == nil || p.Email != "grace@example.com" || p.Tier != session.TierDeveloper {
		t.Errorf("Profile = %+v", p)
	}
}

func TestSignupSuccessInstallsSession(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/users/signup" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Write([]byte(`{
			"access_token": "tok-s",
			"user": {"id":"u-2","name":"New","email":"new@example.com",
			         "tier":"free","api_key":"rw_key_s",
			         "created_at":"2026-03-01T00:00:00Z"}
		}`))
	})

	m, _ := session.NewManager(session.NewMemoryStore(), nil)
	c := newTestClient(t, m, handler)

	res := c.Signup(context.Background(), "new@example.com", "pw", "New")
	if !res.Success {
		t.Fatalf("signup failed: %s", res.Error)
	}
	if !m.Current().Authenticated() {
		t.Error("signup success must leave an authenticated session")
	}
}

func TestIncompleteAuthResponseInstallsNothing(t *testing.T) {
	// 200 with a user but no api_key: the composite update must be refused
	// whole, not applied in part.
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"access_token":"tok-x","user":{"id":"u-3","name":"X","email":"x@example.com","tier":"free"}}`))
	})

	m, _ := session.NewManager(session.NewMemoryStore(), nil)
	c := newTestClient(t, m, handler)

	res := c.Login(context.Background(), "x@example.com", "pw")
	if res.Success {
		t.Fatal("login with incomplete credential set should fail")
	}
	if m.Current().Authenticated() || m.Token() != "" {
		t.Error("no session field may be installed from an incomplete response")
	}
}

func TestLogoutClearsEverythingAndIsIdempotent(t *testing.T) {
	m := seededManager(t)
	c := newTestClient(t, m, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	if err := c.Logout(); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	if m.Token() != "" || m.APIKey() != "" || m.Profile() != nil {
		t.Error("logout left session fields behind")
	}
	if err := c.Logout(); err != nil {
		t.Errorf("second Logout: %v", err)
	}
}

func TestRegenerateAPIKey(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/users/regenerate-api-key" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Write([]byte(`{"id":"u-1","name":"Ada","email":"ada@example.com",
			"tier":"free","api_key":"rw_key_fresh","created_at":"2026-01-02T00:00:00Z"}`))
	})

	m := seededManager(t)
	c := newTestClient(t, m, handler)

	res := c.RegenerateAPIKey(context.Background())
	if !res.Success {
		t.Fatalf("regenerate failed: %s", res.Error)
	}
	if m.APIKey() != "rw_key_fresh" {
		t.Errorf("APIKey = %q, want rw_key_fresh", m.APIKey())
	}
	if m.Token() != "tok-live" {
		t.Errorf("bearer token changed during key regeneration: %q", m.Token())
	}
}

func TestRegenerateAPIKeyFailureLeavesStateUntouched(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error":"internal","message":"try later"}`))
	})

	m := seededManager(t)
	c := newTestClient(t, m, handler)

	res := c.RegenerateAPIKey(context.Background())
	if res.Success {
		t.Fatal("regenerate should have failed")
	}
	if m.APIKey() != "rw_key_live" {
		t.Error("failed regeneration must not change the stored key")
	}
}

func TestVerifyTokenRejectionTearsDownSession(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})

	m := seededManager(t)
	c := newTestClient(t, m, handler)

	ok, err := c.VerifyToken(context.Background())
	if err != nil {
		t.Fatalf("VerifyToken: %v", err)
	}
	if ok {
		t.Fatal("VerifyToken = true for rejected token")
	}
	if m.Current().Authenticated() {
		t.Error("rejected token must tear the session down")
	}
}

func TestHotspotsClassified(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[
			{"area_code":"E0901","area_name":"Camden","incident_count":42,"danger_score":10},
			{"area_code":"E0902","area_name":"Barnet","incident_count":3,"danger_score":80},
			{"area_code":"E0903","area_name":"Brent","incident_count":2,"danger_score":1}
		]`))
	})

	c := newTestClient(t, seededManager(t), handler)
	items, err := c.Hotspots(context.Background(), 0)
	if err != nil {
		t.Fatalf("Hotspots: %v", err)
	}
	if len(items) != 3 {
		t.Fatalf("len = %d", len(items))
	}
	if items[0].Category != risk.CategoryCritical {
		t.Errorf("count 42 → %q, want critical", items[0].Category)
	}
	if items[1].Category != risk.CategoryVeryHigh {
		t.Errorf("score 80 → %q, want very_high", items[1].Category)
	}
	if items[2].Category != risk.CategoryLow {
		t.Errorf("count 2 → %q, want low", items[2].Category)
	}
}

func TestSchoolsNotFoundIsEmpty(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	c := newTestClient(t, seededManager(t), handler)
	items, err := c.Schools(context.Background(), "E0999")
	if err != nil {
		t.Fatalf("Schools: %v", err)
	}
	if items == nil || len(items) != 0 {
		t.Errorf("want empty non-nil slice, got %v", items)
	}
}

func TestSchoolsClassified(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[
			{"id":"s-1","name":"Hilltop Primary","incident_count":12},
			{"id":"s-2","name":"Riverside Academy","incident_count":4},
			{"id":"s-3","name":"Oak Lane School","incident_count":0}
		]`))
	})

	c := newTestClient(t, seededManager(t), handler)
	items, err := c.Schools(context.Background(), "")
	if err != nil {
		t.Fatalf("Schools: %v", err)
	}
	want := []risk.Category{risk.CategoryHigh, risk.CategoryLow, risk.CategoryLow}
	for i, w := range want {
		if items[i].Category != w {
			t.Errorf("school %d (count %d) → %q, want %q",
				i, items[i].IncidentCount, items[i].Category, w)
		}
	}
}

func TestStatsSummary(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"total_casualties":1024,"fatal_count":12,"serious_count":200,
			"slight_count":812,"year_range":"2019-2023","by_mode":{"pedestrian":300,"cyclist":150}}`))
	})

	c := newTestClient(t, seededManager(t), handler)
	s, err := c.StatsSummary(context.Background())
	if err != nil {
		t.Fatalf("StatsSummary: %v", err)
	}
	if s.TotalCasualties != 1024 || s.ByMode["pedestrian"] != 300 {
		t.Errorf("Summary = %+v", s)
	}
}

func TestCircuitBreakerShortCircuitsFailingEndpoint(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	c := newTestClient(t, seededManager(t), handler)
	ctx := context.Background()

	// Each StatsSummary retries internally; a few calls trip the breaker.
	for i := 0; i < 3; i++ {
		if _, err := c.StatsSummary(ctx); err == nil {
			t.Fatal("expected failure")
		}
	}

	_, err := c.StatsSummary(ctx)
	if err == nil {
		t.Fatal("expected failure with open circuit")
	}
}
