package analytics

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/roadwatch-io/roadwatch/internal/metrics"
	"github.com/roadwatch-io/roadwatch/internal/session"
)

// Result is the normalized outcome of an auth operation. Failures carry a
// human-readable message suitable for direct display; auth operations never
// surface raw HTTP errors to their callers.
type Result struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

func failure(msg string) Result { return Result{Error: msg} }

// authResponse is the body of a successful login or signup.
type authResponse struct {
	AccessToken string `json:"access_token"`
	User        User   `json:"user"`
}

// Login authenticates with the analytics API. On success the token, API key,
// and profile are installed as one composite session update. On failure the
// existing session, if any, is left exactly as it was.
func (c *Client) Login(ctx context.Context, email, password string) Result {
	body := map[string]string{"email": email, "password": password}
	raw, err := c.doRequest(ctx, http.MethodPost, "/users/login", nil, body)
	if err != nil {
		metrics.AuthFailuresTotal.WithLabelValues("login").Inc()
		if errors.Is(err, ErrUnauthorized) {
			return failure(errorMessage(raw, "invalid email or password"))
		}
		return failure(errorMessage(raw, "login failed, please try again"))
	}
	if res := c.installSession(raw, "login"); !res.Success {
		return res
	}
	return Result{Success: true}
}

// Signup registers a new account and logs it in. The semantics mirror Login:
// composite install on success, untouched session on failure.
func (c *Client) Signup(ctx context.Context, email, password, name string) Result {
	body := map[string]string{"email": email, "password": password, "name": name}
	raw, err := c.doRequest(ctx, http.MethodPost, "/users/signup", nil, body)
	if err != nil {
		metrics.AuthFailuresTotal.WithLabelValues("signup").Inc()
		return failure(errorMessage(raw, "signup failed, please try again"))
	}
	if res := c.installSession(raw, "signup"); !res.Success {
		return res
	}
	return Result{Success: true}
}

// installSession parses an auth response and stores all three session fields
// in one update.
func (c *Client) installSession(raw json.RawMessage, event string) Result {
	var resp authResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return failure("unexpected response from the analytics service")
	}
	s := session.Session{
		Token:   resp.AccessToken,
		APIKey:  resp.User.APIKey,
		Profile: resp.User.profile(),
	}
	if err := c.sessions.Set(s); err != nil {
		// The API answered 2xx but without a full credential set.
		c.logger.Error("auth response missing credential fields", "error", err)
		return failure("unexpected response from the analytics service")
	}
	metrics.SessionEventsTotal.WithLabelValues(event).Inc()
	return Result{Success: true}
}

// Logout clears the session unconditionally. It does not call the remote
// API: the bearer token is stateless and simply stops being sent. Safe to
// call when already logged out.
func (c *Client) Logout() error {
	err := c.sessions.Clear()
	metrics.SessionEventsTotal.WithLabelValues("logout").Inc()
	return err
}

// RegenerateAPIKey asks the API for a fresh key and, on success, replaces
// the stored key and profile while keeping the bearer token. On failure the
// stored state is untouched.
func (c *Client) RegenerateAPIKey(ctx context.Context) Result {
	raw, err := c.doRequest(ctx, http.MethodPost, "/users/regenerate-api-key", nil, nil)
	if err != nil {
		return failure(errorMessage(raw, "could not regenerate API key"))
	}

	var u User
	if err := json.Unmarshal(raw, &u); err != nil {
		return failure("unexpected response from the analytics service")
	}
	s := session.Session{
		Token:   c.sessions.Token(),
		APIKey:  u.APIKey,
		Profile: u.profile(),
	}
	if err := c.sessions.Set(s); err != nil {
		return failure("unexpected response from the analytics service")
	}
	metrics.SessionEventsTotal.WithLabelValues("key_regenerated").Inc()
	return Result{Success: true}
}

// UpdateProfile changes the display name and refreshes the cached profile.
func (c *Client) UpdateProfile(ctx context.Context, name string) Result {
	body := map[string]string{"name": name}
	raw, err := c.doRequest(ctx, http.MethodPut, "/users/profile", nil, body)
	if err != nil {
		return failure(errorMessage(raw, "could not update profile"))
	}

	var u User
	if err := json.Unmarshal(raw, &u); err != nil {
		return failure("unexpected response from the analytics service")
	}
	s := session.Session{
		Token:   c.sessions.Token(),
		APIKey:  u.APIKey,
		Profile: u.profile(),
	}
	if err := c.sessions.Set(s); err != nil {
		return failure("unexpected response from the analytics service")
	}
	metrics.SessionEventsTotal.WithLabelValues("profile_updated").Inc()
	return Result{Success: true}
}

// VerifyToken probes whether the persisted credential is still accepted.
// A rejection reports false with no error; the transport has already torn
// the dead session down by the time this returns.
func (c *Client) VerifyToken(ctx context.Context) (bool, error) {
	_, err := c.doRequest(ctx, http.MethodGet, "/users/verify-token", nil, nil)
	if err != nil {
		if errors.Is(err, ErrUnauthorized) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
