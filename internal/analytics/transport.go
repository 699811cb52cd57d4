package analytics

import (
	"net/http"
	"strings"

	"github.com/roadwatch-io/roadwatch/internal/session"
)

// authTransport attaches the stored credential to every outbound request and
// watches responses for credential rejection. It is the single choke point
// for auth concerns: no call site attaches headers or inspects 401s itself.
type authTransport struct {
	base     http.RoundTripper
	sessions *session.Manager
}

// isUserEndpoint reports whether the path targets the account endpoints.
// The API key is never sent there: account operations authenticate with the
// bearer token (or a body credential), and leaking the key to the signup and
// login handlers serves nothing.
func isUserEndpoint(path string) bool {
	return strings.HasPrefix(path, "/users/")
}

// isAuthAttempt reports whether the path is a credential-establishing call.
// A 401 from these means "bad email or password", not "your session died",
// so it must never tear down an existing session.
func isAuthAttempt(path string) bool {
	return path == "/users/login" || path == "/users/signup"
}

func (t *authTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	// Clone before mutating; RoundTrippers must not modify the caller's request.
	out := req.Clone(req.Context())

	if key := t.sessions.APIKey(); key != "" && !isUserEndpoint(out.URL.Path) {
		out.Header.Set("X-API-Key", key)
	}
	if tok := t.sessions.Token(); tok != "" && out.Header.Get("Authorization") == "" {
		out.Header.Set("Authorization", "Bearer "+tok)
	}

	resp, err := t.base.RoundTrip(out)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode == http.StatusUnauthorized && !isAuthAttempt(out.URL.Path) {
		if t.sessions.Current().Authenticated() {
			_ = t.sessions.Invalidate("auth_rejected")
		}
	}
	return resp, nil
}
