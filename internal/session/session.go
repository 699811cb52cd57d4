// Package session owns the authenticated dashboard session.
//
// A session is the credential pair issued by the analytics API (bearer token
// + API key) plus the cached user profile. The three fields always move
// together: login and signup install all of them in one update, logout and
// 401-triggered teardown remove all of them in one update. A caller can
// never observe a session with a token but no key, or a key but no profile.
package session

import (
	"errors"
	"time"
)

// ErrIncomplete rejects partial session updates.
var ErrIncomplete = errors.New("session: token, API key, and profile must be set together")

// Tier is the account plan attached to a profile.
type Tier string

const (
	TierFree         Tier = "free"
	TierDeveloper    Tier = "developer"
	TierProfessional Tier = "professional"
)

// Profile is the cached user record returned by the analytics API.
type Profile struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Tier      Tier      `json:"tier"`
	CreatedAt time.Time `json:"createdAt"`
}

// Session is the full credential record. The zero value means "not
// authenticated".
type Session struct {
	Token   string   `json:"token"`
	APIKey  string   `json:"apiKey"`
	Profile *Profile `json:"profile,omitempty"`
}

// Authenticated reports whether the session carries a usable credential.
func (s Session) Authenticated() bool {
	return s.Token != "" && s.APIKey != ""
}

// complete reports whether all three fields are present.
func (s Session) complete() bool {
	return s.Token != "" && s.APIKey != "" && s.Profile != nil
}

// clone returns a deep copy so callers can't mutate the manager's record.
func (s Session) clone() Session {
	out := s
	if s.Profile != nil {
		p := *s.Profile
		out.Profile = &p
	}
	return out
}
