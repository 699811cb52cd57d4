package session

import (
	"log/slog"
	"sync"
)

// Manager is the single owner of the session record. Every mutation goes
// through Set, Clear, or Invalidate as one composite update, so readers
// always see either the full credential set or none of it. The rest of the
// application receives the manager by injection; there is no package-level
// session.
type Manager struct {
	mu      sync.RWMutex
	current Session
	store   Store
	logger  *slog.Logger

	subMu       sync.Mutex
	invalidated []func(reason string)
}

// NewManager creates a manager backed by the given store and restores any
// persisted session. A corrupt or partial persisted record is discarded.
func NewManager(store Store, logger *slog.Logger) (*Manager, error) {
	if logger == nil {
		logger = slog.Default()
	}
	m := &Manager{store: store, logger: logger}

	persisted, err := store.Load()
	if err != nil {
		return nil, err
	}
	if persisted != nil {
		m.current = persisted.clone()
		logger.Info("session restored", "user", persisted.Profile.Email)
	}
	return m, nil
}

// Current returns a copy of the session record. The zero Session means not
// authenticated.
func (m *Manager) Current() Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current.clone()
}

// Token returns the bearer token, or "" when there is no session.
func (m *Manager) Token() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current.Token
}

// APIKey returns the API key, or "" when there is no session.
func (m *Manager) APIKey() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current.APIKey
}

// Profile returns a copy of the cached profile, or nil when there is no
// session.
func (m *Manager) Profile() *Profile {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.current.Profile == nil {
		return nil
	}
	p := *m.current.Profile
	return &p
}

// Set installs a complete session in one update and persists it. Partial
// sessions are rejected with ErrIncomplete; the previous session (if any)
// is left untouched on failure.
func (m *Manager) Set(s Session) error {
	if !s.complete() {
		return ErrIncomplete
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.store.Save(s); err != nil {
		return err
	}
	m.current = s.clone()
	return nil
}

// Clear removes the in-memory session and the persisted copy. Idempotent.
func (m *Manager) Clear() error {
	m.mu.Lock()
	m.current = Session{}
	err := m.store.Clear()
	m.mu.Unlock()
	return err
}

// Invalidate clears the session and notifies subscribers. Used when the
// analytics API rejects the credential; the presentation layer decides what
// to do with the signal (this package never navigates).
func (m *Manager) Invalidate(reason string) error {
	err := m.Clear()
	m.logger.Warn("session invalidated", "reason", reason)

	m.subMu.Lock()
	subs := make([]func(string), len(m.invalidated))
	copy(subs, m.invalidated)
	m.subMu.Unlock()

	for _, fn := range subs {
		fn(reason)
	}
	return err
}

// OnInvalidate registers a callback fired after a session teardown.
// Callbacks run on the invalidating goroutine and must not block.
func (m *Manager) OnInvalidate(fn func(reason string)) {
	m.subMu.Lock()
	m.invalidated = append(m.invalidated, fn)
	m.subMu.Unlock()
}
