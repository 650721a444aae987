package utils

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Session is what the manager knows about a live token.
type Session struct {
	ID       string
	Username string
	IssuedAt time.Time
}

// SessionManager issues and validates bearer tokens for the single configured
// credential. Sessions live in memory only: they never expire and a restart
// drops all of them.
type SessionManager struct {
	secret   []byte
	username string
	now      func() time.Time

	mu       sync.RWMutex
	sessions map[string]Session
}

// NewSessionManager returns an empty manager signing tokens with secret.
func NewSessionManager(secret, username string) *SessionManager {
	return &SessionManager{
		secret:   []byte(secret),
		username: username,
		now:      time.Now,
		sessions: make(map[string]Session),
	}
}

// Issue creates a new session and returns its token.
func (m *SessionManager) Issue() (string, error) {
	s := Session{ID: uuid.NewString(), Username: m.username, IssuedAt: m.now()}
	token, err := GenerateToken(m.secret, s.ID, s.Username, s.IssuedAt)
	if err != nil {
		return "", err
	}
	m.mu.Lock()
	m.sessions[s.ID] = s
	m.mu.Unlock()
	return token, nil
}

// Lookup returns the session behind token if it is still valid.
func (m *SessionManager) Lookup(token string) (Session, bool) {
	if token == "" {
		return Session{}, false
	}
	claims, err := ParseToken(m.secret, token)
	if err != nil {
		return Session{}, false
	}
	m.mu.RLock()
	s, ok := m.sessions[claims.ID]
	m.mu.RUnlock()
	return s, ok
}

// Validate reports whether token belongs to a live session.
func (m *SessionManager) Validate(token string) bool {
	_, ok := m.Lookup(token)
	return ok
}

// Revoke ends the session behind token. Unknown or malformed tokens are ignored.
func (m *SessionManager) Revoke(token string) {
	claims, err := ParseToken(m.secret, token)
	if err != nil {
		return
	}
	m.mu.Lock()
	delete(m.sessions, claims.ID)
	m.mu.Unlock()
}

// Count returns the number of live sessions.
func (m *SessionManager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}
