// ABOUTME: Registry of live bearer session tokens mirrored to the secure store
// ABOUTME: Tokens are 256-bit random hex with a fixed 7 day lifetime

package authcore

import (
	"sync"
	"time"
)

// sessionTTL is fixed at issuance; there is no sliding renewal.
const sessionTTL = 7 * 24 * time.Hour

// SessionRegistry holds live bearer tokens. The in-memory table is
// authoritative; every mutation is flushed to the secure store so
// unexpired sessions survive a restart.
type SessionRegistry struct {
	mu       sync.Mutex
	clock    Clock
	store    *SecureStore
	sessions map[string]SessionRecord
}

// NewSessionRegistry loads persisted sessions from the store. A corrupt
// or missing sessions file starts the registry empty.
func NewSessionRegistry(store *SecureStore, clock Clock) *SessionRegistry {
	return &SessionRegistry{
		clock:    clock,
		store:    store,
		sessions: store.LoadSessions(),
	}
}

// Create issues a fresh token, records it, flushes, and returns the token.
func (r *SessionRegistry) Create() (string, error) {
	token, err := randomHex(32)
	if err != nil {
		return "", err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[token] = SessionRecord{
		ExpiresAt: r.clock.Now().Add(sessionTTL).UnixMilli(),
	}
	r.store.SaveSessions(r.sessions)
	return token, nil
}

// Validate reports whether token names a live session. A present but
// expired token is removed and flushed on observation.
func (r *SessionRegistry) Validate(token string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.sessions[token]
	if !ok {
		return false
	}
	if r.clock.Now().UnixMilli() >= rec.ExpiresAt {
		delete(r.sessions, token)
		r.store.SaveSessions(r.sessions)
		return false
	}
	return true
}

// Revoke removes token if present and flushes. Revoking an absent token
// is a no-op, so repeated revokes are idempotent.
func (r *SessionRegistry) Revoke(token string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[token]; !ok {
		return
	}
	delete(r.sessions, token)
	r.store.SaveSessions(r.sessions)
}

// Sweep removes expired sessions, flushing once if anything changed.
func (r *SessionRegistry) Sweep() {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.clock.Now().UnixMilli()
	changed := false
	for token, rec := range r.sessions {
		if now >= rec.ExpiresAt {
			delete(r.sessions, token)
			changed = true
		}
	}
	if changed {
		r.store.SaveSessions(r.sessions)
	}
}

// Len returns the number of live entries, counting expired ones that
// have not been observed yet.
func (r *SessionRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}
