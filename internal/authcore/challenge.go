// ABOUTME: In-memory ledger of outstanding single-use ceremony challenges
// ABOUTME: Entries expire after five minutes and are consumed on first take

package authcore

import (
	"crypto/rand"
	"encoding/hex"
	"sync"
	"time"
)

// challengeTTL bounds how long a begun ceremony may stay outstanding.
const challengeTTL = 5 * time.Minute

type ledgerEntry struct {
	value     []byte
	expiresAt time.Time
}

// ChallengeLedger holds the pending state of in-flight WebAuthn ceremonies,
// keyed by an opaque 128-bit id. Entries are single-use: Take removes the
// entry, so two concurrent finishes for the same id cannot both succeed.
// The table is deliberately non-durable; a restart voids open ceremonies.
type ChallengeLedger struct {
	mu      sync.Mutex
	clock   Clock
	entries map[string]ledgerEntry
}

// NewChallengeLedger returns an empty ledger using the given clock.
func NewChallengeLedger(clock Clock) *ChallengeLedger {
	return &ChallengeLedger{
		clock:   clock,
		entries: make(map[string]ledgerEntry),
	}
}

// Store records value under a fresh random id and returns the id.
func (l *ChallengeLedger) Store(value []byte) (string, error) {
	id, err := randomHex(16)
	if err != nil {
		return "", err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries[id] = ledgerEntry{
		value:     value,
		expiresAt: l.clock.Now().Add(challengeTTL),
	}
	return id, nil
}

// Take returns the stored value and deletes the entry, iff the entry
// exists and has not expired. An expired entry is indistinguishable from
// an unknown id: both return nil.
func (l *ChallengeLedger) Take(id string) []byte {
	l.mu.Lock()
	defer l.mu.Unlock()
	entry, ok := l.entries[id]
	if !ok {
		return nil
	}
	delete(l.entries, id)
	if !l.clock.Now().Before(entry.expiresAt) {
		return nil
	}
	return entry.value
}

// Sweep removes expired entries. Called periodically by the Janitor.
func (l *ChallengeLedger) Sweep() {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.clock.Now()
	for id, entry := range l.entries {
		if !now.Before(entry.expiresAt) {
			delete(l.entries, id)
		}
	}
}

// randomHex returns n cryptographically random bytes hex-encoded.
func randomHex(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
