// ABOUTME: Unit tests for the session registry
// ABOUTME: Covers lifetime, persistence across restart, and revocation

package authcore

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRegistry(t *testing.T) (*SessionRegistry, *fakeClock, *SecureStore) {
	t.Helper()
	store, _ := newTestStore(t)
	clock := newFakeClock()
	return NewSessionRegistry(store, clock), clock, store
}

func TestSessionRegistry_CreateThenValidate(t *testing.T) {
	registry, _, _ := newTestRegistry(t)

	token, err := registry.Create()
	require.NoError(t, err)
	assert.Len(t, token, 64, "256 bits hex-encoded")
	assert.True(t, registry.Validate(token))
}

func TestSessionRegistry_ValidUntilExactExpiry(t *testing.T) {
	registry, clock, _ := newTestRegistry(t)

	token, err := registry.Create()
	require.NoError(t, err)

	clock.Advance(7*24*time.Hour - time.Millisecond)
	assert.True(t, registry.Validate(token), "one ms before expiry")

	clock.Advance(time.Millisecond)
	assert.False(t, registry.Validate(token), "at expiry")
}

func TestSessionRegistry_ExpiredValidateRemovesToken(t *testing.T) {
	registry, clock, store := newTestRegistry(t)

	token, err := registry.Create()
	require.NoError(t, err)

	clock.Advance(8 * 24 * time.Hour)
	assert.False(t, registry.Validate(token))

	// Observation of expiry flushed the removal.
	_, onDisk := store.LoadSessions()[token]
	assert.False(t, onDisk)
}

func TestSessionRegistry_RevokeIsIdempotent(t *testing.T) {
	registry, _, _ := newTestRegistry(t)

	token, err := registry.Create()
	require.NoError(t, err)

	registry.Revoke(token)
	assert.False(t, registry.Validate(token))
	registry.Revoke(token)
	assert.False(t, registry.Validate(token))
}

func TestSessionRegistry_SurvivesRestart(t *testing.T) {
	store, _ := newTestStore(t)
	clock := newFakeClock()

	registry := NewSessionRegistry(store, clock)
	token, err := registry.Create()
	require.NoError(t, err)

	// New registry over the same store models a process restart.
	restarted := NewSessionRegistry(store, clock)
	assert.True(t, restarted.Validate(token))

	clock.Advance(8 * 24 * time.Hour)
	again := NewSessionRegistry(store, clock)
	assert.False(t, again.Validate(token), "expired session observed post-restart")
}

func TestSessionRegistry_TokensAreDistinct(t *testing.T) {
	registry, _, _ := newTestRegistry(t)

	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		token, err := registry.Create()
		require.NoError(t, err)
		require.False(t, seen[token], "token collision")
		seen[token] = true
	}
}

func TestSessionRegistry_SweepFlushesOnce(t *testing.T) {
	registry, clock, store := newTestRegistry(t)

	expired1, err := registry.Create()
	require.NoError(t, err)
	expired2, err := registry.Create()
	require.NoError(t, err)

	clock.Advance(6 * 24 * time.Hour)
	live, err := registry.Create()
	require.NoError(t, err)

	clock.Advance(2 * 24 * time.Hour)
	registry.Sweep()

	persisted := store.LoadSessions()
	assert.NotContains(t, persisted, expired1)
	assert.NotContains(t, persisted, expired2)
	assert.Contains(t, persisted, live)
	assert.Equal(t, 1, registry.Len())
}
