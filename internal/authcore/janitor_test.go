// ABOUTME: Tests for the janitor lifecycle
// ABOUTME: Verifies the sweep loop stops when its context is cancelled

package authcore

import (
	"context"
	"testing"
	"time"
)

func TestJanitor_RunStopsOnCancel(t *testing.T) {
	auth, _, _, _ := testAuthenticator(t)

	j := NewJanitor(auth)
	j.interval = 5 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		j.Run(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("janitor did not stop after cancel")
	}
}
