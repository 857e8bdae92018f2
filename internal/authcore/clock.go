// ABOUTME: Clock abstraction so TTL logic can run against injected time
// ABOUTME: Production code uses the system clock; tests use a fake

package authcore

import "time"

// Clock provides the current time. All TTL decisions in the core go
// through a Clock so tests can advance time deterministically.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock returns a Clock backed by time.Now.
func SystemClock() Clock { return systemClock{} }
