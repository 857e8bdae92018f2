// ABOUTME: Shared test fixtures for the authcore package
// ABOUTME: Provides a fake clock and a stub ceremony verifier

package authcore

import (
	"sync"
	"testing"
	"time"

	"github.com/go-webauthn/webauthn/protocol"
	"github.com/go-webauthn/webauthn/webauthn"
)

// fakeClock is a manually advanced Clock for TTL tests.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// stubVerifier replaces the cryptographic ceremony work so the
// orchestration around it can be exercised deterministically.
// "cred-1" is "Y3JlZC0x" in base64url.
type stubVerifier struct {
	mu           sync.Mutex
	lastRP       RelyingParty
	registerCred *webauthn.Credential
	loginCred    *webauthn.Credential
	beginErr     error
	finishErr    error
}

func newStubVerifier() *stubVerifier {
	return &stubVerifier{
		registerCred: &webauthn.Credential{
			ID:        []byte("cred-1"),
			PublicKey: []byte("pubkey-1"),
			Transport: []protocol.AuthenticatorTransport{protocol.Internal},
			Authenticator: webauthn.Authenticator{
				SignCount: 5,
			},
		},
		loginCred: &webauthn.Credential{
			ID:        []byte("cred-1"),
			PublicKey: []byte("pubkey-1"),
			Authenticator: webauthn.Authenticator{
				SignCount: 7,
			},
		},
	}
}

func (s *stubVerifier) setRP(rp RelyingParty) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastRP = rp
}

func (s *stubVerifier) RP() RelyingParty {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastRP
}

func (s *stubVerifier) BeginRegistration(rp RelyingParty) (*protocol.CredentialCreation, []byte, error) {
	s.setRP(rp)
	if s.beginErr != nil {
		return nil, nil, s.beginErr
	}
	return &protocol.CredentialCreation{}, []byte(`{"ceremony":"register"}`), nil
}

func (s *stubVerifier) FinishRegistration(rp RelyingParty, state, response []byte) (*webauthn.Credential, error) {
	s.setRP(rp)
	if s.finishErr != nil {
		return nil, s.finishErr
	}
	return s.registerCred, nil
}

func (s *stubVerifier) BeginLogin(rp RelyingParty) (*protocol.CredentialAssertion, []byte, error) {
	s.setRP(rp)
	if s.beginErr != nil {
		return nil, nil, s.beginErr
	}
	return &protocol.CredentialAssertion{}, []byte(`{"ceremony":"login"}`), nil
}

func (s *stubVerifier) FinishLogin(rp RelyingParty, record *EnrollmentRecord, state, response []byte) (*webauthn.Credential, error) {
	s.setRP(rp)
	if s.finishErr != nil {
		return nil, s.finishErr
	}
	return s.loginCred, nil
}

// testAuthenticator builds an Authenticator over a temp data directory
// with a fake clock and stub verifier.
func testAuthenticator(t *testing.T) (*Authenticator, *fakeClock, *stubVerifier, string) {
	t.Helper()
	dir := t.TempDir()
	clock := newFakeClock()
	verifier := newStubVerifier()
	auth, err := New(Options{DataDir: dir, Clock: clock, Verifier: verifier})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return auth, clock, verifier, dir
}
