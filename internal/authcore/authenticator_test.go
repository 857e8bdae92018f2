// ABOUTME: Scenario tests for the authenticator orchestration
// ABOUTME: Enrollment, login, rate limiting, and counter handling end to end

package authcore

import (
	"encoding/json"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// enrollResponse carries the stub credential id ("cred-1") base64url-encoded.
var enrollResponse = []byte(`{"id":"Y3JlZC0x","type":"public-key"}`)

func testRequest(host, source string) Request {
	return Request{Host: host, Source: source}
}

func TestAuthenticator_FreshEnrollFlow(t *testing.T) {
	auth, _, _, dir := testAuthenticator(t)

	assert.False(t, auth.IsEnrolled())

	challenge, err := auth.BeginEnrollment(testRequest("app.local", "1.2.3.4"))
	require.NoError(t, err)
	require.NotNil(t, challenge.Options)
	require.NotEmpty(t, challenge.ChallengeID)

	token, err := auth.FinishEnrollment(testRequest("app.local", "1.2.3.4"), enrollResponse, challenge.ChallengeID)
	require.NoError(t, err)
	assert.True(t, auth.ValidateSession(token))
	assert.True(t, auth.IsEnrolled())

	if runtime.GOOS != "windows" {
		info, err := os.Stat(filepath.Join(dir, "auth.json"))
		require.NoError(t, err)
		assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
	}

	// The challenge was consumed by the first finish.
	_, err = auth.FinishEnrollment(testRequest("app.local", "1.2.3.4"), enrollResponse, challenge.ChallengeID)
	assert.ErrorIs(t, err, ErrChallengeInvalid)
}

func TestAuthenticator_EnrollmentRecordShape(t *testing.T) {
	auth, _, _, dir := testAuthenticator(t)

	challenge, err := auth.BeginEnrollment(testRequest("App.Local:8443", "1.2.3.4"))
	require.NoError(t, err)
	_, err = auth.FinishEnrollment(testRequest("App.Local:8443", "1.2.3.4"), enrollResponse, challenge.ChallengeID)
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(dir, "auth.json"))
	require.NoError(t, err)

	var rec EnrollmentRecord
	require.NoError(t, json.Unmarshal(data, &rec))
	assert.Equal(t, "app.local", rec.RPID, "host lowercased, port stripped")
	require.Len(t, rec.Credentials, 1)
	assert.Equal(t, "Y3JlZC0x", rec.Credentials[0].ID)
	assert.Equal(t, uint32(5), rec.Credentials[0].Counter)
	assert.Equal(t, []string{"internal"}, rec.Credentials[0].Transports)
	assert.Equal(t, "2025-06-01T12:00:00.000Z", rec.CreatedAt)
}

func TestAuthenticator_ExpiredChallenge(t *testing.T) {
	auth, clock, _, dir := testAuthenticator(t)

	challenge, err := auth.BeginEnrollment(testRequest("app.local", "1.2.3.4"))
	require.NoError(t, err)

	clock.Advance(5*time.Minute + time.Millisecond)

	_, err = auth.FinishEnrollment(testRequest("app.local", "1.2.3.4"), enrollResponse, challenge.ChallengeID)
	assert.ErrorIs(t, err, ErrChallengeInvalid)

	// No record was written.
	_, statErr := os.Stat(filepath.Join(dir, "auth.json"))
	assert.True(t, os.IsNotExist(statErr))
	assert.False(t, auth.IsEnrolled())
}

func TestAuthenticator_RateLimit(t *testing.T) {
	auth, clock, _, _ := testAuthenticator(t)

	for i := 0; i < 10; i++ {
		_, err := auth.BeginEnrollment(testRequest("app.local", "1.2.3.4"))
		require.NoError(t, err, "attempt %d", i+1)
	}

	_, err := auth.BeginEnrollment(testRequest("app.local", "1.2.3.4"))
	assert.ErrorIs(t, err, ErrRateLimited)

	// Another source is unaffected.
	_, err = auth.BeginEnrollment(testRequest("app.local", "5.6.7.8"))
	require.NoError(t, err)

	clock.Advance(15*time.Minute + time.Millisecond)
	_, err = auth.BeginEnrollment(testRequest("app.local", "1.2.3.4"))
	require.NoError(t, err)
}

func TestAuthenticator_LoginBeforeEnrollment(t *testing.T) {
	auth, _, _, _ := testAuthenticator(t)

	_, err := auth.BeginLogin(testRequest("app.local", "1.2.3.4"))
	assert.ErrorIs(t, err, ErrNotEnrolled)
}

func TestAuthenticator_LoginUsesStoredRelyingParty(t *testing.T) {
	auth, clock, verifier, dir := testAuthenticator(t)

	challenge, err := auth.BeginEnrollment(testRequest("a.local", "1.2.3.4"))
	require.NoError(t, err)
	_, err = auth.FinishEnrollment(testRequest("a.local", "1.2.3.4"), enrollResponse, challenge.ChallengeID)
	require.NoError(t, err)

	// Restarted process, host header rotated to b.local.
	restarted, err := New(Options{DataDir: dir, Clock: clock, Verifier: verifier})
	require.NoError(t, err)

	login, err := restarted.BeginLogin(testRequest("b.local", "1.2.3.4"))
	require.NoError(t, err)
	assert.Equal(t, "a.local", verifier.RP().ID, "rpId from stored record, not request")

	_, err = restarted.FinishLogin(testRequest("b.local", "1.2.3.4"), enrollResponse, login.ChallengeID)
	require.NoError(t, err)
	assert.Equal(t, "a.local", verifier.RP().ID)
	assert.Equal(t, "http://b.local", verifier.RP().Origin, "origin from current request")
}

func TestAuthenticator_LoginUpdatesCounter(t *testing.T) {
	auth, _, verifier, dir := testAuthenticator(t)

	challenge, err := auth.BeginEnrollment(testRequest("app.local", "1.2.3.4"))
	require.NoError(t, err)
	_, err = auth.FinishEnrollment(testRequest("app.local", "1.2.3.4"), enrollResponse, challenge.ChallengeID)
	require.NoError(t, err)

	verifier.loginCred.Authenticator.SignCount = 7

	login, err := auth.BeginLogin(testRequest("app.local", "1.2.3.4"))
	require.NoError(t, err)
	token, err := auth.FinishLogin(testRequest("app.local", "1.2.3.4"), enrollResponse, login.ChallengeID)
	require.NoError(t, err)
	assert.True(t, auth.ValidateSession(token))

	data, err := os.ReadFile(filepath.Join(dir, "auth.json"))
	require.NoError(t, err)
	var rec EnrollmentRecord
	require.NoError(t, json.Unmarshal(data, &rec))
	assert.Equal(t, uint32(7), rec.Credentials[0].Counter)
}

func TestAuthenticator_CloneWarningRejectsLogin(t *testing.T) {
	auth, _, verifier, _ := testAuthenticator(t)

	challenge, err := auth.BeginEnrollment(testRequest("app.local", "1.2.3.4"))
	require.NoError(t, err)
	_, err = auth.FinishEnrollment(testRequest("app.local", "1.2.3.4"), enrollResponse, challenge.ChallengeID)
	require.NoError(t, err)

	verifier.loginCred.Authenticator.CloneWarning = true

	login, err := auth.BeginLogin(testRequest("app.local", "1.2.3.4"))
	require.NoError(t, err)
	_, err = auth.FinishLogin(testRequest("app.local", "1.2.3.4"), enrollResponse, login.ChallengeID)
	assert.ErrorIs(t, err, ErrVerificationFailed)
}

func TestAuthenticator_UnknownCredential(t *testing.T) {
	auth, _, _, _ := testAuthenticator(t)

	challenge, err := auth.BeginEnrollment(testRequest("app.local", "1.2.3.4"))
	require.NoError(t, err)
	_, err = auth.FinishEnrollment(testRequest("app.local", "1.2.3.4"), enrollResponse, challenge.ChallengeID)
	require.NoError(t, err)

	login, err := auth.BeginLogin(testRequest("app.local", "1.2.3.4"))
	require.NoError(t, err)

	// "other-1" base64url-encoded; not in the stored record.
	otherResponse := []byte(`{"id":"b3RoZXItMQ","type":"public-key"}`)
	_, err = auth.FinishLogin(testRequest("app.local", "1.2.3.4"), otherResponse, login.ChallengeID)
	assert.ErrorIs(t, err, ErrUnknownCredential)
}

func TestAuthenticator_ReEnrollmentReplacesRecord(t *testing.T) {
	auth, _, verifier, dir := testAuthenticator(t)

	challenge, err := auth.BeginEnrollment(testRequest("a.local", "1.2.3.4"))
	require.NoError(t, err)
	_, err = auth.FinishEnrollment(testRequest("a.local", "1.2.3.4"), enrollResponse, challenge.ChallengeID)
	require.NoError(t, err)

	verifier.registerCred.ID = []byte("cred-2")

	challenge, err = auth.BeginEnrollment(testRequest("b.local", "1.2.3.4"))
	require.NoError(t, err)
	_, err = auth.FinishEnrollment(testRequest("b.local", "1.2.3.4"), enrollResponse, challenge.ChallengeID)
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(dir, "auth.json"))
	require.NoError(t, err)
	var rec EnrollmentRecord
	require.NoError(t, json.Unmarshal(data, &rec))
	assert.Equal(t, "b.local", rec.RPID)
	require.Len(t, rec.Credentials, 1, "prior record fully replaced")
}

func TestAuthenticator_SessionDelegation(t *testing.T) {
	auth, _, _, _ := testAuthenticator(t)

	token, err := auth.CreateSession()
	require.NoError(t, err)
	assert.True(t, auth.ValidateSession(token))

	auth.RevokeSession(token)
	assert.False(t, auth.ValidateSession(token))
	auth.RevokeSession(token) // idempotent
}

func TestAuthenticator_SweepPurgesExpiredState(t *testing.T) {
	auth, clock, _, _ := testAuthenticator(t)

	token, err := auth.CreateSession()
	require.NoError(t, err)
	challenge, err := auth.BeginEnrollment(testRequest("app.local", "1.2.3.4"))
	require.NoError(t, err)

	clock.Advance(8 * 24 * time.Hour)
	auth.Sweep()

	assert.False(t, auth.ValidateSession(token))
	_, err = auth.FinishEnrollment(testRequest("app.local", "1.2.3.4"), enrollResponse, challenge.ChallengeID)
	assert.ErrorIs(t, err, ErrChallengeInvalid)
}

func TestRequest_RelyingPartyID(t *testing.T) {
	tests := []struct {
		name string
		host string
		want string
	}{
		{name: "bare host", host: "app.local", want: "app.local"},
		{name: "host with port", host: "app.local:8443", want: "app.local"},
		{name: "uppercase", host: "App.LOCAL", want: "app.local"},
		{name: "empty defaults to localhost", host: "", want: "localhost"},
		{name: "ipv4 literal", host: "127.0.0.1:3000", want: "127.0.0.1"},
		{name: "ipv6 literal", host: "[::1]:3000", want: "::1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Request{Host: tt.host}.RelyingPartyID()
			if got != tt.want {
				t.Errorf("RelyingPartyID() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRequest_Origin(t *testing.T) {
	tests := []struct {
		name string
		req  Request
		want string
	}{
		{name: "plain http", req: Request{Host: "app.local:8080"}, want: "http://app.local:8080"},
		{name: "tls", req: Request{Host: "app.local", Secure: true}, want: "https://app.local"},
		{name: "forwarded https", req: Request{Host: "app.local", ForwardedProto: "https"}, want: "https://app.local"},
		{name: "forwarded http stays http", req: Request{Host: "app.local", ForwardedProto: "http"}, want: "http://app.local"},
		{name: "empty host", req: Request{}, want: "http://localhost"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.req.Origin()
			if got != tt.want {
				t.Errorf("Origin() = %q, want %q", got, tt.want)
			}
		})
	}
}
