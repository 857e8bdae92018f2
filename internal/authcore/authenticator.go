// ABOUTME: Authenticator orchestrating WebAuthn enrollment and login ceremonies
// ABOUTME: Owns the challenge ledger, rate limiter, and session registry

package authcore

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"slices"
	"strings"

	"github.com/go-webauthn/webauthn/protocol"
	"github.com/go-webauthn/webauthn/webauthn"
)

// createdAtFormat is ISO-8601 with millisecond precision, always UTC.
const createdAtFormat = "2006-01-02T15:04:05.000Z"

// Request carries the transport-derived inputs of one operation. The
// transport layer constructs it; the core never touches the connection.
type Request struct {
	Host           string // Host header as received, may include a port
	Secure         bool   // TLS terminated on the incoming connection
	ForwardedProto string // X-Forwarded-Proto from a reverse proxy, if any
	Source         string // opaque rate-limit key, typically the peer address
}

// FromHTTPRequest derives a Request from an incoming HTTP request.
// source is the caller's rate-limit key.
func FromHTTPRequest(r *http.Request, source string) Request {
	return Request{
		Host:           r.Host,
		Secure:         r.TLS != nil,
		ForwardedProto: r.Header.Get("X-Forwarded-Proto"),
		Source:         source,
	}
}

// RelyingPartyID is the lowercased host with any port stripped, defaulting
// to "localhost" when the Host header is absent.
func (r Request) RelyingPartyID() string {
	host := strings.ToLower(strings.TrimSpace(r.Host))
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	host = strings.Trim(host, "[]")
	if host == "" {
		return "localhost"
	}
	return host
}

// Origin is scheme://host for the incoming request. The scheme is https
// when TLS terminated locally or a proxy forwarded https.
func (r Request) Origin() string {
	scheme := "http"
	if r.Secure || r.ForwardedProto == "https" {
		scheme = "https"
	}
	host := strings.ToLower(strings.TrimSpace(r.Host))
	if host == "" {
		host = "localhost"
	}
	return scheme + "://" + host
}

// EnrollmentChallenge is the outcome of BeginEnrollment: ready-to-send
// W3C creation options plus the opaque id of the pending challenge.
type EnrollmentChallenge struct {
	Options     *protocol.CredentialCreation `json:"options"`
	ChallengeID string                       `json:"challengeId"`
}

// LoginChallenge is the outcome of BeginLogin.
type LoginChallenge struct {
	Options     *protocol.CredentialAssertion `json:"options"`
	ChallengeID string                        `json:"challengeId"`
}

// Authenticator is the single-user WebAuthn orchestrator. It exclusively
// owns the in-memory tables; the SecureStore only holds their durable
// mirror. Construct with New.
type Authenticator struct {
	store    *SecureStore
	ledger   *ChallengeLedger
	limiter  *RateLimiter
	sessions *SessionRegistry
	verifier CeremonyVerifier
	clock    Clock
	logger   *slog.Logger
}

// Options configures New. DataDir is required; zero values elsewhere
// select production defaults.
type Options struct {
	DataDir  string
	Clock    Clock
	Verifier CeremonyVerifier
	Logger   *slog.Logger
}

// New builds an Authenticator rooted at the given data directory,
// loading any persisted sessions.
func New(opts Options) (*Authenticator, error) {
	if opts.DataDir == "" {
		return nil, errors.New("authcore: data directory required")
	}
	clock := opts.Clock
	if clock == nil {
		clock = SystemClock()
	}
	verifier := opts.Verifier
	if verifier == nil {
		verifier = NewCeremonyVerifier()
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default().With("component", "authcore")
	}
	store, err := NewSecureStore(opts.DataDir)
	if err != nil {
		return nil, err
	}
	return &Authenticator{
		store:    store,
		ledger:   NewChallengeLedger(clock),
		limiter:  NewRateLimiter(clock),
		sessions: NewSessionRegistry(store, clock),
		verifier: verifier,
		clock:    clock,
		logger:   logger,
	}, nil
}

// IsEnrolled reports whether a credential has been enrolled on this host.
func (a *Authenticator) IsEnrolled() bool {
	return a.store.IsEnrolled()
}

// BeginEnrollment starts a registration ceremony bound to the request's
// host. The returned challenge id must accompany the browser's response
// in FinishEnrollment.
func (a *Authenticator) BeginEnrollment(req Request) (*EnrollmentChallenge, error) {
	if !a.limiter.Allow(req.Source) {
		return nil, ErrRateLimited
	}
	rp := RelyingParty{ID: req.RelyingPartyID(), Origin: req.Origin()}
	options, state, err := a.verifier.BeginRegistration(rp)
	if err != nil {
		return nil, fmt.Errorf("beginning registration: %w", err)
	}
	id, err := a.ledger.Store(state)
	if err != nil {
		return nil, fmt.Errorf("storing challenge: %w", err)
	}
	a.logger.Debug("enrollment ceremony started", "rp_id", rp.ID)
	return &EnrollmentChallenge{Options: options, ChallengeID: id}, nil
}

// FinishEnrollment consumes the challenge, verifies the registration
// response, persists the enrollment record (replacing any prior record),
// and issues a session token.
func (a *Authenticator) FinishEnrollment(req Request, response []byte, challengeID string) (string, error) {
	if !a.limiter.Allow(req.Source) {
		return "", ErrRateLimited
	}
	state := a.ledger.Take(challengeID)
	if state == nil {
		return "", ErrChallengeInvalid
	}
	rp := RelyingParty{ID: req.RelyingPartyID(), Origin: req.Origin()}
	cred, err := a.verifier.FinishRegistration(rp, state, response)
	if err != nil {
		a.logger.Warn("registration verification rejected", "rp_id", rp.ID, "error", err)
		return "", ErrVerificationFailed
	}
	rec := &EnrollmentRecord{
		RPID:        rp.ID,
		Credentials: []CredentialRecord{credentialRecord(cred)},
		CreatedAt:   a.clock.Now().UTC().Format(createdAtFormat),
	}
	if err := a.store.SaveCredentials(rec); err != nil {
		return "", err
	}
	a.logger.Info("credential enrolled", "rp_id", rp.ID)
	return a.sessions.Create()
}

// BeginLogin starts an authentication ceremony. The relying party id
// comes from the stored record, not the current request: the credential
// was minted against the enrollment-time host.
func (a *Authenticator) BeginLogin(req Request) (*LoginChallenge, error) {
	if !a.limiter.Allow(req.Source) {
		return nil, ErrRateLimited
	}
	rec := a.store.LoadCredentials()
	if rec == nil {
		return nil, ErrNotEnrolled
	}
	rp := RelyingParty{ID: rec.RPID, Origin: req.Origin()}
	options, state, err := a.verifier.BeginLogin(rp)
	if err != nil {
		return nil, fmt.Errorf("beginning login: %w", err)
	}
	id, err := a.ledger.Store(state)
	if err != nil {
		return nil, fmt.Errorf("storing challenge: %w", err)
	}
	a.logger.Debug("login ceremony started", "rp_id", rp.ID)
	return &LoginChallenge{Options: options, ChallengeID: id}, nil
}

// FinishLogin consumes the challenge, verifies the assertion against the
// stored credential, persists the updated sign counter, and issues a
// session token.
func (a *Authenticator) FinishLogin(req Request, response []byte, challengeID string) (string, error) {
	if !a.limiter.Allow(req.Source) {
		return "", ErrRateLimited
	}
	state := a.ledger.Take(challengeID)
	if state == nil {
		return "", ErrChallengeInvalid
	}
	rec := a.store.LoadCredentials()
	if rec == nil {
		return "", ErrNotEnrolled
	}
	credID, err := responseCredentialID(response)
	if err != nil {
		return "", ErrVerificationFailed
	}
	idx := slices.IndexFunc(rec.Credentials, func(c CredentialRecord) bool {
		return c.ID == credID
	})
	if idx < 0 {
		return "", ErrUnknownCredential
	}
	rp := RelyingParty{ID: rec.RPID, Origin: req.Origin()}
	cred, err := a.verifier.FinishLogin(rp, rec, state, response)
	if err != nil {
		a.logger.Warn("login verification rejected", "rp_id", rp.ID, "error", err)
		return "", ErrVerificationFailed
	}
	// A sign counter that failed to advance means a possibly cloned
	// authenticator; reject rather than record it.
	if cred.Authenticator.CloneWarning {
		a.logger.Warn("sign counter did not advance, rejecting login", "rp_id", rp.ID)
		return "", ErrVerificationFailed
	}
	rec.Credentials[idx].Counter = cred.Authenticator.SignCount
	if err := a.store.SaveCredentials(rec); err != nil {
		return "", err
	}
	a.logger.Info("login verified", "rp_id", rp.ID)
	return a.sessions.Create()
}

// CreateSession issues a bearer token outside a ceremony.
func (a *Authenticator) CreateSession() (string, error) {
	return a.sessions.Create()
}

// ValidateSession reports whether token names a live session.
func (a *Authenticator) ValidateSession(token string) bool {
	return a.sessions.Validate(token)
}

// RevokeSession removes token. Idempotent.
func (a *Authenticator) RevokeSession(token string) {
	a.sessions.Revoke(token)
}

// Sweep purges expired sessions, challenges, and rate buckets.
func (a *Authenticator) Sweep() {
	a.sessions.Sweep()
	a.ledger.Sweep()
	a.limiter.Sweep()
}

// credentialRecord normalizes a verified credential to the persisted
// shape: base64url id and key, defaulted transports.
func credentialRecord(cred *webauthn.Credential) CredentialRecord {
	transports := make([]string, 0, len(cred.Transport))
	for _, t := range cred.Transport {
		transports = append(transports, string(t))
	}
	if len(transports) == 0 {
		transports = []string{"internal"}
	}
	return CredentialRecord{
		ID:         base64.RawURLEncoding.EncodeToString(cred.ID),
		PublicKey:  base64.RawURLEncoding.EncodeToString(cred.PublicKey),
		Counter:    cred.Authenticator.SignCount,
		Transports: transports,
	}
}

// responseCredentialID extracts the credential id from a raw assertion
// response and normalizes it to unpadded base64url, so string equality
// against stored ids is reliable regardless of the client's padding.
func responseCredentialID(response []byte) (string, error) {
	var body struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(response, &body); err != nil {
		return "", err
	}
	if body.ID == "" {
		return "", errors.New("missing credential id")
	}
	raw, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(body.ID, "="))
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}
