// ABOUTME: Ceremony verifier boundary over the go-webauthn library
// ABOUTME: Adapts the single enrollment record to the webauthn.User interface

package authcore

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/go-webauthn/webauthn/protocol"
	"github.com/go-webauthn/webauthn/webauthn"
)

const (
	rpDisplayName      = "Workbench"
	accountName        = "workbench"
	accountDisplayName = "Workbench"
)

// RelyingParty pins one ceremony to a relying party id and origin. Both
// are request-derived, so a fresh value is built per ceremony.
type RelyingParty struct {
	ID     string
	Origin string
}

// CeremonyVerifier is the boundary to the WebAuthn implementation. The
// opaque state returned by BeginX holds the challenge and verification
// context for the ceremony and is kept in the ChallengeLedger until the
// matching FinishX consumes it. The interface exists so tests can
// substitute a stub for the cryptographic work.
type CeremonyVerifier interface {
	BeginRegistration(rp RelyingParty) (*protocol.CredentialCreation, []byte, error)
	FinishRegistration(rp RelyingParty, state, response []byte) (*webauthn.Credential, error)
	BeginLogin(rp RelyingParty) (*protocol.CredentialAssertion, []byte, error)
	FinishLogin(rp RelyingParty, record *EnrollmentRecord, state, response []byte) (*webauthn.Credential, error)
}

// localUser adapts the enrollment record to webauthn.User. The host has
// exactly one account, so the user handle is a fixed label.
type localUser struct {
	record *EnrollmentRecord
}

func (u localUser) WebAuthnID() []byte          { return []byte(accountName) }
func (u localUser) WebAuthnName() string        { return accountName }
func (u localUser) WebAuthnDisplayName() string { return accountDisplayName }

func (u localUser) WebAuthnCredentials() []webauthn.Credential {
	if u.record == nil {
		return nil
	}
	creds := make([]webauthn.Credential, 0, len(u.record.Credentials))
	for _, c := range u.record.Credentials {
		id, err := base64.RawURLEncoding.DecodeString(c.ID)
		if err != nil {
			continue
		}
		key, err := base64.RawURLEncoding.DecodeString(c.PublicKey)
		if err != nil {
			continue
		}
		transports := make([]protocol.AuthenticatorTransport, len(c.Transports))
		for i, t := range c.Transports {
			transports[i] = protocol.AuthenticatorTransport(t)
		}
		creds = append(creds, webauthn.Credential{
			ID:        id,
			PublicKey: key,
			Transport: transports,
			Authenticator: webauthn.Authenticator{
				SignCount: c.Counter,
			},
		})
	}
	return creds
}

type webAuthnVerifier struct{}

// NewCeremonyVerifier returns the production verifier backed by go-webauthn.
func NewCeremonyVerifier() CeremonyVerifier { return webAuthnVerifier{} }

// relyingParty builds a WebAuthn instance for one ceremony. rpId and
// origin vary per request, so the instance cannot be shared.
func (webAuthnVerifier) relyingParty(rp RelyingParty) (*webauthn.WebAuthn, error) {
	return webauthn.New(&webauthn.Config{
		RPDisplayName: rpDisplayName,
		RPID:          rp.ID,
		RPOrigins:     []string{rp.Origin},
	})
}

// BeginRegistration produces creation options for a platform-bound,
// resident, user-verified credential. Resident keys are required so the
// second visit can log in without a username; this is a deliberate trade
// of cross-device portability for a passwordless local flow.
func (v webAuthnVerifier) BeginRegistration(rp RelyingParty) (*protocol.CredentialCreation, []byte, error) {
	w, err := v.relyingParty(rp)
	if err != nil {
		return nil, nil, err
	}
	options, session, err := w.BeginRegistration(localUser{},
		webauthn.WithAuthenticatorSelection(protocol.AuthenticatorSelection{
			AuthenticatorAttachment: protocol.Platform,
			ResidentKey:             protocol.ResidentKeyRequirementRequired,
			UserVerification:        protocol.VerificationPreferred,
		}),
		webauthn.WithConveyancePreference(protocol.PreferNoAttestation),
	)
	if err != nil {
		return nil, nil, err
	}
	state, err := json.Marshal(session)
	if err != nil {
		return nil, nil, err
	}
	return options, state, nil
}

func (v webAuthnVerifier) FinishRegistration(rp RelyingParty, state, response []byte) (*webauthn.Credential, error) {
	w, err := v.relyingParty(rp)
	if err != nil {
		return nil, err
	}
	var session webauthn.SessionData
	if err := json.Unmarshal(state, &session); err != nil {
		return nil, fmt.Errorf("decoding ceremony state: %w", err)
	}
	parsed, err := protocol.ParseCredentialCreationResponseBody(bytes.NewReader(response))
	if err != nil {
		return nil, err
	}
	return w.CreateCredential(localUser{}, session, parsed)
}

// BeginLogin produces assertion options with an empty allow list, relying
// on the resident credential minted at enrollment.
func (v webAuthnVerifier) BeginLogin(rp RelyingParty) (*protocol.CredentialAssertion, []byte, error) {
	w, err := v.relyingParty(rp)
	if err != nil {
		return nil, nil, err
	}
	options, session, err := w.BeginDiscoverableLogin()
	if err != nil {
		return nil, nil, err
	}
	state, err := json.Marshal(session)
	if err != nil {
		return nil, nil, err
	}
	return options, state, nil
}

func (v webAuthnVerifier) FinishLogin(rp RelyingParty, record *EnrollmentRecord, state, response []byte) (*webauthn.Credential, error) {
	w, err := v.relyingParty(rp)
	if err != nil {
		return nil, err
	}
	var session webauthn.SessionData
	if err := json.Unmarshal(state, &session); err != nil {
		return nil, fmt.Errorf("decoding ceremony state: %w", err)
	}
	parsed, err := protocol.ParseCredentialRequestResponseBody(bytes.NewReader(response))
	if err != nil {
		return nil, err
	}
	user := localUser{record: record}
	return w.ValidateDiscoverableLogin(func(rawID, userHandle []byte) (webauthn.User, error) {
		return user, nil
	}, session, parsed)
}
