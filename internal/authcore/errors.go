// ABOUTME: Sentinel errors surfaced by the authentication core
// ABOUTME: Messages are stable and safe to show to end users

package authcore

import "errors"

// Error kinds surfaced by Authenticator operations. Callers classify
// with errors.Is; the messages are user-safe and never include
// credential material.
var (
	// ErrNotEnrolled is returned when login is attempted before any
	// credential has been enrolled.
	ErrNotEnrolled = errors.New("no credential enrolled")

	// ErrChallengeInvalid is returned when a ceremony challenge is
	// unknown, already consumed, or expired.
	ErrChallengeInvalid = errors.New("challenge invalid or expired")

	// ErrVerificationFailed is returned when WebAuthn cryptographic
	// verification rejects the authenticator response.
	ErrVerificationFailed = errors.New("credential verification failed")

	// ErrUnknownCredential is returned when a login response references
	// a credential id that is not in the enrollment record.
	ErrUnknownCredential = errors.New("unknown credential")

	// ErrRateLimited is returned when a source exceeds the attempt window.
	ErrRateLimited = errors.New("too many attempts, try again later")

	// ErrStoreWrite is returned when the durable credential write fails.
	ErrStoreWrite = errors.New("failed to persist credentials")
)
