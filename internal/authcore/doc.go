// Package authcore implements the workbench host's local authentication
// core: a passwordless, WebAuthn-based single-user authenticator.
//
// # Components
//
// The core is built from small cooperating pieces, each owned exclusively
// by the Authenticator:
//
//   - SecureStore: atomic persistence of auth.json and sessions.json in
//     the data directory with 0600 permissions.
//   - ChallengeLedger: in-memory table of outstanding, time-bounded,
//     single-use ceremony challenges.
//   - RateLimiter: per-source attempt counter with a sliding reset window.
//   - SessionRegistry: live bearer tokens, mirrored to disk.
//   - Janitor: periodic sweep of expired entries.
//
// # Ceremonies
//
// Enrollment and login follow the W3C WebAuthn ceremony shape:
//
//	challenge, err := auth.BeginEnrollment(req)
//	token, err := auth.FinishEnrollment(req, response, challenge.ChallengeID)
//
// BeginX returns ready-to-send credential options plus an opaque challenge
// id; FinishX consumes the challenge (one shot), verifies the browser's
// response and returns an opaque bearer session token.
//
// Exactly one enrollment record exists per host. Enrolling again replaces
// the previous record. Sessions are fixed-lifetime (7 days) with no
// sliding renewal; possession of the token alone authorizes the holder.
package authcore
