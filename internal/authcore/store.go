// ABOUTME: Secure on-disk persistence for enrollment and session documents
// ABOUTME: Atomic write-temp+rename JSON files with 0600 permissions

package authcore

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

const (
	credentialsFile = "auth.json"
	sessionsFile    = "sessions.json"
)

// CredentialRecord is one enrolled WebAuthn credential. Binary fields are
// base64url-encoded strings so the document is plain JSON on disk.
type CredentialRecord struct {
	ID         string   `json:"id"`
	PublicKey  string   `json:"publicKey"`
	Counter    uint32   `json:"counter"`
	Transports []string `json:"transports"`
}

// EnrollmentRecord is the single process-wide enrollment document. The
// rpId captured at enrollment stays authoritative for all future logins.
type EnrollmentRecord struct {
	RPID        string             `json:"rpId"`
	Credentials []CredentialRecord `json:"credentials"`
	CreatedAt   string             `json:"createdAt"`
}

// SessionRecord is the persisted shape of one live session.
type SessionRecord struct {
	ExpiresAt int64 `json:"expiresAt"` // unix milliseconds
}

// SecureStore persists the two auth documents under the data directory.
// It is a pure I/O collaborator: the in-memory tables owned by the
// Authenticator remain authoritative during a process lifetime.
type SecureStore struct {
	dir    string
	logger *slog.Logger
}

// NewSecureStore creates the data directory if needed and returns a store.
func NewSecureStore(dir string) (*SecureStore, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}
	return &SecureStore{
		dir:    dir,
		logger: slog.Default().With("component", "authstore"),
	}, nil
}

func (s *SecureStore) credentialsPath() string { return filepath.Join(s.dir, credentialsFile) }
func (s *SecureStore) sessionsPath() string    { return filepath.Join(s.dir, sessionsFile) }

// IsEnrolled reports whether the credentials document exists on disk.
func (s *SecureStore) IsEnrolled() bool {
	_, err := os.Stat(s.credentialsPath())
	return err == nil
}

// LoadCredentials reads the enrollment record. Any read or parse failure
// yields nil; the store never raises on load.
func (s *SecureStore) LoadCredentials() *EnrollmentRecord {
	data, err := os.ReadFile(s.credentialsPath())
	if err != nil {
		return nil
	}
	var rec EnrollmentRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		s.logger.Warn("credentials file unreadable, treating as unenrolled", "error", err)
		return nil
	}
	return &rec
}

// SaveCredentials atomically replaces the on-disk enrollment record.
// Failure here is fatal to the calling ceremony and surfaces as ErrStoreWrite.
func (s *SecureStore) SaveCredentials(rec *EnrollmentRecord) error {
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreWrite, err)
	}
	if err := s.writeFile(s.credentialsPath(), data); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreWrite, err)
	}
	return nil
}

// LoadSessions reads the persisted session table. A missing or corrupt
// file yields an empty map; previously issued tokens are then effectively
// revoked, which is an acceptable failure mode.
func (s *SecureStore) LoadSessions() map[string]SessionRecord {
	sessions := make(map[string]SessionRecord)
	data, err := os.ReadFile(s.sessionsPath())
	if err != nil {
		return sessions
	}
	if err := json.Unmarshal(data, &sessions); err != nil {
		s.logger.Warn("sessions file unreadable, starting empty", "error", err)
		return make(map[string]SessionRecord)
	}
	return sessions
}

// SaveSessions replaces the on-disk session table. Write failures are
// logged and swallowed: the in-memory registry stays authoritative, so a
// failed flush costs durability, not correctness.
func (s *SecureStore) SaveSessions(sessions map[string]SessionRecord) {
	data, err := json.MarshalIndent(sessions, "", "  ")
	if err != nil {
		s.logger.Error("failed to encode sessions", "error", err)
		return
	}
	if err := s.writeFile(s.sessionsPath(), data); err != nil {
		s.logger.Error("failed to persist sessions", "error", err)
	}
}

// writeFile writes data to path via a same-directory temp file and rename,
// so readers never observe a torn document. The chmod after rename covers
// platforms where the temp file mode was not applied; on filesystems
// without POSIX modes the attempt is a silent no-op.
func (s *SecureStore) writeFile(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	_ = os.Chmod(path, 0o600)
	return nil
}
