// ABOUTME: SQLite-backed conversation history for the workbench host
// ABOUTME: Persists chat threads and messages using modernc.org/sqlite

package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

// Thread is one conversation with an AI provider.
type Thread struct {
	ID        string
	Title     string
	Provider  string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Message is a single entry within a thread.
type Message struct {
	ID        string
	ThreadID  string
	Sender    string
	Content   string
	CreatedAt time.Time
}

// Store persists conversation history in a SQLite database.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open creates a history store at the given path. The schema is created
// if it doesn't exist; parent directories are created if needed.
func Open(path string) (*Store, error) {
	logger := slog.Default().With("component", "history")

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// WAL mode for better concurrent read performance
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	s := &Store{db: db, logger: logger}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	logger.Info("history store initialized", "path", path)
	return s, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS threads (
			id TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			provider TEXT NOT NULL,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		);

		CREATE TABLE IF NOT EXISTS messages (
			id TEXT PRIMARY KEY,
			thread_id TEXT NOT NULL,
			sender TEXT NOT NULL,
			content TEXT NOT NULL,
			created_at DATETIME NOT NULL,
			FOREIGN KEY (thread_id) REFERENCES threads(id) ON DELETE CASCADE
		);

		CREATE INDEX IF NOT EXISTS idx_messages_thread_created
			ON messages(thread_id, created_at);

		CREATE INDEX IF NOT EXISTS idx_threads_updated
			ON threads(updated_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

// CreateThread inserts a new thread. A missing ID is generated; missing
// timestamps default to now.
func (s *Store) CreateThread(ctx context.Context, thread *Thread) error {
	if thread.ID == "" {
		thread.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	if thread.CreatedAt.IsZero() {
		thread.CreatedAt = now
	}
	if thread.UpdatedAt.IsZero() {
		thread.UpdatedAt = now
	}

	query := `
		INSERT INTO threads (id, title, provider, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, query,
		thread.ID,
		thread.Title,
		thread.Provider,
		thread.CreatedAt.Format(time.RFC3339),
		thread.UpdatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("inserting thread: %w", err)
	}

	s.logger.Debug("created thread", "id", thread.ID, "provider", thread.Provider)
	return nil
}

// GetThread retrieves a thread by ID. Returns ErrNotFound if absent.
func (s *Store) GetThread(ctx context.Context, id string) (*Thread, error) {
	query := `
		SELECT id, title, provider, created_at, updated_at
		FROM threads WHERE id = ?
	`
	var thread Thread
	var createdAt, updatedAt string
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&thread.ID, &thread.Title, &thread.Provider, &createdAt, &updatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying thread: %w", err)
	}

	thread.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	thread.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return &thread, nil
}

// ListThreads returns up to limit threads, most recently updated first.
func (s *Store) ListThreads(ctx context.Context, limit int) ([]*Thread, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `
		SELECT id, title, provider, created_at, updated_at
		FROM threads ORDER BY updated_at DESC LIMIT ?
	`
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("listing threads: %w", err)
	}
	defer rows.Close()

	var threads []*Thread
	for rows.Next() {
		var thread Thread
		var createdAt, updatedAt string
		if err := rows.Scan(&thread.ID, &thread.Title, &thread.Provider, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("scanning thread: %w", err)
		}
		thread.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		thread.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
		threads = append(threads, &thread)
	}
	return threads, rows.Err()
}

// AppendMessage inserts a message and bumps the thread's updated_at.
// Returns ErrNotFound if the thread does not exist.
func (s *Store) AppendMessage(ctx context.Context, msg *Message) error {
	if msg.ID == "" {
		msg.ID = uuid.New().String()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`UPDATE threads SET updated_at = ? WHERE id = ?`,
		msg.CreatedAt.Format(time.RFC3339), msg.ThreadID,
	)
	if err != nil {
		return fmt.Errorf("touching thread: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO messages (id, thread_id, sender, content, created_at) VALUES (?, ?, ?, ?, ?)`,
		msg.ID, msg.ThreadID, msg.Sender, msg.Content, msg.CreatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("inserting message: %w", err)
	}

	return tx.Commit()
}

// ThreadMessages returns up to limit messages for a thread in
// chronological order.
func (s *Store) ThreadMessages(ctx context.Context, threadID string, limit int) ([]*Message, error) {
	if limit <= 0 {
		limit = 200
	}
	query := `
		SELECT id, thread_id, sender, content, created_at
		FROM messages WHERE thread_id = ?
		ORDER BY created_at ASC LIMIT ?
	`
	rows, err := s.db.QueryContext(ctx, query, threadID, limit)
	if err != nil {
		return nil, fmt.Errorf("listing messages: %w", err)
	}
	defer rows.Close()

	var messages []*Message
	for rows.Next() {
		var msg Message
		var createdAt string
		if err := rows.Scan(&msg.ID, &msg.ThreadID, &msg.Sender, &msg.Content, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning message: %w", err)
		}
		msg.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		messages = append(messages, &msg)
	}
	return messages, rows.Err()
}

// DeleteThread removes a thread and its messages.
// Returns ErrNotFound if the thread does not exist.
func (s *Store) DeleteThread(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM threads WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting thread: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	s.logger.Debug("deleted thread", "id", id)
	return nil
}
