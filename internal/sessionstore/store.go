package sessionstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"uploadflow/internal/config"
	"uploadflow/internal/services"
)

// FileName is the index database name inside the log directory.
const FileName = "sessions.db"

// Session is one indexed web session.
type Session struct {
	ID           string     `json:"id" yaml:"id"`
	Dir          string     `json:"dir" yaml:"dir"`
	OriginalName string     `json:"original_name,omitempty" yaml:"original_name,omitempty"`
	CreatedAt    time.Time  `json:"created_at" yaml:"created_at"`
	LastAccess   time.Time  `json:"last_access" yaml:"last_access"`
	UploadedAt   *time.Time `json:"uploaded_at,omitempty" yaml:"uploaded_at,omitempty"`
}

// Store manages the session index backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// OpenForConfig opens the index in the configured log directory.
func OpenForConfig(cfg *config.Config) (*Store, error) {
	return Open(filepath.Join(cfg.Paths.LogDir, FileName))
}

// Open initializes or connects to the index database and applies migrations.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create index directory: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: path}
	if err := store.applyMigrations(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Path returns the database location.
func (s *Store) Path() string {
	return s.path
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Create inserts a new session row.
func (s *Store) Create(ctx context.Context, session Session) error {
	if strings.TrimSpace(session.ID) == "" {
		return services.Wrap(services.ErrValidation, "", "create session", "session id is required", nil)
	}
	now := time.Now().UTC()
	if session.CreatedAt.IsZero() {
		session.CreatedAt = now
	}
	if session.LastAccess.IsZero() {
		session.LastAccess = session.CreatedAt
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions (id, dir, original_name, created_at, last_access) VALUES (?, ?, ?, ?, ?)`,
		session.ID,
		session.Dir,
		nullableString(session.OriginalName),
		formatTime(session.CreatedAt),
		formatTime(session.LastAccess),
	)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

// Touch records activity on a session.
func (s *Store) Touch(ctx context.Context, id string, at time.Time) error {
	res, err := s.db.ExecContext(ctx, `UPDATE sessions SET last_access = ? WHERE id = ?`, formatTime(at), id)
	if err != nil {
		return fmt.Errorf("touch session: %w", err)
	}
	return requireRow(res, id)
}

// MarkUploaded records a successful publish.
func (s *Store) MarkUploaded(ctx context.Context, id string, at time.Time) error {
	res, err := s.db.ExecContext(ctx, `UPDATE sessions SET uploaded_at = ?, last_access = ? WHERE id = ?`,
		formatTime(at), formatTime(at), id)
	if err != nil {
		return fmt.Errorf("mark session uploaded: %w", err)
	}
	return requireRow(res, id)
}

// Get fetches one session.
func (s *Store) Get(ctx context.Context, id string) (*Session, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, dir, original_name, created_at, last_access, uploaded_at FROM sessions WHERE id = ?`, id)
	session, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, services.Wrap(services.ErrNotFound, "", "get session", fmt.Sprintf("session %s is not indexed", id), nil)
	}
	if err != nil {
		return nil, err
	}
	return session, nil
}

// List returns every session, newest first.
func (s *Store) List(ctx context.Context) ([]Session, error) {
	return s.query(ctx,
		`SELECT id, dir, original_name, created_at, last_access, uploaded_at FROM sessions ORDER BY created_at DESC`)
}

// Expired returns sessions whose last access is before cutoff.
func (s *Store) Expired(ctx context.Context, cutoff time.Time) ([]Session, error) {
	return s.query(ctx,
		`SELECT id, dir, original_name, created_at, last_access, uploaded_at FROM sessions WHERE last_access < ? ORDER BY last_access`,
		formatTime(cutoff))
}

// Delete removes a session row. Deleting an unknown id is not an error.
func (s *Store) Delete(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

func (s *Store) query(ctx context.Context, query string, args ...any) ([]Session, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	var sessions []Session
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, *session)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}
	return sessions, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSession(row scanner) (*Session, error) {
	var (
		session      Session
		originalName sql.NullString
		createdAt    string
		lastAccess   string
		uploadedAt   sql.NullString
	)
	if err := row.Scan(&session.ID, &session.Dir, &originalName, &createdAt, &lastAccess, &uploadedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan session: %w", err)
	}
	session.OriginalName = originalName.String
	var err error
	if session.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if session.LastAccess, err = parseTime(lastAccess); err != nil {
		return nil, err
	}
	if uploadedAt.Valid && uploadedAt.String != "" {
		at, err := parseTime(uploadedAt.String)
		if err != nil {
			return nil, err
		}
		session.UploadedAt = &at
	}
	return &session, nil
}

func requireRow(res sql.Result, id string) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return services.Wrap(services.ErrNotFound, "", "update session", fmt.Sprintf("session %s is not indexed", id), nil)
	}
	return nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(value string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", value, err)
	}
	return t, nil
}

func nullableString(value string) any {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return value
}
