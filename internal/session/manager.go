package session

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"uploadflow/internal/logging"
	"uploadflow/internal/services"
	"uploadflow/internal/sessionstore"
)

// LockFile is the advisory lock held while a session runs a stage.
const LockFile = ".session.lock"

// ErrBusy reports that another request holds the session lock.
var ErrBusy = errors.New("session is busy")

// Session is a resolved, existing session.
type Session struct {
	ID  string
	Dir string
}

// Manager creates, resolves, locks, and expires sessions.
type Manager struct {
	root   string
	store  *sessionstore.Store
	ttl    time.Duration
	logger *slog.Logger
	now    func() time.Time
}

// NewManager builds a Manager rooted at uploadsRoot.
func NewManager(uploadsRoot string, store *sessionstore.Store, ttl time.Duration, logger *slog.Logger) *Manager {
	return &Manager{
		root:   uploadsRoot,
		store:  store,
		ttl:    ttl,
		logger: logging.NewComponentLogger(logger, "sessions"),
		now:    time.Now,
	}
}

// Root returns the uploads root.
func (m *Manager) Root() string {
	return m.root
}

// ValidateID rejects anything that is not a canonical UUID string, which also
// rules out path separators and traversal.
func ValidateID(id string) error {
	parsed, err := uuid.Parse(id)
	if err != nil || parsed.String() != id {
		return services.Wrap(services.ErrValidation, "", "session", fmt.Sprintf("invalid session id %q", id), err)
	}
	return nil
}

// Create mints a new session and its directory.
func (m *Manager) Create(ctx context.Context, originalName string) (Session, error) {
	id := uuid.NewString()
	dir := filepath.Join(m.root, id)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Session{}, fmt.Errorf("create session directory: %w", err)
	}
	now := m.now().UTC()
	if err := m.store.Create(ctx, sessionstore.Session{
		ID:           id,
		Dir:          dir,
		OriginalName: filepath.Base(originalName),
		CreatedAt:    now,
		LastAccess:   now,
	}); err != nil {
		_ = os.RemoveAll(dir)
		return Session{}, err
	}
	logging.WithContext(services.WithSessionID(ctx, id), m.logger).Info("session created",
		logging.String(logging.FieldEventType, "session_created"),
		logging.String("original_name", originalName),
	)
	return Session{ID: id, Dir: dir}, nil
}

// Resolve validates id, confirms its directory exists, and records access.
// Directories missing from the index are re-registered.
func (m *Manager) Resolve(ctx context.Context, id string) (Session, error) {
	if err := ValidateID(id); err != nil {
		return Session{}, err
	}
	dir := filepath.Join(m.root, id)
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		if err == nil || errors.Is(err, fs.ErrNotExist) {
			return Session{}, services.Wrap(services.ErrNotFound, "", "session", "session not found", err)
		}
		return Session{}, fmt.Errorf("stat session directory: %w", err)
	}
	now := m.now().UTC()
	if err := m.store.Touch(ctx, id, now); err != nil {
		if !errors.Is(err, services.ErrNotFound) {
			return Session{}, err
		}
		if err := m.store.Create(ctx, sessionstore.Session{ID: id, Dir: dir, CreatedAt: now}); err != nil {
			return Session{}, err
		}
	}
	return Session{ID: id, Dir: dir}, nil
}

// MarkUploaded records a successful publish in the index.
func (m *Manager) MarkUploaded(ctx context.Context, id string) error {
	return m.store.MarkUploaded(ctx, id, m.now().UTC())
}

// Lock takes the session's advisory lock without blocking. The returned
// function releases it.
func (m *Manager) Lock(s Session) (func(), error) {
	lock := flock.New(filepath.Join(s.Dir, LockFile))
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire session lock: %w", err)
	}
	if !ok {
		return nil, ErrBusy
	}
	return func() {
		if err := lock.Unlock(); err != nil {
			m.logger.Warn("failed to release session lock", logging.String(logging.FieldSessionID, s.ID), logging.Error(err))
		}
	}, nil
}

// Delete removes a session's directory and index row. A session whose lock
// is held is left alone and ErrBusy is returned.
func (m *Manager) Delete(ctx context.Context, id string) error {
	if err := ValidateID(id); err != nil {
		return err
	}
	dir := filepath.Join(m.root, id)
	if _, err := os.Stat(dir); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			if delErr := m.store.Delete(ctx, id); delErr != nil {
				return delErr
			}
			return services.Wrap(services.ErrNotFound, "", "session", "session not found", err)
		}
		return fmt.Errorf("stat session directory: %w", err)
	}
	unlock, err := m.Lock(Session{ID: id, Dir: dir})
	if err != nil {
		return err
	}
	removeErr := os.RemoveAll(dir)
	unlock()
	if removeErr != nil {
		return fmt.Errorf("remove session directory: %w", removeErr)
	}
	if err := m.store.Delete(ctx, id); err != nil {
		return err
	}
	logging.WithContext(services.WithSessionID(ctx, id), m.logger).Info("session deleted",
		logging.String(logging.FieldEventType, "session_deleted"),
	)
	return nil
}

// List returns the indexed sessions, newest first.
func (m *Manager) List(ctx context.Context) ([]sessionstore.Session, error) {
	return m.store.List(ctx)
}

// Reap deletes sessions idle for longer than the TTL and returns how many
// were removed. Busy sessions are skipped until the next pass.
func (m *Manager) Reap(ctx context.Context) (int, error) {
	if m.ttl <= 0 {
		return 0, nil
	}
	cutoff := m.now().UTC().Add(-m.ttl)
	expired, err := m.store.Expired(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, s := range expired {
		err := m.Delete(ctx, s.ID)
		switch {
		case err == nil, errors.Is(err, services.ErrNotFound):
			removed++
		case errors.Is(err, ErrBusy):
			m.logger.Debug("expired session busy; retrying next pass", logging.String(logging.FieldSessionID, s.ID))
		case errors.Is(err, services.ErrValidation):
			// Not a directory this manager created; drop the stray row only.
			if delErr := m.store.Delete(ctx, s.ID); delErr != nil {
				return removed, delErr
			}
		default:
			logging.WarnWithContext(m.logger, "failed to reap session", "session_reap_failed",
				logging.String(logging.FieldSessionID, s.ID),
				logging.Error(err),
				logging.String(logging.FieldImpact, "session directory remains on disk"),
			)
		}
	}
	if removed > 0 {
		m.logger.Info("expired sessions reaped",
			logging.String(logging.FieldEventType, "session_reap"),
			logging.Int("removed", removed),
			logging.Duration("ttl", m.ttl),
		)
	}
	return removed, nil
}

// RunReaper calls Reap every interval until ctx is done.
func (m *Manager) RunReaper(ctx context.Context, interval time.Duration) {
	if interval <= 0 || m.ttl <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := m.Reap(ctx); err != nil && ctx.Err() == nil {
				m.logger.Error("session reap failed", logging.Error(err))
			}
		}
	}
}
