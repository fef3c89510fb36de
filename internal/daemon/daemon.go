package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/gofrs/flock"

	"uploadflow/internal/config"
	"uploadflow/internal/logging"
	"uploadflow/internal/session"
	"uploadflow/internal/sessionstore"
	"uploadflow/internal/web"
)

// LockFileName is the single-instance lock inside the log directory.
const LockFileName = "uploadflowd.lock"

// Daemon coordinates the web server and session reaper and enforces single-instance execution.
type Daemon struct {
	cfg      *config.Config
	logger   *slog.Logger
	store    *sessionstore.Store
	sessions *session.Manager
	server   *web.Server
	logPath  string

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// Status represents daemon runtime information.
type Status struct {
	Running       bool   `json:"running"`
	Address       string `json:"address,omitempty"`
	SessionDBPath string `json:"session_db_path"`
	LockFilePath  string `json:"lock_file_path"`
	LogPath       string `json:"log_path"`
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, store *sessionstore.Store, sessions *session.Manager, server *web.Server, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || store == nil || sessions == nil || server == nil {
		return nil, errors.New("daemon requires config, session store, session manager, and web server")
	}

	lockPath := filepath.Join(cfg.Paths.LogDir, LockFileName)
	return &Daemon{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		store:    store,
		sessions: sessions,
		server:   server,
		logPath:  filepath.Join(cfg.Paths.LogDir, logging.FileName),
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}, nil
}

// Start acquires the daemon lock, starts serving, and launches the reaper.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another uploadflowd instance is already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	if err := d.server.Start(runCtx); err != nil {
		_ = d.lock.Unlock()
		cancel()
		return fmt.Errorf("start web server: %w", err)
	}
	d.cancel = cancel

	if removed, err := d.sessions.Reap(runCtx); err != nil {
		d.logger.Warn("initial session reap failed", logging.Error(err))
	} else if removed > 0 {
		d.logger.Info("removed expired sessions at startup", logging.Int("removed", removed))
	}
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.sessions.RunReaper(runCtx, d.cfg.ReapInterval())
	}()

	d.running.Store(true)
	d.logger.Info("uploadflowd started",
		logging.String("lock", d.lockPath),
		logging.String("address", d.server.Addr()),
	)
	return nil
}

// Stop stops serving and releases the daemon lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.server.Stop()
	d.wg.Wait()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("uploadflowd stopped")
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// LogPath returns the path to the daemon log file.
func (d *Daemon) LogPath() string {
	return d.logPath
}

// Status returns the current daemon status.
func (d *Daemon) Status() Status {
	status := Status{
		Running:       d.running.Load(),
		SessionDBPath: d.store.Path(),
		LockFilePath:  d.lockPath,
		LogPath:       d.logPath,
	}
	if status.Running {
		status.Address = d.server.Addr()
	}
	return status
}
