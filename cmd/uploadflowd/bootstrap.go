package main

import (
	"fmt"
	"log/slog"

	"uploadflow/internal/config"
	"uploadflow/internal/daemon"
	"uploadflow/internal/session"
	"uploadflow/internal/sessionstore"
	"uploadflow/internal/toolexec"
	"uploadflow/internal/web"
)

// buildDaemon wires the session index, session manager, and web server for cfg.
func buildDaemon(cfg *config.Config, exec toolexec.Runner, logger *slog.Logger) (*daemon.Daemon, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, err
	}
	store, err := sessionstore.OpenForConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("open session index: %w", err)
	}
	sessions := session.NewManager(cfg.Paths.UploadsRoot, store, cfg.SessionTTL(), logger)
	server, err := web.New(cfg, sessions, exec, logger)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("create web server: %w", err)
	}
	d, err := daemon.New(cfg, store, sessions, server, logger)
	if err != nil {
		store.Close()
		return nil, err
	}
	return d, nil
}
