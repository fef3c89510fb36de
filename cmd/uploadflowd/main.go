package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"uploadflow/internal/config"
	"uploadflow/internal/logging"
	"uploadflow/internal/preflight"
	"uploadflow/internal/toolexec"
)

func main() {
	configPath := flag.String("config", "", "Configuration file path")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, _, _, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}

	for _, status := range preflight.CheckSystemDeps(cfg, false) {
		if !status.Available {
			logging.WarnWithContext(logger, "pipeline tool unavailable", "dependency_missing",
				logging.String("command", status.Command),
				logging.String("detail", status.Detail),
				logging.String(logging.FieldErrorHint, "install the tool or set [tools] in the config"),
				logging.String(logging.FieldImpact, "processing requests will fail until it is installed"),
			)
		}
	}
	if cfg.Web.SessionSecret == "" {
		logging.WarnWithContext(logger, "no session secret configured; generated one for this process", "session_secret_generated",
			logging.String(logging.FieldImpact, "upload sessions are lost on restart"),
			logging.String(logging.FieldErrorHint, "set web.session_secret or UPLOADFLOW_SESSION_SECRET"),
		)
	}

	exec := toolexec.NewExecRunner(
		toolexec.WithTimeout(cfg.ToolTimeout()),
		toolexec.WithLogger(logger),
	)
	d, err := buildDaemon(cfg, exec, logger)
	if err != nil {
		logger.Error("create daemon", logging.Error(err))
		os.Exit(1)
	}
	defer d.Close()

	if err := d.Start(ctx); err != nil {
		logger.Error("daemon start", logging.Error(err))
		d.Close()
		os.Exit(1)
	}

	<-ctx.Done()
	logger.Info("uploadflowd shutting down")
}
