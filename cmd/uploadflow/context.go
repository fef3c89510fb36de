package main

import (
	"log/slog"
	"path/filepath"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"uploadflow/internal/config"
	"uploadflow/internal/logging"
	"uploadflow/internal/toolexec"
)

// newToolRunner builds the runner used for external tools. Tests replace it.
var newToolRunner = func(cfg *config.Config, logger *slog.Logger) toolexec.Runner {
	return toolexec.NewExecRunner(
		toolexec.WithTimeout(cfg.ToolTimeout()),
		toolexec.WithLogger(logger),
	)
}

// loadedConfig is the result of resolving --config once per invocation.
type loadedConfig struct {
	cfg    *config.Config
	path   string
	exists bool
	err    error
}

// commandContext carries lazily loaded state shared by subcommands.
type commandContext struct {
	configFlag *string

	loadOnce sync.Once
	loaded   loadedConfig

	loggerOnce sync.Once
	logger     *slog.Logger
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

func (c *commandContext) load() loadedConfig {
	c.loadOnce.Do(func() {
		var flagValue string
		if c.configFlag != nil {
			flagValue = strings.TrimSpace(*c.configFlag)
		}
		cfg, path, exists, err := config.Load(flagValue)
		if err == nil {
			err = cfg.EnsureDirectories()
		}
		if err != nil {
			c.loaded = loadedConfig{path: path, err: err}
			return
		}
		c.loaded = loadedConfig{cfg: cfg, path: path, exists: exists}
	})
	return c.loaded
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	loaded := c.load()
	return loaded.cfg, loaded.err
}

// log returns the CLI logger. Records go to the log file only so they do not
// interleave with prompts and tool output on the terminal.
func (c *commandContext) log() *slog.Logger {
	c.loggerOnce.Do(func() {
		c.logger = logging.NewNop()
		cfg := c.load().cfg
		if cfg == nil || cfg.Paths.LogDir == "" {
			return
		}
		logger, err := logging.New(logging.Options{
			Level:       cfg.Logging.Level,
			Format:      cfg.Logging.Format,
			OutputPaths: []string{filepath.Join(cfg.Paths.LogDir, logging.FileName)},
		})
		if err == nil {
			c.logger = logger
		}
	})
	return c.logger
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
