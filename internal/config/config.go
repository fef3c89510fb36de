package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	UploadsRoot string `toml:"uploads_root"`
	LogDir      string `toml:"log_dir"`
}

// Tools names the external commands each stage shells out to.
type Tools struct {
	// Runner optionally prefixes every tool invocation (e.g. "uvx").
	Runner         string `toml:"runner"`
	ColorEdit      string `toml:"color_edit"`
	Whisper        string `toml:"whisper"`
	ChapterMaker   string `toml:"chapter_maker"`
	Uploader       string `toml:"uploader"`
	Editor         string `toml:"editor"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// ColorEdit contains defaults for the color/audio editing stage.
type ColorEdit struct {
	VolumeThreshold string `toml:"volume_threshold"`
}

// Prompt contains interactive prompt behaviour for the CLI driver.
type Prompt struct {
	// MaxAttempts bounds the title selection loop. Zero means unbounded.
	MaxAttempts int `toml:"max_attempts"`
}

// Web contains configuration for the uploadflowd HTTP driver.
type Web struct {
	Bind                string   `toml:"bind"`
	SessionTTLHours     int      `toml:"session_ttl_hours"`
	ReapIntervalMinutes int      `toml:"reap_interval_minutes"`
	MaxUploadMB         int      `toml:"max_upload_mb"`
	AllowedExtensions   []string `toml:"allowed_extensions"`
	SessionSecret       string   `toml:"session_secret"`
	// APIToken guards the JSON session API with a bearer token when set.
	APIToken            string   `toml:"api_token"`
}

// Notifications configures optional ntfy push messages.
type Notifications struct {
	// NtfyTopic is the full topic URL, e.g. https://ntfy.sh/my-uploads. Empty disables notifications.
	NtfyTopic             string `toml:"ntfy_topic"`
	RequestTimeoutSeconds int    `toml:"request_timeout_seconds"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for uploadflow.
//
// Configuration sections by subsystem:
//   - Paths: uploads root for web sessions and the log/state directory
//   - Tools: external command names and the optional runner prefix
//   - ColorEdit: default volume threshold
//   - Prompt: CLI prompt limits
//   - Web: HTTP bind address and session lifecycle
//   - Notifications: ntfy topic for upload and failure messages
//   - Logging: log format and level
type Config struct {
	Paths         Paths         `toml:"paths"`
	Tools         Tools         `toml:"tools"`
	ColorEdit     ColorEdit     `toml:"color_edit"`
	Prompt        Prompt        `toml:"prompt"`
	Web           Web           `toml:"web"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/uploadflow/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("uploadflow.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the uploads root and log directory.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.UploadsRoot, c.Paths.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// Argv returns the executable and leading arguments used to launch tool,
// honouring the configured runner prefix.
func (t Tools) Argv(tool string) (string, []string) {
	runner := strings.TrimSpace(t.Runner)
	if runner == "" {
		return tool, nil
	}
	return runner, []string{tool}
}

// RequiredCommands lists the executables that must be on PATH before any stage
// runs. With a runner configured only the runner itself is checked, because
// the runner resolves the tools on demand.
func (t Tools) RequiredCommands() []string {
	if runner := strings.TrimSpace(t.Runner); runner != "" {
		return []string{runner}
	}
	return []string{t.ColorEdit, t.Whisper, t.ChapterMaker, t.Uploader}
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

// Encode renders the effective configuration as TOML.
func (c *Config) Encode() ([]byte, error) {
	data, err := toml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("encode config: %w", err)
	}
	return data, nil
}
