package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeTools()
	c.normalizeWeb()
	c.normalizeNotifications()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	if value, ok := os.LookupEnv("UPLOAD_FOLDER"); ok && strings.TrimSpace(value) != "" {
		c.Paths.UploadsRoot = strings.TrimSpace(value)
	}
	if strings.TrimSpace(c.Paths.UploadsRoot) == "" {
		c.Paths.UploadsRoot = defaultUploadsRoot
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	var err error
	if c.Paths.UploadsRoot, err = expandPath(c.Paths.UploadsRoot); err != nil {
		return fmt.Errorf("paths.uploads_root: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeTools() {
	c.Tools.Runner = strings.TrimSpace(c.Tools.Runner)
	c.Tools.ColorEdit = fallback(c.Tools.ColorEdit, defaultColorEditCommand)
	c.Tools.Whisper = fallback(c.Tools.Whisper, defaultWhisperCommand)
	c.Tools.ChapterMaker = fallback(c.Tools.ChapterMaker, defaultChapterMakerCommand)
	c.Tools.Uploader = fallback(c.Tools.Uploader, defaultUploaderCommand)
	c.Tools.Editor = strings.TrimSpace(c.Tools.Editor)
	if c.Tools.Editor == "" {
		if value, ok := os.LookupEnv("EDITOR"); ok {
			c.Tools.Editor = strings.TrimSpace(value)
		}
	}
	if c.Tools.Editor == "" {
		c.Tools.Editor = defaultEditor
	}
	c.ColorEdit.VolumeThreshold = fallback(c.ColorEdit.VolumeThreshold, defaultVolumeThreshold)
}

func (c *Config) normalizeWeb() {
	c.Web.Bind = fallback(c.Web.Bind, defaultWebBind)
	c.Web.SessionSecret = strings.TrimSpace(c.Web.SessionSecret)
	c.Web.APIToken = strings.TrimSpace(c.Web.APIToken)
	if c.Web.SessionSecret == "" {
		if value, ok := os.LookupEnv("UPLOADFLOW_SESSION_SECRET"); ok {
			c.Web.SessionSecret = strings.TrimSpace(value)
		}
	}
	if len(c.Web.AllowedExtensions) == 0 {
		c.Web.AllowedExtensions = append([]string(nil), defaultAllowedExtensions...)
		return
	}
	exts := make([]string, 0, len(c.Web.AllowedExtensions))
	seen := make(map[string]struct{}, len(c.Web.AllowedExtensions))
	for _, ext := range c.Web.AllowedExtensions {
		normalized := strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
		if normalized == "" {
			continue
		}
		if _, exists := seen[normalized]; exists {
			continue
		}
		seen[normalized] = struct{}{}
		exts = append(exts, normalized)
	}
	if len(exts) == 0 {
		exts = append(exts, defaultAllowedExtensions...)
	}
	c.Web.AllowedExtensions = exts
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.NtfyTopic == "" {
		if value, ok := os.LookupEnv("UPLOADFLOW_NTFY_TOPIC"); ok {
			c.Notifications.NtfyTopic = strings.TrimSpace(value)
		}
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(fallback(c.Logging.Format, defaultLogFormat))
	c.Logging.Level = strings.ToLower(fallback(c.Logging.Level, defaultLogLevel))
}

func fallback(value, def string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return def
	}
	return value
}
