package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateColorEdit(); err != nil {
		return err
	}
	if err := c.validateTools(); err != nil {
		return err
	}
	if err := c.validatePrompt(); err != nil {
		return err
	}
	if err := c.validateWeb(); err != nil {
		return err
	}
	if err := c.validateNotifications(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateNotifications() error {
	topic := c.Notifications.NtfyTopic
	if topic == "" {
		return nil
	}
	if !strings.HasPrefix(topic, "http://") && !strings.HasPrefix(topic, "https://") {
		return fmt.Errorf("notifications.ntfy_topic must be a full http(s) URL, got %q", topic)
	}
	if c.Notifications.RequestTimeoutSeconds < 0 {
		return errors.New("notifications.request_timeout_seconds must be zero or positive")
	}
	return nil
}

func (c *Config) validateColorEdit() error {
	value, err := strconv.ParseFloat(c.ColorEdit.VolumeThreshold, 64)
	if err != nil {
		return fmt.Errorf("color_edit.volume_threshold must be a number, got %q", c.ColorEdit.VolumeThreshold)
	}
	if value < 0 {
		return errors.New("color_edit.volume_threshold must be >= 0")
	}
	return nil
}

func (c *Config) validateTools() error {
	if c.Tools.TimeoutSeconds < 0 {
		return errors.New("tools.timeout_seconds must be >= 0")
	}
	return nil
}

func (c *Config) validatePrompt() error {
	if c.Prompt.MaxAttempts < 0 {
		return errors.New("prompt.max_attempts must be >= 0")
	}
	return nil
}

func (c *Config) validateWeb() error {
	if err := ensurePositiveMap(map[string]int{
		"web.session_ttl_hours":     c.Web.SessionTTLHours,
		"web.reap_interval_minutes": c.Web.ReapIntervalMinutes,
		"web.max_upload_mb":         c.Web.MaxUploadMB,
	}); err != nil {
		return err
	}
	if secret := c.Web.SessionSecret; secret != "" && len(secret) < 16 {
		return errors.New("web.session_secret must be at least 16 characters when set")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn, or error, got %q", c.Logging.Level)
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
