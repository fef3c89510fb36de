package config

import "time"

const (
	defaultUploadsRoot         = "~/.local/share/uploadflow/uploads"
	defaultLogDir              = "~/.local/share/uploadflow/logs"
	defaultColorEditCommand    = "color_edit"
	defaultWhisperCommand      = "whisper"
	defaultChapterMakerCommand = "yt_chapter_maker"
	defaultUploaderCommand     = "yt_upload"
	defaultEditor              = "nano"
	defaultVolumeThreshold     = "0.002"
	defaultWebBind             = "0.0.0.0:5000"
	defaultSessionTTLHours     = 72
	defaultReapIntervalMinutes = 30
	defaultMaxUploadMB         = 8192
	defaultNtfyTimeoutSeconds  = 10
	defaultLogFormat           = "console"
	defaultLogLevel            = "info"
)

var defaultAllowedExtensions = []string{"mp4", "mov", "avi", "mkv"}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			UploadsRoot: defaultUploadsRoot,
			LogDir:      defaultLogDir,
		},
		Tools: Tools{
			ColorEdit:    defaultColorEditCommand,
			Whisper:      defaultWhisperCommand,
			ChapterMaker: defaultChapterMakerCommand,
			Uploader:     defaultUploaderCommand,
		},
		ColorEdit: ColorEdit{
			VolumeThreshold: defaultVolumeThreshold,
		},
		Web: Web{
			Bind:                defaultWebBind,
			SessionTTLHours:     defaultSessionTTLHours,
			ReapIntervalMinutes: defaultReapIntervalMinutes,
			MaxUploadMB:         defaultMaxUploadMB,
			AllowedExtensions:   append([]string(nil), defaultAllowedExtensions...),
		},
		Notifications: Notifications{
			RequestTimeoutSeconds: defaultNtfyTimeoutSeconds,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}

// SessionTTL returns the inactivity window after which a web session expires.
func (c *Config) SessionTTL() time.Duration {
	return time.Duration(c.Web.SessionTTLHours) * time.Hour
}

// ReapInterval returns how often expired sessions are collected.
func (c *Config) ReapInterval() time.Duration {
	return time.Duration(c.Web.ReapIntervalMinutes) * time.Minute
}

// ToolTimeout returns the per-invocation tool timeout, zero when unbounded.
func (c *Config) ToolTimeout() time.Duration {
	if c.Tools.TimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(c.Tools.TimeoutSeconds) * time.Second
}

// MaxUploadBytes returns the request body limit for video uploads.
func (c *Config) MaxUploadBytes() int64 {
	return int64(c.Web.MaxUploadMB) << 20
}

// NotifyTimeout bounds one ntfy request.
func (c *Config) NotifyTimeout() time.Duration {
	if c.Notifications.RequestTimeoutSeconds <= 0 {
		return defaultNtfyTimeoutSeconds * time.Second
	}
	return time.Duration(c.Notifications.RequestTimeoutSeconds) * time.Second
}
