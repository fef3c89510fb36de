package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"uploadflow/internal/config"
)

const userAgent = "uploadflow/0.1.0"

// Event identifies the milestone being announced.
type Event string

const (
	EventProcessingCompleted Event = "processing_completed"
	EventUploadCompleted     Event = "upload_completed"
	EventStageFailed         Event = "stage_failed"
	EventTest                Event = "test"
)

// Payload carries event fields. Keys used: title, video, stage, error, source.
type Payload map[string]string

// Service publishes notifications.
type Service interface {
	Publish(ctx context.Context, event Event, payload Payload) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	if cfg == nil || strings.TrimSpace(cfg.Notifications.NtfyTopic) == "" {
		return noopService{}
	}
	return &ntfyService{
		endpoint: strings.TrimSpace(cfg.Notifications.NtfyTopic),
		client:   &http.Client{Timeout: cfg.NotifyTimeout()},
	}
}

type message struct {
	title    string
	body     string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint string
	client   *http.Client
}

func (n *ntfyService) Publish(ctx context.Context, event Event, payload Payload) error {
	msg, ok := format(event, payload)
	if !ok {
		return fmt.Errorf("unknown notification event %q", event)
	}
	return n.send(ctx, msg)
}

func format(event Event, payload Payload) (message, bool) {
	get := func(key string) string { return strings.TrimSpace(payload[key]) }
	switch event {
	case EventProcessingCompleted:
		video := get("video")
		if video == "" {
			video = "video"
		}
		return message{
			title: "uploadflow - Ready for review",
			body:  fmt.Sprintf("🎬 Transcript and chapters ready: %s", video),
			tags:  []string{"uploadflow", "process", "completed"},
		}, true
	case EventUploadCompleted:
		return message{
			title:    "uploadflow - Uploaded",
			body:     fmt.Sprintf("✅ Uploaded: %s", get("title")),
			tags:     []string{"uploadflow", "upload", "completed"},
			priority: "high",
		}, true
	case EventStageFailed:
		var b strings.Builder
		b.WriteString("❌ ")
		if stage := get("stage"); stage != "" {
			b.WriteString(stage)
			b.WriteString(" failed")
		} else {
			b.WriteString("Pipeline failed")
		}
		if source := get("source"); source != "" {
			b.WriteString(" (")
			b.WriteString(source)
			b.WriteString(")")
		}
		b.WriteString(": ")
		if errText := get("error"); errText != "" {
			b.WriteString(errText)
		} else {
			b.WriteString("unknown")
		}
		return message{
			title:    "uploadflow - Error",
			body:     b.String(),
			tags:     []string{"uploadflow", "error", "alert"},
			priority: "high",
		}, true
	case EventTest:
		return message{
			title:    "uploadflow - Test",
			body:     "🧪 Notification system test",
			tags:     []string{"uploadflow", "test"},
			priority: "low",
		}, true
	}
	return message{}, false
}

func (n *ntfyService) send(ctx context.Context, msg message) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(msg.body))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if msg.title != "" {
		req.Header.Set("Title", msg.title)
	}
	if len(msg.tags) > 0 {
		req.Header.Set("Tags", strings.Join(msg.tags, ","))
	}
	if msg.priority != "" {
		req.Header.Set("Priority", msg.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type noopService struct{}

func (noopService) Publish(context.Context, Event, Payload) error { return nil }
