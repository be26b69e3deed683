package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"notecast/internal/config"
	"notecast/internal/store"
)

const userAgent = "notecast/1.0"

// Event identifies a notification type.
type Event string

const (
	EventEpisodeStarted   Event = "episode_started"
	EventEpisodeCompleted Event = "episode_completed"
	EventEpisodeFailed    Event = "episode_failed"
	EventRecovered        Event = "episodes_recovered"
	EventTest             Event = "test"
)

// Payload carries event fields keyed by name.
type Payload map[string]any

// Service publishes events.
type Service interface {
	Publish(ctx context.Context, event Event, payload Payload) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &ntfyService{
		endpoint: topic,
		client:   &http.Client{Timeout: timeout},
		episodes: cfg.Notifications.Episodes,
		errors:   cfg.Notifications.Errors,
	}
}

// EpisodeEvent maps a terminal episode snapshot to its notification. Episodes
// that are not terminal produce no event.
func EpisodeEvent(ep store.Episode) (Event, Payload, bool) {
	switch ep.Status {
	case store.StatusCompleted:
		return EventEpisodeCompleted, Payload{
			"id":       ep.ID,
			"name":     ep.Name,
			"duration": ep.Duration(),
		}, true
	case store.StatusFailed:
		return EventEpisodeFailed, Payload{
			"id":     ep.ID,
			"name":   ep.Name,
			"reason": ep.FailureReason,
		}, true
	}
	return "", nil, false
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
	episodes bool
	errors   bool
}

func (n *ntfyService) Publish(ctx context.Context, event Event, payload Payload) error {
	msg, ok := n.format(event, payload)
	if !ok {
		return nil
	}
	return n.send(ctx, msg)
}

func (n *ntfyService) format(event Event, payload Payload) (message, bool) {
	switch event {
	case EventEpisodeCompleted:
		if !n.episodes {
			return message{}, false
		}
		body := fmt.Sprintf("🎙️ Episode ready: %s", payload.text("name"))
		if d, ok := payload["duration"].(time.Duration); ok && d > 0 {
			body = fmt.Sprintf("%s (%s)", body, d.Round(time.Second))
		}
		return message{
			title: "Notecast - Episode Ready",
			body:  body,
			tags:  []string{"notecast", "episode", "completed"},
		}, true
	case EventEpisodeFailed:
		if !n.errors {
			return message{}, false
		}
		reason := payload.text("reason")
		if reason == "" {
			reason = "unknown"
		}
		return message{
			title:    "Notecast - Episode Failed",
			body:     fmt.Sprintf("❌ Episode %s failed: %s", payload.text("name"), reason),
			tags:     []string{"notecast", "episode", "error"},
			priority: "high",
		}, true
	case EventRecovered:
		if !n.errors {
			return message{}, false
		}
		return message{
			title: "Notecast - Episodes Interrupted",
			body:  fmt.Sprintf("%v unfinished episode(s) were marked failed at startup", payload["count"]),
			tags:  []string{"notecast", "episode", "recovered"},
		}, true
	case EventTest:
		return message{
			title:    "Notecast - Test",
			body:     "🧪 Notification system test",
			tags:     []string{"notecast", "test"},
			priority: "low",
		}, true
	}
	return message{}, false
}

func (p Payload) text(key string) string {
	if p == nil {
		return ""
	}
	switch v := p[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case nil:
		return ""
	default:
		return strings.TrimSpace(fmt.Sprint(v))
	}
}

func (n *ntfyService) send(ctx context.Context, msg message) error {
	if n == nil || n.client == nil {
		return nil
	}

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
	if msg.priority != "" && msg.priority != "default" {
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
