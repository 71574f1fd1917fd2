package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"songdub/internal/config"
	"songdub/internal/jobs"
)

const userAgent = "songdub/0.1"

// Service defines the notification surface exposed to the pipeline.
type Service interface {
	NotifyJobCompleted(ctx context.Context, job *jobs.Job) error
	NotifyJobFailed(ctx context.Context, job *jobs.Job) error
	TestNotification(ctx context.Context) error
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
		endpoint:  topic,
		client:    &http.Client{Timeout: timeout},
		completed: cfg.Notifications.JobCompleted,
		failed:    cfg.Notifications.JobFailed,
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint  string
	client    *http.Client
	completed bool
	failed    bool
}

func (n *ntfyService) NotifyJobCompleted(ctx context.Context, job *jobs.Job) error {
	if !n.completed || job == nil {
		return nil
	}
	var b strings.Builder
	fmt.Fprintf(&b, "🎤 Dub ready: %s (%s)", label(job), job.Language)
	if job.Results.SelectedVoice != "" {
		fmt.Fprintf(&b, "\nVoice: %s", job.Results.SelectedVoice)
	}
	if job.Results.FinalMix != "" {
		fmt.Fprintf(&b, "\nMix: %s", job.Results.FinalMix)
	}
	data := payload{
		title:   "songdub - Dub Complete",
		message: b.String(),
		tags:    []string{"songdub", "job", "completed"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyJobFailed(ctx context.Context, job *jobs.Job) error {
	if !n.failed || job == nil {
		return nil
	}
	message := fmt.Sprintf("❌ Dub failed: %s", label(job))
	if reason := strings.TrimSpace(job.Error); reason != "" {
		message += "\n" + reason
	}
	data := payload{
		title:    "songdub - Job Failed",
		message:  message,
		tags:     []string{"songdub", "job", "error"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	data := payload{
		title:    "songdub - Test",
		message:  "🧪 Notification system test",
		tags:     []string{"songdub", "test"},
		priority: "low",
	}
	return n.send(ctx, data)
}

func label(job *jobs.Job) string {
	if name := strings.TrimSpace(job.SourceName); name != "" {
		return name
	}
	return job.ID
}

func (n *ntfyService) send(ctx context.Context, data payload) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
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

func (noopService) NotifyJobCompleted(context.Context, *jobs.Job) error { return nil }
func (noopService) NotifyJobFailed(context.Context, *jobs.Job) error    { return nil }
func (noopService) TestNotification(context.Context) error              { return nil }
