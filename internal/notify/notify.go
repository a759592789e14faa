// Package notify reports run outcomes to a chat webhook. Notification is
// best-effort: there is no retry and callers are expected to log and
// continue when it fails.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const userAgent = "notebook-deployer/1.0"

// Notifier defines the notification surface used after a run.
type Notifier interface {
	// NotifyDeployFailed reports a non-success deploy for the given
	// environment tag.
	NotifyDeployFailed(ctx context.Context, env, status string) error
}

// NewService builds a notifier backed by the chat webhook when a URL is
// configured. Without a URL, a noop implementation is returned.
func NewService(jobName, webhookURL string) Notifier {
	url := strings.TrimSpace(webhookURL)
	if url == "" {
		return noopService{}
	}
	return &webhookService{
		jobName: jobName,
		url:     url,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

type webhookService struct {
	jobName string
	url     string
	client  *http.Client
}

type message struct {
	Text string `json:"text"`
}

// Message renders the chat text for a failed deploy of env with the given
// run status.
func Message(jobName, env, status string) string {
	return fmt.Sprintf("*%s Built and Deployed to %s* finished with status %s", jobName, env, status)
}

func (s *webhookService) NotifyDeployFailed(ctx context.Context, env, status string) error {
	body, err := json.Marshal(message{Text: Message(s.jobName, env, status)})
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create notification request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("send notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("notification rejected: status %d, body: %s", resp.StatusCode, string(detail))
	}
	return nil
}

type noopService struct{}

func (noopService) NotifyDeployFailed(context.Context, string, string) error { return nil }
