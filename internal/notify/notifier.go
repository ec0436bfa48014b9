// Package notify delivers leveled, fire-and-forget run notifications to a
// Slack-compatible webhook. Delivery failures are logged and swallowed; a
// broken webhook must never fail the pipeline.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// Notification levels.
const (
	LevelInfo    = "info"
	LevelWarning = "warning"
	LevelError   = "error"
	LevelSuccess = "success"
)

var levelEmoji = map[string]string{
	LevelInfo:    "ℹ️",
	LevelWarning: "⚠️",
	LevelError:   "🚨",
	LevelSuccess: "✅",
}

// Webhook posts notifications to a single webhook URL. An empty URL disables
// delivery; messages are still logged locally.
type Webhook struct {
	url        string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewWebhook creates a webhook notifier.
func NewWebhook(url string, timeout time.Duration, logger *slog.Logger) *Webhook {
	return &Webhook{
		url: url,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}
}

// Notify logs the message locally and, when a URL is configured, posts it to
// the webhook. Never returns an error.
func (w *Webhook) Notify(ctx context.Context, level, text string) {
	emoji, ok := levelEmoji[level]
	if !ok {
		emoji = levelEmoji[LevelInfo]
	}
	message := emoji + " " + text

	switch level {
	case LevelError:
		w.logger.Error(message)
	case LevelWarning:
		w.logger.Warn(message)
	default:
		w.logger.Info(message)
	}

	if w.url == "" {
		w.logger.Debug("no webhook URL configured, skipping delivery")
		return
	}
	w.post(ctx, message)
}

func (w *Webhook) post(ctx context.Context, message string) {
	payload, err := json.Marshal(map[string]string{"text": message})
	if err != nil {
		w.logger.Error("marshal webhook payload", "error", err)
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(payload))
	if err != nil {
		w.logger.Error("create webhook request", "error", err)
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.httpClient.Do(req)
	if err != nil {
		w.logger.Error("webhook delivery failed", "error", err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 500))
		w.logger.Warn("webhook responded non-200", "status", resp.StatusCode, "body", string(body))
	}
}
