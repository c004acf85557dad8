// Package notify delivers trade event messages to a Slack-compatible
// webhook.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/pairbot/pairbot/pkg/retrier"
)

// Notifier publishes human-readable event messages.
type Notifier interface {
	Notify(text string)
}

// Nop discards all messages.
type Nop struct{}

func (Nop) Notify(string) {}

type webhookPayload struct {
	Text     string `json:"text"`
	Username string `json:"username,omitempty"`
}

// Webhook posts messages to a webhook URL. Delivery is fire and forget:
// each message is sent from its own goroutine with retries, and failures
// are logged, never surfaced to the caller.
type Webhook struct {
	url        string
	username   string
	httpClient *http.Client
	retrier    *retrier.Retrier
	logger     *zap.Logger
}

func NewWebhook(url, username string, logger *zap.Logger) *Webhook {
	return &Webhook{
		url:        url,
		username:   username,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		retrier: retrier.New(
			retrier.WithAttempts(3),
			retrier.WithBaseDelay(2*time.Second),
		),
		logger: logger,
	}
}

func (w *Webhook) Notify(text string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()

		err := w.retrier.Do(ctx, func(ctx context.Context) error {
			return w.send(ctx, text)
		})
		if err != nil {
			w.logger.Warn("notification delivery failed",
				zap.String("text", text),
				zap.Error(err))
		}
	}()
}

func (w *Webhook) send(ctx context.Context, text string) error {
	payload, err := json.Marshal(webhookPayload{Text: text, Username: w.username})
	if err != nil {
		return retrier.Permanent(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(payload))
	if err != nil {
		return retrier.Permanent(err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return errors.Errorf("webhook returned status %d", resp.StatusCode)
	}
	if resp.StatusCode >= 400 {
		return retrier.Permanent(errors.Errorf("webhook returned status %d", resp.StatusCode))
	}
	return nil
}
