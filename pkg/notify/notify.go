// Package notify tells operators about failures of background work.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gnosis/tradingdb/internal/config"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

type Notification struct {
	Subject string    `json:"subject"`
	Message string    `json:"message"`
	Time    time.Time `json:"time"`
}

func NewNotification(subject string, err error) *Notification {
	return &Notification{
		Subject: subject,
		Message: err.Error(),
		Time:    time.Now().UTC(),
	}
}

type Notifier interface {
	Notify(ctx context.Context, n *Notification) error
}

// WebhookNotifier posts notifications as JSON.
type WebhookNotifier struct {
	httpClient *http.Client
	url        string
	logger     *zap.Logger
}

func NewWebhookNotifier(hc *http.Client, url string, l *zap.Logger) *WebhookNotifier {
	return &WebhookNotifier{
		httpClient: hc,
		url:        url,
		logger:     l,
	}
}

func (w *WebhookNotifier) Notify(ctx context.Context, n *Notification) error {
	body, err := json.Marshal(n)
	if err != nil {
		return errors.Wrap(err, "failed to marshal notification")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return errors.Wrap(err, "failed to build notification request")
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := w.httpClient.Do(req)
	if err != nil {
		w.logger.Sugar().Errorw("Failed to send notification",
			zap.String("subject", n.Subject),
			zap.Error(err),
		)
		return errors.Wrap(err, "failed to send notification")
	}
	defer res.Body.Close()
	_, _ = io.Copy(io.Discard, res.Body)

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return fmt.Errorf("notification webhook responded with status %d", res.StatusCode)
	}
	return nil
}

// LogNotifier writes notifications to the log only.
type LogNotifier struct {
	logger *zap.Logger
}

func NewLogNotifier(l *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: l}
}

func (n *LogNotifier) Notify(ctx context.Context, notification *Notification) error {
	n.logger.Sugar().Errorw("Operator notification",
		zap.String("subject", notification.Subject),
		zap.String("message", notification.Message),
		zap.Time("time", notification.Time),
	)
	return nil
}

// NewNotifierFromConfig returns a webhook notifier when a webhook is configured.
func NewNotifierFromConfig(cfg *config.Config, l *zap.Logger) Notifier {
	if cfg.NotifyConfig.WebhookUrl == "" {
		return NewLogNotifier(l)
	}
	return NewWebhookNotifier(&http.Client{Timeout: 10 * time.Second}, cfg.NotifyConfig.WebhookUrl, l)
}

// Send notifies and logs the notifier's own failure instead of returning it.
func Send(ctx context.Context, notifier Notifier, l *zap.Logger, subject string, err error) {
	if notifier == nil {
		return
	}
	if nerr := notifier.Notify(ctx, NewNotification(subject, err)); nerr != nil {
		l.Sugar().Warnw("Failed to notify operator",
			zap.String("subject", subject),
			zap.Error(nerr),
		)
	}
}
