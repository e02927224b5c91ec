package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"quota-service/prometheus"

	"go.uber.org/zap"
)

// WebhookSink posts events as JSON to the notification service's endpoint.
type WebhookSink struct {
	url    string
	client *http.Client
	log    *zap.Logger
}

// NewWebhookSink builds a webhook sink for the given URL.
func NewWebhookSink(url string, timeout time.Duration, log *zap.Logger) *WebhookSink {
	return &WebhookSink{
		url:    url,
		client: &http.Client{Timeout: timeout},
		log:    log,
	}
}

// Publish POSTs the event. Failures are logged and dropped.
func (s *WebhookSink) Publish(ctx context.Context, event Event) {
	body, err := json.Marshal(event)
	if err != nil {
		s.log.Error("Failed to encode event", zap.String("event", event.Name), zap.Error(err))
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		s.log.Error("Failed to build event request", zap.String("event", event.Name), zap.Error(err))
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		s.log.Warn("Event delivery failed",
			zap.String("event", event.Name),
			zap.String("url", s.url),
			zap.Error(err))
		return
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 300 {
		s.log.Warn("Event delivery rejected",
			zap.String("event", event.Name),
			zap.Int("status", resp.StatusCode))
		return
	}

	prometheus.EventPublishedCounter.WithLabelValues(event.Name).Inc()
	s.log.Debug("Event delivered",
		zap.String("event", event.Name),
		zap.String("event_id", event.ID))
}
