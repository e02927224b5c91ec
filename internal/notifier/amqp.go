package notifier

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"quota-service/prometheus"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// AMQPSink publishes events to a RabbitMQ topic exchange. The routing key is
// the event name ("slot_request.approved", "template.updated", ...), so the
// notification service can bind queues per event family.
type AMQPSink struct {
	url      string
	exchange string
	log      *zap.Logger

	mu   sync.RWMutex
	conn *amqp.Connection
	ch   *amqp.Channel
}

// NewAMQPSink connects to RabbitMQ and declares the topic exchange.
func NewAMQPSink(url, exchange string, log *zap.Logger) (*AMQPSink, error) {
	s := &AMQPSink{url: url, exchange: exchange, log: log}
	if err := s.connect(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *AMQPSink) connect() error {
	conn, err := amqp.Dial(s.url)
	if err != nil {
		return err
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return err
	}
	if err := ch.ExchangeDeclare(s.exchange, "topic", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return err
	}

	s.mu.Lock()
	s.conn = conn
	s.ch = ch
	s.mu.Unlock()
	return nil
}

// Publish sends the event to the exchange. Failures are logged and dropped;
// a broken channel triggers one reconnect attempt on the next publish.
func (s *AMQPSink) Publish(ctx context.Context, event Event) {
	body, err := json.Marshal(event)
	if err != nil {
		s.log.Error("Failed to encode event", zap.String("event", event.Name), zap.Error(err))
		return
	}

	s.mu.RLock()
	ch := s.ch
	s.mu.RUnlock()

	if ch == nil || ch.IsClosed() {
		if err := s.connect(); err != nil {
			s.log.Warn("Event broker unavailable", zap.String("event", event.Name), zap.Error(err))
			return
		}
		s.mu.RLock()
		ch = s.ch
		s.mu.RUnlock()
	}

	publishCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	err = ch.PublishWithContext(publishCtx, s.exchange, routingKey(event.Name), false, false, amqp.Publishing{
		ContentType:  "application/json",
		Body:         body,
		DeliveryMode: amqp.Persistent,
		MessageId:    event.ID,
		Timestamp:    event.OccurredAt,
	})
	if err != nil {
		s.log.Warn("Event delivery failed",
			zap.String("event", event.Name),
			zap.String("exchange", s.exchange),
			zap.Error(err))
		return
	}

	prometheus.EventPublishedCounter.WithLabelValues(event.Name).Inc()
	s.log.Debug("Event published",
		zap.String("event", event.Name),
		zap.String("event_id", event.ID))
}

// Close shuts the connection down.
func (s *AMQPSink) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ch != nil {
		_ = s.ch.Close()
	}
	if s.conn != nil {
		_ = s.conn.Close()
	}
}

func routingKey(eventName string) string {
	// Event names are already dot-separated; guard against stray spaces.
	return strings.ReplaceAll(eventName, " ", "_")
}
