package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

const DefaultExchange = "taskfuse.notifications"

// AMQPSink publishes every displayed event to a topic exchange so other
// consumers (chat bots, mail relays) can react to the same alerts.
type AMQPSink struct {
	conn     *amqp.Connection
	channel  *amqp.Channel
	exchange string
	logger   *slog.Logger
	mu       sync.Mutex
}

type amqpPayload struct {
	ID       string    `json:"id"`
	Key      string    `json:"key"`
	TaskID   int64     `json:"task_id,omitempty"`
	Kind     string    `json:"kind,omitempty"`
	Message  string    `json:"message"`
	Severity string    `json:"severity"`
	ShownAt  time.Time `json:"shown_at"`
}

func NewAMQPSink(url, exchange string, logger *slog.Logger) (*AMQPSink, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if exchange == "" {
		exchange = DefaultExchange
	}
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("connect amqp: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open amqp channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}
	logger.Info("amqp notification sink connected", "exchange", exchange)
	return &AMQPSink{conn: conn, channel: ch, exchange: exchange, logger: logger}, nil
}

func (s *AMQPSink) Deliver(ctx context.Context, ev Event) error {
	body, err := encodeEvent(ev)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.channel.PublishWithContext(ctx, s.exchange, routingKey(ev), false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    ev.ID,
		Timestamp:    ev.ShownAt,
		Body:         body,
	})
}

func (s *AMQPSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.channel != nil {
		if err := s.channel.Close(); err != nil {
			s.logger.Warn("error closing amqp channel", "error", err)
		}
	}
	if s.conn != nil {
		return s.conn.Close()
	}
	return nil
}

func encodeEvent(ev Event) ([]byte, error) {
	body, err := json.Marshal(amqpPayload{
		ID:       ev.ID,
		Key:      ev.Key,
		TaskID:   ev.TaskID,
		Kind:     ev.Kind,
		Message:  ev.Message,
		Severity: string(ev.Severity),
		ShownAt:  ev.ShownAt.UTC(),
	})
	if err != nil {
		return nil, fmt.Errorf("encode notification: %w", err)
	}
	return body, nil
}

func routingKey(ev Event) string {
	if ev.Kind == "" {
		return "notification." + string(ev.Severity)
	}
	return "notification." + string(ev.Severity) + "." + ev.Kind
}
