package eventbus

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/richxcame/trustx/pkg/config"
	"github.com/richxcame/trustx/pkg/logger"
	"go.uber.org/zap"
)

// Event is the envelope published for every domain event.
type Event struct {
	ID            string          `json:"id"`
	Type          string          `json:"type"`
	OccurredAt    time.Time       `json:"occurred_at"`
	CorrelationID string          `json:"correlation_id,omitempty"`
	Data          json.RawMessage `json:"data"`
}

// Publisher publishes domain events. Implementations must be safe for
// concurrent use.
type Publisher interface {
	Publish(ctx context.Context, eventType string, data interface{}) error
	Close()
}

// NewEvent wraps data in an envelope.
func NewEvent(ctx context.Context, eventType string, data interface{}) (Event, error) {
	payload, err := json.Marshal(data)
	if err != nil {
		return Event{}, fmt.Errorf("eventbus: encode %s: %w", eventType, err)
	}
	return Event{
		ID:            uuid.New().String(),
		Type:          eventType,
		OccurredAt:    time.Now().UTC(),
		CorrelationID: logger.CorrelationIDFromContext(ctx),
		Data:          payload,
	}, nil
}

// NATSPublisher publishes events to subject "<prefix>.<event type>".
type NATSPublisher struct {
	conn   *nats.Conn
	prefix string
}

// Connect dials NATS. An empty URL yields a no-op publisher.
func Connect(cfg config.NATSConfig, clientName string) (Publisher, *nats.Conn, error) {
	if cfg.URL == "" {
		return NoopPublisher{}, nil, nil
	}

	conn, err := nats.Connect(cfg.URL,
		nats.Name(clientName),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", zap.Error(err))
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info("nats reconnected", zap.String("url", c.ConnectedUrl()))
		}),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("eventbus: connect %s: %w", cfg.URL, err)
	}

	return &NATSPublisher{conn: conn, prefix: strings.Trim(cfg.SubjectPrefix, ".")}, conn, nil
}

// Subject returns the subject an event type is published on.
func Subject(prefix, eventType string) string {
	if prefix == "" {
		return eventType
	}
	return prefix + "." + eventType
}

// Publish encodes and sends the event. Delivery is at-most-once.
func (p *NATSPublisher) Publish(ctx context.Context, eventType string, data interface{}) error {
	event, err := NewEvent(ctx, eventType, data)
	if err != nil {
		return err
	}
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("eventbus: encode envelope: %w", err)
	}
	if err := p.conn.Publish(Subject(p.prefix, eventType), body); err != nil {
		return fmt.Errorf("eventbus: publish %s: %w", eventType, err)
	}
	return nil
}

// Close drains pending messages and closes the connection.
func (p *NATSPublisher) Close() {
	if err := p.conn.Drain(); err != nil {
		p.conn.Close()
	}
}

// NoopPublisher discards events.
type NoopPublisher struct{}

func (NoopPublisher) Publish(context.Context, string, interface{}) error { return nil }

func (NoopPublisher) Close() {}
