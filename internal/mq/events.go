package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/booklend/apiserver/config"
)

// LoanEventType identifies the lifecycle transition an event records.
type LoanEventType string

const (
	LoanApproved LoanEventType = "approved"
	LoanDenied   LoanEventType = "denied"
	LoanReturned LoanEventType = "returned"
)

// LoanEvent is published whenever a borrow request is decided or a
// loan is returned. HistoryID is zero for denials.
type LoanEvent struct {
	Type       LoanEventType `json:"type"`
	RequestID  int           `json:"request_id,omitempty"`
	HistoryID  int           `json:"history_id,omitempty"`
	UserID     int           `json:"user_id"`
	BookID     int           `json:"book_id"`
	OccurredAt time.Time     `json:"occurred_at"`
}

// Message represents a broker-agnostic payload delivered to
// subscribers.
type Message struct {
	ID         string
	Data       []byte
	Attributes map[string]string
}

// Handler processes a raw message. Return an error to signal a
// retry/nack.
type Handler func(ctx context.Context, msg Message) error

// Backend defines the broker-agnostic operations used by the event bus.
type Backend interface {
	Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error)
	Subscribe(ctx context.Context, channel string, handler Handler) error
	Close() error
}

// EventBus publishes and consumes loan events on a fixed channel over
// any backend.
type EventBus struct {
	backend Backend
	channel string
}

// NewEventBus constructs an EventBus over the provided backend.
func NewEventBus(backend Backend, channel string) *EventBus {
	return &EventBus{backend: backend, channel: channel}
}

// NewEventBusFromConfig selects and connects the configured broker.
// Returns nil without error when no backend is configured.
func NewEventBusFromConfig(ctx context.Context, cfg config.MQConfig) (*EventBus, error) {
	switch cfg.Backend {
	case config.BackendNone:
		return nil, nil
	case config.BackendRabbitMQ:
		backend, err := NewRabbitMQBackend(cfg.RabbitMQ)
		if err != nil {
			return nil, err
		}
		return NewEventBus(backend, cfg.Channel), nil
	case config.BackendPubSub:
		backend, err := NewPubSubBackend(ctx, cfg.PubSub)
		if err != nil {
			return nil, err
		}
		return NewEventBus(backend, cfg.Channel), nil
	default:
		return nil, fmt.Errorf("unknown mq backend %q", cfg.Backend)
	}
}

// PublishLoanEvent sends the event as JSON and returns the broker
// message id.
func (e *EventBus) PublishLoanEvent(ctx context.Context, event LoanEvent) (string, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return "", err
	}
	attrs := map[string]string{"event_type": string(event.Type)}
	return e.backend.Publish(ctx, e.channel, data, attrs)
}

// SubscribeLoanEvents consumes loan events until ctx is cancelled.
// Messages that fail to decode are dropped rather than redelivered.
func (e *EventBus) SubscribeLoanEvents(ctx context.Context, handler func(ctx context.Context, event LoanEvent) error) error {
	return e.backend.Subscribe(ctx, e.channel, func(ctx context.Context, msg Message) error {
		var event LoanEvent
		if err := json.Unmarshal(msg.Data, &event); err != nil {
			return nil
		}
		return handler(ctx, event)
	})
}

// Close closes the underlying backend.
func (e *EventBus) Close() error {
	return e.backend.Close()
}
