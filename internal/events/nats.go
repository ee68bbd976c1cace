package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

const (
	DefaultSubjectPrefix = "migo.events"
	notificationsQueue   = "notifications"
	handleTimeout        = 5 * time.Second
)

// NATSBus publishes events as JSON on "<prefix>.<type>" and feeds a queue
// subscription back into a Handler, so any number of API nodes can share
// the notification write load.
type NATSBus struct {
	conn   *nats.Conn
	prefix string
	logger *zap.Logger
}

func NewNATSBus(conn *nats.Conn, prefix string, logger *zap.Logger) *NATSBus {
	if prefix == "" {
		prefix = DefaultSubjectPrefix
	}
	return &NATSBus{conn: conn, prefix: prefix, logger: logger.Named("events")}
}

// Subject returns the subject an event of type typ is published on.
func (b *NATSBus) Subject(typ string) string {
	return b.prefix + "." + typ
}

func (b *NATSBus) Publish(_ context.Context, ev Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}
	if err := b.conn.Publish(b.Subject(string(ev.Type)), data); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}
	return nil
}

// Subscribe joins the notifications queue group and hands every decoded event to handler.
func (b *NATSBus) Subscribe(handler Handler) (*nats.Subscription, error) {
	sub, err := b.conn.QueueSubscribe(b.prefix+".>", notificationsQueue, func(msg *nats.Msg) {
		ev, err := Decode(msg.Data)
		if err != nil {
			b.logger.Warn("Dropping malformed event", zap.String("subject", msg.Subject), zap.Error(err))
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), handleTimeout)
		defer cancel()
		if err := handler(ctx, ev); err != nil {
			b.logger.Error("Failed to handle event",
				zap.String("type", string(ev.Type)),
				zap.String("recipient", ev.Recipient.String()),
				zap.Error(err))
		}
	})
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe to %s: %w", b.prefix, err)
	}
	return sub, nil
}

// Decode parses an event published by NATSBus.
func Decode(data []byte) (Event, error) {
	var ev Event
	if err := json.Unmarshal(data, &ev); err != nil {
		return Event{}, err
	}
	if ev.Type == "" {
		return Event{}, fmt.Errorf("event has no type")
	}
	return ev, nil
}
