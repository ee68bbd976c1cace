// Package events carries domain events from the social services to the
// notification aggregator, either in-process or over NATS.
package events

import (
	"context"
	"time"

	"github.com/anonto42/migo/backend/internal/models"
	"github.com/google/uuid"
)

// Event is a fact that should reach a recipient's notification stream.
type Event struct {
	Type       models.NotificationType `json:"type"`
	Recipient  uuid.UUID               `json:"recipient"`
	Actor      uuid.UUID               `json:"actor"`
	Entity     string                  `json:"entity,omitempty"`
	OccurredAt time.Time               `json:"occurred_at"`
}

// Publisher delivers events.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

// Handler consumes events.
type Handler func(ctx context.Context, ev Event) error

// InProcess delivers each event synchronously to a handler.
type InProcess struct {
	handler Handler
}

// NewInProcess returns a Publisher that calls handler synchronously.
func NewInProcess(handler Handler) *InProcess {
	return &InProcess{handler: handler}
}

func (b *InProcess) Publish(ctx context.Context, ev Event) error {
	return b.handler(ctx, ev)
}

// Nop drops every event.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }
