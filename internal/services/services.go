// Package services implements the social core: identity resolution, the
// pairwise relationship state machine, direct conversation resolution,
// notification aggregation and keyset feeds.
//
// Services hold no locks of their own. Uniqueness and state transitions are
// pushed into single conditional repository operations, so any number of
// service instances may run against one store.
package services

import (
	"context"
	"errors"
	"time"

	"github.com/anonto42/migo/backend/internal/apperrors"
	"github.com/anonto42/migo/backend/internal/events"
	"github.com/anonto42/migo/backend/internal/models"
	"github.com/anonto42/migo/backend/internal/repositories"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type config struct {
	now       func() time.Time
	logger    *zap.Logger
	publisher events.Publisher
	newTag    func() string
}

// Option configures a service.
type Option func(*config)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(c *config) { c.now = now }
}

// WithLogger sets the base logger; each service names its own child.
func WithLogger(logger *zap.Logger) Option {
	return func(c *config) { c.logger = logger }
}

// WithPublisher sets where domain events are sent. Without it events are dropped.
func WithPublisher(p events.Publisher) Option {
	return func(c *config) { c.publisher = p }
}

// WithTagGenerator overrides tag generation for identity provisioning.
func WithTagGenerator(gen func() string) Option {
	return func(c *config) { c.newTag = gen }
}

func newConfig(opts []Option) config {
	c := config{
		now:       func() time.Time { return time.Now().UTC().Truncate(time.Microsecond) },
		logger:    zap.NewNop(),
		publisher: events.Nop{},
		newTag:    GenerateTag,
	}
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// publish sends ev and logs delivery failures. Notifications are a side
// effect; the originating operation has already committed.
func (c config) publish(ctx context.Context, ev events.Event) {
	if ev.Recipient == ev.Actor {
		return
	}
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = c.now()
	}
	if err := c.publisher.Publish(ctx, ev); err != nil {
		c.logger.Warn("Failed to publish event",
			zap.String("type", string(ev.Type)),
			zap.String("recipient", ev.Recipient.String()),
			zap.Error(err))
	}
}

// storageError converts an unexpected repository error into a StorageFailure.
// Typed errors pass through unchanged. A duplicate key that escaped a
// conditional write means the schema and the code disagree, which is fatal.
func storageError(err error, op string) error {
	var appErr *apperrors.Error
	if errors.As(err, &appErr) {
		return err
	}
	return apperrors.Storage(err, false, op)
}

// IdentityLookup is the part of IdentityService other services depend on.
type IdentityLookup interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

var _ IdentityLookup = (*IdentityService)(nil)

func isNotFound(err error) bool {
	return errors.Is(err, repositories.ErrNotFound)
}
