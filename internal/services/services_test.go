package services_test

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/anonto42/migo/backend/internal/events"
	"github.com/anonto42/migo/backend/internal/models"
	"github.com/anonto42/migo/backend/internal/repositories/memory"
	"github.com/anonto42/migo/backend/internal/services"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// stepClock returns a strictly increasing time, one millisecond per call.
type stepClock struct {
	base  time.Time
	ticks atomic.Int64
}

func newStepClock() *stepClock {
	return &stepClock{base: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *stepClock) Now() time.Time {
	return c.base.Add(time.Duration(c.ticks.Add(1)) * time.Millisecond)
}

type fixture struct {
	store         *memory.Store
	clock         *stepClock
	identity      *services.IdentityService
	relationships *services.RelationshipService
	conversations *services.ConversationService
	notifications *services.NotificationService
	feed          *services.FeedService
	engagement    *services.EngagementService
	follows       *services.FollowService
}

func newFixture(t *testing.T, extra ...services.Option) *fixture {
	t.Helper()
	store := memory.New()
	clock := newStepClock()
	base := []services.Option{services.WithClock(clock.Now), services.WithLogger(zaptest.NewLogger(t))}
	base = append(base, extra...)

	notifications := services.NewNotificationService(store.Notifications(), base...)
	opts := append(append([]services.Option{}, base...), services.WithPublisher(events.NewInProcess(notifications.HandleEvent)))

	identity := services.NewIdentityService(store.Users(), nil, opts...)
	relationships := services.NewRelationshipService(store.Relationships(), identity, opts...)
	return &fixture{
		store:         store,
		clock:         clock,
		identity:      identity,
		relationships: relationships,
		conversations: services.NewConversationService(store.Conversations(), relationships, identity, opts...),
		notifications: notifications,
		feed:          services.NewFeedService(store.Posts(), store.Comments(), opts...),
		engagement:    services.NewEngagementService(store.Posts(), store.Comments(), store.Likes(), opts...),
		follows:       services.NewFollowService(store.Follows(), relationships, identity, opts...),
	}
}

// user inserts an identity with a fixed tag.
func (f *fixture) user(t *testing.T, handle, tag string) *models.User {
	t.Helper()
	u := &models.User{
		ID:        uuid.New(),
		Handle:    handle,
		Tag:       tag,
		Email:     handle + "@example.com",
		CreatedAt: f.clock.Now(),
	}
	require.NoError(t, f.store.Users().CreateUser(t.Context(), u))
	return u
}

// tagSequence yields the given tags in order, then repeats the last one.
func tagSequence(tags ...string) func() string {
	var i atomic.Int64
	return func() string {
		n := int(i.Add(1)) - 1
		if n >= len(tags) {
			n = len(tags) - 1
		}
		return tags[n]
	}
}
