package events_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/anonto42/migo/backend/internal/events"
	"github.com/anonto42/migo/backend/internal/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestInProcessDeliversSynchronously(t *testing.T) {
	t.Parallel()

	var got []events.Event
	bus := events.NewInProcess(func(_ context.Context, ev events.Event) error {
		got = append(got, ev)
		return nil
	})

	ev := events.Event{Type: models.NotificationFollow, Recipient: uuid.New(), Actor: uuid.New()}
	require.NoError(t, bus.Publish(t.Context(), ev))
	assert.Equal(t, []events.Event{ev}, got)
}

func TestInProcessPropagatesHandlerError(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	bus := events.NewInProcess(func(context.Context, events.Event) error { return boom })
	assert.ErrorIs(t, bus.Publish(t.Context(), events.Event{Type: models.NotificationMessage}), boom)
}

func TestNopPublisher(t *testing.T) {
	t.Parallel()
	assert.NoError(t, events.Nop{}.Publish(t.Context(), events.Event{}))
}

func TestDecode(t *testing.T) {
	t.Parallel()

	recipient := uuid.New()
	data := []byte(`{"type":"post_like","recipient":"` + recipient.String() + `","actor":"` + uuid.Nil.String() +
		`","entity":"65f0c0ffee","occurred_at":"2026-05-01T12:00:00Z"}`)

	ev, err := events.Decode(data)
	require.NoError(t, err)
	assert.Equal(t, models.NotificationPostLike, ev.Type)
	assert.Equal(t, recipient, ev.Recipient)
	assert.Equal(t, "65f0c0ffee", ev.Entity)
	assert.True(t, ev.OccurredAt.Equal(time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)))

	_, err = events.Decode([]byte(`{"recipient":"` + recipient.String() + `"}`))
	assert.Error(t, err)
	_, err = events.Decode([]byte(`not json`))
	assert.Error(t, err)
}

func TestNATSSubject(t *testing.T) {
	t.Parallel()

	bus := events.NewNATSBus(nil, "", zap.NewNop())
	assert.Equal(t, "migo.events.post_comment", bus.Subject(string(models.NotificationPostComment)))
}
