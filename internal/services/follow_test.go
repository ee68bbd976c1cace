package services_test

import (
	"testing"

	"github.com/anonto42/migo/backend/internal/apperrors"
	"github.com/anonto42/migo/backend/internal/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFollowLifecycle(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := t.Context()
	alice := f.user(t, "alice", "AB12")
	bob := f.user(t, "bob", "CD34")
	carol := f.user(t, "carol", "EF56")

	require.NoError(t, f.follows.Follow(ctx, alice.ID, bob.ID))
	require.NoError(t, f.follows.Follow(ctx, carol.ID, bob.ID))
	assert.ErrorIs(t, f.follows.Follow(ctx, alice.ID, bob.ID), apperrors.Conflict(apperrors.ReasonAlreadyFollowing, ""))

	following, err := f.follows.IsFollowing(ctx, alice.ID, bob.ID)
	require.NoError(t, err)
	assert.True(t, following)

	followers, err := f.follows.Followers(ctx, bob.ID)
	require.NoError(t, err)
	handles := []string{}
	for _, u := range followers {
		handles = append(handles, u.Handle)
	}
	assert.ElementsMatch(t, []string{"alice", "carol"}, handles)

	stats, err := f.follows.Stats(ctx, bob.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 2, stats.Followers)
	assert.EqualValues(t, 0, stats.Following)

	views, err := f.notifications.ListForUser(ctx, bob.ID)
	require.NoError(t, err)
	require.Len(t, views, 2)
	assert.Equal(t, models.NotificationFollow, views[0].Type)

	require.NoError(t, f.follows.Unfollow(ctx, alice.ID, bob.ID))
	assert.ErrorIs(t, f.follows.Unfollow(ctx, alice.ID, bob.ID), apperrors.ErrNotFound)

	mine, err := f.follows.Following(ctx, carol.ID)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, bob.ID, mine[0].ID)
}

func TestFollowPolicy(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := t.Context()
	alice := f.user(t, "alice", "AB12")
	bob := f.user(t, "bob", "CD34")

	assert.ErrorIs(t, f.follows.Follow(ctx, alice.ID, alice.ID), apperrors.ErrSelfReference)
	assert.ErrorIs(t, f.follows.Follow(ctx, alice.ID, uuid.New()), apperrors.ErrNotFound)

	_, err := f.relationships.Block(ctx, bob.ID, alice.ID)
	require.NoError(t, err)
	assert.ErrorIs(t, f.follows.Follow(ctx, alice.ID, bob.ID), apperrors.Conflict(apperrors.ReasonBlocked, ""))
}
