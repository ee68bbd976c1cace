package services_test

import (
	"sync/atomic"
	"testing"

	"github.com/anonto42/migo/backend/internal/apperrors"
	"github.com/anonto42/migo/backend/internal/models"
	"github.com/google/uuid"
	"github.com/sourcegraph/conc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConcurrentOppositeRequestsCreateOneRow(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	alice := f.user(t, "alice", "AB12")
	bob := f.user(t, "bob", "CD34")

	var (
		wg        conc.WaitGroup
		succeeded atomic.Int32
		conflicts atomic.Int32
	)
	for i := range 32 {
		wg.Go(func() {
			from, to := alice, bob
			if i%2 == 1 {
				from, to = bob, alice
			}
			_, err := f.relationships.Request(t.Context(), from.ID, to.Handle+"#"+to.Tag)
			switch {
			case err == nil:
				succeeded.Add(1)
			case assert.ErrorIs(t, err, apperrors.Conflict(apperrors.ReasonPending, "")):
				conflicts.Add(1)
			}
		})
	}
	wg.Wait()

	assert.EqualValues(t, 1, succeeded.Load())
	assert.EqualValues(t, 31, conflicts.Load())
	assert.Equal(t, 1, f.store.RelationshipCount())
}

func TestRequestValidation(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := t.Context()
	alice := f.user(t, "alice", "AB12")

	_, err := f.relationships.Request(ctx, alice.ID, "alice#AB12")
	assert.ErrorIs(t, err, apperrors.ErrSelfReference)

	_, err = f.relationships.Request(ctx, alice.ID, "nobody#ZZ99")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	_, err = f.relationships.RequestByID(ctx, alice.ID, uuid.New())
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	assert.Zero(t, f.store.RelationshipCount())
}

func TestRespondOnlyFromPendingByNonInitiator(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := t.Context()
	alice := f.user(t, "alice", "AB12")
	bob := f.user(t, "bob", "CD34")

	_, err := f.relationships.Respond(ctx, bob.ID, alice.ID, models.StatusAccepted)
	assert.ErrorIs(t, err, apperrors.ErrInvalidState, "no relationship yet")

	_, err = f.relationships.RequestByID(ctx, alice.ID, bob.ID)
	require.NoError(t, err)

	for _, decision := range []models.RelationshipStatus{models.StatusAccepted, models.StatusRejected} {
		_, err = f.relationships.Respond(ctx, alice.ID, bob.ID, decision)
		assert.ErrorIs(t, err, apperrors.ErrInvalidState, "initiator %s", decision)
	}

	_, err = f.relationships.Respond(ctx, bob.ID, alice.ID, models.StatusBlocked)
	assert.ErrorIs(t, err, apperrors.ErrInvalidState, "block is not a response")

	rel, err := f.relationships.Respond(ctx, bob.ID, alice.ID, models.StatusAccepted)
	require.NoError(t, err)
	assert.Equal(t, models.StatusAccepted, rel.Status)

	_, err = f.relationships.Respond(ctx, bob.ID, alice.ID, models.StatusRejected)
	assert.NotErrorIs(t, err, apperrors.ErrConflict)
	assert.ErrorIs(t, err, apperrors.InvalidState(apperrors.ReasonNotPending, ""))
}

func TestConcurrentRespondResolvesOnce(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	alice := f.user(t, "alice", "AB12")
	bob := f.user(t, "bob", "CD34")
	_, err := f.relationships.RequestByID(t.Context(), alice.ID, bob.ID)
	require.NoError(t, err)

	var (
		wg    conc.WaitGroup
		wins  atomic.Int32
		stale atomic.Int32
	)
	for i := range 16 {
		wg.Go(func() {
			decision := models.StatusAccepted
			if i%2 == 1 {
				decision = models.StatusRejected
			}
			_, err := f.relationships.Respond(t.Context(), bob.ID, alice.ID, decision)
			if err == nil {
				wins.Add(1)
			} else if assert.ErrorIs(t, err, apperrors.ErrInvalidState) {
				stale.Add(1)
			}
		})
	}
	wg.Wait()

	assert.EqualValues(t, 1, wins.Load())
	assert.EqualValues(t, 15, stale.Load())
}

func TestRequestConflicts(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := t.Context()
	alice := f.user(t, "alice", "AB12")
	bob := f.user(t, "bob", "CD34")

	_, err := f.relationships.Request(ctx, alice.ID, "bob#CD34")
	require.NoError(t, err)
	_, err = f.relationships.Request(ctx, bob.ID, "alice#AB12")
	assert.ErrorIs(t, err, apperrors.Conflict(apperrors.ReasonPending, ""))

	_, err = f.relationships.Respond(ctx, bob.ID, alice.ID, models.StatusAccepted)
	require.NoError(t, err)
	_, err = f.relationships.Request(ctx, bob.ID, "alice#AB12")
	assert.ErrorIs(t, err, apperrors.Conflict(apperrors.ReasonAlreadyFriends, ""))
}

func TestRejectionIsNotSticky(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := t.Context()
	alice := f.user(t, "alice", "AB12")
	bob := f.user(t, "bob", "CD34")

	_, err := f.relationships.RequestByID(ctx, alice.ID, bob.ID)
	require.NoError(t, err)
	_, err = f.relationships.Respond(ctx, bob.ID, alice.ID, models.StatusRejected)
	require.NoError(t, err)

	rel, err := f.relationships.RequestByID(ctx, bob.ID, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, rel.Status)
	assert.Equal(t, bob.ID, rel.InitiatorID)
	assert.Equal(t, 1, f.store.RelationshipCount())

	// alice is now the responder
	_, err = f.relationships.Respond(ctx, alice.ID, bob.ID, models.StatusAccepted)
	require.NoError(t, err)
}

func TestBlockIsSticky(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := t.Context()
	alice := f.user(t, "alice", "AB12")
	bob := f.user(t, "bob", "CD34")

	_, err := f.relationships.RequestByID(ctx, alice.ID, bob.ID)
	require.NoError(t, err)
	_, err = f.relationships.Respond(ctx, bob.ID, alice.ID, models.StatusAccepted)
	require.NoError(t, err)

	rel, err := f.relationships.Block(ctx, alice.ID, bob.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusBlocked, rel.Status)
	assert.True(t, rel.BlockedBy(alice.ID))
	assert.False(t, rel.BlockedBy(bob.ID))

	rel, err = f.relationships.Block(ctx, alice.ID, bob.ID)
	require.NoError(t, err, "blocking twice is idempotent")
	assert.Equal(t, []uuid.UUID{alice.ID}, rel.Blockers())

	blocked := apperrors.Conflict(apperrors.ReasonBlocked, "")
	_, err = f.relationships.Request(ctx, alice.ID, "bob#CD34")
	assert.ErrorIs(t, err, blocked)
	_, err = f.relationships.Request(ctx, bob.ID, "alice#AB12")
	assert.ErrorIs(t, err, blocked)
	_, err = f.relationships.Respond(ctx, bob.ID, alice.ID, models.StatusAccepted)
	assert.ErrorIs(t, err, apperrors.ErrInvalidState)

	err = f.relationships.Unblock(ctx, bob.ID, alice.ID)
	assert.ErrorIs(t, err, apperrors.InvalidState(apperrors.ReasonNotBlocker, ""))

	require.NoError(t, f.relationships.Unblock(ctx, alice.ID, bob.ID))
	status, err := f.relationships.Status(ctx, alice.ID, bob.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusNone, status)

	_, err = f.relationships.Request(ctx, bob.ID, "alice#AB12")
	assert.NoError(t, err)
}

func TestMutualBlock(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := t.Context()
	alice := f.user(t, "alice", "AB12")
	bob := f.user(t, "bob", "CD34")

	_, err := f.relationships.Block(ctx, alice.ID, bob.ID)
	require.NoError(t, err)
	rel, err := f.relationships.Block(ctx, bob.ID, alice.ID)
	require.NoError(t, err)
	assert.True(t, rel.BlockedBy(alice.ID))
	assert.True(t, rel.BlockedBy(bob.ID))

	// alice lifting her block leaves bob's in force
	require.NoError(t, f.relationships.Unblock(ctx, alice.ID, bob.ID))
	status, err := f.relationships.Status(ctx, alice.ID, bob.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusBlocked, status)
	assert.Equal(t, 1, f.store.RelationshipCount())

	_, err = f.relationships.Request(ctx, alice.ID, "bob#CD34")
	assert.ErrorIs(t, err, apperrors.Conflict(apperrors.ReasonBlocked, ""))

	err = f.relationships.Unblock(ctx, alice.ID, bob.ID)
	assert.ErrorIs(t, err, apperrors.InvalidState(apperrors.ReasonNotBlocker, ""), "alice has no block left")

	aliceList, err := f.relationships.ListRelationships(ctx, alice.ID)
	require.NoError(t, err)
	assert.Empty(t, aliceList.Blocked)
	bobList, err := f.relationships.ListRelationships(ctx, bob.ID)
	require.NoError(t, err)
	assert.Len(t, bobList.Blocked, 1)

	require.NoError(t, f.relationships.Unblock(ctx, bob.ID, alice.ID))
	status, err = f.relationships.Status(ctx, alice.ID, bob.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusNone, status)
	assert.Zero(t, f.store.RelationshipCount())
}

func TestBlockValidation(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	alice := f.user(t, "alice", "AB12")

	_, err := f.relationships.Block(t.Context(), alice.ID, alice.ID)
	assert.ErrorIs(t, err, apperrors.ErrSelfReference)
	_, err = f.relationships.Block(t.Context(), alice.ID, uuid.New())
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestUnfriendAndCancel(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := t.Context()
	alice := f.user(t, "alice", "AB12")
	bob := f.user(t, "bob", "CD34")

	_, err := f.relationships.RequestByID(ctx, alice.ID, bob.ID)
	require.NoError(t, err)
	assert.ErrorIs(t, f.relationships.Unfriend(ctx, alice.ID, bob.ID), apperrors.ErrInvalidState)
	assert.ErrorIs(t, f.relationships.CancelRequest(ctx, bob.ID, alice.ID), apperrors.ErrInvalidState,
		"only the initiator can cancel")
	require.NoError(t, f.relationships.CancelRequest(ctx, alice.ID, bob.ID))
	assert.Zero(t, f.store.RelationshipCount())

	_, err = f.relationships.RequestByID(ctx, alice.ID, bob.ID)
	require.NoError(t, err)
	_, err = f.relationships.Respond(ctx, bob.ID, alice.ID, models.StatusAccepted)
	require.NoError(t, err)
	require.NoError(t, f.relationships.Unfriend(ctx, bob.ID, alice.ID))
	assert.Zero(t, f.store.RelationshipCount())
}

func TestListRelationshipsClassifiesPending(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := t.Context()
	alice := f.user(t, "alice", "AB12")
	bob := f.user(t, "bob", "CD34")
	carol := f.user(t, "carol", "EF56")
	dave := f.user(t, "dave", "GH78")
	erin := f.user(t, "erin", "JK90")

	_, err := f.relationships.RequestByID(ctx, alice.ID, bob.ID)
	require.NoError(t, err)
	_, err = f.relationships.RequestByID(ctx, carol.ID, alice.ID)
	require.NoError(t, err)
	_, err = f.relationships.RequestByID(ctx, dave.ID, alice.ID)
	require.NoError(t, err)
	_, err = f.relationships.Respond(ctx, alice.ID, dave.ID, models.StatusAccepted)
	require.NoError(t, err)
	_, err = f.relationships.Block(ctx, alice.ID, erin.ID)
	require.NoError(t, err)

	list, err := f.relationships.ListRelationships(ctx, alice.ID)
	require.NoError(t, err)
	require.Len(t, list.OutboundPending, 1)
	assert.Equal(t, bob.ID, list.OutboundPending[0].Other(alice.ID))
	require.Len(t, list.InboundPending, 1)
	assert.Equal(t, carol.ID, list.InboundPending[0].Other(alice.ID))
	require.Len(t, list.Accepted, 1)
	assert.Equal(t, dave.ID, list.Accepted[0].Other(alice.ID))
	require.Len(t, list.Blocked, 1)

	erinList, err := f.relationships.ListRelationships(ctx, erin.ID)
	require.NoError(t, err)
	assert.Empty(t, erinList.Blocked, "only the blocker sees the block")
}

func TestFriendsCarryPresence(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := t.Context()
	alice := f.user(t, "alice", "AB12")
	bob := f.user(t, "bob", "CD34")
	carol := f.user(t, "carol", "EF56")
	dave := f.user(t, "dave", "GH78")

	for _, friend := range []uuid.UUID{bob.ID, carol.ID} {
		_, err := f.relationships.RequestByID(ctx, alice.ID, friend)
		require.NoError(t, err)
		_, err = f.relationships.Respond(ctx, friend, alice.ID, models.StatusAccepted)
		require.NoError(t, err)
	}
	_, err := f.relationships.RequestByID(ctx, dave.ID, alice.ID)
	require.NoError(t, err)

	_, err = f.identity.UpdatePresence(ctx, carol.ID, models.PresenceOnline, "gaming", nil)
	require.NoError(t, err)
	_, err = f.identity.UpdatePresence(ctx, dave.ID, models.PresenceOnline, "", nil)
	require.NoError(t, err)

	list, err := f.relationships.ListRelationships(ctx, alice.ID)
	require.NoError(t, err)
	require.Len(t, list.Friends, 2)
	assert.Equal(t, "bob", list.Friends[0].Handle)
	assert.Equal(t, models.PresenceOffline, list.Friends[0].Presence)
	assert.Equal(t, "carol", list.Friends[1].Handle)
	assert.Equal(t, models.PresenceOnline, list.Friends[1].Presence)
	assert.Equal(t, "gaming", list.Friends[1].CurrentActivity)

	online, err := f.relationships.ListFriends(ctx, alice.ID, true)
	require.NoError(t, err)
	require.Len(t, online, 1, "pending dave is online but not a friend")
	assert.Equal(t, carol.ID, online[0].ID)

	all, err := f.relationships.ListFriends(ctx, alice.ID, false)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestFriendEventsReachNotifications(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := t.Context()
	alice := f.user(t, "alice", "AB12")
	bob := f.user(t, "bob", "CD34")

	_, err := f.relationships.Request(ctx, alice.ID, "bob#CD34")
	require.NoError(t, err)
	_, err = f.relationships.Respond(ctx, bob.ID, alice.ID, models.StatusAccepted)
	require.NoError(t, err)

	bobViews, err := f.notifications.ListForUser(ctx, bob.ID)
	require.NoError(t, err)
	require.Len(t, bobViews, 1)
	assert.Equal(t, models.NotificationFriendRequest, bobViews[0].Type)
	assert.Equal(t, alice.ID, bobViews[0].LatestActor)

	aliceViews, err := f.notifications.ListForUser(ctx, alice.ID)
	require.NoError(t, err)
	require.Len(t, aliceViews, 1)
	assert.Equal(t, models.NotificationFriendAccept, aliceViews[0].Type)
	assert.Equal(t, bob.ID, aliceViews[0].LatestActor)
}
