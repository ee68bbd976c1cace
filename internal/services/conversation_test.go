package services_test

import (
	"sync"
	"testing"
	"time"

	"github.com/anonto42/migo/backend/internal/apperrors"
	"github.com/anonto42/migo/backend/internal/models"
	"github.com/anonto42/migo/backend/internal/pagination"
	"github.com/google/uuid"
	"github.com/sourcegraph/conc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConcurrentGetOrCreateDirectReturnsOneConversation(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	alice := f.user(t, "alice", "AB12")
	bob := f.user(t, "bob", "CD34")

	var (
		wg  conc.WaitGroup
		mu  sync.Mutex
		ids = map[uuid.UUID]int{}
	)
	for i := range 24 {
		wg.Go(func() {
			a, b := alice.ID, bob.ID
			if i%2 == 1 {
				a, b = b, a
			}
			conv, err := f.conversations.GetOrCreateDirect(t.Context(), a, b)
			if !assert.NoError(t, err) {
				return
			}
			mu.Lock()
			ids[conv.ID]++
			mu.Unlock()
		})
	}
	wg.Wait()

	assert.Len(t, ids, 1)
	assert.Equal(t, 1, f.store.DirectConversationCount())
}

func TestGetOrCreateDirectValidation(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	alice := f.user(t, "alice", "AB12")

	_, err := f.conversations.GetOrCreateDirect(t.Context(), alice.ID, alice.ID)
	assert.ErrorIs(t, err, apperrors.ErrSelfReference)
	_, err = f.conversations.GetOrCreateDirect(t.Context(), alice.ID, uuid.New())
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	assert.Zero(t, f.store.DirectConversationCount())
}

func TestDirectConversationHasExactlyThePair(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	alice := f.user(t, "alice", "AB12")
	bob := f.user(t, "bob", "CD34")

	conv, err := f.conversations.GetOrCreateDirect(t.Context(), bob.ID, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ConversationDirect, conv.Kind)

	members := []uuid.UUID{}
	for _, m := range conv.Members {
		members = append(members, m.UserID)
	}
	assert.ElementsMatch(t, []uuid.UUID{alice.ID, bob.ID}, members)
}

func TestPostMessageRequiresMembership(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := t.Context()
	alice := f.user(t, "alice", "AB12")
	bob := f.user(t, "bob", "CD34")
	mallory := f.user(t, "mallory", "MM00")

	conv, err := f.conversations.GetOrCreateDirect(ctx, alice.ID, bob.ID)
	require.NoError(t, err)

	_, err = f.conversations.PostMessage(ctx, conv.ID, mallory.ID, "hi")
	assert.ErrorIs(t, err, apperrors.InvalidState(apperrors.ReasonNotMember, ""))

	_, err = f.conversations.PostMessage(ctx, uuid.New(), alice.ID, "hi")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	_, err = f.conversations.ListMessages(ctx, conv.ID, mallory.ID, "", 10)
	assert.ErrorIs(t, err, apperrors.ErrInvalidState)
}

func TestMessageRequestsArePromotedOnAccept(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := t.Context()
	alice := f.user(t, "alice", "AB12")
	bob := f.user(t, "bob", "CD34")

	conv, err := f.conversations.GetOrCreateDirect(ctx, alice.ID, bob.ID)
	require.NoError(t, err)
	msg, err := f.conversations.PostMessage(ctx, conv.ID, alice.ID, "hello bob")
	require.NoError(t, err)
	assert.Equal(t, models.MessageRequest, msg.Kind)
	_, err = f.conversations.PostMessage(ctx, conv.ID, alice.ID, "are you there?")
	require.NoError(t, err)

	page, err := f.conversations.ListMessages(ctx, conv.ID, bob.ID, "", 10)
	require.NoError(t, err)
	require.Len(t, page.Items, 2)
	for _, m := range page.Items {
		assert.Equal(t, models.MessageRequest, m.Kind)
	}

	_, err = f.relationships.RequestByID(ctx, alice.ID, bob.ID)
	require.NoError(t, err)
	_, err = f.relationships.Respond(ctx, bob.ID, alice.ID, models.StatusAccepted)
	require.NoError(t, err)

	page, err = f.conversations.ListMessages(ctx, conv.ID, bob.ID, "", 10)
	require.NoError(t, err)
	for _, m := range page.Items {
		assert.Equal(t, models.MessageDirect, m.Kind)
	}

	summaries, err := f.conversations.ListConversations(ctx, bob.ID)
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.Equal(t, models.MessageDirect, summaries[0].Classified)
}

func TestPostMessageBlockedPair(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := t.Context()
	alice := f.user(t, "alice", "AB12")
	bob := f.user(t, "bob", "CD34")

	conv, err := f.conversations.GetOrCreateDirect(ctx, alice.ID, bob.ID)
	require.NoError(t, err)
	_, err = f.relationships.Block(ctx, bob.ID, alice.ID)
	require.NoError(t, err)

	for _, author := range []uuid.UUID{alice.ID, bob.ID} {
		_, err = f.conversations.PostMessage(ctx, conv.ID, author, "hi")
		assert.ErrorIs(t, err, apperrors.Conflict(apperrors.ReasonBlocked, ""))
	}
}

func TestUnreadCountsAndMarkRead(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := t.Context()
	alice := f.user(t, "alice", "AB12")
	bob := f.user(t, "bob", "CD34")

	conv, err := f.conversations.GetOrCreateDirect(ctx, alice.ID, bob.ID)
	require.NoError(t, err)
	for _, text := range []string{"one", "two", "three"} {
		_, err = f.conversations.PostMessage(ctx, conv.ID, alice.ID, text)
		require.NoError(t, err)
	}

	unread := func(user uuid.UUID) int64 {
		t.Helper()
		summaries, err := f.conversations.ListConversations(ctx, user)
		require.NoError(t, err)
		require.Len(t, summaries, 1)
		return summaries[0].UnreadCount
	}
	assert.Zero(t, unread(alice.ID), "sending marks the author's own messages read")
	assert.EqualValues(t, 3, unread(bob.ID))

	require.NoError(t, f.conversations.MarkRead(ctx, conv.ID, bob.ID))
	assert.Zero(t, unread(bob.ID))

	_, err = f.conversations.PostMessage(ctx, conv.ID, alice.ID, "four")
	require.NoError(t, err)
	assert.EqualValues(t, 1, unread(bob.ID))

	views, err := f.notifications.ListForUser(ctx, bob.ID)
	require.NoError(t, err)
	assert.Len(t, views, 4, "message notifications are not grouped")
	assert.Equal(t, models.NotificationMessage, views[0].Type)
	assert.Equal(t, conv.ID.String(), views[0].EntityID)
}

func TestListMessagesPagination(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := t.Context()
	alice := f.user(t, "alice", "AB12")
	bob := f.user(t, "bob", "CD34")

	conv, err := f.conversations.GetOrCreateDirect(ctx, alice.ID, bob.ID)
	require.NoError(t, err)
	var posted []uuid.UUID
	for range 5 {
		msg, err := f.conversations.PostMessage(ctx, conv.ID, bob.ID, "x")
		require.NoError(t, err)
		posted = append(posted, msg.ID)
	}

	var seen []uuid.UUID
	token := ""
	for {
		page, err := f.conversations.ListMessages(ctx, conv.ID, alice.ID, token, 2)
		require.NoError(t, err)
		for _, m := range page.Items {
			seen = append(seen, m.ID)
		}
		if !page.HasMore {
			break
		}
		token = page.NextCursor
	}
	require.Len(t, seen, 5)
	for i := range seen {
		assert.Equal(t, posted[len(posted)-1-i], seen[i], "newest first")
	}

	_, err = f.conversations.ListMessages(ctx, conv.ID, alice.ID, "%%%", 2)
	assert.ErrorIs(t, err, apperrors.InvalidState(apperrors.ReasonBadCursor, ""))

	// well-formed token whose id is not a message id
	foreign := pagination.Cursor{CreatedAt: time.Now(), ID: "65f0c0ffee00000000000000"}.Encode()
	_, err = f.conversations.ListMessages(ctx, conv.ID, alice.ID, foreign, 2)
	assert.ErrorIs(t, err, apperrors.InvalidState(apperrors.ReasonBadCursor, ""))
}

func TestCreateGroup(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := t.Context()
	alice := f.user(t, "alice", "AB12")
	bob := f.user(t, "bob", "CD34")
	carol := f.user(t, "carol", "EF56")

	group, err := f.conversations.CreateGroup(ctx, alice.ID, "weekend", []uuid.UUID{bob.ID, carol.ID, bob.ID})
	require.NoError(t, err)
	assert.Equal(t, models.ConversationGroup, group.Kind)
	assert.Len(t, group.Members, 3)

	msg, err := f.conversations.PostMessage(ctx, group.ID, carol.ID, "hi all")
	require.NoError(t, err)
	assert.Equal(t, models.MessageDirect, msg.Kind)

	_, err = f.conversations.CreateGroup(ctx, alice.ID, "solo", []uuid.UUID{alice.ID})
	assert.ErrorIs(t, err, apperrors.ErrInvalidState)
	_, err = f.conversations.CreateGroup(ctx, alice.ID, "ghosts", []uuid.UUID{uuid.New()})
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	assert.Zero(t, f.store.DirectConversationCount())
}
