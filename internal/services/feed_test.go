package services_test

import (
	"testing"
	"time"

	"github.com/anonto42/migo/backend/internal/apperrors"
	"github.com/anonto42/migo/backend/internal/models"
	"github.com/anonto42/migo/backend/internal/pagination"
	"github.com/anonto42/migo/backend/internal/services"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func postIDs(posts []models.Post) []string {
	ids := make([]string, len(posts))
	for i, p := range posts {
		ids[i] = p.ID.Hex()
	}
	return ids
}

func TestFeedPageStableUnderInserts(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := t.Context()
	author := f.user(t, "alice", "AB12")

	var created []string
	for range 5 {
		p, err := f.engagement.CreatePost(ctx, author.ID, "post", nil)
		require.NoError(t, err)
		created = append(created, p.ID.Hex())
	}

	first, err := f.feed.Page(ctx, "", 2)
	require.NoError(t, err)
	assert.Equal(t, []string{created[4], created[3]}, postIDs(first.Items))
	assert.True(t, first.HasMore)

	_, err = f.engagement.CreatePost(ctx, author.ID, "newer", nil)
	require.NoError(t, err)

	second, err := f.feed.Page(ctx, first.NextCursor, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{created[2], created[1]}, postIDs(second.Items))

	third, err := f.feed.Page(ctx, second.NextCursor, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{created[0]}, postIDs(third.Items))
	assert.False(t, third.HasMore)
}

func TestFeedTieBreaksOnID(t *testing.T) {
	t.Parallel()
	frozen := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	f := newFixture(t, services.WithClock(func() time.Time { return frozen }))
	ctx := t.Context()
	author := uuid.New()

	for range 7 {
		_, err := f.engagement.CreatePost(ctx, author, "same instant", nil)
		require.NoError(t, err)
	}

	seen := map[string]bool{}
	token := ""
	for {
		page, err := f.feed.Page(ctx, token, 3)
		require.NoError(t, err)
		for _, p := range page.Items {
			assert.False(t, seen[p.ID.Hex()], "duplicate %s", p.ID.Hex())
			seen[p.ID.Hex()] = true
		}
		if !page.HasMore {
			break
		}
		token = page.NextCursor
	}
	assert.Len(t, seen, 7)
}

func TestFeedLimitAndCursorValidation(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := t.Context()
	author := uuid.New()
	for range 3 {
		_, err := f.engagement.CreatePost(ctx, author, "post", nil)
		require.NoError(t, err)
	}

	page, err := f.feed.Page(ctx, "", 0)
	require.NoError(t, err)
	assert.Len(t, page.Items, 3)
	assert.False(t, page.HasMore)

	_, err = f.feed.Page(ctx, "not-a-cursor", 10)
	assert.ErrorIs(t, err, apperrors.InvalidState(apperrors.ReasonBadCursor, ""))

	foreign := pagination.Cursor{CreatedAt: time.Now(), ID: "not-an-object-id"}.Encode()
	_, err = f.feed.Page(ctx, foreign, 10)
	assert.ErrorIs(t, err, apperrors.InvalidState(apperrors.ReasonBadCursor, ""))

	empty, err := f.feed.AuthorPage(ctx, uuid.New(), "", 10)
	require.NoError(t, err)
	assert.Empty(t, empty.Items)
	assert.Empty(t, empty.NextCursor)
}

func TestAuthorPageFiltersByAuthor(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := t.Context()
	alice, bob := uuid.New(), uuid.New()

	for _, author := range []uuid.UUID{alice, bob, alice} {
		_, err := f.engagement.CreatePost(ctx, author, "post", nil)
		require.NoError(t, err)
	}
	page, err := f.feed.AuthorPage(ctx, alice, "", 10)
	require.NoError(t, err)
	require.Len(t, page.Items, 2)
	for _, p := range page.Items {
		assert.Equal(t, alice.String(), p.UserID)
	}
}

func TestLikesAndCommentsNotifyAuthor(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := t.Context()
	author := f.user(t, "alice", "AB12")
	x, y, z := uuid.New(), uuid.New(), uuid.New()

	post, err := f.engagement.CreatePost(ctx, author.ID, "hello", nil)
	require.NoError(t, err)
	postID := post.ID.Hex()

	for _, user := range []uuid.UUID{x, y, z} {
		require.NoError(t, f.engagement.LikePost(ctx, user, postID))
	}
	err = f.engagement.LikePost(ctx, x, postID)
	assert.ErrorIs(t, err, apperrors.Conflict(apperrors.ReasonAlreadyLiked, ""))
	require.NoError(t, f.engagement.LikePost(ctx, author.ID, postID), "self-like stores no notification")

	_, err = f.engagement.CommentOnPost(ctx, y, postID, "nice")
	require.NoError(t, err)

	stored, err := f.engagement.GetPost(ctx, postID)
	require.NoError(t, err)
	assert.Equal(t, 4, stored.LikesCount)
	assert.Equal(t, 1, stored.CommentsCount)

	views, err := f.notifications.ListForUser(ctx, author.ID)
	require.NoError(t, err)
	require.Len(t, views, 2)
	assert.Equal(t, models.NotificationPostComment, views[0].Type)
	assert.Equal(t, models.NotificationPostLike, views[1].Type)
	assert.Equal(t, 3, views[1].Count)

	require.NoError(t, f.engagement.UnlikePost(ctx, x, postID))
	assert.ErrorIs(t, f.engagement.UnlikePost(ctx, x, postID), apperrors.ErrNotFound)
	liked, err := f.engagement.HasLiked(ctx, x, postID)
	require.NoError(t, err)
	assert.False(t, liked)
}

func TestCommentsPage(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := t.Context()
	author := uuid.New()

	post, err := f.engagement.CreatePost(ctx, author, "hello", nil)
	require.NoError(t, err)
	for range 3 {
		_, err := f.engagement.CommentOnPost(ctx, uuid.New(), post.ID.Hex(), "c")
		require.NoError(t, err)
	}

	page, err := f.feed.CommentsPage(ctx, post.ID.Hex(), "", 2)
	require.NoError(t, err)
	require.Len(t, page.Items, 2)
	assert.True(t, page.HasMore)

	rest, err := f.feed.CommentsPage(ctx, post.ID.Hex(), page.NextCursor, 2)
	require.NoError(t, err)
	require.Len(t, rest.Items, 1)
	assert.False(t, rest.HasMore)
	assert.True(t, rest.Items[0].CreatedAt.Before(page.Items[1].CreatedAt))

	_, err = f.feed.CommentsPage(ctx, "000000000000000000000000", "", 2)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	_, err = f.engagement.CommentOnPost(ctx, author, "missing", "c")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}
