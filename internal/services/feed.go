package services

import (
	"context"
	"errors"

	"github.com/anonto42/migo/backend/internal/apperrors"
	"github.com/anonto42/migo/backend/internal/models"
	"github.com/anonto42/migo/backend/internal/pagination"
	"github.com/anonto42/migo/backend/internal/repositories"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// FeedService serves reverse-chronological keyset pages of posts and comments.
type FeedService struct {
	config
	posts    repositories.PostRepository
	comments repositories.CommentRepository
	logger   *zap.Logger
}

// NewFeedService creates a FeedService over the post and comment stores.
func NewFeedService(posts repositories.PostRepository, comments repositories.CommentRepository, opts ...Option) *FeedService {
	cfg := newConfig(opts)
	return &FeedService{
		config:   cfg,
		posts:    posts,
		comments: comments,
		logger:   cfg.logger.Named("feed"),
	}
}

func decodeCursor(token string) (*pagination.Cursor, error) {
	cursor, err := pagination.Decode(token)
	if err != nil {
		return nil, apperrors.InvalidState(apperrors.ReasonBadCursor, "invalid cursor")
	}
	return cursor, nil
}

// decodeUUIDCursor is decodeCursor for streams keyed by uuid ids.
func decodeUUIDCursor(token string) (*pagination.Cursor, error) {
	cursor, err := decodeCursor(token)
	if err != nil || cursor == nil {
		return cursor, err
	}
	if _, err := uuid.Parse(cursor.ID); err != nil {
		return nil, apperrors.InvalidState(apperrors.ReasonBadCursor, "invalid cursor")
	}
	return cursor, nil
}

// Page returns one page of the global post feed.
func (s *FeedService) Page(ctx context.Context, token string, limit int) (*pagination.Page[models.Post], error) {
	return s.postPage(ctx, "", token, limit)
}

// AuthorPage returns one page of a single author's posts.
func (s *FeedService) AuthorPage(ctx context.Context, author uuid.UUID, token string, limit int) (*pagination.Page[models.Post], error) {
	return s.postPage(ctx, author.String(), token, limit)
}

func (s *FeedService) postPage(ctx context.Context, author, token string, limit int) (*pagination.Page[models.Post], error) {
	cursor, err := decodeCursor(token)
	if err != nil {
		return nil, err
	}
	limit = pagination.ClampLimit(limit)

	posts, err := s.posts.ListPosts(ctx, author, cursor, limit)
	if errors.Is(err, pagination.ErrInvalidCursor) {
		return nil, apperrors.InvalidState(apperrors.ReasonBadCursor, "invalid cursor")
	}
	if err != nil {
		return nil, storageError(err, "list posts")
	}
	page := pagination.NewPage(posts, limit)
	return &page, nil
}

// CommentsPage returns one page of a post's comments, newest first.
func (s *FeedService) CommentsPage(ctx context.Context, postID, token string, limit int) (*pagination.Page[models.Comment], error) {
	cursor, err := decodeUUIDCursor(token)
	if err != nil {
		return nil, err
	}
	limit = pagination.ClampLimit(limit)

	if _, err := s.posts.GetPostByID(ctx, postID); err != nil {
		if isNotFound(err) {
			return nil, apperrors.NotFound("post %s not found", postID)
		}
		return nil, storageError(err, "get post")
	}
	comments, err := s.comments.ListByPost(ctx, postID, cursor, limit)
	if err != nil {
		return nil, storageError(err, "list comments")
	}
	page := pagination.NewPage(comments, limit)
	return &page, nil
}
