package services

import (
	"context"
	"errors"
	"strings"

	"github.com/anonto42/migo/backend/internal/apperrors"
	"github.com/anonto42/migo/backend/internal/events"
	"github.com/anonto42/migo/backend/internal/models"
	"github.com/anonto42/migo/backend/internal/repositories"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// EngagementService covers the minimal content writes behind the feed:
// posts, likes and comments. Likes and comments notify the post author.
type EngagementService struct {
	config
	posts    repositories.PostRepository
	comments repositories.CommentRepository
	likes    repositories.LikeRepository
	logger   *zap.Logger
}

// NewEngagementService creates an EngagementService.
func NewEngagementService(posts repositories.PostRepository, comments repositories.CommentRepository, likes repositories.LikeRepository, opts ...Option) *EngagementService {
	cfg := newConfig(opts)
	return &EngagementService{
		config:   cfg,
		posts:    posts,
		comments: comments,
		likes:    likes,
		logger:   cfg.logger.Named("engagement"),
	}
}

func (s *EngagementService) CreatePost(ctx context.Context, author uuid.UUID, content string, imageURLs []string) (*models.Post, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, apperrors.InvalidState("", "post content is required")
	}
	post := &models.Post{
		UserID:    author.String(),
		Content:   content,
		ImageURLs: imageURLs,
		CreatedAt: s.now(),
	}
	if err := s.posts.CreatePost(ctx, post); err != nil {
		return nil, storageError(err, "create post")
	}
	return post, nil
}

func (s *EngagementService) GetPost(ctx context.Context, postID string) (*models.Post, error) {
	post, err := s.posts.GetPostByID(ctx, postID)
	if isNotFound(err) {
		return nil, apperrors.NotFound("post %s not found", postID)
	}
	if err != nil {
		return nil, storageError(err, "get post")
	}
	return post, nil
}

// postAuthor parses the author id stored on a post. Posts written before ids
// were uuids have no notifiable author.
func postAuthor(post *models.Post) (uuid.UUID, bool) {
	id, err := uuid.Parse(post.UserID)
	return id, err == nil
}

// LikePost records a like. Liking twice is a Conflict.
func (s *EngagementService) LikePost(ctx context.Context, user uuid.UUID, postID string) error {
	post, err := s.GetPost(ctx, postID)
	if err != nil {
		return err
	}

	err = s.likes.CreateLike(ctx, &models.Like{PostID: postID, UserID: user, CreatedAt: s.now()})
	if errors.Is(err, repositories.ErrDuplicate) {
		return apperrors.Conflict(apperrors.ReasonAlreadyLiked, "you already liked this post")
	}
	if err != nil {
		return storageError(err, "create like")
	}
	if err := s.posts.IncrementLikesCount(ctx, postID, 1); err != nil {
		s.logger.Warn("Failed to increment like counter", zap.String("post", postID), zap.Error(err))
	}

	if author, ok := postAuthor(post); ok {
		s.publish(ctx, events.Event{Type: models.NotificationPostLike, Recipient: author, Actor: user, Entity: postID})
	}
	return nil
}

// UnlikePost removes a like. Unliking a post that was not liked is NotFound.
func (s *EngagementService) UnlikePost(ctx context.Context, user uuid.UUID, postID string) error {
	err := s.likes.DeleteLike(ctx, postID, user)
	if isNotFound(err) {
		return apperrors.NotFound("like not found")
	}
	if err != nil {
		return storageError(err, "delete like")
	}
	if err := s.posts.IncrementLikesCount(ctx, postID, -1); err != nil {
		s.logger.Warn("Failed to decrement like counter", zap.String("post", postID), zap.Error(err))
	}
	return nil
}

func (s *EngagementService) HasLiked(ctx context.Context, user uuid.UUID, postID string) (bool, error) {
	liked, err := s.likes.HasUserLikedPost(ctx, postID, user)
	if err != nil {
		return false, storageError(err, "check like")
	}
	return liked, nil
}

// CommentOnPost adds a comment and notifies the post author.
func (s *EngagementService) CommentOnPost(ctx context.Context, user uuid.UUID, postID, content string) (*models.Comment, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, apperrors.InvalidState("", "comment content is required")
	}
	post, err := s.GetPost(ctx, postID)
	if err != nil {
		return nil, err
	}

	comment := &models.Comment{
		ID:        uuid.New(),
		PostID:    postID,
		UserID:    user,
		Content:   content,
		CreatedAt: s.now(),
	}
	if err := s.comments.CreateComment(ctx, comment); err != nil {
		return nil, storageError(err, "create comment")
	}
	if err := s.posts.IncrementCommentsCount(ctx, postID, 1); err != nil {
		s.logger.Warn("Failed to increment comment counter", zap.String("post", postID), zap.Error(err))
	}

	if author, ok := postAuthor(post); ok {
		s.publish(ctx, events.Event{Type: models.NotificationPostComment, Recipient: author, Actor: user, Entity: postID})
	}
	return comment, nil
}
