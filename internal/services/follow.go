package services

import (
	"context"
	"errors"

	"github.com/anonto42/migo/backend/internal/apperrors"
	"github.com/anonto42/migo/backend/internal/events"
	"github.com/anonto42/migo/backend/internal/models"
	"github.com/anonto42/migo/backend/internal/repositories"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// FollowStats are the follower and following counts of one user.
type FollowStats struct {
	Followers int64 `json:"followers"`
	Following int64 `json:"following"`
}

// FollowService manages one-directional follow edges.
type FollowService struct {
	config
	follows       repositories.FollowRepository
	relationships *RelationshipService
	identity      *IdentityService
	logger        *zap.Logger
}

// NewFollowService creates a FollowService. Blocked pairs cannot follow.
func NewFollowService(follows repositories.FollowRepository, relationships *RelationshipService, identity *IdentityService, opts ...Option) *FollowService {
	cfg := newConfig(opts)
	return &FollowService{
		config:        cfg,
		follows:       follows,
		relationships: relationships,
		identity:      identity,
		logger:        cfg.logger.Named("follows"),
	}
}

// Follow makes follower follow target. Blocked pairs cannot follow each other.
func (s *FollowService) Follow(ctx context.Context, follower, target uuid.UUID) error {
	if follower == target {
		return apperrors.SelfReference("cannot follow yourself")
	}
	if _, err := s.identity.GetByID(ctx, target); err != nil {
		return err
	}
	status, err := s.relationships.Status(ctx, follower, target)
	if err != nil {
		return err
	}
	if status == models.StatusBlocked {
		return apperrors.Conflict(apperrors.ReasonBlocked, "you cannot follow this user")
	}

	err = s.follows.CreateFollow(ctx, &models.Follow{FollowerID: follower, FollowingID: target, CreatedAt: s.now()})
	if errors.Is(err, repositories.ErrDuplicate) {
		return apperrors.Conflict(apperrors.ReasonAlreadyFollowing, "you already follow this user")
	}
	if err != nil {
		return storageError(err, "create follow")
	}

	s.publish(ctx, events.Event{Type: models.NotificationFollow, Recipient: target, Actor: follower, Entity: follower.String()})
	return nil
}

func (s *FollowService) Unfollow(ctx context.Context, follower, target uuid.UUID) error {
	err := s.follows.DeleteFollow(ctx, follower, target)
	if isNotFound(err) {
		return apperrors.NotFound("you do not follow this user")
	}
	if err != nil {
		return storageError(err, "delete follow")
	}
	return nil
}

func (s *FollowService) IsFollowing(ctx context.Context, follower, target uuid.UUID) (bool, error) {
	ok, err := s.follows.IsFollowing(ctx, follower, target)
	if err != nil {
		return false, storageError(err, "check follow")
	}
	return ok, nil
}

// Followers returns the public identities following user.
func (s *FollowService) Followers(ctx context.Context, user uuid.UUID) ([]models.UserCompact, error) {
	ids, err := s.follows.GetFollowerIDs(ctx, user)
	if err != nil {
		return nil, storageError(err, "list followers")
	}
	return s.compactInOrder(ctx, ids)
}

// Following returns the public identities user follows.
func (s *FollowService) Following(ctx context.Context, user uuid.UUID) ([]models.UserCompact, error) {
	ids, err := s.follows.GetFollowingIDs(ctx, user)
	if err != nil {
		return nil, storageError(err, "list following")
	}
	return s.compactInOrder(ctx, ids)
}

func (s *FollowService) compactInOrder(ctx context.Context, ids []uuid.UUID) ([]models.UserCompact, error) {
	byID, err := s.identity.Compact(ctx, ids)
	if err != nil {
		return nil, err
	}
	out := make([]models.UserCompact, 0, len(ids))
	for _, id := range ids {
		if u, ok := byID[id]; ok {
			out = append(out, u)
		}
	}
	return out, nil
}

// Stats loads both counts concurrently.
func (s *FollowService) Stats(ctx context.Context, user uuid.UUID) (*FollowStats, error) {
	var stats FollowStats
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		n, err := s.follows.GetFollowersCount(gctx, user)
		stats.Followers = n
		return err
	})
	g.Go(func() error {
		n, err := s.follows.GetFollowingCount(gctx, user)
		stats.Following = n
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, storageError(err, "count follows")
	}
	return &stats, nil
}
