package repositories

import (
	"context"

	"github.com/anonto42/migo/backend/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// FollowRepository defines the interface for follow data operations
type FollowRepository interface {
	CreateFollow(ctx context.Context, follow *models.Follow) error
	DeleteFollow(ctx context.Context, followerID, followingID uuid.UUID) error
	IsFollowing(ctx context.Context, followerID, followingID uuid.UUID) (bool, error)
	GetFollowerIDs(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error)
	GetFollowingIDs(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error)
	GetFollowersCount(ctx context.Context, userID uuid.UUID) (int64, error)
	GetFollowingCount(ctx context.Context, userID uuid.UUID) (int64, error)
}

// PostgresFollowRepository implements FollowRepository for PostgreSQL
type PostgresFollowRepository struct {
	db *gorm.DB
}

// NewPostgresFollowRepository creates a new PostgresFollowRepository
func NewPostgresFollowRepository(db *gorm.DB) *PostgresFollowRepository {
	return &PostgresFollowRepository{db: db}
}

func (r *PostgresFollowRepository) CreateFollow(ctx context.Context, follow *models.Follow) error {
	return translate(r.db.WithContext(ctx).Create(follow).Error, "create follow")
}

func (r *PostgresFollowRepository) DeleteFollow(ctx context.Context, followerID, followingID uuid.UUID) error {
	res := r.db.WithContext(ctx).Where("follower_id = ? AND following_id = ?", followerID, followingID).Delete(&models.Follow{})
	if res.Error != nil {
		return translate(res.Error, "delete follow")
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PostgresFollowRepository) IsFollowing(ctx context.Context, followerID, followingID uuid.UUID) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.Follow{}).Where("follower_id = ? AND following_id = ?", followerID, followingID).Count(&count).Error; err != nil {
		return false, translate(err, "check follow")
	}
	return count > 0, nil
}

func (r *PostgresFollowRepository) GetFollowerIDs(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.db.WithContext(ctx).Model(&models.Follow{}).Where("following_id = ?", userID).Order("created_at DESC").Pluck("follower_id", &ids).Error
	return ids, translate(err, "list followers")
}

func (r *PostgresFollowRepository) GetFollowingIDs(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.db.WithContext(ctx).Model(&models.Follow{}).Where("follower_id = ?", userID).Order("created_at DESC").Pluck("following_id", &ids).Error
	return ids, translate(err, "list following")
}

func (r *PostgresFollowRepository) GetFollowersCount(ctx context.Context, userID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Follow{}).Where("following_id = ?", userID).Count(&count).Error
	return count, translate(err, "count followers")
}

func (r *PostgresFollowRepository) GetFollowingCount(ctx context.Context, userID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Follow{}).Where("follower_id = ?", userID).Count(&count).Error
	return count, translate(err, "count following")
}
