package repositories

import (
	"context"

	"github.com/anonto42/migo/backend/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// LikeRepository defines the interface for like data operations
type LikeRepository interface {
	CreateLike(ctx context.Context, like *models.Like) error
	DeleteLike(ctx context.Context, postID string, userID uuid.UUID) error
	HasUserLikedPost(ctx context.Context, postID string, userID uuid.UUID) (bool, error)
	LikedPostIDs(ctx context.Context, userID uuid.UUID, postIDs []string) (map[string]bool, error)
}

// PostgresLikeRepository implements LikeRepository for PostgreSQL
type PostgresLikeRepository struct {
	db *gorm.DB
}

// NewPostgresLikeRepository creates a new PostgresLikeRepository
func NewPostgresLikeRepository(db *gorm.DB) *PostgresLikeRepository {
	return &PostgresLikeRepository{db: db}
}

// CreateLike inserts a like; a repeat like by the same user is ErrDuplicate
func (r *PostgresLikeRepository) CreateLike(ctx context.Context, like *models.Like) error {
	return translate(r.db.WithContext(ctx).Create(like).Error, "create like")
}

// DeleteLike deletes a like from PostgreSQL
func (r *PostgresLikeRepository) DeleteLike(ctx context.Context, postID string, userID uuid.UUID) error {
	res := r.db.WithContext(ctx).Where("post_id = ? AND user_id = ?", postID, userID).Delete(&models.Like{})
	if res.Error != nil {
		return translate(res.Error, "delete like")
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// HasUserLikedPost checks if a user has liked a specific post
func (r *PostgresLikeRepository) HasUserLikedPost(ctx context.Context, postID string, userID uuid.UUID) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.Like{}).Where("post_id = ? AND user_id = ?", postID, userID).Count(&count).Error; err != nil {
		return false, translate(err, "check like")
	}
	return count > 0, nil
}

// LikedPostIDs reports which of postIDs the user has liked
func (r *PostgresLikeRepository) LikedPostIDs(ctx context.Context, userID uuid.UUID, postIDs []string) (map[string]bool, error) {
	liked := make(map[string]bool, len(postIDs))
	if len(postIDs) == 0 {
		return liked, nil
	}
	var ids []string
	err := r.db.WithContext(ctx).Model(&models.Like{}).
		Where("user_id = ? AND post_id IN ?", userID, postIDs).
		Pluck("post_id", &ids).Error
	if err != nil {
		return nil, translate(err, "list liked posts")
	}
	for _, id := range ids {
		liked[id] = true
	}
	return liked, nil
}
