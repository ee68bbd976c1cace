package repositories

import (
	"context"

	"github.com/anonto42/migo/backend/internal/models"
	"github.com/anonto42/migo/backend/internal/pagination"
	"gorm.io/gorm"
)

// CommentRepository defines the interface for comment data operations
type CommentRepository interface {
	CreateComment(ctx context.Context, comment *models.Comment) error
	ListByPost(ctx context.Context, postID string, cursor *pagination.Cursor, limit int) ([]models.Comment, error)
}

// PostgresCommentRepository implements CommentRepository for PostgreSQL
type PostgresCommentRepository struct {
	db *gorm.DB
}

// NewPostgresCommentRepository creates a new PostgresCommentRepository
func NewPostgresCommentRepository(db *gorm.DB) *PostgresCommentRepository {
	return &PostgresCommentRepository{db: db}
}

// CreateComment creates a new comment in PostgreSQL
func (r *PostgresCommentRepository) CreateComment(ctx context.Context, comment *models.Comment) error {
	return translate(r.db.WithContext(ctx).Create(comment).Error, "create comment")
}

// ListByPost returns one keyset page of a post's comments, newest first
func (r *PostgresCommentRepository) ListByPost(ctx context.Context, postID string, cursor *pagination.Cursor, limit int) ([]models.Comment, error) {
	var comments []models.Comment
	q := applyCursor(r.db.WithContext(ctx).Where("post_id = ?", postID), cursor)
	if err := q.Order("created_at DESC, id DESC").Limit(limit).Find(&comments).Error; err != nil {
		return nil, translate(err, "list comments")
	}
	return comments, nil
}
