package repositories

import (
	"context"
	"strings"

	"github.com/anonto42/migo/backend/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// UserRepository defines the interface for identity data operations
type UserRepository interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetUserByTag(ctx context.Context, tag string) (*models.User, error)
	GetUserByFirebaseUID(ctx context.Context, firebaseUID string) (*models.User, error)
	GetUsersByIDs(ctx context.Context, ids []uuid.UUID) ([]models.User, error)
	UpdateHandle(ctx context.Context, id uuid.UUID, handle string) (*models.User, error)
	UpdatePresence(ctx context.Context, id uuid.UUID, update models.PresenceUpdate) (*models.User, error)
	SearchUsers(ctx context.Context, query string, limit int) ([]models.User, error)
}

// PostgresUserRepository implements UserRepository for PostgreSQL
type PostgresUserRepository struct {
	db *gorm.DB
}

// NewPostgresUserRepository creates a new PostgresUserRepository
func NewPostgresUserRepository(db *gorm.DB) *PostgresUserRepository {
	return &PostgresUserRepository{db: db}
}

// CreateUser inserts a user; a taken tag surfaces as a DuplicateKeyError on ConstraintUserTag.
func (r *PostgresUserRepository) CreateUser(ctx context.Context, user *models.User) error {
	user.Tag = strings.ToUpper(user.Tag)
	return translate(r.db.WithContext(ctx).Create(user).Error, "create user")
}

// GetUserByID retrieves a user by ID
func (r *PostgresUserRepository) GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&user).Error; err != nil {
		return nil, translate(err, "get user")
	}
	return &user, nil
}

// GetUserByTag retrieves a user by tag. Tags are stored upper-case.
func (r *PostgresUserRepository) GetUserByTag(ctx context.Context, tag string) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Where("tag = ?", strings.ToUpper(tag)).First(&user).Error; err != nil {
		return nil, translate(err, "get user by tag")
	}
	return &user, nil
}

// GetUserByFirebaseUID retrieves a user by Firebase UID
func (r *PostgresUserRepository) GetUserByFirebaseUID(ctx context.Context, firebaseUID string) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Where("firebase_uid = ?", firebaseUID).First(&user).Error; err != nil {
		return nil, translate(err, "get user by firebase uid")
	}
	return &user, nil
}

func (r *PostgresUserRepository) GetUsersByIDs(ctx context.Context, ids []uuid.UUID) ([]models.User, error) {
	var users []models.User
	if len(ids) == 0 {
		return users, nil
	}
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&users).Error; err != nil {
		return nil, translate(err, "get users")
	}
	return users, nil
}

// UpdateHandle changes the display handle. The tag never changes.
func (r *PostgresUserRepository) UpdateHandle(ctx context.Context, id uuid.UUID, handle string) (*models.User, error) {
	res := r.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Update("handle", handle)
	if res.Error != nil {
		return nil, translate(res.Error, "update handle")
	}
	if res.RowsAffected == 0 {
		return nil, ErrNotFound
	}
	return r.GetUserByID(ctx, id)
}

// UpdatePresence records presence and stamps last_seen_at. The custom status
// is only written when the update carries one.
func (r *PostgresUserRepository) UpdatePresence(ctx context.Context, id uuid.UUID, update models.PresenceUpdate) (*models.User, error) {
	fields := map[string]any{
		"presence":         update.Presence,
		"current_activity": update.CurrentActivity,
		"last_seen_at":     update.At,
		"updated_at":       update.At,
	}
	if update.CustomStatus != nil {
		fields["custom_status"] = *update.CustomStatus
	}
	res := r.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Updates(fields)
	if res.Error != nil {
		return nil, translate(res.Error, "update presence")
	}
	if res.RowsAffected == 0 {
		return nil, ErrNotFound
	}
	return r.GetUserByID(ctx, id)
}

// SearchUsers matches handles by substring and tags exactly, case-insensitively
func (r *PostgresUserRepository) SearchUsers(ctx context.Context, query string, limit int) ([]models.User, error) {
	var users []models.User
	pattern := "%" + escapeLike(query) + "%"
	err := r.db.WithContext(ctx).
		Where("handle ILIKE ? OR tag = ?", pattern, strings.ToUpper(query)).
		Order("handle ASC").
		Limit(limit).
		Find(&users).Error
	if err != nil {
		return nil, translate(err, "search users")
	}
	return users, nil
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
