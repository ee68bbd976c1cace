package repositories

import (
	"context"
	"time"

	"github.com/anonto42/migo/backend/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// RelationshipRepository stores one row per canonical pair. Every state
// change is a single conditional statement so concurrent callers cannot
// produce a second row or skip a transition check.
type RelationshipRepository interface {
	GetRelationship(ctx context.Context, pair models.Pair) (*models.Relationship, error)
	// InsertRequest writes a pending row unless one exists in any state other
	// than rejected. When nothing is written it returns the current row, if any.
	InsertRequest(ctx context.Context, pair models.Pair, initiator uuid.UUID, at time.Time) (*models.Relationship, bool, error)
	// Respond moves a pending row to decision when responder is not the initiator.
	Respond(ctx context.Context, pair models.Pair, responder uuid.UUID, decision models.RelationshipStatus, at time.Time) (*models.Relationship, error)
	// Block marks the pair blocked and sets blocker's flag. Blocking an
	// already blocked pair adds the caller's flag to the other side's.
	Block(ctx context.Context, pair models.Pair, blocker uuid.UUID, at time.Time) (*models.Relationship, error)
	// Unblock clears blocker's flag and deletes the row once neither side
	// still blocks. ErrStaleState when blocker holds no block on the pair.
	Unblock(ctx context.Context, pair models.Pair, blocker uuid.UUID, at time.Time) error
	DeleteAccepted(ctx context.Context, pair models.Pair) error
	CancelPending(ctx context.Context, pair models.Pair, initiator uuid.UUID) error
	ListForUser(ctx context.Context, user uuid.UUID) ([]models.Relationship, error)
}

// PostgresRelationshipRepository implements RelationshipRepository for PostgreSQL
type PostgresRelationshipRepository struct {
	db *gorm.DB
}

// NewPostgresRelationshipRepository creates a new PostgresRelationshipRepository
func NewPostgresRelationshipRepository(db *gorm.DB) *PostgresRelationshipRepository {
	return &PostgresRelationshipRepository{db: db}
}

var pairColumns = []clause.Column{{Name: "user_low"}, {Name: "user_high"}}

func statusIs(status models.RelationshipStatus) clause.Expression {
	return clause.Eq{Column: clause.Column{Table: "relationships", Name: "status"}, Value: status}
}

func (r *PostgresRelationshipRepository) GetRelationship(ctx context.Context, pair models.Pair) (*models.Relationship, error) {
	var rel models.Relationship
	err := r.db.WithContext(ctx).
		Where("user_low = ? AND user_high = ?", pair.Low, pair.High).
		First(&rel).Error
	if err != nil {
		return nil, translate(err, "get relationship")
	}
	return &rel, nil
}

// InsertRequest runs INSERT ... ON CONFLICT (user_low, user_high) DO UPDATE ... WHERE status = 'rejected'.
func (r *PostgresRelationshipRepository) InsertRequest(ctx context.Context, pair models.Pair, initiator uuid.UUID, at time.Time) (*models.Relationship, bool, error) {
	rel := &models.Relationship{
		UserLow:     pair.Low,
		UserHigh:    pair.High,
		InitiatorID: initiator,
		Status:      models.StatusPending,
		CreatedAt:   at,
		UpdatedAt:   at,
	}
	res := r.db.WithContext(ctx).Clauses(
		clause.OnConflict{
			Columns:   pairColumns,
			DoUpdates: clause.AssignmentColumns([]string{"initiator_id", "status", "blocked_by_low", "blocked_by_high", "created_at", "updated_at"}),
			Where:     clause.Where{Exprs: []clause.Expression{statusIs(models.StatusRejected)}},
		},
		clause.Returning{},
	).Create(rel)
	if res.Error != nil {
		return nil, false, translate(res.Error, "insert relationship request")
	}
	if res.RowsAffected == 1 {
		return rel, true, nil
	}

	existing, err := r.GetRelationship(ctx, pair)
	if err == ErrNotFound {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return existing, false, nil
}

func (r *PostgresRelationshipRepository) Respond(ctx context.Context, pair models.Pair, responder uuid.UUID, decision models.RelationshipStatus, at time.Time) (*models.Relationship, error) {
	var rels []models.Relationship
	res := r.db.WithContext(ctx).
		Model(&rels).
		Clauses(clause.Returning{}).
		Where("user_low = ? AND user_high = ? AND status = ? AND initiator_id <> ?",
			pair.Low, pair.High, models.StatusPending, responder).
		Updates(map[string]any{"status": decision, "updated_at": at})
	if res.Error != nil {
		return nil, translate(res.Error, "respond to relationship")
	}
	if res.RowsAffected == 0 || len(rels) == 0 {
		return nil, ErrStaleState
	}
	return &rels[0], nil
}

func (r *PostgresRelationshipRepository) Block(ctx context.Context, pair models.Pair, blocker uuid.UUID, at time.Time) (*models.Relationship, error) {
	rel := &models.Relationship{
		UserLow:     pair.Low,
		UserHigh:    pair.High,
		InitiatorID: blocker,
		Status:      models.StatusBlocked,
		CreatedAt:   at,
		UpdatedAt:   at,
	}
	rel.SetBlock(blocker, true)

	// A row leaving pending/accepted/rejected carries no flags, so only the
	// caller's column needs setting.
	res := r.db.WithContext(ctx).Clauses(
		clause.OnConflict{
			Columns: pairColumns,
			DoUpdates: clause.Assignments(map[string]any{
				"status":                  models.StatusBlocked,
				pair.BlockColumn(blocker): true,
				"updated_at":              at,
			}),
		},
	).Create(rel)
	if res.Error != nil {
		return nil, translate(res.Error, "block relationship")
	}
	return r.GetRelationship(ctx, pair)
}

// Unblock clears the caller's flag, then deletes the row if the other side
// has no block in force. Both statements share one transaction.
func (r *PostgresRelationshipRepository) Unblock(ctx context.Context, pair models.Pair, blocker uuid.UUID, at time.Time) error {
	column := pair.BlockColumn(blocker)
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Relationship{}).
			Where("user_low = ? AND user_high = ? AND status = ? AND "+column+" = ?",
				pair.Low, pair.High, models.StatusBlocked, true).
			Updates(map[string]any{column: false, "updated_at": at})
		if err := affectedOrStale(res, "unblock relationship"); err != nil {
			return err
		}

		err := tx.Where("user_low = ? AND user_high = ? AND status = ? AND NOT blocked_by_low AND NOT blocked_by_high",
			pair.Low, pair.High, models.StatusBlocked).
			Delete(&models.Relationship{}).Error
		return translate(err, "unblock relationship")
	})
}

func (r *PostgresRelationshipRepository) DeleteAccepted(ctx context.Context, pair models.Pair) error {
	res := r.db.WithContext(ctx).
		Where("user_low = ? AND user_high = ? AND status = ?", pair.Low, pair.High, models.StatusAccepted).
		Delete(&models.Relationship{})
	return affectedOrStale(res, "delete friendship")
}

func (r *PostgresRelationshipRepository) CancelPending(ctx context.Context, pair models.Pair, initiator uuid.UUID) error {
	res := r.db.WithContext(ctx).
		Where("user_low = ? AND user_high = ? AND status = ? AND initiator_id = ?",
			pair.Low, pair.High, models.StatusPending, initiator).
		Delete(&models.Relationship{})
	return affectedOrStale(res, "cancel friend request")
}

// ListForUser returns every pair containing user, most recently changed first
func (r *PostgresRelationshipRepository) ListForUser(ctx context.Context, user uuid.UUID) ([]models.Relationship, error) {
	var rels []models.Relationship
	err := r.db.WithContext(ctx).
		Where("user_low = ? OR user_high = ?", user, user).
		Order("updated_at DESC").
		Find(&rels).Error
	if err != nil {
		return nil, translate(err, "list relationships")
	}
	return rels, nil
}

func affectedOrStale(res *gorm.DB, op string) error {
	if res.Error != nil {
		return translate(res.Error, op)
	}
	if res.RowsAffected == 0 {
		return ErrStaleState
	}
	return nil
}
