package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/anonto42/migo/backend/internal/models"
	"github.com/anonto42/migo/backend/internal/pagination"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ConversationRepository defines the interface for conversation and message operations
type ConversationRepository interface {
	// GetOrCreateDirect returns the direct conversation for pair, creating it
	// and both memberships atomically when absent.
	GetOrCreateDirect(ctx context.Context, pair models.Pair, creator uuid.UUID, at time.Time) (*models.Conversation, bool, error)
	CreateGroup(ctx context.Context, conv *models.Conversation) error
	GetConversation(ctx context.Context, id uuid.UUID) (*models.Conversation, error)
	// AppendMessage inserts msg and advances the author's read position in one transaction.
	AppendMessage(ctx context.Context, msg *models.Message) error
	ListMessages(ctx context.Context, conversationID uuid.UUID, cursor *pagination.Cursor, limit int) ([]models.Message, error)
	ListForUser(ctx context.Context, user uuid.UUID) ([]models.ConversationSummary, error)
	MarkRead(ctx context.Context, conversationID, user uuid.UUID, at time.Time) error
}

// PostgresConversationRepository implements ConversationRepository for PostgreSQL
type PostgresConversationRepository struct {
	db *gorm.DB
}

// NewPostgresConversationRepository creates a new PostgresConversationRepository
func NewPostgresConversationRepository(db *gorm.DB) *PostgresConversationRepository {
	return &PostgresConversationRepository{db: db}
}

func (r *PostgresConversationRepository) GetOrCreateDirect(ctx context.Context, pair models.Pair, creator uuid.UUID, at time.Time) (*models.Conversation, bool, error) {
	key := pair.Key()
	var (
		conv    *models.Conversation
		created bool
	)
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		candidate := &models.Conversation{
			ID:        uuid.New(),
			Kind:      models.ConversationDirect,
			DirectKey: &key,
			CreatedBy: creator,
			CreatedAt: at,
			UpdatedAt: at,
		}
		res := tx.Omit(clause.Associations).
			Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "direct_key"}}, DoNothing: true}).
			Create(candidate)
		if res.Error != nil {
			return res.Error
		}

		if res.RowsAffected == 0 {
			var existing models.Conversation
			if err := tx.Preload("Members").Where("direct_key = ?", key).First(&existing).Error; err != nil {
				return err
			}
			conv = &existing
			return nil
		}

		members := []models.ConversationMember{
			{ConversationID: candidate.ID, UserID: pair.Low, JoinedAt: at},
			{ConversationID: candidate.ID, UserID: pair.High, JoinedAt: at},
		}
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&members).Error; err != nil {
			return err
		}
		candidate.Members = members
		conv = candidate
		created = true
		return nil
	})
	if err != nil {
		return nil, false, translate(err, "get or create direct conversation")
	}
	return conv, created, nil
}

// CreateGroup inserts a group conversation together with its members
func (r *PostgresConversationRepository) CreateGroup(ctx context.Context, conv *models.Conversation) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Create(conv).Error; err != nil {
			return err
		}
		for i := range conv.Members {
			conv.Members[i].ConversationID = conv.ID
		}
		return tx.Create(&conv.Members).Error
	})
	return translate(err, "create group conversation")
}

func (r *PostgresConversationRepository) GetConversation(ctx context.Context, id uuid.UUID) (*models.Conversation, error) {
	var conv models.Conversation
	if err := r.db.WithContext(ctx).Preload("Members").Where("id = ?", id).First(&conv).Error; err != nil {
		return nil, translate(err, "get conversation")
	}
	return &conv, nil
}

func (r *PostgresConversationRepository) AppendMessage(ctx context.Context, msg *models.Message) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var member models.ConversationMember
		err := tx.Clauses(clause.Locking{Strength: clause.LockingStrengthShare}).
			Where("conversation_id = ? AND user_id = ?", msg.ConversationID, msg.AuthorID).
			First(&member).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			var count int64
			if err := tx.Model(&models.Conversation{}).Where("id = ?", msg.ConversationID).Count(&count).Error; err != nil {
				return err
			}
			if count == 0 {
				return ErrNotFound
			}
			return ErrNotMember
		}
		if err != nil {
			return err
		}

		if err := tx.Create(msg).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.ConversationMember{}).
			Where("conversation_id = ? AND user_id = ?", msg.ConversationID, msg.AuthorID).
			Where("last_read_at IS NULL OR last_read_at < ?", msg.CreatedAt).
			Update("last_read_at", msg.CreatedAt).Error; err != nil {
			return err
		}
		return tx.Model(&models.Conversation{}).
			Where("id = ?", msg.ConversationID).
			Update("updated_at", msg.CreatedAt).Error
	})
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrNotMember) {
		return err
	}
	return translate(err, "append message")
}

// ListMessages returns one keyset page of a conversation, newest first
func (r *PostgresConversationRepository) ListMessages(ctx context.Context, conversationID uuid.UUID, cursor *pagination.Cursor, limit int) ([]models.Message, error) {
	var msgs []models.Message
	q := r.db.WithContext(ctx).Where("conversation_id = ?", conversationID)
	q = applyCursor(q, cursor)
	if err := q.Order("created_at DESC, id DESC").Limit(limit).Find(&msgs).Error; err != nil {
		return nil, translate(err, "list messages")
	}
	return msgs, nil
}

type unreadRow struct {
	ConversationID uuid.UUID
	Unread         int64
}

// ListForUser returns the user's conversations with unread counts, most recently active first
func (r *PostgresConversationRepository) ListForUser(ctx context.Context, user uuid.UUID) ([]models.ConversationSummary, error) {
	db := r.db.WithContext(ctx)

	var memberships []models.ConversationMember
	if err := db.Where("user_id = ?", user).Find(&memberships).Error; err != nil {
		return nil, translate(err, "list memberships")
	}
	if len(memberships) == 0 {
		return []models.ConversationSummary{}, nil
	}
	ids := make([]uuid.UUID, len(memberships))
	lastRead := make(map[uuid.UUID]*time.Time, len(memberships))
	for i, m := range memberships {
		ids[i] = m.ConversationID
		lastRead[m.ConversationID] = m.LastReadAt
	}

	var convs []models.Conversation
	if err := db.Preload("Members").Where("id IN ?", ids).Order("updated_at DESC").Find(&convs).Error; err != nil {
		return nil, translate(err, "list conversations")
	}

	var rows []unreadRow
	err := db.Table("messages AS m").
		Select("m.conversation_id, COUNT(*) AS unread").
		Joins("JOIN conversation_members cm ON cm.conversation_id = m.conversation_id AND cm.user_id = ?", user).
		Where("m.author_id <> ? AND (cm.last_read_at IS NULL OR m.created_at > cm.last_read_at)", user).
		Group("m.conversation_id").
		Scan(&rows).Error
	if err != nil {
		return nil, translate(err, "count unread messages")
	}
	unread := make(map[uuid.UUID]int64, len(rows))
	for _, row := range rows {
		unread[row.ConversationID] = row.Unread
	}

	out := make([]models.ConversationSummary, len(convs))
	for i, c := range convs {
		out[i] = models.ConversationSummary{
			Conversation: c,
			UnreadCount:  unread[c.ID],
			LastReadAt:   lastRead[c.ID],
		}
	}
	return out, nil
}

// MarkRead moves the member's read position forward to at; it never moves backwards
func (r *PostgresConversationRepository) MarkRead(ctx context.Context, conversationID, user uuid.UUID, at time.Time) error {
	db := r.db.WithContext(ctx)
	res := db.Model(&models.ConversationMember{}).
		Where("conversation_id = ? AND user_id = ?", conversationID, user).
		Where("last_read_at IS NULL OR last_read_at < ?", at).
		Update("last_read_at", at)
	if res.Error != nil {
		return translate(res.Error, "mark conversation read")
	}
	if res.RowsAffected > 0 {
		return nil
	}

	var count int64
	if err := db.Model(&models.ConversationMember{}).
		Where("conversation_id = ? AND user_id = ?", conversationID, user).
		Count(&count).Error; err != nil {
		return translate(err, "mark conversation read")
	}
	if count == 0 {
		return ErrNotMember
	}
	return nil
}

// applyCursor restricts q to rows strictly after cursor in (created_at desc, id desc) order.
func applyCursor(q *gorm.DB, cursor *pagination.Cursor) *gorm.DB {
	if cursor == nil {
		return q
	}
	return q.Where("(created_at < ? OR (created_at = ? AND id < ?))", cursor.CreatedAt, cursor.CreatedAt, cursor.ID)
}
