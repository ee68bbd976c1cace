package models

import (
	"time"

	"github.com/google/uuid"
)

type ConversationKind string

const (
	ConversationDirect ConversationKind = "direct"
	ConversationGroup  ConversationKind = "group"
)

// Conversation is a messaging channel. Direct conversations carry the
// canonical pair key in DirectKey, which is unique; groups leave it NULL.
type Conversation struct {
	ID        uuid.UUID            `json:"id" gorm:"type:uuid;primaryKey"`
	Kind      ConversationKind     `json:"kind" gorm:"type:varchar(10);not null"`
	DirectKey *string              `json:"-" gorm:"size:80;uniqueIndex"`
	Title     string               `json:"title,omitempty" gorm:"size:100"`
	CreatedBy uuid.UUID            `json:"created_by" gorm:"type:uuid"`
	Members   []ConversationMember `json:"members,omitempty" gorm:"foreignKey:ConversationID"`
	CreatedAt time.Time            `json:"created_at"`
	UpdatedAt time.Time            `json:"updated_at"`
}

// ConversationMember is one user's membership and read position.
type ConversationMember struct {
	ConversationID uuid.UUID  `json:"conversation_id" gorm:"type:uuid;primaryKey"`
	UserID         uuid.UUID  `json:"user_id" gorm:"type:uuid;primaryKey;index"`
	LastReadAt     *time.Time `json:"last_read_at,omitempty"`
	Muted          bool       `json:"muted" gorm:"default:false"`
	JoinedAt       time.Time  `json:"joined_at"`
}

// MessageKind is derived at read time from the relationship of a direct pair.
type MessageKind string

const (
	MessageDirect  MessageKind = "direct"
	MessageRequest MessageKind = "request"
)

type Message struct {
	ID             uuid.UUID   `json:"id" gorm:"type:uuid;primaryKey"`
	ConversationID uuid.UUID   `json:"conversation_id" gorm:"type:uuid;not null;index:idx_messages_conversation_created,priority:1"`
	AuthorID       uuid.UUID   `json:"author_id" gorm:"type:uuid;not null"`
	Content        string      `json:"content" gorm:"type:text;not null"`
	Kind           MessageKind `json:"kind" gorm:"-"`
	CreatedAt      time.Time   `json:"created_at" gorm:"index:idx_messages_conversation_created,priority:2,sort:desc"`
}

// ConversationSummary is a conversation as listed for one member.
type ConversationSummary struct {
	Conversation
	UnreadCount int64       `json:"unread_count"`
	LastReadAt  *time.Time  `json:"last_read_at,omitempty"`
	Classified  MessageKind `json:"classified,omitempty"`
}

type CreateDirectConversationRequest struct {
	UserID uuid.UUID `json:"user_id" validate:"required"`
}

type CreateGroupConversationRequest struct {
	Title   string      `json:"title" validate:"required,min=1,max=100"`
	Members []uuid.UUID `json:"members" validate:"required,min=1,max=255"`
}

type PostMessageRequest struct {
	Content string `json:"content" validate:"required,min=1,max=4000"`
}

func (m Message) CursorKey() (time.Time, string) {
	return m.CreatedAt, m.ID.String()
}
