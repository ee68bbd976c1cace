package models

import (
	"time"

	"github.com/google/uuid"
)

// Comment is a reply on a post. Posts live in MongoDB, so PostID is the ObjectID hex.
type Comment struct {
	ID        uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	PostID    string    `json:"post_id" gorm:"size:24;not null;index:idx_comments_post_created,priority:1"`
	UserID    uuid.UUID `json:"user_id" gorm:"type:uuid;not null;index"`
	Content   string    `json:"content" gorm:"type:text;not null"`
	CreatedAt time.Time `json:"created_at" gorm:"index:idx_comments_post_created,priority:2,sort:desc"`
}

func (c Comment) CursorKey() (time.Time, string) {
	return c.CreatedAt, c.ID.String()
}

type CreateCommentRequest struct {
	Content string `json:"content" validate:"required,min=1,max=500"`
}
