package models

import (
	"time"

	"github.com/google/uuid"
)

// Like is one user's like on a post; at most one per (post, user).
type Like struct {
	PostID    string    `json:"post_id" gorm:"size:24;primaryKey"`
	UserID    uuid.UUID `json:"user_id" gorm:"type:uuid;primaryKey;index"`
	CreatedAt time.Time `json:"created_at"`
}
