package models

import (
	"time"

	"github.com/google/uuid"
)

// Follow is a one-directional follow edge.
type Follow struct {
	FollowerID  uuid.UUID `json:"follower_id" gorm:"type:uuid;primaryKey"`
	FollowingID uuid.UUID `json:"following_id" gorm:"type:uuid;primaryKey;index"`
	CreatedAt   time.Time `json:"created_at"`
}
