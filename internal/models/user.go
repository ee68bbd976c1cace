package models

import (
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
)

// Presence is the availability a user advertises to friends.
type Presence string

const (
	PresenceOnline  Presence = "online"
	PresenceOffline Presence = "offline"
	PresenceAway    Presence = "away"
	PresenceDND     Presence = "dnd"
)

func (p Presence) Valid() bool {
	switch p {
	case PresenceOnline, PresenceOffline, PresenceAway, PresenceDND:
		return true
	}
	return false
}

// User is a stable identity. Tag is unique and immutable once assigned; Handle may change.
type User struct {
	ID              uuid.UUID  `json:"id" gorm:"type:uuid;primaryKey"`
	Handle          string     `json:"handle" gorm:"size:50;not null"`
	Tag             string     `json:"tag" gorm:"size:4;not null;uniqueIndex"`
	Email           string     `json:"email,omitempty" gorm:"size:255;index"`
	FirebaseUID     *string    `json:"-" gorm:"uniqueIndex"`
	Presence        Presence   `json:"presence" gorm:"size:10;not null;default:offline"`
	CustomStatus    string     `json:"custom_status,omitempty" gorm:"size:128"`
	CurrentActivity string     `json:"current_activity,omitempty" gorm:"size:128"`
	LastSeenAt      *time.Time `json:"last_seen_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// DisplayTag renders the human-facing "handle#TAG" form.
func (u *User) DisplayTag() string {
	return u.Handle + "#" + u.Tag
}

// UserCompact is the embedded author/actor shape used in list responses.
type UserCompact struct {
	ID       uuid.UUID `json:"id"`
	Handle   string    `json:"handle"`
	Tag      string    `json:"tag"`
	Presence Presence  `json:"presence,omitempty"`
}

// ToCompact trims a user down to its public identity fields.
func (u *User) ToCompact() UserCompact {
	return UserCompact{ID: u.ID, Handle: u.Handle, Tag: u.Tag, Presence: u.Presence}
}

// FriendPresence is a friend as shown in the friends list.
type FriendPresence struct {
	UserCompact
	CustomStatus    string     `json:"custom_status,omitempty"`
	CurrentActivity string     `json:"current_activity,omitempty"`
	LastSeenAt      *time.Time `json:"last_seen_at,omitempty"`
}

// ToFriendPresence projects the fields a friend may see.
func (u *User) ToFriendPresence() FriendPresence {
	return FriendPresence{
		UserCompact:     u.ToCompact(),
		CustomStatus:    u.CustomStatus,
		CurrentActivity: u.CurrentActivity,
		LastSeenAt:      u.LastSeenAt,
	}
}

// PresenceUpdate is a change to a user's presence. Nil fields are left as they are.
type PresenceUpdate struct {
	Presence        Presence
	CurrentActivity string
	CustomStatus    *string
	At              time.Time
}

type ProvisionUserRequest struct {
	Handle string `json:"handle" validate:"required,min=2,max=50"`
	Email  string `json:"email,omitempty" validate:"omitempty,email"`
}

type UpdateHandleRequest struct {
	Handle string `json:"handle" validate:"required,min=2,max=50"`
}

type UpdatePresenceRequest struct {
	Presence        Presence `json:"presence" validate:"required,oneof=online offline away dnd"`
	CurrentActivity string   `json:"current_activity,omitempty" validate:"max=128"`
	CustomStatus    *string  `json:"custom_status,omitempty" validate:"omitempty,max=128"`
}

// JwtCustomClaims are the claims expected on bearer tokens issued by the auth service.
type JwtCustomClaims struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	jwt.RegisteredClaims
}
