package models

import (
	"time"

	"github.com/google/uuid"
)

type NotificationType string

const (
	NotificationFollow        NotificationType = "follow"
	NotificationFriendRequest NotificationType = "friend_request"
	NotificationFriendAccept  NotificationType = "friend_accept"
	NotificationPostLike      NotificationType = "post_like"
	NotificationPostComment   NotificationType = "post_comment"
	NotificationMessage       NotificationType = "message"
)

// Grouped reports whether events of this type collapse by entity when listed.
func (t NotificationType) Grouped() bool {
	return t == NotificationPostLike || t == NotificationPostComment
}

// Notification is one raw, append-only event. Only ReadAt changes after insert.
type Notification struct {
	ID          uuid.UUID        `json:"id" gorm:"type:uuid;primaryKey"`
	RecipientID uuid.UUID        `json:"recipient_id" gorm:"type:uuid;not null;index:idx_notifications_group,priority:1"`
	Type        NotificationType `json:"type" gorm:"size:30;not null;index:idx_notifications_group,priority:2"`
	EntityID    string           `json:"entity_id" gorm:"size:64;index:idx_notifications_group,priority:3"`
	ActorID     uuid.UUID        `json:"actor_id" gorm:"type:uuid;not null"`
	ReadAt      *time.Time       `json:"read_at,omitempty" gorm:"index"`
	CreatedAt   time.Time        `json:"created_at" gorm:"index"`
}

func (n *Notification) IsRead() bool {
	return n.ReadAt != nil
}

// NotificationView is the read-time projection shown to the recipient.
type NotificationView struct {
	ID          string           `json:"id"`
	Type        NotificationType `json:"type"`
	EntityID    string           `json:"entity_id,omitempty"`
	Count       int              `json:"count"`
	LatestActor uuid.UUID        `json:"latest_actor"`
	Actors      []uuid.UUID      `json:"actors"`
	LatestAt    time.Time        `json:"latest_at"`
	Read        bool             `json:"read"`
}

type MarkNotificationReadRequest struct {
	ID string `json:"id" validate:"required,max=100"`
}

// NotificationPreferences are a user's per-type delivery toggles. A user
// without a stored row receives every type.
type NotificationPreferences struct {
	UserID              uuid.UUID `json:"-" gorm:"type:uuid;primaryKey"`
	NotifyFollow        bool      `json:"follow" gorm:"not null"`
	NotifyFriendRequest bool      `json:"friend_request" gorm:"not null"`
	NotifyFriendAccept  bool      `json:"friend_accept" gorm:"not null"`
	NotifyPostLike      bool      `json:"post_like" gorm:"not null"`
	NotifyPostComment   bool      `json:"post_comment" gorm:"not null"`
	NotifyMessage       bool      `json:"message" gorm:"not null"`
	UpdatedAt           time.Time `json:"updated_at"`
}

// DefaultNotificationPreferences enables every type.
func DefaultNotificationPreferences(user uuid.UUID) NotificationPreferences {
	return NotificationPreferences{
		UserID:              user,
		NotifyFollow:        true,
		NotifyFriendRequest: true,
		NotifyFriendAccept:  true,
		NotifyPostLike:      true,
		NotifyPostComment:   true,
		NotifyMessage:       true,
	}
}

func (p *NotificationPreferences) toggle(typ NotificationType) *bool {
	switch typ {
	case NotificationFollow:
		return &p.NotifyFollow
	case NotificationFriendRequest:
		return &p.NotifyFriendRequest
	case NotificationFriendAccept:
		return &p.NotifyFriendAccept
	case NotificationPostLike:
		return &p.NotifyPostLike
	case NotificationPostComment:
		return &p.NotifyPostComment
	case NotificationMessage:
		return &p.NotifyMessage
	}
	return nil
}

// Enabled reports whether typ is delivered. Unknown types are not.
func (p *NotificationPreferences) Enabled(typ NotificationType) bool {
	if t := p.toggle(typ); t != nil {
		return *t
	}
	return false
}

// Set changes one toggle and reports whether typ is known.
func (p *NotificationPreferences) Set(typ NotificationType, enabled bool) bool {
	t := p.toggle(typ)
	if t == nil {
		return false
	}
	*t = enabled
	return true
}

// PreferenceColumn names the column storing typ's toggle.
func PreferenceColumn(typ NotificationType) string {
	return "notify_" + string(typ)
}

// UpdateNotificationPreferencesRequest changes the toggles that are present.
type UpdateNotificationPreferencesRequest struct {
	Follow        *bool `json:"follow,omitempty"`
	FriendRequest *bool `json:"friend_request,omitempty"`
	FriendAccept  *bool `json:"friend_accept,omitempty"`
	PostLike      *bool `json:"post_like,omitempty"`
	PostComment   *bool `json:"post_comment,omitempty"`
	Message       *bool `json:"message,omitempty"`
}

// Changes lists the toggles the request sets.
func (r *UpdateNotificationPreferencesRequest) Changes() map[NotificationType]bool {
	changes := make(map[NotificationType]bool)
	for typ, v := range map[NotificationType]*bool{
		NotificationFollow:        r.Follow,
		NotificationFriendRequest: r.FriendRequest,
		NotificationFriendAccept:  r.FriendAccept,
		NotificationPostLike:      r.PostLike,
		NotificationPostComment:   r.PostComment,
		NotificationMessage:       r.Message,
	} {
		if v != nil {
			changes[typ] = *v
		}
	}
	return changes
}
