package memory

import (
	"context"
	"time"

	"github.com/anonto42/migo/backend/internal/models"
	"github.com/anonto42/migo/backend/internal/pagination"
	"github.com/anonto42/migo/backend/internal/repositories"
	"github.com/google/uuid"
)

// NotificationRepository keeps raw events per recipient and their delivery toggles.
type NotificationRepository struct{ s *Store }

var _ repositories.NotificationRepository = (*NotificationRepository)(nil)

type notificationKey models.Notification

func (n notificationKey) CursorKey() (time.Time, string) { return n.CreatedAt, n.ID.String() }

func (r *NotificationRepository) CreateNotification(_ context.Context, n *models.Notification) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.notifications[n.RecipientID] = append(r.s.notifications[n.RecipientID], *n)
	return nil
}

func (r *NotificationRepository) GetNotification(_ context.Context, recipientID, id uuid.UUID) (*models.Notification, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, n := range r.s.notifications[recipientID] {
		if n.ID == id {
			return &n, nil
		}
	}
	return nil, repositories.ErrNotFound
}

func (r *NotificationRepository) ListByRecipient(_ context.Context, recipientID uuid.UUID) ([]models.Notification, error) {
	r.s.mu.Lock()
	keyed := make([]notificationKey, len(r.s.notifications[recipientID]))
	for i, n := range r.s.notifications[recipientID] {
		keyed[i] = notificationKey(n)
	}
	r.s.mu.Unlock()

	pagination.SortDesc(keyed)
	out := make([]models.Notification, len(keyed))
	for i, n := range keyed {
		out[i] = models.Notification(n)
	}
	return out, nil
}

func (r *NotificationRepository) CountGroup(_ context.Context, recipientID uuid.UUID, typ models.NotificationType, entityID string) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var count int64
	for _, n := range r.s.notifications[recipientID] {
		if n.Type == typ && n.EntityID == entityID {
			count++
		}
	}
	return count, nil
}

func (r *NotificationRepository) GetUnreadCount(_ context.Context, recipientID uuid.UUID) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var count int64
	for _, n := range r.s.notifications[recipientID] {
		if n.ReadAt == nil {
			count++
		}
	}
	return count, nil
}

func (r *NotificationRepository) MarkAsRead(_ context.Context, recipientID, id uuid.UUID, at time.Time) (int64, error) {
	return r.markWhere(recipientID, at, func(n models.Notification) bool { return n.ID == id }), nil
}

func (r *NotificationRepository) MarkGroupAsRead(_ context.Context, recipientID uuid.UUID, typ models.NotificationType, entityID string, at time.Time) (int64, error) {
	return r.markWhere(recipientID, at, func(n models.Notification) bool {
		return n.Type == typ && n.EntityID == entityID
	}), nil
}

func (r *NotificationRepository) MarkAllAsRead(_ context.Context, recipientID uuid.UUID, at time.Time) (int64, error) {
	return r.markWhere(recipientID, at, func(n models.Notification) bool { return !n.CreatedAt.After(at) }), nil
}

func (r *NotificationRepository) markWhere(recipientID uuid.UUID, at time.Time, match func(models.Notification) bool) int64 {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var affected int64
	events := r.s.notifications[recipientID]
	for i := range events {
		if events[i].ReadAt == nil && match(events[i]) {
			readAt := at
			events[i].ReadAt = &readAt
			affected++
		}
	}
	return affected
}

func (r *NotificationRepository) GetPreferences(_ context.Context, userID uuid.UUID) (*models.NotificationPreferences, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	prefs, ok := r.s.preferences[userID]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return &prefs, nil
}

func (r *NotificationRepository) UpdatePreferences(_ context.Context, userID uuid.UUID, changes map[models.NotificationType]bool, at time.Time) (*models.NotificationPreferences, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	prefs, ok := r.s.preferences[userID]
	if !ok {
		prefs = models.DefaultNotificationPreferences(userID)
	}
	for typ, enabled := range changes {
		prefs.Set(typ, enabled)
	}
	prefs.UpdatedAt = at
	r.s.preferences[userID] = prefs
	return &prefs, nil
}
