package services

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/anonto42/migo/backend/internal/apperrors"
	"github.com/anonto42/migo/backend/internal/events"
	"github.com/anonto42/migo/backend/internal/models"
	"github.com/anonto42/migo/backend/internal/repositories"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// maxViewActors caps the distinct actors listed on a grouped view.
const maxViewActors = 3

var knownTypes = map[models.NotificationType]bool{
	models.NotificationFollow:        true,
	models.NotificationFriendRequest: true,
	models.NotificationFriendAccept:  true,
	models.NotificationPostLike:      true,
	models.NotificationPostComment:   true,
	models.NotificationMessage:       true,
}

// NotificationService stores raw events and projects them into views.
type NotificationService struct {
	config
	notifications repositories.NotificationRepository
	logger        *zap.Logger
}

// NewNotificationService creates a NotificationService. Wire HandleEvent to
// the event bus to receive domain events.
func NewNotificationService(notifications repositories.NotificationRepository, opts ...Option) *NotificationService {
	cfg := newConfig(opts)
	return &NotificationService{
		config:        cfg,
		notifications: notifications,
		logger:        cfg.logger.Named("notifications"),
	}
}

// Emit appends a raw event. Nothing is deduplicated; actor == recipient is
// dropped, as are types the recipient turned off.
func (s *NotificationService) Emit(ctx context.Context, recipient uuid.UUID, typ models.NotificationType, actor uuid.UUID, entity string) error {
	return s.emit(ctx, recipient, typ, actor, entity, s.now())
}

func (s *NotificationService) emit(ctx context.Context, recipient uuid.UUID, typ models.NotificationType, actor uuid.UUID, entity string, at time.Time) error {
	if !knownTypes[typ] {
		return apperrors.InvalidState("", "unknown notification type %q", typ)
	}
	if recipient == actor {
		return nil
	}
	prefs, err := s.Preferences(ctx, recipient)
	if err != nil {
		return err
	}
	if !prefs.Enabled(typ) {
		s.logger.Debug("Notification muted by recipient", zap.String("type", string(typ)), zap.String("recipient", recipient.String()))
		return nil
	}
	n := &models.Notification{
		ID:          uuid.New(),
		RecipientID: recipient,
		Type:        typ,
		EntityID:    entity,
		ActorID:     actor,
		CreatedAt:   at,
	}
	if err := s.notifications.CreateNotification(ctx, n); err != nil {
		return storageError(err, "create notification")
	}
	s.logger.Debug("Notification stored", zap.String("type", string(typ)), zap.String("recipient", recipient.String()))
	return nil
}

// Preferences returns the recipient's delivery toggles, all enabled when
// none were ever changed.
func (s *NotificationService) Preferences(ctx context.Context, user uuid.UUID) (*models.NotificationPreferences, error) {
	prefs, err := s.notifications.GetPreferences(ctx, user)
	if isNotFound(err) {
		defaults := models.DefaultNotificationPreferences(user)
		return &defaults, nil
	}
	if err != nil {
		return nil, storageError(err, "get notification preferences")
	}
	return prefs, nil
}

// UpdatePreferences turns the given types on or off. Types not named keep
// their current setting.
func (s *NotificationService) UpdatePreferences(ctx context.Context, user uuid.UUID, changes map[models.NotificationType]bool) (*models.NotificationPreferences, error) {
	for typ := range changes {
		if !knownTypes[typ] {
			return nil, apperrors.InvalidState("", "unknown notification type %q", typ)
		}
	}
	if len(changes) == 0 {
		return s.Preferences(ctx, user)
	}
	prefs, err := s.notifications.UpdatePreferences(ctx, user, changes, s.now())
	if err != nil {
		return nil, storageError(err, "update notification preferences")
	}
	return prefs, nil
}

// HandleEvent is the events.Handler feeding the aggregator from a bus.
func (s *NotificationService) HandleEvent(ctx context.Context, ev events.Event) error {
	at := ev.OccurredAt
	if at.IsZero() {
		at = s.now()
	}
	return s.emit(ctx, ev.Recipient, ev.Type, ev.Actor, ev.Entity, at)
}

// ListForUser returns the recipient's notification views, newest first.
func (s *NotificationService) ListForUser(ctx context.Context, recipient uuid.UUID) ([]models.NotificationView, error) {
	raw, err := s.notifications.ListByRecipient(ctx, recipient)
	if err != nil {
		return nil, storageError(err, "list notifications")
	}
	return Aggregate(raw), nil
}

// groupID is the view id of a (type, entity) group.
func groupID(typ models.NotificationType, entity string) string {
	return string(typ) + ":" + entity
}

// Aggregate projects raw events into views. post_like and post_comment events
// collapse per (type, entity); other types stay one view per event. A view is
// read only when every event under it is read.
func Aggregate(raw []models.Notification) []models.NotificationView {
	sorted := append([]models.Notification(nil), raw...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if !sorted[i].CreatedAt.Equal(sorted[j].CreatedAt) {
			return sorted[i].CreatedAt.After(sorted[j].CreatedAt)
		}
		return sorted[i].ID.String() > sorted[j].ID.String()
	})

	views := make([]models.NotificationView, 0, len(sorted))
	groups := make(map[string]int)
	for _, n := range sorted {
		if !n.Type.Grouped() {
			views = append(views, models.NotificationView{
				ID:          n.ID.String(),
				Type:        n.Type,
				EntityID:    n.EntityID,
				Count:       1,
				LatestActor: n.ActorID,
				Actors:      []uuid.UUID{n.ActorID},
				LatestAt:    n.CreatedAt,
				Read:        n.IsRead(),
			})
			continue
		}

		id := groupID(n.Type, n.EntityID)
		idx, ok := groups[id]
		if !ok {
			// newest event of the group comes first
			groups[id] = len(views)
			views = append(views, models.NotificationView{
				ID:          id,
				Type:        n.Type,
				EntityID:    n.EntityID,
				Count:       1,
				LatestActor: n.ActorID,
				Actors:      []uuid.UUID{n.ActorID},
				LatestAt:    n.CreatedAt,
				Read:        n.IsRead(),
			})
			continue
		}
		v := &views[idx]
		v.Count++
		v.Read = v.Read && n.IsRead()
		if len(v.Actors) < maxViewActors && !containsID(v.Actors, n.ActorID) {
			v.Actors = append(v.Actors, n.ActorID)
		}
	}

	sort.SliceStable(views, func(i, j int) bool {
		if !views[i].LatestAt.Equal(views[j].LatestAt) {
			return views[i].LatestAt.After(views[j].LatestAt)
		}
		return views[i].ID > views[j].ID
	})
	return views
}

func containsID(ids []uuid.UUID, id uuid.UUID) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

// MarkRead marks a view read. A group id marks every event in the group;
// an event id marks that event.
func (s *NotificationService) MarkRead(ctx context.Context, recipient uuid.UUID, viewID string) error {
	now := s.now()

	if typ, entity, ok := strings.Cut(viewID, ":"); ok {
		t := models.NotificationType(typ)
		if !t.Grouped() {
			return apperrors.NotFound("notification %q not found", viewID)
		}
		count, err := s.notifications.CountGroup(ctx, recipient, t, entity)
		if err != nil {
			return storageError(err, "count notification group")
		}
		if count == 0 {
			return apperrors.NotFound("notification %q not found", viewID)
		}
		if _, err := s.notifications.MarkGroupAsRead(ctx, recipient, t, entity, now); err != nil {
			return storageError(err, "mark notification group read")
		}
		return nil
	}

	id, err := uuid.Parse(viewID)
	if err != nil {
		return apperrors.NotFound("notification %q not found", viewID)
	}
	n, err := s.notifications.MarkAsRead(ctx, recipient, id, now)
	if err != nil {
		return storageError(err, "mark notification read")
	}
	if n > 0 {
		return nil
	}
	// Nothing changed: either already read or not ours.
	if _, err := s.notifications.GetNotification(ctx, recipient, id); err != nil {
		if isNotFound(err) {
			return apperrors.NotFound("notification %q not found", viewID)
		}
		return storageError(err, "get notification")
	}
	return nil
}

// MarkAllRead marks every event created up to now read. Events emitted after
// the call stay unread.
func (s *NotificationService) MarkAllRead(ctx context.Context, recipient uuid.UUID) (int64, error) {
	n, err := s.notifications.MarkAllAsRead(ctx, recipient, s.now())
	if err != nil {
		return 0, storageError(err, "mark all notifications read")
	}
	return n, nil
}

// UnreadCount counts unread raw events, which is what a badge shows.
func (s *NotificationService) UnreadCount(ctx context.Context, recipient uuid.UUID) (int64, error) {
	n, err := s.notifications.GetUnreadCount(ctx, recipient)
	if err != nil {
		return 0, storageError(err, "count unread notifications")
	}
	return n, nil
}
