package repositories

import (
	"context"
	"time"

	"github.com/anonto42/migo/backend/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// NotificationRepository stores raw, append-only notification events
type NotificationRepository interface {
	CreateNotification(ctx context.Context, notification *models.Notification) error
	GetNotification(ctx context.Context, recipientID, id uuid.UUID) (*models.Notification, error)
	ListByRecipient(ctx context.Context, recipientID uuid.UUID) ([]models.Notification, error)
	CountGroup(ctx context.Context, recipientID uuid.UUID, typ models.NotificationType, entityID string) (int64, error)
	GetUnreadCount(ctx context.Context, recipientID uuid.UUID) (int64, error)
	MarkAsRead(ctx context.Context, recipientID, id uuid.UUID, at time.Time) (int64, error)
	MarkGroupAsRead(ctx context.Context, recipientID uuid.UUID, typ models.NotificationType, entityID string, at time.Time) (int64, error)
	// MarkAllAsRead only touches events created at or before at.
	MarkAllAsRead(ctx context.Context, recipientID uuid.UUID, at time.Time) (int64, error)
	// GetPreferences returns ErrNotFound when the user never changed a toggle.
	GetPreferences(ctx context.Context, userID uuid.UUID) (*models.NotificationPreferences, error)
	// UpdatePreferences writes only the given toggles; unset ones keep their
	// stored value, or the default when no row exists yet.
	UpdatePreferences(ctx context.Context, userID uuid.UUID, changes map[models.NotificationType]bool, at time.Time) (*models.NotificationPreferences, error)
}

type postgresNotificationRepository struct {
	db *gorm.DB
}

func NewPostgresNotificationRepository(db *gorm.DB) NotificationRepository {
	return &postgresNotificationRepository{db: db}
}

func (r *postgresNotificationRepository) CreateNotification(ctx context.Context, notification *models.Notification) error {
	return translate(r.db.WithContext(ctx).Create(notification).Error, "create notification")
}

func (r *postgresNotificationRepository) GetNotification(ctx context.Context, recipientID, id uuid.UUID) (*models.Notification, error) {
	var n models.Notification
	err := r.db.WithContext(ctx).Where("id = ? AND recipient_id = ?", id, recipientID).First(&n).Error
	if err != nil {
		return nil, translate(err, "get notification")
	}
	return &n, nil
}

func (r *postgresNotificationRepository) ListByRecipient(ctx context.Context, recipientID uuid.UUID) ([]models.Notification, error) {
	var notifications []models.Notification
	err := r.db.WithContext(ctx).
		Where("recipient_id = ?", recipientID).
		Order("created_at DESC, id DESC").
		Find(&notifications).Error
	if err != nil {
		return nil, translate(err, "list notifications")
	}
	return notifications, nil
}

func (r *postgresNotificationRepository) CountGroup(ctx context.Context, recipientID uuid.UUID, typ models.NotificationType, entityID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Notification{}).
		Where("recipient_id = ? AND type = ? AND entity_id = ?", recipientID, typ, entityID).
		Count(&count).Error
	return count, translate(err, "count notification group")
}

func (r *postgresNotificationRepository) GetUnreadCount(ctx context.Context, recipientID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Notification{}).
		Where("recipient_id = ? AND read_at IS NULL", recipientID).
		Count(&count).Error
	return count, translate(err, "count unread notifications")
}

func (r *postgresNotificationRepository) MarkAsRead(ctx context.Context, recipientID, id uuid.UUID, at time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Model(&models.Notification{}).
		Where("id = ? AND recipient_id = ? AND read_at IS NULL", id, recipientID).
		Update("read_at", at)
	return res.RowsAffected, translate(res.Error, "mark notification read")
}

func (r *postgresNotificationRepository) MarkGroupAsRead(ctx context.Context, recipientID uuid.UUID, typ models.NotificationType, entityID string, at time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Model(&models.Notification{}).
		Where("recipient_id = ? AND type = ? AND entity_id = ? AND read_at IS NULL", recipientID, typ, entityID).
		Update("read_at", at)
	return res.RowsAffected, translate(res.Error, "mark notification group read")
}

func (r *postgresNotificationRepository) MarkAllAsRead(ctx context.Context, recipientID uuid.UUID, at time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Model(&models.Notification{}).
		Where("recipient_id = ? AND read_at IS NULL AND created_at <= ?", recipientID, at).
		Update("read_at", at)
	return res.RowsAffected, translate(res.Error, "mark all notifications read")
}

func (r *postgresNotificationRepository) GetPreferences(ctx context.Context, userID uuid.UUID) (*models.NotificationPreferences, error) {
	var prefs models.NotificationPreferences
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&prefs).Error; err != nil {
		return nil, translate(err, "get notification preferences")
	}
	return &prefs, nil
}

// UpdatePreferences upserts the row, assigning only the changed columns on conflict.
func (r *postgresNotificationRepository) UpdatePreferences(ctx context.Context, userID uuid.UUID, changes map[models.NotificationType]bool, at time.Time) (*models.NotificationPreferences, error) {
	prefs := models.DefaultNotificationPreferences(userID)
	prefs.UpdatedAt = at
	assignments := map[string]any{"updated_at": at}
	for typ, enabled := range changes {
		if prefs.Set(typ, enabled) {
			assignments[models.PreferenceColumn(typ)] = enabled
		}
	}
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.Assignments(assignments),
	}).Create(&prefs).Error
	if err != nil {
		return nil, translate(err, "update notification preferences")
	}
	return r.GetPreferences(ctx, userID)
}
