// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the
// Notification model. Notifications are standalone rows scoped by a
// (recipient_id, recipient_kind) pair; unlike messages they are hard-deleted
// on request and by the retention sweeper.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mdmonauwarulislam/jobpulse/internal/domain"
)

// CreateNotification inserts a notification row, assigning an id and
// creation timestamp when unset. Pure insert; no side effects.
func CreateNotification(ctx context.Context, db *gorm.DB, n *domain.Notification) error {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	return db.WithContext(ctx).Create(n).Error
}

// notificationScope narrows a query to one recipient with the optional type
// and unread filters applied.
func notificationScope(db *gorm.DB, recipientID string, kind domain.RecipientKind, typeFilter domain.NotificationType, unreadOnly bool) *gorm.DB {
	q := db.Model(&domain.Notification{}).
		Where("recipient_id = ? AND recipient_kind = ?", recipientID, kind)
	if typeFilter != "" {
		q = q.Where("type = ?", typeFilter)
	}
	if unreadOnly {
		q = q.Where("is_read = ?", false)
	}
	return q
}

// ListNotificationsPage returns a page of the recipient's notifications,
// newest first, with optional type and unread filters.
func ListNotificationsPage(ctx context.Context, db *gorm.DB, recipientID string, kind domain.RecipientKind, typeFilter domain.NotificationType, unreadOnly bool, offset, limit int) ([]domain.Notification, error) {
	var out []domain.Notification
	err := notificationScope(db.WithContext(ctx), recipientID, kind, typeFilter, unreadOnly).
		Order("created_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}

// CountNotifications returns the total matching ListNotificationsPage's
// filter, for pagination metadata.
func CountNotifications(ctx context.Context, db *gorm.DB, recipientID string, kind domain.RecipientKind, typeFilter domain.NotificationType, unreadOnly bool) (int64, error) {
	var total int64
	err := notificationScope(db.WithContext(ctx), recipientID, kind, typeFilter, unreadOnly).
		Count(&total).Error
	return total, err
}

// CountUnreadNotifications returns the recipient's unread notification count.
func CountUnreadNotifications(ctx context.Context, db *gorm.DB, recipientID string, kind domain.RecipientKind) (int64, error) {
	return CountNotifications(ctx, db, recipientID, kind, "", true)
}

// MarkNotificationRead flips one notification to read, enforcing recipient
// ownership. Returns ErrNotFound when the row does not exist or belongs to
// someone else. Re-marking a read notification affects zero rows and is
// treated as success (the operation is idempotent).
func MarkNotificationRead(ctx context.Context, db *gorm.DB, recipientID string, kind domain.RecipientKind, id string) error {
	var n domain.Notification
	err := db.WithContext(ctx).
		Where("id = ? AND recipient_id = ? AND recipient_kind = ?", id, recipientID, kind).
		First(&n).Error
	if err != nil {
		return err
	}
	if n.IsRead {
		return nil
	}
	now := time.Now().UTC()
	return db.WithContext(ctx).
		Model(&domain.Notification{}).
		Where("id = ?", id).
		Updates(map[string]any{"is_read": true, "read_at": now}).Error
}

// MarkAllNotificationsRead bulk-updates every unread notification for the
// recipient and returns the number of rows touched.
func MarkAllNotificationsRead(ctx context.Context, db *gorm.DB, recipientID string, kind domain.RecipientKind) (int64, error) {
	now := time.Now().UTC()
	res := db.WithContext(ctx).
		Model(&domain.Notification{}).
		Where("recipient_id = ? AND recipient_kind = ? AND is_read = ?", recipientID, kind, false).
		Updates(map[string]any{"is_read": true, "read_at": now})
	return res.RowsAffected, res.Error
}

// DeleteNotification removes one notification, enforcing recipient
// ownership. Returns ErrNotFound when nothing was deleted.
func DeleteNotification(ctx context.Context, db *gorm.DB, recipientID string, kind domain.RecipientKind, id string) error {
	res := db.WithContext(ctx).
		Where("id = ? AND recipient_id = ? AND recipient_kind = ?", id, recipientID, kind).
		Delete(&domain.Notification{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteAllNotifications removes every notification for the recipient and
// returns the number of rows deleted.
func DeleteAllNotifications(ctx context.Context, db *gorm.DB, recipientID string, kind domain.RecipientKind) (int64, error) {
	res := db.WithContext(ctx).
		Where("recipient_id = ? AND recipient_kind = ?", recipientID, kind).
		Delete(&domain.Notification{})
	return res.RowsAffected, res.Error
}

// DeleteExpiredNotifications removes notifications whose expires_at has
// passed, regardless of read state.
func DeleteExpiredNotifications(ctx context.Context, db *gorm.DB, now time.Time) (int64, error) {
	res := db.WithContext(ctx).
		Where("expires_at IS NOT NULL AND expires_at <= ?", now).
		Delete(&domain.Notification{})
	return res.RowsAffected, res.Error
}

// DeleteReadNotificationsBefore removes read notifications created before
// the cutoff. Used by the retention sweeper, never by request paths.
func DeleteReadNotificationsBefore(ctx context.Context, db *gorm.DB, cutoff time.Time) (int64, error) {
	res := db.WithContext(ctx).
		Where("is_read = ? AND created_at < ?", true, cutoff).
		Delete(&domain.Notification{})
	return res.RowsAffected, res.Error
}
