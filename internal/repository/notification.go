package repository

import (
	"context"
	"errors"

	"zanhu/internal/models"
	"zanhu/internal/observability"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const recentNotificationLimit = 5

// NotificationRepository defines persistence operations for notifications.
// Every query is scoped to one recipient.
type NotificationRepository interface {
	Create(ctx context.Context, n *models.Notification) error
	Unread(ctx context.Context, recipientID uint) ([]models.Notification, error)
	Read(ctx context.Context, recipientID uint) ([]models.Notification, error)
	MostRecent(ctx context.Context, recipientID uint) ([]models.Notification, error)
	CountUnread(ctx context.Context, recipientID uint) (int64, error)
	MarkAllRead(ctx context.Context, recipientID uint) (int64, error)
	MarkAllUnread(ctx context.Context, recipientID uint) (int64, error)
	GetBySlug(ctx context.Context, recipientID uint, slug string) (*models.Notification, error)
	SetUnread(ctx context.Context, n *models.Notification, unread bool) error
}

type notificationRepository struct {
	db *gorm.DB
}

// NewNotificationRepository returns a new NotificationRepository implementation.
func NewNotificationRepository(db *gorm.DB) NotificationRepository {
	return &notificationRepository{db: db}
}

func (r *notificationRepository) Create(ctx context.Context, n *models.Notification) error {
	if err := r.db.WithContext(ctx).Omit(clause.Associations).Create(n).Error; err != nil {
		notificationLog.LogError(ctx, err, "create")
		return models.NewInternalError(err)
	}
	notificationLog.LogCreate(ctx, map[string]interface{}{"notification_id": n.ID, "verb": string(n.Verb)})
	return nil
}

var notificationLog = observability.NewRepoLogger("notifications")

func (r *notificationRepository) list(ctx context.Context, recipientID uint, unread bool, limit int) ([]models.Notification, error) {
	var out []models.Notification
	q := readDB(r.db).WithContext(ctx).
		Preload("Actor").
		Preload("Recipient").
		Where("recipient_id = ? AND unread = ?", recipientID, unread).
		Order("created_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&out).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return out, nil
}

func (r *notificationRepository) Unread(ctx context.Context, recipientID uint) ([]models.Notification, error) {
	return r.list(ctx, recipientID, true, 0)
}

func (r *notificationRepository) Read(ctx context.Context, recipientID uint) ([]models.Notification, error) {
	return r.list(ctx, recipientID, false, 0)
}

// MostRecent returns the five newest unread notifications.
func (r *notificationRepository) MostRecent(ctx context.Context, recipientID uint) ([]models.Notification, error) {
	return r.list(ctx, recipientID, true, recentNotificationLimit)
}

func (r *notificationRepository) CountUnread(ctx context.Context, recipientID uint) (int64, error) {
	var n int64
	if err := r.db.WithContext(ctx).Model(&models.Notification{}).
		Where("recipient_id = ? AND unread = ?", recipientID, true).
		Count(&n).Error; err != nil {
		return 0, models.NewInternalError(err)
	}
	return n, nil
}

func (r *notificationRepository) setAll(ctx context.Context, recipientID uint, from, to bool) (int64, error) {
	res := r.db.WithContext(ctx).Model(&models.Notification{}).
		Where("recipient_id = ? AND unread = ?", recipientID, from).
		Update("unread", to)
	if res.Error != nil {
		return 0, models.NewInternalError(res.Error)
	}
	return res.RowsAffected, nil
}

func (r *notificationRepository) MarkAllRead(ctx context.Context, recipientID uint) (int64, error) {
	return r.setAll(ctx, recipientID, true, false)
}

func (r *notificationRepository) MarkAllUnread(ctx context.Context, recipientID uint) (int64, error) {
	return r.setAll(ctx, recipientID, false, true)
}

func (r *notificationRepository) GetBySlug(ctx context.Context, recipientID uint, slug string) (*models.Notification, error) {
	var n models.Notification
	if err := r.db.WithContext(ctx).
		Preload("Actor").
		Where("slug = ? AND recipient_id = ?", slug, recipientID).
		First(&n).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("Notification", slug)
		}
		return nil, models.NewInternalError(err)
	}
	return &n, nil
}

// SetUnread flips a single notification; it is a no-op when the flag already matches.
func (r *notificationRepository) SetUnread(ctx context.Context, n *models.Notification, unread bool) error {
	if n.Unread == unread {
		return nil
	}
	if err := r.db.WithContext(ctx).Model(&models.Notification{}).
		Where("id = ?", n.ID).
		Update("unread", unread).Error; err != nil {
		return models.NewInternalError(err)
	}
	n.Unread = unread
	return nil
}
