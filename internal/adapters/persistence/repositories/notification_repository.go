package repositories

import (
	"context"
	"time"

	"microfin-loans/internal/adapters/persistence/models"

	"gorm.io/gorm"
)

// NotificationRepository handles borrower inbox data access
type NotificationRepository struct {
	db *gorm.DB
}

// NewNotificationRepository creates a new notification repository
func NewNotificationRepository(db *gorm.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

// Create creates a new notification
func (r *NotificationRepository) Create(ctx context.Context, n *models.Notification) error {
	return r.db.WithContext(ctx).Create(n).Error
}

// GetByID gets a notification by ID
func (r *NotificationRepository) GetByID(ctx context.Context, id uint) (*models.Notification, error) {
	var n models.Notification
	err := r.db.WithContext(ctx).First(&n, id).Error
	return &n, err
}

// ListByBorrower lists a borrower's notifications, newest first
func (r *NotificationRepository) ListByBorrower(ctx context.Context, borrowerID uint, unreadOnly bool, offset, limit int) ([]*models.Notification, int64, error) {
	var items []*models.Notification
	var total int64

	query := r.db.WithContext(ctx).Model(&models.Notification{}).Where("borrower_id = ?", borrowerID)
	if unreadOnly {
		query = query.Where("read_at IS NULL")
	}
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := query.
		Order("created_at DESC, id DESC").
		Offset(offset).
		Limit(limit).
		Find(&items).Error

	return items, total, err
}

// MarkRead stamps read_at on one notification if still unread
func (r *NotificationRepository) MarkRead(ctx context.Context, id uint, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.Notification{}).
		Where("id = ? AND read_at IS NULL", id).
		Update("read_at", at).Error
}

// MarkAllRead stamps read_at on every unread notification of a borrower
func (r *NotificationRepository) MarkAllRead(ctx context.Context, borrowerID uint, at time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Notification{}).
		Where("borrower_id = ? AND read_at IS NULL", borrowerID).
		Update("read_at", at)
	return result.RowsAffected, result.Error
}

// CountUnread counts a borrower's unread notifications
func (r *NotificationRepository) CountUnread(ctx context.Context, borrowerID uint) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Notification{}).
		Where("borrower_id = ? AND read_at IS NULL", borrowerID).
		Count(&count).Error
	return count, err
}
