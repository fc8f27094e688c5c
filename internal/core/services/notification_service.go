package services

import (
	"context"
	"errors"
	"log"

	"microfin-loans/internal/adapters/persistence/models"
	"microfin-loans/internal/adapters/persistence/repositories"
	"microfin-loans/internal/core/domain"
	"microfin-loans/internal/core/engine"

	"gorm.io/gorm"
)

// SSE event names
const (
	SSEEventNotification = "notification"
	SSEEventUnreadCount  = "unread_count"
)

// NotificationService owns the borrower inbox and live badge updates
type NotificationService struct {
	repo  *repositories.NotificationRepository
	Hub   *SSEHub
	clock engine.Clock
}

// NewNotificationService creates a new notification service
func NewNotificationService(repo *repositories.NotificationRepository, hub *SSEHub, clock engine.Clock) *NotificationService {
	if hub == nil {
		hub = NewSSEHub()
	}
	return &NotificationService{repo: repo, Hub: hub, clock: clock}
}

// Notify stores a message in the borrower's inbox and pushes it, plus the new
// unread count, to the borrower's live connections.
func (s *NotificationService) Notify(ctx context.Context, borrowerID uint, msg engine.Message, relatedLoanID *uint) (*models.Notification, error) {
	n := &models.Notification{
		BorrowerID:    borrowerID,
		Type:          msg.Type,
		Title:         msg.Title,
		Message:       msg.Body,
		RelatedLoanID: relatedLoanID,
	}
	if err := s.repo.Create(ctx, n); err != nil {
		return nil, err
	}

	s.Hub.SendToBorrower(borrowerID, SSEEvent{Event: SSEEventNotification, Data: n})
	s.pushUnreadCount(ctx, borrowerID)

	return n, nil
}

// notifyLoan is the fire-and-forget form used after a committed state change.
// Delivery failures are logged, never returned.
func (s *NotificationService) notifyLoan(ctx context.Context, loan *models.Loan, msg engine.Message) {
	if s == nil || loan == nil || loan.BorrowerID == nil {
		return
	}
	loanID := loan.ID
	if _, err := s.Notify(ctx, *loan.BorrowerID, msg, &loanID); err != nil {
		log.Printf("⚠️ Notify borrower %d (%s) failed: %v", *loan.BorrowerID, msg.Type, err)
	}
}

// List returns a page of a borrower's notifications
func (s *NotificationService) List(ctx context.Context, borrowerID uint, unreadOnly bool, offset, limit int) ([]*models.Notification, int64, error) {
	return s.repo.ListByBorrower(ctx, borrowerID, unreadOnly, offset, limit)
}

// MarkRead marks one notification read. borrowerID, when non-zero, must own it.
func (s *NotificationService) MarkRead(ctx context.Context, id, borrowerID uint) (*models.Notification, error) {
	n, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotificationNotFound
		}
		return nil, err
	}
	if borrowerID != 0 && n.BorrowerID != borrowerID {
		return nil, domain.ErrNotificationNotFound
	}

	if !n.IsRead() {
		now := s.clock.Now()
		if err := s.repo.MarkRead(ctx, id, now); err != nil {
			return nil, err
		}
		n.ReadAt = &now
		s.pushUnreadCount(ctx, n.BorrowerID)
	}
	return n, nil
}

// MarkAllRead marks every unread notification of a borrower read
func (s *NotificationService) MarkAllRead(ctx context.Context, borrowerID uint) (int64, error) {
	updated, err := s.repo.MarkAllRead(ctx, borrowerID, s.clock.Now())
	if err != nil {
		return 0, err
	}
	if updated > 0 {
		s.pushUnreadCount(ctx, borrowerID)
	}
	return updated, nil
}

// UnreadCount returns the badge count for a borrower
func (s *NotificationService) UnreadCount(ctx context.Context, borrowerID uint) (int64, error) {
	return s.repo.CountUnread(ctx, borrowerID)
}

func (s *NotificationService) pushUnreadCount(ctx context.Context, borrowerID uint) {
	count, err := s.repo.CountUnread(ctx, borrowerID)
	if err != nil {
		log.Printf("⚠️ Unread count for borrower %d failed: %v", borrowerID, err)
		return
	}
	s.Hub.SendToBorrower(borrowerID, SSEEvent{
		Event: SSEEventUnreadCount,
		Data:  map[string]interface{}{"borrower_id": borrowerID, "unread": count},
	})
}
