package repositories

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Store bundles every repository over one connection or transaction
type Store struct {
	db            *gorm.DB
	Borrowers     *BorrowerRepository
	Loans         *LoanRepository
	Repayments    *RepaymentRepository
	Payments      *PaymentRepository
	Notifications *NotificationRepository
	Histories     *LoanHistoryRepository
}

// NewStore creates a store whose repositories share db
func NewStore(db *gorm.DB) *Store {
	return &Store{
		db:            db,
		Borrowers:     NewBorrowerRepository(db),
		Loans:         NewLoanRepository(db),
		Repayments:    NewRepaymentRepository(db),
		Payments:      NewPaymentRepository(db),
		Notifications: NewNotificationRepository(db),
		Histories:     NewLoanHistoryRepository(db),
	}
}

// DB returns the underlying connection
func (s *Store) DB() *gorm.DB {
	return s.db
}

// Transaction runs fn with a store bound to a single database transaction.
// Returning an error from fn rolls everything back.
func (s *Store) Transaction(ctx context.Context, fn func(tx *Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(NewStore(tx))
	})
}

// forUpdate adds a row lock; the sqlite dialect drops it silently
func forUpdate(db *gorm.DB) *gorm.DB {
	return db.Clauses(clause.Locking{Strength: "UPDATE"})
}
