package repositories

import (
	"context"

	"microfin-loans/internal/adapters/persistence/models"
	"microfin-loans/internal/core/domain"

	"gorm.io/gorm"
)

// PaymentRepository handles payment data access
type PaymentRepository struct {
	db *gorm.DB
}

// NewPaymentRepository creates a new payment repository
func NewPaymentRepository(db *gorm.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

// Create creates a new payment
func (r *PaymentRepository) Create(ctx context.Context, payment *models.Payment) error {
	return r.db.WithContext(ctx).Create(payment).Error
}

// GetByID gets a payment with its loan
func (r *PaymentRepository) GetByID(ctx context.Context, id uint) (*models.Payment, error) {
	var payment models.Payment
	err := r.db.WithContext(ctx).
		Preload("Loan").
		First(&payment, id).Error
	return &payment, err
}

// GetByIDForUpdate reads a payment and locks its row
func (r *PaymentRepository) GetByIDForUpdate(ctx context.Context, id uint) (*models.Payment, error) {
	var payment models.Payment
	err := forUpdate(r.db.WithContext(ctx)).First(&payment, id).Error
	return &payment, err
}

// ListByLoan returns every payment of a loan, newest first
func (r *PaymentRepository) ListByLoan(ctx context.Context, loanID uint) ([]*models.Payment, error) {
	var payments []*models.Payment
	err := r.db.WithContext(ctx).
		Where("loan_id = ?", loanID).
		Order("created_at DESC, id DESC").
		Find(&payments).Error
	return payments, err
}

// ListPending lists payments waiting for review, oldest first
func (r *PaymentRepository) ListPending(ctx context.Context, offset, limit int) ([]*models.Payment, int64, error) {
	var payments []*models.Payment
	var total int64

	query := r.db.WithContext(ctx).Model(&models.Payment{}).Where("status = ?", string(domain.PaymentStatusPending))
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := query.
		Preload("Loan").
		Order("created_at ASC, id ASC").
		Offset(offset).
		Limit(limit).
		Find(&payments).Error

	return payments, total, err
}

// Resolve moves a pending payment to its final status. Returns
// domain.ErrPaymentAlreadyProcessed if it was no longer pending.
func (r *PaymentRepository) Resolve(ctx context.Context, id uint, fields map[string]interface{}) error {
	result := r.db.WithContext(ctx).
		Model(&models.Payment{}).
		Where("id = ? AND status = ?", id, string(domain.PaymentStatusPending)).
		Updates(fields)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrPaymentAlreadyProcessed
	}
	return nil
}
