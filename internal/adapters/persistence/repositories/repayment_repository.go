package repositories

import (
	"context"
	"time"

	"microfin-loans/internal/adapters/persistence/models"
	"microfin-loans/internal/core/domain"

	"gorm.io/gorm"
)

// RepaymentRepository handles repayment (installment) data access
type RepaymentRepository struct {
	db *gorm.DB
}

// NewRepaymentRepository creates a new repayment repository
func NewRepaymentRepository(db *gorm.DB) *RepaymentRepository {
	return &RepaymentRepository{db: db}
}

// CreateBatch inserts a loan's schedule in one statement
func (r *RepaymentRepository) CreateBatch(ctx context.Context, repayments []models.Repayment) error {
	if len(repayments) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&repayments).Error
}

// GetByID gets a repayment with its loan
func (r *RepaymentRepository) GetByID(ctx context.Context, id uint) (*models.Repayment, error) {
	var repayment models.Repayment
	err := r.db.WithContext(ctx).
		Preload("Loan").
		First(&repayment, id).Error
	return &repayment, err
}

// GetByIDForUpdate reads a repayment and locks its row
func (r *RepaymentRepository) GetByIDForUpdate(ctx context.Context, id uint) (*models.Repayment, error) {
	var repayment models.Repayment
	err := forUpdate(r.db.WithContext(ctx)).First(&repayment, id).Error
	return &repayment, err
}

// ListByLoan returns a loan's installments ordered by due date
func (r *RepaymentRepository) ListByLoan(ctx context.Context, loanID uint) ([]*models.Repayment, error) {
	var repayments []*models.Repayment
	err := r.db.WithContext(ctx).
		Where("loan_id = ?", loanID).
		Order("due_date ASC, sequence ASC").
		Find(&repayments).Error
	return repayments, err
}

// CountByLoan returns how many installments a loan has
func (r *RepaymentRepository) CountByLoan(ctx context.Context, loanID uint) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Repayment{}).Where("loan_id = ?", loanID).Count(&count).Error
	return count, err
}

// FirstUnpaid returns the earliest installment not yet fully paid
func (r *RepaymentRepository) FirstUnpaid(ctx context.Context, loanID uint) (*models.Repayment, error) {
	var repayment models.Repayment
	err := r.db.WithContext(ctx).
		Where("loan_id = ? AND paid_at IS NULL", loanID).
		Order("due_date ASC, sequence ASC").
		First(&repayment).Error
	return &repayment, err
}

// ListOverdue returns unpaid installments of disbursed loans due before day
func (r *RepaymentRepository) ListOverdue(ctx context.Context, day time.Time) ([]*models.Repayment, error) {
	var repayments []*models.Repayment
	err := r.db.WithContext(ctx).
		Joins("JOIN loans ON loans.id = repayments.loan_id").
		Where("loans.status = ? AND repayments.paid_at IS NULL AND repayments.due_date < ?",
			string(domain.LoanStatusDisbursed), day).
		Order("repayments.due_date ASC, repayments.id ASC").
		Find(&repayments).Error
	return repayments, err
}

// ListDueOn returns unpaid installments of disbursed loans due on day
func (r *RepaymentRepository) ListDueOn(ctx context.Context, day time.Time) ([]*models.Repayment, error) {
	var repayments []*models.Repayment
	err := r.db.WithContext(ctx).
		Preload("Loan").
		Joins("JOIN loans ON loans.id = repayments.loan_id").
		Where("loans.status = ? AND repayments.paid_at IS NULL AND repayments.due_date = ?",
			string(domain.LoanStatusDisbursed), day).
		Order("repayments.id ASC").
		Find(&repayments).Error
	return repayments, err
}

// Update updates the given columns of a repayment
func (r *RepaymentRepository) Update(ctx context.Context, id uint, fields map[string]interface{}) error {
	return r.db.WithContext(ctx).Model(&models.Repayment{}).Where("id = ?", id).Updates(fields).Error
}
