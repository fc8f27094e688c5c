package repositories

import (
	"context"

	"microfin-loans/internal/adapters/persistence/models"
	"microfin-loans/internal/core/domain"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// LoanFilter narrows loan listings
type LoanFilter struct {
	Status     string
	BorrowerID *uint
	Search     string
}

// LoanRepository handles loan data access
type LoanRepository struct {
	db *gorm.DB
}

// NewLoanRepository creates a new loan repository
func NewLoanRepository(db *gorm.DB) *LoanRepository {
	return &LoanRepository{db: db}
}

// Create creates a new loan
func (r *LoanRepository) Create(ctx context.Context, loan *models.Loan) error {
	return r.db.WithContext(ctx).Create(loan).Error
}

// GetByID gets a loan by ID with its borrower
func (r *LoanRepository) GetByID(ctx context.Context, id uint) (*models.Loan, error) {
	var loan models.Loan
	err := r.db.WithContext(ctx).
		Preload("Borrower").
		First(&loan, id).Error
	return &loan, err
}

// GetByIDForUpdate reads a loan and locks its row until the transaction ends
func (r *LoanRepository) GetByIDForUpdate(ctx context.Context, id uint) (*models.Loan, error) {
	var loan models.Loan
	err := forUpdate(r.db.WithContext(ctx)).First(&loan, id).Error
	return &loan, err
}

// GetByReference gets a loan by its MF reference
func (r *LoanRepository) GetByReference(ctx context.Context, reference string) (*models.Loan, error) {
	var loan models.Loan
	err := r.db.WithContext(ctx).
		Preload("Borrower").
		Where("reference = ?", reference).
		First(&loan).Error
	return &loan, err
}

// List lists loans with pagination
func (r *LoanRepository) List(ctx context.Context, filter LoanFilter, offset, limit int) ([]*models.Loan, int64, error) {
	var loans []*models.Loan
	var total int64

	query := r.db.WithContext(ctx).Model(&models.Loan{})
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.BorrowerID != nil {
		query = query.Where("borrower_id = ?", *filter.BorrowerID)
	}
	if filter.Search != "" {
		query = query.Where("reference LIKE ?", "%"+filter.Search+"%")
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := query.
		Preload("Borrower").
		Order("created_at DESC, id DESC").
		Offset(offset).
		Limit(limit).
		Find(&loans).Error

	return loans, total, err
}

// ListByStatus returns every loan in a status
func (r *LoanRepository) ListByStatus(ctx context.Context, status domain.LoanStatus) ([]*models.Loan, error) {
	var loans []*models.Loan
	err := r.db.WithContext(ctx).
		Where("status = ?", string(status)).
		Order("id ASC").
		Find(&loans).Error
	return loans, err
}

// CountByStatus returns loan counts keyed by status
func (r *LoanRepository) CountByStatus(ctx context.Context) (map[string]int64, error) {
	var rows []struct {
		Status string
		Total  int64
	}
	err := r.db.WithContext(ctx).
		Model(&models.Loan{}).
		Select("status, COUNT(*) AS total").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	counts := make(map[string]int64, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.Total
	}
	return counts, nil
}

// UpdateStatus writes a new status only if the row still holds from.
// Returns domain.ErrConcurrentUpdate when another writer got there first.
func (r *LoanRepository) UpdateStatus(ctx context.Context, id uint, from domain.LoanStatus, fields map[string]interface{}) error {
	updates := make(map[string]interface{}, len(fields)+1)
	for k, v := range fields {
		updates[k] = v
	}
	updates["version"] = gorm.Expr("version + 1")

	result := r.db.WithContext(ctx).
		Model(&models.Loan{}).
		Where("id = ? AND status = ?", id, string(from)).
		Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrConcurrentUpdate
	}
	return nil
}

// AddTotalPaid increments the loan's running total of approved payments
func (r *LoanRepository) AddTotalPaid(ctx context.Context, id uint, delta decimal.Decimal) error {
	return r.addTotal(ctx, id, "total_paid", delta)
}

// AddTotalPenalties adjusts the loan's running total of applied penalties
func (r *LoanRepository) AddTotalPenalties(ctx context.Context, id uint, delta decimal.Decimal) error {
	return r.addTotal(ctx, id, "total_penalties", delta)
}

func (r *LoanRepository) addTotal(ctx context.Context, id uint, column string, delta decimal.Decimal) error {
	return r.db.WithContext(ctx).
		Model(&models.Loan{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			column:    gorm.Expr(column+" + ?", delta.StringFixed(2)),
			"version": gorm.Expr("version + 1"),
		}).Error
}

// NextSequence allocates the next reference number for year. Must run
// inside a transaction so the counter row stays locked until commit.
func (r *LoanRepository) NextSequence(ctx context.Context, year int) (int, error) {
	db := r.db.WithContext(ctx)

	seed := models.LoanSequence{Year: year, LastSeq: 0}
	if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&seed).Error; err != nil {
		return 0, err
	}

	if err := db.Model(&models.LoanSequence{}).
		Where("year = ?", year).
		Update("last_seq", gorm.Expr("last_seq + 1")).Error; err != nil {
		return 0, err
	}

	var seq models.LoanSequence
	if err := forUpdate(db).Where("year = ?", year).First(&seq).Error; err != nil {
		return 0, err
	}
	return seq.LastSeq, nil
}
