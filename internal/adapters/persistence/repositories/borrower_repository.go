package repositories

import (
	"context"
	"strings"

	"microfin-loans/internal/adapters/persistence/models"

	"gorm.io/gorm"
)

// BorrowerRepository handles borrower data access
type BorrowerRepository struct {
	db *gorm.DB
}

// NewBorrowerRepository creates a new borrower repository
func NewBorrowerRepository(db *gorm.DB) *BorrowerRepository {
	return &BorrowerRepository{db: db}
}

// Create creates a new borrower
func (r *BorrowerRepository) Create(ctx context.Context, borrower *models.Borrower) error {
	return r.db.WithContext(ctx).Create(borrower).Error
}

// GetByID gets a borrower by ID
func (r *BorrowerRepository) GetByID(ctx context.Context, id uint) (*models.Borrower, error) {
	var borrower models.Borrower
	err := r.db.WithContext(ctx).First(&borrower, id).Error
	return &borrower, err
}

// ExistsByCode checks if a borrower code is taken
func (r *BorrowerRepository) ExistsByCode(ctx context.Context, code string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Borrower{}).Where("code = ?", code).Count(&count).Error
	return count > 0, err
}

// List lists borrowers with optional status and name/code search
func (r *BorrowerRepository) List(ctx context.Context, status, search string, offset, limit int) ([]*models.Borrower, int64, error) {
	var borrowers []*models.Borrower
	var total int64

	query := r.db.WithContext(ctx).Model(&models.Borrower{})
	if status != "" {
		query = query.Where("status = ?", status)
	}
	if search = strings.TrimSpace(search); search != "" {
		like := "%" + search + "%"
		query = query.Where("full_name LIKE ? OR code LIKE ?", like, like)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := query.
		Order("full_name ASC").
		Offset(offset).
		Limit(limit).
		Find(&borrowers).Error

	return borrowers, total, err
}

// UpdateStatus sets a borrower's status
func (r *BorrowerRepository) UpdateStatus(ctx context.Context, id uint, status string) error {
	result := r.db.WithContext(ctx).Model(&models.Borrower{}).Where("id = ?", id).Update("status", status)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
