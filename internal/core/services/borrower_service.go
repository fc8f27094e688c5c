package services

import (
	"context"
	"errors"
	"log"
	"strings"

	"microfin-loans/internal/adapters/persistence/models"
	"microfin-loans/internal/adapters/persistence/repositories"
	"microfin-loans/internal/core/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// BorrowerService handles borrower registration and standing
type BorrowerService struct {
	repo *repositories.BorrowerRepository
}

// NewBorrowerService creates a new borrower service
func NewBorrowerService(repo *repositories.BorrowerRepository) *BorrowerService {
	return &BorrowerService{repo: repo}
}

// CreateBorrowerInput represents create borrower input
type CreateBorrowerInput struct {
	Code     string `json:"code"`
	FullName string `json:"full_name"`
	Phone    string `json:"phone"`
	Email    string `json:"email"`
	Address  string `json:"address"`
}

// ListBorrowersOutput represents list borrowers output
type ListBorrowersOutput struct {
	Borrowers  []*models.Borrower `json:"borrowers"`
	Total      int64              `json:"total"`
	Page       int                `json:"page"`
	Limit      int                `json:"limit"`
	TotalPages int                `json:"total_pages"`
}

// Create registers a new active borrower. A blank code is generated.
func (s *BorrowerService) Create(ctx context.Context, input *CreateBorrowerInput) (*models.Borrower, error) {
	name := strings.TrimSpace(input.FullName)
	if name == "" {
		return nil, domain.NewValidationError("full_name", "is required")
	}

	code := strings.ToUpper(strings.TrimSpace(input.Code))
	if code == "" {
		code = "BR-" + strings.ToUpper(uuid.NewString()[:8])
	}

	exists, err := s.repo.ExistsByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, domain.ErrBorrowerAlreadyExists
	}

	borrower := &models.Borrower{
		Code:     code,
		FullName: name,
		Phone:    strings.TrimSpace(input.Phone),
		Email:    strings.TrimSpace(input.Email),
		Address:  strings.TrimSpace(input.Address),
		Status:   string(domain.BorrowerStatusActive),
	}
	if err := s.repo.Create(ctx, borrower); err != nil {
		return nil, err
	}

	log.Printf("👤 Borrower %s registered: %s", borrower.Code, borrower.FullName)
	return borrower, nil
}

// Get gets a borrower by ID
func (s *BorrowerService) Get(ctx context.Context, id uint) (*models.Borrower, error) {
	borrower, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrBorrowerNotFound
		}
		return nil, err
	}
	return borrower, nil
}

// List lists borrowers with pagination
func (s *BorrowerService) List(ctx context.Context, status, search string, page, limit int) (*ListBorrowersOutput, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	if status != "" {
		st, err := domain.ParseBorrowerStatus(status)
		if err != nil {
			return nil, err
		}
		status = string(st)
	}

	borrowers, total, err := s.repo.List(ctx, status, search, (page-1)*limit, limit)
	if err != nil {
		return nil, err
	}

	totalPages := int(total) / limit
	if int(total)%limit > 0 {
		totalPages++
	}

	return &ListBorrowersOutput{
		Borrowers:  borrowers,
		Total:      total,
		Page:       page,
		Limit:      limit,
		TotalPages: totalPages,
	}, nil
}

// UpdateStatus changes a borrower's standing. Only active borrowers may apply.
func (s *BorrowerService) UpdateStatus(ctx context.Context, id uint, status string) (*models.Borrower, error) {
	st, err := domain.ParseBorrowerStatus(status)
	if err != nil {
		return nil, err
	}
	if err := s.repo.UpdateStatus(ctx, id, string(st)); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrBorrowerNotFound
		}
		return nil, err
	}
	return s.Get(ctx, id)
}
