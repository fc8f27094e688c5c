package models

import (
	"time"

	"microfin-loans/internal/core/domain"
	"microfin-loans/internal/core/engine"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ============================================================
// Borrowers
// ============================================================

// Borrower represents borrowers table
type Borrower struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Code      string    `gorm:"size:20;uniqueIndex;not null" json:"code"`
	FullName  string    `gorm:"size:150;not null" json:"full_name"`
	Phone     string    `gorm:"size:30" json:"phone"`
	Email     string    `gorm:"size:100;index" json:"email"`
	Address   string    `gorm:"type:text" json:"address"`
	Status    string    `gorm:"size:20;not null;index" json:"status"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Borrower) TableName() string {
	return "borrowers"
}

// CanApply reports whether the borrower may open a new loan
func (b *Borrower) CanApply() bool {
	return b.Status == string(domain.BorrowerStatusActive)
}

// ============================================================
// Loans
// ============================================================

// Loan represents loans table
type Loan struct {
	ID                 uint            `gorm:"primaryKey" json:"id"`
	Reference          string          `gorm:"size:20;uniqueIndex;not null" json:"reference"`
	BorrowerID         *uint           `gorm:"index" json:"borrower_id"`
	Principal          decimal.Decimal `gorm:"type:decimal(15,2);not null" json:"principal"`
	AnnualRate         decimal.Decimal `gorm:"type:decimal(9,4);not null" json:"annual_rate"`
	TenorMonths        int             `gorm:"not null" json:"tenor_months"`
	MonthlyInstallment decimal.Decimal `gorm:"type:decimal(15,2);not null" json:"monthly_installment"`
	ApplicationDate    time.Time       `gorm:"type:date;not null" json:"application_date"`
	MaturityDate       time.Time       `gorm:"type:date;not null" json:"maturity_date"`
	ReleaseDate        *time.Time      `gorm:"type:date" json:"release_date"`
	Status             string          `gorm:"size:30;not null;index" json:"status"`
	TotalDisbursed     decimal.Decimal `gorm:"type:decimal(15,2);not null" json:"total_disbursed"`
	TotalPaid          decimal.Decimal `gorm:"type:decimal(15,2);not null" json:"total_paid"`
	TotalPenalties     decimal.Decimal `gorm:"type:decimal(15,2);not null" json:"total_penalties"`
	PenaltyGraceDays   int             `gorm:"not null" json:"penalty_grace_days"`
	PenaltyDailyRate   decimal.Decimal `gorm:"type:decimal(9,6);not null" json:"penalty_daily_rate"`
	IsActive           bool            `gorm:"not null" json:"is_active"`
	Version            int             `gorm:"not null" json:"version"`
	Purpose            string          `gorm:"type:text" json:"purpose"`
	Remark             string          `gorm:"type:text" json:"remark"`
	ApprovedBy         *uint           `json:"approved_by"`
	ApprovedAt         *time.Time      `json:"approved_at"`
	CreatedAt          time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt          time.Time       `gorm:"autoUpdateTime" json:"updated_at"`

	// Relations
	Borrower   *Borrower   `gorm:"foreignKey:BorrowerID" json:"borrower,omitempty"`
	Repayments []Repayment `gorm:"foreignKey:LoanID" json:"repayments,omitempty"`
}

func (Loan) TableName() string {
	return "loans"
}

// LoanStatus returns the typed status
func (l *Loan) LoanStatus() domain.LoanStatus {
	return domain.LoanStatus(l.Status)
}

// Terms returns the penalty settings used by the engine
func (l *Loan) Terms() *engine.LoanTerms {
	return &engine.LoanTerms{
		PenaltyGraceDays: l.PenaltyGraceDays,
		PenaltyDailyRate: l.PenaltyDailyRate,
	}
}

// Summary returns the fields notification templates need
func (l *Loan) Summary() engine.LoanSummary {
	return engine.LoanSummary{
		Reference:   l.Reference,
		Principal:   l.Principal,
		Installment: l.MonthlyInstallment,
		TenorMonths: l.TenorMonths,
		ReleaseDate: l.ReleaseDate,
		Remark:      l.Remark,
	}
}

// Balance is total scheduled plus penalties minus payments, floored at zero
func (l *Loan) Balance() decimal.Decimal {
	total := engine.TotalPayable(l.MonthlyInstallment, l.TenorMonths).Add(l.TotalPenalties)
	return engine.Outstanding(total, l.TotalPaid)
}

// LoanResponse DTO
type LoanResponse struct {
	ID                 uint              `json:"id"`
	Reference          string            `json:"reference"`
	BorrowerID         *uint             `json:"borrower_id"`
	BorrowerName       string            `json:"borrower_name,omitempty"`
	Principal          string            `json:"principal"`
	AnnualRate         string            `json:"annual_rate"`
	TenorMonths        int               `json:"tenor_months"`
	MonthlyInstallment string            `json:"monthly_installment"`
	TotalPayable       string            `json:"total_payable"`
	ApplicationDate    string            `json:"application_date"`
	MaturityDate       string            `json:"maturity_date"`
	ReleaseDate        *string           `json:"release_date"`
	Status             domain.LoanStatus `json:"status"`
	StatusLabel        string            `json:"status_label"`
	NextStatuses       []string          `json:"next_statuses"`
	TotalDisbursed     string            `json:"total_disbursed"`
	TotalPaid          string            `json:"total_paid"`
	TotalPenalties     string            `json:"total_penalties"`
	Balance            string            `json:"balance"`
	PenaltyGraceDays   int               `json:"penalty_grace_days"`
	PenaltyDailyRate   string            `json:"penalty_daily_rate"`
	IsActive           bool              `json:"is_active"`
	Purpose            string            `json:"purpose"`
	Remark             string            `json:"remark"`
	CreatedAt          time.Time         `json:"created_at"`
	UpdatedAt          time.Time         `json:"updated_at"`
}

func (l *Loan) ToResponse() *LoanResponse {
	resp := &LoanResponse{
		ID:                 l.ID,
		Reference:          l.Reference,
		BorrowerID:         l.BorrowerID,
		Principal:          l.Principal.StringFixed(2),
		AnnualRate:         l.AnnualRate.StringFixed(4),
		TenorMonths:        l.TenorMonths,
		MonthlyInstallment: l.MonthlyInstallment.StringFixed(2),
		TotalPayable:       engine.TotalPayable(l.MonthlyInstallment, l.TenorMonths).StringFixed(2),
		ApplicationDate:    l.ApplicationDate.Format(DateFormat),
		MaturityDate:       l.MaturityDate.Format(DateFormat),
		Status:             l.LoanStatus(),
		StatusLabel:        l.LoanStatus().Label(),
		NextStatuses:       []string{},
		TotalDisbursed:     l.TotalDisbursed.StringFixed(2),
		TotalPaid:          l.TotalPaid.StringFixed(2),
		TotalPenalties:     l.TotalPenalties.StringFixed(2),
		Balance:            l.Balance().StringFixed(2),
		PenaltyGraceDays:   l.PenaltyGraceDays,
		PenaltyDailyRate:   l.PenaltyDailyRate.String(),
		IsActive:           l.IsActive,
		Purpose:            l.Purpose,
		Remark:             l.Remark,
		CreatedAt:          l.CreatedAt,
		UpdatedAt:          l.UpdatedAt,
	}

	if l.ReleaseDate != nil {
		s := l.ReleaseDate.Format(DateFormat)
		resp.ReleaseDate = &s
	}
	for _, s := range engine.AllowedTransitions(l.LoanStatus()) {
		resp.NextStatuses = append(resp.NextStatuses, string(s))
	}
	if l.Borrower != nil {
		resp.BorrowerName = l.Borrower.FullName
	}

	return resp
}

// LoanSequence holds the last reference number issued per year
type LoanSequence struct {
	Year    int `gorm:"primaryKey;autoIncrement:false" json:"year"`
	LastSeq int `gorm:"not null" json:"last_seq"`
}

func (LoanSequence) TableName() string {
	return "loan_sequences"
}

// ============================================================
// Repayments & Payments
// ============================================================

// Repayment represents repayments table (one row per installment)
type Repayment struct {
	ID             uint            `gorm:"primaryKey" json:"id"`
	LoanID         uint            `gorm:"not null;uniqueIndex:idx_repayment_loan_seq" json:"loan_id"`
	Sequence       int             `gorm:"not null;uniqueIndex:idx_repayment_loan_seq" json:"sequence"`
	DueDate        time.Time       `gorm:"type:date;not null;index" json:"due_date"`
	AmountDue      decimal.Decimal `gorm:"type:decimal(15,2);not null" json:"amount_due"`
	AmountPaid     decimal.Decimal `gorm:"type:decimal(15,2);not null" json:"amount_paid"`
	PaidAt         *time.Time      `json:"paid_at"`
	PenaltyApplied decimal.Decimal `gorm:"type:decimal(15,2);not null" json:"penalty_applied"`
	Note           string          `gorm:"type:text" json:"note"`
	CreatedAt      time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time       `gorm:"autoUpdateTime" json:"updated_at"`

	// Relations
	Loan *Loan `gorm:"foreignKey:LoanID" json:"loan,omitempty"`
}

func (Repayment) TableName() string {
	return "repayments"
}

// View returns the fields the penalty calculator reads
func (r *Repayment) View() engine.RepaymentView {
	return engine.RepaymentView{
		DueDate:    r.DueDate,
		AmountDue:  r.AmountDue,
		AmountPaid: r.AmountPaid,
	}
}

// Outstanding is the unpaid remainder, never negative
func (r *Repayment) Outstanding() decimal.Decimal {
	return engine.Outstanding(r.AmountDue, r.AmountPaid)
}

// IsPaid reports whether the installment is fully covered
func (r *Repayment) IsPaid() bool {
	return r.AmountPaid.GreaterThanOrEqual(r.AmountDue)
}

// Payment represents payments table
type Payment struct {
	ID              uint            `gorm:"primaryKey" json:"id"`
	LoanID          uint            `gorm:"not null;index" json:"loan_id"`
	RepaymentID     *uint           `gorm:"index" json:"repayment_id"`
	Amount          decimal.Decimal `gorm:"type:decimal(15,2);not null" json:"amount"`
	PenaltyAmount   decimal.Decimal `gorm:"type:decimal(15,2);not null" json:"penalty_amount"`
	Status          string          `gorm:"size:20;not null;index" json:"status"`
	Source          string          `gorm:"size:20;not null" json:"source"`
	ReferenceNo     string          `gorm:"size:40;uniqueIndex;not null" json:"reference_no"`
	RejectionReason string          `gorm:"type:text" json:"rejection_reason"`
	SubmittedBy     *uint           `json:"submitted_by"`
	ApprovedBy      *uint           `json:"approved_by"`
	PaidAt          time.Time       `gorm:"not null" json:"paid_at"`
	ApprovedAt      *time.Time      `json:"approved_at"`
	Note            string          `gorm:"type:text" json:"note"`
	CreatedAt       time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time       `gorm:"autoUpdateTime" json:"updated_at"`

	// Relations
	Loan      *Loan      `gorm:"foreignKey:LoanID" json:"loan,omitempty"`
	Repayment *Repayment `gorm:"foreignKey:RepaymentID" json:"repayment,omitempty"`
}

func (Payment) TableName() string {
	return "payments"
}

// IsPending reports whether the payment still awaits review
func (p *Payment) IsPending() bool {
	return p.Status == string(domain.PaymentStatusPending)
}

// ============================================================
// Notifications & History
// ============================================================

// Notification represents notifications table (borrower inbox)
type Notification struct {
	ID            uint       `gorm:"primaryKey" json:"id"`
	BorrowerID    uint       `gorm:"not null;index" json:"borrower_id"`
	Type          string     `gorm:"size:40;not null" json:"type"`
	Title         string     `gorm:"size:150;not null" json:"title"`
	Message       string     `gorm:"type:text;not null" json:"message"`
	RelatedLoanID *uint      `gorm:"index" json:"related_loan_id"`
	ReadAt        *time.Time `gorm:"index" json:"read_at"`
	CreatedAt     time.Time  `gorm:"autoCreateTime" json:"created_at"`
}

func (Notification) TableName() string {
	return "notifications"
}

// IsRead reports whether the borrower has opened the notification
func (n *Notification) IsRead() bool {
	return n.ReadAt != nil
}

// LoanHistory represents loan_histories table (audit trail)
type LoanHistory struct {
	ID          uint                `gorm:"primaryKey" json:"id"`
	LoanID      uint                `gorm:"not null;index" json:"loan_id"`
	Action      string              `gorm:"size:30;not null" json:"action"`
	FromStatus  string              `gorm:"size:30" json:"from_status"`
	ToStatus    string              `gorm:"size:30" json:"to_status"`
	Amount      decimal.NullDecimal `gorm:"type:decimal(15,2)" json:"amount"`
	Description string              `gorm:"type:text" json:"description"`
	PerformedBy *uint               `json:"performed_by"`
	CreatedAt   time.Time           `gorm:"autoCreateTime" json:"created_at"`
}

func (LoanHistory) TableName() string {
	return "loan_histories"
}

// History actions
const (
	HistoryCreate        = "CREATE"
	HistoryStatusChange  = "STATUS_CHANGE"
	HistoryDisburse      = "DISBURSE"
	HistoryPayment       = "PAYMENT"
	HistoryPaymentReject = "PAYMENT_REJECT"
	HistoryPenalty       = "PENALTY"
)

// DateFormat is the wire format for date-only columns
const DateFormat = "2006-01-02"

// ============================================================
// Auto Migration
// ============================================================

// AutoMigrate runs auto migration for all tables
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&Borrower{},
		&LoanSequence{},
		&Loan{},
		&Repayment{},
		&Payment{},
		&Notification{},
		&LoanHistory{},
	)
}
