package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"microfin-loans/internal/adapters/persistence/models"
	"microfin-loans/internal/adapters/persistence/repositories"
	"microfin-loans/internal/core/domain"
	"microfin-loans/internal/core/engine"
	"microfin-loans/internal/pkg/metrics"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// LoanService handles loan applications and the loan lifecycle
type LoanService struct {
	store     *repositories.Store
	notifier  *NotificationService
	publisher EventPublisher
	policy    engine.Policy
	clock     engine.Clock
}

// NewLoanService creates a new loan service
func NewLoanService(
	store *repositories.Store,
	notifier *NotificationService,
	publisher EventPublisher,
	policy engine.Policy,
	clock engine.Clock,
) *LoanService {
	if publisher == nil {
		publisher = NopPublisher{}
	}
	return &LoanService{
		store:     store,
		notifier:  notifier,
		publisher: publisher,
		policy:    policy,
		clock:     clock,
	}
}

// Policy returns the product policy the service applies
func (s *LoanService) Policy() engine.Policy {
	return s.policy
}

// ApplyInput represents a new loan application
type ApplyInput struct {
	BorrowerID       *uint
	Principal        decimal.Decimal
	AnnualRate       *decimal.Decimal
	TenorMonths      int
	ApplicationDate  *time.Time
	PenaltyGraceDays *int
	PenaltyDailyRate *decimal.Decimal
	Purpose          string
	ActorID          *uint
}

// Apply validates an application, prices it and stores it as new_application
func (s *LoanService) Apply(ctx context.Context, input *ApplyInput) (*models.Loan, error) {
	if err := s.policy.ValidateApplication(input.Principal, input.TenorMonths); err != nil {
		return nil, err
	}

	rate := s.policy.DefaultAnnualRate
	if input.AnnualRate != nil {
		rate = *input.AnnualRate
	}
	grace := s.policy.DefaultPenaltyGraceDays
	if input.PenaltyGraceDays != nil {
		if *input.PenaltyGraceDays < 0 {
			return nil, domain.NewValidationError("penalty_grace_days", "must not be negative")
		}
		grace = *input.PenaltyGraceDays
	}
	dailyRate := s.policy.DefaultPenaltyDailyRate
	if input.PenaltyDailyRate != nil {
		if input.PenaltyDailyRate.IsNegative() {
			return nil, domain.NewValidationError("penalty_daily_rate", "must not be negative")
		}
		dailyRate = *input.PenaltyDailyRate
	}

	principal := engine.RoundMoney(input.Principal)
	emi, err := engine.CalculateEMI(principal, rate, input.TenorMonths)
	if err != nil {
		return nil, err
	}

	if input.BorrowerID != nil {
		borrower, err := s.store.Borrowers.GetByID(ctx, *input.BorrowerID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, domain.ErrBorrowerNotFound
			}
			return nil, err
		}
		if !borrower.CanApply() {
			return nil, domain.ErrBorrowerNotEligible
		}
	}

	applied := s.clock.Today()
	if input.ApplicationDate != nil {
		applied = *input.ApplicationDate
	}
	applied = engine.DateOnly(applied)

	loan := &models.Loan{
		BorrowerID:         input.BorrowerID,
		Principal:          principal,
		AnnualRate:         rate,
		TenorMonths:        input.TenorMonths,
		MonthlyInstallment: emi,
		ApplicationDate:    applied,
		MaturityDate:       engine.MaturityDate(applied, input.TenorMonths),
		Status:             string(domain.LoanStatusNewApplication),
		TotalDisbursed:     decimal.Zero,
		TotalPaid:          decimal.Zero,
		TotalPenalties:     decimal.Zero,
		PenaltyGraceDays:   grace,
		PenaltyDailyRate:   dailyRate,
		IsActive:           true,
		Version:            1,
		Purpose:            input.Purpose,
	}

	err = s.store.Transaction(ctx, func(tx *repositories.Store) error {
		seq, err := tx.Loans.NextSequence(ctx, applied.Year())
		if err != nil {
			return fmt.Errorf("allocate loan reference: %w", err)
		}
		loan.Reference = domain.FormatLoanReference(applied.Year(), seq)

		if err := tx.Loans.Create(ctx, loan); err != nil {
			return err
		}
		return tx.Histories.Create(ctx, &models.LoanHistory{
			LoanID:      loan.ID,
			Action:      models.HistoryCreate,
			ToStatus:    loan.Status,
			Amount:      decimal.NewNullDecimal(principal),
			Description: "Loan application submitted",
			PerformedBy: input.ActorID,
		})
	})
	if err != nil {
		return nil, err
	}

	log.Printf("📝 Loan %s submitted: %s over %d months @ %s%%", loan.Reference,
		engine.FormatAmount(principal), loan.TenorMonths, rate.String())
	metrics.LoansApplied.Inc()

	s.notifier.notifyLoan(ctx, loan, engine.SubmittedMessage(loan.Summary()))
	s.publish(ctx, domain.NewEvent(domain.EventLoanSubmitted, loan.ID, loan.Reference, s.clock.Now(), map[string]any{
		"borrower_id":  loan.BorrowerID,
		"principal":    loan.Principal.StringFixed(2),
		"tenor_months": loan.TenorMonths,
		"installment":  loan.MonthlyInstallment.StringFixed(2),
	}))

	return s.Get(ctx, loan.ID)
}

// Get gets a loan by ID
func (s *LoanService) Get(ctx context.Context, id uint) (*models.Loan, error) {
	loan, err := s.store.Loans.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrLoanNotFound
		}
		return nil, err
	}
	return loan, nil
}

// GetByReference gets a loan by its MF reference
func (s *LoanService) GetByReference(ctx context.Context, reference string) (*models.Loan, error) {
	if _, _, err := domain.ParseLoanReference(reference); err != nil {
		return nil, err
	}
	loan, err := s.store.Loans.GetByReference(ctx, reference)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrLoanNotFound
		}
		return nil, err
	}
	return loan, nil
}

// ListInput represents list input
type ListInput struct {
	Page       int
	Limit      int
	Status     string
	BorrowerID *uint
	Search     string
}

// ListOutput represents list output
type ListOutput struct {
	Loans      []*models.Loan `json:"loans"`
	Total      int64          `json:"total"`
	Page       int            `json:"page"`
	Limit      int            `json:"limit"`
	TotalPages int            `json:"total_pages"`
}

// List lists loans
func (s *LoanService) List(ctx context.Context, input *ListInput) (*ListOutput, error) {
	if input.Page < 1 {
		input.Page = 1
	}
	if input.Limit < 1 {
		input.Limit = 10
	}
	if input.Limit > 100 {
		input.Limit = 100
	}
	if input.Status != "" {
		status, err := domain.ParseLoanStatus(input.Status)
		if err != nil {
			return nil, err
		}
		input.Status = string(status)
	}

	offset := (input.Page - 1) * input.Limit
	loans, total, err := s.store.Loans.List(ctx, repositories.LoanFilter{
		Status:     input.Status,
		BorrowerID: input.BorrowerID,
		Search:     input.Search,
	}, offset, input.Limit)
	if err != nil {
		return nil, err
	}

	totalPages := int(total) / input.Limit
	if int(total)%input.Limit > 0 {
		totalPages++
	}

	return &ListOutput{
		Loans:      loans,
		Total:      total,
		Page:       input.Page,
		Limit:      input.Limit,
		TotalPages: totalPages,
	}, nil
}

// ListByBorrower lists every loan of a borrower
func (s *LoanService) ListByBorrower(ctx context.Context, borrowerID uint, page, limit int) (*ListOutput, error) {
	if _, err := s.store.Borrowers.GetByID(ctx, borrowerID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrBorrowerNotFound
		}
		return nil, err
	}
	return s.List(ctx, &ListInput{Page: page, Limit: limit, BorrowerID: &borrowerID})
}

// StatusSummary returns loan counts per status
func (s *LoanService) StatusSummary(ctx context.Context) (map[string]int64, error) {
	counts, err := s.store.Loans.CountByStatus(ctx)
	if err != nil {
		return nil, err
	}
	for _, st := range domain.LoanStatuses {
		if _, ok := counts[string(st)]; !ok {
			counts[string(st)] = 0
		}
	}
	return counts, nil
}

// QuoteInput represents a calculator request
type QuoteInput struct {
	Principal   decimal.Decimal
	AnnualRate  *decimal.Decimal
	TenorMonths int
	StartDate   *time.Time
}

// Quote is a priced loan preview
type Quote struct {
	Principal     decimal.Decimal      `json:"principal"`
	AnnualRate    decimal.Decimal      `json:"annual_rate"`
	MonthlyRate   decimal.Decimal      `json:"monthly_rate"`
	TenorMonths   int                  `json:"tenor_months"`
	Installment   decimal.Decimal      `json:"monthly_installment"`
	TotalPayable  decimal.Decimal      `json:"total_payable"`
	TotalInterest decimal.Decimal      `json:"total_interest"`
	StartDate     string               `json:"start_date"`
	MaturityDate  string               `json:"maturity_date"`
	Schedule      []engine.Installment `json:"schedule"`
}

// Quote prices a loan without storing anything
func (s *LoanService) Quote(ctx context.Context, input *QuoteInput) (*Quote, error) {
	if err := s.policy.ValidateApplication(input.Principal, input.TenorMonths); err != nil {
		return nil, err
	}
	rate := s.policy.DefaultAnnualRate
	if input.AnnualRate != nil {
		rate = *input.AnnualRate
	}
	start := s.clock.Today()
	if input.StartDate != nil {
		start = *input.StartDate
	}
	start = engine.DateOnly(start)

	principal := engine.RoundMoney(input.Principal)
	emi, err := engine.CalculateEMI(principal, rate, input.TenorMonths)
	if err != nil {
		return nil, err
	}
	schedule, err := engine.GenerateSchedule(start, input.TenorMonths, emi)
	if err != nil {
		return nil, err
	}

	total := engine.TotalPayable(emi, input.TenorMonths)
	return &Quote{
		Principal:     principal,
		AnnualRate:    rate,
		MonthlyRate:   engine.MonthlyRate(rate),
		TenorMonths:   input.TenorMonths,
		Installment:   emi,
		TotalPayable:  total,
		TotalInterest: total.Sub(principal),
		StartDate:     start.Format(models.DateFormat),
		MaturityDate:  engine.MaturityDate(start, input.TenorMonths).Format(models.DateFormat),
		Schedule:      schedule,
	}, nil
}

// ChangeStatusInput represents a status change request
type ChangeStatusInput struct {
	Status      domain.LoanStatus
	Remark      string
	ReleaseDate *time.Time
	ActorID     *uint
}

// ChangeStatusResult reports what a status change did
type ChangeStatusResult struct {
	Loan      *models.Loan
	OldStatus domain.LoanStatus
	Changed   bool
}

// ChangeStatus moves a loan through its lifecycle. The current status is read
// under a row lock and written back with a compare-and-swap, so two requests
// racing from the same prior status cannot both win. Disbursement also
// materializes the repayment schedule in the same transaction. Notifications
// and events go out only after commit and only if the status really changed.
func (s *LoanService) ChangeStatus(ctx context.Context, loanID uint, input *ChangeStatusInput) (*ChangeStatusResult, error) {
	target, err := domain.ParseLoanStatus(string(input.Status))
	if err != nil {
		return nil, err
	}

	result := &ChangeStatusResult{}
	err = s.store.Transaction(ctx, func(tx *repositories.Store) error {
		loan, err := tx.Loans.GetByIDForUpdate(ctx, loanID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.ErrLoanNotFound
			}
			return err
		}

		from := loan.LoanStatus()
		result.OldStatus = from

		outcome, err := engine.Transition(from, target)
		if err != nil {
			return err
		}
		if outcome == engine.NoChange {
			return nil
		}

		now := s.clock.Now()
		fields := map[string]interface{}{"status": string(target)}
		if input.Remark != "" {
			fields["remark"] = input.Remark
		}

		switch target {
		case domain.LoanStatusApproved:
			fields["approved_by"] = input.ActorID
			fields["approved_at"] = now
		case domain.LoanStatusDisbursed:
			release := s.clock.Today()
			if input.ReleaseDate != nil {
				release = *input.ReleaseDate
			}
			release = engine.DateOnly(release)
			fields["release_date"] = release
			fields["total_disbursed"] = loan.Principal

			if err := s.materializeSchedule(ctx, tx, loan); err != nil {
				return err
			}
		}
		if engine.IsTerminal(target) {
			fields["is_active"] = false
		}

		if err := tx.Loans.UpdateStatus(ctx, loan.ID, from, fields); err != nil {
			return err
		}

		history := &models.LoanHistory{
			LoanID:      loan.ID,
			Action:      models.HistoryStatusChange,
			FromStatus:  string(from),
			ToStatus:    string(target),
			Description: input.Remark,
			PerformedBy: input.ActorID,
		}
		if target == domain.LoanStatusDisbursed {
			history.Action = models.HistoryDisburse
			history.Amount = decimal.NewNullDecimal(loan.Principal)
		}
		if err := tx.Histories.Create(ctx, history); err != nil {
			return err
		}

		result.Changed = true
		return nil
	})
	if err != nil {
		return nil, err
	}

	loan, err := s.Get(ctx, loanID)
	if err != nil {
		return nil, err
	}
	result.Loan = loan

	if !result.Changed {
		return result, nil
	}

	log.Printf("🔄 Loan %s: %s → %s", loan.Reference, result.OldStatus, target)
	metrics.StatusTransitions.WithLabelValues(string(target)).Inc()

	s.notifier.notifyLoan(ctx, loan, engine.StatusMessage(target, loan.Summary()))
	s.publish(ctx, domain.NewEvent(domain.EventLoanStatusChanged, loan.ID, loan.Reference, s.clock.Now(), map[string]any{
		"borrower_id": loan.BorrowerID,
		"old_status":  string(result.OldStatus),
		"new_status":  string(target),
	}))

	return result, nil
}

// materializeSchedule inserts the repayment rows of a loan being disbursed.
// A loan that already has rows keeps them.
func (s *LoanService) materializeSchedule(ctx context.Context, tx *repositories.Store, loan *models.Loan) error {
	existing, err := tx.Repayments.CountByLoan(ctx, loan.ID)
	if err != nil {
		return err
	}
	if existing > 0 {
		return nil
	}

	schedule, err := engine.GenerateSchedule(loan.ApplicationDate, loan.TenorMonths, loan.MonthlyInstallment)
	if err != nil {
		return err
	}

	rows := make([]models.Repayment, 0, len(schedule))
	for _, inst := range schedule {
		rows = append(rows, models.Repayment{
			LoanID:         loan.ID,
			Sequence:       inst.Sequence,
			DueDate:        engine.DateOnly(inst.DueDate),
			AmountDue:      inst.Amount,
			AmountPaid:     decimal.Zero,
			PenaltyApplied: decimal.Zero,
		})
	}
	return tx.Repayments.CreateBatch(ctx, rows)
}

// ScheduleLine is one installment with its derived figures as of today
type ScheduleLine struct {
	ID               uint            `json:"id,omitempty"`
	Sequence         int             `json:"sequence"`
	DueDate          string          `json:"due_date"`
	AmountDue        decimal.Decimal `json:"amount_due"`
	AmountPaid       decimal.Decimal `json:"amount_paid"`
	Outstanding      decimal.Decimal `json:"outstanding"`
	PaidAt           *time.Time      `json:"paid_at"`
	DaysOverdue      int             `json:"days_overdue"`
	PenaltyApplied   decimal.Decimal `json:"penalty_applied"`
	SuggestedPenalty decimal.Decimal `json:"suggested_penalty"`
	Note             string          `json:"note,omitempty"`
}

// LoanSchedule is the repayment view of a loan
type LoanSchedule struct {
	LoanID           uint            `json:"loan_id"`
	Reference        string          `json:"reference"`
	Projected        bool            `json:"projected"`
	AsOf             string          `json:"as_of"`
	Lines            []ScheduleLine  `json:"lines"`
	TotalDue         decimal.Decimal `json:"total_due"`
	TotalPaid        decimal.Decimal `json:"total_paid"`
	TotalOutstanding decimal.Decimal `json:"total_outstanding"`
	TotalSuggested   decimal.Decimal `json:"total_suggested_penalty"`
}

// Schedule returns a loan's repayments with outstanding, days overdue and
// suggested penalty. Loans not yet disbursed get a projected schedule.
func (s *LoanService) Schedule(ctx context.Context, loanID uint) (*LoanSchedule, error) {
	loan, err := s.Get(ctx, loanID)
	if err != nil {
		return nil, err
	}

	today := s.clock.Today()
	out := &LoanSchedule{
		LoanID:           loan.ID,
		Reference:        loan.Reference,
		AsOf:             today.Format(models.DateFormat),
		Lines:            []ScheduleLine{},
		TotalDue:         decimal.Zero,
		TotalPaid:        decimal.Zero,
		TotalOutstanding: decimal.Zero,
		TotalSuggested:   decimal.Zero,
	}

	repayments, err := s.store.Repayments.ListByLoan(ctx, loan.ID)
	if err != nil {
		return nil, err
	}

	if len(repayments) == 0 {
		schedule, err := engine.GenerateSchedule(loan.ApplicationDate, loan.TenorMonths, loan.MonthlyInstallment)
		if err != nil {
			return nil, err
		}
		out.Projected = true
		for _, inst := range schedule {
			out.Lines = append(out.Lines, ScheduleLine{
				Sequence:         inst.Sequence,
				DueDate:          inst.DueDate.Format(models.DateFormat),
				AmountDue:        inst.Amount,
				AmountPaid:       decimal.Zero,
				Outstanding:      inst.Amount,
				PenaltyApplied:   decimal.Zero,
				SuggestedPenalty: decimal.Zero,
			})
			out.TotalDue = out.TotalDue.Add(inst.Amount)
		}
		out.TotalOutstanding = out.TotalDue
		return out, nil
	}

	terms := loan.Terms()
	for _, r := range repayments {
		line := ScheduleLine{
			ID:               r.ID,
			Sequence:         r.Sequence,
			DueDate:          r.DueDate.Format(models.DateFormat),
			AmountDue:        r.AmountDue,
			AmountPaid:       r.AmountPaid,
			Outstanding:      r.Outstanding(),
			PaidAt:           r.PaidAt,
			PenaltyApplied:   r.PenaltyApplied,
			SuggestedPenalty: decimal.Zero,
			Note:             r.Note,
		}
		if !r.IsPaid() {
			line.DaysOverdue = engine.DaysOverdue(r.DueDate, today)
			line.SuggestedPenalty = engine.ComputePenalty(r.View(), terms, today)
		}
		out.Lines = append(out.Lines, line)
		out.TotalDue = out.TotalDue.Add(r.AmountDue)
		out.TotalPaid = out.TotalPaid.Add(r.AmountPaid)
		out.TotalOutstanding = out.TotalOutstanding.Add(line.Outstanding)
		out.TotalSuggested = out.TotalSuggested.Add(line.SuggestedPenalty)
	}
	return out, nil
}

// History returns the audit trail of a loan
func (s *LoanService) History(ctx context.Context, loanID uint) ([]*models.LoanHistory, error) {
	if _, err := s.Get(ctx, loanID); err != nil {
		return nil, err
	}
	return s.store.Histories.GetByLoanID(ctx, loanID)
}

func (s *LoanService) publish(ctx context.Context, event domain.Event) {
	publishEvent(ctx, s.publisher, event)
}

// PublishTimeout bounds how long a committed change waits on the event broker
const PublishTimeout = 3 * time.Second

func publishEvent(ctx context.Context, p EventPublisher, event domain.Event) {
	if p == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), PublishTimeout)
	defer cancel()
	if err := p.Publish(ctx, event); err != nil {
		log.Printf("⚠️ Publish %s for %s failed: %v", event.Type, event.Reference, err)
	}
}
