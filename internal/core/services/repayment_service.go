package services

import (
	"context"
	"errors"
	"fmt"
	"log"

	"microfin-loans/internal/adapters/persistence/models"
	"microfin-loans/internal/adapters/persistence/repositories"
	"microfin-loans/internal/core/domain"
	"microfin-loans/internal/core/engine"
	"microfin-loans/internal/pkg/metrics"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// RepaymentService computes and posts penalties on installments
type RepaymentService struct {
	store     *repositories.Store
	notifier  *NotificationService
	publisher EventPublisher
	clock     engine.Clock
}

// NewRepaymentService creates a new repayment service
func NewRepaymentService(store *repositories.Store, notifier *NotificationService, publisher EventPublisher, clock engine.Clock) *RepaymentService {
	if publisher == nil {
		publisher = NopPublisher{}
	}
	return &RepaymentService{store: store, notifier: notifier, publisher: publisher, clock: clock}
}

// PenaltyQuote is a computed penalty for one installment
type PenaltyQuote struct {
	RepaymentID    uint            `json:"repayment_id"`
	LoanID         uint            `json:"loan_id"`
	DueDate        string          `json:"due_date"`
	AsOf           string          `json:"as_of"`
	DaysOverdue    int             `json:"days_overdue"`
	Outstanding    decimal.Decimal `json:"outstanding"`
	Penalty        decimal.Decimal `json:"penalty"`
	PenaltyApplied decimal.Decimal `json:"penalty_applied"`
}

// Get gets a repayment by ID
func (s *RepaymentService) Get(ctx context.Context, id uint) (*models.Repayment, error) {
	rep, err := s.store.Repayments.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrRepaymentNotFound
		}
		return nil, err
	}
	return rep, nil
}

// SuggestedPenalty computes the penalty an installment has accrued as of
// today without storing anything.
func (s *RepaymentService) SuggestedPenalty(ctx context.Context, repaymentID uint, overrides *engine.PenaltyOverrides) (*PenaltyQuote, error) {
	rep, err := s.Get(ctx, repaymentID)
	if err != nil {
		return nil, err
	}
	return s.quote(rep, rep.Loan, overrides), nil
}

func (s *RepaymentService) quote(rep *models.Repayment, loan *models.Loan, overrides *engine.PenaltyOverrides) *PenaltyQuote {
	today := s.clock.Today()

	var terms *engine.LoanTerms
	if loan != nil {
		terms = loan.Terms()
	}

	return &PenaltyQuote{
		RepaymentID:    rep.ID,
		LoanID:         rep.LoanID,
		DueDate:        rep.DueDate.Format(models.DateFormat),
		AsOf:           today.Format(models.DateFormat),
		DaysOverdue:    engine.DaysOverdue(rep.DueDate, today),
		Outstanding:    rep.Outstanding(),
		Penalty:        engine.ComputePenalty(rep.View(), terms, today, overrides.Options()...),
		PenaltyApplied: rep.PenaltyApplied,
	}
}

// ApplyPenaltyResult reports a penalty posting
type ApplyPenaltyResult struct {
	Repayment *models.Repayment `json:"repayment"`
	Quote     *PenaltyQuote     `json:"quote"`
	Delta     decimal.Decimal   `json:"delta"`
}

// ApplyPenalty stores the computed penalty on an installment. The stored
// value is replaced, not added to, and the loan's total_penalties moves by the
// difference, so running it twice on the same day changes nothing.
func (s *RepaymentService) ApplyPenalty(ctx context.Context, repaymentID uint, overrides *engine.PenaltyOverrides, actorID *uint) (*ApplyPenaltyResult, error) {
	var (
		result   = &ApplyPenaltyResult{Delta: decimal.Zero}
		loan     *models.Loan
		previous decimal.Decimal
	)

	err := s.store.Transaction(ctx, func(tx *repositories.Store) error {
		// lock the loan before the repayment, as payment posting does
		unlocked, err := tx.Repayments.GetByID(ctx, repaymentID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.ErrRepaymentNotFound
			}
			return err
		}
		loan, err = tx.Loans.GetByIDForUpdate(ctx, unlocked.LoanID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.ErrLoanNotFound
			}
			return err
		}
		rep, err := tx.Repayments.GetByIDForUpdate(ctx, repaymentID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.ErrRepaymentNotFound
			}
			return err
		}
		if loan.LoanStatus() != domain.LoanStatusDisbursed {
			return domain.ErrLoanNotDisbursed
		}

		q := s.quote(rep, loan, overrides)
		result.Quote = q
		previous = rep.PenaltyApplied

		// a settled installment keeps the penalty it had when it was paid
		delta := q.Penalty.Sub(rep.PenaltyApplied)
		if rep.IsPaid() || delta.IsZero() {
			result.Delta = decimal.Zero
			result.Repayment = rep
			return nil
		}

		if err := tx.Repayments.Update(ctx, rep.ID, map[string]interface{}{
			"penalty_applied": q.Penalty,
		}); err != nil {
			return err
		}
		if err := tx.Loans.AddTotalPenalties(ctx, loan.ID, delta); err != nil {
			return err
		}
		desc := fmt.Sprintf("Installment #%d: penalty %s (%d days overdue)",
			rep.Sequence, q.Penalty.StringFixed(2), q.DaysOverdue)
		if err := tx.Histories.Create(ctx, &models.LoanHistory{
			LoanID:      loan.ID,
			Action:      models.HistoryPenalty,
			Amount:      decimal.NewNullDecimal(delta),
			Description: desc,
			PerformedBy: actorID,
		}); err != nil {
			return err
		}

		rep.PenaltyApplied = q.Penalty
		result.Repayment = rep
		result.Delta = delta
		return nil
	})
	if err != nil {
		return nil, err
	}

	if result.Delta.IsZero() {
		return result, nil
	}

	metrics.PenaltiesApplied.Inc()
	s.publish(ctx, domain.NewEvent(domain.EventPenaltyApplied, loan.ID, loan.Reference, s.clock.Now(), map[string]any{
		"repayment_id": result.Repayment.ID,
		"sequence":     result.Repayment.Sequence,
		"penalty":      result.Quote.Penalty.StringFixed(2),
		"delta":        result.Delta.StringFixed(2),
		"days_overdue": result.Quote.DaysOverdue,
	}))
	// borrowers hear about the first penalty on an installment, not every daily accrual
	if previous.IsZero() && result.Quote.Penalty.IsPositive() {
		s.notifier.notifyLoan(ctx, loan, engine.PenaltyAppliedMessage(loan.Reference, result.Quote.Penalty, result.Quote.DaysOverdue))
	}

	return result, nil
}

// AccrualResult summarizes a batch penalty run
type AccrualResult struct {
	Scanned int             `json:"scanned"`
	Updated int             `json:"updated"`
	Failed  int             `json:"failed"`
	Delta   decimal.Decimal `json:"delta"`
}

// AccrueOverdue applies penalties to every unpaid, overdue installment of a
// disbursed loan. Each installment is posted in its own transaction; failures
// are logged and counted without stopping the run.
func (s *RepaymentService) AccrueOverdue(ctx context.Context) (*AccrualResult, error) {
	overdue, err := s.store.Repayments.ListOverdue(ctx, engine.DateOnly(s.clock.Today()))
	if err != nil {
		return nil, err
	}

	res := &AccrualResult{Delta: decimal.Zero}
	for _, rep := range overdue {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		res.Scanned++

		applied, err := s.ApplyPenalty(ctx, rep.ID, nil, nil)
		if err != nil {
			res.Failed++
			log.Printf("⚠️ Penalty accrual for repayment %d failed: %v", rep.ID, err)
			continue
		}
		if !applied.Delta.IsZero() {
			res.Updated++
			res.Delta = res.Delta.Add(applied.Delta)
		}
	}
	return res, nil
}

func (s *RepaymentService) publish(ctx context.Context, event domain.Event) {
	publishEvent(ctx, s.publisher, event)
}
