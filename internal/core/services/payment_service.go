package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"microfin-loans/internal/adapters/persistence/models"
	"microfin-loans/internal/adapters/persistence/repositories"
	"microfin-loans/internal/core/domain"
	"microfin-loans/internal/core/engine"
	"microfin-loans/internal/pkg/metrics"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// PaymentService handles borrower payments and their review
type PaymentService struct {
	store     *repositories.Store
	notifier  *NotificationService
	publisher EventPublisher
	clock     engine.Clock
}

// NewPaymentService creates a new payment service
func NewPaymentService(store *repositories.Store, notifier *NotificationService, publisher EventPublisher, clock engine.Clock) *PaymentService {
	if publisher == nil {
		publisher = NopPublisher{}
	}
	return &PaymentService{store: store, notifier: notifier, publisher: publisher, clock: clock}
}

// PaymentInput represents a payment entry. PenaltyAmount is the part of the
// payment the payer says covers penalties; it is recorded on the payment and in
// the loan history but does not change penalty_applied or the loan totals.
type PaymentInput struct {
	LoanID        uint
	RepaymentID   *uint
	Amount        decimal.Decimal
	PenaltyAmount decimal.Decimal
	PaidAt        *time.Time
	ReferenceNo   string
	Note          string
}

func (in *PaymentInput) validate() error {
	if in.LoanID == 0 {
		return domain.NewValidationError("loan_id", "is required")
	}
	if !in.Amount.IsPositive() {
		return domain.NewValidationError("amount", "must be greater than zero")
	}
	if in.PenaltyAmount.IsNegative() {
		return domain.NewValidationError("penalty_amount", "must not be negative")
	}
	return nil
}

// Submit records a borrower-submitted payment awaiting officer review
func (s *PaymentService) Submit(ctx context.Context, input *PaymentInput, submittedBy *uint) (*models.Payment, error) {
	if err := input.validate(); err != nil {
		return nil, err
	}

	payment, err := s.newPayment(ctx, s.store, input, domain.PaymentSourceBorrower)
	if err != nil {
		return nil, err
	}
	payment.SubmittedBy = submittedBy

	if err := s.store.Payments.Create(ctx, payment); err != nil {
		return nil, err
	}
	log.Printf("💵 Payment %s submitted for loan %d: %s", payment.ReferenceNo, payment.LoanID, engine.FormatAmount(payment.Amount))
	return s.Get(ctx, payment.ID)
}

// RecordDirect records an officer-entered payment that is approved and
// posted immediately.
func (s *PaymentService) RecordDirect(ctx context.Context, input *PaymentInput, approverID uint) (*models.Payment, error) {
	if err := input.validate(); err != nil {
		return nil, err
	}

	var payment *models.Payment
	err := s.store.Transaction(ctx, func(tx *repositories.Store) error {
		var err error
		payment, err = s.newPayment(ctx, tx, input, domain.PaymentSourceAdmin)
		if err != nil {
			return err
		}

		now := s.clock.Now()
		payment.Status = string(domain.PaymentStatusApproved)
		payment.SubmittedBy = &approverID
		payment.ApprovedBy = &approverID
		payment.ApprovedAt = &now

		// post first so an untargeted payment carries the installment it landed on
		if err := s.post(ctx, tx, payment, approverID); err != nil {
			return err
		}
		return tx.Payments.Create(ctx, payment)
	})
	if err != nil {
		return nil, err
	}

	s.afterApproval(ctx, payment)
	return s.Get(ctx, payment.ID)
}

// Approve posts a pending payment to its installment and loan. A payment is
// resolved exactly once; a second approval or rejection fails with
// domain.ErrPaymentAlreadyProcessed.
func (s *PaymentService) Approve(ctx context.Context, id uint, approverID uint) (*models.Payment, error) {
	var payment *models.Payment
	err := s.store.Transaction(ctx, func(tx *repositories.Store) error {
		var err error
		payment, err = tx.Payments.GetByIDForUpdate(ctx, id)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.ErrPaymentNotFound
			}
			return err
		}
		if !payment.IsPending() {
			return domain.ErrPaymentAlreadyProcessed
		}

		if err := s.post(ctx, tx, payment, approverID); err != nil {
			return err
		}

		now := s.clock.Now()
		if err := tx.Payments.Resolve(ctx, payment.ID, map[string]interface{}{
			"status":       string(domain.PaymentStatusApproved),
			"repayment_id": payment.RepaymentID,
			"approved_by":  approverID,
			"approved_at":  now,
		}); err != nil {
			return err
		}
		payment.Status = string(domain.PaymentStatusApproved)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.afterApproval(ctx, payment)
	return s.Get(ctx, payment.ID)
}

// Reject refuses a pending payment; nothing is posted
func (s *PaymentService) Reject(ctx context.Context, id uint, approverID uint, reason string) (*models.Payment, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, domain.NewValidationError("reason", "is required")
	}

	var payment *models.Payment
	err := s.store.Transaction(ctx, func(tx *repositories.Store) error {
		var err error
		payment, err = tx.Payments.GetByIDForUpdate(ctx, id)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.ErrPaymentNotFound
			}
			return err
		}
		if !payment.IsPending() {
			return domain.ErrPaymentAlreadyProcessed
		}

		if err := tx.Payments.Resolve(ctx, payment.ID, map[string]interface{}{
			"status":           string(domain.PaymentStatusRejected),
			"rejection_reason": reason,
			"approved_by":      approverID,
			"approved_at":      s.clock.Now(),
		}); err != nil {
			return err
		}
		return tx.Histories.Create(ctx, &models.LoanHistory{
			LoanID:      payment.LoanID,
			Action:      models.HistoryPaymentReject,
			Amount:      decimal.NewNullDecimal(payment.Amount),
			Description: fmt.Sprintf("Payment %s rejected: %s", payment.ReferenceNo, reason),
			PerformedBy: &approverID,
		})
	})
	if err != nil {
		return nil, err
	}

	metrics.PaymentsResolved.WithLabelValues(string(domain.PaymentStatusRejected)).Inc()

	loan, err := s.store.Loans.GetByID(ctx, payment.LoanID)
	if err == nil {
		s.notifier.notifyLoan(ctx, loan, engine.PaymentRejectedMessage(loan.Reference, payment.Amount, reason))
		publishEvent(ctx, s.publisher, domain.NewEvent(domain.EventPaymentRejected, loan.ID, loan.Reference, s.clock.Now(), map[string]any{
			"payment_id": payment.ID,
			"amount":     payment.Amount.StringFixed(2),
			"reason":     reason,
		}))
	}

	return s.Get(ctx, payment.ID)
}

// Get gets a payment by ID
func (s *PaymentService) Get(ctx context.Context, id uint) (*models.Payment, error) {
	payment, err := s.store.Payments.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrPaymentNotFound
		}
		return nil, err
	}
	return payment, nil
}

// ListByLoan lists every payment of a loan
func (s *PaymentService) ListByLoan(ctx context.Context, loanID uint) ([]*models.Payment, error) {
	if _, err := s.store.Loans.GetByID(ctx, loanID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrLoanNotFound
		}
		return nil, err
	}
	return s.store.Payments.ListByLoan(ctx, loanID)
}

// ListPending lists payments waiting for review
func (s *PaymentService) ListPending(ctx context.Context, offset, limit int) ([]*models.Payment, int64, error) {
	return s.store.Payments.ListPending(ctx, offset, limit)
}

// newPayment checks the loan and target installment and builds the row
func (s *PaymentService) newPayment(ctx context.Context, store *repositories.Store, input *PaymentInput, source domain.PaymentSource) (*models.Payment, error) {
	loan, err := store.Loans.GetByID(ctx, input.LoanID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrLoanNotFound
		}
		return nil, err
	}
	if loan.LoanStatus() != domain.LoanStatusDisbursed {
		return nil, domain.ErrLoanNotDisbursed
	}

	if input.RepaymentID != nil {
		rep, err := store.Repayments.GetByID(ctx, *input.RepaymentID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, domain.ErrRepaymentNotFound
			}
			return nil, err
		}
		if rep.LoanID != loan.ID {
			return nil, domain.ErrRepaymentLoanMismatch
		}
	}

	paidAt := s.clock.Now()
	if input.PaidAt != nil {
		paidAt = *input.PaidAt
	}
	ref := strings.TrimSpace(input.ReferenceNo)
	if ref == "" {
		ref = "PAY-" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:12])
	}

	return &models.Payment{
		LoanID:        loan.ID,
		RepaymentID:   input.RepaymentID,
		Amount:        engine.RoundMoney(input.Amount),
		PenaltyAmount: engine.RoundMoney(input.PenaltyAmount),
		Status:        string(domain.PaymentStatusPending),
		Source:        string(source),
		ReferenceNo:   ref,
		PaidAt:        paidAt,
		Note:          input.Note,
	}, nil
}

// post applies an approved amount: the installment's amount_paid and the
// loan's total_paid both grow by it. Both rows are locked first so concurrent
// approvals against one installment serialize. A payment without a target is
// applied to the earliest unpaid installment.
func (s *PaymentService) post(ctx context.Context, tx *repositories.Store, payment *models.Payment, approverID uint) error {
	loan, err := tx.Loans.GetByIDForUpdate(ctx, payment.LoanID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.ErrLoanNotFound
		}
		return err
	}
	if loan.LoanStatus() != domain.LoanStatusDisbursed {
		return domain.ErrLoanNotDisbursed
	}

	if payment.RepaymentID == nil {
		first, err := tx.Repayments.FirstUnpaid(ctx, loan.ID)
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		if err == nil {
			payment.RepaymentID = &first.ID
		}
	}

	desc := fmt.Sprintf("Payment %s posted", payment.ReferenceNo)
	if payment.RepaymentID != nil {
		rep, err := tx.Repayments.GetByIDForUpdate(ctx, *payment.RepaymentID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.ErrRepaymentNotFound
			}
			return err
		}
		if rep.LoanID != loan.ID {
			return domain.ErrRepaymentLoanMismatch
		}

		paid := rep.AmountPaid.Add(payment.Amount)
		fields := map[string]interface{}{"amount_paid": paid}
		if rep.PaidAt == nil && paid.GreaterThanOrEqual(rep.AmountDue) {
			fields["paid_at"] = s.clock.Now()
		}
		if err := tx.Repayments.Update(ctx, rep.ID, fields); err != nil {
			return err
		}
		desc = fmt.Sprintf("Payment %s posted to installment #%d", payment.ReferenceNo, rep.Sequence)
	}
	if payment.PenaltyAmount.IsPositive() {
		desc += fmt.Sprintf(", declared penalty %s", payment.PenaltyAmount.StringFixed(2))
	}

	if err := tx.Loans.AddTotalPaid(ctx, loan.ID, payment.Amount); err != nil {
		return err
	}
	return tx.Histories.Create(ctx, &models.LoanHistory{
		LoanID:      loan.ID,
		Action:      models.HistoryPayment,
		Amount:      decimal.NewNullDecimal(payment.Amount),
		Description: desc,
		PerformedBy: &approverID,
	})
}

func (s *PaymentService) afterApproval(ctx context.Context, payment *models.Payment) {
	metrics.PaymentsResolved.WithLabelValues(string(domain.PaymentStatusApproved)).Inc()

	loan, err := s.store.Loans.GetByID(ctx, payment.LoanID)
	if err != nil {
		return
	}
	log.Printf("✅ Payment %s approved for loan %s: %s", payment.ReferenceNo, loan.Reference, engine.FormatAmount(payment.Amount))

	s.notifier.notifyLoan(ctx, loan, engine.PaymentApprovedMessage(loan.Reference, payment.Amount))
	publishEvent(ctx, s.publisher, domain.NewEvent(domain.EventPaymentApproved, loan.ID, loan.Reference, s.clock.Now(), map[string]any{
		"payment_id":     payment.ID,
		"repayment_id":   payment.RepaymentID,
		"amount":         payment.Amount.StringFixed(2),
		"penalty_amount": payment.PenaltyAmount.StringFixed(2),
		"total_paid":     loan.TotalPaid.StringFixed(2),
	}))
}
