package services

import (
	"context"
	"log"
	"time"

	"microfin-loans/internal/core/engine"
	"microfin-loans/internal/pkg/metrics"

	"github.com/robfig/cron/v3"
)

// DefaultPenaltySchedule runs the daily jobs at 00:05 reference time
const DefaultPenaltySchedule = "5 0 * * *"

// PenaltyCron runs penalty accrual and payment reminders on a schedule
type PenaltyCron struct {
	repayments *RepaymentService
	notifier   *NotificationService
	clock      engine.Clock
	daysAhead  int
	spec       string
	cron       *cron.Cron
}

// NewPenaltyCron creates the scheduler. spec is a standard five-field cron
// expression evaluated in loc; daysAhead is how far ahead reminders look.
func NewPenaltyCron(repayments *RepaymentService, notifier *NotificationService, clock engine.Clock, loc *time.Location, spec string, daysAhead int) *PenaltyCron {
	if spec == "" {
		spec = DefaultPenaltySchedule
	}
	if loc == nil {
		loc = engine.ManilaLocation()
	}
	if daysAhead < 0 {
		daysAhead = 0
	}
	return &PenaltyCron{
		repayments: repayments,
		notifier:   notifier,
		clock:      clock,
		daysAhead:  daysAhead,
		spec:       spec,
		cron:       cron.New(cron.WithLocation(loc)),
	}
}

// Start registers the daily job and starts the scheduler
func (s *PenaltyCron) Start() error {
	if _, err := s.cron.AddFunc(s.spec, func() {
		s.RunOnce(context.Background())
	}); err != nil {
		return err
	}
	s.cron.Start()
	log.Printf("🚀 PenaltyCron started (%s)", s.spec)
	return nil
}

// Stop stops the scheduler and waits for a running job to finish
func (s *PenaltyCron) Stop() {
	<-s.cron.Stop().Done()
	log.Println("🛑 PenaltyCron stopped")
}

// RunOnce accrues penalties then sends reminders
func (s *PenaltyCron) RunOnce(ctx context.Context) {
	res, err := s.repayments.AccrueOverdue(ctx)
	if err != nil {
		metrics.CronRuns.WithLabelValues("penalty", "error").Inc()
		log.Printf("❌ Penalty accrual error: %v", err)
	} else {
		metrics.CronRuns.WithLabelValues("penalty", "ok").Inc()
		log.Printf("⏰ Penalty accrual: scanned=%d updated=%d failed=%d delta=%s",
			res.Scanned, res.Updated, res.Failed, res.Delta.StringFixed(2))
	}

	sent, err := s.SendDueReminders(ctx)
	if err != nil {
		metrics.CronRuns.WithLabelValues("reminder", "error").Inc()
		log.Printf("❌ Payment reminders error: %v", err)
		return
	}
	metrics.CronRuns.WithLabelValues("reminder", "ok").Inc()
	log.Printf("🔔 Payment reminders sent: %d", sent)
}

// SendDueReminders notifies borrowers of installments due daysAhead from today
func (s *PenaltyCron) SendDueReminders(ctx context.Context) (int, error) {
	day := engine.DateOnly(s.clock.Today()).AddDate(0, 0, s.daysAhead)
	due, err := s.repayments.store.Repayments.ListDueOn(ctx, day)
	if err != nil {
		return 0, err
	}

	sent := 0
	for _, rep := range due {
		if rep.Loan == nil || rep.Loan.BorrowerID == nil {
			continue
		}
		s.notifier.notifyLoan(ctx, rep.Loan, engine.PaymentReminderMessage(rep.Loan.Reference, rep.Outstanding(), rep.DueDate))
		sent++
	}
	return sent, nil
}
