package services_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"microfin-loans/internal/adapters/persistence/models"
	"microfin-loans/internal/adapters/persistence/repositories"
	"microfin-loans/internal/core/domain"
	"microfin-loans/internal/core/engine"
	"microfin-loans/internal/core/services"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// testClock is a movable clock in the reference timezone
type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func newTestClock(y int, m time.Month, d int) *testClock {
	return &testClock{t: time.Date(y, m, d, 10, 0, 0, 0, engine.ManilaLocation())}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Today() time.Time {
	return engine.FixedClock{T: c.Now()}.Today()
}

func (c *testClock) Set(y int, m time.Month, d int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = time.Date(y, m, d, 10, 0, 0, 0, engine.ManilaLocation())
}

// recordingPublisher keeps every published event
type recordingPublisher struct {
	mu     sync.Mutex
	events []domain.Event
}

func (p *recordingPublisher) Publish(_ context.Context, event domain.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) Types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	types := make([]string, len(p.events))
	for i, e := range p.events {
		types[i] = e.Type
	}
	return types
}

type fixture struct {
	ctx        context.Context
	db         *gorm.DB
	store      *repositories.Store
	clock      *testClock
	events     *recordingPublisher
	hub        *services.SSEHub
	notifier   *services.NotificationService
	borrowers  *services.BorrowerService
	loans      *services.LoanService
	repayments *services.RepaymentService
	payments   *services.PaymentService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, models.AutoMigrate(db))

	f := &fixture{
		ctx:    context.Background(),
		db:     db,
		store:  repositories.NewStore(db),
		clock:  newTestClock(2024, time.March, 15),
		events: &recordingPublisher{},
		hub:    services.NewSSEHub(),
	}
	f.notifier = services.NewNotificationService(f.store.Notifications, f.hub, f.clock)
	f.borrowers = services.NewBorrowerService(f.store.Borrowers)
	f.loans = services.NewLoanService(f.store, f.notifier, f.events, engine.DefaultPolicy(), f.clock)
	f.repayments = services.NewRepaymentService(f.store, f.notifier, f.events, f.clock)
	f.payments = services.NewPaymentService(f.store, f.notifier, f.events, f.clock)
	return f
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func (f *fixture) borrower(t *testing.T) *models.Borrower {
	t.Helper()
	b, err := f.borrowers.Create(f.ctx, &services.CreateBorrowerInput{FullName: "Maria Santos", Phone: "09171234567"})
	require.NoError(t, err)
	return b
}

// standardLoan applies for 10,000.00 at 24% over 12 months on 2024-03-15
func (f *fixture) standardLoan(t *testing.T, borrowerID uint) *models.Loan {
	t.Helper()
	applied := day(2024, time.March, 15)
	loan, err := f.loans.Apply(f.ctx, &services.ApplyInput{
		BorrowerID:      &borrowerID,
		Principal:       dec("10000"),
		TenorMonths:     12,
		ApplicationDate: &applied,
	})
	require.NoError(t, err)
	return loan
}

// disburse walks a loan along the approval path to disbursed
func (f *fixture) disburse(t *testing.T, loanID uint) *models.Loan {
	t.Helper()
	var loan *models.Loan
	for _, st := range []domain.LoanStatus{
		domain.LoanStatusUnderReview,
		domain.LoanStatusApproved,
		domain.LoanStatusForRelease,
		domain.LoanStatusDisbursed,
	} {
		res, err := f.loans.ChangeStatus(f.ctx, loanID, &services.ChangeStatusInput{Status: st})
		require.NoError(t, err)
		require.True(t, res.Changed)
		loan = res.Loan
	}
	return loan
}

func (f *fixture) notificationCount(t *testing.T, borrowerID uint) int64 {
	t.Helper()
	_, total, err := f.notifier.List(f.ctx, borrowerID, false, 0, 100)
	require.NoError(t, err)
	return total
}
