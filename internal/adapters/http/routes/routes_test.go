package routes_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"microfin-loans/internal/adapters/http/routes"
	"microfin-loans/internal/adapters/persistence/models"
	"microfin-loans/internal/config"
	"microfin-loans/internal/core/domain"
	"microfin-loans/internal/core/engine"
	"microfin-loans/internal/core/services"
	"microfin-loans/internal/pkg/jwt"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const testSecret = "test-secret"

type apiResponse struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

func newTestApp(t *testing.T) *fiber.App {
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

	cfg := &config.Config{
		AppMode: "development",
		JWT:     config.JWTConfig{Secret: testSecret, AccessTokenMins: 15},
		Engine: config.EngineConfig{
			Policy:   engine.DefaultPolicy(),
			Timezone: engine.DefaultTimezone,
			Location: engine.ManilaLocation(),
		},
	}
	clock := engine.FixedClock{T: time.Date(2024, time.March, 15, 10, 0, 0, 0, engine.ManilaLocation())}

	app := fiber.New()
	routes.Setup(app, routes.NewServices(db, cfg, services.NopPublisher{}, clock), cfg)
	return app
}

func officerToken(t *testing.T) string {
	t.Helper()
	token, err := jwt.GenerateAccessToken(1, nil, "officer", string(domain.RoleOfficer), testSecret, 15)
	require.NoError(t, err)
	return token
}

func borrowerToken(t *testing.T, borrowerID uint) string {
	t.Helper()
	token, err := jwt.GenerateAccessToken(100+borrowerID, &borrowerID, "borrower", string(domain.RoleBorrower), testSecret, 15)
	require.NoError(t, err)
	return token
}

func call(t *testing.T, app *fiber.App, method, path, token string, body interface{}) (int, apiResponse) {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out apiResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp.StatusCode, out
}

func decode(t *testing.T, raw json.RawMessage, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(raw, v))
}

// disbursedLoan registers a borrower and walks a 10,000.00 / 12 month loan to disbursed
func disbursedLoan(t *testing.T, app *fiber.App) (borrowerID, loanID uint) {
	t.Helper()
	officer := officerToken(t)

	status, res := call(t, app, http.MethodPost, "/api/v1/borrowers", officer, fiber.Map{"full_name": "Maria Santos"})
	require.Equal(t, http.StatusCreated, status, res.Error)
	var b struct {
		Borrower models.Borrower `json:"borrower"`
	}
	decode(t, res.Data, &b)

	status, res = call(t, app, http.MethodPost, "/api/v1/loans", officer, fiber.Map{
		"borrower_id":  b.Borrower.ID,
		"principal":    "10000",
		"tenor_months": 12,
	})
	require.Equal(t, http.StatusCreated, status, res.Error)
	var l struct {
		Loan models.LoanResponse `json:"loan"`
	}
	decode(t, res.Data, &l)
	assert.Equal(t, "945.60", l.Loan.MonthlyInstallment)

	for _, st := range []string{"under_review", "approved", "for_release", "disbursed"} {
		status, res = call(t, app, http.MethodPatch, fmt.Sprintf("/api/v1/loans/%d/status", l.Loan.ID), officer, fiber.Map{"status": st})
		require.Equal(t, http.StatusOK, status, res.Error)
	}
	return b.Borrower.ID, l.Loan.ID
}

func TestCalculatorQuote(t *testing.T) {
	app := newTestApp(t)

	status, res := call(t, app, http.MethodPost, "/api/v1/calculator/quote", "", fiber.Map{
		"principal":    "10000",
		"tenor_months": 12,
		"start_date":   "2024-03-15",
	})
	require.Equal(t, http.StatusOK, status, res.Error)

	var quote struct {
		Installment  decimal.Decimal `json:"monthly_installment"`
		TotalPayable decimal.Decimal `json:"total_payable"`
		MaturityDate string          `json:"maturity_date"`
		Schedule     []interface{}   `json:"schedule"`
	}
	decode(t, res.Data, &quote)
	assert.Equal(t, "945.60", quote.Installment.StringFixed(2))
	assert.Equal(t, "11347.20", quote.TotalPayable.StringFixed(2))
	assert.Equal(t, "2025-03-15", quote.MaturityDate)
	assert.Len(t, quote.Schedule, 12)
}

func TestCalculatorQuote_Rejected(t *testing.T) {
	app := newTestApp(t)

	tests := []struct {
		name   string
		body   interface{}
		status int
	}{
		{"zero principal", fiber.Map{"principal": "0", "tenor_months": 12}, http.StatusUnprocessableEntity},
		{"tenor too long", fiber.Map{"principal": "10000", "tenor_months": 600}, http.StatusUnprocessableEntity},
		{"bad start date", fiber.Map{"principal": "10000", "tenor_months": 12, "start_date": "15/03/2024"}, http.StatusUnprocessableEntity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, res := call(t, app, http.MethodPost, "/api/v1/calculator/quote", "", tt.body)
			assert.Equal(t, tt.status, status)
			assert.False(t, res.Success)
		})
	}
}

func TestCalculatorPolicy_IsCacheable(t *testing.T) {
	app := newTestApp(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/calculator/policy", nil)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "public, max-age=300", resp.Header.Get("Cache-Control"))
}

func TestAuth(t *testing.T) {
	app := newTestApp(t)

	status, _ := call(t, app, http.MethodGet, "/api/v1/loans", "", nil)
	assert.Equal(t, http.StatusUnauthorized, status)

	status, _ = call(t, app, http.MethodGet, "/api/v1/loans", "not-a-token", nil)
	assert.Equal(t, http.StatusUnauthorized, status)

	status, _ = call(t, app, http.MethodGet, "/api/v1/loans", borrowerToken(t, 1), nil)
	assert.Equal(t, http.StatusForbidden, status)

	status, _ = call(t, app, http.MethodGet, "/api/v1/borrowers", borrowerToken(t, 1), nil)
	assert.Equal(t, http.StatusForbidden, status)

	status, _ = call(t, app, http.MethodGet, "/api/v1/loans", officerToken(t), nil)
	assert.Equal(t, http.StatusOK, status)
}

func TestLoanLifecycle(t *testing.T) {
	app := newTestApp(t)
	officer := officerToken(t)
	borrowerID, loanID := disbursedLoan(t, app)

	status, res := call(t, app, http.MethodGet, fmt.Sprintf("/api/v1/loans/%d/schedule", loanID), borrowerToken(t, borrowerID), nil)
	require.Equal(t, http.StatusOK, status, res.Error)

	// other borrowers cannot see it
	status, _ = call(t, app, http.MethodGet, fmt.Sprintf("/api/v1/loans/%d", loanID), borrowerToken(t, borrowerID+1), nil)
	assert.Equal(t, http.StatusNotFound, status)

	// disbursed -> approved is not a legal move
	status, res = call(t, app, http.MethodPatch, fmt.Sprintf("/api/v1/loans/%d/status", loanID), officer, fiber.Map{"status": "approved"})
	assert.Equal(t, http.StatusUnprocessableEntity, status)
	assert.False(t, res.Success)

	// repeating the current status changes nothing
	status, res = call(t, app, http.MethodPatch, fmt.Sprintf("/api/v1/loans/%d/status", loanID), officer, fiber.Map{"status": "disbursed"})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Loan status unchanged", res.Message)

	// borrowers cannot move loans
	status, _ = call(t, app, http.MethodPatch, fmt.Sprintf("/api/v1/loans/%d/status", loanID), borrowerToken(t, borrowerID), fiber.Map{"status": "closed"})
	assert.Equal(t, http.StatusForbidden, status)

	status, _ = call(t, app, http.MethodGet, "/api/v1/loans/9999", officer, nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestApply_BorrowerGetsPolicyTerms(t *testing.T) {
	app := newTestApp(t)
	officer := officerToken(t)

	status, res := call(t, app, http.MethodPost, "/api/v1/borrowers", officer, fiber.Map{"full_name": "Jose Rizal"})
	require.Equal(t, http.StatusCreated, status, res.Error)
	var b struct {
		Borrower models.Borrower `json:"borrower"`
	}
	decode(t, res.Data, &b)

	terms := fiber.Map{
		"principal":          "10000",
		"tenor_months":       12,
		"annual_rate":        "0",
		"penalty_daily_rate": "0",
		"penalty_grace_days": 9999,
	}

	status, res = call(t, app, http.MethodPost, "/api/v1/loans", borrowerToken(t, b.Borrower.ID), terms)
	require.Equal(t, http.StatusCreated, status, res.Error)
	var own struct {
		Loan models.LoanResponse `json:"loan"`
	}
	decode(t, res.Data, &own)
	assert.Equal(t, "24.0000", own.Loan.AnnualRate)
	assert.Equal(t, "945.60", own.Loan.MonthlyInstallment)
	assert.Equal(t, 0, own.Loan.PenaltyGraceDays)
	assert.Equal(t, "0.001", own.Loan.PenaltyDailyRate)

	// officers may still price a loan
	terms["borrower_id"] = b.Borrower.ID
	terms["penalty_grace_days"] = 5
	status, res = call(t, app, http.MethodPost, "/api/v1/loans", officer, terms)
	require.Equal(t, http.StatusCreated, status, res.Error)
	var priced struct {
		Loan models.LoanResponse `json:"loan"`
	}
	decode(t, res.Data, &priced)
	assert.Equal(t, "0.0000", priced.Loan.AnnualRate)
	assert.Equal(t, "833.33", priced.Loan.MonthlyInstallment)
	assert.Equal(t, 5, priced.Loan.PenaltyGraceDays)
}

func TestPaymentApproval(t *testing.T) {
	app := newTestApp(t)
	officer := officerToken(t)
	borrowerID, loanID := disbursedLoan(t, app)

	status, res := call(t, app, http.MethodPost, "/api/v1/payments", borrowerToken(t, borrowerID), fiber.Map{
		"loan_id": loanID,
		"amount":  "945.60",
	})
	require.Equal(t, http.StatusCreated, status, res.Error)
	var p struct {
		Payment models.Payment `json:"payment"`
	}
	decode(t, res.Data, &p)
	assert.Equal(t, string(domain.PaymentStatusPending), p.Payment.Status)

	// borrowers cannot approve
	approvePath := fmt.Sprintf("/api/v1/payments/%d/approve", p.Payment.ID)
	status, _ = call(t, app, http.MethodPost, approvePath, borrowerToken(t, borrowerID), nil)
	assert.Equal(t, http.StatusForbidden, status)

	status, res = call(t, app, http.MethodPost, approvePath, officer, nil)
	require.Equal(t, http.StatusOK, status, res.Error)

	status, res = call(t, app, http.MethodPost, approvePath, officer, nil)
	assert.Equal(t, http.StatusConflict, status)
	assert.False(t, res.Success)

	// the borrower can still read their own payment
	status, _ = call(t, app, http.MethodGet, fmt.Sprintf("/api/v1/payments/%d", p.Payment.ID), borrowerToken(t, borrowerID), nil)
	assert.Equal(t, http.StatusOK, status)

	status, _ = call(t, app, http.MethodPost, "/api/v1/payments/9999/approve", officer, nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestPaymentSubmit_ForeignLoan(t *testing.T) {
	app := newTestApp(t)
	borrowerID, loanID := disbursedLoan(t, app)

	status, _ := call(t, app, http.MethodPost, "/api/v1/payments", borrowerToken(t, borrowerID+1), fiber.Map{
		"loan_id": loanID,
		"amount":  "100",
	})
	assert.Equal(t, http.StatusNotFound, status)
}

func TestNotifications(t *testing.T) {
	app := newTestApp(t)
	borrowerID, _ := disbursedLoan(t, app)
	token := borrowerToken(t, borrowerID)

	status, res := call(t, app, http.MethodGet, "/api/v1/notifications/unread-count", token, nil)
	require.Equal(t, http.StatusOK, status, res.Error)
	var count struct {
		Unread int64 `json:"unread"`
	}
	decode(t, res.Data, &count)
	assert.Equal(t, int64(5), count.Unread)

	status, _ = call(t, app, http.MethodPatch, "/api/v1/notifications/read-all", token, nil)
	require.Equal(t, http.StatusOK, status)

	_, res = call(t, app, http.MethodGet, "/api/v1/notifications/unread-count", token, nil)
	decode(t, res.Data, &count)
	assert.Equal(t, int64(0), count.Unread)

	// officers must name the borrower
	status, _ = call(t, app, http.MethodGet, "/api/v1/notifications", officerToken(t), nil)
	assert.Equal(t, http.StatusBadRequest, status)
}
