package routes

import (
	"time"

	"microfin-loans/internal/adapters/http/handlers"
	"microfin-loans/internal/adapters/http/middleware"
	"microfin-loans/internal/adapters/persistence/repositories"
	"microfin-loans/internal/config"
	"microfin-loans/internal/core/engine"
	"microfin-loans/internal/core/services"
	"microfin-loans/internal/pkg/metrics"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/swagger"
	"gorm.io/gorm"
)

// Services groups the domain services behind the API
type Services struct {
	Borrowers     *services.BorrowerService
	Loans         *services.LoanService
	Repayments    *services.RepaymentService
	Payments      *services.PaymentService
	Notifications *services.NotificationService
}

// NewServices wires repositories and services over one connection
func NewServices(db *gorm.DB, cfg *config.Config, publisher services.EventPublisher, clock engine.Clock) *Services {
	store := repositories.NewStore(db)
	notifier := services.NewNotificationService(store.Notifications, services.NewSSEHub(), clock)

	return &Services{
		Borrowers:     services.NewBorrowerService(store.Borrowers),
		Loans:         services.NewLoanService(store, notifier, publisher, cfg.Engine.Policy, clock),
		Repayments:    services.NewRepaymentService(store, notifier, publisher, clock),
		Payments:      services.NewPaymentService(store, notifier, publisher, clock),
		Notifications: notifier,
	}
}

// Setup configures all routes for the application
func Setup(app *fiber.App, svc *Services, cfg *config.Config) {
	// Initialize handlers
	healthHandler := handlers.NewHealthHandler(cfg.AppMode, nil)
	calculatorHandler := handlers.NewCalculatorHandler(svc.Loans)
	borrowerHandler := handlers.NewBorrowerHandler(svc.Borrowers, svc.Loans)
	loanHandler := handlers.NewLoanHandler(svc.Loans)
	repaymentHandler := handlers.NewRepaymentHandler(svc.Repayments)
	paymentHandler := handlers.NewPaymentHandler(svc.Payments, svc.Loans)
	notificationHandler := handlers.NewNotificationHandler(svc.Notifications)

	// Health check & root routes
	app.Get("/", healthHandler.Root)
	app.Get("/health", healthHandler.HealthCheck)
	app.Get("/metrics", metrics.Handler())

	// Swagger documentation
	app.Get("/swagger/*", swagger.HandlerDefault)

	// API v1 group
	apiV1 := app.Group("/api/v1")
	apiV1.Get("/", healthHandler.APIInfo)

	// Calculator routes (public)
	calculatorRoutes := apiV1.Group("/calculator")
	setupCalculatorRoutes(calculatorRoutes, calculatorHandler)

	auth := middleware.AuthMiddleware(cfg.JWT.Secret)

	// Borrower registry (Officer/Admin)
	borrowerRoutes := apiV1.Group("/borrowers", auth, middleware.OfficerOrAdmin())
	setupBorrowerRoutes(borrowerRoutes, borrowerHandler)

	// Loans (Authenticated; officer routes guarded inside)
	loanRoutes := apiV1.Group("/loans", auth)
	setupLoanRoutes(loanRoutes, loanHandler, paymentHandler)

	// Repayments & penalties
	repaymentRoutes := apiV1.Group("/repayments", auth, middleware.OfficerOrAdmin())
	setupRepaymentRoutes(repaymentRoutes, repaymentHandler)

	// Payments
	paymentRoutes := apiV1.Group("/payments", auth)
	setupPaymentRoutes(paymentRoutes, paymentHandler)

	// Notifications (Authenticated)
	notificationRoutes := apiV1.Group("/notifications", auth)
	setupNotificationRoutes(notificationRoutes, notificationHandler)
}

// setupCalculatorRoutes configures the public EMI calculator
func setupCalculatorRoutes(router fiber.Router, handler *handlers.CalculatorHandler) {
	router.Get("/policy", middleware.CacheControl(5*time.Minute), handler.Policy)
	router.Post("/quote", handler.Quote)
}

// setupBorrowerRoutes configures borrower routes (Officer/Admin)
func setupBorrowerRoutes(router fiber.Router, handler *handlers.BorrowerHandler) {
	router.Post("/", handler.Create)
	router.Get("/", handler.List)
	router.Get("/:id", handler.GetByID)
	router.Patch("/:id/status", handler.UpdateStatus)
	router.Get("/:id/loans", handler.Loans)
}

// setupLoanRoutes configures loan routes
func setupLoanRoutes(router fiber.Router, handler *handlers.LoanHandler, paymentHandler *handlers.PaymentHandler) {
	// Borrowers apply for themselves; officers on behalf of borrower_id
	router.Post("/", handler.Apply)
	router.Get("/my", handler.MyLoans)

	// Officer/Admin listings must register before /:id
	router.Get("/", middleware.OfficerOrAdmin(), handler.List)
	router.Get("/summary", middleware.OfficerOrAdmin(), handler.Summary)
	router.Get("/reference/:reference", handler.GetByReference)

	// Owner or officer
	router.Get("/:id", handler.GetByID)
	router.Get("/:id/schedule", handler.Schedule)
	router.Get("/:id/payments", paymentHandler.ByLoan)

	// Officer/Admin only
	router.Patch("/:id/status", middleware.OfficerOrAdmin(), handler.ChangeStatus)
	router.Get("/:id/history", middleware.OfficerOrAdmin(), handler.History)
}

// setupRepaymentRoutes configures installment and penalty routes (Officer/Admin)
func setupRepaymentRoutes(router fiber.Router, handler *handlers.RepaymentHandler) {
	// Admin only: batch run over every overdue installment
	router.Post("/accrue", middleware.AdminOnly(), middleware.StrictRateLimiter(), handler.Accrue)

	router.Get("/:id", handler.GetByID)
	router.Get("/:id/penalty", handler.Penalty)
	router.Post("/:id/penalty", handler.ApplyPenalty)
}

// setupPaymentRoutes configures payment routes
func setupPaymentRoutes(router fiber.Router, handler *handlers.PaymentHandler) {
	// Borrowers submit for review
	router.Post("/", handler.Submit)
	router.Get("/pending", middleware.OfficerOrAdmin(), handler.Pending)
	router.Get("/:id", handler.GetByID)

	// Officer/Admin; the group middleware only guards routes registered after it
	officerRoutes := router.Group("", middleware.OfficerOrAdmin())
	officerRoutes.Post("/record", handler.Record)
	officerRoutes.Post("/:id/approve", handler.Approve)
	officerRoutes.Post("/:id/reject", handler.Reject)
}

// setupNotificationRoutes configures the borrower inbox
func setupNotificationRoutes(router fiber.Router, handler *handlers.NotificationHandler) {
	router.Get("/", handler.List)
	router.Get("/unread-count", handler.UnreadCount)
	router.Get("/stream", middleware.NoCacheHeaders(), handler.Stream)
	router.Patch("/read-all", handler.MarkAllRead)
	router.Patch("/:id/read", handler.MarkRead)
}
