package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"

	"microfin-loans/internal/adapters/http/middleware"
	"microfin-loans/internal/adapters/http/routes"
	"microfin-loans/internal/adapters/messaging"
	"microfin-loans/internal/adapters/persistence/models"
	"microfin-loans/internal/config"
	"microfin-loans/internal/core/domain"
	"microfin-loans/internal/core/engine"
	"microfin-loans/internal/core/services"
	"microfin-loans/internal/pkg/jwt"

	"github.com/gofiber/fiber/v2"

	_ "microfin-loans/docs" // Swagger docs
)

// @title Microfin Loans API
// @version 1.0
// @description Microfinance loan engine: EMI quotes, repayment schedules, penalties and the loan lifecycle.

// @BasePath /api/v1

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("❌ Failed to load configuration: %v", err)
	}

	// Connect to database
	db, err := config.ConnectDatabase(cfg)
	if err != nil {
		log.Fatalf("❌ Failed to connect to database: %v", err)
	}

	// Auto migrate (creates tables if not exist)
	if err := models.AutoMigrate(db); err != nil {
		log.Fatalf("❌ Failed to auto migrate: %v", err)
	}
	log.Println("✅ Database migration completed")

	if cfg.IsDev() {
		if err := config.NewSeeder(db).Run(); err != nil {
			log.Printf("⚠️ Warning: Failed to seed borrowers: %v", err)
		}
		devToken(cfg)
	}

	clock := engine.NewReferenceClock(cfg.Engine.Location)

	// Loan events go to Kafka when brokers are configured
	var publisher services.EventPublisher = messaging.NewLogPublisher()
	if len(cfg.Kafka.Brokers) > 0 {
		publisher = messaging.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		log.Printf("📨 Publishing loan events to %s", cfg.Kafka.Topic)
	}

	svc := routes.NewServices(db, cfg, publisher, clock)

	// Daily penalty accrual and due reminders
	var penaltyCron *services.PenaltyCron
	if cfg.Cron.Enabled {
		penaltyCron = services.NewPenaltyCron(
			svc.Repayments,
			svc.Notifications,
			clock,
			cfg.Engine.Location,
			cfg.Cron.PenaltySchedule,
			cfg.Cron.ReminderDaysAhead,
		)
		if err := penaltyCron.Start(); err != nil {
			log.Fatalf("❌ Failed to start penalty cron: %v", err)
		}
	}

	// Create Fiber app
	app := fiber.New(fiber.Config{
		AppName:      "Microfin Loans API v1.0",
		ErrorHandler: middleware.CustomErrorHandler,
	})

	// Setup middlewares
	middleware.Setup(app, cfg)

	// Setup routes
	routes.Setup(app, svc, cfg)

	// Graceful shutdown
	go gracefulShutdown(app)

	// Start server
	log.Printf("🚀 Server starting on port %s [MODE: %s]", cfg.Port, cfg.AppMode)
	if err := app.Listen(":" + cfg.Port); err != nil {
		log.Printf("❌ Failed to start server: %v", err)
	}

	if penaltyCron != nil {
		penaltyCron.Stop()
	}
	if err := publisher.Close(); err != nil {
		log.Printf("⚠️ Error closing event publisher: %v", err)
	}
	if err := config.CloseDatabase(); err != nil {
		log.Printf("⚠️ Error closing database: %v", err)
	}
}

// gracefulShutdown handles graceful shutdown
func gracefulShutdown(app *fiber.App) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("🛑 Shutting down server...")
	if err := app.Shutdown(); err != nil {
		log.Printf("❌ Error during shutdown: %v", err)
	}
	log.Println("✅ Server stopped gracefully")
}

// devToken logs an officer token so the API can be exercised locally
func devToken(cfg *config.Config) {
	token, err := jwt.GenerateAccessToken(1, nil, "dev-officer", string(domain.RoleOfficer), cfg.JWT.Secret, cfg.JWT.AccessTokenMins)
	if err != nil {
		log.Printf("⚠️ Failed to issue dev token: %v", err)
		return
	}
	log.Printf("🔑 Dev officer token: %s", token)
}
