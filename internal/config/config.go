package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"microfin-loans/internal/core/engine"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

// Config holds all configuration for the application
type Config struct {
	AppMode  string
	Port     string
	Database DatabaseConfig
	JWT      JWTConfig
	Engine   EngineConfig
	Cron     CronConfig
	Kafka    KafkaConfig
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Driver   string
	DSN      string
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
}

// JWTConfig holds JWT configuration
type JWTConfig struct {
	Secret          string
	AccessTokenMins int
}

// EngineConfig holds the loan product policy and the reference timezone
type EngineConfig struct {
	Policy   engine.Policy
	Timezone string
	Location *time.Location
}

// CronConfig holds the penalty and reminder schedule
type CronConfig struct {
	Enabled           bool
	PenaltySchedule   string
	ReminderDaysAhead int
}

// KafkaConfig holds the event bus settings. No brokers means events are logged.
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// Global config instance
var AppConfig *Config

// Load reads configuration from .env file and environment variables
func Load() (*Config, error) {
	// Load .env file (ignore error if file doesn't exist in production)
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found, using environment variables")
	}

	// Get APP_MODE (default to "dev") - trim spaces for Windows compatibility
	appMode := strings.TrimSpace(getEnv("APP_MODE", "dev"))
	if appMode != "dev" && appMode != "prod" {
		return nil, fmt.Errorf("invalid APP_MODE: '%s' (must be 'dev' or 'prod')", appMode)
	}

	engineCfg, err := loadEngineConfig()
	if err != nil {
		return nil, err
	}

	config := &Config{
		AppMode:  appMode,
		Port:     getEnv("PORT", "3000"),
		Database: loadDatabaseConfig(appMode),
		JWT:      loadJWTConfig(appMode),
		Engine:   engineCfg,
		Cron:     loadCronConfig(),
		Kafka:    loadKafkaConfig(),
	}

	// Set global config
	AppConfig = config

	log.Printf("✅ Configuration loaded successfully [MODE: %s]", appMode)
	return config, nil
}

// loadDatabaseConfig loads database config based on mode
func loadDatabaseConfig(mode string) DatabaseConfig {
	prefix := "DEV_"
	if mode == "prod" {
		prefix = "PROD_"
	}

	return DatabaseConfig{
		Driver:   strings.ToLower(getEnv(prefix+"DB_DRIVER", "mysql")),
		DSN:      getEnv(prefix+"DB_DSN", ""),
		Host:     getEnv(prefix+"DB_HOST", "localhost"),
		Port:     getEnv(prefix+"DB_PORT", "3306"),
		User:     getEnv(prefix+"DB_USER", "root"),
		Password: getEnv(prefix+"DB_PASS", ""),
		DBName:   getEnv(prefix+"DB_NAME", "microfin_loans"),
	}
}

// loadJWTConfig loads JWT config based on mode
func loadJWTConfig(mode string) JWTConfig {
	prefix := "DEV_"
	if mode == "prod" {
		prefix = "PROD_"
	}

	return JWTConfig{
		Secret:          getEnv(prefix+"JWT_SECRET", "default_secret"),
		AccessTokenMins: getEnvInt("ACCESS_TOKEN_MINUTES", 15),
	}
}

// loadEngineConfig loads the product policy. Bad numbers fall back to the
// stock policy; an inconsistent policy is a startup error.
func loadEngineConfig() (EngineConfig, error) {
	def := engine.DefaultPolicy()
	policy := engine.Policy{
		MinLoanAmount:           getEnvDecimal("LOAN_MIN_AMOUNT", def.MinLoanAmount),
		MaxLoanAmount:           getEnvDecimal("LOAN_MAX_AMOUNT", def.MaxLoanAmount),
		MinTenorMonths:          getEnvInt("LOAN_MIN_TENOR", def.MinTenorMonths),
		MaxTenorMonths:          getEnvInt("LOAN_MAX_TENOR", def.MaxTenorMonths),
		DefaultAnnualRate:       getEnvDecimal("LOAN_DEFAULT_RATE", def.DefaultAnnualRate),
		DefaultPenaltyGraceDays: getEnvInt("PENALTY_GRACE_DAYS", def.DefaultPenaltyGraceDays),
		DefaultPenaltyDailyRate: getEnvDecimal("PENALTY_DAILY_RATE", def.DefaultPenaltyDailyRate),
	}
	if err := policy.Validate(); err != nil {
		return EngineConfig{}, fmt.Errorf("invalid loan policy: %w", err)
	}

	tz := getEnv("REFERENCE_TIMEZONE", engine.DefaultTimezone)
	loc, err := engine.LoadLocation(tz)
	if err != nil {
		return EngineConfig{}, fmt.Errorf("invalid REFERENCE_TIMEZONE %q: %w", tz, err)
	}

	return EngineConfig{Policy: policy, Timezone: tz, Location: loc}, nil
}

// loadCronConfig loads the scheduler settings
func loadCronConfig() CronConfig {
	enabled, err := strconv.ParseBool(getEnv("CRON_ENABLED", "true"))
	if err != nil {
		log.Printf("⚠️ Invalid CRON_ENABLED, using true")
		enabled = true
	}

	return CronConfig{
		Enabled:           enabled,
		PenaltySchedule:   getEnv("PENALTY_CRON", "5 0 * * *"),
		ReminderDaysAhead: getEnvInt("REMINDER_DAYS_AHEAD", 3),
	}
}

// loadKafkaConfig loads the event bus settings
func loadKafkaConfig() KafkaConfig {
	var brokers []string
	for _, b := range strings.Split(getEnv("KAFKA_BROKERS", ""), ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}

	return KafkaConfig{
		Brokers: brokers,
		Topic:   getEnv("KAFKA_TOPIC", "microfin.loan-events"),
	}
}

// getEnv gets environment variable with default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt reads an integer, warning and falling back on bad input
func getEnvInt(key string, defaultValue int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	v, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		log.Printf("⚠️ Invalid %s=%q, using %d", key, raw, defaultValue)
		return defaultValue
	}
	return v
}

// getEnvDecimal reads a decimal, warning and falling back on bad input
func getEnvDecimal(key string, defaultValue decimal.Decimal) decimal.Decimal {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	v, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		log.Printf("⚠️ Invalid %s=%q, using %s", key, raw, defaultValue.String())
		return defaultValue
	}
	return v
}

// IsDev returns true if running in development mode
func (c *Config) IsDev() bool {
	return c.AppMode == "dev"
}

// IsProd returns true if running in production mode
func (c *Config) IsProd() bool {
	return c.AppMode == "prod"
}

// GetAllowedOrigins returns allowed origins for CORS
func (c *Config) GetAllowedOrigins() string {
	origins := getEnv("ALLOWED_ORIGINS", "")
	if origins == "" {
		if c.IsDev() {
			return "*"
		}
		return "https://loans.microfin.local"
	}
	return origins
}
