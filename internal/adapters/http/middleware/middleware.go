package middleware

import (
	"strings"
	"time"

	"microfin-loans/internal/config"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
)

const (
	apiRequestsPerMinute    = 100
	strictRequestsPerMinute = 3
	allowedMethods          = "GET,POST,PUT,PATCH,DELETE,OPTIONS"
	allowedHeaders          = "Origin,Content-Type,Accept,Authorization"
)

// Setup installs the global middleware chain
func Setup(app *fiber.App, cfg *config.Config) {
	app.Use(recover.New())
	app.Use(compress.New(compress.Config{
		Level: compress.LevelBestSpeed,
		Next:  isEventStream,
	}))
	app.Use(helmet.New(helmet.Config{
		XSSProtection:             "1; mode=block",
		ContentTypeNosniff:        "nosniff",
		XFrameOptions:             "SAMEORIGIN",
		ReferrerPolicy:            "strict-origin-when-cross-origin",
		CrossOriginEmbedderPolicy: "require-corp",
		CrossOriginOpenerPolicy:   "same-origin",
		CrossOriginResourcePolicy: "same-origin",
		PermissionPolicy:          "geolocation=(), microphone=(), camera=()",
	}))
	app.Use(limiter.New(limiter.Config{
		Max:          apiRequestsPerMinute,
		Expiration:   time.Minute,
		KeyGenerator: func(c *fiber.Ctx) string { return c.IP() },
		Next:         isOpsEndpoint,
		LimitReached: tooManyRequests("Too many requests", "You are sending requests too quickly, please wait a moment"),
	}))
	app.Use(logger.New(accessLogConfig(cfg)))
	app.Use(cors.New(corsConfig(cfg)))
}

// SSE responses are flushed per event and must not be buffered by gzip.
func isEventStream(c *fiber.Ctx) bool {
	return strings.HasSuffix(c.Path(), "/stream")
}

// scrapes and liveness checks never count against a client's budget
func isOpsEndpoint(c *fiber.Ctx) bool {
	switch c.Path() {
	case "/metrics", "/health":
		return true
	}
	return false
}

func accessLogConfig(cfg *config.Config) logger.Config {
	if cfg.IsDev() {
		return logger.Config{Format: "${time} | ${status} | ${latency} | ${ip} | ${method} | ${path}\n"}
	}
	return logger.Config{
		Format:     "${time} | ${status} | ${latency} | ${ip} | ${method} | ${path} | ${error}\n",
		TimeFormat: "2006-01-02 15:04:05",
	}
}

// corsConfig opens every origin in dev; credentials are only allowed
// against an explicit origin list.
func corsConfig(cfg *config.Config) cors.Config {
	origins := cfg.GetAllowedOrigins()
	if cfg.IsDev() {
		origins = "*"
	}
	return cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     allowedMethods,
		AllowHeaders:     allowedHeaders,
		AllowCredentials: origins != "*",
	}
}

func tooManyRequests(errText, message string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
			"success": false,
			"error":   errText,
			"message": message,
		})
	}
}

// StrictRateLimiter guards expensive officer operations such as a manual
// penalty run.
func StrictRateLimiter() fiber.Handler {
	return limiter.New(limiter.Config{
		Max:          strictRequestsPerMinute,
		Expiration:   time.Minute,
		KeyGenerator: func(c *fiber.Ctx) string { return c.IP() + "-strict" },
		LimitReached: tooManyRequests("Rate limit exceeded", "Please wait a moment before trying again"),
	})
}

// CustomErrorHandler renders errors that escape a handler in the API envelope
func CustomErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal Server Error"

	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		message = e.Message
	}

	return c.Status(code).JSON(fiber.Map{
		"success": false,
		"error":   message,
	})
}
