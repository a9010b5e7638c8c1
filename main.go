package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"nexus_go/config"
	"nexus_go/database"
	"nexus_go/database/seeders"
	"nexus_go/middleware"
	"nexus_go/routes"
	"nexus_go/services"
	"nexus_go/storage"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/sirupsen/logrus"
)

func init() {
	// Load configuration
	config.LoadConfig()

	// Initialize logging
	setupLogging(config.AppConfig)

	// Connect to database
	database.Connect()

	if config.AppConfig.SeedOnStart {
		if err := seeders.SeedAll(database.DB); err != nil {
			logrus.WithError(err).Error("Seeding failed")
		}
	}
}

func main() {
	cfg := config.AppConfig
	clock := services.SystemClock{}

	blobs, err := storage.New(context.Background(), cfg)
	if err != nil {
		logrus.Fatalf("Failed to initialise blob storage: %v", err)
	}

	store := database.NewGormStore(database.DB)
	ledger := services.NewRequirementLedger(store)
	users := services.NewUserService(store, clock)
	events := services.NewEventService(store, clock)
	profiles := services.NewProfileAggregator(store, clock)
	support := services.NewSupportDesk(store, blobs, clock)
	support.MaxAttachmentSize = cfg.MaxFileSize
	activityLogs := services.NewActivityLogService(database.DB, database.RedisClient, blobs, clock)

	blobBackend := "local"
	if cfg.UseS3() {
		blobBackend = "s3"
	}

	deps := routes.Dependencies{
		Auth:         middleware.NewAuth(cfg.JWTSecret, cfg.JWTExpiresIn, store, database.RedisClient),
		Activity:     middleware.NewActivityLogger(activityLogs),
		Clock:        clock,
		Users:        users,
		Ledger:       ledger,
		Requirements: services.NewRequirementService(store, ledger, clock),
		Payments:     services.NewPaymentService(store, ledger, clock),
		Events:       events,
		Capacity:     services.NewCapacityManager(store, clock),
		Profiles:     profiles,
		Support:      support,
		Dashboard:    services.NewDashboardService(store, clock, events, profiles),
		ActivityLogs: activityLogs,
		Health: services.NewHealthService(database.DB, database.RedisClient, cfg.AppEnv, services.HealthFlags{
			SkipMigrate:      cfg.SkipMigrate,
			SchedulerEnabled: cfg.EnableScheduler,
			BlobBackend:      blobBackend,
		}),
		AllowedExtensions: cfg.AllowedExtensionList(),
	}

	var scheduler *services.MaintenanceScheduler
	if cfg.EnableScheduler {
		scheduler = services.NewMaintenanceScheduler(ledger, activityLogs)
		scheduler.ArchiveAfterDays = cfg.LogRetention
		if err := scheduler.Start(cfg.RecalcCron); err != nil {
			logrus.Fatalf("Failed to start maintenance scheduler: %v", err)
		}
	}

	// Create Fiber app
	app := fiber.New(fiber.Config{
		ErrorHandler: customErrorHandler,
		BodyLimit:    int(cfg.MaxFileSize) * 5,
	})

	// Global middleware
	app.Use(recover.New())
	app.Use(helmet.New(helmet.Config{CrossOriginResourcePolicy: "cross-origin"}))
	app.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORSOrigins,
		AllowMethods:     "GET,POST,HEAD,PUT,DELETE,PATCH,OPTIONS",
		AllowHeaders:     "Origin,Content-Type,Accept,Authorization",
		AllowCredentials: cfg.CORSOrigins != "*",
	}))

	// Custom middleware
	app.Use(middleware.LoggerMiddleware())
	app.Use(deps.Activity.Middleware())

	// API routes
	routes.SetupRoutes(app, deps)
	if !cfg.UseS3() {
		routes.SetupStaticRoutes(app, cfg.UploadDir)
	}

	// 404 handler
	app.Use(func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error":  "Route not found",
			"path":   c.Path(),
			"method": c.Method(),
		})
	})

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
		<-quit

		logrus.Info("Shutting down server...")
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			logrus.WithError(err).Warn("Server shutdown did not complete cleanly")
		}
	}()

	logrus.WithFields(logrus.Fields{
		"port":        cfg.Port,
		"environment": cfg.AppEnv,
		"storage":     blobBackend,
	}).Info("PSITS-NEXUS API v1.0.0 starting")

	if err := app.Listen(":" + cfg.Port); err != nil {
		logrus.Fatalf("Failed to start server: %v", err)
	}

	if scheduler != nil {
		scheduler.Stop()
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	if _, err := activityLogs.Flush(ctx); err != nil {
		logrus.WithError(err).Warn("Final activity log flush failed")
	}
	cancel()
	database.Close()
}

// setupLogging configures the logging system
func setupLogging(cfg *config.Config) {
	logrus.SetFormatter(&logrus.JSONFormatter{})

	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	logrus.SetLevel(level)

	// stdout in development, file otherwise
	if cfg.AppEnv == "development" || cfg.LogFile == "" {
		logrus.SetOutput(os.Stdout)
		return
	}
	if err := os.MkdirAll(filepath.Dir(cfg.LogFile), 0755); err != nil {
		logrus.Warnf("Could not create logs directory: %v", err)
		return
	}
	file, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
	if err == nil {
		logrus.SetOutput(file)
	}
}

// customErrorHandler handles application errors
func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal Server Error"

	// Check if it's a Fiber error
	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		message = e.Message
	}

	logrus.WithFields(logrus.Fields{
		"error":  err.Error(),
		"path":   c.Path(),
		"method": c.Method(),
		"ip":     c.IP(),
		"status": code,
	}).Error("Request error")

	return c.Status(code).JSON(fiber.Map{
		"error":  message,
		"code":   code,
		"path":   c.Path(),
		"method": c.Method(),
	})
}
