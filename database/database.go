package database

import (
	"context"
	"time"

	"nexus_go/config"
	"nexus_go/models"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var DB *gorm.DB
var RedisClient *redis.Client

// Connect initializes the database and Redis connections
func Connect() {
	connectDatabase()
	connectRedis()
}

func connectDatabase() {
	var err error
	dsn := config.AppConfig.GetDSN()

	var gormLogger logger.Interface
	if config.AppConfig.AppEnv == "development" {
		gormLogger = logger.Default.LogMode(logger.Info)
	} else {
		gormLogger = logger.Default.LogMode(logger.Silent)
	}

	// MySQL may still be starting when the app boots in compose
	var lastErr error
	for attempt := 1; attempt <= 8; attempt++ {
		DB, err = gorm.Open(mysql.Open(dsn), &gorm.Config{Logger: gormLogger})
		if err == nil {
			lastErr = nil
			break
		}
		lastErr = err
		logrus.Warnf("Database connect attempt %d failed: %v", attempt, err)
		time.Sleep(time.Duration(attempt*attempt) * 300 * time.Millisecond)
	}
	if lastErr != nil {
		logrus.Fatalf("Failed to connect to database after retries: %v", lastErr)
	}

	logrus.Info("Database connected successfully")

	sqlDB, err := DB.DB()
	if err != nil {
		logrus.Fatalf("Failed to get database instance: %v", err)
	}
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(50)
	sqlDB.SetConnMaxLifetime(55 * time.Minute)

	if config.AppConfig.SkipMigrate {
		logrus.Info("SKIP_MIGRATE set, not migrating")
		return
	}
	if err := AutoMigrate(DB); err != nil {
		logrus.Fatalf("Auto migration failed: %v", err)
	}
}

// AutoMigrate creates or updates every table.
func AutoMigrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&models.User{},
		&models.Requirement{},
		&models.Payment{},
		&models.Event{},
		&models.Attendee{},
		&models.SupportTicket{},
		&models.ActivityLog{},
	)
	if err != nil {
		return err
	}
	logrus.Info("Database migration completed successfully")
	return nil
}

// connectRedis leaves RedisClient nil when Redis is unreachable; callers
// then skip the token blacklist and write activity straight to MySQL.
func connectRedis() {
	RedisClient = redis.NewClient(&redis.Options{
		Addr:     config.AppConfig.RedisAddr(),
		Password: config.AppConfig.RedisPassword,
		DB:       0,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if _, err := RedisClient.Ping(ctx).Result(); err != nil {
		logrus.Warnf("Redis connection failed: %v", err)
		logrus.Warn("Continuing without Redis - logs will be saved directly to database")
		RedisClient = nil
		return
	}

	logrus.Info("Redis connected successfully")
}

// Close closes the database and Redis connections
func Close() {
	if RedisClient != nil {
		if err := RedisClient.Close(); err != nil {
			logrus.WithError(err).Warn("Error closing Redis connection")
		}
	}
	if DB == nil {
		return
	}
	sqlDB, err := DB.DB()
	if err != nil {
		logrus.WithError(err).Warn("Error getting database instance")
		return
	}
	if err := sqlDB.Close(); err != nil {
		logrus.WithError(err).Warn("Error closing database connection")
		return
	}
	logrus.Info("Database connection closed")
}
