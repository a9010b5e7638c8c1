package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/ssm"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

type Config struct {
	// Database
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string

	// Redis
	RedisHost     string
	RedisPort     string
	RedisPassword string

	// JWT
	JWTSecret    string
	JWTExpiresIn time.Duration

	// Storage. An empty bucket keeps files on local disk under UploadDir.
	AWSRegion          string
	AWSAccessKeyID     string
	AWSSecretAccessKey string
	S3BucketName       string
	UploadDir          string
	PublicBaseURL      string

	// Server
	Port        string
	AppEnv      string
	CORSOrigins string

	// File Upload
	MaxFileSize       int64
	AllowedExtensions string

	// Logging
	LogLevel string
	LogFile  string

	// Maintenance
	EnableScheduler bool
	RecalcCron      string
	LogRetention    int

	// Feature Toggles
	SkipMigrate bool
	SeedOnStart bool
}

func (c *Config) GetDSN() string {
	return c.DBUser + ":" + c.DBPassword + "@tcp(" + c.DBHost + ":" + c.DBPort + ")/" + c.DBName + "?charset=utf8mb4&parseTime=True&loc=Local"
}

func (c *Config) RedisAddr() string {
	return c.RedisHost + ":" + c.RedisPort
}

// UseS3 reports whether blobs go to S3 rather than local disk.
func (c *Config) UseS3() bool {
	return strings.TrimSpace(c.S3BucketName) != ""
}

func (c *Config) AllowedExtensionList() []string {
	var out []string
	for _, ext := range strings.Split(c.AllowedExtensions, ",") {
		if ext = strings.ToLower(strings.TrimSpace(ext)); ext != "" {
			out = append(out, strings.TrimPrefix(ext, "."))
		}
	}
	return out
}

var AppConfig *Config

// LoadConfig fills AppConfig and exits the process on invalid settings.
func LoadConfig() {
	cfg, err := Load()
	if err != nil {
		logrus.Fatalf("Invalid configuration: %v", err)
	}
	AppConfig = cfg
}

// Load reads configuration from SSM (USE_SSM=true) or from .env and the
// process environment.
func Load() (*Config, error) {
	useSSM := getEnv("USE_SSM", "false") == "true"

	var paramMap map[string]string

	basePath := strings.TrimRight(getEnv("SSM_BASE_PATH", "/nexus"), "/")
	stage := getEnv("STAGE", getEnv("APP_ENV", "production"))
	prefix := basePath + "/" + stage

	if useSSM {
		sess, err := session.NewSession(&aws.Config{Region: aws.String(getEnv("AWS_REGION", "ap-southeast-1"))})
		if err != nil {
			return nil, fmt.Errorf("create AWS session: %w", err)
		}
		logrus.Infof("Using AWS SSM Parameter Store (prefix=%s)", prefix)
		paramMap = fetchSSMParameters(ssm.New(sess), prefix)
	} else if err := godotenv.Load(); err != nil {
		logrus.Warn(".env file not found, using environment variables")
	}

	return build(func(key, def string) string {
		if v, ok := paramMap[key]; ok && v != "" {
			return v
		}
		return getEnv(key, def)
	})
}

// build assembles a Config from a key lookup with defaults.
func build(getVal func(key, def string) string) (*Config, error) {
	jwtExpires, err := parseDuration(getVal("JWT_EXPIRES_IN", "24h"))
	if err != nil {
		return nil, fmt.Errorf("invalid JWT_EXPIRES_IN: %w", err)
	}

	maxFileSize, err := strconv.ParseInt(getVal("MAX_FILE_SIZE", "10485760"), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid MAX_FILE_SIZE: %w", err)
	}

	retention, err := strconv.Atoi(getVal("LOG_RETENTION_DAYS", "30"))
	if err != nil || retention < 7 {
		return nil, fmt.Errorf("invalid LOG_RETENTION_DAYS %q: must be a number of at least 7", getVal("LOG_RETENTION_DAYS", "30"))
	}

	cfg := &Config{
		DBHost:     getVal("DB_HOST", "localhost"),
		DBPort:     getVal("DB_PORT", "3306"),
		DBUser:     getVal("DB_USER", "root"),
		DBPassword: getVal("DB_PASSWORD", ""),
		DBName:     getVal("DB_NAME", "nexus"),

		RedisHost:     getVal("REDIS_HOST", "localhost"),
		RedisPort:     getVal("REDIS_PORT", "6379"),
		RedisPassword: getVal("REDIS_PASSWORD", ""),

		JWTSecret:    getVal("JWT_SECRET", "your_super_secret_jwt_key"),
		JWTExpiresIn: jwtExpires,

		AWSRegion:          getVal("AWS_REGION", "ap-southeast-1"),
		AWSAccessKeyID:     getVal("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey: getVal("AWS_SECRET_ACCESS_KEY", ""),
		S3BucketName:       getVal("S3_BUCKET_NAME", ""),
		UploadDir:          getVal("UPLOAD_DIR", "public/uploads"),
		PublicBaseURL:      strings.TrimRight(getVal("PUBLIC_BASE_URL", "http://localhost:3000"), "/"),

		Port:        getVal("PORT", "3000"),
		AppEnv:      getVal("APP_ENV", "development"),
		CORSOrigins: getVal("CORS_ORIGINS", "*"),

		MaxFileSize:       maxFileSize,
		AllowedExtensions: getVal("ALLOWED_EXTENSIONS", "jpg,jpeg,png,gif,pdf,doc,docx,txt"),

		LogLevel: getVal("LOG_LEVEL", "info"),
		LogFile:  getVal("LOG_FILE", "logs/app.log"),

		EnableScheduler: isTrue(getVal("ENABLE_SCHEDULER", "true")),
		RecalcCron:      getVal("RECALC_CRON", "0 2 * * *"),
		LogRetention:    retention,

		SkipMigrate: isTrue(getVal("SKIP_MIGRATE", "false")),
		SeedOnStart: isTrue(getVal("SEED_ON_START", "false")),
	}

	if err := validateConfig(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// parseDuration accepts Go durations plus the 7d / 2w shorthands.
func parseDuration(raw string) (time.Duration, error) {
	if d, err := time.ParseDuration(raw); err == nil {
		return d, nil
	}
	s := strings.TrimSpace(strings.ToLower(raw))
	if len(s) > 1 {
		if n, err := strconv.Atoi(s[:len(s)-1]); err == nil && n > 0 {
			switch s[len(s)-1] {
			case 'd':
				return time.Duration(n) * 24 * time.Hour, nil
			case 'w':
				return time.Duration(n*7) * 24 * time.Hour, nil
			}
		}
	}
	return 0, fmt.Errorf("unrecognised duration %q", raw)
}

func isTrue(v string) bool {
	return strings.EqualFold(strings.TrimSpace(v), "true")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// fetchSSMParameters reads all parameters under prefix and returns them keyed
// by the uppercased last path segment.
func fetchSSMParameters(client *ssm.SSM, prefix string) map[string]string {
	out := make(map[string]string)
	in := &ssm.GetParametersByPathInput{
		Path:           aws.String(prefix),
		WithDecryption: aws.Bool(true),
		Recursive:      aws.Bool(true),
	}
	err := client.GetParametersByPathPages(in, func(page *ssm.GetParametersByPathOutput, _ bool) bool {
		for _, p := range page.Parameters {
			if p.Name == nil || p.Value == nil {
				continue
			}
			name := *p.Name
			key := name[strings.LastIndex(name, "/")+1:]
			if key == "" {
				continue
			}
			out[strings.ToUpper(key)] = *p.Value
		}
		return true
	})
	if err != nil {
		logrus.WithError(err).Warnf("Unable to fetch SSM parameters for prefix %s", prefix)
	}
	return out
}

func validateConfig(c *Config) error {
	if _, err := strconv.Atoi(c.Port); err != nil {
		return fmt.Errorf("invalid PORT %q", c.Port)
	}
	if strings.ToLower(c.AppEnv) != "production" {
		return nil
	}
	for k, v := range map[string]string{
		"DB_PASSWORD": c.DBPassword,
		"JWT_SECRET":  c.JWTSecret,
	} {
		if strings.TrimSpace(v) == "" {
			return fmt.Errorf("missing required secret %s in production", k)
		}
	}
	if len(c.JWTSecret) < 16 {
		return fmt.Errorf("JWT_SECRET too short (min 16 chars)")
	}
	return nil
}
