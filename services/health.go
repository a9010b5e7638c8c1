package services

import (
	"context"
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"gorm.io/gorm"
)

const (
	HealthOK       = "ok"
	HealthDegraded = "degraded"
	HealthCritical = "critical"

	dependencyUp       = "up"
	dependencyDown     = "down"
	dependencyDisabled = "disabled"
)

// HealthFlags are runtime toggles shown on the health report.
type HealthFlags struct {
	SkipMigrate      bool   `json:"skip_migrate"`
	SchedulerEnabled bool   `json:"scheduler_enabled"`
	BlobBackend      string `json:"blob_backend"`
}

type HealthReport struct {
	Status        string             `json:"status"`
	Service       string             `json:"service"`
	Version       string             `json:"version"`
	Environment   string             `json:"environment"`
	Time          time.Time          `json:"time"`
	UptimeSeconds float64            `json:"uptime_seconds"`
	UptimeHuman   string             `json:"uptime_human"`
	Dependencies  []DependencyStatus `json:"dependencies"`
	Goroutines    int                `json:"goroutines"`
	GoVersion     string             `json:"go_version"`
	Flags         HealthFlags        `json:"flags"`
}

type DependencyStatus struct {
	Name      string                 `json:"name"`
	Status    string                 `json:"status"`
	LatencyMs int64                  `json:"latency_ms"`
	Error     string                 `json:"error,omitempty"`
	Details   map[string]interface{} `json:"details,omitempty"`
}

// HealthService probes MySQL and Redis. MySQL down is critical; Redis is
// optional, so a missing client only shows as disabled.
type HealthService struct {
	db          *gorm.DB
	redis       *redis.Client
	environment string
	flags       HealthFlags
	startTime   time.Time
	timeout     time.Duration
}

func NewHealthService(db *gorm.DB, rdb *redis.Client, environment string, flags HealthFlags) *HealthService {
	return &HealthService{
		db:          db,
		redis:       rdb,
		environment: environment,
		flags:       flags,
		startTime:   time.Now(),
		timeout:     1500 * time.Millisecond,
	}
}

func (s *HealthService) Report(ctx context.Context) HealthReport {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	uptime := time.Since(s.startTime)
	report := HealthReport{
		Status:        HealthOK,
		Service:       "PSITS-NEXUS API",
		Version:       "1.0.0",
		Environment:   s.environment,
		Time:          time.Now().UTC(),
		UptimeSeconds: uptime.Seconds(),
		UptimeHuman:   humanizeDuration(uptime),
		Goroutines:    runtime.NumGoroutine(),
		GoVersion:     runtime.Version(),
		Flags:         s.flags,
	}

	db, dbStatus := s.checkDatabase(ctx)
	rd, redisStatus := s.checkRedis(ctx)
	report.Dependencies = []DependencyStatus{db, rd}
	report.Status = combineStatus(combineStatus(report.Status, dbStatus), redisStatus)
	return report
}

// HTTPStatus maps an overall status to a response code.
func HTTPStatus(status string) int {
	if status == HealthCritical {
		return 503
	}
	return 200
}

func (s *HealthService) checkDatabase(ctx context.Context) (DependencyStatus, string) {
	dep := DependencyStatus{Name: "mysql", Status: dependencyDown}
	if s.db == nil {
		dep.Error = "database connection not initialised"
		return dep, HealthCritical
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		dep.Error = fmt.Sprintf("sql DB handle error: %v", err)
		return dep, HealthCritical
	}

	start := time.Now()
	err = sqlDB.PingContext(ctx)
	dep.LatencyMs = time.Since(start).Milliseconds()
	if err != nil {
		dep.Error = err.Error()
		return dep, HealthCritical
	}

	stats := sqlDB.Stats()
	dep.Status = dependencyUp
	dep.Details = map[string]interface{}{
		"open_connections": stats.OpenConnections,
		"in_use":           stats.InUse,
		"idle":             stats.Idle,
	}
	return dep, HealthOK
}

func (s *HealthService) checkRedis(ctx context.Context) (DependencyStatus, string) {
	dep := DependencyStatus{Name: "redis"}
	if s.redis == nil {
		dep.Status = dependencyDisabled
		return dep, HealthOK
	}

	start := time.Now()
	err := s.redis.Ping(ctx).Err()
	dep.LatencyMs = time.Since(start).Milliseconds()
	if err != nil {
		dep.Status = dependencyDown
		dep.Error = err.Error()
		return dep, HealthDegraded
	}
	dep.Status = dependencyUp
	dep.Details = map[string]interface{}{"address": s.redis.Options().Addr}
	return dep, HealthOK
}

func combineStatus(current, candidate string) string {
	order := map[string]int{HealthOK: 0, HealthDegraded: 1, HealthCritical: 2}
	if _, ok := order[current]; !ok {
		current = HealthOK
	}
	if v, ok := order[candidate]; ok && v > order[current] {
		return candidate
	}
	return current
}

func humanizeDuration(d time.Duration) string {
	if d <= 0 {
		return "0s"
	}
	d = d.Round(time.Second)
	days := d / (24 * time.Hour)
	d %= 24 * time.Hour
	hours := d / time.Hour
	d %= time.Hour
	minutes := d / time.Minute
	seconds := (d % time.Minute) / time.Second

	var parts []string
	if days > 0 {
		parts = append(parts, fmt.Sprintf("%dd", days))
	}
	if hours > 0 {
		parts = append(parts, fmt.Sprintf("%dh", hours))
	}
	if minutes > 0 {
		parts = append(parts, fmt.Sprintf("%dm", minutes))
	}
	if seconds > 0 || len(parts) == 0 {
		parts = append(parts, fmt.Sprintf("%ds", seconds))
	}
	return strings.Join(parts, " ")
}
