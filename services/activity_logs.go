package services

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"nexus_go/models"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const (
	activityQueueKey = "logs:queue"
	activityCacheTTL = 48 * time.Hour

	// MinArchiveAgeDays keeps recent activity queryable in the database.
	MinArchiveAgeDays = 7
)

// ActivityLogFilter narrows List.
type ActivityLogFilter struct {
	UserID   uint
	Action   string
	Resource string
	Page     int
	Limit    int
}

// ActivityLogService records activity through a Redis buffer and moves it
// into MySQL in batches. Old rows are zipped into blob storage.
type ActivityLogService struct {
	db    *gorm.DB
	redis *redis.Client
	blobs BlobStore
	clock Clock
	log   *logrus.Entry
}

func NewActivityLogService(db *gorm.DB, rdb *redis.Client, blobs BlobStore, clock Clock) *ActivityLogService {
	return &ActivityLogService{
		db:    db,
		redis: rdb,
		blobs: blobs,
		clock: clock,
		log:   logrus.WithField("component", "activity"),
	}
}

// Record buffers entry in Redis. Without Redis, or when caching fails, the
// row is written to the database directly.
func (s *ActivityLogService) Record(ctx context.Context, entry models.ActivityLog) {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = s.clock.Now()
	}
	if err := s.cache(ctx, entry); err != nil {
		if s.redis != nil {
			s.log.WithError(err).Warn("Failed to cache activity log, saving directly to database")
		}
		if s.db == nil {
			return
		}
		if err := s.db.WithContext(ctx).Create(&entry).Error; err != nil {
			s.log.WithError(err).Error("Failed to save activity log to database")
		}
	}
}

func (s *ActivityLogService) cache(ctx context.Context, entry models.ActivityLog) error {
	if s.redis == nil {
		return fmt.Errorf("redis client not available")
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal log: %w", err)
	}
	key := fmt.Sprintf("log:%d:%s:%d", entry.UserID, entry.Action, entry.CreatedAt.UnixNano())

	pipe := s.redis.TxPipeline()
	pipe.Set(ctx, key, data, activityCacheTTL)
	pipe.ZAdd(ctx, activityQueueKey, &redis.Z{Score: float64(entry.CreatedAt.Unix()), Member: key})
	_, err = pipe.Exec(ctx)
	return err
}

// Flush moves every buffered entry into the database and returns how many
// were saved. Without Redis nothing is buffered.
func (s *ActivityLogService) Flush(ctx context.Context) (int, error) {
	if s.redis == nil {
		return 0, nil
	}

	keys, err := s.redis.ZRangeByScore(ctx, activityQueueKey, &redis.ZRangeBy{
		Min: "0",
		Max: strconv.FormatInt(s.clock.Now().Unix(), 10),
	}).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to read activity queue: %w", err)
	}

	saved, failed := 0, 0
	for _, key := range keys {
		raw, err := s.redis.Get(ctx, key).Bytes()
		if err == redis.Nil {
			s.redis.ZRem(ctx, activityQueueKey, key)
			continue
		}
		if err != nil {
			s.log.WithError(err).Errorf("Failed to get log data for key: %s", key)
			failed++
			continue
		}

		var entry models.ActivityLog
		if err := json.Unmarshal(raw, &entry); err != nil {
			s.log.WithError(err).Errorf("Failed to unmarshal log data for key: %s", key)
			failed++
			continue
		}
		entry.ID = 0
		if err := s.db.WithContext(ctx).Create(&entry).Error; err != nil {
			s.log.WithError(err).Error("Failed to save log to database")
			failed++
			continue
		}

		pipe := s.redis.Pipeline()
		pipe.Del(ctx, key)
		pipe.ZRem(ctx, activityQueueKey, key)
		if _, err := pipe.Exec(ctx); err != nil {
			s.log.WithError(err).Errorf("Failed to remove log from cache: %s", key)
		}
		saved++
	}

	if len(keys) > 0 {
		s.log.Infof("Flushed %d logs to database, %d errors", saved, failed)
	}
	return saved, nil
}

// List returns one page of stored activity, newest first, and the total count.
func (s *ActivityLogService) List(ctx context.Context, f ActivityLogFilter) ([]models.ActivityLog, int64, error) {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.Limit < 1 || f.Limit > 200 {
		f.Limit = 50
	}

	q := s.db.WithContext(ctx).Model(&models.ActivityLog{})
	if f.UserID != 0 {
		q = q.Where("user_id = ?", f.UserID)
	}
	if f.Action != "" {
		q = q.Where("action = ?", f.Action)
	}
	if f.Resource != "" {
		q = q.Where("resource = ?", f.Resource)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var logs []models.ActivityLog
	err := q.Order("created_at DESC").Offset((f.Page - 1) * f.Limit).Limit(f.Limit).Find(&logs).Error
	return logs, total, err
}

// Archive zips activity older than daysOld into blob storage and removes it
// from the database. It returns the blob key, or "" when nothing was old enough.
func (s *ActivityLogService) Archive(ctx context.Context, daysOld int) (string, error) {
	if daysOld < MinArchiveAgeDays {
		return "", NewValidationError("days_old", fmt.Sprintf("The days old must be at least %d.", MinArchiveAgeDays))
	}
	if s.blobs == nil {
		return "", fmt.Errorf("blob storage not configured")
	}

	cutoff := startOfDay(s.clock.Now()).AddDate(0, 0, -daysOld)
	var logs []models.ActivityLog
	if err := s.db.WithContext(ctx).Where("created_at < ?", cutoff).Order("created_at ASC").Find(&logs).Error; err != nil {
		return "", fmt.Errorf("failed to fetch logs for archiving: %w", err)
	}
	if len(logs) == 0 {
		return "", nil
	}

	name := fmt.Sprintf("activity_logs_%s.zip", cutoff.Format("2006-01-02"))
	buf, err := zipActivity(logs, name, s.clock.Now())
	if err != nil {
		return "", err
	}
	key := fmt.Sprintf("logs/archived/%d/%02d/%s", cutoff.Year(), cutoff.Month(), name)
	if _, err := s.blobs.Put(ctx, key, bytes.NewReader(buf.Bytes()), int64(buf.Len()), "application/zip"); err != nil {
		return "", fmt.Errorf("failed to upload archive: %w", err)
	}

	res := s.db.WithContext(ctx).Unscoped().Where("created_at < ?", cutoff).Delete(&models.ActivityLog{})
	if res.Error != nil {
		return key, fmt.Errorf("failed to delete archived logs: %w", res.Error)
	}
	s.log.WithFields(logrus.Fields{"key": key, "records": res.RowsAffected}).Info("Activity logs archived")
	return key, nil
}

func zipActivity(logs []models.ActivityLog, name string, now time.Time) (*bytes.Buffer, error) {
	buf := new(bytes.Buffer)
	zw := zip.NewWriter(buf)

	jsonFile, err := zw.Create("activity_logs.json")
	if err != nil {
		return nil, err
	}
	enc := json.NewEncoder(jsonFile)
	enc.SetIndent("", "  ")
	if err := enc.Encode(map[string]any{
		"file_name":    name,
		"export_date":  now.UTC(),
		"record_count": len(logs),
		"logs":         logs,
	}); err != nil {
		return nil, fmt.Errorf("failed to encode logs: %w", err)
	}

	csvFile, err := zw.Create("activity_logs.csv")
	if err != nil {
		return nil, err
	}
	w := csv.NewWriter(csvFile)
	_ = w.Write([]string{"ID", "User ID", "Action", "Resource", "Resource ID", "IP Address", "User Agent", "Created At", "Details"})
	for _, l := range logs {
		_ = w.Write([]string{
			strconv.FormatUint(uint64(l.ID), 10),
			strconv.FormatUint(uint64(l.UserID), 10),
			l.Action,
			l.Resource,
			strconv.FormatUint(uint64(l.ResourceID), 10),
			l.IPAddress,
			l.UserAgent,
			l.CreatedAt.Format("2006-01-02 15:04:05"),
			string(l.Details),
		})
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}

	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("failed to close zip: %w", err)
	}
	return buf, nil
}
