package middleware

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"nexus_go/models"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

// LoggerMiddleware logs HTTP requests
func LoggerMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		err := c.Next()

		logrus.WithFields(logrus.Fields{
			"method":     c.Method(),
			"path":       c.Path(),
			"status":     c.Response().StatusCode(),
			"duration":   time.Since(start).String(),
			"ip":         c.IP(),
			"user_agent": c.Get("User-Agent"),
		}).Info("HTTP Request")

		return err
	}
}

// ActivityRecorder persists one activity entry.
type ActivityRecorder interface {
	Record(ctx context.Context, entry models.ActivityLog)
}

// ActivityLogger turns requests into activity log entries.
type ActivityLogger struct {
	recorder ActivityRecorder
	async    bool
}

func NewActivityLogger(recorder ActivityRecorder) *ActivityLogger {
	return &ActivityLogger{recorder: recorder, async: true}
}

// LogActivity records an action by the current user, or by user 0 when the
// request is anonymous.
func (l *ActivityLogger) LogActivity(c *fiber.Ctx, action, resource string, resourceID uint, details interface{}) {
	if l == nil || l.recorder == nil {
		return
	}
	var userID uint
	if user, err := GetCurrentUser(c); err == nil {
		userID = user.ID
	}

	meta := map[string]interface{}{
		"details":     details,
		"method":      c.Method(),
		"path":        c.Path(),
		"status_code": c.Response().StatusCode(),
		"request_id":  c.Get("X-Request-ID"),
	}
	raw, err := json.Marshal(meta)
	if err != nil {
		logrus.WithError(err).Warn("Failed to encode activity details")
		raw = nil
	}

	entry := models.ActivityLog{
		UserID:     userID,
		Action:     action,
		Resource:   resource,
		ResourceID: resourceID,
		Details:    models.JSON(raw),
		IPAddress:  c.IP(),
		UserAgent:  c.Get("User-Agent"),
	}
	entry.CreatedAt = time.Now()

	if !l.async {
		l.recorder.Record(context.Background(), entry)
		return
	}
	go func(e models.ActivityLog) {
		defer func() {
			if r := recover(); r != nil {
				logrus.WithField("panic", r).Error("panic recovered in LogActivity goroutine")
			}
		}()
		l.recorder.Record(context.Background(), e)
	}(entry)
}

// Middleware logs every successful mutating request under /api.
func (l *ActivityLogger) Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if c.Method() == fiber.MethodGet || strings.Contains(c.Path(), "/auth/") {
			return c.Next()
		}

		err := c.Next()

		var action string
		switch c.Method() {
		case fiber.MethodPost:
			action = "CREATE"
		case fiber.MethodPut, fiber.MethodPatch:
			action = "UPDATE"
		case fiber.MethodDelete:
			action = "DELETE"
		default:
			return err
		}

		// /api/<resource>/...
		var resource string
		if parts := strings.Split(strings.Trim(c.Path(), "/"), "/"); len(parts) >= 2 {
			resource = parts[1]
		}

		var resourceID uint
		if id, parseErr := strconv.ParseUint(c.Params("id"), 10, 64); parseErr == nil {
			resourceID = uint(id)
		}

		if err == nil && c.Response().StatusCode() < 400 {
			l.LogActivity(c, action, resource, resourceID, nil)
		}
		return err
	}
}
