package controllers

import (
	"nexus_go/services"

	"github.com/gofiber/fiber/v2"
)

type LogController struct {
	activity *services.ActivityLogService
}

func NewLogController(activity *services.ActivityLogService) *LogController {
	return &LogController{activity: activity}
}

// GetLogs retrieves paginated activity logs with filters
func (lc *LogController) GetLogs(c *fiber.Ctx) error {
	filter := services.ActivityLogFilter{
		UserID:   uint(c.QueryInt("user_id", 0)),
		Action:   c.Query("action"),
		Resource: c.Query("resource"),
		Page:     c.QueryInt("page", 1),
		Limit:    c.QueryInt("limit", 50),
	}
	logs, total, err := lc.activity.List(c.UserContext(), filter)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{
		"logs": logs,
		"pagination": fiber.Map{
			"page":  filter.Page,
			"limit": filter.Limit,
			"total": total,
		},
	})
}

// FlushLogs moves buffered entries from Redis into the database now.
func (lc *LogController) FlushLogs(c *fiber.Ctx) error {
	n, err := lc.activity.Flush(c.UserContext())
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{
		"message": "Logs flushed",
		"flushed": n,
	})
}

// ArchiveLogs zips entries older than days_old (default 30) into blob storage.
func (lc *LogController) ArchiveLogs(c *fiber.Ctx) error {
	var req struct {
		DaysOld int `json:"days_old"`
	}
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return badRequest(c, "Invalid request body")
		}
	}
	if req.DaysOld == 0 {
		req.DaysOld = 30
	}

	key, err := lc.activity.Archive(c.UserContext(), req.DaysOld)
	if err != nil {
		return respondError(c, err)
	}
	if key == "" {
		return c.JSON(fiber.Map{"message": "No logs old enough to archive"})
	}
	return c.JSON(fiber.Map{
		"message": "Logs archived",
		"archive": key,
	})
}
