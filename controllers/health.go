package controllers

import (
	"nexus_go/services"

	"github.com/gofiber/fiber/v2"
)

// HealthController exposes the dependency health report.
type HealthController struct {
	service *services.HealthService
}

func NewHealthController(service *services.HealthService) *HealthController {
	return &HealthController{service: service}
}

// GetHealthStatus answers 503 when the database is unreachable.
func (hc *HealthController) GetHealthStatus(c *fiber.Ctx) error {
	report := hc.service.Report(c.UserContext())
	return c.Status(services.HTTPStatus(report.Status)).JSON(report)
}
