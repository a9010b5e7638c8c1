package controllers

import (
	"nexus_go/services"

	"github.com/gofiber/fiber/v2"
)

type DashboardController struct {
	dashboard *services.DashboardService
}

func NewDashboardController(dashboard *services.DashboardService) *DashboardController {
	return &DashboardController{dashboard: dashboard}
}

// GetStats returns the administrative summary.
func (dc *DashboardController) GetStats(c *fiber.Ctx) error {
	stats, err := dc.dashboard.Admin(c.UserContext())
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"stats": stats})
}
