package controllers

import (
	"nexus_go/middleware"
	"nexus_go/services"
	"nexus_go/utils"

	"github.com/gofiber/fiber/v2"
)

// MemberController serves the mobile client. Every handler reads the
// current user's own data.
type MemberController struct {
	profiles  *services.ProfileAggregator
	payments  *services.PaymentService
	events    *services.EventService
	dashboard *services.DashboardService
}

func NewMemberController(profiles *services.ProfileAggregator, payments *services.PaymentService, events *services.EventService, dashboard *services.DashboardService) *MemberController {
	return &MemberController{profiles: profiles, payments: payments, events: events, dashboard: dashboard}
}

func (mc *MemberController) Profile(c *fiber.Ctx) error {
	user, err := middleware.GetCurrentUser(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": err.Error()})
	}
	profile, err := mc.profiles.BuildUserProfile(c.UserContext(), user.ID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{
		"user":    authUser(user),
		"profile": profile,
	})
}

func (mc *MemberController) Dashboard(c *fiber.Ctx) error {
	user, err := middleware.GetCurrentUser(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": err.Error()})
	}
	summary, err := mc.dashboard.Member(c.UserContext(), user.ID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"dashboard": summary})
}

// Payments lists the member's payments, including manual rows entered
// under their student id.
func (mc *MemberController) Payments(c *fiber.Ctx) error {
	user, err := middleware.GetCurrentUser(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": err.Error()})
	}
	payments, err := mc.payments.ForMember(c.UserContext(), user)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"payments": utils.ToPaymentDTOs(payments)})
}

func (mc *MemberController) Requirements(c *fiber.Ctx) error {
	user, err := middleware.GetCurrentUser(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": err.Error()})
	}
	profile, err := mc.profiles.BuildUserProfile(c.UserContext(), user.ID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{
		"paid_requirements":   profile.PaidRequirements,
		"unpaid_requirements": profile.UnpaidRequirements,
		"total_paid":          profile.TotalPaid,
		"total_balance":       profile.TotalBalance,
	})
}

func (mc *MemberController) Events(c *fiber.Ctx) error {
	events, err := mc.events.ListVisible(c.UserContext(), c.Query("search"))
	if err != nil {
		return respondError(c, err)
	}

	out := make([]fiber.Map, 0, len(events))
	for _, e := range events {
		out = append(out, fiber.Map{
			"event":        e,
			"can_register": eventIsOpen(e),
		})
	}
	return c.JSON(fiber.Map{"events": out})
}
