package controllers

import (
	"nexus_go/services"

	"github.com/gofiber/fiber/v2"
)

type ProfileController struct {
	profiles *services.ProfileAggregator
}

func NewProfileController(profiles *services.ProfileAggregator) *ProfileController {
	return &ProfileController{profiles: profiles}
}

// GetProfiles lists one payment profile per person: members and manual payers.
func (pc *ProfileController) GetProfiles(c *fiber.Ctx) error {
	profiles, err := pc.profiles.ListProfiles(c.UserContext(), services.ProfileFilter{
		Search:  c.Query("search"),
		Program: c.Query("program"),
	})
	if err != nil {
		return respondError(c, err)
	}

	page, limit, from, to := pageWindow(c, len(profiles))
	return c.JSON(fiber.Map{
		"profiles": profiles[from:to],
		"pagination": fiber.Map{
			"page":  page,
			"limit": limit,
			"total": len(profiles),
		},
	})
}

// GetProfile accepts a user id, manual_<student_id> or payment_<id>.
func (pc *ProfileController) GetProfile(c *fiber.Ctx) error {
	profile, err := pc.profiles.BuildProfile(c.UserContext(), c.Params("key"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"profile": profile})
}
