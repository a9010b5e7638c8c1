package controllers

import (
	"nexus_go/services"

	"github.com/gofiber/fiber/v2"
)

type RequirementController struct {
	requirements *services.RequirementService
	ledger       *services.RequirementLedger
}

func NewRequirementController(requirements *services.RequirementService, ledger *services.RequirementLedger) *RequirementController {
	return &RequirementController{requirements: requirements, ledger: ledger}
}

func (rc *RequirementController) GetRequirements(c *fiber.Ctx) error {
	reqs, err := rc.requirements.List(c.UserContext())
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"requirements": reqs})
}

func (rc *RequirementController) GetRequirement(c *fiber.Ctx) error {
	id, ok := paramID(c, "id")
	if !ok {
		return badRequest(c, "Invalid requirement ID")
	}
	req, err := rc.requirements.Get(c.UserContext(), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"requirement": req})
}

func (rc *RequirementController) CreateRequirement(c *fiber.Ctx) error {
	var in services.RequirementInput
	if err := c.BodyParser(&in); err != nil {
		return badRequest(c, "Invalid request body")
	}
	req, err := rc.requirements.Create(c.UserContext(), in)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message":     "Requirement created successfully",
		"requirement": req,
	})
}

func (rc *RequirementController) UpdateRequirement(c *fiber.Ctx) error {
	id, ok := paramID(c, "id")
	if !ok {
		return badRequest(c, "Invalid requirement ID")
	}
	var in services.RequirementInput
	if err := c.BodyParser(&in); err != nil {
		return badRequest(c, "Invalid request body")
	}
	req, err := rc.requirements.Update(c.UserContext(), id, in)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{
		"message":     "Requirement updated successfully",
		"requirement": req,
	})
}

// DeleteRequirement removes the requirement and every payment recorded against it.
func (rc *RequirementController) DeleteRequirement(c *fiber.Ctx) error {
	id, ok := paramID(c, "id")
	if !ok {
		return badRequest(c, "Invalid requirement ID")
	}
	if err := rc.requirements.Delete(c.UserContext(), id); err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"message": "Requirement deleted successfully"})
}

// RecalculateCounts rebuilds paid/unpaid for every requirement.
func (rc *RequirementController) RecalculateCounts(c *fiber.Ctx) error {
	reqs, err := rc.ledger.RecalculateAll(c.UserContext())
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{
		"message":      "Requirement counts recalculated",
		"requirements": reqs,
	})
}
