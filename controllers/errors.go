package controllers

import (
	"errors"
	"strconv"

	"nexus_go/services"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

// respondError translates service errors into HTTP responses.
func respondError(c *fiber.Ctx, err error) error {
	var (
		verr     *services.ValidationError
		conflict *services.ConflictError
	)
	switch {
	case errors.As(err, &verr):
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
			"error":  "Validation failed",
			"errors": verr.Fields,
		})
	case errors.Is(err, services.ErrValidation):
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"error": err.Error()})
	case errors.As(err, &conflict):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": conflict.Message})
	case errors.Is(err, services.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Resource not found"})
	case errors.Is(err, services.ErrForbidden):
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "You do not have access to this resource"})
	case errors.Is(err, services.ErrInvalidCredentials):
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "The provided credentials are incorrect."})
	case errors.Is(err, services.ErrInactiveAccount):
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Your account is not active. Please contact administrator."})
	}

	logrus.WithError(err).WithFields(logrus.Fields{
		"method": c.Method(),
		"path":   c.Path(),
	}).Error("Request failed")
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Internal server error"})
}

func badRequest(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": msg})
}

// paramID reads a positive numeric route parameter.
func paramID(c *fiber.Ctx, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Params(name), 10, 32)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}

type idsRequest struct {
	IDs []uint `json:"ids"`
}

// bodyIDs reads {"ids": [...]} and rejects an empty list.
func bodyIDs(c *fiber.Ctx) ([]uint, error) {
	var req idsRequest
	if err := c.BodyParser(&req); err != nil {
		return nil, services.NewValidationError("ids", "The ids field must be an array.")
	}
	if len(req.IDs) == 0 {
		return nil, services.NewValidationError("ids", "The ids field is required.")
	}
	return req.IDs, nil
}
