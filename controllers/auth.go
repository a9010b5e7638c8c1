package controllers

import (
	"nexus_go/middleware"
	"nexus_go/models"
	"nexus_go/services"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

type AuthController struct {
	users    *services.UserService
	auth     *middleware.Auth
	activity *middleware.ActivityLogger
}

func NewAuthController(users *services.UserService, auth *middleware.Auth, activity *middleware.ActivityLogger) *AuthController {
	return &AuthController{users: users, auth: auth, activity: activity}
}

// LoginRequest represents the login request body
type LoginRequest struct {
	Email      string `json:"email"`
	Password   string `json:"password"`
	DeviceName string `json:"device_name"`
}

func authUser(u *models.User) fiber.Map {
	return fiber.Map{
		"id":         u.ID,
		"name":       u.FullName(),
		"email":      u.Email,
		"student_id": u.StudentID,
		"program":    u.Program,
		"year":       u.Year,
		"role":       u.Role,
		"status":     u.Status,
	}
}

// Login authenticates a user and returns a JWT token
func (ac *AuthController) Login(c *fiber.Ctx) error {
	var req LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	user, err := ac.users.Authenticate(c.UserContext(), req.Email, req.Password)
	if err != nil {
		return respondError(c, err)
	}

	token, claims, err := ac.auth.GenerateToken(user)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to generate token",
		})
	}

	c.Locals("user", user)
	ac.activity.LogActivity(c, "LOGIN", "auth", user.ID, fiber.Map{
		"email":       user.Email,
		"role":        user.Role,
		"device_name": req.DeviceName,
	})

	return c.JSON(fiber.Map{
		"message":    "Login successful",
		"user":       authUser(user),
		"token":      token,
		"token_type": "Bearer",
		"expires_at": claims.ExpiresAt.Time,
	})
}

// Logout revokes the token that made the request.
func (ac *AuthController) Logout(c *fiber.Ctx) error {
	claims, err := middleware.GetCurrentClaims(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": err.Error()})
	}
	if err := ac.auth.Revoke(c.UserContext(), claims); err != nil {
		// The token still expires on its own.
		logrus.WithError(err).Warn("Failed to blacklist token on logout")
	}

	ac.activity.LogActivity(c, "LOGOUT", "auth", claims.UserID, nil)
	return c.JSON(fiber.Map{"message": "Successfully logged out"})
}

// Me returns the authenticated account.
func (ac *AuthController) Me(c *fiber.Ctx) error {
	user, err := middleware.GetCurrentUser(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(fiber.Map{"user": authUser(user)})
}

// Refresh issues a new token and revokes the old one.
func (ac *AuthController) Refresh(c *fiber.Ctx) error {
	user, err := middleware.GetCurrentUser(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": err.Error()})
	}
	if !user.IsActive() {
		return respondError(c, services.ErrInactiveAccount)
	}

	token, claims, err := ac.auth.GenerateToken(user)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to generate token",
		})
	}
	if old, err := middleware.GetCurrentClaims(c); err == nil {
		if err := ac.auth.Revoke(c.UserContext(), old); err != nil {
			logrus.WithError(err).Warn("Failed to blacklist refreshed token")
		}
	}

	return c.JSON(fiber.Map{
		"token":      token,
		"token_type": "Bearer",
		"expires_at": claims.ExpiresAt.Time,
	})
}
