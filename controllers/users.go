package controllers

import (
	"nexus_go/middleware"
	"nexus_go/models"
	"nexus_go/services"
	"nexus_go/utils"

	"github.com/gofiber/fiber/v2"
)

type UserController struct {
	users *services.UserService
}

func NewUserController(users *services.UserService) *UserController {
	return &UserController{users: users}
}

// pageWindow clamps page/limit query values and returns the slice bounds for n rows.
func pageWindow(c *fiber.Ctx, n int) (page, limit, from, to int) {
	page = c.QueryInt("page", 1)
	limit = c.QueryInt("limit", 15)
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 15
	}
	from = (page - 1) * limit
	if from > n {
		from = n
	}
	to = from + limit
	if to > n {
		to = n
	}
	return page, limit, from, to
}

// GetUsers returns users with pagination
func (uc *UserController) GetUsers(c *fiber.Ctx) error {
	users, err := uc.users.List(c.UserContext(), services.UserFilter{
		Search:  c.Query("search"),
		Role:    c.Query("role"),
		Status:  c.Query("status"),
		Program: c.Query("program"),
	})
	if err != nil {
		return respondError(c, err)
	}

	page, limit, from, to := pageWindow(c, len(users))
	return c.JSON(fiber.Map{
		"users": users[from:to],
		"pagination": fiber.Map{
			"page":  page,
			"limit": limit,
			"total": len(users),
		},
	})
}

// GetRegistrationOptions lists active accounts for the attendee picker.
func (uc *UserController) GetRegistrationOptions(c *fiber.Ctx) error {
	users, err := uc.users.List(c.UserContext(), services.UserFilter{
		Search: c.Query("search"),
		Status: models.UserStatusActive,
	})
	if err != nil {
		return respondError(c, err)
	}

	options := make([]utils.UserShort, 0, len(users))
	for _, u := range users {
		options = append(options, utils.ToUserShort(u))
	}
	return c.JSON(fiber.Map{"users": options})
}

// GetUser returns a specific user by ID
func (uc *UserController) GetUser(c *fiber.Ctx) error {
	id, ok := paramID(c, "id")
	if !ok {
		return badRequest(c, "Invalid user ID")
	}
	user, err := uc.users.Get(c.UserContext(), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"user": user})
}

func (uc *UserController) CreateUser(c *fiber.Ctx) error {
	var in services.UserInput
	if err := c.BodyParser(&in); err != nil {
		return badRequest(c, "Invalid request body")
	}
	user, err := uc.users.Create(c.UserContext(), in)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "User created successfully",
		"user":    user,
	})
}

func (uc *UserController) UpdateUser(c *fiber.Ctx) error {
	id, ok := paramID(c, "id")
	if !ok {
		return badRequest(c, "Invalid user ID")
	}
	var in services.UserInput
	if err := c.BodyParser(&in); err != nil {
		return badRequest(c, "Invalid request body")
	}
	user, err := uc.users.Update(c.UserContext(), id, in)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{
		"message": "User updated successfully",
		"user":    user,
	})
}

// DeleteUser removes an account. Admins cannot delete themselves.
func (uc *UserController) DeleteUser(c *fiber.Ctx) error {
	id, ok := paramID(c, "id")
	if !ok {
		return badRequest(c, "Invalid user ID")
	}
	actor, err := middleware.GetCurrentUser(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": err.Error()})
	}
	if err := uc.users.Delete(c.UserContext(), id, actor.ID); err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"message": "User deleted successfully"})
}
