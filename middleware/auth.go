package middleware

import (
	"context"
	"errors"
	"strings"
	"time"

	"nexus_go/models"

	"github.com/go-redis/redis/v8"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const blacklistPrefix = "jwt:blacklist:"

type Claims struct {
	UserID uint   `json:"user_id"`
	Email  string `json:"email"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// UserFinder loads the account behind a token.
type UserFinder interface {
	FindUser(ctx context.Context, id uint) (*models.User, error)
}

// Auth issues and checks bearer tokens.
type Auth struct {
	secret    []byte
	expiresIn time.Duration
	users     UserFinder
	redis     *redis.Client
}

// NewAuth builds the token authority. rdb may be nil, which disables logout
// revocation.
func NewAuth(secret string, expiresIn time.Duration, users UserFinder, rdb *redis.Client) *Auth {
	return &Auth{secret: []byte(secret), expiresIn: expiresIn, users: users, redis: rdb}
}

// GenerateToken creates a new JWT token for a user
func (a *Auth) GenerateToken(user *models.User) (string, *Claims, error) {
	now := time.Now()
	claims := &Claims{
		UserID: user.ID,
		Email:  user.Email,
		Role:   user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			ExpiresAt: jwt.NewNumericDate(now.Add(a.expiresIn)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(a.secret)
	return signed, claims, err
}

// Revoke blacklists the token until it would have expired anyway.
func (a *Auth) Revoke(ctx context.Context, claims *Claims) error {
	if a.redis == nil || claims == nil || claims.ID == "" {
		return nil
	}
	ttl := time.Until(claims.ExpiresAt.Time)
	if ttl <= 0 {
		return nil
	}
	return a.redis.Set(ctx, blacklistPrefix+claims.ID, "1", ttl).Err()
}

func (a *Auth) revoked(ctx context.Context, claims *Claims) bool {
	if a.redis == nil || claims.ID == "" {
		return false
	}
	n, err := a.redis.Exists(ctx, blacklistPrefix+claims.ID).Result()
	if err != nil {
		logrus.WithError(err).Warn("Token blacklist lookup failed")
		return false
	}
	return n > 0
}

const msgUnauthenticated = "Unauthenticated. Please login first."

func unauthenticated(c *fiber.Ctx) error {
	return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
		"error": msgUnauthenticated,
	})
}

// JWTMiddleware validates the bearer token and loads the current user. The
// account is re-read on every request so role and status changes apply at once.
func (a *Auth) JWTMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		user, claims, msg := a.authenticate(c)
		if msg != "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": msg})
		}
		c.Locals("user", user)
		c.Locals("claims", claims)
		return c.Next()
	}
}

// OptionalJWT loads the user when a valid token is sent and otherwise lets the
// request through anonymously.
func (a *Auth) OptionalJWT() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if c.Get("Authorization") == "" {
			return c.Next()
		}
		if user, claims, msg := a.authenticate(c); msg == "" {
			c.Locals("user", user)
			c.Locals("claims", claims)
		}
		return c.Next()
	}
}

// authenticate returns a non-empty message when the request carries no usable token.
func (a *Auth) authenticate(c *fiber.Ctx) (*models.User, *Claims, string) {
	authHeader := c.Get("Authorization")
	tokenString := strings.TrimPrefix(authHeader, "Bearer ")
	if authHeader == "" || tokenString == authHeader {
		return nil, nil, msgUnauthenticated
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return a.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, nil, "Invalid token"
	}
	if a.revoked(c.UserContext(), claims) {
		return nil, nil, "Token has been revoked"
	}

	user, err := a.users.FindUser(c.UserContext(), claims.UserID)
	if err != nil {
		return nil, nil, msgUnauthenticated
	}
	return user, claims, ""
}

// RequireMemberAccess admits active Members, Officers and Admins.
func RequireMemberAccess() fiber.Handler {
	return func(c *fiber.Ctx) error {
		user, err := GetCurrentUser(c)
		if err != nil || !isKnownRole(user.Role) {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"error": "Access restricted to PSITS-NEXUS members only.",
			})
		}
		if !user.IsActive() {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"error": "Your account is not active. Please contact administrator.",
			})
		}
		return c.Next()
	}
}

// RequireAdminAccess admits active Admins only.
func RequireAdminAccess() fiber.Handler {
	return RequireRole("Access restricted to administrators only.", models.RoleAdmin)
}

// RequireOfficerOrAdmin guards management routes.
func RequireOfficerOrAdmin() fiber.Handler {
	return RequireRole("Access restricted to officers and administrators only.", models.RoleOfficer, models.RoleAdmin)
}

// RequireRole admits active users holding one of roles.
func RequireRole(denied string, roles ...string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		user, err := GetCurrentUser(c)
		if err != nil {
			return unauthenticated(c)
		}

		allowed := false
		for _, role := range roles {
			if user.Role == role {
				allowed = true
				break
			}
		}
		if !allowed {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"error": denied,
			})
		}
		if !user.IsActive() {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"error": "Your account is not active.",
			})
		}
		return c.Next()
	}
}

func isKnownRole(role string) bool {
	switch role {
	case models.RoleMember, models.RoleOfficer, models.RoleAdmin:
		return true
	}
	return false
}

// GetCurrentUser returns the current authenticated user
func GetCurrentUser(c *fiber.Ctx) (*models.User, error) {
	user, ok := c.Locals("user").(*models.User)
	if !ok || user == nil {
		return nil, fiber.NewError(fiber.StatusUnauthorized, "User not found in context")
	}
	return user, nil
}

// GetCurrentClaims returns the current JWT claims
func GetCurrentClaims(c *fiber.Ctx) (*Claims, error) {
	claims, ok := c.Locals("claims").(*Claims)
	if !ok {
		return nil, fiber.NewError(fiber.StatusUnauthorized, "Claims not found in context")
	}
	return claims, nil
}
