package auth

import (
	"errors"
	"strings"

	"residence-backend/internal/models"
	"residence-backend/internal/users"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

const CtxUserKey = "current_user"

// CurrentUserMiddleware resolves who is acting. A valid bearer token selects
// that user; with no Authorization header the first stored user acts.
func CurrentUserMiddleware(secret string, svc *users.Service, logger *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get(fiber.HeaderAuthorization)

		if authHeader == "" {
			u, err := svc.Current(c.UserContext())
			if errors.Is(err, users.ErrNoUsers) {
				return fiber.NewError(fiber.StatusUnauthorized, "No user is configured")
			}
			if err != nil {
				return err
			}
			c.Locals(CtxUserKey, u)
			return c.Next()
		}

		if secret == "" {
			return fiber.NewError(fiber.StatusUnauthorized, "Token login is disabled")
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
			return fiber.NewError(fiber.StatusUnauthorized, "Authorization must be 'Bearer <token>'")
		}

		claims, err := ParseToken(secret, parts[1])
		if err != nil {
			logger.Debug("rejected token", zap.Error(err))
			return fiber.NewError(fiber.StatusUnauthorized, "Invalid or expired token")
		}

		u, err := svc.Get(c.UserContext(), claims.UserID)
		if err != nil || !u.IsActive {
			return fiber.NewError(fiber.StatusUnauthorized, "User is no longer active")
		}

		c.Locals(CtxUserKey, u)
		return c.Next()
	}
}

func RequireRole(allowedRoles ...models.UserRole) fiber.Handler {
	return func(c *fiber.Ctx) error {
		u := CurrentUser(c)
		if u == nil {
			return fiber.NewError(fiber.StatusForbidden, "Could not resolve the current user")
		}
		for _, r := range allowedRoles {
			if r == u.Role {
				return c.Next()
			}
		}
		return fiber.NewError(fiber.StatusForbidden, "You are not allowed to do this")
	}
}

// CurrentUser returns the user stored by CurrentUserMiddleware, or nil.
func CurrentUser(c *fiber.Ctx) *models.User {
	u, _ := c.Locals(CtxUserKey).(*models.User)
	return u
}
