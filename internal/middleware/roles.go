package middleware

import (
	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/levelup-api/internal/models"
	"github.com/noah-isme/levelup-api/internal/utils"
)

// Scopes accepted by Guard.
const (
	ScopeAuthenticated = "authenticated"
	ScopeStaff         = "staff"
)

// RequireRole admits callers whose role is exactly one of roles.
func RequireRole(roles ...string) fiber.Handler {
	allowed := make(map[string]struct{}, len(roles))
	for _, role := range roles {
		allowed[role] = struct{}{}
	}

	return func(c *fiber.Ctx) error {
		if UserID(c) == 0 {
			return utils.Fail(c, fiber.StatusUnauthorized, "authentication required", nil)
		}
		if _, ok := allowed[UserRole(c)]; !ok {
			return utils.SendError(c, fiber.StatusForbidden, "insufficient permissions")
		}
		return c.Next()
	}
}

// Guard admits any authenticated caller for ScopeAuthenticated, and teachers
// or admins for ScopeStaff. Admins may open every teacher screen.
func Guard(scope string) fiber.Handler {
	if scope == ScopeStaff {
		return RequireRole(models.RoleTeacher, models.RoleAdmin)
	}
	return func(c *fiber.Ctx) error {
		if UserID(c) == 0 {
			return utils.Fail(c, fiber.StatusUnauthorized, "authentication required", nil)
		}
		switch UserRole(c) {
		case models.RoleStudent, models.RoleTeacher, models.RoleAdmin:
			return c.Next()
		}
		return utils.SendError(c, fiber.StatusForbidden, "unknown role")
	}
}
