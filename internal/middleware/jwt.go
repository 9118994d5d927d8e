package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/levelup-api/internal/utils"
	"github.com/noah-isme/levelup-api/pkg/token"
)

// Locals keys populated by JWTProtected.
const (
	LocalUserID   = "user_id"
	LocalUserRole = "user_role"
)

// JWTProtected validates access tokens and stores the caller in the request locals.
func JWTProtected(secret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		raw, ok := bearerToken(c)
		if !ok {
			return utils.SendError(c, fiber.StatusUnauthorized, "authorization header missing")
		}
		if raw == "" {
			return utils.SendError(c, fiber.StatusUnauthorized, "invalid authorization header")
		}

		claims, err := token.Parse(raw, secret, token.TypeAccess)
		if err != nil {
			return utils.SendError(c, fiber.StatusUnauthorized, "invalid token")
		}
		userID, _ := claims.UserID()

		c.Locals(LocalUserID, userID)
		if claims.Role != "" {
			c.Locals(LocalUserRole, claims.Role)
		}
		return c.Next()
	}
}

// bearerToken reads the Authorization header. Websocket handshakes may pass
// access_token as a query parameter since browsers cannot set headers there.
func bearerToken(c *fiber.Ctx) (string, bool) {
	header := strings.TrimSpace(c.Get(fiber.HeaderAuthorization))
	if header == "" && strings.EqualFold(c.Get(fiber.HeaderUpgrade), "websocket") {
		if raw := strings.TrimSpace(c.Query("access_token")); raw != "" {
			return raw, true
		}
	}
	if header == "" {
		return "", false
	}

	scheme, raw, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "bearer") {
		return "", true
	}
	return strings.TrimSpace(raw), true
}

// UserID returns the authenticated user, or 0.
func UserID(c *fiber.Ctx) uint {
	switch v := c.Locals(LocalUserID).(type) {
	case uint:
		return v
	case int:
		if v > 0 {
			return uint(v)
		}
	}
	return 0
}

// UserRole returns the lower-cased role of the authenticated user.
func UserRole(c *fiber.Ctx) string {
	role, _ := c.Locals(LocalUserRole).(string)
	return strings.ToLower(strings.TrimSpace(role))
}
