package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// HeaderCorrelationID carries the request identifier in both directions.
const HeaderCorrelationID = "X-Correlation-ID"

const (
	localCorrelationID = "correlation_id"
	maxCorrelationLen  = 128
)

// CorrelationID reuses the caller's X-Correlation-ID (or X-Request-ID) and
// otherwise mints a UUID. The value is echoed on the response.
func CorrelationID() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := strings.TrimSpace(c.Get(HeaderCorrelationID))
		if id == "" {
			id = strings.TrimSpace(c.Get(fiber.HeaderXRequestID))
		}
		if id == "" || len(id) > maxCorrelationLen {
			id = uuid.NewString()
		}

		c.Locals(localCorrelationID, id)
		c.Set(HeaderCorrelationID, id)
		return c.Next()
	}
}

// GetCorrelationID returns the identifier bound to the request, if any.
func GetCorrelationID(c *fiber.Ctx) string {
	if c == nil {
		return ""
	}
	id, _ := c.Locals(localCorrelationID).(string)
	return id
}
