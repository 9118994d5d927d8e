package handler

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/levelup-api/internal/config"
	"github.com/noah-isme/levelup-api/internal/dto"
	"github.com/noah-isme/levelup-api/internal/utils"
)

// HealthProbe reports the state of the backing stores.
type HealthProbe func(ctx context.Context) dto.AdminHealthReport

// HealthResponse is the public liveness payload.
type HealthResponse struct {
	Status       string                 `json:"status"`
	Timestamp    time.Time              `json:"timestamp"`
	Service      string                 `json:"service"`
	Environment  string                 `json:"environment"`
	Dependencies *dto.AdminHealthReport `json:"dependencies,omitempty"`
}

// HealthCheck answers "ok" while the database responds and "degraded" otherwise.
// A nil probe only reports liveness.
func HealthCheck(cfg config.Config, probe HealthProbe) fiber.Handler {
	return func(c *fiber.Ctx) error {
		payload := HealthResponse{
			Status:      "ok",
			Timestamp:   time.Now().UTC(),
			Service:     cfg.AppName,
			Environment: cfg.AppEnv,
		}
		if probe == nil {
			return utils.SendSuccess(c, "service healthy", payload)
		}

		report := probe(c.UserContext())
		payload.Dependencies = &report
		if report.Database.Status != "ok" {
			payload.Status = "degraded"
			return utils.SendSuccessWithStatus(c, fiber.StatusServiceUnavailable, "database unavailable", payload)
		}
		return utils.SendSuccess(c, "service healthy", payload)
	}
}
