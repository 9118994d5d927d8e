package handler

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/levelup-api/internal/dto"
	"github.com/noah-isme/levelup-api/internal/service"
	"github.com/noah-isme/levelup-api/internal/utils"
)

// SeedHandler exposes tooling endpoints for seeding data.
type SeedHandler struct {
	service   service.SeedService
	validator *validator.Validate
	logger    zerolog.Logger
}

// NewSeedHandler constructs a seed handler.
func NewSeedHandler(service service.SeedService, validate *validator.Validate, logger zerolog.Logger) *SeedHandler {
	return &SeedHandler{
		service:   service,
		validator: validate,
		logger:    logger.With().Str("component", "seed_handler").Logger(),
	}
}

// Register wires seed routes.
func (h *SeedHandler) Register(router fiber.Router) {
	router.Post("/rewards", h.rewards)
	router.Post("/reinforcement", h.reinforcement)
	router.Post("/courses", h.courses)
}

func (h *SeedHandler) rewards(c *fiber.Ctx) error {
	summary, err := h.service.SeedRewards(c.UserContext(), c.Get("X-Seed-Token"))
	if err != nil {
		return h.seedError(c, err)
	}
	return utils.SendSuccess(c, "rewards seeded", summary)
}

func (h *SeedHandler) reinforcement(c *fiber.Ctx) error {
	summary, err := h.service.SeedReinforcement(c.UserContext(), c.Get("X-Seed-Token"))
	if err != nil {
		return h.seedError(c, err)
	}
	return utils.SendSuccess(c, "reinforcement setup seeded", summary)
}

func (h *SeedHandler) courses(c *fiber.Ctx) error {
	var payload dto.SeedCoursesRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&payload); err != nil {
			return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
		}
	}
	if err := h.validator.Struct(payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	summary, err := h.service.SeedCourses(c.UserContext(), c.Get("X-Seed-Token"), payload)
	if err != nil {
		return h.seedError(c, err)
	}
	return utils.SendSuccess(c, "courses seeded", summary)
}

func (h *SeedHandler) seedError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, service.ErrSeedDisabled):
		return utils.SendError(c, fiber.StatusForbidden, "seeding disabled")
	case errors.Is(err, service.ErrSeedUnauthorized):
		return utils.SendError(c, fiber.StatusForbidden, "invalid token")
	default:
		requestLogger(h.logger, c).Error().Err(err).Msg("seed operation failed")
		return utils.SendError(c, fiber.StatusInternalServerError, "seed operation failed")
	}
}
