package handler

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/levelup-api/internal/dto"
	"github.com/noah-isme/levelup-api/internal/service"
	"github.com/noah-isme/levelup-api/internal/utils"
)

const (
	defaultLogPageSize = 25
	maxLogPageSize     = 200
)

// AdminActivityHandler exposes the audit trail.
type AdminActivityHandler struct {
	service service.ActivityLogService
	logger  zerolog.Logger
}

// NewAdminActivityHandler constructs the handler.
func NewAdminActivityHandler(service service.ActivityLogService, logger zerolog.Logger) *AdminActivityHandler {
	return &AdminActivityHandler{
		service: service,
		logger:  logger.With().Str("component", "admin_activity_handler").Logger(),
	}
}

// Register attaches activity log routes to the router group.
func (h *AdminActivityHandler) Register(router fiber.Router) {
	router.Get("", h.list)
}

// list accepts page, page_size, actor_id, action (exact or "prefix.*"),
// entity_type, entity_id and since (RFC 3339).
func (h *AdminActivityHandler) list(c *fiber.Ctx) error {
	req, message := activityLogRequest(c)
	if message != "" {
		return utils.SendError(c, fiber.StatusBadRequest, message)
	}

	response, err := h.service.List(c.UserContext(), req)
	if err != nil {
		requestLogger(h.logger, c).Error().Err(err).Msg("failed to list activity logs")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to list activity logs")
	}
	return utils.OK(c, response.Items, "activity logs", response.Pagination)
}

func activityLogRequest(c *fiber.Ctx) (dto.ActivityLogListRequest, string) {
	req := dto.ActivityLogListRequest{
		Action:     c.Query("action"),
		EntityType: c.Query("entity_type"),
	}

	page, err := parseQueryInt(c, "page")
	if err != nil || page < 0 {
		return req, "invalid page"
	}
	req.Page = max(page, 1)

	size, err := parseQueryInt(c, "page_size")
	if err != nil || size < 0 {
		return req, "invalid page size"
	}
	switch {
	case size == 0:
		req.PageSize = defaultLogPageSize
	case size > maxLogPageSize:
		req.PageSize = maxLogPageSize
	default:
		req.PageSize = size
	}

	actor, err := parseQueryInt(c, "actor_id")
	if err != nil || actor < 0 {
		return req, "invalid actor id"
	}
	req.ActorID = uint(actor)

	entity, err := parseQueryInt(c, "entity_id")
	if err != nil || entity < 0 {
		return req, "invalid entity id"
	}
	req.EntityID = uint(entity)

	if raw := c.Query("since"); raw != "" {
		since, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return req, "invalid since timestamp"
		}
		req.Since = &since
	}
	return req, ""
}
