package handler

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/levelup-api/internal/dto"
	"github.com/noah-isme/levelup-api/internal/service"
	"github.com/noah-isme/levelup-api/internal/utils"
)

// StudentHandler exposes the student portal and the play loop.
type StudentHandler struct {
	play        service.PlayService
	portal      service.PortalService
	answerLimit fiber.Handler
	logger      zerolog.Logger
}

// NewStudentHandler constructs the handler. answerLimit guards answer submission and may be nil.
func NewStudentHandler(play service.PlayService, portal service.PortalService, answerLimit fiber.Handler, logger zerolog.Logger) *StudentHandler {
	if answerLimit == nil {
		answerLimit = func(c *fiber.Ctx) error { return c.Next() }
	}
	return &StudentHandler{
		play:        play,
		portal:      portal,
		answerLimit: answerLimit,
		logger:      logger.With().Str("component", "student_handler").Logger(),
	}
}

// Register attaches student routes to the router group.
func (h *StudentHandler) Register(router fiber.Router) {
	router.Get("/portal", h.portalView)
	router.Get("/activities", h.list)
	router.Put("/subject", h.setSubject)
	router.Post("/activities/:id/play", h.start)
	router.Post("/activities/:id/items/:itemId/answer", h.answerLimit, h.answer)
	router.Get("/activities/:id/items/:itemId/hint", h.hint)
	router.Post("/activities/:id/finish", h.finish)
	router.Get("/activities/:id/results", h.results)
}

func (h *StudentHandler) portalView(c *fiber.Ctx) error {
	resp, err := h.portal.Portal(c.UserContext(), userIDFromContext(c))
	if err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccess(c, "portal retrieved", resp)
}

func (h *StudentHandler) list(c *fiber.Ctx) error {
	resp, err := h.play.List(c.UserContext(), userIDFromContext(c), c.Query("subject"))
	if err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccess(c, "activities retrieved", resp)
}

func (h *StudentHandler) setSubject(c *fiber.Ctx) error {
	var payload dto.SetSubjectRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}
	subject, err := h.play.SetSubject(c.UserContext(), userIDFromContext(c), payload)
	if err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccess(c, "subject selected", subject)
}

func (h *StudentHandler) start(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid identifier")
	}
	resp, err := h.play.Play(c.UserContext(), userIDFromContext(c), id)
	if err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccess(c, "attempt ready", resp)
}

func (h *StudentHandler) answer(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid identifier")
	}
	itemID, err := strconv.ParseUint(c.Params("itemId"), 10, 64)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid item identifier")
	}
	// Minigame clients close the attempt by answering item 0.
	if itemID == 0 {
		resp, err := h.play.Finish(c.UserContext(), userIDFromContext(c), id)
		if err != nil {
			return h.handleError(c, err)
		}
		return utils.SendSuccess(c, "attempt finalized", resp)
	}
	var payload dto.AnswerRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}
	resp, err := h.play.Answer(c.UserContext(), userIDFromContext(c), id, uint(itemID), payload)
	if err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccess(c, "answer recorded", resp)
}

func (h *StudentHandler) hint(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid identifier")
	}
	itemID, err := parseUintParam(c, "itemId")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid item identifier")
	}
	resp, err := h.play.Hint(c.UserContext(), userIDFromContext(c), id, itemID)
	if err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccess(c, "hint", resp)
}

func (h *StudentHandler) finish(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid identifier")
	}
	resp, err := h.play.Finish(c.UserContext(), userIDFromContext(c), id)
	if err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccess(c, "attempt finalized", resp)
}

func (h *StudentHandler) results(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid identifier")
	}
	attempt, err := parseQueryInt(c, "attempt")
	if err != nil || attempt < 0 {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid attempt")
	}

	req := dto.ResultsRequest{Attempt: attempt, Filter: c.Query("filter")}
	resp, err := h.play.Results(c.UserContext(), userIDFromContext(c), id, req)
	if err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccess(c, "results retrieved", resp)
}

func (h *StudentHandler) handleError(c *fiber.Ctx, err error) error {
	if resp, ok := respondServiceError(c, err); ok {
		return resp
	}
	requestLogger(h.logger, c).Error().Err(err).Msg("student request failed")
	return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
}
