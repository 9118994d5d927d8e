package handler

import (
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/levelup-api/internal/dto"
	"github.com/noah-isme/levelup-api/internal/minigame"
	"github.com/noah-isme/levelup-api/internal/service"
	"github.com/noah-isme/levelup-api/internal/utils"
)

// TeacherActivityHandler exposes the activity builder and its reporting.
type TeacherActivityHandler struct {
	service service.TeacherActivityService
	logger  zerolog.Logger
}

// NewTeacherActivityHandler constructs the handler.
func NewTeacherActivityHandler(service service.TeacherActivityService, logger zerolog.Logger) *TeacherActivityHandler {
	return &TeacherActivityHandler{
		service: service,
		logger:  logger.With().Str("component", "teacher_activity_handler").Logger(),
	}
}

// Register attaches teacher routes to the router group.
func (h *TeacherActivityHandler) Register(router fiber.Router) {
	router.Get("/dashboard", h.dashboard)
	router.Get("/minigames", h.kinds)
	router.Post("/grading/preview", h.previewGrade)

	router.Get("/activities", h.list)
	router.Post("/activities", h.create)
	router.Get("/activities/:id", h.get)
	router.Put("/activities/:id", h.update)
	router.Delete("/activities/:id", h.delete)

	router.Post("/activities/:id/items", h.addItem)
	router.Put("/activities/:id/items/:itemId", h.updateItem)
	router.Delete("/activities/:id/items/:itemId", h.deleteItem)

	router.Get("/activities/:id/assignments", h.listAssignments)
	router.Post("/activities/:id/assign", h.assign)
	router.Put("/activities/:id/assignments/:studentId/attempts", h.setAttempts)

	router.Get("/activities/:id/results.xlsx", h.export)
}

func (h *TeacherActivityHandler) dashboard(c *fiber.Ctx) error {
	resp, err := h.service.Dashboard(c.UserContext(), activityActorFromContext(c))
	if err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccess(c, "dashboard retrieved", resp)
}

func (h *TeacherActivityHandler) kinds(c *fiber.Ctx) error {
	return utils.SendSuccess(c, "minigame kinds", minigame.Kinds)
}

func (h *TeacherActivityHandler) previewGrade(c *fiber.Ctx) error {
	var payload dto.GradingPreviewRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}
	resp, err := h.service.PreviewGrade(c.UserContext(), payload)
	if err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccess(c, "grading preview", resp)
}

func (h *TeacherActivityHandler) list(c *fiber.Ctx) error {
	activities, err := h.service.List(c.UserContext(), activityActorFromContext(c))
	if err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccess(c, "activities retrieved", activities)
}

func (h *TeacherActivityHandler) create(c *fiber.Ctx) error {
	var payload dto.ActivityRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}
	activity, err := h.service.Create(c.UserContext(), payload, activityActorFromContext(c))
	if err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "activity created", activity)
}

func (h *TeacherActivityHandler) get(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid identifier")
	}
	activity, err := h.service.Get(c.UserContext(), id, activityActorFromContext(c))
	if err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccess(c, "activity retrieved", activity)
}

func (h *TeacherActivityHandler) update(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid identifier")
	}
	var payload dto.ActivityRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}
	activity, err := h.service.Update(c.UserContext(), id, payload, activityActorFromContext(c))
	if err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccess(c, "activity updated", activity)
}

func (h *TeacherActivityHandler) delete(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid identifier")
	}
	if err := h.service.Delete(c.UserContext(), id, activityActorFromContext(c)); err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccess(c, "activity deleted", fiber.Map{"id": id})
}

func (h *TeacherActivityHandler) addItem(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid identifier")
	}
	var payload dto.ItemRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}
	item, err := h.service.AddItem(c.UserContext(), id, payload, activityActorFromContext(c))
	if err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "item created", item)
}

func (h *TeacherActivityHandler) updateItem(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid identifier")
	}
	itemID, err := parseUintParam(c, "itemId")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid item identifier")
	}
	var payload dto.ItemRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}
	item, err := h.service.UpdateItem(c.UserContext(), id, itemID, payload, activityActorFromContext(c))
	if err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccess(c, "item updated", item)
}

func (h *TeacherActivityHandler) deleteItem(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid identifier")
	}
	itemID, err := parseUintParam(c, "itemId")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid item identifier")
	}
	if err := h.service.DeleteItem(c.UserContext(), id, itemID, activityActorFromContext(c)); err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccess(c, "item deleted", fiber.Map{"id": itemID})
}

func (h *TeacherActivityHandler) listAssignments(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid identifier")
	}
	assignments, err := h.service.ListAssignments(c.UserContext(), id, activityActorFromContext(c))
	if err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccess(c, "assignments retrieved", assignments)
}

func (h *TeacherActivityHandler) assign(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid identifier")
	}
	var payload dto.AssignRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}
	resp, err := h.service.Assign(c.UserContext(), id, payload, activityActorFromContext(c))
	if err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccess(c, "activity assigned", resp)
}

func (h *TeacherActivityHandler) setAttempts(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid identifier")
	}
	studentID, err := parseUintParam(c, "studentId")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid student identifier")
	}
	var payload dto.AttemptOverrideRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}
	if err := h.service.SetAttempts(c.UserContext(), id, studentID, payload, activityActorFromContext(c)); err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccess(c, "attempts updated", fiber.Map{"student_id": studentID, "attempts_allowed": payload.AttemptsAllowed})
}

func (h *TeacherActivityHandler) export(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid identifier")
	}
	file, err := h.service.ExportResults(c.UserContext(), id, activityActorFromContext(c))
	if err != nil {
		return h.handleError(c, err)
	}

	c.Set(fiber.HeaderContentType, file.ContentType)
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", file.FileName))
	return c.Status(fiber.StatusOK).Send(file.Content)
}

func (h *TeacherActivityHandler) handleError(c *fiber.Ctx, err error) error {
	if resp, ok := respondServiceError(c, err); ok {
		return resp
	}
	requestLogger(h.logger, c).Error().Err(err).Msg("teacher request failed")
	return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
}
