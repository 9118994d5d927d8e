package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/levelup-api/internal/dto"
	"github.com/noah-isme/levelup-api/internal/service"
	"github.com/noah-isme/levelup-api/internal/utils"
)

// AdminUserHandler manages accounts and the admin dashboard.
type AdminUserHandler struct {
	admin  service.AdminService
	auth   service.AuthService
	logger zerolog.Logger
}

// NewAdminUserHandler constructs the handler.
func NewAdminUserHandler(admin service.AdminService, auth service.AuthService, logger zerolog.Logger) *AdminUserHandler {
	return &AdminUserHandler{
		admin:  admin,
		auth:   auth,
		logger: logger.With().Str("component", "admin_user_handler").Logger(),
	}
}

// Register attaches user and dashboard routes to the admin group.
func (h *AdminUserHandler) Register(router fiber.Router) {
	router.Get("/dashboard", h.dashboard)
	router.Get("/health", h.health)
	router.Get("/teachers", h.listTeachers)
	router.Get("/students", h.listStudents)
	router.Post("/users", h.createUser)
	router.Put("/users/:id", h.updateUser)
	router.Delete("/users/:id", h.deleteUser)
}

func (h *AdminUserHandler) dashboard(c *fiber.Ctx) error {
	resp, err := h.admin.Dashboard(c.UserContext())
	if err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccess(c, "dashboard retrieved", resp)
}

func (h *AdminUserHandler) health(c *fiber.Ctx) error {
	report := h.admin.Health(c.UserContext())
	status := fiber.StatusOK
	if report.Database.Status != "ok" {
		status = fiber.StatusServiceUnavailable
	}
	return utils.SendSuccessWithStatus(c, status, "health report", report)
}

func (h *AdminUserHandler) listTeachers(c *fiber.Ctx) error {
	teachers, err := h.admin.ListTeachers(c.UserContext())
	if err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccess(c, "teachers retrieved", teachers)
}

func (h *AdminUserHandler) listStudents(c *fiber.Ctx) error {
	courseID, err := parseQueryInt(c, "course_id")
	if err != nil || courseID < 0 {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid course id")
	}

	students, err := h.admin.ListStudents(c.UserContext(), dto.AdminStudentListRequest{CourseID: uint(courseID)})
	if err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccess(c, "students retrieved", students)
}

func (h *AdminUserHandler) createUser(c *fiber.Ctx) error {
	var payload dto.RegisterRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	user, err := h.auth.CreateUser(c.UserContext(), payload, activityActorFromContext(c))
	if err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "user created", user)
}

func (h *AdminUserHandler) updateUser(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid identifier")
	}

	var payload dto.AdminUserUpdateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	user, err := h.admin.UpdateUser(c.UserContext(), id, payload, activityActorFromContext(c))
	if err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccess(c, "user updated", user)
}

func (h *AdminUserHandler) deleteUser(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid identifier")
	}

	if err := h.admin.DeleteUser(c.UserContext(), id, activityActorFromContext(c)); err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccess(c, "user deleted", fiber.Map{"id": id})
}

func (h *AdminUserHandler) handleError(c *fiber.Ctx, err error) error {
	if resp, ok := respondServiceError(c, err); ok {
		return resp
	}
	requestLogger(h.logger, c).Error().Err(err).Msg("admin request failed")
	return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
}
