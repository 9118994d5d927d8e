package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/levelup-api/internal/dto"
	"github.com/noah-isme/levelup-api/internal/service"
	"github.com/noah-isme/levelup-api/internal/utils"
)

// AcademicHandler exposes the admin CRUD over courses, subjects and their links.
type AcademicHandler struct {
	service service.AcademicService
	logger  zerolog.Logger
}

// NewAcademicHandler constructs the academic handler.
func NewAcademicHandler(service service.AcademicService, logger zerolog.Logger) *AcademicHandler {
	return &AcademicHandler{
		service: service,
		logger:  logger.With().Str("component", "academic_handler").Logger(),
	}
}

// Register attaches academic routes to the admin group.
func (h *AcademicHandler) Register(router fiber.Router) {
	router.Get("/courses", h.listCourses)
	router.Post("/courses", h.createCourse)
	router.Put("/courses/:id", h.updateCourse)
	router.Delete("/courses/:id", h.deleteCourse)

	router.Get("/subjects", h.listSubjects)
	router.Post("/subjects", h.createSubject)
	router.Put("/subjects/:id", h.updateSubject)
	router.Delete("/subjects/:id", h.deleteSubject)

	router.Get("/teacher-assignments", h.listTeacherAssignments)
	router.Post("/teacher-assignments", h.createTeacherAssignment)
	router.Delete("/teacher-assignments/:id", h.deleteTeacherAssignment)

	router.Get("/enrollments", h.listEnrollments)
	router.Post("/enrollments", h.createEnrollment)
	router.Delete("/enrollments/:id", h.deleteEnrollment)

	router.Get("/reinforcement-groups", h.listReinforcementGroups)
	router.Put("/reinforcement-groups", h.saveReinforcementGroup)
	router.Delete("/reinforcement-groups/:id", h.deleteReinforcementGroup)
}

func (h *AcademicHandler) listCourses(c *fiber.Ctx) error {
	courses, err := h.service.ListCourses(c.UserContext())
	if err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccess(c, "courses retrieved", courses)
}

func (h *AcademicHandler) createCourse(c *fiber.Ctx) error {
	var payload dto.CourseRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}
	course, err := h.service.CreateCourse(c.UserContext(), payload, activityActorFromContext(c))
	if err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "course created", course)
}

func (h *AcademicHandler) updateCourse(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid identifier")
	}
	var payload dto.CourseRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}
	course, err := h.service.UpdateCourse(c.UserContext(), id, payload, activityActorFromContext(c))
	if err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccess(c, "course updated", course)
}

func (h *AcademicHandler) deleteCourse(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid identifier")
	}
	if err := h.service.DeleteCourse(c.UserContext(), id, activityActorFromContext(c)); err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccess(c, "course deleted", fiber.Map{"id": id})
}

func (h *AcademicHandler) listSubjects(c *fiber.Ctx) error {
	subjects, err := h.service.ListSubjects(c.UserContext())
	if err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccess(c, "subjects retrieved", subjects)
}

func (h *AcademicHandler) createSubject(c *fiber.Ctx) error {
	var payload dto.SubjectRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}
	subject, err := h.service.CreateSubject(c.UserContext(), payload, activityActorFromContext(c))
	if err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "subject created", subject)
}

func (h *AcademicHandler) updateSubject(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid identifier")
	}
	var payload dto.SubjectRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}
	subject, err := h.service.UpdateSubject(c.UserContext(), id, payload, activityActorFromContext(c))
	if err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccess(c, "subject updated", subject)
}

func (h *AcademicHandler) deleteSubject(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid identifier")
	}
	if err := h.service.DeleteSubject(c.UserContext(), id, activityActorFromContext(c)); err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccess(c, "subject deleted", fiber.Map{"id": id})
}

func (h *AcademicHandler) listTeacherAssignments(c *fiber.Ctx) error {
	assignments, err := h.service.ListTeacherAssignments(c.UserContext())
	if err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccess(c, "teacher assignments retrieved", assignments)
}

func (h *AcademicHandler) createTeacherAssignment(c *fiber.Ctx) error {
	var payload dto.TeacherAssignmentRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}
	assignment, err := h.service.CreateTeacherAssignment(c.UserContext(), payload, activityActorFromContext(c))
	if err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "teacher assigned", assignment)
}

func (h *AcademicHandler) deleteTeacherAssignment(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid identifier")
	}
	if err := h.service.DeleteTeacherAssignment(c.UserContext(), id, activityActorFromContext(c)); err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccess(c, "teacher assignment deleted", fiber.Map{"id": id})
}

func (h *AcademicHandler) listEnrollments(c *fiber.Ctx) error {
	courseID, err := parseQueryInt(c, "course_id")
	if err != nil || courseID < 0 {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid course id")
	}
	var filter *uint
	if courseID > 0 {
		id := uint(courseID)
		filter = &id
	}

	enrollments, err := h.service.ListEnrollments(c.UserContext(), filter)
	if err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccess(c, "enrollments retrieved", enrollments)
}

func (h *AcademicHandler) createEnrollment(c *fiber.Ctx) error {
	var payload dto.EnrollmentRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}
	enrollment, err := h.service.CreateEnrollment(c.UserContext(), payload, activityActorFromContext(c))
	if err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "student enrolled", enrollment)
}

func (h *AcademicHandler) deleteEnrollment(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid identifier")
	}
	if err := h.service.DeleteEnrollment(c.UserContext(), id, activityActorFromContext(c)); err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccess(c, "enrollment deleted", fiber.Map{"id": id})
}

func (h *AcademicHandler) listReinforcementGroups(c *fiber.Ctx) error {
	groups, err := h.service.ListReinforcementGroups(c.UserContext())
	if err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccess(c, "reinforcement groups retrieved", groups)
}

func (h *AcademicHandler) saveReinforcementGroup(c *fiber.Ctx) error {
	var payload dto.ReinforcementGroupRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}
	group, err := h.service.SaveReinforcementGroup(c.UserContext(), payload, activityActorFromContext(c))
	if err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccess(c, "reinforcement group saved", group)
}

func (h *AcademicHandler) deleteReinforcementGroup(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid identifier")
	}
	if err := h.service.DeleteReinforcementGroup(c.UserContext(), id, activityActorFromContext(c)); err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccess(c, "reinforcement group deleted", fiber.Map{"id": id})
}

func (h *AcademicHandler) handleError(c *fiber.Ctx, err error) error {
	if resp, ok := respondServiceError(c, err); ok {
		return resp
	}
	requestLogger(h.logger, c).Error().Err(err).Msg("academic request failed")
	return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
}
