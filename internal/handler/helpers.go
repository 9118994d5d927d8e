package handler

import (
	"errors"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/levelup-api/internal/middleware"
	"github.com/noah-isme/levelup-api/internal/minigame"
	"github.com/noah-isme/levelup-api/internal/service"
	"github.com/noah-isme/levelup-api/internal/utils"
)

func parseQueryInt(c *fiber.Ctx, key string) (int, error) {
	value := strings.TrimSpace(c.Query(key))
	if value == "" {
		return 0, nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, err
	}
	return parsed, nil
}

func parseUintParam(c *fiber.Ctx, name string) (uint, error) {
	value := c.Params(name)
	parsed, err := strconv.ParseUint(value, 10, 64)
	if err != nil || parsed == 0 {
		return 0, errors.New("invalid identifier")
	}
	return uint(parsed), nil
}

func userIDFromContext(c *fiber.Ctx) uint {
	return middleware.UserID(c)
}

func userRoleFromContext(c *fiber.Ctx) string {
	return middleware.UserRole(c)
}

func activityActorFromContext(c *fiber.Ctx) service.ActivityActor {
	return service.ActivityActor{
		ID:   userIDFromContext(c),
		Role: userRoleFromContext(c),
	}
}

func requestLogger(base zerolog.Logger, c *fiber.Ctx) *zerolog.Logger {
	logger := base
	if c != nil {
		if correlation := middleware.GetCorrelationID(c); correlation != "" {
			logger = base.With().Str("correlation_id", correlation).Logger()
		}
	}
	return &logger
}

func isValidationError(err error) bool {
	var validationErrors validator.ValidationErrors
	return errors.As(err, &validationErrors)
}

// validationDetails flattens validator and field errors into field -> message.
func validationDetails(err error) (map[string]string, bool) {
	var fieldErr *service.FieldError
	if errors.As(err, &fieldErr) {
		return map[string]string{fieldErr.Field: fieldErr.Message}, true
	}

	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		details := make(map[string]string, len(validationErrors))
		for _, fe := range validationErrors {
			field := strings.ToLower(fe.Field())
			if fe.Param() != "" {
				details[field] = fe.Tag() + "=" + fe.Param()
			} else {
				details[field] = fe.Tag()
			}
		}
		return details, true
	}

	if minigame.IsValidationError(err) {
		return map[string]string{"data": err.Error()}, true
	}
	return nil, false
}

// notFoundErrors map to 404 regardless of the handler.
var notFoundErrors = []error{
	service.ErrUserNotFound,
	service.ErrCourseNotFound,
	service.ErrSubjectNotFound,
	service.ErrRecordNotFound,
	service.ErrActivityNotFound,
	service.ErrItemNotFound,
	service.ErrNoResults,
}

// conflictErrors map to 409.
var conflictErrors = []error{
	service.ErrDuplicateEmail,
	service.ErrDuplicateRUT,
	service.ErrCourseExists,
	service.ErrSubjectExists,
	service.ErrAssignmentExists,
	service.ErrEnrollmentExists,
	service.ErrUserInUse,
	service.ErrAttemptsExhausted,
	service.ErrNoOpenAttempt,
	service.ErrActivityClosed,
}

// forbiddenErrors map to 403.
var forbiddenErrors = []error{
	service.ErrForbidden,
	service.ErrNotAssigned,
	service.ErrActivityNotPublished,
	service.ErrRoleMismatch,
}

func matchesAny(err error, targets []error) bool {
	for _, target := range targets {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// respondServiceError translates the shared service errors. It reports false when err is unknown.
func respondServiceError(c *fiber.Ctx, err error) (error, bool) {
	if details, ok := validationDetails(err); ok {
		return utils.Fail(c, fiber.StatusUnprocessableEntity, "validation failed", details), true
	}
	switch {
	case matchesAny(err, notFoundErrors):
		return utils.SendError(c, fiber.StatusNotFound, err.Error()), true
	case matchesAny(err, conflictErrors):
		return utils.SendError(c, fiber.StatusConflict, err.Error()), true
	case matchesAny(err, forbiddenErrors):
		return utils.SendError(c, fiber.StatusForbidden, err.Error()), true
	}
	return nil, false
}
