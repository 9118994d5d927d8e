package handler_test

import (
	"context"
	"net/http"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/levelup-api/internal/dto"
	"github.com/noah-isme/levelup-api/internal/handler"
	"github.com/noah-isme/levelup-api/internal/models"
	"github.com/noah-isme/levelup-api/internal/service"
)

type stubAcademicService struct {
	service.AcademicService
	validate  *validator.Validate
	createErr error
	deleteErr error
	lastActor service.ActivityActor
	courseID  *uint
}

func (s *stubAcademicService) CreateCourse(_ context.Context, req dto.CourseRequest, actor service.ActivityActor) (dto.CourseResponse, error) {
	s.lastActor = actor
	if err := s.validate.Struct(req); err != nil {
		return dto.CourseResponse{}, err
	}
	if s.createErr != nil {
		return dto.CourseResponse{}, s.createErr
	}
	course := models.Course{ID: 3, Level: req.Level, Letter: req.Letter}
	return dto.NewCourseResponse(course), nil
}

func (s *stubAcademicService) DeleteEnrollment(_ context.Context, _ uint, actor service.ActivityActor) error {
	s.lastActor = actor
	return s.deleteErr
}

func (s *stubAcademicService) ListEnrollments(_ context.Context, courseID *uint) ([]dto.EnrollmentResponse, error) {
	s.courseID = courseID
	return []dto.EnrollmentResponse{}, nil
}

func newAcademicApp(svc service.AcademicService) *fiber.App {
	app := fiber.New()
	asUser(app, 1, models.RoleAdmin)
	handler.NewAcademicHandler(svc, zerolog.Nop()).Register(app.Group("/api/v2/admin"))
	return app
}

func TestAcademicHandlerCreateCourse(t *testing.T) {
	svc := &stubAcademicService{validate: validator.New()}
	app := newAcademicApp(svc)

	resp, err := app.Test(jsonRequest(t, http.MethodPost, "/api/v2/admin/courses", dto.CourseRequest{Level: 4, Letter: "A"}))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	var body struct {
		Data dto.CourseResponse `json:"data"`
	}
	decodeResponse(t, resp, &body)
	require.Equal(t, "4° Básico A", body.Data.Name)
	require.Equal(t, service.ActivityActor{ID: 1, Role: models.RoleAdmin}, svc.lastActor)
}

func TestAcademicHandlerValidationDetails(t *testing.T) {
	app := newAcademicApp(&stubAcademicService{validate: validator.New()})

	resp, err := app.Test(jsonRequest(t, http.MethodPost, "/api/v2/admin/courses", dto.CourseRequest{Level: 12, Letter: "AB"}))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusUnprocessableEntity, resp.StatusCode)

	var body envelope
	decodeResponse(t, resp, &body)
	require.Equal(t, "validation failed", body.Message)
	require.Equal(t, "max=8", body.Details["level"])
	require.Equal(t, "len=1", body.Details["letter"])
}

func TestAcademicHandlerErrorMapping(t *testing.T) {
	cases := []struct {
		name   string
		svc    *stubAcademicService
		method string
		path   string
		status int
	}{
		{name: "duplicate course", svc: &stubAcademicService{createErr: service.ErrCourseExists}, method: http.MethodPost, path: "/api/v2/admin/courses", status: fiber.StatusConflict},
		{name: "missing enrollment", svc: &stubAcademicService{deleteErr: service.ErrRecordNotFound}, method: http.MethodDelete, path: "/api/v2/admin/enrollments/9", status: fiber.StatusNotFound},
		{name: "field error", svc: &stubAcademicService{createErr: &service.FieldError{Field: "letter", Message: "must be a letter"}}, method: http.MethodPost, path: "/api/v2/admin/courses", status: fiber.StatusUnprocessableEntity},
		{name: "bad identifier", svc: &stubAcademicService{}, method: http.MethodDelete, path: "/api/v2/admin/enrollments/abc", status: fiber.StatusBadRequest},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tc.svc.validate = validator.New()
			app := newAcademicApp(tc.svc)

			resp, err := app.Test(jsonRequest(t, tc.method, tc.path, dto.CourseRequest{Level: 4, Letter: "B"}))
			require.NoError(t, err)
			require.Equal(t, tc.status, resp.StatusCode)
		})
	}
}

func TestAcademicHandlerEnrollmentFilter(t *testing.T) {
	svc := &stubAcademicService{validate: validator.New()}
	app := newAcademicApp(svc)

	resp, err := app.Test(jsonRequest(t, http.MethodGet, "/api/v2/admin/enrollments?course_id=5", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.NotNil(t, svc.courseID)
	require.Equal(t, uint(5), *svc.courseID)
}
