package handler_test

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/levelup-api/internal/dto"
	"github.com/noah-isme/levelup-api/internal/handler"
	"github.com/noah-isme/levelup-api/internal/service"
)

type mockSeedService struct {
	err       error
	lastToken string
	lastReq   dto.SeedCoursesRequest
	summary   dto.SeedSummary
}

func (m *mockSeedService) SeedRewards(_ context.Context, token string) (dto.SeedSummary, error) {
	m.lastToken = token
	return m.summary, m.err
}

func (m *mockSeedService) SeedReinforcement(_ context.Context, token string) (dto.SeedSummary, error) {
	m.lastToken = token
	return m.summary, m.err
}

func (m *mockSeedService) SeedCourses(_ context.Context, token string, req dto.SeedCoursesRequest) (dto.SeedSummary, error) {
	m.lastToken = token
	m.lastReq = req
	return m.summary, m.err
}

func newSeedApp(svc service.SeedService) *fiber.App {
	app := fiber.New()
	handler.NewSeedHandler(svc, validator.New(), zerolog.Nop()).Register(app.Group("/api/v2/seed"))
	return app
}

func TestSeedHandlerRewardsSuccess(t *testing.T) {
	svc := &mockSeedService{summary: dto.SeedSummary{Rewards: 12}}
	app := newSeedApp(svc)

	req := httptest.NewRequest(http.MethodPost, "/api/v2/seed/rewards", nil)
	req.Header.Set("X-Seed-Token", "secret")
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var body struct {
		Success bool            `json:"success"`
		Data    dto.SeedSummary `json:"data"`
	}
	decodeResponse(t, resp, &body)
	require.True(t, body.Success)
	require.Equal(t, 12, body.Data.Rewards)
	require.Equal(t, "secret", svc.lastToken)
}

func TestSeedHandlerCoursesPayload(t *testing.T) {
	svc := &mockSeedService{summary: dto.SeedSummary{Courses: 8, Students: 40}}
	app := newSeedApp(svc)

	resp, err := app.Test(jsonRequest(t, http.MethodPost, "/api/v2/seed/courses", dto.SeedCoursesRequest{StudentsPerCourse: 5}))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.Equal(t, 5, svc.lastReq.StudentsPerCourse)

	resp, err = app.Test(jsonRequest(t, http.MethodPost, "/api/v2/seed/courses", dto.SeedCoursesRequest{StudentsPerCourse: 99}))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	req := httptest.NewRequest(http.MethodPost, "/api/v2/seed/courses", bytes.NewReader([]byte("not json")))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	resp, err = app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestSeedHandlerErrorMapping(t *testing.T) {
	cases := []struct {
		name    string
		err     error
		status  int
		message string
	}{
		{name: "disabled", err: service.ErrSeedDisabled, status: fiber.StatusForbidden, message: "seeding disabled"},
		{name: "unauthorized", err: service.ErrSeedUnauthorized, status: fiber.StatusForbidden, message: "invalid token"},
		{name: "generic", err: errors.New("boom"), status: fiber.StatusInternalServerError, message: "seed operation failed"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			app := newSeedApp(&mockSeedService{err: tc.err})

			req := httptest.NewRequest(http.MethodPost, "/api/v2/seed/reinforcement", nil)
			req.Header.Set("X-Seed-Token", "wrong")
			resp, err := app.Test(req)
			require.NoError(t, err)
			require.Equal(t, tc.status, resp.StatusCode)

			var body envelope
			decodeResponse(t, resp, &body)
			require.False(t, body.Success)
			require.Equal(t, tc.message, body.Message)
		})
	}
}
