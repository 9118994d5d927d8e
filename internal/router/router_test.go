package router_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/levelup-api/internal/config"
	"github.com/noah-isme/levelup-api/internal/dto"
	"github.com/noah-isme/levelup-api/internal/handler"
	"github.com/noah-isme/levelup-api/internal/middleware"
	"github.com/noah-isme/levelup-api/internal/models"
	"github.com/noah-isme/levelup-api/internal/router"
	"github.com/noah-isme/levelup-api/internal/service"
	"github.com/noah-isme/levelup-api/pkg/token"
)

const testSecret = "router-secret"

type stubPlayService struct {
	service.PlayService
}

func (stubPlayService) List(context.Context, uint, string) (dto.StudentActivityListResponse, error) {
	return dto.StudentActivityListResponse{}, nil
}

func newTestApp() *fiber.App {
	app := fiber.New()
	cfg := config.Config{AppName: "levelup-api", AppEnv: "test"}
	router.Register(app, cfg, router.Dependencies{
		StudentHandler: handler.NewStudentHandler(stubPlayService{}, nil, nil, zerolog.Nop()),
		JWTMiddleware:  middleware.JWTProtected(testSecret),
	})
	return app
}

func bearer(t *testing.T, userID uint, role, typ string) string {
	t.Helper()
	signed, err := token.Sign(userID, role, typ, testSecret, time.Now(), time.Hour)
	require.NoError(t, err)
	return "Bearer " + signed
}

func TestRouterGuardsStudentRoutes(t *testing.T) {
	app := newTestApp()

	cases := []struct {
		name   string
		auth   string
		status int
	}{
		{name: "anonymous", status: fiber.StatusUnauthorized},
		{name: "refresh token", auth: bearer(t, 5, models.RoleStudent, token.TypeRefresh), status: fiber.StatusUnauthorized},
		{name: "teacher", auth: bearer(t, 6, models.RoleTeacher, token.TypeAccess), status: fiber.StatusForbidden},
		{name: "student", auth: bearer(t, 5, models.RoleStudent, token.TypeAccess), status: fiber.StatusOK},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v2/student/activities", nil)
			if tc.auth != "" {
				req.Header.Set(fiber.HeaderAuthorization, tc.auth)
			}
			resp, err := app.Test(req)
			require.NoError(t, err)
			require.Equal(t, tc.status, resp.StatusCode)
		})
	}
}

func TestRouterPublicEndpoints(t *testing.T) {
	app := newTestApp()

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.Equal(t, "levelup-api", resp.Header.Get("X-Application"))

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/api/v2/admin/courses", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusUnauthorized, resp.StatusCode, "admin group is guarded even without handlers")
}
