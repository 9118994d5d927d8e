package middleware_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/levelup-api/internal/middleware"
)

const testSecret = "secret"

func signToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return token
}

func jwtApp() *fiber.App {
	app := fiber.New()
	app.Use(middleware.JWTProtected(testSecret))
	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"id": c.Locals("user_id"), "role": c.Locals("user_role")})
	})
	return app
}

func TestJWTProtectedAcceptsAccessToken(t *testing.T) {
	token := signToken(t, jwt.MapClaims{"sub": "7", "role": "Teacher", "typ": "access", "exp": time.Now().Add(time.Minute).Unix()})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := jwtApp().Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestJWTProtectedRejectsRefreshToken(t *testing.T) {
	token := signToken(t, jwt.MapClaims{"sub": "7", "role": "student", "typ": "refresh", "exp": time.Now().Add(time.Minute).Unix()})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := jwtApp().Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestJWTProtectedRejectsExpiredAndMissing(t *testing.T) {
	expired := signToken(t, jwt.MapClaims{"sub": "7", "typ": "access", "exp": time.Now().Add(-time.Minute).Unix()})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+expired)
	resp, err := jwtApp().Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	resp, err = jwtApp().Test(httptest.NewRequest(http.MethodGet, "/", nil), -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestJWTProtectedRequiresSubject(t *testing.T) {
	token := signToken(t, jwt.MapClaims{"role": "admin", "typ": "access", "exp": time.Now().Add(time.Minute).Unix()})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := jwtApp().Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestJWTProtectedReadsQueryTokenOnWebsocketUpgrade(t *testing.T) {
	token := signToken(t, jwt.MapClaims{"sub": "9", "role": "Student", "typ": "access", "exp": time.Now().Add(time.Minute).Unix()})

	req := httptest.NewRequest(http.MethodGet, "/?access_token="+token, nil)
	req.Header.Set("Upgrade", "websocket")
	resp, err := jwtApp().Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var body struct {
		ID   uint   `json:"id"`
		Role string `json:"role"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Equal(t, uint(9), body.ID)
	require.Equal(t, "student", body.Role)

	// Plain requests must still send the header.
	resp, err = jwtApp().Test(httptest.NewRequest(http.MethodGet, "/?access_token="+token, nil), -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestJWTProtectedRejectsOtherSchemes(t *testing.T) {
	token := signToken(t, jwt.MapClaims{"sub": "9", "typ": "access", "exp": time.Now().Add(time.Minute).Unix()})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Basic "+token)
	resp, err := jwtApp().Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}
