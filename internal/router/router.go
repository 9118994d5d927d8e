package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/levelup-api/internal/config"
	"github.com/noah-isme/levelup-api/internal/handler"
	"github.com/noah-isme/levelup-api/internal/middleware"
	"github.com/noah-isme/levelup-api/internal/models"
	"github.com/noah-isme/levelup-api/internal/observability"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	AuthHandler            *handler.AuthHandler
	AcademicHandler        *handler.AcademicHandler
	AdminUserHandler       *handler.AdminUserHandler
	AdminActivityHandler   *handler.AdminActivityHandler
	TeacherActivityHandler *handler.TeacherActivityHandler
	StudentHandler         *handler.StudentHandler
	GamificationHandler    *handler.GamificationHandler
	SeedHandler            *handler.SeedHandler
	HealthProbe            handler.HealthProbe
	JWTMiddleware          fiber.Handler
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	app.Get("/metrics", observability.MetricsHandler())

	// v1 only carries the health probe.
	api := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	api.Get("/health", handler.HealthCheck(cfg, deps.HealthProbe))

	jwtMiddleware := deps.JWTMiddleware
	if jwtMiddleware == nil {
		jwtMiddleware = func(c *fiber.Ctx) error { return c.Next() }
	}

	v2 := app.Group("/api/v2")

	if deps.AuthHandler != nil {
		deps.AuthHandler.Register(v2.Group("/auth"))
		deps.AuthHandler.RegisterProfile(v2.Group("/profile", jwtMiddleware, middleware.Guard(middleware.ScopeAuthenticated)))
	}

	admin := v2.Group("/admin", jwtMiddleware, middleware.RequireRole(models.RoleAdmin))
	if deps.AcademicHandler != nil {
		deps.AcademicHandler.Register(admin)
	}
	if deps.AdminUserHandler != nil {
		deps.AdminUserHandler.Register(admin)
	}
	if deps.AdminActivityHandler != nil {
		deps.AdminActivityHandler.Register(admin.Group("/activity-logs"))
	}

	if deps.TeacherActivityHandler != nil {
		teacher := v2.Group("/teacher", jwtMiddleware, middleware.Guard(middleware.ScopeStaff))
		deps.TeacherActivityHandler.Register(teacher)
	}

	if deps.StudentHandler != nil {
		student := v2.Group("/student", jwtMiddleware, middleware.RequireRole(models.RoleStudent))
		deps.StudentHandler.Register(student)
	}

	if deps.GamificationHandler != nil {
		gamification := v2.Group("/gamification", jwtMiddleware, middleware.Guard(middleware.ScopeAuthenticated))
		deps.GamificationHandler.Register(gamification)
	}

	// Seed routes authenticate with X-Seed-Token instead of a JWT.
	if deps.SeedHandler != nil {
		deps.SeedHandler.Register(v2.Group("/seed"))
	}
}
