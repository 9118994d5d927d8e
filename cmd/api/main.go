package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/noah-isme/levelup-api/internal/config"
	"github.com/noah-isme/levelup-api/internal/database"
	"github.com/noah-isme/levelup-api/internal/handler"
	"github.com/noah-isme/levelup-api/internal/middleware"
	"github.com/noah-isme/levelup-api/internal/repository"
	"github.com/noah-isme/levelup-api/internal/router"
	"github.com/noah-isme/levelup-api/internal/service"
	"github.com/noah-isme/levelup-api/pkg/ai"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Str("service", cfg.AppName).Logger()

	db, err := database.Connect(cfg.DatabaseURL, database.PoolConfig{
		MaxOpenConns:    cfg.DatabaseMaxOpenConns,
		MaxIdleConns:    cfg.DatabaseMaxIdleConns,
		ConnMaxLifetime: 30 * time.Minute,
		Verbose:         !cfg.IsProduction() && cfg.DatabaseLogSQL,
	})
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}

	if err := database.Migrate(db); err != nil {
		log.Fatalf("failed to migrate database: %v", err)
	}

	redisClient, err := database.ConnectRedis(cfg.RedisURL)
	if err != nil {
		log.Fatalf("failed to connect to redis: %v", err)
	}
	defer redisClient.Close()

	var natsConn *nats.Conn
	if cfg.NATSURL != "" {
		natsConn, err = database.ConnectNATS(cfg.NATSURL, cfg.AppName)
		if err != nil {
			logger.Warn().Err(err).Msg("nats unavailable, reward events stay on redis")
		} else {
			defer natsConn.Drain()
		}
	}

	var hinter ai.Hinter
	if cfg.AIProvider == "openai" && cfg.OpenAIAPIKey != "" {
		openaiHinter, err := ai.NewOpenAIHinter(ai.OpenAIConfig{
			APIKey: cfg.OpenAIAPIKey,
			Model:  cfg.AIHintModel,
			Logger: logger,
		})
		if err != nil {
			logger.Warn().Err(err).Msg("ai hints disabled")
		} else {
			hinter = openaiHinter
		}
	}

	validate := validator.New(validator.WithRequiredStructEnabled())

	userRepo := repository.NewUserRepository(db)
	academicRepo := repository.NewAcademicRepository(db)
	activityRepo := repository.NewActivityRepository(db)
	submissionRepo := repository.NewSubmissionRepository(db)
	gamificationRepo := repository.NewGamificationRepository(db)
	activityLogRepo := repository.NewActivityLogRepository(db)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	notifier := service.NewRewardNotifier(redisClient, cfg.EventsChannel, natsConn, logger)
	notifier.Start(ctx)

	activityLogService := service.NewActivityLogService(activityLogRepo, logger)
	authService := service.NewAuthService(userRepo, validate, service.TokenConfig{
		AccessSecret:  cfg.JWTSecret,
		RefreshSecret: cfg.JWTRefreshSecret,
		AccessTTL:     cfg.AccessTokenTTL,
		RefreshTTL:    cfg.RefreshTokenTTL,
	}, activityLogService, logger)
	academicService := service.NewAcademicService(academicRepo, userRepo, validate, activityLogService, logger)
	adminService := service.NewAdminService(db, userRepo, academicRepo, activityRepo, redisClient, cfg.DashboardCacheTTL, validate, activityLogService, logger)
	teacherService := service.NewTeacherActivityService(activityRepo, submissionRepo, academicRepo, userRepo, validate, activityLogService, logger)
	gamificationService := service.NewGamificationService(gamificationRepo, userRepo, redisClient, cfg.RankingCacheTTL, notifier, logger)
	playService := service.NewPlayService(activityRepo, submissionRepo, academicRepo, userRepo, gamificationService, notifier, hinter, redisClient, validate, service.PlayConfig{}, logger)
	portalService := service.NewPortalService(userRepo, academicRepo, gamificationService, redisClient, cfg.DashboardCacheTTL, logger)
	seedService := service.NewSeedService(userRepo, academicRepo, gamificationRepo, cfg.SeedEnabled, cfg.SeedToken, logger)

	answerLimit := middleware.RateLimit("answers", cfg.AnswerRateLimitPerMinute, time.Minute)

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
	})

	middleware.Register(app, middleware.Config{
		Logger:         &logger,
		AllowedOrigins: cfg.CORSAllowedOrigins,
		AccessLog:      !cfg.IsProduction(),
	})
	router.Register(app, cfg, router.Dependencies{
		AuthHandler:            handler.NewAuthHandler(authService, logger),
		AcademicHandler:        handler.NewAcademicHandler(academicService, logger),
		AdminUserHandler:       handler.NewAdminUserHandler(adminService, authService, logger),
		AdminActivityHandler:   handler.NewAdminActivityHandler(activityLogService, logger),
		TeacherActivityHandler: handler.NewTeacherActivityHandler(teacherService, logger),
		StudentHandler:         handler.NewStudentHandler(playService, portalService, answerLimit, logger),
		GamificationHandler:    handler.NewGamificationHandler(gamificationService, notifier, logger),
		SeedHandler:            handler.NewSeedHandler(seedService, validate, logger),
		HealthProbe:            adminService.Health,
		JWTMiddleware:          middleware.JWTProtected(cfg.JWTSecret),
	})

	go func() {
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	waitForShutdown(ctx, app)
}

func waitForShutdown(shutdownCtx context.Context, app *fiber.App) {
	<-shutdownCtx.Done()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}

	log.Println("server stopped")
}
