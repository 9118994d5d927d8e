package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/noah-isme/levelup-api/internal/dto"
	"github.com/noah-isme/levelup-api/internal/models"
	"github.com/noah-isme/levelup-api/internal/observability"
	"github.com/noah-isme/levelup-api/internal/repository"
)

const (
	adminDashboardCacheKey = "dashboard:admin"
	healthProbeKey         = "levelup:health:probe"
)

// AdminService manages user accounts and the platform dashboard.
type AdminService interface {
	ListTeachers(ctx context.Context) ([]dto.UserSummary, error)
	ListStudents(ctx context.Context, req dto.AdminStudentListRequest) ([]dto.AdminStudentResponse, error)
	UpdateUser(ctx context.Context, id uint, req dto.AdminUserUpdateRequest, actor ActivityActor) (dto.UserResponse, error)
	DeleteUser(ctx context.Context, id uint, actor ActivityActor) error
	Dashboard(ctx context.Context) (dto.AdminDashboardResponse, error)
	Health(ctx context.Context) dto.AdminHealthReport
}

type adminService struct {
	db         *gorm.DB
	users      repository.UserRepository
	academic   repository.AcademicRepository
	activities repository.ActivityRepository
	cache      *redis.Client
	cacheTTL   time.Duration
	validator  *validator.Validate
	activity   ActivityRecorder
	logger     zerolog.Logger
	now        func() time.Time
}

// NewAdminService constructs the admin service. db is only used for health probes.
func NewAdminService(db *gorm.DB, users repository.UserRepository, academic repository.AcademicRepository, activities repository.ActivityRepository, cache *redis.Client, cacheTTL time.Duration, validate *validator.Validate, activity ActivityRecorder, logger zerolog.Logger) AdminService {
	if cacheTTL <= 0 {
		cacheTTL = 5 * time.Minute
	}
	return &adminService{
		db:         db,
		users:      users,
		academic:   academic,
		activities: activities,
		cache:      cache,
		cacheTTL:   cacheTTL,
		validator:  validate,
		activity:   activity,
		logger:     logger.With().Str("component", "admin_service").Logger(),
		now:        time.Now,
	}
}

func (s *adminService) ListTeachers(ctx context.Context) ([]dto.UserSummary, error) {
	teachers, err := s.users.ListByRole(ctx, models.RoleTeacher)
	if err != nil {
		return nil, err
	}
	out := make([]dto.UserSummary, 0, len(teachers))
	for _, teacher := range teachers {
		out = append(out, dto.NewUserSummary(teacher))
	}
	return out, nil
}

func (s *adminService) ListStudents(ctx context.Context, req dto.AdminStudentListRequest) ([]dto.AdminStudentResponse, error) {
	var courseID *uint
	if req.CourseID > 0 {
		courseID = &req.CourseID
	}

	students, err := s.users.ListStudents(ctx, courseID)
	if err != nil {
		return nil, err
	}
	enrollments, err := s.academic.ListEnrollments(ctx, courseID)
	if err != nil {
		return nil, err
	}

	// enrollments come newest first, so the first one seen is the current course.
	courses := make(map[uint]string, len(enrollments))
	for _, enrollment := range enrollments {
		if _, seen := courses[enrollment.StudentID]; !seen {
			courses[enrollment.StudentID] = enrollment.Course.DisplayName()
		}
	}

	out := make([]dto.AdminStudentResponse, 0, len(students))
	for _, student := range students {
		out = append(out, dto.AdminStudentResponse{
			UserSummary: dto.NewUserSummary(student),
			Course:      courses[student.ID],
		})
	}
	return out, nil
}

func (s *adminService) UpdateUser(ctx context.Context, id uint, req dto.AdminUserUpdateRequest, actor ActivityActor) (dto.UserResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return dto.UserResponse{}, err
	}

	user, err := updateUserIdentity(ctx, s.users, id, req.FirstName, req.LastName, req.Email)
	if err != nil {
		return dto.UserResponse{}, err
	}

	record(ctx, s.activity, s.logger, ActivityEntry{
		ActorID:    actor.ID,
		ActorRole:  actor.Role,
		Action:     "user.updated",
		EntityType: "user",
		EntityID:   uintPtr(id),
		Metadata:   map[string]interface{}{"email": user.Email},
	})
	return dto.NewUserResponse(user), nil
}

// DeleteUser removes an account. Teachers that still own activities cannot be deleted.
func (s *adminService) DeleteUser(ctx context.Context, id uint, actor ActivityActor) error {
	if id == actor.ID {
		return ErrForbidden
	}

	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return mapNotFound(err, ErrUserNotFound)
	}

	owned, err := s.users.OwnedActivities(ctx, id)
	if err != nil {
		return err
	}
	if owned > 0 {
		return ErrUserInUse
	}

	if err := s.users.Delete(ctx, id); err != nil {
		return mapNotFound(err, ErrUserNotFound)
	}

	record(ctx, s.activity, s.logger, ActivityEntry{
		ActorID:    actor.ID,
		ActorRole:  actor.Role,
		Action:     "user.deleted",
		EntityType: "user",
		EntityID:   uintPtr(id),
		Metadata:   map[string]interface{}{"role": user.Role},
	})
	return nil
}

func (s *adminService) Dashboard(ctx context.Context) (dto.AdminDashboardResponse, error) {
	var response dto.AdminDashboardResponse
	cached := false

	if s.cache != nil {
		if raw, err := s.cache.Get(ctx, adminDashboardCacheKey).Result(); err == nil {
			if json.Unmarshal([]byte(raw), &response) == nil {
				cached = true
				observability.CacheLookups().WithLabelValues("admin_dashboard", "hit").Inc()
			}
		} else if !errors.Is(err, redis.Nil) {
			s.logger.Warn().Err(err).Msg("failed to read admin dashboard cache")
		}
	}

	if !cached {
		if s.cache != nil {
			observability.CacheLookups().WithLabelValues("admin_dashboard", "miss").Inc()
		}
		kpis, err := s.computeKPIs(ctx)
		if err != nil {
			return dto.AdminDashboardResponse{}, err
		}
		response = kpis
		if s.cache != nil {
			if payload, err := json.Marshal(response); err == nil {
				if err := s.cache.Set(ctx, adminDashboardCacheKey, payload, s.cacheTTL).Err(); err != nil {
					s.logger.Warn().Err(err).Msg("failed to store admin dashboard cache")
				}
			}
		}
	}

	response.Health = s.Health(ctx)
	return response, nil
}

func (s *adminService) computeKPIs(ctx context.Context) (dto.AdminDashboardResponse, error) {
	students, err := s.users.CountByRole(ctx, models.RoleStudent)
	if err != nil {
		return dto.AdminDashboardResponse{}, err
	}
	teachers, err := s.users.CountByRole(ctx, models.RoleTeacher)
	if err != nil {
		return dto.AdminDashboardResponse{}, err
	}
	courses, err := s.academic.Count(ctx, &models.Course{})
	if err != nil {
		return dto.AdminDashboardResponse{}, err
	}
	subjects, err := s.academic.Count(ctx, &models.Subject{})
	if err != nil {
		return dto.AdminDashboardResponse{}, err
	}
	activities, err := s.activities.CountByTeacher(ctx, nil)
	if err != nil {
		return dto.AdminDashboardResponse{}, err
	}

	return dto.AdminDashboardResponse{
		Students:    students,
		Teachers:    teachers,
		Courses:     courses,
		Subjects:    subjects,
		Activities:  activities,
		GeneratedAt: s.now().UTC(),
	}, nil
}

// Health probes the database with a ping and redis with a set/get round trip.
func (s *adminService) Health(ctx context.Context) dto.AdminHealthReport {
	return dto.AdminHealthReport{
		Database: s.probe(func() error {
			if s.db == nil {
				return errors.New("database not configured")
			}
			sqlDB, err := s.db.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		}),
		Redis: s.probe(func() error {
			if s.cache == nil {
				return errors.New("redis not configured")
			}
			value := fmt.Sprintf("%d", s.now().UnixNano())
			if err := s.cache.Set(ctx, healthProbeKey, value, 10*time.Second).Err(); err != nil {
				return err
			}
			got, err := s.cache.Get(ctx, healthProbeKey).Result()
			if err != nil {
				return err
			}
			if got != value {
				return errors.New("redis returned a stale probe value")
			}
			return nil
		}),
	}
}

func (s *adminService) probe(check func() error) dto.ProbeResult {
	start := time.Now()
	err := check()
	result := dto.ProbeResult{Status: "ok", LatencyMS: float64(time.Since(start).Microseconds()) / 1000}
	if err != nil {
		result.Status = "error"
		result.Error = err.Error()
	}
	return result
}
