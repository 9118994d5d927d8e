package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/noah-isme/levelup-api/internal/dto"
	"github.com/noah-isme/levelup-api/internal/models"
	"github.com/noah-isme/levelup-api/internal/observability"
	"github.com/noah-isme/levelup-api/internal/repository"
)

const portalCacheKey = "portal:student:%d"

// PortalService renders the student home page.
type PortalService interface {
	Portal(ctx context.Context, studentID uint) (dto.StudentPortalResponse, error)
	Invalidate(ctx context.Context, studentID uint)
}

type portalService struct {
	users        repository.UserRepository
	academic     repository.AcademicRepository
	gamification GamificationService
	cache        *redis.Client
	cacheTTL     time.Duration
	logger       zerolog.Logger
}

// NewPortalService builds the portal aggregator.
func NewPortalService(users repository.UserRepository, academic repository.AcademicRepository, gamificationService GamificationService, cache *redis.Client, ttl time.Duration, logger zerolog.Logger) PortalService {
	return &portalService{
		users:        users,
		academic:     academic,
		gamification: gamificationService,
		cache:        cache,
		cacheTTL:     ttl,
		logger:       logger.With().Str("component", "portal_service").Logger(),
	}
}

func (s *portalService) Portal(ctx context.Context, studentID uint) (dto.StudentPortalResponse, error) {
	cacheKey := fmt.Sprintf(portalCacheKey, studentID)

	if s.cache != nil {
		if cached, err := s.cache.Get(ctx, cacheKey).Result(); err == nil {
			var response dto.StudentPortalResponse
			if unmarshalErr := json.Unmarshal([]byte(cached), &response); unmarshalErr == nil {
				observability.CacheLookups().WithLabelValues("portal", "hit").Inc()
				response.CacheHit = true
				return response, nil
			}
		} else if !errors.Is(err, redis.Nil) {
			s.logger.Warn().Err(err).Msg("failed to read portal cache")
		}
		observability.CacheLookups().WithLabelValues("portal", "miss").Inc()
	}

	user, err := s.users.GetByID(ctx, studentID)
	if err != nil {
		return dto.StudentPortalResponse{}, mapNotFound(err, ErrUserNotFound)
	}

	response := dto.StudentPortalResponse{Student: dto.NewUserSummary(user)}

	level := 0
	enrollment, err := s.academic.LatestEnrollment(ctx, studentID)
	switch {
	case err == nil:
		response.Course = enrollment.Course.DisplayName()
		level = enrollment.Course.Level
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return dto.StudentPortalResponse{}, err
	}

	group, err := s.reinforcementGroup(ctx, studentID, level)
	if err != nil {
		return dto.StudentPortalResponse{}, err
	}
	if group != nil {
		teachers := &dto.ReinforcementTeachers{Level: group.Level}
		if group.MathTeacher != nil {
			summary := dto.NewUserSummary(*group.MathTeacher)
			teachers.MathTeacher = &summary
		}
		if group.EnglishTeacher != nil {
			summary := dto.NewUserSummary(*group.EnglishTeacher)
			teachers.EnglishTeacher = &summary
		}
		response.Reinforcement = teachers
	}

	summary, err := s.gamification.Summary(ctx, studentID)
	if err != nil {
		return dto.StudentPortalResponse{}, err
	}
	response.Gamification = summary

	if s.cache != nil {
		payload, err := json.Marshal(response)
		if err == nil {
			if err := s.cache.Set(ctx, cacheKey, payload, s.cacheTTL).Err(); err != nil {
				s.logger.Warn().Err(err).Msg("failed to store portal cache")
			}
		}
	}

	return response, nil
}

// reinforcementGroup prefers the student's own group, then the group of their course level.
func (s *portalService) reinforcementGroup(ctx context.Context, studentID uint, level int) (*models.ReinforcementGroup, error) {
	group, err := s.academic.GroupOfMember(ctx, studentID)
	if err == nil {
		return &group, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	if level == 0 {
		return nil, nil
	}

	group, err = s.academic.GetReinforcementGroup(ctx, level)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &group, nil
}

func (s *portalService) Invalidate(ctx context.Context, studentID uint) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Del(ctx, fmt.Sprintf(portalCacheKey, studentID)).Err(); err != nil {
		s.logger.Warn().Err(err).Uint("student_id", studentID).Msg("failed to invalidate portal cache")
	}
}
