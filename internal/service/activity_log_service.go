package service

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/rs/zerolog"
	"gorm.io/datatypes"

	"github.com/noah-isme/levelup-api/internal/dto"
	"github.com/noah-isme/levelup-api/internal/models"
	"github.com/noah-isme/levelup-api/internal/repository"
)

// ActivityActor represents the authenticated user performing an action.
type ActivityActor struct {
	ID   uint
	Role string
}

// ActivityEntry captures the details required to persist an audit entry.
type ActivityEntry struct {
	ActorID    uint
	ActorRole  string
	Action     string
	EntityType string
	EntityID   *uint
	Metadata   map[string]interface{}
}

// ActivityRecorder defines behaviour for recording audit entries.
type ActivityRecorder interface {
	Record(ctx context.Context, entry ActivityEntry) (dto.ActivityLogResponse, error)
}

// ActivityLogService records and lists the audit trail shown to admins.
type ActivityLogService interface {
	ActivityRecorder
	List(ctx context.Context, req dto.ActivityLogListRequest) (dto.ActivityLogListResponse, error)
}

type activityLogService struct {
	repo   repository.ActivityLogRepository
	logger zerolog.Logger
}

// NewActivityLogService constructs the audit log service.
func NewActivityLogService(repo repository.ActivityLogRepository, logger zerolog.Logger) ActivityLogService {
	return &activityLogService{
		repo:   repo,
		logger: logger.With().Str("component", "activity_log_service").Logger(),
	}
}

func (s *activityLogService) Record(ctx context.Context, entry ActivityEntry) (dto.ActivityLogResponse, error) {
	if strings.TrimSpace(entry.Action) == "" {
		return dto.ActivityLogResponse{}, fmt.Errorf("action is required")
	}
	if strings.TrimSpace(entry.EntityType) == "" {
		return dto.ActivityLogResponse{}, fmt.Errorf("entity type is required")
	}

	model := models.ActivityLog{
		ActorID:    entry.ActorID,
		ActorRole:  normalizeRole(entry.ActorRole),
		Action:     strings.ToLower(strings.TrimSpace(entry.Action)),
		EntityType: strings.ToLower(strings.TrimSpace(entry.EntityType)),
		EntityID:   entry.EntityID,
		Metadata:   sanitizeMetadata(entry.Metadata),
	}

	if err := s.repo.Create(ctx, &model); err != nil {
		s.logger.Error().Err(err).Msg("failed to persist activity log")
		return dto.ActivityLogResponse{}, err
	}

	return dto.NewActivityLogResponse(model), nil
}

func (s *activityLogService) List(ctx context.Context, req dto.ActivityLogListRequest) (dto.ActivityLogListResponse, error) {
	filter := repository.ActivityLogFilter{
		Page:       req.Page,
		PageSize:   req.PageSize,
		Action:     strings.TrimSpace(req.Action),
		EntityType: strings.TrimSpace(req.EntityType),
	}
	if req.ActorID > 0 {
		filter.ActorID = &req.ActorID
	}
	if req.EntityID > 0 {
		filter.EntityID = &req.EntityID
	}
	filter.Since = req.Since

	entries, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return dto.ActivityLogListResponse{}, err
	}

	responses := make([]dto.ActivityLogResponse, 0, len(entries))
	for _, entry := range entries {
		responses = append(responses, dto.NewActivityLogResponse(entry))
	}

	pagination := dto.PaginationMeta{
		Page:       maxInt(req.Page, 1),
		PageSize:   req.PageSize,
		TotalItems: total,
	}
	if req.PageSize > 0 {
		pagination.TotalPages = int(math.Ceil(float64(total) / float64(req.PageSize)))
	} else {
		pagination.TotalPages = 1
	}

	return dto.ActivityLogListResponse{Items: responses, Pagination: pagination}, nil
}

// record writes an audit entry and only logs failures; audit problems never fail the caller.
func record(ctx context.Context, recorder ActivityRecorder, logger zerolog.Logger, entry ActivityEntry) {
	if recorder == nil {
		return
	}
	if _, err := recorder.Record(ctx, entry); err != nil {
		logger.Warn().Err(err).Str("action", entry.Action).Msg("failed to record activity log")
	}
}

func sanitizeMetadata(metadata map[string]interface{}) datatypes.JSONMap {
	if metadata == nil {
		return datatypes.JSONMap{}
	}

	sanitized := datatypes.JSONMap{}
	for key, value := range metadata {
		lower := strings.ToLower(key)
		if strings.Contains(lower, "email") || strings.Contains(lower, "token") ||
			strings.Contains(lower, "password") || strings.Contains(lower, "rut") {
			sanitized[key] = "***"
			continue
		}
		sanitized[key] = value
	}
	return sanitized
}

func normalizeRole(role string) string {
	r := strings.ToLower(strings.TrimSpace(role))
	if r == "" {
		return "system"
	}
	return r
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func uintPtr(v uint) *uint {
	return &v
}
