package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/levelup-api/internal/dto"
	"github.com/noah-isme/levelup-api/internal/models"
	"github.com/noah-isme/levelup-api/internal/repository"
)

type memoryActivityRepo struct {
	entries []models.ActivityLog
}

func (m *memoryActivityRepo) Create(ctx context.Context, entry *models.ActivityLog) error {
	entry.ID = uint(len(m.entries) + 1)
	entry.CreatedAt = time.Now()
	m.entries = append(m.entries, *entry)
	return nil
}

func (m *memoryActivityRepo) List(ctx context.Context, filter repository.ActivityLogFilter) ([]models.ActivityLog, int64, error) {
	return append([]models.ActivityLog(nil), m.entries...), int64(len(m.entries)), nil
}

func TestActivityLogServiceRecordMasksSensitiveFields(t *testing.T) {
	repo := &memoryActivityRepo{}
	svc := NewActivityLogService(repo, testLogger())

	entry, err := svc.Record(context.Background(), ActivityEntry{
		ActorID:    1,
		ActorRole:  "Admin",
		Action:     "User.Updated",
		EntityType: "user",
		EntityID:   uintPtr(5),
		Metadata: map[string]interface{}{
			"email": "alumno@example.com",
			"rut":   "12.345.678-5",
			"field": "first_name",
		},
	})
	require.NoError(t, err)
	require.Equal(t, "***", entry.Metadata["email"])
	require.Equal(t, "***", entry.Metadata["rut"])
	require.Equal(t, "first_name", entry.Metadata["field"])
	require.Equal(t, "user.updated", entry.Action)
	require.Equal(t, "admin", entry.ActorRole)
}

func TestActivityLogServiceRecordRequiresAction(t *testing.T) {
	svc := NewActivityLogService(&memoryActivityRepo{}, testLogger())

	_, err := svc.Record(context.Background(), ActivityEntry{EntityType: "course"})
	require.Error(t, err)
}

func TestActivityLogServiceListPaginates(t *testing.T) {
	repo := &memoryActivityRepo{}
	svc := NewActivityLogService(repo, testLogger())
	for i := 0; i < 3; i++ {
		_, err := svc.Record(context.Background(), ActivityEntry{Action: "course.created", EntityType: "course"})
		require.NoError(t, err)
	}

	result, err := svc.List(context.Background(), dto.ActivityLogListRequest{Page: 1, PageSize: 2})
	require.NoError(t, err)
	require.Len(t, result.Items, 3)
	require.Equal(t, int64(3), result.Pagination.TotalItems)
	require.Equal(t, 2, result.Pagination.TotalPages)
	require.Equal(t, "system", result.Items[0].ActorRole)
}
