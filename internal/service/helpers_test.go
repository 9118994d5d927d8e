package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/noah-isme/levelup-api/internal/database"
	"github.com/noah-isme/levelup-api/internal/dto"
	"github.com/noah-isme/levelup-api/internal/models"
	"github.com/noah-isme/levelup-api/internal/repository"
	"github.com/noah-isme/levelup-api/pkg/rut"
)

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}

func testValidator() *validator.Validate {
	return validator.New(validator.WithRequiredStructEnabled())
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:service_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	return db
}

func newTestRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return client, mr
}

var rutCounter = 10000000

func createUser(t *testing.T, users repository.UserRepository, role, username string) models.User {
	t.Helper()
	rutCounter++
	value := rut.FromNumber(rutCounter)
	user := models.User{
		Username:     username,
		FirstName:    username,
		LastName:     "Test",
		Email:        username + "@levelup.test",
		RUT:          &value,
		Role:         role,
		PasswordHash: "x",
	}
	require.NoError(t, users.CreateWithProfiles(context.Background(), &user))
	return user
}

// recorderStub collects audit entries in memory.
type recorderStub struct {
	entries []ActivityEntry
}

func (r *recorderStub) Record(ctx context.Context, entry ActivityEntry) (dto.ActivityLogResponse, error) {
	r.entries = append(r.entries, entry)
	return dto.ActivityLogResponse{Action: entry.Action}, nil
}

func (r *recorderStub) actions() []string {
	out := make([]string, 0, len(r.entries))
	for _, entry := range r.entries {
		out = append(out, entry.Action)
	}
	return out
}
