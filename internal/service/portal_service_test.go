package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/levelup-api/internal/models"
	"github.com/noah-isme/levelup-api/internal/repository"
)

func TestPortalServiceAggregatesAndCaches(t *testing.T) {
	db := newTestDB(t)
	cache, mr := newTestRedis(t)
	users := repository.NewUserRepository(db)
	academic := repository.NewAcademicRepository(db)
	rewards := repository.NewGamificationRepository(db)
	gamificationSvc := NewGamificationService(rewards, users, cache, 0, &notifierStub{}, testLogger())
	svc := NewPortalService(users, academic, gamificationSvc, cache, time.Minute, testLogger())
	ctx := context.Background()

	student := createUser(t, users, models.RoleStudent, "portal_alumno")
	mathTeacher := createUser(t, users, models.RoleTeacher, "prof_refuerzo")

	course := models.Course{Level: 4, Letter: "A"}
	require.NoError(t, academic.CreateCourse(ctx, &course))
	require.NoError(t, academic.CreateEnrollment(ctx, &models.Enrollment{StudentID: student.ID, CourseID: course.ID, EnrolledAt: time.Now()}))

	group := models.ReinforcementGroup{Level: 4, MathTeacherID: &mathTeacher.ID}
	require.NoError(t, academic.SaveReinforcementGroup(ctx, &group, nil))

	portal, err := svc.Portal(ctx, student.ID)
	require.NoError(t, err)
	require.False(t, portal.CacheHit)
	require.Equal(t, "4° Básico A", portal.Course)
	require.Equal(t, "portal_alumno", portal.Student.Username)
	require.NotNil(t, portal.Reinforcement)
	require.Equal(t, 4, portal.Reinforcement.Level)
	require.NotNil(t, portal.Reinforcement.MathTeacher)
	require.Equal(t, mathTeacher.ID, portal.Reinforcement.MathTeacher.ID)
	require.Nil(t, portal.Reinforcement.EnglishTeacher)
	require.True(t, mr.Exists(fmt.Sprintf(portalCacheKey, student.ID)))

	_, err = gamificationSvc.AddXP(ctx, student.ID, 50, XPOriginGame, 1)
	require.NoError(t, err)

	cached, err := svc.Portal(ctx, student.ID)
	require.NoError(t, err)
	require.True(t, cached.CacheHit)
	require.Zero(t, cached.Gamification.TotalXP)

	svc.Invalidate(ctx, student.ID)
	fresh, err := svc.Portal(ctx, student.ID)
	require.NoError(t, err)
	require.False(t, fresh.CacheHit)
	require.Equal(t, 50, fresh.Gamification.TotalXP)
}

func TestPortalServicePrefersOwnReinforcementGroup(t *testing.T) {
	db := newTestDB(t)
	users := repository.NewUserRepository(db)
	academic := repository.NewAcademicRepository(db)
	gamificationSvc := NewGamificationService(repository.NewGamificationRepository(db), users, nil, 0, nil, testLogger())
	svc := NewPortalService(users, academic, gamificationSvc, nil, 0, testLogger())
	ctx := context.Background()

	student := createUser(t, users, models.RoleStudent, "sin_curso")
	englishTeacher := createUser(t, users, models.RoleTeacher, "prof_ingles")
	group := models.ReinforcementGroup{Level: 5, EnglishTeacherID: &englishTeacher.ID}
	require.NoError(t, academic.SaveReinforcementGroup(ctx, &group, []uint{student.ID}))

	portal, err := svc.Portal(ctx, student.ID)
	require.NoError(t, err)
	require.Empty(t, portal.Course)
	require.NotNil(t, portal.Reinforcement)
	require.Equal(t, 5, portal.Reinforcement.Level)
	require.Equal(t, englishTeacher.ID, portal.Reinforcement.EnglishTeacher.ID)

	loner := createUser(t, users, models.RoleStudent, "solitario")
	portal, err = svc.Portal(ctx, loner.ID)
	require.NoError(t, err)
	require.Nil(t, portal.Reinforcement)

	_, err = svc.Portal(ctx, 999)
	require.ErrorIs(t, err, ErrUserNotFound)
}
