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

func TestAdminServiceDashboardCachesKPIs(t *testing.T) {
	db := newTestDB(t)
	users := repository.NewUserRepository(db)
	academic := repository.NewAcademicRepository(db)
	activities := repository.NewActivityRepository(db)
	cache, mr := newTestRedis(t)

	svc := NewAdminService(db, users, academic, activities, cache, time.Minute, testValidator(), &recorderStub{}, testLogger())
	ctx := context.Background()

	createUser(t, users, models.RoleStudent, "alumno1")
	teacher := createUser(t, users, models.RoleTeacher, "profe1")
	require.NoError(t, academic.CreateCourse(ctx, &models.Course{Level: 4, Letter: "A"}))
	require.NoError(t, activities.Create(ctx, &models.Activity{Title: "Sumas", TeacherID: teacher.ID}))

	first, err := svc.Dashboard(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(1), first.Students)
	require.Equal(t, int64(1), first.Teachers)
	require.Equal(t, int64(1), first.Courses)
	require.Equal(t, int64(1), first.Activities)
	require.Equal(t, "ok", first.Health.Database.Status)
	require.Equal(t, "ok", first.Health.Redis.Status)
	require.True(t, mr.Exists(adminDashboardCacheKey))

	createUser(t, users, models.RoleStudent, "alumno2")

	cached, err := svc.Dashboard(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(1), cached.Students)

	mr.Del(adminDashboardCacheKey)
	fresh, err := svc.Dashboard(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(2), fresh.Students)
}

func TestAdminServiceHealthReportsMissingRedis(t *testing.T) {
	db := newTestDB(t)
	svc := NewAdminService(db, repository.NewUserRepository(db), repository.NewAcademicRepository(db), repository.NewActivityRepository(db), nil, 0, testValidator(), nil, testLogger())

	report := svc.Health(context.Background())
	require.Equal(t, "ok", report.Database.Status)
	require.Equal(t, "error", report.Redis.Status)
	require.Contains(t, report.Redis.Error, "not configured")
}

func TestAdminServiceDeleteUserGuards(t *testing.T) {
	db := newTestDB(t)
	users := repository.NewUserRepository(db)
	activities := repository.NewActivityRepository(db)
	recorder := &recorderStub{}
	svc := NewAdminService(db, users, repository.NewAcademicRepository(db), activities, nil, 0, testValidator(), recorder, testLogger())
	ctx := context.Background()

	admin := createUser(t, users, models.RoleAdmin, "admin")
	actor := ActivityActor{ID: admin.ID, Role: admin.Role}
	teacher := createUser(t, users, models.RoleTeacher, "dueño")
	student := createUser(t, users, models.RoleStudent, "borrable")
	require.NoError(t, activities.Create(ctx, &models.Activity{Title: "Propia", TeacherID: teacher.ID}))

	require.ErrorIs(t, svc.DeleteUser(ctx, admin.ID, actor), ErrForbidden)
	require.ErrorIs(t, svc.DeleteUser(ctx, teacher.ID, actor), ErrUserInUse)
	require.ErrorIs(t, svc.DeleteUser(ctx, 999, actor), ErrUserNotFound)

	require.NoError(t, svc.DeleteUser(ctx, student.ID, actor))
	_, err := users.GetByID(ctx, student.ID)
	require.Error(t, err)
	require.Equal(t, []string{"user.deleted"}, recorder.actions())
}

func TestAdminServiceListsAndUpdatesUsers(t *testing.T) {
	db := newTestDB(t)
	users := repository.NewUserRepository(db)
	academic := repository.NewAcademicRepository(db)
	svc := NewAdminService(db, users, academic, repository.NewActivityRepository(db), nil, 0, testValidator(), &recorderStub{}, testLogger())
	ctx := context.Background()

	admin := createUser(t, users, models.RoleAdmin, "admin")
	createUser(t, users, models.RoleTeacher, "profe")
	student := createUser(t, users, models.RoleStudent, "alumno")
	loose := createUser(t, users, models.RoleStudent, "sin_curso")

	course := models.Course{Level: 7, Letter: "B"}
	require.NoError(t, academic.CreateCourse(ctx, &course))
	require.NoError(t, academic.CreateEnrollment(ctx, &models.Enrollment{StudentID: student.ID, CourseID: course.ID}))

	teachers, err := svc.ListTeachers(ctx)
	require.NoError(t, err)
	require.Len(t, teachers, 1)

	all, err := svc.ListStudents(ctx, dto.AdminStudentListRequest{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	courses := map[uint]string{}
	for _, row := range all {
		courses[row.ID] = row.Course
	}
	require.Equal(t, "7° Básico B", courses[student.ID])
	require.Equal(t, "", courses[loose.ID])

	filtered, err := svc.ListStudents(ctx, dto.AdminStudentListRequest{CourseID: course.ID})
	require.NoError(t, err)
	require.Len(t, filtered, 1)

	updated, err := svc.UpdateUser(ctx, student.ID, dto.AdminUserUpdateRequest{
		FirstName: "Ana",
		LastName:  "Pérez",
		Email:     "ana.perez@levelup.test",
	}, ActivityActor{ID: admin.ID, Role: admin.Role})
	require.NoError(t, err)
	require.Equal(t, "ana.perez@levelup.test", updated.Email)

	_, err = svc.UpdateUser(ctx, student.ID, dto.AdminUserUpdateRequest{
		FirstName: "Ana",
		LastName:  "Pérez",
		Email:     "profe@levelup.test",
	}, ActivityActor{ID: admin.ID, Role: admin.Role})
	require.ErrorIs(t, err, ErrDuplicateEmail)
}
