package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/levelup-api/internal/dto"
	"github.com/noah-isme/levelup-api/internal/repository"
)

type seedFixture struct {
	svc      SeedService
	users    repository.UserRepository
	academic repository.AcademicRepository
	rewards  repository.GamificationRepository
}

func newSeedFixture(t *testing.T, enabled bool, token string) seedFixture {
	t.Helper()
	db := newTestDB(t)
	users := repository.NewUserRepository(db)
	academic := repository.NewAcademicRepository(db)
	rewards := repository.NewGamificationRepository(db)
	return seedFixture{
		svc:      NewSeedService(users, academic, rewards, enabled, token, testLogger()),
		users:    users,
		academic: academic,
		rewards:  rewards,
	}
}

func TestSeedServiceAuthorization(t *testing.T) {
	disabled := newSeedFixture(t, false, "secret")
	_, err := disabled.svc.SeedRewards(context.Background(), "secret")
	require.ErrorIs(t, err, ErrSeedDisabled)

	enabled := newSeedFixture(t, true, "secret")
	_, err = enabled.svc.SeedRewards(context.Background(), "wrong")
	require.ErrorIs(t, err, ErrSeedUnauthorized)

	blank := newSeedFixture(t, true, "")
	_, err = blank.svc.SeedRewards(context.Background(), "")
	require.ErrorIs(t, err, ErrSeedUnauthorized)
}

func TestSeedServiceRewardsAreIdempotent(t *testing.T) {
	fx := newSeedFixture(t, true, "secret")
	ctx := context.Background()

	first, err := fx.svc.SeedRewards(ctx, " secret ")
	require.NoError(t, err)
	require.Equal(t, len(rewardCatalog), first.Rewards)

	second, err := fx.svc.SeedRewards(ctx, "secret")
	require.NoError(t, err)
	require.Zero(t, second.Rewards)

	rewards, err := fx.rewards.ListRewards(ctx)
	require.NoError(t, err)
	require.Len(t, rewards, len(rewardCatalog))
}

func TestSeedServiceReinforcementSetup(t *testing.T) {
	fx := newSeedFixture(t, true, "secret")
	ctx := context.Background()

	summary, err := fx.svc.SeedReinforcement(ctx, "secret")
	require.NoError(t, err)
	require.Equal(t, dto.SeedSummary{
		Courses:            4,
		Subjects:           2,
		Teachers:           2,
		Students:           20,
		Enrollments:        20,
		TeacherAssignments: 2,
		Groups:             2,
	}, summary)

	group, err := fx.academic.GetReinforcementGroup(ctx, 4)
	require.NoError(t, err)
	require.Len(t, group.Members, reinforcementCapacity)
	require.NotNil(t, group.MathTeacher)
	require.Equal(t, "prof_mate", group.MathTeacher.Username)

	student, err := fx.users.GetByEmail(ctx, "al4A1@levelup.test")
	require.NoError(t, err)
	require.NotNil(t, student.RUT)
	require.NoError(t, bcrypt.CompareHashAndPassword([]byte(student.PasswordHash), []byte(seedPassword)))

	again, err := fx.svc.SeedReinforcement(ctx, "secret")
	require.NoError(t, err)
	require.Equal(t, dto.SeedSummary{}, again)
}

func TestSeedServiceCourses(t *testing.T) {
	fx := newSeedFixture(t, true, "secret")
	ctx := context.Background()

	summary, err := fx.svc.SeedCourses(ctx, "secret", dto.SeedCoursesRequest{StudentsPerCourse: 1})
	require.NoError(t, err)
	require.Equal(t, 6, summary.Courses)
	require.Equal(t, 3, summary.Subjects)
	require.Equal(t, 6, summary.Students)
	require.Equal(t, 6, summary.Enrollments)

	subject, err := fx.academic.GetSubjectByCode(ctx, "CIENCIAS")
	require.NoError(t, err)
	require.Equal(t, "ciencias-naturales", subject.Slug)

	student, err := fx.users.GetByEmail(ctx, "7b_alumno01@levelup.test")
	require.NoError(t, err)
	require.Equal(t, "7° Básico B - 01", student.LastName)

	again, err := fx.svc.SeedCourses(ctx, "secret", dto.SeedCoursesRequest{StudentsPerCourse: 1})
	require.NoError(t, err)
	require.Zero(t, again.Students)
	require.Zero(t, again.Courses)
}
