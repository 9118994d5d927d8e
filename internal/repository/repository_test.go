package repository

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/noah-isme/levelup-api/internal/database"
	"github.com/noah-isme/levelup-api/internal/models"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:repo_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	return db
}

func seedUser(t *testing.T, repo UserRepository, role, username, lastName string) models.User {
	t.Helper()
	user := models.User{
		Username:     username,
		FirstName:    username,
		LastName:     lastName,
		Email:        username + "@levelup.cl",
		Role:         role,
		PasswordHash: "hash",
	}
	require.NoError(t, repo.CreateWithProfiles(context.Background(), &user))
	return user
}

func seedActivity(t *testing.T, repo ActivityRepository, teacherID uint, title string, subjectID *uint, published bool) models.Activity {
	t.Helper()
	activity := models.Activity{Title: title, TeacherID: teacherID, SubjectID: subjectID, Published: published, AttemptsMax: 1}
	require.NoError(t, repo.Create(context.Background(), &activity))
	return activity
}

func TestUserRepositoryProfilesAndCleanup(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	users := NewUserRepository(db)
	academic := NewAcademicRepository(db)

	student := seedUser(t, users, models.RoleStudent, "sofia", "Rojas")
	teacher := seedUser(t, users, models.RoleTeacher, "marta", "Soto")

	var count int64
	require.NoError(t, db.Model(&models.StudentProfile{}).Where("user_id = ?", student.ID).Count(&count).Error)
	require.Equal(t, int64(1), count)
	require.NoError(t, db.Model(&models.TeacherProfile{}).Where("user_id = ?", teacher.ID).Count(&count).Error)
	require.Equal(t, int64(1), count)
	require.NoError(t, db.Model(&models.GamificationProfile{}).Count(&count).Error)
	require.Equal(t, int64(2), count)

	found, err := users.GetByEmail(ctx, "  SOFIA@levelup.cl ")
	require.NoError(t, err)
	require.Equal(t, student.ID, found.ID)

	taken, err := users.EmailExists(ctx, "Sofia@LevelUp.cl", 0)
	require.NoError(t, err)
	require.True(t, taken)
	taken, err = users.EmailExists(ctx, "sofia@levelup.cl", student.ID)
	require.NoError(t, err)
	require.False(t, taken)

	course := models.Course{Level: 4, Letter: "A"}
	require.NoError(t, academic.CreateCourse(ctx, &course))
	require.NoError(t, academic.CreateEnrollment(ctx, &models.Enrollment{StudentID: student.ID, CourseID: course.ID}))
	group := models.ReinforcementGroup{Level: 4, MathTeacherID: &teacher.ID}
	require.NoError(t, academic.SaveReinforcementGroup(ctx, &group, []uint{student.ID, teacher.ID}))
	require.Len(t, group.Members, 1, "only students join groups")
	member, err := academic.GroupOfMember(ctx, student.ID)
	require.NoError(t, err)
	require.Equal(t, 4, member.Level)
	require.Equal(t, "marta", member.MathTeacher.Username)

	inCourse, err := users.ListStudents(ctx, &course.ID)
	require.NoError(t, err)
	require.Len(t, inCourse, 1)

	require.NoError(t, users.Delete(ctx, student.ID))
	require.NoError(t, users.Delete(ctx, teacher.ID))
	require.ErrorIs(t, users.Delete(ctx, teacher.ID), gorm.ErrRecordNotFound)

	stored, err := academic.GetReinforcementGroup(ctx, 4)
	require.NoError(t, err)
	require.Nil(t, stored.MathTeacherID)
	require.Empty(t, stored.Members)

	require.NoError(t, db.Model(&models.Enrollment{}).Count(&count).Error)
	require.Zero(t, count)
}

func TestAcademicRepositoryCoursesSubjectsAndEnrollments(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	users := NewUserRepository(db)
	academic := NewAcademicRepository(db)
	activities := NewActivityRepository(db)

	for _, course := range []models.Course{{Level: 5, Letter: "B"}, {Level: 4, Letter: "B"}, {Level: 4, Letter: "A"}} {
		course := course
		require.NoError(t, academic.CreateCourse(ctx, &course))
	}
	courses, err := academic.ListCourses(ctx)
	require.NoError(t, err)
	require.Equal(t, "4° Básico A", courses[0].DisplayName())
	require.Equal(t, "5° Básico B", courses[2].DisplayName())

	exists, err := academic.CourseExists(ctx, 4, "A", 0)
	require.NoError(t, err)
	require.True(t, exists)
	exists, err = academic.CourseExists(ctx, 4, "A", courses[0].ID)
	require.NoError(t, err)
	require.False(t, exists)

	math := models.Subject{Name: "Matemáticas", Code: "MAT", Slug: "matematicas"}
	require.NoError(t, academic.CreateSubject(ctx, &math))
	byCode, err := academic.GetSubjectByCode(ctx, "mat")
	require.NoError(t, err)
	require.Equal(t, math.ID, byCode.ID)

	teacher := seedUser(t, users, models.RoleTeacher, "marta", "Soto")
	activity := seedActivity(t, activities, teacher.ID, "Fracciones", &math.ID, true)
	require.NoError(t, academic.CreateTeacherAssignment(ctx, &models.TeacherAssignment{TeacherID: teacher.ID, SubjectID: math.ID}))

	require.NoError(t, academic.DeleteSubject(ctx, math.ID))
	orphan, err := activities.GetByID(ctx, activity.ID, false)
	require.NoError(t, err)
	require.Nil(t, orphan.SubjectID)
	assigned, err := academic.TeacherAssignmentExists(ctx, teacher.ID, math.ID)
	require.NoError(t, err)
	require.False(t, assigned)

	student := seedUser(t, users, models.RoleStudent, "sofia", "Rojas")
	older := models.Enrollment{StudentID: student.ID, CourseID: courses[0].ID, EnrolledAt: time.Now().Add(-48 * time.Hour)}
	require.NoError(t, academic.CreateEnrollment(ctx, &older))
	newer := models.Enrollment{StudentID: student.ID, CourseID: courses[1].ID}
	require.NoError(t, academic.CreateEnrollment(ctx, &newer))

	latest, err := academic.LatestEnrollment(ctx, student.ID)
	require.NoError(t, err)
	require.Equal(t, courses[1].ID, latest.CourseID)
	require.Equal(t, "4° Básico B", latest.Course.DisplayName())

	loaded, err := academic.GetEnrollment(ctx, older.ID)
	require.NoError(t, err)
	require.Equal(t, "sofia", loaded.Student.Username)

	ids, err := academic.StudentIDsInCourses(ctx, []uint{courses[0].ID, courses[1].ID})
	require.NoError(t, err)
	require.Equal(t, []uint{student.ID}, ids)

	require.NoError(t, academic.DeleteCourse(ctx, courses[1].ID))
	_, err = academic.GetEnrollment(ctx, newer.ID)
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)
	require.ErrorIs(t, academic.DeleteEnrollment(ctx, newer.ID), gorm.ErrRecordNotFound)
}

func TestActivityRepositoryItemsAndAssignments(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	users := NewUserRepository(db)
	activities := NewActivityRepository(db)
	academic := NewAcademicRepository(db)

	teacher := seedUser(t, users, models.RoleTeacher, "marta", "Soto")
	other := seedUser(t, users, models.RoleTeacher, "pablo", "Vera")
	student := seedUser(t, users, models.RoleStudent, "sofia", "Rojas")

	lenguaje := models.Subject{Name: "Lenguaje", Code: "LEN", Slug: "lenguaje"}
	require.NoError(t, academic.CreateSubject(ctx, &lenguaje))

	published := seedActivity(t, activities, teacher.ID, "Comprensión", &lenguaje.ID, true)
	draft := seedActivity(t, activities, teacher.ID, "Borrador", &lenguaje.ID, false)
	seedActivity(t, activities, other.ID, "Ajena", nil, true)

	for i := 0; i < 3; i++ {
		position, err := activities.NextItemPosition(ctx, published.ID)
		require.NoError(t, err)
		require.Equal(t, i+1, position)
		require.NoError(t, activities.CreateItem(ctx, &models.ActivityItem{
			ActivityID: published.ID,
			Position:   position,
			Type:       "trivia",
			Statement:  fmt.Sprintf("Pregunta %d", position),
		}))
	}

	loaded, err := activities.GetByID(ctx, published.ID, true)
	require.NoError(t, err)
	require.Len(t, loaded.Items, 3)
	require.Equal(t, "Pregunta 1", loaded.Items[0].Statement)
	require.Equal(t, "Lenguaje", loaded.Subject.Name)

	_, err = activities.GetItem(ctx, draft.ID, loaded.Items[0].ID)
	require.ErrorIs(t, err, gorm.ErrRecordNotFound, "items are scoped to their activity")
	require.ErrorIs(t, activities.DeleteItem(ctx, draft.ID, loaded.Items[0].ID), gorm.ErrRecordNotFound)
	require.NoError(t, activities.DeleteItem(ctx, published.ID, loaded.Items[0].ID))

	mine, err := activities.List(ctx, &teacher.ID)
	require.NoError(t, err)
	require.Len(t, mine, 2)
	total, err := activities.CountByTeacher(ctx, nil)
	require.NoError(t, err)
	require.Equal(t, int64(3), total)

	created, err := activities.EnsureAssignment(ctx, published.ID, student.ID)
	require.NoError(t, err)
	require.True(t, created)
	created, err = activities.EnsureAssignment(ctx, published.ID, student.ID)
	require.NoError(t, err)
	require.False(t, created)
	_, err = activities.EnsureAssignment(ctx, draft.ID, student.ID)
	require.NoError(t, err)

	three := 3
	require.NoError(t, activities.SetAttemptsAllowed(ctx, published.ID, student.ID, &three))
	assignment, err := activities.GetAssignment(ctx, published.ID, student.ID)
	require.NoError(t, err)
	require.Equal(t, 3, assignment.MaxAttempts(published))
	require.NoError(t, activities.SetAttemptsAllowed(ctx, published.ID, student.ID, nil))
	assignment, err = activities.GetAssignment(ctx, published.ID, student.ID)
	require.NoError(t, err)
	require.Equal(t, 1, assignment.MaxAttempts(published))
	require.ErrorIs(t, activities.SetAttemptsAllowed(ctx, published.ID, teacher.ID, &three), gorm.ErrRecordNotFound)

	visible, assignments, err := activities.ListAssignedPublished(ctx, student.ID, nil)
	require.NoError(t, err)
	require.Len(t, assignments, 2)
	require.Len(t, visible, 1, "drafts stay hidden")
	require.Equal(t, published.ID, visible[0].ID)

	assignedStudents, err := activities.CountAssignedStudents(ctx, &teacher.ID)
	require.NoError(t, err)
	require.Equal(t, int64(1), assignedStudents)

	require.NoError(t, activities.Delete(ctx, published.ID))
	_, err = activities.GetAssignment(ctx, published.ID, student.ID)
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestSubmissionRepositoryAttemptsAndAnswers(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	users := NewUserRepository(db)
	activities := NewActivityRepository(db)
	submissions := NewSubmissionRepository(db)

	teacher := seedUser(t, users, models.RoleTeacher, "marta", "Soto")
	student := seedUser(t, users, models.RoleStudent, "sofia", "Rojas")
	activity := seedActivity(t, activities, teacher.ID, "Sumas", nil, true)
	item := models.ActivityItem{ActivityID: activity.ID, Position: 1, Type: "trivia", Points: 10}
	require.NoError(t, activities.CreateItem(ctx, &item))

	_, err := submissions.OpenSubmission(ctx, activity.ID, student.ID)
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)

	first := models.Submission{ActivityID: activity.ID, StudentID: student.ID, Attempt: 1, StartedAt: time.Now()}
	require.NoError(t, submissions.Create(ctx, &first))

	answer := models.Answer{SubmissionID: first.ID, ItemID: item.ID, Correct: false, Points: 0}
	require.NoError(t, submissions.UpsertAnswer(ctx, &answer))
	retry := models.Answer{SubmissionID: first.ID, ItemID: item.ID, Correct: true, Score: 1, Points: 10}
	require.NoError(t, submissions.UpsertAnswer(ctx, &retry))
	require.Equal(t, answer.ID, retry.ID, "answers are unique per item")

	answers, err := submissions.ListAnswers(ctx, first.ID)
	require.NoError(t, err)
	require.Len(t, answers, 1)
	require.True(t, answers[0].Correct)

	open, err := submissions.OpenSubmission(ctx, activity.ID, student.ID)
	require.NoError(t, err)
	require.Equal(t, first.ID, open.ID)

	grade := 100.0
	submitted := time.Now()
	first.Finalized = true
	first.Grade = &grade
	first.SubmittedAt = &submitted
	require.NoError(t, submissions.Update(ctx, &first))

	second := models.Submission{ActivityID: activity.ID, StudentID: student.ID, Attempt: 2, StartedAt: time.Now()}
	require.NoError(t, submissions.Create(ctx, &second))

	attempts, err := submissions.CountAttempts(ctx, activity.ID, student.ID)
	require.NoError(t, err)
	require.Equal(t, 2, attempts, "open attempts count too")

	finalized, err := submissions.ListFinalized(ctx, activity.ID, student.ID)
	require.NoError(t, err)
	require.Len(t, finalized, 1)

	history, err := submissions.ListFinalizedHistory(ctx, student.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	require.Equal(t, "Sumas", history[0].Activity.Title)

	byActivity, err := submissions.ListFinalizedByActivity(ctx, activity.ID)
	require.NoError(t, err)
	require.Len(t, byActivity, 1)
	require.Equal(t, "sofia", byActivity[0].Student.Username)
	require.Len(t, byActivity[0].Answers, 1)

	recent, err := submissions.RecentFinalized(ctx, &teacher.ID, 5)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	nobody := student.ID
	recent, err = submissions.RecentFinalized(ctx, &nobody, 5)
	require.NoError(t, err)
	require.Empty(t, recent)

	all, err := submissions.ListByStudent(ctx, student.ID, []uint{activity.ID})
	require.NoError(t, err)
	require.Len(t, all, 2)
	none, err := submissions.ListByStudent(ctx, student.ID, nil)
	require.NoError(t, err)
	require.Empty(t, none)
}

func TestGamificationRepositoryRewardsAndStandings(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	users := NewUserRepository(db)
	repo := NewGamificationRepository(db)

	sofia := seedUser(t, users, models.RoleStudent, "sofia", "Rojas")
	seedUser(t, users, models.RoleStudent, "tomas", "Pérez")
	seedUser(t, users, models.RoleTeacher, "marta", "Soto")

	profile, err := repo.GetOrCreateProfile(ctx, sofia.ID)
	require.NoError(t, err)
	profile.Level = 3
	profile.TotalXP = 450
	profile.ActivitiesCompleted = 4
	require.NoError(t, repo.SaveProfile(ctx, &profile))

	welcome := models.Reward{Slug: "bienvenida", Name: "Bienvenida", RequiredActivities: 1}
	require.NoError(t, repo.UpsertReward(ctx, &welcome))
	renamed := models.Reward{Slug: "bienvenida", Name: "¡Bienvenida!", RequiredActivities: 1}
	require.NoError(t, repo.UpsertReward(ctx, &renamed))
	require.Equal(t, welcome.ID, renamed.ID)
	require.Equal(t, "¡Bienvenida!", renamed.Name)

	rewards, err := repo.ListRewards(ctx)
	require.NoError(t, err)
	require.Len(t, rewards, 1)

	bySlug, err := repo.GetRewardsBySlugs(ctx, []string{"bienvenida", "inexistente"})
	require.NoError(t, err)
	require.Len(t, bySlug, 1)

	unlock := []models.UserReward{{ProfileID: profile.ID, RewardID: welcome.ID}}
	require.NoError(t, repo.CreateUserRewards(ctx, unlock))
	require.NoError(t, repo.CreateUserRewards(ctx, []models.UserReward{{ProfileID: profile.ID, RewardID: welcome.ID}}))

	ids, err := repo.UnlockedRewardIDs(ctx, profile.ID)
	require.NoError(t, err)
	require.Equal(t, []uint{welcome.ID}, ids)

	pending, err := repo.PendingNotifications(ctx, profile.ID)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	require.Equal(t, "bienvenida", pending[0].Reward.Slug)
	require.NoError(t, repo.MarkNotified(ctx, []uint{pending[0].ID}))
	pending, err = repo.PendingNotifications(ctx, profile.ID)
	require.NoError(t, err)
	require.Empty(t, pending)

	standings, err := repo.ListStudentStandings(ctx)
	require.NoError(t, err)
	require.Len(t, standings, 2, "teachers are not ranked")
	for _, row := range standings {
		if row.UserID == sofia.ID {
			require.Equal(t, 3, row.Level)
			require.Equal(t, 4, row.ActivitiesCompleted)
		}
	}
}

func TestActivityLogRepositoryFilters(t *testing.T) {
	ctx := context.Background()
	repo := NewActivityLogRepository(setupTestDB(t))

	entityID := uint(9)
	entries := []models.ActivityLog{
		{ActorID: 1, ActorRole: "admin", Action: "course.created", EntityType: "course"},
		{ActorID: 2, ActorRole: "teacher", Action: "activity.created", EntityType: "activity", EntityID: &entityID},
		{ActorID: 2, ActorRole: "teacher", Action: "activity.published", EntityType: "activity", EntityID: &entityID},
		{ActorID: 3, ActorRole: "student", Action: "xp.awarded", EntityType: "user"},
	}
	for i := range entries {
		require.NoError(t, repo.Create(ctx, &entries[i]))
	}

	items, total, err := repo.List(ctx, ActivityLogFilter{Action: "activity.*"})
	require.NoError(t, err)
	require.Equal(t, int64(2), total)
	require.Equal(t, "activity.published", items[0].Action, "newest first")

	actor := uint(2)
	_, total, err = repo.List(ctx, ActivityLogFilter{ActorID: &actor, Action: "activity.created"})
	require.NoError(t, err)
	require.Equal(t, int64(1), total)

	_, total, err = repo.List(ctx, ActivityLogFilter{EntityType: "activity", EntityID: &entityID})
	require.NoError(t, err)
	require.Equal(t, int64(2), total)

	future := time.Now().Add(time.Hour)
	_, total, err = repo.List(ctx, ActivityLogFilter{Since: &future})
	require.NoError(t, err)
	require.Zero(t, total)

	page, total, err := repo.List(ctx, ActivityLogFilter{Page: 2, PageSize: 3})
	require.NoError(t, err)
	require.Equal(t, int64(4), total)
	require.Len(t, page, 1)
	require.Equal(t, "course.created", page[0].Action)
}
