package service

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/noah-isme/levelup-api/internal/dto"
	"github.com/noah-isme/levelup-api/internal/minigame"
	"github.com/noah-isme/levelup-api/internal/models"
	"github.com/noah-isme/levelup-api/internal/repository"
)

type teacherFixture struct {
	svc         TeacherActivityService
	users       repository.UserRepository
	academic    repository.AcademicRepository
	activities  repository.ActivityRepository
	submissions repository.SubmissionRepository
	recorder    *recorderStub
	teacher     ActivityActor
	other       ActivityActor
	admin       ActivityActor
}

func newTeacherFixture(t *testing.T) teacherFixture {
	t.Helper()
	db := newTestDB(t)
	users := repository.NewUserRepository(db)
	academic := repository.NewAcademicRepository(db)
	activities := repository.NewActivityRepository(db)
	submissions := repository.NewSubmissionRepository(db)
	recorder := &recorderStub{}

	teacher := createUser(t, users, models.RoleTeacher, "profe_autor")
	other := createUser(t, users, models.RoleTeacher, "profe_ajeno")
	admin := createUser(t, users, models.RoleAdmin, "admin_docente")

	return teacherFixture{
		svc:         NewTeacherActivityService(activities, submissions, academic, users, testValidator(), recorder, testLogger()),
		users:       users,
		academic:    academic,
		activities:  activities,
		submissions: submissions,
		recorder:    recorder,
		teacher:     ActivityActor{ID: teacher.ID, Role: teacher.Role},
		other:       ActivityActor{ID: other.ID, Role: other.Role},
		admin:       ActivityActor{ID: admin.ID, Role: admin.Role},
	}
}

func intPtr(v int) *int {
	return &v
}

func triviaItem() dto.ItemRequest {
	return dto.ItemRequest{
		Type:      minigame.ItemTypeGame,
		Statement: "<b>Responde</b>",
		Kind:      minigame.KindTrivia,
		Data: map[string]interface{}{
			"questions": []interface{}{
				map[string]interface{}{"q": "2+2", "opts": []interface{}{"3", "4"}, "ans": float64(1)},
			},
			"hint": "<script>x</script>suma",
		},
	}
}

func TestTeacherActivityServiceCreateAppliesDefaults(t *testing.T) {
	fx := newTeacherFixture(t)
	ctx := context.Background()

	subject := models.Subject{Name: "Matemáticas", Code: "MATE", Slug: "matematicas"}
	require.NoError(t, fx.academic.CreateSubject(ctx, &subject))

	created, err := fx.svc.Create(ctx, dto.ActivityRequest{
		Title:       "<i>Sumas</i> rápidas",
		Description: "<p>Practica</p><script>alert(1)</script>",
		Type:        "juego",
		Published:   true,
		SubjectID:   &subject.ID,
	}, fx.teacher)
	require.NoError(t, err)
	require.Equal(t, "Sumas rápidas", created.Title)
	require.Equal(t, "<p>Practica</p>", created.Description)
	require.Equal(t, models.ActivityTypeGame, created.Type)
	require.Equal(t, defaultDifficulty, created.Difficulty)
	require.Equal(t, defaultXPTotal, created.XPTotal)
	require.Equal(t, defaultAttemptsMax, created.AttemptsMax)
	require.NotNil(t, created.PublishedAt)
	require.NotNil(t, created.Subject)
	require.Equal(t, "matematicas", created.Subject.Slug)

	missing := uint(999)
	_, err = fx.svc.Create(ctx, dto.ActivityRequest{Title: "x", SubjectID: &missing}, fx.teacher)
	var fieldErr *FieldError
	require.True(t, errors.As(err, &fieldErr))
	require.Equal(t, "subject_id", fieldErr.Field)

	_, err = fx.svc.Create(ctx, dto.ActivityRequest{Title: "<br>"}, fx.teacher)
	require.True(t, errors.As(err, &fieldErr))
	require.Equal(t, "title", fieldErr.Field)
}

func TestTeacherActivityServiceOwnership(t *testing.T) {
	fx := newTeacherFixture(t)
	ctx := context.Background()

	created, err := fx.svc.Create(ctx, dto.ActivityRequest{Title: "Propia"}, fx.teacher)
	require.NoError(t, err)

	_, err = fx.svc.Get(ctx, created.ID, fx.other)
	require.ErrorIs(t, err, ErrActivityNotFound)

	viewed, err := fx.svc.Get(ctx, created.ID, fx.admin)
	require.NoError(t, err)
	require.Equal(t, "Propia", viewed.Title)

	_, err = fx.svc.Update(ctx, created.ID, dto.ActivityRequest{Title: "Ajena"}, fx.admin)
	require.ErrorIs(t, err, ErrForbidden)

	updated, err := fx.svc.Update(ctx, created.ID, dto.ActivityRequest{Title: "Propia v2", AttemptsMax: intPtr(3)}, fx.teacher)
	require.NoError(t, err)
	require.Equal(t, 3, updated.AttemptsMax)
	require.Nil(t, updated.PublishedAt)

	mine, err := fx.svc.List(ctx, fx.teacher)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	theirs, err := fx.svc.List(ctx, fx.other)
	require.NoError(t, err)
	require.Empty(t, theirs)
	all, err := fx.svc.List(ctx, fx.admin)
	require.NoError(t, err)
	require.Len(t, all, 1)

	require.ErrorIs(t, fx.svc.Delete(ctx, created.ID, fx.other), ErrActivityNotFound)
	require.NoError(t, fx.svc.Delete(ctx, created.ID, fx.teacher))
	_, err = fx.svc.Get(ctx, created.ID, fx.teacher)
	require.ErrorIs(t, err, ErrActivityNotFound)

	require.Equal(t, []string{"activity.created", "activity.updated", "activity.deleted"}, fx.recorder.actions())
}

func TestTeacherActivityServiceItems(t *testing.T) {
	fx := newTeacherFixture(t)
	ctx := context.Background()

	activity, err := fx.svc.Create(ctx, dto.ActivityRequest{Title: "Trivia"}, fx.teacher)
	require.NoError(t, err)

	first, err := fx.svc.AddItem(ctx, activity.ID, triviaItem(), fx.teacher)
	require.NoError(t, err)
	require.Equal(t, minigame.KindTrivia, first.Kind)
	require.Equal(t, "<b>Responde</b>", first.Statement)
	require.Equal(t, 10, first.Points)
	require.Equal(t, "suma", first.Data["hint"])

	config, err := fx.svc.AddItem(ctx, activity.ID, dto.ItemRequest{
		Type: minigame.ItemTypeGameConfig,
		Data: map[string]interface{}{"mapping_mode": "index"},
	}, fx.teacher)
	require.NoError(t, err)
	require.Equal(t, minigame.DefaultConfigStatement, config.Statement)
	require.Greater(t, config.Order, first.Order)

	_, err = fx.svc.AddItem(ctx, activity.ID, dto.ItemRequest{Kind: "puzzle"}, fx.teacher)
	require.True(t, minigame.IsValidationError(err))

	_, err = fx.svc.AddItem(ctx, activity.ID, triviaItem(), fx.other)
	require.ErrorIs(t, err, ErrActivityNotFound)

	req := triviaItem()
	req.Points = intPtr(25)
	updated, err := fx.svc.UpdateItem(ctx, activity.ID, first.ID, req, fx.teacher)
	require.NoError(t, err)
	require.Equal(t, 25, updated.Points)

	_, err = fx.svc.UpdateItem(ctx, activity.ID, 999, req, fx.teacher)
	require.ErrorIs(t, err, ErrItemNotFound)

	loaded, err := fx.svc.Get(ctx, activity.ID, fx.teacher)
	require.NoError(t, err)
	require.Equal(t, 2, loaded.ItemCount)

	require.NoError(t, fx.svc.DeleteItem(ctx, activity.ID, config.ID, fx.teacher))
	require.ErrorIs(t, fx.svc.DeleteItem(ctx, activity.ID, config.ID, fx.teacher), ErrItemNotFound)
}

func TestTeacherActivityServiceAssignAndAttempts(t *testing.T) {
	fx := newTeacherFixture(t)
	ctx := context.Background()

	course := models.Course{Level: 4, Letter: "A"}
	require.NoError(t, fx.academic.CreateCourse(ctx, &course))
	enrolled := createUser(t, fx.users, models.RoleStudent, "inscrito")
	loose := createUser(t, fx.users, models.RoleStudent, "suelto")
	require.NoError(t, fx.academic.CreateEnrollment(ctx, &models.Enrollment{StudentID: enrolled.ID, CourseID: course.ID}))

	activity, err := fx.svc.Create(ctx, dto.ActivityRequest{Title: "Tarea"}, fx.teacher)
	require.NoError(t, err)

	_, err = fx.svc.Assign(ctx, activity.ID, dto.AssignRequest{}, fx.teacher)
	var fieldErr *FieldError
	require.True(t, errors.As(err, &fieldErr))

	_, err = fx.svc.Assign(ctx, activity.ID, dto.AssignRequest{StudentIDs: []uint{fx.other.ID}}, fx.teacher)
	require.True(t, errors.As(err, &fieldErr))
	require.Equal(t, "student_ids", fieldErr.Field)

	_, err = fx.svc.Assign(ctx, activity.ID, dto.AssignRequest{CourseIDs: []uint{999}}, fx.teacher)
	require.True(t, errors.As(err, &fieldErr))
	require.Equal(t, "course_ids", fieldErr.Field)

	result, err := fx.svc.Assign(ctx, activity.ID, dto.AssignRequest{CourseIDs: []uint{course.ID}, StudentIDs: []uint{loose.ID, enrolled.ID}}, fx.teacher)
	require.NoError(t, err)
	require.Equal(t, dto.AssignResponse{Created: 2, Total: 2}, result)

	again, err := fx.svc.Assign(ctx, activity.ID, dto.AssignRequest{CourseIDs: []uint{course.ID}}, fx.teacher)
	require.NoError(t, err)
	require.Equal(t, dto.AssignResponse{Created: 0, Total: 1}, again)

	require.NoError(t, fx.svc.SetAttempts(ctx, activity.ID, loose.ID, dto.AttemptOverrideRequest{AttemptsAllowed: intPtr(3)}, fx.teacher))
	require.ErrorIs(t, fx.svc.SetAttempts(ctx, activity.ID, fx.admin.ID, dto.AttemptOverrideRequest{}, fx.teacher), ErrNotAssigned)

	require.NoError(t, fx.submissions.Create(ctx, &models.Submission{ActivityID: activity.ID, StudentID: loose.ID, Attempt: 1, StartedAt: time.Now()}))

	assignments, err := fx.svc.ListAssignments(ctx, activity.ID, fx.teacher)
	require.NoError(t, err)
	require.Len(t, assignments, 2)
	byStudent := map[uint]dto.ActivityAssignmentResponse{}
	for _, row := range assignments {
		byStudent[row.StudentID] = row
	}
	require.NotNil(t, byStudent[loose.ID].AttemptsAllowed)
	require.Equal(t, 3, *byStudent[loose.ID].AttemptsAllowed)
	require.Equal(t, 1, byStudent[loose.ID].AttemptsUsed)
	require.Nil(t, byStudent[enrolled.ID].AttemptsAllowed)

	require.NoError(t, fx.svc.SetAttempts(ctx, activity.ID, loose.ID, dto.AttemptOverrideRequest{}, fx.teacher))
	assignments, err = fx.svc.ListAssignments(ctx, activity.ID, fx.teacher)
	require.NoError(t, err)
	for _, row := range assignments {
		require.Nil(t, row.AttemptsAllowed)
	}
}

func TestTeacherActivityServiceDashboardAndExport(t *testing.T) {
	fx := newTeacherFixture(t)
	ctx := context.Background()

	student := createUser(t, fx.users, models.RoleStudent, "exportado")

	activity, err := fx.svc.Create(ctx, dto.ActivityRequest{Title: "Examen Final"}, fx.teacher)
	require.NoError(t, err)
	item, err := fx.svc.AddItem(ctx, activity.ID, triviaItem(), fx.teacher)
	require.NoError(t, err)
	_, err = fx.svc.Assign(ctx, activity.ID, dto.AssignRequest{StudentIDs: []uint{student.ID}}, fx.teacher)
	require.NoError(t, err)

	foreign, err := fx.svc.Create(ctx, dto.ActivityRequest{Title: "Ajena"}, fx.other)
	require.NoError(t, err)

	grade := 100.0
	submitted := time.Now().UTC()
	submission := models.Submission{
		ActivityID:  activity.ID,
		StudentID:   student.ID,
		Attempt:     1,
		Finalized:   true,
		StartedAt:   submitted.Add(-time.Minute),
		SubmittedAt: &submitted,
		Grade:       &grade,
		XPEarned:    10,
	}
	require.NoError(t, fx.submissions.Create(ctx, &submission))
	require.NoError(t, fx.submissions.UpsertAnswer(ctx, &models.Answer{SubmissionID: submission.ID, ItemID: item.ID, Correct: true, Score: 1, Points: 10}))
	require.NoError(t, fx.submissions.Create(ctx, &models.Submission{ActivityID: foreign.ID, StudentID: student.ID, Attempt: 1, Finalized: true, StartedAt: submitted, SubmittedAt: &submitted}))

	dashboard, err := fx.svc.Dashboard(ctx, fx.teacher)
	require.NoError(t, err)
	require.Equal(t, int64(1), dashboard.TotalActivities)
	require.Equal(t, int64(1), dashboard.AssignedStudents)
	require.Len(t, dashboard.RecentSubmissions, 1)
	require.Equal(t, "Examen Final", dashboard.RecentSubmissions[0].ActivityTitle)

	global, err := fx.svc.Dashboard(ctx, fx.admin)
	require.NoError(t, err)
	require.Equal(t, int64(2), global.TotalActivities)
	require.Len(t, global.RecentSubmissions, 2)

	export, err := fx.svc.ExportResults(ctx, activity.ID, fx.teacher)
	require.NoError(t, err)
	require.Equal(t, "resultados_examen-final.xlsx", export.FileName)

	book, err := excelize.OpenReader(bytes.NewReader(export.Content))
	require.NoError(t, err)
	defer book.Close()
	rows, err := book.GetRows(resultsSheet)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.Equal(t, "Estudiante", rows[0][0])
	require.Equal(t, student.FullName(), rows[1][0])
	require.Equal(t, "1", rows[1][1])
	require.Equal(t, "100", rows[1][2])
	require.Equal(t, "1", rows[1][5])
	require.Equal(t, "1", rows[1][6])

	_, err = fx.svc.ExportResults(ctx, activity.ID, fx.other)
	require.ErrorIs(t, err, ErrActivityNotFound)
}

func TestTeacherActivityServicePreviewGrade(t *testing.T) {
	fx := newTeacherFixture(t)

	preview, err := fx.svc.PreviewGrade(context.Background(), dto.GradingPreviewRequest{
		Type:    "TF",
		Config:  map[string]interface{}{"items": []interface{}{map[string]interface{}{"id": "a", "correcta": true}, map[string]interface{}{"id": "b", "correcta": false}}},
		Answers: map[string]interface{}{"a": true, "b": true},
	})
	require.NoError(t, err)
	require.InDelta(t, 0.5, preview.Score, 1e-9)
	require.Equal(t, 50, preview.Percent)

	_, err = fx.svc.PreviewGrade(context.Background(), dto.GradingPreviewRequest{})
	require.Error(t, err)
}
