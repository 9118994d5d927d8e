package service

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/noah-isme/levelup-api/internal/dto"
	"github.com/noah-isme/levelup-api/internal/grading"
	"github.com/noah-isme/levelup-api/internal/minigame"
	"github.com/noah-isme/levelup-api/internal/models"
	"github.com/noah-isme/levelup-api/internal/repository"
)

const (
	defaultDifficulty  = 2
	defaultXPTotal     = 100
	defaultAttemptsMax = 1
	recentLimit        = 5
)

// TeacherActivityService lets teachers author, assign and review activities.
type TeacherActivityService interface {
	List(ctx context.Context, actor ActivityActor) ([]dto.ActivityResponse, error)
	Get(ctx context.Context, id uint, actor ActivityActor) (dto.ActivityResponse, error)
	Create(ctx context.Context, req dto.ActivityRequest, actor ActivityActor) (dto.ActivityResponse, error)
	Update(ctx context.Context, id uint, req dto.ActivityRequest, actor ActivityActor) (dto.ActivityResponse, error)
	Delete(ctx context.Context, id uint, actor ActivityActor) error

	AddItem(ctx context.Context, activityID uint, req dto.ItemRequest, actor ActivityActor) (dto.ItemResponse, error)
	UpdateItem(ctx context.Context, activityID, itemID uint, req dto.ItemRequest, actor ActivityActor) (dto.ItemResponse, error)
	DeleteItem(ctx context.Context, activityID, itemID uint, actor ActivityActor) error

	Assign(ctx context.Context, activityID uint, req dto.AssignRequest, actor ActivityActor) (dto.AssignResponse, error)
	ListAssignments(ctx context.Context, activityID uint, actor ActivityActor) ([]dto.ActivityAssignmentResponse, error)
	SetAttempts(ctx context.Context, activityID, studentID uint, req dto.AttemptOverrideRequest, actor ActivityActor) error

	Dashboard(ctx context.Context, actor ActivityActor) (dto.TeacherDashboardResponse, error)
	ExportResults(ctx context.Context, activityID uint, actor ActivityActor) (ResultsExport, error)
	PreviewGrade(ctx context.Context, req dto.GradingPreviewRequest) (dto.GradingPreviewResponse, error)
}

type teacherActivityService struct {
	activities  repository.ActivityRepository
	submissions repository.SubmissionRepository
	academic    repository.AcademicRepository
	users       repository.UserRepository
	validator   *validator.Validate
	activity    ActivityRecorder
	logger      zerolog.Logger
	tracer      trace.Tracer
	now         func() time.Time
}

// NewTeacherActivityService constructs the teacher activity service.
func NewTeacherActivityService(activities repository.ActivityRepository, submissions repository.SubmissionRepository, academic repository.AcademicRepository, users repository.UserRepository, validate *validator.Validate, activity ActivityRecorder, logger zerolog.Logger) TeacherActivityService {
	return &teacherActivityService{
		activities:  activities,
		submissions: submissions,
		academic:    academic,
		users:       users,
		validator:   validate,
		activity:    activity,
		logger:      logger.With().Str("component", "teacher_activity_service").Logger(),
		tracer:      otel.Tracer("github.com/noah-isme/levelup-api/internal/service/teacher"),
		now:         time.Now,
	}
}

func isAdmin(actor ActivityActor) bool {
	return normalizeRole(actor.Role) == models.RoleAdmin
}

// load fetches an activity the actor may see. Writes additionally require ownership.
func (s *teacherActivityService) load(ctx context.Context, id uint, actor ActivityActor, write, withItems bool) (models.Activity, error) {
	activity, err := s.activities.GetByID(ctx, id, withItems)
	if err != nil {
		return models.Activity{}, mapNotFound(err, ErrActivityNotFound)
	}
	if activity.TeacherID == actor.ID {
		return activity, nil
	}
	if !isAdmin(actor) {
		return models.Activity{}, ErrActivityNotFound
	}
	if write {
		return models.Activity{}, ErrForbidden
	}
	return activity, nil
}

func (s *teacherActivityService) List(ctx context.Context, actor ActivityActor) ([]dto.ActivityResponse, error) {
	var teacherID *uint
	if !isAdmin(actor) {
		teacherID = &actor.ID
	}
	activities, err := s.activities.List(ctx, teacherID)
	if err != nil {
		return nil, err
	}
	out := make([]dto.ActivityResponse, 0, len(activities))
	for _, activity := range activities {
		out = append(out, dto.NewActivityResponse(activity))
	}
	return out, nil
}

func (s *teacherActivityService) Get(ctx context.Context, id uint, actor ActivityActor) (dto.ActivityResponse, error) {
	activity, err := s.load(ctx, id, actor, false, true)
	if err != nil {
		return dto.ActivityResponse{}, err
	}
	return dto.NewActivityResponse(activity), nil
}

func (s *teacherActivityService) Create(ctx context.Context, req dto.ActivityRequest, actor ActivityActor) (dto.ActivityResponse, error) {
	activity := models.Activity{TeacherID: actor.ID}
	if err := s.apply(ctx, &activity, req); err != nil {
		return dto.ActivityResponse{}, err
	}
	if err := s.activities.Create(ctx, &activity); err != nil {
		return dto.ActivityResponse{}, err
	}

	s.audit(ctx, actor, "activity.created", "activity", activity.ID, map[string]interface{}{"title": activity.Title})
	return dto.NewActivityResponse(activity), nil
}

func (s *teacherActivityService) Update(ctx context.Context, id uint, req dto.ActivityRequest, actor ActivityActor) (dto.ActivityResponse, error) {
	activity, err := s.load(ctx, id, actor, true, false)
	if err != nil {
		return dto.ActivityResponse{}, err
	}
	if err := s.apply(ctx, &activity, req); err != nil {
		return dto.ActivityResponse{}, err
	}
	if err := s.activities.Save(ctx, &activity); err != nil {
		return dto.ActivityResponse{}, err
	}

	s.audit(ctx, actor, "activity.updated", "activity", activity.ID, map[string]interface{}{"published": activity.Published})
	return dto.NewActivityResponse(activity), nil
}

func (s *teacherActivityService) apply(ctx context.Context, activity *models.Activity, req dto.ActivityRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return err
	}

	title := cleanLine(req.Title)
	if title == "" {
		return fieldError("title", "title is required")
	}

	activity.Title = title
	activity.Description = cleanRich(req.Description)
	activity.Type = normalizeActivityType(req.Type)
	activity.Difficulty = intOr(req.Difficulty, defaultDifficulty)
	activity.XPTotal = intOr(req.XPTotal, defaultXPTotal)
	activity.AttemptsMax = intOr(req.AttemptsMax, defaultAttemptsMax)
	activity.UnlimitedAttempts = req.UnlimitedAttempts
	activity.ClosesAt = req.ClosesAt

	activity.Published = req.Published
	if activity.Published && activity.PublishedAt == nil {
		now := s.now().UTC()
		activity.PublishedAt = &now
	}

	activity.Subject = nil
	activity.SubjectID = nil
	if req.SubjectID != nil {
		subject, err := s.academic.GetSubject(ctx, *req.SubjectID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fieldError("subject_id", "subject not found")
			}
			return err
		}
		activity.SubjectID = &subject.ID
		activity.Subject = &subject
	}
	return nil
}

func (s *teacherActivityService) Delete(ctx context.Context, id uint, actor ActivityActor) error {
	if _, err := s.load(ctx, id, actor, true, false); err != nil {
		return err
	}
	if err := s.activities.Delete(ctx, id); err != nil {
		return mapNotFound(err, ErrActivityNotFound)
	}
	s.audit(ctx, actor, "activity.deleted", "activity", id, nil)
	return nil
}

func (s *teacherActivityService) AddItem(ctx context.Context, activityID uint, req dto.ItemRequest, actor ActivityActor) (dto.ItemResponse, error) {
	if _, err := s.load(ctx, activityID, actor, true, false); err != nil {
		return dto.ItemResponse{}, err
	}

	item := models.ActivityItem{ActivityID: activityID}
	if err := s.applyItem(&item, req); err != nil {
		return dto.ItemResponse{}, err
	}

	position, err := s.activities.NextItemPosition(ctx, activityID)
	if err != nil {
		return dto.ItemResponse{}, err
	}
	item.Position = position

	if err := s.activities.CreateItem(ctx, &item); err != nil {
		return dto.ItemResponse{}, err
	}

	s.audit(ctx, actor, "activity_item.created", "activity_item", item.ID, map[string]interface{}{"activity_id": activityID, "type": item.Type})
	return dto.NewItemResponse(item), nil
}

func (s *teacherActivityService) UpdateItem(ctx context.Context, activityID, itemID uint, req dto.ItemRequest, actor ActivityActor) (dto.ItemResponse, error) {
	if _, err := s.load(ctx, activityID, actor, true, false); err != nil {
		return dto.ItemResponse{}, err
	}

	item, err := s.activities.GetItem(ctx, activityID, itemID)
	if err != nil {
		return dto.ItemResponse{}, mapNotFound(err, ErrItemNotFound)
	}
	if err := s.applyItem(&item, req); err != nil {
		return dto.ItemResponse{}, err
	}
	if err := s.activities.SaveItem(ctx, &item); err != nil {
		return dto.ItemResponse{}, err
	}

	s.audit(ctx, actor, "activity_item.updated", "activity_item", item.ID, map[string]interface{}{"activity_id": activityID})
	return dto.NewItemResponse(item), nil
}

func (s *teacherActivityService) applyItem(item *models.ActivityItem, req dto.ItemRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return err
	}

	normalized, err := minigame.Validate(minigame.Input{
		Type:      req.Type,
		Statement: cleanRich(req.Statement),
		Kind:      req.Kind,
		TimeLimit: req.TimeLimit,
		Data:      req.Data,
	})
	if err != nil {
		return err
	}
	if hint, ok := normalized.Data["hint"].(string); ok {
		normalized.Data["hint"] = cleanLine(hint)
	}

	raw, err := json.Marshal(normalized.Data)
	if err != nil {
		return err
	}

	item.Type = normalized.Type
	item.Statement = normalized.Statement
	item.Data = datatypes.JSON(raw)
	item.Points = intOr(req.Points, 10)
	return nil
}

func (s *teacherActivityService) DeleteItem(ctx context.Context, activityID, itemID uint, actor ActivityActor) error {
	if _, err := s.load(ctx, activityID, actor, true, false); err != nil {
		return err
	}
	if err := s.activities.DeleteItem(ctx, activityID, itemID); err != nil {
		return mapNotFound(err, ErrItemNotFound)
	}
	s.audit(ctx, actor, "activity_item.deleted", "activity_item", itemID, map[string]interface{}{"activity_id": activityID})
	return nil
}

// Assign gives the activity to every student enrolled in the courses plus the listed students.
func (s *teacherActivityService) Assign(ctx context.Context, activityID uint, req dto.AssignRequest, actor ActivityActor) (dto.AssignResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return dto.AssignResponse{}, err
	}
	if len(req.CourseIDs) == 0 && len(req.StudentIDs) == 0 {
		return dto.AssignResponse{}, fieldError("student_ids", "select at least one course or student")
	}
	if _, err := s.load(ctx, activityID, actor, true, false); err != nil {
		return dto.AssignResponse{}, err
	}

	targets := make(map[uint]struct{})
	if len(req.CourseIDs) > 0 {
		for _, courseID := range req.CourseIDs {
			if _, err := s.academic.GetCourse(ctx, courseID); err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return dto.AssignResponse{}, fieldError("course_ids", "course not found")
				}
				return dto.AssignResponse{}, err
			}
		}
		ids, err := s.academic.StudentIDsInCourses(ctx, req.CourseIDs)
		if err != nil {
			return dto.AssignResponse{}, err
		}
		for _, id := range ids {
			targets[id] = struct{}{}
		}
	}
	for _, id := range req.StudentIDs {
		user, err := s.users.GetByID(ctx, id)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return dto.AssignResponse{}, fieldError("student_ids", "student not found")
			}
			return dto.AssignResponse{}, err
		}
		if user.Role != models.RoleStudent {
			return dto.AssignResponse{}, fieldError("student_ids", "user is not a student")
		}
		targets[id] = struct{}{}
	}

	ordered := make([]uint, 0, len(targets))
	for id := range targets {
		ordered = append(ordered, id)
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i] < ordered[j] })

	created := 0
	for _, studentID := range ordered {
		isNew, err := s.activities.EnsureAssignment(ctx, activityID, studentID)
		if err != nil {
			return dto.AssignResponse{}, err
		}
		if isNew {
			created++
		}
	}

	s.audit(ctx, actor, "activity.assigned", "activity", activityID, map[string]interface{}{
		"created": created,
		"total":   len(ordered),
	})
	return dto.AssignResponse{Created: created, Total: len(ordered)}, nil
}

func (s *teacherActivityService) ListAssignments(ctx context.Context, activityID uint, actor ActivityActor) ([]dto.ActivityAssignmentResponse, error) {
	if _, err := s.load(ctx, activityID, actor, false, false); err != nil {
		return nil, err
	}
	assignments, err := s.activities.ListAssignments(ctx, activityID)
	if err != nil {
		return nil, err
	}

	out := make([]dto.ActivityAssignmentResponse, 0, len(assignments))
	for _, assignment := range assignments {
		used, err := s.submissions.CountAttempts(ctx, activityID, assignment.StudentID)
		if err != nil {
			return nil, err
		}
		out = append(out, dto.ActivityAssignmentResponse{
			StudentID:       assignment.StudentID,
			StudentName:     assignment.Student.FullName(),
			AttemptsAllowed: assignment.AttemptsAllowed,
			AttemptsUsed:    used,
			AssignedAt:      assignment.AssignedAt,
		})
	}
	return out, nil
}

func (s *teacherActivityService) SetAttempts(ctx context.Context, activityID, studentID uint, req dto.AttemptOverrideRequest, actor ActivityActor) error {
	if err := s.validator.Struct(req); err != nil {
		return err
	}
	if _, err := s.load(ctx, activityID, actor, true, false); err != nil {
		return err
	}
	if err := s.activities.SetAttemptsAllowed(ctx, activityID, studentID, req.AttemptsAllowed); err != nil {
		return mapNotFound(err, ErrNotAssigned)
	}

	metadata := map[string]interface{}{"student_id": studentID, "attempts_allowed": nil}
	if req.AttemptsAllowed != nil {
		metadata["attempts_allowed"] = *req.AttemptsAllowed
	}
	s.audit(ctx, actor, "activity.attempts_overridden", "activity", activityID, metadata)
	return nil
}

func (s *teacherActivityService) Dashboard(ctx context.Context, actor ActivityActor) (dto.TeacherDashboardResponse, error) {
	var teacherID *uint
	if !isAdmin(actor) {
		teacherID = &actor.ID
	}

	total, err := s.activities.CountByTeacher(ctx, teacherID)
	if err != nil {
		return dto.TeacherDashboardResponse{}, err
	}
	students, err := s.activities.CountAssignedStudents(ctx, teacherID)
	if err != nil {
		return dto.TeacherDashboardResponse{}, err
	}
	recent, err := s.submissions.RecentFinalized(ctx, teacherID, recentLimit)
	if err != nil {
		return dto.TeacherDashboardResponse{}, err
	}

	rows := make([]dto.RecentSubmission, 0, len(recent))
	for _, submission := range recent {
		rows = append(rows, dto.RecentSubmission{
			SubmissionID:  submission.ID,
			ActivityID:    submission.ActivityID,
			ActivityTitle: submission.Activity.Title,
			StudentID:     submission.StudentID,
			StudentName:   submission.Student.FullName(),
			Attempt:       submission.Attempt,
			Grade:         submission.Grade,
			XPEarned:      submission.XPEarned,
			SubmittedAt:   submission.SubmittedAt,
		})
	}

	return dto.TeacherDashboardResponse{
		TotalActivities:   total,
		AssignedStudents:  students,
		RecentSubmissions: rows,
	}, nil
}

func (s *teacherActivityService) PreviewGrade(ctx context.Context, req dto.GradingPreviewRequest) (dto.GradingPreviewResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return dto.GradingPreviewResponse{}, err
	}

	_, span := s.tracer.Start(ctx, "grading.preview")
	defer span.End()

	score, feedback := grading.Grade(req.Type, req.Config, req.Answers)
	return dto.GradingPreviewResponse{
		Score:    score,
		Percent:  int(math.Round(score * 100)),
		Feedback: feedback,
	}, nil
}

func (s *teacherActivityService) audit(ctx context.Context, actor ActivityActor, action, entity string, id uint, metadata map[string]interface{}) {
	record(ctx, s.activity, s.logger, ActivityEntry{
		ActorID:    actor.ID,
		ActorRole:  actor.Role,
		Action:     action,
		EntityType: entity,
		EntityID:   uintPtr(id),
		Metadata:   metadata,
	})
}

func normalizeActivityType(value string) string {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case models.ActivityTypeGame, "juego":
		return models.ActivityTypeGame
	default:
		return models.ActivityTypeQuiz
	}
}

func intOr(value *int, fallback int) int {
	if value == nil {
		return fallback
	}
	return *value
}
