package service

import (
	"context"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/noah-isme/levelup-api/internal/dto"
	"github.com/noah-isme/levelup-api/internal/models"
	"github.com/noah-isme/levelup-api/internal/repository"
)

// AcademicService administers courses, subjects, assignments, enrollments and reinforcement groups.
type AcademicService interface {
	ListCourses(ctx context.Context) ([]dto.CourseResponse, error)
	CreateCourse(ctx context.Context, req dto.CourseRequest, actor ActivityActor) (dto.CourseResponse, error)
	UpdateCourse(ctx context.Context, id uint, req dto.CourseRequest, actor ActivityActor) (dto.CourseResponse, error)
	DeleteCourse(ctx context.Context, id uint, actor ActivityActor) error

	ListSubjects(ctx context.Context) ([]dto.SubjectResponse, error)
	CreateSubject(ctx context.Context, req dto.SubjectRequest, actor ActivityActor) (dto.SubjectResponse, error)
	UpdateSubject(ctx context.Context, id uint, req dto.SubjectRequest, actor ActivityActor) (dto.SubjectResponse, error)
	DeleteSubject(ctx context.Context, id uint, actor ActivityActor) error

	ListTeacherAssignments(ctx context.Context) ([]dto.TeacherAssignmentResponse, error)
	CreateTeacherAssignment(ctx context.Context, req dto.TeacherAssignmentRequest, actor ActivityActor) (dto.TeacherAssignmentResponse, error)
	DeleteTeacherAssignment(ctx context.Context, id uint, actor ActivityActor) error

	ListEnrollments(ctx context.Context, courseID *uint) ([]dto.EnrollmentResponse, error)
	CreateEnrollment(ctx context.Context, req dto.EnrollmentRequest, actor ActivityActor) (dto.EnrollmentResponse, error)
	DeleteEnrollment(ctx context.Context, id uint, actor ActivityActor) error

	ListReinforcementGroups(ctx context.Context) ([]dto.ReinforcementGroupResponse, error)
	SaveReinforcementGroup(ctx context.Context, req dto.ReinforcementGroupRequest, actor ActivityActor) (dto.ReinforcementGroupResponse, error)
	DeleteReinforcementGroup(ctx context.Context, id uint, actor ActivityActor) error
}

type academicService struct {
	repo      repository.AcademicRepository
	users     repository.UserRepository
	validator *validator.Validate
	activity  ActivityRecorder
	logger    zerolog.Logger
}

// NewAcademicService constructs the academics administration service.
func NewAcademicService(repo repository.AcademicRepository, users repository.UserRepository, validate *validator.Validate, activity ActivityRecorder, logger zerolog.Logger) AcademicService {
	return &academicService{
		repo:      repo,
		users:     users,
		validator: validate,
		activity:  activity,
		logger:    logger.With().Str("component", "academic_service").Logger(),
	}
}

func (s *academicService) ListCourses(ctx context.Context) ([]dto.CourseResponse, error) {
	courses, err := s.repo.ListCourses(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]dto.CourseResponse, 0, len(courses))
	for _, course := range courses {
		out = append(out, dto.NewCourseResponse(course))
	}
	return out, nil
}

func (s *academicService) CreateCourse(ctx context.Context, req dto.CourseRequest, actor ActivityActor) (dto.CourseResponse, error) {
	return s.saveCourse(ctx, 0, req, actor)
}

func (s *academicService) UpdateCourse(ctx context.Context, id uint, req dto.CourseRequest, actor ActivityActor) (dto.CourseResponse, error) {
	return s.saveCourse(ctx, id, req, actor)
}

func (s *academicService) saveCourse(ctx context.Context, id uint, req dto.CourseRequest, actor ActivityActor) (dto.CourseResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return dto.CourseResponse{}, err
	}
	letter := strings.ToUpper(strings.TrimSpace(req.Letter))

	course := models.Course{}
	if id > 0 {
		existing, err := s.repo.GetCourse(ctx, id)
		if err != nil {
			return dto.CourseResponse{}, mapNotFound(err, ErrCourseNotFound)
		}
		course = existing
	}

	taken, err := s.repo.CourseExists(ctx, req.Level, letter, id)
	if err != nil {
		return dto.CourseResponse{}, err
	}
	if taken {
		return dto.CourseResponse{}, ErrCourseExists
	}

	course.Level = req.Level
	course.Letter = letter

	action := "course.created"
	if id > 0 {
		action = "course.updated"
		err = s.repo.SaveCourse(ctx, &course)
	} else {
		err = s.repo.CreateCourse(ctx, &course)
	}
	if err != nil {
		return dto.CourseResponse{}, err
	}

	s.audit(ctx, actor, action, "course", course.ID, map[string]interface{}{"name": course.DisplayName()})
	return dto.NewCourseResponse(course), nil
}

func (s *academicService) DeleteCourse(ctx context.Context, id uint, actor ActivityActor) error {
	if err := s.repo.DeleteCourse(ctx, id); err != nil {
		return mapNotFound(err, ErrCourseNotFound)
	}
	s.audit(ctx, actor, "course.deleted", "course", id, nil)
	return nil
}

func (s *academicService) ListSubjects(ctx context.Context) ([]dto.SubjectResponse, error) {
	subjects, err := s.repo.ListSubjects(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]dto.SubjectResponse, 0, len(subjects))
	for _, subject := range subjects {
		out = append(out, dto.NewSubjectResponse(subject))
	}
	return out, nil
}

func (s *academicService) CreateSubject(ctx context.Context, req dto.SubjectRequest, actor ActivityActor) (dto.SubjectResponse, error) {
	return s.saveSubject(ctx, 0, req, actor)
}

func (s *academicService) UpdateSubject(ctx context.Context, id uint, req dto.SubjectRequest, actor ActivityActor) (dto.SubjectResponse, error) {
	return s.saveSubject(ctx, id, req, actor)
}

func (s *academicService) saveSubject(ctx context.Context, id uint, req dto.SubjectRequest, actor ActivityActor) (dto.SubjectResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return dto.SubjectResponse{}, err
	}

	subject := models.Subject{}
	if id > 0 {
		existing, err := s.repo.GetSubject(ctx, id)
		if err != nil {
			return dto.SubjectResponse{}, mapNotFound(err, ErrSubjectNotFound)
		}
		subject = existing
	}

	name := cleanLine(req.Name)
	if name == "" {
		return dto.SubjectResponse{}, fieldError("name", "name is required")
	}
	code := strings.ToUpper(strings.TrimSpace(req.Code))
	slug := slugify(req.Slug)
	if slug == "" {
		slug = slugify(name)
	}

	taken, err := s.repo.SubjectCodeExists(ctx, code, id)
	if err != nil {
		return dto.SubjectResponse{}, err
	}
	if taken {
		return dto.SubjectResponse{}, ErrSubjectExists
	}
	if taken, err = s.repo.SubjectSlugExists(ctx, slug, id); err != nil {
		return dto.SubjectResponse{}, err
	} else if taken {
		return dto.SubjectResponse{}, fieldError("slug", "slug already in use")
	}

	subject.Name = name
	subject.Code = code
	subject.Slug = slug
	subject.Icon = strings.TrimSpace(req.Icon)

	action := "subject.created"
	if id > 0 {
		action = "subject.updated"
		err = s.repo.SaveSubject(ctx, &subject)
	} else {
		err = s.repo.CreateSubject(ctx, &subject)
	}
	if err != nil {
		return dto.SubjectResponse{}, err
	}

	s.audit(ctx, actor, action, "subject", subject.ID, map[string]interface{}{"code": subject.Code})
	return dto.NewSubjectResponse(subject), nil
}

func (s *academicService) DeleteSubject(ctx context.Context, id uint, actor ActivityActor) error {
	if err := s.repo.DeleteSubject(ctx, id); err != nil {
		return mapNotFound(err, ErrSubjectNotFound)
	}
	s.audit(ctx, actor, "subject.deleted", "subject", id, nil)
	return nil
}

func (s *academicService) ListTeacherAssignments(ctx context.Context) ([]dto.TeacherAssignmentResponse, error) {
	assignments, err := s.repo.ListTeacherAssignments(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]dto.TeacherAssignmentResponse, 0, len(assignments))
	for _, assignment := range assignments {
		out = append(out, dto.NewTeacherAssignmentResponse(assignment))
	}
	return out, nil
}

func (s *academicService) CreateTeacherAssignment(ctx context.Context, req dto.TeacherAssignmentRequest, actor ActivityActor) (dto.TeacherAssignmentResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return dto.TeacherAssignmentResponse{}, err
	}
	if err := s.requireRole(ctx, req.TeacherID, models.RoleTeacher, "teacher_id"); err != nil {
		return dto.TeacherAssignmentResponse{}, err
	}
	if _, err := s.repo.GetSubject(ctx, req.SubjectID); err != nil {
		return dto.TeacherAssignmentResponse{}, mapNotFound(err, ErrSubjectNotFound)
	}

	taken, err := s.repo.TeacherAssignmentExists(ctx, req.TeacherID, req.SubjectID)
	if err != nil {
		return dto.TeacherAssignmentResponse{}, err
	}
	if taken {
		return dto.TeacherAssignmentResponse{}, ErrAssignmentExists
	}

	assignment := models.TeacherAssignment{TeacherID: req.TeacherID, SubjectID: req.SubjectID}
	if err := s.repo.CreateTeacherAssignment(ctx, &assignment); err != nil {
		return dto.TeacherAssignmentResponse{}, err
	}

	s.audit(ctx, actor, "teacher_assignment.created", "teacher_assignment", assignment.ID, map[string]interface{}{
		"teacher_id": req.TeacherID,
		"subject_id": req.SubjectID,
	})
	return dto.NewTeacherAssignmentResponse(assignment), nil
}

func (s *academicService) DeleteTeacherAssignment(ctx context.Context, id uint, actor ActivityActor) error {
	if err := s.repo.DeleteTeacherAssignment(ctx, id); err != nil {
		return mapNotFound(err, ErrRecordNotFound)
	}
	s.audit(ctx, actor, "teacher_assignment.deleted", "teacher_assignment", id, nil)
	return nil
}

func (s *academicService) ListEnrollments(ctx context.Context, courseID *uint) ([]dto.EnrollmentResponse, error) {
	enrollments, err := s.repo.ListEnrollments(ctx, courseID)
	if err != nil {
		return nil, err
	}
	out := make([]dto.EnrollmentResponse, 0, len(enrollments))
	for _, enrollment := range enrollments {
		out = append(out, dto.NewEnrollmentResponse(enrollment))
	}
	return out, nil
}

func (s *academicService) CreateEnrollment(ctx context.Context, req dto.EnrollmentRequest, actor ActivityActor) (dto.EnrollmentResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return dto.EnrollmentResponse{}, err
	}
	if err := s.requireRole(ctx, req.StudentID, models.RoleStudent, "student_id"); err != nil {
		return dto.EnrollmentResponse{}, err
	}
	if _, err := s.repo.GetCourse(ctx, req.CourseID); err != nil {
		return dto.EnrollmentResponse{}, mapNotFound(err, ErrCourseNotFound)
	}

	taken, err := s.repo.EnrollmentExists(ctx, req.StudentID, req.CourseID)
	if err != nil {
		return dto.EnrollmentResponse{}, err
	}
	if taken {
		return dto.EnrollmentResponse{}, ErrEnrollmentExists
	}

	enrollment := models.Enrollment{StudentID: req.StudentID, CourseID: req.CourseID}
	if err := s.repo.CreateEnrollment(ctx, &enrollment); err != nil {
		return dto.EnrollmentResponse{}, err
	}

	s.audit(ctx, actor, "enrollment.created", "enrollment", enrollment.ID, map[string]interface{}{
		"student_id": req.StudentID,
		"course_id":  req.CourseID,
	})
	return dto.NewEnrollmentResponse(enrollment), nil
}

func (s *academicService) DeleteEnrollment(ctx context.Context, id uint, actor ActivityActor) error {
	enrollment, err := s.repo.GetEnrollment(ctx, id)
	if err != nil {
		return mapNotFound(err, ErrRecordNotFound)
	}
	if err := s.repo.DeleteEnrollment(ctx, id); err != nil {
		return mapNotFound(err, ErrRecordNotFound)
	}
	s.audit(ctx, actor, "enrollment.deleted", "enrollment", id, map[string]interface{}{
		"student_id": enrollment.StudentID,
		"course":     enrollment.Course.DisplayName(),
	})
	return nil
}

func (s *academicService) ListReinforcementGroups(ctx context.Context) ([]dto.ReinforcementGroupResponse, error) {
	groups, err := s.repo.ListReinforcementGroups(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]dto.ReinforcementGroupResponse, 0, len(groups))
	for _, group := range groups {
		out = append(out, dto.NewReinforcementGroupResponse(group))
	}
	return out, nil
}

// SaveReinforcementGroup creates the group of a level or replaces its teachers and members.
func (s *academicService) SaveReinforcementGroup(ctx context.Context, req dto.ReinforcementGroupRequest, actor ActivityActor) (dto.ReinforcementGroupResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return dto.ReinforcementGroupResponse{}, err
	}
	if req.MathTeacherID != nil {
		if err := s.requireRole(ctx, *req.MathTeacherID, models.RoleTeacher, "math_teacher_id"); err != nil {
			return dto.ReinforcementGroupResponse{}, err
		}
	}
	if req.EnglishTeacherID != nil {
		if err := s.requireRole(ctx, *req.EnglishTeacherID, models.RoleTeacher, "english_teacher_id"); err != nil {
			return dto.ReinforcementGroupResponse{}, err
		}
	}

	group, err := s.repo.GetReinforcementGroup(ctx, req.Level)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return dto.ReinforcementGroupResponse{}, err
	}
	group.Level = req.Level
	group.MathTeacherID = req.MathTeacherID
	group.EnglishTeacherID = req.EnglishTeacherID
	group.MathTeacher = nil
	group.EnglishTeacher = nil
	group.Members = nil

	if err := s.repo.SaveReinforcementGroup(ctx, &group, req.StudentIDs); err != nil {
		return dto.ReinforcementGroupResponse{}, err
	}

	s.audit(ctx, actor, "reinforcement_group.saved", "reinforcement_group", group.ID, map[string]interface{}{
		"level":   group.Level,
		"members": len(group.Members),
	})
	return dto.NewReinforcementGroupResponse(group), nil
}

func (s *academicService) DeleteReinforcementGroup(ctx context.Context, id uint, actor ActivityActor) error {
	if err := s.repo.DeleteReinforcementGroup(ctx, id); err != nil {
		return mapNotFound(err, ErrRecordNotFound)
	}
	s.audit(ctx, actor, "reinforcement_group.deleted", "reinforcement_group", id, nil)
	return nil
}

func (s *academicService) requireRole(ctx context.Context, userID uint, role, field string) error {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fieldError(field, "user not found")
		}
		return err
	}
	if user.Role != role {
		return fieldError(field, "user must have role "+role)
	}
	return nil
}

func (s *academicService) audit(ctx context.Context, actor ActivityActor, action, entity string, id uint, metadata map[string]interface{}) {
	record(ctx, s.activity, s.logger, ActivityEntry{
		ActorID:    actor.ID,
		ActorRole:  actor.Role,
		Action:     action,
		EntityType: entity,
		EntityID:   uintPtr(id),
		Metadata:   metadata,
	})
}

func mapNotFound(err, target error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return target
	}
	return err
}
