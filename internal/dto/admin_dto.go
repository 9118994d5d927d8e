package dto

import (
	"time"

	"gorm.io/datatypes"

	"github.com/noah-isme/levelup-api/internal/models"
)

// PaginationMeta captures pagination metadata for list responses.
type PaginationMeta struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	TotalItems int64 `json:"total_items"`
	TotalPages int   `json:"total_pages"`
}

// CourseRequest creates or updates a course.
type CourseRequest struct {
	Level  int    `json:"level" validate:"required,min=1,max=8"`
	Letter string `json:"letter" validate:"required,len=1,alpha"`
}

// CourseResponse serializes a course.
type CourseResponse struct {
	ID     uint   `json:"id"`
	Level  int    `json:"level"`
	Letter string `json:"letter"`
	Name   string `json:"name"`
}

// NewCourseResponse converts a course model.
func NewCourseResponse(course models.Course) CourseResponse {
	return CourseResponse{ID: course.ID, Level: course.Level, Letter: course.Letter, Name: course.DisplayName()}
}

// SubjectRequest creates or updates a subject.
type SubjectRequest struct {
	Name string `json:"name" validate:"required,max=120"`
	Code string `json:"code" validate:"required,max=32"`
	Slug string `json:"slug" validate:"omitempty,max=140"`
	Icon string `json:"icon" validate:"omitempty,max=64"`
}

// SubjectResponse serializes a subject.
type SubjectResponse struct {
	ID   uint   `json:"id"`
	Name string `json:"name"`
	Code string `json:"code"`
	Slug string `json:"slug"`
	Icon string `json:"icon"`
}

// NewSubjectResponse converts a subject model.
func NewSubjectResponse(subject models.Subject) SubjectResponse {
	return SubjectResponse{ID: subject.ID, Name: subject.Name, Code: subject.Code, Slug: subject.Slug, Icon: subject.Icon}
}

// UserSummary is the compact user shape embedded in other payloads.
type UserSummary struct {
	ID       uint   `json:"id"`
	Username string `json:"username"`
	FullName string `json:"full_name"`
	Email    string `json:"email"`
	RUT      string `json:"rut"`
}

// NewUserSummary converts a user model.
func NewUserSummary(user models.User) UserSummary {
	return UserSummary{ID: user.ID, Username: user.Username, FullName: user.FullName(), Email: user.Email, RUT: user.RUTValue()}
}

// TeacherAssignmentRequest links a teacher to a subject.
type TeacherAssignmentRequest struct {
	TeacherID uint `json:"teacher_id" validate:"required"`
	SubjectID uint `json:"subject_id" validate:"required"`
}

// TeacherAssignmentResponse serializes a teacher assignment.
type TeacherAssignmentResponse struct {
	ID      uint            `json:"id"`
	Teacher UserSummary     `json:"teacher"`
	Subject SubjectResponse `json:"subject"`
}

// NewTeacherAssignmentResponse converts an assignment with preloaded relations.
func NewTeacherAssignmentResponse(model models.TeacherAssignment) TeacherAssignmentResponse {
	return TeacherAssignmentResponse{
		ID:      model.ID,
		Teacher: NewUserSummary(model.Teacher),
		Subject: NewSubjectResponse(model.Subject),
	}
}

// EnrollmentRequest places a student in a course.
type EnrollmentRequest struct {
	StudentID uint `json:"student_id" validate:"required"`
	CourseID  uint `json:"course_id" validate:"required"`
}

// EnrollmentResponse serializes an enrollment.
type EnrollmentResponse struct {
	ID         uint           `json:"id"`
	Student    UserSummary    `json:"student"`
	Course     CourseResponse `json:"course"`
	EnrolledAt time.Time      `json:"enrolled_at"`
}

// NewEnrollmentResponse converts an enrollment with preloaded relations.
func NewEnrollmentResponse(model models.Enrollment) EnrollmentResponse {
	return EnrollmentResponse{
		ID:         model.ID,
		Student:    NewUserSummary(model.Student),
		Course:     NewCourseResponse(model.Course),
		EnrolledAt: model.EnrolledAt,
	}
}

// ReinforcementGroupRequest creates or replaces the group of a level.
type ReinforcementGroupRequest struct {
	Level            int    `json:"level" validate:"required,min=1,max=8"`
	MathTeacherID    *uint  `json:"math_teacher_id" validate:"omitempty,gt=0"`
	EnglishTeacherID *uint  `json:"english_teacher_id" validate:"omitempty,gt=0"`
	StudentIDs       []uint `json:"student_ids" validate:"omitempty,dive,gt=0"`
}

// ReinforcementGroupResponse serializes a reinforcement group.
type ReinforcementGroupResponse struct {
	ID             uint          `json:"id"`
	Level          int           `json:"level"`
	MathTeacher    *UserSummary  `json:"math_teacher"`
	EnglishTeacher *UserSummary  `json:"english_teacher"`
	Members        []UserSummary `json:"members"`
}

// NewReinforcementGroupResponse converts a group with preloaded relations.
func NewReinforcementGroupResponse(group models.ReinforcementGroup) ReinforcementGroupResponse {
	resp := ReinforcementGroupResponse{ID: group.ID, Level: group.Level, Members: make([]UserSummary, 0, len(group.Members))}
	if group.MathTeacher != nil {
		summary := NewUserSummary(*group.MathTeacher)
		resp.MathTeacher = &summary
	}
	if group.EnglishTeacher != nil {
		summary := NewUserSummary(*group.EnglishTeacher)
		resp.EnglishTeacher = &summary
	}
	for _, member := range group.Members {
		resp.Members = append(resp.Members, NewUserSummary(member))
	}
	return resp
}

// AdminUserUpdateRequest edits a user from the admin panel.
type AdminUserUpdateRequest struct {
	FirstName string `json:"first_name" validate:"required,max=150"`
	LastName  string `json:"last_name" validate:"required,max=150"`
	Email     string `json:"email" validate:"required,email,max=254"`
}

// AdminStudentListRequest filters the student listing.
type AdminStudentListRequest struct {
	CourseID uint
}

// AdminStudentResponse serializes a student with their course.
type AdminStudentResponse struct {
	UserSummary
	Course string `json:"course"`
}

// ProbeResult is the outcome of a dependency health probe.
type ProbeResult struct {
	Status    string  `json:"status"`
	LatencyMS float64 `json:"latency_ms"`
	Error     string  `json:"error,omitempty"`
}

// AdminHealthReport groups dependency probes.
type AdminHealthReport struct {
	Database ProbeResult `json:"database"`
	Redis    ProbeResult `json:"redis"`
}

// AdminDashboardResponse aggregates platform KPIs.
type AdminDashboardResponse struct {
	Students    int64             `json:"students"`
	Teachers    int64             `json:"teachers"`
	Courses     int64             `json:"courses"`
	Subjects    int64             `json:"subjects"`
	Activities  int64             `json:"activities"`
	Health      AdminHealthReport `json:"health"`
	GeneratedAt time.Time         `json:"generated_at"`
}

// ActivityLogListRequest defines filters for retrieving activity logs.
type ActivityLogListRequest struct {
	Page       int
	PageSize   int
	ActorID    uint
	Action     string
	EntityType string
	EntityID   uint
	Since      *time.Time
}

// ActivityLogResponse serializes activity log entries.
type ActivityLogResponse struct {
	ID         uint                   `json:"id"`
	ActorID    uint                   `json:"actor_id"`
	ActorRole  string                 `json:"actor_role"`
	Action     string                 `json:"action"`
	EntityType string                 `json:"entity_type"`
	EntityID   *uint                  `json:"entity_id"`
	Metadata   map[string]interface{} `json:"metadata"`
	CreatedAt  time.Time              `json:"created_at"`
}

// ActivityLogListResponse wraps paginated activity logs.
type ActivityLogListResponse struct {
	Items      []ActivityLogResponse `json:"items"`
	Pagination PaginationMeta        `json:"pagination"`
}

func metadataFromJSON(data datatypes.JSONMap) map[string]interface{} {
	if data == nil {
		return map[string]interface{}{}
	}
	return map[string]interface{}(data)
}

// NewActivityLogResponse converts a model into an activity log DTO.
func NewActivityLogResponse(entry models.ActivityLog) ActivityLogResponse {
	return ActivityLogResponse{
		ID:         entry.ID,
		ActorID:    entry.ActorID,
		ActorRole:  entry.ActorRole,
		Action:     entry.Action,
		EntityType: entry.EntityType,
		EntityID:   entry.EntityID,
		Metadata:   metadataFromJSON(entry.Metadata),
		CreatedAt:  entry.CreatedAt,
	}
}
