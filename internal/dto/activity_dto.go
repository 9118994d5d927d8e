package dto

import (
	"time"

	"github.com/noah-isme/levelup-api/internal/models"
)

// ActivityRequest creates or updates an activity.
type ActivityRequest struct {
	Title             string     `json:"title" validate:"required,max=200"`
	Description       string     `json:"description" validate:"omitempty,max=5000"`
	Type              string     `json:"type" validate:"omitempty,oneof=quiz game juego"`
	Difficulty        *int       `json:"difficulty" validate:"omitempty,min=1,max=3"`
	XPTotal           *int       `json:"xp_total" validate:"omitempty,min=0,max=100000"`
	AttemptsMax       *int       `json:"attempts_max" validate:"omitempty,min=1,max=20"`
	UnlimitedAttempts bool       `json:"unlimited_attempts"`
	Published         bool       `json:"published"`
	ClosesAt          *time.Time `json:"closes_at"`
	SubjectID         *uint      `json:"subject_id" validate:"omitempty,gt=0"`
}

// ActivityResponse serializes an activity for its author.
type ActivityResponse struct {
	ID                uint             `json:"id"`
	Title             string           `json:"title"`
	Description       string           `json:"description"`
	Type              string           `json:"type"`
	Difficulty        int              `json:"difficulty"`
	XPTotal           int              `json:"xp_total"`
	AttemptsMax       int              `json:"attempts_max"`
	UnlimitedAttempts bool             `json:"unlimited_attempts"`
	Published         bool             `json:"published"`
	PublishedAt       *time.Time       `json:"published_at"`
	ClosesAt          *time.Time       `json:"closes_at"`
	Subject           *SubjectResponse `json:"subject"`
	TeacherID         uint             `json:"teacher_id"`
	ItemCount         int              `json:"item_count"`
	Items             []ItemResponse   `json:"items,omitempty"`
	CreatedAt         time.Time        `json:"created_at"`
	UpdatedAt         time.Time        `json:"updated_at"`
}

// NewActivityResponse converts an activity, including any preloaded items.
func NewActivityResponse(activity models.Activity) ActivityResponse {
	resp := ActivityResponse{
		ID:                activity.ID,
		Title:             activity.Title,
		Description:       activity.Description,
		Type:              activity.Type,
		Difficulty:        activity.Difficulty,
		XPTotal:           activity.XPTotal,
		AttemptsMax:       activity.AttemptsMax,
		UnlimitedAttempts: activity.UnlimitedAttempts,
		Published:         activity.Published,
		PublishedAt:       activity.PublishedAt,
		ClosesAt:          activity.ClosesAt,
		TeacherID:         activity.TeacherID,
		ItemCount:         len(activity.Items),
		CreatedAt:         activity.CreatedAt,
		UpdatedAt:         activity.UpdatedAt,
	}
	if activity.Subject != nil {
		subject := NewSubjectResponse(*activity.Subject)
		resp.Subject = &subject
	}
	if len(activity.Items) > 0 {
		resp.Items = make([]ItemResponse, 0, len(activity.Items))
		for _, item := range activity.Items {
			resp.Items = append(resp.Items, NewItemResponse(item))
		}
	}
	return resp
}

// ItemRequest creates or updates an activity item.
type ItemRequest struct {
	Type      string                 `json:"type" validate:"omitempty,oneof=game game_config"`
	Statement string                 `json:"statement" validate:"omitempty,max=2000"`
	Kind      string                 `json:"kind" validate:"omitempty,max=32"`
	TimeLimit *int                   `json:"time_limit"`
	Points    *int                   `json:"points" validate:"omitempty,min=1,max=1000"`
	Data      map[string]interface{} `json:"data"`
}

// ItemResponse serializes an activity item.
type ItemResponse struct {
	ID        uint                   `json:"id"`
	Order     int                    `json:"order"`
	Type      string                 `json:"type"`
	Kind      string                 `json:"kind,omitempty"`
	Statement string                 `json:"statement"`
	Points    int                    `json:"points"`
	Data      map[string]interface{} `json:"data"`
}

// NewItemResponse converts an item model.
func NewItemResponse(item models.ActivityItem) ItemResponse {
	data := item.DataMap()
	kind, _ := data["kind"].(string)
	return ItemResponse{
		ID:        item.ID,
		Order:     item.Position,
		Type:      item.Type,
		Kind:      kind,
		Statement: item.Statement,
		Points:    item.Points,
		Data:      data,
	}
}

// AssignRequest assigns an activity to whole courses and individual students.
type AssignRequest struct {
	CourseIDs  []uint `json:"course_ids" validate:"omitempty,dive,gt=0"`
	StudentIDs []uint `json:"student_ids" validate:"omitempty,dive,gt=0"`
}

// AssignResponse reports how many new assignments were created.
type AssignResponse struct {
	Created int `json:"created"`
	Total   int `json:"total"`
}

// AttemptOverrideRequest sets a per-student attempt limit. A null value clears it.
type AttemptOverrideRequest struct {
	AttemptsAllowed *int `json:"attempts_allowed" validate:"omitempty,min=1,max=20"`
}

// ActivityAssignmentResponse serializes a student assignment.
type ActivityAssignmentResponse struct {
	StudentID       uint      `json:"student_id"`
	StudentName     string    `json:"student_name"`
	AttemptsAllowed *int      `json:"attempts_allowed"`
	AttemptsUsed    int       `json:"attempts_used"`
	AssignedAt      time.Time `json:"assigned_at"`
}

// RecentSubmission is a finalized attempt shown on the teacher dashboard.
type RecentSubmission struct {
	SubmissionID  uint       `json:"submission_id"`
	ActivityID    uint       `json:"activity_id"`
	ActivityTitle string     `json:"activity_title"`
	StudentID     uint       `json:"student_id"`
	StudentName   string     `json:"student_name"`
	Attempt       int        `json:"attempt"`
	Grade         *float64   `json:"grade"`
	XPEarned      int        `json:"xp_earned"`
	SubmittedAt   *time.Time `json:"submitted_at"`
}

// TeacherDashboardResponse summarizes a teacher's activities.
type TeacherDashboardResponse struct {
	TotalActivities   int64              `json:"total_activities"`
	AssignedStudents  int64              `json:"assigned_students"`
	RecentSubmissions []RecentSubmission `json:"recent_submissions"`
}

// GradingPreviewRequest runs the structured grader without persisting anything.
type GradingPreviewRequest struct {
	Type    string                 `json:"type" validate:"required"`
	Config  map[string]interface{} `json:"config"`
	Answers map[string]interface{} `json:"answers"`
}

// GradingPreviewResponse carries the normalized score and feedback.
type GradingPreviewResponse struct {
	Score    float64                `json:"score"`
	Percent  int                    `json:"percent"`
	Feedback map[string]interface{} `json:"feedback"`
}
