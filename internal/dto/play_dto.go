package dto

import (
	"time"

	"github.com/noah-isme/levelup-api/internal/grading"
)

// StudentActivitySummary is one activity in the student's list.
type StudentActivitySummary struct {
	ID             uint       `json:"id"`
	Title          string     `json:"title"`
	Description    string     `json:"description"`
	Type           string     `json:"type"`
	Difficulty     int        `json:"difficulty"`
	XPTotal        int        `json:"xp_total"`
	AttemptsUsed   int        `json:"attempts_used"`
	AttemptsMax    int        `json:"attempts_max"`
	Unlimited      bool       `json:"unlimited"`
	HasOpenAttempt bool       `json:"has_open_attempt"`
	CanAttempt     bool       `json:"can_attempt"`
	HasResults     bool       `json:"has_results"`
	Closed         bool       `json:"closed"`
	ClosesAt       *time.Time `json:"closes_at"`
}

// StudentActivityGroup groups activities by subject name.
type StudentActivityGroup struct {
	Subject    string                   `json:"subject"`
	Activities []StudentActivitySummary `json:"activities"`
}

// StudentActivityListResponse is the student's activity board.
type StudentActivityListResponse struct {
	ActiveSubject *SubjectResponse       `json:"active_subject"`
	Subjects      []SubjectResponse      `json:"subjects"`
	Groups        []StudentActivityGroup `json:"groups"`
}

// SetSubjectRequest remembers the subject a student is browsing.
type SetSubjectRequest struct {
	Slug string `json:"slug" validate:"required,max=140"`
}

// PlayResponse opens an attempt and returns the playable items.
type PlayResponse struct {
	ActivityID   uint           `json:"activity_id"`
	Title        string         `json:"title"`
	SubmissionID uint           `json:"submission_id"`
	Attempt      int            `json:"attempt"`
	AttemptsMax  int            `json:"attempts_max"`
	Unlimited    bool           `json:"unlimited"`
	XPTotal      int            `json:"xp_total"`
	Items        []ItemResponse `json:"items"`
}

// AnswerRequest wraps the minigame result of one item.
type AnswerRequest struct {
	Payload grading.GamePayload `json:"payload"`
}

// AnswerReward is what an item answer earned.
type AnswerReward struct {
	XP           int      `json:"xp"`
	Coins        int      `json:"coins"`
	Unlocks      []string `json:"unlocks"`
	LevelUp      bool     `json:"level_up"`
	LevelsGained int      `json:"levels_gained"`
}

// AnswerResponse acknowledges a stored item answer.
type AnswerResponse struct {
	SubmissionID uint         `json:"submission_id"`
	AnswerID     uint         `json:"answer_id"`
	Correct      bool         `json:"correct"`
	Points       int          `json:"points"`
	Reward       AnswerReward `json:"reward"`
}

// FinishResponse closes an attempt.
type FinishResponse struct {
	SubmissionID    uint            `json:"submission_id"`
	Grade           float64         `json:"grade"`
	XPEarned        int             `json:"xp_earned"`
	NewAchievements []RewardSummary `json:"new_achievements"`
	AttemptsUsed    int             `json:"attempts_used"`
	AttemptsMax     int             `json:"attempts_max"`
	Unlimited       bool            `json:"unlimited"`
	CanRetry        bool            `json:"can_retry"`
}

// ResultsRequest selects an attempt and filters its items.
type ResultsRequest struct {
	Attempt int
	Filter  string
}

// ResultItem is the reconstructed outcome of one item.
type ResultItem struct {
	ItemID    uint            `json:"item_id"`
	Order     int             `json:"order"`
	Statement string          `json:"statement"`
	Points    int             `json:"points"`
	Earned    int             `json:"earned"`
	Outcome   grading.Outcome `json:"outcome"`
}

// AttemptSummary lists one finalized attempt.
type AttemptSummary struct {
	SubmissionID uint       `json:"submission_id"`
	Attempt      int        `json:"attempt"`
	Grade        *float64   `json:"grade"`
	SubmittedAt  *time.Time `json:"submitted_at"`
}

// ResultsResponse is the results page of an attempt.
type ResultsResponse struct {
	ActivityID    uint             `json:"activity_id"`
	Title         string           `json:"title"`
	Attempt       int              `json:"attempt"`
	Filter        string           `json:"filter"`
	Items         []ResultItem     `json:"items"`
	Correct       int              `json:"correct"`
	Incorrect     int              `json:"incorrect"`
	TotalItems    int              `json:"total_items"`
	Tally         grading.Tally    `json:"tally"`
	GlobalPercent int              `json:"global_percent"`
	Grade         *float64         `json:"grade"`
	XPEarned      int              `json:"xp_earned"`
	Attempts      []AttemptSummary `json:"attempts"`
	CanRetry      bool             `json:"can_retry"`
}

// HintResponse carries the hint for one item.
type HintResponse struct {
	ItemID uint   `json:"item_id"`
	Hint   string `json:"hint"`
	Source string `json:"source"`
}

// ReinforcementTeachers lists the support teachers of a student.
type ReinforcementTeachers struct {
	Level          int          `json:"level"`
	MathTeacher    *UserSummary `json:"math_teacher"`
	EnglishTeacher *UserSummary `json:"english_teacher"`
}

// StudentPortalResponse is the student home page.
type StudentPortalResponse struct {
	Student       UserSummary            `json:"student"`
	Course        string                 `json:"course"`
	Reinforcement *ReinforcementTeachers `json:"reinforcement"`
	Gamification  GamificationSummary    `json:"gamification"`
	CacheHit      bool                   `json:"cache_hit"`
}
