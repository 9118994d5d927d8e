package models

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
)

// Submission is one student attempt at an activity.
type Submission struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	ActivityID  uint       `gorm:"not null;index:idx_submission_activity_student" json:"activity_id"`
	StudentID   uint       `gorm:"not null;index:idx_submission_activity_student" json:"student_id"`
	Attempt     int        `gorm:"not null;default:1" json:"attempt"`
	Finalized   bool       `gorm:"not null;default:false;index" json:"finalized"`
	StartedAt   time.Time  `gorm:"not null" json:"started_at"`
	SubmittedAt *time.Time `json:"submitted_at"`
	Grade       *float64   `json:"grade"`
	XPEarned    int        `gorm:"column:xp_earned;not null;default:0" json:"xp_earned"`
	Activity    Activity   `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
	Student     User       `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
	Answers     []Answer   `gorm:"constraint:OnDelete:CASCADE" json:"answers,omitempty"`
}

// Answer stores the payload posted for one item of a submission.
type Answer struct {
	ID           uint           `gorm:"primaryKey" json:"id"`
	SubmissionID uint           `gorm:"not null;uniqueIndex:idx_answer_submission_item" json:"submission_id"`
	ItemID       uint           `gorm:"not null;uniqueIndex:idx_answer_submission_item" json:"item_id"`
	Payload      datatypes.JSON `gorm:"type:json" json:"payload"`
	Correct      bool           `gorm:"not null;default:false" json:"correct"`
	Score        float64        `gorm:"not null;default:0" json:"score"`
	Points       int            `gorm:"not null;default:0" json:"points"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	Item         ActivityItem   `gorm:"foreignKey:ItemID;constraint:OnDelete:CASCADE" json:"-"`
}

// PayloadMap decodes the stored answer payload.
func (a Answer) PayloadMap() map[string]interface{} {
	if len(a.Payload) == 0 {
		return map[string]interface{}{}
	}
	out := map[string]interface{}{}
	if err := json.Unmarshal(a.Payload, &out); err != nil || out == nil {
		return map[string]interface{}{}
	}
	return out
}
