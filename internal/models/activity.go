package models

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
)

// Activity types.
const (
	ActivityTypeQuiz = "quiz"
	ActivityTypeGame = "game"
)

// Activity is a teacher-authored quiz or game made of ordered items.
type Activity struct {
	ID                uint           `gorm:"primaryKey" json:"id"`
	Title             string         `gorm:"size:200;not null" json:"title"`
	Description       string         `gorm:"type:text" json:"description"`
	Type              string         `gorm:"size:16;not null;default:quiz" json:"type"`
	Difficulty        int            `gorm:"not null;default:2" json:"difficulty"`
	XPTotal           int            `gorm:"column:xp_total;not null;default:100" json:"xp_total"`
	AttemptsMax       int            `gorm:"not null;default:1" json:"attempts_max"`
	UnlimitedAttempts bool           `gorm:"not null;default:false" json:"unlimited_attempts"`
	Published         bool           `gorm:"not null;default:false;index" json:"published"`
	PublishedAt       *time.Time     `json:"published_at"`
	ClosesAt          *time.Time     `json:"closes_at"`
	SubjectID         *uint          `gorm:"index" json:"subject_id"`
	TeacherID         uint           `gorm:"not null;index" json:"teacher_id"`
	CreatedAt         time.Time      `json:"created_at"`
	UpdatedAt         time.Time      `json:"updated_at"`
	Subject           *Subject       `gorm:"constraint:OnDelete:SET NULL" json:"subject,omitempty"`
	Teacher           User           `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
	Items             []ActivityItem `gorm:"constraint:OnDelete:CASCADE" json:"items,omitempty"`
}

// IsClosed reports whether the activity stopped accepting attempts.
func (a Activity) IsClosed(now time.Time) bool {
	return a.ClosesAt != nil && now.After(*a.ClosesAt)
}

// ActivityItem is one typed exercise inside an activity.
type ActivityItem struct {
	ID         uint           `gorm:"primaryKey" json:"id"`
	ActivityID uint           `gorm:"not null;index" json:"activity_id"`
	Position   int            `gorm:"not null;default:0" json:"order"`
	Type       string         `gorm:"size:24;not null" json:"type"`
	Statement  string         `gorm:"type:text" json:"statement"`
	Data       datatypes.JSON `gorm:"type:json" json:"data"`
	Points     int            `gorm:"not null;default:10" json:"points"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
}

// DataMap decodes the item payload.
func (i ActivityItem) DataMap() map[string]interface{} {
	out := map[string]interface{}{}
	if len(i.Data) == 0 {
		return out
	}
	if err := json.Unmarshal(i.Data, &out); err != nil || out == nil {
		return map[string]interface{}{}
	}
	return out
}

// ActivityLog captures auditable events triggered by users and the XP ledger.
type ActivityLog struct {
	ID         uint              `gorm:"primaryKey" json:"id"`
	ActorID    uint              `gorm:"not null;index" json:"actor_id"`
	ActorRole  string            `gorm:"size:32;not null" json:"actor_role"`
	Action     string            `gorm:"size:64;not null;index" json:"action"`
	EntityType string            `gorm:"size:64;not null" json:"entity_type"`
	EntityID   *uint             `json:"entity_id"`
	Metadata   datatypes.JSONMap `gorm:"type:json" json:"metadata"`
	CreatedAt  time.Time         `json:"created_at"`
}
