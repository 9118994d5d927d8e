package models

import (
	"time"

	"github.com/noah-isme/levelup-api/internal/gamification"
)

// GamificationProfile tracks XP, level and completed activities of a user.
type GamificationProfile struct {
	ID                  uint      `gorm:"primaryKey" json:"id"`
	UserID              uint      `gorm:"not null;uniqueIndex" json:"user_id"`
	Level               int       `gorm:"not null;default:0" json:"level"`
	CurrentXP           int       `gorm:"column:current_xp;not null;default:0" json:"current_xp"`
	TotalXP             int       `gorm:"column:total_xp;not null;default:0" json:"total_xp"`
	ActivitiesCompleted int       `gorm:"not null;default:0" json:"activities_completed"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
	User                User      `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
}

// Progress exposes the leveling state.
func (p GamificationProfile) Progress() gamification.Progress {
	return gamification.Progress{
		Level:               p.Level,
		CurrentXP:           p.CurrentXP,
		TotalXP:             p.TotalXP,
		ActivitiesCompleted: p.ActivitiesCompleted,
	}
}

// Apply copies a leveling state back onto the profile.
func (p *GamificationProfile) Apply(progress gamification.Progress) {
	p.Level = progress.Level
	p.CurrentXP = progress.CurrentXP
	p.TotalXP = progress.TotalXP
	p.ActivitiesCompleted = progress.ActivitiesCompleted
}

// Reward is an unlockable achievement definition.
type Reward struct {
	ID                 uint      `gorm:"primaryKey" json:"id"`
	Slug               string    `gorm:"size:80;not null;uniqueIndex" json:"slug"`
	Name               string    `gorm:"size:120;not null" json:"name"`
	Description        string    `gorm:"type:text" json:"description"`
	Icon               string    `gorm:"size:64" json:"icon"`
	RequiredLevel      int       `gorm:"not null;default:0" json:"required_level"`
	RequiredXP         int       `gorm:"column:required_xp;not null;default:0" json:"required_xp"`
	RequiredActivities int       `gorm:"not null;default:0" json:"required_activities"`
	CreatedAt          time.Time `json:"created_at"`
}

// Requirement converts the reward thresholds for eligibility checks.
func (r Reward) Requirement() gamification.Requirement {
	return gamification.Requirement{
		Slug:               r.Slug,
		RequiredLevel:      r.RequiredLevel,
		RequiredXP:         r.RequiredXP,
		RequiredActivities: r.RequiredActivities,
	}
}

// UserReward records a reward unlocked by a profile.
type UserReward struct {
	ID         uint                `gorm:"primaryKey" json:"id"`
	ProfileID  uint                `gorm:"not null;uniqueIndex:idx_user_reward_profile_reward" json:"profile_id"`
	RewardID   uint                `gorm:"not null;uniqueIndex:idx_user_reward_profile_reward" json:"reward_id"`
	UnlockedAt time.Time           `gorm:"not null" json:"unlocked_at"`
	Notified   bool                `gorm:"not null;default:false;index" json:"notified"`
	Profile    GamificationProfile `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
	Reward     Reward              `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"reward"`
}
