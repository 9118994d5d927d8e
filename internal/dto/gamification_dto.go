package dto

import (
	"time"

	"github.com/noah-isme/levelup-api/internal/gamification"
	"github.com/noah-isme/levelup-api/internal/models"
)

// GamificationSummary is the XP and economy snapshot of a user.
type GamificationSummary struct {
	UserID              uint              `json:"user_id"`
	Level               int               `json:"level"`
	CurrentXP           int               `json:"current_xp"`
	TotalXP             int               `json:"total_xp"`
	XPNeeded            int               `json:"xp_needed"`
	ProgressPercent     int               `json:"progress_percent"`
	ActivitiesCompleted int               `json:"activities_completed"`
	Rank                gamification.Rank `json:"rank"`
	RankBlurb           string            `json:"rank_blurb"`
	ActivitiesToNext    int               `json:"activities_to_next_rank"`
	Coins               int               `json:"coins"`
	Medals              int               `json:"medals"`
	Accessories         []string          `json:"accessories"`
}

// NewGamificationSummary builds the snapshot from a profile and optional student economy.
func NewGamificationSummary(profile models.GamificationProfile, student *models.StudentProfile) GamificationSummary {
	summary := GamificationSummary{
		UserID:              profile.UserID,
		Level:               profile.Level,
		CurrentXP:           profile.CurrentXP,
		TotalXP:             profile.TotalXP,
		XPNeeded:            gamification.XPNeeded(profile.Level),
		ProgressPercent:     gamification.ProgressPercent(profile.Level, profile.CurrentXP),
		ActivitiesCompleted: profile.ActivitiesCompleted,
		Rank:                gamification.RankFor(profile.ActivitiesCompleted),
		RankBlurb:           gamification.RankBlurb(profile.ActivitiesCompleted),
		ActivitiesToNext:    gamification.ActivitiesToNextRank(profile.ActivitiesCompleted),
		Accessories:         []string{},
	}
	if student != nil {
		summary.Coins = student.Points
		summary.Medals = student.Medals
		summary.Accessories = student.AccessoryList()
	}
	return summary
}

// RewardSummary serializes a reward definition.
type RewardSummary struct {
	ID                 uint   `json:"id"`
	Slug               string `json:"slug"`
	Name               string `json:"name"`
	Description        string `json:"description"`
	Icon               string `json:"icon"`
	RequiredLevel      int    `json:"required_level"`
	RequiredXP         int    `json:"required_xp"`
	RequiredActivities int    `json:"required_activities"`
	Special            bool   `json:"special"`
}

// NewRewardSummary converts a reward model.
func NewRewardSummary(reward models.Reward) RewardSummary {
	return RewardSummary{
		ID:                 reward.ID,
		Slug:               reward.Slug,
		Name:               reward.Name,
		Description:        reward.Description,
		Icon:               reward.Icon,
		RequiredLevel:      reward.RequiredLevel,
		RequiredXP:         reward.RequiredXP,
		RequiredActivities: reward.RequiredActivities,
		Special:            gamification.IsSpecial(reward.Slug),
	}
}

// RewardListResponse lists the catalog with the caller's unlocked ids.
type RewardListResponse struct {
	Rewards     []RewardSummary `json:"rewards"`
	UnlockedIDs []uint          `json:"unlocked_ids"`
}

// RankingRow is one student in the ranking.
type RankingRow struct {
	Position   int    `json:"position"`
	UserID     uint   `json:"user_id"`
	Name       string `json:"name"`
	Initials   string `json:"initials"`
	RankNumber int    `json:"rank_number"`
	RankName   string `json:"rank_name"`
	Activities int    `json:"activities"`
	Level      int    `json:"level"`
}

// RankingResponse is the student ranking with the caller's position.
type RankingResponse struct {
	Rows       []RankingRow `json:"rows"`
	MyPosition *int         `json:"my_position"`
	CacheHit   bool         `json:"cache_hit"`
}

// RanksResponse lists the rank ladder and the caller's profile.
type RanksResponse struct {
	Ranks   []gamification.Rank `json:"ranks"`
	Current GamificationSummary `json:"current"`
}

// RewardNotification is an unlocked reward not yet shown to the user.
type RewardNotification struct {
	Reward     RewardSummary `json:"reward"`
	UnlockedAt time.Time     `json:"unlocked_at"`
}

// RewardEvent is pushed to live clients when rewards or levels change.
type RewardEvent struct {
	Type      string          `json:"type"`
	UserID    uint            `json:"user_id"`
	Rewards   []RewardSummary `json:"rewards,omitempty"`
	Level     int             `json:"level,omitempty"`
	XP        int             `json:"xp,omitempty"`
	Reference uint            `json:"reference,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}
