package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/noah-isme/levelup-api/internal/models"
)

// StandingRow is the raw ranking data of one student.
type StandingRow struct {
	UserID              uint
	Username            string
	FirstName           string
	LastName            string
	Level               int
	ActivitiesCompleted int
}

// GamificationRepository persists XP profiles and the reward catalog.
type GamificationRepository interface {
	GetOrCreateProfile(ctx context.Context, userID uint) (models.GamificationProfile, error)
	SaveProfile(ctx context.Context, profile *models.GamificationProfile) error
	ListRewards(ctx context.Context) ([]models.Reward, error)
	GetRewardsBySlugs(ctx context.Context, slugs []string) ([]models.Reward, error)
	UpsertReward(ctx context.Context, reward *models.Reward) error
	UnlockedRewardIDs(ctx context.Context, profileID uint) ([]uint, error)
	CreateUserRewards(ctx context.Context, rewards []models.UserReward) error
	PendingNotifications(ctx context.Context, profileID uint) ([]models.UserReward, error)
	MarkNotified(ctx context.Context, ids []uint) error
	ListStudentStandings(ctx context.Context) ([]StandingRow, error)
}

type gamificationRepository struct {
	db *gorm.DB
}

// NewGamificationRepository constructs the gamification repository.
func NewGamificationRepository(db *gorm.DB) GamificationRepository {
	return &gamificationRepository{db: db}
}

func (r *gamificationRepository) GetOrCreateProfile(ctx context.Context, userID uint) (models.GamificationProfile, error) {
	var profile models.GamificationProfile
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&profile).Error
	if err == nil {
		return profile, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return models.GamificationProfile{}, err
	}

	profile = models.GamificationProfile{UserID: userID}
	if err := r.db.WithContext(ctx).Omit("User").Create(&profile).Error; err != nil {
		return models.GamificationProfile{}, err
	}
	return profile, nil
}

func (r *gamificationRepository) SaveProfile(ctx context.Context, profile *models.GamificationProfile) error {
	return r.db.WithContext(ctx).Omit("User").Save(profile).Error
}

func (r *gamificationRepository) ListRewards(ctx context.Context) ([]models.Reward, error) {
	var rewards []models.Reward
	if err := r.db.WithContext(ctx).Order("name ASC, id ASC").Find(&rewards).Error; err != nil {
		return nil, err
	}
	return rewards, nil
}

func (r *gamificationRepository) GetRewardsBySlugs(ctx context.Context, slugs []string) ([]models.Reward, error) {
	if len(slugs) == 0 {
		return []models.Reward{}, nil
	}
	var rewards []models.Reward
	if err := r.db.WithContext(ctx).Where("slug IN ?", slugs).Order("id ASC").Find(&rewards).Error; err != nil {
		return nil, err
	}
	return rewards, nil
}

func (r *gamificationRepository) UpsertReward(ctx context.Context, reward *models.Reward) error {
	tx := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "slug"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "description", "icon", "required_level", "required_xp", "required_activities"}),
	})
	if err := tx.Create(reward).Error; err != nil {
		return err
	}

	var stored models.Reward
	if err := r.db.WithContext(ctx).Where("slug = ?", reward.Slug).First(&stored).Error; err != nil {
		return err
	}
	*reward = stored
	return nil
}

func (r *gamificationRepository) UnlockedRewardIDs(ctx context.Context, profileID uint) ([]uint, error) {
	var ids []uint
	if err := r.db.WithContext(ctx).
		Model(&models.UserReward{}).
		Where("profile_id = ?", profileID).
		Order("reward_id ASC").
		Pluck("reward_id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *gamificationRepository) CreateUserRewards(ctx context.Context, rewards []models.UserReward) error {
	if len(rewards) == 0 {
		return nil
	}
	now := time.Now().UTC()
	for i := range rewards {
		if rewards[i].UnlockedAt.IsZero() {
			rewards[i].UnlockedAt = now
		}
	}
	return r.db.WithContext(ctx).
		Omit("Profile", "Reward").
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&rewards).Error
}

func (r *gamificationRepository) PendingNotifications(ctx context.Context, profileID uint) ([]models.UserReward, error) {
	var rewards []models.UserReward
	if err := r.db.WithContext(ctx).
		Preload("Reward").
		Where("profile_id = ? AND notified = ?", profileID, false).
		Order("unlocked_at ASC, id ASC").
		Find(&rewards).Error; err != nil {
		return nil, err
	}
	return rewards, nil
}

func (r *gamificationRepository) MarkNotified(ctx context.Context, ids []uint) error {
	if len(ids) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Model(&models.UserReward{}).Where("id IN ?", ids).Update("notified", true).Error
}

func (r *gamificationRepository) ListStudentStandings(ctx context.Context) ([]StandingRow, error) {
	var rows []StandingRow
	if err := r.db.WithContext(ctx).
		Model(&models.User{}).
		Select("users.id AS user_id, users.username, users.first_name, users.last_name, " +
			"COALESCE(gamification_profiles.level, 0) AS level, " +
			"COALESCE(gamification_profiles.activities_completed, 0) AS activities_completed").
		Joins("LEFT JOIN gamification_profiles ON gamification_profiles.user_id = users.id").
		Where("users.role = ?", models.RoleStudent).
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
