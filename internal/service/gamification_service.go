package service

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/noah-isme/levelup-api/internal/dto"
	"github.com/noah-isme/levelup-api/internal/gamification"
	"github.com/noah-isme/levelup-api/internal/models"
	"github.com/noah-isme/levelup-api/internal/observability"
	"github.com/noah-isme/levelup-api/internal/repository"
)

// RankingCacheKey is the redis key holding the rendered student ranking.
const RankingCacheKey = "ranking:students"

// XPOutcome reports the effect of an XP award.
type XPOutcome struct {
	Gained              int
	Level               int
	LevelsGained        int
	ActivitiesCompleted int
	Unlocked            []models.Reward
}

// GamificationService owns XP, levels, rewards and the ranking.
type GamificationService interface {
	Summary(ctx context.Context, userID uint) (dto.GamificationSummary, error)
	AddXP(ctx context.Context, userID uint, amount int, origin string, reference uint) (XPOutcome, error)
	RegisterActivityCompleted(ctx context.Context, userID uint, xp int, origin string, reference uint) (XPOutcome, error)
	GrantAchievements(ctx context.Context, userID uint, slugs []string) ([]models.Reward, error)
	Rewards(ctx context.Context, userID uint) (dto.RewardListResponse, error)
	Ranking(ctx context.Context, userID uint) (dto.RankingResponse, error)
	Ranks(ctx context.Context, userID uint) (dto.RanksResponse, error)
	Notifications(ctx context.Context, userID uint) ([]dto.RewardNotification, error)
}

type gamificationService struct {
	repo     repository.GamificationRepository
	users    repository.UserRepository
	cache    *redis.Client
	cacheTTL time.Duration
	notifier RewardNotifier
	logger   zerolog.Logger
	tracer   trace.Tracer
	now      func() time.Time
}

// NewGamificationService constructs the gamification service. cache and notifier may be nil.
func NewGamificationService(repo repository.GamificationRepository, users repository.UserRepository, cache *redis.Client, cacheTTL time.Duration, notifier RewardNotifier, logger zerolog.Logger) GamificationService {
	if cacheTTL <= 0 {
		cacheTTL = time.Minute
	}
	return &gamificationService{
		repo:     repo,
		users:    users,
		cache:    cache,
		cacheTTL: cacheTTL,
		notifier: notifier,
		logger:   logger.With().Str("component", "gamification_service").Logger(),
		tracer:   otel.Tracer("github.com/noah-isme/levelup-api/internal/service/gamification"),
		now:      time.Now,
	}
}

func (s *gamificationService) Summary(ctx context.Context, userID uint) (dto.GamificationSummary, error) {
	profile, err := s.repo.GetOrCreateProfile(ctx, userID)
	if err != nil {
		return dto.GamificationSummary{}, err
	}

	student, err := s.studentEconomy(ctx, userID)
	if err != nil {
		return dto.GamificationSummary{}, err
	}
	return dto.NewGamificationSummary(profile, student), nil
}

// studentEconomy returns the coin wallet only for student accounts.
func (s *gamificationService) studentEconomy(ctx context.Context, userID uint) (*models.StudentProfile, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	if user.Role != models.RoleStudent {
		return nil, nil
	}
	profile, err := s.users.GetStudentProfile(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &profile, nil
}

func (s *gamificationService) AddXP(ctx context.Context, userID uint, amount int, origin string, reference uint) (XPOutcome, error) {
	return s.award(ctx, userID, amount, origin, reference, false)
}

func (s *gamificationService) RegisterActivityCompleted(ctx context.Context, userID uint, xp int, origin string, reference uint) (XPOutcome, error) {
	return s.award(ctx, userID, xp, origin, reference, true)
}

func (s *gamificationService) award(ctx context.Context, userID uint, amount int, origin string, reference uint, completed bool) (XPOutcome, error) {
	spanCtx, span := s.tracer.Start(ctx, "gamification.award_xp", trace.WithAttributes(
		attribute.Int64("user.id", int64(userID)),
		attribute.Int("xp.amount", amount),
		attribute.String("xp.origin", origin),
		attribute.Bool("activity.completed", completed),
	))
	defer span.End()

	profile, err := s.repo.GetOrCreateProfile(spanCtx, userID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return XPOutcome{}, err
	}

	progress := profile.Progress()
	if completed {
		progress.ActivitiesCompleted++
	}
	result := gamification.ApplyXP(&progress, amount)
	if result.Gained == 0 && !completed {
		return XPOutcome{Level: profile.Level, ActivitiesCompleted: profile.ActivitiesCompleted}, nil
	}

	profile.Apply(progress)
	if err := s.repo.SaveProfile(spanCtx, &profile); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return XPOutcome{}, err
	}

	if result.Gained > 0 {
		observability.XPAwarded().WithLabelValues(originLabel(origin)).Add(float64(result.Gained))
	}
	if result.LevelsGained > 0 {
		observability.LevelUps().Add(float64(result.LevelsGained))
		s.publish(spanCtx, dto.RewardEvent{
			Type:      EventLevelUp,
			UserID:    userID,
			Level:     profile.Level,
			XP:        profile.TotalXP,
			Reference: reference,
		})
	}
	// Ranking rows carry the level, so level changes invalidate them too.
	if completed || result.LevelsGained > 0 {
		s.invalidateRanking(spanCtx)
	}

	unlocked, err := s.unlockEligible(spanCtx, profile)
	if err != nil {
		s.logger.Warn().Err(err).Uint("user_id", userID).Msg("failed to unlock threshold rewards")
	}

	s.logger.Debug().
		Uint("user_id", userID).
		Int("xp", result.Gained).
		Str("origin", origin).
		Uint("reference", reference).
		Int("level", profile.Level).
		Msg("xp awarded")

	return XPOutcome{
		Gained:              result.Gained,
		Level:               profile.Level,
		LevelsGained:        result.LevelsGained,
		ActivitiesCompleted: profile.ActivitiesCompleted,
		Unlocked:            unlocked,
	}, nil
}

// unlockEligible grants every threshold reward the profile now qualifies for.
func (s *gamificationService) unlockEligible(ctx context.Context, profile models.GamificationProfile) ([]models.Reward, error) {
	catalog, err := s.repo.ListRewards(ctx)
	if err != nil {
		return nil, err
	}
	owned, err := s.ownedSet(ctx, profile.ID)
	if err != nil {
		return nil, err
	}

	progress := profile.Progress()
	eligible := make([]models.Reward, 0)
	for _, reward := range catalog {
		if _, has := owned[reward.ID]; has {
			continue
		}
		if reward.Requirement().Eligible(progress) {
			eligible = append(eligible, reward)
		}
	}

	if err := s.unlock(ctx, profile, eligible, "threshold"); err != nil {
		return nil, err
	}
	return eligible, nil
}

func (s *gamificationService) GrantAchievements(ctx context.Context, userID uint, slugs []string) ([]models.Reward, error) {
	if len(slugs) == 0 {
		return []models.Reward{}, nil
	}

	profile, err := s.repo.GetOrCreateProfile(ctx, userID)
	if err != nil {
		return nil, err
	}
	rewards, err := s.repo.GetRewardsBySlugs(ctx, slugs)
	if err != nil {
		return nil, err
	}
	owned, err := s.ownedSet(ctx, profile.ID)
	if err != nil {
		return nil, err
	}

	fresh := make([]models.Reward, 0, len(rewards))
	for _, reward := range rewards {
		if _, has := owned[reward.ID]; !has {
			fresh = append(fresh, reward)
		}
	}
	if len(fresh) == 0 {
		return fresh, nil
	}

	if err := s.unlock(ctx, profile, fresh, "special"); err != nil {
		return nil, err
	}

	student, err := s.users.GetStudentProfile(ctx, userID)
	if err != nil {
		s.logger.Warn().Err(err).Uint("user_id", userID).Msg("failed to load student profile for medals")
		return fresh, nil
	}
	student.Medals += len(fresh)
	if err := s.users.SaveStudentProfile(ctx, &student); err != nil {
		s.logger.Warn().Err(err).Uint("user_id", userID).Msg("failed to store medals")
	}
	return fresh, nil
}

func (s *gamificationService) unlock(ctx context.Context, profile models.GamificationProfile, rewards []models.Reward, kind string) error {
	if len(rewards) == 0 {
		return nil
	}

	now := s.now().UTC()
	rows := make([]models.UserReward, 0, len(rewards))
	summaries := make([]dto.RewardSummary, 0, len(rewards))
	for _, reward := range rewards {
		rows = append(rows, models.UserReward{ProfileID: profile.ID, RewardID: reward.ID, UnlockedAt: now})
		summaries = append(summaries, dto.NewRewardSummary(reward))
	}
	if err := s.repo.CreateUserRewards(ctx, rows); err != nil {
		return err
	}

	observability.RewardsUnlocked().WithLabelValues(kind).Add(float64(len(rewards)))
	s.publish(ctx, dto.RewardEvent{
		Type:    EventRewardUnlocked,
		UserID:  profile.UserID,
		Rewards: summaries,
		Level:   profile.Level,
		XP:      profile.TotalXP,
	})
	return nil
}

func (s *gamificationService) ownedSet(ctx context.Context, profileID uint) (map[uint]struct{}, error) {
	ids, err := s.repo.UnlockedRewardIDs(ctx, profileID)
	if err != nil {
		return nil, err
	}
	set := make(map[uint]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set, nil
}

func (s *gamificationService) Rewards(ctx context.Context, userID uint) (dto.RewardListResponse, error) {
	profile, err := s.repo.GetOrCreateProfile(ctx, userID)
	if err != nil {
		return dto.RewardListResponse{}, err
	}
	catalog, err := s.repo.ListRewards(ctx)
	if err != nil {
		return dto.RewardListResponse{}, err
	}
	unlocked, err := s.repo.UnlockedRewardIDs(ctx, profile.ID)
	if err != nil {
		return dto.RewardListResponse{}, err
	}

	sort.SliceStable(catalog, func(i, j int) bool {
		wi, wj := catalog[i].Slug == gamification.SlugWelcome, catalog[j].Slug == gamification.SlugWelcome
		if wi != wj {
			return wi
		}
		return strings.ToLower(catalog[i].Name) < strings.ToLower(catalog[j].Name)
	})

	rewards := make([]dto.RewardSummary, 0, len(catalog))
	for _, reward := range catalog {
		rewards = append(rewards, dto.NewRewardSummary(reward))
	}
	if unlocked == nil {
		unlocked = []uint{}
	}
	return dto.RewardListResponse{Rewards: rewards, UnlockedIDs: unlocked}, nil
}

func (s *gamificationService) Ranking(ctx context.Context, userID uint) (dto.RankingResponse, error) {
	rows, hit, err := s.rankingRows(ctx)
	if err != nil {
		return dto.RankingResponse{}, err
	}

	response := dto.RankingResponse{Rows: rows, CacheHit: hit}
	for _, row := range rows {
		if row.UserID == userID {
			position := row.Position
			response.MyPosition = &position
			break
		}
	}
	return response, nil
}

func (s *gamificationService) rankingRows(ctx context.Context) ([]dto.RankingRow, bool, error) {
	if s.cache != nil {
		cached, err := s.cache.Get(ctx, RankingCacheKey).Result()
		switch {
		case err == nil:
			var rows []dto.RankingRow
			if jsonErr := json.Unmarshal([]byte(cached), &rows); jsonErr == nil {
				observability.CacheLookups().WithLabelValues("ranking", "hit").Inc()
				return rows, true, nil
			}
		case !errors.Is(err, redis.Nil):
			s.logger.Warn().Err(err).Msg("failed to read ranking cache")
		}
		observability.CacheLookups().WithLabelValues("ranking", "miss").Inc()
	}

	spanCtx, span := s.tracer.Start(ctx, "gamification.rebuild_ranking")
	defer span.End()

	standings, err := s.repo.ListStudentStandings(spanCtx)
	if err != nil {
		span.RecordError(err)
		return nil, false, err
	}

	levels := make(map[uint]int, len(standings))
	ordered := make([]gamification.Standing, 0, len(standings))
	for _, row := range standings {
		name := strings.TrimSpace(row.FirstName + " " + row.LastName)
		if name == "" {
			name = row.Username
		}
		levels[row.UserID] = row.Level
		ordered = append(ordered, gamification.Standing{UserID: row.UserID, Name: name, Activities: row.ActivitiesCompleted})
	}
	gamification.SortStandings(ordered)

	rows := make([]dto.RankingRow, 0, len(ordered))
	for i, standing := range ordered {
		rank := gamification.RankFor(standing.Activities)
		rows = append(rows, dto.RankingRow{
			Position:   i + 1,
			UserID:     standing.UserID,
			Name:       standing.Name,
			Initials:   gamification.Initials(standing.Name),
			RankNumber: rank.Number,
			RankName:   rank.Name,
			Activities: standing.Activities,
			Level:      levels[standing.UserID],
		})
	}
	span.SetAttributes(attribute.Int("ranking.rows", len(rows)))

	if s.cache != nil {
		if payload, err := json.Marshal(rows); err == nil {
			if err := s.cache.Set(spanCtx, RankingCacheKey, payload, s.cacheTTL).Err(); err != nil {
				s.logger.Warn().Err(err).Msg("failed to store ranking cache")
			}
		}
	}
	return rows, false, nil
}

func (s *gamificationService) invalidateRanking(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Del(ctx, RankingCacheKey).Err(); err != nil {
		s.logger.Warn().Err(err).Msg("failed to invalidate ranking cache")
	}
}

func (s *gamificationService) Ranks(ctx context.Context, userID uint) (dto.RanksResponse, error) {
	summary, err := s.Summary(ctx, userID)
	if err != nil {
		return dto.RanksResponse{}, err
	}
	return dto.RanksResponse{Ranks: gamification.RankCatalog(), Current: summary}, nil
}

func (s *gamificationService) Notifications(ctx context.Context, userID uint) ([]dto.RewardNotification, error) {
	profile, err := s.repo.GetOrCreateProfile(ctx, userID)
	if err != nil {
		return nil, err
	}
	pending, err := s.repo.PendingNotifications(ctx, profile.ID)
	if err != nil {
		return nil, err
	}

	notifications := make([]dto.RewardNotification, 0, len(pending))
	ids := make([]uint, 0, len(pending))
	for _, entry := range pending {
		notifications = append(notifications, dto.RewardNotification{
			Reward:     dto.NewRewardSummary(entry.Reward),
			UnlockedAt: entry.UnlockedAt,
		})
		ids = append(ids, entry.ID)
	}

	if len(ids) > 0 {
		if err := s.repo.MarkNotified(ctx, ids); err != nil {
			return nil, err
		}
	}
	return notifications, nil
}

func (s *gamificationService) publish(ctx context.Context, event dto.RewardEvent) {
	if s.notifier == nil {
		return
	}
	s.notifier.Publish(ctx, event)
}

func originLabel(origin string) string {
	origin = strings.ToLower(strings.TrimSpace(origin))
	if origin == "" {
		return "otro"
	}
	return origin
}
