package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/noah-isme/levelup-api/internal/dto"
	"github.com/noah-isme/levelup-api/internal/gamification"
	"github.com/noah-isme/levelup-api/internal/grading"
	"github.com/noah-isme/levelup-api/internal/minigame"
	"github.com/noah-isme/levelup-api/internal/models"
	"github.com/noah-isme/levelup-api/internal/observability"
	"github.com/noah-isme/levelup-api/internal/repository"
	"github.com/noah-isme/levelup-api/pkg/ai"
)

const (
	// XPOriginGame tags XP earned by playing minigame items.
	XPOriginGame = "juego"
	// XPOriginActivity tags activity completions.
	XPOriginActivity = "actividad"

	otherActivitiesGroup = "Otras actividades"
	activeSubjectKey     = "student:%d:subject"
	hintCacheKey         = "hint:item:%d"
)

// Hint sources reported to the client and metrics.
const (
	HintSourceAI       = "ai"
	HintSourceCache    = "cache"
	HintSourceAuthor   = "author"
	HintSourceFallback = "fallback"
)

// PlayService runs the student side of activities.
type PlayService interface {
	List(ctx context.Context, studentID uint, subjectSlug string) (dto.StudentActivityListResponse, error)
	SetSubject(ctx context.Context, studentID uint, req dto.SetSubjectRequest) (dto.SubjectResponse, error)
	Play(ctx context.Context, studentID, activityID uint) (dto.PlayResponse, error)
	Answer(ctx context.Context, studentID, activityID, itemID uint, req dto.AnswerRequest) (dto.AnswerResponse, error)
	Finish(ctx context.Context, studentID, activityID uint) (dto.FinishResponse, error)
	Results(ctx context.Context, studentID, activityID uint, req dto.ResultsRequest) (dto.ResultsResponse, error)
	Hint(ctx context.Context, studentID, activityID, itemID uint) (dto.HintResponse, error)
}

// PlayConfig tunes the play service.
type PlayConfig struct {
	SubjectTTL time.Duration
	HintTTL    time.Duration
}

type playService struct {
	activities   repository.ActivityRepository
	submissions  repository.SubmissionRepository
	academic     repository.AcademicRepository
	users        repository.UserRepository
	gamification GamificationService
	notifier     RewardNotifier
	hinter       ai.Hinter
	cache        *redis.Client
	validator    *validator.Validate
	config       PlayConfig
	logger       zerolog.Logger
	tracer       trace.Tracer
	now          func() time.Time
}

// NewPlayService constructs the play service. cache, notifier and hinter may be nil.
func NewPlayService(
	activities repository.ActivityRepository,
	submissions repository.SubmissionRepository,
	academic repository.AcademicRepository,
	users repository.UserRepository,
	gamificationService GamificationService,
	notifier RewardNotifier,
	hinter ai.Hinter,
	cache *redis.Client,
	validate *validator.Validate,
	config PlayConfig,
	logger zerolog.Logger,
) PlayService {
	if config.SubjectTTL <= 0 {
		config.SubjectTTL = 30 * 24 * time.Hour
	}
	if config.HintTTL <= 0 {
		config.HintTTL = time.Hour
	}
	return &playService{
		activities:   activities,
		submissions:  submissions,
		academic:     academic,
		users:        users,
		gamification: gamificationService,
		notifier:     notifier,
		hinter:       hinter,
		cache:        cache,
		validator:    validate,
		config:       config,
		logger:       logger.With().Str("component", "play_service").Logger(),
		tracer:       otel.Tracer("github.com/noah-isme/levelup-api/internal/service/play"),
		now:          time.Now,
	}
}

func (s *playService) List(ctx context.Context, studentID uint, subjectSlug string) (dto.StudentActivityListResponse, error) {
	subjects, err := s.academic.ListSubjects(ctx)
	if err != nil {
		return dto.StudentActivityListResponse{}, err
	}

	resp := dto.StudentActivityListResponse{
		Subjects: make([]dto.SubjectResponse, 0, len(subjects)),
		Groups:   []dto.StudentActivityGroup{},
	}
	for _, subject := range subjects {
		resp.Subjects = append(resp.Subjects, dto.NewSubjectResponse(subject))
	}

	active := s.resolveSubject(ctx, studentID, subjectSlug, subjects)
	var subjectID *uint
	if active != nil {
		subjectID = &active.ID
		selected := dto.NewSubjectResponse(*active)
		resp.ActiveSubject = &selected
	}

	activities, assignments, err := s.activities.ListAssignedPublished(ctx, studentID, subjectID)
	if err != nil {
		return dto.StudentActivityListResponse{}, err
	}

	byActivity := make(map[uint]models.ActivityAssignment, len(assignments))
	ids := make([]uint, 0, len(activities))
	for _, assignment := range assignments {
		byActivity[assignment.ActivityID] = assignment
	}
	for _, activity := range activities {
		ids = append(ids, activity.ID)
	}

	submissions, err := s.submissions.ListByStudent(ctx, studentID, ids)
	if err != nil {
		return dto.StudentActivityListResponse{}, err
	}
	type usage struct {
		used    int
		open    bool
		results bool
	}
	usages := make(map[uint]*usage, len(ids))
	for _, submission := range submissions {
		u, ok := usages[submission.ActivityID]
		if !ok {
			u = &usage{}
			usages[submission.ActivityID] = u
		}
		u.used++
		if submission.Finalized {
			u.results = true
		} else {
			u.open = true
		}
	}

	now := s.now()
	groups := map[string]*dto.StudentActivityGroup{}
	order := make([]string, 0)
	for _, activity := range activities {
		u := usages[activity.ID]
		if u == nil {
			u = &usage{}
		}
		limit := byActivity[activity.ID].MaxAttempts(activity)
		closed := activity.IsClosed(now)

		summary := dto.StudentActivitySummary{
			ID:             activity.ID,
			Title:          activity.Title,
			Description:    activity.Description,
			Type:           activity.Type,
			Difficulty:     activity.Difficulty,
			XPTotal:        activity.XPTotal,
			AttemptsUsed:   u.used,
			AttemptsMax:    limit,
			Unlimited:      limit == 0,
			HasOpenAttempt: u.open,
			CanAttempt:     !closed && (limit == 0 || u.used < limit),
			HasResults:     u.results,
			Closed:         closed,
			ClosesAt:       activity.ClosesAt,
		}

		name := otherActivitiesGroup
		if activity.Subject != nil {
			name = activity.Subject.Name
		}
		group, ok := groups[name]
		if !ok {
			group = &dto.StudentActivityGroup{Subject: name, Activities: []dto.StudentActivitySummary{}}
			groups[name] = group
			order = append(order, name)
		}
		group.Activities = append(group.Activities, summary)
	}

	sort.SliceStable(order, func(i, j int) bool {
		if order[i] == otherActivitiesGroup || order[j] == otherActivitiesGroup {
			return order[j] == otherActivitiesGroup && order[i] != otherActivitiesGroup
		}
		return order[i] < order[j]
	})
	for _, name := range order {
		resp.Groups = append(resp.Groups, *groups[name])
	}
	return resp, nil
}

// resolveSubject picks the explicit slug, then the remembered one, then the first subject by name.
func (s *playService) resolveSubject(ctx context.Context, studentID uint, slug string, subjects []models.Subject) *models.Subject {
	if len(subjects) == 0 {
		return nil
	}
	if slug == "" {
		slug = s.rememberedSubject(ctx, studentID)
	}
	if slug != "" {
		for i := range subjects {
			if subjects[i].Slug == slug {
				return &subjects[i]
			}
		}
	}
	return &subjects[0]
}

func (s *playService) rememberedSubject(ctx context.Context, studentID uint) string {
	if s.cache == nil {
		return ""
	}
	value, err := s.cache.Get(ctx, fmt.Sprintf(activeSubjectKey, studentID)).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			s.logger.Warn().Err(err).Uint("student_id", studentID).Msg("failed to read active subject")
		}
		return ""
	}
	return value
}

func (s *playService) SetSubject(ctx context.Context, studentID uint, req dto.SetSubjectRequest) (dto.SubjectResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return dto.SubjectResponse{}, err
	}
	subject, err := s.academic.GetSubjectBySlug(ctx, req.Slug)
	if err != nil {
		return dto.SubjectResponse{}, mapNotFound(err, ErrSubjectNotFound)
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, fmt.Sprintf(activeSubjectKey, studentID), subject.Slug, s.config.SubjectTTL).Err(); err != nil {
			s.logger.Warn().Err(err).Uint("student_id", studentID).Msg("failed to remember active subject")
		}
	}
	return dto.NewSubjectResponse(subject), nil
}

// gate loads an activity the student may play right now.
func (s *playService) gate(ctx context.Context, studentID, activityID uint, withItems bool) (models.Activity, models.ActivityAssignment, error) {
	activity, assignment, err := s.assigned(ctx, studentID, activityID, withItems)
	if err != nil {
		return models.Activity{}, models.ActivityAssignment{}, err
	}
	if !activity.Published {
		return models.Activity{}, models.ActivityAssignment{}, ErrActivityNotPublished
	}
	return activity, assignment, nil
}

// assigned loads the activity and the student's assignment without checking publication.
func (s *playService) assigned(ctx context.Context, studentID, activityID uint, withItems bool) (models.Activity, models.ActivityAssignment, error) {
	activity, err := s.activities.GetByID(ctx, activityID, withItems)
	if err != nil {
		return models.Activity{}, models.ActivityAssignment{}, mapNotFound(err, ErrActivityNotFound)
	}
	assignment, err := s.activities.GetAssignment(ctx, activityID, studentID)
	if err != nil {
		return models.Activity{}, models.ActivityAssignment{}, mapNotFound(err, ErrNotAssigned)
	}
	return activity, assignment, nil
}

// openAttempt reuses the open submission or starts the next attempt when one remains.
func (s *playService) openAttempt(ctx context.Context, activity models.Activity, assignment models.ActivityAssignment, studentID uint) (models.Submission, error) {
	submission, err := s.submissions.OpenSubmission(ctx, activity.ID, studentID)
	if err == nil {
		return submission, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return models.Submission{}, err
	}

	used, err := s.submissions.CountAttempts(ctx, activity.ID, studentID)
	if err != nil {
		return models.Submission{}, err
	}
	if limit := assignment.MaxAttempts(activity); limit > 0 && used >= limit {
		return models.Submission{}, ErrAttemptsExhausted
	}

	submission = models.Submission{
		ActivityID: activity.ID,
		StudentID:  studentID,
		Attempt:    used + 1,
		StartedAt:  s.now().UTC(),
	}
	if err := s.submissions.Create(ctx, &submission); err != nil {
		return models.Submission{}, err
	}

	s.logger.Info().
		Uint("student_id", studentID).
		Uint("activity_id", activity.ID).
		Int("attempt", submission.Attempt).
		Msg("attempt started")
	return submission, nil
}

func (s *playService) Play(ctx context.Context, studentID, activityID uint) (dto.PlayResponse, error) {
	activity, assignment, err := s.gate(ctx, studentID, activityID, true)
	if err != nil {
		return dto.PlayResponse{}, err
	}
	if activity.IsClosed(s.now()) {
		return dto.PlayResponse{}, ErrActivityClosed
	}

	submission, err := s.openAttempt(ctx, activity, assignment, studentID)
	if err != nil {
		return dto.PlayResponse{}, err
	}

	items := make([]dto.ItemResponse, 0, len(activity.Items))
	for _, item := range activity.Items {
		if item.Type != minigame.ItemTypeGame {
			continue
		}
		items = append(items, dto.NewItemResponse(item))
	}

	limit := assignment.MaxAttempts(activity)
	return dto.PlayResponse{
		ActivityID:   activity.ID,
		Title:        activity.Title,
		SubmissionID: submission.ID,
		Attempt:      submission.Attempt,
		AttemptsMax:  limit,
		Unlimited:    limit == 0,
		XPTotal:      activity.XPTotal,
		Items:        items,
	}, nil
}

func (s *playService) Answer(ctx context.Context, studentID, activityID, itemID uint, req dto.AnswerRequest) (dto.AnswerResponse, error) {
	ctx, span := s.tracer.Start(ctx, "play.answer", trace.WithAttributes(
		attribute.Int64("user.id", int64(studentID)),
		attribute.Int64("activity.id", int64(activityID)),
		attribute.Int64("item.id", int64(itemID)),
	))
	defer span.End()

	activity, assignment, err := s.gate(ctx, studentID, activityID, false)
	if err != nil {
		return dto.AnswerResponse{}, err
	}
	if activity.IsClosed(s.now()) {
		return dto.AnswerResponse{}, ErrActivityClosed
	}

	item, err := s.activities.GetItem(ctx, activityID, itemID)
	if err != nil {
		return dto.AnswerResponse{}, mapNotFound(err, ErrItemNotFound)
	}

	submission, err := s.openAttempt(ctx, activity, assignment, studentID)
	if err != nil {
		return dto.AnswerResponse{}, err
	}

	eval := grading.EvaluateGameAnswer(req.Payload, item.Points)
	raw, err := json.Marshal(req.Payload)
	if err != nil {
		return dto.AnswerResponse{}, err
	}

	answer := models.Answer{
		SubmissionID: submission.ID,
		ItemID:       item.ID,
		Payload:      datatypes.JSON(raw),
		Correct:      eval.Correct,
		Score:        eval.Ratio,
		Points:       eval.Points,
	}
	if err := s.submissions.UpsertAnswer(ctx, &answer); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return dto.AnswerResponse{}, err
	}

	kind := strings.ToLower(strings.TrimSpace(req.Payload.Kind))
	if kind == "" {
		kind = minigame.KindOf(item.DataMap())
	}
	observability.AnswersGraded().WithLabelValues(kind, strconv.FormatBool(eval.Correct)).Inc()

	reward := gamification.ComputeGameRewards(req.Payload.Meta)
	resp := dto.AnswerResponse{
		SubmissionID: submission.ID,
		AnswerID:     answer.ID,
		Correct:      eval.Correct,
		Points:       eval.Points,
		Reward:       dto.AnswerReward{XP: reward.XP, Coins: reward.Coins, Unlocks: []string{}},
	}

	added, err := s.applyEconomy(ctx, studentID, reward)
	if err != nil {
		s.logger.Warn().Err(err).Uint("student_id", studentID).Msg("failed to apply game rewards")
	} else {
		resp.Reward.Unlocks = added
	}

	outcome, err := s.gamification.AddXP(ctx, studentID, reward.XP, XPOriginGame, activityID)
	if err != nil {
		s.logger.Warn().Err(err).Uint("student_id", studentID).Msg("failed to add game xp")
	} else {
		resp.Reward.LevelUp = outcome.LevelsGained > 0
		resp.Reward.LevelsGained = outcome.LevelsGained
		submission.XPEarned += outcome.Gained
		if err := s.submissions.Update(ctx, &submission); err != nil {
			return dto.AnswerResponse{}, err
		}
	}

	s.invalidatePortal(ctx, studentID)
	return resp, nil
}

func (s *playService) invalidatePortal(ctx context.Context, studentID uint) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Del(ctx, fmt.Sprintf(portalCacheKey, studentID)).Err(); err != nil {
		s.logger.Warn().Err(err).Uint("student_id", studentID).Msg("failed to invalidate portal cache")
	}
}

// applyEconomy credits coins and accessories and returns the newly owned accessories.
func (s *playService) applyEconomy(ctx context.Context, studentID uint, reward gamification.GameReward) ([]string, error) {
	profile, err := s.users.GetStudentProfile(ctx, studentID)
	if err != nil {
		return nil, err
	}
	merged, added := gamification.MergeAccessories(profile.AccessoryList(), reward.Unlocks)
	profile.Points += reward.Coins
	profile.SetAccessories(merged)
	if err := s.users.SaveStudentProfile(ctx, &profile); err != nil {
		return nil, err
	}
	if added == nil {
		added = []string{}
	}
	return added, nil
}

func (s *playService) Finish(ctx context.Context, studentID, activityID uint) (dto.FinishResponse, error) {
	ctx, span := s.tracer.Start(ctx, "play.finish", trace.WithAttributes(
		attribute.Int64("user.id", int64(studentID)),
		attribute.Int64("activity.id", int64(activityID)),
	))
	defer span.End()

	activity, assignment, err := s.gate(ctx, studentID, activityID, true)
	if err != nil {
		return dto.FinishResponse{}, err
	}

	submission, err := s.submissions.OpenSubmission(ctx, activityID, studentID)
	if err != nil {
		return dto.FinishResponse{}, mapNotFound(err, ErrNoOpenAttempt)
	}

	answers, err := s.submissions.ListAnswers(ctx, submission.ID)
	if err != nil {
		return dto.FinishResponse{}, err
	}
	grade, scored := submissionGrade(activity.Items, answers)

	now := s.now().UTC()
	submission.Finalized = true
	submission.SubmittedAt = &now
	submission.Grade = &grade
	if err := s.submissions.Update(ctx, &submission); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return dto.FinishResponse{}, err
	}
	observability.SubmissionsFinalized().Inc()

	if _, err := s.gamification.RegisterActivityCompleted(ctx, studentID, 0, XPOriginActivity, activityID); err != nil {
		s.logger.Warn().Err(err).Uint("student_id", studentID).Msg("failed to register activity completion")
	}

	resp := dto.FinishResponse{
		SubmissionID:    submission.ID,
		Grade:           grade,
		XPEarned:        submission.XPEarned,
		NewAchievements: []dto.RewardSummary{},
	}

	granted, err := s.evaluateAchievements(ctx, studentID, activity, grade, scored)
	if err != nil {
		s.logger.Warn().Err(err).Uint("student_id", studentID).Msg("failed to evaluate achievements")
	}
	for _, reward := range granted {
		resp.NewAchievements = append(resp.NewAchievements, dto.NewRewardSummary(reward))
	}

	used, err := s.submissions.CountAttempts(ctx, activityID, studentID)
	if err != nil {
		return dto.FinishResponse{}, err
	}
	limit := assignment.MaxAttempts(activity)
	resp.AttemptsUsed = used
	resp.AttemptsMax = limit
	resp.Unlimited = limit == 0
	resp.CanRetry = canRetry(activity, limit, used, s.now())

	s.invalidatePortal(ctx, studentID)
	if s.notifier != nil {
		s.notifier.Publish(ctx, dto.RewardEvent{
			Type:      EventSubmissionFinalized,
			UserID:    studentID,
			Reference: submission.ID,
		})
	}

	s.logger.Info().
		Uint("student_id", studentID).
		Uint("activity_id", activityID).
		Int("attempt", submission.Attempt).
		Float64("grade", grade).
		Int("achievements", len(granted)).
		Msg("attempt finalized")

	return resp, nil
}

// submissionGrade is points obtained over points possible, as a percentage of the game items.
func submissionGrade(items []models.ActivityItem, answers []models.Answer) (float64, bool) {
	obtained := make(map[uint]int, len(answers))
	for _, answer := range answers {
		obtained[answer.ItemID] = answer.Points
	}

	possible, earned := 0, 0
	for _, item := range items {
		if item.Type != minigame.ItemTypeGame {
			continue
		}
		possible += item.Points
		earned += obtained[item.ID]
	}
	if possible <= 0 {
		return 0, false
	}
	pct := float64(earned) * 100 / float64(possible)
	return math.Round(pct*100) / 100, true
}

func (s *playService) evaluateAchievements(ctx context.Context, studentID uint, activity models.Activity, grade float64, scored bool) ([]models.Reward, error) {
	history, err := s.submissions.ListFinalizedHistory(ctx, studentID)
	if err != nil {
		return nil, err
	}

	stats := gamification.ActivityStats{
		FinalizedTotal:    len(history),
		Track:             activityTrack(activity),
		SubmissionPercent: grade,
		HasScoredItems:    scored,
		RecentPercents:    make([]float64, 0, gamification.StreakLength),
	}
	for _, submission := range history {
		if stats.Track != gamification.TrackNone && activityTrack(submission.Activity) == stats.Track {
			stats.FinalizedInTrack++
		}
		if len(stats.RecentPercents) < gamification.StreakLength {
			pct := 0.0
			if submission.Grade != nil {
				pct = *submission.Grade
			}
			stats.RecentPercents = append(stats.RecentPercents, pct)
		}
	}

	slugs := gamification.EvaluateActivityAchievements(stats)
	if len(slugs) == 0 {
		return nil, nil
	}
	return s.gamification.GrantAchievements(ctx, studentID, slugs)
}

func activityTrack(activity models.Activity) gamification.Track {
	if activity.Subject == nil {
		return gamification.TrackNone
	}
	return gamification.SubjectTrack(activity.Subject.Name, activity.Subject.Code)
}

func canRetry(activity models.Activity, limit, used int, now time.Time) bool {
	return activity.Published && !activity.IsClosed(now) && (limit == 0 || used < limit)
}

func (s *playService) Results(ctx context.Context, studentID, activityID uint, req dto.ResultsRequest) (dto.ResultsResponse, error) {
	activity, assignment, err := s.assigned(ctx, studentID, activityID, true)
	if err != nil {
		return dto.ResultsResponse{}, err
	}

	finalized, err := s.submissions.ListFinalized(ctx, activityID, studentID)
	if err != nil {
		return dto.ResultsResponse{}, err
	}
	if len(finalized) == 0 {
		return dto.ResultsResponse{}, ErrNoResults
	}

	// Unknown attempt numbers fall back to the latest finalized attempt.
	selected := finalized[len(finalized)-1]
	if req.Attempt > 0 {
		for _, submission := range finalized {
			if submission.Attempt == req.Attempt {
				selected = submission
				break
			}
		}
	}

	answers, err := s.submissions.ListAnswers(ctx, selected.ID)
	if err != nil {
		return dto.ResultsResponse{}, err
	}
	byItem := make(map[uint]models.Answer, len(answers))
	for _, answer := range answers {
		byItem[answer.ItemID] = answer
	}

	filter := grading.NormalizeFilter(req.Filter)
	resp := dto.ResultsResponse{
		ActivityID: activity.ID,
		Title:      activity.Title,
		Attempt:    selected.Attempt,
		Filter:     filter,
		Items:      []dto.ResultItem{},
		Grade:      selected.Grade,
		XPEarned:   selected.XPEarned,
		Attempts:   make([]dto.AttemptSummary, 0, len(finalized)),
	}

	tally := grading.Tally{}
	for _, item := range activity.Items {
		if item.Type != minigame.ItemTypeGame {
			continue
		}
		var payload map[string]interface{}
		stored, answered := byItem[item.ID]
		if answered {
			payload = stored.PayloadMap()
		}
		outcome := grading.ReadOutcome(payload, minigame.KindOf(item.DataMap()), stored.Correct, &tally)

		resp.TotalItems++
		if outcome.Correct {
			resp.Correct++
		} else {
			resp.Incorrect++
		}
		if !grading.Keep(filter, outcome) {
			continue
		}
		resp.Items = append(resp.Items, dto.ResultItem{
			ItemID:    item.ID,
			Order:     item.Position,
			Statement: item.Statement,
			Points:    item.Points,
			Earned:    stored.Points,
			Outcome:   outcome,
		})
	}
	resp.Tally = tally
	resp.GlobalPercent = tally.Percent()

	for i := len(finalized) - 1; i >= 0; i-- {
		submission := finalized[i]
		resp.Attempts = append(resp.Attempts, dto.AttemptSummary{
			SubmissionID: submission.ID,
			Attempt:      submission.Attempt,
			Grade:        submission.Grade,
			SubmittedAt:  submission.SubmittedAt,
		})
	}

	used, err := s.submissions.CountAttempts(ctx, activityID, studentID)
	if err != nil {
		return dto.ResultsResponse{}, err
	}
	resp.CanRetry = canRetry(activity, assignment.MaxAttempts(activity), used, s.now())
	return resp, nil
}

func (s *playService) Hint(ctx context.Context, studentID, activityID, itemID uint) (dto.HintResponse, error) {
	activity, _, err := s.gate(ctx, studentID, activityID, false)
	if err != nil {
		return dto.HintResponse{}, err
	}
	item, err := s.activities.GetItem(ctx, activityID, itemID)
	if err != nil {
		return dto.HintResponse{}, mapNotFound(err, ErrItemNotFound)
	}

	data := item.DataMap()
	resp := dto.HintResponse{ItemID: item.ID}

	if s.hinter != nil {
		if hint, source, ok := s.generatedHint(ctx, activity, item, data); ok {
			resp.Hint = hint
			resp.Source = source
			observability.HintRequests().WithLabelValues(source).Inc()
			return resp, nil
		}
	}

	resp.Hint = minigame.Hint(data)
	resp.Source = HintSourceFallback
	if resp.Hint != minigame.DefaultHint {
		resp.Source = HintSourceAuthor
	}
	observability.HintRequests().WithLabelValues(resp.Source).Inc()
	return resp, nil
}

// generatedHint asks the AI provider, caching the answer per item.
func (s *playService) generatedHint(ctx context.Context, activity models.Activity, item models.ActivityItem, data map[string]interface{}) (string, string, bool) {
	key := fmt.Sprintf(hintCacheKey, item.ID)
	if s.cache != nil {
		cached, err := s.cache.Get(ctx, key).Result()
		if err == nil && cached != "" {
			observability.CacheLookups().WithLabelValues("hint", "hit").Inc()
			return cached, HintSourceCache, true
		}
		if err != nil && !errors.Is(err, redis.Nil) {
			s.logger.Warn().Err(err).Str("key", key).Msg("failed to read hint cache")
		}
		observability.CacheLookups().WithLabelValues("hint", "miss").Inc()
	}

	input := ai.HintInput{
		ActivityTitle: activity.Title,
		Kind:          minigame.KindOf(data),
		Statement:     item.Statement,
		Data:          data,
	}
	if hint, ok := data["hint"].(string); ok {
		input.AuthorHint = hint
	}
	if activity.Subject != nil {
		input.Subject = activity.Subject.Name
	}

	result, err := s.hinter.Hint(ctx, input)
	if err != nil || result.Hint == "" {
		s.logger.Warn().Err(err).Uint("item_id", item.ID).Msg("ai hint unavailable, using item hint")
		return "", "", false
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, result.Hint, s.config.HintTTL).Err(); err != nil {
			s.logger.Warn().Err(err).Str("key", key).Msg("failed to cache hint")
		}
	}
	return result.Hint, HintSourceAI, true
}
