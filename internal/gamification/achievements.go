package gamification

import (
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// Achievement slugs granted by activity rules rather than by level/XP thresholds.
const (
	SlugWelcome         = "bienvenido-levelup"
	SlugPerfectAnswer   = "respuesta-perfecta"
	SlugGeniusStreak    = "racha-genio"
	SlugMathMaster      = "maestro-matematicas"
	SlugWordGuardian    = "guardian-palabras"
	SlugTimeChronicler  = "cronista-tiempo"
	SlugStarScientist   = "cientifico-estrella"
	SlugFirstMath       = "primer-paso-matematicas"
	SlugFirstLanguage   = "primer-cuento-lenguaje"
	SlugFirstHistory    = "primer-viaje-historia"
	SlugFirstScience    = "primer-experimento-ciencias"
	MasteryThreshold    = 5
	StreakLength        = 3
	PerfectScorePercent = 100.0
)

// Track groups subjects that share achievements.
type Track string

const (
	TrackNone     Track = ""
	TrackMath     Track = "math"
	TrackLanguage Track = "language"
	TrackHistory  Track = "history"
	TrackScience  Track = "science"
)

type trackSlugs struct {
	first   string
	mastery string
}

var trackAchievements = map[Track]trackSlugs{
	TrackMath:     {first: SlugFirstMath, mastery: SlugMathMaster},
	TrackLanguage: {first: SlugFirstLanguage, mastery: SlugWordGuardian},
	TrackHistory:  {first: SlugFirstHistory, mastery: SlugTimeChronicler},
	TrackScience:  {first: SlugFirstScience, mastery: SlugStarScientist},
}

var specialSlugs = map[string]struct{}{
	SlugMathMaster: {}, SlugWordGuardian: {}, SlugTimeChronicler: {}, SlugStarScientist: {},
	SlugFirstMath: {}, SlugFirstLanguage: {}, SlugFirstHistory: {}, SlugFirstScience: {},
	SlugPerfectAnswer: {}, SlugGeniusStreak: {}, SlugWelcome: {},
}

// SpecialSlugs lists the achievements excluded from threshold unlocks.
func SpecialSlugs() []string {
	out := make([]string, 0, len(specialSlugs))
	for slug := range specialSlugs {
		out = append(out, slug)
	}
	sort.Strings(out)
	return out
}

// IsSpecial reports whether the slug is only granted by activity rules.
func IsSpecial(slug string) bool {
	_, ok := specialSlugs[slug]
	return ok
}

// SubjectTrack classifies a subject by its name or code.
func SubjectTrack(values ...string) Track {
	for _, value := range values {
		key := fold(value)
		switch {
		case key == "":
			continue
		case strings.HasPrefix(key, "mat"):
			return TrackMath
		case strings.HasPrefix(key, "len"):
			return TrackLanguage
		case strings.HasPrefix(key, "his"):
			return TrackHistory
		case strings.HasPrefix(key, "cien"), strings.HasPrefix(key, "cn"):
			return TrackScience
		}
	}
	return TrackNone
}

// ActivityStats describes a student's history right after finishing a submission.
type ActivityStats struct {
	FinalizedTotal    int
	FinalizedInTrack  int
	Track             Track
	SubmissionPercent float64
	HasScoredItems    bool
	RecentPercents    []float64
}

// EvaluateActivityAchievements returns the slugs the stats qualify for.
// Callers filter out achievements the student already owns.
func EvaluateActivityAchievements(stats ActivityStats) []string {
	slugs := make([]string, 0, 4)

	if stats.FinalizedTotal >= 1 {
		slugs = append(slugs, SlugWelcome)
	}

	if track, ok := trackAchievements[stats.Track]; ok {
		if stats.FinalizedInTrack >= 1 {
			slugs = append(slugs, track.first)
		}
		if stats.FinalizedInTrack >= MasteryThreshold {
			slugs = append(slugs, track.mastery)
		}
	}

	if stats.HasScoredItems && stats.SubmissionPercent >= PerfectScorePercent {
		slugs = append(slugs, SlugPerfectAnswer)
	}

	if len(stats.RecentPercents) >= StreakLength {
		streak := true
		for _, pct := range stats.RecentPercents[:StreakLength] {
			if pct < PerfectScorePercent {
				streak = false
				break
			}
		}
		if streak {
			slugs = append(slugs, SlugGeniusStreak)
		}
	}

	return slugs
}

// Requirement is the threshold part of a reward definition.
type Requirement struct {
	Slug               string
	RequiredLevel      int
	RequiredXP         int
	RequiredActivities int
}

// Eligible reports whether a threshold reward is earned by the progress.
func (r Requirement) Eligible(p Progress) bool {
	if IsSpecial(r.Slug) {
		return false
	}
	return r.RequiredLevel <= p.Level && r.RequiredXP <= p.TotalXP && r.RequiredActivities <= p.ActivitiesCompleted
}

func fold(value string) string {
	decomposed := norm.NFD.String(strings.ToLower(strings.TrimSpace(value)))
	var b strings.Builder
	for _, r := range decomposed {
		if unicode.Is(unicode.Mn, r) {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
