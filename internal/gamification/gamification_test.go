package gamification

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestXPNeededCurve(t *testing.T) {
	require.Equal(t, 100, XPNeeded(0))
	require.Equal(t, 150, XPNeeded(1))
	require.Equal(t, 300, XPNeeded(2))
	require.Equal(t, 550, XPNeeded(3))
}

func TestApplyXPCarriesAcrossSeveralLevels(t *testing.T) {
	p := &Progress{}
	result := ApplyXP(p, 260)

	require.Equal(t, XPResult{Gained: 260, LevelsGained: 2}, result)
	require.Equal(t, 2, p.Level)
	require.Equal(t, 10, p.CurrentXP)
	require.Equal(t, 260, p.TotalXP)
}

func TestApplyXPIgnoresNonPositiveAmounts(t *testing.T) {
	p := &Progress{Level: 1, CurrentXP: 20, TotalXP: 120}
	require.Equal(t, XPResult{}, ApplyXP(p, 0))
	require.Equal(t, XPResult{}, ApplyXP(p, -5))
	require.Equal(t, Progress{Level: 1, CurrentXP: 20, TotalXP: 120}, *p)
}

func TestProgressPercentClamps(t *testing.T) {
	require.Equal(t, 50, ProgressPercent(0, 50))
	require.Equal(t, 33, ProgressPercent(1, 50))
	require.Equal(t, 100, ProgressPercent(0, 500))
	require.Equal(t, 0, ProgressPercent(0, -10))
}

func TestRanks(t *testing.T) {
	cases := []struct {
		activities int
		number     int
		name       string
		toNext     int
	}{
		{0, 1, "Timo Explorador", 2},
		{1, 1, "Timo Explorador", 1},
		{2, 2, "Timo Guardián", 2},
		{5, 3, "Timo Guerrero", 1},
		{6, 4, "Timo Héroe Legendario", 0},
		{40, 4, "Timo Héroe Legendario", 0},
	}
	for _, tc := range cases {
		require.Equal(t, tc.number, RankNumber(tc.activities))
		require.Equal(t, tc.name, RankFor(tc.activities).Name)
		require.Equal(t, tc.toNext, ActivitiesToNextRank(tc.activities))
		require.NotEmpty(t, RankBlurb(tc.activities))
	}
	require.Len(t, RankCatalog(), 4)
}

func TestComputeGameRewards(t *testing.T) {
	reward := ComputeGameRewards(map[string]interface{}{"hits": float64(6), "combo": float64(3), "time": float64(95)})
	// speed bonus: (10 - 95/30) * 2 = 14
	require.Equal(t, 40+48+9+14, reward.XP)
	require.Equal(t, 5+3+1, reward.Coins)
	require.Equal(t, []string{AccessoryBlueGlasses, AccessoryBackpackL1}, reward.Unlocks)

	slow := ComputeGameRewards(map[string]interface{}{"found": "2", "time": 900})
	require.Equal(t, 40+16, slow.XP)
	require.Equal(t, 6, slow.Coins)
	require.Empty(t, slow.Unlocks)

	fromQuiz := ComputeGameRewards(map[string]interface{}{"correctas": 3, "total": 4})
	require.Equal(t, 40+24+20, fromQuiz.XP)
}

func TestMergeAccessories(t *testing.T) {
	merged, added := MergeAccessories([]string{"gafas_azules"}, []string{"gafas_azules", "mochila_lvl1"})
	require.Equal(t, []string{"gafas_azules", "mochila_lvl1"}, merged)
	require.Equal(t, []string{"mochila_lvl1"}, added)
}

func TestSubjectTrack(t *testing.T) {
	require.Equal(t, TrackMath, SubjectTrack("Matemáticas"))
	require.Equal(t, TrackLanguage, SubjectTrack("", "LEN"))
	require.Equal(t, TrackHistory, SubjectTrack("Historia"))
	require.Equal(t, TrackScience, SubjectTrack("Ciencias Naturales"))
	require.Equal(t, TrackNone, SubjectTrack("Inglés"))
}

func TestEvaluateActivityAchievements(t *testing.T) {
	first := EvaluateActivityAchievements(ActivityStats{
		FinalizedTotal:    1,
		FinalizedInTrack:  1,
		Track:             TrackMath,
		SubmissionPercent: 80,
		HasScoredItems:    true,
		RecentPercents:    []float64{80},
	})
	require.ElementsMatch(t, []string{SlugWelcome, SlugFirstMath}, first)

	later := EvaluateActivityAchievements(ActivityStats{
		FinalizedTotal:    9,
		FinalizedInTrack:  5,
		Track:             TrackHistory,
		SubmissionPercent: 100,
		HasScoredItems:    true,
		RecentPercents:    []float64{100, 100, 100, 40},
	})
	require.ElementsMatch(t, []string{SlugWelcome, SlugFirstHistory, SlugTimeChronicler, SlugPerfectAnswer, SlugGeniusStreak}, later)

	noItems := EvaluateActivityAchievements(ActivityStats{FinalizedTotal: 1, SubmissionPercent: 100})
	require.Equal(t, []string{SlugWelcome}, noItems)
}

func TestRequirementEligibility(t *testing.T) {
	p := Progress{Level: 2, TotalXP: 300, ActivitiesCompleted: 3}
	require.True(t, Requirement{Slug: "nivel-2", RequiredLevel: 2}.Eligible(p))
	require.False(t, Requirement{Slug: "nivel-3", RequiredLevel: 3}.Eligible(p))
	require.False(t, Requirement{Slug: "xp", RequiredXP: 301}.Eligible(p))
	require.False(t, Requirement{Slug: SlugWelcome}.Eligible(p))
	require.True(t, IsSpecial(SlugGeniusStreak))
	require.Len(t, SpecialSlugs(), 11)
}

func TestSortStandings(t *testing.T) {
	standings := []Standing{
		{UserID: 1, Name: "zoe", Activities: 1},
		{UserID: 2, Name: "Ana", Activities: 7},
		{UserID: 3, Name: "bruno", Activities: 3},
		{UserID: 4, Name: "alba", Activities: 3},
		{UserID: 5, Name: "Carla", Activities: 9},
	}
	SortStandings(standings)

	order := make([]uint, 0, len(standings))
	for _, s := range standings {
		order = append(order, s.UserID)
	}
	require.Equal(t, []uint{5, 2, 4, 3, 1}, order)
	require.Equal(t, "AN", Initials("ana"))
}
