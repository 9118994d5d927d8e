package gamification

import (
	"sort"
	"strings"
)

// Standing is one student's position input for the leaderboard.
type Standing struct {
	UserID     uint
	Name       string
	Activities int
}

// SortStandings orders by rank (highest first), then activities, then name.
func SortStandings(standings []Standing) {
	sort.SliceStable(standings, func(i, j int) bool {
		a, b := standings[i], standings[j]
		if ra, rb := RankNumber(a.Activities), RankNumber(b.Activities); ra != rb {
			return ra > rb
		}
		if a.Activities != b.Activities {
			return a.Activities > b.Activities
		}
		return strings.ToLower(a.Name) < strings.ToLower(b.Name)
	})
}

// Initials returns up to two upper-case characters for avatars.
func Initials(name string) string {
	runes := []rune(strings.TrimSpace(name))
	if len(runes) > 2 {
		runes = runes[:2]
	}
	return strings.ToUpper(string(runes))
}
