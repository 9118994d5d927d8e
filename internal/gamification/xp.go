package gamification

// Progress is the mutable XP state of a player.
type Progress struct {
	Level               int
	CurrentXP           int
	TotalXP             int
	ActivitiesCompleted int
}

// XPResult summarises a single XP award.
type XPResult struct {
	Gained       int `json:"xp_gained"`
	LevelsGained int `json:"levels_gained"`
}

// XPNeeded returns the XP required to advance from level to level+1.
func XPNeeded(level int) int {
	if level < 0 {
		level = 0
	}
	return 100 + 50*level*level
}

// ApplyXP adds amount to the progress, carrying over every level threshold crossed.
// Non-positive amounts leave the state untouched.
func ApplyXP(p *Progress, amount int) XPResult {
	if p == nil || amount <= 0 {
		return XPResult{}
	}

	p.TotalXP += amount
	p.CurrentXP += amount

	levels := 0
	for p.CurrentXP >= XPNeeded(p.Level) {
		p.CurrentXP -= XPNeeded(p.Level)
		p.Level++
		levels++
	}

	return XPResult{Gained: amount, LevelsGained: levels}
}

// ProgressPercent reports how far current XP is into the level, clamped to 0..100.
func ProgressPercent(level, current int) int {
	needed := XPNeeded(level)
	if needed <= 0 {
		needed = 1
	}
	pct := int(float64(current) / float64(needed) * 100)
	if pct < 0 {
		return 0
	}
	if pct > 100 {
		return 100
	}
	return pct
}
