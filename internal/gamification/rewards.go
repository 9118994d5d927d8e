package gamification

import (
	"math"
	"strconv"
	"strings"
)

// Accessory keys unlocked by minigame performance.
const (
	AccessoryBlueGlasses = "gafas_azules"
	AccessoryBackpackL1  = "mochila_lvl1"
)

// GameReward is what a single minigame round pays out.
type GameReward struct {
	XP      int      `json:"xp"`
	Coins   int      `json:"coins"`
	Unlocks []string `json:"unlocks"`
}

// ComputeGameRewards converts the minigame meta (hits, found, combo, time...) into XP, coins and accessories.
func ComputeGameRewards(meta map[string]interface{}) GameReward {
	correct, ok := MetaInt(meta, "hits")
	if !ok {
		if correct, ok = MetaInt(meta, "found"); !ok {
			correct, _ = MetaInt(meta, "correctas")
		}
	}
	if correct < 0 {
		correct = 0
	}
	combo, _ := MetaInt(meta, "combo")
	if combo < 0 {
		combo = 0
	}
	elapsed, _ := MetaInt(meta, "time")

	speedBonus := 10 - floorDiv(elapsed, 30)
	if speedBonus < 0 {
		speedBonus = 0
	}
	speedBonus *= 2

	reward := GameReward{
		XP:      40 + correct*8 + combo*3 + speedBonus,
		Coins:   5 + correct/2 + combo/3,
		Unlocks: []string{},
	}
	if combo >= 3 {
		reward.Unlocks = append(reward.Unlocks, AccessoryBlueGlasses)
	}
	if correct >= 5 {
		reward.Unlocks = append(reward.Unlocks, AccessoryBackpackL1)
	}
	return reward
}

// MergeAccessories appends unlocks not already owned, preserving order.
func MergeAccessories(owned, unlocks []string) ([]string, []string) {
	seen := make(map[string]struct{}, len(owned))
	for _, key := range owned {
		seen[key] = struct{}{}
	}
	merged := append([]string{}, owned...)
	added := make([]string, 0)
	for _, key := range unlocks {
		if _, exists := seen[key]; exists {
			continue
		}
		seen[key] = struct{}{}
		merged = append(merged, key)
		added = append(added, key)
	}
	return merged, added
}

// MetaInt reads an integer-like value from a decoded JSON map.
func MetaInt(meta map[string]interface{}, key string) (int, bool) {
	if meta == nil {
		return 0, false
	}
	value, exists := meta[key]
	if !exists || value == nil {
		return 0, false
	}
	switch v := value.(type) {
	case float64:
		return int(v), true
	case float32:
		return int(v), true
	case int:
		return v, true
	case int64:
		return int(v), true
	case bool:
		if v {
			return 1, true
		}
		return 0, true
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, false
		}
		return int(parsed), true
	default:
		return 0, false
	}
}

func floorDiv(a, b int) int {
	return int(math.Floor(float64(a) / float64(b)))
}
