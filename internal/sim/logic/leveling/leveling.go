package leveling

import (
	"math"

	"bigharvest.farm/internal/sim/tuning"
)

// MaxLevel bounds the threshold walk so int64 thresholds never overflow.
const MaxLevel = 200

type Info struct {
	Level          int   `json:"level"`
	CurrentLevelXP int64 `json:"currentLevelXp"`
	NextLevelXP    int64 `json:"nextLevelXp"`
}

// Multiplier is the threshold growth applied when leaving the given level.
func Multiplier(level int, c tuning.Leveling) float64 {
	switch {
	case level < c.EarlyUntilLevel:
		return c.EarlyMultiplier
	case level >= c.LateFromLevel:
		return c.LateMultiplier
	default:
		return c.MidMultiplier
	}
}

// For walks the threshold curve from level 1 and returns the level reached with xp.
func For(xp int64, c tuning.Leveling) Info {
	next := c.BaseXP
	if next <= 0 {
		next = 100
	}
	info := Info{Level: 1, CurrentLevelXP: 0, NextLevelXP: next}
	for xp >= info.NextLevelXP && info.Level < MaxLevel {
		grown := int64(math.Round(float64(info.NextLevelXP) * Multiplier(info.Level, c)))
		if grown <= info.NextLevelXP {
			grown = info.NextLevelXP + 1
		}
		info.Level++
		info.CurrentLevelXP = info.NextLevelXP
		info.NextLevelXP = grown
	}
	return info
}

// Level is shorthand for For(xp, c).Level.
func Level(xp int64, c tuning.Leveling) int { return For(xp, c).Level }
