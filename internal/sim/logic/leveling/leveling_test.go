package leveling

import (
	"testing"

	"bigharvest.farm/internal/sim/tuning"
)

func TestFor_Thresholds(t *testing.T) {
	c := tuning.Defaults().Leveling
	cases := []struct {
		xp   int64
		want Info
	}{
		{0, Info{Level: 1, CurrentLevelXP: 0, NextLevelXP: 100}},
		{99, Info{Level: 1, CurrentLevelXP: 0, NextLevelXP: 100}},
		{100, Info{Level: 2, CurrentLevelXP: 100, NextLevelXP: 150}},
		{150, Info{Level: 3, CurrentLevelXP: 150, NextLevelXP: 225}},
		{225, Info{Level: 4, CurrentLevelXP: 225, NextLevelXP: 338}},
		{338, Info{Level: 5, CurrentLevelXP: 338, NextLevelXP: 507}},
		// level 5 onward grows by the mid multiplier.
		{507, Info{Level: 6, CurrentLevelXP: 507, NextLevelXP: 659}},
	}
	for _, tc := range cases {
		if got := For(tc.xp, c); got != tc.want {
			t.Fatalf("For(%d)=%+v want %+v", tc.xp, got, tc.want)
		}
	}
}

func TestFor_MonotonicThresholds(t *testing.T) {
	c := tuning.Defaults().Leveling
	prev := For(0, c)
	for xp := int64(1); xp < 2_000_000; xp += 37 {
		cur := For(xp, c)
		if cur.Level < prev.Level {
			t.Fatalf("level decreased at xp=%d", xp)
		}
		if cur.NextLevelXP <= cur.CurrentLevelXP {
			t.Fatalf("non-increasing threshold at xp=%d: %+v", xp, cur)
		}
		prev = cur
	}
}

func TestMultiplierBands(t *testing.T) {
	c := tuning.Defaults().Leveling
	if Multiplier(1, c) != 1.5 || Multiplier(5, c) != 1.3 || Multiplier(14, c) != 1.3 || Multiplier(15, c) != 1.45 {
		t.Fatalf("unexpected multiplier bands")
	}
}
