package readiness

import "testing"

func TestGrowTimeMs(t *testing.T) {
	cases := []struct {
		base           int64
		season, weathr float64
		want           int64
	}{
		{30000, 1, 1, 30000},
		{30000, 1.25, 1.2, 20000},
		{30000, 0.75, 0.8, 50000},
		{30000, 0, 0, 12000000},
		{500, 1, 1, MinDurationMs},
		{30000, 1000, 1000, MinDurationMs},
	}
	for _, tc := range cases {
		if got := GrowTimeMs(tc.base, tc.season, tc.weathr); got != tc.want {
			t.Fatalf("GrowTimeMs(%d,%v,%v)=%d want %d", tc.base, tc.season, tc.weathr, got, tc.want)
		}
	}
}

func TestProductionTimeMs_SnowPenalty(t *testing.T) {
	if got := ProductionTimeMs(60000, 1.3); got != 78000 {
		t.Fatalf("snow production=%d", got)
	}
	if got := ProductionTimeMs(60000, 0); got != 3000 {
		t.Fatalf("zero penalty should floor, got %d", got)
	}
}

func TestReady_Monotonic(t *testing.T) {
	const planted = int64(1_000_000)
	dur := GrowTimeMs(90000, 1.1, 0.95)
	bound := planted + dur
	for now := planted - 5000; now < bound; now += 997 {
		if Ready(now, planted, dur) {
			t.Fatalf("ready too early at now=%d bound=%d", now, bound)
		}
	}
	was := false
	for now := bound; now < bound+200000; now += 1013 {
		r := Ready(now, planted, dur)
		if was && !r {
			t.Fatalf("ready flipped back at now=%d", now)
		}
		if !r {
			t.Fatalf("not ready at now=%d bound=%d", now, bound)
		}
		was = r
	}
}

func TestRemainingAndProgress(t *testing.T) {
	if got := Remaining(1500, 1000, 1000); got != 500 {
		t.Fatalf("remaining=%d", got)
	}
	if got := Remaining(5000, 1000, 1000); got != 0 {
		t.Fatalf("remaining=%d", got)
	}
	if got := Progress(1500, 1000, 1000); got != 0.5 {
		t.Fatalf("progress=%v", got)
	}
	if got := Progress(0, 1000, 1000); got != 0 {
		t.Fatalf("progress=%v", got)
	}
}
