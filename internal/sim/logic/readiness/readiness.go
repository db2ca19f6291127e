package readiness

import "math"

const (
	// MinDurationMs keeps near-zero multipliers from making anything instant.
	MinDurationMs = 1000
	// MinMultiplier is the floor applied to any speed multiplier before dividing.
	MinMultiplier = 0.05
)

func floorMul(m float64) float64 {
	if math.IsNaN(m) || m < MinMultiplier {
		return MinMultiplier
	}
	return m
}

// GrowTimeMs is the effective crop growth duration under the given season and weather speed multipliers.
func GrowTimeMs(baseMs int64, seasonMul, weatherMul float64) int64 {
	eff := int64(math.Round(float64(baseMs) / (floorMul(seasonMul) * floorMul(weatherMul))))
	if eff < MinDurationMs {
		return MinDurationMs
	}
	return eff
}

// ProductionTimeMs is the effective production duration. Only weather applies, as a penalty factor.
func ProductionTimeMs(baseMs int64, weatherPenalty float64) int64 {
	eff := int64(math.Round(float64(baseMs) * floorMul(weatherPenalty)))
	if eff < MinDurationMs {
		return MinDurationMs
	}
	return eff
}

// Ready reports whether durationMs has elapsed since since.
func Ready(now, since, durationMs int64) bool {
	return now-since >= durationMs
}

// Remaining is the time left until ready, never negative.
func Remaining(now, since, durationMs int64) int64 {
	r := since + durationMs - now
	if r < 0 {
		return 0
	}
	return r
}

// Progress is the fraction in [0,1] of the duration that has elapsed.
func Progress(now, since, durationMs int64) float64 {
	if durationMs <= 0 {
		return 1
	}
	p := float64(now-since) / float64(durationMs)
	switch {
	case p < 0:
		return 0
	case p > 1:
		return 1
	}
	return p
}
