package weighted

import (
	"math"

	"bigharvest.farm/internal/sim/catalogs"
)

// Source is the uniform [0,1) draw used by every random subsystem; *rand.Rand satisfies it.
type Source interface {
	Float64() float64
}

// PickWeather scans cumulative weights against a uniform draw scaled to the total weight.
// An empty or all-zero table yields "".
func PickWeather(table []catalogs.WeatherWeight, src Source) string {
	total := 0.0
	for _, w := range table {
		if w.Weight > 0 {
			total += w.Weight
		}
	}
	if total <= 0 {
		return ""
	}
	r := src.Float64() * total
	acc := 0.0
	last := ""
	for _, w := range table {
		if w.Weight <= 0 {
			continue
		}
		acc += w.Weight
		last = w.Weather
		if r < acc {
			return w.Weather
		}
	}
	return last
}

// IntervalMs draws a duration uniformly from [minMs, maxMs].
func IntervalMs(minMs, maxMs int64, src Source) int64 {
	if maxMs <= minMs {
		return minMs
	}
	span := float64(maxMs - minMs + 1)
	d := minMs + int64(src.Float64()*span)
	if d > maxMs {
		return maxMs
	}
	return d
}

// Round2 rounds to two decimals.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// Clamp bounds v to [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// DriftStep applies one bounded random-walk step of at most maxStep in either direction.
func DriftStep(m, maxStep, lo, hi float64, src Source) float64 {
	delta := (src.Float64()*2 - 1) * maxStep
	return Round2(Clamp(m+delta, lo, hi))
}
