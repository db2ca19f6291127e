package engine

import (
	"math"

	"bigharvest.farm/internal/sim/logic/weighted"
)

// Step runs every periodic subsystem up to now. Calling it again with the
// same now changes nothing.
func (e *Engine) Step(now int64) {
	e.regenEnergy(now)
	e.advanceClock(now)
	e.driftMarket(now)
	e.rotateSeason(now)
	e.rotateWeather(now)
	e.refreshOrders(now)
	if now > e.st.LastActiveTimestamp {
		e.st.LastActiveTimestamp = now
	}
}

func (e *Engine) regenEnergy(now int64) {
	elapsed := now - e.st.LastEnergyTimestamp
	if elapsed < 0 {
		return
	}
	maxE := float64(e.st.MaxEnergy)
	if e.st.Energy < maxE {
		e.st.Energy = math.Min(maxE, e.st.Energy+float64(elapsed)*e.tune.RegenPerMs())
	}
	e.st.LastEnergyTimestamp = now
}

func (e *Engine) advanceClock(now int64) {
	elapsed := now - e.st.LastTimeTimestamp
	if elapsed <= 0 {
		return
	}
	tod := math.Mod(e.st.TimeOfDay+float64(elapsed)/float64(e.tune.DayLengthMs), 1)
	if tod < 0 || tod >= 1 {
		tod = 0
	}
	e.st.TimeOfDay = tod
	e.st.LastTimeTimestamp = now
}

func (e *Engine) driftMarket(now int64) {
	m := e.tune.Market
	elapsed := now - e.st.Market.LastUpdateTimestamp
	if elapsed < m.IntervalMs {
		return
	}
	steps := elapsed / m.IntervalMs
	e.st.Market.LastUpdateTimestamp += steps * m.IntervalMs
	if steps > maxMarketCatchUp {
		steps = maxMarketCatchUp
	}
	for i := int64(0); i < steps; i++ {
		for _, id := range e.cats.Items.Tradeable {
			cur, ok := e.st.Market.Multipliers[id]
			if !ok {
				cur = 1
			}
			e.st.Market.Multipliers[id] = weighted.DriftStep(cur, m.MaxStep, m.MinMultiplier, m.MaxMultiplier, e.rng)
		}
	}
	e.emit(now, "MARKET", "steps", steps)
}

func (e *Engine) rotateSeason(now int64) {
	iv := e.tune.SeasonIntervalMs
	elapsed := now - e.st.LastSeasonTimestamp
	if elapsed < iv {
		return
	}
	n := elapsed / iv
	e.st.LastSeasonTimestamp += n * iv
	count := int64(len(e.cats.Seasons.Seasons))
	e.st.SeasonIndex = int((int64(e.st.SeasonIndex) + n) % count)
	e.st.Season = e.cats.Season(e.st.SeasonIndex).ID
	e.emit(now, "SEASON", "season", e.st.Season)
}

func (e *Engine) rotateWeather(now int64) {
	if now-e.st.LastWeatherTimestamp < e.st.WeatherIntervalMs {
		return
	}
	season := e.cats.Season(e.st.SeasonIndex)
	if w := weighted.PickWeather(season.WeatherWeights, e.rng); w != "" {
		e.st.Weather = w
	}
	e.st.LastWeatherTimestamp = now
	e.st.WeatherIntervalMs = weighted.IntervalMs(e.tune.WeatherMinIntervalMs, e.tune.WeatherMaxIntervalMs, e.rng)
	e.emit(now, "WEATHER", "weather", e.st.Weather)
}

// ReconcileIdle credits passive income for the time since the profile was
// last active. Only the first call on an Engine does anything; it must run
// before the first Step, which moves the activity mark forward.
func (e *Engine) ReconcileIdle(now int64) int64 {
	if e.reconciled {
		return 0
	}
	e.reconciled = true

	idle := e.tune.Idle
	elapsed := now - e.st.LastActiveTimestamp
	minutes := float64(elapsed) / 60_000
	if minutes < float64(idle.MinMinutes) {
		return 0
	}
	rate := int64(e.st.BuildingCount())*idle.RatePerBuilding + int64(e.Level().Level)*idle.RatePerLevel
	gain := int64(math.Floor(minutes * float64(rate)))
	if gain > idle.MaxGain {
		gain = idle.MaxGain
	}
	if gain < 0 {
		gain = 0
	}
	e.earn(gain)
	e.st.LastActiveTimestamp = now
	e.emit(now, "IDLE_EARNINGS", "money", gain, "minutes", int64(minutes))
	return gain
}
