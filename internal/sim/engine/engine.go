// Package engine owns one profile's farm state and applies actions and the
// periodic subsystems to it. An Engine is not safe for concurrent use; the
// session runner serializes every call onto one goroutine.
package engine

import (
	"math/rand"

	"bigharvest.farm/internal/protocol"
	"bigharvest.farm/internal/sim/catalogs"
	"bigharvest.farm/internal/sim/farm"
	"bigharvest.farm/internal/sim/logic/leveling"
	"bigharvest.farm/internal/sim/logic/readiness"
	"bigharvest.farm/internal/sim/tuning"
)

// Energy costs per action.
const (
	EnergyPlant     = 1
	EnergyHarvest   = 1
	EnergyBuild     = 5
	EnergyCollect   = 1
	EnergyPlow      = 2
	EnergyWater     = 1
	EnergyFertilize = 2

	WaterBoostMs      = 30_000
	FertilizerBoostMs = 60_000

	// RainWeather makes watering free.
	RainWeather = "rain"

	MaxBuyQty = 999

	// maxMarketCatchUp bounds drift steps replayed after a long absence.
	maxMarketCatchUp = 64
)

type Engine struct {
	cats *catalogs.Catalogs
	tune tuning.Tuning
	st   *farm.State
	rng  *rand.Rand

	events     []protocol.Event
	reconciled bool
}

// New takes ownership of st, which must already be normalized.
func New(cats *catalogs.Catalogs, tune tuning.Tuning, st *farm.State, seed int64) *Engine {
	return &Engine{
		cats: cats,
		tune: tune,
		st:   st,
		rng:  rand.New(rand.NewSource(seed)),
	}
}

func (e *Engine) State() *farm.State { return e.st }

func (e *Engine) Catalogs() *catalogs.Catalogs { return e.cats }

func (e *Engine) Level() leveling.Info { return leveling.For(e.st.XP, e.tune.Leveling) }

// Drain returns and clears the events emitted since the last call.
func (e *Engine) Drain() []protocol.Event {
	out := e.events
	e.events = nil
	return out
}

func (e *Engine) emit(now int64, typ string, kv ...any) {
	ev := protocol.Event{"type": typ, "t": now}
	for i := 0; i+1 < len(kv); i += 2 {
		if k, ok := kv[i].(string); ok {
			ev[k] = kv[i+1]
		}
	}
	e.events = append(e.events, ev)
}

func (e *Engine) tile(x, y int) (*farm.Tile, error) {
	t := e.st.Tile(x, y)
	if t == nil {
		return nil, ErrOutOfBounds
	}
	return t, nil
}

func (e *Engine) hasEnergy(cost float64) bool { return e.st.Energy >= cost }

func (e *Engine) spendEnergy(cost float64) {
	e.st.Energy -= cost
	if e.st.Energy < 0 {
		e.st.Energy = 0
	}
}

// StorageUsed counts stored units that occupy capacity. Supplies do not.
func (e *Engine) StorageUsed() int {
	used := 0
	for id, n := range e.st.Inventory {
		if n <= 0 {
			continue
		}
		if def, ok := e.cats.Item(id); ok && def.Kind == catalogs.KindSupply {
			continue
		}
		used += n
	}
	return used
}

func (e *Engine) hasRoom(units int) bool {
	return e.StorageUsed()+units <= e.st.InventoryCapacity
}

func (e *Engine) weather() catalogs.WeatherDef {
	if w, ok := e.cats.Weather(e.st.Weather); ok {
		return w
	}
	return catalogs.WeatherDef{ID: e.st.Weather, GrowthMultiplier: 1, ProductionMultiplier: 1}
}

// GrowTimeMs is the crop's growth duration under the current season and weather.
func (e *Engine) GrowTimeMs(def catalogs.CropDef) int64 {
	season := e.cats.Season(e.st.SeasonIndex)
	return readiness.GrowTimeMs(def.GrowTimeMs, season.GrowthMultiplier, e.weather().GrowthMultiplier)
}

// ProductionTimeMs is the building's cycle duration under the current weather.
func (e *Engine) ProductionTimeMs(def catalogs.BuildingDef) int64 {
	return readiness.ProductionTimeMs(def.ProductionTimeMs, e.weather().ProductionMultiplier)
}

// CropReady reports whether the crop at (x, y) can be harvested at now.
func (e *Engine) CropReady(x, y int, now int64) bool {
	t := e.st.Tile(x, y)
	if t == nil || t.Crop == nil {
		return false
	}
	def, ok := e.cats.Crop(t.Crop.CropID)
	if !ok {
		return false
	}
	return readiness.Ready(now, t.Crop.PlantedAt, e.GrowTimeMs(def))
}

// ProductionReady reports whether the building at (x, y) can be collected at now.
func (e *Engine) ProductionReady(x, y int, now int64) bool {
	t := e.st.Tile(x, y)
	if t == nil || t.Building == nil {
		return false
	}
	def, ok := e.cats.Building(t.Building.BuildingID)
	if !ok {
		return false
	}
	return readiness.Ready(now, productionSince(t.Building), e.ProductionTimeMs(def))
}

func productionSince(b *farm.BuildingInstance) int64 {
	if b.LastCollectedAt != nil {
		return *b.LastCollectedAt
	}
	return b.StartedAt
}

// addXP credits xp and applies one-shot level-up effects for every level crossed.
func (e *Engine) addXP(now, amount int64) {
	if amount <= 0 {
		return
	}
	before := e.Level().Level
	e.st.XP += amount
	after := e.Level().Level
	for lvl := before + 1; lvl <= after; lvl++ {
		e.emit(now, "LEVEL_UP", "level", lvl)
	}
	if after > before {
		e.st.Energy = float64(e.st.MaxEnergy)
	}
}

func (e *Engine) earn(amount int64) {
	if amount <= 0 {
		return
	}
	e.st.Money += amount
	e.st.Stats.MoneyEarned += amount
}

func (e *Engine) unitPrice(def catalogs.ItemDef) int64 {
	m, ok := e.st.Market.Multipliers[def.ID]
	if !ok {
		m = 1
	}
	return roundInt(float64(def.BaseValue) * m)
}
