package farm

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"bigharvest.farm/internal/sim/catalogs"
	"bigharvest.farm/internal/sim/logic/weighted"
	"bigharvest.farm/internal/sim/tuning"
)

var ErrNotObject = errors.New("state document is not a JSON object")

// Shaper builds, decodes and normalizes state documents against one catalog/tuning pair.
type Shaper struct {
	cats *catalogs.Catalogs
	tune tuning.Tuning
}

func NewShaper(cats *catalogs.Catalogs, tune tuning.Tuning) *Shaper {
	return &Shaper{cats: cats, tune: tune}
}

// Default returns a fresh document for a new profile.
func (sh *Shaper) Default(now int64) *State {
	st := sh.Tuning().Starting
	s := &State{
		Version:   SchemaVersion,
		Money:     st.Money,
		Inventory: map[string]int{},
		Tools: Tools{
			HoeDurability:         st.HoeDurability,
			WateringCanDurability: st.WateringCanDurability,
		},
		Energy:               st.Energy,
		MaxEnergy:            st.MaxEnergy,
		LastEnergyTimestamp:  now,
		InventoryCapacity:    st.InventoryCapacity,
		Market:               Market{LastUpdateTimestamp: now, Multipliers: map[string]float64{}},
		LastTimeTimestamp:    now,
		LastSeasonTimestamp:  now,
		LastWeatherTimestamp: now,
		LastActiveTimestamp:  now,
		Settings:             map[string]any{},
	}
	for id, n := range st.Items {
		s.Inventory[id] = n
	}
	sh.Normalize(s, now)
	return s
}

func (sh *Shaper) Tuning() tuning.Tuning { return sh.tune }

func (sh *Shaper) Catalogs() *catalogs.Catalogs { return sh.cats }

// Decode reads a persisted document of any vintage. Fields that are missing or
// malformed take their default values. A document that is not a JSON object
// yields a fresh default together with ErrNotObject.
func (sh *Shaper) Decode(raw []byte, now int64) (*State, error) {
	var d doc
	if err := json.Unmarshal(raw, &d); err != nil {
		return sh.Default(now), fmt.Errorf("%w: %v", ErrNotObject, err)
	}
	if d == nil {
		return sh.Default(now), ErrNotObject
	}
	s := sh.Default(now)

	if v, ok := d.int64("money"); ok {
		s.Money = v
	}
	if v, ok := d.int64("xp"); ok {
		s.XP = v
	}
	if v, ok := d.float("energy"); ok {
		s.Energy = v
	}
	if v, ok := d.int("maxEnergy"); ok {
		s.MaxEnergy = v
	}
	if v, ok := d.int64("lastEnergyTimestamp"); ok {
		s.LastEnergyTimestamp = v
	}
	if v, ok := d.int("inventoryCapacity"); ok {
		s.InventoryCapacity = v
	}
	if inv := d.counts("inventory"); inv != nil {
		s.Inventory = make(map[string]int, len(inv))
		for k, v := range inv {
			s.Inventory[k] = int(math.Floor(v))
		}
	}
	if tools, ok := d.obj("tools"); ok {
		if v, ok := tools.int("hoeDurability"); ok {
			s.Tools.HoeDurability = v
		}
		if v, ok := tools.int("wateringCanDurability"); ok {
			s.Tools.WateringCanDurability = v
		}
	}
	if m, ok := d.obj("market"); ok {
		if v, ok := m.int64("lastUpdateTimestamp"); ok {
			s.Market.LastUpdateTimestamp = v
		}
		if mult := m.counts("multipliers"); mult != nil {
			s.Market.Multipliers = mult
		}
	}
	if v, ok := d.float("timeOfDay"); ok {
		s.TimeOfDay = v
	}
	if v, ok := d.int64("lastTimeTimestamp"); ok {
		s.LastTimeTimestamp = v
	}
	if v, ok := d.int("seasonIndex"); ok {
		s.SeasonIndex = v
	} else if name, ok := d.str("season"); ok {
		if i, ok := sh.cats.SeasonIndex(name); ok {
			s.SeasonIndex = i
		}
	}
	if v, ok := d.str("weather"); ok {
		s.Weather = v
	}
	if v, ok := d.int64("lastSeasonTimestamp"); ok {
		s.LastSeasonTimestamp = v
	}
	if v, ok := d.int64("lastWeatherTimestamp"); ok {
		s.LastWeatherTimestamp = v
	}
	if v, ok := d.int64("weatherIntervalMs"); ok {
		s.WeatherIntervalMs = v
	}
	if v, ok := d.int64("lastActiveTimestamp"); ok {
		s.LastActiveTimestamp = v
	}
	if st, ok := d.obj("stats"); ok {
		for key, dst := range map[string]*int64{
			"cropsPlanted":         &s.Stats.CropsPlanted,
			"cropsHarvested":       &s.Stats.CropsHarvested,
			"productsCollected":    &s.Stats.ProductsCollected,
			"productsProcessed":    &s.Stats.ProductsProcessed,
			"buildingsConstructed": &s.Stats.BuildingsConstructed,
			"moneyEarned":          &s.Stats.MoneyEarned,
			"ordersFulfilled":      &s.Stats.OrdersFulfilled,
		} {
			if v, ok := st.int64(key); ok {
				*dst = v
			}
		}
	}
	if raw, ok := d["settings"]; ok {
		var settings map[string]any
		if json.Unmarshal(raw, &settings) == nil && settings != nil {
			s.Settings = settings
		}
	}
	if rows, ok := d.array("tiles"); ok {
		s.Tiles = decodeTiles(rows)
	}
	if items, ok := d.array("quests"); ok {
		s.Quests = nil
		for _, raw := range items {
			var q doc
			if json.Unmarshal(raw, &q) != nil || q == nil {
				continue
			}
			id, ok := q.str("id")
			if !ok || id == "" {
				continue
			}
			qs := QuestState{ID: id}
			qs.Progress, _ = q.int("progress")
			qs.Completed, _ = q.bool("completed")
			qs.RewardClaimed, _ = q.bool("rewardClaimed")
			s.Quests = append(s.Quests, qs)
		}
	}
	if items, ok := d.array("orders"); ok {
		s.Orders = nil
		for _, raw := range items {
			var o doc
			if json.Unmarshal(raw, &o) != nil || o == nil {
				continue
			}
			id, ok := o.str("id")
			if !ok || id == "" {
				continue
			}
			ord := OrderState{ID: id}
			ord.PostedAt, _ = o.int64("postedAt")
			ord.ExpiresAt, _ = o.int64("expiresAt")
			ord.Completed, _ = o.bool("completed")
			s.Orders = append(s.Orders, ord)
		}
	}

	sh.Normalize(s, now)
	return s, nil
}

func decodeTiles(rows []json.RawMessage) [][]Tile {
	out := make([][]Tile, len(rows))
	for y, raw := range rows {
		var cells []json.RawMessage
		if json.Unmarshal(raw, &cells) != nil {
			continue
		}
		row := make([]Tile, len(cells))
		for x, c := range cells {
			var t Tile
			if json.Unmarshal(c, &t) == nil {
				row[x] = t
			}
		}
		out[y] = row
	}
	return out
}

// Encode serializes a document in its persisted shape.
func Encode(s *State) ([]byte, error) {
	return json.Marshal(s)
}

// Normalize brings s to the current shape in place. It is total and
// idempotent: normalizing a normalized document changes nothing.
func (sh *Shaper) Normalize(s *State, now int64) {
	t := sh.tune
	s.Version = SchemaVersion

	if s.Money < 0 {
		s.Money = 0
	}
	if s.XP < 0 {
		s.XP = 0
	}
	if s.MaxEnergy <= 0 {
		s.MaxEnergy = t.Starting.MaxEnergy
	}
	if math.IsNaN(s.Energy) || s.Energy < 0 {
		s.Energy = 0
	}
	if s.Energy > float64(s.MaxEnergy) {
		s.Energy = float64(s.MaxEnergy)
	}
	if s.InventoryCapacity <= 0 {
		s.InventoryCapacity = t.Starting.InventoryCapacity
	}
	s.Tools.HoeDurability = clampInt(s.Tools.HoeDurability, 0, MaxDurability)
	s.Tools.WateringCanDurability = clampInt(s.Tools.WateringCanDurability, 0, MaxDurability)

	if s.Inventory == nil {
		s.Inventory = map[string]int{}
	}
	for k, v := range s.Inventory {
		if v < 0 {
			s.Inventory[k] = 0
		}
	}
	for id := range sh.cats.Items.ByID {
		if _, ok := s.Inventory[id]; !ok {
			s.Inventory[id] = 0
		}
	}

	sh.normalizeMarket(s)
	sh.normalizeTiles(s, now)
	sh.normalizeClock(s)
	sh.normalizeQuests(s)
	sh.normalizeOrders(s, now)

	for _, p := range []*int64{
		&s.Stats.CropsPlanted, &s.Stats.CropsHarvested, &s.Stats.ProductsCollected,
		&s.Stats.ProductsProcessed, &s.Stats.BuildingsConstructed, &s.Stats.MoneyEarned,
		&s.Stats.OrdersFulfilled,
	} {
		if *p < 0 {
			*p = 0
		}
	}
	for _, p := range []*int64{
		&s.LastEnergyTimestamp, &s.Market.LastUpdateTimestamp, &s.LastTimeTimestamp,
		&s.LastSeasonTimestamp, &s.LastWeatherTimestamp, &s.LastActiveTimestamp,
	} {
		if *p <= 0 {
			*p = now
		}
	}
	if s.Settings == nil {
		s.Settings = map[string]any{}
	}
}

func (sh *Shaper) normalizeMarket(s *State) {
	m := sh.tune.Market
	if s.Market.Multipliers == nil {
		s.Market.Multipliers = map[string]float64{}
	}
	tradeable := make(map[string]struct{}, len(sh.cats.Items.Tradeable))
	for _, id := range sh.cats.Items.Tradeable {
		tradeable[id] = struct{}{}
		v, ok := s.Market.Multipliers[id]
		if !ok {
			v = 1
		}
		s.Market.Multipliers[id] = weighted.Round2(weighted.Clamp(v, m.MinMultiplier, m.MaxMultiplier))
	}
	for id := range s.Market.Multipliers {
		if _, ok := tradeable[id]; !ok {
			delete(s.Market.Multipliers, id)
		}
	}
}

func (sh *Shaper) normalizeTiles(s *State, now int64) {
	w, h := sh.tune.GridWidth, sh.tune.GridHeight
	if len(s.Tiles) != h {
		rows := make([][]Tile, h)
		copy(rows, s.Tiles)
		s.Tiles = rows
	}
	for y := range s.Tiles {
		if len(s.Tiles[y]) != w {
			row := make([]Tile, w)
			copy(row, s.Tiles[y])
			s.Tiles[y] = row
		}
		for x := range s.Tiles[y] {
			sh.normalizeTile(&s.Tiles[y][x], now)
		}
	}
}

func (sh *Shaper) normalizeTile(t *Tile, now int64) {
	if t.Building != nil {
		if _, ok := sh.cats.Building(t.Building.BuildingID); !ok {
			t.Building = nil
		}
	}
	if t.Crop != nil {
		if _, ok := sh.cats.Crop(t.Crop.CropID); !ok || t.Building != nil {
			t.Crop = nil
		}
	}
	if t.Building != nil {
		t.Plowed = false
		t.FertilizedBonus = false
		if t.Building.StartedAt <= 0 {
			t.Building.StartedAt = now
		}
		if lc := t.Building.LastCollectedAt; lc != nil && *lc <= 0 {
			t.Building.LastCollectedAt = nil
		}
	}
	if t.Crop != nil {
		if t.Crop.PlantedAt <= 0 {
			t.Crop.PlantedAt = now
		}
	} else {
		t.FertilizedBonus = false
	}
}

func (sh *Shaper) normalizeClock(s *State) {
	if math.IsNaN(s.TimeOfDay) || math.IsInf(s.TimeOfDay, 0) {
		s.TimeOfDay = 0
	}
	s.TimeOfDay = math.Mod(s.TimeOfDay, 1)
	if s.TimeOfDay < 0 {
		s.TimeOfDay += 1
	}
	if s.TimeOfDay >= 1 {
		s.TimeOfDay = 0
	}

	n := len(sh.cats.Seasons.Seasons)
	s.SeasonIndex %= n
	if s.SeasonIndex < 0 {
		s.SeasonIndex += n
	}
	season := sh.cats.Season(s.SeasonIndex)
	s.Season = season.ID
	if _, ok := sh.cats.Weather(s.Weather); !ok {
		s.Weather = ""
		if len(season.WeatherWeights) > 0 {
			s.Weather = season.WeatherWeights[0].Weather
		}
	}
	if s.WeatherIntervalMs < sh.tune.WeatherMinIntervalMs || s.WeatherIntervalMs > sh.tune.WeatherMaxIntervalMs {
		s.WeatherIntervalMs = sh.tune.WeatherMinIntervalMs
	}
}

func (sh *Shaper) normalizeQuests(s *State) {
	seen := make(map[string]bool, len(s.Quests))
	byID := make(map[string]QuestState, len(s.Quests))
	var orphans []QuestState
	for _, q := range s.Quests {
		if q.ID == "" || seen[q.ID] {
			continue
		}
		seen[q.ID] = true
		if _, ok := sh.cats.Quest(q.ID); ok {
			byID[q.ID] = q
		} else {
			orphans = append(orphans, q)
		}
	}
	out := make([]QuestState, 0, len(sh.cats.Quests.Defs)+len(orphans))
	for _, def := range sh.cats.Quests.Defs {
		q, ok := byID[def.ID]
		if !ok {
			q = QuestState{ID: def.ID}
		}
		if q.Progress < 0 {
			q.Progress = 0
		}
		if q.Progress >= def.Target {
			q.Progress = def.Target
			q.Completed = true
		}
		if q.RewardClaimed {
			q.Completed = true
		}
		out = append(out, q)
	}
	for _, q := range orphans {
		if q.Progress < 0 {
			q.Progress = 0
		}
		out = append(out, q)
	}
	s.Quests = out
}

// normalizeOrders keeps exactly one posting per order definition, in catalog
// order. Postings for orders no longer in the catalog are dropped.
func (sh *Shaper) normalizeOrders(s *State, now int64) {
	byID := make(map[string]OrderState, len(s.Orders))
	for _, o := range s.Orders {
		if _, seen := byID[o.ID]; !seen {
			byID[o.ID] = o
		}
	}
	out := make([]OrderState, 0, len(sh.cats.Orders.Defs))
	for _, def := range sh.cats.Orders.Defs {
		o, ok := byID[def.ID]
		if !ok {
			o = OrderState{ID: def.ID}
		}
		if o.PostedAt <= 0 {
			o.PostedAt = now
		}
		if o.ExpiresAt <= o.PostedAt {
			o.ExpiresAt = o.PostedAt + def.DurationMs
		}
		out = append(out, o)
	}
	s.Orders = out
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
