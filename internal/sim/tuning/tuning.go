package tuning

import (
	"fmt"
	"io/fs"
	"os"

	"gopkg.in/yaml.v3"

	"bigharvest.farm/configs"
)

type Tuning struct {
	GridWidth  int `yaml:"grid_width" json:"grid_width"`
	GridHeight int `yaml:"grid_height" json:"grid_height"`

	Starting Starting `yaml:"starting" json:"starting"`

	EnergyRegenPerMinute float64 `yaml:"energy_regen_per_minute" json:"energy_regen_per_minute"`
	DayLengthMs          int64   `yaml:"day_length_ms" json:"day_length_ms"`

	Market Market `yaml:"market" json:"market"`

	SeasonIntervalMs     int64 `yaml:"season_interval_ms" json:"season_interval_ms"`
	WeatherMinIntervalMs int64 `yaml:"weather_min_interval_ms" json:"weather_min_interval_ms"`
	WeatherMaxIntervalMs int64 `yaml:"weather_max_interval_ms" json:"weather_max_interval_ms"`

	Idle     Idle     `yaml:"idle" json:"idle"`
	Leveling Leveling `yaml:"leveling" json:"leveling"`
	Repair   Repair   `yaml:"repair" json:"repair"`

	StorageUpgradeCost int64 `yaml:"storage_upgrade_cost" json:"storage_upgrade_cost"`
	StorageUpgradeStep int   `yaml:"storage_upgrade_step" json:"storage_upgrade_step"`

	// OrderRestockMs is the gap between an order's window closing and its
	// next posting.
	OrderRestockMs int64 `yaml:"order_restock_ms" json:"order_restock_ms"`

	SaveDebounceMs int64 `yaml:"save_debounce_ms" json:"save_debounce_ms"`
	TickIntervalMs int64 `yaml:"tick_interval_ms" json:"tick_interval_ms"`

	RateLimits RateLimits `yaml:"rate_limits" json:"rate_limits"`
}

type Starting struct {
	Money                 int64          `yaml:"money" json:"money"`
	Energy                float64        `yaml:"energy" json:"energy"`
	MaxEnergy             int            `yaml:"max_energy" json:"max_energy"`
	InventoryCapacity     int            `yaml:"inventory_capacity" json:"inventory_capacity"`
	HoeDurability         int            `yaml:"hoe_durability" json:"hoe_durability"`
	WateringCanDurability int            `yaml:"watering_can_durability" json:"watering_can_durability"`
	Items                 map[string]int `yaml:"items" json:"items"`
}

type Market struct {
	IntervalMs    int64   `yaml:"interval_ms" json:"interval_ms"`
	MaxStep       float64 `yaml:"max_step" json:"max_step"`
	MinMultiplier float64 `yaml:"min_multiplier" json:"min_multiplier"`
	MaxMultiplier float64 `yaml:"max_multiplier" json:"max_multiplier"`
}

type Idle struct {
	MinMinutes      int64 `yaml:"min_minutes" json:"min_minutes"`
	RatePerBuilding int64 `yaml:"rate_per_building" json:"rate_per_building"`
	RatePerLevel    int64 `yaml:"rate_per_level" json:"rate_per_level"`
	MaxGain         int64 `yaml:"max_gain" json:"max_gain"`
}

type Leveling struct {
	BaseXP          int64   `yaml:"base_xp" json:"base_xp"`
	EarlyUntilLevel int     `yaml:"early_until_level" json:"early_until_level"`
	EarlyMultiplier float64 `yaml:"early_multiplier" json:"early_multiplier"`
	LateFromLevel   int     `yaml:"late_from_level" json:"late_from_level"`
	MidMultiplier   float64 `yaml:"mid_multiplier" json:"mid_multiplier"`
	LateMultiplier  float64 `yaml:"late_multiplier" json:"late_multiplier"`
}

type Repair struct {
	MoneyCost     int64 `yaml:"money_cost" json:"money_cost"`
	PartialAmount int   `yaml:"partial_amount" json:"partial_amount"`
}

type RateLimits struct {
	HTTPPerSecond    float64 `yaml:"http_per_second" json:"http_per_second"`
	HTTPBurst        int     `yaml:"http_burst" json:"http_burst"`
	ActionsPerSecond float64 `yaml:"actions_per_second" json:"actions_per_second"`
	ActionsBurst     int     `yaml:"actions_burst" json:"actions_burst"`
}

// MinMarketIntervalMs is the shortest allowed market drift interval.
const MinMarketIntervalMs = 45_000

// Defaults mirrors configs/tuning.yaml.
func Defaults() Tuning {
	return Tuning{
		GridWidth:  20,
		GridHeight: 20,
		Starting: Starting{
			Money:                 500,
			Energy:                100,
			MaxEnergy:             100,
			InventoryCapacity:     50,
			HoeDurability:         100,
			WateringCanDurability: 100,
			Items:                 map[string]int{"water": 10, "fertilizer": 3, "toolkit": 1},
		},
		EnergyRegenPerMinute: 6,
		DayLengthMs:          600_000,
		Market: Market{
			IntervalMs:    60_000,
			MaxStep:       0.08,
			MinMultiplier: 0.7,
			MaxMultiplier: 1.4,
		},
		SeasonIntervalMs:     180_000,
		WeatherMinIntervalMs: 45_000,
		WeatherMaxIntervalMs: 90_000,
		Idle: Idle{
			MinMinutes:      1,
			RatePerBuilding: 2,
			RatePerLevel:    1,
			MaxGain:         500,
		},
		Leveling: Leveling{
			BaseXP:          100,
			EarlyUntilLevel: 5,
			EarlyMultiplier: 1.5,
			LateFromLevel:   15,
			MidMultiplier:   1.3,
			LateMultiplier:  1.45,
		},
		Repair:             Repair{MoneyCost: 100, PartialAmount: 60},
		StorageUpgradeCost: 250,
		StorageUpgradeStep: 25,
		OrderRestockMs:     60_000,
		SaveDebounceMs:     500,
		TickIntervalMs:     1000,
		RateLimits: RateLimits{
			HTTPPerSecond:    20,
			HTTPBurst:        40,
			ActionsPerSecond: 10,
			ActionsBurst:     20,
		},
	}
}

// Default loads the tuning.yaml embedded in the binary.
func Default() (Tuning, error) {
	return LoadFS(configs.FS, "tuning.yaml")
}

func Load(path string) (Tuning, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Tuning{}, err
	}
	return parse(raw)
}

func LoadFS(fsys fs.FS, name string) (Tuning, error) {
	raw, err := fs.ReadFile(fsys, name)
	if err != nil {
		return Tuning{}, err
	}
	return parse(raw)
}

func parse(raw []byte) (Tuning, error) {
	t := Defaults()
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	if err := t.Validate(); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	return t, nil
}

func (t Tuning) Validate() error {
	if t.GridWidth <= 0 || t.GridHeight <= 0 {
		return fmt.Errorf("grid must be non-empty, got %dx%d", t.GridWidth, t.GridHeight)
	}
	if t.Starting.MaxEnergy <= 0 {
		return fmt.Errorf("starting.max_energy must be positive")
	}
	if t.Starting.InventoryCapacity <= 0 {
		return fmt.Errorf("starting.inventory_capacity must be positive")
	}
	if t.Starting.Money < 0 {
		return fmt.Errorf("starting.money must be >= 0")
	}
	if t.Market.IntervalMs < MinMarketIntervalMs {
		return fmt.Errorf("market.interval_ms must be >= %d", MinMarketIntervalMs)
	}
	if t.Market.MinMultiplier <= 0 || t.Market.MinMultiplier > t.Market.MaxMultiplier {
		return fmt.Errorf("market multiplier bounds are invalid")
	}
	if t.SeasonIntervalMs <= 0 || t.DayLengthMs <= 0 {
		return fmt.Errorf("season_interval_ms and day_length_ms must be positive")
	}
	if t.WeatherMinIntervalMs <= 0 || t.WeatherMaxIntervalMs < t.WeatherMinIntervalMs {
		return fmt.Errorf("weather interval bounds are invalid")
	}
	if t.Leveling.BaseXP <= 0 || t.Leveling.EarlyMultiplier <= 1 || t.Leveling.MidMultiplier <= 1 || t.Leveling.LateMultiplier <= 1 {
		return fmt.Errorf("leveling needs a positive base and multipliers above 1")
	}
	if t.Idle.MaxGain < 0 || t.Idle.MinMinutes < 1 {
		return fmt.Errorf("idle.max_gain must be >= 0 and idle.min_minutes >= 1")
	}
	if t.OrderRestockMs < 0 {
		return fmt.Errorf("order_restock_ms must be >= 0")
	}
	if t.SaveDebounceMs <= 0 || t.TickIntervalMs <= 0 {
		return fmt.Errorf("save_debounce_ms and tick_interval_ms must be positive")
	}
	return nil
}

// RegenPerMs converts the per-minute regen rate used in tuning.yaml.
func (t Tuning) RegenPerMs() float64 { return t.EnergyRegenPerMinute / 60_000 }
