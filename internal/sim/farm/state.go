package farm

// SchemaVersion is written into every normalized document.
const SchemaVersion = 3

const (
	MaxDurability = 100

	ItemWater      = "water"
	ItemFertilizer = "fertilizer"
	ItemToolkit    = "toolkit"
)

type State struct {
	Version int   `json:"version"`
	Money   int64 `json:"money"`
	XP      int64 `json:"xp"`

	Tiles     [][]Tile       `json:"tiles"`
	Inventory map[string]int `json:"inventory"`
	Tools     Tools          `json:"tools"`

	Energy              float64 `json:"energy"`
	MaxEnergy           int     `json:"maxEnergy"`
	LastEnergyTimestamp int64   `json:"lastEnergyTimestamp"`
	InventoryCapacity   int     `json:"inventoryCapacity"`

	Market Market `json:"market"`

	TimeOfDay            float64 `json:"timeOfDay"`
	LastTimeTimestamp    int64   `json:"lastTimeTimestamp"`
	SeasonIndex          int     `json:"seasonIndex"`
	Season               string  `json:"season"`
	Weather              string  `json:"weather"`
	LastSeasonTimestamp  int64   `json:"lastSeasonTimestamp"`
	LastWeatherTimestamp int64   `json:"lastWeatherTimestamp"`
	WeatherIntervalMs    int64   `json:"weatherIntervalMs"`

	Quests []QuestState `json:"quests"`
	Orders []OrderState `json:"orders"`
	Stats  Stats        `json:"stats"`

	LastActiveTimestamp int64          `json:"lastActiveTimestamp"`
	Settings            map[string]any `json:"settings"`
}

type Tools struct {
	HoeDurability         int `json:"hoeDurability"`
	WateringCanDurability int `json:"wateringCanDurability"`
}

type Market struct {
	LastUpdateTimestamp int64              `json:"lastUpdateTimestamp"`
	Multipliers         map[string]float64 `json:"multipliers"`
}

type QuestState struct {
	ID            string `json:"id"`
	Progress      int    `json:"progress"`
	Completed     bool   `json:"completed"`
	RewardClaimed bool   `json:"rewardClaimed"`
}

// OrderState is the current posting of one delivery order.
type OrderState struct {
	ID        string `json:"id"`
	PostedAt  int64  `json:"postedAt"`
	ExpiresAt int64  `json:"expiresAt"`
	Completed bool   `json:"completed"`
}

type Stats struct {
	CropsPlanted         int64 `json:"cropsPlanted"`
	CropsHarvested       int64 `json:"cropsHarvested"`
	ProductsCollected    int64 `json:"productsCollected"`
	ProductsProcessed    int64 `json:"productsProcessed"`
	BuildingsConstructed int64 `json:"buildingsConstructed"`
	MoneyEarned          int64 `json:"moneyEarned"`
	OrdersFulfilled      int64 `json:"ordersFulfilled"`
}

func (s *State) Height() int { return len(s.Tiles) }

func (s *State) Width() int {
	if len(s.Tiles) == 0 {
		return 0
	}
	return len(s.Tiles[0])
}

// Tile returns the tile at (x, y), or nil when out of bounds.
func (s *State) Tile(x, y int) *Tile {
	if y < 0 || y >= len(s.Tiles) || x < 0 || x >= len(s.Tiles[y]) {
		return nil
	}
	return &s.Tiles[y][x]
}

// Quest returns the progress entry for a quest id.
func (s *State) Quest(id string) *QuestState {
	for i := range s.Quests {
		if s.Quests[i].ID == id {
			return &s.Quests[i]
		}
	}
	return nil
}

// Order returns the posting of an order id.
func (s *State) Order(id string) *OrderState {
	for i := range s.Orders {
		if s.Orders[i].ID == id {
			return &s.Orders[i]
		}
	}
	return nil
}

// BuildingCount counts tiles holding a building.
func (s *State) BuildingCount() int {
	n := 0
	for y := range s.Tiles {
		for x := range s.Tiles[y] {
			if s.Tiles[y][x].Building != nil {
				n++
			}
		}
	}
	return n
}

// Clone returns a deep copy.
func (s *State) Clone() *State {
	c := *s
	c.Tiles = make([][]Tile, len(s.Tiles))
	for y := range s.Tiles {
		row := make([]Tile, len(s.Tiles[y]))
		for x, t := range s.Tiles[y] {
			row[x] = t.clone()
		}
		c.Tiles[y] = row
	}
	c.Inventory = make(map[string]int, len(s.Inventory))
	for k, v := range s.Inventory {
		c.Inventory[k] = v
	}
	c.Market.Multipliers = make(map[string]float64, len(s.Market.Multipliers))
	for k, v := range s.Market.Multipliers {
		c.Market.Multipliers[k] = v
	}
	c.Quests = append([]QuestState(nil), s.Quests...)
	c.Orders = append([]OrderState(nil), s.Orders...)
	if s.Settings != nil {
		c.Settings = cloneAny(s.Settings).(map[string]any)
	}
	return &c
}

func cloneAny(v any) any {
	switch t := v.(type) {
	case map[string]any:
		m := make(map[string]any, len(t))
		for k, e := range t {
			m[k] = cloneAny(e)
		}
		return m
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = cloneAny(e)
		}
		return out
	default:
		return v
	}
}
