package catalogs

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"sort"

	"bigharvest.farm/configs"
)

type Catalogs struct {
	Crops     CropCatalog
	Buildings BuildingCatalog
	Items     ItemCatalog
	Quests    QuestCatalog
	Orders    OrderCatalog
	Seasons   SeasonCatalog
}

type CropCatalog struct {
	Order  []string
	ByID   map[string]CropDef
	Digest string
}

type CropDef struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	GrowTimeMs int64    `json:"grow_time_ms"`
	SeedCost   int64    `json:"seed_cost"`
	SellValue  int64    `json:"sell_value"`
	XPPlant    int64    `json:"xp_plant"`
	XPHarvest  int64    `json:"xp_harvest"`
	MinLevel   int      `json:"min_level"`
	Seasons    []string `json:"seasons,omitempty"`
}

// AllowedIn reports whether the crop may be planted in the given season.
// Crops without a season list grow all year.
func (d CropDef) AllowedIn(season string) bool {
	if len(d.Seasons) == 0 {
		return true
	}
	for _, s := range d.Seasons {
		if s == season {
			return true
		}
	}
	return false
}

type BuildingCatalog struct {
	Order  []string
	ByID   map[string]BuildingDef
	Digest string
}

type BuildingDef struct {
	ID               string         `json:"id"`
	Name             string         `json:"name"`
	BuildCost        int64          `json:"build_cost"`
	BuildXP          int64          `json:"build_xp"`
	ProductionTimeMs int64          `json:"production_time_ms"`
	Product          string         `json:"product"`
	ProductValue     int64          `json:"product_value"`
	ProductXP        int64          `json:"product_xp"`
	MinLevel         int            `json:"min_level"`
	Inputs           map[string]int `json:"inputs,omitempty"`
}

// InputIDs returns the consumed item ids in a stable order.
func (d BuildingDef) InputIDs() []string {
	ids := make([]string, 0, len(d.Inputs))
	for id := range d.Inputs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

type ItemKind string

const (
	KindCrop    ItemKind = "CROP"
	KindProduct ItemKind = "PRODUCT"
	KindSupply  ItemKind = "SUPPLY"
)

type ItemCatalog struct {
	// Tradeable lists every sellable item id in sorted order.
	Tradeable []string
	ByID      map[string]ItemDef
	Digest    string
}

type ItemDef struct {
	ID        string   `json:"id"`
	Kind      ItemKind `json:"kind"`
	BaseValue int64    `json:"base_value,omitempty"`
	BuyPrice  int64    `json:"buy_price,omitempty"`
}

// Sellable reports whether the item has a market price. Supplies sell only
// when items.json gives them a base_value.
func (d ItemDef) Sellable() bool { return d.BaseValue > 0 }

type Trigger string

const (
	TriggerPlantCrop      Trigger = "plant_crop"
	TriggerHarvestCrop    Trigger = "harvest_crop"
	TriggerBuildBuilding  Trigger = "build_building"
	TriggerCollectProduct Trigger = "collect_product"
)

type QuestCatalog struct {
	Defs   []QuestDef
	ByID   map[string]QuestDef
	Digest string
}

type QuestDef struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	Type        Trigger `json:"type"`
	CropID      string  `json:"crop_id,omitempty"`
	BuildingID  string  `json:"building_id,omitempty"`
	Target      int     `json:"target"`
	RewardMoney int64   `json:"reward_money"`
	RewardXP    int64   `json:"reward_xp"`
}

// Matches reports whether a fired trigger counts toward this quest.
func (q QuestDef) Matches(t Trigger, id string) bool {
	if q.Type != t {
		return false
	}
	switch t {
	case TriggerPlantCrop, TriggerHarvestCrop:
		return q.CropID == "" || q.CropID == id
	case TriggerBuildBuilding, TriggerCollectProduct:
		return q.BuildingID == "" || q.BuildingID == id
	}
	return false
}

type SeasonCatalog struct {
	Seasons []SeasonDef           `json:"seasons"`
	Weather []WeatherDef          `json:"weather"`
	ByID    map[string]WeatherDef `json:"-"`
	Digest  string                `json:"-"`
}

type SeasonDef struct {
	ID               string          `json:"id"`
	GrowthMultiplier float64         `json:"growth_multiplier"`
	WeatherWeights   []WeatherWeight `json:"weather_weights"`
}

type WeatherWeight struct {
	Weather string  `json:"weather"`
	Weight  float64 `json:"weight"`
}

type WeatherDef struct {
	ID                   string  `json:"id"`
	GrowthMultiplier     float64 `json:"growth_multiplier"`
	ProductionMultiplier float64 `json:"production_multiplier"`
}

const SeasonCount = 4

func (c *Catalogs) Crop(id string) (CropDef, bool) {
	d, ok := c.Crops.ByID[id]
	return d, ok
}

func (c *Catalogs) Building(id string) (BuildingDef, bool) {
	d, ok := c.Buildings.ByID[id]
	return d, ok
}

func (c *Catalogs) Item(id string) (ItemDef, bool) {
	d, ok := c.Items.ByID[id]
	return d, ok
}

func (c *Catalogs) Quest(id string) (QuestDef, bool) {
	d, ok := c.Quests.ByID[id]
	return d, ok
}

func (c *Catalogs) Weather(id string) (WeatherDef, bool) {
	d, ok := c.Seasons.ByID[id]
	return d, ok
}

// Season returns the season at index i, wrapping around the four-season cycle.
func (c *Catalogs) Season(i int) SeasonDef {
	n := len(c.Seasons.Seasons)
	i %= n
	if i < 0 {
		i += n
	}
	return c.Seasons.Seasons[i]
}

// SeasonIndex returns the position of a season id in the cycle.
func (c *Catalogs) SeasonIndex(id string) (int, bool) {
	for i, s := range c.Seasons.Seasons {
		if s.ID == id {
			return i, true
		}
	}
	return 0, false
}

// Default loads the catalogs embedded in the binary.
func Default() (*Catalogs, error) {
	return Load(configs.FS)
}

// LoadDir loads catalogs from a config directory on disk.
func LoadDir(configDir string) (*Catalogs, error) {
	return Load(os.DirFS(configDir))
}

func Load(fsys fs.FS) (*Catalogs, error) {
	var c Catalogs

	if err := loadCrops(fsys, "crops.json", &c.Crops); err != nil {
		return nil, err
	}
	if err := loadBuildings(fsys, "buildings.json", &c.Buildings); err != nil {
		return nil, err
	}
	if err := loadSeasons(fsys, "seasons.json", &c.Seasons); err != nil {
		return nil, err
	}
	if err := loadItems(fsys, "items.json", &c); err != nil {
		return nil, err
	}
	if err := loadQuests(fsys, "quests.json", &c); err != nil {
		return nil, err
	}
	if err := loadOrders(fsys, "orders.json", &c); err != nil {
		return nil, err
	}
	return &c, nil
}

func sha256Hex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

func loadCrops(fsys fs.FS, name string, out *CropCatalog) error {
	raw, err := fs.ReadFile(fsys, name)
	if err != nil {
		return err
	}
	out.Digest = sha256Hex(raw)

	var defs []CropDef
	if err := json.Unmarshal(raw, &defs); err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	out.ByID = make(map[string]CropDef, len(defs))
	for _, d := range defs {
		if d.ID == "" {
			return fmt.Errorf("%s: empty id", name)
		}
		if _, dup := out.ByID[d.ID]; dup {
			return fmt.Errorf("%s: duplicate id %q", name, d.ID)
		}
		if d.GrowTimeMs <= 0 || d.SeedCost <= 0 || d.SellValue <= 0 {
			return fmt.Errorf("%s: %s: grow time, seed cost and sell value must be positive", name, d.ID)
		}
		if d.XPPlant < 0 || d.XPHarvest < 0 {
			return fmt.Errorf("%s: %s: negative xp", name, d.ID)
		}
		if d.MinLevel < 1 {
			return fmt.Errorf("%s: %s: min_level must be >= 1", name, d.ID)
		}
		out.ByID[d.ID] = d
		out.Order = append(out.Order, d.ID)
	}
	return nil
}

func loadBuildings(fsys fs.FS, name string, out *BuildingCatalog) error {
	raw, err := fs.ReadFile(fsys, name)
	if err != nil {
		return err
	}
	out.Digest = sha256Hex(raw)

	var defs []BuildingDef
	if err := json.Unmarshal(raw, &defs); err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	out.ByID = make(map[string]BuildingDef, len(defs))
	for _, d := range defs {
		if d.ID == "" {
			return fmt.Errorf("%s: empty id", name)
		}
		if _, dup := out.ByID[d.ID]; dup {
			return fmt.Errorf("%s: duplicate id %q", name, d.ID)
		}
		if d.BuildCost <= 0 || d.ProductionTimeMs <= 0 || d.ProductValue <= 0 {
			return fmt.Errorf("%s: %s: build cost, production time and product value must be positive", name, d.ID)
		}
		if d.Product == "" {
			return fmt.Errorf("%s: %s: missing product", name, d.ID)
		}
		if d.MinLevel < 1 {
			return fmt.Errorf("%s: %s: min_level must be >= 1", name, d.ID)
		}
		for item, n := range d.Inputs {
			if item == "" || n <= 0 {
				return fmt.Errorf("%s: %s: bad input %q x%d", name, d.ID, item, n)
			}
		}
		out.ByID[d.ID] = d
		out.Order = append(out.Order, d.ID)
	}
	return nil
}

func loadSeasons(fsys fs.FS, name string, out *SeasonCatalog) error {
	raw, err := fs.ReadFile(fsys, name)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	out.Digest = sha256Hex(raw)

	if len(out.Seasons) != SeasonCount {
		return fmt.Errorf("%s: want %d seasons, got %d", name, SeasonCount, len(out.Seasons))
	}
	out.ByID = make(map[string]WeatherDef, len(out.Weather))
	for _, w := range out.Weather {
		if w.ID == "" {
			return fmt.Errorf("%s: weather with empty id", name)
		}
		if _, dup := out.ByID[w.ID]; dup {
			return fmt.Errorf("%s: duplicate weather %q", name, w.ID)
		}
		if w.GrowthMultiplier <= 0 || w.ProductionMultiplier <= 0 {
			return fmt.Errorf("%s: weather %s: multipliers must be positive", name, w.ID)
		}
		out.ByID[w.ID] = w
	}
	seen := map[string]bool{}
	for _, s := range out.Seasons {
		if s.ID == "" || seen[s.ID] {
			return fmt.Errorf("%s: empty or duplicate season id %q", name, s.ID)
		}
		seen[s.ID] = true
		if s.GrowthMultiplier <= 0 {
			return fmt.Errorf("%s: season %s: growth multiplier must be positive", name, s.ID)
		}
		if len(s.WeatherWeights) == 0 {
			return fmt.Errorf("%s: season %s: empty weather table", name, s.ID)
		}
		for _, ww := range s.WeatherWeights {
			if _, ok := out.ByID[ww.Weather]; !ok {
				return fmt.Errorf("%s: season %s: unknown weather %q", name, s.ID, ww.Weather)
			}
			if ww.Weight <= 0 {
				return fmt.Errorf("%s: season %s: weight for %s must be positive", name, s.ID, ww.Weather)
			}
		}
	}
	return nil
}

// loadItems merges supplies from items.json with the crop and product items
// implied by the crop and building catalogs.
func loadItems(fsys fs.FS, name string, c *Catalogs) error {
	raw, err := fs.ReadFile(fsys, name)
	if err != nil {
		return err
	}
	c.Items.Digest = sha256Hex(raw)

	var supplies []ItemDef
	if err := json.Unmarshal(raw, &supplies); err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}

	byID := map[string]ItemDef{}
	add := func(d ItemDef) error {
		if _, dup := byID[d.ID]; dup {
			return fmt.Errorf("%s: item id %q defined twice", name, d.ID)
		}
		byID[d.ID] = d
		return nil
	}
	for _, id := range c.Crops.Order {
		cd := c.Crops.ByID[id]
		if err := add(ItemDef{ID: id, Kind: KindCrop, BaseValue: cd.SellValue}); err != nil {
			return err
		}
	}
	for _, id := range c.Buildings.Order {
		bd := c.Buildings.ByID[id]
		if err := add(ItemDef{ID: bd.Product, Kind: KindProduct, BaseValue: bd.ProductValue}); err != nil {
			return err
		}
	}
	for _, d := range supplies {
		if d.ID == "" {
			return fmt.Errorf("%s: empty id", name)
		}
		if d.Kind != KindSupply {
			return fmt.Errorf("%s: %s: only SUPPLY items may be declared here", name, d.ID)
		}
		if d.BuyPrice <= 0 {
			return fmt.Errorf("%s: %s: buy_price must be positive", name, d.ID)
		}
		if d.BaseValue < 0 {
			return fmt.Errorf("%s: %s: base_value must be >= 0", name, d.ID)
		}
		if err := add(d); err != nil {
			return err
		}
	}

	// Building inputs must name known items.
	for _, id := range c.Buildings.Order {
		for item := range c.Buildings.ByID[id].Inputs {
			if _, ok := byID[item]; !ok {
				return fmt.Errorf("buildings.json: %s: unknown input %q", id, item)
			}
		}
	}

	c.Items.ByID = byID
	c.Items.Tradeable = c.Items.Tradeable[:0]
	for id, d := range byID {
		if d.Sellable() {
			c.Items.Tradeable = append(c.Items.Tradeable, id)
		}
	}
	sort.Strings(c.Items.Tradeable)
	return nil
}

func loadQuests(fsys fs.FS, name string, c *Catalogs) error {
	raw, err := fs.ReadFile(fsys, name)
	if err != nil {
		return err
	}
	c.Quests.Digest = sha256Hex(raw)

	var defs []QuestDef
	if err := json.Unmarshal(raw, &defs); err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	c.Quests.ByID = make(map[string]QuestDef, len(defs))
	for _, q := range defs {
		if q.ID == "" {
			return fmt.Errorf("%s: empty id", name)
		}
		if _, dup := c.Quests.ByID[q.ID]; dup {
			return fmt.Errorf("%s: duplicate id %q", name, q.ID)
		}
		switch q.Type {
		case TriggerPlantCrop, TriggerHarvestCrop:
			if q.CropID != "" {
				if _, ok := c.Crops.ByID[q.CropID]; !ok {
					return fmt.Errorf("%s: %s: unknown crop %q", name, q.ID, q.CropID)
				}
			}
		case TriggerBuildBuilding, TriggerCollectProduct:
			if q.BuildingID != "" {
				if _, ok := c.Buildings.ByID[q.BuildingID]; !ok {
					return fmt.Errorf("%s: %s: unknown building %q", name, q.ID, q.BuildingID)
				}
			}
		default:
			return fmt.Errorf("%s: %s: unknown trigger %q", name, q.ID, q.Type)
		}
		if q.Target <= 0 || q.RewardMoney < 0 || q.RewardXP < 0 {
			return fmt.Errorf("%s: %s: target must be positive and rewards non-negative", name, q.ID)
		}
		c.Quests.ByID[q.ID] = q
		c.Quests.Defs = append(c.Quests.Defs, q)
	}
	return nil
}
