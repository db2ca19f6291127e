package engine

import (
	"math"

	"bigharvest.farm/internal/sim/catalogs"
	"bigharvest.farm/internal/sim/farm"
	"bigharvest.farm/internal/sim/logic/readiness"
)

// Every handler validates all preconditions before touching state, so a
// returned error always means nothing changed.

func (e *Engine) Plant(now int64, x, y int, cropID string) error {
	t, err := e.tile(x, y)
	if err != nil {
		return err
	}
	def, ok := e.cats.Crop(cropID)
	if !ok {
		return ErrUnknownCrop.withHint(catalogs.Suggest(cropID, e.cats.Crops.Order))
	}
	if e.Level().Level < def.MinLevel {
		return ErrLevelTooLow
	}
	if !def.AllowedIn(e.st.Season) {
		return ErrWrongSeason
	}
	if !t.Empty() {
		return ErrTileOccupied
	}
	if !t.Plowed {
		return ErrNotPlowed
	}
	if e.st.Money < def.SeedCost {
		return ErrNoMoney
	}
	if !e.hasEnergy(EnergyPlant) {
		return ErrNoEnergy
	}

	e.spendEnergy(EnergyPlant)
	e.st.Money -= def.SeedCost
	t.Crop = &farm.CropInstance{CropID: def.ID, PlantedAt: now}
	e.st.Stats.CropsPlanted++
	e.emit(now, "PLANTED", "x", x, "y", y, "crop_id", def.ID)
	e.addXP(now, def.XPPlant)
	e.advanceQuests(now, catalogs.TriggerPlantCrop, def.ID)
	return nil
}

func (e *Engine) Harvest(now int64, x, y int) error {
	t, err := e.tile(x, y)
	if err != nil {
		return err
	}
	if t.Crop == nil {
		return ErrNoCrop
	}
	def, ok := e.cats.Crop(t.Crop.CropID)
	if !ok {
		return ErrUnknownCrop
	}
	if !e.hasEnergy(EnergyHarvest) {
		return ErrNoEnergy
	}
	if !readiness.Ready(now, t.Crop.PlantedAt, e.GrowTimeMs(def)) {
		return ErrNotReady
	}
	if !e.hasRoom(1) {
		return ErrStorageFull
	}

	e.spendEnergy(EnergyHarvest)
	yield := 1
	if t.FertilizedBonus && e.hasRoom(2) {
		yield = 2
	}
	e.st.Inventory[def.ID] += yield
	e.earn(def.SellValue)
	t.Crop = nil
	t.Plowed = false
	t.FertilizedBonus = false
	e.st.Stats.CropsHarvested++
	e.emit(now, "HARVESTED", "x", x, "y", y, "crop_id", def.ID, "yield", yield, "money", def.SellValue)
	e.addXP(now, def.XPHarvest)
	e.advanceQuests(now, catalogs.TriggerHarvestCrop, def.ID)
	return nil
}

func (e *Engine) Build(now int64, x, y int, buildingID string) error {
	t, err := e.tile(x, y)
	if err != nil {
		return err
	}
	def, ok := e.cats.Building(buildingID)
	if !ok {
		return ErrUnknownBuilding.withHint(catalogs.Suggest(buildingID, e.cats.Buildings.Order))
	}
	if e.Level().Level < def.MinLevel {
		return ErrLevelTooLow
	}
	if !t.Empty() {
		return ErrTileOccupied
	}
	if e.st.Money < def.BuildCost {
		return ErrNoMoney
	}
	if !e.hasEnergy(EnergyBuild) {
		return ErrNoEnergy
	}

	e.spendEnergy(EnergyBuild)
	e.st.Money -= def.BuildCost
	t.Building = &farm.BuildingInstance{BuildingID: def.ID, StartedAt: now}
	t.Plowed = false
	t.FertilizedBonus = false
	e.st.Stats.BuildingsConstructed++
	e.emit(now, "BUILT", "x", x, "y", y, "building_id", def.ID)
	e.addXP(now, def.BuildXP)
	e.advanceQuests(now, catalogs.TriggerBuildBuilding, def.ID)
	return nil
}

func (e *Engine) Collect(now int64, x, y int) error {
	t, err := e.tile(x, y)
	if err != nil {
		return err
	}
	if t.Building == nil {
		return ErrNoBuilding
	}
	def, ok := e.cats.Building(t.Building.BuildingID)
	if !ok {
		return ErrUnknownBuilding
	}
	if !e.hasEnergy(EnergyCollect) {
		return ErrNoEnergy
	}
	if !readiness.Ready(now, productionSince(t.Building), e.ProductionTimeMs(def)) {
		return ErrNotReady
	}
	freed := 0
	for _, id := range def.InputIDs() {
		need := def.Inputs[id]
		if e.st.Inventory[id] < need {
			return ErrMissingInputs
		}
		if item, ok := e.cats.Item(id); !ok || item.Kind != catalogs.KindSupply {
			freed += need
		}
	}
	// Inputs leave storage in the same step the output enters it.
	if e.StorageUsed()-freed+1 > e.st.InventoryCapacity {
		return ErrStorageFull
	}

	e.spendEnergy(EnergyCollect)
	for id, need := range def.Inputs {
		e.st.Inventory[id] -= need
	}
	e.st.Inventory[def.Product]++
	e.earn(def.ProductValue)
	collectedAt := now
	t.Building.LastCollectedAt = &collectedAt
	e.st.Stats.ProductsCollected++
	if len(def.Inputs) > 0 {
		e.st.Stats.ProductsProcessed++
	}
	e.emit(now, "COLLECTED", "x", x, "y", y, "building_id", def.ID, "item_id", def.Product, "money", def.ProductValue)
	e.addXP(now, def.ProductXP)
	e.advanceQuests(now, catalogs.TriggerCollectProduct, def.ID)
	return nil
}

func (e *Engine) Plow(now int64, x, y int) error {
	t, err := e.tile(x, y)
	if err != nil {
		return err
	}
	if e.st.Tools.HoeDurability <= 0 {
		return ErrHoeBroken
	}
	if !t.Empty() {
		return ErrTileOccupied
	}
	if t.Plowed {
		return ErrAlreadyPlowed
	}
	if !e.hasEnergy(EnergyPlow) {
		return ErrNoEnergy
	}

	e.spendEnergy(EnergyPlow)
	t.Plowed = true
	e.st.Tools.HoeDurability--
	e.emit(now, "PLOWED", "x", x, "y", y)
	return nil
}

func (e *Engine) Water(now int64, x, y int) error {
	t, err := e.tile(x, y)
	if err != nil {
		return err
	}
	if t.Crop == nil {
		return ErrNoCrop
	}
	if e.st.Tools.WateringCanDurability <= 0 {
		return ErrCanBroken
	}
	raining := e.st.Weather == RainWeather
	if !raining && e.st.Inventory[farm.ItemWater] <= 0 {
		return ErrNoWater
	}
	if !e.hasEnergy(EnergyWater) {
		return ErrNoEnergy
	}
	remaining, err := e.cropRemaining(t, now)
	if err != nil {
		return err
	}

	e.spendEnergy(EnergyWater)
	boost := min(WaterBoostMs, remaining)
	t.Crop.PlantedAt -= boost
	if !raining {
		e.st.Inventory[farm.ItemWater]--
	}
	e.st.Tools.WateringCanDurability--
	e.emit(now, "WATERED", "x", x, "y", y, "boost_ms", boost, "free", raining)
	return nil
}

func (e *Engine) Fertilize(now int64, x, y int) error {
	t, err := e.tile(x, y)
	if err != nil {
		return err
	}
	if t.Crop == nil {
		return ErrNoCrop
	}
	if e.st.Inventory[farm.ItemFertilizer] <= 0 {
		return ErrNoFertilizer
	}
	if !e.hasEnergy(EnergyFertilize) {
		return ErrNoEnergy
	}
	remaining, err := e.cropRemaining(t, now)
	if err != nil {
		return err
	}

	e.spendEnergy(EnergyFertilize)
	boost := min(FertilizerBoostMs, remaining)
	t.Crop.PlantedAt -= boost
	e.st.Inventory[farm.ItemFertilizer]--
	t.FertilizedBonus = true
	e.emit(now, "FERTILIZED", "x", x, "y", y, "boost_ms", boost)
	return nil
}

func (e *Engine) cropRemaining(t *farm.Tile, now int64) (int64, error) {
	def, ok := e.cats.Crop(t.Crop.CropID)
	if !ok {
		return 0, ErrUnknownCrop
	}
	remaining := readiness.Remaining(now, t.Crop.PlantedAt, e.GrowTimeMs(def))
	if remaining <= 0 {
		return 0, ErrFullyGrown
	}
	return remaining, nil
}

// SellAll sells every sellable stack at the current market price.
func (e *Engine) SellAll(now int64) error {
	var total int64
	sold := map[string]int{}
	for _, id := range e.cats.Items.Tradeable {
		n := e.st.Inventory[id]
		if n <= 0 {
			continue
		}
		def, _ := e.cats.Item(id)
		total += int64(n) * e.unitPrice(def)
		sold[id] = n
	}
	if len(sold) == 0 {
		return ErrNothingToSell
	}
	for id := range sold {
		e.st.Inventory[id] = 0
	}
	e.earn(total)
	e.emit(now, "SOLD", "items", sold, "money", total)
	return nil
}

// SellItem sells the whole stack of one item.
func (e *Engine) SellItem(now int64, itemID string) error {
	def, ok := e.cats.Item(itemID)
	if !ok {
		return ErrUnknownItem.withHint(catalogs.Suggest(itemID, e.cats.Items.Tradeable))
	}
	if !def.Sellable() {
		return ErrNotSellable
	}
	n := e.st.Inventory[def.ID]
	if n <= 0 {
		return ErrNothingToSell
	}
	total := int64(n) * e.unitPrice(def)
	e.st.Inventory[def.ID] = 0
	e.earn(total)
	e.emit(now, "SOLD", "items", map[string]int{def.ID: n}, "money", total)
	return nil
}

// Repair prefers a toolkit (full restore) and falls back to paying money (partial restore).
func (e *Engine) Repair(now int64) error {
	tools := &e.st.Tools
	switch {
	case e.st.Inventory[farm.ItemToolkit] > 0:
		e.st.Inventory[farm.ItemToolkit]--
		tools.HoeDurability = farm.MaxDurability
		tools.WateringCanDurability = farm.MaxDurability
		e.emit(now, "REPAIRED", "with", farm.ItemToolkit)
	case e.st.Money >= e.tune.Repair.MoneyCost:
		e.st.Money -= e.tune.Repair.MoneyCost
		tools.HoeDurability = min(farm.MaxDurability, tools.HoeDurability+e.tune.Repair.PartialAmount)
		tools.WateringCanDurability = min(farm.MaxDurability, tools.WateringCanDurability+e.tune.Repair.PartialAmount)
		e.emit(now, "REPAIRED", "with", "money", "money", e.tune.Repair.MoneyCost)
	default:
		return ErrCannotRepair
	}
	return nil
}

// Buy purchases qty units of a supply item.
func (e *Engine) Buy(now int64, itemID string, qty int) error {
	def, ok := e.cats.Item(itemID)
	if !ok {
		return ErrUnknownItem.withHint(catalogs.Suggest(itemID, supplyIDs(e.cats)))
	}
	if def.BuyPrice <= 0 {
		return ErrNotForSale
	}
	if qty < 1 || qty > MaxBuyQty {
		return ErrBadQuantity
	}
	cost := def.BuyPrice * int64(qty)
	if e.st.Money < cost {
		return ErrNoMoney
	}
	e.st.Money -= cost
	e.st.Inventory[def.ID] += qty
	e.emit(now, "BOUGHT", "item_id", def.ID, "qty", qty, "money", cost)
	return nil
}

func (e *Engine) UpgradeStorage(now int64) error {
	cost := e.tune.StorageUpgradeCost
	if e.st.Money < cost {
		return ErrNoMoney
	}
	e.st.Money -= cost
	e.st.InventoryCapacity += e.tune.StorageUpgradeStep
	e.emit(now, "STORAGE_UPGRADED", "capacity", e.st.InventoryCapacity, "money", cost)
	return nil
}

func supplyIDs(c *catalogs.Catalogs) []string {
	var ids []string
	for id, def := range c.Items.ByID {
		if def.BuyPrice > 0 {
			ids = append(ids, id)
		}
	}
	return ids
}

func roundInt(v float64) int64 { return int64(math.Round(v)) }
