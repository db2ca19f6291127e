package catalogs

import (
	"strings"
	"testing"
	"testing/fstest"
)

func TestDefault_LoadsShippedCatalogs(t *testing.T) {
	c, err := Default()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	wheat, ok := c.Crop("wheat")
	if !ok {
		t.Fatalf("missing wheat")
	}
	if wheat.SeedCost != 10 || wheat.SellValue != 25 || wheat.MinLevel != 1 {
		t.Fatalf("unexpected wheat def: %+v", wheat)
	}
	if _, ok := c.Crop("banana"); ok {
		t.Fatalf("unknown crop must report not found")
	}
	coop, ok := c.Building("chicken_coop")
	if !ok || coop.Product != "eggs" {
		t.Fatalf("unexpected chicken_coop def: %+v ok=%v", coop, ok)
	}
	mill, _ := c.Building("mill")
	if mill.Inputs["wheat"] != 3 {
		t.Fatalf("mill should consume 3 wheat, got %v", mill.Inputs)
	}
	if len(c.Seasons.Seasons) != SeasonCount {
		t.Fatalf("seasons=%d", len(c.Seasons.Seasons))
	}
	if c.Crops.Digest == "" || c.Buildings.Digest == "" || c.Quests.Digest == "" || c.Seasons.Digest == "" || c.Items.Digest == "" || c.Orders.Digest == "" {
		t.Fatalf("expected digests to be populated")
	}
}

func TestItems_OnlyPricedSuppliesAreTradeable(t *testing.T) {
	c, err := Default()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	tradeable := map[string]bool{}
	for _, id := range c.Items.Tradeable {
		tradeable[id] = true
	}
	if tradeable["water"] || tradeable["toolkit"] {
		t.Fatalf("water and toolkit must not be tradeable: %v", c.Items.Tradeable)
	}
	fert, ok := c.Item("fertilizer")
	if !ok || !tradeable["fertilizer"] || !fert.Sellable() || fert.Kind != KindSupply {
		t.Fatalf("fertilizer: %+v ok=%v tradeable=%v", fert, ok, c.Items.Tradeable)
	}
	eggs, ok := c.Item("eggs")
	if !ok || eggs.Kind != KindProduct || eggs.BaseValue != 60 {
		t.Fatalf("eggs item: %+v ok=%v", eggs, ok)
	}
	water, ok := c.Item("water")
	if !ok || water.Sellable() || water.BuyPrice <= 0 {
		t.Fatalf("water item: %+v ok=%v", water, ok)
	}
}

func TestOrders_Loaded(t *testing.T) {
	c, err := Default()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(c.Orders.Defs) == 0 || c.Orders.Digest == "" {
		t.Fatalf("expected default orders with a digest")
	}
	o, ok := c.Order("diner_breakfast")
	if !ok || o.Items["eggs"] != 3 || o.Items["milk"] != 1 || o.RewardMoney <= 0 {
		t.Fatalf("diner_breakfast: %+v ok=%v", o, ok)
	}
	if ids := o.ItemIDs(); len(ids) != 2 || ids[0] != "eggs" || ids[1] != "milk" {
		t.Fatalf("item ids=%v", ids)
	}
	if _, ok := c.Order("nope"); ok {
		t.Fatalf("unknown order must report not found")
	}
}

func TestSeason_WrapsIndex(t *testing.T) {
	c, err := Default()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.Season(4).ID != c.Season(0).ID || c.Season(-1).ID != c.Season(3).ID {
		t.Fatalf("season index should wrap")
	}
	if i, ok := c.SeasonIndex("winter"); !ok || i != 3 {
		t.Fatalf("winter index=%d ok=%v", i, ok)
	}
}

func TestQuestMatches(t *testing.T) {
	q := QuestDef{ID: "q", Type: TriggerHarvestCrop, CropID: "wheat", Target: 1}
	if !q.Matches(TriggerHarvestCrop, "wheat") {
		t.Fatalf("expected match")
	}
	if q.Matches(TriggerHarvestCrop, "corn") || q.Matches(TriggerPlantCrop, "wheat") {
		t.Fatalf("unexpected match")
	}
	anyHarvest := QuestDef{ID: "any", Type: TriggerHarvestCrop, Target: 1}
	if !anyHarvest.Matches(TriggerHarvestCrop, "carrot") {
		t.Fatalf("unfiltered quest should match any crop")
	}
}

func baseFS() fstest.MapFS {
	return fstest.MapFS{
		"crops.json":     {Data: []byte(`[{"id":"wheat","grow_time_ms":1000,"seed_cost":1,"sell_value":2,"min_level":1}]`)},
		"buildings.json": {Data: []byte(`[]`)},
		"items.json":     {Data: []byte(`[]`)},
		"quests.json":    {Data: []byte(`[]`)},
		"orders.json":    {Data: []byte(`[]`)},
		"seasons.json": {Data: []byte(`{"seasons":[
			{"id":"a","growth_multiplier":1,"weather_weights":[{"weather":"sunny","weight":1}]},
			{"id":"b","growth_multiplier":1,"weather_weights":[{"weather":"sunny","weight":1}]},
			{"id":"c","growth_multiplier":1,"weather_weights":[{"weather":"sunny","weight":1}]},
			{"id":"d","growth_multiplier":1,"weather_weights":[{"weather":"sunny","weight":1}]}],
			"weather":[{"id":"sunny","growth_multiplier":1,"production_multiplier":1}]}`)},
	}
}

func TestLoad_RejectsInvalidDefinitions(t *testing.T) {
	cases := []struct {
		name string
		file string
		data string
		want string
	}{
		{"duplicate crop", "crops.json", `[{"id":"a","grow_time_ms":1,"seed_cost":1,"sell_value":1,"min_level":1},{"id":"a","grow_time_ms":1,"seed_cost":1,"sell_value":1,"min_level":1}]`, "duplicate"},
		{"zero grow time", "crops.json", `[{"id":"a","grow_time_ms":0,"seed_cost":1,"sell_value":1,"min_level":1}]`, "positive"},
		{"min level zero", "crops.json", `[{"id":"a","grow_time_ms":1,"seed_cost":1,"sell_value":1,"min_level":0}]`, "min_level"},
		{"negative build cost", "buildings.json", `[{"id":"b","build_cost":-1,"production_time_ms":1,"product":"x","product_value":1,"min_level":1}]`, "positive"},
		{"unknown input", "buildings.json", `[{"id":"b","build_cost":1,"production_time_ms":1,"product":"x","product_value":1,"min_level":1,"inputs":{"nope":1}}]`, "unknown input"},
		{"unknown quest crop", "quests.json", `[{"id":"q","type":"plant_crop","crop_id":"nope","target":1}]`, "unknown crop"},
		{"unknown trigger", "quests.json", `[{"id":"q","type":"dance","target":1}]`, "unknown trigger"},
		{"supply price", "items.json", `[{"id":"water","kind":"SUPPLY","buy_price":0}]`, "buy_price"},
		{"duplicate order", "orders.json", `[{"id":"o","items":{"wheat":1},"reward_money":1,"duration_ms":1},{"id":"o","items":{"wheat":1},"reward_money":1,"duration_ms":1}]`, "duplicate"},
		{"empty order", "orders.json", `[{"id":"o","items":{},"reward_money":1,"duration_ms":1}]`, "at least one item"},
		{"unknown order item", "orders.json", `[{"id":"o","items":{"nope":1},"reward_money":1,"duration_ms":1}]`, "unknown item"},
		{"zero order qty", "orders.json", `[{"id":"o","items":{"wheat":0},"reward_money":1,"duration_ms":1}]`, "positive"},
		{"order without duration", "orders.json", `[{"id":"o","items":{"wheat":1},"reward_money":1}]`, "duration_ms"},
		{"negative supply value", "items.json", `[{"id":"water","kind":"SUPPLY","buy_price":1,"base_value":-1}]`, "base_value"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			fsys := baseFS()
			fsys[tc.file] = &fstest.MapFile{Data: []byte(tc.data)}
			_, err := Load(fsys)
			if err == nil {
				t.Fatalf("expected error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("error %q does not mention %q", err, tc.want)
			}
		})
	}
}

func TestSuggest(t *testing.T) {
	known := []string{"wheat", "corn", "carrot", "chicken_coop"}
	if got := Suggest("whaet", known); got != "wheat" {
		t.Fatalf("Suggest(whaet)=%q", got)
	}
	if got := Suggest("chicken", known); got != "chicken_coop" {
		t.Fatalf("Suggest(chicken)=%q", got)
	}
	if got := Suggest("zzzzzzzz", known); got != "" {
		t.Fatalf("Suggest(zzzzzzzz)=%q want empty", got)
	}
}
