package engine

import (
	"math/rand"
	"reflect"
	"testing"

	"bigharvest.farm/internal/protocol"
	"bigharvest.farm/internal/sim/farm"
)

var randomKinds = []string{
	protocol.ActPlant, protocol.ActHarvest, protocol.ActBuild, protocol.ActCollect,
	protocol.ActPlow, protocol.ActWater, protocol.ActFertilize, protocol.ActSellAll,
	protocol.ActSellItem, protocol.ActRepair, protocol.ActClaimQuest, protocol.ActBuy,
	protocol.ActUpgradeStorage, protocol.ActFulfillOrder,
}

func randomAction(r *rand.Rand, e *Engine) Action {
	pick := func(ids []string) string {
		if len(ids) == 0 || r.Intn(10) == 0 {
			return "bogus"
		}
		return ids[r.Intn(len(ids))]
	}
	items := append([]string{farm.ItemWater, farm.ItemFertilizer, farm.ItemToolkit}, e.Catalogs().Items.Tradeable...)
	quests := make([]string, 0)
	for _, q := range e.Catalogs().Quests.Defs {
		quests = append(quests, q.ID)
	}
	orders := make([]string, 0)
	for _, o := range e.Catalogs().Orders.Defs {
		orders = append(orders, o.ID)
	}
	return Action{
		Kind:       randomKinds[r.Intn(len(randomKinds))],
		X:          r.Intn(6) - 1,
		Y:          r.Intn(6) - 1,
		CropID:     pick(e.Catalogs().Crops.Order),
		BuildingID: pick(e.Catalogs().Buildings.Order),
		ItemID:     pick(items),
		QuestID:    pick(quests),
		OrderID:    pick(orders),
		Qty:        r.Intn(4),
	}
}

func checkInvariants(t *testing.T, step int, st *farm.State) {
	t.Helper()
	if st.Money < 0 || st.XP < 0 {
		t.Fatalf("step %d: money=%d xp=%d", step, st.Money, st.XP)
	}
	if st.Energy < 0 || st.Energy > float64(st.MaxEnergy) {
		t.Fatalf("step %d: energy=%v", step, st.Energy)
	}
	for id, n := range st.Inventory {
		if n < 0 {
			t.Fatalf("step %d: inventory %s=%d", step, id, n)
		}
	}
	for _, d := range []int{st.Tools.HoeDurability, st.Tools.WateringCanDurability} {
		if d < 0 || d > farm.MaxDurability {
			t.Fatalf("step %d: tools=%+v", step, st.Tools)
		}
	}
	for y := range st.Tiles {
		for x := range st.Tiles[y] {
			if st.Tiles[y][x].Crop != nil && st.Tiles[y][x].Building != nil {
				t.Fatalf("step %d: tile %d,%d holds a crop and a building", step, x, y)
			}
		}
	}
	for _, m := range st.Market.Multipliers {
		if m < 0.7 || m > 1.4 {
			t.Fatalf("step %d: multiplier %v", step, m)
		}
	}
}

func TestRandomActionSequences_KeepInvariants(t *testing.T) {
	for seed := int64(1); seed <= 5; seed++ {
		r := rand.New(rand.NewSource(seed))
		e := newTestEngine(t)
		st := e.State()
		st.XP = int64(r.Intn(2000))
		for _, id := range []string{"wheat", "corn", "carrot", "eggs", "milk", "flour"} {
			st.Inventory[id] = r.Intn(8)
		}
		now := t0
		prevQuests := map[string]farm.QuestState{}
		prevStats := st.Stats
		for i := 0; i < 3000; i++ {
			now += int64(r.Intn(20_000))
			e.Step(now)
			before := st.Clone()
			a := randomAction(r, e)
			if err := e.Apply(now, a); err != nil {
				if _, ok := err.(*Reject); !ok {
					t.Fatalf("seed %d step %d: non-rejection error %v", seed, i, err)
				}
				if !reflect.DeepEqual(before, st) {
					t.Fatalf("seed %d step %d: rejected %s (%v) mutated state", seed, i, a.Kind, err)
				}
			}
			checkInvariants(t, i, st)
			for _, q := range st.Quests {
				p := prevQuests[q.ID]
				if q.Progress < p.Progress || (p.Completed && !q.Completed) || (p.RewardClaimed && !q.RewardClaimed) {
					t.Fatalf("seed %d step %d: quest %s regressed %+v -> %+v", seed, i, q.ID, p, q)
				}
				prevQuests[q.ID] = q
			}
			s := st.Stats
			if s.CropsPlanted < prevStats.CropsPlanted || s.CropsHarvested < prevStats.CropsHarvested ||
				s.ProductsCollected < prevStats.ProductsCollected || s.ProductsProcessed < prevStats.ProductsProcessed ||
				s.BuildingsConstructed < prevStats.BuildingsConstructed || s.MoneyEarned < prevStats.MoneyEarned ||
				s.OrdersFulfilled < prevStats.OrdersFulfilled {
				t.Fatalf("seed %d step %d: stats decreased", seed, i)
			}
			prevStats = s
			e.Drain()
		}
	}
}
