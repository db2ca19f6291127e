package engine

import (
	"reflect"
	"testing"

	"bigharvest.farm/internal/sim/farm"
)

func TestStep_IdempotentAtSameTimestamp(t *testing.T) {
	e := newTestEngine(t)
	now := t0 + 10*60_000
	e.Step(now)
	before := e.State().Clone()
	e.Step(now)
	if !reflect.DeepEqual(before, e.State()) {
		t.Fatalf("second Step at the same timestamp changed state")
	}
}

func TestEnergyRegen(t *testing.T) {
	e := newTestEngine(t)
	st := e.State()
	st.Energy = 0
	e.Step(t0 + 60_000)
	if st.Energy != 6 {
		t.Fatalf("energy after one minute=%v", st.Energy)
	}
	e.Step(t0 + 60*60_000)
	if st.Energy != 100 || st.LastEnergyTimestamp != t0+60*60_000 {
		t.Fatalf("energy=%v ts=%d", st.Energy, st.LastEnergyTimestamp)
	}
	e.Step(t0 + 61*60_000)
	if st.LastEnergyTimestamp != t0+61*60_000 {
		t.Fatalf("timestamp must advance at cap")
	}
}

func TestTimeOfDay(t *testing.T) {
	e := newTestEngine(t)
	st := e.State()
	e.Step(t0 + 150_000)
	if st.TimeOfDay != 0.25 {
		t.Fatalf("timeOfDay=%v", st.TimeOfDay)
	}
	e.Step(t0 + 750_000)
	if st.TimeOfDay < 0.249 || st.TimeOfDay > 0.251 {
		t.Fatalf("timeOfDay should wrap, got %v", st.TimeOfDay)
	}
}

func TestMarketDrift_IntervalAndBounds(t *testing.T) {
	e := newTestEngine(t)
	st := e.State()
	e.Step(t0 + 30_000)
	if st.Market.LastUpdateTimestamp != t0 {
		t.Fatalf("market timestamp moved before the interval elapsed")
	}
	e.Step(t0 + 90_000)
	if st.Market.LastUpdateTimestamp != t0+60_000 {
		t.Fatalf("market timestamp=%d", st.Market.LastUpdateTimestamp)
	}
	now := t0 + 90_000
	for i := 0; i < 10_000; i++ {
		now += 60_000
		e.Step(now)
		for id, m := range st.Market.Multipliers {
			if m < 0.70 || m > 1.40 {
				t.Fatalf("step %d: %s multiplier %v out of range", i, id, m)
			}
		}
	}
	if len(st.Market.Multipliers) != len(e.Catalogs().Items.Tradeable) {
		t.Fatalf("multipliers=%v", st.Market.Multipliers)
	}
}

func TestSeasonRotation(t *testing.T) {
	e := newTestEngine(t)
	st := e.State()
	e.Step(t0 + 179_999)
	if st.Season != "spring" {
		t.Fatalf("season=%q", st.Season)
	}
	e.Step(t0 + 180_000)
	if st.Season != "summer" || st.LastSeasonTimestamp != t0+180_000 {
		t.Fatalf("season=%q ts=%d", st.Season, st.LastSeasonTimestamp)
	}
	e.Step(t0 + 4*180_000 + 5)
	if st.SeasonIndex != 0 || st.Season != "spring" {
		t.Fatalf("season index=%d %q", st.SeasonIndex, st.Season)
	}
}

func TestWeatherRotation_DrawsFromSeasonTable(t *testing.T) {
	e := newTestEngine(t)
	st := e.State()
	now := t0
	for i := 0; i < 500; i++ {
		now += 45_000
		e.Step(now)
		season := e.Catalogs().Season(st.SeasonIndex)
		found := false
		for _, w := range season.WeatherWeights {
			if w.Weather == st.Weather {
				found = true
			}
		}
		if !found && st.LastWeatherTimestamp == now {
			t.Fatalf("weather %q not in %s table", st.Weather, season.ID)
		}
		if st.WeatherIntervalMs < 45_000 || st.WeatherIntervalMs > 90_000 {
			t.Fatalf("weather interval=%d", st.WeatherIntervalMs)
		}
	}
}

func TestReconcileIdle_CappedAndOnce(t *testing.T) {
	e := newTestEngine(t)
	st := e.State()
	gain := e.ReconcileIdle(t0 + 1000*60_000)
	if gain != 500 {
		t.Fatalf("1000 idle minutes gain=%d want cap 500", gain)
	}
	if st.Money != 1000 || st.Stats.MoneyEarned != 500 || st.LastActiveTimestamp != t0+1000*60_000 {
		t.Fatalf("money=%d earned=%d last=%d", st.Money, st.Stats.MoneyEarned, st.LastActiveTimestamp)
	}
	if again := e.ReconcileIdle(t0 + 2000*60_000); again != 0 || st.Money != 1000 {
		t.Fatalf("second reconcile paid %d", again)
	}
}

func TestReconcileIdle_LinearBelowCap(t *testing.T) {
	e := newTestEngine(t)
	st := e.State()
	st.XP = 100
	if err := e.Build(t0, 0, 0, "chicken_coop"); err != nil {
		t.Fatalf("build: %v", err)
	}
	st.Tiles[0][1] = farm.Tile{Building: &farm.BuildingInstance{BuildingID: "chicken_coop", StartedAt: t0}}
	money := st.Money
	// two buildings at level 2: 2*2 + 2*1 per minute.
	if gain := e.ReconcileIdle(t0 + 10*60_000 + 30_000); gain != 63 {
		t.Fatalf("gain=%d", gain)
	}
	if st.Money != money+63 {
		t.Fatalf("money=%d", st.Money)
	}
}

func TestReconcileIdle_UnderAMinute(t *testing.T) {
	e := newTestEngine(t)
	if gain := e.ReconcileIdle(t0 + 59_000); gain != 0 {
		t.Fatalf("gain=%d", gain)
	}
	if e.State().Money != 500 {
		t.Fatalf("money changed")
	}
}
