package session

import (
	"context"
	"encoding/json"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"bigharvest.farm/internal/persistence/filestore"
	"bigharvest.farm/internal/persistence/gateway"
	"bigharvest.farm/internal/persistence/journal"
	"bigharvest.farm/internal/protocol"
	"bigharvest.farm/internal/sim/catalogs"
	"bigharvest.farm/internal/sim/farm"
	"bigharvest.farm/internal/sim/tuning"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type harness struct {
	dir   string
	gw    *gateway.Gateway
	tune  tuning.Tuning
	clock *fakeClock
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	cats, err := catalogs.Default()
	if err != nil {
		t.Fatalf("catalogs: %v", err)
	}
	tune := tuning.Defaults()
	tune.TickIntervalMs = 10
	tune.SaveDebounceMs = int64(time.Hour / time.Millisecond)
	dir := t.TempDir()
	return &harness{
		dir:   dir,
		gw:    gateway.New(filestore.New(filepath.Join(dir, "saves")), farm.NewShaper(cats, tune), "", nil),
		tune:  tune,
		clock: &fakeClock{t: time.UnixMilli(1_700_000_000_000)},
	}
}

func (h *harness) open(t *testing.T, profile string) (*Session, *journal.Journal) {
	t.Helper()
	j := journal.Open(h.dir, profile)
	s, err := Open(Config{
		Profile: profile,
		Gateway: h.gw,
		Tuning:  h.tune,
		Journal: j,
		Seed:    7,
		Now:     h.clock.Now,
	})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	return s, j
}

func act(action string, x, y int, crop string) protocol.ActMsg {
	return protocol.ActMsg{Type: protocol.TypeAct, ProtocolVersion: protocol.Version, Action: action, X: x, Y: y, CropID: crop}
}

func TestSession_PlantHarvestPersistsOnClose(t *testing.T) {
	h := newHarness(t)
	s, j := h.open(t, "alice")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = s.Run(ctx) }()

	for _, a := range []protocol.ActMsg{act(protocol.ActPlow, 0, 0, ""), act(protocol.ActPlant, 0, 0, "wheat")} {
		res, err := s.Submit(ctx, a)
		if err != nil {
			t.Fatalf("submit %s: %v", a.Action, err)
		}
		if !res.OK {
			t.Fatalf("%s rejected: %s %s", a.Action, res.Code, res.Message)
		}
	}
	res, err := s.Submit(ctx, act(protocol.ActHarvest, 0, 0, ""))
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if res.OK || res.Code != protocol.ErrBlocked {
		t.Fatalf("early harvest: ok=%v code=%s", res.OK, res.Code)
	}

	h.clock.Advance(10 * time.Minute)
	res, err = s.Submit(ctx, act(protocol.ActHarvest, 0, 0, ""))
	if err != nil || !res.OK {
		t.Fatalf("harvest: res=%+v err=%v", res, err)
	}
	if len(res.Events) == 0 {
		t.Fatalf("harvest should report events")
	}

	snap, err := s.Snapshot(ctx)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if snap.Money != 515 || snap.Inventory["wheat"] < 1 {
		t.Fatalf("money=%d wheat=%d", snap.Money, snap.Inventory["wheat"])
	}

	// The debounce is an hour long, so only the flush on close can have saved.
	s.Close()
	_ = j.Close()
	got, err := h.gw.Load("alice")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.Money != 515 || got.Stats.CropsHarvested != 1 || got.Tiles[0][0].Crop != nil {
		t.Fatalf("close did not flush: money=%d harvested=%d", got.Money, got.Stats.CropsHarvested)
	}

	entries, err := journal.ReadDir(journal.Dir(h.dir, "alice"))
	if err != nil {
		t.Fatalf("journal: %v", err)
	}
	var acts, sessions int
	for _, e := range entries {
		if e.SessionID != s.ID() {
			t.Fatalf("entry from another session: %+v", e)
		}
		switch e.Kind {
		case journal.KindAct:
			acts++
		case journal.KindSession:
			sessions++
		}
	}
	if acts != 4 || sessions != 2 {
		t.Fatalf("journal acts=%d sessions=%d", acts, sessions)
	}
}

func TestSession_IdleGainOnOpen(t *testing.T) {
	h := newHarness(t)
	st, _ := h.gw.Load("bob")
	st.LastActiveTimestamp = h.clock.Now().Add(-10 * time.Minute).UnixMilli()
	if err := h.gw.Save("bob", st); err != nil {
		t.Fatalf("save: %v", err)
	}

	s, j := h.open(t, "bob")
	defer j.Close()
	w := s.Welcome()
	if w.IdleGain != 10 {
		t.Fatalf("idle gain=%d want 10", w.IdleGain)
	}
	if w.SessionID == "" || w.Profile != "bob" || w.Catalogs.CropsDigest == "" {
		t.Fatalf("incomplete welcome: %+v", w)
	}
	var doc map[string]any
	if err := json.Unmarshal(w.State, &doc); err != nil {
		t.Fatalf("welcome state: %v", err)
	}
	if doc["money"].(float64) != float64(h.tune.Starting.Money+10) {
		t.Fatalf("welcome money=%v", doc["money"])
	}

	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = s.Run(ctx) }()
	cancel()
	s.Close()

	// A second open over the same window must not pay again.
	s2, j2 := h.open(t, "bob")
	defer j2.Close()
	if s2.Welcome().IdleGain != 0 {
		t.Fatalf("idle gain paid twice: %d", s2.Welcome().IdleGain)
	}
}

func TestSession_RateLimit(t *testing.T) {
	h := newHarness(t)
	h.tune.RateLimits.ActionsPerSecond = 0.001
	h.tune.RateLimits.ActionsBurst = 2
	s, j := h.open(t, "carol")
	defer j.Close()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = s.Run(ctx) }()
	defer s.Close()

	var codes []string
	for i := 0; i < 3; i++ {
		res, err := s.Submit(ctx, act(protocol.ActPlow, i, 0, ""))
		if err != nil {
			t.Fatalf("submit: %v", err)
		}
		codes = append(codes, res.Code)
	}
	if codes[0] != "" || codes[1] != "" || codes[2] != protocol.ErrRateLimit {
		t.Fatalf("codes=%v", codes)
	}
}

func TestSession_TickerPushesState(t *testing.T) {
	h := newHarness(t)
	s, j := h.open(t, "dave")
	defer j.Close()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = s.Run(ctx) }()
	defer s.Close()

	timeout := time.After(2 * time.Second)
	for {
		select {
		case b := <-s.Out():
			base, err := protocol.DecodeBase(b)
			if err != nil {
				t.Fatalf("decode: %v", err)
			}
			if base.Type == protocol.TypeState {
				var m protocol.StateMsg
				if err := json.Unmarshal(b, &m); err != nil {
					t.Fatalf("state: %v", err)
				}
				if m.Level.Level != 1 || len(m.State) == 0 {
					t.Fatalf("unexpected state msg: %+v", m)
				}
				return
			}
		case <-timeout:
			t.Fatalf("no STATE pushed")
		}
	}
}

func TestSession_SubmitAfterClose(t *testing.T) {
	h := newHarness(t)
	s, j := h.open(t, "erin")
	defer j.Close()
	go func() { _ = s.Run(context.Background()) }()
	s.Close()
	if _, err := s.Submit(context.Background(), act(protocol.ActPlow, 0, 0, "")); err != ErrClosed {
		t.Fatalf("err=%v want ErrClosed", err)
	}
}

func TestSession_ResetReplacesLiveState(t *testing.T) {
	h := newHarness(t)
	s, j := h.open(t, "p1")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = s.Run(ctx) }()

	for _, a := range []protocol.ActMsg{act(protocol.ActPlow, 1, 1, ""), act(protocol.ActPlant, 1, 1, "wheat")} {
		if res, err := s.Submit(ctx, a); err != nil || !res.OK {
			t.Fatalf("%s: res=%+v err=%v", a.Action, res, err)
		}
	}

	st, _, err := s.Reset(ctx)
	if err != nil {
		t.Fatalf("reset: %v", err)
	}
	if st.Money != 500 || st.Stats.CropsPlanted != 0 || st.Tiles[1][1].Crop != nil {
		t.Fatalf("reset state: money=%d planted=%d", st.Money, st.Stats.CropsPlanted)
	}
	snap, err := s.Snapshot(ctx)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if snap.Money != 500 || snap.Tiles[1][1].Plowed {
		t.Fatalf("session kept the old farm: money=%d", snap.Money)
	}

	if res, err := s.Submit(ctx, act(protocol.ActPlow, 4, 4, "")); err != nil || !res.OK {
		t.Fatalf("plow after reset: res=%+v err=%v", res, err)
	}
	s.Close()
	_ = j.Close()

	got, err := h.gw.Load("p1")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.Money != 500 || got.Stats.CropsPlanted != 0 || got.Tiles[1][1].Crop != nil || !got.Tiles[4][4].Plowed {
		t.Fatalf("stored after close: money=%d planted=%d", got.Money, got.Stats.CropsPlanted)
	}

	entries, err := journal.ReadDir(journal.Dir(h.dir, "p1"))
	if err != nil {
		t.Fatalf("journal: %v", err)
	}
	var resets int
	for _, e := range entries {
		if e.Kind == journal.KindReset {
			resets++
			if e.SessionID != s.ID() {
				t.Fatalf("reset journaled outside the session: %+v", e)
			}
		}
	}
	if resets != 1 {
		t.Fatalf("reset entries=%d", resets)
	}
}

func TestSession_ResetAfterClose(t *testing.T) {
	h := newHarness(t)
	s, j := h.open(t, "p2")
	defer j.Close()
	go func() { _ = s.Run(context.Background()) }()
	s.Close()
	if _, _, err := s.Reset(context.Background()); err != ErrClosed {
		t.Fatalf("err=%v want ErrClosed", err)
	}
}

func TestRegistry_ReserveAttachRelease(t *testing.T) {
	h := newHarness(t)
	r := NewRegistry()
	if !r.Reserve("p3") || r.Reserve("p3") {
		t.Fatalf("second reserve must fail")
	}
	if r.Live("p3") != nil {
		t.Fatalf("reserved profile has no live session")
	}
	s, j := h.open(t, "p3")
	defer j.Close()
	r.Attach(s)
	if r.Live("p3") != s || r.Reserve("p3") {
		t.Fatalf("attached session not visible")
	}
	r.Release("p3")
	if r.Live("p3") != nil || !r.Reserve("p3") {
		t.Fatalf("release did not free the profile")
	}
}
