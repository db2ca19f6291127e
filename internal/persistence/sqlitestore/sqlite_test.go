package sqlitestore

import (
	"errors"
	"io/fs"
	"path/filepath"
	"testing"
	"time"

	"bigharvest.farm/internal/persistence/journal"
	"bigharvest.farm/internal/sim/catalogs"
	"bigharvest.farm/internal/sim/tuning"
)

func openTemp(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "farm.sqlite"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStore_SaveLoadProfiles(t *testing.T) {
	s := openTemp(t)

	if _, err := s.Load("alice"); !errors.Is(err, fs.ErrNotExist) {
		t.Fatalf("missing profile err=%v, want fs.ErrNotExist", err)
	}
	if err := s.Save("alice", []byte(`{"version":3,"money":1}`)); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := s.Save("alice", []byte(`{"version":3,"money":2}`)); err != nil {
		t.Fatalf("save again: %v", err)
	}
	if err := s.Save("bob", []byte(`{"version":3}`)); err != nil {
		t.Fatalf("save bob: %v", err)
	}
	got, err := s.Load("alice")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if string(got) != `{"version":3,"money":2}` {
		t.Fatalf("load returned %s", got)
	}
	profiles, err := s.Profiles()
	if err != nil {
		t.Fatalf("profiles: %v", err)
	}
	if len(profiles) != 2 || profiles[0] != "alice" || profiles[1] != "bob" {
		t.Fatalf("profiles=%v", profiles)
	}
}

func TestStore_Resets(t *testing.T) {
	s := openTemp(t)
	at := time.UnixMilli(1_700_000_000_000)
	if err := s.RecordReset("alice", "/a/1.json.zst", at); err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := s.RecordReset("alice", "/a/2.json.zst", at.Add(time.Minute)); err != nil {
		t.Fatalf("record: %v", err)
	}
	rows, err := s.Resets("alice")
	if err != nil {
		t.Fatalf("resets: %v", err)
	}
	if len(rows) != 2 || rows[0].ArchivePath != "/a/1.json.zst" || rows[1].ResetAt != at.Add(time.Minute).UnixMilli() {
		t.Fatalf("rows=%+v", rows)
	}
	if rows, _ := s.Resets("bob"); len(rows) != 0 {
		t.Fatalf("bob rows=%+v", rows)
	}
}

func TestStore_ActionIndex(t *testing.T) {
	s := openTemp(t)
	s.RecordAction(journal.Entry{ID: "a", Time: 10, Profile: "alice", Kind: journal.KindAct, Action: "PLANT", OK: true})
	s.RecordAction(journal.Entry{ID: "b", Time: 20, Profile: "alice", Kind: journal.KindAct, Action: "HARVEST", Code: "E_BLOCKED", Message: "crop not ready"})
	s.RecordAction(journal.Entry{ID: "c", Time: 30, Profile: "bob", Kind: journal.KindAct, Action: "PLOW", OK: true})
	s.Flush()

	rows, err := s.Actions("alice", 10)
	if err != nil {
		t.Fatalf("actions: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("rows=%+v", rows)
	}
	if rows[0].ID != "b" || rows[0].OK || rows[0].Code != "E_BLOCKED" {
		t.Fatalf("newest row=%+v", rows[0])
	}
	if rows[1].ID != "a" || !rows[1].OK {
		t.Fatalf("oldest row=%+v", rows[1])
	}
}

func TestStore_UpsertCatalogs(t *testing.T) {
	s := openTemp(t)
	cats, err := catalogs.Default()
	if err != nil {
		t.Fatalf("catalogs: %v", err)
	}
	if err := s.UpsertCatalogs(cats, tuning.Defaults()); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	got, err := s.CatalogDigest("crops")
	if err != nil {
		t.Fatalf("digest: %v", err)
	}
	if got != cats.Crops.Digest {
		t.Fatalf("crops digest=%q want %q", got, cats.Crops.Digest)
	}
	if d, _ := s.CatalogDigest("orders"); d != cats.Orders.Digest {
		t.Fatalf("orders digest=%q want %q", d, cats.Orders.Digest)
	}
	if d, _ := s.CatalogDigest("tuning"); d == "" {
		t.Fatalf("tuning digest missing")
	}
	if d, _ := s.CatalogDigest("nope"); d != "" {
		t.Fatalf("unknown catalog digest=%q", d)
	}
}
