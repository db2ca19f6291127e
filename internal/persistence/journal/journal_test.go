package journal

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"bigharvest.farm/internal/protocol"
)

func TestJournal_WriteAndReadBack(t *testing.T) {
	data := t.TempDir()
	j := Open(data, "alice")
	if err := j.Write(Entry{Kind: KindSession, SessionID: "s1"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := j.Write(Entry{Kind: KindAct, Action: "PLANT", OK: true, Events: []protocol.Event{{"type": "PLANTED"}}}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := j.Write(Entry{Kind: KindAct, Action: "HARVEST", Code: protocol.ErrBlocked, Message: "crop not ready"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := j.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	got, err := ReadDir(Dir(data, "alice"))
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("entries=%d want 3", len(got))
	}
	for _, e := range got {
		if e.ID == "" || e.Time == 0 || e.Profile != "alice" {
			t.Fatalf("entry not filled in: %+v", e)
		}
	}
	if got[1].Action != "PLANT" || !got[1].OK || len(got[1].Events) != 1 {
		t.Fatalf("unexpected act entry: %+v", got[1])
	}
	if got[2].Code != protocol.ErrBlocked || got[2].OK {
		t.Fatalf("unexpected rejection entry: %+v", got[2])
	}
	if got[0].ID == got[1].ID {
		t.Fatalf("entry ids must be unique")
	}
}

func TestJournal_OneFilePerEntryHour(t *testing.T) {
	data := t.TempDir()
	j := Open(data, "alice")
	at := time.Date(2026, 3, 1, 10, 59, 0, 0, time.UTC)
	for i, e := range []Entry{
		{ID: "a", Time: at.UnixMilli(), Kind: KindAct},
		{ID: "b", Time: at.Add(2 * time.Minute).UnixMilli(), Kind: KindAct},
		{ID: "c", Time: at.Add(3 * time.Minute).UnixMilli(), Kind: KindEvent},
	} {
		if err := j.Write(e); err != nil {
			t.Fatalf("write %d: %v", i, err)
		}
	}

	// Entries written so far are readable before Close.
	got, err := ReadDir(Dir(data, "alice"))
	if err != nil || len(got) != 3 {
		t.Fatalf("open journal read: entries=%d err=%v", len(got), err)
	}
	if err := j.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	dir := Dir(data, "alice")
	for _, name := range []string{"journal-2026-03-01-10.jsonl.zst", "journal-2026-03-01-11.jsonl.zst"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Fatalf("missing %s: %v", name, err)
		}
	}
	got, err = ReadDir(dir)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(got) != 3 || got[0].ID != "a" || got[1].ID != "b" || got[2].ID != "c" {
		t.Fatalf("unexpected order: %+v", got)
	}

	// Reopening appends a second frame to the same hour's file.
	j = Open(data, "alice")
	if err := j.Write(Entry{ID: "d", Time: at.Add(5 * time.Minute).UnixMilli(), Kind: KindSession}); err != nil {
		t.Fatalf("write: %v", err)
	}
	_ = j.Close()
	got, err = ReadDir(dir)
	if err != nil || len(got) != 4 || got[3].ID != "d" {
		t.Fatalf("after reopen: %+v err=%v", got, err)
	}
}

func TestJournal_FillsTimeFromClock(t *testing.T) {
	data := t.TempDir()
	j := Open(data, "bob")
	j.now = func() time.Time { return time.Date(2026, 7, 4, 8, 30, 0, 0, time.UTC) }
	if err := j.Write(Entry{Kind: KindReset, OK: true}); err != nil {
		t.Fatalf("write: %v", err)
	}
	_ = j.Close()
	if _, err := os.Stat(filepath.Join(Dir(data, "bob"), "journal-2026-07-04-08.jsonl.zst")); err != nil {
		t.Fatalf("entry not filed under the clock's hour: %v", err)
	}
}

func TestReadDir_Empty(t *testing.T) {
	got, err := ReadDir(filepath.Join(t.TempDir(), "nope"))
	if err != nil || len(got) != 0 {
		t.Fatalf("got=%v err=%v", got, err)
	}
}

func TestNilJournal(t *testing.T) {
	var j *Journal
	if err := j.Write(Entry{Kind: KindAct}); err != nil {
		t.Fatalf("nil journal write: %v", err)
	}
	if err := j.Close(); err != nil {
		t.Fatalf("nil journal close: %v", err)
	}
}
