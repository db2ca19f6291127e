package main

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fatih/color"

	"bigharvest.farm/internal/persistence/filestore"
	"bigharvest.farm/internal/persistence/journal"
)

func run(t *testing.T, args ...string) string {
	t.Helper()
	color.NoColor = true
	cmd := newRootCmd()
	var buf bytes.Buffer
	cmd.SetOut(&buf)
	cmd.SetErr(&buf)
	cmd.SetArgs(args)
	if err := cmd.Execute(); err != nil {
		t.Fatalf("farmadmin %v: %v\n%s", args, err, buf.String())
	}
	return buf.String()
}

func TestCatalog(t *testing.T) {
	out := run(t, "catalog", "--configs", t.TempDir())
	for _, want := range []string{"wheat", "chicken_coop", "crops", "bakery_wheat", "orders"} {
		if !strings.Contains(out, want) {
			t.Fatalf("catalog output missing %q:\n%s", want, out)
		}
	}
}

func TestProfilesAndShow(t *testing.T) {
	data := t.TempDir()
	store := filestore.New(filepath.Join(data, "saves"))
	if err := store.Save("alice", []byte(`{"money":4321,"inventory":{"wheat":2}}`)); err != nil {
		t.Fatalf("save: %v", err)
	}

	out := run(t, "profiles", "--data", data, "--configs", t.TempDir(), "--db", "")
	if !strings.Contains(out, "alice") || !strings.Contains(out, "4321") {
		t.Fatalf("profiles output:\n%s", out)
	}

	out = run(t, "show", "alice", "--data", data, "--configs", t.TempDir(), "--db", "")
	for _, want := range []string{"4321", "wheat", "spring", "market_stall"} {
		if !strings.Contains(out, want) {
			t.Fatalf("show output missing %q:\n%s", want, out)
		}
	}
}

func TestJournal(t *testing.T) {
	data := t.TempDir()
	j := journal.Open(data, "bob")
	_ = j.Write(journal.Entry{Kind: journal.KindAct, Action: "PLOW", OK: true})
	_ = j.Write(journal.Entry{Kind: journal.KindAct, Action: "HARVEST", Code: "E_BLOCKED", Message: "not ready yet"})
	_ = j.Close()

	out := run(t, "journal", "bob", "--data", data)
	for _, want := range []string{"PLOW", "HARVEST", "E_BLOCKED", "not ready yet"} {
		if !strings.Contains(out, want) {
			t.Fatalf("journal output missing %q:\n%s", want, out)
		}
	}
}
