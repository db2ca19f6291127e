package tuning

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestDefault_MatchesShippedYAML(t *testing.T) {
	got, err := Default()
	if err != nil {
		t.Fatalf("load embedded tuning: %v", err)
	}
	if want := Defaults(); !reflect.DeepEqual(got, want) {
		t.Fatalf("tuning.yaml and Defaults() diverged:\n got=%+v\nwant=%+v", got, want)
	}
}

func TestLoad_OverridesAndValidates(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tuning.yaml")
	if err := os.WriteFile(path, []byte("grid_width: 8\ngrid_height: 6\nidle:\n  max_gain: 42\n  min_minutes: 1\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.GridWidth != 8 || got.GridHeight != 6 || got.Idle.MaxGain != 42 {
		t.Fatalf("overrides not applied: %+v", got)
	}
	if got.Starting.Money != 500 {
		t.Fatalf("unset fields should keep defaults, money=%d", got.Starting.Money)
	}

	if err := os.WriteFile(path, []byte("market:\n  interval_ms: 1000\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatalf("expected market interval below the minimum to be rejected")
	}
}
