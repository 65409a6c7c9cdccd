package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_FirstRunWritesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Listen != defaultListen {
		t.Errorf("listen: got %q", cfg.Listen)
	}
	if !cfg.Calendar.EnableDragDrop || !cfg.Calendar.EnableResize {
		t.Error("interaction flags should default to enabled")
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("config file not created: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Errorf("perm: got %o, want 600", perm)
	}
}

func TestLoad_PartialFileNormalized(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := []byte(`
week_start: fortnight
calendar:
  enable_resize: false
  drag_threshold_px: 3
  min_event_minutes: 30
  max_event_minutes: 20
  default_view: timeline
ics:
  - id: lab
    url: https://example.com/lab.ics
`)
	if err := os.WriteFile(path, body, 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.WeekStart != "monday" {
		t.Errorf("week_start: got %q", cfg.WeekStart)
	}
	if cfg.Calendar.EnableResize {
		t.Error("enable_resize from file should win")
	}
	if !cfg.Calendar.EnableDragDrop {
		t.Error("enable_drag_drop missing from file should stay enabled")
	}
	if cfg.Calendar.MaxEventMinutes != 30 {
		t.Errorf("max clamped to min: got %d", cfg.Calendar.MaxEventMinutes)
	}
	if cfg.Calendar.DefaultView != "month" {
		t.Errorf("default_view: got %q", cfg.Calendar.DefaultView)
	}
	if len(cfg.ICS) != 1 || cfg.ICS[0].ID != "lab" {
		t.Errorf("ics: got %+v", cfg.ICS)
	}
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("SESSIONCAL_LISTEN", "0.0.0.0:9090")
	t.Setenv("SESSIONCAL_WEEK_START", "sunday")
	t.Setenv("SESSIONCAL_BASIC_AUTH_USERNAME", "admin")
	t.Setenv("SESSIONCAL_BASIC_AUTH_PASSWORD", "secret")

	cfg := DefaultConfig()
	if err := cfg.ApplyEnv(); err != nil {
		t.Fatalf("ApplyEnv: %v", err)
	}
	if cfg.Listen != "0.0.0.0:9090" {
		t.Errorf("listen: got %q", cfg.Listen)
	}
	if cfg.WeekStart != "sunday" {
		t.Errorf("week_start: got %q", cfg.WeekStart)
	}
	if cfg.BasicAuth == nil || cfg.BasicAuth.Username != "admin" {
		t.Errorf("basic auth: got %+v", cfg.BasicAuth)
	}
}

func TestSave_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	cfg := DefaultConfig()
	cfg.Timezone = "Europe/Berlin"
	cfg.Calendar.SnapMinutes = 5
	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.Timezone != "Europe/Berlin" || got.Calendar.SnapMinutes != 5 {
		t.Fatalf("round trip lost values: %+v", got)
	}
}

func TestLocationAndFirstWeekday(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Timezone = "Not/AZone"
	if cfg.Location() != time.Local {
		t.Error("unknown zone should fall back to local")
	}
	cfg.Timezone = "UTC"
	if cfg.Location() != time.UTC {
		t.Errorf("UTC: got %v", cfg.Location())
	}
	if cfg.FirstWeekday() != time.Monday {
		t.Error("default week should start on Monday")
	}
	cfg.WeekStart = "sunday"
	if cfg.FirstWeekday() != time.Sunday {
		t.Error("sunday not honored")
	}
}
