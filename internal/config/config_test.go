package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func isolate(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(home, "xdg"))
	t.Setenv("HOME", home)
	return t.TempDir()
}

func writeProjectConfig(t *testing.T, root, body string) {
	t.Helper()
	dir := filepath.Join(root, UltraDir)
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, ConfigFile), []byte(body), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func TestLoadDefaultsWhenNoFiles(t *testing.T) {
	root := isolate(t)

	cfg, err := Load(root)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Memory.MergeWindowMinutes != 30 {
		t.Errorf("expected merge window 30, got %d", cfg.Memory.MergeWindowMinutes)
	}
	if cfg.Gate.ReviewMaxAge != 2*time.Hour {
		t.Errorf("expected review max age 2h, got %v", cfg.Gate.ReviewMaxAge)
	}
	if cfg.MergeWindow() != 30*time.Minute {
		t.Errorf("expected 30m merge window, got %v", cfg.MergeWindow())
	}
	if len(cfg.Gate.TrunkBranches) != 2 {
		t.Errorf("expected main and master as trunk, got %v", cfg.Gate.TrunkBranches)
	}
}

func TestLoadProjectOverridesDefaults(t *testing.T) {
	root := isolate(t)
	writeProjectConfig(t, root, `
memory:
  merge_window_minutes: 45
gate:
  review_grace: 5m
  trunk_branches: [trunk]
  ignore: ["docs/**"]
`)

	cfg, err := Load(root)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Memory.MergeWindowMinutes != 45 {
		t.Errorf("expected 45, got %d", cfg.Memory.MergeWindowMinutes)
	}
	if cfg.Memory.RetentionDays != 90 {
		t.Errorf("untouched field should keep default, got %d", cfg.Memory.RetentionDays)
	}
	if cfg.Gate.ReviewGrace != 5*time.Minute {
		t.Errorf("expected 5m grace, got %v", cfg.Gate.ReviewGrace)
	}
	if len(cfg.Gate.TrunkBranches) != 1 || cfg.Gate.TrunkBranches[0] != "trunk" {
		t.Errorf("unexpected trunk branches %v", cfg.Gate.TrunkBranches)
	}
	if len(cfg.Gate.Ignore) != 1 {
		t.Errorf("expected one ignore pattern, got %v", cfg.Gate.Ignore)
	}
}

func TestLoadEnvWins(t *testing.T) {
	root := isolate(t)
	writeProjectConfig(t, root, "memory:\n  retention_days: 10\n")
	t.Setenv("ULTRA_RETENTION_DAYS", "7")
	t.Setenv("ULTRA_SUMMARIZE_DELAY", "0s")

	cfg, err := Load(root)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Memory.RetentionDays != 7 {
		t.Errorf("expected env to win with 7, got %d", cfg.Memory.RetentionDays)
	}
	if cfg.Summarize.Delay != 0 {
		t.Errorf("expected zero delay, got %v", cfg.Summarize.Delay)
	}
}

func TestLoadMalformed(t *testing.T) {
	root := isolate(t)
	writeProjectConfig(t, root, "memory: [not, a, map")

	_, err := Load(root)
	var perr *ParseError
	if !errors.As(err, &perr) {
		t.Fatalf("expected ParseError, got %v", err)
	}
	if perr.Path != ProjectPath(root) {
		t.Errorf("expected path %s, got %s", ProjectPath(root), perr.Path)
	}
}

func TestLoadRejectsHeadLargerThanBudget(t *testing.T) {
	root := isolate(t)
	writeProjectConfig(t, root, "summarize:\n  budget: 100\n  head: 200\n")

	if _, err := Load(root); err == nil {
		t.Fatal("expected validation error")
	}
}

func TestLoadRejectsBudgetWithoutRoomForMarker(t *testing.T) {
	root := isolate(t)
	writeProjectConfig(t, root, "summarize:\n  budget: 1000\n  head: 980\n")

	if _, err := Load(root); err == nil {
		t.Fatal("expected validation error")
	}
}

func TestDefaultGitTimeoutIsShort(t *testing.T) {
	if got := Defaults().Gate.GitTimeout; got <= 0 || got >= 10*time.Second {
		t.Errorf("gate git timeout %v should be a few seconds", got)
	}
}
