package config_test

import (
	"testing"
	"time"

	"github.com/chorale-player/chorale-backend/internal/config"
)

func TestLoadDefaults(t *testing.T) {
	cfg := config.Load()

	if cfg.Port != 3616 {
		t.Errorf("Expected default port 3616, got %d", cfg.Port)
	}
	if cfg.MetadataWorkers != 4 {
		t.Errorf("Expected 4 metadata workers, got %d", cfg.MetadataWorkers)
	}
	if cfg.CommandTimeout != 5*time.Second {
		t.Errorf("Expected 5s command timeout, got %v", cfg.CommandTimeout)
	}
	if cfg.DebounceWindow >= cfg.DebounceMaxWindow {
		t.Errorf("Debounce window %v should be below max window %v", cfg.DebounceWindow, cfg.DebounceMaxWindow)
	}
	if len(cfg.SoftOptionErrors) == 0 {
		t.Error("Expected a default soft option error allowlist")
	}
	if cfg.MPVBinary == "" {
		t.Error("Expected a default mpv binary name")
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("CHORALE_PORT", "9999")
	t.Setenv("CHORALE_METADATA_WORKERS", "2")
	t.Setenv("CHORALE_LYRICS_FETCH", "false")
	t.Setenv("CHORALE_SOFT_OPTION_ERRORS", "no such property, bad option")

	cfg := config.Load()

	if cfg.Port != 9999 {
		t.Errorf("Expected port 9999, got %d", cfg.Port)
	}
	if cfg.MetadataWorkers != 2 {
		t.Errorf("Expected 2 metadata workers, got %d", cfg.MetadataWorkers)
	}
	if cfg.LyricsFetch {
		t.Error("Expected lyrics fetch disabled")
	}
	if len(cfg.SoftOptionErrors) != 2 || cfg.SoftOptionErrors[0] != "no such property" {
		t.Errorf("Unexpected soft option errors: %v", cfg.SoftOptionErrors)
	}
}

func TestLoadInvalidIntFallsBack(t *testing.T) {
	t.Setenv("CHORALE_PORT", "not-a-number")

	cfg := config.Load()

	if cfg.Port != 3616 {
		t.Errorf("Expected fallback port 3616, got %d", cfg.Port)
	}
}

func TestDerivedPaths(t *testing.T) {
	t.Setenv("CHORALE_DATA_DIR", "/tmp/chorale-test")

	cfg := config.Load()

	if cfg.SessionPath() != "/tmp/chorale-test/session.json" {
		t.Errorf("Unexpected session path: %s", cfg.SessionPath())
	}
	if cfg.CachePath() != "/tmp/chorale-test/cache.db" {
		t.Errorf("Unexpected cache path: %s", cfg.CachePath())
	}
}
