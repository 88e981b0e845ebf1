package config_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/spf13/afero"

	"reelhouse/config"
	"reelhouse/models"
)

func TestLoadCreatesDefaults(t *testing.T) {
	fsys := afero.NewMemMapFs()
	mgr := config.NewManagerWithFs(fsys, "data/settings.json")

	settings, err := mgr.Load()
	if err != nil {
		t.Fatalf("load returned error: %v", err)
	}
	if settings.Server.Port != 3000 {
		t.Fatalf("expected default port 3000, got %d", settings.Server.Port)
	}
	if settings.Auth.SeedUsername != models.DefaultSeedUsername {
		t.Fatalf("expected default seed username, got %q", settings.Auth.SeedUsername)
	}

	exists, err := afero.Exists(fsys, "data/settings.json")
	if err != nil || !exists {
		t.Fatalf("expected settings file to be written, exists=%v err=%v", exists, err)
	}
}

func TestLoadKeepsDefaultsForMissingFields(t *testing.T) {
	fsys := afero.NewMemMapFs()
	raw, _ := json.Marshal(map[string]any{
		"server": map[string]any{"port": 8080},
		"auth":   map[string]any{"sessionTtlHours": 2},
	})
	if err := afero.WriteFile(fsys, "settings.json", raw, 0o644); err != nil {
		t.Fatalf("write settings: %v", err)
	}

	settings, err := config.NewManagerWithFs(fsys, "settings.json").Load()
	if err != nil {
		t.Fatalf("load returned error: %v", err)
	}
	if settings.Server.Port != 8080 {
		t.Fatalf("expected port 8080, got %d", settings.Server.Port)
	}
	if settings.Database.Path == "" {
		t.Fatal("expected default database path to survive partial file")
	}
	if got := settings.Auth.SessionTTL(); got != 2*time.Hour {
		t.Fatalf("expected 2h ttl, got %s", got)
	}
	if settings.Auth.SeedPassword != models.DefaultSeedPassword {
		t.Fatalf("expected default seed password, got %q", settings.Auth.SeedPassword)
	}
}

func TestSaveRoundTrip(t *testing.T) {
	fsys := afero.NewMemMapFs()
	mgr := config.NewManagerWithFs(fsys, "cfg/settings.json")

	settings := config.DefaultSettings()
	settings.Metadata.TMDBAPIKey = "abc"
	if err := mgr.Save(settings); err != nil {
		t.Fatalf("save returned error: %v", err)
	}

	loaded, err := mgr.Load()
	if err != nil {
		t.Fatalf("load returned error: %v", err)
	}
	if loaded.Metadata.TMDBAPIKey != "abc" {
		t.Fatalf("expected api key to persist, got %q", loaded.Metadata.TMDBAPIKey)
	}
	if exists, _ := afero.Exists(fsys, "cfg/settings.json.tmp"); exists {
		t.Fatal("temp file should be renamed away")
	}
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"TMDB_API_KEY":        " key-from-env ",
		"PORT":                "9090",
		"DATABASE_PATH":       "/tmp/x.db",
		"REELHOUSE_LOG_LEVEL": "debug",
	}
	settings := config.DefaultSettings()
	settings.ApplyEnv(func(k string) string { return env[k] })

	if settings.Metadata.TMDBAPIKey != "key-from-env" {
		t.Fatalf("unexpected api key %q", settings.Metadata.TMDBAPIKey)
	}
	if settings.Server.Port != 9090 {
		t.Fatalf("unexpected port %d", settings.Server.Port)
	}
	if settings.Database.Path != "/tmp/x.db" {
		t.Fatalf("unexpected database path %q", settings.Database.Path)
	}
	if settings.Log.Level != "debug" {
		t.Fatalf("unexpected log level %q", settings.Log.Level)
	}

	settings.ApplyEnv(func(string) string { return "" })
	if settings.Server.Port != 9090 {
		t.Fatal("empty env must not reset values")
	}
}

func TestSweepIntervalDisabled(t *testing.T) {
	auth := config.AuthSettings{SessionSweepMinutes: 0}
	if auth.SweepInterval() != 0 {
		t.Fatalf("expected zero interval, got %s", auth.SweepInterval())
	}
	if auth.SessionTTL() != 7*24*time.Hour {
		t.Fatalf("expected fallback ttl, got %s", auth.SessionTTL())
	}
}
