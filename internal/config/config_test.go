package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadMissingFileYieldsDefaults(t *testing.T) {
	tmpDir := t.TempDir()

	cfg, err := LoadFromDir(tmpDir)
	if err != nil {
		t.Fatalf("LoadFromDir failed: %v", err)
	}

	if cfg.Database.Dialect != "sqlite" {
		t.Errorf("Dialect = %q, want sqlite", cfg.Database.Dialect)
	}
	if cfg.Cache.TTLSeconds != 300 {
		t.Errorf("TTLSeconds = %d, want 300", cfg.Cache.TTLSeconds)
	}
	if cfg.Log.Level != "info" {
		t.Errorf("Level = %q, want info", cfg.Log.Level)
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "config.yaml")

	content := `
database:
  dialect: postgres
  dsn: postgres://localhost/backlogd
cache:
  ttl_seconds: 60
log:
  level: debug
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Database.Dialect != "postgres" {
		t.Errorf("Dialect = %q, want postgres", cfg.Database.Dialect)
	}
	if cfg.Database.DSN != "postgres://localhost/backlogd" {
		t.Errorf("DSN = %q", cfg.Database.DSN)
	}
	if cfg.CacheTTL() != time.Minute {
		t.Errorf("CacheTTL = %v, want 1m", cfg.CacheTTL())
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("Level = %q, want debug", cfg.Log.Level)
	}
}

func TestLoadRejectsBadDialect(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "config.yaml")

	if err := os.WriteFile(path, []byte("database:\n  dialect: oracle\n"), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	if _, err := Load(path); err == nil {
		t.Error("Load should reject an unknown dialect")
	}
}

func TestSaveRoundTrip(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, Dir, ConfigFileName)

	cfg := Default()
	cfg.Cache.TTLSeconds = 42
	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.Cache.TTLSeconds != 42 {
		t.Errorf("TTLSeconds = %d, want 42", loaded.Cache.TTLSeconds)
	}
}

func TestDatabaseDSNDefault(t *testing.T) {
	cfg := Default()
	if got := cfg.DatabaseDSN(); got != filepath.Join(Dir, "backlogd.db") {
		t.Errorf("DatabaseDSN = %q", got)
	}

	cfg.Database.DSN = "/tmp/custom.db"
	if got := cfg.DatabaseDSN(); got != "/tmp/custom.db" {
		t.Errorf("DatabaseDSN = %q, want /tmp/custom.db", got)
	}
}
