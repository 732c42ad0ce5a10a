package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func isolateHome(t *testing.T) string {
	t.Helper()
	tmpDir := t.TempDir()
	t.Setenv("HOME", tmpDir)
	for _, key := range []string{
		"KINDRED_API_KEY", "ANTHROPIC_API_KEY", "KINDRED_BASE_URL",
		"KINDRED_MODEL", "KINDRED_EXTRACTION_MODEL", "KINDRED_TELEGRAM_TOKEN",
		"KINDRED_DB_PATH", "KINDRED_BLOB_DIR", "KINDRED_SESSION_TIMEOUT",
		"KINDRED_TRIAL_QUOTA", "KINDRED_LOG_MODE",
	} {
		t.Setenv(key, "")
	}
	return tmpDir
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg == nil {
		t.Fatal("DefaultConfig returned nil")
	}
	if cfg.Character.Name != "Sean" {
		t.Errorf("character = %q", cfg.Character.Name)
	}
	if cfg.Provider.Model != DefaultModel {
		t.Errorf("model = %q, want %q", cfg.Provider.Model, DefaultModel)
	}
	if cfg.Provider.ExtractionModel != DefaultExtractionModel {
		t.Errorf("extraction model = %q, want %q", cfg.Provider.ExtractionModel, DefaultExtractionModel)
	}
	// Model ids must match Anthropic's published format (family before
	// version, date suffix).
	if DefaultExtractionModel != "claude-3-5-haiku-20241022" {
		t.Errorf("extraction model id = %q", DefaultExtractionModel)
	}
	if cfg.Session.Timeout != DefaultSessionTimeout {
		t.Errorf("session timeout = %q", cfg.Session.Timeout)
	}
	if cfg.Trial.Quota != DefaultTrialQuota {
		t.Errorf("trial quota = %d", cfg.Trial.Quota)
	}
	if _, err := time.ParseDuration(cfg.Session.Timeout); err != nil {
		t.Errorf("session timeout not parseable: %v", err)
	}
	if cfg.Data.DBPath == "" || cfg.Data.BlobDir == "" {
		t.Error("data paths should not be empty")
	}
}

func TestLoadConfig_NoFile(t *testing.T) {
	isolateHome(t)

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig error: %v", err)
	}
	if cfg.Provider.Model != DefaultModel {
		t.Errorf("model = %q, want default", cfg.Provider.Model)
	}
	if cfg.Rhythm.OutreachSchedule != DefaultOutreachSchedule {
		t.Errorf("outreach schedule = %q", cfg.Rhythm.OutreachSchedule)
	}
}

func TestLoadConfig_FromFile(t *testing.T) {
	tmpDir := isolateHome(t)

	cfgDir := filepath.Join(tmpDir, ".kindred")
	if err := os.MkdirAll(cfgDir, 0755); err != nil {
		t.Fatalf("mkdir error: %v", err)
	}
	raw := `{
		"character": {"name": "Alex"},
		"provider": {"apiKey": "file-key", "model": "claude-test"},
		"trial": {"quota": 5},
		"session": {"timeout": "30m"}
	}`
	if err := os.WriteFile(filepath.Join(cfgDir, "config.json"), []byte(raw), 0644); err != nil {
		t.Fatalf("write config error: %v", err)
	}

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig error: %v", err)
	}
	if cfg.Character.Name != "Alex" {
		t.Errorf("character = %q", cfg.Character.Name)
	}
	if cfg.Provider.APIKey != "file-key" || cfg.Provider.Model != "claude-test" {
		t.Errorf("provider = %+v", cfg.Provider)
	}
	if cfg.Trial.Quota != 5 {
		t.Errorf("quota = %d", cfg.Trial.Quota)
	}
	if cfg.Session.Timeout != "30m" {
		t.Errorf("timeout = %q", cfg.Session.Timeout)
	}
	// Unspecified fields fall back to defaults.
	if cfg.Provider.ExtractionModel != DefaultExtractionModel {
		t.Errorf("extraction model = %q", cfg.Provider.ExtractionModel)
	}
	if cfg.Rhythm.OutreachBatch != DefaultOutreachBatch {
		t.Errorf("outreach batch = %d", cfg.Rhythm.OutreachBatch)
	}
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	isolateHome(t)
	t.Setenv("KINDRED_API_KEY", "env-key")
	t.Setenv("KINDRED_TELEGRAM_TOKEN", "env-token")
	t.Setenv("KINDRED_TRIAL_QUOTA", "7")
	t.Setenv("KINDRED_SESSION_TIMEOUT", "20m")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig error: %v", err)
	}
	if cfg.Provider.APIKey != "env-key" {
		t.Errorf("api key = %q", cfg.Provider.APIKey)
	}
	if cfg.Telegram.Token != "env-token" {
		t.Errorf("token = %q", cfg.Telegram.Token)
	}
	if cfg.Trial.Quota != 7 {
		t.Errorf("quota = %d", cfg.Trial.Quota)
	}
	if cfg.Session.Timeout != "20m" {
		t.Errorf("timeout = %q", cfg.Session.Timeout)
	}
}

func TestLoadConfig_AnthropicKeyFallback(t *testing.T) {
	isolateHome(t)
	t.Setenv("ANTHROPIC_API_KEY", "anthropic-key")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig error: %v", err)
	}
	if cfg.Provider.APIKey != "anthropic-key" {
		t.Errorf("api key = %q", cfg.Provider.APIKey)
	}

	// The dedicated variable wins over the fallback.
	t.Setenv("KINDRED_API_KEY", "kindred-key")
	cfg, _ = LoadConfig()
	if cfg.Provider.APIKey != "kindred-key" {
		t.Errorf("api key = %q, want kindred-key", cfg.Provider.APIKey)
	}
}

func TestSaveConfigRoundTrip(t *testing.T) {
	isolateHome(t)

	cfg := DefaultConfig()
	cfg.Character.Name = "Alex"
	cfg.Telegram.Token = "tok"
	if err := SaveConfig(cfg); err != nil {
		t.Fatalf("SaveConfig error: %v", err)
	}

	loaded, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig error: %v", err)
	}
	if loaded.Character.Name != "Alex" || loaded.Telegram.Token != "tok" {
		t.Errorf("round trip: %+v", loaded)
	}
}
