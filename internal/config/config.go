package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

const (
	DefaultModel           = "claude-sonnet-4-20250514"
	DefaultExtractionModel = "claude-3-5-haiku-20241022"
	DefaultMaxReplyTokens  = 500
	DefaultWelcomeTokens   = 300
	DefaultOutreachTokens  = 200

	DefaultSessionTimeout    = "45m"
	DefaultRecoveryQuiet     = "15m"
	DefaultExtractionMinimum = 4
	DefaultTrialQuota        = 25
	DefaultHistoryWindow     = 20

	DefaultOutreachIdleMin  = "24h"
	DefaultOutreachIdleMax  = "48h"
	DefaultOutreachBatch    = 10
	DefaultRecoveryBatch    = 5
	DefaultPauseThreshold   = "336h" // 14 days
	DefaultRetentionWindow  = "720h" // 30 days
	DefaultOutreachSchedule = "0 0 * * * *"
	DefaultCleanupSchedule  = "0 30 4 * * *"
	DefaultRecoverySchedule = "0 */10 * * * *"
)

type Config struct {
	Character CharacterConfig `json:"character"`
	Provider  ProviderConfig  `json:"provider"`
	Telegram  TelegramConfig  `json:"telegram"`
	Session   SessionConfig   `json:"session"`
	Trial     TrialConfig     `json:"trial"`
	Rhythm    RhythmConfig    `json:"rhythm"`
	Data      DataConfig      `json:"data"`
	LogMode   string          `json:"logMode,omitempty"`
}

type CharacterConfig struct {
	Name     string `json:"name"`
	Timezone string `json:"timezone,omitempty"`
}

type ProviderConfig struct {
	APIKey          string `json:"apiKey"`
	BaseURL         string `json:"baseUrl,omitempty"`
	Model           string `json:"model,omitempty"`
	ExtractionModel string `json:"extractionModel,omitempty"`
}

type TelegramConfig struct {
	Token string `json:"token"`
	Proxy string `json:"proxy,omitempty"`
}

type SessionConfig struct {
	Timeout           string `json:"timeout,omitempty"`
	ExtractionMinimum int    `json:"extractionMinimum,omitempty"`
	RecoveryQuiet     string `json:"recoveryQuiet,omitempty"`
	HistoryWindow     int    `json:"historyWindow,omitempty"`
}

type TrialConfig struct {
	Quota int `json:"quota,omitempty"`
}

type RhythmConfig struct {
	OutreachIdleMin  string `json:"outreachIdleMin,omitempty"`
	OutreachIdleMax  string `json:"outreachIdleMax,omitempty"`
	OutreachBatch    int    `json:"outreachBatch,omitempty"`
	RecoveryBatch    int    `json:"recoveryBatch,omitempty"`
	PauseThreshold   string `json:"pauseThreshold,omitempty"`
	RetentionWindow  string `json:"retentionWindow,omitempty"`
	OutreachSchedule string `json:"outreachSchedule,omitempty"`
	CleanupSchedule  string `json:"cleanupSchedule,omitempty"`
	RecoverySchedule string `json:"recoverySchedule,omitempty"`
}

type DataConfig struct {
	DBPath  string `json:"dbPath,omitempty"`
	BlobDir string `json:"blobDir,omitempty"`
}

func DefaultConfig() *Config {
	return &Config{
		Character: CharacterConfig{
			Name:     "Sean",
			Timezone: "America/New_York",
		},
		Provider: ProviderConfig{
			Model:           DefaultModel,
			ExtractionModel: DefaultExtractionModel,
		},
		Session: SessionConfig{
			Timeout:           DefaultSessionTimeout,
			ExtractionMinimum: DefaultExtractionMinimum,
			RecoveryQuiet:     DefaultRecoveryQuiet,
			HistoryWindow:     DefaultHistoryWindow,
		},
		Trial: TrialConfig{
			Quota: DefaultTrialQuota,
		},
		Rhythm: RhythmConfig{
			OutreachIdleMin:  DefaultOutreachIdleMin,
			OutreachIdleMax:  DefaultOutreachIdleMax,
			OutreachBatch:    DefaultOutreachBatch,
			RecoveryBatch:    DefaultRecoveryBatch,
			PauseThreshold:   DefaultPauseThreshold,
			RetentionWindow:  DefaultRetentionWindow,
			OutreachSchedule: DefaultOutreachSchedule,
			CleanupSchedule:  DefaultCleanupSchedule,
			RecoverySchedule: DefaultRecoverySchedule,
		},
		Data: DataConfig{
			DBPath:  filepath.Join(ConfigDir(), "data", "kindred.db"),
			BlobDir: filepath.Join(ConfigDir(), "data", "memory"),
		},
	}
}

func ConfigDir() string {
	home := os.Getenv("HOME")
	if home == "" {
		home, _ = os.UserHomeDir()
	}
	return filepath.Join(home, ".kindred")
}

func ConfigPath() string {
	return filepath.Join(ConfigDir(), "config.json")
}

func LoadConfig() (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(ConfigPath())
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	} else {
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	// Environment variable overrides
	if key := os.Getenv("KINDRED_API_KEY"); key != "" {
		cfg.Provider.APIKey = key
	}
	if key := os.Getenv("ANTHROPIC_API_KEY"); key != "" && cfg.Provider.APIKey == "" {
		cfg.Provider.APIKey = key
	}
	if url := os.Getenv("KINDRED_BASE_URL"); url != "" {
		cfg.Provider.BaseURL = url
	}
	if model := os.Getenv("KINDRED_MODEL"); model != "" {
		cfg.Provider.Model = model
	}
	if model := os.Getenv("KINDRED_EXTRACTION_MODEL"); model != "" {
		cfg.Provider.ExtractionModel = model
	}
	if token := os.Getenv("KINDRED_TELEGRAM_TOKEN"); token != "" {
		cfg.Telegram.Token = token
	}
	if dbPath := os.Getenv("KINDRED_DB_PATH"); dbPath != "" {
		cfg.Data.DBPath = dbPath
	}
	if blobDir := os.Getenv("KINDRED_BLOB_DIR"); blobDir != "" {
		cfg.Data.BlobDir = blobDir
	}
	if timeout := os.Getenv("KINDRED_SESSION_TIMEOUT"); timeout != "" {
		cfg.Session.Timeout = timeout
	}
	if quota := os.Getenv("KINDRED_TRIAL_QUOTA"); quota != "" {
		if parsed, err := strconv.Atoi(quota); err == nil {
			cfg.Trial.Quota = parsed
		}
	}
	if mode := os.Getenv("KINDRED_LOG_MODE"); mode != "" {
		cfg.LogMode = mode
	}

	applyDefaults(cfg)
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	def := DefaultConfig()
	if cfg.Character.Name == "" {
		cfg.Character.Name = def.Character.Name
	}
	if cfg.Provider.Model == "" {
		cfg.Provider.Model = DefaultModel
	}
	if cfg.Provider.ExtractionModel == "" {
		cfg.Provider.ExtractionModel = DefaultExtractionModel
	}
	if cfg.Session.Timeout == "" {
		cfg.Session.Timeout = DefaultSessionTimeout
	}
	if cfg.Session.ExtractionMinimum <= 0 {
		cfg.Session.ExtractionMinimum = DefaultExtractionMinimum
	}
	if cfg.Session.RecoveryQuiet == "" {
		cfg.Session.RecoveryQuiet = DefaultRecoveryQuiet
	}
	if cfg.Session.HistoryWindow <= 0 {
		cfg.Session.HistoryWindow = DefaultHistoryWindow
	}
	if cfg.Trial.Quota <= 0 {
		cfg.Trial.Quota = DefaultTrialQuota
	}
	if cfg.Rhythm.OutreachIdleMin == "" {
		cfg.Rhythm.OutreachIdleMin = DefaultOutreachIdleMin
	}
	if cfg.Rhythm.OutreachIdleMax == "" {
		cfg.Rhythm.OutreachIdleMax = DefaultOutreachIdleMax
	}
	if cfg.Rhythm.OutreachBatch <= 0 {
		cfg.Rhythm.OutreachBatch = DefaultOutreachBatch
	}
	if cfg.Rhythm.RecoveryBatch <= 0 {
		cfg.Rhythm.RecoveryBatch = DefaultRecoveryBatch
	}
	if cfg.Rhythm.PauseThreshold == "" {
		cfg.Rhythm.PauseThreshold = DefaultPauseThreshold
	}
	if cfg.Rhythm.RetentionWindow == "" {
		cfg.Rhythm.RetentionWindow = DefaultRetentionWindow
	}
	if cfg.Rhythm.OutreachSchedule == "" {
		cfg.Rhythm.OutreachSchedule = DefaultOutreachSchedule
	}
	if cfg.Rhythm.CleanupSchedule == "" {
		cfg.Rhythm.CleanupSchedule = DefaultCleanupSchedule
	}
	if cfg.Rhythm.RecoverySchedule == "" {
		cfg.Rhythm.RecoverySchedule = DefaultRecoverySchedule
	}
	if cfg.Data.DBPath == "" {
		cfg.Data.DBPath = def.Data.DBPath
	}
	if cfg.Data.BlobDir == "" {
		cfg.Data.BlobDir = def.Data.BlobDir
	}
}

func SaveConfig(cfg *Config) error {
	dir := ConfigDir()
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	return os.WriteFile(ConfigPath(), data, 0644)
}
