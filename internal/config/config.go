package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

const (
	DefaultModel             = "claude-sonnet-4-5-20250929"
	DefaultMaxTokens         = 1024
	DefaultBufSize           = 100
	DefaultSessionTTLMinutes = 30
	DefaultHistoryLimit      = 10
	DefaultFollowUpMinutes   = 15
	DefaultDecayDays         = 7
	DefaultEveningCutoffHour = 20
	DefaultApplyThreshold    = 0.6
	DefaultOverrideThreshold = 0.8
	DefaultPruneThreshold    = 0.2
	DefaultGuessThreshold    = 0.5
	DefaultBottleSizeML      = 750
	DefaultCheckinHour       = 9
)

type Config struct {
	Provider   ProviderConfig   `json:"provider"`
	Channels   ChannelsConfig   `json:"channels"`
	Store      StoreConfig      `json:"store"`
	Session    SessionConfig    `json:"session"`
	FollowUp   FollowUpConfig   `json:"followUp"`
	Decay      DecayConfig      `json:"decay"`
	Learning   LearningConfig   `json:"learning"`
	Onboarding OnboardingConfig `json:"onboarding"`
}

type ProviderConfig struct {
	Type      string `json:"type,omitempty"` // "anthropic" (default) or "openai"
	APIKey    string `json:"apiKey"`
	BaseURL   string `json:"baseUrl,omitempty"`
	Model     string `json:"model"`
	MaxTokens int    `json:"maxTokens"`
}

type ChannelsConfig struct {
	Telegram TelegramConfig `json:"telegram"`
}

type TelegramConfig struct {
	Enabled   bool     `json:"enabled"`
	Token     string   `json:"token"`
	AllowFrom []string `json:"allowFrom"`
	Proxy     string   `json:"proxy,omitempty"`
}

type StoreConfig struct {
	DBPath string `json:"dbPath,omitempty"`
}

type SessionConfig struct {
	TTLMinutes   int `json:"ttlMinutes"`
	HistoryLimit int `json:"historyLimit"`
}

type FollowUpConfig struct {
	DelayMinutes      int  `json:"delayMinutes"`
	AutoReschedule    bool `json:"autoReschedule"`
	EveningCutoffHour int  `json:"eveningCutoffHour"`
}

type DecayConfig struct {
	ThresholdDays int `json:"thresholdDays"`
}

type LearningConfig struct {
	ApplyThreshold    float64 `json:"applyThreshold"`
	OverrideThreshold float64 `json:"overrideThreshold"`
	PruneThreshold    float64 `json:"pruneThreshold"`
	GuessThreshold    float64 `json:"guessThreshold"`
}

type OnboardingConfig struct {
	DefaultBottleML int `json:"defaultBottleMl"`
}

func DefaultConfig() *Config {
	return &Config{
		Provider: ProviderConfig{
			Model:     DefaultModel,
			MaxTokens: DefaultMaxTokens,
		},
		Channels: ChannelsConfig{},
		Session: SessionConfig{
			TTLMinutes:   DefaultSessionTTLMinutes,
			HistoryLimit: DefaultHistoryLimit,
		},
		FollowUp: FollowUpConfig{
			DelayMinutes:      DefaultFollowUpMinutes,
			AutoReschedule:    true,
			EveningCutoffHour: DefaultEveningCutoffHour,
		},
		Decay: DecayConfig{
			ThresholdDays: DefaultDecayDays,
		},
		Learning: LearningConfig{
			ApplyThreshold:    DefaultApplyThreshold,
			OverrideThreshold: DefaultOverrideThreshold,
			PruneThreshold:    DefaultPruneThreshold,
			GuessThreshold:    DefaultGuessThreshold,
		},
		Onboarding: OnboardingConfig{
			DefaultBottleML: DefaultBottleSizeML,
		},
	}
}

func ConfigDir() string {
	home := os.Getenv("HOME")
	if home == "" {
		home, _ = os.UserHomeDir()
	}
	return filepath.Join(home, ".alfred")
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
	if key := os.Getenv("ALFRED_API_KEY"); key != "" {
		cfg.Provider.APIKey = key
	}
	if key := os.Getenv("ANTHROPIC_API_KEY"); key != "" && cfg.Provider.APIKey == "" {
		cfg.Provider.APIKey = key
	}
	if key := os.Getenv("OPENAI_API_KEY"); key != "" && cfg.Provider.APIKey == "" {
		cfg.Provider.APIKey = key
		if cfg.Provider.Type == "" {
			cfg.Provider.Type = "openai"
		}
	}
	if url := os.Getenv("ALFRED_BASE_URL"); url != "" {
		cfg.Provider.BaseURL = url
	}
	if model := os.Getenv("ALFRED_MODEL"); model != "" {
		cfg.Provider.Model = model
	}
	if token := os.Getenv("ALFRED_TELEGRAM_TOKEN"); token != "" {
		cfg.Channels.Telegram.Token = token
		cfg.Channels.Telegram.Enabled = true
	}
	if dbPath := os.Getenv("ALFRED_DB_PATH"); dbPath != "" {
		cfg.Store.DBPath = dbPath
	}
	if ttl := os.Getenv("ALFRED_SESSION_TTL_MINUTES"); ttl != "" {
		if parsed, err := strconv.Atoi(ttl); err == nil && parsed > 0 {
			cfg.Session.TTLMinutes = parsed
		}
	}
	if delay := os.Getenv("ALFRED_FOLLOWUP_DELAY_MINUTES"); delay != "" {
		if parsed, err := strconv.Atoi(delay); err == nil && parsed > 0 {
			cfg.FollowUp.DelayMinutes = parsed
		}
	}
	if days := os.Getenv("ALFRED_DECAY_DAYS"); days != "" {
		if parsed, err := strconv.Atoi(days); err == nil && parsed > 0 {
			cfg.Decay.ThresholdDays = parsed
		}
	}

	normalize(cfg)
	return cfg, nil
}

func normalize(cfg *Config) {
	def := DefaultConfig()
	if cfg.Provider.Model == "" {
		cfg.Provider.Model = def.Provider.Model
	}
	if cfg.Provider.MaxTokens <= 0 {
		cfg.Provider.MaxTokens = def.Provider.MaxTokens
	}
	if cfg.Session.TTLMinutes <= 0 {
		cfg.Session.TTLMinutes = def.Session.TTLMinutes
	}
	if cfg.Session.HistoryLimit <= 0 {
		cfg.Session.HistoryLimit = def.Session.HistoryLimit
	}
	if cfg.FollowUp.DelayMinutes <= 0 {
		cfg.FollowUp.DelayMinutes = def.FollowUp.DelayMinutes
	}
	if cfg.FollowUp.EveningCutoffHour <= 0 || cfg.FollowUp.EveningCutoffHour > 23 {
		cfg.FollowUp.EveningCutoffHour = def.FollowUp.EveningCutoffHour
	}
	if cfg.Decay.ThresholdDays <= 0 {
		cfg.Decay.ThresholdDays = def.Decay.ThresholdDays
	}
	if cfg.Learning.ApplyThreshold <= 0 {
		cfg.Learning.ApplyThreshold = def.Learning.ApplyThreshold
	}
	if cfg.Learning.OverrideThreshold <= 0 {
		cfg.Learning.OverrideThreshold = def.Learning.OverrideThreshold
	}
	if cfg.Learning.PruneThreshold <= 0 {
		cfg.Learning.PruneThreshold = def.Learning.PruneThreshold
	}
	if cfg.Learning.GuessThreshold <= 0 {
		cfg.Learning.GuessThreshold = def.Learning.GuessThreshold
	}
	if cfg.Onboarding.DefaultBottleML <= 0 {
		cfg.Onboarding.DefaultBottleML = def.Onboarding.DefaultBottleML
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
