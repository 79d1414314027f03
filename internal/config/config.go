package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v11"
)

// Config holds all application configuration
type Config struct {
	Version     int               `toml:"version"`
	Search      SearchConfig      `toml:"search"`
	Filter      FilterConfig      `toml:"filter"`
	Limits      LimitsConfig      `toml:"limits"`
	Breaker     BreakerConfig     `toml:"breaker"`
	Generation  GenerationConfig  `toml:"generation"`
	Storage     StorageConfig     `toml:"storage"`
	Credentials CredentialsConfig `toml:"credentials"`
}

type SearchConfig struct {
	Query               string `toml:"query"`
	Count               int    `toml:"count"`
	PollIntervalMinutes int    `toml:"poll_interval_minutes"`
	RetryAttempts       int    `toml:"retry_attempts"`
	RetryBaseSeconds    int    `toml:"retry_base_seconds"`
}

type FilterConfig struct {
	MinLength     int    `toml:"min_length"`
	Language      string `toml:"language"`
	MaxAgeMinutes int    `toml:"max_age_minutes"`
	MinFollowers  int    `toml:"min_followers"`
}

type LimitsConfig struct {
	MaxDailyReplies    int `toml:"max_daily_replies"`
	MinGapMinutes      int `toml:"min_gap_minutes"`
	MaxPerAuthorPerDay int `toml:"max_per_author_per_day"`
}

type BreakerConfig struct {
	FailureThreshold int `toml:"failure_threshold"`
	CooldownMinutes  int `toml:"cooldown_minutes"`
}

type GenerationConfig struct {
	BaseURL             string `toml:"base_url"`
	PollIntervalSeconds int    `toml:"poll_interval_seconds"`
	TimeoutSeconds      int    `toml:"timeout_seconds"`
}

type StorageConfig struct {
	DBPath string `toml:"db_path"`
}

// CredentialsConfig holds API secrets. Each field can be set in the config
// file or overridden from the environment, so tokens can stay out of files
// on shared machines.
type CredentialsConfig struct {
	BearerToken      string `toml:"bearer_token" env:"RECAPBOT_BEARER_TOKEN"`
	GenerationAPIKey string `toml:"generation_api_key" env:"RECAPBOT_GENERATION_API_KEY"`
}

// Default returns a Config with sensible defaults
func Default() *Config {
	return &Config{
		Version: 1,
		Search: SearchConfig{
			Query:               "",
			Count:               50,
			PollIntervalMinutes: 10,
			RetryAttempts:       3,
			RetryBaseSeconds:    2,
		},
		Filter: FilterConfig{
			MinLength:     80,
			Language:      "en",
			MaxAgeMinutes: 60,
			MinFollowers:  50000,
		},
		Limits: LimitsConfig{
			MaxDailyReplies:    12,
			MinGapMinutes:      60,
			MaxPerAuthorPerDay: 1,
		},
		Breaker: BreakerConfig{
			FailureThreshold: 3,
			CooldownMinutes:  30,
		},
		Generation: GenerationConfig{
			PollIntervalSeconds: 5,
			TimeoutSeconds:      120,
		},
	}
}

// ConfigDir returns the platform-appropriate config directory
func ConfigDir() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "recapbot"), nil
}

// ConfigPath returns the full path to the config file
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// DefaultDBPath returns the default database location
func DefaultDBPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "recapbot.db"), nil
}

// Load reads config from the given path and applies environment overrides
// for credentials.
func Load(path string) (*Config, error) {
	var cfg Config
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	if err := env.Parse(&cfg.Credentials); err != nil {
		return nil, fmt.Errorf("parse credential environment: %w", err)
	}

	if cfg.Storage.DBPath == "" {
		dbPath, err := DefaultDBPath()
		if err != nil {
			return nil, err
		}
		cfg.Storage.DBPath = dbPath
	}

	return &cfg, nil
}

// Save writes config to the given path, creating parent directories as needed.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	defer f.Close()

	encoder := toml.NewEncoder(f)
	return encoder.Encode(c)
}

// Validate checks that the configuration can actually run a bot. It enforces
// the rate sanity rule: the configured daily replies must fit inside one day
// at the configured minimum gap.
func (c *Config) Validate() error {
	var problems []string

	if strings.TrimSpace(c.Search.Query) == "" {
		problems = append(problems, "search.query is required")
	}
	if c.Search.Count <= 0 {
		problems = append(problems, "search.count must be positive")
	}
	if c.Search.PollIntervalMinutes <= 0 {
		problems = append(problems, "search.poll_interval_minutes must be positive")
	}
	if c.Filter.MinLength < 0 {
		problems = append(problems, "filter.min_length must not be negative")
	}
	if c.Filter.MaxAgeMinutes <= 0 {
		problems = append(problems, "filter.max_age_minutes must be positive")
	}
	if c.Limits.MaxDailyReplies <= 0 {
		problems = append(problems, "limits.max_daily_replies must be positive")
	}
	if c.Limits.MinGapMinutes < 0 {
		problems = append(problems, "limits.min_gap_minutes must not be negative")
	}
	if c.Limits.MaxPerAuthorPerDay <= 0 {
		problems = append(problems, "limits.max_per_author_per_day must be positive")
	}
	if c.Limits.MaxDailyReplies*c.Limits.MinGapMinutes > 24*60 {
		problems = append(problems,
			"limits.max_daily_replies * limits.min_gap_minutes must not exceed 1440 minutes")
	}
	if c.Breaker.FailureThreshold <= 0 {
		problems = append(problems, "breaker.failure_threshold must be positive")
	}
	if c.Breaker.CooldownMinutes <= 0 {
		problems = append(problems, "breaker.cooldown_minutes must be positive")
	}
	if strings.TrimSpace(c.Generation.BaseURL) == "" {
		problems = append(problems, "generation.base_url is required")
	}
	if strings.TrimSpace(c.Credentials.BearerToken) == "" {
		problems = append(problems, "credentials.bearer_token is required (or RECAPBOT_BEARER_TOKEN)")
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}
