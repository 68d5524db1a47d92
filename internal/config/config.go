// Package config loads the habitcraft YAML configuration file.
//
// Every field has a default, so a missing file is not an error. Command-line
// flags and environment variables are applied on top by the caller.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/julianstephens/habitcraft/internal/constants"
	"github.com/julianstephens/habitcraft/internal/utils"
)

// Local storage backends
const (
	BackendSQLite = "sqlite"
	BackendBadger = "badger"
)

// Merge policies
const (
	MergePolicyRecord = "record"
	MergePolicyUnion  = "union"
)

type Config struct {
	DataPath     string        `yaml:"data_path"`
	LocalBackend string        `yaml:"local_backend"`
	Timezone     string        `yaml:"timezone"`
	MaxHabits    int           `yaml:"max_habits"`
	Debug        bool          `yaml:"debug"`
	Remote       RemoteConfig  `yaml:"remote"`
	Sync         SyncConfig    `yaml:"sync"`
	Advisor      AdvisorConfig `yaml:"advisor"`
}

type RemoteConfig struct {
	Enabled bool `yaml:"enabled"`
	// DSN must not embed a password; supply it through the OS keyring,
	// HABITCRAFT_DB_CONNECTION, or .pgpass.
	DSN string `yaml:"dsn"`
}

type SyncConfig struct {
	Interval    time.Duration `yaml:"interval"`
	Timeout     time.Duration `yaml:"timeout"`
	MergePolicy string        `yaml:"merge_policy"`
}

type AdvisorConfig struct {
	Enabled           bool          `yaml:"enabled"`
	BaseURL           string        `yaml:"base_url"`
	Model             string        `yaml:"model"`
	DailyQuota        int           `yaml:"daily_quota"`
	RequestsPerMinute int           `yaml:"requests_per_minute"`
	Timeout           time.Duration `yaml:"timeout"`
}

// Default returns the configuration used when no file exists.
func Default() Config {
	return Config{
		DataPath:     constants.DefaultDataPath,
		LocalBackend: BackendSQLite,
		Timezone:     constants.DefaultTimezone,
		MaxHabits:    constants.DefaultMaxHabits,
		Sync: SyncConfig{
			Interval:    constants.DefaultSyncInterval,
			Timeout:     constants.DefaultSyncTimeout,
			MergePolicy: MergePolicyRecord,
		},
		Advisor: AdvisorConfig{
			Enabled:           true,
			BaseURL:           constants.DefaultAdvisorBaseURL,
			Model:             constants.DefaultAdvisorModel,
			DailyQuota:        constants.DefaultAdvisorDailyQuota,
			RequestsPerMinute: constants.DefaultAdvisorRequestsPerMinute,
			Timeout:           constants.DefaultAdvisorTimeout,
		},
	}
}

// Load reads the YAML file at path over the defaults. A missing file yields
// the defaults unchanged.
func Load(path string) (Config, error) {
	cfg := Default()

	expanded, err := ExpandPath(path)
	if err != nil {
		return cfg, err
	}

	data, err := os.ReadFile(expanded)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("failed to read config %s: %w", expanded, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config %s: %w", expanded, err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Save writes cfg to path, creating the parent directory.
func Save(path string, cfg Config) error {
	expanded, err := ExpandPath(path)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(expanded), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to serialize config: %w", err)
	}
	if err := os.WriteFile(expanded, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// applyDefaults fills zero values left by a partial file.
func (c *Config) applyDefaults() {
	def := Default()
	if c.DataPath == "" {
		c.DataPath = def.DataPath
	}
	if c.LocalBackend == "" {
		c.LocalBackend = def.LocalBackend
	}
	if c.Timezone == "" {
		c.Timezone = def.Timezone
	}
	if c.MaxHabits == 0 {
		c.MaxHabits = def.MaxHabits
	}
	if c.Sync.Interval == 0 {
		c.Sync.Interval = def.Sync.Interval
	}
	if c.Sync.Timeout == 0 {
		c.Sync.Timeout = def.Sync.Timeout
	}
	if c.Sync.MergePolicy == "" {
		c.Sync.MergePolicy = def.Sync.MergePolicy
	}
	if c.Advisor.BaseURL == "" {
		c.Advisor.BaseURL = def.Advisor.BaseURL
	}
	if c.Advisor.Model == "" {
		c.Advisor.Model = def.Advisor.Model
	}
	if c.Advisor.DailyQuota == 0 {
		c.Advisor.DailyQuota = def.Advisor.DailyQuota
	}
	if c.Advisor.RequestsPerMinute == 0 {
		c.Advisor.RequestsPerMinute = def.Advisor.RequestsPerMinute
	}
	if c.Advisor.Timeout == 0 {
		c.Advisor.Timeout = def.Advisor.Timeout
	}
}

// Validate checks enumerated fields and bounds.
func (c Config) Validate() error {
	switch c.LocalBackend {
	case BackendSQLite, BackendBadger:
	default:
		return fmt.Errorf("unknown local_backend %q (expected %s or %s)", c.LocalBackend, BackendSQLite, BackendBadger)
	}
	switch c.Sync.MergePolicy {
	case MergePolicyRecord, MergePolicyUnion:
	default:
		return fmt.Errorf("unknown sync.merge_policy %q (expected %s or %s)", c.Sync.MergePolicy, MergePolicyRecord, MergePolicyUnion)
	}
	if !utils.ValidateTimezone(c.Timezone) {
		return fmt.Errorf("invalid timezone %q", c.Timezone)
	}
	if c.MaxHabits < 1 {
		return fmt.Errorf("max_habits must be positive, got %d", c.MaxHabits)
	}
	if c.Sync.Interval < time.Second {
		return fmt.Errorf("sync.interval must be at least 1s, got %s", c.Sync.Interval)
	}
	if c.Sync.Timeout <= 0 {
		return fmt.Errorf("sync.timeout must be positive, got %s", c.Sync.Timeout)
	}
	if c.Advisor.DailyQuota < 0 {
		return fmt.Errorf("advisor.daily_quota must not be negative, got %d", c.Advisor.DailyQuota)
	}
	return nil
}

// ExpandPath resolves a leading "~" to the user's home directory.
func ExpandPath(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to resolve home directory: %w", err)
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
}
