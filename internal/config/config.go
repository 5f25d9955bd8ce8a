// Package config loads runtime settings from a config file, environment
// variables, and an optional .env file. Environment variables use the
// LONGBOX_ prefix (LONGBOX_DATABASE_PATH, LONGBOX_CONSENSUS_THRESHOLD, ...).
package config

import (
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/longboxhq/longbox/pkg/errors"
)

// Config is the resolved runtime configuration.
type Config struct {
	// EnabledSources lists the adapter names to register, in order. Order
	// matters: it fixes record precedence in first-seen-wins merges.
	EnabledSources []string `mapstructure:"enabled_sources"`

	// ConsensusThreshold is the agreeing-source count for verification.
	ConsensusThreshold int `mapstructure:"consensus_threshold"`

	// MatchThreshold is the fuzzy-match similarity cutoff.
	MatchThreshold float64 `mapstructure:"match_threshold"`

	// PassTimeout bounds one aggregation pass.
	PassTimeout time.Duration `mapstructure:"pass_timeout"`

	// DatabasePath is the SQLite file. Empty selects the in-memory
	// repository.
	DatabasePath string `mapstructure:"database_path"`

	// FixtureDir is the localdex data directory.
	FixtureDir string `mapstructure:"fixture_dir"`

	// MetronAPIKey authenticates against Metron when set.
	MetronAPIKey string `mapstructure:"metron_api_key"`
}

// Load reads configuration: defaults, then an optional longbox.yaml in the
// working directory, then LONGBOX_* environment variables (a .env file is
// honored when present).
func Load() (*Config, error) {
	// Missing .env is the normal case.
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("LONGBOX")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("enabled_sources", []string{"metron", "superhero-api"})
	v.SetDefault("consensus_threshold", 3)
	v.SetDefault("match_threshold", 0.85)
	v.SetDefault("pass_timeout", "10m")
	v.SetDefault("database_path", "longbox.db")
	v.SetDefault("fixture_dir", "fixtures")

	v.SetConfigName("longbox")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, errors.WrapParse("yaml", "longbox.yaml", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errors.WrapParse("yaml", "configuration", err)
	}
	return cfg, cfg.Validate()
}

// Validate checks the loaded configuration.
func (c *Config) Validate() error {
	if len(c.EnabledSources) == 0 {
		return &errors.ValidationError{Field: "enabled_sources", Message: "at least one source must be enabled"}
	}
	if c.ConsensusThreshold < 1 {
		return &errors.ValidationError{Field: "consensus_threshold", Value: c.ConsensusThreshold, Message: "must be at least 1"}
	}
	if c.MatchThreshold <= 0 || c.MatchThreshold > 1 {
		return &errors.ValidationError{Field: "match_threshold", Value: c.MatchThreshold, Message: "must be in (0,1]"}
	}
	return nil
}
