package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/ehr/migration-sim/internal/domain/migration"
)

// Config holds the simulator's runtime settings, loaded from environment
// variables and an optional .env file.
type Config struct {
	Port string `mapstructure:"PORT"`
	Env  string `mapstructure:"ENV"`

	Seed     int64 `mapstructure:"SEED"`
	Patients int   `mapstructure:"PATIENTS"`
	Batches  int   `mapstructure:"BATCHES"`

	DegradationMagnitude float64 `mapstructure:"DEGRADATION_MAGNITUDE"`
	SubstageLatencyMS    int     `mapstructure:"SUBSTAGE_LATENCY_MS"`

	ExtractSuccessRate   float64 `mapstructure:"EXTRACT_SUCCESS_RATE"`
	TransformSuccessRate float64 `mapstructure:"TRANSFORM_SUCCESS_RATE"`
	ValidateSuccessRate  float64 `mapstructure:"VALIDATE_SUCCESS_RATE"`
	LoadSuccessRate      float64 `mapstructure:"LOAD_SUCCESS_RATE"`
}

// Load reads configuration in the usual order: defaults, then .env (if
// present), then environment variables.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("PORT", "8080")
	v.SetDefault("ENV", "development")
	v.SetDefault("SEED", 0)
	v.SetDefault("PATIENTS", 100)
	v.SetDefault("BATCHES", 1)
	v.SetDefault("DEGRADATION_MAGNITUDE", 0.5)
	v.SetDefault("SUBSTAGE_LATENCY_MS", 0)
	v.SetDefault("EXTRACT_SUCCESS_RATE", 0.95)
	v.SetDefault("TRANSFORM_SUCCESS_RATE", 0.90)
	v.SetDefault("VALIDATE_SUCCESS_RATE", 0.92)
	v.SetDefault("LOAD_SUCCESS_RATE", 0.94)

	// Bind env vars explicitly so Unmarshal picks them up
	for _, key := range []string{
		"PORT", "ENV", "SEED", "PATIENTS", "BATCHES",
		"DEGRADATION_MAGNITUDE", "SUBSTAGE_LATENCY_MS",
		"EXTRACT_SUCCESS_RATE", "TRANSFORM_SUCCESS_RATE",
		"VALIDATE_SUCCESS_RATE", "LOAD_SUCCESS_RATE",
	} {
		v.BindEnv(key)
	}

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings that would make a run meaningless.
func (c *Config) Validate() error {
	if c.Patients <= 0 {
		return fmt.Errorf("PATIENTS must be positive, got %d", c.Patients)
	}
	if c.Batches <= 0 {
		return fmt.Errorf("BATCHES must be positive, got %d", c.Batches)
	}
	for name, rate := range map[string]float64{
		"EXTRACT_SUCCESS_RATE":   c.ExtractSuccessRate,
		"TRANSFORM_SUCCESS_RATE": c.TransformSuccessRate,
		"VALIDATE_SUCCESS_RATE":  c.ValidateSuccessRate,
		"LOAD_SUCCESS_RATE":      c.LoadSuccessRate,
	} {
		if rate < 0 || rate > 1 {
			return fmt.Errorf("%s must be in [0,1], got %v", name, rate)
		}
	}
	if c.DegradationMagnitude < 0 || c.DegradationMagnitude > 1 {
		return fmt.Errorf("DEGRADATION_MAGNITUDE must be in [0,1], got %v", c.DegradationMagnitude)
	}
	return nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// Rates builds the stage success-rate table for the orchestrator.
func (c *Config) Rates() migration.RateTable {
	return migration.RateTable{
		StageDefaults: map[migration.Stage]float64{
			migration.StageExtract:   c.ExtractSuccessRate,
			migration.StageTransform: c.TransformSuccessRate,
			migration.StageValidate:  c.ValidateSuccessRate,
			migration.StageLoad:      c.LoadSuccessRate,
		},
	}
}

// SubstageLatency returns the configured per-substage simulated latency.
func (c *Config) SubstageLatency() time.Duration {
	return time.Duration(c.SubstageLatencyMS) * time.Millisecond
}
