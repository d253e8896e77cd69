package config

import (
	"testing"
	"time"

	"github.com/ehr/migration-sim/internal/domain/migration"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != "8080" {
		t.Errorf("Port = %q, want 8080", cfg.Port)
	}
	if cfg.Env != "development" || !cfg.IsDev() {
		t.Errorf("Env = %q, want development", cfg.Env)
	}
	if cfg.Patients != 100 || cfg.Batches != 1 {
		t.Errorf("Patients/Batches = %d/%d, want 100/1", cfg.Patients, cfg.Batches)
	}
	if cfg.DegradationMagnitude != 0.5 {
		t.Errorf("DegradationMagnitude = %v, want 0.5", cfg.DegradationMagnitude)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("PATIENTS", "250")
	t.Setenv("EXTRACT_SUCCESS_RATE", "0.75")
	t.Setenv("SUBSTAGE_LATENCY_MS", "20")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Patients != 250 {
		t.Errorf("Patients = %d, want 250", cfg.Patients)
	}
	if cfg.ExtractSuccessRate != 0.75 {
		t.Errorf("ExtractSuccessRate = %v, want 0.75", cfg.ExtractSuccessRate)
	}
	if got := cfg.SubstageLatency(); got != 20*time.Millisecond {
		t.Errorf("SubstageLatency = %v, want 20ms", got)
	}
}

func TestLoad_RejectsBadRate(t *testing.T) {
	t.Setenv("TRANSFORM_SUCCESS_RATE", "1.5")
	if _, err := Load(); err == nil {
		t.Fatal("out-of-range success rate accepted")
	}
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		return &Config{
			Port: "8080", Env: "test",
			Patients: 10, Batches: 1,
			DegradationMagnitude: 0.5,
			ExtractSuccessRate:   0.9, TransformSuccessRate: 0.9,
			ValidateSuccessRate: 0.9, LoadSuccessRate: 0.9,
		}
	}

	if err := base().Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero patients", func(c *Config) { c.Patients = 0 }},
		{"negative batches", func(c *Config) { c.Batches = -1 }},
		{"rate above one", func(c *Config) { c.LoadSuccessRate = 1.2 }},
		{"negative rate", func(c *Config) { c.ValidateSuccessRate = -0.1 }},
		{"magnitude above one", func(c *Config) { c.DegradationMagnitude = 2 }},
	}
	for _, tt := range tests {
		cfg := base()
		tt.mutate(cfg)
		if err := cfg.Validate(); err == nil {
			t.Errorf("%s: accepted", tt.name)
		}
	}
}

func TestRates(t *testing.T) {
	cfg := &Config{
		ExtractSuccessRate: 0.91, TransformSuccessRate: 0.92,
		ValidateSuccessRate: 0.93, LoadSuccessRate: 0.94,
	}
	rt := cfg.Rates()
	if got := rt.Rate(migration.StageExtract, "read_records"); got != 0.91 {
		t.Errorf("extract rate %v, want 0.91", got)
	}
	if got := rt.Rate(migration.StageLoad, "finalize"); got != 0.94 {
		t.Errorf("load rate %v, want 0.94", got)
	}
}
