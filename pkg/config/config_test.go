package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if cfg.Guardrail.Mode != "hard" {
		t.Errorf("default guardrail mode = %q, want hard", cfg.Guardrail.Mode)
	}
	if cfg.Structure.MaxRounds != 3 {
		t.Errorf("default max rounds = %d, want 3", cfg.Structure.MaxRounds)
	}
}

func TestLoadFromPathMergesOverDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
guardrail:
  mode: soft
structure:
  max_rounds: 1
workflow:
  phase_timeout: 30s
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("setup: %v", err)
	}

	cfg, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("LoadFromPath() error = %v", err)
	}
	if cfg.Guardrail.Mode != "soft" {
		t.Errorf("mode = %q, want soft", cfg.Guardrail.Mode)
	}
	if cfg.Structure.MaxRounds != 1 {
		t.Errorf("max rounds = %d, want 1", cfg.Structure.MaxRounds)
	}
	if cfg.Workflow.PhaseTimeout != 30*time.Second {
		t.Errorf("phase timeout = %v, want 30s", cfg.Workflow.PhaseTimeout)
	}
	// Untouched sections keep their defaults.
	if cfg.Models.Synthesis != DefaultSynthesisModel {
		t.Errorf("synthesis model = %q, want default", cfg.Models.Synthesis)
	}
	if cfg.Workflow.MaxTurns != DefaultMaxTurns {
		t.Errorf("max turns = %d, want default", cfg.Workflow.MaxTurns)
	}
}

func TestLoadFromPathMissingFile(t *testing.T) {
	if _, err := LoadFromPath(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing explicit config file")
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad guardrail mode", func(c *Config) { c.Guardrail.Mode = "medium" }},
		{"negative rounds", func(c *Config) { c.Structure.MaxRounds = -1 }},
		{"zero turns", func(c *Config) { c.Workflow.MaxTurns = 0 }},
		{"zero timeout", func(c *Config) { c.Workflow.PhaseTimeout = 0 }},
		{"bad log level", func(c *Config) { c.Logging.Level = "verbose" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}
