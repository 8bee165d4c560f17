package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Default configuration values exported for documentation and validation
const (
	DefaultSynthesisModel = "anthropic/claude-sonnet-4-5"
	DefaultAnalysisModel  = "anthropic/claude-sonnet-4-5"
	DefaultGuardrailMode  = "hard"
	DefaultMaxRounds      = 3
	DefaultMaxTurns       = 12
	DefaultPhaseTimeout   = 2 * time.Minute
	DefaultLogLevel       = "info"
)

// Config represents the complete Warden configuration
type Config struct {
	Models    ModelConfig     `yaml:"models"`
	Guardrail GuardrailConfig `yaml:"guardrail"`
	Structure StructureConfig `yaml:"structure"`
	Workflow  WorkflowConfig  `yaml:"workflow"`
	Logging   LoggingConfig   `yaml:"logging"`
	Storage   StorageConfig   `yaml:"storage"`
}

// ModelConfig defines model preferences per phase
type ModelConfig struct {
	Synthesis string `yaml:"synthesis"`
	Analysis  string `yaml:"analysis"`
}

// GuardrailConfig controls scope enforcement
type GuardrailConfig struct {
	// Mode is "hard" (abort on violation) or "soft" (log and continue).
	Mode string `yaml:"mode"`
	// ExpandScope registers sibling files with the dominant source
	// extension alongside each authorized file.
	ExpandScope bool `yaml:"expand_scope"`
}

// StructureConfig controls the validation/refinement loop
type StructureConfig struct {
	MaxRounds int `yaml:"max_rounds"`
	// CreateDirs applies missing-directory fixes on disk.
	CreateDirs bool `yaml:"create_dirs"`
}

// WorkflowConfig controls phase sequencing
type WorkflowConfig struct {
	PhaseTimeout time.Duration `yaml:"phase_timeout"`
	MaxTurns     int           `yaml:"max_turns"`
}

// LoggingConfig controls structured logging
type LoggingConfig struct {
	Level string `yaml:"level"`
	Dir   string `yaml:"dir"`
}

// StorageConfig controls run persistence
type StorageConfig struct {
	DBPath string `yaml:"db_path"`
}

// DefaultConfig returns the baseline configuration
func DefaultConfig() *Config {
	return &Config{
		Models: ModelConfig{
			Synthesis: DefaultSynthesisModel,
			Analysis:  DefaultAnalysisModel,
		},
		Guardrail: GuardrailConfig{
			Mode:        DefaultGuardrailMode,
			ExpandScope: true,
		},
		Structure: StructureConfig{
			MaxRounds:  DefaultMaxRounds,
			CreateDirs: false,
		},
		Workflow: WorkflowConfig{
			PhaseTimeout: DefaultPhaseTimeout,
			MaxTurns:     DefaultMaxTurns,
		},
		Logging: LoggingConfig{
			Level: DefaultLogLevel,
		},
		Storage: StorageConfig{},
	}
}

// Load builds configuration from defaults, the user config file, and the
// project config file, in that order of precedence.
func Load() (*Config, error) {
	cfg := DefaultConfig()

	home, err := os.UserHomeDir()
	if err != nil {
		home = os.Getenv("HOME")
	}
	if home != "" {
		userConfigPath := filepath.Join(home, ".warden", "config.yaml")
		if err := loadAndMerge(cfg, userConfigPath); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("loading user config: %w", err)
		}
	}

	projectConfigPath := filepath.Join(".", ".warden", "config.yaml")
	if err := loadAndMerge(cfg, projectConfigPath); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("loading project config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return cfg, nil
}

// LoadFromPath builds configuration from defaults plus one explicit file.
func LoadFromPath(path string) (*Config, error) {
	cfg := DefaultConfig()
	if err := loadAndMerge(cfg, path); err != nil {
		return nil, fmt.Errorf("loading config from %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return cfg, nil
}

func loadAndMerge(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}
	return nil
}

// Validate checks configuration invariants
func (c *Config) Validate() error {
	switch c.Guardrail.Mode {
	case "hard", "soft":
	default:
		return fmt.Errorf("guardrail mode must be \"hard\" or \"soft\", got %q", c.Guardrail.Mode)
	}
	if c.Structure.MaxRounds < 0 {
		return fmt.Errorf("structure max_rounds cannot be negative")
	}
	if c.Workflow.MaxTurns <= 0 {
		return fmt.Errorf("workflow max_turns must be positive")
	}
	if c.Workflow.PhaseTimeout <= 0 {
		return fmt.Errorf("workflow phase_timeout must be positive")
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log level %q", c.Logging.Level)
	}
	return nil
}
