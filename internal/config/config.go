// Package config loads the oracle's runtime configuration: admission
// thresholds, healing targets, sandbox/federation timeouts, and the
// ambient logging layout. Absence of a config file is not an error; the
// documented defaults apply.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"gopkg.in/yaml.v3"
)

func defaultWorkerPoolSize() int {
	n := runtime.NumCPU()
	if n < 1 {
		return 1
	}
	return n
}

// LoggingConfig controls the categorized file logger in internal/logging.
type LoggingConfig struct {
	DebugMode  bool            `yaml:"debug_mode"`
	Categories map[string]bool `yaml:"categories"`
	Level      string          `yaml:"level"`
	JSONFormat bool            `yaml:"json_format"`
}

// OracleConfig is the single configuration object for the core. Every knob
// enumerated in the external interface table has a named field here; the
// two coherency floors and the cascade threshold the design notes call out
// as independent are kept as distinct fields rather than folded into one.
type OracleConfig struct {
	// StoreName selects the <baseDir>/<storeName>/ directory.
	StoreName string `yaml:"store_name"`
	BaseDir   string `yaml:"base_dir"`

	AdmissionThreshold float64 `yaml:"admission_threshold"`
	MinCoherencyQuery  float64 `yaml:"min_coherency_query"`
	MinCoherencyShare  float64 `yaml:"min_coherency_share"`

	HealTarget                 float64 `yaml:"heal_target"`
	PromoteThreshold           float64 `yaml:"promote_threshold"`
	MaxHealsPerRun             int     `yaml:"max_heals_per_run"`
	MaxHealLoopsPull           int     `yaml:"max_heal_loops_pull"`
	MaxHealLoopsEvolve         int     `yaml:"max_heal_loops_evolve"`
	CascadeConfidenceThreshold float64 `yaml:"cascade_confidence_threshold"`

	SandboxTimeoutMs    int `yaml:"sandbox_timeout_ms"`
	FederationTimeoutMs int `yaml:"federation_timeout_ms"`
	PersonalTimeoutMs   int `yaml:"personal_timeout_ms"`
	CommunityTimeoutMs  int `yaml:"community_timeout_ms"`

	WorkerPoolSize int `yaml:"worker_pool_size"`

	PersonalStorePath  string `yaml:"personal_store_path"`
	CommunityStorePath string `yaml:"community_store_path"`

	Remotes []RemoteTierConfig `yaml:"remotes"`

	Logging LoggingConfig `yaml:"logging"`
}

// RemoteTierConfig describes a single remote federation tier reached over
// HTTP/JSON with bearer-token auth.
type RemoteTierConfig struct {
	Name      string `yaml:"name"`
	BaseURL   string `yaml:"base_url"`
	BearerKey string `yaml:"bearer_key"`
}

// DefaultConfig returns the documented defaults for every knob.
func DefaultConfig() *OracleConfig {
	home, _ := os.UserHomeDir()
	return &OracleConfig{
		StoreName: "local",
		BaseDir:   filepath.Join(home, ".remembrance"),

		AdmissionThreshold: 0.6,
		MinCoherencyQuery:  0.5,
		MinCoherencyShare:  0.7,

		HealTarget:                 0.85,
		PromoteThreshold:           0.9,
		MaxHealsPerRun:             20,
		MaxHealLoopsPull:           3,
		MaxHealLoopsEvolve:         5,
		CascadeConfidenceThreshold: 0.75,

		SandboxTimeoutMs:    10000,
		FederationTimeoutMs: 5000,
		PersonalTimeoutMs:   2000,
		CommunityTimeoutMs:  2000,

		WorkerPoolSize: defaultWorkerPoolSize(),

		PersonalStorePath:  filepath.Join(home, ".remembrance", "personal"),
		CommunityStorePath: filepath.Join(string(filepath.Separator), "remembrance", "community"),

		Logging: LoggingConfig{
			DebugMode: false,
			Level:     "info",
		},
	}
}

// Load reads YAML configuration from path, starting from DefaultConfig and
// overlaying whatever the file specifies. A missing file is not an error.
func Load(path string) (*OracleConfig, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// Save writes cfg as YAML to path, creating parent directories as needed.
func (c *OracleConfig) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}

// StorePath returns <baseDir>/<storeName>/.
func (c *OracleConfig) StorePath() string {
	return filepath.Join(c.BaseDir, c.StoreName)
}

// MaxHealLoops returns the configured loop bound for a resolve decision:
// 3 for PULL, 5 for EVOLVE by default.
func (c *OracleConfig) MaxHealLoops(isEvolve bool) int {
	if isEvolve {
		return c.MaxHealLoopsEvolve
	}
	return c.MaxHealLoopsPull
}
