// Package config loads the undead configuration from YAML files and
// UNDEAD_* environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/l3aro/go-undead/pkg/engine"
	"github.com/l3aro/go-undead/pkg/relevancy"
)

// Output formats accepted by the analyze command.
const (
	FormatText  = "text"
	FormatCSV   = "csv"
	FormatJSON  = "json"
	FormatTable = "table"
)

// Config holds all configuration for undead
type Config struct {
	// Analysis switches
	VariabilityRelatedBlocksOnly bool `yaml:"variability_related_blocks_only" env:"UNDEAD_VARIABILITY_RELATED_BLOCKS_ONLY"`
	BuildModelOptimization       bool `yaml:"build_model_optimization" env:"UNDEAD_BUILD_MODEL_OPTIMIZATION"`
	CodeModelOptimization        bool `yaml:"code_model_optimization" env:"UNDEAD_CODE_MODEL_OPTIMIZATION"`

	// Threads is the number of analysis workers.
	Threads int `yaml:"threads" env:"UNDEAD_THREADS" validate:"gte=1,lte=1024"`

	// RelevancyPrefix selects the variables that make an element
	// variability related.
	RelevancyPrefix string `yaml:"relevancy_prefix" env:"UNDEAD_RELEVANCY_PREFIX"`

	// StoreDir is where committed models are kept.
	StoreDir string `yaml:"store_dir" env:"UNDEAD_STORE_DIR" validate:"required"`

	// SolverTimeout bounds one satisfiability query; zero is unbounded.
	SolverTimeout time.Duration `yaml:"solver_timeout" env:"UNDEAD_SOLVER_TIMEOUT" validate:"gte=0"`

	// Format of analyze output
	Format string `yaml:"format" env:"UNDEAD_FORMAT" validate:"oneof=text csv json table"`

	// Logging
	Verbose bool `yaml:"verbose" env:"UNDEAD_VERBOSE"`
	LogJSON bool `yaml:"log_json" env:"UNDEAD_LOG_JSON"`
}

var validate = newValidator()

// newValidator reports fields by their yaml key.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("yaml"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Threads:         2,
		RelevancyPrefix: relevancy.DefaultPrefix,
		StoreDir:        filepath.Join(".undead", "store"),
		Format:          FormatText,
	}
}

// GlobalConfigFilePath returns the global config file path (~/.undead/config.yaml)
func GlobalConfigFilePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".undead", "config.yaml")
	}
	return filepath.Join(home, ".undead", "config.yaml")
}

// ProjectConfigFilePath returns the project-level config file path (./.undead/config.yaml)
func ProjectConfigFilePath() string {
	return filepath.Join(".undead", "config.yaml")
}

// Load reads configuration with the following priority (highest to lowest):
// 1. Environment variables
// 2. Project-level config (./.undead/config.yaml)
// 3. Global config (~/.undead/config.yaml)
// 4. Defaults
func Load() (*Config, error) {
	cfg := DefaultConfig()

	for _, path := range []string{GlobalConfigFilePath(), ProjectConfigFilePath()} {
		if err := mergeFile(cfg, path, true); err != nil {
			return nil, err
		}
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromFile reads configuration from a specific YAML file path
func LoadFromFile(path string) (*Config, error) {
	cfg := DefaultConfig()
	if err := mergeFile(cfg, path, false); err != nil {
		return nil, err
	}
	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func mergeFile(cfg *Config, path string, optional bool) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if optional && os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

// Save writes the configuration to the specified YAML file path.
// It creates parent directories if they don't exist.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config to YAML: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file %s: %w", path, err)
	}
	return nil
}

// applyEnvOverrides applies environment variable overrides to the config.
// Malformed values are errors rather than silently ignored.
func applyEnvOverrides(cfg *Config) error {
	bools := []struct {
		name string
		dst  *bool
	}{
		{"UNDEAD_VARIABILITY_RELATED_BLOCKS_ONLY", &cfg.VariabilityRelatedBlocksOnly},
		{"UNDEAD_BUILD_MODEL_OPTIMIZATION", &cfg.BuildModelOptimization},
		{"UNDEAD_CODE_MODEL_OPTIMIZATION", &cfg.CodeModelOptimization},
		{"UNDEAD_VERBOSE", &cfg.Verbose},
		{"UNDEAD_LOG_JSON", &cfg.LogJSON},
	}
	for _, b := range bools {
		if v := os.Getenv(b.name); v != "" {
			*b.dst = parseBool(v)
		}
	}

	if v := os.Getenv("UNDEAD_THREADS"); v != "" {
		i, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid UNDEAD_THREADS %q: %w", v, err)
		}
		cfg.Threads = i
	}
	if v := os.Getenv("UNDEAD_RELEVANCY_PREFIX"); v != "" {
		cfg.RelevancyPrefix = v
	}
	if v := os.Getenv("UNDEAD_STORE_DIR"); v != "" {
		cfg.StoreDir = v
	}
	if v := os.Getenv("UNDEAD_SOLVER_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid UNDEAD_SOLVER_TIMEOUT %q: %w", v, err)
		}
		cfg.SolverTimeout = d
	}
	if v := os.Getenv("UNDEAD_FORMAT"); v != "" {
		cfg.Format = strings.ToLower(v)
	}
	return nil
}

func parseBool(v string) bool {
	switch strings.ToLower(v) {
	case "true", "1", "yes", "on":
		return true
	}
	return false
}

// Validate checks the configuration against its field rules.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		if errs, ok := err.(validator.ValidationErrors); ok && len(errs) > 0 {
			fe := errs[0]
			return fmt.Errorf("invalid config: %s fails %q (value %v)", fe.Field(), fe.Tag(), fe.Value())
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// EngineOptions projects the configuration onto the analysis engine.
func (c *Config) EngineOptions() engine.Options {
	return engine.Options{
		OnlyVariabilityRelatedBlocks: c.VariabilityRelatedBlocksOnly,
		BuildModelOptimization:       c.BuildModelOptimization,
		CodeModelOptimization:        c.CodeModelOptimization,
		Workers:                      c.Threads,
		RelevancyPrefix:              c.RelevancyPrefix,
		SolverTimeout:                c.SolverTimeout,
	}
}
