package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

const (
	DefaultRtol     = 1.0e-6
	DefaultAtol     = 1.0e-10
	DefaultMaxOrder = 5
	DefaultDuration = 1.0
	DefaultMaxSteps = 20000
)

// Config describes one integration problem.
type Config struct {
	Model    string             `yaml:"model"`
	Params   map[string]float64 `yaml:"params,omitempty"`
	Rtol     float64            `yaml:"rtol"`
	Atol     float64            `yaml:"atol"`
	AtolVec  []float64          `yaml:"atol_vec,omitempty"`
	MaxOrder int                `yaml:"max_order"`
	T0       float64            `yaml:"t0"`
	Duration float64            `yaml:"duration"`
	H0       float64            `yaml:"h0,omitempty"`
	Hmin     float64            `yaml:"hmin,omitempty"`
	Hmax     float64            `yaml:"hmax,omitempty"`
	MaxSteps int                `yaml:"max_steps"`
}

// Default returns the baseline configuration.
func Default() *Config {
	return &Config{
		Model:    "decay",
		Rtol:     DefaultRtol,
		Atol:     DefaultAtol,
		MaxOrder: DefaultMaxOrder,
		Duration: DefaultDuration,
		MaxSteps: DefaultMaxSteps,
	}
}

// Load reads a yaml configuration, applying defaults for absent fields.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the configuration as yaml.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Validate checks field ranges.
func (c *Config) Validate() error {
	if c.Model == "" {
		return fmt.Errorf("config: model is required")
	}
	if c.Rtol <= 0 {
		return fmt.Errorf("config: rtol must be positive, got %g", c.Rtol)
	}
	if c.Atol <= 0 && len(c.AtolVec) == 0 {
		return fmt.Errorf("config: atol must be positive, got %g", c.Atol)
	}
	if c.Duration <= 0 {
		return fmt.Errorf("config: duration must be positive, got %g", c.Duration)
	}
	if c.MaxOrder < 1 || c.MaxOrder > 5 {
		return fmt.Errorf("config: max_order must be in [1,5], got %d", c.MaxOrder)
	}
	if c.MaxSteps < 1 {
		return fmt.Errorf("config: max_steps must be positive, got %d", c.MaxSteps)
	}
	return nil
}
