// Package config provides configuration loading and management for boneenhance.
// It handles loading configuration from YAML files and provides default values.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration loaded from YAML
type Config struct {
	// Processing parameters
	Processing struct {
		// Workers specifies how many goroutines split each filter stage
		Workers int `yaml:"workers"`
	} `yaml:"processing"`

	// Hessian computation parameters
	Hessian struct {
		// NormalizeAcrossScale multiplies second derivatives by sigma squared
		NormalizeAcrossScale bool `yaml:"normalizeAcrossScale"`
	} `yaml:"hessian"`

	// Krcah preprocessing parameters
	Preprocessing struct {
		// Sigma is the standard deviation of the unsharp-mask Gaussian in mm
		Sigma float64 `yaml:"sigma"`

		// ScalingConstant is the weight k in I + k(I - I*G)
		ScalingConstant float64 `yaml:"scalingConstant"`
	} `yaml:"preprocessing"`

	// Descoteaux parameter estimation
	Descoteaux struct {
		// FrobeniusNormWeight scales the maximum Frobenius norm into c
		FrobeniusNormWeight float64 `yaml:"frobeniusNormWeight"`
	} `yaml:"descoteaux"`

	// Measure parameters
	Measure struct {
		// Parameters, when set, replaces per-scale estimation with fixed [alpha, beta, c]
		Parameters []float64 `yaml:"parameters,omitempty"`
	} `yaml:"measure"`

	// Output parameters
	Output struct {
		// PreviewAxis selects the axis previews are sliced along
		PreviewAxis string `yaml:"previewAxis"`
	} `yaml:"output"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Processing.Workers = runtime.NumCPU()

	cfg.Hessian.NormalizeAcrossScale = true

	cfg.Preprocessing.Sigma = 1.0
	cfg.Preprocessing.ScalingConstant = 10.0

	cfg.Descoteaux.FrobeniusNormWeight = 0.5

	cfg.Output.PreviewAxis = "z"

	return cfg
}

// Validate checks that the loaded values are usable
func (c *Config) Validate() error {
	if c.Processing.Workers < 1 {
		return fmt.Errorf("processing.workers must be at least 1, got %d", c.Processing.Workers)
	}
	if c.Preprocessing.Sigma <= 0 {
		return fmt.Errorf("preprocessing.sigma must be positive, got %g", c.Preprocessing.Sigma)
	}
	if c.Descoteaux.FrobeniusNormWeight <= 0 {
		return fmt.Errorf("descoteaux.frobeniusNormWeight must be positive, got %g", c.Descoteaux.FrobeniusNormWeight)
	}
	if n := len(c.Measure.Parameters); n != 0 && n != 3 {
		return fmt.Errorf("measure.parameters must hold 3 values, got %d", n)
	}
	switch c.Output.PreviewAxis {
	case "x", "y", "z":
	default:
		return fmt.Errorf("output.previewAxis must be x, y or z, got %q", c.Output.PreviewAxis)
	}
	return nil
}

// LoadConfig loads configuration from a YAML file.
// An empty path returns the default configuration; a named file that
// cannot be read is an error.
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	if configPath == "" {
		return cfg, nil
	}

	// A named file must exist
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	// Parse YAML
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config file %s: %w", configPath, err)
	}

	return cfg, nil
}

// SaveConfig saves the configuration to a YAML file
func SaveConfig(cfg *Config, configPath string) error {
	// Create directory if it doesn't exist
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	// Marshal config to YAML
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}

	// Write to file
	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}

	return nil
}

// CreateDefaultConfigFile creates a default configuration file at the specified path
func CreateDefaultConfigFile(configPath string) error {
	cfg := DefaultConfig()
	return SaveConfig(cfg, configPath)
}
