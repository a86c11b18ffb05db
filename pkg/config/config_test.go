package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Processing.Workers < 1 {
		t.Errorf("Expected at least one worker, got %d", cfg.Processing.Workers)
	}
	if cfg.Preprocessing.Sigma != 1.0 {
		t.Errorf("Expected preprocessing sigma 1.0, got %f", cfg.Preprocessing.Sigma)
	}
	if cfg.Preprocessing.ScalingConstant != 10.0 {
		t.Errorf("Expected scaling constant 10.0, got %f", cfg.Preprocessing.ScalingConstant)
	}
	if cfg.Descoteaux.FrobeniusNormWeight != 0.5 {
		t.Errorf("Expected Frobenius norm weight 0.5, got %f", cfg.Descoteaux.FrobeniusNormWeight)
	}
	if !cfg.Hessian.NormalizeAcrossScale {
		t.Errorf("Expected scale normalization to be enabled by default")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Default config should validate: %v", err)
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("Empty path should fall back to defaults: %v", err)
	}
	if cfg.Preprocessing.Sigma != DefaultConfig().Preprocessing.Sigma {
		t.Errorf("Expected default sigma, got %f", cfg.Preprocessing.Sigma)
	}

	missing := filepath.Join(t.TempDir(), "missing.yaml")
	if _, err := LoadConfig(missing); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("Expected fs.ErrNotExist for %s, got %v", missing, err)
	}
}

func TestCreateDefaultConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "boneenhance.yaml")
	if err := CreateDefaultConfigFile(path); err != nil {
		t.Fatalf("CreateDefaultConfigFile failed: %v", err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	def := DefaultConfig()
	if cfg.Preprocessing.Sigma != def.Preprocessing.Sigma || cfg.Output.PreviewAxis != def.Output.PreviewAxis {
		t.Errorf("Expected default configuration, got %+v", cfg)
	}
}

func TestSaveAndLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg := DefaultConfig()
	cfg.Processing.Workers = 3
	cfg.Preprocessing.ScalingConstant = 4
	cfg.Measure.Parameters = []float64{0.5, 0.5, 12}

	if err := SaveConfig(cfg, path); err != nil {
		t.Fatalf("SaveConfig failed: %v", err)
	}

	loaded, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if loaded.Processing.Workers != 3 {
		t.Errorf("Expected 3 workers, got %d", loaded.Processing.Workers)
	}
	if loaded.Preprocessing.ScalingConstant != 4 {
		t.Errorf("Expected scaling constant 4, got %f", loaded.Preprocessing.ScalingConstant)
	}
	if len(loaded.Measure.Parameters) != 3 || loaded.Measure.Parameters[2] != 12 {
		t.Errorf("Measure parameters not preserved: %v", loaded.Measure.Parameters)
	}
}

func TestLoadConfigRejectsInvalidValues(t *testing.T) {
	testCases := []struct {
		name string
		yaml string
	}{
		{"zero workers", "processing:\n  workers: 0\n"},
		{"negative sigma", "preprocessing:\n  sigma: -1\n"},
		{"two parameters", "measure:\n  parameters: [1, 2]\n"},
		{"bad axis", "output:\n  previewAxis: w\n"},
		{"not yaml", "processing: [\n"},
	}

	for _, tc := range testCases {
		path := filepath.Join(t.TempDir(), "config.yaml")
		if err := os.WriteFile(path, []byte(tc.yaml), 0644); err != nil {
			t.Fatalf("Failed to write config: %v", err)
		}
		if _, err := LoadConfig(path); err == nil {
			t.Errorf("%s: expected an error", tc.name)
		}
	}
}
