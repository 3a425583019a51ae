package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestSaveLoadRoundTrip(t *testing.T) {
	cfg := Default()
	cfg.Model = "chain"
	cfg.Params = map[string]float64{"species": 5, "temperature": 900}
	cfg.Rtol = 1e-7
	cfg.Duration = 2.5
	cfg.AtolVec = []float64{1e-8, 1e-10, 1e-8, 1e-8, 1e-8}

	path := filepath.Join(t.TempDir(), "problem.yaml")
	require.NoError(t, Save(path, cfg))

	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, got)
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "partial.yaml")
	require.NoError(t, os.WriteFile(path, []byte("model: robertson\nrtol: 1.0e-5\natol: 1.0e-8\nduration: 0.4\n"), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "robertson", cfg.Model)
	assert.Equal(t, 1e-5, cfg.Rtol)
	assert.Equal(t, DefaultMaxOrder, cfg.MaxOrder)
	assert.Equal(t, DefaultMaxSteps, cfg.MaxSteps)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty model", func(c *Config) { c.Model = "" }},
		{"zero rtol", func(c *Config) { c.Rtol = 0 }},
		{"zero atol", func(c *Config) { c.Atol = 0 }},
		{"negative duration", func(c *Config) { c.Duration = -1 }},
		{"order too high", func(c *Config) { c.MaxOrder = 6 }},
		{"zero max steps", func(c *Config) { c.MaxSteps = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestValidateVectorAtol(t *testing.T) {
	cfg := Default()
	cfg.Atol = 0
	cfg.AtolVec = []float64{1e-8}
	assert.NoError(t, cfg.Validate())
}
