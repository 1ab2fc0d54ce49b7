package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, ModelSIF, cfg.Model)
	assert.Equal(t, DatasetSICK, cfg.Dataset)
	assert.Equal(t, 64, cfg.BatchSize)
	assert.Equal(t, 15, cfg.Epochs)
	assert.Equal(t, 2e-4, cfg.LR)
	assert.Equal(t, int64(1234), cfg.Seed)
	assert.Equal(t, 1e-3, cfg.Alpha)
	assert.True(t, cfg.RemoveSpecialDirection)
	assert.Equal(t, FrequencyEnwiki, cfg.FrequencyDataset)
}

func TestLoadKeepsDefaultsForMissingKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.yaml")
	body := "epochs: 3\nbatch_size: 8\nfrequency_dataset: TRAIN\nremove_special_direction: false\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Epochs)
	assert.Equal(t, 8, cfg.BatchSize)
	assert.Equal(t, FrequencyTrain, cfg.FrequencyDataset)
	assert.False(t, cfg.RemoveSpecialDirection)
	assert.Equal(t, 2e-4, cfg.LR)
}

func TestLoadRejectsUnknownDataset(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.yaml")
	require.NoError(t, os.WriteFile(path, []byte("dataset: msrvid\n"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnknownDataset))
}

func TestLoadFileLeavesValidationToCaller(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.yaml")
	require.NoError(t, os.WriteFile(path, []byte("epochs: 0\n"), 0o644))

	_, err := Load(path)
	require.Error(t, err)

	cfg, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 0, cfg.Epochs)

	epochs := 3
	cfg.ApplyOverrides(Overrides{Epochs: &epochs})
	assert.NoError(t, cfg.Validate())
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestApplyOverrides(t *testing.T) {
	cfg := Default()
	seed := int64(0)
	device := -1
	lr := 0.5
	off := false
	ds := "sick"
	cfg.ApplyOverrides(Overrides{
		Seed:                   &seed,
		Device:                 &device,
		LR:                     &lr,
		RemoveSpecialDirection: &off,
		Dataset:                &ds,
	})
	require.NoError(t, cfg.Validate())
	assert.Equal(t, int64(0), cfg.Seed)
	assert.Equal(t, -1, cfg.Device)
	assert.Equal(t, 0.5, cfg.LR)
	assert.False(t, cfg.RemoveSpecialDirection)
	assert.Equal(t, 64, cfg.BatchSize)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		target error
	}{
		{"unknown dataset", func(c *Config) { c.Dataset = "unknown_value" }, ErrUnknownDataset},
		{"unknown model", func(c *Config) { c.Model = "lstm" }, ErrUnknownModel},
		{"unknown frequency", func(c *Config) { c.FrequencyDataset = "books" }, ErrUnknownFrequencySource},
		{"zero batch", func(c *Config) { c.BatchSize = 0 }, nil},
		{"zero epochs", func(c *Config) { c.Epochs = 0 }, nil},
		{"negative lr", func(c *Config) { c.LR = -1 }, nil},
		{"zero alpha", func(c *Config) { c.Alpha = 0 }, nil},
		{"bad device", func(c *Config) { c.Device = -2 }, nil},
		{"enwiki without file", func(c *Config) { c.FrequencyFile = "" }, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			if tt.target != nil {
				assert.True(t, errors.Is(err, tt.target), "got %v", err)
			}
		})
	}
}

func TestValidateFillsIntervals(t *testing.T) {
	cfg := Default()
	cfg.LogInterval = 0
	cfg.Workers = 0
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 1000, cfg.LogInterval)
	assert.Equal(t, 1, cfg.Workers)
}

func TestParseDatasetNormalizes(t *testing.T) {
	ds, err := ParseDataset("  SICK ")
	require.NoError(t, err)
	assert.Equal(t, DatasetSICK, ds)
}
