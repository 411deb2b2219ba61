package config

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/basekick-labs/pointmap/internal/storage"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleConfig = `
[log]
level = "debug"
format = "console"

[mapper]
workers = 3

[output]
format = "msgpack"
gzip = true

[[models]]
name = "service_metric"

  [[models.columns]]
  name = "entityId"
  storage_name = "entity_id"

  [[models.columns]]
  name = "value"

  [[models.columns]]
  name = "time_bucket"

  [[models.tags]]
  field = "entity_id"

[[models]]
name = "endpoint_cpm"

  [[models.columns]]
  name = "time_bucket"
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "pointmap.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestGetDefaultWorkers(t *testing.T) {
	expected := runtime.NumCPU() * 2
	if expected < 4 {
		expected = 4
	}
	if expected > 64 {
		expected = 64
	}
	assert.Equal(t, expected, getDefaultWorkers())
}

func TestLoad_Defaults(t *testing.T) {
	// Change to an empty dir so no config file is found
	t.Chdir(t.TempDir())
	t.Setenv("HOME", t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, getDefaultWorkers(), cfg.Mapper.Workers)
	assert.Equal(t, "line", cfg.Output.Format)
	assert.False(t, cfg.Output.Gzip)
	assert.Empty(t, cfg.Models)
}

func TestLoadFile(t *testing.T) {
	cfg, err := LoadFile(writeConfig(t, sampleConfig))
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, 3, cfg.Mapper.Workers)
	assert.Equal(t, "msgpack", cfg.Output.Format)
	assert.True(t, cfg.Output.Gzip)

	require.Len(t, cfg.Models, 2)
	assert.Equal(t, "service_metric", cfg.Models[0].Name)
	assert.Equal(t, []ColumnConfig{
		{Name: "entityId", StorageName: "entity_id"},
		{Name: "value"},
		{Name: "time_bucket"},
	}, cfg.Models[0].Columns)
	assert.Equal(t, []TagConfig{{Field: "entity_id"}}, cfg.Models[0].Tags)
}

func TestLoadFile_EnvOverride(t *testing.T) {
	t.Setenv("POINTMAP_OUTPUT_FORMAT", "line")
	t.Setenv("POINTMAP_MAPPER_WORKERS", "9")

	cfg, err := LoadFile(writeConfig(t, sampleConfig))
	require.NoError(t, err)
	assert.Equal(t, "line", cfg.Output.Format)
	assert.Equal(t, 9, cfg.Mapper.Workers)
}

func TestLoadFile_Missing(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "absent.toml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Mapper: MapperConfig{Workers: 1},
			Output: OutputConfig{Format: "line"},
			Models: []ModelConfig{{Name: "m", Columns: []ColumnConfig{{Name: "time_bucket"}}}},
		}
	}
	require.NoError(t, valid().Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown format", func(c *Config) { c.Output.Format = "csv" }},
		{"no workers", func(c *Config) { c.Mapper.Workers = 0 }},
		{"unnamed model", func(c *Config) { c.Models[0].Name = "" }},
		{"model without columns", func(c *Config) { c.Models[0].Columns = nil }},
		{"duplicate model", func(c *Config) { c.Models = append(c.Models, c.Models[0]) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestRegisterModels(t *testing.T) {
	cfg, err := LoadFile(writeConfig(t, sampleConfig))
	require.NoError(t, err)

	registry := storage.NewRegistry(zerolog.Nop())
	require.NoError(t, cfg.RegisterModels(registry))
	assert.Equal(t, []string{"endpoint_cpm", "service_metric"}, registry.Names())

	model, err := registry.Get("service_metric")
	require.NoError(t, err)
	assert.Equal(t, 3, model.NumColumns())
	assert.Equal(t, storage.ColumnName{Name: "entityId", StorageName: "entity_id"}, model.Column(0).ColumnName)
	assert.Equal(t, storage.ColumnName{Name: "value", StorageName: "value"}, model.Column(1).ColumnName)
	assert.Equal(t, []storage.TagPromotion{{Field: "entity_id", Tag: "entity_id"}}, model.Promotions())

	// Registering the same models again collides
	assert.ErrorIs(t, cfg.RegisterModels(registry), storage.ErrModelExists)
}
