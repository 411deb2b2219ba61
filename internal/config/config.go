package config

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/basekick-labs/pointmap/internal/storage"
	"github.com/spf13/viper"
)

// Config holds all configuration for pointmap
type Config struct {
	Log    LogConfig
	Mapper MapperConfig
	Output OutputConfig
	Models []ModelConfig
}

type LogConfig struct {
	Level  string
	Format string
}

type MapperConfig struct {
	Workers int // Concurrent mappings per batch (default: 2x CPU, min 4, max 64)
}

type OutputConfig struct {
	Format string // Payload format: line or msgpack
	Gzip   bool   // Gzip the encoded payload
}

// ModelConfig declares one model. Columns keep their declared order.
type ModelConfig struct {
	Name    string         `mapstructure:"name"`
	Columns []ColumnConfig `mapstructure:"columns"`
	Tags    []TagConfig    `mapstructure:"tags"`
}

type ColumnConfig struct {
	Name        string `mapstructure:"name"`
	StorageName string `mapstructure:"storage_name"` // Defaults to Name
}

// TagConfig promotes a field (by storage name) to a tag
type TagConfig struct {
	Field string `mapstructure:"field"`
	Tag   string `mapstructure:"tag"` // Defaults to Field
}

// Load loads configuration from environment and config file
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("pointmap")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/pointmap/")
	v.AddConfigPath("$HOME/.pointmap/")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		// Config file not found is OK, use defaults
	}

	return build(v)
}

// LoadFile loads configuration from an explicit file path.
// The format is taken from the file extension.
func LoadFile(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	return build(v)
}

func build(v *viper.Viper) (*Config, error) {
	setDefaults(v)

	// Environment variables
	v.SetEnvPrefix("POINTMAP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
		},
		Mapper: MapperConfig{
			Workers: v.GetInt("mapper.workers"),
		},
		Output: OutputConfig{
			Format: strings.ToLower(v.GetString("output.format")),
			Gzip:   v.GetBool("output.gzip"),
		},
	}

	if err := v.UnmarshalKey("models", &cfg.Models); err != nil {
		return nil, fmt.Errorf("invalid models: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	// Log defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Mapper defaults
	v.SetDefault("mapper.workers", getDefaultWorkers())

	// Output defaults
	v.SetDefault("output.format", "line")
	v.SetDefault("output.gzip", false)
}

func getDefaultWorkers() int {
	// Mapping is CPU bound; 2x cores keeps cores busy while a batch drains
	cores := runtime.NumCPU()
	workers := cores * 2
	if workers < 4 {
		return 4
	}
	if workers > 64 {
		return 64
	}
	return workers
}

// Validate checks the configuration for values the mapper cannot run with
func (cfg *Config) Validate() error {
	switch cfg.Output.Format {
	case "line", "msgpack":
	default:
		return fmt.Errorf("output.format must be line or msgpack, got %q", cfg.Output.Format)
	}

	if cfg.Mapper.Workers <= 0 {
		return fmt.Errorf("mapper.workers must be positive, got %d", cfg.Mapper.Workers)
	}

	seen := make(map[string]struct{}, len(cfg.Models))
	for i, m := range cfg.Models {
		if m.Name == "" {
			return fmt.Errorf("models[%d]: name is required", i)
		}
		if len(m.Columns) == 0 {
			return fmt.Errorf("model %q: at least one column is required", m.Name)
		}
		if _, dup := seen[m.Name]; dup {
			return fmt.Errorf("model %q declared twice", m.Name)
		}
		seen[m.Name] = struct{}{}
	}
	return nil
}

// Build converts the declaration into an immutable model
func (m ModelConfig) Build() (*storage.Model, error) {
	columns := make([]storage.Column, 0, len(m.Columns))
	for _, c := range m.Columns {
		columns = append(columns, storage.NewColumn(c.Name, c.StorageName))
	}

	promotions := make([]storage.TagPromotion, 0, len(m.Tags))
	for _, t := range m.Tags {
		tag := t.Tag
		if tag == "" {
			tag = t.Field
		}
		promotions = append(promotions, storage.TagPromotion{Field: t.Field, Tag: tag})
	}

	return storage.NewModel(m.Name, columns, promotions...)
}

// RegisterModels builds every configured model into registry
func (cfg *Config) RegisterModels(registry *storage.Registry) error {
	for _, m := range cfg.Models {
		model, err := m.Build()
		if err != nil {
			return err
		}
		if err := registry.Register(model); err != nil {
			return err
		}
	}
	return nil
}
