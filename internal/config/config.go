// Package config loads application configuration and bootstraps logging.
package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/rangelab/rangeshift/internal/ingest"
	"github.com/rangelab/rangeshift/internal/store"
)

// Config holds the full application configuration.
type Config struct {
	Store    StoreConfig    `yaml:"store" mapstructure:"store"`
	Ingest   IngestConfig   `yaml:"ingest" mapstructure:"ingest"`
	Ranges   RangesConfig   `yaml:"ranges" mapstructure:"ranges"`
	Pipeline PipelineConfig `yaml:"pipeline" mapstructure:"pipeline"`
	Server   ServerConfig   `yaml:"server" mapstructure:"server"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string            `yaml:"driver" mapstructure:"driver"` // sqlite | postgres
	DatabaseURL string            `yaml:"database_url" mapstructure:"database_url"`
	Pool        *store.PoolConfig `yaml:"pool" mapstructure:"pool"`
}

// IngestConfig configures telemetry parsing.
type IngestConfig struct {
	Frame           string         `yaml:"frame" mapstructure:"frame"` // coordinate frame code, e.g. EPSG:32611
	TimestampLayout string         `yaml:"timestamp_layout" mapstructure:"timestamp_layout"`
	NameFixFile     string         `yaml:"name_fix_file" mapstructure:"name_fix_file"`
	Columns         ingest.Columns `yaml:"columns" mapstructure:"columns"`
}

// RangesConfig configures range shapefile loading.
type RangesConfig struct {
	PopulationField string `yaml:"population_field" mapstructure:"population_field"`
	Frame           string `yaml:"frame" mapstructure:"frame"`
}

// PipelineConfig configures the classification pass.
type PipelineConfig struct {
	Concurrency int `yaml:"concurrency" mapstructure:"concurrency"`
}

// ServerConfig configures the read-only HTTP API.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("RANGESHIFT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "rangeshift.db")
	v.SetDefault("ingest.frame", "EPSG:32611") // UTM zone 11N
	v.SetDefault("ingest.timestamp_layout", "2006-01-02 15:04:05")
	v.SetDefault("ingest.columns.animal_id", "animal_id")
	v.SetDefault("ingest.columns.population", "population")
	v.SetDefault("ingest.columns.age_class", "age_class")
	v.SetDefault("ingest.columns.sex", "sex")
	v.SetDefault("ingest.columns.timestamp", "timestamp")
	v.SetDefault("ingest.columns.x", "utm_e")
	v.SetDefault("ingest.columns.y", "utm_n")
	v.SetDefault("ranges.population_field", "POP_NAME")
	v.SetDefault("ranges.frame", "EPSG:32611")
	v.SetDefault("pipeline.concurrency", 4)
	v.SetDefault("server.port", 8080)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
