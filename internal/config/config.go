package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Query   QueryConfig   `mapstructure:"query"`
	Pool    PoolConfig    `mapstructure:"pool"`
	Export  ExportConfig  `mapstructure:"export"`
	History HistoryConfig `mapstructure:"history"`
	Log     LogConfig     `mapstructure:"log"`
	Storage StorageConfig `mapstructure:"storage"`
}

type ServerConfig struct {
	// Addr is the loopback address the command bridge listens on.
	Addr string `mapstructure:"addr"`
}

type QueryConfig struct {
	// DefaultLimit caps materialized rows when the caller passes no limit.
	DefaultLimit int `mapstructure:"default_limit"`
	// TimeoutMS bounds every statement execution.
	TimeoutMS int `mapstructure:"timeout_ms"`
	// CountCeiling stops the row-counting drain; past it totals are reported
	// as inexact lower bounds.
	CountCeiling int64 `mapstructure:"count_ceiling"`
}

type PoolConfig struct {
	MaxConns int `mapstructure:"max_conns"`
	MinConns int `mapstructure:"min_conns"`
}

type ExportConfig struct {
	// LargeThreshold is the estimated row count above which full-result CSV
	// exports switch to server-side COPY.
	LargeThreshold int64 `mapstructure:"large_threshold"`
	// TimeoutMS bounds a whole export run.
	TimeoutMS int `mapstructure:"timeout_ms"`
}

type HistoryConfig struct {
	Enabled           bool `mapstructure:"enabled"`
	MaxEntries        int  `mapstructure:"max_entries"`
	SaveFailedQueries bool `mapstructure:"save_failed_queries"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
	File  string `mapstructure:"file"`
}

type StorageConfig struct {
	// DataDir overrides where connections.yaml, favorites.yaml and history.db
	// live. Empty means <user-config-dir>/queryowl.
	DataDir string `mapstructure:"data_dir"`
}

// GetDefaults returns a Config with all default values
func GetDefaults() *Config {
	return &Config{
		Server: ServerConfig{
			Addr: "127.0.0.1:4411",
		},
		Query: QueryConfig{
			DefaultLimit: 100,
			TimeoutMS:    30000,
			CountCeiling: 1000000,
		},
		Pool: PoolConfig{
			MaxConns: 5,
			MinConns: 1,
		},
		Export: ExportConfig{
			LargeThreshold: 100000,
			TimeoutMS:      600000,
		},
		History: HistoryConfig{
			Enabled:           true,
			MaxEntries:        1000,
			SaveFailedQueries: true,
		},
		Log: LogConfig{
			Level: "info",
			File:  "",
		},
		Storage: StorageConfig{
			DataDir: "",
		},
	}
}

// Load loads configuration from files
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")

	// Config paths in priority order: user config dir, then cwd.
	if configDir, err := os.UserConfigDir(); err == nil {
		v.AddConfigPath(filepath.Join(configDir, "queryowl"))
	}
	v.AddConfigPath(".")

	v.SetDefault("server.addr", "127.0.0.1:4411")
	v.SetDefault("query.default_limit", 100)
	v.SetDefault("query.timeout_ms", 30000)
	v.SetDefault("query.count_ceiling", 1000000)
	v.SetDefault("pool.max_conns", 5)
	v.SetDefault("pool.min_conns", 1)
	v.SetDefault("export.large_threshold", 100000)
	v.SetDefault("export.timeout_ms", 600000)
	v.SetDefault("history.enabled", true)
	v.SetDefault("history.max_entries", 1000)
	v.SetDefault("history.save_failed_queries", true)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", "")
	v.SetDefault("storage.data_dir", "")

	// Missing config file is fine, defaults apply.
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	return &cfg, nil
}

// DataDir resolves the directory for stored connections, favorites and
// history, creating it if needed.
func (c *Config) DataDir() (string, error) {
	dir := c.Storage.DataDir
	if dir == "" {
		configDir, err := os.UserConfigDir()
		if err != nil {
			return "", fmt.Errorf("resolving user config dir: %w", err)
		}
		dir = filepath.Join(configDir, "queryowl")
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return "", fmt.Errorf("creating data dir: %w", err)
	}
	return dir, nil
}
