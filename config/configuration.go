// Package config loads the service configuration from an optional file and
// SPELLS_* environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/spf13/viper"
)

type S3Configuration struct {
	Enabled   bool   `json:"enabled" mapstructure:"enabled" default:"false"`
	Endpoint  string `json:"endpoint" mapstructure:"endpoint" default:""`
	Bucket    string `json:"bucket" mapstructure:"bucket" default:""`
	Prefix    string `json:"prefix" mapstructure:"prefix" default:""`
	Region    string `json:"region" mapstructure:"region" default:""`
	AccessKey string `json:"access_key" mapstructure:"access_key" default:""`
	SecretKey string `json:"secret_key" mapstructure:"secret_key" default:""`
	Secure    bool   `json:"secure" mapstructure:"secure" default:"true"`
}

type CacheConfiguration struct {
	Root string          `json:"root" mapstructure:"root" default:""`
	S3   S3Configuration `json:"s3" mapstructure:"s3"`
}

type DuckDBConfiguration struct {
	Threads     int    `json:"threads" mapstructure:"threads" default:"0"`
	MemoryLimit string `json:"memory_limit" mapstructure:"memory_limit" default:""`
}

type EngineConfiguration struct {
	Parallelism int `json:"parallelism" mapstructure:"parallelism" default:"4"`
}

type HTTPConfiguration struct {
	Host string `json:"host" mapstructure:"host" default:"0.0.0.0"`
	Port string `json:"port" mapstructure:"port" default:"8123"`
}

type Configuration struct {
	DataHome   string              `json:"data_home" mapstructure:"data_home" default:""`
	External   string              `json:"external" mapstructure:"external" default:""`
	EventType  string              `json:"event_type" mapstructure:"event_type" default:"PremierDraft"`
	Extensions string              `json:"extensions" mapstructure:"extensions" default:""`
	Verbose    bool                `json:"verbose" mapstructure:"verbose" default:"false"`
	Cache      CacheConfiguration  `json:"cache" mapstructure:"cache"`
	DuckDB     DuckDBConfiguration `json:"duckdb" mapstructure:"duckdb"`
	Engine     EngineConfiguration `json:"engine" mapstructure:"engine"`
	HTTP       HTTPConfiguration   `json:"http" mapstructure:"http"`
}

var defaults = map[string]any{
	"data_home":           "",
	"external":            "",
	"event_type":          "PremierDraft",
	"extensions":          "",
	"verbose":             false,
	"cache.root":          "",
	"cache.s3.enabled":    false,
	"cache.s3.endpoint":   "",
	"cache.s3.bucket":     "",
	"cache.s3.prefix":     "",
	"cache.s3.region":     "",
	"cache.s3.access_key": "",
	"cache.s3.secret_key": "",
	"cache.s3.secure":     true,
	"duckdb.threads":      0,
	"duckdb.memory_limit": "",
	"engine.parallelism":  4,
	"http.host":           "0.0.0.0",
	"http.port":           "8123",
}

// InitConfig reads file when it is not empty and applies SPELLS_* overrides,
// e.g. SPELLS_CACHE_S3_BUCKET for cache.s3.bucket. Unset directories are
// derived from the data home.
func InitConfig(file string) (*Configuration, error) {
	v := viper.New()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
	v.SetEnvPrefix("SPELLS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", file, err)
		}
	}

	cfg := &Configuration{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if cfg.DataHome == "" {
		cfg.DataHome = DataHome(os.Getenv)
	}
	cacheDir, externalDir := Subdirectories(runtime.GOOS)
	if cfg.Cache.Root == "" {
		cfg.Cache.Root = filepath.Join(cfg.DataHome, cacheDir)
	}
	if cfg.External == "" {
		cfg.External = filepath.Join(cfg.DataHome, externalDir)
	}
	return cfg, nil
}

// DataHome resolves SPELLS_DATA_HOME, then $XDG_DATA_HOME/spells, then a
// "data" directory relative to the working directory.
func DataHome(getenv func(string) string) string {
	if home := getenv("SPELLS_DATA_HOME"); home != "" {
		return home
	}
	if xdg := getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, "spells")
	}
	return "data"
}

func Subdirectories(goos string) (cache, external string) {
	if goos == "windows" {
		return "Cache", "External"
	}
	return "cache", "external"
}
