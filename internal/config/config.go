// Package config loads the application configuration: defaults, then the
// YAML file, then environment overrides (ZEDIS_* variables).
package config

import (
	"fmt"
	"os"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// Config is the root configuration.
type Config struct {
	Log     LogConfig      `yaml:"log"`
	Scan    ScanConfig     `yaml:"scan"`
	Servers []ServerConfig `yaml:"servers" ignored:"true"`
}

// LogConfig controls the global logger.
type LogConfig struct {
	Level      string `yaml:"level" envconfig:"LOG_LEVEL"`
	Format     string `yaml:"format" envconfig:"LOG_FORMAT"`
	Output     string `yaml:"output" envconfig:"LOG_OUTPUT"`
	FilePath   string `yaml:"file_path" envconfig:"LOG_FILE_PATH"`
	TimeFormat string `yaml:"time_format" envconfig:"LOG_TIME_FORMAT"`
}

// ScanConfig tunes key and field pagination.
type ScanConfig struct {
	Count              int64 `yaml:"count" envconfig:"SCAN_COUNT"`
	HashPageSize       int64 `yaml:"hash_page_size" envconfig:"HASH_PAGE_SIZE"`
	HashFilterPageSize int64 `yaml:"hash_filter_page_size" envconfig:"HASH_FILTER_PAGE_SIZE"`
}

// ServerConfig names one store connection.
type ServerConfig struct {
	ID  string `yaml:"id"`
	URL string `yaml:"url"`
}

func defaults() *Config {
	return &Config{
		Log: LogConfig{
			Level:      "info",
			Format:     "console",
			Output:     "stdout",
			TimeFormat: "rfc3339",
		},
		Scan: ScanConfig{
			Count:              100,
			HashPageSize:       100,
			HashFilterPageSize: 1000,
		},
	}
}

// Load reads the YAML file at path, if it exists, and applies ZEDIS_*
// environment overrides on top. A missing file is not an error; the
// defaults plus environment stand alone.
func Load(path string) (*Config, error) {
	cfg := defaults()

	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		// Defaults only.
	case err != nil:
		return nil, fmt.Errorf("error reading config file: %w", err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("error parsing config file: %w", err)
		}
	}

	if err := envconfig.Process("zedis", cfg); err != nil {
		return nil, fmt.Errorf("error processing environment configuration: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	seen := make(map[string]struct{}, len(c.Servers))
	for _, server := range c.Servers {
		if server.ID == "" {
			return fmt.Errorf("server entry with empty id")
		}
		if server.URL == "" {
			return fmt.Errorf("server %q has no url", server.ID)
		}
		if _, dup := seen[server.ID]; dup {
			return fmt.Errorf("duplicate server id %q", server.ID)
		}
		seen[server.ID] = struct{}{}
	}
	return nil
}

// ServerURLs returns the id-to-URL mapping for the connection manager.
func (c *Config) ServerURLs() map[string]string {
	urls := make(map[string]string, len(c.Servers))
	for _, server := range c.Servers {
		urls[server.ID] = server.URL
	}
	return urls
}
