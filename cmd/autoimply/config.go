package main

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/boorubot/autoimply/series"
	"github.com/boorubot/autoimply/sources/danbooru"
	sqlstore "github.com/boorubot/autoimply/store/sql"
)

// appConfig is the top-level YAML configuration file. The series section
// is decoded separately by the series registry.
type appConfig struct {
	Danbooru danbooruConfig `yaml:"danbooru"`
	Store    storeConfig    `yaml:"store"`
	BigQuery bigqueryConfig `yaml:"bigquery"`
}

type danbooruConfig struct {
	BaseURL           string  `yaml:"base_url"`
	Login             string  `yaml:"login"`
	APIKey            string  `yaml:"api_key"`
	UserAgent         string  `yaml:"user_agent"`
	TimeoutSeconds    int     `yaml:"timeout_seconds"`
	RequestsPerSecond float64 `yaml:"requests_per_second"`
}

func (c danbooruConfig) clientConfig() danbooru.Config {
	cfg := danbooru.DefaultConfig()
	if c.BaseURL != "" {
		cfg.BaseURL = c.BaseURL
	}
	cfg.Login = c.Login
	cfg.APIKey = c.APIKey
	if c.UserAgent != "" {
		cfg.UserAgent = c.UserAgent
	}
	if c.TimeoutSeconds > 0 {
		cfg.Timeout = time.Duration(c.TimeoutSeconds) * time.Second
	}
	if c.RequestsPerSecond > 0 {
		cfg.RequestsPerSecond = c.RequestsPerSecond
	}
	return cfg
}

type storeConfig struct {
	Dialect string `yaml:"dialect"`
	DSN     string `yaml:"dsn"`
}

func (c storeConfig) enabled() bool {
	return c.DSN != ""
}

func (c storeConfig) storeConfig() sqlstore.Config {
	cfg := sqlstore.DefaultConfig()
	if c.Dialect != "" {
		cfg.Dialect = sqlstore.Dialect(c.Dialect)
	}
	cfg.DSN = c.DSN
	return cfg
}

type bigqueryConfig struct {
	ProjectID string `yaml:"project_id"`
	Table     string `yaml:"table"`
}

func (c bigqueryConfig) enabled() bool {
	return c.ProjectID != ""
}

// loadConfig reads the config file and the series registry from the same
// YAML document.
func loadConfig(path string) (*appConfig, *series.Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("read config: %w", err)
	}

	var cfg appConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, nil, fmt.Errorf("parse config: %w", err)
	}

	registry, err := series.Parse(data)
	if err != nil {
		return nil, nil, err
	}
	return &cfg, registry, nil
}
