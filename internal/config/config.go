// Package config provides configuration management for GridWatch.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/vqlam/gridwatch/internal/feeds"
	"github.com/vqlam/gridwatch/internal/intel"
	"github.com/vqlam/gridwatch/internal/observability"
)

// Config holds all GridWatch configuration.
type Config struct {
	Server    ServerConfig            `yaml:"server"`
	Redis     RedisConfig             `yaml:"redis"`
	Feeds     FeedsConfig             `yaml:"feeds"`
	History   HistoryConfig           `yaml:"history"`
	Readiness ReadinessConfig         `yaml:"readiness"`
	Logging   observability.LogConfig `yaml:"logging"`

	// SignaturesPath optionally overrides the built-in keyword and actor
	// tables with a YAML file.
	SignaturesPath string `yaml:"signatures_path"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	RequestTimeout  time.Duration `yaml:"request_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// RedisConfig holds Redis connection settings. An empty Addr disables Redis
// and the history store falls back to in-process memory.
type RedisConfig struct {
	Addr        string `yaml:"addr"`
	PasswordEnv string `yaml:"password_env"`
	DB          int    `yaml:"db"`
	PoolSize    int    `yaml:"pool_size"`
}

// FeedsConfig holds the source table and fetch behavior.
type FeedsConfig struct {
	Sources      []feeds.Source `yaml:"sources"`
	FetchTimeout time.Duration  `yaml:"fetch_timeout"`

	// SnapshotTTL bounds how long one pipeline run is served before the
	// next request triggers a fresh ingestion pass.
	SnapshotTTL time.Duration `yaml:"snapshot_ttl"`
}

// HistoryConfig holds score history persistence settings.
type HistoryConfig struct {
	Key           string        `yaml:"key"`
	Retention     int           `yaml:"retention"`
	WriteInterval time.Duration `yaml:"write_interval"`
}

// ReadinessConfig holds the declared posture context fed into the readiness
// mapper alongside each scoring run.
type ReadinessConfig struct {
	Posture           string `yaml:"posture"`
	Sector            string `yaml:"sector"`
	CriticalFunctions bool   `yaml:"critical_functions"`
}

// Load reads configuration from a YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return cfg, nil
}

// DefaultConfig returns sensible defaults, including the standard source
// table. Adding or removing a source is a configuration change only.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    60 * time.Second,
			RequestTimeout:  60 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Redis: RedisConfig{
			Addr:        "localhost:6379",
			PasswordEnv: "GRIDWATCH_REDIS_PASSWORD",
			DB:          0,
			PoolSize:    10,
		},
		Feeds: FeedsConfig{
			Sources:      DefaultSources(),
			FetchTimeout: 15 * time.Second,
			SnapshotTTL:  5 * time.Minute,
		},
		History: HistoryConfig{
			Key:           "gridwatch:score_history",
			Retention:     48,
			WriteInterval: 30 * time.Minute,
		},
		Readiness: ReadinessConfig{
			Posture:           "Shields Ready",
			Sector:            "Energy",
			CriticalFunctions: true,
		},
		Logging: observability.LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// DefaultSources is the versioned source table shipped with the binary.
func DefaultSources() []feeds.Source {
	return []feeds.Source{
		{
			Name:   "CISA Advisories",
			URL:    "https://www.cisa.gov/cybersecurity-advisories/all.xml",
			Format: feeds.FormatRSS,
			Type:   intel.SourceGovernment,
		},
		{
			Name:   "CISA KEV",
			URL:    "https://www.cisa.gov/sites/default/files/feeds/known_exploited_vulnerabilities.json",
			Format: feeds.FormatKEVJSON,
			Type:   intel.SourceGovernment,
		},
		{
			Name:   "NCSC Reports",
			URL:    "https://www.ncsc.gov.uk/api/1/services/v1/report-rss-feed.xml",
			Format: feeds.FormatRSS,
			Type:   intel.SourceGovernment,
		},
		{
			Name:   "Unit42",
			URL:    "https://unit42.paloaltonetworks.com/feed/",
			Format: feeds.FormatRSS,
			Type:   intel.SourceVendor,
		},
		{
			Name:   "BleepingComputer",
			URL:    "https://www.bleepingcomputer.com/feed/",
			Format: feeds.FormatRSS,
			Type:   intel.SourceVendor,
		},
		{
			Name:   "Dragos Blog",
			URL:    "https://www.dragos.com/feed/",
			Format: feeds.FormatRSS,
			Type:   intel.SourceEnergy,
		},
		{
			Name:   "Industrial Cyber",
			URL:    "https://industrialcyber.co/feed/",
			Format: feeds.FormatRSS,
			Type:   intel.SourceEnergy,
		},
	}
}
