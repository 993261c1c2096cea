package config

import (
	"fmt"
	"strconv"
	"time"
)

// Config represents the persistent infobase configuration stored as
// config.toml in the .infobase/ directory. The TOML layout uses sections for
// logical grouping. API keys are not part of it; they come from the
// environment only.
type Config struct {
	Version   int             `toml:"version"`
	Storage   StorageConfig   `toml:"storage"`
	Proxy     ProxyConfig     `toml:"proxy"`
	API       APIConfig       `toml:"api"`
	Client    ClientConfig    `toml:"client"`
	Knowledge KnowledgeConfig `toml:"knowledge"`
	Scrape    ScrapeConfig    `toml:"scrape"`
	Research  ResearchConfig  `toml:"research"`
	Events    EventsConfig    `toml:"events"`
}

// StorageConfig selects the scraped site store.
type StorageConfig struct {
	// Driver is one of "memory", "sqlite" or "postgres".
	Driver      string `toml:"driver,omitempty"`
	SQLitePath  string `toml:"sqlite_path,omitempty"`
	PostgresDSN string `toml:"postgres_dsn,omitempty"`
}

// ProxyConfig holds assistant endpoint settings.
type ProxyConfig struct {
	Upstream  string `toml:"upstream,omitempty"`
	Model     string `toml:"model,omitempty"`
	Listen    string `toml:"listen,omitempty"`
	RateLimit int    `toml:"rate_limit,omitempty"`
}

// APIConfig holds API server settings.
type APIConfig struct {
	Listen string `toml:"listen,omitempty"`
}

// ClientConfig holds settings for CLI commands that connect to the running
// proxy and API servers (e.g. infobase ask). Values are full URLs
// (scheme + host + port).
type ClientConfig struct {
	ProxyTarget string `toml:"proxy_target,omitempty"`
	APITarget   string `toml:"api_target,omitempty"`
}

// KnowledgeConfig says where the knowledge dataset comes from.
type KnowledgeConfig struct {
	// DataPath is a local dataset file, watched for changes. Empty uses
	// the bundled dataset.
	DataPath string `toml:"data_path,omitempty"`

	// RemoteURL is polled every RefreshInterval when set.
	RemoteURL       string `toml:"remote_url,omitempty"`
	RefreshInterval string `toml:"refresh_interval,omitempty"`
	CacheTTL        string `toml:"cache_ttl,omitempty"`
	CacheDir        string `toml:"cache_dir,omitempty"`
}

// ScrapeConfig holds website scraping settings.
type ScrapeConfig struct {
	FirecrawlURL string `toml:"firecrawl_url,omitempty"`
	ExtractModel string `toml:"extract_model,omitempty"`
	Workers      int    `toml:"workers,omitempty"`
}

// ResearchConfig holds research provider settings.
type ResearchConfig struct {
	Upstream string `toml:"upstream,omitempty"`
	Model    string `toml:"model,omitempty"`
}

// EventsConfig selects where domain events are published.
type EventsConfig struct {
	// Provider is "none" or "kafka".
	Provider string `toml:"provider,omitempty"`
	Brokers  string `toml:"brokers,omitempty"`
	Topic    string `toml:"topic,omitempty"`
}

// configKeyInfo maps a user-facing dotted key name to a getter and setter on *Config.
type configKeyInfo struct {
	get func(c *Config) string
	set func(c *Config, v string) error
}

func stringKey(field func(c *Config) *string) configKeyInfo {
	return configKeyInfo{
		get: func(c *Config) string { return *field(c) },
		set: func(c *Config, v string) error { *field(c) = v; return nil },
	}
}

func intKey(name string, field func(c *Config) *int) configKeyInfo {
	return configKeyInfo{
		get: func(c *Config) string {
			if *field(c) == 0 {
				return ""
			}
			return strconv.Itoa(*field(c))
		},
		set: func(c *Config, v string) error {
			n, err := strconv.Atoi(v)
			if err != nil || n < 0 {
				return fmt.Errorf("invalid value for %s: must be a non-negative integer", name)
			}
			*field(c) = n
			return nil
		},
	}
}

func durationKey(name string, field func(c *Config) *string) configKeyInfo {
	return configKeyInfo{
		get: func(c *Config) string { return *field(c) },
		set: func(c *Config, v string) error {
			if _, err := time.ParseDuration(v); err != nil {
				return fmt.Errorf("invalid value for %s: %w", name, err)
			}
			*field(c) = v
			return nil
		},
	}
}

func oneOfKey(name string, allowed []string, field func(c *Config) *string) configKeyInfo {
	return configKeyInfo{
		get: func(c *Config) string { return *field(c) },
		set: func(c *Config, v string) error {
			for _, a := range allowed {
				if v == a {
					*field(c) = v
					return nil
				}
			}
			return fmt.Errorf("invalid value for %s: %q (allowed: %v)", name, v, allowed)
		},
	}
}

// configKeys is the authoritative map of all supported config keys.
// Keys use dotted notation matching the TOML section structure.
var configKeys = map[string]configKeyInfo{
	"storage.driver":       oneOfKey("storage.driver", StorageDrivers, func(c *Config) *string { return &c.Storage.Driver }),
	"storage.sqlite_path":  stringKey(func(c *Config) *string { return &c.Storage.SQLitePath }),
	"storage.postgres_dsn": stringKey(func(c *Config) *string { return &c.Storage.PostgresDSN }),

	"proxy.upstream":   stringKey(func(c *Config) *string { return &c.Proxy.Upstream }),
	"proxy.model":      stringKey(func(c *Config) *string { return &c.Proxy.Model }),
	"proxy.listen":     stringKey(func(c *Config) *string { return &c.Proxy.Listen }),
	"proxy.rate_limit": intKey("proxy.rate_limit", func(c *Config) *int { return &c.Proxy.RateLimit }),

	"api.listen": stringKey(func(c *Config) *string { return &c.API.Listen }),

	"client.proxy_target": stringKey(func(c *Config) *string { return &c.Client.ProxyTarget }),
	"client.api_target":   stringKey(func(c *Config) *string { return &c.Client.APITarget }),

	"knowledge.data_path":        stringKey(func(c *Config) *string { return &c.Knowledge.DataPath }),
	"knowledge.remote_url":       stringKey(func(c *Config) *string { return &c.Knowledge.RemoteURL }),
	"knowledge.refresh_interval": durationKey("knowledge.refresh_interval", func(c *Config) *string { return &c.Knowledge.RefreshInterval }),
	"knowledge.cache_ttl":        durationKey("knowledge.cache_ttl", func(c *Config) *string { return &c.Knowledge.CacheTTL }),
	"knowledge.cache_dir":        stringKey(func(c *Config) *string { return &c.Knowledge.CacheDir }),

	"scrape.firecrawl_url": stringKey(func(c *Config) *string { return &c.Scrape.FirecrawlURL }),
	"scrape.extract_model": stringKey(func(c *Config) *string { return &c.Scrape.ExtractModel }),
	"scrape.workers":       intKey("scrape.workers", func(c *Config) *int { return &c.Scrape.Workers }),

	"research.upstream": stringKey(func(c *Config) *string { return &c.Research.Upstream }),
	"research.model":    stringKey(func(c *Config) *string { return &c.Research.Model }),

	"events.provider": oneOfKey("events.provider", EventProviders, func(c *Config) *string { return &c.Events.Provider }),
	"events.brokers":  stringKey(func(c *Config) *string { return &c.Events.Brokers }),
	"events.topic":    stringKey(func(c *Config) *string { return &c.Events.Topic }),
}
