package config

import (
	"github.com/nrashid7/infobase/pkg/eventstream/kafka"
	"github.com/nrashid7/infobase/pkg/llm"
	"github.com/nrashid7/infobase/pkg/research"
	"github.com/nrashid7/infobase/pkg/scrape"
)

// Storage drivers.
const (
	StorageMemory   = "memory"
	StorageSQLite   = "sqlite"
	StoragePostgres = "postgres"
)

// StorageDrivers lists the accepted storage.driver values.
var StorageDrivers = []string{StorageMemory, StorageSQLite, StoragePostgres}

// Event providers.
const (
	EventsNone  = "none"
	EventsKafka = "kafka"
)

// EventProviders lists the accepted events.provider values.
var EventProviders = []string{EventsNone, EventsKafka}

const (
	defaultProxyListen = ":8080"
	defaultAPIListen   = ":8081"
	defaultRateLimit   = 30

	defaultClientProxyTarget = "http://localhost:8080"
	defaultClientAPITarget   = "http://localhost:8081"

	defaultRefreshInterval = "15m"
	defaultCacheTTL        = "15m"

	defaultScrapeWorkers = 3
)

// NewDefaultConfig returns a Config with sane defaults for all fields.
// This is the single source of truth for default values.
func NewDefaultConfig() *Config {
	return &Config{
		Version: CurrentV,
		Storage: StorageConfig{
			Driver: StorageSQLite,
		},
		Proxy: ProxyConfig{
			Upstream:  llm.DefaultGatewayURL,
			Model:     llm.DefaultModel,
			Listen:    defaultProxyListen,
			RateLimit: defaultRateLimit,
		},
		API: APIConfig{
			Listen: defaultAPIListen,
		},
		Client: ClientConfig{
			ProxyTarget: defaultClientProxyTarget,
			APITarget:   defaultClientAPITarget,
		},
		Knowledge: KnowledgeConfig{
			RefreshInterval: defaultRefreshInterval,
			CacheTTL:        defaultCacheTTL,
		},
		Scrape: ScrapeConfig{
			FirecrawlURL: scrape.DefaultFirecrawlURL,
			ExtractModel: llm.DefaultModel,
			Workers:      defaultScrapeWorkers,
		},
		Research: ResearchConfig{
			Upstream: research.DefaultBaseURL,
			Model:    research.DefaultModel,
		},
		Events: EventsConfig{
			Provider: EventsNone,
			Topic:    kafka.DefaultTopic,
		},
	}
}
