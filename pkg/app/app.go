// Package app assembles infobase components from resolved configuration.
// Commands share it so "serve", "scrape" and "guides" build the same stores
// and clients from the same keys.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/nrashid7/infobase/pkg/cache/filecache"
	"github.com/nrashid7/infobase/pkg/config"
	"github.com/nrashid7/infobase/pkg/dotdir"
	"github.com/nrashid7/infobase/pkg/eventstream"
	"github.com/nrashid7/infobase/pkg/eventstream/kafka"
	"github.com/nrashid7/infobase/pkg/eventstream/nop"
	"github.com/nrashid7/infobase/pkg/knowledge"
	"github.com/nrashid7/infobase/pkg/llm"
	"github.com/nrashid7/infobase/pkg/research"
	"github.com/nrashid7/infobase/pkg/scrape"
	"github.com/nrashid7/infobase/pkg/storage"
	"github.com/nrashid7/infobase/pkg/storage/inmemory"
	"github.com/nrashid7/infobase/pkg/storage/postgres"
	"github.com/nrashid7/infobase/pkg/storage/sqlite"
)

const (
	defaultSQLiteFile = "infobase.sqlite"
	defaultCacheDir   = "cache"
)

// NewStorage opens the site store named by storage.driver. SQLite defaults
// to infobase.sqlite in the .infobase/ directory.
func NewStorage(ctx context.Context, v *viper.Viper, configDir string, logger *slog.Logger) (storage.Driver, error) {
	switch driver := v.GetString("storage.driver"); driver {
	case config.StorageMemory:
		logger.Info("using in-memory storage")
		return inmemory.NewDriver(), nil

	case config.StoragePostgres:
		dsn := v.GetString("storage.postgres_dsn")
		if dsn == "" {
			return nil, errors.New("storage.postgres_dsn is required for the postgres driver")
		}
		d, err := postgres.NewDriver(ctx, dsn)
		if err != nil {
			return nil, fmt.Errorf("failed to create PostgreSQL driver: %w", err)
		}
		logger.Info("using PostgreSQL storage")
		return d, nil

	case config.StorageSQLite, "":
		path := v.GetString("storage.sqlite_path")
		if path == "" {
			dir, err := dotdir.NewManager().Ensure(configDir)
			if err != nil {
				return nil, err
			}
			path = filepath.Join(dir, defaultSQLiteFile)
		}
		d, err := sqlite.NewSQLiteDriver(path)
		if err != nil {
			return nil, fmt.Errorf("failed to create SQLite driver: %w", err)
		}
		logger.Info("using SQLite storage", "path", path)
		return d, nil

	default:
		return nil, fmt.Errorf("unknown storage driver %q", driver)
	}
}

// NewKnowledge loads the knowledge repository: the dataset file when
// knowledge.data_path is set, the bundled dataset otherwise.
func NewKnowledge(v *viper.Viper) (*knowledge.Repository, error) {
	if path := v.GetString("knowledge.data_path"); path != "" {
		return knowledge.NewFileRepository(path)
	}
	return knowledge.NewBundledRepository()
}

// RunKnowledgeUpdates keeps repo current until ctx is done: it watches the
// dataset file and polls the remote URL when those are configured. It
// returns immediately when neither is.
func RunKnowledgeUpdates(ctx context.Context, v *viper.Viper, configDir string, repo *knowledge.Repository, logger *slog.Logger) error {
	path := v.GetString("knowledge.data_path")
	remote := v.GetString("knowledge.remote_url")
	if path == "" && remote == "" {
		return nil
	}

	errCh := make(chan error, 2)
	running := 0

	if path != "" {
		running++
		go func() {
			errCh <- knowledge.Watch(ctx, repo, path, logger)
		}()
	}

	if remote != "" {
		cacheDir := v.GetString("knowledge.cache_dir")
		if cacheDir == "" {
			dir, err := dotdir.NewManager().Ensure(configDir)
			if err != nil {
				return err
			}
			cacheDir = filepath.Join(dir, defaultCacheDir)
		}
		store, err := filecache.New(cacheDir)
		if err != nil {
			return err
		}

		refresher := knowledge.NewRefresher(repo, knowledge.RefresherConfig{
			URL:       remote,
			Interval:  v.GetDuration("knowledge.refresh_interval"),
			Freshness: v.GetDuration("knowledge.cache_ttl"),
			Cache:     store,
			Logger:    logger,
		})
		running++
		go func() {
			refresher.Run(ctx)
			errCh <- ctx.Err()
		}()
	}

	var first error
	for range running {
		if err := <-errCh; err != nil && !errors.Is(err, context.Canceled) && first == nil {
			first = err
		}
	}
	return first
}

// NewPublisher returns the event publisher named by events.provider.
func NewPublisher(v *viper.Viper) (eventstream.Publisher, error) {
	switch provider := v.GetString("events.provider"); provider {
	case config.EventsKafka:
		var brokers []string
		for b := range strings.SplitSeq(v.GetString("events.brokers"), ",") {
			if b = strings.TrimSpace(b); b != "" {
				brokers = append(brokers, b)
			}
		}
		return kafka.NewPublisher(kafka.Config{
			Brokers: brokers,
			Topic:   v.GetString("events.topic"),
		})
	case config.EventsNone, "":
		return nop.NewPublisher(), nil
	default:
		return nil, fmt.Errorf("unknown events provider %q", provider)
	}
}

// NewGateway returns the AI gateway client used for extraction.
func NewGateway(v *viper.Viper) *llm.Client {
	return llm.NewClient(llm.ClientConfig{
		BaseURL: v.GetString("proxy.upstream"),
		APIKey:  v.GetString(config.KeyGatewayAPIKey),
		Model:   v.GetString("proxy.model"),
	})
}

// NewOrchestrator wires a scrape orchestrator over store. Missing provider
// keys are reported when a scrape runs, not here.
func NewOrchestrator(v *viper.Viper, store storage.Driver, publisher eventstream.Publisher, logger *slog.Logger) (*scrape.Orchestrator, error) {
	return scrape.New(scrape.Config{
		Fetcher: scrape.NewFirecrawl(scrape.FirecrawlConfig{
			BaseURL: v.GetString("scrape.firecrawl_url"),
			APIKey:  v.GetString(config.KeyFirecrawlAPIKey),
		}),
		Completer: NewGateway(v),
		Store:     store,
		Publisher: publisher,
		Model:     v.GetString("scrape.extract_model"),
		Logger:    logger,
	})
}

// NewResearch returns the research client.
func NewResearch(v *viper.Viper) *research.Client {
	return research.NewClient(research.Config{
		BaseURL: v.GetString("research.upstream"),
		APIKey:  v.GetString(config.KeyResearchAPIKey),
		Model:   v.GetString("research.model"),
	})
}
