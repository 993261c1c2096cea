package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"

	"github.com/spf13/viper"

	"github.com/nrashid7/infobase/api"
	"github.com/nrashid7/infobase/pkg/cache/memcache"
	"github.com/nrashid7/infobase/pkg/config"
	"github.com/nrashid7/infobase/pkg/eventstream"
	"github.com/nrashid7/infobase/pkg/knowledge"
	"github.com/nrashid7/infobase/pkg/scrape"
	"github.com/nrashid7/infobase/proxy"
)

// APIServer is an API server with the components it owns.
type APIServer struct {
	*api.Server

	Knowledge *knowledge.Repository
	closers   []func() error
}

// Close shuts the server down and releases its stores.
func (s *APIServer) Close() error {
	var errs []error
	if s.Server != nil {
		errs = append(errs, s.Shutdown())
	}
	for i := len(s.closers) - 1; i >= 0; i-- {
		errs = append(errs, s.closers[i]())
	}
	return errors.Join(errs...)
}

// NewAPIServer builds the API server with its storage, knowledge
// repository, scrape pool and search cache.
func NewAPIServer(ctx context.Context, v *viper.Viper, configDir string, publisher eventstream.Publisher, logger *slog.Logger) (*APIServer, error) {
	s := &APIServer{}
	fail := func(err error) (*APIServer, error) {
		_ = s.Close()
		return nil, err
	}
	store, err := NewStorage(ctx, v, configDir, logger)
	if err != nil {
		return fail(err)
	}
	s.closers = append(s.closers, store.Close)

	repo, err := NewKnowledge(v)
	if err != nil {
		return fail(fmt.Errorf("loading knowledge: %w", err))
	}
	s.Knowledge = repo

	orchestrator, err := NewOrchestrator(v, store, publisher, logger)
	if err != nil {
		return fail(err)
	}
	pool := scrape.NewPool(orchestrator, scrape.PoolConfig{
		Workers: v.GetInt("scrape.workers"),
		Logger:  logger,
	})
	s.closers = append(s.closers, func() error { pool.Close(); return nil })

	searchCache, err := memcache.New(memcache.DefaultConfig())
	if err != nil {
		return fail(err)
	}
	s.closers = append(s.closers, func() error { searchCache.Close(); return nil })

	server, err := api.NewServer(api.Config{
		ListenAddr: v.GetString("api.listen"),
	}, api.Deps{
		Knowledge:   repo,
		Sites:       store,
		Scraper:     orchestrator,
		Bulk:        pool,
		Researcher:  NewResearch(v),
		SearchCache: searchCache,
		Logger:      logger,
	})
	if err != nil {
		return fail(err)
	}
	s.Server = server

	return s, nil
}

// NewProxy builds the assistant endpoint.
func NewProxy(v *viper.Viper, publisher eventstream.Publisher, logger *slog.Logger) (*proxy.Proxy, error) {
	return proxy.New(proxy.Config{
		ListenAddr:  v.GetString("proxy.listen"),
		UpstreamURL: v.GetString("proxy.upstream"),
		APIKey:      v.GetString(config.KeyGatewayAPIKey),
		Model:       v.GetString("proxy.model"),
		RateLimit:   v.GetInt("proxy.rate_limit"),
	}, publisher, logger)
}

// ListenURL turns a listen address such as ":8080" into a URL clients on
// this machine can use.
func ListenURL(addr string) string {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return "http://" + addr
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "localhost"
	}
	return "http://" + net.JoinHostPort(host, port)
}
