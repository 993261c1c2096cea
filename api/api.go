package api

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"time"

	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"

	"github.com/nrashid7/infobase/api/mcp"
	"github.com/nrashid7/infobase/pkg/cache"
	"github.com/nrashid7/infobase/pkg/knowledge"
	"github.com/nrashid7/infobase/pkg/research"
	"github.com/nrashid7/infobase/pkg/scrape"
	"github.com/nrashid7/infobase/pkg/storage"
)

// Scraper scrapes a single site synchronously.
type Scraper interface {
	Scrape(ctx context.Context, target scrape.Target) (*storage.Site, error)
}

// BulkQueue accepts targets for background scraping.
type BulkQueue interface {
	Enqueue(targets ...scrape.Target) int
}

// Researcher answers research queries.
type Researcher interface {
	Research(ctx context.Context, query string) (*research.Result, error)
}

// Deps are the components the server serves. Knowledge and Sites are
// required; routes backed by a nil optional dependency answer 503.
type Deps struct {
	Knowledge *knowledge.Repository
	Sites     storage.Driver

	Scraper    Scraper
	Bulk       BulkQueue
	Researcher Researcher

	// SearchCache caches /search responses. Optional.
	SearchCache cache.Store

	Logger *slog.Logger
}

// Server is the API server for the knowledge base and scraped sites.
type Server struct {
	config Config
	deps   Deps
	logger *slog.Logger
	mcp    *mcp.Server
	app    *fiber.App
}

// NewServer creates a new API server.
// The storage driver is injected to allow sharing with the scrape
// orchestrator when both run in one process.
func NewServer(config Config, deps Deps) (*Server, error) {
	if deps.Knowledge == nil {
		return nil, errors.New("knowledge repository is required")
	}
	if deps.Sites == nil {
		return nil, errors.New("storage driver is required")
	}
	if deps.Logger == nil {
		deps.Logger = slog.New(slog.DiscardHandler)
	}
	if config.SearchCacheTTL <= 0 {
		config.SearchCacheTTL = DefaultSearchCacheTTL
	}

	mcpServer, err := mcp.NewServer(mcp.Config{
		Knowledge: deps.Knowledge,
		Logger:    deps.Logger,
	})
	if err != nil {
		return nil, err
	}

	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})

	s := &Server{
		config: config,
		deps:   deps,
		logger: deps.Logger,
		mcp:    mcpServer,
		app:    app,
	}

	app.Use(s.logRequests)

	app.Get("/ping", s.handlePing)
	app.Get("/guides", s.handleListGuides)
	app.Get("/guides/:id", s.handleGetGuide)
	app.Get("/guides/:id/formatted", s.handleFormattedGuide)
	app.Get("/agencies", s.handleListAgencies)
	app.Get("/categories", s.handleListCategories)
	app.Get("/portals", s.handleListPortals)
	app.Get("/stats", s.handleStats)
	app.Get("/search", s.handleSearch)

	app.Get("/sites", s.handleListSites)
	app.Get("/sites/:id", s.handleGetSite)
	app.Post("/scrape", s.handleScrape)
	app.Post("/scrape/bulk", s.handleBulkScrape)

	app.Post("/research", s.handleResearch)

	app.All("/mcp", adaptor.HTTPHandler(mcpServer.Handler()))

	return s, nil
}

// Run starts the API server on the configured address.
func (s *Server) Run() error {
	s.logger.Info("starting API server", "listen", s.config.ListenAddr)
	return s.app.Listen(s.config.ListenAddr)
}

// RunWithListener starts the API server using the provided listener.
func (s *Server) RunWithListener(listener net.Listener) error {
	s.logger.Info("starting API server", "listen", listener.Addr().String())
	return s.app.Listener(listener)
}

// Shutdown gracefully shuts down the API server.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}

func (s *Server) logRequests(c *fiber.Ctx) error {
	start := time.Now()
	err := c.Next()
	s.logger.Debug("api request",
		"method", c.Method(),
		"path", c.Path(),
		"status", c.Response().StatusCode(),
		"duration", time.Since(start),
	)
	return err
}
