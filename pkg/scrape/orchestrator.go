// Package scrape fetches government websites, extracts structured details
// from them with a language model, and stores the result.
package scrape

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/nrashid7/infobase/pkg/eventstream"
	"github.com/nrashid7/infobase/pkg/storage"
)

const (
	// defaultPublishTimeout bounds publishing one scraped event.
	defaultPublishTimeout = 10 * time.Second

	// defaultSettleTimeout bounds the final success or failed write.
	defaultSettleTimeout = 10 * time.Second
)

// Target is a site to scrape.
type Target struct {
	URL        string `json:"url"`
	Name       string `json:"name"`
	CategoryID string `json:"categoryId,omitempty"`
}

// Validate checks the target before any network call.
func (t Target) Validate() error {
	if strings.TrimSpace(t.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidTarget)
	}
	u, err := url.Parse(strings.TrimSpace(t.URL))
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("%w: url must be an absolute http(s) URL", ErrInvalidTarget)
	}
	return nil
}

// Config wires an Orchestrator.
type Config struct {
	Fetcher   Fetcher
	Completer Completer
	Store     storage.Driver

	// Publisher receives a site scraped event per attempt. Optional.
	Publisher eventstream.Publisher

	// Model overrides the completer's default model for extraction.
	Model string

	Logger *slog.Logger
}

// Orchestrator runs scrapes end to end.
type Orchestrator struct {
	fetcher   Fetcher
	completer Completer
	store     storage.Driver
	publisher eventstream.Publisher
	model     string
	logger    *slog.Logger
	now       func() time.Time
}

// New returns an Orchestrator for cfg.
func New(cfg Config) (*Orchestrator, error) {
	if cfg.Fetcher == nil {
		return nil, errors.New("fetcher is required")
	}
	if cfg.Completer == nil {
		return nil, errors.New("completer is required")
	}
	if cfg.Store == nil {
		return nil, errors.New("store is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	return &Orchestrator{
		fetcher:   cfg.Fetcher,
		completer: cfg.Completer,
		store:     cfg.Store,
		publisher: cfg.Publisher,
		model:     cfg.Model,
		logger:    logger,
		now:       time.Now,
	}, nil
}

// Scrape fetches and extracts target and stores the outcome. The row is
// marked in_progress first, then success with the extracted details or
// failed with the error message. Provider rate limits and quota errors are
// returned as is and not retried.
func (o *Orchestrator) Scrape(ctx context.Context, target Target) (*storage.Site, error) {
	if err := target.Validate(); err != nil {
		return nil, err
	}
	target.URL = strings.TrimSpace(target.URL)
	target.Name = strings.TrimSpace(target.Name)

	start := o.now()
	logger := o.logger.With("url", target.URL, "name", target.Name)

	site, err := o.begin(ctx, target)
	if err != nil {
		return nil, err
	}

	extraction, markdown, scrapeErr := o.run(ctx, target)
	if scrapeErr != nil {
		logger.Warn("scrape failed", "error", scrapeErr)
		settleCtx, cancel := settleContext(ctx)
		defer cancel()
		if err := o.store.SetStatus(settleCtx, target.URL, storage.StatusFailed, scrapeErr.Error()); err != nil {
			logger.Error("could not record scrape failure", "error", err)
		}
		site.Status = storage.StatusFailed
		site.ErrorMessage = scrapeErr.Error()
		o.publish(site, start)
		return nil, scrapeErr
	}

	finished := o.now().UTC()
	site.Description = extraction.Description
	site.Mission = extraction.Mission
	site.Services = extraction.Services
	site.ContactInfo = extraction.ContactInfo
	site.OfficeHours = extraction.OfficeHours
	site.RelatedLinks = extraction.RelatedLinks
	site.RawMarkdown = markdown
	site.Status = storage.StatusSuccess
	site.ErrorMessage = ""
	site.LastScrapedAt = &finished

	settleCtx, cancel := settleContext(ctx)
	defer cancel()
	stored, err := o.store.Upsert(settleCtx, site)
	if err != nil {
		return nil, fmt.Errorf("storing scraped site: %w", err)
	}

	logger.Info("site scraped",
		"services", len(stored.Services),
		"duration", time.Since(start),
	)
	o.publish(stored, start)
	return stored, nil
}

// settleContext outlives ctx's cancellation so an attempt that has started
// always ends as success or failed.
func settleContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), defaultSettleTimeout)
}

// begin marks the target in progress, creating its row if needed.
func (o *Orchestrator) begin(ctx context.Context, target Target) (*storage.Site, error) {
	existing, err := o.store.Get(ctx, target.URL)
	var notFound storage.NotFoundError
	switch {
	case err == nil:
		existing.Name = target.Name
		if target.CategoryID != "" {
			existing.CategoryID = target.CategoryID
		}
		existing.Status = storage.StatusInProgress
		existing.ErrorMessage = ""
		return o.upsert(ctx, existing)
	case errors.As(err, &notFound):
		return o.upsert(ctx, &storage.Site{
			URL:        target.URL,
			Name:       target.Name,
			CategoryID: target.CategoryID,
			Status:     storage.StatusInProgress,
		})
	default:
		return nil, fmt.Errorf("loading site: %w", err)
	}
}

func (o *Orchestrator) upsert(ctx context.Context, site *storage.Site) (*storage.Site, error) {
	stored, err := o.store.Upsert(ctx, site)
	if err != nil {
		return nil, fmt.Errorf("marking site in progress: %w", err)
	}
	return stored, nil
}

func (o *Orchestrator) run(ctx context.Context, target Target) (*Extraction, string, error) {
	page, err := o.fetcher.Fetch(ctx, target.URL)
	if err != nil {
		return nil, "", err
	}
	if strings.TrimSpace(page.Markdown) == "" {
		return nil, "", errors.New("page has no readable content")
	}

	extraction, err := Extract(ctx, o.completer, o.model, target.Name, page.Markdown)
	if err != nil {
		return nil, "", err
	}
	return extraction, page.Markdown, nil
}

func (o *Orchestrator) publish(site *storage.Site, start time.Time) {
	if o.publisher == nil {
		return
	}

	event := &eventstream.SiteScrapedEvent{
		Envelope:     eventstream.NewEnvelope(eventstream.EventTypeSiteScraped),
		SiteID:       site.ID,
		URL:          site.URL,
		Name:         site.Name,
		CategoryID:   site.CategoryID,
		Status:       string(site.Status),
		ErrorMessage: site.ErrorMessage,
		DurationMs:   o.now().Sub(start).Milliseconds(),
		ServiceCount: len(site.Services),
	}

	// The caller's context may already be done when a scrape fails on it.
	ctx, cancel := context.WithTimeout(context.Background(), defaultPublishTimeout)
	defer cancel()
	if err := o.publisher.PublishSiteScraped(ctx, event); err != nil {
		o.logger.Error("publishing scrape event failed", "url", site.URL, "error", err)
	}
}
