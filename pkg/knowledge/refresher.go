package knowledge

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/nrashid7/infobase/pkg/cache"
	"github.com/nrashid7/infobase/pkg/llm"
)

const (
	// DefaultFreshness is how long a fetched remote dataset is reused
	// before it is requested again.
	DefaultFreshness = 15 * time.Minute

	// maxDatasetBytes bounds a remote dataset body.
	maxDatasetBytes = 32 << 20
)

// RefresherConfig configures a Refresher.
type RefresherConfig struct {
	// URL serves a dataset in the bundled JSON shape.
	URL string

	// Interval between refreshes in Run. Defaults to DefaultFreshness.
	Interval time.Duration

	// Freshness is the cache TTL of a fetched body. Defaults to
	// DefaultFreshness.
	Freshness time.Duration

	// Cache keeps fetched bodies. Optional.
	Cache cache.Store

	HTTPClient *http.Client
	Logger     *slog.Logger
}

// Refresher swaps remote datasets into a Repository. Failures never touch
// the current snapshot.
type Refresher struct {
	repo       *Repository
	url        string
	interval   time.Duration
	freshness  time.Duration
	cache      cache.Store
	httpClient *http.Client
	logger     *slog.Logger
}

// NewRefresher returns a Refresher feeding repo.
func NewRefresher(repo *Repository, cfg RefresherConfig) *Refresher {
	r := &Refresher{
		repo:       repo,
		url:        cfg.URL,
		interval:   cfg.Interval,
		freshness:  cfg.Freshness,
		cache:      cfg.Cache,
		httpClient: cfg.HTTPClient,
		logger:     cfg.Logger,
	}
	if r.interval <= 0 {
		r.interval = DefaultFreshness
	}
	if r.freshness <= 0 {
		r.freshness = DefaultFreshness
	}
	if r.httpClient == nil {
		r.httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if r.logger == nil {
		r.logger = slog.New(slog.DiscardHandler)
	}
	return r
}

// Refresh loads the remote dataset, from cache when a fresh copy exists,
// and swaps it in.
func (r *Refresher) Refresh(ctx context.Context) error {
	if r.url == "" {
		return nil
	}

	if r.cache != nil {
		if body, ok := r.cache.Get(r.url); ok {
			ds, err := Parse(body)
			if err == nil {
				return r.repo.Swap(ds, OriginRemote)
			}
			// A bad cached body is dropped and refetched.
			_ = r.cache.Delete(r.url)
		}
	}

	body, err := r.fetch(ctx)
	if err != nil {
		return err
	}
	ds, err := Parse(body)
	if err != nil {
		return err
	}
	if err := r.repo.Swap(ds, OriginRemote); err != nil {
		return err
	}

	if r.cache != nil {
		if err := r.cache.Set(r.url, body, r.freshness); err != nil {
			r.logger.Warn("could not cache knowledge dataset", "error", err)
		}
	}
	return nil
}

func (r *Refresher) fetch(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating knowledge request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching knowledge dataset: %w", err)
	}
	defer llm.DrainAndClose(resp.Body)

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetching knowledge dataset: unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxDatasetBytes))
	if err != nil {
		return nil, fmt.Errorf("reading knowledge dataset: %w", err)
	}
	return body, nil
}

// Run refreshes immediately and then every interval until ctx is done.
// Errors are logged at debug level and the current snapshot stays.
func (r *Refresher) Run(ctx context.Context) {
	if r.url == "" {
		return
	}

	r.refreshQuietly(ctx)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.refreshQuietly(ctx)
		}
	}
}

func (r *Refresher) refreshQuietly(ctx context.Context) {
	if err := r.Refresh(ctx); err != nil {
		r.logger.Debug("knowledge refresh failed, keeping current dataset",
			"url", r.url,
			"origin", r.repo.Origin(),
			"error", err,
		)
		return
	}
	r.logger.Debug("knowledge refreshed", "version", r.repo.Version())
}
