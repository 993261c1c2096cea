package scrape

import (
	"context"
	"errors"
	"log/slog"
	"sync"
)

var (
	defaultWorkers   = 3
	defaultQueueSize = 512
)

// Summary reports a bulk run.
type Summary struct {
	Total     int               `json:"total"`
	Succeeded int               `json:"succeeded"`
	Failed    int               `json:"failed"`
	Skipped   int               `json:"skipped"`
	Errors    map[string]string `json:"errors,omitempty"`
}

// ScrapeAll scrapes targets with the given number of workers and waits for
// them. A payment-required error stops the run: targets not yet started
// count as skipped.
func (o *Orchestrator) ScrapeAll(ctx context.Context, targets []Target, workers int) Summary {
	if workers <= 0 {
		workers = defaultWorkers
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		mu      sync.Mutex
		wg      sync.WaitGroup
		summary = Summary{Total: len(targets), Errors: map[string]string{}}
		jobs    = make(chan Target)
	)

	wg.Add(workers)
	for range workers {
		go func() {
			defer wg.Done()
			for t := range jobs {
				if ctx.Err() != nil {
					mu.Lock()
					summary.Skipped++
					mu.Unlock()
					continue
				}
				_, err := o.Scrape(ctx, t)

				mu.Lock()
				if err != nil {
					summary.Failed++
					summary.Errors[t.URL] = err.Error()
				} else {
					summary.Succeeded++
				}
				mu.Unlock()

				if errors.Is(err, ErrPaymentRequired) {
					o.logger.Warn("scraping quota exhausted, stopping bulk run")
					cancel()
				}
			}
		}()
	}

	sent := 0
feed:
	for _, t := range targets {
		select {
		case <-ctx.Done():
			break feed
		case jobs <- t:
			sent++
		}
	}
	close(jobs)
	wg.Wait()

	summary.Skipped += len(targets) - sent
	if len(summary.Errors) == 0 {
		summary.Errors = nil
	}
	return summary
}

// PoolConfig configures a Pool.
type PoolConfig struct {
	// Workers is the number of concurrent scrapes (defaults to 3).
	Workers int

	// QueueSize is the capacity of the target queue (defaults to 512).
	QueueSize int

	Logger *slog.Logger
}

// Pool scrapes queued targets in the background.
type Pool struct {
	orchestrator *Orchestrator
	queue        chan Target
	wg           sync.WaitGroup
	logger       *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	closed bool
}

// NewPool creates a Pool and starts its workers.
func NewPool(o *Orchestrator, cfg PoolConfig) *Pool {
	if cfg.Workers <= 0 {
		cfg.Workers = defaultWorkers
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = defaultQueueSize
	}
	logger := cfg.Logger
	if logger == nil {
		logger = o.logger
	}

	ctx, cancel := context.WithCancel(context.Background())
	p := &Pool{
		orchestrator: o,
		queue:        make(chan Target, cfg.QueueSize),
		logger:       logger,
		ctx:          ctx,
		cancel:       cancel,
	}

	p.wg.Add(cfg.Workers)
	for i := range cfg.Workers {
		go p.worker(i)
	}
	return p
}

// Enqueue submits targets and returns how many were queued. Invalid
// targets and targets that do not fit in the queue are dropped.
func (p *Pool) Enqueue(targets ...Target) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return 0
	}

	queued := 0
	for _, t := range targets {
		if err := t.Validate(); err != nil {
			p.logger.Warn("scrape target rejected", "url", t.URL, "error", err)
			continue
		}
		select {
		case p.queue <- t:
			queued++
		default:
			p.logger.Error("scrape queue full, target dropped", "url", t.URL)
		}
	}
	return queued
}

// Pending returns the number of queued targets not yet started.
func (p *Pool) Pending() int {
	return len(p.queue)
}

// Close stops accepting targets, cancels in-flight scrapes and waits for
// the workers to exit. Queued targets that have not started are dropped.
func (p *Pool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.queue)
	p.mu.Unlock()

	p.cancel()
	p.wg.Wait()
}

func (p *Pool) worker(id int) {
	defer p.wg.Done()
	p.logger.Debug("scrape worker started", "worker_id", id)

	for t := range p.queue {
		if p.ctx.Err() != nil {
			continue
		}
		_, err := p.orchestrator.Scrape(p.ctx, t)
		if errors.Is(err, ErrPaymentRequired) {
			p.logger.Warn("scraping quota exhausted", "url", t.URL)
		}
	}

	p.logger.Debug("scrape worker stopped", "worker_id", id)
}
