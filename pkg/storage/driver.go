// Package storage persists scraped government sites.
package storage

import (
	"context"
)

// Driver defines the interface for persisting and retrieving scraped sites
// in a storage backend. Sites are keyed by URL: writing a site whose URL
// already exists replaces it (last write wins) but keeps its ID and
// creation time.
type Driver interface {
	// Upsert inserts or replaces the site with the same URL and returns the
	// stored row.
	Upsert(ctx context.Context, site *Site) (*Site, error)

	// Get retrieves a site by URL.
	Get(ctx context.Context, url string) (*Site, error)

	// GetByID retrieves a site by ID.
	GetByID(ctx context.Context, id string) (*Site, error)

	// List returns sites matching opts ordered by name.
	List(ctx context.Context, opts ListOptions) ([]*Site, error)

	// SetStatus updates only the scrape status and error message of a site.
	SetStatus(ctx context.Context, url string, status Status, message string) error

	// Counts returns the number of sites per status. Every status is present.
	Counts(ctx context.Context) (map[Status]int, error)

	// Close closes the store and releases any resources.
	Close() error
}

// ListOptions filters List. Zero values match everything.
type ListOptions struct {
	Status     Status
	CategoryID string
}

// Matches reports whether site passes the filter.
func (o ListOptions) Matches(site *Site) bool {
	if o.Status != "" && site.Status != o.Status {
		return false
	}
	if o.CategoryID != "" && site.CategoryID != o.CategoryID {
		return false
	}
	return true
}
