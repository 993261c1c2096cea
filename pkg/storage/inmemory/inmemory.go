// Package inmemory provides a map-backed storage driver for tests and
// single-process use.
package inmemory

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"time"

	"github.com/nrashid7/infobase/pkg/storage"
)

// Driver implements storage.Driver using in-memory maps.
type Driver struct {
	// mu is a read write sync mutex for locking the site maps
	mu sync.RWMutex

	// sites is keyed by URL; ids maps IDs back to URLs
	sites map[string]*storage.Site
	ids   map[string]string

	now func() time.Time
}

// NewDriver creates a new in-memory storer.
func NewDriver() *Driver {
	return &Driver{
		sites: make(map[string]*storage.Site),
		ids:   make(map[string]string),
		now:   time.Now,
	}
}

// Upsert stores site, replacing any site with the same URL.
func (d *Driver) Upsert(_ context.Context, site *storage.Site) (*storage.Site, error) {
	if site == nil {
		return nil, storage.ErrNilSite
	}
	row := site.Clone()

	d.mu.Lock()
	defer d.mu.Unlock()

	if existing, ok := d.sites[row.URL]; ok {
		row.ID = existing.ID
		row.CreatedAt = existing.CreatedAt
	} else {
		row.ID = ""
		row.CreatedAt = time.Time{}
	}
	if err := storage.Prepare(row, d.now()); err != nil {
		return nil, err
	}

	d.sites[row.URL] = row
	d.ids[row.ID] = row.URL
	return row.Clone(), nil
}

// Get retrieves a site by URL.
func (d *Driver) Get(_ context.Context, url string) (*storage.Site, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	site, ok := d.sites[url]
	if !ok {
		return nil, storage.NotFoundError{URL: url}
	}
	return site.Clone(), nil
}

// GetByID retrieves a site by ID.
func (d *Driver) GetByID(_ context.Context, id string) (*storage.Site, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	url, ok := d.ids[id]
	if !ok {
		return nil, storage.NotFoundError{ID: id}
	}
	return d.sites[url].Clone(), nil
}

// List returns the sites matching opts ordered by name, then URL.
func (d *Driver) List(_ context.Context, opts storage.ListOptions) ([]*storage.Site, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	result := []*storage.Site{}
	for _, site := range d.sites {
		if opts.Matches(site) {
			result = append(result, site.Clone())
		}
	}
	slices.SortFunc(result, func(a, b *storage.Site) int {
		return cmp.Or(cmp.Compare(a.Name, b.Name), cmp.Compare(a.URL, b.URL))
	})
	return result, nil
}

// SetStatus updates the status and error message of the site at url.
func (d *Driver) SetStatus(_ context.Context, url string, status storage.Status, message string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	site, ok := d.sites[url]
	if !ok {
		return storage.NotFoundError{URL: url}
	}
	if err := status.Validate(); err != nil {
		return err
	}

	now := d.now().UTC()
	site.Status = status
	site.ErrorMessage = message
	site.UpdatedAt = now
	if storage.Finished(status) {
		site.LastScrapedAt = &now
	}
	return nil
}

// Counts returns the number of sites per status.
func (d *Driver) Counts(_ context.Context) (map[storage.Status]int, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	counts := storage.EmptyCounts()
	for _, site := range d.sites {
		counts[site.Status]++
	}
	return counts, nil
}

// Close is a no-op for the in-memory driver.
func (d *Driver) Close() error {
	return nil
}
