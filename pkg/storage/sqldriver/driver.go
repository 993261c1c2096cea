// Package sqldriver implements storage.Driver over database/sql. It is
// database-agnostic and is embedded by the sqlite and postgres drivers,
// which supply a Dialect.
package sqldriver

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/nrashid7/infobase/pkg/storage"
)

// Dialect holds what differs between databases.
type Dialect struct {
	// Name is used in error messages.
	Name string

	// Schema is run on open. It must be idempotent.
	Schema []string

	// NumberedParams rewrites "?" placeholders to "$1", "$2", ...
	NumberedParams bool
}

// Driver provides storage operations using a *sql.DB.
type Driver struct {
	DB      *sql.DB
	dialect Dialect
	now     func() time.Time
}

// New runs the dialect schema against db and returns a Driver over it.
func New(ctx context.Context, db *sql.DB, dialect Dialect) (*Driver, error) {
	for _, stmt := range dialect.Schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return nil, fmt.Errorf("failed to create %s schema: %w", dialect.Name, err)
		}
	}
	return &Driver{DB: db, dialect: dialect, now: time.Now}, nil
}

const siteColumns = `id, url, name, category_id, description, mission, services,
	contact_info, office_hours, related_links, raw_markdown, scrape_status,
	error_message, last_scraped_at, created_at, updated_at`

func (d *Driver) rebind(query string) string {
	if !d.dialect.NumberedParams {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Upsert inserts site or replaces the row with the same URL. The existing
// ID and created_at are kept.
func (d *Driver) Upsert(ctx context.Context, site *storage.Site) (*storage.Site, error) {
	if site == nil {
		return nil, storage.ErrNilSite
	}
	row := site.Clone()
	row.ID = ""
	row.CreatedAt = time.Time{}
	if err := storage.Prepare(row, d.now()); err != nil {
		return nil, err
	}

	services, err := json.Marshal(row.Services)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal services: %w", err)
	}
	contact, err := json.Marshal(row.ContactInfo)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal contact info: %w", err)
	}
	links, err := json.Marshal(row.RelatedLinks)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal related links: %w", err)
	}

	var lastScraped sql.NullTime
	if row.LastScrapedAt != nil {
		lastScraped = sql.NullTime{Time: row.LastScrapedAt.UTC(), Valid: true}
	}

	query := d.rebind(`INSERT INTO sites (` + siteColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (url) DO UPDATE SET
			name = excluded.name,
			category_id = excluded.category_id,
			description = excluded.description,
			mission = excluded.mission,
			services = excluded.services,
			contact_info = excluded.contact_info,
			office_hours = excluded.office_hours,
			related_links = excluded.related_links,
			raw_markdown = excluded.raw_markdown,
			scrape_status = excluded.scrape_status,
			error_message = excluded.error_message,
			last_scraped_at = excluded.last_scraped_at,
			updated_at = excluded.updated_at`)

	_, err = d.DB.ExecContext(ctx, query,
		row.ID, row.URL, row.Name, row.CategoryID, row.Description, row.Mission,
		string(services), string(contact), row.OfficeHours, string(links),
		row.RawMarkdown, string(row.Status), row.ErrorMessage, lastScraped,
		row.CreatedAt, row.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert site: %w", err)
	}

	return d.Get(ctx, row.URL)
}

// Get retrieves a site by URL.
func (d *Driver) Get(ctx context.Context, url string) (*storage.Site, error) {
	query := d.rebind(`SELECT ` + siteColumns + ` FROM sites WHERE url = ?`)
	site, err := scanSite(d.DB.QueryRowContext(ctx, query, url))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.NotFoundError{URL: url}
	}
	return site, err
}

// GetByID retrieves a site by ID.
func (d *Driver) GetByID(ctx context.Context, id string) (*storage.Site, error) {
	query := d.rebind(`SELECT ` + siteColumns + ` FROM sites WHERE id = ?`)
	site, err := scanSite(d.DB.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.NotFoundError{ID: id}
	}
	return site, err
}

// List returns the sites matching opts ordered by name, then URL.
func (d *Driver) List(ctx context.Context, opts storage.ListOptions) ([]*storage.Site, error) {
	var (
		where []string
		args  []any
	)
	if opts.Status != "" {
		where = append(where, "scrape_status = ?")
		args = append(args, string(opts.Status))
	}
	if opts.CategoryID != "" {
		where = append(where, "category_id = ?")
		args = append(args, opts.CategoryID)
	}

	query := `SELECT ` + siteColumns + ` FROM sites`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY name, url"

	rows, err := d.DB.QueryContext(ctx, d.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list sites: %w", err)
	}
	defer rows.Close()

	result := []*storage.Site{}
	for rows.Next() {
		site, err := scanSite(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, site)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list sites: %w", err)
	}
	return result, nil
}

// SetStatus updates the status and error message of the site at url.
// Finishing statuses also stamp last_scraped_at.
func (d *Driver) SetStatus(ctx context.Context, url string, status storage.Status, message string) error {
	if err := status.Validate(); err != nil {
		return err
	}

	now := d.now().UTC()
	var (
		res sql.Result
		err error
	)
	if storage.Finished(status) {
		res, err = d.DB.ExecContext(ctx, d.rebind(
			`UPDATE sites SET scrape_status = ?, error_message = ?, updated_at = ?, last_scraped_at = ? WHERE url = ?`),
			string(status), message, now, now, url)
	} else {
		res, err = d.DB.ExecContext(ctx, d.rebind(
			`UPDATE sites SET scrape_status = ?, error_message = ?, updated_at = ? WHERE url = ?`),
			string(status), message, now, url)
	}
	if err != nil {
		return fmt.Errorf("failed to set site status: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to set site status: %w", err)
	}
	if n == 0 {
		return storage.NotFoundError{URL: url}
	}
	return nil
}

// Counts returns the number of sites per status.
func (d *Driver) Counts(ctx context.Context) (map[storage.Status]int, error) {
	rows, err := d.DB.QueryContext(ctx, `SELECT scrape_status, COUNT(*) FROM sites GROUP BY scrape_status`)
	if err != nil {
		return nil, fmt.Errorf("failed to count sites: %w", err)
	}
	defer rows.Close()

	counts := storage.EmptyCounts()
	for rows.Next() {
		var (
			status string
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("failed to count sites: %w", err)
		}
		counts[storage.Status(status)] = n
	}
	return counts, rows.Err()
}

// Close closes the database.
func (d *Driver) Close() error {
	return d.DB.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSite(row scanner) (*storage.Site, error) {
	var (
		site                     storage.Site
		status                   string
		services, contact, links string
		lastScraped              sql.NullTime
	)
	err := row.Scan(
		&site.ID, &site.URL, &site.Name, &site.CategoryID, &site.Description,
		&site.Mission, &services, &contact, &site.OfficeHours, &links,
		&site.RawMarkdown, &status, &site.ErrorMessage, &lastScraped,
		&site.CreatedAt, &site.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan site: %w", err)
	}

	site.Status = storage.Status(status)
	if lastScraped.Valid {
		t := lastScraped.Time.UTC()
		site.LastScrapedAt = &t
	}
	site.CreatedAt = site.CreatedAt.UTC()
	site.UpdatedAt = site.UpdatedAt.UTC()

	if err := json.Unmarshal([]byte(services), &site.Services); err != nil {
		return nil, fmt.Errorf("failed to unmarshal services: %w", err)
	}
	if err := json.Unmarshal([]byte(contact), &site.ContactInfo); err != nil {
		return nil, fmt.Errorf("failed to unmarshal contact info: %w", err)
	}
	if err := json.Unmarshal([]byte(links), &site.RelatedLinks); err != nil {
		return nil, fmt.Errorf("failed to unmarshal related links: %w", err)
	}
	return &site, nil
}
