package storage

import (
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
)

// Status is the scrape state of a site.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusSuccess    Status = "success"
	StatusFailed     Status = "failed"
)

// Statuses lists every status.
var Statuses = []Status{StatusPending, StatusInProgress, StatusSuccess, StatusFailed}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	return slices.Contains(Statuses, s)
}

// Validate returns an error for unknown statuses.
func (s Status) Validate() error {
	if !s.Valid() {
		return fmt.Errorf("unknown site status %q", string(s))
	}
	return nil
}

// Service is one service a site offers.
type Service struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	URL         string `json:"url,omitempty"`
}

// Link is a related link found on a site.
type Link struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

// Site is the scraped record of one government website.
type Site struct {
	ID            string            `json:"id"`
	URL           string            `json:"url"`
	Name          string            `json:"name"`
	CategoryID    string            `json:"category_id,omitempty"`
	Description   string            `json:"description,omitempty"`
	Mission       string            `json:"mission,omitempty"`
	Services      []Service         `json:"services"`
	ContactInfo   map[string]string `json:"contact_info"`
	OfficeHours   string            `json:"office_hours,omitempty"`
	RelatedLinks  []Link            `json:"related_links"`
	RawMarkdown   string            `json:"raw_markdown,omitempty"`
	Status        Status            `json:"scrape_status"`
	ErrorMessage  string            `json:"error_message,omitempty"`
	LastScrapedAt *time.Time        `json:"last_scraped_at,omitempty"`
	CreatedAt     time.Time         `json:"created_at"`
	UpdatedAt     time.Time         `json:"updated_at"`
}

// Prepare validates site for writing and fills the ID, status and empty
// collections. now stamps UpdatedAt, and CreatedAt for new rows.
func Prepare(site *Site, now time.Time) error {
	if site == nil {
		return ErrNilSite
	}
	if site.URL == "" {
		return ErrMissingURL
	}
	if site.ID == "" {
		site.ID = uuid.NewString()
	}
	if site.Status == "" {
		site.Status = StatusPending
	}
	if err := site.Status.Validate(); err != nil {
		return err
	}
	if site.Services == nil {
		site.Services = []Service{}
	}
	if site.ContactInfo == nil {
		site.ContactInfo = map[string]string{}
	}
	if site.RelatedLinks == nil {
		site.RelatedLinks = []Link{}
	}
	now = now.UTC()
	if site.CreatedAt.IsZero() {
		site.CreatedAt = now
	}
	site.UpdatedAt = now
	return nil
}

// Finished reports whether status ends a scrape attempt.
func Finished(status Status) bool {
	return status == StatusSuccess || status == StatusFailed
}

// Clone returns a deep copy of site.
func (s *Site) Clone() *Site {
	out := *s
	out.Services = slices.Clone(s.Services)
	out.RelatedLinks = slices.Clone(s.RelatedLinks)
	if s.ContactInfo != nil {
		out.ContactInfo = make(map[string]string, len(s.ContactInfo))
		for k, v := range s.ContactInfo {
			out.ContactInfo[k] = v
		}
	}
	if s.LastScrapedAt != nil {
		t := *s.LastScrapedAt
		out.LastScrapedAt = &t
	}
	return &out
}

// EmptyCounts returns a count map with every status set to zero.
func EmptyCounts() map[Status]int {
	counts := make(map[Status]int, len(Statuses))
	for _, s := range Statuses {
		counts[s] = 0
	}
	return counts
}
