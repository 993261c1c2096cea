// Package knowledge is the read-only repository of guides, claims, agencies
// and portals that the site serves. The dataset is held as an immutable
// snapshot that refreshes swap atomically, so readers never see a partially
// loaded dataset.
package knowledge

import (
	"cmp"
	"fmt"
	"slices"
	"strings"
	"sync/atomic"
)

// Origin labels where the current snapshot came from.
const (
	OriginBundled = "bundled"
	OriginRemote  = "remote"
	OriginFile    = "file"
)

// Filter narrows ListGuides. Zero values match everything.
type Filter struct {
	Category string
	AgencyID string
	Query    string
	// Status keeps guides with at least one claim in that status.
	Status ClaimStatus
}

type snapshot struct {
	dataset *Dataset
	origin  string

	guides   map[string]*Guide
	claims   map[string]*Claim
	agencies map[string]*Agency
	stats    Stats
}

func newSnapshot(ds *Dataset, origin string) *snapshot {
	s := &snapshot{
		dataset:  ds,
		origin:   origin,
		guides:   make(map[string]*Guide, len(ds.Guides)),
		claims:   make(map[string]*Claim),
		agencies: make(map[string]*Agency, len(ds.Agencies)),
		stats: Stats{
			Version:     ds.Version,
			GeneratedAt: ds.GeneratedAt,
			Source:      origin,
			Guides:      len(ds.Guides),
			Sources:     len(ds.Sources),
			Agencies:    len(ds.Agencies),
			Portals:     len(ds.Portals),
			ByStatus:    make(map[ClaimStatus]int, len(Statuses)),
		},
	}
	for _, st := range Statuses {
		s.stats.ByStatus[st] = 0
	}

	for gi := range ds.Guides {
		g := &ds.Guides[gi]
		s.guides[g.ID] = g
		for ci := range g.Claims {
			c := &g.Claims[ci]
			s.claims[c.ID] = c
			s.stats.Claims++
			s.stats.ByStatus[c.Status]++
			if c.Status == StatusVerified {
				s.stats.VerifiedClaims++
			}
		}
	}
	for ai := range ds.Agencies {
		a := &ds.Agencies[ai]
		s.agencies[a.ID] = a
	}
	return s
}

func (s *snapshot) summary(g *Guide) GuideSummary {
	sum := GuideSummary{
		ID:         g.ID,
		Title:      g.Title,
		TitleBn:    g.TitleBn,
		Category:   g.Category,
		AgencyID:   g.AgencyID,
		Summary:    g.Summary,
		ClaimCount: len(g.Claims),
		UpdatedAt:  g.UpdatedAt,
	}
	if a, ok := s.agencies[g.AgencyID]; ok {
		sum.AgencyName = a.Name
	}
	for _, c := range g.Claims {
		if c.Status == StatusVerified {
			sum.VerifiedCount++
		}
	}
	return sum
}

// Repository serves the current knowledge snapshot. It is safe for
// concurrent use.
type Repository struct {
	current atomic.Pointer[snapshot]
}

// NewRepository returns a Repository serving ds.
func NewRepository(ds *Dataset, origin string) (*Repository, error) {
	r := &Repository{}
	if err := r.Swap(ds, origin); err != nil {
		return nil, err
	}
	return r, nil
}

// NewBundledRepository returns a Repository over the compiled-in dataset.
func NewBundledRepository() (*Repository, error) {
	ds, err := Bundled()
	if err != nil {
		return nil, err
	}
	return NewRepository(ds, OriginBundled)
}

// Swap validates ds and makes it the current snapshot. On error the current
// snapshot is kept.
func (r *Repository) Swap(ds *Dataset, origin string) error {
	if ds == nil {
		return fmt.Errorf("nil dataset")
	}
	if err := ds.Validate(); err != nil {
		return err
	}
	r.current.Store(newSnapshot(ds, origin))
	return nil
}

// Origin reports where the current snapshot came from.
func (r *Repository) Origin() string {
	return r.current.Load().origin
}

// Version is the dataset version of the current snapshot.
func (r *Repository) Version() string {
	return r.current.Load().dataset.Version
}

// ListGuides returns guide summaries matching f, in dataset order.
func (r *Repository) ListGuides(f Filter) []GuideSummary {
	s := r.current.Load()
	query := strings.ToLower(strings.TrimSpace(f.Query))

	out := []GuideSummary{}
	for gi := range s.dataset.Guides {
		g := &s.dataset.Guides[gi]
		if f.Category != "" && g.Category != f.Category {
			continue
		}
		if f.AgencyID != "" && g.AgencyID != f.AgencyID {
			continue
		}
		if query != "" && !matchesGuide(g, query) {
			continue
		}
		if f.Status != "" && !slices.ContainsFunc(g.Claims, func(c Claim) bool { return c.Status == f.Status }) {
			continue
		}
		out = append(out, s.summary(g))
	}
	return out
}

func matchesGuide(g *Guide, query string) bool {
	return strings.Contains(strings.ToLower(g.Title), query) ||
		strings.Contains(strings.ToLower(g.TitleBn), query) ||
		strings.Contains(strings.ToLower(g.Summary), query)
}

// GetGuideByID returns a copy of the guide with id.
func (r *Repository) GetGuideByID(id string) (*Guide, bool) {
	g, ok := r.current.Load().guides[id]
	if !ok {
		return nil, false
	}
	out := *g
	out.Claims = slices.Clone(g.Claims)
	out.RelatedGuideIDs = slices.Clone(g.RelatedGuideIDs)
	return &out, true
}

// GetClaim returns the claim with id.
func (r *Repository) GetClaim(id string) (*Claim, bool) {
	c, ok := r.current.Load().claims[id]
	if !ok {
		return nil, false
	}
	out := *c
	out.Citations = slices.Clone(c.Citations)
	return &out, true
}

// GetSource returns the source with id.
func (r *Repository) GetSource(id string) (*Source, bool) {
	for _, src := range r.current.Load().dataset.Sources {
		if src.ID == id {
			return &src, true
		}
	}
	return nil, false
}

// ListAgencies returns every agency sorted by name.
func (r *Repository) ListAgencies() []Agency {
	out := slices.Clone(r.current.Load().dataset.Agencies)
	slices.SortFunc(out, func(a, b Agency) int { return cmp.Compare(a.Name, b.Name) })
	return out
}

// ListCategories returns the categories in dataset order.
func (r *Repository) ListCategories() []Category {
	return slices.Clone(r.current.Load().dataset.Categories)
}

// ListPortals returns portals, optionally restricted to one category.
func (r *Repository) ListPortals(category string) []Portal {
	out := []Portal{}
	for _, p := range r.current.Load().dataset.Portals {
		if category == "" || p.CategoryID == category {
			out = append(out, p)
		}
	}
	return out
}

// GetStats returns counts for the current snapshot.
func (r *Repository) GetStats() Stats {
	st := r.current.Load().stats
	byStatus := make(map[ClaimStatus]int, len(st.ByStatus))
	for k, v := range st.ByStatus {
		byStatus[k] = v
	}
	st.ByStatus = byStatus
	return st
}
