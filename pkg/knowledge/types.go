package knowledge

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ClaimStatus is the verification state of a claim.
type ClaimStatus string

const (
	StatusVerified     ClaimStatus = "verified"
	StatusUnverified   ClaimStatus = "unverified"
	StatusStale        ClaimStatus = "stale"
	StatusDeprecated   ClaimStatus = "deprecated"
	StatusContradicted ClaimStatus = "contradicted"
)

// Statuses lists every claim status in display order.
var Statuses = []ClaimStatus{
	StatusVerified,
	StatusUnverified,
	StatusStale,
	StatusDeprecated,
	StatusContradicted,
}

// Valid reports whether s is a known status.
func (s ClaimStatus) Valid() bool {
	for _, known := range Statuses {
		if s == known {
			return true
		}
	}
	return false
}

// ClaimKind says what part of a guide a claim belongs to.
type ClaimKind string

const (
	KindStep           ClaimKind = "step"
	KindFee            ClaimKind = "fee"
	KindDocument       ClaimKind = "document"
	KindEligibility    ClaimKind = "eligibility"
	KindProcessingTime ClaimKind = "processing_time"
	KindContact        ClaimKind = "contact"
	KindGeneral        ClaimKind = "general"
)

// Source is an official page claims are extracted from.
type Source struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	URL         string `json:"url"`
	AgencyID    string `json:"agency_id,omitempty"`
	RetrievedAt string `json:"retrieved_at,omitempty"`
}

// Locator points into a source page.
type Locator struct {
	HeadingPath []string `json:"heading_path,omitempty"`
	Selector    string   `json:"selector,omitempty"`
}

// UnmarshalJSON accepts the object form as well as the bare string and
// string-array forms older extractions produced. Any other shape decodes to
// an empty locator.
func (l *Locator) UnmarshalJSON(data []byte) error {
	*l = Locator{}

	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		if s = strings.TrimSpace(s); s != "" {
			l.HeadingPath = strings.Split(s, " > ")
		}
		return nil
	}

	var path []string
	if err := json.Unmarshal(data, &path); err == nil {
		l.HeadingPath = path
		return nil
	}

	type plain Locator
	var p plain
	if err := json.Unmarshal(data, &p); err == nil {
		*l = Locator(p)
	}
	return nil
}

// String renders the locator as "Heading > Sub-heading (selector)".
func (l Locator) String() string {
	s := strings.Join(l.HeadingPath, " > ")
	if l.Selector != "" {
		if s != "" {
			s += " "
		}
		s += "(" + l.Selector + ")"
	}
	return s
}

// Citation ties a claim to a source.
type Citation struct {
	SourceID    string   `json:"source_id"`
	Locator     *Locator `json:"locator,omitempty"`
	Quote       string   `json:"quote,omitempty"`
	RetrievedAt string   `json:"retrieved_at,omitempty"`
}

// Claim is a single sourced fact.
type Claim struct {
	ID           string      `json:"id"`
	GuideID      string      `json:"guide_id"`
	Kind         ClaimKind   `json:"kind"`
	Text         string      `json:"text"`
	TextBn       string      `json:"text_bn,omitempty"`
	Status       ClaimStatus `json:"status"`
	Citations    []Citation  `json:"citations,omitempty"`
	LastVerified string      `json:"last_verified,omitempty"`
}

// Guide aggregates the claims for one government service.
type Guide struct {
	ID              string   `json:"id"`
	Title           string   `json:"title"`
	TitleBn         string   `json:"title_bn,omitempty"`
	Category        string   `json:"category"`
	AgencyID        string   `json:"agency_id"`
	Summary         string   `json:"summary"`
	OfficialURL     string   `json:"official_url,omitempty"`
	Claims          []Claim  `json:"claims"`
	RelatedGuideIDs []string `json:"related_guide_ids,omitempty"`
	UpdatedAt       string   `json:"updated_at,omitempty"`
}

// ClaimsOfKind returns the guide's claims of kind k in order.
func (g *Guide) ClaimsOfKind(k ClaimKind) []Claim {
	var out []Claim
	for _, c := range g.Claims {
		if c.Kind == k {
			out = append(out, c)
		}
	}
	return out
}

// GuideSummary is the list view of a guide.
type GuideSummary struct {
	ID            string `json:"id"`
	Title         string `json:"title"`
	TitleBn       string `json:"title_bn,omitempty"`
	Category      string `json:"category"`
	AgencyID      string `json:"agency_id"`
	AgencyName    string `json:"agency_name,omitempty"`
	Summary       string `json:"summary"`
	ClaimCount    int    `json:"claim_count"`
	VerifiedCount int    `json:"verified_count"`
	UpdatedAt     string `json:"updated_at,omitempty"`
}

// Agency is a government body.
type Agency struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	NameBn      string `json:"name_bn,omitempty"`
	Website     string `json:"website,omitempty"`
	Description string `json:"description,omitempty"`
}

// Category groups guides and portals.
type Category struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	NameBn string `json:"name_bn,omitempty"`
}

// Portal is an entry in the government website directory.
type Portal struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	URL         string `json:"url"`
	CategoryID  string `json:"category_id"`
	Description string `json:"description,omitempty"`
}

// Stats summarizes a dataset.
type Stats struct {
	Version        string              `json:"version"`
	GeneratedAt    string              `json:"generated_at,omitempty"`
	Source         string              `json:"source"`
	Guides         int                 `json:"guides"`
	Claims         int                 `json:"claims"`
	VerifiedClaims int                 `json:"verified_claims"`
	Sources        int                 `json:"sources"`
	Agencies       int                 `json:"agencies"`
	Portals        int                 `json:"portals"`
	ByStatus       map[ClaimStatus]int `json:"by_status"`
}

// Dataset is the bundled knowledge file and the shape served remotely.
type Dataset struct {
	Version     string     `json:"version"`
	GeneratedAt string     `json:"generated_at,omitempty"`
	Guides      []Guide    `json:"guides"`
	Agencies    []Agency   `json:"agencies"`
	Sources     []Source   `json:"sources"`
	Portals     []Portal   `json:"portals"`
	Categories  []Category `json:"categories"`
}

// Parse decodes and validates a dataset.
func Parse(data []byte) (*Dataset, error) {
	var ds Dataset
	if err := json.Unmarshal(data, &ds); err != nil {
		return nil, fmt.Errorf("decoding knowledge dataset: %w", err)
	}
	if err := ds.Validate(); err != nil {
		return nil, err
	}
	return &ds, nil
}

// Validate checks the dataset can be indexed: it must have guides, guide
// and claim IDs must be unique, and statuses must be known. Claims missing
// a guide_id are adopted by their guide.
func (ds *Dataset) Validate() error {
	if len(ds.Guides) == 0 {
		return fmt.Errorf("knowledge dataset has no guides")
	}

	guideIDs := make(map[string]struct{}, len(ds.Guides))
	claimIDs := make(map[string]struct{})
	for gi := range ds.Guides {
		g := &ds.Guides[gi]
		if g.ID == "" {
			return fmt.Errorf("guide %d has no id", gi)
		}
		if _, dup := guideIDs[g.ID]; dup {
			return fmt.Errorf("duplicate guide id %q", g.ID)
		}
		guideIDs[g.ID] = struct{}{}

		for ci := range g.Claims {
			c := &g.Claims[ci]
			if c.ID == "" {
				return fmt.Errorf("guide %q claim %d has no id", g.ID, ci)
			}
			if _, dup := claimIDs[c.ID]; dup {
				return fmt.Errorf("duplicate claim id %q", c.ID)
			}
			claimIDs[c.ID] = struct{}{}

			if c.GuideID == "" {
				c.GuideID = g.ID
			}
			if c.Kind == "" {
				c.Kind = KindGeneral
			}
			if c.Status == "" {
				c.Status = StatusUnverified
			}
			if !c.Status.Valid() {
				return fmt.Errorf("claim %q has unknown status %q", c.ID, c.Status)
			}
		}
	}
	return nil
}
