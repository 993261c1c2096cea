package knowledge

import (
	"cmp"
	"slices"
	"strings"
	"unicode"
)

// Field weights for Search.
const (
	titleWeight   = 5
	summaryWeight = 2
	claimWeight   = 1
)

// SearchResult is a scored guide match.
type SearchResult struct {
	Guide GuideSummary `json:"guide"`
	Score int          `json:"score"`
	// Matches holds the claims that contained a query term.
	Matches []Claim `json:"matches,omitempty"`
}

// Search ranks guides by keyword overlap with query. Terms found in titles
// count more than terms in summaries, which count more than terms in
// claims. limit <= 0 returns every match.
func (r *Repository) Search(query string, limit int) []SearchResult {
	terms := tokenize(query)
	if len(terms) == 0 {
		return []SearchResult{}
	}

	s := r.current.Load()
	results := []SearchResult{}
	for gi := range s.dataset.Guides {
		g := &s.dataset.Guides[gi]

		score := titleWeight*countTerms(terms, g.Title+" "+g.TitleBn) +
			summaryWeight*countTerms(terms, g.Summary)

		var matches []Claim
		for _, c := range g.Claims {
			if n := countTerms(terms, c.Text+" "+c.TextBn); n > 0 {
				score += claimWeight * n
				matches = append(matches, c)
			}
		}
		if score == 0 {
			continue
		}
		results = append(results, SearchResult{
			Guide:   s.summary(g),
			Score:   score,
			Matches: matches,
		})
	}

	slices.SortStableFunc(results, func(a, b SearchResult) int {
		return cmp.Compare(b.Score, a.Score)
	})
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results
}

// countTerms returns how many distinct terms occur in text.
func countTerms(terms []string, text string) int {
	words := tokenize(text)
	if len(words) == 0 {
		return 0
	}
	n := 0
	for _, t := range terms {
		if slices.ContainsFunc(words, func(w string) bool { return strings.HasPrefix(w, t) }) {
			n++
		}
	}
	return n
}

// tokenize lowercases text and splits it on anything that is not a letter,
// mark or digit. Marks are kept so Bangla words stay whole. Single-rune
// tokens are dropped.
func tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && !unicode.IsMark(r)
	})
	out := fields[:0]
	for _, f := range fields {
		if len([]rune(f)) > 1 && !slices.Contains(out, f) {
			out = append(out, f)
		}
	}
	return out
}
