// Package formatter turns free-form service text into steps, fees, required
// documents and notes for display. It is best-effort: input it does not
// recognise ends up in Notes, and no input makes it fail.
package formatter

import (
	"regexp"
	"strings"

	"github.com/nrashid7/infobase/pkg/knowledge"
)

// Formatted is text grouped for display.
type Formatted struct {
	Steps     []string `json:"steps"`
	Fees      []string `json:"fees"`
	Documents []string `json:"documents"`
	Notes     []string `json:"notes"`
}

// Empty reports whether nothing was extracted.
func (f Formatted) Empty() bool {
	return len(f.Steps) == 0 && len(f.Fees) == 0 && len(f.Documents) == 0 && len(f.Notes) == 0
}

var (
	// "1.", "1)", "Step 1:", "১." and bullets.
	numberedRe = regexp.MustCompile(`^\s*(?:(?i:step)\s*)?[0-9০-৯]+\s*[.):-]\s*`)
	bulletRe   = regexp.MustCompile(`^\s*[-*•‣◦]\s+`)
	currencyRe = regexp.MustCompile(`(?i)(?:৳|\btk\.?|\bbdt\b|\btaka\b|টাকা)\s*[0-9০-৯][0-9০-৯,]*|[0-9০-৯][0-9০-৯,]*\s*(?:৳|\btk\b|\bbdt\b|\btaka\b|টাকা)`)
	feeWordRe  = regexp.MustCompile(`(?i)\b(?:fees?|free of charge|no fee|cost|charge)\b|ফি`)
	docWordRe  = regexp.MustCompile(`(?i)\b(?:certificate|nid|national id|passport|photo(?:graph)?s?|copy|copies|documents?|receipt|bill|card)\b|সনদ|কাগজপত্র`)
	stepWordRe = regexp.MustCompile(`(?i)^(?:apply|visit|submit|pay|collect|fill|log ?in|register|book|download|upload|go to|open)\b`)
	sentenceRe = regexp.MustCompile(`([.!?।])\s+`)
)

// Format splits text into lines (or sentences when it is a single
// paragraph) and sorts each into a group.
func Format(text string) Formatted {
	out := Formatted{
		Steps:     []string{},
		Fees:      []string{},
		Documents: []string{},
		Notes:     []string{},
	}
	for _, line := range split(text) {
		out.add(classify(line))
	}
	return out
}

// FormatGuide groups a guide's claims by kind. General claims are sorted by
// the same heuristics as Format.
func FormatGuide(g *knowledge.Guide) Formatted {
	out := Format("")
	if g == nil {
		return out
	}
	for _, c := range g.Claims {
		text := strings.TrimSpace(c.Text)
		if text == "" {
			continue
		}
		switch c.Kind {
		case knowledge.KindStep:
			out.Steps = append(out.Steps, clean(text))
		case knowledge.KindFee:
			out.Fees = append(out.Fees, text)
		case knowledge.KindDocument:
			out.Documents = append(out.Documents, text)
		case knowledge.KindEligibility, knowledge.KindProcessingTime, knowledge.KindContact:
			out.Notes = append(out.Notes, text)
		default:
			for _, line := range split(text) {
				out.add(classify(line))
			}
		}
	}
	return out
}

type group int

const (
	groupNote group = iota
	groupStep
	groupFee
	groupDocument
)

type classified struct {
	group group
	text  string
}

func (f *Formatted) add(c classified) {
	if c.text == "" {
		return
	}
	switch c.group {
	case groupStep:
		f.Steps = append(f.Steps, c.text)
	case groupFee:
		f.Fees = append(f.Fees, c.text)
	case groupDocument:
		f.Documents = append(f.Documents, c.text)
	default:
		f.Notes = append(f.Notes, c.text)
	}
}

func classify(line string) classified {
	numbered := numberedRe.MatchString(line)
	text := clean(line)
	if text == "" {
		return classified{}
	}

	switch {
	case currencyRe.MatchString(text) || feeWordRe.MatchString(text):
		return classified{groupFee, text}
	case numbered || stepWordRe.MatchString(text):
		return classified{groupStep, text}
	case docWordRe.MatchString(text):
		return classified{groupDocument, text}
	default:
		return classified{groupNote, text}
	}
}

// clean drops list markers and surrounding markdown emphasis.
func clean(line string) string {
	line = numberedRe.ReplaceAllString(line, "")
	line = bulletRe.ReplaceAllString(line, "")
	line = strings.TrimSpace(line)
	line = strings.Trim(line, "*_#")
	return strings.TrimSpace(line)
}

func split(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	var lines []string
	for line := range strings.SplitSeq(text, "\n") {
		if strings.TrimSpace(line) != "" {
			lines = append(lines, line)
		}
	}
	if len(lines) != 1 {
		return lines
	}

	// One paragraph: fall back to sentences.
	marked := sentenceRe.ReplaceAllString(lines[0], "$1\n")
	lines = lines[:0]
	for s := range strings.SplitSeq(marked, "\n") {
		if strings.TrimSpace(s) != "" {
			lines = append(lines, s)
		}
	}
	return lines
}
