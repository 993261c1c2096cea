package scrape

import "github.com/nrashid7/infobase/pkg/knowledge"

// PortalTargets converts directory portals into scrape targets.
func PortalTargets(portals []knowledge.Portal) []Target {
	targets := make([]Target, 0, len(portals))
	for _, p := range portals {
		targets = append(targets, Target{
			URL:        p.URL,
			Name:       p.Name,
			CategoryID: p.CategoryID,
		})
	}
	return targets
}
