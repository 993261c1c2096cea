package testutils

import (
	"github.com/nrashid7/infobase/pkg/storage"
)

// NewTestSite creates a site row for testing
func NewTestSite(url, name string) *storage.Site {
	return &storage.Site{
		URL:         url,
		Name:        name,
		CategoryID:  "identity",
		Description: "Test site " + name,
		Services: []storage.Service{
			{Name: "Apply", URL: url + "/apply"},
		},
		ContactInfo:  map[string]string{"phone": "16000"},
		RelatedLinks: []storage.Link{{Title: "Home", URL: url}},
		Status:       storage.StatusPending,
	}
}
