// Package api provides the HTTP API server for browsing the knowledge base,
// scraping government sites and running research queries.
package api

import "time"

// Config is the API server configuration.
type Config struct {
	// ListenAddr is the address to listen on (e.g., ":8081")
	ListenAddr string

	// SearchCacheTTL is how long search responses are cached. Zero uses
	// DefaultSearchCacheTTL.
	SearchCacheTTL time.Duration
}

// DefaultSearchCacheTTL bounds how stale a cached search response can be.
const DefaultSearchCacheTTL = 5 * time.Minute
