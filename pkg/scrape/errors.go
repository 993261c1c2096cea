package scrape

import (
	"errors"

	"github.com/nrashid7/infobase/pkg/sse"
)

var (
	// ErrRateLimited matches a 429 from either provider.
	ErrRateLimited = sse.ErrRateLimited

	// ErrPaymentRequired matches a 402 from either provider.
	ErrPaymentRequired = sse.ErrPaymentRequired

	// ErrInvalidTarget is returned before any network call for a target
	// without a name or an absolute http(s) URL.
	ErrInvalidTarget = errors.New("invalid scrape target")

	// ErrMissingAPIKey is returned when the scraping provider has no key.
	ErrMissingAPIKey = errors.New("firecrawl API key is not configured")
)

// ProviderError names the provider a failure came from. The wrapped error
// is usually an *sse.StreamError, so errors.Is(err, ErrRateLimited) works
// through it.
type ProviderError struct {
	Provider string
	Err      error
}

func (e *ProviderError) Error() string {
	return e.Provider + ": " + e.Err.Error()
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}
