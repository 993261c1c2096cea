package storage

import "errors"

var (
	// ErrNilSite is returned when writing a nil site.
	ErrNilSite = errors.New("cannot store nil site")

	// ErrMissingURL is returned when writing a site without a URL.
	ErrMissingURL = errors.New("site url is required")
)

// NotFoundError is returned when a site doesn't exist in the store.
type NotFoundError struct {
	URL string
	ID  string
}

func (e NotFoundError) Error() string {
	switch {
	case e.URL != "":
		return "site not found: " + e.URL
	case e.ID != "":
		return "site not found: id " + e.ID
	default:
		return "site not found"
	}
}
