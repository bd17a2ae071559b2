package scraper

import (
	"errors"
	"fmt"

	"github.com/maltedev/catalog-scraper/internal/models"
)

var (
	ErrSelectorNotFound = errors.New("selector not found")
	ErrNoCandidates     = errors.New("no matching candidates")
	ErrNotSupported     = errors.New("operation not supported by adapter")
	ErrInvalidURL       = errors.New("invalid product URL")
)

// TransientFetchError is a navigation or network fault. Callers retry it.
type TransientFetchError struct {
	Site models.SiteID
	URL  string
	Err  error
}

func (e *TransientFetchError) Error() string {
	return fmt.Sprintf("%s: fetch %s: %v", e.Site, e.URL, e.Err)
}

func (e *TransientFetchError) Unwrap() error { return e.Err }

func (e *TransientFetchError) Temporary() bool { return true }

// IsTransient reports whether err is, or wraps, a TransientFetchError.
func IsTransient(err error) bool {
	var t *TransientFetchError
	return errors.As(err, &t)
}
