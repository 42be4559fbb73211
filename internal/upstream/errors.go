package upstream

import (
	"fmt"

	"github.com/xenking/storefront/internal/domain/product"
)

// FetchError reports that one source could not be fetched or decoded. Any
// FetchError fails the whole catalog load.
type FetchError struct {
	Source product.Source
	URL    string
	Err    error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s catalog from %s: %v", e.Source, e.URL, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// StatusError is returned when a source answers with a non-2xx status.
type StatusError struct {
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status code %d", e.StatusCode)
}
