package writeas

import (
	"context"
	"errors"
	"fmt"
)

// ErrNotFound is returned by a Fetcher when the requested post does not exist.
var ErrNotFound = errors.New("writeas: not found")

// Fetcher retrieves raw data from the publishing API. Any non-nil error means
// "no data"; the Client never inspects status codes itself.
type Fetcher interface {
	FetchPage(ctx context.Context, alias string, page int) (*CollectionPage, error)
	FetchPostBySlug(ctx context.Context, alias, slug string) (*Post, error)
	FetchPostByID(ctx context.Context, id string) (*Post, error)
}

// PageError reports a collection page that could not be fetched while
// aggregating an alias in strict paging mode.
type PageError struct {
	Alias string
	Page  int
	Err   error
}

func (e *PageError) Error() string {
	return fmt.Sprintf("fetch page %d of %s: %v", e.Page, e.Alias, e.Err)
}

func (e *PageError) Unwrap() error { return e.Err }
