package search

import (
	"context"
	"errors"
	"fmt"

	errs "imageharvester/pkg/errors"
	"imageharvester/pkg/models"
)

// ErrNoMoreResults ends iteration. It is not a failure.
var ErrNoMoreResults = errors.New("no more results")

// maxEmptyPages bounds how many consecutive pages without usable references
// are followed before iteration ends
const maxEmptyPages = 3

// Page is one batch of references. An empty Next marks the last page.
type Page struct {
	References     []models.ImageReference
	Next           string
	TotalEstimated int
}

// Provider fetches one page of results for a query. token is empty for the
// first page and otherwise the Next value of the previous page.
type Provider interface {
	FetchPage(ctx context.Context, query string, pageSize int, token string) (Page, error)
}

// Iterator pulls references from a Provider lazily, one page at a time, so
// at most one page is held in memory.
type Iterator struct {
	provider Provider
	query    string
	pageSize int

	buf     []models.ImageReference
	token   string
	started bool
	done    bool
	pages   int
	empty   int
	err     error
}

// NewIterator creates an iterator over query results
func NewIterator(p Provider, query string, pageSize int) *Iterator {
	return &Iterator{provider: p, query: query, pageSize: pageSize}
}

// Next returns the next reference in provider order. It returns
// ErrNoMoreResults once the provider is exhausted and a provider error when
// fetching a page fails; both are sticky.
func (it *Iterator) Next(ctx context.Context) (models.ImageReference, error) {
	for len(it.buf) == 0 {
		if it.err != nil {
			return models.ImageReference{}, it.err
		}
		if it.done {
			return models.ImageReference{}, ErrNoMoreResults
		}
		it.fetch(ctx)
	}

	ref := it.buf[0]
	it.buf = it.buf[1:]
	if ref.SourceQuery == "" {
		ref.SourceQuery = it.query
	}
	return ref, nil
}

func (it *Iterator) fetch(ctx context.Context) {
	if it.started && it.token == "" {
		it.done = true
		return
	}

	page, err := it.provider.FetchPage(ctx, it.query, it.pageSize, it.token)
	it.started = true
	if err != nil {
		if errs.IsType(err, errs.ErrorTypeCanceled) || ctx.Err() != nil {
			it.err = errs.NewCanceled(err)
			return
		}
		it.err = errs.NewProvider(fmt.Sprintf("fetching page %d for %q", it.pages+1, it.query), err)
		return
	}

	it.pages++
	it.buf = page.References
	if len(page.References) == 0 {
		it.empty++
	} else {
		it.empty = 0
	}
	// A provider may drop every entry of a page it cannot use and still
	// advance, so an empty page only ends the sequence without a new token
	if page.Next == "" || page.Next == it.token || it.empty >= maxEmptyPages {
		it.done = true
	}
	it.token = page.Next
}

// Pages returns how many pages were fetched successfully
func (it *Iterator) Pages() int {
	return it.pages
}
