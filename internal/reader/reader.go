// Package reader provides the position model, pagination and format readers
// shared by every book format.
package reader

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Reader is the capability set every format implements. Navigation is
// single-writer: callers wait for one navigation to return before issuing
// the next. Position may be read at any time.
type Reader interface {
	// Load builds the Document and places the reader at the first page.
	// A failed Load leaves the reader not loaded.
	Load(ctx context.Context) (*Document, error)
	Document() (*Document, error)

	// CurrentPage and TotalPages are one-based and return 0 when not loaded.
	CurrentPage() int
	TotalPages() int
	Position() Position

	NavigateToPage(ctx context.Context, n int) error
	NavigateToPosition(ctx context.Context, pos Position) error
	ExtractText(ctx context.Context, start, end Position) (string, error)

	// Close discards the Document and any cached content.
	Close() error
}

// Searcher is implemented by readers that search per page or fragment
// instead of scanning full chapter text.
type Searcher interface {
	Search(ctx context.Context, query string) []SearchResult
}

// TOCProvider is implemented by readers with a navigation structure.
type TOCProvider interface {
	TOC() []TOCEntry
}

// PageTexter is implemented by readers that can return one page's text.
type PageTexter interface {
	PageText(ctx context.Context, n int) (string, error)
}

// Options configures a reader.
type Options struct {
	WordsPerPage   int
	ExtractTimeout time.Duration
	Logger         *zap.Logger
}

// DefaultOptions returns the reference settings.
func DefaultOptions() Options {
	return Options{
		WordsPerPage:   DefaultWordsPerPage,
		ExtractTimeout: DefaultExtractTimeout,
		Logger:         zap.NewNop(),
	}
}

func (o Options) withDefaults() Options {
	if o.WordsPerPage <= 0 {
		o.WordsPerPage = DefaultWordsPerPage
	}
	if o.ExtractTimeout <= 0 {
		o.ExtractTimeout = DefaultExtractTimeout
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	return o
}

const (
	DefaultWordsPerPage   = 250
	DefaultReadingWPM     = 200
	DefaultExtractTimeout = 5 * time.Second
)

// PageText returns the text of page n, using the reader's own page text when
// available and otherwise extracting the page's percentage range.
func PageText(ctx context.Context, r Reader, n int) (string, error) {
	if pt, ok := r.(PageTexter); ok {
		return pt.PageText(ctx, n)
	}
	total := r.TotalPages()
	if total == 0 {
		return "", ErrNotLoaded
	}
	if n < 1 || n > total {
		return "", invalidPage(n, total)
	}
	start := AtPercentage(CalculatePercentage(n-1, total))
	end := AtPercentage(CalculatePercentage(n, total))
	return r.ExtractText(ctx, start, end)
}

// NextPage moves forward one page. It reports false at the last page.
func NextPage(ctx context.Context, r Reader) (bool, error) {
	cur, total := r.CurrentPage(), r.TotalPages()
	if total == 0 {
		return false, ErrNotLoaded
	}
	if cur >= total {
		return false, nil
	}
	return true, r.NavigateToPage(ctx, cur+1)
}

// PrevPage moves back one page. It reports false at the first page.
func PrevPage(ctx context.Context, r Reader) (bool, error) {
	cur := r.CurrentPage()
	if r.TotalPages() == 0 {
		return false, ErrNotLoaded
	}
	if cur <= 1 {
		return false, nil
	}
	return true, r.NavigateToPage(ctx, cur-1)
}
