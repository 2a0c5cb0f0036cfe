package reader

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

// PageSource supplies a fixed-page document one page at a time.
type PageSource interface {
	// Open prepares the source and reports the page count and document info.
	Open(ctx context.Context) (PageInfo, error)
	// PageText returns the text of one-based page n.
	PageText(ctx context.Context, n int) (string, error)
	Close() error
}

// PageInfo describes a fixed-page document.
type PageInfo struct {
	Pages    int
	Title    string
	Author   string
	Metadata map[string]string
}

// PagedReader reads fixed-page documents. It holds no text model of its
// own: page text is fetched on first request and cached for the life of the
// reader. Positions are pages or percentages.
type PagedReader struct {
	name   string
	source PageSource
	opts   Options
	log    *zap.Logger

	doc   *Document
	total int
	cache map[int]string
	page  int
	pos   Position
}

// NewPagedReader returns a reader over source. name labels logs and the
// fallback title.
func NewPagedReader(name string, source PageSource, opts Options) *PagedReader {
	opts = opts.withDefaults()
	return &PagedReader{
		name:   name,
		source: source,
		opts:   opts,
		log:    opts.Logger.With(zap.String("path", name)),
	}
}

func (r *PagedReader) Load(ctx context.Context) (*Document, error) {
	r.reset()

	info, err := r.source.Open(ctx)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", r.name, err)
	}
	if info.Pages < 1 {
		r.source.Close()
		return nil, fmt.Errorf("open %s: document has no pages", r.name)
	}

	title := info.Title
	if title == "" {
		title = strings.TrimSuffix(filepath.Base(r.name), filepath.Ext(r.name))
	}
	const chapterID = "chapter-1"
	r.total = info.Pages
	r.cache = make(map[int]string)
	r.doc = &Document{
		Title:  title,
		Author: info.Author,
		Chapters: []Chapter{{
			ID:    chapterID,
			Title: title,
			Start: AtPage(1).WithChapter(chapterID).WithPercentage(0),
			End:   AtPage(info.Pages).WithChapter(chapterID).WithPercentage(100),
		}},
		TotalPages: info.Pages,
		Metadata:   info.Metadata,
	}
	r.setPage(1)

	r.log.Debug("loaded paged document", zap.Int("pages", info.Pages))
	return r.doc, nil
}

func (r *PagedReader) Document() (*Document, error) {
	if r.doc == nil {
		return nil, ErrNotLoaded
	}
	return r.doc, nil
}

func (r *PagedReader) CurrentPage() int  { return r.page }
func (r *PagedReader) TotalPages() int   { return r.total }
func (r *PagedReader) Position() Position { return r.pos }

func (r *PagedReader) NavigateToPage(ctx context.Context, n int) error {
	if r.doc == nil {
		return ErrNotLoaded
	}
	if n < 1 || n > r.total {
		r.log.Debug("rejected page", zap.Int("page", n))
		return invalidPage(n, r.total)
	}
	r.setPage(n)
	return nil
}

// NavigateToPosition accepts a page or a percentage.
func (r *PagedReader) NavigateToPosition(ctx context.Context, pos Position) error {
	if r.doc == nil {
		return ErrNotLoaded
	}
	if n, ok := pos.Page(); ok {
		return r.NavigateToPage(ctx, n)
	}
	if pct, ok := pos.Percentage(); ok {
		r.setPage(pageForPercentage(pct, r.total))
		return nil
	}
	return fmt.Errorf("%w: %s not addressable in a fixed-page document", ErrInvalidPosition, pos)
}

// ExtractText returns the text of every page from start's page through
// end's page inclusive.
func (r *PagedReader) ExtractText(ctx context.Context, start, end Position) (string, error) {
	if r.doc == nil {
		return "", ErrNotLoaded
	}
	from, err := r.pageOf(start)
	if err != nil {
		return "", err
	}
	to, err := r.pageOf(end)
	if err != nil {
		return "", err
	}
	if to < from {
		return "", fmt.Errorf("%w: end %s before start %s", ErrInvalidPosition, end, start)
	}
	var parts []string
	for n := from; n <= to; n++ {
		t, err := r.PageText(ctx, n)
		if err != nil {
			return "", err
		}
		if t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, "\n\n"), nil
}

// PageText returns page n's text, fetching it from the source on first use.
func (r *PagedReader) PageText(ctx context.Context, n int) (string, error) {
	if r.doc == nil {
		return "", ErrNotLoaded
	}
	if n < 1 || n > r.total {
		return "", invalidPage(n, r.total)
	}
	if t, ok := r.cache[n]; ok {
		return t, nil
	}
	t, err := r.source.PageText(ctx, n)
	if err != nil {
		return "", fmt.Errorf("%w: page %d: %w", ErrExtraction, n, err)
	}
	t = CleanText(t)
	r.cache[n] = t
	return t, nil
}

// Search scans page by page. Pages that fail to extract are skipped.
func (r *PagedReader) Search(ctx context.Context, query string) []SearchResult {
	if r.doc == nil || strings.TrimSpace(query) == "" {
		return nil
	}
	re := queryRegex(query)
	title := r.doc.Chapters[0].Title
	var results []SearchResult
	for n := 1; n <= r.total; n++ {
		if ctx.Err() != nil {
			break
		}
		t, err := r.PageText(ctx, n)
		if err != nil {
			r.log.Debug("search skipped page", zap.Int("page", n), zap.Error(err))
			continue
		}
		for _, m := range findMatches(re, t) {
			results = append(results, SearchResult{
				Position:     AtPage(n).WithPercentage(CalculatePercentage(n, r.total)),
				Context:      m.context,
				MatchText:    m.text,
				ChapterTitle: title,
			})
		}
	}
	return results
}

func (r *PagedReader) Close() error {
	r.reset()
	return r.source.Close()
}

func (r *PagedReader) reset() {
	r.doc = nil
	r.total = 0
	r.cache = nil
	r.page = 0
	r.pos = Position{}
}

func (r *PagedReader) setPage(n int) {
	r.page = n
	r.pos = AtPage(n).
		WithChapter(r.doc.Chapters[0].ID).
		WithPercentage(CalculatePercentage(n, r.total))
}

func (r *PagedReader) pageOf(pos Position) (int, error) {
	if n, ok := pos.Page(); ok {
		if n < 1 || n > r.total {
			return 0, invalidPage(n, r.total)
		}
		return n, nil
	}
	if pct, ok := pos.Percentage(); ok {
		return pageForPercentage(pct, r.total), nil
	}
	return 0, fmt.Errorf("%w: %s has no page address", ErrInvalidPosition, pos)
}
