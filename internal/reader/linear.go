package reader

import (
	"context"
	"fmt"
	"math"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"
)

// PlainTextFormat implements Format for plain text files.
type PlainTextFormat struct{}

func init() {
	Register(&PlainTextFormat{})
}

func (f *PlainTextFormat) Name() string         { return "Plain text" }
func (f *PlainTextFormat) Extensions() []string { return []string{".txt", ".text"} }
func (f *PlainTextFormat) New(path string, src Source, opts Options) Reader {
	return NewLinearReader(path, src, opts)
}

// converter turns raw bytes into plain text plus an optional TOC whose
// positions carry word offsets into that text.
type converter func(data []byte) (string, []TOCEntry, error)

// LinearReader reads a whole text into memory and pages it by word count.
// The text is one chapter; positions may be pages, percentages or word
// offsets.
type LinearReader struct {
	path    string
	src     Source
	opts    Options
	log     *zap.Logger
	convert converter

	doc        *Document
	pages      []string
	pageStarts []int
	words      []string
	toc        []TOCEntry
	cursor     int
	pos        Position
}

// NewLinearReader returns a reader for the text file at path.
func NewLinearReader(path string, src Source, opts Options) *LinearReader {
	opts = opts.withDefaults()
	return &LinearReader{
		path: path,
		src:  src,
		opts: opts,
		log:  opts.Logger.With(zap.String("path", path)),
	}
}

func (r *LinearReader) Load(ctx context.Context) (*Document, error) {
	r.reset()

	data, err := r.src.ReadFile(r.path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", r.path, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	text := string(data)
	var toc []TOCEntry
	if r.convert != nil {
		text, toc, err = r.convert(data)
		if err != nil {
			return nil, fmt.Errorf("convert %s: %w", r.path, err)
		}
	}
	text = CleanText(text)

	pages := SplitIntoPages(text, r.opts.WordsPerPage)
	if len(pages) == 0 {
		pages = []string{""}
	}
	starts := make([]int, len(pages))
	wordCount := 0
	for i, p := range pages {
		starts[i] = wordCount
		wordCount += CountWords(p)
	}
	total := len(pages)

	title := strings.TrimSuffix(filepath.Base(r.path), filepath.Ext(r.path))
	const chapterID = "chapter-1"
	chapter := Chapter{
		ID:        chapterID,
		Title:     title,
		Content:   text,
		WordCount: wordCount,
		Start:     AtPage(1).WithChapter(chapterID).WithPercentage(0).WithOffset(0),
		End:       AtPage(total).WithChapter(chapterID).WithPercentage(100).WithOffset(wordCount),
	}

	r.pages = pages
	r.pageStarts = starts
	r.words = strings.Fields(text)
	if len(toc) == 0 {
		toc = []TOCEntry{{ID: chapterID, Label: title, Position: AtOffset(0)}}
	}
	r.toc = r.placeTOC(toc, chapterID)
	r.doc = &Document{
		Title:      title,
		Chapters:   []Chapter{chapter},
		TotalPages: total,
		WordCount:  wordCount,
		Metadata:   statMetadata(r.src, r.path),
	}
	r.setCursor(0)

	r.log.Debug("loaded linear document",
		zap.Int("pages", total),
		zap.Int("words", wordCount))
	return r.doc, nil
}

func (r *LinearReader) Document() (*Document, error) {
	if r.doc == nil {
		return nil, ErrNotLoaded
	}
	return r.doc, nil
}

func (r *LinearReader) CurrentPage() int {
	if r.doc == nil {
		return 0
	}
	return r.cursor + 1
}

func (r *LinearReader) TotalPages() int { return len(r.pages) }
func (r *LinearReader) Position() Position { return r.pos }
func (r *LinearReader) TOC() []TOCEntry { return r.toc }

func (r *LinearReader) NavigateToPage(ctx context.Context, n int) error {
	if r.doc == nil {
		return ErrNotLoaded
	}
	if n < 1 || n > len(r.pages) {
		r.log.Debug("rejected page", zap.Int("page", n))
		return invalidPage(n, len(r.pages))
	}
	r.setCursor(n - 1)
	return nil
}

// NavigateToPosition accepts a page, a percentage, a raw word offset or the
// chapter id, in that order of preference.
func (r *LinearReader) NavigateToPosition(ctx context.Context, pos Position) error {
	if r.doc == nil {
		return ErrNotLoaded
	}
	total := len(r.pages)
	if n, ok := pos.Page(); ok {
		return r.NavigateToPage(ctx, n)
	}
	if pct, ok := pos.Percentage(); ok {
		r.setCursor(pageForPercentage(pct, total) - 1)
		return nil
	}
	if off, ok := pos.Offset(); ok {
		r.setCursor(pageForOffset(off, r.opts.WordsPerPage, total) - 1)
		return nil
	}
	if id, ok := pos.ChapterID(); ok && id == r.doc.Chapters[0].ID {
		r.setCursor(0)
		return nil
	}
	return fmt.Errorf("%w: %s not addressable in a linear document", ErrInvalidPosition, pos)
}

// ExtractText returns the words in [start,end).
func (r *LinearReader) ExtractText(ctx context.Context, start, end Position) (string, error) {
	if r.doc == nil {
		return "", ErrNotLoaded
	}
	s, err := r.wordOffset(start)
	if err != nil {
		return "", err
	}
	e, err := r.wordOffset(end)
	if err != nil {
		return "", err
	}
	if e < s {
		return "", fmt.Errorf("%w: end %s before start %s", ErrInvalidPosition, end, start)
	}
	return strings.Join(r.words[s:e], " "), nil
}

func (r *LinearReader) PageText(ctx context.Context, n int) (string, error) {
	if r.doc == nil {
		return "", ErrNotLoaded
	}
	if n < 1 || n > len(r.pages) {
		return "", invalidPage(n, len(r.pages))
	}
	return r.pages[n-1], nil
}

// Search places each match on the page holding its word, since pages hold
// whole paragraphs and byte progress drifts from page order.
func (r *LinearReader) Search(ctx context.Context, query string) []SearchResult {
	if r.doc == nil || strings.TrimSpace(query) == "" {
		return nil
	}
	ch := r.doc.Chapters[0]
	var results []SearchResult
	for _, m := range findMatches(queryRegex(query), ch.Content) {
		if ctx.Err() != nil {
			break
		}
		off := wordIndexAt(ch.Content, m.index)
		pct := 0.0
		if ch.WordCount > 0 {
			pct = float64(off) / float64(ch.WordCount) * 100
		}
		results = append(results, SearchResult{
			Position: AtPage(r.pageOfOffset(off)).
				WithChapter(ch.ID).
				WithPercentage(pct).
				WithOffset(off),
			Context:      m.context,
			MatchText:    m.text,
			ChapterTitle: ch.Title,
		})
	}
	return results
}

func (r *LinearReader) Close() error {
	r.reset()
	return nil
}

func (r *LinearReader) reset() {
	r.doc = nil
	r.pages = nil
	r.pageStarts = nil
	r.words = nil
	r.toc = nil
	r.cursor = 0
	r.pos = Position{}
}

func (r *LinearReader) setCursor(i int) {
	total := len(r.pages)
	r.cursor = i
	r.pos = AtPage(i+1).
		WithChapter(r.doc.Chapters[0].ID).
		WithPercentage(CalculatePercentage(i+1, total)).
		WithOffset(r.pageStarts[i])
}

func (r *LinearReader) wordOffset(pos Position) (int, error) {
	n := len(r.words)
	if off, ok := pos.Offset(); ok {
		return clampInt(off, 0, n), nil
	}
	if page, ok := pos.Page(); ok {
		if page < 1 || page > len(r.pages) {
			return 0, invalidPage(page, len(r.pages))
		}
		return r.pageStarts[page-1], nil
	}
	if pct, ok := pos.Percentage(); ok {
		return clampInt(int(math.Round(pct/100*float64(n))), 0, n), nil
	}
	return 0, fmt.Errorf("%w: %s has no word address", ErrInvalidPosition, pos)
}

// pageOfOffset returns the one-based page holding word offset off.
func (r *LinearReader) pageOfOffset(off int) int {
	i := sort.Search(len(r.pageStarts), func(i int) bool { return r.pageStarts[i] > off })
	return clampPage(i, len(r.pageStarts))
}

func (r *LinearReader) placeTOC(entries []TOCEntry, chapterID string) []TOCEntry {
	out := make([]TOCEntry, len(entries))
	for i, e := range entries {
		off, _ := e.Position.Offset()
		page := r.pageOfOffset(off)
		e.Position = AtOffset(off).
			WithPage(page).
			WithChapter(chapterID).
			WithPercentage(CalculatePercentage(page, len(r.pages)))
		e.Children = r.placeTOC(e.Children, chapterID)
		out[i] = e
	}
	return out
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
