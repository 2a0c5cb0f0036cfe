package reader

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// Renderer is the rendering engine of a reflowable document. It owns layout
// and is the only component that can convert between percentages and
// fragment ids. Every call may be slow; readers bound each one with the
// extraction timeout.
type Renderer interface {
	ResolvePercentage(ctx context.Context, pct float64) (string, error)
	ResolveFragment(ctx context.Context, fragmentID string) (float64, error)
	ExtractText(ctx context.Context, startFragment, endFragment string) (string, error)
}

// Outliner supplies the navigation structure of a reflowable document.
type Outliner interface {
	Outline(ctx context.Context) (*Outline, error)
}

// Outline is the structure of a reflowable document: its reading-order
// sections and its table of contents.
type Outline struct {
	Title    string
	Author   string
	Metadata map[string]string
	Sections []Section
	TOC      []TOCEntry
	// TotalPages overrides the page count derived from word counts.
	TotalPages int
}

// Section is one reading-order unit of a reflowable document.
type Section struct {
	ID            string
	Title         string
	StartFragment string
	EndFragment   string
	WordCount     int
}

var (
	errSuperseded = errors.New("superseded by a newer request")
	errClosed     = errors.New("reader closed")
)

// FragmentReader reads reflowable documents. Fragment ids are the canonical
// address; pages and percentages are derived from them through the
// Renderer.
type FragmentReader struct {
	name     string
	outliner Outliner
	renderer Renderer
	opts     Options
	log      *zap.Logger

	doc      *Document
	toc      []TOCEntry
	sections []Section
	total    int
	page     int
	pos      Position

	mu      sync.Mutex
	seq     uint64
	pending map[string]pendingCall
}

type pendingCall struct {
	seq    uint64
	cancel context.CancelCauseFunc
}

// NewFragmentReader returns a reader over a reflowable document.
func NewFragmentReader(name string, outliner Outliner, renderer Renderer, opts Options) *FragmentReader {
	opts = opts.withDefaults()
	return &FragmentReader{
		name:     name,
		outliner: outliner,
		renderer: renderer,
		opts:     opts,
		log:      opts.Logger.With(zap.String("path", name)),
		pending:  make(map[string]pendingCall),
	}
}

func (r *FragmentReader) Load(ctx context.Context) (*Document, error) {
	r.reset()

	outline, err := r.outliner.Outline(ctx)
	if err != nil {
		return nil, fmt.Errorf("outline %s: %w", r.name, err)
	}

	words := 0
	for _, s := range outline.Sections {
		words += s.WordCount
	}
	total := outline.TotalPages
	if total <= 0 {
		total = int(math.Ceil(float64(words) / float64(r.opts.WordsPerPage)))
	}
	if total < 1 {
		total = 1
	}

	chapters := make([]Chapter, 0, len(outline.Sections))
	seen := 0
	for _, s := range outline.Sections {
		startPct := CalculatePercentage(seen, words)
		seen += s.WordCount
		chapters = append(chapters, Chapter{
			ID:        s.ID,
			Title:     s.Title,
			WordCount: s.WordCount,
			Start:     AtFragment(s.StartFragment).WithChapter(s.ID).WithPercentage(startPct),
			End:       AtFragment(s.EndFragment).WithChapter(s.ID).WithPercentage(CalculatePercentage(seen, words)),
		})
	}

	title := outline.Title
	if title == "" {
		title = r.name
	}
	r.doc = &Document{
		Title:      title,
		Author:     outline.Author,
		Chapters:   chapters,
		TotalPages: total,
		WordCount:  words,
		Metadata:   outline.Metadata,
	}
	r.sections = outline.Sections
	r.toc = withFragmentPositions(outline.TOC)
	r.total = total

	if err := r.NavigateToPage(ctx, 1); err != nil {
		r.reset()
		return nil, fmt.Errorf("open first page of %s: %w", r.name, err)
	}

	r.log.Debug("loaded reflowable document",
		zap.Int("sections", len(chapters)),
		zap.Int("pages", total),
		zap.Int("words", words))
	return r.doc, nil
}

func (r *FragmentReader) Document() (*Document, error) {
	if r.doc == nil {
		return nil, ErrNotLoaded
	}
	return r.doc, nil
}

func (r *FragmentReader) CurrentPage() int  { return r.page }
func (r *FragmentReader) TotalPages() int   { return r.total }
func (r *FragmentReader) Position() Position { return r.pos }
func (r *FragmentReader) TOC() []TOCEntry    { return r.toc }

// NavigateToPage asks the renderer for the fragment at n/total of the book.
func (r *FragmentReader) NavigateToPage(ctx context.Context, n int) error {
	if r.doc == nil {
		return ErrNotLoaded
	}
	if n < 1 || n > r.total {
		return invalidPage(n, r.total)
	}
	pct := CalculatePercentage(n, r.total)
	frag, err := r.resolvePercentage(ctx, pct)
	if err != nil {
		return err
	}
	r.setPosition(frag, pct, n)
	return nil
}

// NavigateToPosition accepts a fragment id, a page, a percentage or a
// chapter id, in that order of preference.
func (r *FragmentReader) NavigateToPosition(ctx context.Context, pos Position) error {
	if r.doc == nil {
		return ErrNotLoaded
	}
	if frag, ok := pos.FragmentID(); ok {
		pct, err := r.resolveFragment(ctx, frag)
		if err != nil {
			return err
		}
		r.setPosition(frag, pct, pageForPercentage(pct, r.total))
		return nil
	}
	if n, ok := pos.Page(); ok {
		return r.NavigateToPage(ctx, n)
	}
	if pct, ok := pos.Percentage(); ok {
		frag, err := r.resolvePercentage(ctx, pct)
		if err != nil {
			return err
		}
		r.setPosition(frag, pct, pageForPercentage(pct, r.total))
		return nil
	}
	if id, ok := pos.ChapterID(); ok {
		for _, s := range r.sections {
			if s.ID == id {
				return r.NavigateToPosition(ctx, AtFragment(s.StartFragment))
			}
		}
		return fmt.Errorf("%w: unknown chapter %q", ErrInvalidPosition, id)
	}
	return fmt.Errorf("%w: %s has no addressable key", ErrInvalidPosition, pos)
}

// ExtractText asks the renderer for the text between two positions. A page
// addresses its start. A pending extraction of the same range is replaced.
func (r *FragmentReader) ExtractText(ctx context.Context, start, end Position) (string, error) {
	if r.doc == nil {
		return "", ErrNotLoaded
	}
	from, err := r.fragmentOf(ctx, start)
	if err != nil {
		return "", err
	}
	to, err := r.fragmentOf(ctx, end)
	if err != nil {
		return "", err
	}
	return call(r, ctx, from+"\x00"+to, func(ctx context.Context) (string, error) {
		return r.renderer.ExtractText(ctx, from, to)
	})
}

// Search extracts each section through the renderer and scans it. Sections
// that cannot be extracted are skipped.
func (r *FragmentReader) Search(ctx context.Context, query string) []SearchResult {
	if r.doc == nil || strings.TrimSpace(query) == "" {
		return nil
	}
	re := queryRegex(query)
	var results []SearchResult
	for _, ch := range r.doc.Chapters {
		if ctx.Err() != nil {
			break
		}
		startFrag, _ := ch.Start.FragmentID()
		endFrag, _ := ch.End.FragmentID()
		text, err := r.ExtractText(ctx, AtFragment(startFrag), AtFragment(endFrag))
		if err != nil {
			r.log.Debug("search skipped section", zap.String("section", ch.ID), zap.Error(err))
			continue
		}
		if text == "" {
			continue
		}
		startPct, _ := ch.Start.Percentage()
		endPct, _ := ch.End.Percentage()
		for _, m := range findMatches(re, text) {
			progress := float64(m.index) / float64(len(text))
			results = append(results, SearchResult{
				Position:     AtPercentage(startPct + progress*(endPct-startPct)).WithChapter(ch.ID),
				Context:      m.context,
				MatchText:    m.text,
				ChapterTitle: ch.Title,
			})
		}
	}
	return results
}

func (r *FragmentReader) Close() error {
	r.mu.Lock()
	for key, p := range r.pending {
		p.cancel(errClosed)
		delete(r.pending, key)
	}
	r.mu.Unlock()
	r.reset()
	return nil
}

func (r *FragmentReader) reset() {
	r.doc = nil
	r.toc = nil
	r.sections = nil
	r.total = 0
	r.page = 0
	r.pos = Position{}
}

func (r *FragmentReader) setPosition(frag string, pct float64, page int) {
	r.page = page
	pos := AtFragment(frag).WithPage(page).WithPercentage(pct)
	if ch := r.chapterAt(pct); ch != nil {
		pos = pos.WithChapter(ch.ID)
	}
	r.pos = pos
}

func (r *FragmentReader) chapterAt(pct float64) *Chapter {
	var found *Chapter
	for i := range r.doc.Chapters {
		start, _ := r.doc.Chapters[i].Start.Percentage()
		if start > pct {
			break
		}
		found = &r.doc.Chapters[i]
	}
	return found
}

func (r *FragmentReader) fragmentOf(ctx context.Context, pos Position) (string, error) {
	if frag, ok := pos.FragmentID(); ok {
		return frag, nil
	}
	if pct, ok := pos.Percentage(); ok {
		return r.resolvePercentage(ctx, pct)
	}
	if n, ok := pos.Page(); ok {
		if n < 1 || n > r.total {
			return "", invalidPage(n, r.total)
		}
		return r.resolvePercentage(ctx, CalculatePercentage(n-1, r.total))
	}
	return "", fmt.Errorf("%w: %s has no fragment address", ErrInvalidPosition, pos)
}

func (r *FragmentReader) resolvePercentage(ctx context.Context, pct float64) (string, error) {
	frag, err := call(r, ctx, "", func(ctx context.Context) (string, error) {
		return r.renderer.ResolvePercentage(ctx, pct)
	})
	if err != nil {
		return "", asResolveError(err, fmt.Sprintf("percentage %.2f", pct))
	}
	return frag, nil
}

func (r *FragmentReader) resolveFragment(ctx context.Context, frag string) (float64, error) {
	pct, err := call(r, ctx, "", func(ctx context.Context) (float64, error) {
		return r.renderer.ResolveFragment(ctx, frag)
	})
	if err != nil {
		return 0, asResolveError(err, fmt.Sprintf("fragment %q", frag))
	}
	return clampPercentage(pct), nil
}

// asResolveError reports renderer resolution failures as invalid positions,
// leaving timeouts and caller cancellation as they are.
func asResolveError(err error, what string) error {
	if errors.Is(err, ErrTextExtractionTimeout) || errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return fmt.Errorf("%w: cannot resolve %s: %w", ErrInvalidPosition, what, err)
}

// call runs fn against the renderer, bounded by the extraction timeout. When
// key is non-empty a newer call with the same key cancels this one.
func call[T any](r *FragmentReader, ctx context.Context, key string, fn func(context.Context) (T, error)) (T, error) {
	var zero T

	callCtx, supersede := context.WithCancelCause(ctx)
	defer supersede(nil)
	callCtx, cancel := context.WithTimeout(callCtx, r.opts.ExtractTimeout)
	defer cancel()

	var seq uint64
	if key != "" {
		r.mu.Lock()
		if prev, ok := r.pending[key]; ok {
			prev.cancel(errSuperseded)
		}
		r.seq++
		seq = r.seq
		r.pending[key] = pendingCall{seq: seq, cancel: supersede}
		r.mu.Unlock()
		defer func() {
			r.mu.Lock()
			if p, ok := r.pending[key]; ok && p.seq == seq {
				delete(r.pending, key)
			}
			r.mu.Unlock()
		}()
	}

	type result struct {
		val T
		err error
	}
	done := make(chan result, 1)
	go func() {
		v, err := fn(callCtx)
		done <- result{v, err}
	}()

	select {
	case res := <-done:
		if res.err == nil {
			return res.val, nil
		}
		if callCtx.Err() != nil {
			return zero, r.classify(ctx, callCtx)
		}
		return zero, fmt.Errorf("%w: %w", ErrExtraction, res.err)
	case <-callCtx.Done():
		return zero, r.classify(ctx, callCtx)
	}
}

func (r *FragmentReader) classify(parent, callCtx context.Context) error {
	switch {
	case errors.Is(context.Cause(callCtx), errSuperseded):
		r.log.Debug("renderer call superseded")
		return fmt.Errorf("%w: %w", ErrExtraction, errSuperseded)
	case errors.Is(context.Cause(callCtx), errClosed):
		return ErrNotLoaded
	case parent.Err() != nil:
		return parent.Err()
	default:
		r.log.Warn("renderer call timed out", zap.Duration("timeout", r.opts.ExtractTimeout))
		return fmt.Errorf("%w after %s", ErrTextExtractionTimeout, r.opts.ExtractTimeout)
	}
}

func withFragmentPositions(entries []TOCEntry) []TOCEntry {
	out := make([]TOCEntry, len(entries))
	for i, e := range entries {
		if e.Position.IsZero() && e.FragmentID != "" {
			e.Position = AtFragment(e.FragmentID)
		}
		e.Children = withFragmentPositions(e.Children)
		out[i] = e
	}
	return out
}
