package reader

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/taylorskalyo/goreader/epub"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// EPUBFormat implements Format for EPUB files. The document is read through
// spineRenderer, an in-process Renderer that lays the spine out as one word
// stream.
type EPUBFormat struct{}

func init() {
	Register(&EPUBFormat{})
}

func (f *EPUBFormat) Name() string         { return "EPUB" }
func (f *EPUBFormat) Extensions() []string { return []string{".epub"} }
func (f *EPUBFormat) New(path string, src Source, opts Options) Reader {
	book := &spineRenderer{path: path, src: src}
	return NewFragmentReader(path, book, book, opts)
}

// Fragment ids produced and accepted by spineRenderer:
//
//	chapter.xhtml          start of a spine item
//	chapter.xhtml#anchor   start of a spine item
//	chapter.xhtml@120      120 words into a spine item
const wordMarker = "@"

type spineItem struct {
	id    string
	href  string
	title string
	start int
	words int
}

type spineRenderer struct {
	path string
	src  Source

	mu    sync.RWMutex
	items []spineItem
	words []string
}

// Outline opens the EPUB and converts every spine item to text.
func (b *spineRenderer) Outline(ctx context.Context) (*Outline, error) {
	data, err := b.src.ReadFile(b.path)
	if err != nil {
		return nil, err
	}
	rd, err := epub.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("failed to open epub: %w", err)
	}
	if len(rd.Rootfiles) == 0 {
		return nil, fmt.Errorf("no rootfiles found in epub")
	}
	book := rd.Rootfiles[0]

	toc, _ := readNCX(data, book)
	titles := tocTitles(toc)

	var items []spineItem
	var words []string
	for i, ref := range book.Spine.Itemrefs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if ref.Item == nil {
			continue
		}
		r, err := ref.Item.Open()
		if err != nil {
			continue
		}
		content, err := io.ReadAll(r)
		r.Close()
		if err != nil {
			continue
		}

		itemWords := strings.Fields(extractTextFromHTML(string(content)))
		if len(itemWords) == 0 {
			continue
		}

		title := fmt.Sprintf("Section %d", i+1)
		if t, ok := titles[ref.Item.HREF]; ok {
			title = t
		} else if t, ok := titles[path.Base(ref.Item.HREF)]; ok {
			title = t
		}

		items = append(items, spineItem{
			id:    ref.IDREF,
			href:  ref.Item.HREF,
			title: title,
			start: len(words),
			words: len(itemWords),
		})
		words = append(words, itemWords...)
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("no readable spine items in epub")
	}

	b.mu.Lock()
	b.items = items
	b.words = words
	b.mu.Unlock()

	sections := make([]Section, len(items))
	for i, it := range items {
		sections[i] = Section{
			ID:            it.id,
			Title:         it.title,
			StartFragment: it.href,
			EndFragment:   it.href + wordMarker + strconv.Itoa(it.words),
			WordCount:     it.words,
		}
	}

	title := book.Metadata.Title
	if title == "" {
		title = strings.TrimSuffix(filepath.Base(b.path), filepath.Ext(b.path))
	}
	md := statMetadata(b.src, b.path)
	if book.Metadata.Language != "" {
		md["language"] = book.Metadata.Language
	}
	if book.Metadata.Publisher != "" {
		md["publisher"] = book.Metadata.Publisher
	}
	md["spineItems"] = strconv.Itoa(len(items))

	return &Outline{
		Title:    title,
		Author:   book.Metadata.Creator,
		Metadata: md,
		Sections: sections,
		TOC:      toc,
	}, nil
}

func (b *spineRenderer) ResolvePercentage(ctx context.Context, pct float64) (string, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if len(b.words) == 0 {
		return "", ErrNotLoaded
	}
	target := int(clampPercentage(pct) / 100 * float64(len(b.words)))
	if target >= len(b.words) {
		target = len(b.words) - 1
	}
	i := sort.Search(len(b.items), func(i int) bool { return b.items[i].start > target }) - 1
	it := b.items[i]
	return it.href + wordMarker + strconv.Itoa(target-it.start), nil
}

func (b *spineRenderer) ResolveFragment(ctx context.Context, fragmentID string) (float64, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	off, err := b.wordOffset(fragmentID)
	if err != nil {
		return 0, err
	}
	return CalculatePercentage(off, len(b.words)), nil
}

func (b *spineRenderer) ExtractText(ctx context.Context, startFragment, endFragment string) (string, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	from, err := b.wordOffset(startFragment)
	if err != nil {
		return "", err
	}
	to, err := b.wordOffset(endFragment)
	if err != nil {
		return "", err
	}
	if to < from {
		return "", fmt.Errorf("fragment %q precedes %q", endFragment, startFragment)
	}
	return strings.Join(b.words[from:to], " "), nil
}

// wordOffset returns the book-wide word offset of a fragment id.
func (b *spineRenderer) wordOffset(fragmentID string) (int, error) {
	if len(b.words) == 0 {
		return 0, ErrNotLoaded
	}
	href, within := fragmentID, 0
	if i := strings.LastIndex(fragmentID, wordMarker); i != -1 {
		n, err := strconv.Atoi(fragmentID[i+len(wordMarker):])
		if err != nil || n < 0 {
			return 0, fmt.Errorf("malformed fragment %q", fragmentID)
		}
		href, within = fragmentID[:i], n
	} else if i := strings.Index(fragmentID, "#"); i != -1 {
		href = fragmentID[:i]
	}

	for _, it := range b.items {
		if it.href == href || path.Base(it.href) == path.Base(href) {
			return it.start + clampInt(within, 0, it.words), nil
		}
	}
	return 0, fmt.Errorf("unknown fragment %q", fragmentID)
}

// extractTextFromHTML returns the visible text of an XHTML document with a
// paragraph break after each block element.
func extractTextFromHTML(s string) string {
	doc, err := html.Parse(strings.NewReader(s))
	if err != nil {
		return ""
	}

	var out strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.DataAtom {
			case atom.Head, atom.Script, atom.Style:
				return
			}
		}
		if n.Type == html.TextNode {
			if t := strings.TrimSpace(n.Data); t != "" {
				out.WriteString(t)
				out.WriteString(" ")
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
		if n.Type == html.ElementNode && isBlock(n.DataAtom) {
			out.WriteString("\n\n")
		}
	}
	walk(doc)
	return CleanText(out.String())
}

func isBlock(a atom.Atom) bool {
	switch a {
	case atom.P, atom.Div, atom.H1, atom.H2, atom.H3, atom.H4, atom.H5, atom.H6,
		atom.Li, atom.Blockquote, atom.Pre, atom.Section, atom.Article, atom.Tr, atom.Br:
		return true
	}
	return false
}
