package reader

// Document is the immutable snapshot produced by Load. It lives until the
// reader is closed.
type Document struct {
	Title      string
	Author     string
	Chapters   []Chapter
	TotalPages int
	WordCount  int
	Metadata   map[string]string
}

// Chapter is a contiguous section of a document. For fixed-page and
// fragment-addressed formats Content is empty: the text lives with the page
// source or rendering engine.
type Chapter struct {
	ID        string
	Title     string
	Content   string
	WordCount int
	Start     Position
	End       Position
}

// SearchResult is one match of a search query.
type SearchResult struct {
	Position     Position
	Context      string
	MatchText    string
	ChapterTitle string
}

// TOCEntry is a node of a document's table of contents.
type TOCEntry struct {
	ID         string
	Label      string
	FragmentID string
	Position   Position
	Children   []TOCEntry
}

// TOCLine is a flattened TOCEntry with its nesting depth.
type TOCLine struct {
	TOCEntry
	Level int
}

// FlattenTOC walks the tree depth-first, top level at Level 0.
func FlattenTOC(entries []TOCEntry) []TOCLine {
	var out []TOCLine
	var walk func([]TOCEntry, int)
	walk = func(entries []TOCEntry, level int) {
		for _, e := range entries {
			out = append(out, TOCLine{TOCEntry: e, Level: level})
			walk(e.Children, level+1)
		}
	}
	walk(entries, 0)
	return out
}
