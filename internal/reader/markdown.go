package reader

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// MarkdownFormat implements Format for Markdown files. Documents are read
// linearly; headings become paragraphs of their own and form the TOC.
type MarkdownFormat struct{}

func init() {
	Register(&MarkdownFormat{})
}

func (f *MarkdownFormat) Name() string         { return "Markdown" }
func (f *MarkdownFormat) Extensions() []string { return []string{".md", ".markdown"} }
func (f *MarkdownFormat) New(path string, src Source, opts Options) Reader {
	r := NewLinearReader(path, src, opts)
	r.convert = convertMarkdown
	return r
}

// convertMarkdown renders src to blank-line separated paragraphs and builds
// a heading tree whose positions are word offsets into that text.
func convertMarkdown(src []byte) (string, []TOCEntry, error) {
	doc := goldmark.New().Parser().Parse(text.NewReader(src))

	var paragraphs []string
	wordCount := 0
	add := func(p string) {
		p = strings.TrimSpace(p)
		if p == "" {
			return
		}
		paragraphs = append(paragraphs, p)
		wordCount += CountWords(p)
	}

	type stackEntry struct {
		entry *TOCEntry
		level int
	}
	root := &TOCEntry{}
	stack := []stackEntry{{entry: root, level: 0}}
	headings := 0

	var blocks func(n ast.Node)
	blocks = func(n ast.Node) {
		switch node := n.(type) {
		case *ast.Heading:
			title := inlineText(node, src)
			if title == "" {
				return
			}
			headings++
			entry := TOCEntry{
				ID:       fmt.Sprintf("heading-%d", headings),
				Label:    title,
				Position: AtOffset(wordCount),
			}
			for len(stack) > 1 && stack[len(stack)-1].level >= node.Level {
				stack = stack[:len(stack)-1]
			}
			parent := stack[len(stack)-1].entry
			parent.Children = append(parent.Children, entry)
			stack = append(stack, stackEntry{
				entry: &parent.Children[len(parent.Children)-1],
				level: node.Level,
			})
			add(title)
		case *ast.Paragraph, *ast.TextBlock:
			add(inlineText(node, src))
		case *ast.CodeBlock, *ast.FencedCodeBlock:
			var buf bytes.Buffer
			lines := node.Lines()
			for i := 0; i < lines.Len(); i++ {
				seg := lines.At(i)
				buf.Write(seg.Value(src))
			}
			add(buf.String())
		case *ast.HTMLBlock, *ast.ThematicBreak:
		default:
			for c := n.FirstChild(); c != nil; c = c.NextSibling() {
				blocks(c)
			}
		}
	}
	blocks(doc)

	return strings.Join(paragraphs, "\n\n"), root.Children, nil
}

// inlineText flattens the inline children of a block to plain text.
func inlineText(n ast.Node, src []byte) string {
	var buf bytes.Buffer
	_ = ast.Walk(n, func(c ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch t := c.(type) {
		case *ast.Text:
			buf.Write(t.Segment.Value(src))
			if t.SoftLineBreak() || t.HardLineBreak() {
				buf.WriteByte(' ')
			}
		case *ast.String:
			buf.Write(t.Value)
		case *ast.AutoLink:
			buf.Write(t.Label(src))
		case *ast.RawHTML:
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})
	return strings.TrimSpace(buf.String())
}
