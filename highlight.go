package main

import (
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/metcalfc/lectern/internal/reader"
)

const highlightColor = "yellow"

// addHighlight marks the sentence being spoken, or the whole page when
// speech is silent. Readers that address words get exact word offsets;
// the others get the page position at both ends.
func (m *model) addHighlight() {
	if strings.TrimSpace(m.text) == "" {
		m.status = "Nothing to highlight"
		return
	}
	from, to := 0, len(m.text)
	if s := m.sentence; s != nil && s.StartIndex >= 0 && s.EndIndex <= len(m.text) && s.StartIndex < s.EndIndex {
		from, to = s.StartIndex, s.EndIndex
	}

	start := m.rd.Position()
	end := start
	if off, ok := start.Offset(); ok {
		first := off + reader.CountWords(m.text[:from])
		if last, _ := utf8.DecodeLastRuneInString(m.text[:from]); from > 0 && !unicode.IsSpace(last) {
			first--
		}
		start = start.WithOffset(first)
		end = start.WithOffset(first + reader.CountWords(m.text[from:to]))
	}

	h := reader.AddHighlight(start, end, highlightColor, firstWords(m.text[from:to], 12))
	if m.store != nil {
		stored, err := m.store.AddHighlight(m.hash, h)
		if err != nil {
			m.setError(err)
			return
		}
		h = stored
	}
	m.highlights = append(m.highlights, h)
	m.status = "Highlighted " + h.Note
}

func (m *model) loadHighlights() {
	if m.store == nil {
		return
	}
	marks, err := m.store.Highlights(m.hash)
	if err != nil {
		m.setError(err)
		return
	}
	m.highlights = marks
}

func (m *model) deleteHighlight(h reader.Highlight) {
	if m.store != nil {
		if err := m.store.DeleteHighlight(m.hash, h.ID); err != nil {
			m.setError(err)
			return
		}
	}
	out := m.highlights[:0]
	for _, x := range m.highlights {
		if x.ID != h.ID {
			out = append(out, x)
		}
	}
	m.highlights = out
}

// pageHighlights returns the byte spans of the page text covered by
// highlights with word offsets.
func (m model) pageHighlights() [][2]int {
	if len(m.highlights) == 0 || m.rd == nil {
		return nil
	}
	pageStart, ok := m.rd.Position().Offset()
	if !ok {
		return nil
	}
	words := wordSpans(m.text)
	var spans [][2]int
	for _, h := range m.highlights {
		s, ok1 := h.Start.Offset()
		e, ok2 := h.End.Offset()
		if !ok1 || !ok2 {
			continue
		}
		a := max(s-pageStart, 0)
		b := min(e-pageStart, len(words))
		if a >= b {
			continue
		}
		spans = append(spans, [2]int{words[a][0], words[b-1][1]})
	}
	return spans
}

// wordSpans returns the byte range of each whitespace-delimited word.
func wordSpans(text string) [][2]int {
	var spans [][2]int
	start := -1
	for i, r := range text {
		if unicode.IsSpace(r) {
			if start >= 0 {
				spans = append(spans, [2]int{start, i})
				start = -1
			}
		} else if start < 0 {
			start = i
		}
	}
	if start >= 0 {
		spans = append(spans, [2]int{start, len(text)})
	}
	return spans
}

// markSpans styles each span of text. Spans overlapping an earlier one are
// merged into it.
func markSpans(text string, spans [][2]int) string {
	if len(spans) == 0 {
		return text
	}
	sort.Slice(spans, func(i, j int) bool { return spans[i][0] < spans[j][0] })
	var sb strings.Builder
	pos := 0
	for i := 0; i < len(spans); i++ {
		from, to := spans[i][0], spans[i][1]
		for i+1 < len(spans) && spans[i+1][0] <= to {
			to = max(to, spans[i+1][1])
			i++
		}
		from = max(from, pos)
		sb.WriteString(text[pos:from])
		sb.WriteString(highlightStyle.Render(text[from:to]))
		pos = to
	}
	sb.WriteString(text[pos:])
	return sb.String()
}
