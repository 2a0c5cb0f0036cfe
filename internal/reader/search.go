package reader

import (
	"context"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

const searchContextChars = 50

// Search finds query case-insensitively. Readers implementing Searcher search
// their own pages or fragments; otherwise every chapter with text is scanned
// and each match is placed by its progress through the chapter. Search never
// fails: a reader that is not loaded or has no text yields no results.
func Search(ctx context.Context, r Reader, query string) []SearchResult {
	if strings.TrimSpace(query) == "" {
		return nil
	}
	if s, ok := r.(Searcher); ok {
		return s.Search(ctx, query)
	}
	doc, err := r.Document()
	if err != nil {
		return nil
	}
	return searchChapters(ctx, doc, query)
}

func searchChapters(ctx context.Context, doc *Document, query string) []SearchResult {
	re := queryRegex(query)
	var results []SearchResult
	for _, ch := range doc.Chapters {
		if ctx.Err() != nil {
			break
		}
		if ch.Content == "" {
			continue
		}
		startPct, _ := ch.Start.Percentage()
		endPct, ok := ch.End.Percentage()
		if !ok {
			endPct = 100
		}
		for _, m := range findMatches(re, ch.Content) {
			progress := float64(m.index) / float64(len(ch.Content))
			pos := AtPercentage(startPct + progress*(endPct-startPct)).WithChapter(ch.ID)
			results = append(results, SearchResult{
				Position:     pos,
				Context:      m.context,
				MatchText:    m.text,
				ChapterTitle: ch.Title,
			})
		}
	}
	return results
}

// wordIndexAt returns the index of the whitespace-delimited word holding
// byte i of text.
func wordIndexAt(text string, i int) int {
	n := CountWords(text[:i])
	if last, _ := utf8.DecodeLastRuneInString(text[:i]); n > 0 && !unicode.IsSpace(last) {
		n--
	}
	return n
}

type match struct {
	index   int
	text    string
	context string
}

func queryRegex(query string) *regexp.Regexp {
	return regexp.MustCompile("(?i)" + regexp.QuoteMeta(strings.TrimSpace(query)))
}

func findMatches(re *regexp.Regexp, text string) []match {
	var out []match
	for _, loc := range re.FindAllStringIndex(text, -1) {
		out = append(out, match{
			index:   loc[0],
			text:    text[loc[0]:loc[1]],
			context: snippet(text, loc[0], loc[1]),
		})
	}
	return out
}

// snippet returns up to searchContextChars bytes either side of [start,end),
// widened to rune boundaries, with whitespace collapsed.
func snippet(text string, start, end int) string {
	from := start - searchContextChars
	if from < 0 {
		from = 0
	}
	for from > 0 && !utf8.RuneStart(text[from]) {
		from--
	}
	to := end + searchContextChars
	if to > len(text) {
		to = len(text)
	}
	for to < len(text) && !utf8.RuneStart(text[to]) {
		to++
	}
	return strings.Join(strings.Fields(text[from:to]), " ")
}
