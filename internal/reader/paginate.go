package reader

import (
	"fmt"
	"math"
	"regexp"
	"strings"
)

var (
	blankLineRegex  = regexp.MustCompile(`\n[ \t]*\n`)
	horizontalSpace = regexp.MustCompile(`[ \t\f\v\x{00a0}]+`)
	blankLineRuns   = regexp.MustCompile(`\n{3,}`)
)

// CleanText collapses horizontal whitespace, trims lines and reduces runs of
// blank lines to a single paragraph break.
func CleanText(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(horizontalSpace.ReplaceAllString(line, " "))
	}
	text = strings.Join(lines, "\n")
	text = blankLineRuns.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}

// SplitParagraphs splits text on blank lines, dropping empty paragraphs.
func SplitParagraphs(text string) []string {
	var out []string
	for _, p := range blankLineRegex.Split(text, -1) {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// CountWords counts whitespace-separated words.
func CountWords(text string) int {
	return len(strings.Fields(text))
}

// SplitIntoPages groups paragraphs into pages of about wordsPerPage words.
// A paragraph is never split: one longer than wordsPerPage becomes its own
// oversized page.
func SplitIntoPages(text string, wordsPerPage int) []string {
	if wordsPerPage <= 0 {
		wordsPerPage = DefaultWordsPerPage
	}

	var pages []string
	var current []string
	currentWords := 0

	for _, para := range SplitParagraphs(text) {
		paraWords := CountWords(para)
		if currentWords+paraWords > wordsPerPage && len(current) > 0 {
			pages = append(pages, strings.Join(current, "\n\n"))
			current = nil
			currentWords = 0
		}
		current = append(current, para)
		currentWords += paraWords
	}
	if len(current) > 0 {
		pages = append(pages, strings.Join(current, "\n\n"))
	}
	return pages
}

// CalculatePercentage returns current/total as a percentage in [0,100].
// A zero total yields 0.
func CalculatePercentage(current, total int) float64 {
	if total <= 0 {
		return 0
	}
	return clampPercentage(float64(current) * 100 / float64(total))
}

// EstimateReadingTime returns whole minutes to read wordCount words.
func EstimateReadingTime(wordCount, wpm int) int {
	if wpm <= 0 {
		wpm = DefaultReadingWPM
	}
	if wordCount <= 0 {
		return 0
	}
	return int(math.Ceil(float64(wordCount) / float64(wpm)))
}

// pageForPercentage maps a percentage to the nearest page, clamped to [1,total].
// The epsilon keeps CalculatePercentage(n,total) mapping back to n.
func pageForPercentage(pct float64, total int) int {
	return clampPage(int(math.Ceil(pct/100*float64(total)-1e-9)), total)
}

// pageForOffset maps a raw word offset to a page, clamped to [1,total].
func pageForOffset(offset, wordsPerPage, total int) int {
	return clampPage(int(math.Ceil(float64(offset)/float64(wordsPerPage)))+1, total)
}

func clampPage(n, total int) int {
	if n < 1 {
		return 1
	}
	if n > total {
		return total
	}
	return n
}

func invalidPage(n, total int) error {
	return fmt.Errorf("%w: page %d outside [1,%d]", ErrInvalidPosition, n, total)
}
