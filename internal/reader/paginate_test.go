package reader

import (
	"fmt"
	"math/rand"
	"strings"
	"testing"
)

// numberedWords returns n distinct words starting at w<start>.
func numberedWords(start, n int) string {
	words := make([]string, n)
	for i := range words {
		words[i] = fmt.Sprintf("w%d", start+i)
	}
	return strings.Join(words, " ")
}

func paragraphs(sizes ...int) string {
	var out []string
	next := 0
	for _, n := range sizes {
		out = append(out, numberedWords(next, n))
		next += n
	}
	return strings.Join(out, "\n\n")
}

func TestSplitIntoPagesKeepsParagraphsWhole(t *testing.T) {
	pages := SplitIntoPages(paragraphs(400, 300, 300), 250)

	want := []int{400, 300, 300}
	if len(pages) != len(want) {
		t.Fatalf("got %d pages, want %d", len(pages), len(want))
	}
	for i, p := range pages {
		if got := CountWords(p); got != want[i] {
			t.Errorf("page %d has %d words, want %d", i+1, got, want[i])
		}
	}
}

func TestSplitIntoPagesOversizedParagraph(t *testing.T) {
	pages := SplitIntoPages(paragraphs(10, 600, 10), 100)

	if len(pages) != 3 {
		t.Fatalf("got %d pages, want 3", len(pages))
	}
	if got := CountWords(pages[1]); got != 600 {
		t.Errorf("oversized page has %d words, want 600", got)
	}
	if strings.Contains(pages[1], "\n\n") {
		t.Error("oversized paragraph should be alone on its page")
	}
}

func TestSplitIntoPagesGroupsSmallParagraphs(t *testing.T) {
	pages := SplitIntoPages(paragraphs(100, 100, 100, 100, 100), 250)

	want := []int{200, 200, 100}
	if len(pages) != len(want) {
		t.Fatalf("got %d pages, want %d", len(pages), len(want))
	}
	for i, p := range pages {
		if got := CountWords(p); got != want[i] {
			t.Errorf("page %d has %d words, want %d", i+1, got, want[i])
		}
	}
}

func TestSplitIntoPagesPreservesWords(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for trial := 0; trial < 50; trial++ {
		var sizes []int
		for i := rng.Intn(12); i >= 0; i-- {
			sizes = append(sizes, 1+rng.Intn(400))
		}
		text := paragraphs(sizes...)
		wpp := 1 + rng.Intn(300)

		pages := SplitIntoPages(text, wpp)
		got := strings.Fields(strings.Join(pages, " "))
		want := strings.Fields(text)

		if len(got) != len(want) {
			t.Fatalf("trial %d: %d words after paging, want %d", trial, len(got), len(want))
		}
		for i := range want {
			if got[i] != want[i] {
				t.Fatalf("trial %d: word %d = %q, want %q", trial, i, got[i], want[i])
			}
		}
	}
}

func TestSplitIntoPagesEmpty(t *testing.T) {
	if pages := SplitIntoPages("  \n\n \n", 250); len(pages) != 0 {
		t.Errorf("got %d pages for blank text", len(pages))
	}
}

func TestCleanText(t *testing.T) {
	tests := []struct {
		name, in, want string
	}{
		{"collapses spaces", "Hello    world\t\ttest", "Hello world test"},
		{"trims lines", "  one  \n  two  ", "one\ntwo"},
		{"blank line runs", "one\n\n\n\n\ntwo", "one\n\ntwo"},
		{"whitespace-only lines", "one\n   \n\t\ntwo", "one\n\ntwo"},
		{"windows newlines", "one\r\n\r\ntwo", "one\n\ntwo"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CleanText(tt.in); got != tt.want {
				t.Errorf("CleanText(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestCalculatePercentage(t *testing.T) {
	if got := CalculatePercentage(5, 0); got != 0 {
		t.Errorf("zero total = %v, want 0", got)
	}
	if got := CalculatePercentage(12, 10); got != 100 {
		t.Errorf("past end = %v, want 100", got)
	}

	for _, total := range []int{1, 3, 7, 250, 1001} {
		prev := -1.0
		for p := 1; p <= total; p++ {
			got := CalculatePercentage(p, total)
			if got < 0 || got > 100 {
				t.Fatalf("CalculatePercentage(%d,%d) = %v outside [0,100]", p, total, got)
			}
			if got < prev {
				t.Fatalf("CalculatePercentage(%d,%d) = %v decreased from %v", p, total, got, prev)
			}
			prev = got
		}
	}
}

func TestPageForPercentageRoundTrip(t *testing.T) {
	for _, total := range []int{1, 3, 7, 49, 250} {
		for p := 1; p <= total; p++ {
			if got := pageForPercentage(CalculatePercentage(p, total), total); got != p {
				t.Fatalf("total %d: page %d maps back to %d", total, p, got)
			}
		}
	}
}

func TestEstimateReadingTime(t *testing.T) {
	tests := []struct {
		words, wpm, want int
	}{
		{0, 200, 0},
		{1, 200, 1},
		{200, 200, 1},
		{201, 200, 2},
		{1000, 0, 5},
		{900, 300, 3},
	}
	for _, tt := range tests {
		if got := EstimateReadingTime(tt.words, tt.wpm); got != tt.want {
			t.Errorf("EstimateReadingTime(%d, %d) = %d, want %d", tt.words, tt.wpm, got, tt.want)
		}
	}
}
