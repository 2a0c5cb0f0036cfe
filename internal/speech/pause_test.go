package speech

import (
	"strings"
	"testing"
	"time"
)

func TestAnnotate(t *testing.T) {
	p := DefaultPauses()
	sp := strings.Repeat

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"comma", "Hi, there", "Hi," + sp(" ", 2) + " there"},
		{"sentence end", "Done. Next", "Done." + sp(" ", 5) + " Next"},
		{"end of text", "Done!", "Done!" + sp(" ", 5)},
		{"clause", "One; two: three", "One;" + sp(" ", 3) + " two:" + sp(" ", 3) + " three"},
		{"line break", "a\nb", "a\n" + sp(" ", 4) + "b"},
		{"paragraph", "a\n\nb", "a\n\n" + sp(" ", 8) + "b"},
		{"quotes", `say "hi"`, "say " + sp(" ", 2) + `"` + sp(" ", 2) + "hi" + sp(" ", 2) + `"` + sp(" ", 2)},
		{"em dash", "wait—no", "wait" + sp(" ", 3) + "—" + sp(" ", 3) + "no"},
		{"spaced hyphen", "wait - no", "wait " + sp(" ", 3) + "-" + sp(" ", 3) + " no"},
		{"numbers untouched", "3.14 and 1,000 at 10:30", "3.14 and 1,000 at 10:30"},
		{"hyphenated word", "e-mail", "e-mail"},
		{"ellipsis run", "So... yes", "So..." + sp(" ", 5) + " yes"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := p.Annotate(tt.input); got != tt.want {
				t.Errorf("Annotate(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestAnnotateKeepsWords(t *testing.T) {
	text := "Dr. Smith said, \"Wait—please.\"\n\nThen; nothing: at all."
	got := DefaultPauses().Annotate(text)
	if strings.Join(strings.Fields(got), "") != strings.Join(strings.Fields(text), "") {
		t.Errorf("Annotate changed the text: %q", got)
	}
}

func TestAnnotateZeroUnit(t *testing.T) {
	p := Pauses{Comma: 200 * time.Millisecond}
	if got := p.Annotate("a, b"); got != "a, b" {
		t.Errorf("Annotate with no unit = %q", got)
	}
}
