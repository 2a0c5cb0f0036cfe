package speech

import (
	"strings"
	"time"
	"unicode"
	"unicode/utf8"
)

// Pauses maps punctuation to the silence a driver should leave after it.
// Pauses are rendered as padding: one space per Unit.
type Pauses struct {
	SentenceEnd time.Duration
	Clause      time.Duration // ';' and ':'
	Comma       time.Duration
	LineBreak   time.Duration
	Paragraph   time.Duration
	Quote       time.Duration // before and after quotation marks
	Dash        time.Duration // before and after dashes
	Unit        time.Duration
}

// DefaultPauses returns the standard pause table.
func DefaultPauses() Pauses {
	return Pauses{
		SentenceEnd: 500 * time.Millisecond,
		Clause:      300 * time.Millisecond,
		Comma:       200 * time.Millisecond,
		LineBreak:   400 * time.Millisecond,
		Paragraph:   800 * time.Millisecond,
		Quote:       150 * time.Millisecond,
		Dash:        250 * time.Millisecond,
		Unit:        100 * time.Millisecond,
	}
}

func (p Pauses) pad(d time.Duration) string {
	if p.Unit <= 0 || d <= 0 {
		return ""
	}
	n := int((d + p.Unit/2) / p.Unit)
	return strings.Repeat(" ", n)
}

// Annotate returns text with pause padding inserted after punctuation.
// Punctuation inside numbers and words ("3.14", "1,000", "e-mail") is left
// alone. The result is for the speech driver only.
func (p Pauses) Annotate(text string) string {
	var b strings.Builder
	b.Grow(len(text) + len(text)/4)

	for i := 0; i < len(text); {
		r, size := utf8.DecodeRuneInString(text[i:])

		switch {
		case r == '\n':
			j := i
			for j < len(text) && (text[j] == '\n' || text[j] == '\r') {
				j++
			}
			b.WriteString(text[i:j])
			if strings.Count(text[i:j], "\n") > 1 {
				b.WriteString(p.pad(p.Paragraph))
			} else {
				b.WriteString(p.pad(p.LineBreak))
			}
			i = j
			continue

		case r == '.' || r == '!' || r == '?':
			j := i
			for j < len(text) && (text[j] == '.' || text[j] == '!' || text[j] == '?') {
				j++
			}
			b.WriteString(text[i:j])
			if atBreak(text, j) {
				b.WriteString(p.pad(p.SentenceEnd))
			}
			i = j
			continue

		case r == ';' || r == ':':
			b.WriteRune(r)
			if atBreak(text, i+size) {
				b.WriteString(p.pad(p.Clause))
			}

		case r == ',':
			b.WriteRune(r)
			if atBreak(text, i+size) {
				b.WriteString(p.pad(p.Comma))
			}

		case r == '"' || r == '“' || r == '”':
			pad := p.pad(p.Quote)
			b.WriteString(pad)
			b.WriteRune(r)
			b.WriteString(pad)

		case r == '—' || r == '–' || (r == '-' && spaced(text, i, size)):
			pad := p.pad(p.Dash)
			b.WriteString(pad)
			b.WriteRune(r)
			b.WriteString(pad)

		default:
			b.WriteRune(r)
		}
		i += size
	}
	return b.String()
}

// atBreak reports whether position i is the end of text or whitespace.
func atBreak(text string, i int) bool {
	if i >= len(text) {
		return true
	}
	r, _ := utf8.DecodeRuneInString(text[i:])
	return unicode.IsSpace(r)
}

// spaced reports whether the rune at i has whitespace on both sides.
func spaced(text string, i, size int) bool {
	if i == 0 {
		return false
	}
	before, _ := utf8.DecodeLastRuneInString(text[:i])
	return unicode.IsSpace(before) && atBreak(text, i+size)
}
