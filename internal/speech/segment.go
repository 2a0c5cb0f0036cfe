// Package speech segments text into sentences and words and plays them
// through a speech driver one sentence at a time.
package speech

import (
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/rivo/uniseg"
)

// ReferenceWPM is the speaking rate used for duration estimates.
const ReferenceWPM = 150

// Sentence is one unit of speech. Offsets are byte offsets into the text
// passed to Segment.
type Sentence struct {
	ID                int
	Text              string
	StartIndex        int
	EndIndex          int
	Words             []Word
	EstimatedDuration time.Duration
}

// Word is a word of a Sentence. Offsets are relative to the whole text.
type Word struct {
	Text       string
	StartIndex int
	EndIndex   int
}

// Lower-cased abbreviations that end in a period without ending a sentence.
var abbreviations = map[string]bool{
	"mr.": true, "mrs.": true, "ms.": true, "dr.": true, "prof.": true,
	"sr.": true, "jr.": true, "st.": true, "mt.": true, "rev.": true,
	"gen.": true, "col.": true, "capt.": true, "lt.": true, "sgt.": true,
	"vs.": true, "etc.": true, "e.g.": true, "i.e.": true, "cf.": true,
	"u.s.": true, "u.s.a.": true, "u.k.": true, "u.n.": true, "a.m.": true, "p.m.": true,
	"inc.": true, "ltd.": true, "co.": true, "corp.": true, "dept.": true,
	"no.": true, "vol.": true, "fig.": true, "ch.": true, "pp.": true,
	"approx.": true, "est.": true, "jan.": true, "feb.": true, "mar.": true,
	"apr.": true, "jun.": true, "jul.": true, "aug.": true, "sep.": true,
	"sept.": true, "oct.": true, "nov.": true, "dec.": true,
}

func isTerminal(b byte) bool {
	return b == '.' || b == '!' || b == '?'
}

// isCloser reports runes that stay with the sentence they close.
func isCloser(r rune) bool {
	switch r {
	case '"', '\'', ')', ']', '}', '”', '’', '»':
		return true
	}
	return false
}

// Segment splits text into sentences. A '.', '!' or '?' ends a sentence
// unless the next non-space letter is lowercase, the word before it is a known
// abbreviation, it is a decimal point, or it starts an ellipsis.
func Segment(text string) []Sentence {
	var sentences []Sentence
	start := 0

	for i := 0; i < len(text); {
		if !isTerminal(text[i]) {
			i++
			continue
		}

		if text[i] == '.' && i+1 < len(text) && text[i+1] == '.' {
			// Ellipsis: consume the run and keep accumulating.
			for i < len(text) && text[i] == '.' {
				i++
			}
			continue
		}

		end := i + 1
		for end < len(text) && isTerminal(text[end]) {
			end++
		}
		for end < len(text) {
			r, size := utf8.DecodeRuneInString(text[end:])
			if !isCloser(r) {
				break
			}
			end += size
		}

		if isBoundary(text, i, end) {
			sentences = appendSentence(sentences, text, start, end)
			start = end
		}
		i = end
	}
	return appendSentence(sentences, text, start, len(text))
}

// isBoundary decides whether the punctuation at i, whose run and closers
// end at end, finishes a sentence.
func isBoundary(text string, i, end int) bool {
	if end >= len(text) {
		return true
	}

	if text[i] == '.' && text[end] >= '0' && text[end] <= '9' {
		return false
	}

	if r, ok := lookahead(text[end:], 3); ok && unicode.IsLower(r) {
		return false
	}

	if text[i] == '.' {
		if abbreviations[strings.ToLower(wordBefore(text, i)+".")] {
			return false
		}
		// The first dots of "U.S." and "U.S.A" only see a single letter.
		tok := strings.ToLower(tokenAt(text, i))
		if abbreviations[tok] || abbreviations[tok+"."] {
			return false
		}
	}
	return true
}

// lookahead skips whitespace and returns the first rune within the next n
// that is not an opening quote or bracket.
func lookahead(s string, n int) (rune, bool) {
	s = strings.TrimLeftFunc(s, unicode.IsSpace)
	for _, r := range s {
		if n == 0 {
			break
		}
		n--
		if !isOpener(r) {
			return r, true
		}
	}
	return 0, false
}

func isOpener(r rune) bool {
	return strings.ContainsRune("\"'([{“‘«", r)
}

// wordBefore returns the whitespace-delimited word ending at i, without
// leading quotes or brackets.
func wordBefore(text string, i int) string {
	j := strings.LastIndexFunc(text[:i], unicode.IsSpace) + 1
	return strings.TrimLeft(text[j:i], "\"'([{“‘«")
}

// tokenAt returns the whitespace-delimited token containing i, without
// surrounding quotes, brackets or trailing commas.
func tokenAt(text string, i int) string {
	j := strings.LastIndexFunc(text[:i], unicode.IsSpace) + 1
	k := len(text)
	if n := strings.IndexFunc(text[i:], unicode.IsSpace); n >= 0 {
		k = i + n
	}
	tok := strings.TrimLeft(text[j:k], "\"'([{“‘«")
	return strings.TrimRight(tok, "\"')]}”’»,;:")
}

func appendSentence(sentences []Sentence, text string, start, end int) []Sentence {
	raw := text[start:end]
	trimmed := strings.TrimLeftFunc(raw, unicode.IsSpace)
	start += len(raw) - len(trimmed)
	trimmed = strings.TrimRightFunc(trimmed, unicode.IsSpace)
	if trimmed == "" {
		return sentences
	}

	words := Words(trimmed, start)
	return append(sentences, Sentence{
		ID:                len(sentences),
		Text:              trimmed,
		StartIndex:        start,
		EndIndex:          start + len(trimmed),
		Words:             words,
		EstimatedDuration: EstimateDuration(len(words)),
	})
}

// Words splits s into words on Unicode word boundaries, dropping spaces and
// punctuation. Offsets are shifted by base.
func Words(s string, base int) []Word {
	var words []Word
	state := -1
	offset := 0
	for len(s) > 0 {
		var w string
		w, s, state = uniseg.FirstWordInString(s, state)
		if strings.IndexFunc(w, isWordRune) >= 0 {
			words = append(words, Word{
				Text:       w,
				StartIndex: base + offset,
				EndIndex:   base + offset + len(w),
			})
		}
		offset += len(w)
	}
	return words
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

// EstimateDuration returns the time to speak n words at ReferenceWPM.
func EstimateDuration(n int) time.Duration {
	return time.Duration(float64(n) * float64(time.Minute) / ReferenceWPM)
}
