package main

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/metcalfc/lectern/internal/speech"
)

const (
	minWPM  = 100
	maxWPM  = 1500
	wpmStep = 50
)

// rsvp flashes the words of one page at a fixed rate, one at a time, with
// the recognition point of each word anchored at the centre of the screen.
type rsvp struct {
	words          []string
	sentenceStarts []int
	index          int
	wpm            int
	paused         bool
	lastArrowPress time.Time
}

func newRSVP(text string, wpm int) *rsvp {
	r := &rsvp{wpm: clampWPM(wpm)}
	for _, s := range speech.Segment(text) {
		r.sentenceStarts = append(r.sentenceStarts, len(r.words))
		r.words = append(r.words, strings.Fields(s.Text)...)
	}
	return r
}

func clampWPM(wpm int) int {
	if wpm < minWPM {
		return minWPM
	}
	if wpm > maxWPM {
		return maxWPM
	}
	return wpm
}

func (r *rsvp) delay() time.Duration {
	return time.Minute / time.Duration(r.wpm)
}

func (r *rsvp) word() string {
	if r.index >= 0 && r.index < len(r.words) {
		return r.words[r.index]
	}
	return ""
}

// advance moves to the next word. It reports false at the last word.
func (r *rsvp) advance() bool {
	if r.index < len(r.words)-1 {
		r.index++
		return true
	}
	return false
}

func (r *rsvp) faster() { r.wpm = clampWPM(r.wpm + wpmStep) }
func (r *rsvp) slower() { r.wpm = clampWPM(r.wpm - wpmStep) }

// arrow pauses unless the previous arrow press was recent, so holding an
// arrow key skips several sentences without stopping.
func (r *rsvp) arrow(now time.Time) {
	if now.Sub(r.lastArrowPress) > 500*time.Millisecond {
		r.paused = true
	}
	r.lastArrowPress = now
}

func (r *rsvp) prevSentence() {
	for i := len(r.sentenceStarts) - 1; i >= 0; i-- {
		if r.sentenceStarts[i] < r.index {
			r.index = r.sentenceStarts[i]
			return
		}
	}
	r.index = 0
}

func (r *rsvp) nextSentence() {
	for _, start := range r.sentenceStarts {
		if start > r.index {
			r.index = start
			return
		}
	}
	if len(r.words) > 0 {
		r.index = len(r.words) - 1
	}
}

// orpPosition returns the rune index the eye should fix on.
func orpPosition(word string) int {
	length := utf8.RuneCountInString(word)
	if length <= 1 {
		return 0
	} else if length <= 5 {
		return 1
	}
	return length / 3
}

func formatWord(word string) string {
	if word == "" {
		return ""
	}
	runes := []rune(word)
	orp := orpPosition(word)
	return wordStyle.Render(string(runes[:orp])) +
		orpStyle.Render(string(runes[orp])) +
		wordStyle.Render(string(runes[orp+1:]))
}

// anchorORPText left-pads text so the recognition point of word sits in
// the middle column of a line width wide.
func anchorORPText(text string, word string, width int) string {
	pad := width/2 - orpPosition(word)
	if pad < 0 {
		pad = 0
	}
	return strings.Repeat(" ", pad) + text
}
