package reader

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

type field uint8

const (
	fieldPage field = 1 << iota
	fieldChapter
	fieldPercentage
	fieldOffset
	fieldFragment
)

// Position identifies a location in a book by one or more addressing keys:
// a one-based page, a chapter id, a percentage through the book, a raw word
// offset, or an opaque fragment id understood by a rendering engine.
//
// Positions are values. The With* methods return a copy; nothing mutates a
// Position in place. The zero Position has no key set and is not a valid
// navigation target.
type Position struct {
	set        field
	page       int
	chapterID  string
	percentage float64
	offset     int
	fragmentID string
}

// AtPage returns a Position addressing a one-based page.
func AtPage(n int) Position { return Position{}.WithPage(n) }

// AtPercentage returns a Position addressing a point through the book.
// The percentage is clamped to [0,100].
func AtPercentage(pct float64) Position { return Position{}.WithPercentage(pct) }

// AtOffset returns a Position addressing a raw word offset.
func AtOffset(offset int) Position { return Position{}.WithOffset(offset) }

// AtFragment returns a Position addressing an opaque fragment id.
func AtFragment(id string) Position { return Position{}.WithFragment(id) }

func (p Position) WithPage(n int) Position {
	p.page = n
	p.set |= fieldPage
	return p
}

func (p Position) WithChapter(id string) Position {
	p.chapterID = id
	p.set |= fieldChapter
	return p
}

func (p Position) WithPercentage(pct float64) Position {
	p.percentage = clampPercentage(pct)
	p.set |= fieldPercentage
	return p
}

func (p Position) WithOffset(offset int) Position {
	p.offset = offset
	p.set |= fieldOffset
	return p
}

func (p Position) WithFragment(id string) Position {
	p.fragmentID = id
	p.set |= fieldFragment
	return p
}

func (p Position) Page() (int, bool)              { return p.page, p.set&fieldPage != 0 }
func (p Position) ChapterID() (string, bool)      { return p.chapterID, p.set&fieldChapter != 0 }
func (p Position) Percentage() (float64, bool)    { return p.percentage, p.set&fieldPercentage != 0 }
func (p Position) Offset() (int, bool)            { return p.offset, p.set&fieldOffset != 0 }
func (p Position) FragmentID() (string, bool)     { return p.fragmentID, p.set&fieldFragment != 0 }
func (p Position) IsZero() bool                   { return p.set == 0 }
func (p Position) Equal(other Position) bool      { return p == other }

func (p Position) String() string {
	if p.IsZero() {
		return "position{}"
	}
	var parts []string
	if v, ok := p.Page(); ok {
		parts = append(parts, "page="+strconv.Itoa(v))
	}
	if v, ok := p.ChapterID(); ok {
		parts = append(parts, "chapter="+v)
	}
	if v, ok := p.Percentage(); ok {
		parts = append(parts, "pct="+strconv.FormatFloat(v, 'f', 2, 64))
	}
	if v, ok := p.Offset(); ok {
		parts = append(parts, "offset="+strconv.Itoa(v))
	}
	if v, ok := p.FragmentID(); ok {
		parts = append(parts, "fragment="+v)
	}
	return "position{" + strings.Join(parts, " ") + "}"
}

// positionJSON is the flat wire shape of a Position.
type positionJSON struct {
	Page       *int     `json:"page,omitempty"`
	ChapterID  *string  `json:"chapterId,omitempty"`
	Percentage *float64 `json:"percentage,omitempty"`
	Offset     *int     `json:"offset,omitempty"`
	FragmentID *string  `json:"fragmentId,omitempty"`
}

func (p Position) MarshalJSON() ([]byte, error) {
	var w positionJSON
	if v, ok := p.Page(); ok {
		w.Page = &v
	}
	if v, ok := p.ChapterID(); ok {
		w.ChapterID = &v
	}
	if v, ok := p.Percentage(); ok {
		w.Percentage = &v
	}
	if v, ok := p.Offset(); ok {
		w.Offset = &v
	}
	if v, ok := p.FragmentID(); ok {
		w.FragmentID = &v
	}
	return json.Marshal(w)
}

// UnmarshalJSON rejects objects with no key set and percentages outside [0,100].
func (p *Position) UnmarshalJSON(data []byte) error {
	var w positionJSON
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	var out Position
	if w.Page != nil {
		out = out.WithPage(*w.Page)
	}
	if w.ChapterID != nil {
		out = out.WithChapter(*w.ChapterID)
	}
	if w.Percentage != nil {
		if *w.Percentage < 0 || *w.Percentage > 100 {
			return fmt.Errorf("%w: percentage %v outside [0,100]", ErrInvalidPosition, *w.Percentage)
		}
		out = out.WithPercentage(*w.Percentage)
	}
	if w.Offset != nil {
		out = out.WithOffset(*w.Offset)
	}
	if w.FragmentID != nil {
		out = out.WithFragment(*w.FragmentID)
	}
	if out.IsZero() {
		return fmt.Errorf("%w: no addressing key set", ErrInvalidPosition)
	}
	*p = out
	return nil
}

func clampPercentage(pct float64) float64 {
	switch {
	case pct != pct: // NaN
		return 0
	case pct < 0:
		return 0
	case pct > 100:
		return 100
	}
	return pct
}
