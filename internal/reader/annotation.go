package reader

import (
	"time"

	"github.com/google/uuid"
)

// Bookmark marks a single position. Readers only construct bookmarks;
// storing them is the caller's job.
type Bookmark struct {
	ID        string    `json:"id"`
	Position  Position  `json:"position"`
	Title     string    `json:"title,omitempty"`
	Note      string    `json:"note,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// Highlight marks a range between two positions.
type Highlight struct {
	ID        string    `json:"id"`
	Start     Position  `json:"start"`
	End       Position  `json:"end"`
	Color     string    `json:"color"`
	Note      string    `json:"note,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// AddBookmark returns a new Bookmark with a fresh id.
func AddBookmark(pos Position, title, note string) Bookmark {
	return Bookmark{
		ID:        uuid.NewString(),
		Position:  pos,
		Title:     title,
		Note:      note,
		CreatedAt: time.Now(),
	}
}

// AddHighlight returns a new Highlight with a fresh id.
func AddHighlight(start, end Position, color, note string) Highlight {
	return Highlight{
		ID:        uuid.NewString(),
		Start:     start,
		End:       end,
		Color:     color,
		Note:      note,
		CreatedAt: time.Now(),
	}
}
