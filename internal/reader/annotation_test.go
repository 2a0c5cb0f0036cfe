package reader

import (
	"encoding/json"
	"testing"
)

func TestAddBookmark(t *testing.T) {
	pos := AtPage(7).WithPercentage(70)

	a := AddBookmark(pos, "Here", "")
	b := AddBookmark(pos, "Here", "")
	if a.ID == "" || a.ID == b.ID {
		t.Errorf("bookmark ids %q and %q should be distinct and non-empty", a.ID, b.ID)
	}
	if !a.Position.Equal(pos) {
		t.Errorf("Position = %s, want %s", a.Position, pos)
	}
	if a.CreatedAt.IsZero() {
		t.Error("CreatedAt not set")
	}
}

func TestAddHighlight(t *testing.T) {
	h := AddHighlight(AtOffset(10), AtOffset(20), "yellow", "note")
	if h.ID == "" || h.Color != "yellow" || h.Note != "note" {
		t.Errorf("unexpected highlight %+v", h)
	}

	data, err := json.Marshal(h)
	if err != nil {
		t.Fatal(err)
	}
	var back Highlight
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatal(err)
	}
	if !back.Start.Equal(h.Start) || !back.End.Equal(h.End) || back.ID != h.ID {
		t.Errorf("round trip = %+v, want %+v", back, h)
	}
}
