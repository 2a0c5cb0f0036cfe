package reader

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

type fakePages struct {
	pages   []string
	title   string
	failing map[int]bool
	fetches map[int]int
	closed  bool
}

func newFakePages(pages ...string) *fakePages {
	return &fakePages{pages: pages, failing: map[int]bool{}, fetches: map[int]int{}}
}

func (f *fakePages) Open(ctx context.Context) (PageInfo, error) {
	return PageInfo{Pages: len(f.pages), Title: f.title}, nil
}

func (f *fakePages) PageText(ctx context.Context, n int) (string, error) {
	f.fetches[n]++
	if f.failing[n] {
		return "", fmt.Errorf("page %d is damaged", n)
	}
	return f.pages[n-1], nil
}

func (f *fakePages) Close() error {
	f.closed = true
	return nil
}

func loadPaged(t *testing.T, src *fakePages) *PagedReader {
	t.Helper()
	r := NewPagedReader("scan.pdf", src, DefaultOptions())
	if _, err := r.Load(context.Background()); err != nil {
		t.Fatalf("Load: %v", err)
	}
	return r
}

func TestPagedLoad(t *testing.T) {
	src := newFakePages("one", "two", "three", "four")
	r := loadPaged(t, src)

	doc, _ := r.Document()
	if doc.Title != "scan" {
		t.Errorf("Title = %q, want fallback scan", doc.Title)
	}
	if r.TotalPages() != 4 || r.CurrentPage() != 1 {
		t.Errorf("pages = %d/%d, want 1/4", r.CurrentPage(), r.TotalPages())
	}
	if len(src.fetches) != 0 {
		t.Errorf("Load fetched %d pages, want none", len(src.fetches))
	}

	src.pages = nil
	if _, err := r.Load(context.Background()); err == nil {
		t.Error("Load of an empty document should fail")
	}
	if r.CurrentPage() != 0 {
		t.Errorf("CurrentPage = %d after failed Load", r.CurrentPage())
	}
	if !src.closed {
		t.Error("failed Load left the page source open")
	}
}

func TestPagedPageTextCached(t *testing.T) {
	ctx := context.Background()
	src := newFakePages("  first   page  ", "second")
	r := loadPaged(t, src)

	for i := 0; i < 3; i++ {
		got, err := r.PageText(ctx, 1)
		if err != nil {
			t.Fatal(err)
		}
		if got != "first page" {
			t.Errorf("PageText(1) = %q", got)
		}
	}
	if src.fetches[1] != 1 {
		t.Errorf("page 1 fetched %d times, want 1", src.fetches[1])
	}
	if _, err := r.PageText(ctx, 3); !errors.Is(err, ErrInvalidPosition) {
		t.Errorf("PageText(3) error = %v", err)
	}

	src.failing[2] = true
	if _, err := r.PageText(ctx, 2); !errors.Is(err, ErrExtraction) {
		t.Errorf("damaged page error = %v, want ErrExtraction", err)
	}
}

func TestPagedNavigate(t *testing.T) {
	ctx := context.Background()
	r := loadPaged(t, newFakePages("a", "b", "c", "d"))

	tests := []struct {
		pos  Position
		want int
	}{
		{AtPage(3), 3},
		{AtPercentage(0), 1},
		{AtPercentage(50), 2},
		{AtPercentage(51), 3},
		{AtPercentage(100), 4},
	}
	for _, tt := range tests {
		if err := r.NavigateToPosition(ctx, tt.pos); err != nil {
			t.Fatalf("NavigateToPosition(%s): %v", tt.pos, err)
		}
		if r.CurrentPage() != tt.want {
			t.Errorf("NavigateToPosition(%s) page = %d, want %d", tt.pos, r.CurrentPage(), tt.want)
		}
	}

	before := r.Position()
	for _, pos := range []Position{AtOffset(10), AtFragment("x"), AtPage(5)} {
		if err := r.NavigateToPosition(ctx, pos); !errors.Is(err, ErrInvalidPosition) {
			t.Errorf("NavigateToPosition(%s) error = %v", pos, err)
		}
	}
	if !r.Position().Equal(before) {
		t.Errorf("rejected navigation moved the reader to %s", r.Position())
	}

	for _, n := range []int{0, -1, r.TotalPages() + 1} {
		if err := r.NavigateToPage(ctx, n); !errors.Is(err, ErrInvalidPosition) {
			t.Errorf("NavigateToPage(%d) error = %v, want ErrInvalidPosition", n, err)
		}
	}
	if !r.Position().Equal(before) {
		t.Errorf("rejected NavigateToPage moved the reader to %s", r.Position())
	}
	if err := r.NavigateToPage(ctx, r.TotalPages()); err != nil {
		t.Fatalf("NavigateToPage(last): %v", err)
	}
	if r.CurrentPage() != 4 {
		t.Errorf("CurrentPage = %d, want 4", r.CurrentPage())
	}
}

func TestPagedExtractText(t *testing.T) {
	ctx := context.Background()
	r := loadPaged(t, newFakePages("a", "", "c", "d"))

	got, err := r.ExtractText(ctx, AtPage(1), AtPage(3))
	if err != nil {
		t.Fatal(err)
	}
	if got != "a\n\nc" {
		t.Errorf("ExtractText = %q", got)
	}
	if _, err := r.ExtractText(ctx, AtPage(3), AtPage(1)); !errors.Is(err, ErrInvalidPosition) {
		t.Errorf("reversed range error = %v", err)
	}
}

func TestPagedSearch(t *testing.T) {
	src := newFakePages("nothing here", "a Whale appears", "damaged", "whale and whale")
	src.title = "Moby"
	src.failing[3] = true
	r := loadPaged(t, src)

	results := Search(context.Background(), r, "whale")
	if len(results) != 3 {
		t.Fatalf("got %d results, want 3", len(results))
	}
	wantPages := []int{2, 4, 4}
	for i, res := range results {
		if n, _ := res.Position.Page(); n != wantPages[i] {
			t.Errorf("result %d on page %d, want %d", i, n, wantPages[i])
		}
		if res.ChapterTitle != "Moby" {
			t.Errorf("ChapterTitle = %q", res.ChapterTitle)
		}
	}
}

func TestPagedClose(t *testing.T) {
	src := newFakePages("a")
	r := loadPaged(t, src)
	if err := r.Close(); err != nil {
		t.Fatal(err)
	}
	if !src.closed {
		t.Error("Close did not close the page source")
	}
	if _, err := r.PageText(context.Background(), 1); !errors.Is(err, ErrNotLoaded) {
		t.Errorf("PageText after Close error = %v", err)
	}
}
