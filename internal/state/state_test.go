package state

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/metcalfc/lectern/internal/reader"
)

func TestComputeHash(t *testing.T) {
	// Create temp file with known content
	tmpDir := t.TempDir()
	file1 := filepath.Join(tmpDir, "test1.txt")
	file2 := filepath.Join(tmpDir, "test2.txt")
	file3 := filepath.Join(tmpDir, "test1_copy.txt")

	os.WriteFile(file1, []byte("Hello, World!"), 0644)
	os.WriteFile(file2, []byte("Different content"), 0644)
	os.WriteFile(file3, []byte("Hello, World!"), 0644) // Same as file1

	hash1, err := ComputeHash(file1)
	if err != nil {
		t.Fatalf("ComputeHash failed: %v", err)
	}

	hash2, err := ComputeHash(file2)
	if err != nil {
		t.Fatalf("ComputeHash failed: %v", err)
	}

	hash3, err := ComputeHash(file3)
	if err != nil {
		t.Fatalf("ComputeHash failed: %v", err)
	}

	// Same content = same hash
	if hash1 != hash3 {
		t.Errorf("Same content should produce same hash: %s != %s", hash1, hash3)
	}

	// Different content = different hash
	if hash1 == hash2 {
		t.Errorf("Different content should produce different hash")
	}

	// Hash should be 32 hex chars
	if len(hash1) != 32 {
		t.Errorf("Hash should be 32 chars, got %d", len(hash1))
	}
}

func TestComputeHashSmallFile(t *testing.T) {
	tmpDir := t.TempDir()
	smallFile := filepath.Join(tmpDir, "small.txt")
	os.WriteFile(smallFile, []byte("tiny"), 0644)

	hash, err := ComputeHash(smallFile)
	if err != nil {
		t.Fatalf("ComputeHash failed on small file: %v", err)
	}

	if len(hash) != 32 {
		t.Errorf("Hash should be 32 chars even for small files, got %d", len(hash))
	}
}

func openStore(t *testing.T, dir string) *Store {
	t.Helper()
	store, err := Open(dir, nil)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	return store
}

const testHash = "abcdef1234567890abcdef1234567890"

func TestStore(t *testing.T) {
	store := openStore(t, t.TempDir())
	defer store.Close()

	// GetPosition reports nothing for unknown hash
	_, ok, err := store.GetPosition(testHash)
	if err != nil || ok {
		t.Errorf("Expected no position for unknown hash, got ok=%v err=%v", ok, err)
	}

	// SetPosition/GetPosition roundtrip
	want := reader.AtPage(12).WithPercentage(40).WithChapter("ch3")
	if err := store.SetPosition(testHash, want); err != nil {
		t.Fatalf("SetPosition failed: %v", err)
	}

	saved, ok, err := store.GetPosition(testHash)
	if err != nil || !ok {
		t.Fatalf("GetPosition failed: ok=%v err=%v", ok, err)
	}
	if !saved.Position.Equal(want) {
		t.Errorf("Expected %s, got %s", want, saved.Position)
	}
	if saved.UpdatedAt.IsZero() {
		t.Error("UpdatedAt not recorded")
	}

	// Clear removes entry
	if err := store.Clear(testHash); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	if _, ok, _ := store.GetPosition(testHash); ok {
		t.Error("Expected no position after clear")
	}
}

func TestStorePersistence(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv("XDG_STATE_HOME", tmpDir)

	// Create store and set position
	store1 := openStore(t, "")
	if got, want := store1.Path(), filepath.Join(tmpDir, "lectern", dbFileName); got != want {
		t.Errorf("Path() = %s, want %s", got, want)
	}
	store1.SetPosition(testHash, reader.AtOffset(5678))
	store1.AddBookmark(testHash, reader.AddBookmark(reader.AtPage(2), "kept", ""))
	store1.Close()

	// Reopen - should load persisted data
	store2 := openStore(t, "")
	defer store2.Close()

	saved, ok, err := store2.GetPosition(testHash)
	if err != nil || !ok {
		t.Fatalf("GetPosition failed: ok=%v err=%v", ok, err)
	}
	if off, _ := saved.Position.Offset(); off != 5678 {
		t.Errorf("Expected 5678 from persisted state, got %d", off)
	}

	marks, err := store2.Bookmarks(testHash)
	if err != nil || len(marks) != 1 || marks[0].Title != "kept" {
		t.Errorf("Bookmarks after reopen = %+v, %v", marks, err)
	}
}

func TestStoreBookmarks(t *testing.T) {
	store := openStore(t, t.TempDir())
	defer store.Close()

	first, err := store.AddBookmark(testHash, reader.AddBookmark(reader.AtPage(1), "one", ""))
	if err != nil {
		t.Fatal(err)
	}
	second, err := store.AddBookmark(testHash, reader.Bookmark{Position: reader.AtPage(5), Title: "two"})
	if err != nil {
		t.Fatal(err)
	}
	if second.ID != "2" {
		t.Errorf("bookmark without id got %q, want sequence 2", second.ID)
	}
	store.AddBookmark("otherbook", reader.AddBookmark(reader.AtPage(9), "elsewhere", ""))

	marks, err := store.Bookmarks(testHash)
	if err != nil {
		t.Fatal(err)
	}
	if len(marks) != 2 || marks[0].ID != first.ID || marks[1].Title != "two" {
		t.Fatalf("Bookmarks = %+v", marks)
	}
	if n, _ := marks[1].Position.Page(); n != 5 {
		t.Errorf("stored page = %d, want 5", n)
	}

	if err := store.DeleteBookmark(testHash, first.ID); err != nil {
		t.Fatalf("DeleteBookmark: %v", err)
	}
	if err := store.DeleteBookmark(testHash, first.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("second delete error = %v, want ErrNotFound", err)
	}
	if err := store.DeleteBookmark("unknown", "x"); !errors.Is(err, ErrNotFound) {
		t.Errorf("delete from unknown book error = %v, want ErrNotFound", err)
	}

	marks, _ = store.Bookmarks(testHash)
	if len(marks) != 1 || marks[0].Title != "two" {
		t.Errorf("Bookmarks after delete = %+v", marks)
	}

	if err := store.Clear(testHash); err != nil {
		t.Fatal(err)
	}
	if marks, _ := store.Bookmarks(testHash); len(marks) != 0 {
		t.Errorf("Bookmarks after Clear = %+v", marks)
	}
	if marks, _ := store.Bookmarks("otherbook"); len(marks) != 1 {
		t.Errorf("Clear removed another book's bookmarks")
	}
}

func TestStoreHighlights(t *testing.T) {
	store := openStore(t, t.TempDir())
	defer store.Close()

	h := reader.AddHighlight(reader.AtOffset(10), reader.AtOffset(25), "yellow", "")
	if _, err := store.AddHighlight(testHash, h); err != nil {
		t.Fatal(err)
	}
	got, err := store.Highlights(testHash)
	if err != nil || len(got) != 1 {
		t.Fatalf("Highlights = %+v, %v", got, err)
	}
	if got[0].ID != h.ID || !got[0].End.Equal(h.End) || got[0].Color != "yellow" {
		t.Errorf("stored highlight = %+v, want %+v", got[0], h)
	}

	if err := store.DeleteHighlight(testHash, h.ID); err != nil {
		t.Fatal(err)
	}
	if got, _ := store.Highlights(testHash); len(got) != 0 {
		t.Errorf("Highlights after delete = %+v", got)
	}
}
