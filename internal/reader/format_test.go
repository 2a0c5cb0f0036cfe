package reader

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestOpen(t *testing.T) {
	tmpDir := t.TempDir()

	t.Run("plain text", func(t *testing.T) {
		content := "Hello world this is a test."
		path := filepath.Join(tmpDir, "test.txt")
		os.WriteFile(path, []byte(content), 0644)

		r, err := Open(path, nil, DefaultOptions())
		if err != nil {
			t.Fatalf("Open: %v", err)
		}
		if _, err := r.Load(context.Background()); err != nil {
			t.Fatalf("Load: %v", err)
		}
		got, err := PageText(context.Background(), r, 1)
		if err != nil {
			t.Fatalf("PageText: %v", err)
		}
		if got != content {
			t.Errorf("got %q, want %q", got, content)
		}
	})

	t.Run("extension case", func(t *testing.T) {
		r, err := Open("BOOK.TXT", nil, DefaultOptions())
		if err != nil {
			t.Fatalf("Open: %v", err)
		}
		if _, ok := r.(*LinearReader); !ok {
			t.Errorf("got %T, want *LinearReader", r)
		}
	})

	t.Run("unknown extension", func(t *testing.T) {
		r, err := Open(filepath.Join(tmpDir, "test.docx"), nil, DefaultOptions())
		if !errors.Is(err, ErrFormatUnsupported) {
			t.Errorf("error = %v, want ErrFormatUnsupported", err)
		}
		if r != nil {
			t.Errorf("got reader %T for unsupported format", r)
		}
	})

	t.Run("nonexistent file", func(t *testing.T) {
		r, err := Open(filepath.Join(tmpDir, "nonexistent.txt"), nil, DefaultOptions())
		if err != nil {
			t.Fatalf("Open: %v", err)
		}
		if _, err := r.Load(context.Background()); err == nil {
			t.Error("expected error")
		}
	})

	t.Run("corrupt pdf", func(t *testing.T) {
		path := filepath.Join(tmpDir, "broken.pdf")
		os.WriteFile(path, []byte("not a pdf"), 0644)

		r, err := Open(path, nil, DefaultOptions())
		if err != nil {
			t.Fatalf("Open: %v", err)
		}
		if _, err := r.Load(context.Background()); err == nil {
			t.Error("expected error")
		}
		if r.TotalPages() != 0 {
			t.Errorf("TotalPages = %d after failed Load", r.TotalPages())
		}
	})
}

func TestFormats(t *testing.T) {
	tests := []struct {
		format Format
		name   string
		exts   []string
	}{
		{&EPUBFormat{}, "EPUB", []string{".epub"}},
		{&PDFFormat{}, "PDF", []string{".pdf"}},
		{&MarkdownFormat{}, "Markdown", []string{".md", ".markdown"}},
		{&PlainTextFormat{}, "Plain text", []string{".txt", ".text"}},
	}
	for _, tt := range tests {
		if tt.format.Name() != tt.name {
			t.Errorf("Name() = %q, want %q", tt.format.Name(), tt.name)
		}
		if got := strings.Join(tt.format.Extensions(), ","); got != strings.Join(tt.exts, ",") {
			t.Errorf("%s Extensions() = %v, want %v", tt.name, got, tt.exts)
		}
		for _, ext := range tt.exts {
			f, err := FormatFor("book" + ext)
			if err != nil {
				t.Fatalf("FormatFor(%s): %v", ext, err)
			}
			if f.Name() != tt.name {
				t.Errorf("FormatFor(%s) = %s, want %s", ext, f.Name(), tt.name)
			}
		}
	}
}

func TestSupportedFormats(t *testing.T) {
	got := strings.Join(SupportedFormats(), "; ")
	for _, want := range []string{"EPUB (.epub)", "PDF (.pdf)", "Markdown (.md, .markdown)"} {
		if !strings.Contains(got, want) {
			t.Errorf("SupportedFormats() = %q, missing %q", got, want)
		}
	}
}
