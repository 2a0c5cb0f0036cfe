package reader

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Format builds readers for one book format.
type Format interface {
	Name() string
	Extensions() []string
	New(path string, src Source, opts Options) Reader
}

var registry []Format

// Register adds a format to the registry.
func Register(f Format) {
	registry = append(registry, f)
}

// FormatFor returns the registered format for filename's extension.
func FormatFor(filename string) (Format, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	for _, f := range registry {
		for _, e := range f.Extensions() {
			if ext == e {
				return f, nil
			}
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrFormatUnsupported, ext)
}

// Open returns an unloaded reader for filename. Unknown extensions fail with
// ErrFormatUnsupported before any reader is built.
func Open(filename string, src Source, opts Options) (Reader, error) {
	f, err := FormatFor(filename)
	if err != nil {
		return nil, err
	}
	if src == nil {
		src = OSSource{}
	}
	return f.New(filename, src, opts), nil
}

// SupportedFormats returns registered format names with their extensions.
func SupportedFormats() []string {
	var out []string
	for _, f := range registry {
		out = append(out, f.Name()+" ("+strings.Join(f.Extensions(), ", ")+")")
	}
	return out
}
