package reader

import (
	"io/fs"
	"os"
	"strconv"
	"time"
)

// Source reads book bytes. Readers never write through it.
type Source interface {
	ReadFile(name string) ([]byte, error)
	Stat(name string) (fs.FileInfo, error)
}

// OSSource reads from the local file system.
type OSSource struct{}

func (OSSource) ReadFile(name string) ([]byte, error)  { return os.ReadFile(name) }
func (OSSource) Stat(name string) (fs.FileInfo, error) { return os.Stat(name) }

// FSSource reads from an fs.FS.
type FSSource struct {
	FS fs.FS
}

func (s FSSource) ReadFile(name string) ([]byte, error)  { return fs.ReadFile(s.FS, name) }
func (s FSSource) Stat(name string) (fs.FileInfo, error) { return fs.Stat(s.FS, name) }

func statMetadata(src Source, name string) map[string]string {
	md := map[string]string{"source": name}
	if info, err := src.Stat(name); err == nil {
		md["size"] = strconv.FormatInt(info.Size(), 10)
		md["modified"] = info.ModTime().UTC().Format(time.RFC3339)
	}
	return md
}
