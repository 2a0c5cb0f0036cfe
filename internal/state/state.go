// Package state persists reading positions, bookmarks and highlights per
// book in a bbolt database under the user's state directory.
package state

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/metcalfc/lectern/internal/reader"
	bolt "go.etcd.io/bbolt"
	"go.uber.org/zap"
)

const (
	dbFileName = "lectern.db"
	hashBytes  = 8192 // First 8KB for content hash
)

var (
	positionsBucket  = []byte("positions")
	bookmarksBucket  = []byte("bookmarks")
	highlightsBucket = []byte("highlights")
)

// ErrNotFound is returned when a bookmark or highlight id is unknown.
var ErrNotFound = errors.New("state: not found")

// SavedPosition is the last position recorded for a book.
type SavedPosition struct {
	Position  reader.Position `json:"position"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

// Store manages persistent reading state.
type Store struct {
	path string
	db   *bolt.DB
	log  *zap.Logger
}

// Open creates or opens the database in dir. An empty dir means StateDir().
func Open(dir string, log *zap.Logger) (*Store, error) {
	if dir == "" {
		dir = StateDir()
	}
	if log == nil {
		log = zap.NewNop()
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create state directory: %w", err)
	}

	path := filepath.Join(dir, dbFileName)
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open state database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{positionsBucket, bookmarksBucket, highlightsBucket} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create buckets: %w", err)
	}

	log.Debug("opened state store", zap.String("path", path))
	return &Store{path: path, db: db, log: log}, nil
}

// StateDir returns XDG_STATE_HOME/lectern or ~/.local/state/lectern
func StateDir() string {
	if dir := os.Getenv("XDG_STATE_HOME"); dir != "" {
		return filepath.Join(dir, "lectern")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".local", "state", "lectern")
}

// Path returns the database file path.
func (s *Store) Path() string { return s.path }

// ComputeHash generates content hash for file identity
func ComputeHash(filename string) (string, error) {
	f, err := os.Open(filename)
	if err != nil {
		return "", err
	}
	defer f.Close()

	buf := make([]byte, hashBytes)
	n, err := io.ReadFull(f, buf)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return "", err
	}

	hash := sha256.Sum256(buf[:n])
	return hex.EncodeToString(hash[:16]), nil // First 16 bytes = 32 hex chars
}

// GetPosition returns the saved position for a book. ok is false when none
// is stored.
func (s *Store) GetPosition(hash string) (pos SavedPosition, ok bool, err error) {
	err = s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(positionsBucket).Get([]byte(hash))
		if v == nil {
			return nil
		}
		ok = true
		return json.Unmarshal(v, &pos)
	})
	if err != nil {
		return SavedPosition{}, false, fmt.Errorf("read position: %w", err)
	}
	return pos, ok, nil
}

// SetPosition saves the position for a book.
func (s *Store) SetPosition(hash string, pos reader.Position) error {
	data, err := json.Marshal(SavedPosition{Position: pos, UpdatedAt: time.Now().UTC()})
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(positionsBucket).Put([]byte(hash), data)
	})
}

// Clear removes everything stored for a book.
func (s *Store) Clear(hash string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		if err := tx.Bucket(positionsBucket).Delete([]byte(hash)); err != nil {
			return err
		}
		for _, name := range [][]byte{bookmarksBucket, highlightsBucket} {
			err := tx.Bucket(name).DeleteBucket([]byte(hash))
			if err != nil && !errors.Is(err, bolt.ErrBucketNotFound) {
				return err
			}
		}
		return nil
	})
}

// AddBookmark stores b for a book. A bookmark without an id is given its
// sequence number.
func (s *Store) AddBookmark(hash string, b reader.Bookmark) (reader.Bookmark, error) {
	err := s.db.Update(func(tx *bolt.Tx) error {
		seq, err := appendRecord(tx, bookmarksBucket, hash, func(seq uint64) any {
			if b.ID == "" {
				b.ID = strconv.FormatUint(seq, 10)
			}
			return b
		})
		if err == nil {
			s.log.Debug("stored bookmark", zap.String("book", hash), zap.Uint64("seq", seq))
		}
		return err
	})
	if err != nil {
		return reader.Bookmark{}, fmt.Errorf("store bookmark: %w", err)
	}
	return b, nil
}

// Bookmarks returns a book's bookmarks in the order they were added.
func (s *Store) Bookmarks(hash string) ([]reader.Bookmark, error) {
	var out []reader.Bookmark
	err := s.db.View(func(tx *bolt.Tx) error {
		return eachRecord(tx, bookmarksBucket, hash, func(_, v []byte) error {
			var b reader.Bookmark
			if err := json.Unmarshal(v, &b); err != nil {
				return err
			}
			out = append(out, b)
			return nil
		})
	})
	return out, err
}

// DeleteBookmark removes the bookmark with the given id.
func (s *Store) DeleteBookmark(hash, id string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return deleteRecord(tx, bookmarksBucket, hash, func(v []byte) bool {
			var b reader.Bookmark
			return json.Unmarshal(v, &b) == nil && b.ID == id
		})
	})
}

// AddHighlight stores h for a book. A highlight without an id is given its
// sequence number.
func (s *Store) AddHighlight(hash string, h reader.Highlight) (reader.Highlight, error) {
	err := s.db.Update(func(tx *bolt.Tx) error {
		_, err := appendRecord(tx, highlightsBucket, hash, func(seq uint64) any {
			if h.ID == "" {
				h.ID = strconv.FormatUint(seq, 10)
			}
			return h
		})
		return err
	})
	if err != nil {
		return reader.Highlight{}, fmt.Errorf("store highlight: %w", err)
	}
	return h, nil
}

// Highlights returns a book's highlights in the order they were added.
func (s *Store) Highlights(hash string) ([]reader.Highlight, error) {
	var out []reader.Highlight
	err := s.db.View(func(tx *bolt.Tx) error {
		return eachRecord(tx, highlightsBucket, hash, func(_, v []byte) error {
			var h reader.Highlight
			if err := json.Unmarshal(v, &h); err != nil {
				return err
			}
			out = append(out, h)
			return nil
		})
	})
	return out, err
}

// DeleteHighlight removes the highlight with the given id.
func (s *Store) DeleteHighlight(hash, id string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return deleteRecord(tx, highlightsBucket, hash, func(v []byte) bool {
			var h reader.Highlight
			return json.Unmarshal(v, &h) == nil && h.ID == id
		})
	})
}

// Close closes the database.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// appendRecord stores the value built by fn under the next sequence number
// of the book's sub-bucket of parent.
func appendRecord(tx *bolt.Tx, parent []byte, hash string, fn func(seq uint64) any) (uint64, error) {
	b, err := tx.Bucket(parent).CreateBucketIfNotExists([]byte(hash))
	if err != nil {
		return 0, err
	}
	seq, err := b.NextSequence()
	if err != nil {
		return 0, err
	}
	data, err := json.Marshal(fn(seq))
	if err != nil {
		return 0, err
	}
	return seq, b.Put(seqKey(seq), data)
}

func eachRecord(tx *bolt.Tx, parent []byte, hash string, fn func(k, v []byte) error) error {
	b := tx.Bucket(parent).Bucket([]byte(hash))
	if b == nil {
		return nil
	}
	return b.ForEach(fn)
}

func deleteRecord(tx *bolt.Tx, parent []byte, hash string, match func(v []byte) bool) error {
	b := tx.Bucket(parent).Bucket([]byte(hash))
	if b == nil {
		return ErrNotFound
	}
	c := b.Cursor()
	for k, v := c.First(); k != nil; k, v = c.Next() {
		if match(v) {
			return c.Delete()
		}
	}
	return ErrNotFound
}

// seqKey encodes seq big-endian so keys sort in insertion order.
func seqKey(seq uint64) []byte {
	k := make([]byte, 8)
	binary.BigEndian.PutUint64(k, seq)
	return k
}
