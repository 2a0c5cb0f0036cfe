package reader

import "errors"

// Error kinds surfaced by readers. Callers classify with errors.Is; the
// wrapped message carries detail for logs only.
var (
	// ErrNotLoaded is returned by any operation before Load succeeds, and
	// after a failed Load or Close.
	ErrNotLoaded = errors.New("reader: not loaded")

	// ErrInvalidPosition is returned for navigation targets outside
	// [1,totalPages], unsupported addressing keys, or fragment ids the
	// rendering engine cannot resolve. The current position is unchanged.
	ErrInvalidPosition = errors.New("reader: invalid position")

	// ErrTextExtractionTimeout is returned when the rendering engine does not
	// answer within the extraction timeout.
	ErrTextExtractionTimeout = errors.New("reader: text extraction timed out")

	// ErrExtraction is returned when the rendering engine reports a failure
	// or a pending extraction was superseded by a newer one.
	ErrExtraction = errors.New("reader: text extraction failed")

	// ErrFormatUnsupported is returned by Open before any reader is built.
	ErrFormatUnsupported = errors.New("reader: format unsupported")
)
