package model

import "github.com/rotisserie/eris"

// Error taxonomy shared by the loader, segmenter, builder and publisher.
// Callers wrap these with context and test with errors.Is.
var (
	// ErrDataUnavailable means a file, directory or dataset key could not be
	// read. Fatal for the part.
	ErrDataUnavailable = eris.New("data unavailable")

	// ErrEmptySegment means a catalog step had no samples while no
	// degenerate-row policy was active.
	ErrEmptySegment = eris.New("empty segment")

	// ErrSchemaMismatch means channel, feature or column names disagree with
	// the catalog.
	ErrSchemaMismatch = eris.New("schema mismatch")

	// ErrPublishConflict means the remote service already holds the document.
	// Counted as success.
	ErrPublishConflict = eris.New("publish conflict")

	// ErrPublishTransient means the remote service reported a recoverable
	// condition and the document should be resubmitted.
	ErrPublishTransient = eris.New("publish transient")
)
