package interfaces

import "errors"

var (
	// ErrNotFound is returned when the requested row does not exist.
	ErrNotFound = errors.New("not found")
	// ErrDuplicate is returned when a unique column already holds the value.
	ErrDuplicate = errors.New("already exists")
	// ErrVersionConflict is returned when a row changed since it was read.
	ErrVersionConflict = errors.New("version conflict")
)

var (
	// ErrUnsupportedMedia is returned by a PhotoStore for non-image uploads.
	ErrUnsupportedMedia = errors.New("unsupported file type")
	// ErrTooLarge is returned by a PhotoStore when an upload exceeds its limit.
	ErrTooLarge = errors.New("file too large")
)
