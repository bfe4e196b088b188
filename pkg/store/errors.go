package store

import (
	"errors"
	"fmt"

	"github.com/harun/questkeep/pkg/document"
)

var (
	// ErrNotFound is returned when no document exists for an id.
	ErrNotFound = errors.New("document not found")
	// ErrExpired is returned for documents past their expiry. It wraps
	// ErrNotFound so callers testing only for absence treat both alike.
	ErrExpired = fmt.Errorf("document expired: %w", ErrNotFound)
	// ErrLockTimeout is returned when an advisory lock could not be taken in time.
	ErrLockTimeout = errors.New("timed out acquiring file lock")
	// ErrStorageIO wraps filesystem failures.
	ErrStorageIO = errors.New("storage I/O failure")

	ErrInvalidIdentifier = document.ErrInvalidIdentifier
	ErrCorruptDocument   = document.ErrCorruptDocument
	ErrInvalidDocument   = document.ErrInvalidDocument
)

func ioError(action, path string, err error) error {
	return fmt.Errorf("%w: failed to %s %s: %w", ErrStorageIO, action, path, err)
}

// resultLabel maps an operation outcome to its metrics label.
func resultLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrExpired):
		return "expired"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrInvalidIdentifier), errors.Is(err, ErrInvalidDocument):
		return "invalid"
	case errors.Is(err, ErrCorruptDocument):
		return "corrupt"
	default:
		return "error"
	}
}
