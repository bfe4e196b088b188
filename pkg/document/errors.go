package document

import "errors"

var (
	// ErrInvalidIdentifier is returned for ids that do not match the id format.
	ErrInvalidIdentifier = errors.New("invalid game id")
	// ErrCorruptDocument is returned when bytes cannot be decoded into a document.
	ErrCorruptDocument = errors.New("corrupt document")
	// ErrInvalidDocument is returned when a state fails structural validation.
	ErrInvalidDocument = errors.New("invalid document")
)
