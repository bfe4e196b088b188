package document

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

// DefaultIDPrefix is the prefix used for game ids.
const DefaultIDPrefix = "game"

var (
	prefixPattern = regexp.MustCompile(`^[a-z][a-z0-9]*$`)
	uuidPattern   = regexp.MustCompile(`^[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`)
)

// NewID returns "<prefix>_<uuid v4>".
func NewID(prefix string) string {
	return prefix + "_" + uuid.NewString()
}

// ValidatePrefix checks that prefix is usable in ids and file names.
func ValidatePrefix(prefix string) error {
	if !prefixPattern.MatchString(prefix) {
		return fmt.Errorf("%w: prefix %q must be lower-case alphanumeric", ErrInvalidIdentifier, prefix)
	}
	return nil
}

// ValidateID reports whether id is "<prefix>_" followed by a lower-case
// canonical UUID. Anything else, including path separators and traversal
// sequences, is rejected.
func ValidateID(prefix, id string) error {
	rest, ok := strings.CutPrefix(id, prefix+"_")
	if !ok || prefix == "" || !uuidPattern.MatchString(rest) {
		return fmt.Errorf("%w: %q", ErrInvalidIdentifier, id)
	}
	return nil
}
