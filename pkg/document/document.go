package document

import "time"

const (
	// FormatVersion is written into every document envelope.
	FormatVersion = "1.0"
	// DefaultTTL is the lifetime of a new document.
	DefaultTTL = 7 * 24 * time.Hour
)

// Well-known top-level keys of a game state.
const (
	KeyDay    = "day"
	KeyPlayer = "player"
	KeyWorld  = "world"
	KeyNPC    = "npc"
)

// State is the application payload of a document. The store treats it as an
// opaque JSON object apart from the required keys checked by ValidateState.
type State map[string]any

// Metadata is the envelope maintained by the store.
type Metadata struct {
	ID             string
	CreatedAt      time.Time
	LastAccessedAt time.Time
	UpdatedAt      time.Time
	ExpiresAt      time.Time
	FormatVersion  string
}

// Document is one persisted game.
type Document struct {
	Metadata Metadata
	State    State
}

// New stamps a fresh envelope around state.
func New(id string, state State, now time.Time, ttl time.Duration) *Document {
	now = now.UTC()
	return &Document{
		Metadata: Metadata{
			ID:             id,
			CreatedAt:      now,
			LastAccessedAt: now,
			UpdatedAt:      now,
			ExpiresAt:      now.Add(ttl),
			FormatVersion:  FormatVersion,
		},
		State: state,
	}
}

// Expired reports whether now is strictly after the expiry instant.
func (d *Document) Expired(now time.Time) bool {
	return now.After(d.Metadata.ExpiresAt)
}

// Remaining returns the time left before expiry, or false once expired.
func (d *Document) Remaining(now time.Time) (time.Duration, bool) {
	if d.Expired(now) {
		return 0, false
	}
	return d.Metadata.ExpiresAt.Sub(now), true
}

// Touch records an access. It never moves ExpiresAt.
func (d *Document) Touch(now time.Time) {
	now = now.UTC()
	d.Metadata.LastAccessedAt = now
	d.Metadata.UpdatedAt = now
}

// Extend moves the expiry instant forward by by.
func (d *Document) Extend(by time.Duration) {
	d.Metadata.ExpiresAt = d.Metadata.ExpiresAt.Add(by)
}
