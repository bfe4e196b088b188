package document

import (
	"encoding/json"
	"fmt"
	"time"
)

const timeLayout = time.RFC3339Nano

type wireMetadata struct {
	ID             string `json:"id"`
	CreatedAt      string `json:"created_at"`
	LastAccessedAt string `json:"last_accessed_at"`
	UpdatedAt      string `json:"updated_at"`
	ExpiresAt      string `json:"expires_at"`
	FormatVersion  string `json:"format_version"`
}

type wireDocument struct {
	Metadata wireMetadata   `json:"metadata"`
	State    map[string]any `json:"game_state"`
}

// Encode serialises doc as indented UTF-8 JSON. Object keys come out sorted
// and timestamps as RFC 3339 UTC strings, so equal documents encode to equal
// bytes.
func Encode(doc *Document) ([]byte, error) {
	if doc == nil {
		return nil, fmt.Errorf("%w: nil document", ErrInvalidDocument)
	}
	state := map[string]any(doc.State)
	if state == nil {
		state = map[string]any{}
	}
	w := wireDocument{
		Metadata: wireMetadata{
			ID:             doc.Metadata.ID,
			CreatedAt:      formatTime(doc.Metadata.CreatedAt),
			LastAccessedAt: formatTime(doc.Metadata.LastAccessedAt),
			UpdatedAt:      formatTime(doc.Metadata.UpdatedAt),
			ExpiresAt:      formatTime(doc.Metadata.ExpiresAt),
			FormatVersion:  doc.Metadata.FormatVersion,
		},
		State: state,
	}
	data, err := json.MarshalIndent(w, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode document %s: %w", doc.Metadata.ID, err)
	}
	return append(data, '\n'), nil
}

// Decode parses raw into a document. Malformed JSON, a missing envelope key,
// an unparsable timestamp or a state that fails validation all yield an
// error wrapping ErrCorruptDocument.
func Decode(raw []byte) (*Document, error) {
	if err := validateEnvelope(raw); err != nil {
		return nil, err
	}

	var w wireDocument
	if err := json.Unmarshal(raw, &w); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptDocument, err)
	}

	doc := &Document{
		Metadata: Metadata{
			ID:            w.Metadata.ID,
			FormatVersion: w.Metadata.FormatVersion,
		},
		State: State(w.State),
	}

	fields := []struct {
		name string
		raw  string
		dst  *time.Time
	}{
		{"created_at", w.Metadata.CreatedAt, &doc.Metadata.CreatedAt},
		{"last_accessed_at", w.Metadata.LastAccessedAt, &doc.Metadata.LastAccessedAt},
		{"updated_at", w.Metadata.UpdatedAt, &doc.Metadata.UpdatedAt},
		{"expires_at", w.Metadata.ExpiresAt, &doc.Metadata.ExpiresAt},
	}
	for _, f := range fields {
		t, err := time.Parse(timeLayout, f.raw)
		if err != nil {
			return nil, fmt.Errorf("%w: metadata.%s: %v", ErrCorruptDocument, f.name, err)
		}
		*f.dst = t.UTC()
	}

	return doc, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}
