package document

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	doc := New("game_123e4567-e89b-42d3-a456-426614174000", sampleState(), t0.Add(123*time.Nanosecond), DefaultTTL)

	data, err := Encode(doc)
	require.NoError(t, err)

	decoded, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, doc.Metadata, decoded.Metadata)
	assert.Equal(t, doc.State, decoded.State)
}

func TestEncodeIsDeterministic(t *testing.T) {
	doc := New("game_x", sampleState(), t0, DefaultTTL)

	first, err := Encode(doc)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := Encode(doc)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestEncodeWritesISOTimestampsAndEnvelopeKeys(t *testing.T) {
	local := time.FixedZone("UTC+7", 7*3600)
	doc := New("game_x", sampleState(), time.Date(2026, 3, 14, 16, 30, 0, 0, local), DefaultTTL)

	data, err := Encode(doc)
	require.NoError(t, err)

	s := string(data)
	assert.Contains(t, s, `"created_at": "2026-03-14T09:30:00Z"`)
	assert.Contains(t, s, `"expires_at": "2026-03-21T09:30:00Z"`)
	assert.Contains(t, s, `"format_version": "1.0"`)
	assert.Contains(t, s, `"game_state": {`)
}

func TestEncodeNilStateAsObject(t *testing.T) {
	data, err := Encode(&Document{Metadata: Metadata{ID: "game_x"}})
	require.NoError(t, err)
	assert.Contains(t, string(data), `"game_state": {}`)

	_, err = Encode(nil)
	assert.ErrorIs(t, err, ErrInvalidDocument)
}

func TestDecodeCorrupt(t *testing.T) {
	valid, err := Encode(New("game_x", sampleState(), t0, DefaultTTL))
	require.NoError(t, err)

	tests := []struct {
		name string
		raw  string
	}{
		{"empty", ""},
		{"truncated", string(valid[:len(valid)/2])},
		{"not an object", `[1,2,3]`},
		{"null", `null`},
		{"missing metadata", `{"game_state":{"day":1,"player":{},"world":{}}}`},
		{"missing state", `{"metadata":{"id":"a","created_at":"2026-01-01T00:00:00Z","last_accessed_at":"2026-01-01T00:00:00Z","updated_at":"2026-01-01T00:00:00Z","expires_at":"2026-01-01T00:00:00Z","format_version":"1.0"}}`},
		{"missing expires_at", `{"metadata":{"id":"a","created_at":"2026-01-01T00:00:00Z","last_accessed_at":"2026-01-01T00:00:00Z","updated_at":"2026-01-01T00:00:00Z","format_version":"1.0"},"game_state":{"day":1,"player":{},"world":{}}}`},
		{"bad timestamp", `{"metadata":{"id":"a","created_at":"yesterday","last_accessed_at":"2026-01-01T00:00:00Z","updated_at":"2026-01-01T00:00:00Z","expires_at":"2026-01-01T00:00:00Z","format_version":"1.0"},"game_state":{"day":1,"player":{},"world":{}}}`},
		{"state missing world", `{"metadata":{"id":"a","created_at":"2026-01-01T00:00:00Z","last_accessed_at":"2026-01-01T00:00:00Z","updated_at":"2026-01-01T00:00:00Z","expires_at":"2026-01-01T00:00:00Z","format_version":"1.0"},"game_state":{"day":1,"player":{}}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode([]byte(tt.raw))
			assert.ErrorIs(t, err, ErrCorruptDocument)
		})
	}
}

func TestDecodeAcceptsSecondPrecision(t *testing.T) {
	raw := `{"metadata":{"id":"a","created_at":"2026-01-01T00:00:00Z","last_accessed_at":"2026-01-01T00:00:00+02:00","updated_at":"2026-01-01T00:00:00Z","expires_at":"2026-01-08T00:00:00Z","format_version":"1.0"},"game_state":{"day":1,"player":{},"world":{}}}`

	doc, err := Decode([]byte(raw))
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 12, 31, 22, 0, 0, 0, time.UTC), doc.Metadata.LastAccessedAt)
	assert.Equal(t, 1.0, doc.State["day"])
}

func TestValidateState(t *testing.T) {
	assert.NoError(t, ValidateState(sampleState()))

	tests := []struct {
		name  string
		state State
	}{
		{"nil", nil},
		{"missing day", State{"player": map[string]any{}, "world": map[string]any{}}},
		{"day not a number", State{"day": "one", "player": map[string]any{}, "world": map[string]any{}}},
		{"player not an object", State{"day": 1, "player": "Aria", "world": map[string]any{}}},
		{"missing world", State{"day": 1, "player": map[string]any{}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, ValidateState(tt.state), ErrInvalidDocument)
		})
	}
}

func TestSummarize(t *testing.T) {
	doc := New("game_x", sampleState(), t0, DefaultTTL)
	raw, err := Encode(doc)
	require.NoError(t, err)

	s := Summarize(raw, doc, t0.Add(2*time.Hour))
	assert.Equal(t, "game_x", s.ID)
	assert.Equal(t, "Aria", s.PlayerName)
	assert.Equal(t, int64(3), s.PlayerLevel)
	assert.Equal(t, int64(1), s.Day)
	assert.False(t, s.Expired)
	assert.Equal(t, "6d 22h 0m", s.Remaining)
}

func TestSummarizeDefaults(t *testing.T) {
	state := State{"day": 4, "player": map[string]any{"basic_info": map[string]any{"name": "Bram"}}, "world": map[string]any{}}
	doc := New("game_y", state, t0, DefaultTTL)
	raw, err := Encode(doc)
	require.NoError(t, err)

	s := Summarize(raw, doc, t0.Add(8*24*time.Hour))
	assert.Equal(t, "Bram", s.PlayerName)
	assert.Equal(t, int64(1), s.PlayerLevel)
	assert.Equal(t, int64(4), s.Day)
	assert.True(t, s.Expired)
	assert.Equal(t, "expired", s.Remaining)

	empty := New("game_z", State{"day": 1, "player": map[string]any{}, "world": map[string]any{}}, t0, DefaultTTL)
	raw, err = Encode(empty)
	require.NoError(t, err)
	assert.Equal(t, "Unknown Hero", Summarize(raw, empty, t0).PlayerName)
}
