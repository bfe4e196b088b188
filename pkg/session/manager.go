package session

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/harun/questkeep/internal/tracing"
	"github.com/harun/questkeep/pkg/document"
	"github.com/harun/questkeep/pkg/merge"
	"github.com/harun/questkeep/pkg/store"
)

// Statistics summarises the store for operators.
type Statistics struct {
	TotalSessions   int       `json:"total_sessions"`
	ActiveSessions  int       `json:"active_sessions"`
	ExpiredSessions int       `json:"expired_sessions"`
	StorageBytes    int64     `json:"storage_bytes"`
	OldestSession   string    `json:"oldest_session,omitempty"`
	NewestSession   string    `json:"newest_session,omitempty"`
	TTL             string    `json:"session_ttl"`
	CapturedAt      time.Time `json:"captured_at"`
}

// Manager manages game sessions on top of a FileStore.
type Manager struct {
	store *store.FileStore
	newID func() string
}

// Option configures a Manager.
type Option func(*Manager)

// WithIDGenerator replaces the id source. The generated ids must still pass
// the store's id validation.
func WithIDGenerator(fn func() string) Option {
	return func(m *Manager) { m.newID = fn }
}

// NewManager creates a session manager backed by st.
func NewManager(st *store.FileStore, opts ...Option) *Manager {
	m := &Manager{store: st}
	m.newID = func() string { return document.NewID(st.IDPrefix()) }
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Store exposes the underlying store.
func (m *Manager) Store() *store.FileStore { return m.store }

func (m *Manager) logger(ctx context.Context, id string) *zerolog.Logger {
	if ctx == nil {
		ctx = context.Background()
	}
	l := tracing.LoggerFromContext(ctx, log.Logger)
	if id != "" && tracing.GetGameID(ctx) == "" {
		l = l.With().Str("game_id", id).Logger()
	}
	return &l
}

// logAbsence records why a lookup came back empty.
func logAbsence(l *zerolog.Logger, err error, msg string) {
	switch {
	case errors.Is(err, store.ErrExpired):
		l.Info().Err(err).Msg(msg)
	case errors.Is(err, store.ErrNotFound):
		l.Debug().Err(err).Msg(msg)
	case errors.Is(err, store.ErrInvalidIdentifier):
		l.Warn().Err(err).Msg(msg)
	default:
		l.Error().Err(err).Msg(msg)
	}
}

// CreateSession stores initial under a new id and returns the id.
func (m *Manager) CreateSession(ctx context.Context, initial document.State) (string, bool) {
	id := m.newID()
	l := m.logger(ctx, id)

	created, err := m.store.Create(ctx, id, initial)
	if err != nil {
		l.Error().Err(err).Msg("Failed to create session")
		return "", false
	}
	if !created {
		l.Warn().Msg("Session id collision, nothing created")
		return "", false
	}

	l.Info().Msg("Session created")
	return id, true
}

// Validate reports whether id names a live session.
func (m *Manager) Validate(ctx context.Context, id string) bool {
	if err := m.store.ValidateID(id); err != nil {
		m.logger(ctx, "").Warn().Err(err).Msg("Invalid session id")
		return false
	}
	return m.store.Exists(ctx, id)
}

// Get loads the full document for id.
func (m *Manager) Get(ctx context.Context, id string) (*document.Document, bool) {
	doc, err := m.store.Load(ctx, id)
	if err != nil {
		logAbsence(m.logger(ctx, id), err, "Session unavailable")
		return nil, false
	}
	return doc, true
}

// GetState returns just the game state for id.
func (m *Manager) GetState(ctx context.Context, id string) (document.State, bool) {
	doc, ok := m.Get(ctx, id)
	if !ok {
		return nil, false
	}
	return doc.State, true
}

// Update replaces the stored state for id with doc.State, backing up the
// previous version. The stored creation and expiry times are kept whatever
// doc.Metadata says.
func (m *Manager) Update(ctx context.Context, id string, doc *document.Document) bool {
	if !m.Validate(ctx, id) {
		m.logger(ctx, id).Warn().Msg("Update of unknown session")
		return false
	}
	if err := m.store.Save(ctx, id, doc, true); err != nil {
		m.logger(ctx, id).Error().Err(err).Msg("Failed to update session")
		return false
	}
	return true
}

// UpdateState deep-merges partial into the stored state and saves the
// result. Objects merge key by key; any other value replaces what was there.
// Concurrent UpdateState calls for one id race: the last save wins.
func (m *Manager) UpdateState(ctx context.Context, id string, partial document.State) bool {
	doc, ok := m.Get(ctx, id)
	if !ok {
		return false
	}

	doc.State = document.State(merge.Merge(doc.State, partial))
	if err := m.store.Save(ctx, id, doc, true); err != nil {
		m.logger(ctx, id).Error().Err(err).Msg("Failed to save merged state")
		return false
	}

	m.logger(ctx, id).Debug().Int("keys", len(partial)).Msg("Session state updated")
	return true
}

// Delete removes the session, keeping a backup copy.
func (m *Manager) Delete(ctx context.Context, id string) bool {
	if err := m.store.Delete(ctx, id, true); err != nil {
		m.logger(ctx, id).Error().Err(err).Msg("Failed to delete session")
		return false
	}
	return true
}

// List summarises sessions, oldest first.
func (m *Manager) List(ctx context.Context, includeExpired bool) []document.Summary {
	summaries, err := m.store.List(ctx, includeExpired)
	if err != nil {
		m.logger(ctx, "").Error().Err(err).Msg("Failed to list sessions")
		return []document.Summary{}
	}
	return summaries
}

// ExtendExpiry pushes the expiry of id out by days. It is the only way a
// session's lifetime grows.
func (m *Manager) ExtendExpiry(ctx context.Context, id string, days int) bool {
	if days <= 0 {
		m.logger(ctx, id).Warn().Int("days", days).Msg("Refusing non-positive expiry extension")
		return false
	}
	doc, err := m.store.Extend(ctx, id, time.Duration(days)*24*time.Hour, true)
	if err != nil {
		logAbsence(m.logger(ctx, id), err, "Failed to extend session")
		return false
	}

	m.logger(ctx, id).Info().
		Int("days", days).
		Time("expires_at", doc.Metadata.ExpiresAt).
		Msg("Session expiry extended")
	return true
}

// RemainingTime returns how long id has before it expires.
func (m *Manager) RemainingTime(ctx context.Context, id string) (time.Duration, bool) {
	doc, ok := m.Get(ctx, id)
	if !ok {
		return 0, false
	}
	return doc.Remaining(m.store.Now())
}

// Info returns the listing summary for one session.
func (m *Manager) Info(ctx context.Context, id string) (document.Summary, bool) {
	doc, ok := m.Get(ctx, id)
	if !ok {
		return document.Summary{}, false
	}
	raw, err := document.Encode(doc)
	if err != nil {
		m.logger(ctx, id).Error().Err(err).Msg("Failed to encode session")
		return document.Summary{}, false
	}
	return document.Summarize(raw, doc, m.store.Now()), true
}

// Statistics reports store-wide counts. Failures yield zero counts.
func (m *Manager) Statistics(ctx context.Context) Statistics {
	st, err := m.store.Stats(ctx)
	if err != nil {
		m.logger(ctx, "").Error().Err(err).Msg("Failed to collect session statistics")
		return Statistics{TTL: m.store.TTL().String(), CapturedAt: m.store.Now().UTC()}
	}
	return Statistics{
		TotalSessions:   st.Total,
		ActiveSessions:  st.Active,
		ExpiredSessions: st.Expired,
		StorageBytes:    st.BytesUsed,
		OldestSession:   st.OldestID,
		NewestSession:   st.NewestID,
		TTL:             m.store.TTL().String(),
		CapturedAt:      st.CapturedAt,
	}
}
