package session

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harun/questkeep/pkg/document"
	"github.com/harun/questkeep/pkg/store"
)

var t0 = time.Date(2026, 5, 2, 12, 0, 0, 0, time.UTC)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func setupTestManager(t *testing.T, opts ...Option) (*Manager, *fakeClock) {
	t.Helper()
	clock := &fakeClock{t: t0}
	st, err := store.New(store.Options{BaseDir: t.TempDir(), Now: clock.Now})
	require.NoError(t, err)
	return NewManager(st, opts...), clock
}

func initialState() document.State {
	return document.State{
		"day":    1,
		"player": map[string]any{"name": "Aria", "stats": map[string]any{"hp": 100}},
		"world":  map[string]any{"weather": "sunny"},
	}
}

func TestManager_CreateAndGet(t *testing.T) {
	m, _ := setupTestManager(t)
	ctx := context.Background()

	id, ok := m.CreateSession(ctx, initialState())
	require.True(t, ok)
	require.NoError(t, document.ValidateID("game", id))
	assert.True(t, m.Validate(ctx, id))

	state, ok := m.GetState(ctx, id)
	require.True(t, ok)
	assert.Equal(t, 1.0, state["day"])
	assert.Equal(t, "sunny", state["world"].(map[string]any)["weather"])
}

func TestManager_CreateRejectsInvalidState(t *testing.T) {
	m, _ := setupTestManager(t)

	id, ok := m.CreateSession(context.Background(), document.State{"day": 1})
	assert.False(t, ok)
	assert.Empty(t, id)
}

func TestManager_CreateCollision(t *testing.T) {
	fixed := "game_123e4567-e89b-42d3-a456-426614174000"
	m, _ := setupTestManager(t, WithIDGenerator(func() string { return fixed }))
	ctx := context.Background()

	id, ok := m.CreateSession(ctx, initialState())
	require.True(t, ok)
	assert.Equal(t, fixed, id)

	id, ok = m.CreateSession(ctx, initialState())
	assert.False(t, ok)
	assert.Empty(t, id)
}

func TestManager_DeepMergeScenario(t *testing.T) {
	m, _ := setupTestManager(t)
	ctx := context.Background()

	id, ok := m.CreateSession(ctx, initialState())
	require.True(t, ok)

	require.True(t, m.UpdateState(ctx, id, document.State{
		"player": map[string]any{"stats": map[string]any{"hp": 80}},
	}))

	state, ok := m.GetState(ctx, id)
	require.True(t, ok)
	assert.Equal(t, document.State{
		"day":    1.0,
		"player": map[string]any{"name": "Aria", "stats": map[string]any{"hp": 80.0}},
		"world":  map[string]any{"weather": "sunny"},
	}, state)
}

func TestManager_UpdateStateRejectsBrokenResult(t *testing.T) {
	m, _ := setupTestManager(t)
	ctx := context.Background()

	id, ok := m.CreateSession(ctx, initialState())
	require.True(t, ok)

	assert.False(t, m.UpdateState(ctx, id, document.State{"player": "nobody"}))

	player, ok := m.Player(ctx, id)
	require.True(t, ok)
	assert.Equal(t, "Aria", player["name"])
}

func TestManager_UpdateBacksUp(t *testing.T) {
	m, clock := setupTestManager(t)
	ctx := context.Background()

	id, ok := m.CreateSession(ctx, initialState())
	require.True(t, ok)

	doc, ok := m.Get(ctx, id)
	require.True(t, ok)
	doc.State["day"] = 5.0
	clock.Advance(time.Second)
	require.True(t, m.Update(ctx, id, doc))

	state, ok := m.GetState(ctx, id)
	require.True(t, ok)
	assert.Equal(t, 5.0, state["day"])

	backups, err := filepath.Glob(filepath.Join(m.Store().BackupsDir(), "*", "*_"+id+".json"))
	require.NoError(t, err)
	assert.NotEmpty(t, backups)

	assert.False(t, m.Update(ctx, document.NewID("game"), doc))
}

func TestManager_ExpiredLooksMissing(t *testing.T) {
	m, clock := setupTestManager(t)
	ctx := context.Background()

	id, ok := m.CreateSession(ctx, initialState())
	require.True(t, ok)

	clock.Advance(7*24*time.Hour + time.Second)

	assert.False(t, m.Validate(ctx, id))
	_, ok = m.Get(ctx, id)
	assert.False(t, ok)
	_, ok = m.RemainingTime(ctx, id)
	assert.False(t, ok)
	assert.False(t, m.UpdateState(ctx, id, document.State{"day": 2}))
	assert.False(t, m.ExtendExpiry(ctx, id, 1))

	missing := document.NewID("game")
	assert.False(t, m.Validate(ctx, missing))
	_, ok = m.Get(ctx, missing)
	assert.False(t, ok)
}

func TestManager_InvalidIDs(t *testing.T) {
	m, _ := setupTestManager(t)
	ctx := context.Background()

	for _, id := range []string{"", "../secret", "game_nope", "save_123e4567-e89b-42d3-a456-426614174000"} {
		assert.False(t, m.Validate(ctx, id))
		_, ok := m.Get(ctx, id)
		assert.False(t, ok)
		assert.False(t, m.Delete(ctx, id))
		assert.False(t, m.UpdateState(ctx, id, document.State{"day": 2}))
	}
}

func TestManager_ExtendExpiry(t *testing.T) {
	m, clock := setupTestManager(t)
	ctx := context.Background()

	id, ok := m.CreateSession(ctx, initialState())
	require.True(t, ok)

	assert.False(t, m.ExtendExpiry(ctx, id, 0))
	assert.False(t, m.ExtendExpiry(ctx, id, -2))

	clock.Advance(6 * 24 * time.Hour)
	require.True(t, m.ExtendExpiry(ctx, id, 3))

	remaining, ok := m.RemainingTime(ctx, id)
	require.True(t, ok)
	assert.Equal(t, 4*24*time.Hour, remaining)

	clock.Advance(3 * 24 * time.Hour)
	assert.True(t, m.Validate(ctx, id), "extension keeps the session past its original ttl")
}

func TestManager_ReadsDoNotExtend(t *testing.T) {
	m, clock := setupTestManager(t)
	ctx := context.Background()

	id, ok := m.CreateSession(ctx, initialState())
	require.True(t, ok)

	for i := 0; i < 6; i++ {
		clock.Advance(24 * time.Hour)
		_, ok := m.Get(ctx, id)
		require.True(t, ok)
	}

	remaining, ok := m.RemainingTime(ctx, id)
	require.True(t, ok)
	assert.Equal(t, 24*time.Hour, remaining)
}

func TestManager_DeleteKeepsBackup(t *testing.T) {
	m, _ := setupTestManager(t)
	ctx := context.Background()

	id, ok := m.CreateSession(ctx, initialState())
	require.True(t, ok)

	require.True(t, m.Delete(ctx, id))
	assert.False(t, m.Validate(ctx, id))

	backup := m.Store().BackupPath(id, t0)
	_, err := os.Stat(backup)
	assert.NoError(t, err)

	assert.True(t, m.Delete(ctx, id), "delete is idempotent")
}

func TestManager_ListAndStatistics(t *testing.T) {
	m, clock := setupTestManager(t)
	ctx := context.Background()

	oldID, ok := m.CreateSession(ctx, initialState())
	require.True(t, ok)
	clock.Advance(8 * 24 * time.Hour)
	newID, ok := m.CreateSession(ctx, initialState())
	require.True(t, ok)

	active := m.List(ctx, false)
	require.Len(t, active, 1)
	assert.Equal(t, newID, active[0].ID)

	all := m.List(ctx, true)
	require.Len(t, all, 2)
	assert.Equal(t, oldID, all[0].ID)
	assert.True(t, all[0].Expired)

	stats := m.Statistics(ctx)
	assert.Equal(t, 2, stats.TotalSessions)
	assert.Equal(t, 1, stats.ActiveSessions)
	assert.Equal(t, 1, stats.ExpiredSessions)
	assert.Positive(t, stats.StorageBytes)
	assert.Equal(t, oldID, stats.OldestSession)
	assert.Equal(t, "168h0m0s", stats.TTL)
}

func TestManager_Info(t *testing.T) {
	m, clock := setupTestManager(t)
	ctx := context.Background()

	id, ok := m.CreateSession(ctx, initialState())
	require.True(t, ok)
	clock.Advance(2 * time.Hour)

	info, ok := m.Info(ctx, id)
	require.True(t, ok)
	assert.Equal(t, id, info.ID)
	assert.Equal(t, "Aria", info.PlayerName)
	assert.Equal(t, "6d 22h 0m", info.Remaining)
	assert.Equal(t, t0.Add(2*time.Hour), info.LastAccessedAt)

	_, ok = m.Info(ctx, document.NewID("game"))
	assert.False(t, ok)
}

func TestManager_UpdateKeepsStoredLifetime(t *testing.T) {
	m, clock := setupTestManager(t)
	ctx := context.Background()

	id, ok := m.CreateSession(ctx, initialState())
	require.True(t, ok)

	doc, ok := m.Get(ctx, id)
	require.True(t, ok)
	created, expires := doc.Metadata.CreatedAt, doc.Metadata.ExpiresAt

	doc.Metadata.ExpiresAt = expires.Add(365 * 24 * time.Hour)
	doc.Metadata.CreatedAt = created.Add(-1000 * time.Hour)
	doc.State["day"] = 2.0
	require.True(t, m.Update(ctx, id, doc))
	assert.True(t, expires.Equal(doc.Metadata.ExpiresAt), "expires_at %s", doc.Metadata.ExpiresAt)
	assert.True(t, created.Equal(doc.Metadata.CreatedAt), "created_at %s", doc.Metadata.CreatedAt)

	stored, ok := m.Get(ctx, id)
	require.True(t, ok)
	assert.Equal(t, 2.0, stored.State["day"])
	assert.True(t, expires.Equal(stored.Metadata.ExpiresAt))

	clock.Advance(8 * 24 * time.Hour)
	_, ok = m.Get(ctx, id)
	assert.False(t, ok)
	assert.False(t, m.Validate(ctx, id))
}
