package session

import (
	"context"

	"github.com/harun/questkeep/pkg/document"
)

// Section returns the object stored under key in the game state.
func (m *Manager) Section(ctx context.Context, id, key string) (map[string]any, bool) {
	state, ok := m.GetState(ctx, id)
	if !ok {
		return nil, false
	}
	section, ok := state[key].(map[string]any)
	return section, ok
}

// UpdateSection merges updates into the object stored under key.
func (m *Manager) UpdateSection(ctx context.Context, id, key string, updates map[string]any) bool {
	return m.UpdateState(ctx, id, document.State{key: updates})
}

func (m *Manager) Player(ctx context.Context, id string) (map[string]any, bool) {
	return m.Section(ctx, id, document.KeyPlayer)
}

func (m *Manager) UpdatePlayer(ctx context.Context, id string, updates map[string]any) bool {
	return m.UpdateSection(ctx, id, document.KeyPlayer, updates)
}

func (m *Manager) World(ctx context.Context, id string) (map[string]any, bool) {
	return m.Section(ctx, id, document.KeyWorld)
}

func (m *Manager) UpdateWorld(ctx context.Context, id string, updates map[string]any) bool {
	return m.UpdateSection(ctx, id, document.KeyWorld, updates)
}

// NPC returns the state of one non-player character.
func (m *Manager) NPC(ctx context.Context, id, npcID string) (map[string]any, bool) {
	npcs, ok := m.Section(ctx, id, document.KeyNPC)
	if !ok {
		return nil, false
	}
	npc, ok := npcs[npcID].(map[string]any)
	return npc, ok
}

// UpdateNPC merges updates into one character, creating it if needed.
func (m *Manager) UpdateNPC(ctx context.Context, id, npcID string, updates map[string]any) bool {
	return m.UpdateState(ctx, id, document.State{
		document.KeyNPC: map[string]any{npcID: updates},
	})
}
