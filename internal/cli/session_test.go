package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harun/questkeep/pkg/document"
)

func createSession(t *testing.T, dir string, args ...string) string {
	t.Helper()
	out, err := runCLI(t, nil, dir, append([]string{"session", "create"}, args...)...)
	require.NoError(t, err)
	id := strings.TrimSpace(out)
	require.NoError(t, document.ValidateID(document.DefaultIDPrefix, id))
	return id
}

func TestSessionLifecycle(t *testing.T) {
	dir := t.TempDir()

	id := createSession(t, dir, "--state", `{"day":3,"player":{"name":"Aria","stats":{"hp":100,"mp":50}},"world":{"region":"north"}}`)
	assert.FileExists(t, filepath.Join(dir, "games", id+".json"))

	t.Run("get prints the stored document", func(t *testing.T) {
		out, err := runCLI(t, nil, dir, "session", "get", id)
		require.NoError(t, err)

		doc, err := document.Decode([]byte(out))
		require.NoError(t, err)
		assert.Equal(t, id, doc.Metadata.ID)
		assert.Equal(t, float64(3), doc.State["day"])
	})

	t.Run("update deep-merges --set values", func(t *testing.T) {
		_, err := runCLI(t, nil, dir, "session", "update", id,
			"--set", "player.stats.hp=80",
			"--set", "world.weather=rain")
		require.NoError(t, err)

		out, err := runCLI(t, nil, dir, "session", "get", id, "--state")
		require.NoError(t, err)

		var state map[string]any
		require.NoError(t, json.Unmarshal([]byte(out), &state))
		player := state["player"].(map[string]any)
		stats := player["stats"].(map[string]any)
		assert.Equal(t, float64(80), stats["hp"])
		assert.Equal(t, float64(50), stats["mp"])
		assert.Equal(t, "Aria", player["name"])
		world := state["world"].(map[string]any)
		assert.Equal(t, "north", world["region"])
		assert.Equal(t, "rain", world["weather"])
	})

	t.Run("update without changes is rejected", func(t *testing.T) {
		_, err := runCLI(t, nil, dir, "session", "update", id)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "nothing to update")
	})

	t.Run("list shows the session", func(t *testing.T) {
		out, err := runCLI(t, nil, dir, "session", "list", "--json")
		require.NoError(t, err)

		var summaries []document.Summary
		require.NoError(t, json.Unmarshal([]byte(out), &summaries))
		require.Len(t, summaries, 1)
		assert.Equal(t, id, summaries[0].ID)
		assert.Equal(t, "Aria", summaries[0].PlayerName)
		assert.Equal(t, int64(3), summaries[0].Day)

		out, err = runCLI(t, nil, dir, "session", "list")
		require.NoError(t, err)
		assert.Contains(t, out, "PLAYER")
		assert.Contains(t, out, id)
	})

	t.Run("remaining and extend", func(t *testing.T) {
		out, err := runCLI(t, nil, dir, "session", "remaining", id)
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(strings.TrimSpace(out), "6d") || strings.HasPrefix(strings.TrimSpace(out), "7d"), out)

		out, err = runCLI(t, nil, dir, "session", "extend", id, "--days", "3")
		require.NoError(t, err)
		assert.Contains(t, out, "by 3 days")

		out, err = runCLI(t, nil, dir, "session", "remaining", id)
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(strings.TrimSpace(out), "9d") || strings.HasPrefix(strings.TrimSpace(out), "10d"), out)
	})

	t.Run("extend rejects non-positive days", func(t *testing.T) {
		_, err := runCLI(t, nil, dir, "session", "extend", id, "--days", "0")
		assert.Error(t, err)
	})

	t.Run("delete keeps a backup", func(t *testing.T) {
		_, err := runCLI(t, nil, dir, "session", "delete", id)
		require.NoError(t, err)
		assert.NoFileExists(t, filepath.Join(dir, "games", id+".json"))

		matches, err := filepath.Glob(filepath.Join(dir, "backups", "*", "*_"+id+".json"))
		require.NoError(t, err)
		assert.NotEmpty(t, matches)

		_, err = runCLI(t, nil, dir, "session", "get", id)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "session not found")
	})
}

func TestSessionCreate(t *testing.T) {
	t.Run("fresh state with player name", func(t *testing.T) {
		dir := t.TempDir()
		id := createSession(t, dir, "--player", "Bram")

		out, err := runCLI(t, nil, dir, "session", "get", id, "--state")
		require.NoError(t, err)
		assert.Contains(t, out, `"name": "Bram"`)
		assert.Contains(t, out, `"day": 1`)
	})

	t.Run("state from file", func(t *testing.T) {
		dir := t.TempDir()
		file := filepath.Join(dir, "state.json")
		require.NoError(t, os.WriteFile(file, []byte(`{"day":9,"player":{},"world":{}}`), 0o644))

		id := createSession(t, dir, "--file", file)
		out, err := runCLI(t, nil, dir, "session", "get", id, "--state")
		require.NoError(t, err)
		assert.Contains(t, out, `"day": 9`)
	})

	t.Run("state missing required sections", func(t *testing.T) {
		dir := t.TempDir()
		_, err := runCLI(t, nil, dir, "session", "create", "--state", `{"player":{}}`)
		require.Error(t, err)

		entries, err := os.ReadDir(filepath.Join(dir, "games"))
		require.NoError(t, err)
		assert.Empty(t, entries)
	})

	t.Run("state and file together", func(t *testing.T) {
		dir := t.TempDir()
		_, err := runCLI(t, nil, dir, "session", "create", "--state", "{}", "--file", "x.json")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "mutually exclusive")
	})

	t.Run("invalid JSON", func(t *testing.T) {
		dir := t.TempDir()
		_, err := runCLI(t, nil, dir, "session", "create", "--state", "{nope")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid state JSON")
	})
}

func TestSessionUnknownID(t *testing.T) {
	dir := t.TempDir()
	missing := document.NewID(document.DefaultIDPrefix)

	for _, args := range [][]string{
		{"session", "get", missing},
		{"session", "remaining", missing},
		{"session", "update", missing, "--set", "day=2"},
		{"session", "get", "../etc/passwd"},
	} {
		_, err := runCLI(t, nil, dir, args...)
		assert.Error(t, err, "%v", args)
	}
}

func TestBuildPatch(t *testing.T) {
	tests := []struct {
		name    string
		base    string
		sets    []string
		want    map[string]any
		wantErr string
	}{
		{
			name: "json values and strings",
			sets: []string{"player.stats.hp=80", "player.title=the brave", "flags=[1,2]", "alive=true"},
			want: map[string]any{
				"player": map[string]any{
					"stats": map[string]any{"hp": float64(80)},
					"title": "the brave",
				},
				"flags": []any{float64(1), float64(2)},
				"alive": true,
			},
		},
		{
			name: "sets layered over json",
			base: `{"day":2,"world":{"time":"dawn"}}`,
			sets: []string{"world.time=dusk"},
			want: map[string]any{"day": float64(2), "world": map[string]any{"time": "dusk"}},
		},
		{name: "empty", want: map[string]any{}},
		{name: "missing equals", sets: []string{"player.hp"}, wantErr: "want path=value"},
		{name: "non-object base", base: `[1]`, wantErr: "JSON object"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := buildPatch(tt.base, tt.sets)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, map[string]any(got))
		})
	}
}
