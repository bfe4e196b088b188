package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harun/questkeep/pkg/cleanup"
)

func TestCleanupRun(t *testing.T) {
	dir := t.TempDir()

	// A rotated log well past retention and a stale backup day.
	old := time.Now().AddDate(0, 0, -40).Format("2006-01-02")
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "logs"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "logs", "service.log."+old), []byte("x\n"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "backups", old), 0o755))

	out, err := runCLI(t, nil, dir, "cleanup", "run", "--json")
	require.NoError(t, err)

	var report cleanup.Report
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Equal(t, 1, report.OldLogs)
	assert.Equal(t, 1, report.OldBackups)
	assert.Equal(t, 0, report.ExpiredGames)

	assert.NoFileExists(t, filepath.Join(dir, "logs", "service.log."+old))
	assert.NoDirExists(t, filepath.Join(dir, "backups", old))
	assert.FileExists(t, filepath.Join(dir, "logs", cleanup.StatsLogName))
}

func TestCleanupRunSingleTask(t *testing.T) {
	dir := t.TempDir()

	out, err := runCLI(t, nil, dir, "cleanup", "run", "games")
	require.NoError(t, err)
	assert.Contains(t, out, "Expired games removed: 0")

	_, err = runCLI(t, nil, dir, "cleanup", "run", "everything")
	assert.Error(t, err)
}

func TestCleanupCheck(t *testing.T) {
	dir := t.TempDir()

	out, err := runCLI(t, nil, dir, "cleanup", "check", "--json")
	require.NoError(t, err)

	var status cleanup.StorageStatus
	require.NoError(t, json.Unmarshal([]byte(out), &status))
	assert.Equal(t, cleanup.LevelOK, status.Level)
	assert.Nil(t, status.Emergency)

	out, err = runCLI(t, nil, dir, "cleanup", "check")
	require.NoError(t, err)
	assert.Contains(t, out, "Level: ok")
	assert.Contains(t, out, "100 MiB")
}

func TestCleanupNext(t *testing.T) {
	dir := t.TempDir()

	out, err := runCLI(t, nil, dir, "cleanup", "next", "--json")
	require.NoError(t, err)

	var next map[string]time.Time
	require.NoError(t, json.Unmarshal([]byte(out), &next))
	for _, job := range []string{cleanup.JobExpiredGames, cleanup.JobOldLogs, cleanup.JobOldBackups, cleanup.JobStorageCheck} {
		assert.True(t, next[job].After(time.Now().Add(-time.Second)), job)
	}

	out, err = runCLI(t, nil, dir, "cleanup", "next")
	require.NoError(t, err)
	assert.Contains(t, out, "daily at 02:00")
	assert.Contains(t, out, "weekly on Sunday at 03:00")
}
