// Package cleanup holds the maintenance jobs that keep the data directory
// bounded: expired game removal, log and backup retention, and the storage
// check that escalates to an emergency cleanup.
package cleanup

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog/log"

	"github.com/harun/questkeep/internal/observability"
	"github.com/harun/questkeep/internal/tracing"
	"github.com/harun/questkeep/pkg/cron"
	"github.com/harun/questkeep/pkg/store"
)

// Storage levels reported by CheckStorage.
const (
	LevelOK       = "ok"
	LevelWarning  = "warning"
	LevelCritical = "critical"
)

// Report counts what one cleanup pass removed.
type Report struct {
	ExpiredGames int `json:"expired_games"`
	TempFiles    int `json:"temp_files"`
	OldLogs      int `json:"old_logs"`
	OldBackups   int `json:"old_backups"`
}

// Total is the number of items removed.
func (r Report) Total() int {
	return r.ExpiredGames + r.TempFiles + r.OldLogs + r.OldBackups
}

// StorageStatus is the outcome of a storage check.
type StorageStatus struct {
	UsedBytes int64   `json:"used_bytes"`
	Level     string  `json:"level"`
	Emergency *Report `json:"emergency,omitempty"`
}

// Manager runs cleanup jobs against one store.
type Manager struct {
	store  *store.FileStore
	policy Policy
	now    func() time.Time

	statsMu sync.Mutex
}

// Option configures a Manager.
type Option func(*Manager)

// WithClock overrides the clock used for retention cutoffs and stats lines.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// New creates a cleanup manager for st.
func New(st *store.FileStore, policy Policy, opts ...Option) *Manager {
	m := &Manager{store: st, policy: policy, now: st.Now}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Policy returns the active policy.
func (m *Manager) Policy() Policy { return m.policy }

// Register adds the four periodic jobs to s.
func (m *Manager) Register(s *cron.Scheduler, sch Schedules) error {
	jobs := []struct {
		name     string
		schedule cron.Schedule
		fn       cron.JobFunc
	}{
		{JobExpiredGames, sch.ExpiredGames, func(ctx context.Context) error {
			_, err := m.CleanupExpiredGames(ctx)
			return err
		}},
		{JobOldLogs, sch.OldLogs, func(ctx context.Context) error {
			_, err := m.CleanupOldLogs(ctx, m.policy.LogRetention)
			return err
		}},
		{JobOldBackups, sch.OldBackups, func(ctx context.Context) error {
			_, err := m.CleanupOldBackups(ctx, m.policy.BackupRetention)
			return err
		}},
		{JobStorageCheck, sch.StorageCheck, func(ctx context.Context) error {
			_, err := m.CheckStorage(ctx)
			return err
		}},
	}

	for _, j := range jobs {
		if err := s.Add(j.name, j.schedule, j.fn); err != nil {
			return fmt.Errorf("failed to register %s: %w", j.name, err)
		}
	}

	log.Info().
		Str("expired_games", sch.ExpiredGames.String()).
		Str("old_logs", sch.OldLogs.String()).
		Str("old_backups", sch.OldBackups.String()).
		Str("storage_check", sch.StorageCheck.String()).
		Msg("Cleanup jobs registered")
	return nil
}

// CleanupExpiredGames removes expired documents (backing each up) and stale
// temp files from interrupted writes.
func (m *Manager) CleanupExpiredGames(ctx context.Context) (int, error) {
	removed, err := m.store.SweepExpired(ctx, true)
	if err != nil {
		return removed, fmt.Errorf("failed to sweep expired games: %w", err)
	}

	temps, err := m.store.SweepTempFiles(m.policy.TempFileAge)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to sweep temp files")
	} else if temps > 0 {
		log.Info().Int("count", temps).Msg("Removed stale temp files")
	}

	m.record(JobExpiredGames, removed)
	return removed, nil
}

// CleanupOldLogs deletes rotated log files whose date suffix is older than
// retention. Files with an unparsable suffix are kept.
func (m *Manager) CleanupOldLogs(ctx context.Context, retention time.Duration) (int, error) {
	dir := m.store.LogsDir()
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, fmt.Errorf("failed to read log directory: %w", err)
	}

	now := m.now()
	cutoff := now.Add(-retention)
	removed := 0
	for _, e := range entries {
		if ctx.Err() != nil {
			break
		}
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, m.policy.LogFilePrefix) {
			continue
		}
		day, err := time.ParseInLocation(logDayLayout, strings.TrimPrefix(name, m.policy.LogFilePrefix), now.Location())
		if err != nil {
			log.Warn().Str("file", name).Msg("Keeping log file with unrecognised date suffix")
			continue
		}
		if !day.Before(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(dir, name)); err != nil && !errors.Is(err, os.ErrNotExist) {
			log.Error().Err(err).Str("file", name).Msg("Failed to delete old log file")
			continue
		}
		removed++
	}

	m.record(JobOldLogs, removed)
	return removed, ctx.Err()
}

const logDayLayout = "2006-01-02"

// CleanupOldBackups deletes backup day directories older than retention.
// Directories whose name is not a date are kept.
func (m *Manager) CleanupOldBackups(ctx context.Context, retention time.Duration) (int, error) {
	dir := m.store.BackupsDir()
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, fmt.Errorf("failed to read backup directory: %w", err)
	}

	now := m.now()
	cutoff := now.Add(-retention)
	removed := 0
	for _, e := range entries {
		if ctx.Err() != nil {
			break
		}
		if !e.IsDir() {
			continue
		}
		day, err := store.BackupDay(e.Name(), now.Location())
		if err != nil {
			log.Warn().Str("dir", e.Name()).Msg("Keeping backup directory with unrecognised name")
			continue
		}
		if !day.Before(cutoff) {
			continue
		}
		if err := os.RemoveAll(filepath.Join(dir, e.Name())); err != nil {
			log.Error().Err(err).Str("dir", e.Name()).Msg("Failed to delete old backup directory")
			continue
		}
		removed++
	}

	m.record(JobOldBackups, removed)
	return removed, ctx.Err()
}

// CheckStorage measures document storage. Above the soft limit it warns;
// above the hard limit it runs Emergency.
func (m *Manager) CheckStorage(ctx context.Context) (StorageStatus, error) {
	used, err := m.store.UsageBytes()
	if err != nil {
		return StorageStatus{}, fmt.Errorf("failed to measure storage: %w", err)
	}

	status := StorageStatus{UsedBytes: used, Level: LevelOK}
	logger := log.With().
		Str("used", humanize.IBytes(uint64(used))).
		Str("soft_limit", humanize.IBytes(uint64(m.policy.SoftLimitBytes))).
		Str("hard_limit", humanize.IBytes(uint64(m.policy.HardLimitBytes))).
		Logger()

	switch {
	case used > m.policy.HardLimitBytes:
		status.Level = LevelCritical
		logger.Error().Msg("Storage above hard limit, running emergency cleanup")
		report, err := m.Emergency(ctx)
		status.Emergency = &report
		if err != nil {
			return status, err
		}
	case used > m.policy.SoftLimitBytes:
		status.Level = LevelWarning
		logger.Warn().Msg("Storage above soft limit")
	default:
		logger.Debug().Msg("Storage within limits")
	}
	return status, nil
}

// Emergency runs every cleanup with the tighter emergency retention.
func (m *Manager) Emergency(ctx context.Context) (Report, error) {
	ctx = tracing.WithJob(ctx, JobEmergency)
	observability.RecordEmergencyCleanup()

	var report Report
	var errs []error

	n, err := m.CleanupExpiredGames(ctx)
	report.ExpiredGames = n
	errs = append(errs, err)

	n, err = m.CleanupOldLogs(ctx, m.policy.EmergencyLogRetention)
	report.OldLogs = n
	errs = append(errs, err)

	n, err = m.CleanupOldBackups(ctx, m.policy.EmergencyBackupRetention)
	report.OldBackups = n
	errs = append(errs, err)

	m.record(JobEmergency, report.Total())
	return report, errors.Join(errs...)
}

// Task names accepted by RunManual.
const (
	TaskAll     = "all"
	TaskGames   = "games"
	TaskLogs    = "logs"
	TaskBackups = "backups"
)

// RunManual runs one cleanup on demand with the normal retention.
func (m *Manager) RunManual(ctx context.Context, task string) (Report, error) {
	var report Report
	var errs []error

	run := func(name string) {
		var err error
		switch name {
		case TaskGames:
			report.ExpiredGames, err = m.CleanupExpiredGames(ctx)
		case TaskLogs:
			report.OldLogs, err = m.CleanupOldLogs(ctx, m.policy.LogRetention)
		case TaskBackups:
			report.OldBackups, err = m.CleanupOldBackups(ctx, m.policy.BackupRetention)
		}
		errs = append(errs, err)
	}

	switch task {
	case TaskAll, "":
		run(TaskGames)
		run(TaskLogs)
		run(TaskBackups)
	case TaskGames, TaskLogs, TaskBackups:
		run(task)
	default:
		return report, fmt.Errorf("unknown cleanup task %q (want all, games, logs or backups)", task)
	}

	log.Info().
		Str("task", task).
		Int("deleted", report.Total()).
		Msg("Manual cleanup finished")
	return report, errors.Join(errs...)
}

// record appends "<timestamp> - <job>: <n> items deleted" to the stats log.
func (m *Manager) record(job string, count int) {
	observability.RecordCleanupDeleted(job, count)

	line := fmt.Sprintf("%s - %s: %d items deleted\n", m.now().Format(time.RFC3339), job, count)
	path := filepath.Join(m.store.LogsDir(), StatsLogName)

	m.statsMu.Lock()
	defer m.statsMu.Unlock()

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		log.Error().Err(err).Str("path", path).Msg("Failed to open cleanup stats log")
		return
	}
	defer f.Close()
	if _, err := f.WriteString(line); err != nil {
		log.Error().Err(err).Str("path", path).Msg("Failed to write cleanup stats")
	}

	log.Info().Str("job", job).Int("deleted", count).Msg("Cleanup finished")
}
