package cleanup

import (
	"fmt"
	"time"

	"github.com/harun/questkeep/pkg/cron"
)

// Job names, also used as the <job> field of the stats log.
const (
	JobExpiredGames = "expired_games"
	JobOldLogs      = "old_logs"
	JobOldBackups   = "old_backups"
	JobStorageCheck = "storage_check"
	JobEmergency    = "emergency_cleanup"
)

const (
	DefaultLogRetention             = 7 * 24 * time.Hour
	DefaultBackupRetention          = 30 * 24 * time.Hour
	DefaultEmergencyLogRetention    = 3 * 24 * time.Hour
	DefaultEmergencyBackupRetention = 15 * 24 * time.Hour
	DefaultTempFileAge              = time.Hour

	DefaultSoftLimitBytes int64 = 100 << 20
	DefaultHardLimitBytes int64 = 500 << 20

	// DefaultLogFilePrefix matches the files produced by the daily log rotation.
	DefaultLogFilePrefix = "service.log."
	// StatsLogName is the append-only record of cleanup results.
	StatsLogName = "cleanup_stats.log"
)

// Policy holds retention and storage limits.
type Policy struct {
	LogRetention             time.Duration
	BackupRetention          time.Duration
	EmergencyLogRetention    time.Duration
	EmergencyBackupRetention time.Duration
	TempFileAge              time.Duration
	SoftLimitBytes           int64
	HardLimitBytes           int64
	LogFilePrefix            string
}

// DefaultPolicy returns the standard retention policy.
func DefaultPolicy() Policy {
	return Policy{
		LogRetention:             DefaultLogRetention,
		BackupRetention:          DefaultBackupRetention,
		EmergencyLogRetention:    DefaultEmergencyLogRetention,
		EmergencyBackupRetention: DefaultEmergencyBackupRetention,
		TempFileAge:              DefaultTempFileAge,
		SoftLimitBytes:           DefaultSoftLimitBytes,
		HardLimitBytes:           DefaultHardLimitBytes,
		LogFilePrefix:            DefaultLogFilePrefix,
	}
}

// Validate checks that the policy is internally consistent.
func (p Policy) Validate() error {
	if p.LogRetention <= 0 || p.BackupRetention <= 0 {
		return fmt.Errorf("retention periods must be positive")
	}
	if p.EmergencyLogRetention <= 0 || p.EmergencyLogRetention > p.LogRetention {
		return fmt.Errorf("emergency log retention must be positive and at most %s", p.LogRetention)
	}
	if p.EmergencyBackupRetention <= 0 || p.EmergencyBackupRetention > p.BackupRetention {
		return fmt.Errorf("emergency backup retention must be positive and at most %s", p.BackupRetention)
	}
	if p.SoftLimitBytes <= 0 || p.HardLimitBytes < p.SoftLimitBytes {
		return fmt.Errorf("storage limits must satisfy 0 < soft (%d) <= hard (%d)", p.SoftLimitBytes, p.HardLimitBytes)
	}
	if p.LogFilePrefix == "" {
		return fmt.Errorf("log file prefix is required")
	}
	return nil
}

// Schedules says when each job runs.
type Schedules struct {
	ExpiredGames cron.Schedule
	OldLogs      cron.Schedule
	OldBackups   cron.Schedule
	StorageCheck cron.Schedule
}

// DefaultSchedules: expired games daily at 02:00, logs Sundays at 03:00,
// backups daily at 04:00, storage every hour.
func DefaultSchedules() Schedules {
	return Schedules{
		ExpiredGames: cron.Daily(2, 0),
		OldLogs:      cron.Weekly(time.Sunday, 3, 0),
		OldBackups:   cron.Daily(4, 0),
		StorageCheck: cron.Every(time.Hour),
	}
}
