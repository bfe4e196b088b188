package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/harun/questkeep/internal/logger"
	"github.com/harun/questkeep/pkg/cleanup"
	"github.com/harun/questkeep/pkg/cron"
	"github.com/harun/questkeep/pkg/document"
	"github.com/harun/questkeep/pkg/store"
)

// Config represents the main questkeep configuration
type Config struct {
	// Data directory holding games/, backups/ and logs/
	DataDir string `json:"data_dir" mapstructure:"data_dir"`

	Session SessionConfig `json:"session" mapstructure:"session"`
	Store   StoreConfig   `json:"store" mapstructure:"store"`
	Cleanup CleanupConfig `json:"cleanup" mapstructure:"cleanup"`
	Logging LoggingConfig `json:"logging" mapstructure:"logging"`
	Metrics MetricsConfig `json:"metrics" mapstructure:"metrics"`
	Tracing TracingConfig `json:"tracing" mapstructure:"tracing"`
}

// SessionConfig controls document lifetime and ids
type SessionConfig struct {
	TTL      time.Duration `json:"ttl" mapstructure:"ttl"`
	IDPrefix string        `json:"id_prefix" mapstructure:"id_prefix"`
}

// StoreConfig holds file store settings
type StoreConfig struct {
	LockTimeout time.Duration `json:"lock_timeout" mapstructure:"lock_timeout"`
}

// CleanupConfig holds retention policy and job schedules
type CleanupConfig struct {
	Enabled                      bool            `json:"enabled" mapstructure:"enabled"`
	Tick                         time.Duration   `json:"tick" mapstructure:"tick"`
	StopTimeout                  time.Duration   `json:"stop_timeout" mapstructure:"stop_timeout"`
	LogRetentionDays             int             `json:"log_retention_days" mapstructure:"log_retention_days"`
	BackupRetentionDays          int             `json:"backup_retention_days" mapstructure:"backup_retention_days"`
	EmergencyLogRetentionDays    int             `json:"emergency_log_retention_days" mapstructure:"emergency_log_retention_days"`
	EmergencyBackupRetentionDays int             `json:"emergency_backup_retention_days" mapstructure:"emergency_backup_retention_days"`
	TempFileMaxAge               time.Duration   `json:"temp_file_max_age" mapstructure:"temp_file_max_age"`
	SoftLimitMB                  int64           `json:"soft_limit_mb" mapstructure:"soft_limit_mb"`
	HardLimitMB                  int64           `json:"hard_limit_mb" mapstructure:"hard_limit_mb"`
	Schedules                    SchedulesConfig `json:"schedules" mapstructure:"schedules"`
}

// SchedulesConfig says when each cleanup job runs
type SchedulesConfig struct {
	ExpiredGames ScheduleConfig `json:"expired_games" mapstructure:"expired_games"`
	OldLogs      ScheduleConfig `json:"old_logs" mapstructure:"old_logs"`
	OldBackups   ScheduleConfig `json:"old_backups" mapstructure:"old_backups"`
	StorageCheck ScheduleConfig `json:"storage_check" mapstructure:"storage_check"`
}

// ScheduleConfig is the file form of cron.Schedule
type ScheduleConfig struct {
	Kind    string        `json:"kind" mapstructure:"kind"` // every, daily, weekly
	Every   time.Duration `json:"every,omitempty" mapstructure:"every"`
	Hour    int           `json:"hour" mapstructure:"hour"`
	Minute  int           `json:"minute" mapstructure:"minute"`
	Weekday string        `json:"weekday,omitempty" mapstructure:"weekday"` // sunday..saturday
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level     string `json:"level" mapstructure:"level"`
	File      string `json:"file" mapstructure:"file"`
	Console   bool   `json:"console" mapstructure:"console"`
	Pretty    bool   `json:"pretty" mapstructure:"pretty"`
	MaxSizeMB int    `json:"max_size_mb" mapstructure:"max_size_mb"`
}

// MetricsConfig controls the Prometheus endpoint served by `serve`
type MetricsConfig struct {
	Enabled bool   `json:"enabled" mapstructure:"enabled"`
	Addr    string `json:"addr" mapstructure:"addr"`
	Path    string `json:"path" mapstructure:"path"`
}

// TracingConfig controls the OpenTelemetry tracer provider
type TracingConfig struct {
	Enabled     bool    `json:"enabled" mapstructure:"enabled"`
	ServiceName string  `json:"service_name" mapstructure:"service_name"`
	SampleRatio float64 `json:"sample_ratio" mapstructure:"sample_ratio"`
}

// DefaultConfig returns a config with default values
func DefaultConfig() *Config {
	return &Config{
		DataDir: DefaultDataDir(),
		Session: SessionConfig{
			TTL:      document.DefaultTTL,
			IDPrefix: document.DefaultIDPrefix,
		},
		Store: StoreConfig{
			LockTimeout: store.DefaultLockTimeout,
		},
		Cleanup: CleanupConfig{
			Enabled:                      true,
			Tick:                         cron.DefaultTick,
			StopTimeout:                  30 * time.Second,
			LogRetentionDays:             7,
			BackupRetentionDays:          30,
			EmergencyLogRetentionDays:    3,
			EmergencyBackupRetentionDays: 15,
			TempFileMaxAge:               cleanup.DefaultTempFileAge,
			SoftLimitMB:                  100,
			HardLimitMB:                  500,
			Schedules: SchedulesConfig{
				ExpiredGames: ScheduleConfig{Kind: "daily", Hour: 2},
				OldLogs:      ScheduleConfig{Kind: "weekly", Weekday: "sunday", Hour: 3},
				OldBackups:   ScheduleConfig{Kind: "daily", Hour: 4},
				StorageCheck: ScheduleConfig{Kind: "every", Every: time.Hour},
			},
		},
		Logging: LoggingConfig{
			Level:     "info",
			Console:   true,
			Pretty:    true,
			MaxSizeMB: 100,
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Addr:    "127.0.0.1:9464",
			Path:    "/metrics",
		},
		Tracing: TracingConfig{
			Enabled:     false,
			ServiceName: "questkeep",
			SampleRatio: 1,
		},
	}
}

// String returns a JSON representation of the config
func (c *Config) String() string {
	data, _ := json.MarshalIndent(c, "", "  ")
	return string(data)
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	return errors.Join(NewValidator().ValidateConfig(c)...)
}

// StoreOptions builds the file store options.
func (c *Config) StoreOptions() store.Options {
	return store.Options{
		BaseDir:     c.DataDir,
		TTL:         c.Session.TTL,
		IDPrefix:    c.Session.IDPrefix,
		LockTimeout: c.Store.LockTimeout,
	}
}

// LoggerConfig builds the logger configuration.
func (c *Config) LoggerConfig() logger.Config {
	return logger.Config{
		Level:     c.Logging.Level,
		File:      c.Logging.File,
		Console:   c.Logging.Console,
		Pretty:    c.Logging.Pretty,
		MaxSizeMB: c.Logging.MaxSizeMB,
	}
}

// Policy converts the cleanup section into a retention policy.
func (c CleanupConfig) Policy() cleanup.Policy {
	p := cleanup.DefaultPolicy()
	p.LogRetention = days(c.LogRetentionDays)
	p.BackupRetention = days(c.BackupRetentionDays)
	p.EmergencyLogRetention = days(c.EmergencyLogRetentionDays)
	p.EmergencyBackupRetention = days(c.EmergencyBackupRetentionDays)
	p.TempFileAge = c.TempFileMaxAge
	p.SoftLimitBytes = c.SoftLimitMB << 20
	p.HardLimitBytes = c.HardLimitMB << 20
	return p
}

// CronSchedules converts the configured schedules.
func (c SchedulesConfig) CronSchedules() (cleanup.Schedules, error) {
	var out cleanup.Schedules
	var err error
	if out.ExpiredGames, err = c.ExpiredGames.Schedule(); err != nil {
		return out, fmt.Errorf("expired_games: %w", err)
	}
	if out.OldLogs, err = c.OldLogs.Schedule(); err != nil {
		return out, fmt.Errorf("old_logs: %w", err)
	}
	if out.OldBackups, err = c.OldBackups.Schedule(); err != nil {
		return out, fmt.Errorf("old_backups: %w", err)
	}
	if out.StorageCheck, err = c.StorageCheck.Schedule(); err != nil {
		return out, fmt.Errorf("storage_check: %w", err)
	}
	return out, nil
}

var weekdays = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

// Schedule converts s to a validated cron.Schedule.
func (s ScheduleConfig) Schedule() (cron.Schedule, error) {
	var out cron.Schedule
	switch strings.ToLower(s.Kind) {
	case "every":
		out = cron.Every(s.Every)
	case "daily":
		out = cron.Daily(s.Hour, s.Minute)
	case "weekly":
		day, ok := weekdays[strings.ToLower(s.Weekday)]
		if !ok {
			return out, fmt.Errorf("invalid weekday %q", s.Weekday)
		}
		out = cron.Weekly(day, s.Hour, s.Minute)
	default:
		return out, fmt.Errorf("unknown schedule kind %q (want every, daily or weekly)", s.Kind)
	}
	if err := out.Validate(); err != nil {
		return out, err
	}
	return out, nil
}

func days(n int) time.Duration {
	return time.Duration(n) * 24 * time.Hour
}
