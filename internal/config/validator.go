package config

import (
	"fmt"
	"strings"

	"github.com/harun/questkeep/pkg/document"
)

// Validator validates configuration values
type Validator struct{}

// NewValidator creates a new validator
func NewValidator() *Validator {
	return &Validator{}
}

// ValidateLogLevel validates log level
func (v *Validator) ValidateLogLevel(level string) error {
	validLevels := []string{"trace", "debug", "info", "warn", "error"}
	for _, valid := range validLevels {
		if level == valid {
			return nil
		}
	}
	return fmt.Errorf("invalid log level: %s (must be one of: %s)", level, strings.Join(validLevels, ", "))
}

// ValidateConfig performs comprehensive validation
func (v *Validator) ValidateConfig(cfg *Config) []error {
	var errs []error

	if cfg.DataDir == "" {
		errs = append(errs, fmt.Errorf("data_dir is required"))
	}

	if cfg.Session.TTL <= 0 {
		errs = append(errs, fmt.Errorf("session.ttl must be positive"))
	}
	if err := document.ValidatePrefix(cfg.Session.IDPrefix); err != nil {
		errs = append(errs, fmt.Errorf("session.id_prefix: %w", err))
	}
	if cfg.Store.LockTimeout <= 0 {
		errs = append(errs, fmt.Errorf("store.lock_timeout must be positive"))
	}

	if cfg.Cleanup.Tick <= 0 {
		errs = append(errs, fmt.Errorf("cleanup.tick must be positive"))
	}
	if cfg.Cleanup.StopTimeout <= 0 {
		errs = append(errs, fmt.Errorf("cleanup.stop_timeout must be positive"))
	}
	if cfg.Cleanup.TempFileMaxAge <= 0 {
		errs = append(errs, fmt.Errorf("cleanup.temp_file_max_age must be positive"))
	}
	if err := cfg.Cleanup.Policy().Validate(); err != nil {
		errs = append(errs, fmt.Errorf("cleanup: %w", err))
	}
	if _, err := cfg.Cleanup.Schedules.CronSchedules(); err != nil {
		errs = append(errs, fmt.Errorf("cleanup.schedules.%w", err))
	}

	if err := v.ValidateLogLevel(cfg.Logging.Level); err != nil {
		errs = append(errs, err)
	}
	if cfg.Logging.MaxSizeMB < 0 {
		errs = append(errs, fmt.Errorf("logging.max_size_mb must be >= 0"))
	}

	if cfg.Metrics.Enabled {
		if cfg.Metrics.Addr == "" {
			errs = append(errs, fmt.Errorf("metrics.addr is required when metrics are enabled"))
		}
		if !strings.HasPrefix(cfg.Metrics.Path, "/") {
			errs = append(errs, fmt.Errorf("metrics.path must start with /"))
		}
	}

	if cfg.Tracing.Enabled && (cfg.Tracing.SampleRatio < 0 || cfg.Tracing.SampleRatio > 1) {
		errs = append(errs, fmt.Errorf("tracing.sample_ratio must be within [0,1]"))
	}

	return errs
}
