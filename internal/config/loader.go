package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

const (
	// EnvPrefix prefixes environment overrides, e.g. QUESTKEEP_SESSION_TTL.
	EnvPrefix = "QUESTKEEP"
	// ConfigFileName is the default config file inside the data directory.
	ConfigFileName = "questkeep.json"
	// LogFileName is the active service log inside <data>/logs.
	LogFileName = "service.log"
)

// DefaultDataDir returns ~/.questkeep, or .questkeep when there is no home.
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".questkeep"
	}
	return filepath.Join(home, ".questkeep")
}

// DefaultConfigPath returns the config file path used when none is given.
func DefaultConfigPath() string {
	return filepath.Join(DefaultDataDir(), ConfigFileName)
}

// DefaultLogFile returns <dataDir>/logs/service.log, the file the log
// retention job reaps rotations of.
func DefaultLogFile(dataDir string) string {
	return filepath.Join(dataDir, "logs", LogFileName)
}

// Loader handles configuration loading
type Loader struct {
	configPath string

	mu sync.Mutex
	v  *viper.Viper
}

// NewLoader creates a new config loader
func NewLoader(configPath string) *Loader {
	return &Loader{
		configPath: configPath,
	}
}

// Load reads defaults, then the config file if present, then QUESTKEEP_*
// environment variables.
func (l *Loader) Load() (*Config, error) {
	configPath := l.GetConfigPath()

	v := viper.New()
	v.SetConfigType("json")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v, DefaultConfig())

	if _, err := os.Stat(configPath); err == nil {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}

	cfg, err := decode(v)
	if err != nil {
		return nil, err
	}

	l.mu.Lock()
	l.v = v
	l.mu.Unlock()
	return cfg, nil
}

func decode(v *viper.Viper) (*Config, error) {
	cfg := DefaultConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if cfg.DataDir == "" {
		cfg.DataDir = DefaultDataDir()
	}
	if cfg.Logging.File == "" {
		cfg.Logging.File = DefaultLogFile(cfg.DataDir)
	}
	return cfg, nil
}

// Watch re-reads the config file whenever it changes and passes the new
// config to onChange. Load must have found a config file first.
func (l *Loader) Watch(onChange func(*Config)) error {
	l.mu.Lock()
	v := l.v
	l.mu.Unlock()

	if v == nil || v.ConfigFileUsed() == "" {
		return fmt.Errorf("no config file loaded to watch")
	}

	v.OnConfigChange(func(e fsnotify.Event) {
		cfg, err := decode(v)
		if err != nil {
			log.Warn().Err(err).Str("file", e.Name).Msg("Ignoring invalid config change")
			return
		}
		if err := cfg.Validate(); err != nil {
			log.Warn().Err(err).Str("file", e.Name).Msg("Ignoring invalid config change")
			return
		}
		log.Info().Str("file", e.Name).Str("op", e.Op.String()).Msg("Config reloaded")
		onChange(cfg)
	})
	v.WatchConfig()
	return nil
}

// Save saves the configuration to file
func (l *Loader) Save(cfg *Config) error {
	configPath := l.GetConfigPath()

	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data := []byte(cfg.String() + "\n")
	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// GetConfigPath returns the config file path
func (l *Loader) GetConfigPath() string {
	if l.configPath != "" {
		return l.configPath
	}
	return DefaultConfigPath()
}

// Load is a convenience function that creates a loader and loads the config
func Load(configPath string) (*Config, error) {
	return NewLoader(configPath).Load()
}

// setDefaults registers every key so AutomaticEnv can override keys the
// config file does not mention.
func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("data_dir", cfg.DataDir)

	v.SetDefault("session.ttl", cfg.Session.TTL)
	v.SetDefault("session.id_prefix", cfg.Session.IDPrefix)

	v.SetDefault("store.lock_timeout", cfg.Store.LockTimeout)

	c := cfg.Cleanup
	v.SetDefault("cleanup.enabled", c.Enabled)
	v.SetDefault("cleanup.tick", c.Tick)
	v.SetDefault("cleanup.stop_timeout", c.StopTimeout)
	v.SetDefault("cleanup.log_retention_days", c.LogRetentionDays)
	v.SetDefault("cleanup.backup_retention_days", c.BackupRetentionDays)
	v.SetDefault("cleanup.emergency_log_retention_days", c.EmergencyLogRetentionDays)
	v.SetDefault("cleanup.emergency_backup_retention_days", c.EmergencyBackupRetentionDays)
	v.SetDefault("cleanup.temp_file_max_age", c.TempFileMaxAge)
	v.SetDefault("cleanup.soft_limit_mb", c.SoftLimitMB)
	v.SetDefault("cleanup.hard_limit_mb", c.HardLimitMB)
	for name, s := range map[string]ScheduleConfig{
		"expired_games": c.Schedules.ExpiredGames,
		"old_logs":      c.Schedules.OldLogs,
		"old_backups":   c.Schedules.OldBackups,
		"storage_check": c.Schedules.StorageCheck,
	} {
		key := "cleanup.schedules." + name
		v.SetDefault(key+".kind", s.Kind)
		v.SetDefault(key+".every", s.Every)
		v.SetDefault(key+".hour", s.Hour)
		v.SetDefault(key+".minute", s.Minute)
		v.SetDefault(key+".weekday", s.Weekday)
	}

	v.SetDefault("logging.level", cfg.Logging.Level)
	v.SetDefault("logging.file", cfg.Logging.File)
	v.SetDefault("logging.console", cfg.Logging.Console)
	v.SetDefault("logging.pretty", cfg.Logging.Pretty)
	v.SetDefault("logging.max_size_mb", cfg.Logging.MaxSizeMB)

	v.SetDefault("metrics.enabled", cfg.Metrics.Enabled)
	v.SetDefault("metrics.addr", cfg.Metrics.Addr)
	v.SetDefault("metrics.path", cfg.Metrics.Path)

	v.SetDefault("tracing.enabled", cfg.Tracing.Enabled)
	v.SetDefault("tracing.service_name", cfg.Tracing.ServiceName)
	v.SetDefault("tracing.sample_ratio", cfg.Tracing.SampleRatio)
}
