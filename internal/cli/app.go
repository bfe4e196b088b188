package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/harun/questkeep/internal/config"
	"github.com/harun/questkeep/internal/logger"
	"github.com/harun/questkeep/pkg/cleanup"
	"github.com/harun/questkeep/pkg/session"
	"github.com/harun/questkeep/pkg/store"
)

// app holds everything a command needs, built once per invocation.
type app struct {
	cfg      *config.Config
	loader   *config.Loader
	log      *logger.Logger
	store    *store.FileStore
	sessions *session.Manager
	cleanup  *cleanup.Manager
}

var current *app

func setupApp(cmd *cobra.Command, args []string) error {
	loader := config.NewLoader(cfgFile)
	cfg, err := loader.Load()
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	if flags.Changed("data-dir") {
		if cfg.Logging.File == config.DefaultLogFile(cfg.DataDir) {
			cfg.Logging.File = config.DefaultLogFile(dataDir)
		}
		cfg.DataDir = dataDir
	}
	if flags.Changed("log-level") {
		cfg.Logging.Level = logLevel
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	lg, err := logger.New(cfg.LoggerConfig())
	if err != nil {
		return err
	}

	st, err := store.New(cfg.StoreOptions())
	if err != nil {
		_ = lg.Close()
		return err
	}

	current = &app{
		cfg:      cfg,
		loader:   loader,
		log:      lg,
		store:    st,
		sessions: session.NewManager(st),
		cleanup:  cleanup.New(st, cfg.Cleanup.Policy()),
	}

	log.Debug().
		Str("config", loader.GetConfigPath()).
		Str("data_dir", cfg.DataDir).
		Msg("Questkeep initialized")
	return nil
}

func closeApp() {
	if current == nil {
		return
	}
	if current.log != nil {
		_ = current.log.Close()
	}
	current = nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
