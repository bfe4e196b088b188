package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/harun/questkeep/internal/config"
	"github.com/harun/questkeep/internal/observability"
	"github.com/harun/questkeep/internal/tracing"
	"github.com/harun/questkeep/pkg/cron"
)

var (
	serveCleanupOnStart bool
	serveStatsInterval  time.Duration
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the cleanup scheduler and metrics endpoint",
	Long: `Run questkeep in the foreground until SIGINT or SIGTERM.

The scheduler runs the cleanup jobs on their configured schedules. When
metrics are enabled, Prometheus metrics and a /health check are served on
metrics.addr. Changes to the config file's log level apply live.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().BoolVar(&serveCleanupOnStart, "cleanup-on-start", false, "run every cleanup job once at startup")
	serveCmd.Flags().DurationVar(&serveStatsInterval, "stats-interval", time.Minute, "how often session gauges are refreshed")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := current.cfg

	if cfg.Tracing.Enabled {
		if err := tracing.InitOpenTelemetry(cfg.Tracing.ServiceName, cfg.Tracing.SampleRatio); err != nil {
			return err
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := tracing.ShutdownOpenTelemetry(shutdownCtx); err != nil {
				log.Warn().Err(err).Msg("Failed to flush traces")
			}
		}()
	}

	lg := current.log
	if err := current.loader.Watch(func(c *config.Config) {
		if err := lg.SetLevel(c.Logging.Level); err != nil {
			log.Warn().Err(err).Msg("Failed to apply log level")
		}
	}); err != nil {
		log.Debug().Err(err).Msg("Config watch disabled")
	}

	g, gctx := errgroup.WithContext(ctx)

	if cfg.Cleanup.Enabled {
		sched, err := newScheduler(cfg)
		if err != nil {
			return err
		}
		if serveCleanupOnStart {
			for _, j := range sched.Jobs() {
				_ = sched.RunNow(gctx, j.Name)
			}
		}
		if err := sched.Start(gctx); err != nil {
			return err
		}
		g.Go(func() error {
			<-gctx.Done()
			return sched.Stop(cfg.Cleanup.StopTimeout)
		})
	} else {
		log.Warn().Msg("Cleanup scheduler disabled")
	}

	if cfg.Metrics.Enabled {
		srv := observability.NewServer(observability.ServerOptions{
			Addr:        cfg.Metrics.Addr,
			MetricsPath: cfg.Metrics.Path,
			Status: func(ctx context.Context) map[string]any {
				st := current.sessions.Statistics(ctx)
				return map[string]any{
					"active_sessions":  st.ActiveSessions,
					"expired_sessions": st.ExpiredSessions,
					"storage_bytes":    st.StorageBytes,
				}
			},
		})
		g.Go(srv.Start)
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Stop(shutdownCtx)
		})
	}

	g.Go(func() error {
		refreshGauges(gctx, serveStatsInterval)
		return nil
	})

	fmt.Fprintf(cmd.OutOrStdout(), "Questkeep serving %s (press Ctrl+C to stop)\n", cfg.DataDir)
	log.Info().
		Str("data_dir", cfg.DataDir).
		Bool("cleanup", cfg.Cleanup.Enabled).
		Bool("metrics", cfg.Metrics.Enabled).
		Msg("Questkeep started")

	err := g.Wait()
	log.Info().Msg("Questkeep stopped")
	return err
}

func newScheduler(cfg *config.Config) (*cron.Scheduler, error) {
	schedules, err := cfg.Cleanup.Schedules.CronSchedules()
	if err != nil {
		return nil, err
	}
	sched := cron.New(cron.Options{
		Tick: cfg.Cleanup.Tick,
		Now:  current.store.Now,
	})
	if err := current.cleanup.Register(sched, schedules); err != nil {
		return nil, err
	}
	return sched, nil
}

// refreshGauges keeps the session and storage gauges current between
// scrapes until ctx is done.
func refreshGauges(ctx context.Context, every time.Duration) {
	if every <= 0 {
		every = time.Minute
	}
	current.sessions.Statistics(ctx)

	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			current.sessions.Statistics(ctx)
		}
	}
}
