package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/harun/questkeep/pkg/cleanup"
	"github.com/harun/questkeep/pkg/cron"
)

var cleanupJSON bool

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Run or inspect the cleanup jobs",
	Long: `Cleanup keeps the data directory bounded:

- Expired games are backed up and removed
- Rotated service logs past the log retention are deleted
- Backup days past the backup retention are deleted
- Storage usage is checked against the soft and hard limits`,
}

var cleanupRunCmd = &cobra.Command{
	Use:       "run [all|games|logs|backups]",
	Short:     "Run a cleanup task now",
	Args:      cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
	ValidArgs: []string{cleanup.TaskAll, cleanup.TaskGames, cleanup.TaskLogs, cleanup.TaskBackups},
	RunE:      runCleanupRun,
}

var cleanupCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Check storage usage, escalating to an emergency cleanup above the hard limit",
	Args:  cobra.NoArgs,
	RunE:  runCleanupCheck,
}

var cleanupNextCmd = &cobra.Command{
	Use:   "next",
	Short: "Show when each cleanup job runs next",
	Args:  cobra.NoArgs,
	RunE:  runCleanupNext,
}

func init() {
	cleanupCmd.PersistentFlags().BoolVar(&cleanupJSON, "json", false, "print results as JSON")
	cleanupCmd.AddCommand(cleanupRunCmd, cleanupCheckCmd, cleanupNextCmd)
	rootCmd.AddCommand(cleanupCmd)
}

func runCleanupRun(cmd *cobra.Command, args []string) error {
	task := cleanup.TaskAll
	if len(args) == 1 {
		task = args[0]
	}

	report, err := current.cleanup.RunManual(cmd.Context(), task)
	out := cmd.OutOrStdout()
	if cleanupJSON {
		if perr := printJSON(out, report); perr != nil {
			return perr
		}
	} else {
		fmt.Fprintf(out, "Expired games removed: %d\n", report.ExpiredGames)
		fmt.Fprintf(out, "Old logs removed:      %d\n", report.OldLogs)
		fmt.Fprintf(out, "Old backups removed:   %d\n", report.OldBackups)
		fmt.Fprintf(out, "Total:                 %d\n", report.Total())
	}
	return err
}

func runCleanupCheck(cmd *cobra.Command, args []string) error {
	status, err := current.cleanup.CheckStorage(cmd.Context())
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if cleanupJSON {
		return printJSON(out, status)
	}

	policy := current.cleanup.Policy()
	fmt.Fprintf(out, "Storage: %s used (soft limit %s, hard limit %s)\n",
		humanize.IBytes(uint64(status.UsedBytes)),
		humanize.IBytes(uint64(policy.SoftLimitBytes)),
		humanize.IBytes(uint64(policy.HardLimitBytes)))
	fmt.Fprintf(out, "Level: %s\n", status.Level)
	if status.Emergency != nil {
		fmt.Fprintf(out, "Emergency cleanup removed %d items\n", status.Emergency.Total())
	}
	return nil
}

func runCleanupNext(cmd *cobra.Command, args []string) error {
	schedules, err := current.cfg.Cleanup.Schedules.CronSchedules()
	if err != nil {
		return err
	}

	sched := cron.New(cron.Options{Now: current.store.Now})
	if err := current.cleanup.Register(sched, schedules); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	jobs := sched.Jobs()
	if cleanupJSON {
		return printJSON(out, sched.NextRuns())
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "JOB\tSCHEDULE\tNEXT RUN")
	for _, j := range jobs {
		fmt.Fprintf(w, "%s\t%s\t%s\n", j.Name, scheduleOf(schedules, j.Name),
			j.State.NextRunAt.Local().Format("2006-01-02 15:04 MST"))
	}
	return w.Flush()
}

func scheduleOf(s cleanup.Schedules, job string) string {
	switch job {
	case cleanup.JobExpiredGames:
		return s.ExpiredGames.String()
	case cleanup.JobOldLogs:
		return s.OldLogs.String()
	case cleanup.JobOldBackups:
		return s.OldBackups.String()
	case cleanup.JobStorageCheck:
		return s.StorageCheck.String()
	}
	return ""
}
