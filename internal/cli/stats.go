package cli

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

var statsJSON bool

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show session and storage statistics",
	Args:  cobra.NoArgs,
	RunE:  runStats,
}

func init() {
	statsCmd.Flags().BoolVar(&statsJSON, "json", false, "print statistics as JSON")
	rootCmd.AddCommand(statsCmd)
}

func runStats(cmd *cobra.Command, args []string) error {
	st := current.sessions.Statistics(cmd.Context())
	out := cmd.OutOrStdout()
	if statsJSON {
		return printJSON(out, st)
	}

	fmt.Fprintf(out, "Data dir:         %s\n", current.cfg.DataDir)
	fmt.Fprintf(out, "Total sessions:   %d\n", st.TotalSessions)
	fmt.Fprintf(out, "Active sessions:  %d\n", st.ActiveSessions)
	fmt.Fprintf(out, "Expired sessions: %d\n", st.ExpiredSessions)
	fmt.Fprintf(out, "Storage used:     %s\n", humanize.IBytes(uint64(st.StorageBytes)))
	fmt.Fprintf(out, "Session TTL:      %s\n", st.TTL)
	if st.OldestSession != "" {
		fmt.Fprintf(out, "Oldest session:   %s\n", st.OldestSession)
		fmt.Fprintf(out, "Newest session:   %s\n", st.NewestSession)
	}
	return nil
}
