package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/harun/questkeep/pkg/document"
)

var (
	sessionStateJSON  string
	sessionStateFile  string
	sessionPlayerName string
	sessionStateOnly  bool
	sessionSets       []string
	sessionPatchJSON  string
	sessionListAll    bool
	sessionListJSON   bool
	sessionExtendDays int
)

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Manage game sessions",
	Long:  `Create, inspect, update and delete stored game sessions.`,
}

var sessionCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a new game session",
	Long: `Create a new game session and print its id.

The initial state comes from --state or --file. Without either a fresh
day-one state is used. --player sets game_state.player.name.`,
	Args: cobra.NoArgs,
	RunE: runSessionCreate,
}

var sessionGetCmd = &cobra.Command{
	Use:   "get <id>",
	Short: "Print a session document",
	Args:  cobra.ExactArgs(1),
	RunE:  runSessionGet,
}

var sessionUpdateCmd = &cobra.Command{
	Use:   "update <id>",
	Short: "Deep-merge a partial update into a session",
	Long: `Deep-merge a partial update into the session's game state.

Build the update from --json and any number of --set path=value pairs.
Paths use dots (player.stats.hp=80). Values that parse as JSON are stored
as JSON, anything else as a string.`,
	Args: cobra.ExactArgs(1),
	RunE: runSessionUpdate,
}

var sessionDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a session, keeping a backup",
	Args:  cobra.ExactArgs(1),
	RunE:  runSessionDelete,
}

var sessionListCmd = &cobra.Command{
	Use:   "list",
	Short: "List sessions, oldest first",
	Args:  cobra.NoArgs,
	RunE:  runSessionList,
}

var sessionExtendCmd = &cobra.Command{
	Use:   "extend <id>",
	Short: "Push a session's expiry out by whole days",
	Args:  cobra.ExactArgs(1),
	RunE:  runSessionExtend,
}

var sessionRemainingCmd = &cobra.Command{
	Use:   "remaining <id>",
	Short: "Show how long a session has before it expires",
	Args:  cobra.ExactArgs(1),
	RunE:  runSessionRemaining,
}

func init() {
	sessionCreateCmd.Flags().StringVar(&sessionStateJSON, "state", "", "initial game state as JSON")
	sessionCreateCmd.Flags().StringVar(&sessionStateFile, "file", "", "read the initial game state from a JSON file")
	sessionCreateCmd.Flags().StringVar(&sessionPlayerName, "player", "", "player name")

	sessionGetCmd.Flags().BoolVar(&sessionStateOnly, "state", false, "print only the game state")

	sessionUpdateCmd.Flags().StringArrayVar(&sessionSets, "set", nil, "path=value to merge (repeatable)")
	sessionUpdateCmd.Flags().StringVar(&sessionPatchJSON, "json", "", "partial game state as JSON")

	sessionListCmd.Flags().BoolVar(&sessionListAll, "all", false, "include expired sessions")
	sessionListCmd.Flags().BoolVar(&sessionListJSON, "json", false, "print summaries as JSON")

	sessionExtendCmd.Flags().IntVar(&sessionExtendDays, "days", 7, "days to add to the expiry")

	sessionCmd.AddCommand(
		sessionCreateCmd,
		sessionGetCmd,
		sessionUpdateCmd,
		sessionDeleteCmd,
		sessionListCmd,
		sessionExtendCmd,
		sessionRemainingCmd,
	)
	rootCmd.AddCommand(sessionCmd)
}

const freshState = `{"day":1,"player":{"name":"Unknown Hero","level":1},"world":{}}`

func runSessionCreate(cmd *cobra.Command, args []string) error {
	raw := freshState
	switch {
	case sessionStateJSON != "" && sessionStateFile != "":
		return fmt.Errorf("--state and --file are mutually exclusive")
	case sessionStateJSON != "":
		raw = sessionStateJSON
	case sessionStateFile != "":
		data, err := os.ReadFile(sessionStateFile)
		if err != nil {
			return fmt.Errorf("failed to read state file: %w", err)
		}
		raw = string(data)
	}

	if sessionPlayerName != "" {
		var err error
		raw, err = sjson.Set(raw, "player.name", sessionPlayerName)
		if err != nil {
			return fmt.Errorf("failed to set player name: %w", err)
		}
	}

	state, err := parseState(raw)
	if err != nil {
		return err
	}
	if err := document.ValidateState(state); err != nil {
		return err
	}

	id, ok := current.sessions.CreateSession(cmd.Context(), state)
	if !ok {
		return fmt.Errorf("failed to create session")
	}
	fmt.Fprintln(cmd.OutOrStdout(), id)
	return nil
}

func runSessionGet(cmd *cobra.Command, args []string) error {
	doc, ok := current.sessions.Get(cmd.Context(), args[0])
	if !ok {
		return notFound(args[0])
	}
	if sessionStateOnly {
		return printJSON(cmd.OutOrStdout(), doc.State)
	}
	raw, err := document.Encode(doc)
	if err != nil {
		return err
	}
	_, err = cmd.OutOrStdout().Write(raw)
	return err
}

func runSessionUpdate(cmd *cobra.Command, args []string) error {
	patch, err := buildPatch(sessionPatchJSON, sessionSets)
	if err != nil {
		return err
	}
	if len(patch) == 0 {
		return fmt.Errorf("nothing to update: pass --json or --set")
	}
	if !current.sessions.UpdateState(cmd.Context(), args[0], patch) {
		return fmt.Errorf("failed to update session %s", args[0])
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Updated %s\n", args[0])
	return nil
}

func runSessionDelete(cmd *cobra.Command, args []string) error {
	if !current.sessions.Delete(cmd.Context(), args[0]) {
		return fmt.Errorf("failed to delete session %s", args[0])
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", args[0])
	return nil
}

func runSessionList(cmd *cobra.Command, args []string) error {
	summaries := current.sessions.List(cmd.Context(), sessionListAll)
	out := cmd.OutOrStdout()
	if sessionListJSON {
		return printJSON(out, summaries)
	}
	if len(summaries) == 0 {
		fmt.Fprintln(out, "No sessions.")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tPLAYER\tLEVEL\tDAY\tCREATED\tREMAINING")
	for _, s := range summaries {
		fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%s\t%s\n",
			s.ID, s.PlayerName, s.PlayerLevel, s.Day,
			s.CreatedAt.Local().Format("2006-01-02 15:04"), s.Remaining)
	}
	return w.Flush()
}

func runSessionExtend(cmd *cobra.Command, args []string) error {
	if !current.sessions.ExtendExpiry(cmd.Context(), args[0], sessionExtendDays) {
		return fmt.Errorf("failed to extend session %s", args[0])
	}
	left, _ := current.sessions.RemainingTime(cmd.Context(), args[0])
	fmt.Fprintf(cmd.OutOrStdout(), "Extended %s by %d days (%s remaining)\n",
		args[0], sessionExtendDays, document.FormatRemaining(left))
	return nil
}

func runSessionRemaining(cmd *cobra.Command, args []string) error {
	left, ok := current.sessions.RemainingTime(cmd.Context(), args[0])
	if !ok {
		return notFound(args[0])
	}
	fmt.Fprintln(cmd.OutOrStdout(), document.FormatRemaining(left))
	return nil
}

func notFound(id string) error {
	return fmt.Errorf("session not found: %s", id)
}

func parseState(raw string) (document.State, error) {
	var state document.State
	if err := json.Unmarshal([]byte(raw), &state); err != nil {
		return nil, fmt.Errorf("invalid state JSON: %w", err)
	}
	return state, nil
}

// buildPatch applies each path=value to base and decodes the result.
func buildPatch(base string, sets []string) (document.State, error) {
	raw := strings.TrimSpace(base)
	if raw == "" {
		raw = "{}"
	}
	if !gjson.Valid(raw) || !gjson.Parse(raw).IsObject() {
		return nil, fmt.Errorf("--json must be a JSON object")
	}

	for _, kv := range sets {
		path, value, ok := strings.Cut(kv, "=")
		if !ok || path == "" {
			return nil, fmt.Errorf("invalid --set %q: want path=value", kv)
		}
		var err error
		if gjson.Valid(value) {
			raw, err = sjson.SetRaw(raw, path, value)
		} else {
			raw, err = sjson.Set(raw, path, value)
		}
		if err != nil {
			return nil, fmt.Errorf("invalid --set %q: %w", kv, err)
		}
	}
	return parseState(raw)
}
