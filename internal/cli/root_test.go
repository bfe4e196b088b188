package cli

import (
	"bytes"
	"context"
	"io"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// resetFlags restores every flag in the tree so runs don't leak into each other.
func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			_ = sv.Replace(nil)
		} else {
			_ = f.Value.Set(f.DefValue)
		}
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}

// runCLI executes the root command against dataDir and returns stdout.
func runCLI(t *testing.T, ctx context.Context, dataDir string, args ...string) (string, error) {
	t.Helper()

	cmd := GetRootCmd()
	resetFlags(cmd)

	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(append([]string{
		"--config", filepath.Join(dataDir, "missing.json"),
		"--data-dir", dataDir,
		"--log-level", "error",
	}, args...))

	if ctx == nil {
		ctx = context.Background()
	}
	err := cmd.ExecuteContext(ctx)
	return out.String(), err
}

func TestRootCommand(t *testing.T) {
	t.Run("version flag", func(t *testing.T) {
		cmd := GetRootCmd()
		resetFlags(cmd)
		cmd.SetArgs([]string{"--version"})

		output := &bytes.Buffer{}
		cmd.SetOut(output)

		err := cmd.Execute()
		require.NoError(t, err)

		assert.Contains(t, output.String(), "questkeep version")
		assert.Contains(t, output.String(), GetVersion())
	})

	t.Run("help flag", func(t *testing.T) {
		cmd := GetRootCmd()
		resetFlags(cmd)
		cmd.SetArgs([]string{"--help"})

		output := &bytes.Buffer{}
		cmd.SetOut(output)

		err := cmd.Execute()
		require.NoError(t, err)

		helpText := output.String()
		assert.Contains(t, helpText, "Questkeep")
		assert.Contains(t, helpText, "session")
		assert.Contains(t, helpText, "cleanup")
	})

	t.Run("global flags", func(t *testing.T) {
		cmd := GetRootCmd()

		configFlag := cmd.PersistentFlags().Lookup("config")
		require.NotNil(t, configFlag)
		assert.Equal(t, "", configFlag.DefValue)

		logLevelFlag := cmd.PersistentFlags().Lookup("log-level")
		require.NotNil(t, logLevelFlag)
		assert.Equal(t, "info", logLevelFlag.DefValue)

		dataDirFlag := cmd.PersistentFlags().Lookup("data-dir")
		require.NotNil(t, dataDirFlag)
	})

	t.Run("subcommands registered", func(t *testing.T) {
		names := map[string]bool{}
		for _, c := range GetRootCmd().Commands() {
			names[c.Name()] = true
		}
		for _, want := range []string{"serve", "session", "cleanup", "stats"} {
			assert.True(t, names[want], "%s command should exist", want)
		}
	})

	t.Run("invalid log level", func(t *testing.T) {
		cmd := GetRootCmd()
		resetFlags(cmd)
		dir := t.TempDir()
		cmd.SetOut(io.Discard)
		cmd.SetArgs([]string{"--config", filepath.Join(dir, "none.json"), "--data-dir", dir, "--log-level", "loud", "stats"})

		err := cmd.Execute()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid log level")
	})
}

func TestGetVersion(t *testing.T) {
	version := GetVersion()
	assert.NotEmpty(t, version)
	assert.True(t, strings.HasPrefix(version, "0."))
}

func TestSetupUsesDataDir(t *testing.T) {
	dir := t.TempDir()

	_, err := runCLI(t, nil, dir, "stats")
	require.NoError(t, err)

	for _, sub := range []string{"games", "backups", "logs"} {
		assert.DirExists(t, filepath.Join(dir, sub))
	}
	assert.FileExists(t, filepath.Join(dir, "logs", "service.log"))
}
