package process

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestShellRunnerRunReturnsOutput(t *testing.T) {
	runner := NewShellRunner("", TerminalConfig{}, zerolog.Nop())
	dir := t.TempDir()

	out, err := runner.Run(context.Background(), Command{Line: "pwd; echo $GRADER_TOKEN", Dir: dir, Env: []string{"GRADER_TOKEN=abc"}})
	require.NoError(t, err)

	resolved, err := filepath.EvalSymlinks(dir)
	require.NoError(t, err)
	require.Contains(t, out, resolved)
	require.Contains(t, out, "abc")
}

func TestShellRunnerRunReportsFailure(t *testing.T) {
	runner := NewShellRunner("", TerminalConfig{}, zerolog.Nop())

	out, err := runner.Run(context.Background(), Command{Line: "echo broken >&2; exit 3"})
	require.Error(t, err)
	require.Contains(t, out, "broken")
}

func TestShellRunnerStartDoesNotWait(t *testing.T) {
	runner := NewShellRunner("", TerminalConfig{}, zerolog.Nop())
	marker := filepath.Join(t.TempDir(), "done")

	require.NoError(t, runner.Start(context.Background(), Command{Line: "echo ok > " + marker}))
	require.Eventually(t, func() bool {
		_, err := os.Stat(marker)
		return err == nil
	}, 5*time.Second, 20*time.Millisecond)
}

func TestShellRunnerRunInTerminalUsesConfiguredProgram(t *testing.T) {
	runner := NewShellRunner("", TerminalConfig{Program: "env"}, zerolog.Nop())
	marker := filepath.Join(t.TempDir(), "terminal")

	require.NoError(t, runner.RunInTerminal(context.Background(), Command{Line: "echo ok > " + marker}, "A1 - P1"))
	require.Eventually(t, func() bool {
		_, err := os.Stat(marker)
		return err == nil
	}, 5*time.Second, 20*time.Millisecond)
}

func TestShellRunnerRejectsEmptyCommand(t *testing.T) {
	runner := NewShellRunner("", TerminalConfig{}, zerolog.Nop())
	require.ErrorIs(t, runner.Start(context.Background(), Command{Line: "  "}), ErrEmptyCommand)
	_, err := runner.Run(context.Background(), Command{})
	require.ErrorIs(t, err, ErrEmptyCommand)
}
