// Package process spawns the external commands grading actions are built from.
package process

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/rs/zerolog"
)

// ErrEmptyCommand indicates a blank command line.
var ErrEmptyCommand = errors.New("command line is empty")

// Command is a shell command line together with where to run it.
type Command struct {
	Line string
	Dir  string
	Env  []string
}

// Runner starts shell commands either detached, inside a visible terminal, or synchronously.
type Runner interface {
	Start(ctx context.Context, cmd Command) error
	RunInTerminal(ctx context.Context, cmd Command, title string) error
	Run(ctx context.Context, cmd Command) (string, error)
}

// TerminalConfig describes how to launch the terminal emulator, e.g. xterm -T <title> -e <cmd>.
// Empty flags are omitted.
type TerminalConfig struct {
	Program   string
	TitleFlag string
	ExecFlag  string
}

// ShellRunner runs command lines through a POSIX shell.
type ShellRunner struct {
	shell    string
	terminal TerminalConfig
	logger   zerolog.Logger
}

// NewShellRunner constructs a runner. Blank values fall back to /bin/sh and xterm.
func NewShellRunner(shell string, terminal TerminalConfig, logger zerolog.Logger) *ShellRunner {
	if shell == "" {
		shell = "/bin/sh"
	}
	if terminal.Program == "" {
		terminal = TerminalConfig{Program: "xterm", TitleFlag: "-T", ExecFlag: "-e"}
	}
	return &ShellRunner{
		shell:    shell,
		terminal: terminal,
		logger:   logger.With().Str("component", "process_runner").Logger(),
	}
}

// Start launches the command in its own session and returns without waiting.
// The process is not tied to ctx so it outlives the request that started it.
func (r *ShellRunner) Start(_ context.Context, cmd Command) error {
	if strings.TrimSpace(cmd.Line) == "" {
		return ErrEmptyCommand
	}

	proc := exec.Command(r.shell, "-c", cmd.Line)
	r.prepare(proc, cmd)

	if err := proc.Start(); err != nil {
		return fmt.Errorf("start %q: %w", cmd.Line, err)
	}

	r.logger.Debug().Int("pid", proc.Process.Pid).Str("command", cmd.Line).Msg("started background command")
	go r.reap(proc, cmd.Line)
	return nil
}

// RunInTerminal opens a terminal emulator running the command and returns once it is spawned.
func (r *ShellRunner) RunInTerminal(_ context.Context, cmd Command, title string) error {
	if strings.TrimSpace(cmd.Line) == "" {
		return ErrEmptyCommand
	}

	args := make([]string, 0, 6)
	if r.terminal.TitleFlag != "" && title != "" {
		args = append(args, r.terminal.TitleFlag, title)
	}
	if r.terminal.ExecFlag != "" {
		args = append(args, r.terminal.ExecFlag)
	}
	args = append(args, r.shell, "-c", cmd.Line)

	proc := exec.Command(r.terminal.Program, args...)
	r.prepare(proc, cmd)

	if err := proc.Start(); err != nil {
		return fmt.Errorf("open terminal %s: %w", r.terminal.Program, err)
	}

	r.logger.Debug().Int("pid", proc.Process.Pid).Str("title", title).Str("command", cmd.Line).Msg("opened terminal")
	go r.reap(proc, cmd.Line)
	return nil
}

// Run executes the command, waits for it and returns its combined output.
func (r *ShellRunner) Run(ctx context.Context, cmd Command) (string, error) {
	if strings.TrimSpace(cmd.Line) == "" {
		return "", ErrEmptyCommand
	}

	proc := exec.CommandContext(ctx, r.shell, "-c", cmd.Line)
	r.prepare(proc, cmd)

	var output bytes.Buffer
	proc.Stdout = &output
	proc.Stderr = &output

	if err := proc.Run(); err != nil {
		return output.String(), fmt.Errorf("run %q: %w\noutput: %s", cmd.Line, err, strings.TrimSpace(output.String()))
	}
	return output.String(), nil
}

func (r *ShellRunner) prepare(proc *exec.Cmd, cmd Command) {
	proc.Dir = cmd.Dir
	proc.Env = append(os.Environ(), cmd.Env...)
	proc.SysProcAttr = sessionAttr()
}

func (r *ShellRunner) reap(proc *exec.Cmd, line string) {
	if err := proc.Wait(); err != nil {
		r.logger.Warn().Err(err).Str("command", line).Msg("background command exited with error")
	}
}
