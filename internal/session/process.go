package session

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// ProcessDialer starts a long-lived interpreter and talks to it over stdin/stdout.
// After each command it sends EchoFormat with a unique marker and collects output
// until that marker is read back.
type ProcessDialer struct {
	Program    string
	Args       []string
	Dir        string
	EchoFormat string
}

// Dial starts the interpreter process.
func (d ProcessDialer) Dial(_ context.Context) (Client, error) {
	if d.Program == "" {
		return nil, fmt.Errorf("session program not configured")
	}
	echo := d.EchoFormat
	if echo == "" {
		echo = "echo %s"
	}

	cmd := exec.Command(d.Program, d.Args...)
	cmd.Dir = d.Dir
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}
	cmd.Stderr = cmd.Stdout

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start %s: %w", d.Program, err)
	}

	return &processClient{
		cmd:    cmd,
		stdin:  stdin,
		stdout: bufio.NewReader(stdout),
		echo:   echo,
	}, nil
}

type processClient struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout *bufio.Reader
	echo   string

	closeOnce sync.Once
	closeErr  error
}

type readResult struct {
	output string
	err    error
}

func (c *processClient) Evaluate(ctx context.Context, command string) (string, error) {
	marker := "__grader_done_" + strings.ReplaceAll(uuid.NewString(), "-", "")
	payload := command + "\n" + fmt.Sprintf(c.echo, marker) + "\n"
	if _, err := io.WriteString(c.stdin, payload); err != nil {
		return "", fmt.Errorf("%w: write: %v", ErrSessionUnavailable, err)
	}

	done := make(chan readResult, 1)
	go func() {
		var out strings.Builder
		for {
			line, err := c.stdout.ReadString('\n')
			if strings.TrimRight(line, "\r\n") == marker {
				done <- readResult{output: out.String()}
				return
			}
			out.WriteString(line)
			if err != nil {
				if errors.Is(err, io.EOF) {
					err = fmt.Errorf("interpreter exited")
				}
				done <- readResult{output: out.String(), err: err}
				return
			}
		}
	}()

	select {
	case res := <-done:
		if res.err != nil {
			return res.output, fmt.Errorf("%w: read: %v", ErrSessionUnavailable, res.err)
		}
		return res.output, nil
	case <-ctx.Done():
		return "", fmt.Errorf("%w: %v", ErrSessionUnavailable, ctx.Err())
	}
}

func (c *processClient) Close() error {
	c.closeOnce.Do(func() {
		_ = c.stdin.Close()
		if c.cmd.Process != nil {
			_ = c.cmd.Process.Kill()
		}
		if err := c.cmd.Wait(); err != nil {
			var exitErr *exec.ExitError
			if !errors.As(err, &exitErr) {
				c.closeErr = err
			}
		}
	})
	return c.closeErr
}
