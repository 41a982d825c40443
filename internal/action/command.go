package action

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-grader/internal/models"
	"github.com/noah-isme/gema-grader/internal/process"
)

func partContext(part models.DistributablePart) TemplateContext {
	return TemplateContext{
		AssignmentName:   part.AssignmentName(),
		AssignmentNumber: part.AssignmentNumber(),
		PartName:         part.Name,
		PartNumber:       part.Number,
	}
}

func groupInfo(group models.Group, dir string) GroupInfo {
	return GroupInfo{Name: group.Name, Members: group.Logins(), UnarchiveDir: dir}
}

// terminalTitle is the terminal-name property, defaulting to "<assignment> - <part>".
func terminalTitle(values Values, part models.DistributablePart) string {
	if title, ok := values.Get(PropertyTerminalName); ok {
		return title
	}
	return part.AssignmentName() + " - " + part.Name
}

// launcher runs a finished command line either silently or in a visible terminal.
type launcher struct {
	runner       process.Runner
	showTerminal bool
	title        string
	logger       zerolog.Logger
}

func newLauncher(env Environment, values Values, part models.DistributablePart) launcher {
	return launcher{
		runner:       env.Runner,
		showTerminal: values.Flag(PropertyShowTerminal),
		title:        terminalTitle(values, part),
		logger:       env.Logger,
	}
}

func (l launcher) launch(ctx context.Context, line, dir string) error {
	if l.runner == nil {
		return executionFailure(errNotConfigured("command runner"))
	}
	cmd := process.Command{Line: line, Dir: dir}

	var err error
	if l.showTerminal {
		err = l.runner.RunInTerminal(ctx, cmd, l.title)
	} else {
		err = l.runner.Start(ctx, cmd)
	}
	if err != nil {
		return executionFailure(err)
	}

	l.logger.Info().Bool("terminal", l.showTerminal).Str("command", line).Msg("launched command")
	return nil
}

// shellQuote quotes s for a POSIX shell.
func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

func shellJoin(args []string) string {
	quoted := make([]string, len(args))
	for i, a := range args {
		quoted[i] = shellQuote(a)
	}
	return strings.Join(quoted, " ")
}

type notConfiguredError string

func (e notConfiguredError) Error() string {
	return string(e) + " not configured"
}

func errNotConfigured(what string) error {
	return notConfiguredError(what)
}

func fail(desc string, part models.DistributablePart, group models.Group, err error) error {
	return &ActionError{Action: desc, Part: part.Name, Group: group.Name, Err: err}
}

func failBatch(desc string, part models.DistributablePart, err error) error {
	return &ActionError{Action: desc, Part: part.Name, Err: err}
}
