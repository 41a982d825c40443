package action

import (
	"context"

	"github.com/noah-isme/gema-grader/internal/models"
)

const replEvaluateName = "repl:evaluate"

// ReplProvider drives the persistent external session.
type ReplProvider struct{}

func (ReplProvider) Namespace() string { return "repl" }

func (ReplProvider) Descriptions() []Description {
	return []Description{
		NewDescription("repl", "evaluate", "Evaluate a templated command in the shared interpreter session", newReplEvaluate).
			WithProperties(Property{Key: "command", Description: "Command sent to the session; tokens are substituted", Required: true}).
			WithModes([]Mode{ModeRun}, ModeRun, ModeDemo, ModeTest),
	}
}

type replEvaluate struct {
	env      Environment
	template string
}

func newReplEvaluate(env Environment, values Values) (Action, error) {
	template, _ := values.Get("command")
	return &replEvaluate{env: env, template: template}, nil
}

func (a *replEvaluate) Perform(ctx context.Context, part models.DistributablePart, group models.Group) error {
	if a.env.Sessions == nil {
		return fail(replEvaluateName, part, group, executionFailure(errNotConfigured("session")))
	}

	tc := partContext(part)
	dir := ""
	if NeedsWorkspace(a.template) {
		record, err := a.env.Unarchiver.Unarchive(ctx, part, group)
		if err != nil {
			return fail(replEvaluateName, part, group, err)
		}
		dir = record.Dir
	}
	tc.Group = groupInfo(group, dir)

	command, err := SubstituteGroup(a.template, tc)
	if err != nil {
		return fail(replEvaluateName, part, group, err)
	}

	output, err := a.env.Sessions.Evaluate(ctx, command)
	if err != nil {
		return fail(replEvaluateName, part, group, executionFailure(err))
	}

	a.env.Logger.Info().Str("group", group.Name).Str("output", output).Msg("session evaluated command")
	return nil
}
