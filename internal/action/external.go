package action

import (
	"context"

	"github.com/noah-isme/gema-grader/internal/models"
)

const (
	externalCommandName = "external:command"
	externalGroupsName  = "external:groups-command"
	externalDemoName    = "external:demo"
)

var (
	commandProperty      = Property{Key: "command", Description: "Shell command; tokens such as ^group_name^ and ^unarchive_dir^ are substituted", Required: true}
	showTerminalProperty = Property{Key: PropertyShowTerminal, Description: "TRUE to run inside a visible terminal"}
	terminalNameProperty = Property{Key: PropertyTerminalName, Description: "Terminal title, defaults to \"<assignment> - <part>\""}
)

// ExternalProvider runs arbitrary templated shell commands.
type ExternalProvider struct{}

func (ExternalProvider) Namespace() string { return "external" }

func (ExternalProvider) Descriptions() []Description {
	return []Description{
		NewDescription("external", "command", "Run a command against one group's workspace", newExternalCommand).
			WithProperties(commandProperty, showTerminalProperty, terminalNameProperty).
			WithModes([]Mode{ModeRun}, ModeRun, ModeDemo, ModeTest, ModeOpen),
		NewDescription("external", "groups-command", "Run one command for a batch of groups using ^groups_info^", newExternalGroupsCommand).
			WithProperties(commandProperty, showTerminalProperty, terminalNameProperty).
			WithModes([]Mode{ModePrint}, AllModes()...),
		NewDescription("external", "demo", "Launch a demo without unarchiving the handin", newExternalDemo).
			WithProperties(commandProperty, showTerminalProperty, terminalNameProperty).
			WithModes([]Mode{ModeDemo}, ModeDemo),
	}
}

type externalCommand struct {
	name      string
	template  string
	env       Environment
	values    Values
	unarchive bool
}

func newExternalCommand(env Environment, values Values) (Action, error) {
	template, _ := values.Get("command")
	return &externalCommand{name: externalCommandName, template: template, env: env, values: values, unarchive: true}, nil
}

func newExternalDemo(env Environment, values Values) (Action, error) {
	template, _ := values.Get("command")
	return &externalCommand{name: externalDemoName, template: template, env: env, values: values}, nil
}

// Perform unarchives the group's handin and runs the command in its workspace.
// A demo never unarchives and runs in the caller's directory; ^unarchive_dir^
// still names the planned workspace.
func (a *externalCommand) Perform(ctx context.Context, part models.DistributablePart, group models.Group) error {
	tc := partContext(part)
	dir, runDir := "", ""

	switch {
	case a.unarchive:
		record, err := a.env.Unarchiver.Unarchive(ctx, part, group)
		if err != nil {
			return fail(a.name, part, group, err)
		}
		dir, runDir = record.Dir, record.Dir
	case a.env.Workspaces != nil && NeedsWorkspace(a.template):
		dir = a.env.Workspaces.Dir(part, group)
	}
	tc.Group = groupInfo(group, dir)

	line, err := SubstituteGroup(a.template, tc)
	if err != nil {
		return fail(a.name, part, group, err)
	}

	if err := newLauncher(a.env, a.values, part).launch(ctx, line, runDir); err != nil {
		return fail(a.name, part, group, err)
	}
	return nil
}

type externalGroupsCommand struct {
	template string
	env      Environment
	values   Values
}

func newExternalGroupsCommand(env Environment, values Values) (Action, error) {
	template, _ := values.Get("command")
	return &externalGroupsCommand{template: template, env: env, values: values}, nil
}

func (a *externalGroupsCommand) Perform(ctx context.Context, part models.DistributablePart, group models.Group) error {
	return a.PerformBatch(ctx, part, []models.Group{group})
}

// PerformBatch unarchives every group in order, then runs the command once.
func (a *externalGroupsCommand) PerformBatch(ctx context.Context, part models.DistributablePart, groups []models.Group) error {
	tc := partContext(part)
	needsWorkspace := NeedsWorkspace(a.template)

	tc.Groups = make([]GroupInfo, 0, len(groups))
	for _, group := range groups {
		dir := ""
		if needsWorkspace {
			record, err := a.env.Unarchiver.Unarchive(ctx, part, group)
			if err != nil {
				return fail(externalGroupsName, part, group, err)
			}
			dir = record.Dir
		}
		tc.Groups = append(tc.Groups, groupInfo(group, dir))
	}
	if len(tc.Groups) == 1 {
		tc.Group = tc.Groups[0]
	}

	line, err := SubstituteGroups(a.template, tc)
	if err != nil {
		return failBatch(externalGroupsName, part, err)
	}
	if err := newLauncher(a.env, a.values, part).launch(ctx, line, ""); err != nil {
		return failBatch(externalGroupsName, part, err)
	}
	return nil
}
