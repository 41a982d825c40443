package action

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/noah-isme/gema-grader/internal/models"
	"github.com/noah-isme/gema-grader/pkg/docker"
)

const (
	dockerRunName = "docker:run"

	// DockerLogFile is written into the workspace after every sandbox run.
	DockerLogFile = "grader-docker.log"

	containerWorkspace = "/workspace"
)

// DockerProvider runs handins inside an isolated container.
type DockerProvider struct{}

func (DockerProvider) Namespace() string { return "docker" }

func (DockerProvider) Descriptions() []Description {
	return []Description{
		NewDescription("docker", "run", "Run a command in a sandbox container with the workspace mounted", newDockerRun).
			WithProperties(
				Property{Key: "image", Description: "Container image", Required: true},
				Property{Key: "command", Description: "Shell command run in the container; ^unarchive_dir^ is the mounted workspace", Required: true},
				Property{Key: "timeout-seconds", Description: "Execution timeout"},
				Property{Key: "memory-mb", Description: "Memory limit in megabytes"},
			).
			WithModes([]Mode{ModeTest}, ModeRun, ModeTest),
	}
}

type dockerRun struct {
	env     Environment
	image   string
	command string
	timeout time.Duration
	memory  int64
}

func newDockerRun(env Environment, values Values) (Action, error) {
	image, _ := values.Get("image")
	command, _ := values.Get("command")
	a := &dockerRun{env: env, image: image, command: command}

	if raw := values.GetOr("timeout-seconds", ""); raw != "" {
		secs, err := strconv.Atoi(raw)
		if err != nil || secs <= 0 {
			return nil, &BindingError{Action: dockerRunName, Missing: []string{"timeout-seconds (positive integer)"}}
		}
		a.timeout = time.Duration(secs) * time.Second
	}
	if raw := values.GetOr("memory-mb", ""); raw != "" {
		mb, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || mb <= 0 {
			return nil, &BindingError{Action: dockerRunName, Missing: []string{"memory-mb (positive integer)"}}
		}
		a.memory = mb
	}
	return a, nil
}

func (a *dockerRun) Perform(ctx context.Context, part models.DistributablePart, group models.Group) error {
	if a.env.Docker == nil {
		return fail(dockerRunName, part, group, executionFailure(errNotConfigured("docker executor")))
	}

	record, err := a.env.Unarchiver.Unarchive(ctx, part, group)
	if err != nil {
		return fail(dockerRunName, part, group, err)
	}

	tc := partContext(part)
	tc.Group = groupInfo(group, containerWorkspace)
	line, err := SubstituteGroup(a.command, tc)
	if err != nil {
		return fail(dockerRunName, part, group, err)
	}

	result, runErr := a.env.Docker.Run(ctx, docker.ExecutionRequest{
		Image:           a.image,
		Cmd:             []string{"sh", "-c", line},
		Timeout:         a.timeout,
		Workspace:       record.Dir,
		WorkingDir:      containerWorkspace,
		MemoryLimitMB:   a.memory,
		NetworkDisabled: true,
		Labels: map[string]string{
			"part":  strconv.FormatUint(uint64(part.ID), 10),
			"group": group.Name,
		},
	})

	if err := writeDockerLog(record.Dir, line, result); err != nil {
		a.env.Logger.Warn().Err(err).Str("group", group.Name).Msg("write sandbox log")
	}

	if runErr != nil {
		return fail(dockerRunName, part, group, executionFailure(runErr))
	}

	a.env.Logger.Info().
		Str("group", group.Name).
		Int("exit_code", result.ExitCode).
		Dur("duration", result.Duration).
		Msg("sandbox run finished")
	return nil
}

func writeDockerLog(dir, line string, result docker.ExecutionResult) error {
	content := fmt.Sprintf("$ %s\nexit code: %d\ntimed out: %t\nduration: %s\n\n--- stdout ---\n%s\n--- stderr ---\n%s",
		line, result.ExitCode, result.TimedOut, result.Duration, result.Stdout, result.Stderr)
	return os.WriteFile(filepath.Join(dir, DockerLogFile), []byte(content), 0o644)
}
