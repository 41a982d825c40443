package action

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gema-grader/internal/handin"
	"github.com/noah-isme/gema-grader/internal/models"
	"github.com/noah-isme/gema-grader/internal/process"
	"github.com/noah-isme/gema-grader/pkg/docker"
)

type launched struct {
	line     string
	dir      string
	title    string
	terminal bool
}

type stubRunner struct {
	mu       sync.Mutex
	launched []launched
	runs     []string
	err      error
}

func (r *stubRunner) Start(_ context.Context, cmd process.Command) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.launched = append(r.launched, launched{line: cmd.Line, dir: cmd.Dir})
	return nil
}

func (r *stubRunner) RunInTerminal(_ context.Context, cmd process.Command, title string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.launched = append(r.launched, launched{line: cmd.Line, dir: cmd.Dir, title: title, terminal: true})
	return nil
}

func (r *stubRunner) Run(_ context.Context, cmd process.Command) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runs = append(r.runs, cmd.Line)
	return "", r.err
}

type stubUnarchiver struct {
	dirs  map[string]string
	calls []string
	err   error
}

func (u *stubUnarchiver) Unarchive(_ context.Context, part models.DistributablePart, group models.Group) (handin.Record, error) {
	u.calls = append(u.calls, group.Name)
	if u.err != nil {
		return handin.Record{}, u.err
	}
	return handin.Record{PartID: part.ID, GroupID: group.ID, Dir: u.dirs[group.Name]}, nil
}

type stubWorkspaces struct{}

func (stubWorkspaces) Dir(part models.DistributablePart, group models.Group) string {
	return "/planned/" + part.Name + "/" + group.Name
}

type stubEvaluator struct {
	commands []string
	err      error
}

func (e *stubEvaluator) Evaluate(_ context.Context, command string) (string, error) {
	e.commands = append(e.commands, command)
	return "ok", e.err
}

type stubPrinter struct {
	jobs []PrintJob
}

func (p *stubPrinter) Print(_ context.Context, job PrintJob) error {
	p.jobs = append(p.jobs, job)
	return nil
}

type stubExecutor struct {
	requests []docker.ExecutionRequest
	result   docker.ExecutionResult
	err      error
}

func (e *stubExecutor) Run(_ context.Context, req docker.ExecutionRequest) (docker.ExecutionResult, error) {
	e.requests = append(e.requests, req)
	return e.result, e.err
}

var errBoom = errors.New("boom")

func testPart() models.DistributablePart {
	return models.DistributablePart{
		ID:     7,
		Name:   "P1",
		Number: 2,
		GradableEvent: models.GradableEvent{
			Assignment: models.Assignment{Name: "A1", Number: 3},
		},
	}
}

func testGroup(name string, logins ...string) models.Group {
	group := models.Group{ID: uint(len(name)), Name: name}
	for _, login := range logins {
		group.Members = append(group.Members, models.Student{Login: login})
	}
	return group
}

func writeFiles(t *testing.T, root string, names ...string) {
	t.Helper()
	for _, name := range names {
		path := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(name), 0o644))
	}
}

type fixture struct {
	env        Environment
	runner     *stubRunner
	unarchiver *stubUnarchiver
	evaluator  *stubEvaluator
	printer    *stubPrinter
	executor   *stubExecutor
	registry   *Registry
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		runner:     &stubRunner{},
		unarchiver: &stubUnarchiver{dirs: map[string]string{}},
		evaluator:  &stubEvaluator{},
		printer:    &stubPrinter{},
		executor:   &stubExecutor{},
	}
	f.env = Environment{
		Unarchiver:     f.unarchiver,
		Workspaces:     stubWorkspaces{},
		Runner:         f.runner,
		Sessions:       f.evaluator,
		Printer:        f.printer,
		Docker:         f.executor,
		Editor:         "vim",
		DefaultPrinter: "lab-1",
		Logger:         zerolog.Nop(),
	}
	registry, err := NewDefaultRegistry(f.env)
	require.NoError(t, err)
	f.registry = registry
	return f
}

func (f *fixture) bind(t *testing.T, name string, values map[string]string) Action {
	t.Helper()
	desc, err := f.registry.Lookup(name)
	require.NoError(t, err)
	act, err := f.registry.Bind(desc, values)
	require.NoError(t, err)
	return act
}
