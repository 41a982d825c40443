package action

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gema-grader/internal/handin"
	"github.com/noah-isme/gema-grader/internal/models"
	"github.com/noah-isme/gema-grader/pkg/docker"
)

func TestExternalCommandRunsTemplatedCommandSilently(t *testing.T) {
	f := newFixture(t)
	f.unarchiver.dirs["Alice"] = "/x/y"

	act := f.bind(t, "external:command", map[string]string{"command": "run ^group_name^ in ^unarchive_dir^"})
	require.NoError(t, act.Perform(context.Background(), testPart(), testGroup("Alice", "alice")))

	require.Len(t, f.runner.launched, 1)
	require.Equal(t, `run "Alice" in "/x/y"`, f.runner.launched[0].line)
	require.Equal(t, "/x/y", f.runner.launched[0].dir)
	require.False(t, f.runner.launched[0].terminal)
}

func TestExternalCommandRunsInWorkspaceWithoutDirToken(t *testing.T) {
	f := newFixture(t)
	f.unarchiver.dirs["alice"] = "/w/P1/alice"

	act := f.bind(t, "external:command", map[string]string{"command": "make test"})
	require.NoError(t, act.Perform(context.Background(), testPart(), testGroup("alice", "alice")))

	require.Equal(t, []string{"alice"}, f.unarchiver.calls)
	require.Len(t, f.runner.launched, 1)
	require.Equal(t, "make test", f.runner.launched[0].line)
	require.Equal(t, "/w/P1/alice", f.runner.launched[0].dir)
}

func TestExternalCommandSubstitutesLogins(t *testing.T) {
	f := newFixture(t)

	act := f.bind(t, "external:command", map[string]string{"command": "echo ^student_logins^"})
	require.NoError(t, act.Perform(context.Background(), testPart(), testGroup("g", "bob", "alice")))

	require.Equal(t, []string{"g"}, f.unarchiver.calls)
	require.Equal(t, `echo ["alice","bob"]`, f.runner.launched[0].line)
}

func TestExternalCommandUsesTerminalWithDefaultTitle(t *testing.T) {
	f := newFixture(t)

	act := f.bind(t, "external:command", map[string]string{"command": "make", PropertyShowTerminal: "true"})
	require.NoError(t, act.Perform(context.Background(), testPart(), testGroup("g")))

	require.True(t, f.runner.launched[0].terminal)
	require.Equal(t, "A1 - P1", f.runner.launched[0].title)
}

func TestExternalCommandHonoursTerminalName(t *testing.T) {
	f := newFixture(t)

	act := f.bind(t, "external:command", map[string]string{
		"command":            "make",
		PropertyShowTerminal: "TRUE",
		PropertyTerminalName: "Grading",
	})
	require.NoError(t, act.Perform(context.Background(), testPart(), testGroup("g")))
	require.Equal(t, "Grading", f.runner.launched[0].title)
}

func TestExternalCommandReportsUnarchiveFailureWithContext(t *testing.T) {
	f := newFixture(t)
	f.unarchiver.err = handin.ErrHandinNotFound

	act := f.bind(t, "external:command", map[string]string{"command": "ls ^unarchive_dir^"})
	err := act.Perform(context.Background(), testPart(), testGroup("carol"))

	require.ErrorIs(t, err, handin.ErrHandinNotFound)
	require.NotErrorIs(t, err, ErrExecutionFailed)
	require.Contains(t, err.Error(), "carol")
	require.Contains(t, err.Error(), "P1")
}

func TestExternalCommandWrapsSpawnFailure(t *testing.T) {
	f := newFixture(t)
	f.runner.err = errBoom

	act := f.bind(t, "external:command", map[string]string{"command": "true"})
	err := act.Perform(context.Background(), testPart(), testGroup("g"))

	require.ErrorIs(t, err, ErrExecutionFailed)
	require.ErrorIs(t, err, errBoom)
}

func TestExternalDemoNeverUnarchives(t *testing.T) {
	f := newFixture(t)

	act := f.bind(t, "external:demo", map[string]string{"command": "demo ^part_number^ ^unarchive_dir^"})
	require.NoError(t, act.Perform(context.Background(), testPart(), testGroup("g")))

	require.Empty(t, f.unarchiver.calls)
	require.Equal(t, `demo 2 "/planned/P1/g"`, f.runner.launched[0].line)
	require.Equal(t, "", f.runner.launched[0].dir)
}

func TestExternalGroupsCommandUnarchivesInOrderThenRunsOnce(t *testing.T) {
	f := newFixture(t)
	f.unarchiver.dirs["g1"] = "/w/g1"
	f.unarchiver.dirs["g2"] = "/w/g2"

	act := f.bind(t, "external:groups-command", map[string]string{"command": "grade ^groups_info^"})
	batch, ok := act.(BatchAction)
	require.True(t, ok)

	err := batch.PerformBatch(context.Background(), testPart(), []models.Group{testGroup("g1", "a"), testGroup("g2", "b")})
	require.NoError(t, err)

	require.Equal(t, []string{"g1", "g2"}, f.unarchiver.calls)
	require.Len(t, f.runner.launched, 1)
	require.Equal(t, `grade [{"name":"g1","members":["a"],"unarchive_dir":"/w/g1"},{"name":"g2","members":["b"],"unarchive_dir":"/w/g2"}]`, f.runner.launched[0].line)
}

func TestJavaCompileAndRunBuildsCommand(t *testing.T) {
	f := newFixture(t)
	dir := t.TempDir()
	writeFiles(t, dir, "src/Main.java", "src/util/Helper.java", "notes.txt")
	f.unarchiver.dirs["g"] = dir

	act := f.bind(t, "java:compile-and-run", map[string]string{"main-class": "Main", "run-args": "--fast"})
	require.NoError(t, act.Perform(context.Background(), testPart(), testGroup("g")))

	line := f.runner.launched[0].line
	require.Contains(t, line, "javac -d '"+filepath.Join(dir, classesDir)+"'")
	require.Contains(t, line, "'"+filepath.Join(dir, "src", "Main.java")+"'")
	require.Contains(t, line, "'"+filepath.Join(dir, "src", "util", "Helper.java")+"'")
	require.NotContains(t, line, "notes.txt")
	require.True(t, strings.HasSuffix(line, "'Main' --fast"))
}

func TestJavaCompileAndRunFailsWithoutSources(t *testing.T) {
	f := newFixture(t)
	f.unarchiver.dirs["g"] = t.TempDir()

	act := f.bind(t, "java:compile-and-run", map[string]string{"main-class": "Main"})
	err := act.Perform(context.Background(), testPart(), testGroup("g"))
	require.ErrorIs(t, err, ErrExecutionFailed)
	require.Empty(t, f.runner.launched)
}

func TestJavaDemoJar(t *testing.T) {
	f := newFixture(t)

	act := f.bind(t, "java:demo-jar", map[string]string{"jar": "/demos/a1.jar", "args": "-v"})
	require.NoError(t, act.Perform(context.Background(), testPart(), testGroup("g")))
	require.Equal(t, "java -jar '/demos/a1.jar' -v", f.runner.launched[0].line)
	require.Empty(t, f.unarchiver.calls)
}

func TestDockerRunMountsWorkspaceAndWritesLog(t *testing.T) {
	f := newFixture(t)
	dir := t.TempDir()
	f.unarchiver.dirs["g"] = dir
	f.executor.result = docker.ExecutionResult{Stdout: "tests passed", ExitCode: 0}

	act := f.bind(t, "docker:run", map[string]string{
		"image":           "eclipse-temurin:21",
		"command":         "cd ^unarchive_dir^ && ./test.sh",
		"timeout-seconds": "30",
		"memory-mb":       "256",
	})
	require.NoError(t, act.Perform(context.Background(), testPart(), testGroup("g")))

	require.Len(t, f.executor.requests, 1)
	req := f.executor.requests[0]
	require.Equal(t, dir, req.Workspace)
	require.Equal(t, []string{"sh", "-c", `cd "/workspace" && ./test.sh`}, req.Cmd)
	require.EqualValues(t, 256, req.MemoryLimitMB)
	require.True(t, req.NetworkDisabled)

	log, err := os.ReadFile(filepath.Join(dir, DockerLogFile))
	require.NoError(t, err)
	require.Contains(t, string(log), "tests passed")
}

func TestDockerRunRejectsInvalidLimits(t *testing.T) {
	f := newFixture(t)
	desc, err := f.registry.Lookup("docker:run")
	require.NoError(t, err)

	_, err = f.registry.Bind(desc, map[string]string{"image": "x", "command": "y", "timeout-seconds": "soon"})
	require.ErrorIs(t, err, ErrBindingInvalid)
}

func TestDockerRunWrapsExecutorFailure(t *testing.T) {
	f := newFixture(t)
	f.unarchiver.dirs["g"] = t.TempDir()
	f.executor.err = errBoom

	act := f.bind(t, "docker:run", map[string]string{"image": "x", "command": "y"})
	err := act.Perform(context.Background(), testPart(), testGroup("g"))
	require.ErrorIs(t, err, ErrExecutionFailed)
}

func TestReplEvaluateSendsTemplatedCommand(t *testing.T) {
	f := newFixture(t)
	f.unarchiver.dirs["g"] = "/w/g"

	act := f.bind(t, "repl:evaluate", map[string]string{"command": "(grade ^unarchive_dir^ ^assignment_number^)"})
	require.NoError(t, act.Perform(context.Background(), testPart(), testGroup("g")))
	require.Equal(t, []string{`(grade "/w/g" 3)`}, f.evaluator.commands)
}

func TestReplEvaluateWrapsSessionFailure(t *testing.T) {
	f := newFixture(t)
	f.evaluator.err = errBoom

	act := f.bind(t, "repl:evaluate", map[string]string{"command": "ping"})
	err := act.Perform(context.Background(), testPart(), testGroup("g"))
	require.ErrorIs(t, err, ErrExecutionFailed)
}

func TestFilesOpenSelectsExtensions(t *testing.T) {
	f := newFixture(t)
	dir := t.TempDir()
	writeFiles(t, dir, "Main.java", "Makefile", "notes.txt", ".git/config")
	f.unarchiver.dirs["g"] = dir

	act := f.bind(t, "files:open", map[string]string{"extensions": "java, _"})
	require.NoError(t, act.Perform(context.Background(), testPart(), testGroup("g")))

	line := f.runner.launched[0].line
	require.True(t, strings.HasPrefix(line, "vim "))
	require.Contains(t, line, "Main.java")
	require.Contains(t, line, "Makefile")
	require.NotContains(t, line, "notes.txt")
	require.NotContains(t, line, "config")
}

func TestPrintSourceUnarchivesAllGroupsThenPrintsOnce(t *testing.T) {
	f := newFixture(t)
	dirA, dirB := t.TempDir(), t.TempDir()
	writeFiles(t, dirA, "A.java", "readme.txt")
	writeFiles(t, dirB, "B.java")
	f.unarchiver.dirs["a"] = dirA
	f.unarchiver.dirs["b"] = dirB

	act := f.bind(t, "print:source", map[string]string{"extensions": "java"})
	batch := act.(BatchAction)
	require.NoError(t, batch.PerformBatch(context.Background(), testPart(), []models.Group{testGroup("a"), testGroup("b")}))

	require.Equal(t, []string{"a", "b"}, f.unarchiver.calls)
	require.Len(t, f.printer.jobs, 1)
	job := f.printer.jobs[0]
	require.Equal(t, "lab-1", job.Printer)
	require.Equal(t, "A1 - P1", job.Title)
	require.Equal(t, []string{filepath.Join(dirA, "A.java"), filepath.Join(dirB, "B.java")}, job.Files)
}

func TestLPRPrinterBuildsCommand(t *testing.T) {
	runner := &stubRunner{}
	printer := NewLPRPrinter(runner, newFixture(t).env.Logger)

	require.NoError(t, printer.Print(context.Background(), PrintJob{Printer: "lab-1", Title: "A1 - P1", Files: []string{"/w/A.java"}}))
	require.Equal(t, []string{"lpr -P 'lab-1' -T 'A1 - P1' '/w/A.java'"}, runner.runs)
}
