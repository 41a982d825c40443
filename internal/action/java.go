package action

import (
	"context"
	"errors"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"

	"github.com/noah-isme/gema-grader/internal/models"
)

const (
	javaCompileName = "java:compile-and-run"
	javaDemoName    = "java:demo-jar"

	// classesDir receives compiled classes inside the workspace.
	classesDir = ".grader-classes"
)

var errNoJavaSources = errors.New("no .java sources in workspace")

// JavaProvider compiles and runs Java handins and launches demo jars.
type JavaProvider struct{}

func (JavaProvider) Namespace() string { return "java" }

func (JavaProvider) Descriptions() []Description {
	return []Description{
		NewDescription("java", "compile-and-run", "Compile every .java file in the workspace and run the main class", newJavaCompileAndRun).
			WithProperties(
				Property{Key: "main-class", Description: "Fully qualified class with main", Required: true},
				Property{Key: "classpath", Description: "Extra classpath entries separated by ':'"},
				Property{Key: "javac-options", Description: "Additional javac arguments"},
				Property{Key: "java-options", Description: "Additional java arguments"},
				Property{Key: "run-args", Description: "Arguments passed to main"},
				showTerminalProperty,
				terminalNameProperty,
			).
			WithModes([]Mode{ModeRun}, ModeRun, ModeTest),
		NewDescription("java", "demo-jar", "Run the reference solution jar", newJavaDemoJar).
			WithProperties(
				Property{Key: "jar", Description: "Path to the demo jar", Required: true},
				Property{Key: "args", Description: "Arguments passed to the jar"},
				showTerminalProperty,
				terminalNameProperty,
			).
			WithModes([]Mode{ModeDemo}, ModeDemo),
	}
}

type javaCompileAndRun struct {
	env    Environment
	values Values
}

func newJavaCompileAndRun(env Environment, values Values) (Action, error) {
	return &javaCompileAndRun{env: env, values: values}, nil
}

func (a *javaCompileAndRun) Perform(ctx context.Context, part models.DistributablePart, group models.Group) error {
	record, err := a.env.Unarchiver.Unarchive(ctx, part, group)
	if err != nil {
		return fail(javaCompileName, part, group, err)
	}

	sources, err := javaSources(record.Dir)
	if err != nil {
		return fail(javaCompileName, part, group, executionFailure(err))
	}
	if len(sources) == 0 {
		return fail(javaCompileName, part, group, executionFailure(errNoJavaSources))
	}

	line := a.commandLine(record.Dir, sources)
	if err := newLauncher(a.env, a.values, part).launch(ctx, line, record.Dir); err != nil {
		return fail(javaCompileName, part, group, err)
	}
	return nil
}

func (a *javaCompileAndRun) commandLine(dir string, sources []string) string {
	out := filepath.Join(dir, classesDir)
	extra := a.values.GetOr("classpath", "")

	compileCP := out
	if extra != "" {
		compileCP = out + ":" + extra
	}

	compile := []string{"mkdir -p " + shellQuote(out), "&&", "javac", "-d", shellQuote(out), "-cp", shellQuote(compileCP)}
	if opts := a.values.GetOr("javac-options", ""); opts != "" {
		compile = append(compile, opts)
	}
	compile = append(compile, shellJoin(sources))

	mainClass, _ := a.values.Get("main-class")
	run := []string{"java"}
	if opts := a.values.GetOr("java-options", ""); opts != "" {
		run = append(run, opts)
	}
	run = append(run, "-cp", shellQuote(compileCP), shellQuote(mainClass))
	if args := a.values.GetOr("run-args", ""); args != "" {
		run = append(run, args)
	}

	return strings.Join(compile, " ") + " && " + strings.Join(run, " ")
}

func javaSources(root string) ([]string, error) {
	var sources []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if d.Name() == classesDir {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasSuffix(d.Name(), ".java") {
			sources = append(sources, path)
		}
		return nil
	})
	sort.Strings(sources)
	return sources, err
}

type javaDemoJar struct {
	env    Environment
	values Values
}

func newJavaDemoJar(env Environment, values Values) (Action, error) {
	return &javaDemoJar{env: env, values: values}, nil
}

func (a *javaDemoJar) Perform(ctx context.Context, part models.DistributablePart, group models.Group) error {
	jar, _ := a.values.Get("jar")
	line := "java -jar " + shellQuote(jar)
	if args := a.values.GetOr("args", ""); args != "" {
		line += " " + args
	}
	if err := newLauncher(a.env, a.values, part).launch(ctx, line, filepath.Dir(jar)); err != nil {
		return fail(javaDemoName, part, group, err)
	}
	return nil
}
