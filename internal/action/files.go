package action

import (
	"context"
	"io/fs"
	"path/filepath"
	"sort"

	"github.com/noah-isme/gema-grader/internal/archive"
	"github.com/noah-isme/gema-grader/internal/inclusion"
	"github.com/noah-isme/gema-grader/internal/models"
)

const filesOpenName = "files:open"

// FilesProvider opens workspace files for review.
type FilesProvider struct{}

func (FilesProvider) Namespace() string { return "files" }

func (FilesProvider) Descriptions() []Description {
	return []Description{
		NewDescription("files", "open", "Open the workspace files with the given extensions in an editor", newFilesOpen).
			WithProperties(
				Property{Key: "extensions", Description: "Comma separated extensions; _ selects files without one", Required: true},
				Property{Key: "editor", Description: "Editor command, defaults to the configured editor"},
			).
			WithModes([]Mode{ModeOpen}, ModeOpen),
	}
}

type filesOpen struct {
	env        Environment
	values     Values
	extensions []string
}

func newFilesOpen(env Environment, values Values) (Action, error) {
	return &filesOpen{env: env, values: values, extensions: values.List("extensions")}, nil
}

func (a *filesOpen) Perform(ctx context.Context, part models.DistributablePart, group models.Group) error {
	record, err := a.env.Unarchiver.Unarchive(ctx, part, group)
	if err != nil {
		return fail(filesOpenName, part, group, err)
	}

	files, err := filesWithExtensions(record.Dir, a.extensions)
	if err != nil {
		return fail(filesOpenName, part, group, executionFailure(err))
	}
	if len(files) == 0 {
		a.env.Logger.Warn().Str("group", group.Name).Strs("extensions", a.extensions).Msg("no files to open")
		return nil
	}

	editor := a.values.GetOr("editor", a.env.Editor)
	if editor == "" {
		return fail(filesOpenName, part, group, executionFailure(errNotConfigured("editor")))
	}

	l := launcher{runner: a.env.Runner, logger: a.env.Logger}
	if err := l.launch(ctx, editor+" "+shellJoin(files), record.Dir); err != nil {
		return fail(filesOpenName, part, group, err)
	}
	return nil
}

// filesWithExtensions lists regular files under root whose extension is selected,
// using the same extension semantics as inclusion rules.
func filesWithExtensions(root string, extensions []string) ([]string, error) {
	accept := inclusion.BuildFilter(inclusion.Spec{Rules: []inclusion.Rule{{
		Kind:       inclusion.RuleExtensions,
		Extensions: extensions,
	}}})

	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != root && d.Name()[0] == '.' {
				return filepath.SkipDir
			}
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		if accept(archive.Entry{Path: filepath.ToSlash(rel)}) {
			files = append(files, path)
		}
		return nil
	})
	sort.Strings(files)
	return files, err
}
