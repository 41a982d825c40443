package main

import (
	"fmt"
	"os"
	"sort"

	toml "github.com/pelletier/go-toml/v2"

	"github.com/noah-isme/gema-grader/internal/action"
)

// bindingFile is the TOML layout of a part's action bindings:
//
//	[[binding]]
//	mode = "RUN"
//	action = "java:compile-and-run"
//	[binding.properties]
//	main-class = "Main"
type bindingFile struct {
	Bindings []bindingEntry `toml:"binding"`
}

type bindingEntry struct {
	Mode       string            `toml:"mode"`
	Action     string            `toml:"action"`
	Properties map[string]string `toml:"properties"`
}

// bindingReport is the outcome of checking one entry.
type bindingReport struct {
	Mode    string
	Action  string
	Err     error
	Warning string
}

func loadBindings(path string) (bindingFile, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return bindingFile{}, fmt.Errorf("read bindings: %w", err)
	}

	var file bindingFile
	if err := toml.Unmarshal(raw, &file); err != nil {
		return bindingFile{}, fmt.Errorf("parse bindings %s: %w", path, err)
	}
	return file, nil
}

// checkBindings resolves every entry against the registry without performing anything.
func checkBindings(registry *action.Registry, file bindingFile) []bindingReport {
	seen := make(map[action.Mode]struct{}, len(file.Bindings))
	reports := make([]bindingReport, 0, len(file.Bindings))

	for _, entry := range file.Bindings {
		report := bindingReport{Mode: entry.Mode, Action: entry.Action}

		mode, err := action.ParseMode(entry.Mode)
		if err != nil {
			report.Err = err
			reports = append(reports, report)
			continue
		}
		report.Mode = string(mode)

		if _, dup := seen[mode]; dup {
			report.Err = fmt.Errorf("mode %s bound more than once", mode)
			reports = append(reports, report)
			continue
		}
		seen[mode] = struct{}{}

		desc, err := registry.Lookup(entry.Action)
		if err != nil {
			report.Err = err
			reports = append(reports, report)
			continue
		}
		if !desc.IsCompatible(mode) {
			report.Warning = fmt.Sprintf("%s is not listed as compatible with %s", desc.FullName(), mode)
		}

		if _, err := registry.Bind(desc, entry.Properties); err != nil {
			report.Err = err
		}
		reports = append(reports, report)
	}

	sort.SliceStable(reports, func(i, j int) bool { return reports[i].Mode < reports[j].Mode })
	return reports
}
