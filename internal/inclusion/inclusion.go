// Package inclusion resolves a part's inclusion rules into archive predicates and
// reports which declared files or directories are missing from a handin.
package inclusion

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/noah-isme/gema-grader/internal/archive"
)

// NoExtensionMarker stands for "files without an extension" inside an extension list.
const NoExtensionMarker = "_"

// ErrInvalidSpec indicates an inclusion rule set failed validation.
var ErrInvalidSpec = errors.New("invalid inclusion filter")

// RuleKind enumerates the supported inclusion rules.
type RuleKind string

const (
	RuleFile       RuleKind = "file"
	RuleDirectory  RuleKind = "directory"
	RuleExtensions RuleKind = "extensions"
)

// Rule is one inclusion rule. File and directory rules use Path; extension rules
// use Extensions and IncludeNoExtension.
type Rule struct {
	Kind               RuleKind `json:"kind" validate:"required,oneof=file directory extensions"`
	Path               string   `json:"path,omitempty" validate:"required_unless=Kind extensions"`
	Extensions         []string `json:"extensions,omitempty"`
	IncludeNoExtension bool     `json:"include_no_extension,omitempty"`
}

// Spec is the full rule set of a distributable part.
type Spec struct {
	Rules []Rule `json:"rules" validate:"dive"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Parse decodes a JSON encoded spec and validates it. An empty payload yields an empty spec.
func Parse(raw []byte) (Spec, error) {
	var spec Spec
	if len(strings.TrimSpace(string(raw))) == 0 || string(raw) == "null" {
		return spec, nil
	}
	if err := json.Unmarshal(raw, &spec); err != nil {
		return Spec{}, fmt.Errorf("%w: %v", ErrInvalidSpec, err)
	}
	if err := spec.Validate(); err != nil {
		return Spec{}, err
	}
	return spec, nil
}

// Validate checks the structural rules of every entry.
func (s Spec) Validate() error {
	if err := validate.Struct(s); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSpec, err)
	}
	for i, rule := range s.Rules {
		if rule.Kind == RuleExtensions {
			exts, noExt := rule.normalizedExtensions()
			if len(exts) == 0 && !noExt {
				return fmt.Errorf("%w: rule %d declares no extensions", ErrInvalidSpec, i)
			}
		}
	}
	return nil
}

// normalizedExtensions strips leading dots, drops blanks and separates the
// no-extension marker from literal extensions.
func (r Rule) normalizedExtensions() (map[string]struct{}, bool) {
	exts := make(map[string]struct{}, len(r.Extensions))
	noExt := r.IncludeNoExtension
	for _, ext := range r.Extensions {
		ext = strings.TrimPrefix(strings.TrimSpace(ext), ".")
		switch ext {
		case "":
		case NoExtensionMarker:
			noExt = true
		default:
			exts[ext] = struct{}{}
		}
	}
	return exts, noExt
}

func (r Rule) cleanPath() string {
	return archive.NormalizePath(r.Path)
}

// Describe renders the rule for diagnostics.
func (r Rule) Describe() string {
	switch r.Kind {
	case RuleFile:
		return "file: " + r.cleanPath()
	case RuleDirectory:
		return "directory: " + r.cleanPath()
	default:
		return "file with extension: " + strings.Join(r.extensionLabels(), ", ")
	}
}

func (r Rule) extensionLabels() []string {
	exts, noExt := r.normalizedExtensions()
	labels := make([]string, 0, len(exts)+1)
	for ext := range exts {
		labels = append(labels, ext)
	}
	sort.Strings(labels)
	if noExt {
		labels = append(labels, "(none)")
	}
	return labels
}

// extensionOf returns the extension of the final path element and whether it has one.
// A leading dot (hidden file) does not start an extension.
func extensionOf(name string) (string, bool) {
	idx := strings.LastIndex(name, ".")
	if idx <= 0 || idx == len(name)-1 {
		return "", false
	}
	return name[idx+1:], true
}
