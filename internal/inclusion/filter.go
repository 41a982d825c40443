package inclusion

import (
	"strings"

	"github.com/noah-isme/gema-grader/internal/archive"
)

// BuildFilter returns a predicate accepting every entry matched by any of the rules.
// An empty spec accepts nothing.
func BuildFilter(spec Spec) archive.Predicate {
	predicates := make([]archive.Predicate, 0, len(spec.Rules))
	for _, rule := range spec.Rules {
		predicates = append(predicates, ruleFilter(rule))
	}
	if len(predicates) == 0 {
		return archive.AcceptNone()
	}
	return archive.Or(predicates...)
}

func ruleFilter(rule Rule) archive.Predicate {
	switch rule.Kind {
	case RuleFile:
		return pathFilter(rule.cleanPath(), false)
	case RuleDirectory:
		return pathFilter(rule.cleanPath(), true)
	case RuleExtensions:
		return extensionFilter(rule)
	default:
		return archive.AcceptNone()
	}
}

// pathFilter accepts the declared path itself and, for directories, everything nested in it.
func pathFilter(declared string, nested bool) archive.Predicate {
	prefix := declared + "/"
	return func(e archive.Entry) bool {
		if e.Path == declared {
			return true
		}
		return nested && strings.HasPrefix(e.Path, prefix)
	}
}

func extensionFilter(rule Rule) archive.Predicate {
	exts, noExt := rule.normalizedExtensions()
	return func(e archive.Entry) bool {
		if e.IsDir {
			return false
		}
		ext, ok := extensionOf(e.Name())
		if !ok {
			return noExt
		}
		_, match := exts[ext]
		return match
	}
}

// ReadmeFilter accepts files whose name starts with "README" in any case and does not end in "~".
func ReadmeFilter() archive.Predicate {
	return func(e archive.Entry) bool {
		return !e.IsDir && IsReadme(e.Name())
	}
}

// IsReadme reports whether a file name denotes a readme.
func IsReadme(name string) bool {
	return strings.HasPrefix(strings.ToUpper(name), "README") && !strings.HasSuffix(name, "~")
}

// ArePresent walks every rule and reports a line for each rule that matches nothing
// in the archive contents. The boolean is true when no line was produced.
func ArePresent(spec Spec, entries []archive.Entry) (bool, []string) {
	var missing []string
	for _, rule := range spec.Rules {
		if !rulePresent(rule, entries) {
			missing = append(missing, "missing "+rule.Describe())
		}
	}
	return len(missing) == 0, missing
}

func rulePresent(rule Rule, entries []archive.Entry) bool {
	match := ruleFilter(rule)
	for _, entry := range entries {
		if !match(entry) {
			continue
		}
		switch rule.Kind {
		case RuleFile:
			if !entry.IsDir {
				return true
			}
		default:
			return true
		}
	}
	return false
}
