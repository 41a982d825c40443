package action

import (
	"sort"
	"strings"
)

// Properties understood by every command-executing action.
const (
	PropertyShowTerminal = "show-terminal"
	PropertyTerminalName = "terminal-name"
)

// Property declares one configurable value of an action description.
type Property struct {
	Key         string `json:"key"`
	Description string `json:"description"`
	Required    bool   `json:"required"`
}

// Values holds the property values bound to an action. A key that was never
// supplied is absent, which is distinct from a key supplied as an empty string.
type Values struct {
	m map[string]string
}

// NewValues copies the supplied bindings.
func NewValues(bindings map[string]string) Values {
	m := make(map[string]string, len(bindings))
	for k, v := range bindings {
		m[k] = v
	}
	return Values{m: m}
}

// Get returns the value and whether it was supplied.
func (v Values) Get(key string) (string, bool) {
	value, ok := v.m[key]
	return value, ok
}

// GetOr returns the value, or fallback when the key is absent or blank.
func (v Values) GetOr(key, fallback string) string {
	if value, ok := v.m[key]; ok && strings.TrimSpace(value) != "" {
		return value
	}
	return fallback
}

// Flag reports whether the value equals TRUE, ignoring case.
func (v Values) Flag(key string) bool {
	value, ok := v.m[key]
	return ok && strings.EqualFold(strings.TrimSpace(value), "TRUE")
}

// List splits a comma separated value, dropping blanks.
func (v Values) List(key string) []string {
	value, ok := v.m[key]
	if !ok {
		return nil
	}
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// Keys returns the supplied keys in sorted order.
func (v Values) Keys() []string {
	keys := make([]string, 0, len(v.m))
	for k := range v.m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
