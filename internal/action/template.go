package action

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// Template tokens recognised in command properties.
const (
	TokenAssignmentName   = "^assignment_name^"
	TokenAssignmentNumber = "^assignment_number^"
	TokenPartName         = "^part_name^"
	TokenPartNumber       = "^part_number^"
	TokenGroupName        = "^group_name^"
	TokenStudentLogins    = "^student_logins^"
	TokenUnarchiveDir     = "^unarchive_dir^"
	TokenGroupsInfo       = "^groups_info^"
)

// GroupInfo describes one group for substitution.
type GroupInfo struct {
	Name         string   `json:"name"`
	Members      []string `json:"members"`
	UnarchiveDir string   `json:"unarchive_dir"`
}

// TemplateContext is the data substituted into a command template.
type TemplateContext struct {
	AssignmentName   string
	AssignmentNumber int
	PartName         string
	PartNumber       int
	Group            GroupInfo
	Groups           []GroupInfo
}

// NeedsWorkspace reports whether the template references a group workspace.
func NeedsWorkspace(template string) bool {
	return strings.Contains(template, TokenUnarchiveDir) || strings.Contains(template, TokenGroupsInfo)
}

// SubstituteGroup replaces the part and single-group tokens of template.
func SubstituteGroup(template string, tc TemplateContext) (string, error) {
	sub := substitution{template: template}
	if err := sub.part(tc); err != nil {
		return "", err
	}
	if err := sub.group(tc.Group); err != nil {
		return "", err
	}
	return sub.apply(), nil
}

// SubstituteGroups replaces the part tokens and ^groups_info^. Single-group tokens
// are taken from tc.Group when set.
func SubstituteGroups(template string, tc TemplateContext) (string, error) {
	sub := substitution{template: template}
	if err := sub.part(tc); err != nil {
		return "", err
	}
	if err := sub.group(tc.Group); err != nil {
		return "", err
	}
	err := sub.add(TokenGroupsInfo, func() (string, error) {
		groups := make([]GroupInfo, len(tc.Groups))
		copy(groups, tc.Groups)
		for i := range groups {
			if groups[i].Members == nil {
				groups[i].Members = []string{}
			}
		}
		return encode(groups)
	})
	if err != nil {
		return "", err
	}
	return sub.apply(), nil
}

// substitution collects the replacements of the tokens present in template
// and applies them in one pass, so substituted text is never rescanned.
type substitution struct {
	template string
	pairs    []string
}

func (s *substitution) part(tc TemplateContext) error {
	if err := s.add(TokenAssignmentName, func() (string, error) { return encode(tc.AssignmentName) }); err != nil {
		return err
	}
	if err := s.add(TokenAssignmentNumber, func() (string, error) { return strconv.Itoa(tc.AssignmentNumber), nil }); err != nil {
		return err
	}
	if err := s.add(TokenPartName, func() (string, error) { return encode(tc.PartName) }); err != nil {
		return err
	}
	return s.add(TokenPartNumber, func() (string, error) { return strconv.Itoa(tc.PartNumber), nil })
}

func (s *substitution) group(group GroupInfo) error {
	if err := s.add(TokenGroupName, func() (string, error) { return encode(group.Name) }); err != nil {
		return err
	}
	err := s.add(TokenStudentLogins, func() (string, error) {
		logins := group.Members
		if logins == nil {
			logins = []string{}
		}
		return encode(logins)
	})
	if err != nil {
		return err
	}
	return s.add(TokenUnarchiveDir, func() (string, error) { return encode(group.UnarchiveDir) })
}

// add computes the replacement only when token occurs in the template.
func (s *substitution) add(token string, value func() (string, error)) error {
	if !strings.Contains(s.template, token) {
		return nil
	}
	replacement, err := value()
	if err != nil {
		return err
	}
	s.pairs = append(s.pairs, token, replacement)
	return nil
}

func (s *substitution) apply() string {
	if len(s.pairs) == 0 {
		return s.template
	}
	return strings.NewReplacer(s.pairs...).Replace(s.template)
}

func encode(v any) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return "", err
	}
	return strings.TrimSuffix(buf.String(), "\n"), nil
}
