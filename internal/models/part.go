package models

import (
	"fmt"
	"strings"
	"time"

	"gorm.io/datatypes"

	"github.com/noah-isme/gema-grader/internal/inclusion"
)

// Action modes a part can bind an action to.
const (
	ModeRun   = "RUN"
	ModeDemo  = "DEMO"
	ModeTest  = "TEST"
	ModeOpen  = "OPEN"
	ModePrint = "PRINT"
)

// DistributablePart is a gradable subdivision of a gradable event.
type DistributablePart struct {
	ID                 uint           `gorm:"primaryKey" json:"id"`
	GradableEventID    uint           `gorm:"not null;index" json:"gradable_event_id"`
	GradableEvent      GradableEvent  `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"gradable_event"`
	Name               string         `gorm:"size:255;not null" json:"name"`
	Number             int            `gorm:"not null" json:"number"`
	PointValue         float64        `gorm:"not null;default:0" json:"point_value"`
	DeductionsPath     string         `gorm:"size:1024" json:"deductions_path,omitempty"`
	RubricTemplatePath string         `gorm:"size:1024" json:"rubric_template_path,omitempty"`
	InclusionFilter    datatypes.JSON `json:"inclusion_filter"`
	Actions            []PartAction   `json:"actions,omitempty"`
	CreatedAt          time.Time      `json:"created_at"`
	UpdatedAt          time.Time      `json:"updated_at"`
}

// Filter decodes the part's inclusion rules.
func (p DistributablePart) Filter() (inclusion.Spec, error) {
	spec, err := inclusion.Parse(p.InclusionFilter)
	if err != nil {
		return inclusion.Spec{}, fmt.Errorf("part %q: %w", p.Name, err)
	}
	return spec, nil
}

// AssignmentName returns the owning assignment's name when preloaded.
func (p DistributablePart) AssignmentName() string {
	return p.GradableEvent.Assignment.Name
}

// AssignmentNumber returns the owning assignment's number when preloaded.
func (p DistributablePart) AssignmentNumber() int {
	return p.GradableEvent.Assignment.Number
}

// ActionFor returns the action bound to a mode.
func (p DistributablePart) ActionFor(mode string) (PartAction, bool) {
	for _, binding := range p.Actions {
		if strings.EqualFold(binding.Mode, mode) {
			return binding, true
		}
	}
	return PartAction{}, false
}

// PartAction binds an action description to one mode of a part together with
// the configured property values.
type PartAction struct {
	ID                  uint              `gorm:"primaryKey" json:"id"`
	DistributablePartID uint              `gorm:"not null;uniqueIndex:idx_part_action_mode" json:"distributable_part_id"`
	Mode                string            `gorm:"size:16;not null;uniqueIndex:idx_part_action_mode" json:"mode"`
	ActionName          string            `gorm:"size:128;not null" json:"action_name"`
	Properties          datatypes.JSONMap `json:"properties"`
	CreatedAt           time.Time         `json:"created_at"`
	UpdatedAt           time.Time         `json:"updated_at"`
}

// PropertyValues flattens the stored properties into strings. Null values are
// treated as absent rather than empty.
func (a PartAction) PropertyValues() map[string]string {
	values := make(map[string]string, len(a.Properties))
	for key, raw := range a.Properties {
		switch v := raw.(type) {
		case nil:
		case string:
			values[key] = v
		default:
			values[key] = fmt.Sprint(v)
		}
	}
	return values
}
