package dto

import (
	"math"
	"time"

	"github.com/noah-isme/gema-grader/internal/action"
	"github.com/noah-isme/gema-grader/internal/handin"
	"github.com/noah-isme/gema-grader/internal/service"
)

// PropertyResponse describes one configurable key of an action.
type PropertyResponse struct {
	Key         string `json:"key"`
	Description string `json:"description"`
	Required    bool   `json:"required"`
}

// ActionDescriptionResponse is the catalog entry for a registered action.
type ActionDescriptionResponse struct {
	FullName        string             `json:"full_name"`
	Namespace       string             `json:"namespace"`
	Name            string             `json:"name"`
	Summary         string             `json:"summary"`
	Properties      []PropertyResponse `json:"properties"`
	SuggestedModes  []string           `json:"suggested_modes"`
	CompatibleModes []string           `json:"compatible_modes"`
}

// UnarchiveResponse reports the workspace prepared for one group.
type UnarchiveResponse struct {
	PartID      uint      `json:"part_id"`
	GroupID     uint      `json:"group_id"`
	Directory   string    `json:"directory"`
	HandinPath  string    `json:"handin_path"`
	SubmittedAt time.Time `json:"submitted_at"`
	Clean       bool      `json:"clean"`
	Missing     []string  `json:"missing"`
}

// ReadmesResponse lists readme files found in a group's workspace.
type ReadmesResponse struct {
	PartID  uint     `json:"part_id"`
	GroupID uint     `json:"group_id"`
	Files   []string `json:"files"`
}

// PerformResponse acknowledges a single action invocation.
type PerformResponse struct {
	PartID  uint   `json:"part_id"`
	GroupID uint   `json:"group_id"`
	Mode    string `json:"mode"`
}

// BatchRequest selects the groups a mode is performed for.
type BatchRequest struct {
	GroupIDs    []uint `json:"group_ids" validate:"required,min=1,dive,gt=0"`
	StopOnError bool   `json:"stop_on_error"`
}

// BatchFailureResponse is a single group's failure inside a batch.
type BatchFailureResponse struct {
	GroupID   uint   `json:"group_id"`
	GroupName string `json:"group_name,omitempty"`
	Error     string `json:"error"`
}

// BatchResponse summarises a batch invocation.
type BatchResponse struct {
	PartID    uint                   `json:"part_id"`
	Mode      string                 `json:"mode"`
	Performed []uint                 `json:"performed"`
	Failures  []BatchFailureResponse `json:"failures"`
	Stopped   bool                   `json:"stopped"`
}

// ExtensionResponse mirrors a granted extension.
type ExtensionResponse struct {
	OnTime     time.Time `json:"on_time"`
	ShiftDates bool      `json:"shift_dates"`
	Note       string    `json:"note,omitempty"`
}

// DeadlineResponse is a group's timeliness for a gradable event. Points is
// null when the handin earns no credit; the adjustment then depends on the
// event total.
type DeadlineResponse struct {
	EventID   uint               `json:"event_id"`
	GroupID   uint               `json:"group_id"`
	Kind      string             `json:"kind"`
	Status    string             `json:"status"`
	Points    *float64           `json:"points"`
	NoCredit  bool               `json:"no_credit"`
	HandinAt  *time.Time         `json:"handin_at"`
	Extension *ExtensionResponse `json:"extension"`
}

// ScoreResponse adds the recorded points and the applied adjustment.
type ScoreResponse struct {
	DeadlineResponse
	Earned      float64 `json:"earned"`
	GradedParts int64   `json:"graded_parts"`
	Adjustment  float64 `json:"adjustment"`
	Total       float64 `json:"total"`
}

// NewActionDescriptionResponses maps registry descriptions to API payloads.
func NewActionDescriptionResponses(descs []action.Description) []ActionDescriptionResponse {
	out := make([]ActionDescriptionResponse, 0, len(descs))
	for _, desc := range descs {
		props := make([]PropertyResponse, 0, len(desc.Properties))
		for _, p := range desc.Properties {
			props = append(props, PropertyResponse{Key: p.Key, Description: p.Description, Required: p.Required})
		}
		out = append(out, ActionDescriptionResponse{
			FullName:        desc.FullName(),
			Namespace:       desc.Namespace,
			Name:            desc.Name,
			Summary:         desc.Summary,
			Properties:      props,
			SuggestedModes:  modeStrings(desc.SuggestedModes),
			CompatibleModes: modeStrings(desc.CompatibleModes),
		})
	}
	return out
}

// NewUnarchiveResponse maps an unarchive record.
func NewUnarchiveResponse(record handin.Record) UnarchiveResponse {
	missing := record.Missing
	if missing == nil {
		missing = []string{}
	}
	return UnarchiveResponse{
		PartID:      record.PartID,
		GroupID:     record.GroupID,
		Directory:   record.Dir,
		HandinPath:  record.Handin.Path,
		SubmittedAt: record.Handin.SubmittedAt,
		Clean:       record.Clean(),
		Missing:     missing,
	}
}

// NewBatchResponse maps a batch result.
func NewBatchResponse(partID uint, mode action.Mode, result service.BatchResult) BatchResponse {
	performed := result.Performed
	if performed == nil {
		performed = []uint{}
	}
	failures := make([]BatchFailureResponse, 0, len(result.Failures))
	for _, f := range result.Failures {
		failures = append(failures, BatchFailureResponse{GroupID: f.GroupID, GroupName: f.GroupName, Error: f.Err.Error()})
	}
	return BatchResponse{
		PartID:    partID,
		Mode:      string(mode),
		Performed: performed,
		Failures:  failures,
		Stopped:   result.Stopped,
	}
}

// NewDeadlineResponse maps a deadline resolution.
func NewDeadlineResponse(result service.DeadlineResult) DeadlineResponse {
	resp := DeadlineResponse{
		EventID:  result.EventID,
		GroupID:  result.GroupID,
		Kind:     string(result.Kind),
		Status:   string(result.Resolution.Status),
		NoCredit: result.Resolution.IsNoCredit(),
		HandinAt: result.HandinAt,
	}
	if !math.IsNaN(result.Resolution.Points) {
		points := result.Resolution.Points
		resp.Points = &points
	}
	if ext := result.Extension; ext != nil {
		resp.Extension = &ExtensionResponse{OnTime: ext.OnTime, ShiftDates: ext.ShiftDates, Note: ext.Note}
	}
	return resp
}

// NewScoreResponse maps a score result.
func NewScoreResponse(result service.ScoreResult) ScoreResponse {
	return ScoreResponse{
		DeadlineResponse: NewDeadlineResponse(result.DeadlineResult),
		Earned:           result.Earned,
		GradedParts:      result.GradedParts,
		Adjustment:       result.Adjustment,
		Total:            result.Total,
	}
}

func modeStrings(modes []action.Mode) []string {
	out := make([]string, 0, len(modes))
	for _, m := range modes {
		out = append(out, string(m))
	}
	return out
}
