package models

import (
	"time"

	"github.com/noah-isme/gema-grader/internal/deadline"
)

// GradableEvent is the handin of an assignment: its archives live in HandinDirectory
// and its deadline policy is stored column by column.
type GradableEvent struct {
	ID              uint                `gorm:"primaryKey" json:"id"`
	AssignmentID    uint                `gorm:"not null;index" json:"assignment_id"`
	Assignment      Assignment          `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"assignment"`
	Name            string              `gorm:"size:255;not null" json:"name"`
	Ordinal         int                 `gorm:"not null" json:"ordinal"`
	HandinDirectory string              `gorm:"size:1024" json:"handin_directory"`
	DeadlineType    string              `gorm:"size:16;not null;default:none" json:"deadline_type"`
	EarlyDate       *time.Time          `json:"early_date"`
	EarlyPoints     *float64            `json:"early_points"`
	OnTimeDate      *time.Time          `json:"on_time_date"`
	LateDate        *time.Time          `json:"late_date"`
	LatePoints      *float64            `json:"late_points"`
	LatePeriodSecs  *int64              `json:"late_period_seconds"`
	Parts           []DistributablePart `json:"parts,omitempty"`
	CreatedAt       time.Time           `json:"created_at"`
	UpdatedAt       time.Time           `json:"updated_at"`
}

// DeadlineInfo converts the stored columns into a validated deadline policy.
func (e GradableEvent) DeadlineInfo() (deadline.Info, error) {
	kind, err := deadline.ParseKind(e.DeadlineType)
	if err != nil {
		return deadline.Info{}, err
	}

	var onTime time.Time
	if e.OnTimeDate != nil {
		onTime = *e.OnTimeDate
	}

	switch kind {
	case deadline.KindFixed:
		return deadline.NewFixed(deadline.FixedConfig{
			Early:       e.EarlyDate,
			EarlyPoints: e.EarlyPoints,
			OnTime:      onTime,
			Late:        e.LateDate,
			LatePoints:  e.LatePoints,
		})
	case deadline.KindVariable:
		var period *time.Duration
		if e.LatePeriodSecs != nil {
			d := time.Duration(*e.LatePeriodSecs) * time.Second
			period = &d
		}
		return deadline.NewVariable(deadline.VariableConfig{
			OnTime:     onTime,
			Late:       e.LateDate,
			LatePoints: e.LatePoints,
			LatePeriod: period,
		})
	default:
		return deadline.None(), nil
	}
}
