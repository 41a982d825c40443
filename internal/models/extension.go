package models

import (
	"time"

	"github.com/noah-isme/gema-grader/internal/deadline"
)

// Extension is a grader-granted new on-time date for one group and gradable event.
type Extension struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	GradableEventID uint      `gorm:"not null;uniqueIndex:idx_extension_event_group" json:"gradable_event_id"`
	GroupID         uint      `gorm:"not null;uniqueIndex:idx_extension_event_group" json:"group_id"`
	OnTime          time.Time `gorm:"not null" json:"on_time"`
	ShiftDates      bool      `gorm:"not null;default:false" json:"shift_dates"`
	Note            string    `gorm:"type:text" json:"note"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Deadline converts the record into the deadline engine's extension value.
func (e Extension) Deadline() *deadline.Extension {
	return &deadline.Extension{OnTime: e.OnTime, ShiftDates: e.ShiftDates}
}
