package models

import "time"

// PartGrade stores the points a group earned on a part before deadline adjustment.
type PartGrade struct {
	ID                  uint      `gorm:"primaryKey" json:"id"`
	DistributablePartID uint      `gorm:"not null;uniqueIndex:idx_part_grade_group" json:"distributable_part_id"`
	GroupID             uint      `gorm:"not null;uniqueIndex:idx_part_grade_group" json:"group_id"`
	Earned              *float64  `json:"earned"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
}
