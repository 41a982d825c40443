package models

import "time"

// Assignment groups the gradable events students hand in work for.
type Assignment struct {
	ID        uint            `gorm:"primaryKey" json:"id"`
	Name      string          `gorm:"size:255;not null" json:"name"`
	Number    int             `gorm:"not null" json:"number"`
	Events    []GradableEvent `json:"events,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}
