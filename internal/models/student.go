package models

import "time"

// Student represents a learner identified by a login that handin files are named after.
type Student struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Login     string    `gorm:"size:64;uniqueIndex;not null" json:"login"`
	Name      string    `gorm:"size:255;not null" json:"name"`
	Email     string    `gorm:"size:255" json:"email"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
