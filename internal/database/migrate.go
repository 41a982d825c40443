package database

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/noah-isme/gema-grader/internal/models"
)

// GradingModels lists every table the grader owns, in dependency order.
func GradingModels() []any {
	return []any{
		&models.Student{},
		&models.Assignment{},
		&models.Group{},
		&models.GradableEvent{},
		&models.DistributablePart{},
		&models.PartAction{},
		&models.Extension{},
		&models.PartGrade{},
	}
}

// Migrate creates or updates the grading tables.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(GradingModels()...); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}
