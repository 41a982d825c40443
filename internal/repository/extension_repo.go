package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/noah-isme/gema-grader/internal/models"
)

// ExtensionRepository stores deadline extensions granted to groups.
type ExtensionRepository interface {
	Find(ctx context.Context, eventID, groupID uint) (*models.Extension, error)
	Upsert(ctx context.Context, extension *models.Extension) error
}

type extensionRepository struct {
	db *gorm.DB
}

// NewExtensionRepository constructs a GORM-backed extension repository.
func NewExtensionRepository(db *gorm.DB) ExtensionRepository {
	return &extensionRepository{db: db}
}

// Find returns the group's extension for the event, or nil when none was granted.
func (r *extensionRepository) Find(ctx context.Context, eventID, groupID uint) (*models.Extension, error) {
	var extension models.Extension
	err := r.db.WithContext(ctx).
		Where("gradable_event_id = ? AND group_id = ?", eventID, groupID).
		First(&extension).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &extension, nil
}

func (r *extensionRepository) Upsert(ctx context.Context, extension *models.Extension) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "gradable_event_id"}, {Name: "group_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"on_time", "shift_dates", "note", "updated_at"}),
	}).Create(extension).Error
}
