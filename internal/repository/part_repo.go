package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/noah-isme/gema-grader/internal/models"
)

// PartRepository provides access to distributable parts, their gradable event and action bindings.
type PartRepository interface {
	GetByID(ctx context.Context, id uint) (models.DistributablePart, error)
	ListByEvent(ctx context.Context, eventID uint) ([]models.DistributablePart, error)
	Create(ctx context.Context, part *models.DistributablePart) error
	SaveAction(ctx context.Context, binding *models.PartAction) error
}

type partRepository struct {
	db *gorm.DB
}

// NewPartRepository constructs a GORM-backed part repository.
func NewPartRepository(db *gorm.DB) PartRepository {
	return &partRepository{db: db}
}

func (r *partRepository) withRelations(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).
		Preload("GradableEvent").
		Preload("GradableEvent.Assignment").
		Preload("Actions")
}

func (r *partRepository) GetByID(ctx context.Context, id uint) (models.DistributablePart, error) {
	var part models.DistributablePart
	if err := r.withRelations(ctx).First(&part, id).Error; err != nil {
		return models.DistributablePart{}, err
	}
	return part, nil
}

func (r *partRepository) ListByEvent(ctx context.Context, eventID uint) ([]models.DistributablePart, error) {
	var parts []models.DistributablePart
	if err := r.withRelations(ctx).Where("gradable_event_id = ?", eventID).Order("number ASC").Find(&parts).Error; err != nil {
		return nil, err
	}
	return parts, nil
}

func (r *partRepository) Create(ctx context.Context, part *models.DistributablePart) error {
	return r.db.WithContext(ctx).Create(part).Error
}

// SaveAction inserts the binding or replaces the one already stored for its part and mode.
func (r *partRepository) SaveAction(ctx context.Context, binding *models.PartAction) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "distributable_part_id"}, {Name: "mode"}},
		DoUpdates: clause.AssignmentColumns([]string{"action_name", "properties", "updated_at"}),
	}).Create(binding).Error
}
