package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/gema-grader/internal/models"
)

// GradableEventRepository provides access to gradable events.
type GradableEventRepository interface {
	GetByID(ctx context.Context, id uint) (models.GradableEvent, error)
	Create(ctx context.Context, event *models.GradableEvent) error
}

type gradableEventRepository struct {
	db *gorm.DB
}

// NewGradableEventRepository constructs a GORM-backed gradable event repository.
func NewGradableEventRepository(db *gorm.DB) GradableEventRepository {
	return &gradableEventRepository{db: db}
}

func (r *gradableEventRepository) GetByID(ctx context.Context, id uint) (models.GradableEvent, error) {
	var event models.GradableEvent
	err := r.db.WithContext(ctx).
		Preload("Assignment").
		Preload("Parts", func(db *gorm.DB) *gorm.DB { return db.Order("number ASC") }).
		First(&event, id).Error
	if err != nil {
		return models.GradableEvent{}, err
	}
	return event, nil
}

func (r *gradableEventRepository) Create(ctx context.Context, event *models.GradableEvent) error {
	return r.db.WithContext(ctx).Create(event).Error
}
