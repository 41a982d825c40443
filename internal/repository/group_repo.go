package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/gema-grader/internal/models"
)

// GroupRepository provides access to groups and their members.
type GroupRepository interface {
	GetByID(ctx context.Context, id uint) (models.Group, error)
	ListByIDs(ctx context.Context, ids []uint) ([]models.Group, error)
	ListByAssignment(ctx context.Context, assignmentID uint) ([]models.Group, error)
	Create(ctx context.Context, group *models.Group) error
}

type groupRepository struct {
	db *gorm.DB
}

// NewGroupRepository constructs a GORM-backed group repository.
func NewGroupRepository(db *gorm.DB) GroupRepository {
	return &groupRepository{db: db}
}

func (r *groupRepository) GetByID(ctx context.Context, id uint) (models.Group, error) {
	var group models.Group
	if err := r.db.WithContext(ctx).Preload("Members").First(&group, id).Error; err != nil {
		return models.Group{}, err
	}
	return group, nil
}

// ListByIDs returns the requested groups ordered by name. Unknown ids are ignored.
func (r *groupRepository) ListByIDs(ctx context.Context, ids []uint) ([]models.Group, error) {
	if len(ids) == 0 {
		return []models.Group{}, nil
	}
	var groups []models.Group
	if err := r.db.WithContext(ctx).Preload("Members").Where("id IN ?", ids).Order("name ASC").Find(&groups).Error; err != nil {
		return nil, err
	}
	return groups, nil
}

func (r *groupRepository) ListByAssignment(ctx context.Context, assignmentID uint) ([]models.Group, error) {
	var groups []models.Group
	if err := r.db.WithContext(ctx).Preload("Members").Where("assignment_id = ?", assignmentID).Order("name ASC").Find(&groups).Error; err != nil {
		return nil, err
	}
	return groups, nil
}

func (r *groupRepository) Create(ctx context.Context, group *models.Group) error {
	return r.db.WithContext(ctx).Create(group).Error
}
