package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/noah-isme/gema-grader/internal/models"
)

// GradeRepository stores the points groups earned on parts.
type GradeRepository interface {
	Save(ctx context.Context, grade *models.PartGrade) error
	EarnedForEvent(ctx context.Context, eventID, groupID uint) (float64, int64, error)
}

type gradeRepository struct {
	db *gorm.DB
}

// NewGradeRepository constructs a GORM-backed grade repository.
func NewGradeRepository(db *gorm.DB) GradeRepository {
	return &gradeRepository{db: db}
}

func (r *gradeRepository) Save(ctx context.Context, grade *models.PartGrade) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "distributable_part_id"}, {Name: "group_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"earned", "updated_at"}),
	}).Create(grade).Error
}

// EarnedForEvent sums the recorded points of every part of the event for the group and
// reports how many parts carried a grade.
func (r *gradeRepository) EarnedForEvent(ctx context.Context, eventID, groupID uint) (float64, int64, error) {
	var row struct {
		Total  float64
		Graded int64
	}
	err := r.db.WithContext(ctx).
		Model(&models.PartGrade{}).
		Select("COALESCE(SUM(part_grades.earned), 0) AS total, COUNT(part_grades.earned) AS graded").
		Joins("JOIN distributable_parts ON distributable_parts.id = part_grades.distributable_part_id").
		Where("distributable_parts.gradable_event_id = ? AND part_grades.group_id = ?", eventID, groupID).
		Scan(&row).Error
	if err != nil {
		return 0, 0, err
	}
	return row.Total, row.Graded, nil
}
