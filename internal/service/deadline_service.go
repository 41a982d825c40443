package service

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-grader/internal/deadline"
	"github.com/noah-isme/gema-grader/internal/handin"
	"github.com/noah-isme/gema-grader/internal/models"
	"github.com/noah-isme/gema-grader/internal/repository"
)

// ErrEventNotFound indicates the gradable event does not exist.
var ErrEventNotFound = errors.New("gradable event not found")

// DeadlineResult is a group's timeliness for one gradable event.
type DeadlineResult struct {
	EventID    uint
	GroupID    uint
	Kind       deadline.Kind
	HandinAt   *time.Time
	Extension  *models.Extension
	Resolution deadline.Resolution
}

// ScoreResult combines the recorded points with the deadline adjustment.
type ScoreResult struct {
	DeadlineResult
	Earned      float64
	GradedParts int64
	Adjustment  float64
	Total       float64
}

// HandinFinder locates the archive a group handed in.
type HandinFinder interface {
	Latest(event models.GradableEvent, group models.Group) (handin.File, error)
}

// DeadlineService resolves deadlines against handin times and extensions.
type DeadlineService interface {
	Resolve(ctx context.Context, eventID, groupID uint) (DeadlineResult, error)
	Score(ctx context.Context, eventID, groupID uint) (ScoreResult, error)
}

type deadlineService struct {
	events     repository.GradableEventRepository
	groups     repository.GroupRepository
	extensions repository.ExtensionRepository
	grades     repository.GradeRepository
	finder     HandinFinder
	logger     zerolog.Logger
}

// NewDeadlineService constructs a deadline service.
func NewDeadlineService(events repository.GradableEventRepository, groups repository.GroupRepository, extensions repository.ExtensionRepository, grades repository.GradeRepository, finder HandinFinder, logger zerolog.Logger) DeadlineService {
	return &deadlineService{
		events:     events,
		groups:     groups,
		extensions: extensions,
		grades:     grades,
		finder:     finder,
		logger:     logger.With().Str("component", "deadline_service").Logger(),
	}
}

// Resolve uses the modification time of the group's latest handin as its handin time.
// A group with no handin resolves to NOT_RECEIVED.
func (s *deadlineService) Resolve(ctx context.Context, eventID, groupID uint) (DeadlineResult, error) {
	event, err := s.events.GetByID(ctx, eventID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return DeadlineResult{}, ErrEventNotFound
		}
		return DeadlineResult{}, err
	}

	group, err := s.groups.GetByID(ctx, groupID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return DeadlineResult{}, ErrGroupNotFound
		}
		return DeadlineResult{}, err
	}

	info, err := event.DeadlineInfo()
	if err != nil {
		return DeadlineResult{}, err
	}

	result := DeadlineResult{EventID: event.ID, GroupID: group.ID, Kind: info.Kind()}

	file, err := s.finder.Latest(event, group)
	switch {
	case err == nil:
		submitted := file.SubmittedAt
		result.HandinAt = &submitted
	case errors.Is(err, handin.ErrHandinNotFound):
		s.logger.Debug().Uint("event_id", eventID).Uint("group_id", groupID).Msg("no handin located")
	default:
		return DeadlineResult{}, err
	}

	ext, err := s.extensions.Find(ctx, event.ID, group.ID)
	if err != nil {
		return DeadlineResult{}, err
	}
	result.Extension = ext

	var engineExt *deadline.Extension
	if ext != nil {
		engineExt = ext.Deadline()
	}
	result.Resolution = info.Resolve(result.HandinAt, engineExt)
	return result, nil
}

// Score adds the deadline adjustment to the group's recorded points. NC_LATE
// cancels the earned total exactly.
func (s *deadlineService) Score(ctx context.Context, eventID, groupID uint) (ScoreResult, error) {
	resolved, err := s.Resolve(ctx, eventID, groupID)
	if err != nil {
		return ScoreResult{}, err
	}

	earned, graded, err := s.grades.EarnedForEvent(ctx, eventID, groupID)
	if err != nil {
		return ScoreResult{}, err
	}

	adjustment := resolved.Resolution.Apply(earned)
	return ScoreResult{
		DeadlineResult: resolved,
		Earned:         earned,
		GradedParts:    graded,
		Adjustment:     adjustment,
		Total:          earned + adjustment,
	}, nil
}
