package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-grader/internal/action"
	"github.com/noah-isme/gema-grader/internal/handin"
	"github.com/noah-isme/gema-grader/internal/models"
	"github.com/noah-isme/gema-grader/internal/observability"
	"github.com/noah-isme/gema-grader/internal/repository"
)

var (
	// ErrPartNotFound indicates the distributable part does not exist.
	ErrPartNotFound = errors.New("part not found")
	// ErrGroupNotFound indicates the group does not exist.
	ErrGroupNotFound = errors.New("group not found")
	// ErrActionNotBound indicates the part has no action for the requested mode.
	ErrActionNotBound = errors.New("no action bound to mode")
	// ErrGroupsRequired indicates a batch request named no groups.
	ErrGroupsRequired = errors.New("at least one group is required")
)

// PerformError identifies the part, group and mode a grading failure belongs to.
type PerformError struct {
	PartID  uint
	GroupID uint
	Mode    action.Mode
	Err     error
}

func (e *PerformError) Error() string {
	if e.GroupID == 0 {
		return fmt.Sprintf("%s on part %d: %v", e.Mode, e.PartID, e.Err)
	}
	return fmt.Sprintf("%s on part %d for group %d: %v", e.Mode, e.PartID, e.GroupID, e.Err)
}

func (e *PerformError) Unwrap() error {
	return e.Err
}

// GroupFailure is one group's failure inside a batch.
type GroupFailure struct {
	GroupID   uint
	GroupName string
	Err       error
}

// BatchResult summarises a batch invocation. Stopped is set when stopOnError
// cut the batch short.
type BatchResult struct {
	Performed []uint
	Failures  []GroupFailure
	Stopped   bool
}

// ActionCatalog resolves and binds action descriptions.
type ActionCatalog interface {
	Describe(namespace string) []action.Description
	Lookup(fullName string) (action.Description, error)
	Bind(desc action.Description, bindings map[string]string) (action.Action, error)
}

// HandinWorkspaces unarchives handins and scans their readmes.
type HandinWorkspaces interface {
	Unarchive(ctx context.Context, part models.DistributablePart, group models.Group) (handin.Record, error)
	Readmes(ctx context.Context, part models.DistributablePart, group models.Group) ([]string, error)
}

// GradingService drives unarchiving and grading actions for parts and groups.
type GradingService interface {
	ListActions(ctx context.Context, namespace string) []action.Description
	Unarchive(ctx context.Context, partID, groupID uint) (handin.Record, error)
	Readmes(ctx context.Context, partID, groupID uint) ([]string, error)
	PerformAction(ctx context.Context, partID, groupID uint, mode action.Mode) error
	PerformBatch(ctx context.Context, partID uint, groupIDs []uint, mode action.Mode, stopOnError bool) (BatchResult, error)
}

type gradingService struct {
	parts     repository.PartRepository
	groups    repository.GroupRepository
	catalog   ActionCatalog
	handins   HandinWorkspaces
	publisher ActivityPublisher
	logger    zerolog.Logger
	tracer    trace.Tracer
	now       func() time.Time
}

// NewGradingService constructs the grading service. A nil publisher disables activity events.
func NewGradingService(parts repository.PartRepository, groups repository.GroupRepository, catalog ActionCatalog, handins HandinWorkspaces, publisher ActivityPublisher, logger zerolog.Logger) GradingService {
	return &gradingService{
		parts:     parts,
		groups:    groups,
		catalog:   catalog,
		handins:   handins,
		publisher: publisher,
		logger:    logger.With().Str("component", "grading_service").Logger(),
		tracer:    otel.Tracer("github.com/noah-isme/gema-grader/internal/service/grading"),
		now:       time.Now,
	}
}

func (s *gradingService) ListActions(_ context.Context, namespace string) []action.Description {
	return s.catalog.Describe(namespace)
}

func (s *gradingService) Unarchive(ctx context.Context, partID, groupID uint) (handin.Record, error) {
	part, group, err := s.load(ctx, partID, groupID)
	if err != nil {
		return handin.Record{}, err
	}
	return s.handins.Unarchive(ctx, part, group)
}

func (s *gradingService) Readmes(ctx context.Context, partID, groupID uint) ([]string, error) {
	part, group, err := s.load(ctx, partID, groupID)
	if err != nil {
		return nil, err
	}
	return s.handins.Readmes(ctx, part, group)
}

func (s *gradingService) PerformAction(ctx context.Context, partID, groupID uint, mode action.Mode) error {
	ctx, span := s.tracer.Start(ctx, "grading.perform", trace.WithAttributes(
		attribute.Int64("grading.part_id", int64(partID)),
		attribute.Int64("grading.group_id", int64(groupID)),
		attribute.String("grading.mode", string(mode)),
	))
	defer span.End()

	part, group, err := s.load(ctx, partID, groupID)
	if err != nil {
		return &PerformError{PartID: partID, GroupID: groupID, Mode: mode, Err: err}
	}

	act, name, err := s.bind(part, mode)
	if err != nil {
		return &PerformError{PartID: partID, GroupID: groupID, Mode: mode, Err: err}
	}
	span.SetAttributes(attribute.String("grading.action", name))

	start := s.now()
	err = act.Perform(ctx, part, group)
	s.observe(ctx, name, mode, part.ID, []uint{group.ID}, start, err)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "action failed")
		return &PerformError{PartID: partID, GroupID: groupID, Mode: mode, Err: err}
	}
	return nil
}

// PerformBatch runs the mode's action for every group. Groups are processed in name
// order. A failing group is recorded and the rest continue unless stopOnError is set.
// Batch-capable actions are unarchived group by group first and then invoked once
// with the groups whose workspaces are ready.
func (s *gradingService) PerformBatch(ctx context.Context, partID uint, groupIDs []uint, mode action.Mode, stopOnError bool) (BatchResult, error) {
	if len(groupIDs) == 0 {
		return BatchResult{}, ErrGroupsRequired
	}

	ctx, span := s.tracer.Start(ctx, "grading.perform_batch", trace.WithAttributes(
		attribute.Int64("grading.part_id", int64(partID)),
		attribute.Int("grading.groups", len(groupIDs)),
		attribute.String("grading.mode", string(mode)),
	))
	defer span.End()

	part, err := s.loadPart(ctx, partID)
	if err != nil {
		return BatchResult{}, &PerformError{PartID: partID, Mode: mode, Err: err}
	}

	act, name, err := s.bind(part, mode)
	if err != nil {
		return BatchResult{}, &PerformError{PartID: partID, Mode: mode, Err: err}
	}

	groups, err := s.groups.ListByIDs(ctx, groupIDs)
	if err != nil {
		return BatchResult{}, &PerformError{PartID: partID, Mode: mode, Err: err}
	}

	var result BatchResult
	for _, id := range missingIDs(groupIDs, groups) {
		result.Failures = append(result.Failures, GroupFailure{GroupID: id, Err: ErrGroupNotFound})
	}
	if len(result.Failures) > 0 && stopOnError {
		result.Stopped = true
		return result, nil
	}

	if batch, ok := act.(action.BatchAction); ok && mode.Batches() {
		ready := make([]models.Group, 0, len(groups))
		for _, group := range groups {
			if _, err := s.handins.Unarchive(ctx, part, group); err != nil {
				result.Failures = append(result.Failures, GroupFailure{GroupID: group.ID, GroupName: group.Name, Err: err})
				if stopOnError {
					result.Stopped = true
					return result, nil
				}
				continue
			}
			ready = append(ready, group)
		}
		if len(ready) == 0 {
			return result, nil
		}

		start := s.now()
		err := batch.PerformBatch(ctx, part, ready)
		s.observe(ctx, name, mode, part.ID, groupIDsOf(ready), start, err)
		if err != nil {
			span.RecordError(err)
			return result, &PerformError{PartID: partID, Mode: mode, Err: err}
		}
		result.Performed = groupIDsOf(ready)
		return result, nil
	}

	for _, group := range groups {
		start := s.now()
		err := act.Perform(ctx, part, group)
		s.observe(ctx, name, mode, part.ID, []uint{group.ID}, start, err)

		if err != nil {
			result.Failures = append(result.Failures, GroupFailure{GroupID: group.ID, GroupName: group.Name, Err: err})
			if stopOnError {
				result.Stopped = true
				break
			}
			continue
		}
		result.Performed = append(result.Performed, group.ID)
	}

	if len(result.Failures) > 0 {
		span.SetStatus(codes.Error, "some groups failed")
	}
	return result, nil
}

func (s *gradingService) bind(part models.DistributablePart, mode action.Mode) (action.Action, string, error) {
	binding, ok := part.ActionFor(string(mode))
	if !ok {
		return nil, "", fmt.Errorf("%w: %s on part %q", ErrActionNotBound, mode, part.Name)
	}

	desc, err := s.catalog.Lookup(binding.ActionName)
	if err != nil {
		return nil, binding.ActionName, err
	}
	if !desc.IsCompatible(mode) {
		s.logger.Warn().
			Uint("part_id", part.ID).
			Str("action", desc.FullName()).
			Str("mode", string(mode)).
			Msg("action bound to a mode it does not declare")
	}

	act, err := s.catalog.Bind(desc, binding.PropertyValues())
	if err != nil {
		return nil, desc.FullName(), err
	}
	return act, desc.FullName(), nil
}

func (s *gradingService) observe(ctx context.Context, name string, mode action.Mode, partID uint, groupIDs []uint, start time.Time, err error) {
	elapsed := s.now().Sub(start)
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}

	observability.ActionInvocations().WithLabelValues(name, string(mode), outcome).Inc()
	observability.ActionDuration().WithLabelValues(name, string(mode)).Observe(elapsed.Seconds())

	logEvent := s.logger.Info()
	if err != nil {
		logEvent = s.logger.Error().Err(err)
	}
	logEvent.
		Uint("part_id", partID).
		Interface("group_ids", groupIDs).
		Str("mode", string(mode)).
		Str("action", name).
		Dur("elapsed", elapsed).
		Msg("grading action performed")

	if s.publisher == nil {
		return
	}
	event := ActivityEvent{
		Type:       EventActionPerformed,
		PartID:     partID,
		GroupIDs:   groupIDs,
		Mode:       string(mode),
		Action:     name,
		Result:     outcome,
		DurationMS: elapsed.Milliseconds(),
		OccurredAt: s.now().UTC(),
	}
	if err != nil {
		event.Error = err.Error()
	}
	if pubErr := s.publisher.Publish(ctx, event); pubErr != nil {
		s.logger.Warn().Err(pubErr).Msg("grading activity not published")
	}
}

func (s *gradingService) load(ctx context.Context, partID, groupID uint) (models.DistributablePart, models.Group, error) {
	part, err := s.loadPart(ctx, partID)
	if err != nil {
		return models.DistributablePart{}, models.Group{}, err
	}
	group, err := s.groups.GetByID(ctx, groupID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.DistributablePart{}, models.Group{}, ErrGroupNotFound
		}
		return models.DistributablePart{}, models.Group{}, err
	}
	return part, group, nil
}

func (s *gradingService) loadPart(ctx context.Context, partID uint) (models.DistributablePart, error) {
	part, err := s.parts.GetByID(ctx, partID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.DistributablePart{}, ErrPartNotFound
		}
		return models.DistributablePart{}, err
	}
	return part, nil
}

func missingIDs(requested []uint, found []models.Group) []uint {
	present := make(map[uint]struct{}, len(found))
	for _, g := range found {
		present[g.ID] = struct{}{}
	}
	var missing []uint
	seen := make(map[uint]struct{}, len(requested))
	for _, id := range requested {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		if _, ok := present[id]; !ok {
			missing = append(missing, id)
		}
	}
	return missing
}

func groupIDsOf(groups []models.Group) []uint {
	ids := make([]uint, len(groups))
	for i, g := range groups {
		ids[i] = g.ID
	}
	return ids
}
