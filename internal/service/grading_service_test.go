package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"

	"github.com/noah-isme/gema-grader/internal/action"
	"github.com/noah-isme/gema-grader/internal/handin"
	"github.com/noah-isme/gema-grader/internal/models"
)

var errBrokenGroup = errors.New("broken group")

type gradingRecorder struct {
	performed []string
	batches   [][]string
}

type recordAction struct {
	rec *gradingRecorder
}

func (a *recordAction) Perform(_ context.Context, _ models.DistributablePart, group models.Group) error {
	if group.Name == "broken" {
		return errBrokenGroup
	}
	a.rec.performed = append(a.rec.performed, group.Name)
	return nil
}

type recordBatchAction struct {
	recordAction
}

func (a *recordBatchAction) PerformBatch(_ context.Context, _ models.DistributablePart, groups []models.Group) error {
	var names []string
	for _, g := range groups {
		names = append(names, g.Name)
	}
	a.rec.batches = append(a.rec.batches, names)
	return nil
}

type recorderProvider struct {
	rec *gradingRecorder
}

func (p recorderProvider) Namespace() string { return "test" }

func (p recorderProvider) Descriptions() []action.Description {
	return []action.Description{
		action.NewDescription("test", "record", "records groups", func(action.Environment, action.Values) (action.Action, error) {
			return &recordAction{rec: p.rec}, nil
		}).WithProperties(action.Property{Key: "command", Required: true}).WithModes([]action.Mode{action.ModeRun}, action.ModeRun, action.ModeTest),
		action.NewDescription("test", "batch", "records batches", func(action.Environment, action.Values) (action.Action, error) {
			return &recordBatchAction{recordAction{rec: p.rec}}, nil
		}).WithModes([]action.Mode{action.ModePrint}, action.ModePrint),
	}
}

type gradingFixture struct {
	svc       GradingService
	rec       *gradingRecorder
	handins   *stubHandins
	publisher *recordingPublisher
}

func newGradingFixture(t *testing.T) *gradingFixture {
	t.Helper()

	rec := &gradingRecorder{}
	registry := action.NewRegistry(action.Environment{Logger: testLogger()})
	require.NoError(t, registry.Register(recorderProvider{rec: rec}))

	part := models.DistributablePart{
		ID:   1,
		Name: "P1",
		Actions: []models.PartAction{
			{Mode: models.ModeRun, ActionName: "test:record", Properties: datatypes.JSONMap{"command": "x"}},
			{Mode: models.ModeTest, ActionName: "test:record"},
			{Mode: models.ModePrint, ActionName: "test:batch"},
			{Mode: models.ModeDemo, ActionName: "test:missing"},
		},
	}
	parts := &memoryPartRepo{parts: map[uint]models.DistributablePart{1: part}}
	groups := &memoryGroupRepo{groups: map[uint]models.Group{
		10: {ID: 10, Name: "alpha"},
		11: {ID: 11, Name: "broken"},
		12: {ID: 12, Name: "charlie"},
	}}

	handins := &stubHandins{failFor: map[string]error{}}
	publisher := &recordingPublisher{}
	return &gradingFixture{
		svc:       NewGradingService(parts, groups, registry, handins, publisher, testLogger()),
		rec:       rec,
		handins:   handins,
		publisher: publisher,
	}
}

func TestGradingServicePerformActionPublishesActivity(t *testing.T) {
	f := newGradingFixture(t)

	require.NoError(t, f.svc.PerformAction(context.Background(), 1, 10, action.ModeRun))
	require.Equal(t, []string{"alpha"}, f.rec.performed)

	require.Len(t, f.publisher.events, 1)
	event := f.publisher.events[0]
	require.Equal(t, EventActionPerformed, event.Type)
	require.Equal(t, "test:record", event.Action)
	require.Equal(t, "ok", event.Result)
	require.Equal(t, []uint{10}, event.GroupIDs)
}

func TestGradingServicePerformActionErrorsCarryContext(t *testing.T) {
	f := newGradingFixture(t)

	err := f.svc.PerformAction(context.Background(), 1, 11, action.ModeRun)
	var perr *PerformError
	require.ErrorAs(t, err, &perr)
	require.Equal(t, uint(11), perr.GroupID)
	require.Equal(t, action.ModeRun, perr.Mode)
	require.ErrorIs(t, err, errBrokenGroup)
	require.Equal(t, "error", f.publisher.events[0].Result)
}

func TestGradingServicePerformActionLookupFailures(t *testing.T) {
	f := newGradingFixture(t)
	ctx := context.Background()

	require.ErrorIs(t, f.svc.PerformAction(ctx, 99, 10, action.ModeRun), ErrPartNotFound)
	require.ErrorIs(t, f.svc.PerformAction(ctx, 1, 99, action.ModeRun), ErrGroupNotFound)
	require.ErrorIs(t, f.svc.PerformAction(ctx, 1, 10, action.ModeOpen), ErrActionNotBound)
	require.ErrorIs(t, f.svc.PerformAction(ctx, 1, 10, action.ModeDemo), action.ErrUnknownAction)
	require.ErrorIs(t, f.svc.PerformAction(ctx, 1, 10, action.ModeTest), action.ErrBindingInvalid)
	require.Empty(t, f.rec.performed)
}

func TestGradingServicePerformBatchContinuesPastFailures(t *testing.T) {
	f := newGradingFixture(t)

	result, err := f.svc.PerformBatch(context.Background(), 1, []uint{12, 11, 10, 77}, action.ModeRun, false)
	require.NoError(t, err)
	require.False(t, result.Stopped)
	require.Equal(t, []string{"alpha", "charlie"}, f.rec.performed)
	require.Equal(t, []uint{10, 12}, result.Performed)

	require.Len(t, result.Failures, 2)
	require.Equal(t, uint(77), result.Failures[0].GroupID)
	require.ErrorIs(t, result.Failures[0].Err, ErrGroupNotFound)
	require.Equal(t, "broken", result.Failures[1].GroupName)
}

func TestGradingServicePerformBatchStopsOnError(t *testing.T) {
	f := newGradingFixture(t)

	result, err := f.svc.PerformBatch(context.Background(), 1, []uint{10, 11, 12}, action.ModeRun, true)
	require.NoError(t, err)
	require.True(t, result.Stopped)
	require.Equal(t, []string{"alpha"}, f.rec.performed)
	require.Len(t, result.Failures, 1)
}

func TestGradingServicePrintBatchUnarchivesThenRunsOnce(t *testing.T) {
	f := newGradingFixture(t)
	f.handins.failFor["broken"] = handin.ErrHandinNotFound

	result, err := f.svc.PerformBatch(context.Background(), 1, []uint{12, 11, 10}, action.ModePrint, false)
	require.NoError(t, err)
	require.Equal(t, []string{"alpha", "broken", "charlie"}, f.handins.calls)
	require.Equal(t, [][]string{{"alpha", "charlie"}}, f.rec.batches)
	require.Equal(t, []uint{10, 12}, result.Performed)
	require.Len(t, result.Failures, 1)
	require.ErrorIs(t, result.Failures[0].Err, handin.ErrHandinNotFound)
	require.Len(t, f.publisher.events, 1)
}

func TestGradingServicePerformBatchRequiresGroups(t *testing.T) {
	f := newGradingFixture(t)
	_, err := f.svc.PerformBatch(context.Background(), 1, nil, action.ModeRun, false)
	require.ErrorIs(t, err, ErrGroupsRequired)
}

func TestGradingServiceUnarchiveAndReadmes(t *testing.T) {
	f := newGradingFixture(t)

	record, err := f.svc.Unarchive(context.Background(), 1, 10)
	require.NoError(t, err)
	require.Equal(t, "/w/alpha", record.Dir)

	readmes, err := f.svc.Readmes(context.Background(), 1, 12)
	require.NoError(t, err)
	require.Equal(t, []string{"/w/charlie/README"}, readmes)

	_, err = f.svc.Unarchive(context.Background(), 1, 404)
	require.ErrorIs(t, err, ErrGroupNotFound)
}

func TestGradingServiceListActions(t *testing.T) {
	f := newGradingFixture(t)
	descs := f.svc.ListActions(context.Background(), "test")
	require.Len(t, descs, 2)
	require.Equal(t, "test:batch", descs[0].FullName())
}
