package service

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-grader/internal/handin"
	"github.com/noah-isme/gema-grader/internal/models"
)

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}

type memoryPartRepo struct {
	parts map[uint]models.DistributablePart
}

func (r *memoryPartRepo) GetByID(_ context.Context, id uint) (models.DistributablePart, error) {
	part, ok := r.parts[id]
	if !ok {
		return models.DistributablePart{}, gorm.ErrRecordNotFound
	}
	return part, nil
}

func (r *memoryPartRepo) ListByEvent(context.Context, uint) ([]models.DistributablePart, error) {
	return nil, nil
}

func (r *memoryPartRepo) Create(context.Context, *models.DistributablePart) error { return nil }

func (r *memoryPartRepo) SaveAction(context.Context, *models.PartAction) error { return nil }

type memoryGroupRepo struct {
	groups map[uint]models.Group
}

func (r *memoryGroupRepo) GetByID(_ context.Context, id uint) (models.Group, error) {
	group, ok := r.groups[id]
	if !ok {
		return models.Group{}, gorm.ErrRecordNotFound
	}
	return group, nil
}

func (r *memoryGroupRepo) ListByIDs(_ context.Context, ids []uint) ([]models.Group, error) {
	var out []models.Group
	for _, id := range ids {
		if g, ok := r.groups[id]; ok {
			out = append(out, g)
		}
	}
	models.SortGroupsByName(out)
	return out, nil
}

func (r *memoryGroupRepo) ListByAssignment(context.Context, uint) ([]models.Group, error) {
	return nil, nil
}

func (r *memoryGroupRepo) Create(context.Context, *models.Group) error { return nil }

type stubHandins struct {
	mu      sync.Mutex
	calls   []string
	failFor map[string]error
}

func (h *stubHandins) Unarchive(_ context.Context, part models.DistributablePart, group models.Group) (handin.Record, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.calls = append(h.calls, group.Name)
	if err := h.failFor[group.Name]; err != nil {
		return handin.Record{}, err
	}
	return handin.Record{PartID: part.ID, GroupID: group.ID, Dir: "/w/" + group.Name}, nil
}

func (h *stubHandins) Readmes(_ context.Context, _ models.DistributablePart, group models.Group) ([]string, error) {
	return []string{"/w/" + group.Name + "/README"}, nil
}

type recordingPublisher struct {
	events []ActivityEvent
}

func (p *recordingPublisher) Publish(_ context.Context, event ActivityEvent) error {
	p.events = append(p.events, event)
	return nil
}
