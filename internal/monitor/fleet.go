package monitor

import (
	"context"
	"fmt"
	"sync"

	"reptilia-backend/internal/habitat"
)

// Fleet indexes the running habitats by id.
type Fleet struct {
	mu    sync.RWMutex
	order []string
	byID  map[string]*Habitat
}

func NewFleet() *Fleet {
	return &Fleet{byID: map[string]*Habitat{}}
}

func (f *Fleet) Add(h *Habitat) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.byID[h.ID()]; ok {
		return fmt.Errorf("habitat %s already registered", h.ID())
	}
	f.byID[h.ID()] = h
	f.order = append(f.order, h.ID())
	return nil
}

func (f *Fleet) Get(id string) (*Habitat, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	h, ok := f.byID[id]
	return h, ok
}

// Remove drops the habitat from the index and returns it.
func (f *Fleet) Remove(id string) (*Habitat, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	h, ok := f.byID[id]
	if !ok {
		return nil, false
	}
	delete(f.byID, id)
	for i, hid := range f.order {
		if hid == id {
			f.order = append(f.order[:i], f.order[i+1:]...)
			break
		}
	}
	return h, true
}

func (f *Fleet) All() []*Habitat {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make([]*Habitat, 0, len(f.order))
	for _, id := range f.order {
		out = append(out, f.byID[id])
	}
	return out
}

func (f *Fleet) ForceMode(ctx context.Context, habitatID string, mode habitat.Mode) error {
	h, ok := f.Get(habitatID)
	if !ok {
		return habitat.ErrNotFound
	}
	_, err := h.ForceMode(ctx, mode)
	return err
}

func (f *Fleet) Acknowledge(ctx context.Context, habitatID, alertID, by string) error {
	h, ok := f.Get(habitatID)
	if !ok {
		return habitat.ErrNotFound
	}
	_, err := h.Acknowledge(ctx, alertID, by)
	return err
}
