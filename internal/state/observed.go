package state

import (
	"context"
	"slices"
	"sync"
)

// Observed is the set of constellation ids the user marked as seen. It is
// persisted as a list in first-marked order.
type Observed struct {
	mu      sync.RWMutex
	ids     []string
	index   map[string]struct{}
	adapter *Adapter
}

// NewObserved loads the persisted set.
func NewObserved(ctx context.Context, adapter *Adapter) *Observed {
	ids := adapter.LoadObserved(ctx)
	index := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		index[id] = struct{}{}
	}
	return &Observed{ids: ids, index: index, adapter: adapter}
}

// Mark adds id. Marking a present or empty id is a no-op. Reports whether
// the set changed.
func (o *Observed) Mark(ctx context.Context, id string) bool {
	if id == "" {
		return false
	}
	o.mu.Lock()
	defer o.mu.Unlock()

	if _, ok := o.index[id]; ok {
		return false
	}
	o.index[id] = struct{}{}
	o.ids = append(o.ids, id)
	o.adapter.SaveObserved(ctx, o.ids)
	return true
}

// Unmark removes id. Unmarking an absent id is a no-op.
func (o *Observed) Unmark(ctx context.Context, id string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()

	if _, ok := o.index[id]; !ok {
		return false
	}
	delete(o.index, id)
	o.ids = slices.DeleteFunc(o.ids, func(s string) bool { return s == id })
	o.adapter.SaveObserved(ctx, o.ids)
	return true
}

// Contains reports membership.
func (o *Observed) Contains(id string) bool {
	o.mu.RLock()
	defer o.mu.RUnlock()
	_, ok := o.index[id]
	return ok
}

// List returns the ids in first-marked order.
func (o *Observed) List() []string {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return slices.Clone(o.ids)
}
