package state

import (
	"context"
	"slices"
	"sync"

	"github.com/google/uuid"

	"git.home.luguber.info/inful/stargazer/internal/foundation"
)

// Favorites is the ordered registry of saved views. Insertion order is
// display order; only ids are unique.
type Favorites struct {
	mu      sync.RWMutex
	items   []Favorite
	adapter *Adapter
	newID   func() string
}

// FavoritesOption configures a Favorites registry.
type FavoritesOption func(*Favorites)

// WithIDGenerator overrides uuid-based id assignment.
func WithIDGenerator(fn func() string) FavoritesOption {
	return func(f *Favorites) {
		if fn != nil {
			f.newID = fn
		}
	}
}

// NewFavorites loads the persisted collection.
func NewFavorites(ctx context.Context, adapter *Adapter, opts ...FavoritesOption) *Favorites {
	f := &Favorites{
		items:   adapter.LoadFavorites(ctx),
		adapter: adapter,
		newID:   uuid.NewString,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Add assigns a fresh id, appends the favorite and persists the collection.
func (f *Favorites) Add(ctx context.Context, draft FavoriteDraft) (Favorite, error) {
	if draft.Twilight == "" {
		draft.Twilight = DefaultTwilight
	}
	if err := draft.Validate(); err != nil {
		return Favorite{}, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	id := f.newID()
	for f.indexLocked(id) >= 0 {
		id = f.newID()
	}

	fav := Favorite{
		ID:       id,
		Name:     draft.Name,
		Lat:      draft.Lat,
		Lon:      draft.Lon,
		Elev:     draft.Elev,
		Twilight: draft.Twilight,
		TimeISO:  draft.TimeISO,
	}
	f.items = append(f.items, fav)
	f.adapter.SaveFavorites(ctx, f.items)
	return fav, nil
}

// Remove deletes the favorite with id. Absent ids are a no-op; the return
// value reports whether anything was removed.
func (f *Favorites) Remove(ctx context.Context, id string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	i := f.indexLocked(id)
	if i < 0 {
		return false
	}
	f.items = slices.Delete(f.items, i, i+1)
	f.adapter.SaveFavorites(ctx, f.items)
	return true
}

// Get looks up a favorite by id.
func (f *Favorites) Get(id string) foundation.Option[Favorite] {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if i := f.indexLocked(id); i >= 0 {
		return foundation.Some(f.items[i])
	}
	return foundation.None[Favorite]()
}

// List returns a snapshot in display order.
func (f *Favorites) List() []Favorite {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return slices.Clone(f.items)
}

// Len returns the number of favorites.
func (f *Favorites) Len() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.items)
}

func (f *Favorites) indexLocked(id string) int {
	return slices.IndexFunc(f.items, func(fav Favorite) bool { return fav.ID == id })
}
