package state

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"git.home.luguber.info/inful/stargazer/internal/logfields"
	"git.home.luguber.info/inful/stargazer/internal/metrics"
	"git.home.luguber.info/inful/stargazer/internal/storage"
)

const defaultIOTimeout = 5 * time.Second

// Adapter reads and writes the five session keys over a storage backend.
// Loads validate shape and fall back to defaults; saves never return errors.
type Adapter struct {
	backend  storage.Backend
	logger   *slog.Logger
	recorder metrics.Recorder
	timeout  time.Duration
}

// AdapterOption configures an Adapter.
type AdapterOption func(*Adapter)

// WithLogger sets the logger used for swallowed failures.
func WithLogger(l *slog.Logger) AdapterOption {
	return func(a *Adapter) {
		if l != nil {
			a.logger = l
		}
	}
}

// WithRecorder sets the metrics recorder.
func WithRecorder(r metrics.Recorder) AdapterOption {
	return func(a *Adapter) {
		if r != nil {
			a.recorder = r
		}
	}
}

// WithIOTimeout bounds each backend call.
func WithIOTimeout(d time.Duration) AdapterOption {
	return func(a *Adapter) {
		if d > 0 {
			a.timeout = d
		}
	}
}

// NewAdapter wraps backend.
func NewAdapter(backend storage.Backend, opts ...AdapterOption) *Adapter {
	a := &Adapter{
		backend:  backend,
		logger:   slog.Default(),
		recorder: metrics.NoopRecorder{},
		timeout:  defaultIOTimeout,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// LoadCoordinates returns the persisted position. lat and lon must both be
// in-range numbers or the fallback is returned; a bad elev alone becomes 0.
func (a *Adapter) LoadCoordinates(ctx context.Context, fallback Coordinates) Coordinates {
	var raw map[string]any
	if !a.decode(ctx, KeyCoordinates, &raw) || raw == nil {
		return fallback
	}

	lat, okLat := number(raw["lat"])
	lon, okLon := number(raw["lon"])
	if !okLat || !okLon {
		a.discard(KeyCoordinates, "lat/lon are not numbers")
		return fallback
	}
	elev, ok := number(raw["elev"])
	if !ok {
		elev = 0
	}

	c := Coordinates{Lat: lat, Lon: lon, Elev: elev}
	if err := c.Validate(); err != nil {
		a.discard(KeyCoordinates, err.Error())
		return fallback
	}
	return c
}

// SaveCoordinates persists c.
func (a *Adapter) SaveCoordinates(ctx context.Context, c Coordinates) {
	a.save(ctx, KeyCoordinates, c)
}

// LoadTwilight returns the persisted level, or astronomical when absent or unrecognized.
func (a *Adapter) LoadTwilight(ctx context.Context) Twilight {
	s, ok := a.loadString(ctx, KeyTwilight)
	if !ok {
		return DefaultTwilight
	}
	t, ok := ParseTwilight(s)
	if !ok {
		a.discard(KeyTwilight, "unrecognized twilight "+s)
		return DefaultTwilight
	}
	return t
}

// SaveTwilight persists t.
func (a *Adapter) SaveTwilight(ctx context.Context, t Twilight) {
	a.save(ctx, KeyTwilight, string(t))
}

// LoadTimeISO returns the persisted observation time, "" meaning now.
func (a *Adapter) LoadTimeISO(ctx context.Context) string {
	s, ok := a.loadString(ctx, KeyTime)
	if !ok {
		return ""
	}
	return strings.TrimSpace(s)
}

// SaveTimeISO persists t; an empty t deletes the key.
func (a *Adapter) SaveTimeISO(ctx context.Context, t string) {
	if t == "" {
		a.remove(ctx, KeyTime)
		return
	}
	a.save(ctx, KeyTime, t)
}

// LoadFavorites returns the persisted favorites in stored order. Entries
// without a usable id, lat or lon are dropped; other fields default.
func (a *Adapter) LoadFavorites(ctx context.Context) []Favorite {
	var raw []any
	if !a.decode(ctx, KeyFavorites, &raw) {
		return nil
	}

	out := make([]Favorite, 0, len(raw))
	seen := make(map[string]struct{}, len(raw))
	for _, item := range raw {
		f, ok := favoriteFrom(item)
		if !ok {
			a.discard(KeyFavorites, "dropping malformed favorite entry")
			continue
		}
		if _, dup := seen[f.ID]; dup {
			a.discard(KeyFavorites, "dropping duplicate favorite id "+f.ID)
			continue
		}
		seen[f.ID] = struct{}{}
		out = append(out, f)
	}
	return out
}

// SaveFavorites persists the whole ordered collection.
func (a *Adapter) SaveFavorites(ctx context.Context, favs []Favorite) {
	if favs == nil {
		favs = []Favorite{}
	}
	a.save(ctx, KeyFavorites, favs)
}

// LoadObserved returns the persisted identifiers, keeping only non-empty
// strings and the first occurrence of each.
func (a *Adapter) LoadObserved(ctx context.Context) []string {
	var raw []any
	if !a.decode(ctx, KeyObserved, &raw) {
		return nil
	}

	out := make([]string, 0, len(raw))
	seen := make(map[string]struct{}, len(raw))
	for _, item := range raw {
		id, ok := item.(string)
		if !ok || id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// SaveObserved persists the ordered identifiers.
func (a *Adapter) SaveObserved(ctx context.Context, ids []string) {
	if ids == nil {
		ids = []string{}
	}
	a.save(ctx, KeyObserved, ids)
}

// loadString accepts a JSON string or, for values written by older
// clients, the bare text itself.
func (a *Adapter) loadString(ctx context.Context, key Key) (string, bool) {
	data, ok := a.read(ctx, key)
	if !ok {
		return "", false
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		return s, s != ""
	}
	text := strings.TrimSpace(string(data))
	if text == "" || strings.ContainsAny(text[:1], `{["`) {
		a.discard(key, "value is not a string")
		return "", false
	}
	return text, true
}

func (a *Adapter) decode(ctx context.Context, key Key, into any) bool {
	data, ok := a.read(ctx, key)
	if !ok {
		return false
	}
	if err := json.Unmarshal(data, into); err != nil {
		a.discard(key, err.Error())
		return false
	}
	return true
}

func (a *Adapter) read(ctx context.Context, key Key) ([]byte, bool) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	data, err := a.backend.Get(ctx, string(key))
	if err != nil {
		if !storage.IsNotFound(err) {
			a.fail(key, metrics.OpLoad, err)
		}
		return nil, false
	}
	return data, true
}

func (a *Adapter) save(ctx context.Context, key Key, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		a.fail(key, metrics.OpSave, err)
		return
	}

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()
	if err := a.backend.Put(ctx, string(key), data); err != nil {
		a.fail(key, metrics.OpSave, err)
	}
}

func (a *Adapter) remove(ctx context.Context, key Key) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()
	if err := a.backend.Delete(ctx, string(key)); err != nil {
		a.fail(key, metrics.OpDelete, err)
	}
}

func (a *Adapter) fail(key Key, op metrics.PersistenceOp, err error) {
	a.recorder.IncPersistenceFailure(string(key), op)
	a.logger.Warn("Persistence failure ignored",
		logfields.StorageKey(string(key)),
		logfields.Backend(a.backend.Name()),
		slog.String("op", string(op)),
		logfields.Error(err))
}

func (a *Adapter) discard(key Key, reason string) {
	a.logger.Warn("Discarding invalid persisted value",
		logfields.StorageKey(string(key)),
		slog.String("reason", reason))
}

func number(v any) (float64, bool) {
	f, ok := v.(float64)
	return f, ok
}

func favoriteFrom(item any) (Favorite, bool) {
	m, ok := item.(map[string]any)
	if !ok {
		return Favorite{}, false
	}
	id, _ := m["id"].(string)
	lat, okLat := number(m["lat"])
	lon, okLon := number(m["lon"])
	if id == "" || !okLat || !okLon {
		return Favorite{}, false
	}
	if (Coordinates{Lat: lat, Lon: lon}).Validate() != nil {
		return Favorite{}, false
	}

	f := Favorite{ID: id, Lat: lat, Lon: lon, Twilight: DefaultTwilight}
	f.Name, _ = m["name"].(string)
	if elev, ok := number(m["elev"]); ok {
		f.Elev = elev
	}
	if s, ok := m["twilight"].(string); ok {
		if t, ok := ParseTwilight(s); ok {
			f.Twilight = t
		}
	}
	f.TimeISO, _ = m["timeIso"].(string)
	return f, true
}
