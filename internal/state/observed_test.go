package state

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"git.home.luguber.info/inful/stargazer/internal/storage"
)

func TestObservedMarkIsIdempotent(t *testing.T) {
	ctx := context.Background()
	obs := NewObserved(ctx, NewAdapter(storage.NewMemoryStore()))

	assert.True(t, obs.Mark(ctx, "ori"))
	assert.True(t, obs.Mark(ctx, "uma"))
	assert.False(t, obs.Mark(ctx, "ori"))

	assert.Equal(t, []string{"ori", "uma"}, obs.List(), "re-marking must not duplicate or reorder")
	assert.True(t, obs.Contains("ori"))
}

func TestObservedUnmarkAbsentIsNoop(t *testing.T) {
	ctx := context.Background()
	backend := storage.NewMemoryStore()
	obs := NewObserved(ctx, NewAdapter(backend))

	assert.False(t, obs.Unmark(ctx, "ori"))
	assert.Zero(t, backend.Calls().Put)
}

func TestObservedPersistence(t *testing.T) {
	ctx := context.Background()
	backend := storage.NewMemoryStore()
	obs := NewObserved(ctx, NewAdapter(backend))

	obs.Mark(ctx, "ori")
	obs.Mark(ctx, "cas")
	obs.Mark(ctx, "uma")
	obs.Unmark(ctx, "cas")

	raw, ok := backend.Raw(string(KeyObserved))
	assert.True(t, ok)
	assert.JSONEq(t, `["ori","uma"]`, string(raw))

	reloaded := NewObserved(ctx, NewAdapter(backend))
	assert.Equal(t, []string{"ori", "uma"}, reloaded.List())
	assert.False(t, reloaded.Contains("cas"))
}

func TestObservedIgnoresEmptyID(t *testing.T) {
	ctx := context.Background()
	obs := NewObserved(ctx, NewAdapter(storage.NewMemoryStore()))
	assert.False(t, obs.Mark(ctx, ""))
	assert.Empty(t, obs.List())
}
