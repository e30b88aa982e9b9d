package history

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type captureSink struct {
	changes []Change
	err     error
}

func (s *captureSink) Change(_ context.Context, c Change) error {
	if s.err != nil {
		return s.err
	}
	s.changes = append(s.changes, c)
	return nil
}

func newTestTracker(t *testing.T, sink Sink, entities ...Entity) *Tracker {
	t.Helper()
	reg, err := NewRegistry(entities...)
	require.NoError(t, err)
	tr := NewTracker(reg, sink, zap.NewNop())
	tr.now = func() time.Time { return time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC) }
	return tr
}

func animalEntity() Entity {
	return Entity{Name: "Animal", History: Bool(true), M2M: []string{"friends"}}
}

func TestSaveNewInstance(t *testing.T) {
	sink := &captureSink{}
	tr := newTestTracker(t, sink, animalEntity())

	rec := NewRecord("Animal", map[string]any{"name": "Harambe"})
	tr.ObserveInit(rec)

	// Persist assigns the pk and fills defaults.
	rec.Values["id"] = int64(1)
	rec.Values["age"] = int64(0)
	require.NoError(t, tr.ObserveSave(context.Background(), rec))

	require.Len(t, sink.changes, 3)
	byField := map[string]Change{}
	for _, c := range sink.changes {
		byField[c.Field] = c
		assert.Equal(t, "Animal", c.Entity)
		assert.Equal(t, int64(1), c.PK)
		assert.Equal(t, NewInstance, c.Old)
	}
	assert.Equal(t, int64(1), byField["id"].New)
	assert.Equal(t, "Harambe", byField["name"].New)
	assert.Equal(t, int64(0), byField["age"].New)
}

func TestResaveWithoutModificationEmitsNothing(t *testing.T) {
	sink := &captureSink{}
	tr := newTestTracker(t, sink, animalEntity())

	rec := NewRecord("Animal", map[string]any{"id": int64(7), "name": "Harambe"})
	tr.ObserveInit(rec)
	require.NoError(t, tr.ObserveSave(context.Background(), rec))
	assert.Empty(t, sink.changes)

	rec.Values["name"] = "Scooby"
	require.NoError(t, tr.ObserveSave(context.Background(), rec))
	require.Len(t, sink.changes, 1)
	assert.Equal(t, "name", sink.changes[0].Field)
	assert.Equal(t, "Harambe", sink.changes[0].Old)
	assert.Equal(t, "Scooby", sink.changes[0].New)

	// Snapshot refreshed on save: saving again is a no-op.
	sink.changes = nil
	require.NoError(t, tr.ObserveSave(context.Background(), rec))
	assert.Empty(t, sink.changes)
}

func TestDeferredFieldsSkipped(t *testing.T) {
	sink := &captureSink{}
	tr := newTestTracker(t, sink, animalEntity())

	// Loaded with only id and name; age was deferred.
	rec := NewRecord("Animal", map[string]any{"id": int64(3), "name": "Harambe"})
	tr.ObserveInit(rec)

	// A later fetch populates age. Its prior value is unknown, so no
	// change is recorded for it.
	rec.Values["age"] = int64(12)
	require.NoError(t, tr.ObserveSave(context.Background(), rec))
	assert.Empty(t, sink.changes)
}

func TestDelete(t *testing.T) {
	sink := &captureSink{}
	tr := newTestTracker(t, sink, animalEntity())

	rec := NewRecord("Animal", map[string]any{"id": int64(9), "name": "Harambe"})
	tr.ObserveInit(rec)
	require.NoError(t, tr.ObserveDelete(context.Background(), rec))

	require.Len(t, sink.changes, 1)
	c := sink.changes[0]
	assert.Equal(t, "id", c.Field)
	assert.Equal(t, int64(9), c.Old)
	assert.Nil(t, c.New)
}

func TestRelationForwardPreOnly(t *testing.T) {
	sink := &captureSink{}
	tr := newTestTracker(t, sink, animalEntity())
	ctx := context.Background()

	rec := NewRecord("Animal", map[string]any{"id": int64(2)})
	tr.ObserveInit(rec)

	require.NoError(t, tr.ObserveRelation(ctx, rec, "friends", OpAdd, true, false))
	require.NoError(t, tr.ObserveRelation(ctx, rec, "friends", OpAdd, false, false))
	require.NoError(t, tr.ObserveRelation(ctx, rec, "friends", OpRemove, true, true))
	require.NoError(t, tr.ObserveRelation(ctx, rec, "friends", OpRemove, false, true))

	require.Len(t, sink.changes, 1)
	c := sink.changes[0]
	assert.Equal(t, "friends", c.Field)
	assert.Equal(t, RelationTouched, c.Old)
	assert.Equal(t, RelationTouched, c.New)
}

func TestRelationUnknownIsError(t *testing.T) {
	sink := &captureSink{}
	tr := newTestTracker(t, sink, animalEntity())

	rec := NewRecord("Animal", map[string]any{"id": int64(2)})
	tr.ObserveInit(rec)
	err := tr.ObserveRelation(context.Background(), rec, "enemies", OpClear, true, false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "enemies")
}

func TestUntrackedEntityIgnored(t *testing.T) {
	sink := &captureSink{}
	tr := newTestTracker(t, sink,
		Entity{Name: "Animal", History: Bool(true)},
		Entity{Name: "Caretaker"},
	)
	ctx := context.Background()

	rec := NewRecord("Caretaker", map[string]any{"name": "Fabby"})
	tr.ObserveInit(rec)
	rec.Values["id"] = int64(1)
	require.NoError(t, tr.ObserveSave(ctx, rec))
	require.NoError(t, tr.ObserveDelete(ctx, rec))
	assert.Empty(t, sink.changes)
}

func TestSubtypePropagation(t *testing.T) {
	sink := &captureSink{}
	tr := newTestTracker(t, sink,
		Entity{Name: "Animal", History: Bool(true)},
		Entity{Name: "Gorilla", Base: "Animal"},
		Entity{Name: "Nameless", Base: "Animal", History: Bool(false)},
	)
	ctx := context.Background()

	rec := NewRecord("Gorilla", map[string]any{"id": int64(5), "name": "Harambe"})
	tr.ObserveInit(rec)
	rec.Values["name"] = "Bokito"
	require.NoError(t, tr.ObserveSave(ctx, rec))
	require.Len(t, sink.changes, 1)
	assert.Equal(t, "Gorilla", sink.changes[0].Entity)

	// Explicit opt-out on the subtype wins over the tracked base.
	sink.changes = nil
	optOut := NewRecord("Nameless", map[string]any{"id": int64(6), "name": "x"})
	tr.ObserveInit(optOut)
	optOut.Values["name"] = "y"
	require.NoError(t, tr.ObserveSave(ctx, optOut))
	assert.Empty(t, sink.changes)
}

func TestRegistryUnknownBase(t *testing.T) {
	_, err := NewRegistry(Entity{Name: "Gorilla", Base: "Animal"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown base")
}

func TestPKFieldOverride(t *testing.T) {
	sink := &captureSink{}
	tr := newTestTracker(t, sink,
		Entity{Name: "Zoo", History: Bool(true), PKField: "code"},
	)

	rec := NewRecord("Zoo", map[string]any{"code": "ARTIS", "city": "Amsterdam"})
	tr.ObserveInit(rec)
	require.NoError(t, tr.ObserveDelete(context.Background(), rec))
	require.Len(t, sink.changes, 1)
	assert.Equal(t, "code", sink.changes[0].Field)
	assert.Equal(t, "ARTIS", sink.changes[0].PK)
}

func TestMultiSinkStopsOnError(t *testing.T) {
	good := &captureSink{}
	bad := &captureSink{err: assert.AnError}
	tr := newTestTracker(t, MultiSink{good, bad}, animalEntity())

	rec := NewRecord("Animal", map[string]any{"id": int64(1), "name": "a"})
	tr.ObserveInit(rec)
	rec.Values["name"] = "b"
	require.Error(t, tr.ObserveSave(context.Background(), rec))
	require.Len(t, good.changes, 1)
}
