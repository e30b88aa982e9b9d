package history

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"time"

	"go.uber.org/zap"
)

// Record is one materialized entity instance. Values holds the loaded
// concrete fields; a field a query deferred is simply absent. The tracker
// keeps its snapshot alongside so repeated saves diff against the last
// persisted state, not the original load.
type Record struct {
	Entity string
	Values map[string]any

	snapshot map[string]any
	isNew    bool
}

// NewRecord builds a record for the named entity with its currently
// loaded field values.
func NewRecord(entity string, values map[string]any) *Record {
	return &Record{Entity: entity, Values: values}
}

// RelationOp is the kind of many-to-many mutation being observed.
type RelationOp string

const (
	OpAdd    RelationOp = "add"
	OpRemove RelationOp = "remove"
	OpClear  RelationOp = "clear"
)

// Tracker observes entity lifecycle events and emits change records to a
// sink. Callers invoke the Observe methods explicitly from their persist
// paths; nothing hooks in implicitly.
type Tracker struct {
	registry *Registry
	sink     Sink
	logger   *zap.Logger
	now      func() time.Time
}

func NewTracker(registry *Registry, sink Sink, logger *zap.Logger) *Tracker {
	return &Tracker{
		registry: registry,
		sink:     sink,
		logger:   logger,
		now:      time.Now,
	}
}

// ObserveInit snapshots a record as it materializes. An instance without
// a primary-key value is new: its prior state is the new-instance
// sentinel for every field, so the first save records all of them.
func (t *Tracker) ObserveInit(rec *Record) {
	if !t.registry.Tracked(rec.Entity) {
		return
	}
	pkField := t.registry.PKField(rec.Entity)
	pk, ok := rec.Values[pkField]
	rec.isNew = !ok || pk == nil
	rec.snapshot = make(map[string]any, len(rec.Values))
	for field, v := range rec.Values {
		if rec.isNew {
			rec.snapshot[field] = NewInstance
		} else {
			rec.snapshot[field] = v
		}
	}
}

// ObserveSave diffs the record against its snapshot after a successful
// persist and emits one change per differing field. Fields absent from
// the snapshot were deferred at load time and are skipped silently,
// except on new instances where every populated field counts as changed
// from the new-instance sentinel. The snapshot is refreshed so a second
// save without modifications emits nothing.
func (t *Tracker) ObserveSave(ctx context.Context, rec *Record) error {
	if !t.registry.Tracked(rec.Entity) || rec.snapshot == nil {
		return nil
	}
	pk := rec.Values[t.registry.PKField(rec.Entity)]
	at := t.now()

	fields := make([]string, 0, len(rec.Values))
	for f := range rec.Values {
		fields = append(fields, f)
	}
	sort.Strings(fields)

	for _, field := range fields {
		newVal := rec.Values[field]
		old, known := rec.snapshot[field]
		if !known {
			if !rec.isNew {
				continue
			}
			old = NewInstance
		}
		if reflect.DeepEqual(old, newVal) {
			continue
		}
		c := Change{Entity: rec.Entity, PK: pk, Field: field, Old: old, New: newVal, At: at}
		if err := t.sink.Change(ctx, c); err != nil {
			return fmt.Errorf("history: record change %s.%s: %w", rec.Entity, field, err)
		}
		rec.snapshot[field] = newVal
	}
	rec.isNew = false
	return nil
}

// ObserveDelete records a deletion as the primary key changing to nil.
func (t *Tracker) ObserveDelete(ctx context.Context, rec *Record) error {
	if !t.registry.Tracked(rec.Entity) {
		return nil
	}
	pkField := t.registry.PKField(rec.Entity)
	pk := rec.Values[pkField]
	c := Change{Entity: rec.Entity, PK: pk, Field: pkField, Old: pk, New: nil, At: t.now()}
	if err := t.sink.Change(ctx, c); err != nil {
		return fmt.Errorf("history: record delete %s: %w", rec.Entity, err)
	}
	return nil
}

// ObserveRelation records a many-to-many mutation on the forward side of
// the relation. Only the pre-mutation phase emits, so a single membership
// change yields a single record; the post phase and the reverse side are
// ignored. Naming a relation the entity does not declare is a
// configuration error and is reported, never swallowed.
//
// The persistence wrapper owning the m2m write is expected to call this
// around the mutation, once per phase and side. The table-backed REST
// handlers expose no m2m writes, so nothing there invokes it.
func (t *Tracker) ObserveRelation(ctx context.Context, rec *Record, relation string, op RelationOp, pre, reverse bool) error {
	if !t.registry.Tracked(rec.Entity) {
		return nil
	}
	if !t.registry.HasM2M(rec.Entity, relation) {
		return fmt.Errorf("history: entity %q has no m2m relation %q", rec.Entity, relation)
	}
	if reverse || !pre {
		return nil
	}
	pk := rec.Values[t.registry.PKField(rec.Entity)]
	c := Change{Entity: rec.Entity, PK: pk, Field: relation, Old: RelationTouched, New: RelationTouched, At: t.now()}
	if err := t.sink.Change(ctx, c); err != nil {
		return fmt.Errorf("history: record %s on %s.%s: %w", op, rec.Entity, relation, err)
	}
	t.logger.Debug("m2m change recorded",
		zap.String("entity", rec.Entity), zap.String("relation", relation), zap.String("op", string(op)))
	return nil
}
