// Package history records field-level change history for entities that
// opt in. A snapshot of last-known values is taken when an instance
// materializes; on every successful persist the tracker diffs current
// values against the snapshot and emits one change record per differing
// field. Relation (many-to-many) mutations emit a single relation-level
// marker instead of element-granular diffs.
package history

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Marker is a sentinel stored in place of a real value.
type Marker string

const (
	// NewInstance is the prior state of every field on a freshly created,
	// never-persisted instance.
	NewInstance Marker = "__new_instance__"
	// RelationTouched marks a many-to-many relation whose membership
	// changed; the engine does not diff set membership.
	RelationTouched Marker = "__relation_changed__"
)

// Change is one recorded field-level change.
type Change struct {
	Entity string    `json:"entity"`
	PK     any       `json:"pk"`
	Field  string    `json:"field"`
	Old    any       `json:"old"`
	New    any       `json:"new"`
	At     time.Time `json:"at"`
}

// Sink receives change records, e.g. an audit table or a message broker.
type Sink interface {
	Change(ctx context.Context, c Change) error
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(ctx context.Context, c Change) error

func (f SinkFunc) Change(ctx context.Context, c Change) error { return f(ctx, c) }

// MultiSink fans one change record out to several sinks, stopping at the
// first error.
type MultiSink []Sink

func (m MultiSink) Change(ctx context.Context, c Change) error {
	for _, s := range m {
		if err := s.Change(ctx, c); err != nil {
			return err
		}
	}
	return nil
}

// LogSink writes change records to a zap logger.
type LogSink struct {
	logger *zap.Logger
}

func NewLogSink(logger *zap.Logger) *LogSink {
	return &LogSink{logger: logger}
}

func (s *LogSink) Change(_ context.Context, c Change) error {
	s.logger.Info("change",
		zap.String("entity", c.Entity),
		zap.Any("pk", c.PK),
		zap.String("field", c.Field),
		zap.Any("old", c.Old),
		zap.Any("new", c.New),
		zap.Time("at", c.At),
	)
	return nil
}
