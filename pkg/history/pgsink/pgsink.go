// Package pgsink stores change records in a PostgreSQL audit table.
package pgsink

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/pgbind/pgbind/pkg/history"
	pgxutil "github.com/pgbind/pgbind/pkg/pgx"
)

// DefaultTable is the audit table used when none is configured.
const DefaultTable = "pgbind_changes"

// Sink appends one row per change record. Old and new values are stored
// as jsonb so sentinel markers and typed values round-trip uniformly.
type Sink struct {
	conn  pgxutil.Conn
	table string
}

func New(conn pgxutil.Conn, table string) *Sink {
	if table == "" {
		table = DefaultTable
	}
	return &Sink{conn: conn, table: table}
}

// EnsureTable creates the audit table if it does not exist.
func (s *Sink) EnsureTable(ctx context.Context) error {
	sql := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
	id bigint GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
	entity text NOT NULL,
	pk jsonb,
	field text NOT NULL,
	old_value jsonb,
	new_value jsonb,
	changed_at timestamptz NOT NULL
)`, pgx.Identifier{s.table}.Sanitize())
	if _, err := s.conn.Exec(ctx, sql); err != nil {
		return fmt.Errorf("pgsink: ensure table %s: %w", s.table, err)
	}
	return nil
}

func (s *Sink) Change(ctx context.Context, c history.Change) error {
	pk, err := json.Marshal(c.PK)
	if err != nil {
		return fmt.Errorf("pgsink: marshal pk: %w", err)
	}
	oldVal, err := json.Marshal(c.Old)
	if err != nil {
		return fmt.Errorf("pgsink: marshal old value: %w", err)
	}
	newVal, err := json.Marshal(c.New)
	if err != nil {
		return fmt.Errorf("pgsink: marshal new value: %w", err)
	}
	sql := fmt.Sprintf(
		`INSERT INTO %s (entity, pk, field, old_value, new_value, changed_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		pgx.Identifier{s.table}.Sanitize())
	if _, err := s.conn.Exec(ctx, sql, c.Entity, pk, c.Field, oldVal, newVal, c.At); err != nil {
		return fmt.Errorf("pgsink: insert change: %w", err)
	}
	return nil
}
