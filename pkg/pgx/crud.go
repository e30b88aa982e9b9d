package pgx

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5"
)

type queryBuilder struct {
	schema    string
	table     string
	values    []any
	nextIndex int
}

func newQueryBuilder(tableName string, schema ...string) *queryBuilder {
	schemaName := "public"
	if len(schema) > 0 && schema[0] != "" {
		schemaName = schema[0]
	}
	return &queryBuilder{
		schema:    schemaName,
		table:     tableName,
		nextIndex: 1,
	}
}

func (qb *queryBuilder) placeholder(value any) string {
	placeholder := fmt.Sprintf("$%d", qb.nextIndex)
	qb.nextIndex++
	qb.values = append(qb.values, value)
	return placeholder
}

func (qb *queryBuilder) tableIdentifier() string {
	return pgx.Identifier{qb.schema, qb.table}.Sanitize()
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// InsertRow inserts a record into the specified table and returns the
// stored row, including generated keys and defaults.
func InsertRow(ctx context.Context, conn Conn, tableName string, data map[string]any, schema ...string) (map[string]any, error) {
	qb := newQueryBuilder(tableName, schema...)

	var columns, placeholders []string
	for _, key := range sortedKeys(data) {
		columns = append(columns, pgx.Identifier{key}.Sanitize())
		placeholders = append(placeholders, qb.placeholder(data[key]))
	}

	query := fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s) RETURNING *",
		qb.tableIdentifier(),
		strings.Join(columns, ", "),
		strings.Join(placeholders, ", "),
	)

	rows, err := conn.Query(ctx, query, qb.values...)
	if err != nil {
		return nil, fmt.Errorf("failed to insert record: %w", err)
	}
	return singleRow(rows)
}

// UpdateRow updates a record and returns the stored row.
func UpdateRow(ctx context.Context, conn Conn, tableName string, data map[string]any, where map[string]any, schema ...string) (map[string]any, error) {
	qb := newQueryBuilder(tableName, schema...)

	var setClauses, whereClauses []string
	for _, key := range sortedKeys(data) {
		setClauses = append(setClauses, fmt.Sprintf("%s = %s",
			pgx.Identifier{key}.Sanitize(),
			qb.placeholder(data[key])))
	}
	for _, key := range sortedKeys(where) {
		whereClauses = append(whereClauses, fmt.Sprintf("%s = %s",
			pgx.Identifier{key}.Sanitize(),
			qb.placeholder(where[key])))
	}

	if len(whereClauses) == 0 {
		return nil, fmt.Errorf("no WHERE conditions provided")
	}

	query := fmt.Sprintf(
		"UPDATE %s SET %s WHERE %s RETURNING *",
		qb.tableIdentifier(),
		strings.Join(setClauses, ", "),
		strings.Join(whereClauses, " AND "),
	)

	rows, err := conn.Query(ctx, query, qb.values...)
	if err != nil {
		return nil, fmt.Errorf("failed to update record: %w", err)
	}
	return singleRow(rows)
}

// DeleteRow deletes a record and returns the row as it was stored.
func DeleteRow(ctx context.Context, conn Conn, tableName string, where map[string]any, schema ...string) (map[string]any, error) {
	qb := newQueryBuilder(tableName, schema...)

	var whereClauses []string
	for _, key := range sortedKeys(where) {
		whereClauses = append(whereClauses, fmt.Sprintf("%s = %s",
			pgx.Identifier{key}.Sanitize(),
			qb.placeholder(where[key])))
	}
	if len(whereClauses) == 0 {
		return nil, fmt.Errorf("no WHERE conditions provided")
	}

	query := fmt.Sprintf(
		"DELETE FROM %s WHERE %s RETURNING *",
		qb.tableIdentifier(),
		strings.Join(whereClauses, " AND "),
	)

	rows, err := conn.Query(ctx, query, qb.values...)
	if err != nil {
		return nil, fmt.Errorf("failed to delete record: %w", err)
	}
	return singleRow(rows)
}

// ErrNoRows indicates the statement matched no row.
var ErrNoRows = pgx.ErrNoRows

func singleRow(rows pgx.Rows) (map[string]any, error) {
	maps, err := RowsToMaps(rows)
	if err != nil {
		return nil, err
	}
	if len(maps) == 0 {
		return nil, ErrNoRows
	}
	return maps[0], nil
}

// RowsToMaps collects all rows into column-keyed maps.
func RowsToMaps(rows pgx.Rows) ([]map[string]any, error) {
	defer rows.Close()

	fields := rows.FieldDescriptions()
	var out []map[string]any
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, fmt.Errorf("read row values: %w", err)
		}
		row := make(map[string]any, len(fields))
		for i, fd := range fields {
			row[fd.Name] = values[i]
		}
		out = append(out, row)
	}
	return out, rows.Err()
}
