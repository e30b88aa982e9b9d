package schema

import (
	"strings"

	"github.com/pgbind/pgbind/pkg/filter"
)

// KindFor maps an information_schema data type to a filter kind. For
// ARRAY columns the element kind comes from the udt name, which Postgres
// prefixes with an underscore (_int4, _text, ...).
func KindFor(dataType, udtName string) (kind, elem filter.Kind) {
	switch strings.ToLower(dataType) {
	case "smallint", "integer", "bigint", "smallserial", "serial", "bigserial":
		return filter.KindInt, filter.KindInvalid
	case "numeric", "decimal", "real", "double precision":
		return filter.KindFloat, filter.KindInvalid
	case "date":
		return filter.KindDate, filter.KindInvalid
	case "timestamp with time zone", "timestamp without time zone", "timestamp":
		return filter.KindDateTime, filter.KindInvalid
	case "time with time zone", "time without time zone", "time":
		return filter.KindTime, filter.KindInvalid
	case "boolean":
		return filter.KindBool, filter.KindInvalid
	case "text", "character varying", "character", "citext", "name":
		return filter.KindText, filter.KindInvalid
	case "uuid":
		return filter.KindUUID, filter.KindInvalid
	case "json", "jsonb":
		return filter.KindJSON, filter.KindInvalid
	case "array":
		return filter.KindArray, elemKind(udtName)
	default:
		return filter.KindInvalid, filter.KindInvalid
	}
}

func elemKind(udtName string) filter.Kind {
	switch strings.TrimPrefix(strings.ToLower(udtName), "_") {
	case "int2", "int4", "int8":
		return filter.KindInt
	case "numeric", "float4", "float8":
		return filter.KindFloat
	case "date":
		return filter.KindDate
	case "timestamp", "timestamptz":
		return filter.KindDateTime
	case "time", "timetz":
		return filter.KindTime
	case "bool":
		return filter.KindBool
	case "text", "varchar", "bpchar", "citext", "name":
		return filter.KindText
	case "uuid":
		return filter.KindUUID
	case "json", "jsonb":
		return filter.KindJSON
	default:
		return filter.KindInvalid
	}
}

// Field builds the filter field descriptor for the named column.
func (t *Table) Field(column string) (filter.Field, bool) {
	col, ok := t.Column(column)
	if !ok {
		return filter.Field{}, false
	}
	kind, elem := KindFor(col.DataType, col.UDTName)
	if kind == filter.KindInvalid {
		return filter.Field{}, false
	}
	return filter.Field{
		Entity:   t.Name,
		Name:     col.Name,
		Kind:     kind,
		Elem:     elem,
		Nullable: col.IsNullable,
	}, true
}
