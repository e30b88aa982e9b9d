package filter

import "fmt"

// Kind is the semantic type category of a field, distinct from its
// concrete column type.
type Kind int

const (
	KindInvalid Kind = iota
	KindInt
	KindFloat
	KindDate
	KindDateTime
	KindTime
	KindBool
	KindText
	KindUUID
	KindArray
	KindJSON
)

func (k Kind) String() string {
	switch k {
	case KindInt:
		return "integer"
	case KindFloat:
		return "float"
	case KindDate:
		return "date"
	case KindDateTime:
		return "datetime"
	case KindTime:
		return "time"
	case KindBool:
		return "boolean"
	case KindText:
		return "text"
	case KindUUID:
		return "uuid"
	case KindArray:
		return "array"
	case KindJSON:
		return "json"
	default:
		return "invalid"
	}
}

// Field identifies one filterable field on an entity. Immutable once
// resolved from schema metadata.
type Field struct {
	Entity   string
	Name     string
	Kind     Kind
	Elem     Kind // element kind, set only when Kind == KindArray
	Nullable bool
}

// Ident returns the fully-qualified identifier used in error messages.
func (f Field) Ident() string {
	return fmt.Sprintf("{%s}.{%s}", f.Entity, f.Name)
}

// elem returns the descriptor of the array's element, used for
// per-element value cleaning.
func (f Field) elem() Field {
	return Field{Entity: f.Entity, Name: f.Name, Kind: f.Elem, Nullable: f.Nullable}
}
