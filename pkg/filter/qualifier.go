package filter

import "slices"

// Qualifier is a named comparison operator applied to a field, e.g. gt,
// in, isnull. The zero value means plain equality.
type Qualifier string

const (
	QNone        Qualifier = ""
	QIn          Qualifier = "in"
	QGt          Qualifier = "gt"
	QGte         Qualifier = "gte"
	QLt          Qualifier = "lt"
	QLte         Qualifier = "lte"
	QRange       Qualifier = "range"
	QIsNull      Qualifier = "isnull"
	QExact       Qualifier = "exact"
	QIExact      Qualifier = "iexact"
	QContains    Qualifier = "contains"
	QIContains   Qualifier = "icontains"
	QStartsWith  Qualifier = "startswith"
	QIStartsWith Qualifier = "istartswith"
	QEndsWith    Qualifier = "endswith"
	QIEndsWith   Qualifier = "iendswith"
	QContainedBy Qualifier = "contained_by"
	QOverlap     Qualifier = "overlap"
	QHasKey      Qualifier = "has_key"
	QHasKeys     Qualifier = "has_keys"
	QHasAnyKeys  Qualifier = "has_any_keys"
)

// Per-kind allowed qualifier sets. Shared slices are never mutated after
// package init.
var (
	comparableQualifiers = []Qualifier{
		QNone, QIn, QGt, QGte, QLt, QLte, QRange, QIsNull,
	}
	textQualifiers = []Qualifier{
		QNone, QIn, QIExact, QContains, QIContains,
		QStartsWith, QIStartsWith, QEndsWith, QIEndsWith, QExact, QIsNull,
	}
	// UUID columns take the text lookups minus isnull.
	uuidQualifiers = []Qualifier{
		QNone, QIn, QIExact, QContains, QIContains,
		QStartsWith, QIStartsWith, QEndsWith, QIEndsWith, QExact,
	}
	boolQualifiers  = []Qualifier{QNone}
	arrayQualifiers = []Qualifier{QContains, QContainedBy, QOverlap, QIsNull}
	jsonQualifiers  = []Qualifier{
		QNone, QContains, QContainedBy, QHasKey, QHasAnyKeys, QHasKeys, QIsNull,
	}
)

// AllowedQualifiers returns the qualifier set for a field kind. The
// returned slice is shared and must not be modified.
func AllowedQualifiers(k Kind) []Qualifier {
	switch k {
	case KindInt, KindFloat, KindDate, KindDateTime, KindTime:
		return comparableQualifiers
	case KindText:
		return textQualifiers
	case KindUUID:
		return uuidQualifiers
	case KindBool:
		return boolQualifiers
	case KindArray:
		return arrayQualifiers
	case KindJSON:
		return jsonQualifiers
	default:
		return nil
	}
}

func qualifierAllowed(allowed []Qualifier, q Qualifier) bool {
	return slices.Contains(allowed, q)
}

// multiValued reports whether the qualifier takes a comma-separated list
// of values rather than a single one.
func (q Qualifier) multiValued() bool {
	return q == QIn || q == QRange
}
