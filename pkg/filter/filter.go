package filter

import (
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
)

// FieldFilter translates one filter expression about one field into a
// predicate Fragment.
type FieldFilter interface {
	// Field returns the descriptor this filter was resolved for.
	Field() Field
	// CheckQualifier fails with ErrUnsupportedQualifier if the qualifier
	// is not in the field kind's allowed set. Side-effect free.
	CheckQualifier(q Qualifier) error
	// CleanValue coerces one raw string into the kind's value type,
	// failing with ErrInvalidValue on malformed input.
	CleanValue(q Qualifier, raw string) (any, error)
	// Predicate validates the qualifier, splits and cleans the raw value,
	// and builds the SQL condition. pathPrefix (e.g. a join alias plus
	// dot) is prepended to the quoted column name. A failed build never
	// returns a partial fragment.
	Predicate(q Qualifier, raw string, invert bool, pathPrefix string) (Fragment, error)
}

// listSeparator splits multi-valued qualifier inputs.
const listSeparator = ","

func quoteIdent(name string) string {
	return pgx.Identifier{name}.Sanitize()
}

// baseFilter carries the shared qualifier-check / split / clean / build
// orchestration. Kind-specific behavior plugs in via clean and frag.
type baseFilter struct {
	field   Field
	allowed []Qualifier
	clean   func(q Qualifier, v string) (any, error)
	frag    func(col string, q Qualifier, vals []any) Fragment
}

func (b *baseFilter) Field() Field { return b.field }

func (b *baseFilter) CheckQualifier(q Qualifier) error {
	if !qualifierAllowed(b.allowed, q) {
		return errUnsupportedQualifier(b.field, q)
	}
	return nil
}

// CleanValue coerces one raw value. isnull ignores the literal and
// always cleans to true: only the qualifier's presence matters.
func (b *baseFilter) CleanValue(q Qualifier, raw string) (any, error) {
	if q == QIsNull {
		return true, nil
	}
	return b.clean(q, raw)
}

// splitValues separates the raw input per the qualifier's arity. Only in
// and range split on the list separator; range requires exactly two
// values, in order (lower, upper).
func (b *baseFilter) splitValues(q Qualifier, raw string) ([]string, error) {
	if !q.multiValued() {
		return []string{raw}, nil
	}
	values := strings.Split(raw, listSeparator)
	if q == QRange && len(values) != 2 {
		return nil, errEmptyValue(b.field, q,
			"range requires exactly 2 values for "+b.field.Ident())
	}
	return values, nil
}

func (b *baseFilter) Predicate(q Qualifier, raw string, invert bool, pathPrefix string) (Fragment, error) {
	if err := b.CheckQualifier(q); err != nil {
		return Fragment{}, err
	}
	col := pathPrefix + quoteIdent(b.field.Name)

	// isnull ignores the literal value: only the qualifier's presence
	// matters.
	if q == QIsNull {
		return maybeNot(Fragment{Cond: col + " IS NULL"}, invert), nil
	}

	values, err := b.splitValues(q, raw)
	if err != nil {
		return Fragment{}, err
	}
	if len(values) == 0 {
		return Fragment{}, errEmptyValue(b.field, q,
			"value for filter "+b.field.Ident()+" may not be empty")
	}

	cleaned := make([]any, len(values))
	for i, v := range values {
		if cleaned[i], err = b.clean(q, v); err != nil {
			return Fragment{}, err
		}
	}

	return maybeNot(b.frag(col, q, cleaned), invert), nil
}

func maybeNot(f Fragment, invert bool) Fragment {
	if invert {
		return f.Not()
	}
	return f
}

// compareFrag renders the ordered-comparison and text-lookup qualifiers
// shared by the scalar field kinds.
func compareFrag(col string, q Qualifier, vals []any) Fragment {
	switch q {
	case QNone, QExact:
		return Fragment{Cond: col + " = ?", Args: []any{bindable(vals[0])}}
	case QGt:
		return Fragment{Cond: col + " > ?", Args: []any{bindable(vals[0])}}
	case QGte:
		return Fragment{Cond: col + " >= ?", Args: []any{bindable(vals[0])}}
	case QLt:
		return Fragment{Cond: col + " < ?", Args: []any{bindable(vals[0])}}
	case QLte:
		return Fragment{Cond: col + " <= ?", Args: []any{bindable(vals[0])}}
	case QIn:
		return Fragment{Cond: col + " = ANY(?)", Args: []any{typedSlice(vals)}}
	case QRange:
		return Fragment{Cond: col + " BETWEEN ? AND ?", Args: []any{bindable(vals[0]), bindable(vals[1])}}
	case QIExact:
		return Fragment{Cond: col + " ILIKE ?", Args: []any{escapeLike(str(vals[0]))}}
	case QContains:
		return Fragment{Cond: col + " LIKE ?", Args: []any{"%" + escapeLike(str(vals[0])) + "%"}}
	case QIContains:
		return Fragment{Cond: col + " ILIKE ?", Args: []any{"%" + escapeLike(str(vals[0])) + "%"}}
	case QStartsWith:
		return Fragment{Cond: col + " LIKE ?", Args: []any{escapeLike(str(vals[0])) + "%"}}
	case QIStartsWith:
		return Fragment{Cond: col + " ILIKE ?", Args: []any{escapeLike(str(vals[0])) + "%"}}
	case QEndsWith:
		return Fragment{Cond: col + " LIKE ?", Args: []any{"%" + escapeLike(str(vals[0]))}}
	case QIEndsWith:
		return Fragment{Cond: col + " ILIKE ?", Args: []any{"%" + escapeLike(str(vals[0]))}}
	default:
		return Fragment{}
	}
}

func str(v any) string {
	s, _ := v.(string)
	return s
}

// escapeLike neutralizes LIKE metacharacters in a literal value.
// The backslash is the default LIKE escape character in Postgres.
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(v string) string {
	return likeEscaper.Replace(v)
}

// bindable converts cleaned values to types pgx encodes directly.
func bindable(v any) any {
	switch t := v.(type) {
	case Timestamp:
		return t.Time
	case TimeOfDay:
		return t.String()
	default:
		return v
	}
}

// typedSlice turns a cleaned value list into a concrete slice so pgx can
// infer the array element type for = ANY(...) parameters.
func typedSlice(vals []any) any {
	if len(vals) == 0 {
		return []string{}
	}
	switch vals[0].(type) {
	case int64:
		return collect[int64](vals)
	case float64:
		return collect[float64](vals)
	case bool:
		return collect[bool](vals)
	case string:
		return collect[string](vals)
	case time.Time:
		return collect[time.Time](vals)
	case Timestamp:
		out := make([]time.Time, len(vals))
		for i, v := range vals {
			out[i] = v.(Timestamp).Time
		}
		return out
	case TimeOfDay:
		out := make([]string, len(vals))
		for i, v := range vals {
			out[i] = v.(TimeOfDay).String()
		}
		return out
	default:
		return vals
	}
}

func collect[T any](vals []any) []T {
	out := make([]T, len(vals))
	for i, v := range vals {
		out[i], _ = v.(T)
	}
	return out
}

func newIntFilter(f Field, _ *Resolver) FieldFilter {
	return &baseFilter{
		field:   f,
		allowed: comparableQualifiers,
		clean: func(q Qualifier, v string) (any, error) {
			n, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				return nil, errInvalidValue(f, q, v, "integer")
			}
			return n, nil
		},
		frag: compareFrag,
	}
}

func newFloatFilter(f Field, _ *Resolver) FieldFilter {
	return &baseFilter{
		field:   f,
		allowed: comparableQualifiers,
		clean: func(q Qualifier, v string) (any, error) {
			n, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return nil, errInvalidValue(f, q, v, "float")
			}
			return n, nil
		},
		frag: compareFrag,
	}
}

func newDateFilter(f Field, _ *Resolver) FieldFilter {
	return &baseFilter{
		field:   f,
		allowed: comparableQualifiers,
		clean: func(q Qualifier, v string) (any, error) {
			t, ok := parseDate(v)
			if !ok {
				return nil, errInvalidValue(f, q, v, "YYYY-MM-DD")
			}
			return t, nil
		},
		frag: compareFrag,
	}
}

func newTimeFilter(f Field, _ *Resolver) FieldFilter {
	return &baseFilter{
		field:   f,
		allowed: comparableQualifiers,
		clean: func(q Qualifier, v string) (any, error) {
			t, ok := parseTimeOfDay(v)
			if !ok {
				return nil, errInvalidValue(f, q, v, "HH:MM:SS(.ffffff)ZONE")
			}
			return t, nil
		},
		frag: compareFrag,
	}
}

func newBoolFilter(f Field, _ *Resolver) FieldFilter {
	return &baseFilter{
		field:   f,
		allowed: boolQualifiers,
		clean: func(q Qualifier, v string) (any, error) {
			switch v {
			case "true":
				return true, nil
			case "false":
				return false, nil
			default:
				return nil, errInvalidValue(f, q, v, "boolean")
			}
		},
		frag: compareFrag,
	}
}

// Text values are always valid as-is.
func newTextFilter(f Field, _ *Resolver) FieldFilter {
	return &baseFilter{
		field:   f,
		allowed: textQualifiers,
		clean:   func(_ Qualifier, v string) (any, error) { return v, nil },
		frag:    compareFrag,
	}
}

// UUID values pass through unvalidated: a contains lookup does not need
// a well-formed uuid.
func newUUIDFilter(f Field, _ *Resolver) FieldFilter {
	return &baseFilter{
		field:   f,
		allowed: uuidQualifiers,
		clean:   func(_ Qualifier, v string) (any, error) { return v, nil },
		frag:    compareFrag,
	}
}
