package filter

import (
	"strings"
	"time"
)

// emptySliceFor picks a typed empty slice so pgx can still infer the
// array element type.
func emptySliceFor(k Kind) any {
	switch k {
	case KindInt:
		return []int64{}
	case KindFloat:
		return []float64{}
	case KindBool:
		return []bool{}
	case KindDate, KindDateTime:
		return []time.Time{}
	default:
		return []string{}
	}
}

// arrayFilter handles array-typed columns via the Postgres containment
// operators. Per-element cleaning delegates to the element kind's
// filter, resolved on demand and cached until Reset.
type arrayFilter struct {
	field    Field
	resolver *Resolver
	elem     FieldFilter
}

func newArrayFilter(f Field, r *Resolver) FieldFilter {
	return &arrayFilter{field: f, resolver: r}
}

func (a *arrayFilter) Field() Field { return a.field }

func (a *arrayFilter) CheckQualifier(q Qualifier) error {
	if !qualifierAllowed(arrayQualifiers, q) {
		return errUnsupportedQualifier(a.field, q)
	}
	return nil
}

// elemFilter resolves the element kind's filter, cached per instance.
func (a *arrayFilter) elemFilter() (FieldFilter, error) {
	if a.elem == nil {
		f, err := a.resolver.Resolve(a.field.elem())
		if err != nil {
			return nil, err
		}
		a.elem = f
	}
	return a.elem, nil
}

// Reset drops the cached element filter so the next use resolves anew.
func (a *arrayFilter) Reset() { a.elem = nil }

// CleanValue splits the raw string and cleans each element with the
// element kind's filter. An empty string is the empty array, not an
// array holding one empty string. isnull always cleans to true.
func (a *arrayFilter) CleanValue(q Qualifier, raw string) (any, error) {
	if q == QIsNull {
		return true, nil
	}
	if raw == "" {
		return []any{}, nil
	}
	ef, err := a.elemFilter()
	if err != nil {
		return nil, err
	}
	parts := strings.Split(raw, listSeparator)
	cleaned := make([]any, len(parts))
	for i, p := range parts {
		if cleaned[i], err = ef.CleanValue(q, p); err != nil {
			return nil, err
		}
	}
	return cleaned, nil
}

func (a *arrayFilter) Predicate(q Qualifier, raw string, invert bool, pathPrefix string) (Fragment, error) {
	if err := a.CheckQualifier(q); err != nil {
		return Fragment{}, err
	}
	col := pathPrefix + quoteIdent(a.field.Name)

	if q == QIsNull {
		return maybeNot(Fragment{Cond: col + " IS NULL"}, invert), nil
	}

	cleaned, err := a.CleanValue(q, raw)
	if err != nil {
		return Fragment{}, err
	}
	elems := cleaned.([]any)
	var arg any
	if len(elems) == 0 {
		arg = emptySliceFor(a.field.Elem)
	} else {
		arg = typedSlice(elems)
	}

	var frag Fragment
	switch q {
	case QContains:
		frag = Fragment{Cond: col + " @> ?", Args: []any{arg}}
	case QContainedBy:
		frag = Fragment{Cond: col + " <@ ?", Args: []any{arg}}
	case QOverlap:
		frag = Fragment{Cond: col + " && ?", Args: []any{arg}}
	}
	return maybeNot(frag, invert), nil
}
