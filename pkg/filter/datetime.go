package filter

// dateTimeFilter accepts full timestamps with a zone or bare dates. A
// bare date rewrites the comparison to the date-truncated column, so a
// gt filter on 2024-01-02 does not exclude rows stamped just after
// midnight.
type dateTimeFilter struct {
	baseFilter
}

func newDateTimeFilter(f Field, _ *Resolver) FieldFilter {
	d := &dateTimeFilter{baseFilter{
		field:   f,
		allowed: comparableQualifiers,
		frag:    compareFrag,
	}}
	d.clean = func(q Qualifier, v string) (any, error) {
		ts, ok := parseDateTime(v)
		if !ok {
			return nil, errInvalidValue(f, q, v, "YYYY-MM-DD(THH:MM:SS.ffffff)ZONE")
		}
		return ts, nil
	}
	return d
}

func (d *dateTimeFilter) Predicate(q Qualifier, raw string, invert bool, pathPrefix string) (Fragment, error) {
	if err := d.CheckQualifier(q); err != nil {
		return Fragment{}, err
	}
	col := pathPrefix + quoteIdent(d.field.Name)

	if q == QIsNull {
		return maybeNot(Fragment{Cond: col + " IS NULL"}, invert), nil
	}

	values, err := d.splitValues(q, raw)
	if err != nil {
		return Fragment{}, err
	}

	cleaned := make([]any, len(values))
	dateOnly := false
	for i, v := range values {
		c, err := d.clean(q, v)
		if err != nil {
			return Fragment{}, err
		}
		ts := c.(Timestamp)
		if i == 0 {
			dateOnly = ts.DateOnly
		} else if ts.DateOnly != dateOnly {
			// All values of one in/range filter must share the same
			// resolved representation.
			return Fragment{}, errTypeMismatch(d.field, q, raw)
		}
		cleaned[i] = ts
	}

	if dateOnly {
		col += "::date"
	}
	return maybeNot(compareFrag(col, q, cleaned), invert), nil
}
