package filter

import (
	"encoding/json"
	"strings"
)

// newJSONFilter handles jsonb columns. has_key takes the key verbatim,
// has_keys/has_any_keys take a comma-separated key list, everything else
// parses the value as a JSON document with the canonical decoder so
// malformed-JSON errors read the same as the rest of the API.
//
// Key-existence lookups render as jsonb_exists* calls rather than the
// ?/?|/?& operators, which would collide with bind-parameter markers.
func newJSONFilter(f Field, _ *Resolver) FieldFilter {
	return &baseFilter{
		field:   f,
		allowed: jsonQualifiers,
		clean: func(q Qualifier, v string) (any, error) {
			switch q {
			case QHasKey:
				return v, nil
			case QHasKeys, QHasAnyKeys:
				if v == "" {
					return []string{}, nil
				}
				return strings.Split(v, listSeparator), nil
			default:
				doc, err := DecodeJSON(v)
				if err != nil {
					return nil, errInvalidValue(f, q, v, "JSON")
				}
				return doc, nil
			}
		},
		frag: jsonFrag,
	}
}

func jsonFrag(col string, q Qualifier, vals []any) Fragment {
	switch q {
	case QNone:
		return Fragment{Cond: col + " = ?::jsonb", Args: []any{marshalJSON(vals[0])}}
	case QContains:
		return Fragment{Cond: col + " @> ?::jsonb", Args: []any{marshalJSON(vals[0])}}
	case QContainedBy:
		return Fragment{Cond: col + " <@ ?::jsonb", Args: []any{marshalJSON(vals[0])}}
	case QHasKey:
		return Fragment{Cond: "jsonb_exists(" + col + ", ?)", Args: []any{vals[0]}}
	case QHasKeys:
		return Fragment{Cond: "jsonb_exists_all(" + col + ", ?)", Args: []any{vals[0]}}
	case QHasAnyKeys:
		return Fragment{Cond: "jsonb_exists_any(" + col + ", ?)", Args: []any{vals[0]}}
	default:
		return Fragment{}
	}
}

// marshalJSON re-encodes an already-validated document for binding.
func marshalJSON(doc any) string {
	bs, err := json.Marshal(doc)
	if err != nil {
		return "null"
	}
	return string(bs)
}
