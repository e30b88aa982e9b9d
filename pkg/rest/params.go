package rest

import (
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/pgbind/pgbind/pkg/filter"
)

// RequestError is a malformed-request error. Request-shape problems
// answer 418 rather than 400, so clients can tell them apart from value
// errors.
type RequestError struct {
	Message string
}

func (e *RequestError) Error() string { return e.Message }

func (e *RequestError) HTTPStatus() int { return http.StatusTeapot }

func badRequest(format string, args ...any) error {
	return &RequestError{Message: fmt.Sprintf(format, args...)}
}

// FilterExpr is one parsed dot-parameter. Path holds the relation
// segments; the last segment names the field.
type FilterExpr struct {
	Path      []string
	Qualifier filter.Qualifier
	Invert    bool
	Raw       string
}

// OrderTerm is one order_by segment.
type OrderTerm struct {
	Field string
	Desc  bool
}

// Pagination carries the configured limit bounds.
type Pagination struct {
	DefaultLimit int
	MaxLimit     int
}

// ListParams holds the parsed query parameters of a list request.
// Limit nil means unlimited (limit=none).
type ListParams struct {
	Filters []FilterExpr
	OrderBy []OrderTerm
	Limit   *int
	Offset  int
	With    []string
}

func parseListParams(values url.Values, p Pagination) (ListParams, error) {
	params := ListParams{}

	limit := p.DefaultLimit
	params.Limit = &limit
	if raw := values.Get("limit"); raw != "" {
		if raw == "none" {
			params.Limit = nil
		} else {
			n, err := strconv.Atoi(raw)
			if err != nil {
				return params, badRequest("Invalid limit value %q.", raw)
			}
			if n < 0 {
				return params, badRequest("Limit must not be negative.")
			}
			limit = n
			params.Limit = &limit
		}
	}
	if p.MaxLimit > 0 && (params.Limit == nil || *params.Limit > p.MaxLimit) {
		return params, badRequest("Limit exceeds maximum of %d.", p.MaxLimit)
	}

	if raw := values.Get("offset"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return params, badRequest("Invalid offset value %q.", raw)
		}
		params.Offset = n
	}

	if raw := values.Get("order_by"); raw != "" {
		for _, term := range strings.Split(raw, ",") {
			term = strings.TrimSpace(term)
			if term == "" {
				continue
			}
			ot := OrderTerm{Field: term}
			if strings.HasPrefix(term, "-") {
				ot.Field = term[1:]
				ot.Desc = true
			}
			if ot.Field == "" {
				return params, badRequest("Invalid order_by value %q.", raw)
			}
			params.OrderBy = append(params.OrderBy, ot)
		}
	}

	if raw := values.Get("with"); raw != "" {
		for _, rel := range strings.Split(raw, ",") {
			if rel = strings.TrimSpace(rel); rel != "" {
				params.With = append(params.With, rel)
			}
		}
	}

	// Dot-parameters are filters. Sort keys so predicates bind in a
	// stable order.
	keys := make([]string, 0, len(values))
	for key := range values {
		if strings.HasPrefix(key, ".") {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	for _, key := range keys {
		for _, raw := range values[key] {
			expr, err := parseFilterKey(key)
			if err != nil {
				return params, err
			}
			expr.Raw = raw
			params.Filters = append(params.Filters, expr)
		}
	}

	return params, nil
}

// parseFilterKey splits ".path.to.field:qualifier:not" into its parts.
// Each "not" toggles inversion; at most one other modifier may remain and
// it becomes the qualifier.
func parseFilterKey(key string) (FilterExpr, error) {
	expr := FilterExpr{}

	head, modifiers := key, ""
	if i := strings.Index(key, ":"); i >= 0 {
		head, modifiers = key[:i], key[i+1:]
	}

	expr.Path = strings.Split(strings.TrimPrefix(head, "."), ".")
	for _, seg := range expr.Path {
		if seg == "" {
			return expr, badRequest("Invalid filter parameter %q.", key)
		}
	}

	if modifiers != "" {
		for _, mod := range strings.Split(modifiers, ":") {
			switch {
			case mod == "not":
				expr.Invert = !expr.Invert
			case mod != "" && expr.Qualifier == filter.QNone:
				expr.Qualifier = filter.Qualifier(mod)
			default:
				return expr, badRequest("Invalid filter parameter %q.", key)
			}
		}
	}

	return expr, nil
}
