package rest

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pgbind/pgbind/pkg/filter"
)

var testPagination = Pagination{DefaultLimit: 20, MaxLimit: 100}

func TestParseListParamsDefaults(t *testing.T) {
	params, err := parseListParams(url.Values{}, testPagination)
	require.NoError(t, err)
	require.NotNil(t, params.Limit)
	assert.Equal(t, 20, *params.Limit)
	assert.Equal(t, 0, params.Offset)
	assert.Empty(t, params.Filters)
}

func TestParseListParamsLimit(t *testing.T) {
	params, err := parseListParams(url.Values{"limit": {"50"}, "offset": {"10"}}, testPagination)
	require.NoError(t, err)
	assert.Equal(t, 50, *params.Limit)
	assert.Equal(t, 10, params.Offset)

	// limit=none is unlimited, but a configured maximum forbids it.
	_, err = parseListParams(url.Values{"limit": {"none"}}, testPagination)
	requireStatus(t, err, 418)

	params, err = parseListParams(url.Values{"limit": {"none"}}, Pagination{DefaultLimit: 20})
	require.NoError(t, err)
	assert.Nil(t, params.Limit)

	for _, bad := range []string{"abc", "-1", "1.5"} {
		_, err := parseListParams(url.Values{"limit": {bad}}, testPagination)
		requireStatus(t, err, 418)
	}

	_, err = parseListParams(url.Values{"limit": {"101"}}, testPagination)
	requireStatus(t, err, 418)
}

func TestParseListParamsOrderBy(t *testing.T) {
	params, err := parseListParams(url.Values{"order_by": {"-name,id"}}, testPagination)
	require.NoError(t, err)
	require.Len(t, params.OrderBy, 2)
	assert.Equal(t, OrderTerm{Field: "name", Desc: true}, params.OrderBy[0])
	assert.Equal(t, OrderTerm{Field: "id"}, params.OrderBy[1])

	_, err = parseListParams(url.Values{"order_by": {"-"}}, testPagination)
	requireStatus(t, err, 418)
}

func TestParseListParamsWith(t *testing.T) {
	params, err := parseListParams(url.Values{"with": {"caretaker, zoo"}}, testPagination)
	require.NoError(t, err)
	assert.Equal(t, []string{"caretaker", "zoo"}, params.With)
}

func TestParseFilterKey(t *testing.T) {
	tests := []struct {
		key       string
		path      []string
		qualifier filter.Qualifier
		invert    bool
	}{
		{".name", []string{"name"}, filter.QNone, false},
		{".name:icontains", []string{"name"}, filter.QIContains, false},
		{".name:not", []string{"name"}, filter.QNone, true},
		{".name:not:icontains", []string{"name"}, filter.QIContains, true},
		{".name:icontains:not", []string{"name"}, filter.QIContains, true},
		{".name:not:not", []string{"name"}, filter.QNone, false},
		{".caretaker.name:startswith", []string{"caretaker", "name"}, filter.QStartsWith, false},
	}
	for _, tt := range tests {
		expr, err := parseFilterKey(tt.key)
		require.NoError(t, err, tt.key)
		assert.Equal(t, tt.path, expr.Path, tt.key)
		assert.Equal(t, tt.qualifier, expr.Qualifier, tt.key)
		assert.Equal(t, tt.invert, expr.Invert, tt.key)
	}

	for _, bad := range []string{".", ".a..b", ".name:in:gt"} {
		_, err := parseFilterKey(bad)
		requireStatus(t, err, 418, bad)
	}
}

func TestParseListParamsCollectsFilters(t *testing.T) {
	values := url.Values{
		".name:icontains": {"duck"},
		".age:gte":        {"3"},
		"limit":           {"5"},
	}
	params, err := parseListParams(values, testPagination)
	require.NoError(t, err)
	require.Len(t, params.Filters, 2)
	// Keys sort lexicographically, so .age comes first.
	assert.Equal(t, []string{"age"}, params.Filters[0].Path)
	assert.Equal(t, "3", params.Filters[0].Raw)
	assert.Equal(t, []string{"name"}, params.Filters[1].Path)
	assert.Equal(t, "duck", params.Filters[1].Raw)
}

func requireStatus(t *testing.T, err error, status int, msgAndArgs ...any) {
	t.Helper()
	require.Error(t, err, msgAndArgs...)
	var reqErr *RequestError
	require.ErrorAs(t, err, &reqErr, msgAndArgs...)
	assert.Equal(t, status, reqErr.HTTPStatus(), msgAndArgs...)
}
