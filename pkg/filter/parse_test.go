package filter

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDate(t *testing.T) {
	testCases := []struct {
		in string
		ok bool
	}{
		{"2024-02-29", true},
		{"2024-2-29", false},
		{"20240229", false},
		{"2024-02-29T00:00:00Z", false},
		{"", false},
	}
	for _, tc := range testCases {
		_, ok := parseDate(tc.in)
		assert.Equal(t, tc.ok, ok, "in=%q", tc.in)
	}
}

func TestParseDateTime(t *testing.T) {
	ts, ok := parseDateTime("2024-05-01T08:30:15.5+0130")
	require.True(t, ok)
	assert.False(t, ts.DateOnly)
	assert.Equal(t, 500000*1000, ts.Time.Nanosecond())
	_, offset := ts.Time.Zone()
	assert.Equal(t, 90*60, offset)

	// Space separator and Z zone
	ts, ok = parseDateTime("2024-05-01 08:30:15Z")
	require.True(t, ok)
	assert.Equal(t, time.Date(2024, 5, 1, 8, 30, 15, 0, time.UTC).Unix(), ts.Time.Unix())

	// Hour-only negative offset is padded to whole hours
	ts, ok = parseDateTime("2024-05-01T08:30:15-05")
	require.True(t, ok)
	_, offset = ts.Time.Zone()
	assert.Equal(t, -5*3600, offset)

	// Bare date resolves date-only
	ts, ok = parseDateTime("2024-05-01")
	require.True(t, ok)
	assert.True(t, ts.DateOnly)

	for _, bad := range []string{
		"2024-05-01T08:30:15",   // missing zone
		"2024-05-01T08:30Z",     // missing seconds
		"2024-05-01T08:30:15CE", // named zones not accepted
	} {
		_, ok := parseDateTime(bad)
		assert.False(t, ok, "in=%q", bad)
	}
}

func TestParseDateTimeRejectsOutOfRangeComponents(t *testing.T) {
	// time.Date would normalize these to a different instant; they must
	// be rejected, not rewritten.
	for _, bad := range []string{
		"2024-02-30T10:00:00Z", // no such day
		"2023-02-29T00:00:00Z", // not a leap year
		"2024-13-01T00:00:00Z", // no such month
		"2024-00-10T00:00:00Z",
		"2024-05-00T00:00:00Z",
		"2024-05-01T24:00:00Z", // no such hour
		"2024-05-01T10:60:00Z",
		"2024-05-01T10:00:61Z",
		"2024-05-01T10:00:00+99",   // zone hour out of range
		"2024-05-01T10:00:00+0170", // zone minute out of range
	} {
		_, ok := parseDateTime(bad)
		assert.False(t, ok, "in=%q", bad)
	}

	// Leap day in a leap year stays valid.
	ts, ok := parseDateTime("2024-02-29T10:00:00Z")
	require.True(t, ok)
	assert.Equal(t, time.Date(2024, 2, 29, 10, 0, 0, 0, time.UTC).Unix(), ts.Time.Unix())
}

func TestParseTimeOfDay(t *testing.T) {
	tod, ok := parseTimeOfDay("12:30:45.5+02")
	require.True(t, ok)
	// Microseconds right-padded to 6 digits, offset minutes zero-filled.
	assert.Equal(t, "12:30:45.500000+02:00", tod.String())

	tod, ok = parseTimeOfDay("23:59:59Z")
	require.True(t, ok)
	assert.Equal(t, "23:59:59.000000+00:00", tod.String())

	tod, ok = parseTimeOfDay("06:00:00-0930")
	require.True(t, ok)
	assert.Equal(t, "06:00:00.000000-09:30", tod.String())

	for _, bad := range []string{"25:00:00Z", "12:61:00Z", "12:30:45", "12:30:45+99", "noon"} {
		_, ok := parseTimeOfDay(bad)
		assert.False(t, ok, "in=%q", bad)
	}
}

func TestDecodeJSON(t *testing.T) {
	doc, err := DecodeJSON(`{"a": [1, 2]}`)
	require.NoError(t, err)
	assert.Contains(t, doc, "a")

	_, err = DecodeJSON(`{"a":}`)
	assert.Error(t, err)

	_, err = DecodeJSON(`{} trailing`)
	assert.Error(t, err)
}
