package filter

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	dateRe     = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	dateTimeRe = regexp.MustCompile(`^(\d{4})-(\d{2})-(\d{2})[T ](\d{2}):(\d{2}):(\d{2})(?:\.(\d{1,6}))?(Z|[+-]\d{2}(?:\d{2})?)$`)
	timeRe     = regexp.MustCompile(`^(\d{2}):(\d{2}):(\d{2})(?:\.(\d{1,6}))?(Z|[+-]\d{2}(?:\d{2})?)$`)
)

// Timestamp is a cleaned datetime filter value. DateOnly marks a bare
// date, which compares against the date-truncated column instead of the
// raw timestamp.
type Timestamp struct {
	Time     time.Time
	DateOnly bool
}

// TimeOfDay is a cleaned zoned time-of-day value, wire-formatted for a
// timetz column.
type TimeOfDay struct {
	Hour, Minute, Second, Micro int
	Offset                      int // seconds east of UTC
}

func (t TimeOfDay) String() string {
	sign := "+"
	off := t.Offset
	if off < 0 {
		sign = "-"
		off = -off
	}
	return fmt.Sprintf("%02d:%02d:%02d.%06d%s%02d:%02d",
		t.Hour, t.Minute, t.Second, t.Micro, sign, off/3600, off%3600/60)
}

// parseZone resolves Z or ±HH[MM] into seconds east of UTC. The offset
// is right-padded with zero minutes, so +01 means +0100. Offsets beyond
// ±23:59 are rejected.
func parseZone(z string) (int, bool) {
	if z == "Z" {
		return 0, true
	}
	padded := z
	for len(padded) < 5 {
		padded += "0"
	}
	h, _ := strconv.Atoi(padded[1:3])
	m, _ := strconv.Atoi(padded[3:5])
	if h > 23 || m > 59 {
		return 0, false
	}
	off := h*3600 + m*60
	if padded[0] == '-' {
		off = -off
	}
	return off, true
}

// parseMicro right-pads a fractional-second capture to microseconds.
func parseMicro(frac string) int {
	if frac == "" {
		return 0
	}
	n, _ := strconv.Atoi(frac + strings.Repeat("0", 6-len(frac)))
	return n
}

func parseDate(v string) (time.Time, bool) {
	if !dateRe.MatchString(v) {
		return time.Time{}, false
	}
	t, err := time.Parse("2006-01-02", v)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

func parseDateTime(v string) (Timestamp, bool) {
	if m := dateTimeRe.FindStringSubmatch(v); m != nil {
		atoi := func(s string) int { n, _ := strconv.Atoi(s); return n }
		off, ok := parseZone(m[8])
		if !ok {
			return Timestamp{}, false
		}
		year, month, day := atoi(m[1]), atoi(m[2]), atoi(m[3])
		hour, minute, sec := atoi(m[4]), atoi(m[5]), atoi(m[6])
		t := time.Date(
			year, time.Month(month), day,
			hour, minute, sec,
			parseMicro(m[7])*1000,
			time.FixedZone("", off),
		)
		// time.Date normalizes out-of-range components (Feb 30 becomes
		// Mar 1); a round-trip mismatch means the input was malformed.
		if t.Year() != year || t.Month() != time.Month(month) || t.Day() != day ||
			t.Hour() != hour || t.Minute() != minute || t.Second() != sec {
			return Timestamp{}, false
		}
		return Timestamp{Time: t}, true
	}
	if t, ok := parseDate(v); ok {
		return Timestamp{Time: t, DateOnly: true}, true
	}
	return Timestamp{}, false
}

func parseTimeOfDay(v string) (TimeOfDay, bool) {
	m := timeRe.FindStringSubmatch(v)
	if m == nil {
		return TimeOfDay{}, false
	}
	atoi := func(s string) int { n, _ := strconv.Atoi(s); return n }
	off, ok := parseZone(m[5])
	if !ok {
		return TimeOfDay{}, false
	}
	t := TimeOfDay{
		Hour:   atoi(m[1]),
		Minute: atoi(m[2]),
		Second: atoi(m[3]),
		Micro:  parseMicro(m[4]),
		Offset: off,
	}
	if t.Hour > 23 || t.Minute > 59 || t.Second > 59 {
		return TimeOfDay{}, false
	}
	return t, true
}

// DecodeJSON is the canonical JSON decoder for filter values: a single
// document, numbers preserved as json.Number, trailing content rejected.
// Error reporting is uniform with the rest of the API's JSON handling.
func DecodeJSON(raw string) (any, error) {
	dec := json.NewDecoder(bytes.NewReader([]byte(raw)))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return nil, err
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, fmt.Errorf("trailing data after JSON document")
	}
	return doc, nil
}
