// Package timefmt shifts UTC instants into fixed UTC offsets and renders them
// for display. Offsets are raw shifts, never zone lookups.
package timefmt

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ncruces/go-strftime"
)

// hourThreshold separates offsets given in hours from offsets in minutes:
// any offset strictly between -16 and 16 is read as hours.
const hourThreshold = 16

// OffsetMinutes normalizes an offset to minutes using the hours/minutes rule.
func OffsetMinutes(offset int) int {
	if offset > -hourThreshold && offset < hourThreshold {
		return offset * 60
	}
	return offset
}

// Zone returns the fixed zone for offset, named like "+08:00".
func Zone(offset int) *time.Location {
	m := OffsetMinutes(offset)
	sign := '+'
	abs := m
	if m < 0 {
		sign = '-'
		abs = -m
	}
	name := fmt.Sprintf("%c%02d:%02d", sign, abs/60, abs%60)
	return time.FixedZone(name, m*60)
}

// LocalTime reads t as UTC and reinterprets it under the fixed offset.
// The instant is unchanged; only the wall clock moves.
func LocalTime(t time.Time, offset int) time.Time {
	return t.UTC().In(Zone(offset))
}

// FormatLocalTime renders LocalTime(t, offset) with pattern. Patterns that
// contain '%' are strftime patterns; anything else is a Go reference layout.
func FormatLocalTime(t time.Time, offset int, pattern string) string {
	lt := LocalTime(t, offset)
	if strings.ContainsRune(pattern, '%') {
		return strftime.Format(pattern, lt)
	}
	return lt.Format(pattern)
}

// ParseOffset accepts "+08:00", "+0800", "-5" (hours) and "480" (minutes)
// and returns an offset in the hours/minutes convention used by LocalTime.
func ParseOffset(s string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, errors.New("timefmt: empty offset")
	}

	if digits := strings.TrimLeft(s, "+-"); !strings.Contains(s, ":") && len(digits) <= 3 {
		n, err := strconv.Atoi(s)
		if err != nil {
			return 0, fmt.Errorf("timefmt: invalid offset %q: %w", s, err)
		}
		return n, nil
	}

	sign := 1
	rest := s
	switch s[0] {
	case '+':
		rest = s[1:]
	case '-':
		sign = -1
		rest = s[1:]
	}
	rest = strings.ReplaceAll(rest, ":", "")
	if len(rest) != 4 {
		return 0, fmt.Errorf("timefmt: invalid offset %q", s)
	}
	hh, err := strconv.Atoi(rest[:2])
	if err != nil {
		return 0, fmt.Errorf("timefmt: invalid offset %q: %w", s, err)
	}
	mm, err := strconv.Atoi(rest[2:])
	if err != nil {
		return 0, fmt.Errorf("timefmt: invalid offset %q: %w", s, err)
	}
	if hh > 14 || mm > 59 {
		return 0, fmt.Errorf("timefmt: offset out of range %q", s)
	}
	m := sign * (hh*60 + mm)
	if m > -hourThreshold && m < hourThreshold && m != 0 {
		// Keep small minute offsets from being read back as hours.
		return 0, fmt.Errorf("timefmt: offset %q too small to express", s)
	}
	return m, nil
}

var parseLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseTime parses the timestamp formats seen in upstream feeds. Values
// without a zone are taken as UTC.
func ParseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, errors.New("timefmt: empty timestamp")
	}
	for _, layout := range parseLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("timefmt: unrecognized timestamp %q", s)
}
