package transform

import (
	"strings"
	"time"
)

var zonedLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999Z0700",
}

var naiveLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	time.DateTime,
	time.DateOnly,
}

// ShiftTime parses a torgi timestamp, converts it to UTC and adds offsetMinutes.
// The result is a zone-naive wall clock stored in UTC. Unparseable or empty input gives nil.
func ShiftTime(value string, offsetMinutes int) *time.Time {
	t, ok := parseTime(value)
	if !ok {
		return nil
	}

	t = t.Add(time.Duration(offsetMinutes) * time.Minute)
	return &t
}

func parseTime(value string) (time.Time, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, false
	}

	for _, layout := range zonedLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC(), true
		}
	}
	for _, layout := range naiveLayouts {
		if t, err := time.ParseInLocation(layout, value, time.UTC); err == nil {
			return t, true
		}
	}

	return time.Time{}, false
}
