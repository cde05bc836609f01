package parser

import (
	"strings"
	"time"
)

// Layouts tried in order. The Takeout display format carries a zone abbreviation.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"Jan 2, 2006, 3:04:05 PM MST",
	"Jan 2, 2006, 3:04:05 PM -07:00",
	"Jan 2, 2006, 3:04:05 PM",
	"2 Jan 2006, 15:04:05 MST",
}

// Offsets for zone abbreviations Takeout commonly prints. time.Parse would
// otherwise resolve them against the local zone, or to UTC when unknown.
var zoneOffsets = map[string]int{
	"UTC":  0,
	"GMT":  0,
	"PST":  -8 * 3600,
	"PDT":  -7 * 3600,
	"MST":  -7 * 3600,
	"MDT":  -6 * 3600,
	"CST":  -6 * 3600,
	"CDT":  -5 * 3600,
	"EST":  -5 * 3600,
	"EDT":  -4 * 3600,
	"BST":  1 * 3600,
	"CET":  1 * 3600,
	"CEST": 2 * 3600,
	"IST":  5*3600 + 1800,
	"JST":  9 * 3600,
}

// ParseTimestamp converts a timestamp string to seconds since the Unix epoch.
// Unparseable or empty input yields 0.
func ParseTimestamp(s string) float64 {
	t, ok := parseTime(s)
	if !ok {
		return 0
	}
	return float64(t.Unix()) + float64(t.Nanosecond())/1e9
}

func parseTime(s string) (time.Time, bool) {
	// Takeout separates the clock from AM/PM with a narrow no-break space
	s = strings.NewReplacer("\u202f", " ", "\u00a0", " ").Replace(strings.TrimSpace(s))
	if s == "" {
		return time.Time{}, false
	}

	for _, layout := range timestampLayouts {
		t, err := time.Parse(layout, s)
		if err != nil {
			continue
		}
		if strings.HasSuffix(layout, "MST") {
			t = fixZone(t)
		}
		return t, true
	}
	return time.Time{}, false
}

func fixZone(t time.Time) time.Time {
	name, _ := t.Zone()
	offset, ok := zoneOffsets[name]
	if !ok {
		return t
	}
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(),
		time.FixedZone(name, offset))
}
