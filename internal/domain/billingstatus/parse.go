package billingstatus

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

var dateTimeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.000Z0700",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02 03:04 PM",
}

var dateOnlyLayouts = []string{
	"2006-01-02",
	"2006/01/02",
	"01/02/2006",
	"Jan 2, 2006",
	"2 Jan 2006",
	"02 Jan 2006",
}

var (
	clock12 = regexp.MustCompile(`^(\d{1,2}):(\d{2})(?::(\d{2}))?\s*([AaPp])\.?\s*[Mm]\.?$`)
	clock24 = regexp.MustCompile(`^(\d{1,2}):(\d{2})(?::(\d{2}))?$`)
)

// parseDate parses a backend date string. dateOnly is set when the value
// carried no time of day. Zone-less values are read in loc.
func parseDate(s string, loc *time.Location) (t time.Time, dateOnly bool, ok bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false, false
	}
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil && len(s) >= 12 {
		return time.UnixMilli(ms).In(loc), false, true
	}
	for _, layout := range dateTimeLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, false, true
		}
	}
	for _, layout := range dateOnlyLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, true, true
		}
	}
	return time.Time{}, false, false
}

// ParseTimestamp reads any date or timestamp format the backend is known to
// send. Zone-less values are read in loc.
func ParseTimestamp(s string, loc *time.Location) (time.Time, bool) {
	if loc == nil {
		loc = time.UTC
	}
	t, _, ok := parseDate(s, loc)
	return t, ok
}

// parseClock parses "4:30 PM", "04:30pm", "16:30" or "16:30:15".
func parseClock(s string) (hour, min, sec int, ok bool) {
	s = strings.TrimSpace(s)
	if m := clock12.FindStringSubmatch(s); m != nil {
		hour, _ = strconv.Atoi(m[1])
		min, _ = strconv.Atoi(m[2])
		if m[3] != "" {
			sec, _ = strconv.Atoi(m[3])
		}
		if hour < 1 || hour > 12 || min > 59 || sec > 59 {
			return 0, 0, 0, false
		}
		pm := strings.EqualFold(m[4], "p")
		switch {
		case pm && hour != 12:
			hour += 12
		case !pm && hour == 12:
			hour = 0
		}
		return hour, min, sec, true
	}
	if m := clock24.FindStringSubmatch(s); m != nil {
		hour, _ = strconv.Atoi(m[1])
		min, _ = strconv.Atoi(m[2])
		if m[3] != "" {
			sec, _ = strconv.Atoi(m[3])
		}
		if hour > 23 || min > 59 || sec > 59 {
			return 0, 0, 0, false
		}
		return hour, min, sec, true
	}
	return 0, 0, 0, false
}

// instant is a parsed point in time plus whether it carries a time of day.
// clockMerged is set when that time came from a separate clock string.
type instant struct {
	at          time.Time
	hasClock    bool
	clockMerged bool
}

// combine parses a date and, when the date has no time of day, merges a
// separate clock string onto it. An unparseable clock leaves the date at
// midnight.
func combine(date, clock string, loc *time.Location) (instant, bool) {
	t, dateOnly, ok := parseDate(date, loc)
	if !ok {
		return instant{}, false
	}
	if !dateOnly {
		return instant{at: t, hasClock: true}, true
	}
	if h, m, s, ok := parseClock(clock); ok {
		return instant{at: time.Date(t.Year(), t.Month(), t.Day(), h, m, s, 0, loc), hasClock: true, clockMerged: true}, true
	}
	return instant{at: t}, true
}
