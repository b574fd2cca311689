package export

import (
	"fmt"
	"time"

	"github.com/labstack/echo/v4"
)

// ParseDay reads a yyyy-mm-dd day in loc, or a full RFC 3339 timestamp.
func ParseDay(s string, loc *time.Location) (time.Time, error) {
	if t, err := time.ParseInLocation("2006-01-02", s, loc); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("invalid date %q: want yyyy-mm-dd", s)
}

// Range reads ?from= and ?to= into a half-open [from, to) range. A to given
// as a bare day includes that whole day. Missing bounds stay zero.
func Range(c echo.Context, loc *time.Location) (from, to time.Time, err error) {
	if loc == nil {
		loc = time.UTC
	}
	if s := c.QueryParam("from"); s != "" {
		if from, err = ParseDay(s, loc); err != nil {
			return from, to, err
		}
	}
	if s := c.QueryParam("to"); s != "" {
		if to, err = ParseDay(s, loc); err != nil {
			return from, to, err
		}
		if len(s) == len("2006-01-02") {
			to = to.AddDate(0, 0, 1)
		}
	}
	if !from.IsZero() && !to.IsZero() && !from.Before(to) {
		return from, to, fmt.Errorf("from must be before to")
	}
	return from, to, nil
}
