package util

import (
	"fmt"
	"time"
)

// DateLayout is the calendar date format used in snapshot filenames.
const DateLayout = "2006-01-02"

// LoadLocation resolves a timezone name. Empty means the host's local zone.
func LoadLocation(name string) (*time.Location, error) {
	if name == "" || name == "Local" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("loading timezone %q: %w", name, err)
	}
	return loc, nil
}

// Today returns the current calendar date in loc as YYYY-MM-DD.
func Today(loc *time.Location) string {
	return DateIn(time.Now(), loc)
}

// DateIn formats t as a calendar date in loc. A nil loc means local time.
func DateIn(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.Local
	}
	return t.In(loc).Format(DateLayout)
}
