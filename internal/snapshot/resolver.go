// Package snapshot resolves which snapshot files in a catalog belong to a
// calendar date.
package snapshot

import (
	"sort"
	"strings"
	"time"
)

const (
	// Prefix starts every snapshot filename.
	Prefix = "picked_stocks_"
	// Ext ends every snapshot filename.
	Ext = ".json"

	dateLayout = "2006-01-02"
)

// CandidatesForDate returns the catalog entries for date, newest first.
// Filenames embed a sortable timestamp, so lexicographic descending order is
// chronological descending order. An empty date has no candidates.
func CandidatesForDate(catalog []string, date string) []string {
	if date == "" {
		return []string{}
	}
	prefix := Prefix + date
	out := make([]string, 0, 4)
	for _, name := range catalog {
		if strings.HasPrefix(name, prefix) {
			out = append(out, name)
		}
	}
	sort.Sort(sort.Reverse(sort.StringSlice(out)))
	return out
}

// DefaultSelection returns the most recent candidate, or "" if there are none.
func DefaultSelection(candidates []string) string {
	if len(candidates) == 0 {
		return ""
	}
	return candidates[0]
}

// Label returns the display label for a snapshot filename.
func Label(name string) string {
	return strings.TrimSuffix(strings.TrimPrefix(name, Prefix), Ext)
}

// DateOf returns the YYYY-MM-DD date embedded in a snapshot filename.
func DateOf(name string) (string, bool) {
	if !strings.HasPrefix(name, Prefix) {
		return "", false
	}
	rest := name[len(Prefix):]
	if len(rest) < len(dateLayout) {
		return "", false
	}
	d := rest[:len(dateLayout)]
	if _, err := time.Parse(dateLayout, d); err != nil {
		return "", false
	}
	return d, true
}

// Dates returns the distinct dates present in catalog, ascending.
func Dates(catalog []string) []string {
	seen := make(map[string]bool)
	dates := make([]string, 0)
	for _, name := range catalog {
		d, ok := DateOf(name)
		if !ok || seen[d] {
			continue
		}
		seen[d] = true
		dates = append(dates, d)
	}
	sort.Strings(dates)
	return dates
}

// ValidDate reports whether s is a YYYY-MM-DD calendar date.
func ValidDate(s string) bool {
	if len(s) != len(dateLayout) {
		return false
	}
	_, err := time.Parse(dateLayout, s)
	return err == nil
}

// ShiftDate moves a YYYY-MM-DD date by days. Invalid input is returned
// unchanged.
func ShiftDate(date string, days int) string {
	t, err := time.Parse(dateLayout, date)
	if err != nil {
		return date
	}
	return t.AddDate(0, 0, days).Format(dateLayout)
}
