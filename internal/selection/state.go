// Package selection holds the per-session date/file selection and the ranked
// stocks for it. State transitions are pure functions; Controller drives
// them from a single event loop and performs the fetches they request.
package selection

import (
	"errors"
	"slices"

	"stockpicks/internal/domain"
	"stockpicks/internal/rank"
	"stockpicks/internal/snapshot"
)

// ErrUnknownFile is returned when a file outside the current candidates is
// selected.
var ErrUnknownFile = errors.New("file is not a candidate for the selected date")

// Key identifies the selection a fetch was issued for.
type Key struct {
	Date string
	File string
}

// Fetch asks the driver to load the snapshot named by Key.File and report
// back with the same Key.
type Fetch struct {
	Key Key
}

// State is an immutable selection snapshot. Transitions return a new State
// and never modify slices reachable from the old one.
//
// Invariants: Candidates == snapshot.CandidatesForDate(Catalog, Date), and
// File is "" or a member of Candidates.
type State struct {
	Catalog    []string
	Date       string
	Candidates []string
	File       string
	Stocks     []domain.RankedStock
}

// Key returns the current selection key.
func (s State) Key() Key {
	return Key{Date: s.Date, File: s.File}
}

// OnCatalogLoaded stores a freshly fetched catalog, seeds Date with today and
// then behaves like a date change.
func (s State) OnCatalogLoaded(catalog []string, today string) (State, *Fetch) {
	s.Catalog = catalog
	return s.OnDateChanged(today)
}

// OnCatalogReloaded swaps in a refreshed catalog for the same date. A file
// the user picked stays selected while it is still listed; a selection that
// was the newest file follows the new newest one. When the key is unchanged
// the current stocks stay visible until the refetch reports back.
func (s State) OnCatalogReloaded(catalog []string) (State, *Fetch) {
	wasDefault := s.File == snapshot.DefaultSelection(s.Candidates)
	prev := s.Key()

	s.Catalog = catalog
	s.Candidates = snapshot.CandidatesForDate(catalog, s.Date)
	if wasDefault || !slices.Contains(s.Candidates, s.File) {
		s.File = snapshot.DefaultSelection(s.Candidates)
	}
	if s.Key() != prev {
		s.Stocks = []domain.RankedStock{}
	}
	if s.File == "" {
		return s, nil
	}
	return s, &Fetch{Key: s.Key()}
}

// OnCatalogFailed leaves an empty catalog. The date is kept so the view still
// shows which day was asked for.
func (s State) OnCatalogFailed() State {
	s.Catalog = []string{}
	s.Candidates = []string{}
	s.File = ""
	s.Stocks = []domain.RankedStock{}
	return s
}

// OnDateChanged recomputes candidates for date and selects the newest one.
// With no candidates the file and stocks are cleared immediately.
func (s State) OnDateChanged(date string) (State, *Fetch) {
	s.Date = date
	s.Candidates = snapshot.CandidatesForDate(s.Catalog, date)
	s.File = snapshot.DefaultSelection(s.Candidates)
	s.Stocks = []domain.RankedStock{}
	if s.File == "" {
		return s, nil
	}
	return s, &Fetch{Key: s.Key()}
}

// OnFileChanged selects one of the current candidates. An empty file clears
// the selection. The date is never touched.
func (s State) OnFileChanged(file string) (State, *Fetch, error) {
	if file == "" {
		s.File = ""
		s.Stocks = []domain.RankedStock{}
		return s, nil, nil
	}
	if !slices.Contains(s.Candidates, file) {
		return s, nil, ErrUnknownFile
	}
	s.File = file
	s.Stocks = []domain.RankedStock{}
	return s, &Fetch{Key: s.Key()}, nil
}

// OnSnapshotLoaded ranks records if key still matches the selection.
// applied is false for stale results, which leave the state unchanged.
func (s State) OnSnapshotLoaded(key Key, records []domain.StockRecord) (next State, applied bool) {
	if key != s.Key() || key.File == "" {
		return s, false
	}
	s.Stocks = rank.Rank(records)
	return s, true
}

// OnSnapshotFailed clears the stocks if key still matches the selection.
func (s State) OnSnapshotFailed(key Key) (next State, applied bool) {
	if key != s.Key() || key.File == "" {
		return s, false
	}
	s.Stocks = []domain.RankedStock{}
	return s, true
}

