package selection

import (
	"stockpicks/internal/domain"
	"stockpicks/internal/snapshot"
)

// Candidate is a snapshot file with its display label.
type Candidate struct {
	Name  string `json:"name"`
	Label string `json:"label"`
}

// View is the wire form of State sent to session clients.
type View struct {
	Date        string               `json:"date"`
	File        string               `json:"file"`
	Candidates  []Candidate          `json:"candidates"`
	Stocks      []domain.RankedStock `json:"stocks"`
	CatalogSize int                  `json:"catalog_size"`
}

// Candidates labels a list of snapshot filenames.
func Candidates(names []string) []Candidate {
	out := make([]Candidate, len(names))
	for i, n := range names {
		out[i] = Candidate{Name: n, Label: snapshot.Label(n)}
	}
	return out
}

// View returns the wire form of s.
func (s State) View() View {
	stocks := s.Stocks
	if stocks == nil {
		stocks = []domain.RankedStock{}
	}
	return View{
		Date:        s.Date,
		File:        s.File,
		Candidates:  Candidates(s.Candidates),
		Stocks:      stocks,
		CatalogSize: len(s.Catalog),
	}
}
