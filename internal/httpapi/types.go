// Package httpapi provides the HTTP REST API for stockpicks, plus a
// websocket session endpoint that streams selection state.
package httpapi

import (
	"stockpicks/internal/domain"
	"stockpicks/internal/selection"
)

// CatalogFile is one catalog entry.
type CatalogFile struct {
	Name  string `json:"name"`
	Label string `json:"label"`
	Date  string `json:"date,omitempty"`
}

// CatalogResponse is returned by GET /api/catalog.
type CatalogResponse struct {
	Files     []CatalogFile `json:"files"`
	FetchedAt string        `json:"fetched_at,omitempty"`
}

// DatesResponse is returned by GET /api/dates.
type DatesResponse struct {
	Dates []string `json:"dates"`
	Today string   `json:"today"`
}

// CandidatesResponse is returned by GET /api/candidates.
type CandidatesResponse struct {
	Date       string                `json:"date"`
	Candidates []selection.Candidate `json:"candidates"`
	Default    string                `json:"default"`
}

// PicksResponse is returned by GET /api/picks.
type PicksResponse struct {
	Date       string                `json:"date"`
	File       string                `json:"file"`
	Candidates []selection.Candidate `json:"candidates"`
	Stocks     []domain.RankedStock  `json:"stocks"`
	TopPicks   int                   `json:"top_picks"`
}

// WSCommand is a client message on /api/ws.
type WSCommand struct {
	Type  string `json:"type"` // "date", "file" or "reload"
	Value string `json:"value"`
}

// WSMessage is a server message on /api/ws.
type WSMessage struct {
	Type  string          `json:"type"` // "state" or "error"
	State *selection.View `json:"state,omitempty"`
	Error string          `json:"error,omitempty"`
}
