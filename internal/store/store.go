// Package store persists ranked picks derived from snapshot files. Snapshot
// files themselves are never written.
package store

import (
	"context"
	"errors"
	"math"

	"stockpicks/internal/domain"
	"stockpicks/internal/snapshot"
)

// ErrNotFound is returned when no ranked picks exist for a file.
var ErrNotFound = errors.New("ranked picks not found")

// RankStore persists and retrieves ranked picks keyed by snapshot filename.
type RankStore interface {
	// WriteRanked replaces the stored picks for file.
	WriteRanked(ctx context.Context, file string, stocks []domain.RankedStock) error

	// ReadRanked returns the picks for file in rank order.
	ReadRanked(ctx context.Context, file string) ([]domain.RankedStock, error)

	// ListFiles returns the snapshot filenames with stored picks, ascending.
	ListFiles(ctx context.Context) ([]string, error)
}

// PickRecord is the flat on-disk row for one ranked stock. Non-finite
// numbers are stored as null.
type PickRecord struct {
	File                  string   `parquet:"file"`
	Date                  string   `parquet:"date"`
	Rank                  int32    `parquet:"rank"`
	Symbol                string   `parquet:"symbol"`
	CompanyName           string   `parquet:"company_name"`
	CurrentValue          string   `parquet:"current_value"`
	AnalystEstimatedPrice string   `parquet:"analyst_estimated_price"`
	Summary               string   `parquet:"summary"`
	CurrentValueNum       *float64 `parquet:"current_value_num,optional"`
	EstimatedPrice        *float64 `parquet:"estimated_price,optional"`
	PotentialUpside       *float64 `parquet:"potential_upside,optional"`
	IsTopPick             bool     `parquet:"is_top_pick"`
	LastPrice             *float64 `parquet:"last_price,optional"`
}

// ToRecords flattens ranked stocks into rows.
func ToRecords(file string, stocks []domain.RankedStock) []PickRecord {
	date, _ := snapshot.DateOf(file)
	out := make([]PickRecord, len(stocks))
	for i, s := range stocks {
		out[i] = PickRecord{
			File:                  file,
			Date:                  date,
			Rank:                  int32(i + 1),
			Symbol:                s.StockSymbol,
			CompanyName:           s.CompanyName,
			CurrentValue:          string(s.CurrentValue),
			AnalystEstimatedPrice: string(s.AnalystEstimatedPrice),
			Summary:               s.Summary,
			CurrentValueNum:       finite(s.CurrentValueNum),
			EstimatedPrice:        finite(s.EstimatedPrice),
			PotentialUpside:       finite(s.PotentialUpside),
			IsTopPick:             s.IsTopPick,
			LastPrice:             s.LastPrice,
		}
	}
	return out
}

// ToRanked rebuilds ranked stocks from rows. Rows must already be in rank
// order.
func (r PickRecord) ToRanked() domain.RankedStock {
	return domain.RankedStock{
		StockRecord: domain.StockRecord{
			CompanyName:           r.CompanyName,
			StockSymbol:           r.Symbol,
			CurrentValue:          domain.PriceText(r.CurrentValue),
			AnalystEstimatedPrice: domain.PriceText(r.AnalystEstimatedPrice),
			Summary:               r.Summary,
		},
		CurrentValueNum: orNaN(r.CurrentValueNum),
		EstimatedPrice:  orNaN(r.EstimatedPrice),
		PotentialUpside: orNaN(r.PotentialUpside),
		IsTopPick:       r.IsTopPick,
		LastPrice:       r.LastPrice,
	}
}

func finite(v float64) *float64 {
	if !domain.IsFinite(v) {
		return nil
	}
	return &v
}

func orNaN(p *float64) float64 {
	if p == nil {
		return math.NaN()
	}
	return *p
}
