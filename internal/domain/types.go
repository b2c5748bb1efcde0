// Package domain defines the core types shared across stockpicks: raw stock
// records as they appear in snapshot files, and the ranked records derived
// from them.
package domain

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"sync"

	"github.com/go-playground/validator/v10"
)

// PriceText is a free-form price or price-range string ("$120.50",
// "$100-$150"). Snapshot generators occasionally emit bare JSON numbers, so
// unmarshalling accepts either form.
type PriceText string

// UnmarshalJSON accepts a JSON string, number or null.
func (p *PriceText) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*p = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*p = PriceText(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("price must be a string or number, got %s", data)
	}
	*p = PriceText(n.String())
	return nil
}

// StockRecord is one recommendation inside a snapshot file.
type StockRecord struct {
	CompanyName           string    `json:"company_name"`
	StockSymbol           string    `json:"stock_symbol" validate:"required"`
	CurrentValue          PriceText `json:"current_value"`
	AnalystEstimatedPrice PriceText `json:"analyst_estimated_price"`
	Summary               string    `json:"summary"`
}

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

// Validate checks the record against its schema tags.
func (r StockRecord) Validate() error {
	validateOnce.Do(func() {
		validate = validator.New()
	})
	return validate.Struct(r)
}

// RankedStock is a StockRecord plus the metrics derived by the ranker.
// Non-finite metrics are legal values: NaN marks an unparseable price and
// ±Inf a zero current value.
type RankedStock struct {
	StockRecord
	CurrentValueNum float64
	EstimatedPrice  float64
	PotentialUpside float64
	IsTopPick       bool

	// LastPrice is an optional market quote attached after ranking. It never
	// influences the order.
	LastPrice *float64
}

// rankedStockJSON is the wire shape of RankedStock. Numbers are pointers so
// that non-finite values round-trip as null.
type rankedStockJSON struct {
	CompanyName           string   `json:"company_name"`
	StockSymbol           string   `json:"stock_symbol"`
	CurrentValue          string   `json:"current_value"`
	AnalystEstimatedPrice string   `json:"analyst_estimated_price"`
	Summary               string   `json:"summary"`
	CurrentValueNum       *float64 `json:"current_value_num"`
	EstimatedPrice        *float64 `json:"estimated_price"`
	PotentialUpside       *float64 `json:"potential_upside"`
	IsTopPick             bool     `json:"is_top_pick"`
	LastPrice             *float64 `json:"last_price,omitempty"`
}

// MarshalJSON encodes non-finite numbers as null.
func (r RankedStock) MarshalJSON() ([]byte, error) {
	return json.Marshal(rankedStockJSON{
		CompanyName:           r.CompanyName,
		StockSymbol:           r.StockSymbol,
		CurrentValue:          string(r.CurrentValue),
		AnalystEstimatedPrice: string(r.AnalystEstimatedPrice),
		Summary:               r.Summary,
		CurrentValueNum:       finitePtr(r.CurrentValueNum),
		EstimatedPrice:        finitePtr(r.EstimatedPrice),
		PotentialUpside:       finitePtr(r.PotentialUpside),
		IsTopPick:             r.IsTopPick,
		LastPrice:             r.LastPrice,
	})
}

// UnmarshalJSON decodes null numbers as NaN.
func (r *RankedStock) UnmarshalJSON(data []byte) error {
	var w rankedStockJSON
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*r = RankedStock{
		StockRecord: StockRecord{
			CompanyName:           w.CompanyName,
			StockSymbol:           w.StockSymbol,
			CurrentValue:          PriceText(w.CurrentValue),
			AnalystEstimatedPrice: PriceText(w.AnalystEstimatedPrice),
			Summary:               w.Summary,
		},
		CurrentValueNum: valueOrNaN(w.CurrentValueNum),
		EstimatedPrice:  valueOrNaN(w.EstimatedPrice),
		PotentialUpside: valueOrNaN(w.PotentialUpside),
		IsTopPick:       w.IsTopPick,
		LastPrice:       w.LastPrice,
	}
	return nil
}

// IsFinite reports whether v is a real number (not NaN or ±Inf).
func IsFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func finitePtr(v float64) *float64 {
	if !IsFinite(v) {
		return nil
	}
	return &v
}

func valueOrNaN(p *float64) float64 {
	if p == nil {
		return math.NaN()
	}
	return *p
}

// String implements fmt.Stringer for log output.
func (r RankedStock) String() string {
	return r.StockSymbol + " " + strconv.FormatFloat(r.PotentialUpside, 'f', 2, 64) + "%"
}
