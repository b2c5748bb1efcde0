package rank

import (
	"sort"

	"stockpicks/internal/domain"
)

// Rank parses prices, computes upside and orders records by upside
// descending. Records with a non-finite upside sort after all finite ones,
// keeping their input order. Every record whose upside equals the highest
// finite upside is flagged as a top pick. The input slice is not modified.
func Rank(records []domain.StockRecord) []domain.RankedStock {
	out := make([]domain.RankedStock, len(records))
	for i, r := range records {
		cur := ParsePrice(string(r.CurrentValue))
		est := ParsePrice(string(r.AnalystEstimatedPrice))
		out[i] = domain.RankedStock{
			StockRecord:     r,
			CurrentValueNum: cur,
			EstimatedPrice:  est,
			PotentialUpside: Upside(cur, est),
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i].PotentialUpside, out[j].PotentialUpside
		af, bf := domain.IsFinite(a), domain.IsFinite(b)
		if af != bf {
			return af
		}
		if !af {
			return false
		}
		return a > b
	})

	baseline, ok := Baseline(out)
	if !ok {
		return out
	}
	for i := range out {
		if out[i].PotentialUpside == baseline {
			out[i].IsTopPick = true
		}
	}
	return out
}

// Baseline returns the highest finite upside in stocks. ok is false when
// there is none, in which case the baseline is 0.
func Baseline(stocks []domain.RankedStock) (baseline float64, ok bool) {
	for _, s := range stocks {
		if !domain.IsFinite(s.PotentialUpside) {
			continue
		}
		if !ok || s.PotentialUpside > baseline {
			baseline = s.PotentialUpside
			ok = true
		}
	}
	return baseline, ok
}

// TopPicks returns the flagged records in rank order.
func TopPicks(stocks []domain.RankedStock) []domain.RankedStock {
	var picks []domain.RankedStock
	for _, s := range stocks {
		if s.IsTopPick {
			picks = append(picks, s)
		}
	}
	return picks
}
