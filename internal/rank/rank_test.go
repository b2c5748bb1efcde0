package rank

import (
	"math"
	"reflect"
	"testing"

	"stockpicks/internal/domain"
)

func TestParsePrice(t *testing.T) {
	tests := []struct {
		in   string
		want float64
	}{
		{"$120.50", 120.50},
		{"$100-$150", 125.0},
		{"100 to 200 to 900", 150.0},
		{"approx. 42", 42},
		{"7.", 7},
		{"1,250", 125.5},
	}
	for _, tt := range tests {
		if got := ParsePrice(tt.in); got != tt.want {
			t.Errorf("ParsePrice(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}

	for _, in := range []string{"", "contact us", "N/A", "."} {
		if got := ParsePrice(in); !math.IsNaN(got) {
			t.Errorf("ParsePrice(%q) = %v, want NaN", in, got)
		}
	}
}

func TestUpside(t *testing.T) {
	if got := Upside(100, 125); got != 25.0 {
		t.Errorf("Upside(100, 125) = %v, want 25", got)
	}
	if got := Upside(200, 180); got != -10.0 {
		t.Errorf("Upside(200, 180) = %v, want -10", got)
	}
	if got := Upside(0, 125); !math.IsInf(got, 1) {
		t.Errorf("Upside(0, 125) = %v, want +Inf", got)
	}
	if got := Upside(0, 0); !math.IsNaN(got) {
		t.Errorf("Upside(0, 0) = %v, want NaN", got)
	}
	if got := Upside(math.NaN(), 10); !math.IsNaN(got) {
		t.Errorf("Upside(NaN, 10) = %v, want NaN", got)
	}
}

func rec(sym, cur, est string) domain.StockRecord {
	return domain.StockRecord{
		CompanyName:           sym + " Corp",
		StockSymbol:           sym,
		CurrentValue:          domain.PriceText(cur),
		AnalystEstimatedPrice: domain.PriceText(est),
	}
}

func symbols(stocks []domain.RankedStock) []string {
	out := make([]string, len(stocks))
	for i, s := range stocks {
		out[i] = s.StockSymbol
	}
	return out
}

func TestRankTwoRecords(t *testing.T) {
	got := Rank([]domain.StockRecord{
		rec("AAA", "$100", "$150"),
		rec("BBB", "$200", "$180"),
	})

	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	if got[0].StockSymbol != "AAA" || got[0].PotentialUpside != 50 || !got[0].IsTopPick {
		t.Errorf("first = %+v, want AAA 50%% top pick", got[0])
	}
	if got[1].StockSymbol != "BBB" || got[1].PotentialUpside != -10 || got[1].IsTopPick {
		t.Errorf("second = %+v, want BBB -10%% not top pick", got[1])
	}
}

func TestRankNonFiniteLast(t *testing.T) {
	got := Rank([]domain.StockRecord{
		rec("NAN1", "contact us", "$10"),
		rec("LOW", "$100", "$110"),
		rec("INF", "$0", "$10"),
		rec("HIGH", "$100", "$200"),
		rec("NAN2", "", ""),
		rec("NEG", "$0", "$0"),
	})

	want := []string{"HIGH", "LOW", "NAN1", "INF", "NAN2", "NEG"}
	if s := symbols(got); !reflect.DeepEqual(s, want) {
		t.Fatalf("order = %v, want %v", s, want)
	}
	for _, s := range got {
		if s.IsTopPick != (s.StockSymbol == "HIGH") {
			t.Errorf("%s IsTopPick = %v", s.StockSymbol, s.IsTopPick)
		}
	}
}

func TestRankTiesAllFlagged(t *testing.T) {
	got := Rank([]domain.StockRecord{
		rec("A", "$10", "$20"),
		rec("B", "$50", "$55"),
		rec("C", "$100", "$200"),
	})

	want := []string{"A", "C", "B"}
	if s := symbols(got); !reflect.DeepEqual(s, want) {
		t.Fatalf("order = %v, want %v", s, want)
	}
	if !got[0].IsTopPick || !got[1].IsTopPick || got[2].IsTopPick {
		t.Errorf("flags = %v %v %v, want true true false", got[0].IsTopPick, got[1].IsTopPick, got[2].IsTopPick)
	}
	if n := len(TopPicks(got)); n != 2 {
		t.Errorf("TopPicks len = %d, want 2", n)
	}
}

func TestRankAllNonFinite(t *testing.T) {
	got := Rank([]domain.StockRecord{rec("X", "tbd", "tbd"), rec("Y", "$0", "$5")})
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	if len(TopPicks(got)) != 0 {
		t.Error("non-finite upside must never be a top pick")
	}
	if b, ok := Baseline(got); ok || b != 0 {
		t.Errorf("Baseline = %v, %v; want 0, false", b, ok)
	}
}

func TestRankEmpty(t *testing.T) {
	if got := Rank(nil); len(got) != 0 {
		t.Errorf("Rank(nil) len = %d, want 0", len(got))
	}
}

func TestRankProperties(t *testing.T) {
	inputs := []domain.StockRecord{
		rec("A", "$12.40", "$15"),
		rec("B", "$8-$9", "$11-$13"),
		rec("C", "n/a", "$40"),
		rec("D", "$33", "$31.5"),
		rec("E", "$5", "$5"),
		rec("F", "$0", "$1"),
		rec("G", "$70", "$90-$110"),
		rec("H", "$1", "$1"),
	}
	orig := make([]domain.StockRecord, len(inputs))
	copy(orig, inputs)

	got := Rank(inputs)
	if len(got) != len(inputs) {
		t.Fatalf("len = %d, want %d", len(got), len(inputs))
	}
	if !reflect.DeepEqual(inputs, orig) {
		t.Error("Rank mutated its input")
	}

	seenNonFinite := false
	for i, s := range got {
		if !domain.IsFinite(s.PotentialUpside) {
			seenNonFinite = true
			continue
		}
		if seenNonFinite {
			t.Errorf("finite upside at %d after non-finite", i)
		}
		if i > 0 && domain.IsFinite(got[i-1].PotentialUpside) && got[i-1].PotentialUpside < s.PotentialUpside {
			t.Errorf("order broken at %d: %v < %v", i, got[i-1].PotentialUpside, s.PotentialUpside)
		}
	}
	if len(TopPicks(got)) == 0 {
		t.Error("expected at least one top pick")
	}
}

func TestRankIdempotent(t *testing.T) {
	in := []domain.StockRecord{
		rec("A", "$100", "$150"),
		rec("B", "unknown", "$1"),
		rec("C", "$10", "$15"),
	}
	first := Rank(in)
	second := Rank(in)

	if !reflect.DeepEqual(symbols(first), symbols(second)) {
		t.Fatalf("order differs: %v vs %v", symbols(first), symbols(second))
	}
	for i := range first {
		a, b := first[i], second[i]
		if a.IsTopPick != b.IsTopPick || a.StockRecord != b.StockRecord {
			t.Errorf("record %d differs: %+v vs %+v", i, a, b)
		}
		if a.PotentialUpside != b.PotentialUpside && !(math.IsNaN(a.PotentialUpside) && math.IsNaN(b.PotentialUpside)) {
			t.Errorf("upside %d differs: %v vs %v", i, a.PotentialUpside, b.PotentialUpside)
		}
	}
}
