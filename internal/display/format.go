// Package display formats ranked picks for terminal and text output.
package display

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"stockpicks/internal/domain"
)

// NA is shown for prices and upsides that could not be computed.
const NA = "N/A"

// FormatInt formats an integer with comma separators.
func FormatInt(n int) string {
	s := fmt.Sprintf("%d", n)
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}
	if len(s) <= 3 {
		if neg {
			return "-" + s
		}
		return s
	}
	var b strings.Builder
	if neg {
		b.WriteByte('-')
	}
	start := len(s) % 3
	if start > 0 {
		b.WriteString(s[:start])
	}
	for i := start; i < len(s); i += 3 {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(s[i : i+3])
	}
	return b.String()
}

// FormatPrice formats a price as $X.XX, or N/A if it is not finite.
func FormatPrice(p float64) string {
	if !domain.IsFinite(p) {
		return NA
	}
	return "$" + decimal.NewFromFloat(p).StringFixed(2)
}

// FormatUpside formats an upside percentage as "+X.XX%" or "-X.XX%", or N/A
// if it is not finite.
func FormatUpside(u float64) string {
	if !domain.IsFinite(u) {
		return NA
	}
	d := decimal.NewFromFloat(u).Round(2)
	if d.IsPositive() {
		return "+" + d.StringFixed(2) + "%"
	}
	return d.StringFixed(2) + "%"
}

// Badge returns the label shown next to a top pick, or "".
func Badge(s domain.RankedStock) string {
	if s.IsTopPick {
		return "Best Pick"
	}
	return ""
}

// Line renders one ranked stock as a single text row.
func Line(i int, s domain.RankedStock) string {
	last := ""
	if s.LastPrice != nil {
		last = "  last " + FormatPrice(*s.LastPrice)
	}
	badge := Badge(s)
	if badge != "" {
		badge = "  [" + badge + "]"
	}
	return fmt.Sprintf("%2d. %-6s %-28s %10s -> %-10s %9s%s%s",
		i+1, s.StockSymbol, truncate(s.CompanyName, 28),
		FormatPrice(s.CurrentValueNum), FormatPrice(s.EstimatedPrice),
		FormatUpside(s.PotentialUpside), last, badge)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
