// Package quote attaches last-trade prices to ranked picks.
package quote

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"

	"stockpicks/internal/config"
	"stockpicks/internal/domain"
)

// Quoter returns the last trade price per symbol. Symbols without a quote
// are absent from the result.
type Quoter interface {
	LastPrices(ctx context.Context, symbols []string) (map[string]float64, error)
}

// AlpacaQuoter reads latest trades from Alpaca market data.
type AlpacaQuoter struct {
	client *marketdata.Client
}

// NewAlpacaQuoter creates a quoter from the quotes config section.
func NewAlpacaQuoter(cfg config.Quotes) *AlpacaQuoter {
	opts := marketdata.ClientOpts{
		APIKey:    cfg.APIKey,
		APISecret: cfg.APISecret,
	}
	if cfg.DataURL != "" {
		opts.BaseURL = cfg.DataURL
	}
	return &AlpacaQuoter{client: marketdata.NewClient(opts)}
}

// LastPrices fetches the latest trade for each symbol in one request.
func (q *AlpacaQuoter) LastPrices(ctx context.Context, symbols []string) (map[string]float64, error) {
	if len(symbols) == 0 {
		return map[string]float64{}, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	trades, err := q.client.GetLatestTrades(symbols, marketdata.GetLatestTradeRequest{})
	if err != nil {
		return nil, fmt.Errorf("latest trades: %w", err)
	}
	out := make(map[string]float64, len(trades))
	for sym, t := range trades {
		out[sym] = t.Price
	}
	return out, nil
}

// Enrich returns a copy of stocks with LastPrice set where a quote exists.
// Order and top-pick flags are untouched. Quote failures are logged and the
// input is returned unchanged.
func Enrich(ctx context.Context, q Quoter, stocks []domain.RankedStock, log *slog.Logger) []domain.RankedStock {
	if q == nil || len(stocks) == 0 {
		return stocks
	}

	seen := make(map[string]bool, len(stocks))
	symbols := make([]string, 0, len(stocks))
	for _, s := range stocks {
		sym := strings.ToUpper(strings.TrimSpace(s.StockSymbol))
		if sym == "" || seen[sym] {
			continue
		}
		seen[sym] = true
		symbols = append(symbols, sym)
	}

	prices, err := q.LastPrices(ctx, symbols)
	if err != nil {
		log.Warn("quote enrichment failed", "symbols", len(symbols), "error", err)
		return stocks
	}

	out := make([]domain.RankedStock, len(stocks))
	copy(out, stocks)
	for i := range out {
		if p, ok := prices[strings.ToUpper(strings.TrimSpace(out[i].StockSymbol))]; ok {
			price := p
			out[i].LastPrice = &price
		}
	}
	return out
}
