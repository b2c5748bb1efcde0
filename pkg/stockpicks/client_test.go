package stockpicks

import (
	"context"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestNewClient(t *testing.T) {
	c := NewClient("http://localhost:8080/")
	if c.baseURL != "http://localhost:8080" {
		t.Errorf("baseURL = %q", c.baseURL)
	}
	if c.httpClient == nil {
		t.Fatal("expected non-nil httpClient")
	}
}

func TestClientPicks(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/picks":
			if got := r.URL.Query().Get("date"); got != "2024-05-01" {
				t.Errorf("date = %q", got)
			}
			w.Write([]byte(`{"date":"2024-05-01","file":"picked_stocks_2024-05-01_0900.json",
				"candidates":[{"name":"picked_stocks_2024-05-01_0900.json","label":"2024-05-01_0900"}],
				"stocks":[
				  {"stock_symbol":"AAA","current_value_num":100,"estimated_price":150,"potential_upside":50,"is_top_pick":true},
				  {"stock_symbol":"ZZZ","current_value_num":null,"estimated_price":1,"potential_upside":null,"is_top_pick":false}
				],"top_picks":1}`))
		case "/api/candidates":
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"error":"date must be YYYY-MM-DD"}`))
		case "/api/dates":
			w.Write([]byte(`{"dates":["2024-05-01"],"today":"2024-05-01"}`))
		}
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	ctx := context.Background()

	picks, err := c.Picks(ctx, "2024-05-01", "")
	if err != nil {
		t.Fatalf("Picks: %v", err)
	}
	if len(picks.Stocks) != 2 || !picks.Stocks[0].IsTopPick || picks.Stocks[0].PotentialUpside != 50 {
		t.Errorf("unexpected picks: %+v", picks.Stocks)
	}
	if !math.IsNaN(picks.Stocks[1].PotentialUpside) || !math.IsNaN(picks.Stocks[1].CurrentValueNum) {
		t.Errorf("null numbers should decode as NaN: %+v", picks.Stocks[1])
	}
	if picks.Stocks[1].StockSymbol != "ZZZ" {
		t.Errorf("symbol = %q", picks.Stocks[1].StockSymbol)
	}

	_, err = c.Candidates(ctx, "bad")
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusBadRequest || apiErr.Message != "date must be YYYY-MM-DD" {
		t.Errorf("Candidates error = %v", err)
	}

	dates, err := c.Dates(ctx)
	if err != nil || len(dates) != 1 {
		t.Errorf("Dates = %v, %v", dates, err)
	}
}
