// Package stockpicks is a Go client for the stockpicks HTTP API.
package stockpicks

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client provides a Go SDK for interacting with the picks-server API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a new stockpicks API client.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// CatalogFile is one catalog entry.
type CatalogFile struct {
	Name  string `json:"name"`
	Label string `json:"label"`
	Date  string `json:"date,omitempty"`
}

// Candidate is a snapshot file for a date.
type Candidate struct {
	Name  string `json:"name"`
	Label string `json:"label"`
}

// Pick is one ranked stock. Numbers that could not be computed are NaN.
type Pick struct {
	CompanyName           string   `json:"company_name"`
	StockSymbol           string   `json:"stock_symbol"`
	CurrentValue          string   `json:"current_value"`
	AnalystEstimatedPrice string   `json:"analyst_estimated_price"`
	Summary               string   `json:"summary"`
	CurrentValueNum       float64  `json:"-"`
	EstimatedPrice        float64  `json:"-"`
	PotentialUpside       float64  `json:"-"`
	IsTopPick             bool     `json:"is_top_pick"`
	LastPrice             *float64 `json:"last_price,omitempty"`
}

// UnmarshalJSON maps null numbers to NaN.
func (p *Pick) UnmarshalJSON(data []byte) error {
	type plain Pick
	var w struct {
		plain
		CurrentValueNum *float64 `json:"current_value_num"`
		EstimatedPrice  *float64 `json:"estimated_price"`
		PotentialUpside *float64 `json:"potential_upside"`
	}
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*p = Pick(w.plain)
	p.CurrentValueNum = nanIfNil(w.CurrentValueNum)
	p.EstimatedPrice = nanIfNil(w.EstimatedPrice)
	p.PotentialUpside = nanIfNil(w.PotentialUpside)
	return nil
}

func nanIfNil(v *float64) float64 {
	if v == nil {
		return math.NaN()
	}
	return *v
}

// Candidates is the response of GET /api/candidates.
type Candidates struct {
	Date       string      `json:"date"`
	Candidates []Candidate `json:"candidates"`
	Default    string      `json:"default"`
}

// Picks is the response of GET /api/picks.
type Picks struct {
	Date       string      `json:"date"`
	File       string      `json:"file"`
	Candidates []Candidate `json:"candidates"`
	Stocks     []Pick      `json:"stocks"`
	TopPicks   int         `json:"top_picks"`
}

// APIError is returned for non-2xx responses.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("stockpicks: status %d: %s", e.StatusCode, e.Message)
}

// Catalog lists every snapshot file.
func (c *Client) Catalog(ctx context.Context) ([]CatalogFile, error) {
	var resp struct {
		Files []CatalogFile `json:"files"`
	}
	if err := c.get(ctx, "/api/catalog", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Files, nil
}

// Dates lists the dates that have at least one snapshot.
func (c *Client) Dates(ctx context.Context) ([]string, error) {
	var resp struct {
		Dates []string `json:"dates"`
	}
	if err := c.get(ctx, "/api/dates", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Dates, nil
}

// Candidates lists the snapshot files for date, newest first. An empty date
// means the server's today.
func (c *Client) Candidates(ctx context.Context, date string) (*Candidates, error) {
	q := url.Values{}
	if date != "" {
		q.Set("date", date)
	}
	var resp Candidates
	if err := c.get(ctx, "/api/candidates", q, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Picks returns the ranked picks for date and file. An empty file selects
// the newest candidate.
func (c *Client) Picks(ctx context.Context, date, file string) (*Picks, error) {
	q := url.Values{}
	if date != "" {
		q.Set("date", date)
	}
	if file != "" {
		q.Set("file", file)
	}
	var resp Picks
	if err := c.get(ctx, "/api/picks", q, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) get(ctx context.Context, path string, q url.Values, v any) error {
	u := c.baseURL + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("GET %s: %w", path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var e struct {
			Error string `json:"error"`
		}
		msg := strings.TrimSpace(string(body))
		if json.Unmarshal(body, &e) == nil && e.Error != "" {
			msg = e.Error
		}
		return &APIError{StatusCode: resp.StatusCode, Message: msg}
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("decoding %s: %w", path, err)
	}
	return nil
}
