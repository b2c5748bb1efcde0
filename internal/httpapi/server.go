package httpapi

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"slices"
	"sync"
	"time"

	"stockpicks/internal/domain"
	"stockpicks/internal/quote"
	"stockpicks/internal/rank"
	"stockpicks/internal/selection"
	"stockpicks/internal/snapshot"
	"stockpicks/internal/source"
	"stockpicks/internal/util"
)

// Server serves the stockpicks HTTP API.
type Server struct {
	src     source.Source
	quoter  quote.Quoter // nil disables last-price enrichment
	loc     *time.Location
	metrics *Metrics
	log     *slog.Logger

	// Ranked results per snapshot file. Snapshot files are immutable, so
	// entries never go stale.
	ranked sync.Map

	fetchTimeout time.Duration
}

// NewServer creates a new HTTP API server. quoter may be nil.
func NewServer(src source.Source, quoter quote.Quoter, loc *time.Location, metrics *Metrics, log *slog.Logger) *Server {
	if loc == nil {
		loc = time.Local
	}
	if metrics == nil {
		metrics = NewMetrics()
	}
	return &Server{
		src:          src,
		quoter:       quoter,
		loc:          loc,
		metrics:      metrics,
		log:          log,
		fetchTimeout: 30 * time.Second,
	}
}

// RegisterRoutes registers all API routes on the given mux.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/catalog", s.handleCatalog)
	mux.HandleFunc("GET /api/dates", s.handleDates)
	mux.HandleFunc("GET /api/candidates", s.handleCandidates)
	mux.HandleFunc("GET /api/picks", s.handlePicks)
	mux.HandleFunc("GET /api/ws", s.handleWS)
	mux.Handle("GET /metrics", s.metrics.Handler())
	mux.HandleFunc("GET /healthz", s.handleHealth)
}

// Handler returns an http.Handler with CORS and metrics middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.RegisterRoutes(mux)
	return corsMiddleware(s.metrics.middleware(mux))
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encoding JSON response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

func (s *Server) today() string {
	return util.Today(s.loc)
}

// catalog returns the upstream catalog, or an empty list when it cannot be
// fetched.
func (s *Server) catalog(ctx context.Context) []string {
	start := time.Now()
	names, err := s.src.Catalog(ctx)
	s.metrics.FetchDone("catalog", err, time.Since(start))
	if err != nil {
		s.log.Warn("catalog unavailable", "error", err)
		return []string{}
	}
	return names
}

// dateParam reads ?date=, defaulting to today. ok is false if the value is
// malformed; an error response has then been written.
func (s *Server) dateParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	date := r.URL.Query().Get("date")
	if date == "" {
		return s.today(), true
	}
	if !snapshot.ValidDate(date) {
		writeError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
		return "", false
	}
	return date, true
}

func (s *Server) handleCatalog(w http.ResponseWriter, r *http.Request) {
	names := s.catalog(r.Context())
	files := make([]CatalogFile, len(names))
	for i, n := range names {
		d, _ := snapshot.DateOf(n)
		files[i] = CatalogFile{Name: n, Label: snapshot.Label(n), Date: d}
	}
	resp := CatalogResponse{Files: files}
	if c, ok := s.src.(interface{ FetchedAt() time.Time }); ok {
		if t := c.FetchedAt(); !t.IsZero() {
			resp.FetchedAt = t.In(s.loc).Format(time.RFC3339)
		}
	}
	writeJSON(w, resp)
}

func (s *Server) handleDates(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, DatesResponse{
		Dates: snapshot.Dates(s.catalog(r.Context())),
		Today: s.today(),
	})
}

func (s *Server) handleCandidates(w http.ResponseWriter, r *http.Request) {
	date, ok := s.dateParam(w, r)
	if !ok {
		return
	}
	candidates := snapshot.CandidatesForDate(s.catalog(r.Context()), date)
	writeJSON(w, CandidatesResponse{
		Date:       date,
		Candidates: selection.Candidates(candidates),
		Default:    snapshot.DefaultSelection(candidates),
	})
}

func (s *Server) handlePicks(w http.ResponseWriter, r *http.Request) {
	date, ok := s.dateParam(w, r)
	if !ok {
		return
	}
	candidates := snapshot.CandidatesForDate(s.catalog(r.Context()), date)

	file := r.URL.Query().Get("file")
	if file == "" {
		file = snapshot.DefaultSelection(candidates)
	} else if !slices.Contains(candidates, file) {
		writeError(w, http.StatusBadRequest, "file is not a candidate for "+date)
		return
	}

	stocks := []domain.RankedStock{}
	if file != "" {
		stocks = s.rankedFor(r.Context(), file)
	}
	if r.URL.Query().Get("quotes") != "false" {
		stocks = quote.Enrich(r.Context(), s.quoter, stocks, s.log)
	}

	writeJSON(w, PicksResponse{
		Date:       date,
		File:       file,
		Candidates: selection.Candidates(candidates),
		Stocks:     stocks,
		TopPicks:   len(rank.TopPicks(stocks)),
	})
}

// rankedFor returns the ranked picks for file, using the cache. Upstream
// failures yield an empty list and are not cached.
func (s *Server) rankedFor(ctx context.Context, file string) []domain.RankedStock {
	if v, ok := s.ranked.Load(file); ok {
		return v.([]domain.RankedStock)
	}

	ctx, cancel := context.WithTimeout(ctx, s.fetchTimeout)
	defer cancel()

	start := time.Now()
	records, err := s.src.Snapshot(ctx, file)
	s.metrics.FetchDone("snapshot", err, time.Since(start))
	if err != nil {
		s.log.Warn("snapshot unavailable", "file", file, "error", err)
		return []domain.RankedStock{}
	}

	ranked := rank.Rank(records)
	actual, _ := s.ranked.LoadOrStore(file, ranked)
	return actual.([]domain.RankedStock)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]string{"status": "ok", "today": s.today()})
}
