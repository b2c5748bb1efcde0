package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sony/gobreaker"

	"stockpicks/internal/config"
	"stockpicks/internal/domain"
	"stockpicks/internal/util"
)

const maxBodyBytes = 32 << 20

// HTTPSource reads the catalog and snapshots from a static file server.
type HTTPSource struct {
	baseURL     string
	catalogName string
	client      *http.Client
	limiter     *util.RateLimiter
	breaker     *gobreaker.CircuitBreaker
	attempts    int
	retryDelay  time.Duration
	dec         decoder
	log         *slog.Logger
}

// NewHTTPSource creates an HTTPSource from cfg.
func NewHTTPSource(cfg config.Source, log *slog.Logger) *HTTPSource {
	maxFailures := cfg.Breaker.MaxFailures
	if maxFailures == 0 {
		maxFailures = 5
	}
	catalogName := cfg.CatalogName
	if catalogName == "" {
		catalogName = "index.json"
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}

	s := &HTTPSource{
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		catalogName: catalogName,
		client:      &http.Client{Timeout: timeout},
		limiter:     util.NewRateLimiter(cfg.RateLimitPerMin),
		attempts:    cfg.RetryAttempts,
		retryDelay:  cfg.RetryDelay,
		dec:         decoder{repair: cfg.RepairJSON, log: log},
		log:         log,
	}
	s.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "picks-upstream",
		Timeout: cfg.Breaker.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		// A 4xx means the upstream answered; a missing snapshot must not
		// take the catalog and every other file down with it.
		IsSuccessful: func(err error) bool {
			return err == nil || util.IsPermanent(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("upstream breaker state change", "breaker", name, "from", from.String(), "to", to.String())
		},
	})
	return s
}

// Catalog fetches <base>/index.json.
func (s *HTTPSource) Catalog(ctx context.Context) ([]string, error) {
	data, err := s.get(ctx, s.catalogName)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCatalogUnavailable, err)
	}
	return s.dec.catalog(data)
}

// Snapshot fetches <base>/<name>.
func (s *HTTPSource) Snapshot(ctx context.Context, name string) ([]domain.StockRecord, error) {
	data, err := s.get(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrSnapshotUnavailable, name, err)
	}
	return s.dec.snapshot(name, data)
}

func (s *HTTPSource) get(ctx context.Context, name string) ([]byte, error) {
	reqID := uuid.NewString()
	u := s.baseURL + "/" + url.PathEscape(name)
	start := time.Now()

	var data []byte
	err := util.Retry(ctx, s.attempts, s.retryDelay, func() error {
		if err := s.limiter.Wait(ctx); err != nil {
			return util.Permanent(err)
		}
		out, err := s.breaker.Execute(func() (interface{}, error) {
			return s.fetch(ctx, u, reqID)
		})
		if err != nil {
			if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
				return util.Permanent(err)
			}
			s.log.Debug("upstream attempt failed", "request_id", reqID, "url", u, "error", err)
			return err
		}
		data = out.([]byte)
		return nil
	})
	if err != nil {
		s.log.Warn("upstream fetch failed", "request_id", reqID, "url", u, "error", err)
		return nil, err
	}

	s.log.Debug("upstream fetch", "request_id", reqID, "url", u,
		"bytes", len(data), "elapsed", time.Since(start))
	return data, nil
}

// fetch performs one GET. Client errors are permanent; anything else may be
// retried.
func (s *HTTPSource) fetch(ctx context.Context, u, reqID string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, util.Permanent(err)
	}
	req.Header.Set("X-Request-ID", reqID)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 && resp.StatusCode < 500 {
		return nil, util.Permanent(fmt.Errorf("GET %s: status %d", u, resp.StatusCode))
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("GET %s: status %d", u, resp.StatusCode)
	}
	return io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
}
