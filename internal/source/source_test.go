package source

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockpicks/internal/config"
	"stockpicks/internal/util"
)

const snapshotBody = `[
  {"company_name":"Acme","stock_symbol":"ACME","current_value":"$100","analyst_estimated_price":"$150","summary":"a"},
  {"company_name":"Broken","current_value":"$1"},
  {"company_name":"Bolt","stock_symbol":"BLT","current_value":200,"analyst_estimated_price":"$180","summary":"b"}
]`

func newUpstream(t *testing.T, hits *atomic.Int32) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/data/index.json", func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_, _ = w.Write([]byte(`["picked_stocks_2024-05-01_0900.json","picked_stocks_2024-05-01_1400.json"]`))
	})
	mux.HandleFunc("/data/picked_stocks_2024-05-01_0900.json", func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		assert.NotEmpty(t, r.Header.Get("X-Request-ID"))
		_, _ = w.Write([]byte(snapshotBody))
	})
	mux.HandleFunc("/data/picked_stocks_2024-05-01_1400.json", func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_, _ = w.Write([]byte(`[{"stock_symbol":"X", "current_value":"$1",}]`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func httpConfig(base string) config.Source {
	return config.Source{Kind: "http", BaseURL: base + "/data/", Timeout: 2 * time.Second}
}

func TestHTTPSourceCatalogAndSnapshot(t *testing.T) {
	var hits atomic.Int32
	srv := newUpstream(t, &hits)
	src := NewHTTPSource(httpConfig(srv.URL), util.Discard())
	ctx := context.Background()

	names, err := src.Catalog(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"picked_stocks_2024-05-01_0900.json", "picked_stocks_2024-05-01_1400.json"}, names)

	records, err := src.Snapshot(ctx, "picked_stocks_2024-05-01_0900.json")
	require.NoError(t, err)
	require.Len(t, records, 2, "record without stock_symbol is dropped")
	assert.Equal(t, "ACME", records[0].StockSymbol)
	assert.Equal(t, "200", string(records[1].CurrentValue))
}

func TestHTTPSourceFailures(t *testing.T) {
	var hits atomic.Int32
	srv := newUpstream(t, &hits)
	src := NewHTTPSource(httpConfig(srv.URL), util.Discard())
	ctx := context.Background()

	_, err := src.Snapshot(ctx, "picked_stocks_2099-01-01_0000.json")
	assert.True(t, errors.Is(err, ErrSnapshotUnavailable), "404 should be unavailable: %v", err)

	_, err = src.Snapshot(ctx, "picked_stocks_2024-05-01_1400.json")
	assert.True(t, errors.Is(err, ErrSnapshotUnavailable), "malformed json should be unavailable: %v", err)

	bad := NewHTTPSource(httpConfig("http://127.0.0.1:1"), util.Discard())
	_, err = bad.Catalog(ctx)
	assert.True(t, errors.Is(err, ErrCatalogUnavailable))
}

func TestHTTPSourceRepairJSON(t *testing.T) {
	var hits atomic.Int32
	srv := newUpstream(t, &hits)
	cfg := httpConfig(srv.URL)
	cfg.RepairJSON = true
	src := NewHTTPSource(cfg, util.Discard())

	records, err := src.Snapshot(context.Background(), "picked_stocks_2024-05-01_1400.json")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "X", records[0].StockSymbol)
}

func TestHTTPSourceBreakerOpens(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "down", http.StatusBadGateway)
	}))
	defer srv.Close()

	cfg := config.Source{BaseURL: srv.URL, Breaker: config.Breaker{MaxFailures: 2, OpenTimeout: time.Hour}}
	src := NewHTTPSource(cfg, util.Discard())
	for i := 0; i < 5; i++ {
		_, err := src.Catalog(context.Background())
		require.Error(t, err)
	}
	assert.Equal(t, int32(2), calls.Load(), "open breaker short-circuits further requests")
}

func TestDirSource(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.json"),
		[]byte(`["picked_stocks_2024-05-01_0900.json"]`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "picked_stocks_2024-05-01_0900.json"),
		[]byte(snapshotBody), 0o644))

	src, err := New(config.Source{Kind: "dir", DataDir: dir}, util.Discard())
	require.NoError(t, err)
	ctx := context.Background()

	names, err := src.Catalog(ctx)
	require.NoError(t, err)
	assert.Len(t, names, 1)

	records, err := src.Snapshot(ctx, names[0])
	require.NoError(t, err)
	assert.Len(t, records, 2)

	_, err = src.Snapshot(ctx, "../index.json")
	assert.True(t, errors.Is(err, ErrSnapshotUnavailable))
	_, err = src.Snapshot(ctx, "missing.json")
	assert.True(t, errors.Is(err, ErrSnapshotUnavailable))
}

func TestNewUnknownKind(t *testing.T) {
	_, err := New(config.Source{Kind: "s3"}, util.Discard())
	assert.Error(t, err)
}

func TestCached(t *testing.T) {
	var hits atomic.Int32
	srv := newUpstream(t, &hits)
	c := NewCached(NewHTTPSource(httpConfig(srv.URL), util.Discard()), util.Discard())
	ctx := context.Background()

	assert.Nil(t, c.Names())
	for i := 0; i < 3; i++ {
		names, err := c.Catalog(ctx)
		require.NoError(t, err)
		assert.Len(t, names, 2)
		_, err = c.Snapshot(ctx, "picked_stocks_2024-05-01_0900.json")
		require.NoError(t, err)
	}
	assert.Equal(t, int32(2), hits.Load(), "catalog and snapshot fetched once each")
	assert.False(t, c.FetchedAt().IsZero())

	require.NoError(t, c.Refresh(ctx))
	assert.Equal(t, int32(3), hits.Load())
}

func TestCachedCatalogKeepsPreviousOnFailure(t *testing.T) {
	var fail atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if fail.Load() {
			http.Error(w, "nope", http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte(`["a.json"]`))
	}))
	defer srv.Close()

	c := NewCachedCatalog(NewHTTPSource(config.Source{BaseURL: srv.URL}, util.Discard()), util.Discard())
	require.NoError(t, c.Refresh(context.Background()))
	fail.Store(true)
	assert.Error(t, c.Refresh(context.Background()))
	assert.Equal(t, []string{"a.json"}, c.Names())
}

func TestCachedCatalogSchedule(t *testing.T) {
	var hits atomic.Int32
	srv := newUpstream(t, &hits)
	c := NewCachedCatalog(NewHTTPSource(httpConfig(srv.URL), util.Discard()), util.Discard())

	_, err := c.Schedule(context.Background(), "not a schedule")
	assert.Error(t, err)

	cr, err := c.Schedule(context.Background(), "@every 1s")
	require.NoError(t, err)
	defer cr.Stop()

	assert.Eventually(t, func() bool { return len(c.Names()) == 2 }, 3*time.Second, 50*time.Millisecond)
}

func TestHTTPSourceRetriesTransientFailures(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			http.Error(w, "busy", http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`["picked_stocks_2024-05-01_0900.json"]`))
	}))
	defer srv.Close()

	cfg := config.Source{BaseURL: srv.URL, RetryAttempts: 3, RetryDelay: time.Millisecond}
	names, err := NewHTTPSource(cfg, util.Discard()).Catalog(context.Background())
	require.NoError(t, err)
	assert.Len(t, names, 1)
	assert.Equal(t, int32(3), calls.Load())
}

func TestHTTPSourceDoesNotRetryNotFound(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.NotFound(w, r)
	}))
	defer srv.Close()

	cfg := config.Source{BaseURL: srv.URL, RetryAttempts: 3, RetryDelay: time.Millisecond}
	_, err := NewHTTPSource(cfg, util.Discard()).Snapshot(context.Background(), "picked_stocks_2024-05-01_0900.json")
	assert.True(t, errors.Is(err, ErrSnapshotUnavailable))
	assert.Equal(t, int32(1), calls.Load())
}

func TestHTTPSourceMissingSnapshotKeepsBreakerClosed(t *testing.T) {
	var hits atomic.Int32
	srv := newUpstream(t, &hits)
	cfg := httpConfig(srv.URL)
	cfg.Breaker = config.Breaker{MaxFailures: 2, OpenTimeout: time.Hour}
	src := NewHTTPSource(cfg, util.Discard())
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := src.Snapshot(ctx, "picked_stocks_2099-01-01_0000.json")
		require.ErrorIs(t, err, ErrSnapshotUnavailable)
	}

	names, err := src.Catalog(ctx)
	require.NoError(t, err, "404s on one file must not open the breaker")
	assert.Len(t, names, 2)

	records, err := src.Snapshot(ctx, "picked_stocks_2024-05-01_0900.json")
	require.NoError(t, err)
	assert.Len(t, records, 2)
}

func TestCachedCatalogRefreshNotifiesOnChange(t *testing.T) {
	var names atomic.Value
	names.Store(`["a.json"]`)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(names.Load().(string)))
	}))
	defer srv.Close()

	c := NewCachedCatalog(NewHTTPSource(config.Source{BaseURL: srv.URL}, util.Discard()), util.Discard())
	id, ch := c.SubscribeRefresh()
	ctx := context.Background()

	require.NoError(t, c.Refresh(ctx))
	require.NoError(t, c.Refresh(ctx))
	require.NoError(t, c.Refresh(ctx))
	select {
	case <-ch:
	default:
		t.Fatal("first load should signal")
	}
	select {
	case <-ch:
		t.Fatal("unchanged catalog should not signal again")
	default:
	}

	names.Store(`["a.json","b.json"]`)
	require.NoError(t, c.Refresh(ctx))
	select {
	case <-ch:
	default:
		t.Fatal("changed catalog should signal")
	}

	c.UnsubscribeRefresh(id)
	_, ok := <-ch
	assert.False(t, ok, "unsubscribe closes the channel")
	require.NoError(t, c.Refresh(ctx))
}
