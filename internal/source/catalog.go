package source

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
)

// CachedCatalog holds the most recently fetched catalog. Each refresh
// replaces the whole list; readers never see a partial update.
type CachedCatalog struct {
	src     Source
	log     *slog.Logger
	current atomic.Pointer[catalogEntry]

	subsMu sync.Mutex
	nextID int
	subs   map[int]chan struct{}
}

// RefreshNotifier is implemented by sources that announce catalog changes.
type RefreshNotifier interface {
	SubscribeRefresh() (int, <-chan struct{})
	UnsubscribeRefresh(id int)
}

type catalogEntry struct {
	names     []string
	fetchedAt time.Time
}

// NewCachedCatalog creates an empty cache over src.
func NewCachedCatalog(src Source, log *slog.Logger) *CachedCatalog {
	return &CachedCatalog{src: src, log: log, subs: make(map[int]chan struct{})}
}

// Refresh fetches the catalog and swaps it in. On failure the previous
// catalog is kept.
func (c *CachedCatalog) Refresh(ctx context.Context) error {
	names, err := c.src.Catalog(ctx)
	if err != nil {
		c.log.Error("catalog refresh failed", "error", err)
		return err
	}
	prev := c.current.Swap(&catalogEntry{names: names, fetchedAt: time.Now()})
	c.log.Info("catalog refreshed", "files", len(names))
	if prev == nil || !slices.Equal(prev.names, names) {
		c.notify()
	}
	return nil
}

// SubscribeRefresh returns a channel that receives a signal whenever a
// refresh changes the catalog. Signals coalesce for slow readers.
func (c *CachedCatalog) SubscribeRefresh() (int, <-chan struct{}) {
	ch := make(chan struct{}, 1)
	c.subsMu.Lock()
	id := c.nextID
	c.nextID++
	c.subs[id] = ch
	c.subsMu.Unlock()
	return id, ch
}

// UnsubscribeRefresh removes a subscriber and closes its channel.
func (c *CachedCatalog) UnsubscribeRefresh(id int) {
	c.subsMu.Lock()
	if ch, ok := c.subs[id]; ok {
		delete(c.subs, id)
		close(ch)
	}
	c.subsMu.Unlock()
}

func (c *CachedCatalog) notify() {
	c.subsMu.Lock()
	defer c.subsMu.Unlock()
	for _, ch := range c.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// Names returns the cached catalog, or nil if none has been loaded.
func (c *CachedCatalog) Names() []string {
	if e := c.current.Load(); e != nil {
		return e.names
	}
	return nil
}

// FetchedAt returns when the cached catalog was loaded.
func (c *CachedCatalog) FetchedAt() time.Time {
	if e := c.current.Load(); e != nil {
		return e.fetchedAt
	}
	return time.Time{}
}

// Catalog serves the cached list, loading it on first use.
func (c *CachedCatalog) Catalog(ctx context.Context) ([]string, error) {
	if e := c.current.Load(); e != nil {
		return e.names, nil
	}
	if err := c.Refresh(ctx); err != nil {
		return nil, err
	}
	return c.Names(), nil
}

// Schedule starts a cron job that refreshes the catalog on expr (standard
// cron syntax or descriptors such as "@every 5m"). The returned cron must be
// stopped by the caller.
func (c *CachedCatalog) Schedule(ctx context.Context, expr string) (*cron.Cron, error) {
	cr := cron.New()
	_, err := cr.AddFunc(expr, func() {
		rctx, cancel := context.WithTimeout(ctx, time.Minute)
		defer cancel()
		_ = c.Refresh(rctx)
	})
	if err != nil {
		return nil, err
	}
	cr.Start()
	return cr, nil
}
