package source

import (
	"context"
	"log/slog"
	"sync"

	"stockpicks/internal/domain"
)

// SnapshotCache memoizes successful snapshot fetches. Snapshot files are
// immutable once published, so entries never expire.
type SnapshotCache struct {
	src   Source
	files sync.Map // name -> []domain.StockRecord
}

// NewSnapshotCache creates a SnapshotCache over src.
func NewSnapshotCache(src Source) *SnapshotCache {
	return &SnapshotCache{src: src}
}

// Snapshot returns the cached records for name, fetching them on a miss.
// Failures are not cached.
func (c *SnapshotCache) Snapshot(ctx context.Context, name string) ([]domain.StockRecord, error) {
	if v, ok := c.files.Load(name); ok {
		return v.([]domain.StockRecord), nil
	}
	records, err := c.src.Snapshot(ctx, name)
	if err != nil {
		return nil, err
	}
	actual, _ := c.files.LoadOrStore(name, records)
	return actual.([]domain.StockRecord), nil
}

// Cached is a Source backed by a CachedCatalog and a SnapshotCache. It is
// the shared, server-wide view of upstream.
type Cached struct {
	*CachedCatalog
	*SnapshotCache
}

// NewCached wraps src with both caches.
func NewCached(src Source, log *slog.Logger) *Cached {
	return &Cached{
		CachedCatalog: NewCachedCatalog(src, log),
		SnapshotCache: NewSnapshotCache(src),
	}
}

var (
	_ Source          = (*Cached)(nil)
	_ RefreshNotifier = (*Cached)(nil)
)
