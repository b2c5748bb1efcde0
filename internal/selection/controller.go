package selection

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"stockpicks/internal/domain"
	"stockpicks/internal/source"
)

// ErrStopped is returned by commands sent after Run has returned.
var ErrStopped = errors.New("selection controller stopped")

// Observer receives controller activity, e.g. for metrics.
type Observer interface {
	FetchDone(kind string, err error, elapsed time.Duration)
	StaleDiscarded()
}

// Stats are controller counters.
type Stats struct {
	Discarded int64
}

type event interface{}

type catalogResult struct {
	names []string
	err   error
}

type snapshotResult struct {
	key     Key
	records []domain.StockRecord
	err     error
}

type dateCmd struct{ date string }

type fileCmd struct {
	file  string
	reply chan error
}

// Controller owns one session's State. All transitions run on the Run
// goroutine; fetches run on their own goroutines and post results back.
type Controller struct {
	src      source.Source
	today    func() string
	log      *slog.Logger
	observer Observer
	timeout  time.Duration

	events  chan event
	done    chan struct{}
	updates <-chan struct{}

	mu    sync.RWMutex
	state State

	// dateChosen is set once a client picks a date; later catalog loads
	// keep that date instead of reseeding today. Loop goroutine only.
	dateChosen bool
	// loaded is set after the first successful catalog load. Loop goroutine
	// only.
	loaded bool

	discarded atomic.Int64

	subsMu    sync.Mutex
	nextSubID int
	subs      map[int]chan State
}

// Option configures a Controller.
type Option func(*Controller)

// WithObserver reports fetches and stale discards to o.
func WithObserver(o Observer) Option {
	return func(c *Controller) { c.observer = o }
}

// WithFetchTimeout bounds each upstream fetch.
func WithFetchTimeout(d time.Duration) Option {
	return func(c *Controller) { c.timeout = d }
}

// WithCatalogUpdates reloads the catalog every time ch fires, e.g. after a
// shared catalog cache refreshed.
func WithCatalogUpdates(ch <-chan struct{}) Option {
	return func(c *Controller) { c.updates = ch }
}

// NewController creates a controller. today supplies the calendar date the
// selection starts on once the catalog arrives.
func NewController(src source.Source, today func() string, log *slog.Logger, opts ...Option) *Controller {
	c := &Controller{
		src:     src,
		today:   today,
		log:     log,
		timeout: 30 * time.Second,
		events:  make(chan event, 16),
		done:    make(chan struct{}),
		subs:    make(map[int]chan State),
		state: State{
			Catalog:    []string{},
			Candidates: []string{},
			Stocks:     []domain.RankedStock{},
		},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Run loads the catalog and processes events until ctx is cancelled.
func (c *Controller) Run(ctx context.Context) error {
	defer close(c.done)

	go c.loadCatalog(ctx)

	updates := c.updates
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev := <-c.events:
			c.handle(ctx, ev)
		case _, ok := <-updates:
			if !ok {
				updates = nil
				continue
			}
			go c.loadCatalog(ctx)
		}
	}
}

// SetDate changes the selected date.
func (c *Controller) SetDate(date string) error {
	return c.send(dateCmd{date: date})
}

// SetFile selects one of the current candidates. It returns ErrUnknownFile
// if file is not a candidate.
func (c *Controller) SetFile(file string) error {
	reply := make(chan error, 1)
	if err := c.send(fileCmd{file: file, reply: reply}); err != nil {
		return err
	}
	select {
	case err := <-reply:
		return err
	case <-c.done:
		return ErrStopped
	}
}

// Reload fetches the catalog again and refetches the selected snapshot. A
// date chosen with SetDate is kept; otherwise the date follows today. A
// failed reload keeps the current state.
func (c *Controller) Reload(ctx context.Context) {
	go c.loadCatalog(ctx)
}

// State returns the current state.
func (c *Controller) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Stats returns the controller counters.
func (c *Controller) Stats() Stats {
	return Stats{Discarded: c.discarded.Load()}
}

// Subscribe returns a channel that receives every new State. bufSize
// controls the channel buffer; when a consumer falls behind its oldest
// pending state is dropped.
func (c *Controller) Subscribe(bufSize int) (int, <-chan State) {
	if bufSize < 1 {
		bufSize = 1
	}
	ch := make(chan State, bufSize)
	c.subsMu.Lock()
	id := c.nextSubID
	c.nextSubID++
	c.subs[id] = ch
	c.subsMu.Unlock()
	return id, ch
}

// Unsubscribe removes a subscriber and closes its channel.
func (c *Controller) Unsubscribe(id int) {
	c.subsMu.Lock()
	if ch, ok := c.subs[id]; ok {
		delete(c.subs, id)
		close(ch)
	}
	c.subsMu.Unlock()
}

func (c *Controller) send(ev event) error {
	select {
	case <-c.done:
		return ErrStopped
	default:
	}
	select {
	case c.events <- ev:
		return nil
	case <-c.done:
		return ErrStopped
	}
}

// post delivers a fetch result to the loop unless it has stopped.
func (c *Controller) post(ctx context.Context, ev event) {
	select {
	case c.events <- ev:
	case <-ctx.Done():
	case <-c.done:
	}
}

func (c *Controller) handle(ctx context.Context, ev event) {
	st := c.State()

	switch e := ev.(type) {
	case catalogResult:
		if e.err != nil {
			if c.loaded {
				c.log.Warn("catalog reload failed, keeping current catalog", "error", e.err)
				return
			}
			c.log.Error("catalog unavailable", "error", e.err)
			c.commit(st.OnCatalogFailed())
			return
		}
		// After the first load a catalog refines the current selection
		// instead of resetting it, unless the day has rolled over.
		if c.loaded && (c.dateChosen || st.Date == c.today()) {
			next, fetch := st.OnCatalogReloaded(e.names)
			c.commit(next)
			c.startFetch(ctx, fetch)
			return
		}
		c.loaded = true
		date := c.today()
		if c.dateChosen {
			date = st.Date
		}
		next, fetch := st.OnCatalogLoaded(e.names, date)
		c.commit(next)
		c.startFetch(ctx, fetch)

	case dateCmd:
		c.dateChosen = true
		next, fetch := st.OnDateChanged(e.date)
		c.commit(next)
		c.startFetch(ctx, fetch)

	case fileCmd:
		next, fetch, err := st.OnFileChanged(e.file)
		if err != nil {
			e.reply <- err
			return
		}
		c.commit(next)
		e.reply <- nil
		c.startFetch(ctx, fetch)

	case snapshotResult:
		var (
			next    State
			applied bool
		)
		if e.err != nil {
			next, applied = st.OnSnapshotFailed(e.key)
		} else {
			next, applied = st.OnSnapshotLoaded(e.key, e.records)
		}
		if !applied {
			c.discarded.Add(1)
			if c.observer != nil {
				c.observer.StaleDiscarded()
			}
			c.log.Debug("discarding stale snapshot", "date", e.key.Date, "file", e.key.File)
			return
		}
		c.commit(next)
	}
}

func (c *Controller) commit(next State) {
	c.mu.Lock()
	c.state = next
	c.mu.Unlock()
	c.broadcast(next)
}

// broadcast sends a state to all subscribers without blocking.
func (c *Controller) broadcast(st State) {
	c.subsMu.Lock()
	defer c.subsMu.Unlock()
	for _, ch := range c.subs {
		select {
		case ch <- st:
			continue
		default:
		}
		// Slow consumer: drop the oldest pending state and retry once.
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- st:
		default:
		}
	}
}

func (c *Controller) loadCatalog(ctx context.Context) {
	fctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	names, err := c.src.Catalog(fctx)
	if c.observer != nil {
		c.observer.FetchDone("catalog", err, time.Since(start))
	}
	c.post(ctx, catalogResult{names: names, err: err})
}

func (c *Controller) startFetch(ctx context.Context, f *Fetch) {
	if f == nil {
		return
	}
	key := f.Key
	go func() {
		fctx, cancel := context.WithTimeout(ctx, c.timeout)
		defer cancel()

		start := time.Now()
		records, err := c.src.Snapshot(fctx, key.File)
		if c.observer != nil {
			c.observer.FetchDone("snapshot", err, time.Since(start))
		}
		if err != nil {
			c.log.Warn("snapshot unavailable", "date", key.Date, "file", key.File, "error", err)
		}
		c.post(ctx, snapshotResult{key: key, records: records, err: err})
	}()
}
