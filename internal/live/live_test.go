package live

import (
	"context"
	"math"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/test/bufconn"

	"stockpicks/internal/domain"
	"stockpicks/internal/selection"
	"stockpicks/internal/source"
	"stockpicks/internal/util"
)

type memSource struct{}

func (memSource) Catalog(context.Context) ([]string, error) {
	return []string{
		"picked_stocks_2024-05-01_0900.json",
		"picked_stocks_2024-05-02_0900.json",
	}, nil
}

func (memSource) Snapshot(_ context.Context, name string) ([]domain.StockRecord, error) {
	switch name {
	case "picked_stocks_2024-05-01_0900.json":
		return []domain.StockRecord{
			{StockSymbol: "AAA", CurrentValue: "$100", AnalystEstimatedPrice: "$150"},
			{StockSymbol: "BBB", CurrentValue: "$200", AnalystEstimatedPrice: "$180"},
			{StockSymbol: "ZZZ", CurrentValue: "$0", AnalystEstimatedPrice: "$1"},
		}, nil
	}
	return nil, source.ErrSnapshotUnavailable
}

// growingSource starts with memSource's catalog and lets tests add files.
type growingSource struct {
	memSource
	mu    sync.Mutex
	extra map[string][]domain.StockRecord
}

func (g *growingSource) add(name string, records []domain.StockRecord) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.extra == nil {
		g.extra = map[string][]domain.StockRecord{}
	}
	g.extra[name] = records
}

func (g *growingSource) Catalog(ctx context.Context) ([]string, error) {
	names, _ := g.memSource.Catalog(ctx)
	g.mu.Lock()
	defer g.mu.Unlock()
	for name := range g.extra {
		names = append(names, name)
	}
	return names, nil
}

func (g *growingSource) Snapshot(ctx context.Context, name string) ([]domain.StockRecord, error) {
	g.mu.Lock()
	records, ok := g.extra[name]
	g.mu.Unlock()
	if ok {
		return records, nil
	}
	return g.memSource.Snapshot(ctx, name)
}

func startServer(t *testing.T) *Session {
	return startServerWith(t, memSource{})
}

func startServerWith(t *testing.T, src source.Source) *Session {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	gs := grpc.NewServer()
	NewServer(src, func() string { return "2024-05-01" }, nil, util.Discard()).RegisterGRPC(gs)
	go gs.Serve(lis)
	t.Cleanup(gs.Stop)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	sess, err := Dial(ctx, "passthrough:///bufnet", util.Discard(),
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}))
	require.NoError(t, err)
	t.Cleanup(func() { sess.Close() })
	return sess
}

// recvUntil reads updates until match returns true.
func recvUntil(t *testing.T, sess *Session, match func(Update) bool) Update {
	t.Helper()
	got := make(chan Update, 1)
	go func() {
		for {
			u, err := sess.Recv()
			if err != nil {
				return
			}
			if match(u) {
				got <- u
				return
			}
		}
	}()
	select {
	case u := <-got:
		return u
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for update")
		return Update{}
	}
}

func TestWatchStreamsRankedState(t *testing.T) {
	sess := startServer(t)

	u := recvUntil(t, sess, func(u Update) bool { return u.State != nil && len(u.State.Stocks) == 3 })
	st := u.State
	assert.Equal(t, "2024-05-01", st.Date)
	assert.Equal(t, "picked_stocks_2024-05-01_0900.json", st.File)
	require.Len(t, st.Candidates, 1)
	assert.Equal(t, "2024-05-01_0900", st.Candidates[0].Label)

	assert.Equal(t, "AAA", st.Stocks[0].StockSymbol)
	assert.True(t, st.Stocks[0].IsTopPick)
	assert.Equal(t, 50.0, st.Stocks[0].PotentialUpside)
	assert.Equal(t, "ZZZ", st.Stocks[2].StockSymbol)
	assert.True(t, math.IsNaN(st.Stocks[2].PotentialUpside), "infinite upside travels as null")
}

func TestWatchCommands(t *testing.T) {
	sess := startServer(t)
	recvUntil(t, sess, func(u Update) bool { return u.State != nil && len(u.State.Stocks) == 3 })

	require.NoError(t, sess.SetFile("picked_stocks_2024-05-02_0900.json"))
	u := recvUntil(t, sess, func(u Update) bool { return u.Err != "" })
	assert.Contains(t, u.Err, "not a candidate")

	require.NoError(t, sess.SetDate("2024-05-02"))
	u = recvUntil(t, sess, func(u Update) bool {
		return u.State != nil && u.State.Date == "2024-05-02" && u.State.File != ""
	})
	assert.Equal(t, "picked_stocks_2024-05-02_0900.json", u.State.File)

	require.NoError(t, sess.SetDate("not-a-date"))
	u = recvUntil(t, sess, func(u Update) bool { return u.Err != "" })
	assert.Contains(t, u.Err, "YYYY-MM-DD")
}

func TestWatchReloadPicksUpNewSnapshot(t *testing.T) {
	src := &growingSource{}
	sess := startServerWith(t, src)
	recvUntil(t, sess, func(u Update) bool { return u.State != nil && len(u.State.Stocks) == 3 })

	src.add("picked_stocks_2024-05-01_1500.json", []domain.StockRecord{
		{StockSymbol: "NEW", CurrentValue: "$10", AnalystEstimatedPrice: "$20"},
	})
	require.NoError(t, sess.Reload())

	u := recvUntil(t, sess, func(u Update) bool {
		return u.State != nil && u.State.File == "picked_stocks_2024-05-01_1500.json" && len(u.State.Stocks) == 1
	})
	assert.Equal(t, "2024-05-01", u.State.Date)
	assert.Len(t, u.State.Candidates, 2)
	assert.Equal(t, "NEW", u.State.Stocks[0].StockSymbol)
}

func TestDecodeUpdate(t *testing.T) {
	msg, err := stateMessage(selection.View{Date: "2024-05-01", Stocks: []domain.RankedStock{}})
	require.NoError(t, err)
	u, err := decodeUpdate(msg)
	require.NoError(t, err)
	require.NotNil(t, u.State)
	assert.Equal(t, "2024-05-01", u.State.Date)

	u, err = decodeUpdate(errorMessage("boom"))
	require.NoError(t, err)
	assert.Equal(t, "boom", u.Err)

	_, err = decodeUpdate(commandMessage("date", "x"))
	assert.Error(t, err)
}
