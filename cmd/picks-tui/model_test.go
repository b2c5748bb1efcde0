package main

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"stockpicks/internal/domain"
	"stockpicks/internal/selection"
	"stockpicks/internal/source"
	"stockpicks/internal/util"
)

type fakeBackend struct {
	dates []string
	files []string
}

func (f *fakeBackend) SetDate(date string) error { f.dates = append(f.dates, date); return nil }
func (f *fakeBackend) SetFile(file string) error { f.files = append(f.files, file); return nil }

func testModel(t *testing.T) (model, *fakeBackend) {
	t.Helper()
	be := &fakeBackend{}
	m := initialModel(be, make(chan tea.Msg), func() string { return "2024-05-02" }, "test")
	next, _ := m.Update(tea.WindowSizeMsg{Width: 120, Height: 20})
	next, _ = next.Update(viewMsg(selection.View{
		Date: "2024-05-01",
		File: "picked_stocks_2024-05-01_15-00-00.json",
		Candidates: selection.Candidates([]string{
			"picked_stocks_2024-05-01_15-00-00.json",
			"picked_stocks_2024-05-01_09-00-00.json",
		}),
		Stocks: []domain.RankedStock{
			{StockRecord: domain.StockRecord{StockSymbol: "AAA", CompanyName: "Alpha"}, CurrentValueNum: 100, EstimatedPrice: 150, PotentialUpside: 50, IsTopPick: true},
			{StockRecord: domain.StockRecord{StockSymbol: "ZZZ", CompanyName: "Zed"}, CurrentValueNum: math.NaN(), EstimatedPrice: 10, PotentialUpside: math.NaN()},
		},
	}))
	return next.(model), be
}

func key(s string) tea.KeyMsg {
	switch s {
	case "left":
		return tea.KeyMsg{Type: tea.KeyLeft}
	case "right":
		return tea.KeyMsg{Type: tea.KeyRight}
	case "tab":
		return tea.KeyMsg{Type: tea.KeyTab}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestDateNavigation(t *testing.T) {
	m, be := testModel(t)

	m.Update(key("left"))
	m.Update(key("right"))
	m.Update(key("t"))

	want := []string{"2024-04-30", "2024-05-02", "2024-05-02"}
	if strings.Join(be.dates, ",") != strings.Join(want, ",") {
		t.Fatalf("dates = %v, want %v", be.dates, want)
	}
}

func TestTabCyclesFiles(t *testing.T) {
	m, be := testModel(t)

	m.Update(key("tab"))
	if len(be.files) != 1 || be.files[0] != "picked_stocks_2024-05-01_09-00-00.json" {
		t.Fatalf("files = %v", be.files)
	}
}

func TestRenderContent(t *testing.T) {
	m, _ := testModel(t)

	out := m.renderContent()
	if !strings.Contains(out, "AAA") || !strings.Contains(out, "Best Pick") {
		t.Errorf("top pick missing from output:\n%s", out)
	}
	if !strings.Contains(out, "N/A") {
		t.Errorf("non-finite upside should render N/A:\n%s", out)
	}
	if strings.Index(out, "AAA") > strings.Index(out, "ZZZ") {
		t.Errorf("rows out of order:\n%s", out)
	}
}

func TestRenderEmptyDate(t *testing.T) {
	be := &fakeBackend{}
	m := initialModel(be, make(chan tea.Msg), func() string { return "2024-05-02" }, "test")
	next, _ := m.Update(tea.WindowSizeMsg{Width: 80, Height: 10})
	next, _ = next.Update(viewMsg(selection.View{Date: "2024-05-02"}))

	mm := next.(model)
	if got := mm.renderContent(); !strings.Contains(got, "nothing selected") {
		t.Errorf("renderContent = %q", got)
	}
	if got := mm.renderFiles(); !strings.Contains(got, "no snapshots") {
		t.Errorf("renderFiles = %q", got)
	}
}

func TestLocalFeedStartsWithCurrentState(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	dir := t.TempDir()
	index := []byte(`["picked_stocks_2024-05-02_0900.json"]`)
	if err := os.WriteFile(filepath.Join(dir, "index.json"), index, 0o644); err != nil {
		t.Fatal(err)
	}
	ctrl := selection.NewController(source.NewDirSource(dir, "", false, util.Discard()),
		func() string { return "2024-05-02" }, util.Discard())

	feed := localFeed(ctx, ctrl)
	first, ok := (<-feed).(viewMsg)
	if !ok {
		t.Fatal("first message is not a view")
	}
	if first.Date != "" || len(first.Candidates) != 0 {
		t.Errorf("first view = %+v, want the empty pre-catalog state", first)
	}

	go ctrl.Run(ctx)
	deadline := time.After(3 * time.Second)
	for {
		select {
		case msg := <-feed:
			if v, ok := msg.(viewMsg); ok && v.Date == "2024-05-02" && len(v.Candidates) == 1 {
				return
			}
		case <-deadline:
			t.Fatal("catalog state never reached the feed")
		}
	}
}
