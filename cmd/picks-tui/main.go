// Command picks-tui is a terminal browser for daily stock picks. It runs a
// selection session locally against the configured source, or remotely
// against a picks-server stream when PICKS_STREAM_ADDR is set.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"stockpicks/internal/config"
	"stockpicks/internal/live"
	"stockpicks/internal/selection"
	"stockpicks/internal/source"
	"stockpicks/internal/util"
)

func main() {
	if err := config.LoadEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "loading .env: %v\n", err)
		os.Exit(1)
	}
	cfg, err := config.Load(config.Path())
	if err != nil {
		fmt.Fprintf(os.Stderr, "loading config: %v\n", err)
		os.Exit(1)
	}

	// The terminal belongs to the UI, so logs go to a file.
	logPath := fmt.Sprintf("/tmp/picks-tui-%s.log", time.Now().Format(util.DateLayout))
	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		fmt.Fprintf(os.Stderr, "opening log file: %v\n", err)
		os.Exit(1)
	}
	defer logFile.Close()
	logger := slog.New(slog.NewTextHandler(logFile, &slog.HandlerOptions{Level: util.ParseLevel(cfg.Logging.Level)}))

	loc, err := util.LoadLocation(cfg.Timezone)
	if err != nil {
		fmt.Fprintf(os.Stderr, "loading timezone: %v\n", err)
		os.Exit(1)
	}
	today := func() string { return util.Today(loc) }

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var (
		be    backend
		feed  <-chan tea.Msg
		label string
	)
	if addr := os.Getenv("PICKS_STREAM_ADDR"); addr != "" {
		sess, err := live.Dial(ctx, addr, logger)
		if err != nil {
			fmt.Fprintf(os.Stderr, "dialing %s: %v\n", addr, err)
			os.Exit(1)
		}
		defer sess.Close()
		be, feed, label = sess, remoteFeed(sess, logger), addr
	} else {
		src, err := source.New(cfg.Source, logger)
		if err != nil {
			fmt.Fprintf(os.Stderr, "creating source: %v\n", err)
			os.Exit(1)
		}
		ctrl := selection.NewController(source.NewCached(src, logger), today, logger,
			selection.WithFetchTimeout(cfg.Source.Timeout))
		// Subscribe before Run so the first catalog state cannot be missed.
		be, feed, label = ctrl, localFeed(ctx, ctrl), cfg.Source.Kind
		go func() {
			if err := ctrl.Run(ctx); err != nil && ctx.Err() == nil {
				logger.Error("selection controller", "error", err)
			}
		}()
	}

	p := tea.NewProgram(
		initialModel(be, feed, today, label),
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
	)

	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// localFeed turns controller states into UI messages, starting with the
// current state.
func localFeed(ctx context.Context, ctrl *selection.Controller) <-chan tea.Msg {
	out := make(chan tea.Msg, 8)
	id, states := ctrl.Subscribe(8)
	out <- viewMsg(ctrl.State().View())
	go func() {
		defer close(out)
		defer ctrl.Unsubscribe(id)
		for {
			select {
			case <-ctx.Done():
				return
			case st, ok := <-states:
				if !ok {
					return
				}
				select {
				case out <- viewMsg(st.View()):
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out
}

// remoteFeed turns stream updates into UI messages until the stream ends.
func remoteFeed(sess *live.Session, log *slog.Logger) <-chan tea.Msg {
	out := make(chan tea.Msg, 8)
	go func() {
		defer close(out)
		for {
			u, err := sess.Recv()
			if err != nil {
				log.Info("picks stream ended", "error", err)
				return
			}
			switch {
			case u.Err != "":
				out <- errMsg{err: errors.New(u.Err)}
			case u.State != nil:
				out <- viewMsg(*u.State)
			}
		}
	}()
	return out
}
