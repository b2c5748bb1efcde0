// Command picks-archive ranks every snapshot in the catalog and writes the
// results to a Parquet tree or a SQLite database.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"stockpicks/internal/config"
	"stockpicks/internal/rank"
	"stockpicks/internal/snapshot"
	"stockpicks/internal/source"
	"stockpicks/internal/store"
	"stockpicks/internal/util"
)

func main() {
	date := flag.String("date", "", "only archive snapshots for this date (YYYY-MM-DD)")
	format := flag.String("format", "", "override archive format: parquet or sqlite")
	skipExisting := flag.Bool("skip-existing", true, "skip files already in the archive")
	flag.Parse()

	if err := config.LoadEnv(); err != nil {
		log.Fatalf("failed to load .env: %v", err)
	}
	cfg, err := config.Load(config.Path())
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if *format != "" {
		cfg.Archive.Format = *format
	}
	if *date != "" && !snapshot.ValidDate(*date) {
		log.Fatalf("-date must be YYYY-MM-DD, got %q", *date)
	}

	// Dual logger: stdout + /tmp log file.
	logFileName := fmt.Sprintf("/tmp/picks-archive-%s.log", time.Now().Format(util.DateLayout))
	logFile, err := os.Create(logFileName)
	if err != nil {
		log.Fatalf("failed to create log file: %v", err)
	}
	defer logFile.Close()

	w := io.MultiWriter(os.Stdout, logFile)
	logger := slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: util.ParseLevel(cfg.Logging.Level)}))
	slog.SetDefault(logger)

	rs, closeStore, err := openStore(cfg.Archive)
	if err != nil {
		log.Fatalf("failed to open archive: %v", err)
	}
	defer closeStore()

	src, err := source.New(cfg.Source, logger)
	if err != nil {
		log.Fatalf("failed to create source: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	start := time.Now()
	written, failed, err := archive(ctx, src, rs, archiveOptions{
		Date:         *date,
		Workers:      cfg.Archive.Workers,
		SkipExisting: *skipExisting,
	}, logger)
	if err != nil {
		logger.Error("archive failed", "error", err)
		os.Exit(1)
	}
	logger.Info("archive complete",
		"format", cfg.Archive.Format,
		"written", written,
		"failed", failed,
		"elapsed", time.Since(start).Round(time.Millisecond),
	)
	if failed > 0 {
		os.Exit(2)
	}
}

func openStore(cfg config.Archive) (store.RankStore, func(), error) {
	switch cfg.Format {
	case "parquet":
		return store.NewParquetStore(cfg.OutDir), func() {}, nil
	case "sqlite":
		s, err := store.NewSQLiteStore(cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return s, func() { s.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown archive format %q", cfg.Format)
	}
}

type archiveOptions struct {
	Date         string
	Workers      int
	SkipExisting bool
}

// archive ranks and stores every selected snapshot. A file that cannot be
// fetched or written is logged and counted, not fatal; only a catalog
// failure or cancellation aborts the run.
func archive(ctx context.Context, src source.Source, rs store.RankStore, opts archiveOptions, log *slog.Logger) (written, failed int64, err error) {
	catalog, err := src.Catalog(ctx)
	if err != nil {
		return 0, 0, err
	}

	files := catalog
	if opts.Date != "" {
		files = snapshot.CandidatesForDate(catalog, opts.Date)
	}

	if opts.SkipExisting {
		existing, err := rs.ListFiles(ctx)
		if err != nil {
			return 0, 0, fmt.Errorf("listing archive: %w", err)
		}
		have := make(map[string]bool, len(existing))
		for _, f := range existing {
			have[f] = true
		}
		todo := files[:0:0]
		for _, f := range files {
			if !have[f] {
				todo = append(todo, f)
			}
		}
		log.Info("skipping archived files", "existing", len(files)-len(todo))
		files = todo
	}

	log.Info("archiving snapshots", "files", len(files), "workers", opts.Workers)

	var nWritten, nFailed atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	if opts.Workers > 0 {
		g.SetLimit(opts.Workers)
	}

	for _, name := range files {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			records, err := src.Snapshot(gctx, name)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				log.Warn("skipping snapshot", "file", name, "error", err)
				nFailed.Add(1)
				return nil
			}
			ranked := rank.Rank(records)
			if err := rs.WriteRanked(gctx, name, ranked); err != nil {
				log.Warn("writing ranked picks", "file", name, "error", err)
				nFailed.Add(1)
				return nil
			}
			nWritten.Add(1)
			log.Debug("archived", "file", name, "picks", len(ranked))
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nWritten.Load(), nFailed.Load(), err
	}
	if err := ctx.Err(); err != nil {
		return nWritten.Load(), nFailed.Load(), err
	}
	return nWritten.Load(), nFailed.Load(), nil
}
