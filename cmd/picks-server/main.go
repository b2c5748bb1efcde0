package main

import (
	"context"
	"log"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"google.golang.org/grpc"

	"stockpicks/internal/config"
	"stockpicks/internal/httpapi"
	"stockpicks/internal/live"
	"stockpicks/internal/quote"
	"stockpicks/internal/source"
	"stockpicks/internal/util"
)

func main() {
	if err := config.LoadEnv(); err != nil {
		log.Fatalf("%v", err)
	}
	cfg, err := config.Load(config.Path())
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	logger := util.NewLogger(cfg.Logging.Level, cfg.Logging.Format)
	util.SetDefault(logger)

	loc, err := util.LoadLocation(cfg.Timezone)
	if err != nil {
		log.Fatalf("%v", err)
	}

	upstream, err := source.New(cfg.Source, logger)
	if err != nil {
		log.Fatalf("creating source: %v", err)
	}
	cached := source.NewCached(upstream, logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// A failed first load is not fatal; the cron job keeps trying.
	_ = cached.Refresh(ctx)
	refresher, err := cached.Schedule(ctx, cfg.Refresh.Schedule)
	if err != nil {
		log.Fatalf("scheduling catalog refresh %q: %v", cfg.Refresh.Schedule, err)
	}
	defer refresher.Stop()

	var quoter quote.Quoter
	if cfg.Quotes.Enabled {
		quoter = quote.NewAlpacaQuoter(cfg.Quotes)
		logger.Info("quote enrichment enabled")
	}

	metrics := httpapi.NewMetrics()
	srv := httpapi.NewServer(cached, quoter, loc, metrics, logger)
	today := func() string { return util.Today(loc) }

	// Start gRPC server.
	lis, err := net.Listen("tcp", cfg.Server.GRPCAddr())
	if err != nil {
		log.Fatalf("listening on %s: %v", cfg.Server.GRPCAddr(), err)
	}
	gs := grpc.NewServer()
	live.NewServer(cached, today, metrics, logger).RegisterGRPC(gs)
	go func() {
		logger.Info("gRPC server listening", "addr", lis.Addr().String())
		if err := gs.Serve(lis); err != nil {
			logger.Error("gRPC server error", "error", err)
		}
	}()

	// Start HTTP server.
	httpServer := &http.Server{
		Addr:    cfg.Server.Addr(),
		Handler: srv.Handler(),
	}
	go func() {
		logger.Info("picks server listening", "addr", httpServer.Addr, "source", cfg.Source.Kind)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("HTTP server error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down picks server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}

	// Watch streams only end when clients leave, so bound the graceful stop.
	stopped := make(chan struct{})
	go func() {
		gs.GracefulStop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-shutdownCtx.Done():
		gs.Stop()
	}
}
