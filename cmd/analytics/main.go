// Command analytics consumes query events published by the searcher,
// aggregates them in memory and serves the figures over HTTP. With
// analytics.persistSnapshots set it also writes periodic snapshots to
// PostgreSQL.
//
// Usage:
//
//	analytics [-config configs/development.yaml]
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/Adithya-Monish-Kumar-K/approxsearch/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/approxsearch/internal/analytics/aggregator"
	"github.com/Adithya-Monish-Kumar-K/approxsearch/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/approxsearch/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/approxsearch/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/approxsearch/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/approxsearch/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/approxsearch/pkg/postgres"
	"golang.org/x/sync/errgroup"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		slog.Error("analytics service failed", "error", err)
		os.Exit(1)
	}
	slog.Info("analytics service stopped")
}

func run(ctx context.Context, cfg *config.Config) error {
	slog.Info("starting analytics service", "port", cfg.Server.Port, "topic", cfg.Kafka.Topics.SearchEvents)

	agg := analytics.NewAggregator()
	consumer := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.SearchEvents, analytics.HandleEvent(agg))

	checker := health.NewChecker()
	var (
		store     *aggregator.Store
		snapshots analytics.SnapshotSource
	)
	if cfg.Analytics.PersistSnapshots {
		db, err := postgres.New(ctx, cfg.Postgres)
		if err != nil {
			return err
		}
		defer db.Close()
		store = aggregator.NewStore(db)
		if err := store.EnsureSchema(ctx); err != nil {
			return err
		}
		snapshots = store
		checker.Register("postgres", health.Ping(db.Ping, false))
	}

	h := analytics.NewHandler(agg, snapshots)
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/analytics", h.Stats)
	mux.HandleFunc("GET /api/v1/analytics/snapshots", h.Snapshots)
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      middleware.RequestID(mux),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return consumer.Start(gctx)
	})
	if store != nil {
		g.Go(func() error {
			return store.RunPeriodicSave(gctx, agg, cfg.Analytics.SnapshotInterval)
		})
	}
	g.Go(func() error {
		slog.Info("analytics service listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
