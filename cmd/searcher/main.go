// Command searcher builds the search index from the configured corpus and
// serves the JSON API, the JSONP endpoint and the web root.
//
// Usage:
//
//	searcher [-config configs/development.yaml]
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
	"time"

	"github.com/Adithya-Monish-Kumar-K/approxsearch/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/approxsearch/internal/searcher"
	"github.com/Adithya-Monish-Kumar-K/approxsearch/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/approxsearch/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/approxsearch/internal/searcher/handler"
	"github.com/Adithya-Monish-Kumar-K/approxsearch/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/approxsearch/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/approxsearch/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/approxsearch/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/approxsearch/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/approxsearch/pkg/middleware"
	pkgredis "github.com/Adithya-Monish-Kumar-K/approxsearch/pkg/redis"
	"golang.org/x/sync/errgroup"
)

const pruneInterval = time.Minute

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
		slog.Error("search service failed", "error", err)
		os.Exit(1)
	}
	slog.Info("search service stopped")
}

func run(ctx context.Context, cfg *config.Config) error {
	slog.Info("starting search service",
		"port", cfg.Server.Port,
		"corpus_source", cfg.Corpus.Source,
		"k", cfg.Index.K,
	)
	m := metrics.New(nil)

	proc, info, err := searcher.Open(ctx, cfg)
	if err != nil {
		return err
	}
	info.Record(m)

	var collector *analytics.Collector
	if cfg.Kafka.Enabled {
		producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.SearchEvents)
		defer producer.Close()
		event := info.Event()
		if err := producer.Publish(ctx, kafka.Event{Key: analytics.EventKey(event), Value: event}); err != nil {
			slog.Warn("publishing index build event failed", "error", err)
		}
		collector = analytics.NewCollector(producer, cfg.Analytics.BufferSize)
		collector.Start(ctx)
		defer collector.Close()
		slog.Info("analytics collector started", "topic", producer.Topic())
	}

	opts := handler.Options{
		Collector:    collector,
		Metrics:      m,
		DefaultLimit: cfg.Search.DefaultLimit,
		MaxResults:   cfg.Search.MaxResults,
		WebRoot:      cfg.Web.Root,
	}
	var redisClient *pkgredis.Client
	if cfg.Redis.Enabled {
		redisClient, err = pkgredis.NewClient(ctx, cfg.Redis)
		if err != nil {
			slog.Warn("redis unavailable, query caching disabled", "error", err)
		} else {
			defer redisClient.Close()
			opts.SearchCache = cache.New[executor.SearchResult](redisClient, cache.SearchPrefix, cfg.Redis.CacheTTL, cache.SearchKey)
			opts.SuggestCache = cache.New[executor.SuggestResult](redisClient, cache.SuggestPrefix, cfg.Redis.CacheTTL, cache.SuggestKey)
			slog.Info("query cache enabled", "addr", cfg.Redis.Addr, "ttl", cfg.Redis.CacheTTL)
		}
	}

	checker := health.NewChecker()
	checker.Register("index", health.Ready("index", proc.Engine().Ready))
	if cfg.Redis.Enabled {
		var ping func(context.Context) error
		if redisClient != nil {
			ping = redisClient.Ping
		}
		checker.Register("redis", health.Ping(ping, true))
	}

	mux := http.NewServeMux()
	handler.New(proc, opts).Register(mux)
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	var limiter *middleware.RateLimiter
	if cfg.RateLimit.RequestsPerSecond > 0 {
		limiter = middleware.NewRateLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst)
	}

	var chain http.Handler = mux
	chain = middleware.Timeout(cfg.Server.WriteTimeout)(chain)
	chain = middleware.CORS(cfg.Server.CORSOrigins)(chain)
	chain = middleware.RateLimit(limiter, m)(chain)
	chain = middleware.Metrics(m)(chain)
	chain = middleware.RequestID(chain)

	servers := []*http.Server{{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      chain,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}}
	if cfg.Metrics.Enabled {
		servers = append(servers, metrics.NewServer(cfg.Metrics.Port))
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, srv := range servers {
		g.Go(func() error {
			slog.Info("listening", "addr", srv.Addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("serving %s: %w", srv.Addr, err)
			}
			return nil
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		var errs []error
		for _, srv := range servers {
			errs = append(errs, srv.Shutdown(shutdownCtx))
		}
		return errors.Join(errs...)
	})
	if limiter != nil {
		g.Go(func() error {
			ticker := time.NewTicker(pruneInterval)
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					if n := limiter.Prune(); n > 0 {
						slog.Debug("pruned idle rate limiters", "count", n)
					}
				case <-gctx.Done():
					return nil
				}
			}
		})
	}
	return g.Wait()
}
