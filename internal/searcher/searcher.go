// Package searcher assembles a query processor from configuration: it
// opens the corpus, builds the index engine and then the k-gram matcher.
package searcher

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/approxsearch/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/approxsearch/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/approxsearch/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/approxsearch/internal/ingestion/source"
	"github.com/Adithya-Monish-Kumar-K/approxsearch/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/approxsearch/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/approxsearch/pkg/metrics"
)

// BuildInfo describes a completed build.
type BuildInfo struct {
	Source   string
	Stats    indexer.Stats
	KGrams   int
	Duration time.Duration
}

// Open builds a ready processor from cfg. The corpus is closed before
// Open returns.
func Open(ctx context.Context, cfg *config.Config) (*executor.Processor, BuildInfo, error) {
	start := time.Now()
	corpus, err := source.Open(ctx, cfg)
	if err != nil {
		return nil, BuildInfo{}, fmt.Errorf("opening corpus: %w", err)
	}
	defer corpus.Close()

	engine := indexer.NewEngine(index.BM25Params{K1: cfg.Index.BM25K1, B: cfg.Index.BM25B})
	if err := engine.Build(corpus); err != nil {
		return nil, BuildInfo{}, fmt.Errorf("building index from %s: %w", corpus.Name, err)
	}
	proc, err := executor.New(engine, cfg.Index.K, cfg.Index.DummyChar[0])
	if err != nil {
		return nil, BuildInfo{}, err
	}

	info := BuildInfo{
		Source:   corpus.Name,
		Stats:    engine.Stats(),
		KGrams:   proc.Matcher().KGramCount(),
		Duration: time.Since(start),
	}
	slog.Default().With("component", "searcher").Info("search index ready",
		"source", info.Source,
		"documents", info.Stats.Documents,
		"terms", info.Stats.Terms,
		"kgrams", info.KGrams,
		"duration", info.Duration,
	)
	return proc, info, nil
}

// Event is the analytics record of the build.
func (b BuildInfo) Event() analytics.IndexEvent {
	return analytics.IndexEvent{
		Type:       analytics.EventIndexBuilt,
		Source:     b.Source,
		Documents:  b.Stats.Documents,
		Terms:      b.Stats.Terms,
		KGrams:     b.KGrams,
		DurationMs: b.Duration.Milliseconds(),
		Timestamp:  time.Now().UTC(),
	}
}

// Record publishes the build figures to the index gauges.
func (b BuildInfo) Record(m *metrics.Metrics) {
	m.IndexDocuments.Set(float64(b.Stats.Documents))
	m.IndexTerms.Set(float64(b.Stats.Terms))
	m.IndexPostings.Set(float64(b.Stats.Postings))
	m.IndexKGrams.Set(float64(b.KGrams))
	m.IndexBuildSeconds.Set(b.Duration.Seconds())
}
