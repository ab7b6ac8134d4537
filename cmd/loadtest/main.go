// Command loadtest drives the searcher's search and suggest endpoints with
// a fixed number of concurrent workers and reports latency per endpoint.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

var defaultQueries = []string{
	"approximate search",
	"edit distance",
	"inverted index",
	"search engine",
	"vocabulary",
	"vocabluary",
	"serch",
	"documnet ranking",
	"prefix matching",
	"k-gram index",
}

type Config struct {
	BaseURL      string
	Concurrency  int
	Duration     time.Duration
	RPS          float64
	SuggestRatio float64
	Queries      []string
}

func main() {
	baseURL := flag.String("url", "http://localhost:8080", "base URL of the searcher")
	concurrency := flag.Int("concurrency", 10, "number of concurrent workers")
	duration := flag.Duration("duration", 30*time.Second, "test duration")
	rps := flag.Float64("rps", 0, "overall request rate limit; 0 means unlimited")
	suggestRatio := flag.Float64("suggest-ratio", 0.3, "fraction of requests sent to the suggest endpoint")
	queryFile := flag.String("queries", "", "file with one query per line")
	flag.Parse()

	queries := defaultQueries
	if *queryFile != "" {
		loaded, err := loadQueries(*queryFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "loading queries: %v\n", err)
			os.Exit(1)
		}
		queries = loaded
	}
	cfg := Config{
		BaseURL:      strings.TrimSuffix(*baseURL, "/"),
		Concurrency:  *concurrency,
		Duration:     *duration,
		RPS:          *rps,
		SuggestRatio: *suggestRatio,
		Queries:      queries,
	}

	fmt.Printf("target %s, %d workers, %s, %d queries\n\n", cfg.BaseURL, cfg.Concurrency, cfg.Duration, len(cfg.Queries))
	start := time.Now()
	stats := run(context.Background(), cfg, http.DefaultTransport)
	stats.Report(os.Stdout, time.Since(start))
	if stats.Total() == 0 {
		fmt.Println("no requests completed; is the searcher running?")
		os.Exit(1)
	}
}

func loadQueries(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var queries []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		if q := strings.TrimSpace(sc.Text()); q != "" {
			queries = append(queries, q)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if len(queries) == 0 {
		return nil, fmt.Errorf("%s has no queries", path)
	}
	return queries, nil
}

// run drives the endpoints until cfg.Duration elapses.
func run(ctx context.Context, cfg Config, transport http.RoundTripper) *Stats {
	ctx, cancel := context.WithTimeout(ctx, cfg.Duration)
	defer cancel()

	client := &http.Client{Timeout: 10 * time.Second, Transport: transport}
	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.RPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RPS), max(1, cfg.Concurrency))
	}
	stats := NewStats()

	var g errgroup.Group
	for w := range cfg.Concurrency {
		g.Go(func() error {
			for i := w; ; i++ {
				if err := limiter.Wait(ctx); err != nil {
					return nil
				}
				kind, target := requestFor(cfg, i)
				start := time.Now()
				status, err := get(ctx, client, target)
				if ctx.Err() != nil {
					return nil
				}
				stats.Record(kind, time.Since(start), status, err)
			}
		})
	}
	_ = g.Wait()
	return stats
}

func requestFor(cfg Config, i int) (kind, target string) {
	q := url.QueryEscape(cfg.Queries[i%len(cfg.Queries)])
	if rand.Float64() < cfg.SuggestRatio {
		return "suggest", cfg.BaseURL + "/api/v1/suggest?limit=10&q=" + q
	}
	return "search", cfg.BaseURL + "/api/v1/search?limit=10&q=" + q
}

func get(ctx context.Context, client *http.Client, target string) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return 0, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.StatusCode, nil
}
