package handler

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Adithya-Monish-Kumar-K/approxsearch/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/approxsearch/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/approxsearch/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/approxsearch/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/approxsearch/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/approxsearch/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/approxsearch/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/approxsearch/pkg/tracing"
)

type SearchResponse struct {
	*executor.SearchResult
	CacheHit bool    `json:"cache_hit"`
	TookMs   float64 `json:"took_ms"`
}

type SuggestResponse struct {
	*executor.SuggestResult
	CacheHit bool    `json:"cache_hit"`
	TookMs   float64 `json:"took_ms"`
}

type DocumentResponse struct {
	ID uint32 `json:"id"`
	indexer.Document
}

type StatsResponse struct {
	indexer.Stats
	K          int    `json:"k"`
	DummyChar  string `json:"dummy_char"`
	Vocabulary int    `json:"vocabulary"`
	KGrams     int    `json:"kgrams"`
}

func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx, span := tracing.Start(r.Context(), "search", middleware.GetRequestID(r.Context()))
	log := logger.FromContext(ctx)
	defer span.End(log)

	query := r.URL.Query().Get("q")
	if strings.TrimSpace(query) == "" {
		h.writeError(w, http.StatusBadRequest, "query parameter 'q' is required")
		return
	}
	limit, err := h.parseLimit(r.URL.Query().Get("limit"))
	if err != nil {
		h.writeError(w, statusFor(err), err.Error())
		return
	}

	plan := parser.Parse(query)
	span.SetAttr("terms", len(plan.Terms))
	compute := func() (*executor.SearchResult, error) {
		_, child := tracing.Start(ctx, "execute", "")
		defer child.End(nil)
		return h.processor.Execute(ctx, plan, limit)
	}

	var (
		result   *executor.SearchResult
		cacheHit bool
	)
	if h.searchCache != nil {
		result, cacheHit, err = h.searchCache.GetOrCompute(ctx, query, limit, compute)
	} else {
		result, err = compute()
	}
	took := time.Since(start)
	if err != nil {
		h.observe(metrics.KindSearch, h.searchCache != nil, false, 0, took, err)
		log.Error("search failed", "query", query, "error", err)
		h.writeError(w, statusFor(err), "search failed")
		return
	}
	// Cached and shared results carry the raw query of whoever computed them.
	if result.Query != query {
		echoed := *result
		echoed.Query = query
		result = &echoed
	}

	h.observe(metrics.KindSearch, h.searchCache != nil, cacheHit, len(result.Results), took, nil)
	log.Info("search completed",
		"query", query,
		"terms", len(plan.Terms),
		"total_hits", result.TotalHits,
		"returned", len(result.Results),
		"cache_hit", cacheHit,
		"latency_ms", millis(took),
	)
	h.track(analytics.QueryEvent{
		Type:      analytics.EventSearch,
		Query:     query,
		Terms:     plan.Terms,
		TotalHits: result.TotalHits,
		Returned:  len(result.Results),
		LatencyMs: took.Milliseconds(),
		CacheHit:  cacheHit,
		Timestamp: time.Now().UTC(),
		RequestID: middleware.GetRequestID(ctx),
	})
	h.writeJSON(w, http.StatusOK, SearchResponse{SearchResult: result, CacheHit: cacheHit, TookMs: millis(took)})
}

func (h *Handler) Suggest(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx, span := tracing.Start(r.Context(), "suggest", middleware.GetRequestID(r.Context()))
	log := logger.FromContext(ctx)
	defer span.End(log)

	query := r.URL.Query().Get("q")
	if query == "" {
		h.writeError(w, http.StatusBadRequest, "query parameter 'q' is required")
		return
	}
	limit, err := h.parseLimit(r.URL.Query().Get("limit"))
	if err != nil {
		h.writeError(w, statusFor(err), err.Error())
		return
	}

	compute := func() (*executor.SuggestResult, error) {
		_, child := tracing.Start(ctx, "approximate-match", "")
		defer child.End(nil)
		return h.processor.Suggest(ctx, query, limit)
	}
	var (
		result   *executor.SuggestResult
		cacheHit bool
	)
	if h.suggestCache != nil {
		result, cacheHit, err = h.suggestCache.GetOrCompute(ctx, query, limit, compute)
	} else {
		result, err = compute()
	}
	took := time.Since(start)
	if err != nil {
		h.observe(metrics.KindSuggest, h.suggestCache != nil, false, 0, took, err)
		log.Error("suggest failed", "query", query, "error", err)
		h.writeError(w, statusFor(err), "suggest failed")
		return
	}

	span.SetAttr("max_edit_distance", result.MaxEditDistance)
	h.observe(metrics.KindSuggest, h.suggestCache != nil, cacheHit, len(result.Suggestions), took, nil)
	log.Info("suggest completed",
		"query", query,
		"word", result.Word,
		"returned", len(result.Suggestions),
		"cache_hit", cacheHit,
		"latency_ms", millis(took),
	)
	h.track(analytics.QueryEvent{
		Type:      analytics.EventSuggest,
		Query:     query,
		Word:      result.Word,
		Returned:  len(result.Suggestions),
		LatencyMs: took.Milliseconds(),
		CacheHit:  cacheHit,
		Timestamp: time.Now().UTC(),
		RequestID: middleware.GetRequestID(ctx),
	})
	h.writeJSON(w, http.StatusOK, SuggestResponse{SuggestResult: result, CacheHit: cacheHit, TookMs: millis(took)})
}

func (h *Handler) Document(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(r.PathValue("id"), 10, 32)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "document id must be a non-negative integer")
		return
	}
	doc, err := h.processor.Engine().Document(uint32(id))
	if err != nil {
		h.writeError(w, statusFor(err), err.Error())
		return
	}
	h.writeJSON(w, http.StatusOK, DocumentResponse{ID: uint32(id), Document: doc})
}

func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	m := h.processor.Matcher()
	h.writeJSON(w, http.StatusOK, StatsResponse{
		Stats:      h.processor.Engine().Stats(),
		K:          m.K(),
		DummyChar:  string(m.DummyChar()),
		Vocabulary: len(m.Words()),
		KGrams:     m.KGramCount(),
	})
}

type cacheStats struct {
	Hits    int64  `json:"hits"`
	Misses  int64  `json:"misses"`
	Total   int64  `json:"total"`
	HitRate string `json:"hit_rate"`
	Breaker string `json:"breaker"`
}

func newCacheStats(hits, misses int64, breaker string) cacheStats {
	total := hits + misses
	var rate float64
	if total > 0 {
		rate = float64(hits) / float64(total) * 100
	}
	return cacheStats{
		Hits:    hits,
		Misses:  misses,
		Total:   total,
		HitRate: fmt.Sprintf("%.1f%%", rate),
		Breaker: breaker,
	}
}

func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	if h.searchCache == nil && h.suggestCache == nil {
		h.writeJSON(w, http.StatusOK, map[string]string{"status": "disabled"})
		return
	}
	out := make(map[string]cacheStats, 2)
	if h.searchCache != nil {
		hits, misses := h.searchCache.Stats()
		out[metrics.KindSearch] = newCacheStats(hits, misses, h.searchCache.BreakerState())
	}
	if h.suggestCache != nil {
		hits, misses := h.suggestCache.Stats()
		out[metrics.KindSuggest] = newCacheStats(hits, misses, h.suggestCache.BreakerState())
	}
	h.writeJSON(w, http.StatusOK, out)
}

func (h *Handler) CacheInvalidate(w http.ResponseWriter, r *http.Request) {
	if h.searchCache == nil && h.suggestCache == nil {
		h.writeError(w, http.StatusServiceUnavailable, "caching is disabled")
		return
	}
	ctx := r.Context()
	if h.searchCache != nil {
		if err := h.searchCache.Invalidate(ctx); err != nil {
			h.logger.Error("cache invalidation failed", "kind", metrics.KindSearch, "error", err)
			h.writeError(w, http.StatusInternalServerError, "cache invalidation failed")
			return
		}
	}
	if h.suggestCache != nil {
		if err := h.suggestCache.Invalidate(ctx); err != nil {
			h.logger.Error("cache invalidation failed", "kind", metrics.KindSuggest, "error", err)
			h.writeError(w, http.StatusInternalServerError, "cache invalidation failed")
			return
		}
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "invalidated"})
}

// observe records one answered or failed query.
func (h *Handler) observe(kind string, cached, cacheHit bool, returned int, took time.Duration, err error) {
	if h.metrics == nil {
		return
	}
	cacheStatus := "disabled"
	if cached {
		cacheStatus = "miss"
		if cacheHit {
			cacheStatus = "hit"
			h.metrics.CacheHitsTotal.WithLabelValues(kind).Inc()
		} else {
			h.metrics.CacheMissesTotal.WithLabelValues(kind).Inc()
		}
	}
	resultType := "hit"
	switch {
	case err != nil:
		resultType = "error"
	case returned == 0:
		resultType = "zero_result"
	}
	h.metrics.QueriesTotal.WithLabelValues(kind, resultType).Inc()
	if err != nil {
		return
	}
	h.metrics.QueryLatency.WithLabelValues(kind, cacheStatus).Observe(took.Seconds())
	h.metrics.QueryResultsCount.WithLabelValues(kind).Observe(float64(returned))
}

func (h *Handler) track(event analytics.QueryEvent) {
	if h.collector != nil {
		h.collector.Track(event)
	}
}
