// Package handler is the HTTP surface of the searcher: the JSON API, the
// JSONP endpoint used by the bundled web page, and the static web root.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/Adithya-Monish-Kumar-K/approxsearch/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/approxsearch/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/approxsearch/internal/searcher/executor"
	apperrors "github.com/Adithya-Monish-Kumar-K/approxsearch/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/approxsearch/pkg/metrics"
)

// Options carries the optional collaborators. Nil caches, collector or
// metrics disable the corresponding feature.
type Options struct {
	SearchCache  *cache.QueryCache[executor.SearchResult]
	SuggestCache *cache.QueryCache[executor.SuggestResult]
	Collector    *analytics.Collector
	Metrics      *metrics.Metrics
	DefaultLimit int
	MaxResults   int
	WebRoot      string
}

type Handler struct {
	processor    *executor.Processor
	searchCache  *cache.QueryCache[executor.SearchResult]
	suggestCache *cache.QueryCache[executor.SuggestResult]
	collector    *analytics.Collector
	metrics      *metrics.Metrics
	defaultLimit int
	maxResults   int
	webRoot      string
	logger       *slog.Logger
}

func New(p *executor.Processor, opts Options) *Handler {
	if opts.DefaultLimit <= 0 {
		opts.DefaultLimit = 10
	}
	return &Handler{
		processor:    p,
		searchCache:  opts.SearchCache,
		suggestCache: opts.SuggestCache,
		collector:    opts.Collector,
		metrics:      opts.Metrics,
		defaultLimit: opts.DefaultLimit,
		maxResults:   opts.MaxResults,
		webRoot:      opts.WebRoot,
		logger:       slog.Default().With("component", "search-handler"),
	}
}

// Register mounts every route on mux. The catch-all "/" serves the JSONP
// endpoint and the web root.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/search", h.Search)
	mux.HandleFunc("GET /api/v1/suggest", h.Suggest)
	mux.HandleFunc("GET /api/v1/documents/{id}", h.Document)
	mux.HandleFunc("GET /api/v1/stats", h.Stats)
	mux.HandleFunc("GET /api/v1/cache/stats", h.CacheStats)
	mux.HandleFunc("POST /api/v1/cache/invalidate", h.CacheInvalidate)
	mux.HandleFunc("GET /", h.Legacy)
}

// parseLimit applies the default for an empty value and caps the result
// at maxResults.
func (h *Handler) parseLimit(raw string) (int, error) {
	limit := h.defaultLimit
	if raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return 0, apperrors.New(apperrors.ErrInvalidInput, http.StatusBadRequest, "limit must be a positive integer")
		}
		limit = n
	}
	if h.maxResults > 0 && limit > h.maxResults {
		limit = h.maxResults
	}
	return limit, nil
}

func statusFor(err error) int {
	if errors.Is(err, context.DeadlineExceeded) {
		return http.StatusGatewayTimeout
	}
	return apperrors.HTTPStatusCode(err)
}

func millis(d time.Duration) float64 {
	return float64(d.Microseconds()) / 1000
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
