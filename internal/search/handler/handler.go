package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/crauzier/catalogsearch/internal/search/cache"
	"github.com/crauzier/catalogsearch/internal/search/filter"
	"github.com/crauzier/catalogsearch/internal/search/pipeline"
	"github.com/crauzier/catalogsearch/internal/suggest"
	apperrors "github.com/crauzier/catalogsearch/pkg/errors"
	"github.com/crauzier/catalogsearch/pkg/logger"
	"github.com/crauzier/catalogsearch/pkg/metrics"
)

// Searcher is the query entry point the handler depends on.
type Searcher interface {
	Search(ctx context.Context, req pipeline.Request) (*pipeline.Response, error)
	DefaultMode() filter.Mode
}

// Handler serves the search and autosuggest HTTP API.
type Handler struct {
	searcher     Searcher
	trie         *suggest.Trie
	cache        *cache.QueryCache
	metrics      *metrics.Metrics
	defaultLimit int
	maxResults   int
	suggestLimit int
	suggestMax   int
	logger       *slog.Logger
}

// Config carries the handler's tunable limits.
type Config struct {
	DefaultLimit        int
	MaxResults          int
	SuggestDefaultLimit int
	SuggestMaxLimit     int
}

// New creates a Handler. The cache and metrics may be nil.
func New(searcher Searcher, trie *suggest.Trie, queryCache *cache.QueryCache, m *metrics.Metrics, cfg Config) *Handler {
	return &Handler{
		searcher:     searcher,
		trie:         trie,
		cache:        queryCache,
		metrics:      m,
		defaultLimit: cfg.DefaultLimit,
		maxResults:   cfg.MaxResults,
		suggestLimit: cfg.SuggestDefaultLimit,
		suggestMax:   cfg.SuggestMaxLimit,
		logger:       slog.Default().With("component", "search-handler"),
	}
}

// Register wires the API routes onto a mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/search", h.Search)
	mux.HandleFunc("GET /api/v1/suggest", h.Suggest)
	mux.HandleFunc("GET /api/v1/cache/stats", h.CacheStats)
	mux.HandleFunc("POST /api/v1/cache/invalidate", h.CacheInvalidate)
}

// Search handles GET /api/v1/search?q=...&limit=...&mode=any|all.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	log := logger.FromContext(ctx)

	query := r.URL.Query().Get("q")
	if query == "" {
		h.writeAppError(w, apperrors.New(apperrors.ErrInvalidInput,
			http.StatusBadRequest, "query parameter 'q' is required"))
		return
	}

	limit := h.defaultLimit
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		parsed, err := strconv.Atoi(limitStr)
		if err != nil || parsed < 1 {
			h.writeAppError(w, apperrors.New(apperrors.ErrInvalidInput,
				http.StatusBadRequest, "limit must be a positive integer"))
			return
		}
		if parsed > h.maxResults {
			parsed = h.maxResults
		}
		limit = parsed
	}

	mode := h.searcher.DefaultMode()
	if modeStr := r.URL.Query().Get("mode"); modeStr != "" {
		parsed, err := filter.ParseMode(modeStr)
		if err != nil {
			h.writeAppError(w, apperrors.New(apperrors.ErrInvalidInput,
				http.StatusBadRequest, "mode must be \"any\" or \"all\""))
			return
		}
		mode = parsed
	}

	req := pipeline.Request{Query: query, Mode: mode, Limit: limit}

	var resp *pipeline.Response
	var err error
	cacheHit := false
	if h.cache != nil {
		resp, cacheHit, err = h.cache.GetOrCompute(ctx, query, mode, limit, func() (*pipeline.Response, error) {
			return h.searcher.Search(ctx, req)
		})
	} else {
		resp, err = h.searcher.Search(ctx, req)
	}
	if err != nil {
		statusCode := apperrors.HTTPStatusCode(err)
		log.Error("search failed",
			"query", query,
			"error", err,
			"status_code", statusCode,
		)
		h.writeError(w, statusCode, "search failed")
		return
	}

	latency := time.Since(start)
	if h.metrics != nil {
		cacheStatus := "miss"
		if cacheHit {
			cacheStatus = "hit"
			h.metrics.CacheHitsTotal.Inc()
		} else if h.cache != nil {
			h.metrics.CacheMissesTotal.Inc()
		}
		h.metrics.SearchLatency.WithLabelValues(cacheStatus).Observe(latency.Seconds())
	}
	log.Info("search completed",
		"query", query,
		"candidates", resp.FilteredDocuments,
		"returned", len(resp.Results),
		"cache_hit", cacheHit,
		"latency_ms", latency.Milliseconds(),
	)
	h.writeJSON(w, http.StatusOK, resp)
}

// Suggest handles GET /api/v1/suggest?prefix=...&limit=...
func (h *Handler) Suggest(w http.ResponseWriter, r *http.Request) {
	prefix := r.URL.Query().Get("prefix")
	if prefix == "" {
		h.writeAppError(w, apperrors.New(apperrors.ErrInvalidInput,
			http.StatusBadRequest, "query parameter 'prefix' is required"))
		return
	}

	limit := h.suggestLimit
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		parsed, err := strconv.Atoi(limitStr)
		if err != nil || parsed < 1 {
			h.writeAppError(w, apperrors.New(apperrors.ErrInvalidInput,
				http.StatusBadRequest, "limit must be a positive integer"))
			return
		}
		if parsed > h.suggestMax {
			parsed = h.suggestMax
		}
		limit = parsed
	}

	if h.metrics != nil {
		h.metrics.SuggestRequestsTotal.Inc()
	}
	suggestions := h.trie.Suggest(prefix, limit)
	if suggestions == nil {
		suggestions = []suggest.Suggestion{}
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"prefix":      prefix,
		"suggestions": suggestions,
	})
}

// CacheStats reports process-local hit/miss counters.
func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeJSON(w, http.StatusOK, map[string]string{"status": "disabled"})
		return
	}
	hits, misses := h.cache.Stats()
	total := hits + misses
	var hitRate float64
	if total > 0 {
		hitRate = float64(hits) / float64(total) * 100
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"hits":     hits,
		"misses":   misses,
		"total":    total,
		"hit_rate": fmt.Sprintf("%.1f%%", hitRate),
	})
}

// CacheInvalidate flushes the result cache.
func (h *Handler) CacheInvalidate(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeError(w, http.StatusServiceUnavailable, "caching is disabled")
		return
	}
	if err := h.cache.Invalidate(r.Context()); err != nil {
		h.logger.Error("cache invalidation failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, "cache invalidation failed")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "invalidated"})
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

// writeAppError maps an error to its HTTP status. An AppError's message is
// reported verbatim; other errors get their Error() string.
func (h *Handler) writeAppError(w http.ResponseWriter, err error) {
	message := err.Error()
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		message = appErr.Message
	}
	h.writeError(w, apperrors.HTTPStatusCode(err), message)
}
