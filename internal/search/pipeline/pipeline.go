// Package pipeline orchestrates a query through its processing stages:
// normalization, synonym expansion, candidate filtering, ranking, and
// history logging. Each response reports the last stage it completed, so a
// failure is attributable to a specific stage.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/RoaringBitmap/roaring"

	"github.com/crauzier/catalogsearch/internal/history"
	"github.com/crauzier/catalogsearch/internal/index"
	"github.com/crauzier/catalogsearch/internal/normalize"
	"github.com/crauzier/catalogsearch/internal/search/filter"
	"github.com/crauzier/catalogsearch/internal/search/ranker"
	apperrors "github.com/crauzier/catalogsearch/pkg/errors"
	"github.com/crauzier/catalogsearch/pkg/metrics"
	"github.com/crauzier/catalogsearch/pkg/tracing"
)

// State names the pipeline stage a query last completed.
type State string

const (
	StateReceived   State = "received"
	StateNormalized State = "normalized"
	StateExpanded   State = "expanded"
	StateFiltered   State = "filtered"
	StateRanked     State = "ranked"
	StateLogged     State = "logged"
	StateDone       State = "done"
	StateFailed     State = "failed"
)

// Request is one search query.
type Request struct {
	Query string
	Mode  filter.Mode
	Limit int
}

// Response is the outcome of a query. State is StateDone on success; on
// failure it is StateFailed and FailedAt names the stage that broke.
type Response struct {
	Query             string          `json:"query"`
	Tokens            []string        `json:"tokens"`
	ExpandedTokens    []string        `json:"expanded_tokens"`
	TotalDocuments    int             `json:"total_documents"`
	FilteredDocuments int             `json:"filtered_documents"`
	Results           []ranker.Result `json:"results"`
	State             State           `json:"state"`
	FailedAt          State           `json:"failed_at,omitempty"`
	TookMs            int64           `json:"took_ms"`
}

// Options configure a Pipeline beyond its index store.
type Options struct {
	Synonyms     *normalize.Synonyms
	Params       ranker.Params
	DefaultMode  filter.Mode
	DefaultLimit int
	MaxResults   int
	Collector    *history.Collector
	Metrics      *metrics.Metrics
}

// Pipeline executes queries against a loaded index store.
type Pipeline struct {
	store     *index.Store
	corrector *normalize.Corrector
	synonyms  *normalize.Synonyms
	filter    *filter.Filter
	ranker    *ranker.Ranker
	collector *history.Collector
	metrics   *metrics.Metrics

	defaultMode  filter.Mode
	defaultLimit int
	maxResults   int
	logger       *slog.Logger
}

// New builds a Pipeline. The spelling corrector is derived from the store's
// vocabulary, so the store must already contain a built or loaded index.
func New(store *index.Store, opts Options) (*Pipeline, error) {
	if store == nil || store.TotalDocs() == 0 {
		return nil, apperrors.ErrIndexNotBuilt
	}
	if opts.Synonyms == nil {
		opts.Synonyms = normalize.NewSynonyms(nil)
	}
	if opts.DefaultLimit <= 0 {
		opts.DefaultLimit = 10
	}
	if opts.MaxResults <= 0 {
		opts.MaxResults = 100
	}
	return &Pipeline{
		store:        store,
		corrector:    normalize.NewCorrector(store.Vocabulary()),
		synonyms:     opts.Synonyms,
		filter:       filter.New(store),
		ranker:       ranker.New(store, opts.Params),
		collector:    opts.Collector,
		metrics:      opts.Metrics,
		defaultMode:  opts.DefaultMode,
		defaultLimit: opts.DefaultLimit,
		maxResults:   opts.MaxResults,
		logger:       slog.Default().With("component", "search-pipeline"),
	}, nil
}

// Search runs a query through every stage and returns the ranked response.
func (p *Pipeline) Search(ctx context.Context, req Request) (*Response, error) {
	start := time.Now()
	resp := &Response{
		Query:          req.Query,
		Tokens:         []string{},
		ExpandedTokens: []string{},
		Results:        []ranker.Result{},
		State:          StateReceived,
		TotalDocuments: p.store.TotalDocs(),
	}
	limit := req.Limit
	if limit <= 0 {
		limit = p.defaultLimit
	}
	if limit > p.maxResults {
		limit = p.maxResults
	}

	spanCtx, span := tracing.StartChildSpan(ctx, "pipeline.search")
	span.SetAttr("query", req.Query)
	defer span.End()
	ctx = spanCtx

	// Normalize: tokenize, drop stopwords, correct spelling.
	p.stage(ctx, "normalize", func(context.Context) error {
		tokens := normalize.Terms(req.Query)
		corrected := make([]string, 0, len(tokens))
		for _, t := range tokens {
			corrected = append(corrected, p.corrector.Correct(t))
		}
		resp.Tokens = corrected
		return nil
	})
	resp.State = StateNormalized

	// Expand with synonyms.
	p.stage(ctx, "expand", func(context.Context) error {
		resp.ExpandedTokens = p.synonyms.Expand(resp.Tokens)
		return nil
	})
	resp.State = StateExpanded

	// Filter candidate documents.
	var candidates *roaring.Bitmap
	err := p.stage(ctx, "filter", func(ctx context.Context) error {
		var err error
		candidates, err = p.filter.Candidates(ctx, resp.ExpandedTokens, req.Mode)
		return err
	})
	if err != nil {
		return p.fail(resp, start, StateFiltered, err)
	}
	resp.FilteredDocuments = int(candidates.GetCardinality())
	resp.State = StateFiltered

	// Rank survivors.
	err = p.stage(ctx, "rank", func(ctx context.Context) error {
		results, err := p.ranker.Rank(ctx, candidates, req.Query, resp.ExpandedTokens, limit)
		if err != nil {
			return err
		}
		resp.Results = results
		return nil
	})
	if err != nil {
		return p.fail(resp, start, StateRanked, err)
	}
	resp.State = StateRanked

	// Log to history, fire-and-forget.
	if p.collector != nil {
		p.collector.Track(history.NewRecord(req.Query, time.Since(start), history.Metadata{
			TotalDocuments:    resp.TotalDocuments,
			FilteredDocuments: resp.FilteredDocuments,
		}, resp.Results))
	}
	resp.State = StateLogged

	resp.State = StateDone
	resp.TookMs = time.Since(start).Milliseconds()
	p.observe(resp)
	p.logger.Info("query executed",
		"query", req.Query,
		"mode", req.Mode.String(),
		"tokens", resp.Tokens,
		"expanded", len(resp.ExpandedTokens),
		"candidates", resp.FilteredDocuments,
		"results", len(resp.Results),
		"took_ms", resp.TookMs,
	)
	return resp, nil
}

// stage runs fn inside a child span named after the stage.
func (p *Pipeline) stage(ctx context.Context, name string, fn func(context.Context) error) error {
	ctx, span := tracing.StartChildSpan(ctx, "stage."+name)
	defer span.End()
	if err := fn(ctx); err != nil {
		span.SetAttr("error", err.Error())
		return fmt.Errorf("%s stage: %w", name, err)
	}
	return nil
}

// fail marks the response failed at the stage that broke, not the last one
// that completed.
func (p *Pipeline) fail(resp *Response, start time.Time, at State, err error) (*Response, error) {
	resp.FailedAt = at
	resp.State = StateFailed
	resp.TookMs = time.Since(start).Milliseconds()
	if p.metrics != nil {
		p.metrics.SearchQueriesTotal.WithLabelValues("error").Inc()
	}
	p.logger.Error("query failed",
		"query", resp.Query,
		"failed_at", resp.FailedAt,
		"error", err,
	)
	return resp, err
}

func (p *Pipeline) observe(resp *Response) {
	if p.metrics == nil {
		return
	}
	outcome := "hit"
	if len(resp.Results) == 0 {
		outcome = "zero_result"
	}
	p.metrics.SearchQueriesTotal.WithLabelValues(outcome).Inc()
	p.metrics.SearchResultsCount.Observe(float64(len(resp.Results)))
}

// DefaultMode reports the mode used when a request leaves it unset.
func (p *Pipeline) DefaultMode() filter.Mode {
	return p.defaultMode
}
