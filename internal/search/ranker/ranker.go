// Package ranker scores candidate documents. The final relevance score is a
// weighted sum of four independent signals: BM25 over the text fields, an
// exact-match bonus, a review-quality signal, and a title-match fraction.
package ranker

import (
	"context"
	"math"
	"runtime"
	"sort"
	"strings"

	"github.com/RoaringBitmap/roaring"
	"golang.org/x/sync/errgroup"

	"github.com/crauzier/catalogsearch/internal/index"
)

// Signal weights. The exact-match bonus is a flat constant, not a weight:
// matching a full title or brand outranks any blend of partial signals.
const (
	weightBM25   = 0.40
	weightReview = 0.30
	weightTitle  = 0.20
	exactBonus   = 2.0
)

// reviewSaturation caps the review-count contribution so a handful of
// ratings cannot outweigh an established product.
const reviewSaturation = 10

// Params are the BM25 free parameters. The defaults are pinned because they
// change ranked order and must stay stable across runs.
type Params struct {
	K1 float64
	B  float64
}

// DefaultParams returns the standard k1=1.2, b=0.75.
func DefaultParams() Params {
	return Params{K1: 1.2, B: 0.75}
}

// Scores carries each component alongside the combined final score.
type Scores struct {
	BM25       float64 `json:"bm25_score"`
	ExactMatch float64 `json:"exact_match_score"`
	Review     float64 `json:"review_score"`
	TitleMatch float64 `json:"title_match_score"`
	Final      float64 `json:"final_score"`
}

// Result is one ranked document.
type Result struct {
	URL          string   `json:"url"`
	Title        string   `json:"title"`
	Description  string   `json:"description"`
	TotalReviews int      `json:"total_reviews"`
	Scores       Scores   `json:"scores"`
	Matched      []string `json:"matched_signals"`
}

// Ranker scores documents against a read-only Store.
type Ranker struct {
	store  *index.Store
	params Params
}

// New creates a Ranker. Zero-valued params fall back to the defaults.
func New(store *index.Store, params Params) *Ranker {
	defaults := DefaultParams()
	if params.K1 <= 0 {
		params.K1 = defaults.K1
	}
	if params.B <= 0 {
		params.B = defaults.B
	}
	return &Ranker{store: store, params: params}
}

// BM25 computes the score of a single term for one document field. A term
// absent from the document contributes zero, never a negative value.
func (r *Ranker) BM25(term string, id uint32, field index.Field) float64 {
	tf := float64(r.store.TermFrequency(field, term, id))
	if tf == 0 {
		return 0
	}
	df := float64(r.store.DocFrequency(field, term))
	n := float64(r.store.TotalDocs())
	avgLen := r.store.AvgLength(field)
	if avgLen == 0 {
		return 0
	}
	idf := math.Log((n-df+0.5)/(df+0.5) + 1)
	docLen := float64(r.store.DocLength(field, id))
	denominator := tf + r.params.K1*(1-r.params.B+r.params.B*docLen/avgLen)
	return idf * tf * (r.params.K1 + 1) / denominator
}

// Score computes all four signals for one document. rawQuery is the
// original query string (used for the exact-match check); tokens are the
// normalized, corrected, expanded query tokens.
func (r *Ranker) Score(id uint32, rawQuery string, tokens []string) Scores {
	doc := r.store.Doc(id)

	var bm25 float64
	for _, token := range distinct(tokens) {
		for _, field := range index.TextFields {
			bm25 += r.BM25(token, id, field)
		}
	}

	var exact float64
	q := strings.ToLower(strings.TrimSpace(rawQuery))
	if q != "" && (q == strings.ToLower(strings.TrimSpace(doc.Title)) ||
		q == strings.ToLower(strings.TrimSpace(doc.Brand))) {
		exact = exactBonus
	}

	var review float64
	if stats, ok := r.store.Reviews(id); ok && stats.TotalReviews > 0 {
		quality := stats.AverageScore / 5
		volume := math.Min(float64(stats.TotalReviews), reviewSaturation) / reviewSaturation
		review = 0.7*quality + 0.3*volume
	}

	var title float64
	if terms := distinct(tokens); len(terms) > 0 {
		matched := 0
		for _, token := range terms {
			if bm := r.store.DocsForTerm(index.FieldTitle, token); bm != nil && bm.Contains(id) {
				matched++
			}
		}
		title = float64(matched) / float64(len(terms))
	}

	scores := Scores{
		BM25:       clamp(weightBM25 * bm25),
		ExactMatch: clamp(exact),
		Review:     clamp(weightReview * review),
		TitleMatch: clamp(weightTitle * title),
	}
	scores.Final = round4(scores.BM25 + scores.ExactMatch + scores.Review + scores.TitleMatch)
	scores.BM25 = round4(scores.BM25)
	scores.ExactMatch = round4(scores.ExactMatch)
	scores.Review = round4(scores.Review)
	scores.TitleMatch = round4(scores.TitleMatch)
	return scores
}

// Rank scores every candidate concurrently (scoring is read-only over the
// store, so no locking is needed) and returns the top results ordered by
// final score descending, ties broken by review count then URL.
func (r *Ranker) Rank(ctx context.Context, candidates *roaring.Bitmap, rawQuery string, tokens []string, limit int) ([]Result, error) {
	if candidates == nil || candidates.IsEmpty() {
		return []Result{}, nil
	}
	ids := candidates.ToArray()
	results := make([]Result, len(ids))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, id := range ids {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			doc := r.store.Doc(id)
			scores := r.Score(id, rawQuery, tokens)
			var totalReviews int
			if stats, ok := r.store.Reviews(id); ok {
				totalReviews = stats.TotalReviews
			}
			results[i] = Result{
				URL:          doc.URL,
				Title:        doc.Title,
				Description:  doc.Description,
				TotalReviews: totalReviews,
				Scores:       scores,
				Matched:      matchedSignals(scores),
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if limit > 0 && limit < len(results) {
		return topK(results, limit), nil
	}
	sort.Slice(results, func(i, j int) bool {
		return ranksBefore(results[i], results[j])
	})
	return results, nil
}

func matchedSignals(s Scores) []string {
	out := make([]string, 0, 4)
	if s.BM25 > 0 {
		out = append(out, "bm25")
	}
	if s.ExactMatch > 0 {
		out = append(out, "exact_match")
	}
	if s.Review > 0 {
		out = append(out, "review")
	}
	if s.TitleMatch > 0 {
		out = append(out, "title_match")
	}
	return out
}

func ranksBefore(a, b Result) bool {
	if a.Scores.Final != b.Scores.Final {
		return a.Scores.Final > b.Scores.Final
	}
	if a.TotalReviews != b.TotalReviews {
		return a.TotalReviews > b.TotalReviews
	}
	return a.URL < b.URL
}

func distinct(tokens []string) []string {
	seen := make(map[string]struct{}, len(tokens))
	out := make([]string, 0, len(tokens))
	for _, t := range tokens {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	return v
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}
