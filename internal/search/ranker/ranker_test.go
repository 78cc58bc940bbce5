package ranker

import (
	"context"
	"testing"

	"github.com/RoaringBitmap/roaring"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crauzier/catalogsearch/internal/catalog"
	"github.com/crauzier/catalogsearch/internal/index"
)

func testStore(t *testing.T) *index.Store {
	t.Helper()
	store, err := index.Build([]catalog.Product{
		{
			URL:         "https://shop.example/choc-bar",
			Title:       "Dark Chocolate Bar",
			Description: "Rich dark chocolate made from alpine cocoa",
			Features:    map[string]string{"brand": "Lindt"},
			Reviews:     []catalog.Review{{Rating: 4}, {Rating: 5}},
		},
		{
			URL:         "https://shop.example/choc-milk",
			Title:       "Milk Chocolate",
			Description: "Smooth milk chocolate for snacking",
			Features:    map[string]string{"brand": "Hershey"},
			Reviews:     []catalog.Review{{Rating: 2}},
		},
		{
			URL:         "https://shop.example/vanilla",
			Title:       "Vanilla Extract",
			Description: "Pure vanilla extract",
		},
	})
	require.NoError(t, err)
	return store
}

func allDocs(store *index.Store) *roaring.Bitmap {
	bm := roaring.New()
	for i := 0; i < store.TotalDocs(); i++ {
		bm.Add(uint32(i))
	}
	return bm
}

func TestBM25PositiveForPresentTerm(t *testing.T) {
	store := testStore(t)
	r := New(store, DefaultParams())

	id, _ := store.DocID("https://shop.example/choc-bar")
	assert.Greater(t, r.BM25("chocolate", id, index.FieldTitle), 0.0)
	assert.Greater(t, r.BM25("cocoa", id, index.FieldDescription), 0.0)
}

func TestBM25ZeroForAbsentTerm(t *testing.T) {
	store := testStore(t)
	r := New(store, DefaultParams())

	id, _ := store.DocID("https://shop.example/vanilla")
	assert.Zero(t, r.BM25("chocolate", id, index.FieldTitle))
	assert.Zero(t, r.BM25("chocolate", id, index.FieldDescription))
}

func TestBM25RarerTermScoresHigher(t *testing.T) {
	store := testStore(t)
	r := New(store, DefaultParams())

	id, _ := store.DocID("https://shop.example/choc-bar")
	// "cocoa" appears in one document, "chocolate" in two; with comparable
	// term frequency the rarer term carries more weight.
	rare := r.BM25("cocoa", id, index.FieldDescription)
	common := r.BM25("chocolate", id, index.FieldDescription)
	assert.Greater(t, rare, common)
}

func TestScoreExactTitleMatchBonus(t *testing.T) {
	store := testStore(t)
	r := New(store, DefaultParams())

	id, _ := store.DocID("https://shop.example/choc-bar")
	exact := r.Score(id, "Dark Chocolate Bar", []string{"dark", "chocolate", "bar"})
	partial := r.Score(id, "dark chocolate", []string{"dark", "chocolate"})

	assert.InDelta(t, 2.0, exact.ExactMatch, 1e-9)
	assert.Zero(t, partial.ExactMatch)
	assert.Greater(t, exact.Final, partial.Final)
}

func TestScoreExactBrandMatchBonus(t *testing.T) {
	store := testStore(t)
	r := New(store, DefaultParams())

	id, _ := store.DocID("https://shop.example/choc-bar")
	scores := r.Score(id, "Lindt", []string{"lindt"})
	assert.InDelta(t, 2.0, scores.ExactMatch, 1e-9)
}

func TestScoreReviewSignal(t *testing.T) {
	store := testStore(t)
	r := New(store, DefaultParams())

	good, _ := store.DocID("https://shop.example/choc-bar")
	poor, _ := store.DocID("https://shop.example/choc-milk")
	none, _ := store.DocID("https://shop.example/vanilla")

	goodScore := r.Score(good, "chocolate", []string{"chocolate"})
	poorScore := r.Score(poor, "chocolate", []string{"chocolate"})
	noneScore := r.Score(none, "vanilla", []string{"vanilla"})

	// 0.30 · (0.7·(4.5/5) + 0.3·(2/10))
	assert.InDelta(t, 0.30*(0.7*0.9+0.3*0.2), goodScore.Review, 1e-4)
	assert.Greater(t, goodScore.Review, poorScore.Review)
	assert.Zero(t, noneScore.Review)
}

func TestScoreTitleMatchFraction(t *testing.T) {
	store := testStore(t)
	r := New(store, DefaultParams())

	id, _ := store.DocID("https://shop.example/choc-bar")
	full := r.Score(id, "x", []string{"dark", "chocolate"})
	half := r.Score(id, "x", []string{"dark", "vanilla"})

	assert.InDelta(t, 0.20, full.TitleMatch, 1e-9)
	assert.InDelta(t, 0.10, half.TitleMatch, 1e-9)
}

func TestScoreComponentsAreNonNegative(t *testing.T) {
	store := testStore(t)
	r := New(store, DefaultParams())

	for id := uint32(0); int(id) < store.TotalDocs(); id++ {
		s := r.Score(id, "chocolate", []string{"chocolate"})
		assert.GreaterOrEqual(t, s.BM25, 0.0)
		assert.GreaterOrEqual(t, s.ExactMatch, 0.0)
		assert.GreaterOrEqual(t, s.Review, 0.0)
		assert.GreaterOrEqual(t, s.TitleMatch, 0.0)
		assert.GreaterOrEqual(t, s.Final, 0.0)
	}
}

func TestRankOrdersByFinalScore(t *testing.T) {
	store := testStore(t)
	r := New(store, DefaultParams())

	results, err := r.Rank(context.Background(), allDocs(store), "chocolate", []string{"chocolate"}, 10)
	require.NoError(t, err)
	require.Len(t, results, 3)

	for i := 1; i < len(results); i++ {
		assert.GreaterOrEqual(t, results[i-1].Scores.Final, results[i].Scores.Final)
	}
	// Both chocolate docs outrank the vanilla one.
	assert.Equal(t, "https://shop.example/vanilla", results[2].URL)
}

func TestRankHonorsLimit(t *testing.T) {
	store := testStore(t)
	r := New(store, DefaultParams())

	results, err := r.Rank(context.Background(), allDocs(store), "chocolate", []string{"chocolate"}, 1)
	require.NoError(t, err)
	require.Len(t, results, 1)

	full, err := r.Rank(context.Background(), allDocs(store), "chocolate", []string{"chocolate"}, 10)
	require.NoError(t, err)
	assert.Equal(t, full[0], results[0])
}

func TestRankEmptyCandidates(t *testing.T) {
	store := testStore(t)
	r := New(store, DefaultParams())

	results, err := r.Rank(context.Background(), roaring.New(), "chocolate", []string{"chocolate"}, 10)
	require.NoError(t, err)
	assert.Empty(t, results)

	results, err = r.Rank(context.Background(), nil, "chocolate", []string{"chocolate"}, 10)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestRankIsDeterministic(t *testing.T) {
	store := testStore(t)
	r := New(store, DefaultParams())

	first, err := r.Rank(context.Background(), allDocs(store), "chocolate", []string{"chocolate"}, 10)
	require.NoError(t, err)
	for i := 0; i < 20; i++ {
		again, err := r.Rank(context.Background(), allDocs(store), "chocolate", []string{"chocolate"}, 10)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestRankTieBreaksByReviewsThenURL(t *testing.T) {
	store, err := index.Build([]catalog.Product{
		{
			URL:     "https://shop.example/b",
			Title:   "Tea",
			Reviews: []catalog.Review{{Rating: 5}},
		},
		{
			URL:   "https://shop.example/a",
			Title: "Tea",
		},
		{
			URL:   "https://shop.example/c",
			Title: "Tea",
		},
	})
	require.NoError(t, err)
	r := New(store, DefaultParams())

	// Identical titles give every doc the same text components. The
	// review signal lifts the reviewed doc; URL order breaks the
	// remaining tie.
	results, err := r.Rank(context.Background(), allDocs(store), "zzz", []string{"tea"}, 10)
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, "https://shop.example/b", results[0].URL)
	assert.Equal(t, "https://shop.example/a", results[1].URL)
	assert.Equal(t, "https://shop.example/c", results[2].URL)
}

func TestMatchedSignals(t *testing.T) {
	store := testStore(t)
	r := New(store, DefaultParams())

	results, err := r.Rank(context.Background(), allDocs(store), "Dark Chocolate Bar", []string{"dark", "chocolate", "bar"}, 10)
	require.NoError(t, err)
	require.NotEmpty(t, results)

	top := results[0]
	assert.Equal(t, "https://shop.example/choc-bar", top.URL)
	assert.Contains(t, top.Matched, "bm25")
	assert.Contains(t, top.Matched, "exact_match")
	assert.Contains(t, top.Matched, "review")
	assert.Contains(t, top.Matched, "title_match")
}

func TestScoreReviewSignalMonotonicity(t *testing.T) {
	ratings := func(n int, rating float64) []catalog.Review {
		reviews := make([]catalog.Review, n)
		for i := range reviews {
			reviews[i] = catalog.Review{Rating: rating}
		}
		return reviews
	}
	store, err := index.Build([]catalog.Product{
		{URL: "https://shop.example/avg-low", Title: "Cocoa Low", Reviews: ratings(3, 2)},
		{URL: "https://shop.example/avg-mid", Title: "Cocoa Mid", Reviews: ratings(3, 3.5)},
		{URL: "https://shop.example/avg-high", Title: "Cocoa High", Reviews: ratings(3, 5)},
		{URL: "https://shop.example/count-1", Title: "Cocoa One", Reviews: ratings(1, 4)},
		{URL: "https://shop.example/count-5", Title: "Cocoa Five", Reviews: ratings(5, 4)},
		{URL: "https://shop.example/count-10", Title: "Cocoa Ten", Reviews: ratings(10, 4)},
		{URL: "https://shop.example/count-15", Title: "Cocoa Fifteen", Reviews: ratings(15, 4)},
	})
	require.NoError(t, err)
	r := New(store, DefaultParams())

	review := func(url string) float64 {
		id, ok := store.DocID(url)
		require.True(t, ok)
		return r.Score(id, "", nil).Review
	}

	// Rising average with the count held at 3.
	assert.Less(t, review("https://shop.example/avg-low"), review("https://shop.example/avg-mid"))
	assert.Less(t, review("https://shop.example/avg-mid"), review("https://shop.example/avg-high"))

	// Rising count with the average held at 4, saturating at 10 reviews.
	assert.Less(t, review("https://shop.example/count-1"), review("https://shop.example/count-5"))
	assert.Less(t, review("https://shop.example/count-5"), review("https://shop.example/count-10"))
	assert.Equal(t, review("https://shop.example/count-10"), review("https://shop.example/count-15"))
}
