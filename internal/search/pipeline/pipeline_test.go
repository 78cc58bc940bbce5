package pipeline

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crauzier/catalogsearch/internal/catalog"
	"github.com/crauzier/catalogsearch/internal/index"
	"github.com/crauzier/catalogsearch/internal/normalize"
	"github.com/crauzier/catalogsearch/internal/search/filter"
	apperrors "github.com/crauzier/catalogsearch/pkg/errors"
)

func testStore(t *testing.T) *index.Store {
	t.Helper()
	store, err := index.Build([]catalog.Product{
		{
			URL:         "https://shop.example/choc-bar",
			Title:       "Dark Chocolate Bar",
			Description: "Rich dark chocolate made from alpine cocoa",
			Features:    map[string]string{"brand": "Lindt", "origin": "Switzerland"},
			Reviews:     []catalog.Review{{Rating: 4}, {Rating: 5}},
		},
		{
			URL:         "https://shop.example/choc-milk",
			Title:       "Milk Chocolate",
			Description: "Smooth milk chocolate for snacking",
			Features:    map[string]string{"brand": "Hershey", "origin": "USA"},
		},
		{
			URL:         "https://shop.example/vanilla",
			Title:       "Vanilla Extract",
			Description: "Pure vanilla extract",
			Features:    map[string]string{"origin": "Madagascar"},
		},
	})
	require.NoError(t, err)
	return store
}

func testPipeline(t *testing.T, opts Options) *Pipeline {
	t.Helper()
	p, err := New(testStore(t), opts)
	require.NoError(t, err)
	return p
}

func TestNewRequiresBuiltIndex(t *testing.T) {
	_, err := New(nil, Options{})
	assert.ErrorIs(t, err, apperrors.ErrIndexNotBuilt)
}

func TestSearchEndToEnd(t *testing.T) {
	p := testPipeline(t, Options{})

	resp, err := p.Search(context.Background(), Request{Query: "dark chocolate"})
	require.NoError(t, err)

	assert.Equal(t, StateDone, resp.State)
	assert.Equal(t, []string{"dark", "chocolate"}, resp.Tokens)
	assert.Equal(t, 3, resp.TotalDocuments)
	assert.Equal(t, 2, resp.FilteredDocuments)
	require.NotEmpty(t, resp.Results)
	assert.Equal(t, "https://shop.example/choc-bar", resp.Results[0].URL)
}

func TestSearchCorrectsMisspelledQuery(t *testing.T) {
	p := testPipeline(t, Options{})

	resp, err := p.Search(context.Background(), Request{Query: "chocolte"})
	require.NoError(t, err)

	assert.Equal(t, []string{"chocolate"}, resp.Tokens)
	assert.Equal(t, 2, resp.FilteredDocuments)
}

func TestSearchExpandsSynonyms(t *testing.T) {
	p := testPipeline(t, Options{
		Synonyms: normalize.NewSynonyms(map[string][]string{
			"usa": {"United States", "America", "US"},
		}),
	})

	resp, err := p.Search(context.Background(), Request{Query: "america"})
	require.NoError(t, err)

	assert.Contains(t, resp.ExpandedTokens, "usa")
	// The feature index matches the expanded token against origin=usa.
	assert.Equal(t, 1, resp.FilteredDocuments)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "https://shop.example/choc-milk", resp.Results[0].URL)
}

func TestSearchAllModeNarrows(t *testing.T) {
	p := testPipeline(t, Options{})

	any, err := p.Search(context.Background(), Request{Query: "milk chocolate", Mode: filter.ModeAny})
	require.NoError(t, err)
	all, err := p.Search(context.Background(), Request{Query: "milk chocolate", Mode: filter.ModeAll})
	require.NoError(t, err)

	assert.Equal(t, 2, any.FilteredDocuments)
	assert.Equal(t, 1, all.FilteredDocuments)
}

func TestSearchStopWordOnlyQuery(t *testing.T) {
	p := testPipeline(t, Options{})

	resp, err := p.Search(context.Background(), Request{Query: "the and of"})
	require.NoError(t, err)

	assert.Equal(t, StateDone, resp.State)
	assert.Empty(t, resp.Tokens)
	assert.Zero(t, resp.FilteredDocuments)
	assert.Empty(t, resp.Results)
}

func TestSearchZeroResultQuery(t *testing.T) {
	p := testPipeline(t, Options{})

	resp, err := p.Search(context.Background(), Request{Query: "spacecracreated"})
	require.NoError(t, err)

	assert.Equal(t, StateDone, resp.State)
	assert.Empty(t, resp.Results)
}

func TestSearchHonorsLimit(t *testing.T) {
	p := testPipeline(t, Options{DefaultLimit: 10})

	resp, err := p.Search(context.Background(), Request{Query: "chocolate", Limit: 1})
	require.NoError(t, err)
	assert.Len(t, resp.Results, 1)
}

func TestSearchClampsLimitToMaxResults(t *testing.T) {
	p := testPipeline(t, Options{MaxResults: 2})

	resp, err := p.Search(context.Background(), Request{Query: "chocolate vanilla extract", Limit: 50})
	require.NoError(t, err)
	assert.LessOrEqual(t, len(resp.Results), 2)
}

func TestSearchIsDeterministic(t *testing.T) {
	p := testPipeline(t, Options{})

	first, err := p.Search(context.Background(), Request{Query: "dark chocolate"})
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		again, err := p.Search(context.Background(), Request{Query: "dark chocolate"})
		require.NoError(t, err)
		assert.Equal(t, first.Results, again.Results)
	}
}

func TestSearchCanceledContextFailsAtRanking(t *testing.T) {
	p := testPipeline(t, Options{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	resp, err := p.Search(ctx, Request{Query: "chocolate"})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, StateFailed, resp.State)
	assert.Equal(t, StateRanked, resp.FailedAt)
}
