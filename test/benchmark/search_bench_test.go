// Package benchmark contains Go benchmarks for the normalization chain,
// index construction, candidate filtering, and ranking, measuring
// throughput and allocation behaviour.
package benchmark

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/crauzier/catalogsearch/internal/catalog"
	"github.com/crauzier/catalogsearch/internal/index"
	"github.com/crauzier/catalogsearch/internal/normalize"
	"github.com/crauzier/catalogsearch/internal/search/filter"
	"github.com/crauzier/catalogsearch/internal/search/pipeline"
	"github.com/crauzier/catalogsearch/internal/search/ranker"
	"github.com/crauzier/catalogsearch/internal/suggest"
)

var sampleTexts = map[string]string{
	"short": "Dark chocolate bar with roasted hazelnuts",
	"medium": `Premium dark chocolate crafted from single-origin cocoa beans.
        The beans are slow roasted and stone ground to preserve the natural
        flavour notes of red fruit and caramel. Suitable for baking and for
        eating straight from the bar.`,
	"long": strings.Repeat(`Product catalogs carry titles, descriptions, brand
        and origin features, and customer reviews. The indexes built over them
        map each term to the documents and positions where it occurs, so that
        queries can be filtered and ranked without rescanning the catalog. `, 20),
}

func benchmarkCatalog(n int) []catalog.Product {
	flavours := []string{"dark", "milk", "white", "ruby", "hazelnut", "caramel", "mint", "orange"}
	records := make([]catalog.Product, n)
	for i := range records {
		flavour := flavours[i%len(flavours)]
		records[i] = catalog.Product{
			URL:         fmt.Sprintf("https://shop.example/item-%d", i),
			Title:       fmt.Sprintf("%s chocolate bar %d", flavour, i),
			Description: fmt.Sprintf("Delicious %s chocolate made from fine cocoa, batch %d", flavour, i),
			Features:    map[string]string{"brand": fmt.Sprintf("brand%d", i%10), "origin": "switzerland"},
			Reviews:     []catalog.Review{{Rating: float64(1 + i%5)}},
		}
	}
	return records
}

func BenchmarkTokenize(b *testing.B) {
	for name, text := range sampleTexts {
		b.Run(name, func(b *testing.B) {
			b.ReportAllocs()
			b.SetBytes(int64(len(text)))
			for i := 0; i < b.N; i++ {
				tokens := normalize.Tokenize(text)
				_ = tokens
			}
		})
	}
}

func BenchmarkTokenizeParallel(b *testing.B) {
	text := sampleTexts["medium"]
	b.ReportAllocs()
	b.SetBytes(int64(len(text)))
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			tokens := normalize.Tokenize(text)
			_ = tokens
		}
	})
}

func BenchmarkIndexBuild(b *testing.B) {
	for _, size := range []int{100, 1000, 10000} {
		records := benchmarkCatalog(size)
		b.Run(fmt.Sprintf("docs_%d", size), func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				store, err := index.Build(records)
				if err != nil {
					b.Fatal(err)
				}
				_ = store
			}
		})
	}
}

func BenchmarkCorrect(b *testing.B) {
	store, err := index.Build(benchmarkCatalog(1000))
	if err != nil {
		b.Fatal(err)
	}
	corrector := normalize.NewCorrector(store.Vocabulary())
	terms := []string{"chocolate", "chocolte", "carramel", "zzzzzz"}

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		for _, term := range terms {
			_ = corrector.Correct(term)
		}
	}
}

func BenchmarkFilterCandidates(b *testing.B) {
	store, err := index.Build(benchmarkCatalog(10000))
	if err != nil {
		b.Fatal(err)
	}
	f := filter.New(store)
	tokens := []string{"dark", "chocolate", "switzerland"}
	ctx := context.Background()

	for _, mode := range []filter.Mode{filter.ModeAny, filter.ModeAll} {
		b.Run(mode.String(), func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				candidates, err := f.Candidates(ctx, tokens, mode)
				if err != nil {
					b.Fatal(err)
				}
				_ = candidates
			}
		})
	}
}

func BenchmarkRank(b *testing.B) {
	store, err := index.Build(benchmarkCatalog(10000))
	if err != nil {
		b.Fatal(err)
	}
	f := filter.New(store)
	r := ranker.New(store, ranker.DefaultParams())
	ctx := context.Background()
	tokens := []string{"dark", "chocolate"}

	candidates, err := f.Candidates(ctx, tokens, filter.ModeAny)
	if err != nil {
		b.Fatal(err)
	}

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		results, err := r.Rank(ctx, candidates, "dark chocolate", tokens, 10)
		if err != nil {
			b.Fatal(err)
		}
		_ = results
	}
}

func BenchmarkPipelineSearch(b *testing.B) {
	store, err := index.Build(benchmarkCatalog(10000))
	if err != nil {
		b.Fatal(err)
	}
	p, err := pipeline.New(store, pipeline.Options{})
	if err != nil {
		b.Fatal(err)
	}
	ctx := context.Background()
	req := pipeline.Request{Query: "dark chocolate", Limit: 10}

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		resp, err := p.Search(ctx, req)
		if err != nil {
			b.Fatal(err)
		}
		_ = resp
	}
}

func BenchmarkSuggest(b *testing.B) {
	store, err := index.Build(benchmarkCatalog(10000))
	if err != nil {
		b.Fatal(err)
	}
	trie := suggest.FromVocabulary(store.Vocabulary())

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		suggestions := trie.Suggest("cho", 10)
		_ = suggestions
	}
}
