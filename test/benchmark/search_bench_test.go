package benchmark

import (
	"context"
	"fmt"
	"testing"

	"github.com/hyperjump/failscope/internal/embedding"
	"github.com/hyperjump/failscope/internal/keyword"
	"github.com/hyperjump/failscope/internal/models"
	"github.com/hyperjump/failscope/internal/search"
	"github.com/hyperjump/failscope/internal/vector"
)

type staticRecords []models.EmbeddingRecord

func (s staticRecords) Load(context.Context) ([]models.EmbeddingRecord, error) { return s, nil }

type staticTerms []string

func (s staticTerms) Terms(context.Context) ([]string, error) { return s, nil }

func makeRecords(n, dims int) staticRecords {
	p := embedding.NewHashProvider(dims)
	ctx := context.Background()
	recs := make(staticRecords, n)
	categories := []string{"outage", "security", "decision", "ai", "safety"}
	for i := range recs {
		vec, _ := p.Embed(ctx, fmt.Sprintf("incident %d", i))
		recs[i] = models.EmbeddingRecord{
			ID:       fmt.Sprintf("inc-%05d", i),
			Vector:   vec,
			Category: categories[i%len(categories)],
			Severity: "high",
			Tags:     []string{"bench"},
		}
	}
	return recs
}

func BenchmarkCosine1536(b *testing.B) {
	p := embedding.NewHashProvider(1536)
	x, _ := p.Embed(context.Background(), "a")
	y, _ := p.Embed(context.Background(), "b")
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = vector.Cosine(x, y)
	}
}

func BenchmarkRank(b *testing.B) {
	for _, n := range []int{100, 1000, 5000} {
		b.Run(fmt.Sprintf("records=%d", n), func(b *testing.B) {
			recs := makeRecords(n, 1536)
			ranker := search.NewRanker(recs, nil)
			query := recs[n/2].Vector
			ctx := context.Background()
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				_, _ = ranker.Rank(ctx, query, 10, nil)
			}
		})
	}
}

func BenchmarkRankFiltered(b *testing.B) {
	recs := makeRecords(1000, 1536)
	ranker := search.NewRanker(recs, nil)
	filters := &models.SearchFilters{Category: "security", Tags: []string{"bench"}}
	ctx := context.Background()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = ranker.Rank(ctx, recs[0].Vector, 10, filters)
	}
}

func BenchmarkHashProvider_Embed(b *testing.B) {
	e := embedding.NewHashProvider(1536)
	ctx := context.Background()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = e.Embed(ctx, "benchmark query text for embedding")
	}
}

func BenchmarkSuggest(b *testing.B) {
	terms := make(staticTerms, 500)
	for i := range terms {
		terms[i] = fmt.Sprintf("failure mode %d outage", i)
	}
	s := keyword.NewSuggester(terms)
	ctx := context.Background()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = s.Suggest(ctx, "failure mod outgae")
	}
}
