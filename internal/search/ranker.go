package search

import (
	"context"
	"fmt"
	"slices"

	"github.com/hyperjump/failscope/internal/models"
	"github.com/hyperjump/failscope/internal/vector"
	"github.com/hyperjump/failscope/pkg/utils"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// RecordSource provides the embedding collection.
type RecordSource interface {
	Load(ctx context.Context) ([]models.EmbeddingRecord, error)
}

// Ranker scores the embedding collection against a query vector by brute force.
type Ranker struct {
	records RecordSource
	logger  *zap.Logger
}

// NewRanker creates a ranker over records.
func NewRanker(records RecordSource, logger *zap.Logger) *Ranker {
	return &Ranker{records: records, logger: utils.OrNop(logger)}
}

// Rank returns up to topK records matching filters, ordered by descending cosine
// similarity to queryVector. Equal scores keep collection order. topK <= 0 yields
// an empty result.
func (r *Ranker) Rank(ctx context.Context, queryVector []float32, topK int, filters *models.SearchFilters) ([]*models.SimilarityResult, error) {
	ctx, span := tracer.Start(ctx, "search.rank")
	defer span.End()

	records, err := r.records.Load(ctx)
	if err != nil {
		recordError(span, err)
		return nil, fmt.Errorf("load embeddings: %w", err)
	}
	if topK <= 0 {
		return []*models.SimilarityResult{}, nil
	}

	scored := make([]*models.SimilarityResult, 0, len(records))
	skipped := 0
	for i := range records {
		rec := &records[i]
		if !filters.Matches(rec) {
			continue
		}
		if len(rec.Vector) != len(queryVector) {
			skipped++
			r.logger.Warn("skipping record with mismatched dimensions",
				zap.String("id", rec.ID),
				zap.Int("record_dims", len(rec.Vector)),
				zap.Int("query_dims", len(queryVector)),
			)
			continue
		}
		scored = append(scored, &models.SimilarityResult{
			EmbeddingRecord: *rec,
			SimilarityScore: vector.Cosine(queryVector, rec.Vector),
		})
	}

	slices.SortStableFunc(scored, func(a, b *models.SimilarityResult) int {
		switch {
		case a.SimilarityScore > b.SimilarityScore:
			return -1
		case a.SimilarityScore < b.SimilarityScore:
			return 1
		}
		return 0
	})
	if len(scored) > topK {
		scored = scored[:topK]
	}
	span.SetAttributes(
		attribute.Int("candidates", len(records)),
		attribute.Int("skipped", skipped),
		attribute.Int("results", len(scored)),
	)
	return scored, nil
}
