package search

import (
	"context"
	"fmt"

	"github.com/hyperjump/failscope/internal/embedding"
	"github.com/hyperjump/failscope/pkg/utils"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// VectorSource names where a query vector came from.
type VectorSource string

const (
	SourceHybrid   VectorSource = "hybrid"
	SourceProvider VectorSource = "provider"
)

// TermLookup returns the precomputed vector for a normalized query.
type TermLookup interface {
	Lookup(ctx context.Context, normalized string) ([]float32, bool, error)
}

// ResolveOptions are the per-request inputs to Resolve.
type ResolveOptions struct {
	ProviderAPIKey string
	HybridOnly     bool
}

// Resolution is a resolved query vector.
type Resolution struct {
	Vector          []float32
	Source          VectorSource
	NormalizedQuery string
}

// Resolver turns query text into a vector: the hybrid lookup first, then the
// provider when the request allows it.
type Resolver struct {
	terms     TermLookup
	providers embedding.ProviderFactory
	logger    *zap.Logger
}

// NewResolver creates a resolver. providers may be nil, in which case only
// hybrid terms resolve.
func NewResolver(terms TermLookup, providers embedding.ProviderFactory, logger *zap.Logger) *Resolver {
	return &Resolver{terms: terms, providers: providers, logger: utils.OrNop(logger)}
}

// Resolve returns the query vector for query. Any query without a hybrid entry,
// blank ones included, fails with ErrNoEmbeddingAvailable unless the provider
// may be called. Blank requests are rejected earlier by Engine.Search.
func (r *Resolver) Resolve(ctx context.Context, query string, opts ResolveOptions) (*Resolution, error) {
	ctx, span := tracer.Start(ctx, "search.resolve")
	defer span.End()

	normalized := utils.NormalizeQuery(query)
	vec, ok, err := r.terms.Lookup(ctx, normalized)
	if err != nil {
		recordError(span, err)
		return nil, fmt.Errorf("hybrid lookup: %w", err)
	}
	if ok {
		r.logger.Debug("hybrid term hit", zap.String("term", normalized))
		span.SetAttributes(attribute.String("vector_source", string(SourceHybrid)))
		return &Resolution{Vector: vec, Source: SourceHybrid, NormalizedQuery: normalized}, nil
	}

	if opts.HybridOnly || opts.ProviderAPIKey == "" || r.providers == nil {
		return nil, ErrNoEmbeddingAvailable
	}
	provider, err := r.providers.ForKey(opts.ProviderAPIKey)
	if err != nil {
		recordError(span, err)
		return nil, fmt.Errorf("embedding provider: %w", err)
	}
	// The provider gets the query as typed; only the lookup key is normalized.
	vec, err = provider.Embed(ctx, query)
	if err != nil {
		recordError(span, err)
		return nil, fmt.Errorf("embed query: %w", err)
	}
	r.logger.Debug("provider embedding resolved", zap.Int("dimensions", len(vec)))
	span.SetAttributes(attribute.String("vector_source", string(SourceProvider)))
	return &Resolution{Vector: vec, Source: SourceProvider, NormalizedQuery: normalized}, nil
}
