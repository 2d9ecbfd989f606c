// Package search resolves query vectors and ranks the incident embedding collection
// by cosine similarity.
package search

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hyperjump/failscope/internal/models"
	"github.com/hyperjump/failscope/pkg/utils"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("github.com/hyperjump/failscope/internal/search")

func recordError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// IncidentSource resolves incident IDs for result hydration.
type IncidentSource interface {
	ByID(ctx context.Context) (map[string]*models.Incident, error)
}

// Options configures an Engine.
type Options struct {
	// MaxTopK caps the requested result count; 0 means no cap.
	MaxTopK int
	// DefaultHybridOnly applies when a request leaves use_hybrid_only unset.
	DefaultHybridOnly bool
}

// Engine is the caller-facing search API: resolve, rank, then optionally hydrate.
type Engine struct {
	resolver  *Resolver
	ranker    *Ranker
	incidents IncidentSource
	opts      Options
	logger    *zap.Logger
}

// NewEngine creates a search engine. incidents may be nil when hydration is not needed.
func NewEngine(resolver *Resolver, ranker *Ranker, incidents IncidentSource, opts Options, logger *zap.Logger) *Engine {
	return &Engine{
		resolver:  resolver,
		ranker:    ranker,
		incidents: incidents,
		opts:      opts,
		logger:    utils.OrNop(logger),
	}
}

// Search resolves the request's query to a vector and returns the most similar incidents.
func (e *Engine) Search(ctx context.Context, req *models.SearchRequest) (*models.SearchResponse, error) {
	startTime := time.Now()
	if req == nil {
		return nil, ErrEmptyQuery
	}
	if err := req.Validate(e.opts.MaxTopK); err != nil {
		return nil, ErrEmptyQuery
	}
	hybridOnly := e.opts.DefaultHybridOnly
	if req.UseHybridOnly != nil {
		hybridOnly = *req.UseHybridOnly
	}

	ctx, span := tracer.Start(ctx, "search.query")
	defer span.End()

	res, err := e.resolver.Resolve(ctx, req.Query, ResolveOptions{
		ProviderAPIKey: req.EmbeddingAPIKey,
		HybridOnly:     hybridOnly,
	})
	if err != nil {
		if !errors.Is(err, ErrNoEmbeddingAvailable) {
			recordError(span, err)
		}
		return nil, err
	}

	results, err := e.ranker.Rank(ctx, res.Vector, req.TopK, req.Filters)
	if err != nil {
		recordError(span, err)
		return nil, err
	}

	if req.IncludeIncidents && e.incidents != nil {
		results, err = e.hydrate(ctx, results)
		if err != nil {
			recordError(span, err)
			return nil, err
		}
	}

	resp := &models.SearchResponse{
		RequestID:    uuid.New().String(),
		Query:        req.Query,
		VectorSource: string(res.Source),
		Results:      results,
		Total:        len(results),
		QueryTime:    time.Since(startTime).Milliseconds(),
	}
	e.logger.Debug("search completed",
		zap.String("request_id", resp.RequestID),
		zap.String("vector_source", resp.VectorSource),
		zap.Int("results", resp.Total),
		zap.Int64("query_time_ms", resp.QueryTime),
	)
	return resp, nil
}

// hydrate attaches catalog incidents and drops results the catalog does not know.
func (e *Engine) hydrate(ctx context.Context, results []*models.SimilarityResult) ([]*models.SimilarityResult, error) {
	byID, err := e.incidents.ByID(ctx)
	if err != nil {
		return nil, fmt.Errorf("load incidents: %w", err)
	}
	out := results[:0]
	for _, r := range results {
		inc, ok := byID[r.ID]
		if !ok {
			e.logger.Debug("dropping result without catalog incident", zap.String("id", r.ID))
			continue
		}
		r.Incident = inc
		out = append(out, r)
	}
	return out, nil
}
