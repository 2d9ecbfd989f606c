package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hyperjump/failscope/internal/models"
	"github.com/hyperjump/failscope/internal/source"
	"github.com/hyperjump/failscope/pkg/utils"
	"go.uber.org/zap"
)

// DefaultEmbeddingsPath is the artifact name of the embedding collection.
const DefaultEmbeddingsPath = "embeddings.json"

// EmbeddingStore loads and caches the embedding collection.
type EmbeddingStore struct {
	fetcher source.Fetcher
	path    string
	logger  *zap.Logger
	cache   *Lazy[[]models.EmbeddingRecord]
}

// NewEmbeddingStore creates a store reading path (DefaultEmbeddingsPath when empty) from f.
func NewEmbeddingStore(f source.Fetcher, path string, logger *zap.Logger) *EmbeddingStore {
	if path == "" {
		path = DefaultEmbeddingsPath
	}
	s := &EmbeddingStore{
		fetcher: f,
		path:    path,
		logger:  utils.OrNop(logger),
	}
	s.cache = NewLazy("embeddings", s.fetch)
	return s
}

// Load returns the full collection in published order. The first call fetches;
// later calls return the cached slice, which callers must not modify.
// Fetch and decode failures are returned as *source.LoadError.
func (s *EmbeddingStore) Load(ctx context.Context) ([]models.EmbeddingRecord, error) {
	return s.cache.Get(ctx)
}

// Loaded reports whether the collection is cached.
func (s *EmbeddingStore) Loaded() bool {
	return s.cache.Loaded()
}

// Size returns the number of cached records, or 0 before the first load.
func (s *EmbeddingStore) Size() int {
	recs, _ := s.cache.Peek()
	return len(recs)
}

// Dimensions returns the vector length of the first cached record, or 0.
func (s *EmbeddingStore) Dimensions() int {
	recs, _ := s.cache.Peek()
	if len(recs) == 0 {
		return 0
	}
	return len(recs[0].Vector)
}

func (s *EmbeddingStore) fetch(ctx context.Context) ([]models.EmbeddingRecord, error) {
	start := time.Now()
	var raw []json.RawMessage
	if err := source.FetchJSON(ctx, s.fetcher, s.path, &raw); err != nil {
		return nil, err
	}
	records := make([]models.EmbeddingRecord, 0, len(raw))
	for i, msg := range raw {
		var rec models.EmbeddingRecord
		if err := json.Unmarshal(msg, &rec); err != nil {
			s.logger.Warn("skipping malformed embedding record", zap.Int("index", i), zap.Error(err))
			continue
		}
		if rec.ID == "" {
			s.logger.Warn("skipping embedding record without id", zap.Int("index", i))
			continue
		}
		if !utils.AllFinite(rec.Vector) {
			s.logger.Warn("skipping embedding record with non-finite vector", zap.String("id", rec.ID))
			continue
		}
		records = append(records, rec)
	}
	if len(raw) > 0 && len(records) == 0 {
		return nil, &source.LoadError{Artifact: s.path, Err: fmt.Errorf("no usable records in %d entries", len(raw))}
	}
	s.logger.Info("embeddings loaded",
		zap.String("source", s.fetcher.Location()),
		zap.Int("records", len(records)),
		zap.Int("skipped", len(raw)-len(records)),
		zap.Duration("took", time.Since(start)),
	)
	return records, nil
}
