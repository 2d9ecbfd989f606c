package store

import (
	"context"
	"sort"
	"time"

	"github.com/hyperjump/failscope/internal/models"
	"github.com/hyperjump/failscope/internal/source"
	"github.com/hyperjump/failscope/pkg/utils"
	"go.uber.org/zap"
)

// DefaultHybridLookupPath is the artifact name of the hybrid term lookup.
const DefaultHybridLookupPath = "hybrid_lookup.json"

type hybridTable struct {
	vectors map[string][]float32
	terms   []string
}

// HybridLookup loads and caches the mapping from normalized query strings to precomputed vectors.
type HybridLookup struct {
	fetcher source.Fetcher
	path    string
	logger  *zap.Logger
	cache   *Lazy[*hybridTable]
}

// NewHybridLookup creates a lookup reading path (DefaultHybridLookupPath when empty) from f.
func NewHybridLookup(f source.Fetcher, path string, logger *zap.Logger) *HybridLookup {
	if path == "" {
		path = DefaultHybridLookupPath
	}
	h := &HybridLookup{
		fetcher: f,
		path:    path,
		logger:  utils.OrNop(logger),
	}
	h.cache = NewLazy("hybrid_lookup", h.fetch)
	return h
}

// Load returns the term table keyed by normalized query. The map must not be modified.
func (h *HybridLookup) Load(ctx context.Context) (map[string][]float32, error) {
	t, err := h.cache.Get(ctx)
	if err != nil {
		return nil, err
	}
	return t.vectors, nil
}

// Lookup returns the vector for an already-normalized query.
func (h *HybridLookup) Lookup(ctx context.Context, normalized string) ([]float32, bool, error) {
	t, err := h.cache.Get(ctx)
	if err != nil {
		return nil, false, err
	}
	v, ok := t.vectors[normalized]
	return v, ok, nil
}

// Terms returns the known terms in sorted order.
func (h *HybridLookup) Terms(ctx context.Context) ([]string, error) {
	t, err := h.cache.Get(ctx)
	if err != nil {
		return nil, err
	}
	return t.terms, nil
}

// Loaded reports whether the lookup is cached.
func (h *HybridLookup) Loaded() bool {
	return h.cache.Loaded()
}

// Size returns the number of cached terms, or 0 before the first load.
func (h *HybridLookup) Size() int {
	t, ok := h.cache.Peek()
	if !ok {
		return 0
	}
	return len(t.terms)
}

func (h *HybridLookup) fetch(ctx context.Context) (*hybridTable, error) {
	start := time.Now()
	var doc models.HybridLookupDocument
	if err := source.FetchJSON(ctx, h.fetcher, h.path, &doc); err != nil {
		return nil, err
	}

	// Sorted so that keys colliding after normalization resolve the same way every load.
	raw := make([]string, 0, len(doc.Terms))
	for k := range doc.Terms {
		raw = append(raw, k)
	}
	sort.Strings(raw)

	t := &hybridTable{vectors: make(map[string][]float32, len(raw))}
	for _, k := range raw {
		key := utils.NormalizeQuery(k)
		if key == "" {
			continue
		}
		if _, dup := t.vectors[key]; dup {
			h.logger.Warn("duplicate hybrid term after normalization", zap.String("term", k))
			continue
		}
		vec := doc.Terms[k].Vector
		if len(vec) == 0 || !utils.AllFinite(vec) {
			h.logger.Warn("skipping hybrid term with unusable vector", zap.String("term", k))
			continue
		}
		t.vectors[key] = vec
		t.terms = append(t.terms, key)
	}
	sort.Strings(t.terms)

	h.logger.Info("hybrid lookup loaded",
		zap.String("source", h.fetcher.Location()),
		zap.Int("terms", len(t.terms)),
		zap.Duration("took", time.Since(start)),
	)
	return t, nil
}
