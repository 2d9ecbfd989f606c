// Package models defines core data structures for embeddings, incidents, queries, and search results.
package models

// EmbeddingRecord is one precomputed incident embedding as published in embeddings.json.
// ID matches an incident ID in the catalog. Records are immutable once loaded.
type EmbeddingRecord struct {
	ID       string    `json:"id"`
	Vector   []float32 `json:"vector"`
	Category string    `json:"category"`
	Severity string    `json:"severity"`
	Tags     []string  `json:"tags"`
}

// HasAllTags reports whether the record carries every tag in want.
// An empty want matches every record.
func (r *EmbeddingRecord) HasAllTags(want []string) bool {
	if len(want) == 0 {
		return true
	}
	have := make(map[string]struct{}, len(r.Tags))
	for _, t := range r.Tags {
		have[t] = struct{}{}
	}
	for _, t := range want {
		if _, ok := have[t]; !ok {
			return false
		}
	}
	return true
}

// HybridTerm is a precomputed query vector in hybrid_lookup.json.
type HybridTerm struct {
	Vector []float32 `json:"vector"`
}

// HybridLookupDocument is the on-disk shape of hybrid_lookup.json.
type HybridLookupDocument struct {
	Terms map[string]HybridTerm `json:"terms"`
}

// SimilarityResult is an embedding record scored against a query vector.
type SimilarityResult struct {
	EmbeddingRecord
	SimilarityScore float64   `json:"similarity_score"`
	Incident        *Incident `json:"incident,omitempty"`
}

// ScoreBand buckets a similarity score for display.
func ScoreBand(score float64) string {
	switch {
	case score >= 0.8:
		return "strong"
	case score >= 0.6:
		return "good"
	case score >= 0.4:
		return "fair"
	default:
		return "weak"
	}
}
