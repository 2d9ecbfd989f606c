package models

import (
	"fmt"
	"strings"
)

// DefaultTopK is the number of results returned when a request does not set top_k.
const DefaultTopK = 5

// SearchFilters narrows the candidate set before scoring. Empty fields match everything.
// Tags requires a record to carry every listed tag.
type SearchFilters struct {
	Category string   `json:"category,omitempty"`
	Severity string   `json:"severity,omitempty"`
	Tags     []string `json:"tags,omitempty"`
}

// IsEmpty reports whether no filter is set.
func (f *SearchFilters) IsEmpty() bool {
	return f == nil || (f.Category == "" && f.Severity == "" && len(f.Tags) == 0)
}

// Matches reports whether r passes every filter.
func (f *SearchFilters) Matches(r *EmbeddingRecord) bool {
	if f == nil {
		return true
	}
	if f.Category != "" && r.Category != f.Category {
		return false
	}
	if f.Severity != "" && r.Severity != f.Severity {
		return false
	}
	return r.HasAllTags(f.Tags)
}

// SearchRequest is a similarity search request.
type SearchRequest struct {
	Query   string         `json:"query"`
	TopK    int            `json:"top_k,omitempty"`
	Filters *SearchFilters `json:"filters,omitempty"`
	// UseHybridOnly defaults to true when unset: only precomputed query vectors are used.
	UseHybridOnly   *bool  `json:"use_hybrid_only,omitempty"`
	EmbeddingAPIKey string `json:"embedding_api_key,omitempty"`
	// IncludeIncidents attaches the full catalog incident to each result.
	IncludeIncidents bool `json:"include_incidents,omitempty"`
}

// HybridOnly returns the effective hybrid-only flag.
func (q *SearchRequest) HybridOnly() bool {
	return q.UseHybridOnly == nil || *q.UseHybridOnly
}

// Validate ensures the request has a query and clamps top_k to [1, maxTopK].
// A negative top_k is kept as-is so that ranking returns an empty result.
func (q *SearchRequest) Validate(maxTopK int) error {
	if strings.TrimSpace(q.Query) == "" {
		return fmt.Errorf("query cannot be empty")
	}
	if q.TopK == 0 {
		q.TopK = DefaultTopK
	}
	if maxTopK > 0 && q.TopK > maxTopK {
		q.TopK = maxTopK
	}
	return nil
}
