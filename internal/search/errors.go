package search

import "errors"

var (
	// ErrNoEmbeddingAvailable is returned when the query has no precomputed vector and
	// no provider call is permitted for the request.
	ErrNoEmbeddingAvailable = errors.New("no embedding available for query: not a known term and no provider call permitted")
	// ErrEmptyQuery is returned for a blank query.
	ErrEmptyQuery = errors.New("query cannot be empty")
)
