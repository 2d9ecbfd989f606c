package models

// SearchResponse is the response for a similarity search request.
type SearchResponse struct {
	RequestID    string              `json:"request_id,omitempty"`
	Query        string              `json:"query"`
	VectorSource string              `json:"vector_source"` // hybrid or provider
	Results      []*SimilarityResult `json:"results"`
	Total        int                 `json:"total"`
	QueryTime    int64               `json:"query_time_ms"`
}

// ErrorResponse is the JSON body returned for failed requests.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
	// Suggestions lists known hybrid terms close to the query when no vector was available.
	Suggestions []string `json:"suggestions,omitempty"`
}
