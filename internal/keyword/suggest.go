package keyword

import (
	"context"
	"slices"
	"strings"

	"github.com/hyperjump/failscope/pkg/utils"
)

// TermSource lists the known hybrid query terms.
type TermSource interface {
	Terms(ctx context.Context) ([]string, error)
}

// Suggestion is a known term close to a query.
type Suggestion struct {
	Term         string
	Distance     int // edit distance between the normalized query and Term
	SharedTokens int // words Term has in common with the query
}

// Suggester proposes known hybrid terms for a query that has no precomputed vector.
type Suggester struct {
	terms          TermSource
	maxSuggestions int
}

// SuggesterOption is a functional option for configuring Suggester.
type SuggesterOption func(*Suggester)

// WithMaxSuggestions sets the maximum number of suggestions returned.
func WithMaxSuggestions(n int) SuggesterOption {
	return func(s *Suggester) {
		if n > 0 {
			s.maxSuggestions = n
		}
	}
}

// NewSuggester creates a suggester over terms. The default limit is 3.
func NewSuggester(terms TermSource, opts ...SuggesterOption) *Suggester {
	s := &Suggester{terms: terms, maxSuggestions: 3}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Suggest returns up to the configured number of terms close to query. A term is a
// candidate when it shares a word with the query or is within half the longer
// length in edit distance. Shared words rank first, then smaller distance, then
// alphabetical order.
func (s *Suggester) Suggest(ctx context.Context, query string) ([]Suggestion, error) {
	normalized := utils.NormalizeQuery(query)
	if normalized == "" {
		return []Suggestion{}, nil
	}
	terms, err := s.terms.Terms(ctx)
	if err != nil {
		return nil, err
	}

	queryTokens := tokenizeQuery(normalized)
	candidates := make([]Suggestion, 0)
	for _, term := range terms {
		if term == normalized {
			continue
		}
		distance := LevenshteinDistance(normalized, term)
		shared := sharedTokens(queryTokens, tokenizeQuery(term))
		limit := max(len([]rune(normalized)), len([]rune(term))) / 2
		if shared == 0 && distance > limit {
			continue
		}
		candidates = append(candidates, Suggestion{Term: term, Distance: distance, SharedTokens: shared})
	}

	slices.SortFunc(candidates, func(a, b Suggestion) int {
		if a.SharedTokens != b.SharedTokens {
			return b.SharedTokens - a.SharedTokens
		}
		if a.Distance != b.Distance {
			return a.Distance - b.Distance
		}
		return strings.Compare(a.Term, b.Term)
	})
	if len(candidates) > s.maxSuggestions {
		candidates = candidates[:s.maxSuggestions]
	}
	return candidates, nil
}

// SuggestTerms is Suggest returning only the term strings.
func (s *Suggester) SuggestTerms(ctx context.Context, query string) ([]string, error) {
	suggestions, err := s.Suggest(ctx, query)
	if err != nil {
		return nil, err
	}
	out := make([]string, len(suggestions))
	for i, sg := range suggestions {
		out[i] = sg.Term
	}
	return out, nil
}

func sharedTokens(a, b []string) int {
	n := 0
	for _, t := range a {
		if slices.Contains(b, t) {
			n++
		}
	}
	return n
}
