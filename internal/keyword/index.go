// Package keyword provides full-text lookup over catalog incidents and close-match
// suggestions over hybrid query terms.
package keyword

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"unicode"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	blevequery "github.com/blevesearch/bleve/v2/search/query"
	"github.com/hyperjump/failscope/internal/models"
)

// SearchOptions optional parameters for incident text search. Nil means use defaults.
type SearchOptions struct {
	// Fuzziness is the maximum edit distance per query token (0 disables fuzzy matching).
	// Default is 1.
	Fuzziness int
	// PrefixMatch also matches tokens that start with each query word, so partial words
	// such as "ransom" find "ransomware".
	PrefixMatch bool
}

// Result is a single text search hit.
type Result struct {
	ID    string
	Score float64
}

// IncidentIndex is an in-memory Bleve index over incident text fields.
type IncidentIndex struct {
	mu    sync.RWMutex
	index bleve.Index
}

var indexedFields = []string{"title", "summary", "root_cause", "cause", "lessons", "tags", "companies", "patterns"}

// NewIncidentIndex creates an empty in-memory index.
func NewIncidentIndex() (*IncidentIndex, error) {
	im := bleve.NewIndexMapping()
	docMapping := bleve.NewDocumentMapping()
	textFieldMapping := bleve.NewTextFieldMapping()
	// Standard analyzer (lowercase + tokenize, no stemming) keeps product and company
	// names matchable as typed.
	textFieldMapping.Analyzer = standard.Name
	for _, f := range indexedFields {
		docMapping.AddFieldMappingsAt(f, textFieldMapping)
	}
	im.AddDocumentMapping("incident", docMapping)
	im.DefaultType = "incident"
	im.DefaultMapping = docMapping

	index, err := bleve.NewMemOnly(im)
	if err != nil {
		return nil, fmt.Errorf("failed to create incident index: %w", err)
	}
	return &IncidentIndex{index: index}, nil
}

func incidentDocument(inc *models.Incident) map[string]interface{} {
	return map[string]interface{}{
		"title":      inc.Title,
		"summary":    inc.Summary,
		"root_cause": inc.RootCause,
		"cause":      inc.Cause,
		"lessons":    strings.Join(inc.Lessons, " "),
		"tags":       strings.Join(inc.Tags, " "),
		"companies":  strings.Join(inc.Companies, " "),
		"patterns":   strings.Join(inc.Patterns, " "),
	}
}

// IndexAll indexes incidents in one batch.
func (x *IncidentIndex) IndexAll(ctx context.Context, incidents []*models.Incident) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	batch := x.index.NewBatch()
	for _, inc := range incidents {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := batch.Index(inc.ID, incidentDocument(inc)); err != nil {
			return fmt.Errorf("index incident %s: %w", inc.ID, err)
		}
	}
	if err := x.index.Batch(batch); err != nil {
		return fmt.Errorf("failed to index incidents: %w", err)
	}
	return nil
}

// Search returns incidents whose text matches every word of query, ordered by
// relevance. limit <= 0 returns every hit.
func (x *IncidentIndex) Search(ctx context.Context, query string, limit int, opts *SearchOptions) ([]*Result, error) {
	fuzziness := 1
	prefix := true
	if opts != nil {
		fuzziness = opts.Fuzziness
		prefix = opts.PrefixMatch
	}
	q := buildQuery(query, fuzziness, prefix)
	if q == nil {
		return []*Result{}, nil
	}

	x.mu.RLock()
	defer x.mu.RUnlock()
	if limit <= 0 {
		count, err := x.index.DocCount()
		if err != nil {
			return nil, fmt.Errorf("incident index count failed: %w", err)
		}
		limit = int(count)
	}
	req := bleve.NewSearchRequestOptions(q, limit, 0, false)
	results, err := x.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("incident search failed: %w", err)
	}
	out := make([]*Result, len(results.Hits))
	for i, hit := range results.Hits {
		out[i] = &Result{ID: hit.ID, Score: hit.Score}
	}
	return out, nil
}

// DocCount returns the number of indexed incidents.
func (x *IncidentIndex) DocCount() (uint64, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.index.DocCount()
}

// Close releases the index.
func (x *IncidentIndex) Close() error {
	return x.index.Close()
}

// tokenizeQuery splits query into lowercase letter/digit runs.
func tokenizeQuery(query string) []string {
	return strings.FieldsFunc(strings.ToLower(query), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// buildQuery matches all analyzed query tokens, tolerating typos up to fuzziness.
// With prefix enabled, a document matching every word as a token prefix also hits.
func buildQuery(queryStr string, fuzziness int, prefix bool) blevequery.Query {
	terms := tokenizeQuery(queryStr)
	if len(terms) == 0 {
		return nil
	}
	mq := bleve.NewMatchQuery(strings.Join(terms, " "))
	mq.SetOperator(blevequery.MatchQueryOperatorAnd)
	if fuzziness > 0 {
		mq.SetFuzziness(fuzziness)
	}
	if !prefix {
		return mq
	}
	prefixes := make([]blevequery.Query, 0, len(terms))
	for _, term := range terms {
		prefixes = append(prefixes, bleve.NewPrefixQuery(term))
	}
	return bleve.NewDisjunctionQuery(mq, bleve.NewConjunctionQuery(prefixes...))
}
