// Package catalog serves the incident catalog: failures, recurring patterns and the
// tag taxonomy, normalized from the published artifacts.
package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/hyperjump/failscope/internal/keyword"
	"github.com/hyperjump/failscope/internal/models"
	"github.com/hyperjump/failscope/internal/source"
	"github.com/hyperjump/failscope/internal/store"
	"github.com/hyperjump/failscope/pkg/utils"
	"go.uber.org/zap"
)

// Default artifact names.
const (
	DefaultFailuresPath = "failures.json"
	DefaultPatternsPath = "patterns.json"
	DefaultTagsPath     = "tags.json"
)

// ErrNotFound is returned by Get for an unknown incident ID.
var ErrNotFound = errors.New("incident not found")

// Paths names the catalog artifacts relative to the fetcher root.
type Paths struct {
	Failures string
	Patterns string
	Tags     string
}

// Options configures a Catalog.
type Options struct {
	Paths  Paths
	Retry  RetryOpts
	Logger *zap.Logger
	// Now is used for synthesized IDs; defaults to time.Now.
	Now func() time.Time
}

// ListOptions filters and pages List. Empty fields match everything.
type ListOptions struct {
	Category string
	Severity string
	Year     int
	// Tags requires an incident to carry every listed tag.
	Tags []string
	// Query is free text matched against title, summary, root cause, lessons, tags
	// and companies, tolerating small typos.
	Query  string
	Offset int
	// Limit <= 0 returns all remaining incidents.
	Limit int
}

type snapshot struct {
	incidents []*models.Incident // year descending
	byID      map[string]*models.Incident
	index     *keyword.IncidentIndex
}

// Catalog loads incidents, patterns and tags on first use and caches them.
type Catalog struct {
	fetcher source.Fetcher
	paths   Paths
	retry   RetryOpts
	now     func() time.Time
	logger  *zap.Logger

	incidents *store.Lazy[*snapshot]
	patterns  *store.Lazy[[]models.Pattern]
	tags      *store.Lazy[*models.TagTaxonomy]
}

// New creates a catalog reading from f.
func New(f source.Fetcher, opts Options) *Catalog {
	if opts.Paths.Failures == "" {
		opts.Paths.Failures = DefaultFailuresPath
	}
	if opts.Paths.Patterns == "" {
		opts.Paths.Patterns = DefaultPatternsPath
	}
	if opts.Paths.Tags == "" {
		opts.Paths.Tags = DefaultTagsPath
	}
	if opts.Retry.MaxAttempts == 0 {
		opts.Retry = DefaultRetry
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	c := &Catalog{
		fetcher: f,
		paths:   opts.Paths,
		retry:   opts.Retry,
		now:     opts.Now,
		logger:  utils.OrNop(opts.Logger),
	}
	c.incidents = store.NewLazy("failures", c.loadIncidents)
	c.patterns = store.NewLazy("patterns", c.loadPatterns)
	c.tags = store.NewLazy("tags", c.loadTags)
	return c
}

// fetch reads an artifact, retrying transport and status failures.
func (c *Catalog) fetch(ctx context.Context, name string) ([]byte, error) {
	var data []byte
	attempt := 0
	err := retry(ctx, c.retry, func(ctx context.Context) error {
		attempt++
		var err error
		data, err = c.fetcher.Fetch(ctx, name)
		if err != nil {
			c.logger.Warn("catalog fetch failed", zap.String("artifact", name), zap.Int("attempt", attempt), zap.Error(err))
		}
		return err
	})
	return data, err
}

func (c *Catalog) loadIncidents(ctx context.Context) (*snapshot, error) {
	start := time.Now()
	data, err := c.fetch(ctx, c.paths.Failures)
	if err != nil {
		return nil, err
	}

	var (
		incidents []*models.Incident
		skipped   []int
	)
	if strings.HasSuffix(c.paths.Failures, ".ndjson") {
		incidents, skipped = ParseNDJSON(data, c.now())
	} else {
		incidents, skipped, err = ParseJSON(data, c.now())
		if err != nil {
			return nil, &source.LoadError{Artifact: c.paths.Failures, Err: fmt.Errorf("decode: %w", err)}
		}
	}
	for _, n := range skipped {
		c.logger.Warn("skipping malformed incident", zap.String("artifact", c.paths.Failures), zap.Int("entry", n))
	}

	snap := &snapshot{
		incidents: make([]*models.Incident, 0, len(incidents)),
		byID:      make(map[string]*models.Incident, len(incidents)),
	}
	for _, inc := range incidents {
		if _, dup := snap.byID[inc.ID]; dup {
			c.logger.Warn("skipping duplicate incident id", zap.String("id", inc.ID))
			continue
		}
		snap.byID[inc.ID] = inc
		snap.incidents = append(snap.incidents, inc)
	}
	slices.SortStableFunc(snap.incidents, func(a, b *models.Incident) int {
		return b.Year - a.Year
	})

	snap.index, err = keyword.NewIncidentIndex()
	if err != nil {
		return nil, err
	}
	if err := snap.index.IndexAll(ctx, snap.incidents); err != nil {
		return nil, err
	}

	c.logger.Info("incidents loaded",
		zap.String("source", c.fetcher.Location()),
		zap.Int("incidents", len(snap.incidents)),
		zap.Int("skipped", len(skipped)),
		zap.Duration("took", time.Since(start)),
	)
	return snap, nil
}

func (c *Catalog) loadPatterns(ctx context.Context) ([]models.Pattern, error) {
	data, err := c.fetch(ctx, c.paths.Patterns)
	if err != nil {
		return nil, err
	}
	var patterns []models.Pattern
	if err := decodeJSON(c.paths.Patterns, data, &patterns); err != nil {
		return nil, err
	}
	if patterns == nil {
		patterns = []models.Pattern{}
	}
	c.logger.Info("patterns loaded", zap.Int("patterns", len(patterns)))
	return patterns, nil
}

func (c *Catalog) loadTags(ctx context.Context) (*models.TagTaxonomy, error) {
	data, err := c.fetch(ctx, c.paths.Tags)
	if err != nil {
		return nil, err
	}
	var tags models.TagTaxonomy
	if err := decodeJSON(c.paths.Tags, data, &tags); err != nil {
		return nil, err
	}
	c.logger.Info("tag taxonomy loaded", zap.String("version", tags.Version), zap.Int("free_tags", len(tags.FreeTags)))
	return &tags, nil
}

// Load fetches the incident list if it is not cached yet.
func (c *Catalog) Load(ctx context.Context) error {
	_, err := c.incidents.Get(ctx)
	return err
}

// Loaded reports whether incidents are cached.
func (c *Catalog) Loaded() bool {
	return c.incidents.Loaded()
}

// Size returns the number of cached incidents, or 0 before the first load.
func (c *Catalog) Size() int {
	snap, ok := c.incidents.Peek()
	if !ok {
		return 0
	}
	return len(snap.incidents)
}

// Get returns the incident with id, or ErrNotFound.
func (c *Catalog) Get(ctx context.Context, id string) (*models.Incident, error) {
	snap, err := c.incidents.Get(ctx)
	if err != nil {
		return nil, err
	}
	inc, ok := snap.byID[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return inc, nil
}

// ByID returns all incidents keyed by ID. The map must not be modified.
func (c *Catalog) ByID(ctx context.Context) (map[string]*models.Incident, error) {
	snap, err := c.incidents.Get(ctx)
	if err != nil {
		return nil, err
	}
	return snap.byID, nil
}

// List returns the incidents matching opts, newest first. Total counts every
// match before paging.
func (c *Catalog) List(ctx context.Context, opts ListOptions) (*models.IncidentList, error) {
	snap, err := c.incidents.Get(ctx)
	if err != nil {
		return nil, err
	}

	var hits map[string]struct{}
	if strings.TrimSpace(opts.Query) != "" {
		results, err := snap.index.Search(ctx, opts.Query, 0, nil)
		if err != nil {
			return nil, err
		}
		hits = make(map[string]struct{}, len(results))
		for _, r := range results {
			hits[r.ID] = struct{}{}
		}
	}

	category := ""
	if opts.Category != "" {
		category = NormalizeCategory(opts.Category)
	}
	severity := strings.ToLower(strings.TrimSpace(opts.Severity))

	matched := make([]*models.Incident, 0)
	for _, inc := range snap.incidents {
		if category != "" && inc.Category != category {
			continue
		}
		if severity != "" && inc.Severity.Level != severity {
			continue
		}
		if opts.Year != 0 && inc.Year != opts.Year {
			continue
		}
		if !hasAllTags(inc.Tags, opts.Tags) {
			continue
		}
		if hits != nil {
			if _, ok := hits[inc.ID]; !ok {
				continue
			}
		}
		matched = append(matched, inc)
	}

	total := len(matched)
	offset := min(max(opts.Offset, 0), total)
	page := matched[offset:]
	if opts.Limit > 0 && len(page) > opts.Limit {
		page = page[:opts.Limit]
	}
	return &models.IncidentList{Total: total, Data: page}, nil
}

// Counts returns the number of incidents per category.
func (c *Catalog) Counts(ctx context.Context) (map[string]int, error) {
	snap, err := c.incidents.Get(ctx)
	if err != nil {
		return nil, err
	}
	counts := make(map[string]int)
	for _, inc := range snap.incidents {
		counts[inc.Category]++
	}
	return counts, nil
}

// Patterns returns the recurring failure patterns.
func (c *Catalog) Patterns(ctx context.Context) ([]models.Pattern, error) {
	return c.patterns.Get(ctx)
}

// Tags returns the tag taxonomy.
func (c *Catalog) Tags(ctx context.Context) (*models.TagTaxonomy, error) {
	return c.tags.Get(ctx)
}

func hasAllTags(have, want []string) bool {
	for _, t := range want {
		if !slices.Contains(have, t) {
			return false
		}
	}
	return true
}

func decodeJSON(name string, data []byte, v any) error {
	if err := json.Unmarshal(data, v); err != nil {
		return &source.LoadError{Artifact: name, Err: fmt.Errorf("decode: %w", err)}
	}
	return nil
}
