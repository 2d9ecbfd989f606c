package search

import (
	"context"
	"errors"
	"testing"

	"github.com/hyperjump/failscope/internal/embedding"
)

type failingTerms struct{ err error }

func (f failingTerms) Lookup(context.Context, string) ([]float32, bool, error) {
	return nil, false, f.err
}

func TestResolver_HybridHitNeverCallsProvider(t *testing.T) {
	factory := &countingFactory{vec: []float32{9, 9, 9}}
	r := NewResolver(exampleTerms(), factory, nil)

	for _, q := range []string{"dns outage", "DNS Outage", "  dns OUTAGE  "} {
		res, err := r.Resolve(context.Background(), q, ResolveOptions{ProviderAPIKey: "sk-live", HybridOnly: false})
		if err != nil {
			t.Fatalf("%q: %v", q, err)
		}
		if res.Source != SourceHybrid || res.NormalizedQuery != "dns outage" {
			t.Errorf("%q: got %+v", q, res)
		}
		if len(res.Vector) != 3 || res.Vector[0] != 1 {
			t.Errorf("%q: vector %v", q, res.Vector)
		}
	}
	if len(factory.keys) != 0 || len(factory.texts) != 0 {
		t.Errorf("provider called on hybrid hit: keys=%v texts=%v", factory.keys, factory.texts)
	}
}

func TestResolver_NoEmbeddingAvailable(t *testing.T) {
	factory := &countingFactory{vec: []float32{1}}
	tests := []struct {
		name      string
		factory   embedding.ProviderFactory
		opts      ResolveOptions
		wantCalls int
	}{
		{"hybrid only without key", factory, ResolveOptions{HybridOnly: true}, 0},
		{"hybrid only with key", factory, ResolveOptions{HybridOnly: true, ProviderAPIKey: "k"}, 0},
		{"no key", factory, ResolveOptions{HybridOnly: false}, 0},
		{"no provider configured", nil, ResolveOptions{HybridOnly: false, ProviderAPIKey: "k"}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewResolver(exampleTerms(), tt.factory, nil)
			_, err := r.Resolve(context.Background(), "unrecognized term", tt.opts)
			if err != ErrNoEmbeddingAvailable {
				t.Errorf("got %v, want ErrNoEmbeddingAvailable", err)
			}
		})
	}
	if len(factory.texts) != 0 {
		t.Errorf("provider called %d times", len(factory.texts))
	}
}

func TestResolver_ProviderErrorSurfaces(t *testing.T) {
	factory := &countingFactory{err: &embedding.ProviderError{StatusCode: 401, Detail: "invalid api key"}}
	r := NewResolver(exampleTerms(), factory, nil)
	_, err := r.Resolve(context.Background(), "anything else", ResolveOptions{ProviderAPIKey: "bad"})
	var perr *embedding.ProviderError
	if !errors.As(err, &perr) {
		t.Fatalf("got %v, want ProviderError", err)
	}
	if perr.StatusCode != 401 || perr.Detail != "invalid api key" {
		t.Errorf("unexpected provider error: %+v", perr)
	}
	if len(factory.texts) != 1 {
		t.Errorf("expected exactly one provider call, got %d", len(factory.texts))
	}
}

func TestResolver_LookupErrorPropagates(t *testing.T) {
	want := errors.New("lookup unavailable")
	r := NewResolver(failingTerms{err: want}, nil, nil)
	_, err := r.Resolve(context.Background(), "dns outage", ResolveOptions{})
	if !errors.Is(err, want) {
		t.Fatalf("got %v", err)
	}
}

func TestResolver_BlankQueryHasNoEmbedding(t *testing.T) {
	r := NewResolver(exampleTerms(), nil, nil)
	for _, q := range []string{"", "   ", " \t"} {
		_, err := r.Resolve(context.Background(), q, ResolveOptions{HybridOnly: true})
		if !errors.Is(err, ErrNoEmbeddingAvailable) {
			t.Errorf("%q: got %v, want ErrNoEmbeddingAvailable", q, err)
		}
	}
}
