// Package embedding turns free text into query vectors through an external
// embedding provider, with an LRU cache and a deterministic offline provider for tests.
package embedding

import (
	"context"
	"fmt"
)

// Provider produces one embedding vector for a text.
type Provider interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// ProviderFactory builds a Provider bound to a caller-supplied credential.
type ProviderFactory interface {
	ForKey(apiKey string) (Provider, error)
}

// ProviderFunc adapts a function to Provider.
type ProviderFunc func(ctx context.Context, text string) ([]float32, error)

// Embed calls f.
func (f ProviderFunc) Embed(ctx context.Context, text string) ([]float32, error) {
	return f(ctx, text)
}

// ProviderError reports that the embedding provider rejected or failed a request.
// StatusCode is the provider's HTTP status when one was received; Detail is the
// provider's own error message when it sent one.
type ProviderError struct {
	StatusCode int
	Detail     string
	Err        error
}

// Error implements the error interface.
func (e *ProviderError) Error() string {
	msg := "embedding provider request failed"
	if e.StatusCode != 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.StatusCode)
	}
	if e.Detail != "" {
		return msg + ": " + e.Detail
	}
	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *ProviderError) Unwrap() error {
	return e.Err
}
