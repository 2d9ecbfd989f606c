package embedding

import (
	"context"
	"math"
	"sync/atomic"

	"github.com/hyperjump/failscope/pkg/utils"
)

// HashProvider is a deterministic provider for tests and offline runs. It returns a
// fixed-dimension unit vector derived from the text hash, so the same text always
// gets the same embedding. Calls counts Embed invocations.
type HashProvider struct {
	dimensions int
	calls      atomic.Int64
}

// NewHashProvider returns a provider producing vectors of the given dimensions.
func NewHashProvider(dimensions int) *HashProvider {
	if dimensions <= 0 {
		dimensions = 1536
	}
	return &HashProvider{dimensions: dimensions}
}

// Embed returns a deterministic embedding based on the text hash.
func (e *HashProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	e.calls.Add(1)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	h := hashString(text)
	emb := make([]float32, e.dimensions)
	for i := 0; i < e.dimensions; i++ {
		emb[i] = float32(math.Sin(float64(h*(i+1)))*0.1 + 0.01)
	}
	utils.NormalizeL2(emb)
	return emb, nil
}

// Dimensions returns the embedding dimension.
func (e *HashProvider) Dimensions() int {
	return e.dimensions
}

// Calls returns the number of Embed calls so far.
func (e *HashProvider) Calls() int64 {
	return e.calls.Load()
}

// ForKey implements ProviderFactory; the key is ignored.
func (e *HashProvider) ForKey(string) (Provider, error) {
	return e, nil
}

func hashString(s string) int {
	h := 0
	for _, c := range s {
		h = 31*h + int(c)
	}
	if h < 0 {
		h = -h
	}
	return h
}
