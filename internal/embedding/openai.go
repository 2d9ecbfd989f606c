package embedding

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/hyperjump/failscope/pkg/utils"
	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// DefaultModel is the embedding model the published vectors were built with.
const DefaultModel = string(openai.SmallEmbedding3)

// OpenAIConfig configures the OpenAI-compatible embedding provider.
type OpenAIConfig struct {
	// BaseURL overrides the API base (default https://api.openai.com/v1).
	BaseURL string
	Model   string
	// RateLimit is the sustained provider calls per second across all keys; 0 disables limiting.
	RateLimit float64
	Burst     int
	// CacheSize bounds the response cache; 0 disables it.
	CacheSize  int
	HTTPClient *http.Client
}

// OpenAIFactory creates per-key providers that share one rate limiter and response cache.
type OpenAIFactory struct {
	cfg     OpenAIConfig
	limiter *rate.Limiter
	cache   *EmbeddingCache
	logger  *zap.Logger
}

// NewOpenAIFactory returns a factory for cfg.
func NewOpenAIFactory(cfg OpenAIConfig, logger *zap.Logger) *OpenAIFactory {
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	f := &OpenAIFactory{
		cfg:    cfg,
		cache:  NewEmbeddingCache(cfg.CacheSize),
		logger: utils.OrNop(logger),
	}
	if cfg.RateLimit > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		f.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}
	return f
}

// Model returns the configured model identifier.
func (f *OpenAIFactory) Model() string {
	return f.cfg.Model
}

// ForKey returns a provider authenticating with apiKey.
func (f *OpenAIFactory) ForKey(apiKey string) (Provider, error) {
	if apiKey == "" {
		return nil, errors.New("embedding provider requires an api key")
	}
	cc := openai.DefaultConfig(apiKey)
	if f.cfg.BaseURL != "" {
		cc.BaseURL = f.cfg.BaseURL
	}
	if f.cfg.HTTPClient != nil {
		cc.HTTPClient = f.cfg.HTTPClient
	}
	return &openAIProvider{
		client:      openai.NewClientWithConfig(cc),
		factory:     f,
		fingerprint: CredentialFingerprint(apiKey),
	}, nil
}

type openAIProvider struct {
	client      *openai.Client
	factory     *OpenAIFactory
	fingerprint string
}

// Embed requests a single embedding for text. Responses are cached per model,
// credential and text, so every key is checked by the provider at least once.
func (p *openAIProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	f := p.factory
	cacheKey := CacheKey(f.cfg.Model, p.fingerprint, text)
	if v, ok := f.cache.Get(cacheKey); ok {
		f.logger.Debug("provider cache hit", zap.String("model", f.cfg.Model))
		return v, nil
	}
	if f.limiter != nil {
		if err := f.limiter.Wait(ctx); err != nil {
			return nil, &ProviderError{StatusCode: http.StatusTooManyRequests, Detail: "local rate limit", Err: err}
		}
	}

	start := time.Now()
	resp, err := p.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: text,
		Model: openai.EmbeddingModel(f.cfg.Model),
	})
	if err != nil {
		perr := toProviderError(err)
		f.logger.Warn("provider embedding failed",
			zap.String("model", f.cfg.Model),
			zap.Int("status", perr.StatusCode),
			zap.Error(err),
		)
		return nil, perr
	}
	if len(resp.Data) == 0 || len(resp.Data[0].Embedding) == 0 {
		return nil, &ProviderError{Detail: "response contained no embedding"}
	}
	vec := resp.Data[0].Embedding
	if !utils.AllFinite(vec) {
		return nil, &ProviderError{Detail: "response contained a non-finite embedding"}
	}
	f.logger.Debug("provider embedding",
		zap.String("model", f.cfg.Model),
		zap.Int("dimensions", len(vec)),
		zap.Duration("took", time.Since(start)),
	)
	f.cache.Set(cacheKey, vec)
	return vec, nil
}

func toProviderError(err error) *ProviderError {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return &ProviderError{StatusCode: apiErr.HTTPStatusCode, Detail: apiErr.Message, Err: err}
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		pe := &ProviderError{StatusCode: reqErr.HTTPStatusCode, Err: err}
		if reqErr.Err != nil {
			pe.Detail = reqErr.Err.Error()
		}
		return pe
	}
	return &ProviderError{Err: err}
}
