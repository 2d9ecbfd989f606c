package config

import "time"

// DefaultBaseURL is the public API that publishes the incident artifacts.
const DefaultBaseURL = "https://rnzor.github.io/awesome-tech-failures/api/v1"

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Source.BaseURL == "" {
		cfg.Source.BaseURL = DefaultBaseURL
	}
	if cfg.Source.EmbeddingsPath == "" {
		cfg.Source.EmbeddingsPath = "embeddings.json"
	}
	if cfg.Source.HybridLookupPath == "" {
		cfg.Source.HybridLookupPath = "hybrid_lookup.json"
	}
	if cfg.Source.FailuresPath == "" {
		cfg.Source.FailuresPath = "failures.json"
	}
	if cfg.Source.PatternsPath == "" {
		cfg.Source.PatternsPath = "patterns.json"
	}
	if cfg.Source.TagsPath == "" {
		cfg.Source.TagsPath = "tags.json"
	}
	if cfg.Source.Timeout == 0 {
		cfg.Source.Timeout = 30 * time.Second
	}
	if cfg.Provider.BaseURL == "" {
		cfg.Provider.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.Provider.Model == "" {
		cfg.Provider.Model = "text-embedding-3-small"
	}
	if cfg.Provider.RateLimit == 0 {
		cfg.Provider.RateLimit = 5
	}
	if cfg.Provider.Burst == 0 {
		cfg.Provider.Burst = 5
	}
	if cfg.Provider.CacheSize == 0 {
		cfg.Provider.CacheSize = 1000
	}
	if cfg.Search.DefaultTopK == 0 {
		cfg.Search.DefaultTopK = 5
	}
	if cfg.Search.MaxTopK == 0 {
		cfg.Search.MaxTopK = 100
	}
	// HybridOnly defaults to true when unset (nil).
	if cfg.Search.HybridOnly == nil {
		t := true
		cfg.Search.HybridOnly = &t
	}
	if cfg.Search.MaxSuggestions == 0 {
		cfg.Search.MaxSuggestions = 3
	}
	if cfg.Catalog.RetryAttempts == 0 {
		cfg.Catalog.RetryAttempts = 3
	}
	if cfg.Catalog.RetryInitialWait == 0 {
		cfg.Catalog.RetryInitialWait = time.Second
	}
}
