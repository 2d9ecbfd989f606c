// Package config provides configuration loading and structs for the failscope server and CLI.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Environment variables that override the config file.
const (
	EnvAPIBaseURL = "FAILSCOPE_API_BASE_URL"
	EnvOpenAIKey  = "OPENAI_API_KEY"
)

// Config holds all configuration for the application.
type Config struct {
	Debug    bool           `yaml:"debug"`
	Server   ServerConfig   `yaml:"server"`
	Source   SourceConfig   `yaml:"source"`
	Provider ProviderConfig `yaml:"provider"`
	Search   SearchConfig   `yaml:"search"`
	Catalog  CatalogConfig  `yaml:"catalog"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
	// CORSOrigin, when set, is sent as Access-Control-Allow-Origin.
	CORSOrigin string `yaml:"cors_origin"`
}

// SourceConfig locates the published artifacts. BaseURL is an http(s) URL or a
// local directory holding a mirror.
type SourceConfig struct {
	BaseURL          string        `yaml:"base_url"`
	EmbeddingsPath   string        `yaml:"embeddings_path"`
	HybridLookupPath string        `yaml:"hybrid_lookup_path"`
	FailuresPath     string        `yaml:"failures_path"`
	PatternsPath     string        `yaml:"patterns_path"`
	TagsPath         string        `yaml:"tags_path"`
	Timeout          time.Duration `yaml:"timeout"`
}

// ProviderConfig holds embedding provider settings.
type ProviderConfig struct {
	BaseURL string `yaml:"base_url"`
	Model   string `yaml:"model"`
	// APIKey is only the CLI's default caller key; the server never uses it.
	APIKey    string  `yaml:"api_key,omitempty"`
	RateLimit float64 `yaml:"rate_limit"`
	Burst     int     `yaml:"burst"`
	CacheSize int     `yaml:"cache_size"`
}

// SearchConfig holds search defaults.
type SearchConfig struct {
	DefaultTopK    int   `yaml:"default_top_k"`
	MaxTopK        int   `yaml:"max_top_k"`
	HybridOnly     *bool `yaml:"hybrid_only"`
	MaxSuggestions int   `yaml:"max_suggestions"`
}

// HybridOnlyOrDefault returns whether requests default to hybrid-only; true when unset.
func (s *SearchConfig) HybridOnlyOrDefault() bool {
	if s.HybridOnly != nil {
		return *s.HybridOnly
	}
	return true
}

// CatalogConfig holds catalog fetch settings.
type CatalogConfig struct {
	RetryAttempts    int           `yaml:"retry_attempts"`
	RetryInitialWait time.Duration `yaml:"retry_initial_wait"`
}

// Default returns a config with every default applied.
func Default() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}

// Load reads and parses the config file at path, applies environment overrides,
// expands paths, and applies defaults.
// Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	ApplyEnv(&cfg)
	ApplyDefaults(&cfg)

	if !isRemote(cfg.Source.BaseURL) {
		cfg.Source.BaseURL = expandPath(cfg.Source.BaseURL, filepath.Dir(path))
	}
	return &cfg, nil
}

// LoadDotEnv loads variables from the given .env files (".env" when none) into the
// process environment. Missing files are ignored; existing variables win.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to load %s: %w", f, err)
		}
	}
	return nil
}

// ApplyEnv overrides config values from the environment.
func ApplyEnv(cfg *Config) {
	if v := strings.TrimSpace(os.Getenv(EnvAPIBaseURL)); v != "" {
		cfg.Source.BaseURL = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvOpenAIKey)); v != "" {
		cfg.Provider.APIKey = v
	}
}

// Save writes the config to path. Used by "config init".
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create config dir: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

func isRemote(base string) bool {
	return strings.HasPrefix(base, "http://") || strings.HasPrefix(base, "https://")
}

// expandPath converts a local path to absolute. Paths starting with "./" are relative
// to configDir; "~/" is relative to the home directory. file:// URLs and other
// paths are returned unchanged.
func expandPath(path string, configDir string) string {
	if path == "" || filepath.IsAbs(path) || strings.HasPrefix(path, "file://") {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}
