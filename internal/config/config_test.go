package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func clearEnv(t *testing.T) {
	t.Helper()
	t.Setenv(EnvAPIBaseURL, "")
	t.Setenv(EnvOpenAIKey, "")
}

func writeConfig(t *testing.T, content string) (string, string) {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	return dir, path
}

func TestLoad(t *testing.T) {
	clearEnv(t)
	_, path := writeConfig(t, `
server:
  host: "127.0.0.1"
  port: 9000
source:
  base_url: "https://example.com/api/v1"
  timeout: 5s
search:
  max_top_k: 20
  hybrid_only: false
catalog:
  retry_initial_wait: 250ms
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Host != "127.0.0.1" || cfg.Server.Port != 9000 {
		t.Errorf("unexpected server config: %+v", cfg.Server)
	}
	if cfg.Source.BaseURL != "https://example.com/api/v1" {
		t.Errorf("base_url = %s", cfg.Source.BaseURL)
	}
	if cfg.Source.Timeout != 5*time.Second {
		t.Errorf("timeout = %v, want 5s", cfg.Source.Timeout)
	}
	if cfg.Search.MaxTopK != 20 || cfg.Search.DefaultTopK != 5 {
		t.Errorf("unexpected search config: %+v", cfg.Search)
	}
	if cfg.Search.HybridOnlyOrDefault() {
		t.Error("hybrid_only: false should be kept")
	}
	if cfg.Catalog.RetryInitialWait != 250*time.Millisecond || cfg.Catalog.RetryAttempts != 3 {
		t.Errorf("unexpected catalog config: %+v", cfg.Catalog)
	}
	if cfg.Debug {
		t.Error("debug should default to false when unset")
	}
}

func TestLoad_invalidYAML(t *testing.T) {
	clearEnv(t)
	_, path := writeConfig(t, "server: [unclosed")
	if _, err := Load(path); err == nil {
		t.Error("expected parse error")
	}
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected read error")
	}
}

func TestLoad_expandPathDotSlashRelativeToConfigDir(t *testing.T) {
	clearEnv(t)
	dir, path := writeConfig(t, `
source:
  base_url: "./mirror/api"
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	want := filepath.Join(dir, "mirror", "api")
	if cfg.Source.BaseURL != want {
		t.Errorf("base_url = %s, want %s", cfg.Source.BaseURL, want)
	}
}

func TestLoad_envOverrides(t *testing.T) {
	t.Setenv(EnvAPIBaseURL, "http://localhost:9999/api")
	t.Setenv(EnvOpenAIKey, "sk-env")
	_, path := writeConfig(t, `
source:
  base_url: "https://example.com/api/v1"
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Source.BaseURL != "http://localhost:9999/api" {
		t.Errorf("base_url = %s, want env override", cfg.Source.BaseURL)
	}
	if cfg.Provider.APIKey != "sk-env" {
		t.Errorf("api_key = %q, want env override", cfg.Provider.APIKey)
	}
}

func TestLoadDotEnv(t *testing.T) {
	clearEnv(t)
	os.Unsetenv(EnvOpenAIKey)
	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	if err := os.WriteFile(envFile, []byte("OPENAI_API_KEY=sk-dotenv\n"), 0600); err != nil {
		t.Fatal(err)
	}
	if err := LoadDotEnv(filepath.Join(dir, "absent.env"), envFile); err != nil {
		t.Fatal(err)
	}
	if got := os.Getenv(EnvOpenAIKey); got != "sk-dotenv" {
		t.Errorf("OPENAI_API_KEY = %q, want sk-dotenv", got)
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)
	if cfg.Server.Host != "localhost" {
		t.Errorf("default host: got %s", cfg.Server.Host)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("default port: got %d", cfg.Server.Port)
	}
	if cfg.Source.BaseURL != DefaultBaseURL {
		t.Errorf("default base_url: got %s", cfg.Source.BaseURL)
	}
	if cfg.Source.EmbeddingsPath != "embeddings.json" || cfg.Source.HybridLookupPath != "hybrid_lookup.json" {
		t.Errorf("default artifact paths: got %+v", cfg.Source)
	}
	if cfg.Provider.Model != "text-embedding-3-small" {
		t.Errorf("default model: got %s", cfg.Provider.Model)
	}
	if cfg.Search.DefaultTopK != 5 || cfg.Search.MaxTopK != 100 || cfg.Search.MaxSuggestions != 3 {
		t.Errorf("default search: got %+v", cfg.Search)
	}
	if !cfg.Search.HybridOnlyOrDefault() {
		t.Error("hybrid_only should default to true")
	}
	if cfg.Catalog.RetryAttempts != 3 || cfg.Catalog.RetryInitialWait != time.Second {
		t.Errorf("default catalog: got %+v", cfg.Catalog)
	}
}

func TestSearchConfig_HybridOnlyOrDefault(t *testing.T) {
	t.Run("nil_returns_true", func(t *testing.T) {
		s := &SearchConfig{}
		if got := s.HybridOnlyOrDefault(); !got {
			t.Errorf("HybridOnlyOrDefault() = %v, want true", got)
		}
	})
	t.Run("false_returns_false", func(t *testing.T) {
		f := false
		s := &SearchConfig{HybridOnly: &f}
		if got := s.HybridOnlyOrDefault(); got {
			t.Errorf("HybridOnlyOrDefault() = %v, want false", got)
		}
	})
}

func TestSave(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "saved.yaml")
	cfg := Default()
	cfg.Server.Port = 9090
	cfg.Source.Timeout = 10 * time.Second
	if err := Save(path, cfg); err != nil {
		t.Fatal(err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Server.Port != 9090 {
		t.Errorf("loaded port: got %d", loaded.Server.Port)
	}
	if loaded.Source.Timeout != 10*time.Second {
		t.Errorf("loaded timeout: got %v", loaded.Source.Timeout)
	}
}
