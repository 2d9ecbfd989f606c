package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/hyperjump/failscope/internal/config"
	"github.com/hyperjump/failscope/internal/models"
	"github.com/hyperjump/failscope/internal/search"
	"go.uber.org/zap"
)

func TestSearchArgsReorder(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		expected []string
	}{
		{
			name:     "flags after query are moved first",
			args:     []string{"dns outage", "--top-k", "3"},
			expected: []string{"--top-k", "3", "dns outage"},
		},
		{
			name:     "flags first returns unchanged",
			args:     []string{"--top-k", "3", "dns outage"},
			expected: []string{"--top-k", "3", "dns outage"},
		},
		{
			name:     "query only returns unchanged",
			args:     []string{"dns outage"},
			expected: []string{"dns outage"},
		},
		{
			name:     "empty args returns unchanged",
			args:     []string{},
			expected: []string{},
		},
		{
			name:     "multiple positionals then flags",
			args:     []string{"cloud", "outage", "-severity", "critical"},
			expected: []string{"-severity", "critical", "cloud", "outage"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := searchArgsReorder(tt.args)
			if !reflect.DeepEqual(got, tt.expected) {
				t.Errorf("searchArgsReorder() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestBuildSearchQuery(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		expected string
	}{
		{"single word", []string{"ransomware"}, "ransomware"},
		{"multiple words", []string{"dns", "outage"}, "dns outage"},
		{"single quoted phrase", []string{"dns outage"}, "dns outage"},
		{"empty args", []string{}, ""},
		{"blank args", []string{"  ", "  "}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := buildSearchQuery(tt.args)
			if got != tt.expected {
				t.Errorf("buildSearchQuery(%v) = %q, want %q", tt.args, got, tt.expected)
			}
		})
	}
}

func TestSearchConfigPathFromArgs(t *testing.T) {
	tests := []struct {
		name        string
		args        []string
		defaultPath string
		want        string
	}{
		{"no config flag", []string{"-top-k", "5", "query"}, "/default.yaml", "/default.yaml"},
		{"-config present", []string{"-config", "/custom.yaml", "query"}, "/default.yaml", "/custom.yaml"},
		{"--config present", []string{"--config", "/other.yaml"}, "/default.yaml", "/other.yaml"},
		{"config at end", []string{"query", "-config", "/end.yaml"}, "/default.yaml", "/end.yaml"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := searchConfigPathFromArgs(tt.args, tt.defaultPath)
			if got != tt.want {
				t.Errorf("searchConfigPathFromArgs() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestBuildSearchRequest(t *testing.T) {
	req := buildSearchRequest("dns outage", 3, "outage", " HIGH ", "dns, cloud", false, "sk-test", true)
	if req.Query != "dns outage" || req.TopK != 3 || !req.IncludeIncidents {
		t.Errorf("request: %+v", req)
	}
	if !req.HybridOnly() {
		t.Error("provider disabled should request hybrid-only")
	}
	if req.EmbeddingAPIKey != "" {
		t.Error("key must not be sent when the provider fallback is off")
	}
	want := &models.SearchFilters{Category: "outage", Severity: "high", Tags: []string{"dns", "cloud"}}
	if !reflect.DeepEqual(req.Filters, want) {
		t.Errorf("filters = %+v, want %+v", req.Filters, want)
	}

	req = buildSearchRequest("free text", 0, "", "", "", true, "sk-test", false)
	if req.HybridOnly() || req.EmbeddingAPIKey != "sk-test" {
		t.Errorf("provider request: hybrid=%v key=%q", req.HybridOnly(), req.EmbeddingAPIKey)
	}
	if req.Filters != nil {
		t.Errorf("empty filters should be omitted, got %+v", req.Filters)
	}
}

func TestLoadConfig_prefersCwdConfigWhenDefaultPath(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	content := `
debug: true
server:
  host: "localhost"
  port: 8080
source:
  base_url: "./data"
`
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	testChdir(t, dir)

	cfg, resolved, err := loadConfig(defaultConfigPath)
	if err != nil {
		t.Fatal(err)
	}
	// On macOS, cwd can be /private/var/... while t.TempDir() is /var/...; compare canonical paths.
	resolvedCanon, _ := filepath.EvalSymlinks(resolved)
	configPathCanon, _ := filepath.EvalSymlinks(configPath)
	if resolvedCanon != configPathCanon {
		t.Errorf("resolved path = %s, want %s", resolvedCanon, configPathCanon)
	}
	if !cfg.Debug {
		t.Error("debug should be true from cwd config.yaml")
	}
	if !strings.HasSuffix(cfg.Source.BaseURL, filepath.Join(filepath.Base(dir), "data")) {
		t.Errorf("base_url should be expanded relative to the config: %s", cfg.Source.BaseURL)
	}
}

func TestLoadConfig_usesExplicitPath(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	content := `
server:
  host: "127.0.0.1"
  port: 9000
`
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, resolved, err := loadConfig(configPath)
	if err != nil {
		t.Fatal(err)
	}
	if resolved != configPath {
		t.Errorf("resolved path = %s, want %s", resolved, configPath)
	}
	if cfg.Server.Host != "127.0.0.1" || cfg.Server.Port != 9000 {
		t.Errorf("unexpected server config: %+v", cfg.Server)
	}
}

func TestLoadConfig_missingDefaultUsesBuiltins(t *testing.T) {
	if _, err := os.Stat(defaultConfigPath); err == nil {
		t.Skip("system config present")
	}
	testChdir(t, t.TempDir())
	t.Setenv(config.EnvAPIBaseURL, "")
	t.Setenv(config.EnvOpenAIKey, "sk-env")

	cfg, resolved, err := loadConfig(defaultConfigPath)
	if err != nil {
		t.Fatal(err)
	}
	if resolved != "" {
		t.Errorf("resolved = %q, want empty for built-in defaults", resolved)
	}
	if cfg.Source.BaseURL != config.DefaultBaseURL || !cfg.Search.HybridOnlyOrDefault() {
		t.Errorf("defaults not applied: %+v", cfg.Source)
	}
	if cfg.Provider.APIKey != "sk-env" {
		t.Errorf("api key from env = %q", cfg.Provider.APIKey)
	}
}

func writeArtifacts(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	files := map[string]string{
		"embeddings.json": `[
  {"id":"A","vector":[1,0,0],"category":"outage","severity":"high","tags":["dns"]},
  {"id":"B","vector":[0,1,0],"category":"security","severity":"low","tags":[]},
  {"id":"C","vector":[0.7,0.7,0],"category":"outage","severity":"critical","tags":["dns","cloud"]}
]`,
		"hybrid_lookup.json": `{"terms":{"dns outage":{"vector":[1,0,0]},"ransomware":{"vector":[0,1,0]}}}`,
		"failures.json": `[
  {"id":"A","title":"Dyn — DNS outage","year":2016,"category":"outage","severity":"high","summary":"Botnet DDoS on DNS.","tags":["dns"]},
  {"id":"C","title":"AWS — S3 outage","year":2017,"category":"outage","severity":"critical","summary":"Typo in a command.","tags":["dns","cloud"]}
]`,
		"patterns.json": `[]`,
		"tags.json":     `{"version":"1","free_tags":[]}`,
	}
	for name, body := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

func TestInitializeComponents_SearchesLocalMirror(t *testing.T) {
	cfg := config.Default()
	cfg.Source.BaseURL = writeArtifacts(t)
	cfg.Source.Timeout = time.Second

	components, err := initializeComponents(cfg, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	resp, err := components.Engine.Search(ctx, &models.SearchRequest{Query: "  DNS Outage ", TopK: 2, IncludeIncidents: true})
	if err != nil {
		t.Fatal(err)
	}
	if len(resp.Results) != 2 || resp.Results[0].ID != "A" || resp.Results[1].ID != "C" {
		t.Fatalf("results: %+v", resp.Results)
	}
	if resp.Results[1].Incident == nil || resp.Results[1].Incident.Severity.Level != "critical" {
		t.Errorf("hydration: %+v", resp.Results[1].Incident)
	}

	_, err = components.Engine.Search(ctx, &models.SearchRequest{Query: "dns outgae"})
	if !errors.Is(err, search.ErrNoEmbeddingAvailable) {
		t.Fatalf("unknown term: got %v", err)
	}
	suggestions, err := components.Suggester.SuggestTerms(ctx, "dns outgae")
	if err != nil || len(suggestions) == 0 || suggestions[0] != "dns outage" {
		t.Errorf("suggestions = %v, %v", suggestions, err)
	}

	if err := components.Preload(ctx); err != nil {
		t.Fatal(err)
	}
	if !components.Catalog.Loaded() || components.Embeddings.Size() != 3 || components.Terms.Size() != 2 {
		t.Error("preload should populate every cache")
	}
}

func TestInitializeComponents_RejectsBadProviderURL(t *testing.T) {
	cfg := config.Default()
	cfg.Source.BaseURL = t.TempDir()
	cfg.Provider.BaseURL = "not a url"
	if _, err := initializeComponents(cfg, zap.NewNop()); err == nil {
		t.Fatal("expected error for invalid provider base_url")
	}
}

func TestSearchViaHTTP(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req models.SearchRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		w.Header().Set("Content-Type", "application/json")
		if req.Query == "unknown" {
			w.WriteHeader(http.StatusUnprocessableEntity)
			_ = json.NewEncoder(w).Encode(models.ErrorResponse{Error: "no embedding", Code: "no_embedding_available", Suggestions: []string{"dns outage"}})
			return
		}
		_ = json.NewEncoder(w).Encode(models.SearchResponse{Query: req.Query, VectorSource: "hybrid", Total: 0, Results: []*models.SimilarityResult{}})
	}))
	defer ts.Close()

	resp, errResp, err := searchViaHTTP(ts.URL+"/", &models.SearchRequest{Query: "dns outage"})
	if err != nil || errResp != nil {
		t.Fatalf("searchViaHTTP: %v %+v", err, errResp)
	}
	if resp.Query != "dns outage" || resp.VectorSource != "hybrid" {
		t.Errorf("response: %+v", resp)
	}

	resp, errResp, err = searchViaHTTP(ts.URL, &models.SearchRequest{Query: "unknown"})
	if err != nil || resp != nil {
		t.Fatalf("expected error body, got %v %+v", err, resp)
	}
	if errResp.Code != "no_embedding_available" || len(errResp.Suggestions) != 1 {
		t.Errorf("error response: %+v", errResp)
	}
}

func TestStatusViaHTTP(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/status" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(`{"source":"/data","embeddings":{"loaded":true,"records":3,"dimensions":1536},"catalog":{"loaded":false,"incidents":0}}`))
	}))
	defer ts.Close()

	status, err := statusViaHTTP(ts.URL)
	if err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	writeStatusText(&buf, status)
	out := buf.String()
	for _, want := range []string{"source:             /data", "embeddings:         3   # loaded=true dims=1536", "incidents:          0   # loaded=false"} {
		if !strings.Contains(out, want) {
			t.Errorf("status output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "hybrid_terms") {
		t.Error("absent sections should not be printed")
	}
}

// testChdir changes the working directory for the duration of the test and
// restores it on cleanup (equivalent of testing.T.Chdir, added in Go 1.24).
func testChdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		if err := os.Chdir(prev); err != nil {
			t.Fatalf("restore working directory: %v", err)
		}
	})
}
