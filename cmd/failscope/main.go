// Package main is the failscope CLI entry point.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/hyperjump/failscope/internal/catalog"
	"github.com/hyperjump/failscope/internal/cli"
	"github.com/hyperjump/failscope/internal/config"
	"github.com/hyperjump/failscope/internal/embedding"
	"github.com/hyperjump/failscope/internal/keyword"
	"github.com/hyperjump/failscope/internal/models"
	"github.com/hyperjump/failscope/internal/search"
	"github.com/hyperjump/failscope/internal/server"
	"github.com/hyperjump/failscope/internal/source"
	"github.com/hyperjump/failscope/internal/store"
	"github.com/hyperjump/failscope/pkg/utils"
	"go.uber.org/zap"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/failscope/config.yaml"

// loadConfig loads config from path. When path is the default, config.yaml in the
// current directory wins if present. A missing default config is not an error: the
// built-in defaults (public API, hybrid-only search) are used instead.
// Returns the config and the path that was actually loaded ("" for defaults).
func loadConfig(path string) (*config.Config, string, error) {
	if err := config.LoadDotEnv(); err != nil {
		return nil, "", err
	}
	if path == defaultConfigPath {
		if cwd, cwdErr := os.Getwd(); cwdErr == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				cfg, loadErr := config.Load(fallback)
				if loadErr != nil {
					return nil, "", loadErr
				}
				return cfg, fallback, nil
			}
		}
		if _, statErr := os.Stat(path); errors.Is(statErr, os.ErrNotExist) {
			cfg := config.Default()
			config.ApplyEnv(cfg)
			return cfg, "", nil
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	command := os.Args[1]
	switch command {
	case "server":
		runServer()
	case "search":
		runSearch()
	case "incident":
		runIncident()
	case "incidents":
		runIncidents()
	case "terms":
		runTerms()
	case "status":
		runStatus()
	case "config":
		runConfig()
	case "version", "--version", "-v":
		fmt.Printf("failscope version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

// setup loads config and creates the logger and components shared by local commands.
func setup(configPath string, debugFlag bool) (*config.Config, *zap.Logger, *Components, string) {
	cfg, resolvedConfigPath, err := loadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger, err := utils.NewLogger(cfg.Debug || debugFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	components, err := initializeComponents(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	return cfg, logger, components, resolvedConfigPath
}

func runServer() {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	preload := fs.Bool("preload", false, "load all artifacts before accepting requests")
	_ = fs.Parse(os.Args[2:])

	cfg, logger, components, resolvedConfigPath := setup(*configPath, *debug)
	defer logger.Sync()

	logger.Info("config loaded",
		zap.String("config_path", resolvedConfigPath),
		zap.String("source", cfg.Source.BaseURL),
		zap.Bool("hybrid_only", cfg.Search.HybridOnlyOrDefault()),
	)

	if *preload {
		ctx, cancel := context.WithTimeout(context.Background(), 2*cfg.Source.Timeout)
		if err := components.Preload(ctx); err != nil {
			logger.Warn("preload failed; artifacts will load on first request", zap.Error(err))
		}
		cancel()
	}

	srv := server.NewServer(server.Deps{
		Engine:     components.Engine,
		Catalog:    components.Catalog,
		Embeddings: components.Embeddings,
		Terms:      components.Terms,
		Suggester:  components.Suggester,
		Source:     cfg.Source.BaseURL,
	}, &cfg.Server, logger)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Stop(ctx)
}

// printSearchUsage prints search subcommand usage.
func printSearchUsage(fs *flag.FlagSet) {
	fmt.Fprintf(fs.Output(), "Usage: failscope search [flags] <query>\n\n")
	fmt.Fprintf(fs.Output(), "Query is all remaining arguments joined by spaces. Multi-word queries work with or without quotes.\n\n")
	fs.PrintDefaults()
	fmt.Fprintf(fs.Output(), `
Queries are matched against precomputed term vectors first ("failscope terms" lists them).
  • Use --provider with an API key (or OPENAI_API_KEY) to embed free text that has no precomputed vector.
  • --category, --severity and --tags narrow the candidates before ranking; --tags requires every tag.

Examples:
  failscope search dns outage
  failscope search --top-k 10 --severity critical "cloud outage"
  failscope search --provider "knight capital trading glitch"
  failscope search --format json --include-incidents database migration
`)
}

// buildSearchQuery joins all positional args with spaces so multi-word queries
// work the same with or without shell quoting.
func buildSearchQuery(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

// searchArgsReorder moves any flags (and their values) that appear after the query
// to the front of the slice so that flag.Parse() sees them. Go's flag package
// stops at the first non-flag argument, so "failscope search dns --top-k 3"
// would otherwise leave --top-k unparsed.
func searchArgsReorder(args []string) []string {
	for i, a := range args {
		if len(a) > 0 && a[0] == '-' {
			if i == 0 {
				return args
			}
			reordered := make([]string, 0, len(args))
			reordered = append(reordered, args[i:]...)
			reordered = append(reordered, args[:i]...)
			return reordered
		}
	}
	return args
}

// searchConfigPathFromArgs returns the value of -config/--config from args if present, else defaultPath.
func searchConfigPathFromArgs(args []string, defaultPath string) string {
	for i, a := range args {
		if (a == "-config" || a == "--config") && i+1 < len(args) {
			return args[i+1]
		}
	}
	return defaultPath
}

// buildSearchRequest assembles the request from parsed flag values.
// The caller's key is only attached when the provider fallback is enabled.
func buildSearchRequest(query string, topK int, category, severity, tags string, useProvider bool, apiKey string, includeIncidents bool) *models.SearchRequest {
	req := &models.SearchRequest{
		Query:            query,
		TopK:             topK,
		IncludeIncidents: includeIncidents,
	}
	hybridOnly := !useProvider
	req.UseHybridOnly = &hybridOnly
	if useProvider {
		req.EmbeddingAPIKey = apiKey
	}
	filters := &models.SearchFilters{
		Category: strings.TrimSpace(category),
		Severity: strings.ToLower(strings.TrimSpace(severity)),
		Tags:     utils.SplitList(tags),
	}
	if !filters.IsEmpty() {
		req.Filters = filters
	}
	return req
}

func runSearch() {
	searchArgs := searchArgsReorder(os.Args[2:])
	defaults, _, err := loadConfig(searchConfigPathFromArgs(searchArgs, defaultConfigPath))
	if err != nil {
		defaults = config.Default()
	}

	fs := flag.NewFlagSet("search", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", "", "failscope server URL (empty = search in-process)")
	topK := fs.Int("top-k", defaults.Search.DefaultTopK, "number of results")
	category := fs.String("category", "", "only incidents in this category")
	severity := fs.String("severity", "", "only incidents with this severity level")
	tags := fs.String("tags", "", "comma-separated tags; results must carry all of them")
	useProvider := fs.Bool("provider", !defaults.Search.HybridOnlyOrDefault(), "embed queries without a precomputed vector via the embedding provider")
	apiKey := fs.String("api-key", defaults.Provider.APIKey, "embedding provider API key (default from OPENAI_API_KEY)")
	includeIncidents := fs.Bool("include-incidents", false, "attach the full incident to each result")
	outputFormat := fs.String("format", "text", "output format: text, compact or json")
	fs.Usage = func() { printSearchUsage(fs) }
	_ = fs.Parse(searchArgs)

	queryStr := buildSearchQuery(fs.Args())
	if queryStr == "" {
		printSearchUsage(fs)
		os.Exit(1)
	}
	format, err := cli.ParseOutputFormat(*outputFormat)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if format == cli.OutputText {
		*includeIncidents = true
	}
	req := buildSearchRequest(queryStr, *topK, *category, *severity, *tags, *useProvider, *apiKey, *includeIncidents)

	if *serverURL != "" {
		response, errResp, err := searchViaHTTP(*serverURL, req)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Search failed: %v\n", err)
			os.Exit(1)
		}
		if errResp != nil {
			if errResp.Code == server.CodeNoEmbedding {
				cli.WriteNoEmbedding(os.Stderr, queryStr, errResp.Suggestions)
			} else {
				fmt.Fprintf(os.Stderr, "Search failed: %s\n", errResp.Error)
			}
			os.Exit(1)
		}
		writeSearchOutput(response, format)
		return
	}

	_, logger, components, _ := setup(*configPath, false)
	defer logger.Sync()

	ctx := context.Background()
	response, err := components.Engine.Search(ctx, req)
	if err != nil {
		if errors.Is(err, search.ErrNoEmbeddingAvailable) {
			suggestions, _ := components.Suggester.SuggestTerms(ctx, queryStr)
			cli.WriteNoEmbedding(os.Stderr, queryStr, suggestions)
			os.Exit(1)
		}
		fmt.Fprintf(os.Stderr, "Search failed: %v\n", err)
		os.Exit(1)
	}
	writeSearchOutput(response, format)
}

func writeSearchOutput(response *models.SearchResponse, format cli.OutputFormat) {
	if err := cli.WriteSearchResults(os.Stdout, response, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

// searchViaHTTP posts req to a running server. A non-200 response with a JSON error
// body is returned as the second value.
func searchViaHTTP(serverURL string, req *models.SearchRequest) (*models.SearchResponse, *models.ErrorResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, nil, err
	}
	resp, err := http.Post(strings.TrimRight(serverURL, "/")+"/api/v1/search", "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		var errResp models.ErrorResponse
		if json.Unmarshal(b, &errResp) == nil && errResp.Error != "" {
			return nil, &errResp, nil
		}
		return nil, nil, fmt.Errorf("server returned %d: %s", resp.StatusCode, string(b))
	}
	var response models.SearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, nil, fmt.Errorf("decode response: %w", err)
	}
	return &response, nil, nil
}

func runIncident() {
	fs := flag.NewFlagSet("incident", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	outputFormat := fs.String("format", "text", "output format: text, compact or json")
	_ = fs.Parse(searchArgsReorder(os.Args[2:]))

	if fs.NArg() < 1 {
		fmt.Println("Usage: failscope incident [flags] <id>")
		os.Exit(1)
	}
	format, err := cli.ParseOutputFormat(*outputFormat)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	_, logger, components, _ := setup(*configPath, false)
	defer logger.Sync()

	inc, err := components.Catalog.Get(context.Background(), fs.Arg(0))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Lookup failed: %v\n", err)
		os.Exit(1)
	}
	if err := cli.WriteIncident(os.Stdout, inc, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func runIncidents() {
	fs := flag.NewFlagSet("incidents", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	category := fs.String("category", "", "only incidents in this category")
	severity := fs.String("severity", "", "only incidents with this severity level")
	year := fs.Int("year", 0, "only incidents from this year")
	tags := fs.String("tags", "", "comma-separated tags; incidents must carry all of them")
	query := fs.String("q", "", "free-text filter over title, summary and lessons")
	offset := fs.Int("offset", 0, "skip this many incidents")
	limit := fs.Int("limit", 20, "maximum incidents to list (0 = all)")
	outputFormat := fs.String("format", "text", "output format: text, compact or json")
	_ = fs.Parse(os.Args[2:])

	format, err := cli.ParseOutputFormat(*outputFormat)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	_, logger, components, _ := setup(*configPath, false)
	defer logger.Sync()

	list, err := components.Catalog.List(context.Background(), catalog.ListOptions{
		Category: *category,
		Severity: strings.ToLower(*severity),
		Year:     *year,
		Tags:     utils.SplitList(*tags),
		Query:    *query,
		Offset:   *offset,
		Limit:    *limit,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "List failed: %v\n", err)
		os.Exit(1)
	}
	if err := cli.WriteIncidentList(os.Stdout, list, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func runTerms() {
	fs := flag.NewFlagSet("terms", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	like := fs.String("like", "", "only show terms close to this text")
	_ = fs.Parse(os.Args[2:])

	_, logger, components, _ := setup(*configPath, false)
	defer logger.Sync()

	ctx := context.Background()
	var (
		terms []string
		err   error
	)
	if strings.TrimSpace(*like) != "" {
		terms, err = keyword.NewSuggester(components.Terms, keyword.WithMaxSuggestions(20)).SuggestTerms(ctx, *like)
	} else {
		terms, err = components.Terms.Terms(ctx)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Terms failed: %v\n", err)
		os.Exit(1)
	}
	for _, t := range terms {
		fmt.Println(t)
	}
}

// statusResponse is the shape of GET /api/v1/status.
type statusResponse struct {
	Source     string `json:"source"`
	Embeddings *struct {
		Loaded     bool `json:"loaded"`
		Records    int  `json:"records"`
		Dimensions int  `json:"dimensions"`
	} `json:"embeddings,omitempty"`
	HybridLookup *struct {
		Loaded bool `json:"loaded"`
		Terms  int  `json:"terms"`
	} `json:"hybrid_lookup,omitempty"`
	Catalog *struct {
		Loaded    bool `json:"loaded"`
		Incidents int  `json:"incidents"`
	} `json:"catalog,omitempty"`
}

func runStatus() {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	serverURL := fs.String("server", "http://localhost:8080", "server URL")
	outputFormat := fs.String("format", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	status, err := statusViaHTTP(*serverURL)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Status failed: %v\n", err)
		os.Exit(1)
	}
	switch *outputFormat {
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(status); err != nil {
			fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
			os.Exit(1)
		}
	case "text":
		writeStatusText(os.Stdout, status)
	default:
		fmt.Fprintf(os.Stderr, "Unknown output format %q; use text or json\n", *outputFormat)
		os.Exit(1)
	}
}

func writeStatusText(w io.Writer, status *statusResponse) {
	fmt.Fprintf(w, "source:             %s\n", status.Source)
	if e := status.Embeddings; e != nil {
		fmt.Fprintf(w, "embeddings:         %d   # loaded=%t dims=%d\n", e.Records, e.Loaded, e.Dimensions)
	}
	if h := status.HybridLookup; h != nil {
		fmt.Fprintf(w, "hybrid_terms:       %d   # loaded=%t\n", h.Terms, h.Loaded)
	}
	if c := status.Catalog; c != nil {
		fmt.Fprintf(w, "incidents:          %d   # loaded=%t\n", c.Incidents, c.Loaded)
	}
}

func statusViaHTTP(serverURL string) (*statusResponse, error) {
	resp, err := http.Get(strings.TrimRight(serverURL, "/") + "/api/v1/status")
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("server returned %d: %s", resp.StatusCode, string(b))
	}
	var s statusResponse
	if err := json.NewDecoder(resp.Body).Decode(&s); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &s, nil
}

func runConfig() {
	if len(os.Args) < 3 || os.Args[2] != "init" {
		fmt.Println("Usage: failscope config init [--path file] [--force]")
		os.Exit(1)
	}
	fs := flag.NewFlagSet("config init", flag.ExitOnError)
	path := fs.String("path", "config.yaml", "where to write the config")
	force := fs.Bool("force", false, "overwrite an existing file")
	_ = fs.Parse(os.Args[3:])

	if _, err := os.Stat(*path); err == nil && !*force {
		fmt.Fprintf(os.Stderr, "%s already exists (use --force to overwrite)\n", *path)
		os.Exit(1)
	}
	if err := config.Save(*path, config.Default()); err != nil {
		fmt.Fprintf(os.Stderr, "Write failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Wrote %s\n", *path)
}

// Components holds initialized services.
type Components struct {
	Fetcher    source.Fetcher
	Embeddings *store.EmbeddingStore
	Terms      *store.HybridLookup
	Catalog    *catalog.Catalog
	Providers  embedding.ProviderFactory
	Engine     *search.Engine
	Suggester  *keyword.Suggester
}

// Preload loads every artifact so the first request does not pay for it.
func (c *Components) Preload(ctx context.Context) error {
	if _, err := c.Embeddings.Load(ctx); err != nil {
		return err
	}
	if _, err := c.Terms.Load(ctx); err != nil {
		return err
	}
	return c.Catalog.Load(ctx)
}

func initializeComponents(cfg *config.Config, logger *zap.Logger) (*Components, error) {
	fetcher, err := source.NewFetcher(cfg.Source.BaseURL, cfg.Source.Timeout)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize source: %w", err)
	}
	if u, perr := url.Parse(cfg.Provider.BaseURL); perr != nil || u.Scheme == "" {
		return nil, fmt.Errorf("invalid provider base_url %q", cfg.Provider.BaseURL)
	}

	embeddings := store.NewEmbeddingStore(fetcher, cfg.Source.EmbeddingsPath, logger)
	terms := store.NewHybridLookup(fetcher, cfg.Source.HybridLookupPath, logger)
	cat := catalog.New(fetcher, catalog.Options{
		Paths: catalog.Paths{
			Failures: cfg.Source.FailuresPath,
			Patterns: cfg.Source.PatternsPath,
			Tags:     cfg.Source.TagsPath,
		},
		Retry: catalog.RetryOpts{
			MaxAttempts: cfg.Catalog.RetryAttempts,
			InitialWait: cfg.Catalog.RetryInitialWait,
		},
		Logger: logger,
	})

	providers := embedding.NewOpenAIFactory(embedding.OpenAIConfig{
		BaseURL:    cfg.Provider.BaseURL,
		Model:      cfg.Provider.Model,
		RateLimit:  cfg.Provider.RateLimit,
		Burst:      cfg.Provider.Burst,
		CacheSize:  cfg.Provider.CacheSize,
		HTTPClient: source.NewHTTPClient(cfg.Source.Timeout),
	}, logger)

	resolver := search.NewResolver(terms, providers, logger)
	ranker := search.NewRanker(embeddings, logger)
	engine := search.NewEngine(resolver, ranker, cat, search.Options{
		MaxTopK:           cfg.Search.MaxTopK,
		DefaultHybridOnly: cfg.Search.HybridOnlyOrDefault(),
	}, logger)

	logger.Debug("components initialized",
		zap.String("source", fetcher.Location()),
		zap.String("provider_model", providers.Model()),
		zap.Int("max_top_k", cfg.Search.MaxTopK),
	)

	return &Components{
		Fetcher:    fetcher,
		Embeddings: embeddings,
		Terms:      terms,
		Catalog:    cat,
		Providers:  providers,
		Engine:     engine,
		Suggester:  keyword.NewSuggester(terms, keyword.WithMaxSuggestions(cfg.Search.MaxSuggestions)),
	}, nil
}

func printUsage() {
	fmt.Println(`failscope - Semantic similarity search over documented technology failures

Usage:
  failscope server [flags]             Start the HTTP API
  failscope search [flags] <query>     Find incidents similar to a query
  failscope incident [flags] <id>      Show one incident
  failscope incidents [flags]          List and filter incidents
  failscope terms [--like text]        List queries with precomputed vectors
  failscope status [flags]             Show a running server's cache status
  failscope config init [flags]        Write a config file with defaults
  failscope version                    Show version
  failscope help                       Show this help

Server Flags:
  --config string    Config file path (default: /usr/local/etc/failscope/config.yaml, or ./config.yaml)
  --debug            Enable debug logging
  --preload          Load all artifacts at startup

Search Flags:
  --top-k int            Number of results (default from config, or 5)
  --category string      Only this category
  --severity string      Only this severity level
  --tags string          Comma-separated tags, all required
  --provider             Embed free text via the provider when no precomputed vector exists
  --api-key string       Provider API key (default: OPENAI_API_KEY)
  --include-incidents    Attach full incidents (always on for text output)
  --format string        text, compact or json (default: text)
  --server string        Query a running failscope server instead of searching in-process

Environment:
  FAILSCOPE_API_BASE_URL   Artifact base URL or local directory
  OPENAI_API_KEY           Default provider key for the CLI

Examples:
  failscope server --preload
  failscope search dns outage
  failscope search --severity critical --top-k 3 "cloud outage"
  failscope search --format json "knight capital"
  failscope incidents --category security --year 2021
  failscope incident knight-capital-2012
  failscope terms --like "databse"`)
}
