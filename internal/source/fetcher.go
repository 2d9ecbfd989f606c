// Package source fetches the static JSON artifacts (embeddings, hybrid lookup,
// incidents) from an HTTP base URL or a local directory mirror.
package source

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// maxArtifactBytes bounds a single artifact read.
const maxArtifactBytes = 256 << 20

// Fetcher retrieves a named artifact relative to a base location.
type Fetcher interface {
	Fetch(ctx context.Context, name string) ([]byte, error)
	// Location returns the base the fetcher reads from (URL or directory).
	Location() string
}

// NewHTTPClient returns an instrumented HTTP client with the given timeout (0 = none).
func NewHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Transport: otelhttp.NewTransport(http.DefaultTransport),
		Timeout:   timeout,
	}
}

// NewFetcher returns an HTTPFetcher for http(s) bases and a DirFetcher otherwise.
// A file:// URL is treated as a directory path.
func NewFetcher(base string, timeout time.Duration) (Fetcher, error) {
	if base == "" {
		return nil, fmt.Errorf("source base is empty")
	}
	if strings.HasPrefix(base, "http://") || strings.HasPrefix(base, "https://") {
		if _, err := url.Parse(base); err != nil {
			return nil, fmt.Errorf("invalid source url %q: %w", base, err)
		}
		return NewHTTPFetcher(base, NewHTTPClient(timeout)), nil
	}
	if strings.HasPrefix(base, "file://") {
		base = strings.TrimPrefix(base, "file://")
	}
	return NewDirFetcher(base), nil
}

// HTTPFetcher GETs artifacts from baseURL/<name>.
type HTTPFetcher struct {
	baseURL string
	client  *http.Client
}

// NewHTTPFetcher creates a fetcher for baseURL. A nil client uses NewHTTPClient(0).
func NewHTTPFetcher(baseURL string, client *http.Client) *HTTPFetcher {
	if client == nil {
		client = NewHTTPClient(0)
	}
	return &HTTPFetcher{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  client,
	}
}

// Location returns the base URL.
func (f *HTTPFetcher) Location() string {
	return f.baseURL
}

// Fetch GETs the artifact. Any transport error or non-2xx status is a *LoadError.
func (f *HTTPFetcher) Fetch(ctx context.Context, name string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.baseURL+"/"+strings.TrimLeft(name, "/"), nil)
	if err != nil {
		return nil, &LoadError{Artifact: name, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, &LoadError{Artifact: name, Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, &LoadError{Artifact: name, StatusCode: resp.StatusCode}
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxArtifactBytes))
	if err != nil {
		return nil, &LoadError{Artifact: name, Err: fmt.Errorf("read body: %w", err)}
	}
	return data, nil
}

// DirFetcher reads artifacts from a local directory, e.g. a checked-out copy of the published API.
type DirFetcher struct {
	root string
}

// NewDirFetcher creates a fetcher rooted at dir.
func NewDirFetcher(dir string) *DirFetcher {
	return &DirFetcher{root: dir}
}

// Location returns the root directory.
func (f *DirFetcher) Location() string {
	return f.root
}

// Fetch reads root/<name>. A missing or unreadable file is a *LoadError.
func (f *DirFetcher) Fetch(ctx context.Context, name string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, &LoadError{Artifact: name, Err: err}
	}
	data, err := os.ReadFile(filepath.Join(f.root, filepath.FromSlash(name)))
	if err != nil {
		return nil, &LoadError{Artifact: name, Err: err}
	}
	return data, nil
}

// FetchJSON fetches name and decodes it into v. Decode failures are reported as *LoadError.
func FetchJSON(ctx context.Context, f Fetcher, name string, v any) error {
	data, err := f.Fetch(ctx, name)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return &LoadError{Artifact: name, Err: fmt.Errorf("decode: %w", err)}
	}
	return nil
}
