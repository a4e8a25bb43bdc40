// Package refspec loads header specification documents.
// This file implements the Loader, which retrieves documents from HTTP(S)
// URLs or local files and caches parsed documents per source.
package refspec

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"hdrscan/pkg/checks"
	"hdrscan/pkg/utils"
)

// maxDocumentBytes bounds the size of a downloaded specification document
const maxDocumentBytes = 4 << 20

// ErrSpecFetch matches every error returned by the Loader
var ErrSpecFetch = errors.New("header specification unavailable")

// SpecFetchError reports a specification source that could not be loaded
type SpecFetchError struct {
	Source string
	Err    error
}

// Error implements the error interface
func (e *SpecFetchError) Error() string {
	return fmt.Sprintf("failed to load header specification '%s': %v", e.Source, e.Err)
}

// Unwrap returns the underlying error
func (e *SpecFetchError) Unwrap() error {
	return e.Err
}

// Is lets errors.Is(err, ErrSpecFetch) match any SpecFetchError
func (e *SpecFetchError) Is(target error) bool {
	return target == ErrSpecFetch
}

// Loader retrieves and caches header specification documents. It is safe for
// concurrent use.
type Loader struct {
	client    *http.Client
	userAgent string
	cache     *lru.Cache[string, *Document]
}

// LoaderOptions configures NewLoader
type LoaderOptions struct {
	Client    *http.Client
	UserAgent string
	CacheSize int
}

// NewLoader creates a Loader. A nil client gets a default one.
func NewLoader(opts LoaderOptions) (*Loader, error) {
	client := opts.Client
	if client == nil {
		client = utils.NewHTTPClient(utils.ClientOptions{})
	}
	userAgent := opts.UserAgent
	if userAgent == "" {
		userAgent = utils.DefaultUserAgent
	}
	size := opts.CacheSize
	if size <= 0 {
		size = 16
	}

	cache, err := lru.New[string, *Document](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create document cache: %w", err)
	}

	return &Loader{client: client, userAgent: userAgent, cache: cache}, nil
}

// LoadRecommended loads the document at source as a valued reference.
func (l *Loader) LoadRecommended(ctx context.Context, source string) (checks.Reference, error) {
	doc, err := l.Load(ctx, source)
	if err != nil {
		return checks.Reference{}, err
	}
	return doc.Valued(), nil
}

// LoadDisclosure loads the document at source as a presence reference.
func (l *Loader) LoadDisclosure(ctx context.Context, source string) (checks.Reference, error) {
	doc, err := l.Load(ctx, source)
	if err != nil {
		return checks.Reference{}, err
	}
	return doc.Presence(), nil
}

// LoadFor loads the reference a policy of the given kind needs.
func (l *Loader) LoadFor(ctx context.Context, kind checks.Kind, source string) (checks.Reference, error) {
	switch kind {
	case checks.KindValued:
		return l.LoadRecommended(ctx, source)
	case checks.KindPresence:
		return l.LoadDisclosure(ctx, source)
	}
	return checks.Reference{}, &SpecFetchError{Source: source, Err: checks.ErrInvalidSpecShape}
}

// Load returns the parsed document at source, using the cache when possible.
// The returned document is shared and must not be modified.
func (l *Loader) Load(ctx context.Context, source string) (*Document, error) {
	source = strings.TrimSpace(source)
	if source == "" {
		return nil, &SpecFetchError{Source: source, Err: errors.New("empty source")}
	}

	if doc, ok := l.cache.Get(source); ok {
		slog.Debug("Header specification served from cache", "source", source)
		return doc, nil
	}

	start := time.Now()
	data, format, err := l.read(ctx, source)
	if err != nil {
		return nil, &SpecFetchError{Source: source, Err: err}
	}

	doc, err := Parse(data, format)
	if err != nil {
		return nil, &SpecFetchError{Source: source, Err: err}
	}

	if dups := doc.Duplicates(); len(dups) > 0 {
		slog.Warn("Header specification lists headers more than once, keeping the first entry",
			"source", source,
			"headers", dups)
	}

	l.cache.Add(source, doc)
	slog.Info("Loaded header specification",
		"source", source,
		"headers", len(doc.Headers),
		"duration", time.Since(start))
	return doc, nil
}

func (l *Loader) read(ctx context.Context, source string) ([]byte, Format, error) {
	parsed, err := url.Parse(source)
	if err == nil {
		switch parsed.Scheme {
		case "http", "https":
			return l.download(ctx, source)
		case "file":
			return readFile(parsed.Path)
		}
	}
	return readFile(source)
}

func (l *Loader) download(ctx context.Context, source string) ([]byte, Format, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, source, nil)
	if err != nil {
		return nil, FormatAuto, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("User-Agent", l.userAgent)
	req.Header.Set("Accept", "application/json, application/yaml;q=0.9, application/xml;q=0.8, */*;q=0.5")

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, FormatAuto, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, FormatAuto, fmt.Errorf("unexpected HTTP status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxDocumentBytes))
	if err != nil {
		return nil, FormatAuto, fmt.Errorf("failed to read response body: %w", err)
	}

	format := FormatFromContentType(resp.Header.Get("Content-Type"))
	if format == FormatAuto {
		format = FormatFromPath(req.URL.Path)
	}
	return data, format, nil
}

func readFile(path string) ([]byte, Format, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, FormatAuto, fmt.Errorf("failed to read file: %w", err)
	}
	return data, FormatFromPath(path), nil
}
