// Package fetch retrieves the response headers of a scan target.
// Only the response header block is consumed; the body is read solely when
// <meta http-equiv> merging is enabled and the response is HTML.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"hdrscan/pkg/checks"
	"hdrscan/pkg/credentials"
	"hdrscan/pkg/extractors"
	"hdrscan/pkg/utils"
)

// DefaultMaxBodyBytes bounds how much HTML is parsed for meta declarations
const DefaultMaxBodyBytes = 1 << 20

var (
	// ErrTargetUnreachable matches every TargetUnreachableError
	ErrTargetUnreachable = errors.New("target unreachable")

	// ErrTargetHTTP matches every TargetHTTPError
	ErrTargetHTTP = errors.New("target returned an error status")
)

// TargetUnreachableError reports a connection, DNS or timeout failure
type TargetUnreachableError struct {
	URL string
	Err error
}

// Error implements the error interface
func (e *TargetUnreachableError) Error() string {
	return fmt.Sprintf("target '%s' unreachable: %v", e.URL, e.Err)
}

// Unwrap returns the underlying error
func (e *TargetUnreachableError) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrTargetUnreachable) match
func (e *TargetUnreachableError) Is(target error) bool { return target == ErrTargetUnreachable }

// TargetHTTPError reports a non-2xx status when the caller treats it as fatal
type TargetHTTPError struct {
	URL        string
	StatusCode int
}

// Error implements the error interface
func (e *TargetHTTPError) Error() string {
	return fmt.Sprintf("target '%s' returned HTTP %d", e.URL, e.StatusCode)
}

// Is lets errors.Is(err, ErrTargetHTTP) match
func (e *TargetHTTPError) Is(target error) bool { return target == ErrTargetHTTP }

// Response is the observed side of one scan
type Response struct {
	URL        string            `json:"url"`
	FinalURL   string            `json:"final_url,omitempty"`
	StatusCode int               `json:"status_code"`
	Headers    checks.Observed   `json:"headers"`
	Meta       map[string]string `json:"meta,omitempty"`
	MetaMerged []string          `json:"meta_merged,omitempty"`
	Duration   time.Duration     `json:"duration"`
}

// Options configures a Fetcher
type Options struct {
	Client          *http.Client
	Method          string
	UserAgent       string
	Headers         map[string]string
	Credentials     map[string]string
	IncludeMeta     bool
	MaxBodyBytes    int64
	FailOnHTTPError bool
}

// Fetcher issues the request to a scan target
type Fetcher struct {
	opts Options
}

// NewFetcher creates a Fetcher, filling defaults for zero options
func NewFetcher(opts Options) *Fetcher {
	if opts.Client == nil {
		opts.Client = utils.NewHTTPClient(utils.ClientOptions{})
	}
	if opts.Method == "" {
		opts.Method = http.MethodGet
	}
	if opts.UserAgent == "" {
		opts.UserAgent = utils.DefaultUserAgent
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = DefaultMaxBodyBytes
	}
	return &Fetcher{opts: opts}
}

// NormalizeURL adds https:// to a target given without a scheme.
func NormalizeURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("empty target URL")
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("invalid target URL '%s': %w", raw, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("unsupported scheme '%s' in target URL", u.Scheme)
	}
	if u.Host == "" {
		return "", fmt.Errorf("target URL '%s' has no host", raw)
	}
	return u.String(), nil
}

// Fetch requests target and returns its observed headers. With
// FailOnHTTPError set, a non-2xx status returns both the response and a
// *TargetHTTPError.
func (f *Fetcher) Fetch(ctx context.Context, target string) (*Response, error) {
	target, err := NormalizeURL(target)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, f.opts.Method, target, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build HTTP request: %w", err)
	}
	req.Header.Set("User-Agent", f.opts.UserAgent)
	for name, value := range f.opts.Headers {
		req.Header.Set(name, value)
	}
	credentials.Apply(req, f.opts.Credentials)

	slog.Debug("Requesting target", "method", req.Method, "url", target)

	start := time.Now()
	resp, err := f.opts.Client.Do(req)
	if err != nil {
		return nil, &TargetUnreachableError{URL: target, Err: err}
	}
	defer resp.Body.Close()

	result := &Response{
		URL:        target,
		StatusCode: resp.StatusCode,
		Headers:    extractors.FromHTTPHeader(resp.Header),
	}
	if resp.Request != nil && resp.Request.URL != nil && resp.Request.URL.String() != target {
		result.FinalURL = resp.Request.URL.String()
	}

	if f.opts.IncludeMeta && extractors.IsHTML(resp.Header.Get("Content-Type")) {
		meta, err := extractors.MetaHTTPEquiv(io.LimitReader(resp.Body, f.opts.MaxBodyBytes))
		if err != nil {
			slog.Warn("Ignoring unparsable HTML body", "url", target, "error", err)
		} else if len(meta) > 0 {
			result.Meta = meta
			result.MetaMerged = extractors.MergeMeta(result.Headers, meta)
		}
	}
	result.Duration = time.Since(start)

	slog.Info("Fetched target headers",
		"url", target,
		"status", resp.StatusCode,
		"headers", len(result.Headers),
		"duration", result.Duration)

	if f.opts.FailOnHTTPError && (resp.StatusCode < 200 || resp.StatusCode > 299) {
		return result, &TargetHTTPError{URL: target, StatusCode: resp.StatusCode}
	}
	return result, nil
}
