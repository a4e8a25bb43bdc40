// Package utils provides common utility functions used across hdrscan.
// This file specifically implements HTTP-related utilities including a common
// HTTP client with consistent configuration.
package utils

import (
	"crypto/tls"
	"fmt"
	"net/http"
	"time"
)

// Defaults applied when ClientOptions leaves a field zero
const (
	DefaultTimeout      = 10 * time.Second
	DefaultMaxRedirects = 10
	DefaultUserAgent    = "hdrscan/1.0"
)

// ClientOptions configures NewHTTPClient
type ClientOptions struct {
	Timeout time.Duration
	// MaxRedirects caps followed redirects. Negative disables following.
	MaxRedirects int
	// Insecure skips certificate verification on the target connection
	Insecure bool
}

// NewHTTPClient returns an HTTP client with an explicit timeout and redirect policy.
func NewHTTPClient(opts ClientOptions) *http.Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	maxRedirects := opts.MaxRedirects
	if maxRedirects == 0 {
		maxRedirects = DefaultMaxRedirects
	}

	client := &http.Client{
		Timeout: timeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if maxRedirects < 0 {
				// Report on the redirect response itself
				return http.ErrUseLastResponse
			}
			if len(via) >= maxRedirects {
				return fmt.Errorf("stopped after %d redirects", maxRedirects)
			}
			return nil
		},
	}

	if opts.Insecure {
		transport := http.DefaultTransport.(*http.Transport).Clone()
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // opt-in via --insecure
		client.Transport = transport
	}

	return client
}
