// Package credentials provides methods for resolving and applying the
// credentials a scan sends to its target, for servers whose interesting
// responses sit behind authentication.
// This file defines credential resolver interfaces and registry functionality.
package credentials

import (
	"encoding/base64"
	"fmt"
	"net/http"
	"sync"
)

// Well known credential attributes
const (
	KeyUsername = "username"
	KeyPassword = "password"
	KeyToken    = "token"
	KeyCookie   = "cookie"
)

// CredentialResolver defines the interface for resolving credentials by reference
type CredentialResolver interface {
	// Resolve attempts to resolve credentials from a provided reference ID
	// Returns a map of credential attributes (username, password, token, cookie)
	Resolve(credentialRef string) (map[string]string, error)

	// Name returns the name of this resolver for registration and logging
	Name() string
}

// Provider manages credential resolvers
type Provider struct {
	resolvers []CredentialResolver
	mu        sync.RWMutex
}

// NewProvider creates a new credential provider
func NewProvider() *Provider {
	return &Provider{
		resolvers: make([]CredentialResolver, 0),
	}
}

// RegisterResolver adds a credential resolver to the provider
func (p *Provider) RegisterResolver(resolver CredentialResolver) error {
	if resolver == nil {
		return fmt.Errorf("cannot register nil resolver")
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	for _, r := range p.resolvers {
		if r.Name() == resolver.Name() {
			return fmt.Errorf("credential resolver with name '%s' already registered", resolver.Name())
		}
	}

	p.resolvers = append(p.resolvers, resolver)
	return nil
}

// ResolveCredentials tries each registered resolver in order
func (p *Provider) ResolveCredentials(credentialRef string) (map[string]string, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if len(p.resolvers) == 0 {
		return nil, fmt.Errorf("no credential resolvers registered")
	}

	var lastErr error
	for _, resolver := range p.resolvers {
		creds, err := resolver.Resolve(credentialRef)
		if err == nil && creds != nil {
			return creds, nil
		}
		lastErr = err
	}

	return nil, fmt.Errorf("failed to resolve credentials '%s': %w", credentialRef, lastErr)
}

// Apply sets authentication headers on req from resolved credentials.
// A bearer token takes precedence over basic credentials.
func Apply(req *http.Request, creds map[string]string) {
	if len(creds) == 0 {
		return
	}

	switch {
	case creds[KeyToken] != "":
		req.Header.Set("Authorization", "Bearer "+creds[KeyToken])
	case creds[KeyUsername] != "":
		raw := creds[KeyUsername] + ":" + creds[KeyPassword]
		req.Header.Set("Authorization", "Basic "+base64.StdEncoding.EncodeToString([]byte(raw)))
	}

	if cookie := creds[KeyCookie]; cookie != "" {
		req.Header.Set("Cookie", cookie)
	}
}
