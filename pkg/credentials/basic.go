package credentials

import (
	"fmt"
	"sync"
)

// StaticResolver serves credential sets declared in the configuration file
type StaticResolver struct {
	name  string
	store map[string]map[string]string
	mu    sync.RWMutex
}

// NewStaticResolver creates a resolver holding copies of the given sets
func NewStaticResolver(name string, sets map[string]map[string]string) *StaticResolver {
	r := &StaticResolver{
		name:  name,
		store: make(map[string]map[string]string, len(sets)),
	}
	for ref, creds := range sets {
		_ = r.Add(ref, creds)
	}
	return r
}

// Name returns the resolver's name
func (r *StaticResolver) Name() string {
	return r.name
}

// Resolve implements the CredentialResolver interface. A copy is returned.
func (r *StaticResolver) Resolve(credentialRef string) (map[string]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	creds, ok := r.store[credentialRef]
	if !ok {
		return nil, fmt.Errorf("credentials for reference '%s' not found", credentialRef)
	}
	return copyCredentials(creds), nil
}

// Add stores or replaces a credential set
func (r *StaticResolver) Add(credentialRef string, creds map[string]string) error {
	if credentialRef == "" {
		return fmt.Errorf("credential reference cannot be empty")
	}
	if creds == nil {
		return fmt.Errorf("credentials cannot be nil")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.store[credentialRef] = copyCredentials(creds)
	return nil
}

func copyCredentials(creds map[string]string) map[string]string {
	out := make(map[string]string, len(creds))
	for k, v := range creds {
		out[k] = v
	}
	return out
}
