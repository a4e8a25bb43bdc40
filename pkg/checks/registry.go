// Package checks implements the header classification engine.
// This file defines the policy registry: every scan policy (configuration,
// disclosure) is registered under a name together with the reference shape it
// expects, and executed through the single Classify entry point.
package checks

import (
	"fmt"
	"sort"
	"sync"
)

// Standard policy names
const (
	PolicyConfig     = "config"
	PolicyDisclosure = "disclosure"
)

// Policy describes one scan policy.
type Policy struct {
	Name           string `json:"name"`
	Title          string `json:"title"`
	Kind           Kind   `json:"kind"`
	IncludePresent bool   `json:"-"`
}

// PolicyRegistry manages the registration and lookup of scan policies
type PolicyRegistry struct {
	mu       sync.RWMutex
	policies map[string]Policy
}

// NewPolicyRegistry creates a new empty policy registry
func NewPolicyRegistry() *PolicyRegistry {
	return &PolicyRegistry{
		policies: make(map[string]Policy),
	}
}

// Register adds a new policy to the registry
func (r *PolicyRegistry) Register(policy Policy) error {
	if policy.Name == "" {
		return fmt.Errorf("policy name cannot be empty")
	}
	if policy.Kind != KindValued && policy.Kind != KindPresence {
		return &PolicyError{Policy: policy.Name, Err: ErrInvalidSpecShape}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.policies[policy.Name]; exists {
		return fmt.Errorf("policy '%s' is already registered", policy.Name)
	}

	r.policies[policy.Name] = policy
	return nil
}

// MustRegister adds a new policy to the registry, panicking if it fails
func (r *PolicyRegistry) MustRegister(policy Policy) {
	if err := r.Register(policy); err != nil {
		panic(err)
	}
}

// Get retrieves a policy by name
func (r *PolicyRegistry) Get(name string) (Policy, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	policy, exists := r.policies[name]
	if !exists {
		return Policy{}, &PolicyError{Policy: name, Err: ErrUnknownPolicy}
	}
	return policy, nil
}

// Names returns the registered policy names, sorted
func (r *PolicyRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.policies))
	for name := range r.policies {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Execute classifies observed headers under the named policy. The reference
// must have the shape the policy was registered with.
func (r *PolicyRegistry) Execute(name string, ref Reference, observed Observed) (*Result, error) {
	policy, err := r.Get(name)
	if err != nil {
		return nil, err
	}

	if ref.Kind != policy.Kind {
		return nil, &PolicyError{
			Policy: name,
			Err:    fmt.Errorf("%w: expected %s reference, got %s", ErrInvalidSpecShape, policy.Kind, ref.Kind),
		}
	}

	return Classify(ref, observed, Options{IncludePresent: policy.IncludePresent})
}

// NewStandardRegistry returns a registry holding the configuration and
// disclosure policies.
func NewStandardRegistry() *PolicyRegistry {
	registry := NewPolicyRegistry()
	registry.MustRegister(Policy{
		Name:           PolicyConfig,
		Title:          "Security header configuration",
		Kind:           KindValued,
		IncludePresent: true,
	})
	registry.MustRegister(Policy{
		Name:  PolicyDisclosure,
		Title: "Information disclosure headers",
		Kind:  KindPresence,
	})
	return registry
}

// Global instance for convenience
var DefaultRegistry = NewStandardRegistry()

