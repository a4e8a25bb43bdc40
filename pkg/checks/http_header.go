// Package checks implements the header classification engine.
// This file contains Classify, which partitions observed headers against a
// Reference into present, missing, matching and non-matching buckets.
package checks

import "fmt"

// Options tunes a single Classify call.
type Options struct {
	// IncludePresent fills Result.Present for valued references.
	// Presence references always fill it since presence is the finding.
	IncludePresent bool
}

// Result holds the buckets produced by one Classify call.
// All maps are keyed by canonical header name.
type Result struct {
	Kind        Kind              `json:"kind"`
	Present     map[string]string `json:"present"`      // observed value
	Missing     map[string]string `json:"missing"`      // expected value, "" for presence references
	Matching    map[string]string `json:"matching"`     // observed value
	NonMatching map[string]string `json:"non_matching"` // observed value
}

// Findings counts the entries that represent a deviation from best practice.
func (r *Result) Findings() int {
	if r == nil {
		return 0
	}
	if r.Kind == KindPresence {
		return len(r.Present)
	}
	return len(r.Missing) + len(r.NonMatching)
}

// Classify compares a reference against the observed headers of one response.
// observed may be empty; every reference header is then missing. The only
// failure is a reference whose Kind is neither KindValued nor KindPresence.
func Classify(ref Reference, observed Observed, opts Options) (*Result, error) {
	result := &Result{
		Kind:        ref.Kind,
		Present:     make(map[string]string),
		Missing:     make(map[string]string),
		Matching:    make(map[string]string),
		NonMatching: make(map[string]string),
	}

	// Callers may hand us maps built without NewObserved or NewValuedSpec
	canonical := foldMap(observed)

	switch ref.Kind {
	case KindValued:
		for name, expected := range foldMap(ref.Values) {
			value, ok := canonical[name]
			if !ok {
				result.Missing[name] = expected
				continue
			}
			if opts.IncludePresent {
				result.Present[name] = value
			}
			if value == expected {
				result.Matching[name] = value
			} else {
				result.NonMatching[name] = value
			}
		}

	case KindPresence:
		for rawName := range ref.Names {
			name := CanonicalName(rawName)
			if value, ok := canonical[name]; ok {
				result.Present[name] = value
			} else {
				result.Missing[name] = ""
			}
		}

	default:
		return nil, fmt.Errorf("%w: kind %d", ErrInvalidSpecShape, int(ref.Kind))
	}

	return result, nil
}
