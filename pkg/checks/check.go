// Package checks implements the header classification engine.
// A Reference describes what a well-configured server should (or should not)
// send, and Classify compares it against the headers a target actually sent.
// Reference values come in two shapes, selected by an explicit Kind rather than
// by inspecting the data: a valued spec (name -> expected value) and a presence
// spec (a bare set of names whose presence is itself the finding).
package checks

import (
	"sort"
	"strings"
)

// Kind discriminates the two reference shapes.
type Kind int

const (
	// KindValued marks a reference of header name -> expected value.
	KindValued Kind = iota + 1

	// KindPresence marks a reference holding only header names.
	KindPresence
)

// String returns a human readable name for the kind
func (k Kind) String() string {
	switch k {
	case KindValued:
		return "valued"
	case KindPresence:
		return "presence"
	default:
		return "invalid"
	}
}

// MarshalText encodes the kind by name
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Reference is the expected-header baseline used by one scan policy.
// Only the field matching Kind is consulted.
type Reference struct {
	Kind   Kind
	Values map[string]string   // KindValued: canonical name -> expected value
	Names  map[string]struct{} // KindPresence: canonical names
}

// NewValuedSpec builds a valued reference. Names are canonicalized; when two
// spellings collapse to one canonical name, the spelling that sorts first
// wins. Use Fold for ordered input.
func NewValuedSpec(values map[string]string) Reference {
	return Reference{Kind: KindValued, Values: foldMap(values)}
}

// NewPresenceSpec builds a presence reference from header names.
func NewPresenceSpec(names ...string) Reference {
	ref := Reference{Kind: KindPresence, Names: make(map[string]struct{}, len(names))}
	for _, name := range names {
		ref.Names[CanonicalName(name)] = struct{}{}
	}
	return ref
}

// HeaderNames returns the canonical header names of the reference, sorted.
func (r Reference) HeaderNames() []string {
	var names []string
	switch r.Kind {
	case KindValued:
		names = make([]string, 0, len(r.Values))
		for name := range r.Values {
			names = append(names, name)
		}
	case KindPresence:
		names = make([]string, 0, len(r.Names))
		for name := range r.Names {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// Expected returns the expected value for a header of a valued reference.
// The name may use any casing.
func (r Reference) Expected(name string) (string, bool) {
	if r.Kind != KindValued {
		return "", false
	}
	value, ok := r.Values[CanonicalName(name)]
	return value, ok
}

// Len returns the number of headers in the reference
func (r Reference) Len() int {
	if r.Kind == KindPresence {
		return len(r.Names)
	}
	return len(r.Values)
}

// Observed maps header names to the values a target sent.
type Observed map[string]string

// NewObserved canonicalizes the names and values of a raw header map.
// Colliding spellings resolve as in NewValuedSpec.
func NewObserved(headers map[string]string) Observed {
	return Observed(foldMap(headers))
}

// Fold canonicalizes ordered name/value pairs. The first pair of each
// canonical name wins; the names dropped later are returned in input order.
func Fold(names, values []string) (map[string]string, []string) {
	folded := make(map[string]string, len(names))
	var dropped []string
	for i, raw := range names {
		name := CanonicalName(raw)
		if _, seen := folded[name]; seen {
			dropped = append(dropped, name)
			continue
		}
		folded[name] = CanonicalValue(values[i])
	}
	return folded, dropped
}

// foldMap canonicalizes a map, visiting raw names in sorted order so that
// collisions resolve the same way on every call.
func foldMap(m map[string]string) map[string]string {
	raw := make([]string, 0, len(m))
	for name := range m {
		raw = append(raw, name)
	}
	sort.Strings(raw)

	values := make([]string, len(raw))
	for i, name := range raw {
		values[i] = m[name]
	}
	folded, _ := Fold(raw, values)
	return folded
}

// CanonicalName folds a header name to the form used as map key everywhere
// in the engine. HTTP field names are case-insensitive.
func CanonicalName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// CanonicalValue trims surrounding whitespace. Case is significant for values.
func CanonicalValue(value string) string {
	return strings.TrimSpace(value)
}

// SortedNames returns the keys of a result bucket in ascending order.
func SortedNames(bucket map[string]string) []string {
	names := make([]string, 0, len(bucket))
	for name := range bucket {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
