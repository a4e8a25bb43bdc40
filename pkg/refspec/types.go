// Package refspec loads header specification documents: the recommended
// headers a server should send and the disclosure headers it should not.
// Documents follow the OWASP Secure Headers Project layout
//
//	{"headers": [{"name": "X-Frame-Options", "value": "deny"}, ...]}
//
// and may be written as JSON, YAML or XML.
package refspec

import "hdrscan/pkg/checks"

// Default document locations published by the OWASP Secure Headers Project
const (
	DefaultRecommendedSource = "https://owasp.org/www-project-secure-headers/ci/headers_add.json"
	DefaultDisclosureSource  = "https://owasp.org/www-project-secure-headers/ci/headers_remove.json"
)

// Document is a parsed header specification document
type Document struct {
	LastUpdate string   `json:"last_update_utc,omitempty" yaml:"last_update_utc,omitempty"`
	Headers    []Header `json:"headers" yaml:"headers"`
}

// Header is one entry of a Document
type Header struct {
	Name  string `json:"name" yaml:"name"`
	Value string `json:"value,omitempty" yaml:"value,omitempty"`
}

// Valued builds the reference used by the configuration policy. When a
// header is listed more than once (in any letter case) the first entry wins.
func (d *Document) Valued() checks.Reference {
	values, _ := checks.Fold(d.names(), d.values())
	return checks.Reference{Kind: checks.KindValued, Values: values}
}

// Duplicates returns the canonical names of entries shadowed by an earlier
// entry for the same header, in document order.
func (d *Document) Duplicates() []string {
	_, dropped := checks.Fold(d.names(), d.values())
	return dropped
}

func (d *Document) names() []string {
	names := make([]string, len(d.Headers))
	for i, h := range d.Headers {
		names[i] = h.Name
	}
	return names
}

func (d *Document) values() []string {
	values := make([]string, len(d.Headers))
	for i, h := range d.Headers {
		values[i] = h.Value
	}
	return values
}

// Presence builds the reference used by the disclosure policy. Values are ignored.
func (d *Document) Presence() checks.Reference {
	return checks.NewPresenceSpec(d.names()...)
}
