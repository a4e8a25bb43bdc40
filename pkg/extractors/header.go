// Package extractors builds the observed header set of a target response.
// This file specifically implements extraction from the response header block.
package extractors

import (
	"net/http"
	"strings"

	"hdrscan/pkg/checks"
)

// FromHTTPHeader converts a response header block into canonical observed
// headers. Repeated field lines are combined with ", " as a list-valued
// field would be; Set-Cookie lines are combined with "; " instead since
// cookie values may themselves contain commas.
func FromHTTPHeader(header http.Header) checks.Observed {
	observed := make(checks.Observed, len(header))
	for name, values := range header {
		if len(values) == 0 {
			continue
		}

		canonical := checks.CanonicalName(name)
		trimmed := make([]string, 0, len(values))
		for _, v := range values {
			trimmed = append(trimmed, strings.TrimSpace(v))
		}

		separator := ", "
		if canonical == "set-cookie" {
			separator = "; "
		}

		// http.Header keys are canonical already, but a hand-built map may
		// carry the same field under two spellings
		if existing, ok := observed[canonical]; ok {
			observed[canonical] = existing + separator + strings.Join(trimmed, separator)
			continue
		}
		observed[canonical] = strings.Join(trimmed, separator)
	}
	return observed
}
