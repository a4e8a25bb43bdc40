// Package extractors builds the observed header set of a target response.
// This file specifically implements extraction of <meta http-equiv>
// declarations from HTML documents using CSS selectors.
package extractors

import (
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"hdrscan/pkg/checks"
)

// MetaHTTPEquiv returns the header declarations of an HTML document's
// <meta http-equiv="..." content="..."> elements, keyed by canonical name.
// The first declaration of a name wins, as in browsers.
func MetaHTTPEquiv(r io.Reader) (map[string]string, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	meta := make(map[string]string)
	doc.Find("meta[http-equiv]").Each(func(i int, s *goquery.Selection) {
		name, _ := s.Attr("http-equiv")
		name = checks.CanonicalName(name)
		if name == "" {
			return
		}
		if _, seen := meta[name]; seen {
			return
		}
		content, _ := s.Attr("content")
		meta[name] = strings.TrimSpace(content)
	})

	slog.Debug("Extracted meta http-equiv declarations", "count", len(meta))
	return meta, nil
}

// MergeMeta adds meta declarations to observed for names the header block did
// not carry, and returns the added names in sorted order. Header block values
// always win.
func MergeMeta(observed checks.Observed, meta map[string]string) []string {
	var added []string
	for name, value := range meta {
		name = checks.CanonicalName(name)
		if _, exists := observed[name]; exists {
			continue
		}
		observed[name] = value
		added = append(added, name)
	}
	sort.Strings(added)
	return added
}

// IsHTML reports whether a Content-Type value denotes an HTML document
func IsHTML(contentType string) bool {
	ct := strings.ToLower(contentType)
	return strings.HasPrefix(ct, "text/html") || strings.HasPrefix(ct, "application/xhtml+xml")
}
