// Package refspec loads header specification documents.
// This file parses document bytes in JSON, YAML or XML form and validates the
// resulting structure.
package refspec

import (
	"bytes"
	"errors"
	"fmt"
	"mime"
	"path/filepath"
	"strings"

	"github.com/antchfx/xmlquery"
	json "github.com/json-iterator/go"
	"gopkg.in/yaml.v3"
)

// Format identifies the encoding of a document
type Format string

const (
	FormatAuto Format = ""
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
	FormatXML  Format = "xml"
)

var errMissingHeaders = errors.New("document has no 'headers' field")

// rawDocument distinguishes an absent headers field from an empty one.
type rawDocument struct {
	LastUpdate string    `json:"last_update_utc" yaml:"last_update_utc"`
	Headers    *[]Header `json:"headers" yaml:"headers"`
}

// FormatFromPath guesses the format from a file extension.
func FormatFromPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON
	case ".yaml", ".yml":
		return FormatYAML
	case ".xml":
		return FormatXML
	}
	return FormatAuto
}

// FormatFromContentType guesses the format from a Content-Type header value.
func FormatFromContentType(contentType string) Format {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return FormatAuto
	}
	switch {
	case mediaType == "application/json" || strings.HasSuffix(mediaType, "+json"):
		return FormatJSON
	case strings.Contains(mediaType, "yaml"):
		return FormatYAML
	case mediaType == "application/xml" || mediaType == "text/xml" || strings.HasSuffix(mediaType, "+xml"):
		return FormatXML
	}
	return FormatAuto
}

// sniffFormat looks at the first non-blank byte of the document
func sniffFormat(data []byte) Format {
	trimmed := bytes.TrimLeft(data, " \t\r\n\ufeff")
	if len(trimmed) == 0 {
		return FormatYAML
	}
	switch trimmed[0] {
	case '{', '[':
		return FormatJSON
	case '<':
		return FormatXML
	}
	return FormatYAML
}

// Parse decodes and validates a document. FormatAuto sniffs the content.
func Parse(data []byte, format Format) (*Document, error) {
	if format == FormatAuto {
		format = sniffFormat(data)
	}

	var (
		doc *Document
		err error
	)
	switch format {
	case FormatJSON:
		doc, err = parseJSON(data)
	case FormatYAML:
		doc, err = parseYAML(data)
	case FormatXML:
		doc, err = parseXML(data)
	default:
		return nil, fmt.Errorf("unsupported document format '%s'", format)
	}
	if err != nil {
		return nil, err
	}

	if err := Validate(doc); err != nil {
		return nil, err
	}
	return doc, nil
}

func parseJSON(data []byte) (*Document, error) {
	var raw rawDocument
	if err := json.ConfigCompatibleWithStandardLibrary.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to unmarshal JSON: %w", err)
	}
	return raw.document()
}

func parseYAML(data []byte) (*Document, error) {
	var raw rawDocument
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to unmarshal YAML: %w", err)
	}
	return raw.document()
}

func (r rawDocument) document() (*Document, error) {
	if r.Headers == nil {
		return nil, errMissingHeaders
	}
	return &Document{LastUpdate: r.LastUpdate, Headers: *r.Headers}, nil
}

// parseXML accepts attribute form <header name="" value=""/> as well as
// element form <header><name/><value/></header> under a <headers> root.
func parseXML(data []byte) (*Document, error) {
	root, err := xmlquery.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to parse XML: %w", err)
	}

	container, err := xmlquery.Query(root, "//headers")
	if err != nil {
		return nil, fmt.Errorf("failed to execute XPath query: %w", err)
	}
	if container == nil {
		return nil, errMissingHeaders
	}

	nodes, err := xmlquery.QueryAll(container, "header")
	if err != nil {
		return nil, fmt.Errorf("failed to execute XPath query: %w", err)
	}

	doc := &Document{Headers: make([]Header, 0, len(nodes))}
	if updated := container.SelectAttr("last_update_utc"); updated != "" {
		doc.LastUpdate = updated
	}
	for _, node := range nodes {
		doc.Headers = append(doc.Headers, Header{
			Name:  xmlField(node, "name"),
			Value: xmlField(node, "value"),
		})
	}
	return doc, nil
}

func xmlField(node *xmlquery.Node, field string) string {
	if attr := node.SelectAttr(field); attr != "" {
		return attr
	}
	if child := node.SelectElement(field); child != nil {
		return strings.TrimSpace(child.InnerText())
	}
	return ""
}

// Validate checks that every entry carries a header name.
func Validate(doc *Document) error {
	if doc == nil {
		return errMissingHeaders
	}
	for i, h := range doc.Headers {
		if strings.TrimSpace(h.Name) == "" {
			return fmt.Errorf("headers[%d].name is required", i)
		}
	}
	return nil
}
