package refspec

import (
	"fmt"
	"os"

	json "github.com/json-iterator/go"
	"gopkg.in/yaml.v3"
)

// Marshal encodes a document as JSON or YAML. XML is read-only.
func Marshal(doc *Document, format Format) ([]byte, error) {
	switch format {
	case FormatJSON:
		data, err := json.ConfigCompatibleWithStandardLibrary.MarshalIndent(doc, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("failed to marshal document to JSON: %w", err)
		}
		return append(data, '\n'), nil
	case FormatYAML:
		data, err := yaml.Marshal(doc)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal document to YAML: %w", err)
		}
		return data, nil
	}
	return nil, fmt.Errorf("cannot write documents as '%s'", format)
}

// SaveFile writes doc to path in the format implied by its extension,
// defaulting to YAML.
func SaveFile(doc *Document, path string) error {
	format := FormatFromPath(path)
	if format == FormatAuto {
		format = FormatYAML
	}
	data, err := Marshal(doc, format)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write document to '%s': %w", path, err)
	}
	return nil
}
