// Package loader discovers and parses layout documents from search paths.
// Documents may be written in JSON or YAML; the format is chosen by file
// extension.
package loader

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/petal-labs/shelfwright/core"
	"github.com/petal-labs/shelfwright/layout"
)

// Extensions lists the file extensions recognized as layout documents.
var Extensions = []string{".json", ".yaml", ".yml"}

// IsDocumentFile reports whether path has a recognized document extension.
func IsDocumentFile(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range Extensions {
		if ext == e {
			return true
		}
	}
	return false
}

// isYAML returns true if the file path has a YAML extension.
func isYAML(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}

// yamlToJSON converts YAML bytes to JSON bytes:
// YAML -> any -> JSON bytes -> typed struct.
func yamlToJSON(data []byte) ([]byte, error) {
	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing YAML: %w", err)
	}
	// yaml.v3 decodes mappings to map[string]any, which is JSON-compatible
	return json.Marshal(raw)
}

// ToJSON converts data to JSON bytes, handling YAML conversion if the path
// indicates a YAML file.
func ToJSON(data []byte, path string) ([]byte, error) {
	if isYAML(path) {
		return yamlToJSON(data)
	}
	return data, nil
}

// ParseDocument decodes one layout document for family.
func ParseDocument(data []byte, path string, family core.Family) (layout.Document, error) {
	jsonData, err := ToJSON(data, path)
	if err != nil {
		return layout.Document{}, err
	}
	return layout.DecodeDocument(jsonData, path, family)
}
