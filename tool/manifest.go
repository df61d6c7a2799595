package tool

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/petal-labs/shelfwright/loader"
)

// Built-in runner names.
const (
	RunnerNative = "native"
	RunnerStdio  = "stdio"
)

// Manifest declares one command definition.
type Manifest struct {
	ID          string `json:"id"`
	Label       string `json:"label,omitempty"`
	Description string `json:"description,omitempty"`
	Runner      string `json:"runner"`

	// Native names the in-process function for the native runner;
	// empty means the manifest id.
	Native string `json:"native,omitempty"`

	// Command, Args and Env configure the stdio runner.
	Command   string            `json:"command,omitempty"`
	Args      []string          `json:"args,omitempty"`
	Env       map[string]string `json:"env,omitempty"`
	TimeoutMS int64             `json:"timeout_ms,omitempty"`

	// Source is the manifest file the definition was declared in.
	Source string `json:"-"`
}

// Validate checks the fields every runner depends on.
func (m Manifest) Validate() error {
	if strings.TrimSpace(m.ID) == "" {
		return errors.New("tool: manifest id is required")
	}
	if strings.TrimSpace(m.Runner) == "" {
		return fmt.Errorf("tool: manifest %q: runner is required", m.ID)
	}
	if m.Runner == RunnerStdio && strings.TrimSpace(m.Command) == "" {
		return fmt.Errorf("tool: manifest %q: stdio runner requires a command", m.ID)
	}
	if m.TimeoutMS < 0 {
		return fmt.Errorf("tool: manifest %q: timeout_ms must be >= 0", m.ID)
	}
	return nil
}

// manifestFile is the on-disk shape: either a single manifest or a
// "definitions" list.
type manifestFile struct {
	Definitions []Manifest `json:"definitions"`
}

// ParseManifests decodes the manifests declared in one file.
func ParseManifests(data []byte, path string) ([]Manifest, error) {
	jsonData, err := loader.ToJSON(data, path)
	if err != nil {
		return nil, err
	}

	var probe map[string]json.RawMessage
	if err := json.Unmarshal(jsonData, &probe); err != nil {
		return nil, fmt.Errorf("tool: parsing manifest %s: %w", path, err)
	}

	var manifests []Manifest
	if _, ok := probe["definitions"]; ok {
		var file manifestFile
		if err := json.Unmarshal(jsonData, &file); err != nil {
			return nil, fmt.Errorf("tool: parsing manifest %s: %w", path, err)
		}
		manifests = file.Definitions
	} else {
		var m Manifest
		if err := json.Unmarshal(jsonData, &m); err != nil {
			return nil, fmt.Errorf("tool: parsing manifest %s: %w", path, err)
		}
		manifests = []Manifest{m}
	}

	for i := range manifests {
		manifests[i].Source = path
		if err := manifests[i].Validate(); err != nil {
			return nil, err
		}
	}
	return manifests, nil
}

// ScanManifests discovers manifest files on paths and returns every valid
// manifest in discovery order. Files that fail to read or parse are logged
// and skipped.
func ScanManifests(paths []string, logger *slog.Logger) []Manifest {
	if logger == nil {
		logger = slog.Default()
	}
	var out []Manifest
	for _, path := range loader.Discover(paths, logger) {
		data, err := os.ReadFile(path) // #nosec G304 -- path from search path
		if err != nil {
			logger.Warn("skipping definition manifest", "path", path, "error", err)
			continue
		}
		manifests, err := ParseManifests(data, path)
		if err != nil {
			logger.Warn("skipping definition manifest", "path", path, "error", err)
			continue
		}
		out = append(out, manifests...)
	}
	return out
}
