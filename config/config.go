// Package config resolves shelfwright settings from defaults, an optional
// YAML config file and environment variables, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/petal-labs/shelfwright/core"
	"github.com/petal-labs/shelfwright/loader"
)

// Environment variables holding search paths, one per document family and
// one per registry. Values are lists separated by os.PathListSeparator.
const (
	EnvMenuPath       = "SHELFWRIGHT_MENU_PATH"
	EnvShelfPath      = "SHELFWRIGHT_SHELF_PATH"
	EnvResolverPath   = "SHELFWRIGHT_RESOLVER_PATH"
	EnvDefinitionPath = "SHELFWRIGHT_DEFINITION_PATH"
	EnvHistoryDSN     = "SHELFWRIGHT_HISTORY_DSN"
)

const (
	projectConfigName = "shelfwright.yaml"
	homeConfigDir     = ".shelfwright"
	homeConfigName    = "config.yaml"

	// DefaultStatusRoot is the id of the top-level container that receives
	// the trailing status nodes.
	DefaultStatusRoot = "main"
)

// Config holds resolved settings.
type Config struct {
	MenuPaths       []string `yaml:"menu_paths,omitempty"`
	ShelfPaths      []string `yaml:"shelf_paths,omitempty"`
	ResolverPaths   []string `yaml:"resolver_paths,omitempty"`
	DefinitionPaths []string `yaml:"definition_paths,omitempty"`

	// StatusRoot is the top-level node id that receives the status separator
	// and label. Empty disables injection.
	StatusRoot string `yaml:"status_root,omitempty"`
	// StatusLabel is the text of the injected status label.
	StatusLabel string `yaml:"status_label,omitempty"`

	// HistoryDSN enables the SQLite execution history when set.
	HistoryDSN string `yaml:"history_dsn,omitempty"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		StatusRoot:  DefaultStatusRoot,
		StatusLabel: "shelfwright",
	}
}

// Paths returns the document search path for family.
func (c Config) Paths(family core.Family) []string {
	if family == core.FamilyShelf {
		return c.ShelfPaths
	}
	return c.MenuPaths
}

// Load resolves settings: defaults, then the discovered config file (if
// any), then environment variables. It returns the config file path used,
// or "" when none was found.
func Load(explicitPath string) (Config, string, error) {
	cfg := Default()

	path, found, err := DiscoverPath(explicitPath)
	if err != nil {
		return cfg, "", err
	}
	if found {
		if err := cfg.mergeFile(path); err != nil {
			return cfg, "", err
		}
	}
	cfg.ApplyEnv(os.LookupEnv)
	return cfg, path, nil
}

// DiscoverPath resolves the config file location with first-match semantics.
func DiscoverPath(explicitPath string) (string, bool, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return "", false, fmt.Errorf("resolve working directory: %w", err)
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", false, fmt.Errorf("resolve user home: %w", err)
	}
	return DiscoverPathFrom(explicitPath, cwd, homeDir)
}

// DiscoverPathFrom is a testable variant of DiscoverPath.
func DiscoverPathFrom(explicitPath, cwd, homeDir string) (string, bool, error) {
	candidates := make([]string, 0, 2)
	if clean := strings.TrimSpace(explicitPath); clean != "" {
		candidates = append(candidates, filepath.Clean(clean))
	} else {
		candidates = append(candidates, filepath.Join(cwd, projectConfigName))
		candidates = append(candidates, filepath.Join(homeDir, homeConfigDir, homeConfigName))
	}

	for i, candidate := range candidates {
		info, err := os.Stat(candidate)
		if err == nil && !info.IsDir() {
			return candidate, true, nil
		}
		if errors.Is(err, os.ErrNotExist) {
			// If explicit path is set, not found is an error.
			if i == 0 && strings.TrimSpace(explicitPath) != "" {
				return "", false, fmt.Errorf("config file %q not found", candidate)
			}
			continue
		}
		if err != nil {
			return "", false, fmt.Errorf("checking config path %q: %w", candidate, err)
		}
	}
	return "", false, nil
}

// LoadFile reads a config file on top of the defaults.
func LoadFile(path string) (Config, error) {
	cfg := Default()
	err := cfg.mergeFile(path)
	return cfg, err
}

func (c *Config) mergeFile(path string) error {
	// #nosec G304 -- path resolved from explicit local config discovery.
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config %q: %w", path, err)
	}

	var file Config
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("parsing config %q: %w", path, err)
	}

	baseDir := filepath.Dir(path)
	resolve := func(paths []string) []string {
		out := make([]string, 0, len(paths))
		for _, p := range paths {
			p = strings.TrimSpace(os.ExpandEnv(p))
			if p != "" {
				out = append(out, resolveConfigRelative(baseDir, p))
			}
		}
		return out
	}

	if len(file.MenuPaths) > 0 {
		c.MenuPaths = resolve(file.MenuPaths)
	}
	if len(file.ShelfPaths) > 0 {
		c.ShelfPaths = resolve(file.ShelfPaths)
	}
	if len(file.ResolverPaths) > 0 {
		c.ResolverPaths = resolve(file.ResolverPaths)
	}
	if len(file.DefinitionPaths) > 0 {
		c.DefinitionPaths = resolve(file.DefinitionPaths)
	}
	if file.StatusRoot != "" {
		c.StatusRoot = file.StatusRoot
	}
	if file.StatusLabel != "" {
		c.StatusLabel = os.ExpandEnv(file.StatusLabel)
	}
	if file.HistoryDSN != "" {
		c.HistoryDSN = resolveConfigRelative(baseDir, os.ExpandEnv(file.HistoryDSN))
	}
	return nil
}

// ApplyEnv overrides settings from environment variables read through
// lookup. A set but empty search-path variable clears that path.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	if v, ok := lookup(EnvMenuPath); ok {
		c.MenuPaths = loader.SplitSearchPath(v)
	}
	if v, ok := lookup(EnvShelfPath); ok {
		c.ShelfPaths = loader.SplitSearchPath(v)
	}
	if v, ok := lookup(EnvResolverPath); ok {
		c.ResolverPaths = loader.SplitSearchPath(v)
	}
	if v, ok := lookup(EnvDefinitionPath); ok {
		c.DefinitionPaths = loader.SplitSearchPath(v)
	}
	if v, ok := lookup(EnvHistoryDSN); ok {
		c.HistoryDSN = strings.TrimSpace(v)
	}
}

func resolveConfigRelative(baseDir, p string) string {
	clean := filepath.Clean(p)
	if filepath.IsAbs(clean) {
		return clean
	}
	return filepath.Join(baseDir, clean)
}
