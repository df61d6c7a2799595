package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/petal-labs/shelfwright/core"
)

func TestDiscoverPathFrom(t *testing.T) {
	cwd := t.TempDir()
	home := t.TempDir()

	if _, found, err := DiscoverPathFrom("", cwd, home); err != nil || found {
		t.Fatalf("empty dirs: found = %v, err = %v", found, err)
	}

	homeCfg := filepath.Join(home, ".shelfwright", "config.yaml")
	if err := os.MkdirAll(filepath.Dir(homeCfg), 0o700); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(homeCfg, []byte("status_root: tools\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	path, found, err := DiscoverPathFrom("", cwd, home)
	if err != nil || !found || path != homeCfg {
		t.Fatalf("home config: path = %q, found = %v, err = %v", path, found, err)
	}

	projectCfg := filepath.Join(cwd, "shelfwright.yaml")
	if err := os.WriteFile(projectCfg, []byte("{}\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	path, _, _ = DiscoverPathFrom("", cwd, home)
	if path != projectCfg {
		t.Errorf("project config should win, got %q", path)
	}

	_, _, err = DiscoverPathFrom(filepath.Join(cwd, "missing.yaml"), cwd, home)
	if err == nil || !strings.Contains(err.Error(), "not found") {
		t.Errorf("explicit missing path error = %v", err)
	}
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("SW_TEST_ROOT", "/opt/studio")
	path := filepath.Join(dir, "shelfwright.yaml")
	content := `
menu_paths:
  - layouts/menus
  - $SW_TEST_ROOT/menus
shelf_paths: [layouts/shelves]
definition_paths: [defs]
status_root: studio
status_label: Studio ${SW_TEST_ROOT}
history_dsn: history.db
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}
	if len(cfg.MenuPaths) != 2 || cfg.MenuPaths[0] != filepath.Join(dir, "layouts", "menus") || cfg.MenuPaths[1] != "/opt/studio/menus" {
		t.Errorf("MenuPaths = %v", cfg.MenuPaths)
	}
	if got := cfg.Paths(core.FamilyShelf); len(got) != 1 || got[0] != filepath.Join(dir, "layouts", "shelves") {
		t.Errorf("Paths(shelf) = %v", got)
	}
	if cfg.StatusRoot != "studio" || cfg.StatusLabel != "Studio /opt/studio" {
		t.Errorf("status = %q / %q", cfg.StatusRoot, cfg.StatusLabel)
	}
	if cfg.HistoryDSN != filepath.Join(dir, "history.db") {
		t.Errorf("HistoryDSN = %q", cfg.HistoryDSN)
	}
	if len(cfg.ResolverPaths) != 0 {
		t.Errorf("ResolverPaths = %v, want empty", cfg.ResolverPaths)
	}
}

func TestLoadFileInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("menu_paths: {"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadFile(path); err == nil || !strings.Contains(err.Error(), "parsing config") {
		t.Errorf("LoadFile() error = %v", err)
	}
}

func TestApplyEnv(t *testing.T) {
	sep := string(os.PathListSeparator)
	env := map[string]string{
		EnvMenuPath:       "/a" + sep + "/b",
		EnvShelfPath:      "",
		EnvDefinitionPath: " /defs ",
		EnvHistoryDSN:     " /tmp/h.db ",
	}
	lookup := func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}

	cfg := Default()
	cfg.ShelfPaths = []string{"/from/file"}
	cfg.ResolverPaths = []string{"/kept"}
	cfg.ApplyEnv(lookup)

	if len(cfg.MenuPaths) != 2 || cfg.MenuPaths[1] != "/b" {
		t.Errorf("MenuPaths = %v", cfg.MenuPaths)
	}
	if len(cfg.ShelfPaths) != 0 {
		t.Errorf("ShelfPaths = %v, want cleared", cfg.ShelfPaths)
	}
	if len(cfg.ResolverPaths) != 1 {
		t.Errorf("ResolverPaths = %v, want untouched", cfg.ResolverPaths)
	}
	if cfg.DefinitionPaths[0] != "/defs" || cfg.HistoryDSN != "/tmp/h.db" {
		t.Errorf("cfg = %+v", cfg)
	}
}

func TestLoadEnvWinsOverFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cfg.yaml")
	if err := os.WriteFile(path, []byte("menu_paths: [file]\nstatus_root: top\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv(EnvMenuPath, "/env/menus")

	cfg, used, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if used != path {
		t.Errorf("config path = %q, want %q", used, path)
	}
	if len(cfg.MenuPaths) != 1 || cfg.MenuPaths[0] != "/env/menus" {
		t.Errorf("MenuPaths = %v", cfg.MenuPaths)
	}
	if cfg.StatusRoot != "top" {
		t.Errorf("StatusRoot = %q", cfg.StatusRoot)
	}
}
