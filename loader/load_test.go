package loader

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/petal-labs/shelfwright/core"
	"github.com/petal-labs/shelfwright/layout"
)

func testdataPath(name string) string {
	return filepath.Join("testdata", name)
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("WriteFile(%s) error = %v", name, err)
	}
	return path
}

func TestSplitSearchPath(t *testing.T) {
	sep := string(os.PathListSeparator)
	got := SplitSearchPath(" /a " + sep + sep + "/b" + sep + "  ")
	if len(got) != 2 || got[0] != "/a" || got[1] != "/b" {
		t.Errorf("SplitSearchPath() = %q, want [/a /b]", got)
	}
	if got := SplitSearchPath(""); len(got) != 0 {
		t.Errorf("SplitSearchPath(\"\") = %q, want empty", got)
	}
}

func TestDiscover_OrderAndFiltering(t *testing.T) {
	dirA := t.TempDir()
	dirB := t.TempDir()
	writeFile(t, dirA, "b.yaml", "menus: []")
	writeFile(t, dirA, "a.json", `{"menus":[]}`)
	writeFile(t, dirA, "readme.md", "# ignore")
	if err := os.Mkdir(filepath.Join(dirA, "nested.json"), 0o700); err != nil {
		t.Fatal(err)
	}
	single := writeFile(t, dirB, "single.yml", "menus: []")

	got := Discover([]string{dirA, filepath.Join(dirB, "missing"), single, dirA}, nil)
	want := []string{
		filepath.Join(dirA, "a.json"),
		filepath.Join(dirA, "b.yaml"),
		single,
	}
	if len(got) != len(want) {
		t.Fatalf("Discover() = %q, want %q", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Discover()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestParseDocument_YAML(t *testing.T) {
	data, err := os.ReadFile(testdataPath("shelf.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	doc, err := ParseDocument(data, "shelf.yaml", core.FamilyShelf)
	if err != nil {
		t.Fatalf("ParseDocument() error = %v", err)
	}
	if doc.Priority != -5 {
		t.Errorf("Priority = %d, want -5", doc.Priority)
	}
	if len(doc.Items) != 1 || doc.Items[0].ID != "modeling" {
		t.Fatalf("Items = %+v", doc.Items)
	}
	bevel := doc.Items[0].Children[0]
	if bevel.Icon == nil || *bevel.Icon != "bevel.svg" {
		t.Errorf("bevel icon = %v", bevel.Icon)
	}
	if got := bevel.Children[0].Arguments["segments"]; got != float64(3) {
		t.Errorf("segments = %v (%T), want 3", got, got)
	}
}

func TestParseDocument_InvalidYAML(t *testing.T) {
	_, err := ParseDocument([]byte("menus: [\n  - id: a\n bad"), "bad.yaml", core.FamilyMenu)
	if err == nil || !strings.Contains(err.Error(), "parsing YAML") {
		t.Errorf("error = %v, want YAML parse error", err)
	}
}

func TestLoad_GracefulDegradation(t *testing.T) {
	res, err := Load(context.Background(), Options{
		Family: core.FamilyMenu,
		Paths: []string{
			testdataPath("broken.json"),
			testdataPath("tools.json"),
			testdataPath("legacy.yml"),
			testdataPath("notes.txt"),
		},
	})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if len(res.Documents) != 2 {
		t.Fatalf("Documents = %d, want 2", len(res.Documents))
	}
	if len(res.Diagnostics) != 1 {
		t.Fatalf("Diagnostics = %+v, want 1", res.Diagnostics)
	}
	d := res.Diagnostics[0]
	if d.Code != layout.CodeParseFailed || d.Source != testdataPath("broken.json") {
		t.Errorf("diagnostic = %+v", d)
	}

	// legacy.yml has priority 0 and sorts before tools.json (10).
	if !res.Documents[0].Legacy {
		t.Errorf("first document = %s, want legacy.yml", res.Documents[0].Source)
	}
	if res.Documents[1].Source != testdataPath("tools.json") {
		t.Errorf("second document = %s, want tools.json", res.Documents[1].Source)
	}

	tree := layout.MergeAll(layout.NewTree(core.FamilyMenu, nil), res.Documents...)
	if _, ok := tree.Top("main"); !ok {
		t.Error("main menu missing from merged tree")
	}
	if _, ok := tree.Top(layout.LegacyContainerID); !ok {
		t.Error("legacy container missing from merged tree")
	}
}

func TestLoad_PriorityTiesKeepDiscoveryOrder(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.json", `{"sortOrder":1,"menus":[{"id":"M","label":"A"}]}`)
	writeFile(t, dir, "b.json", `{"sortOrder":1,"menus":[{"id":"M","label":"B"}]}`)
	writeFile(t, dir, "c.json", `{"sortOrder":0,"menus":[{"id":"M","label":"C"}]}`)

	res, err := Load(context.Background(), Options{Family: core.FamilyMenu, Paths: []string{dir}})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	var got []string
	for _, d := range res.Documents {
		got = append(got, filepath.Base(d.Source))
	}
	if strings.Join(got, ",") != "c.json,a.json,b.json" {
		t.Errorf("order = %v, want [c.json a.json b.json]", got)
	}

	tree := layout.MergeAll(layout.NewTree(core.FamilyMenu, nil), res.Documents...)
	m, _ := tree.Top("M")
	if m.Label != "B" {
		t.Errorf("Label = %q, want last-merged %q", m.Label, "B")
	}
}

func TestLoad_FamilySelectsKey(t *testing.T) {
	res, err := Load(context.Background(), Options{
		Family: core.FamilyShelf,
		Paths:  []string{testdataPath("shelf.yaml"), testdataPath("tools.json")},
	})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	// tools.json only carries menus, so it is not a shelf document.
	if len(res.Documents) != 1 || len(res.Diagnostics) != 1 {
		t.Errorf("documents = %d, diagnostics = %d; want 1 and 1", len(res.Documents), len(res.Diagnostics))
	}
}

func TestLoad_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Load(ctx, Options{Family: core.FamilyMenu, Paths: []string{testdataPath("tools.json")}})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Load() error = %v, want context.Canceled", err)
	}
}

func TestLoadDocument_Unreadable(t *testing.T) {
	_, code, err := LoadDocument(filepath.Join(t.TempDir(), "gone.json"), core.FamilyMenu)
	if code != layout.CodeUnreadable {
		t.Errorf("code = %q, want %q", code, layout.CodeUnreadable)
	}
	var pe *ParseError
	if !errors.As(err, &pe) {
		t.Fatalf("error = %v, want *ParseError", err)
	}
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("error should unwrap to os.ErrNotExist: %v", err)
	}
}
