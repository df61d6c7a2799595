package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/petal-labs/shelfwright/orchestrator"
	"github.com/petal-labs/shelfwright/tool"
)

// executeCommand runs a fresh root command with the given args and captures stdout/stderr.
func executeCommand(t *testing.T, args ...string) (stdout, stderr string, err error) {
	t.Helper()
	root := NewRootCmd("test")
	var outBuf, errBuf bytes.Buffer
	root.SetOut(&outBuf)
	root.SetErr(&errBuf)
	root.SetArgs(args)
	err = root.Execute()
	return outBuf.String(), errBuf.String(), err
}

func writeTestFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

// testWorkspace lays out menus, shelves, resolvers and definitions next to
// a config file and returns the config path.
func testWorkspace(t *testing.T) string {
	t.Helper()
	for _, env := range []string{"SHELFWRIGHT_MENU_PATH", "SHELFWRIGHT_SHELF_PATH", "SHELFWRIGHT_RESOLVER_PATH",
		"SHELFWRIGHT_DEFINITION_PATH", "SHELFWRIGHT_HISTORY_DSN"} {
		if v, ok := os.LookupEnv(env); ok {
			os.Unsetenv(env)
			t.Cleanup(func() { os.Setenv(env, v) })
		}
	}

	dir := t.TempDir()
	writeTestFile(t, dir, "menus/studio.json", `{"menus":[{"id":"main","label":"Studio","children":[
		{"id":"greet","label":"Greet","arguments":{"name":"ada"}},
		{"type":"separator"},
		{"id":"odd","type":"toolbar_widget"}
	]}]}`)
	writeTestFile(t, dir, "shelves/tools.yaml", "shelves:\n  - id: tools\n    children:\n      - id: greet\n")
	writeTestFile(t, dir, "defs/greet.yaml", "id: greet\nrunner: native\nnative: echo\ndescription: Say hello\n")
	writeTestFile(t, dir, "resolvers/preset.yaml", "type: render_preset\nplugins:\n  draft:\n    label: Draft\n")
	return writeTestFile(t, dir, "shelfwright.yaml", `
menu_paths: [menus]
shelf_paths: [shelves]
resolver_paths: [resolvers]
definition_paths: [defs]
status_label: shelfwright test
history_dsn: history.db
`)
}

func exitCode(err error) int {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return -1
}

func TestRoot_Help(t *testing.T) {
	stdout, _, err := executeCommand(t, "--help")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, sub := range []string{"build", "validate", "exec", "definitions", "types"} {
		if !strings.Contains(stdout, sub) {
			t.Errorf("help should list %q:\n%s", sub, stdout)
		}
	}
}

func TestBuild_Text(t *testing.T) {
	cfg := testWorkspace(t)
	stdout, stderr, err := executeCommand(t, "build", "--config", cfg)
	if err != nil {
		t.Fatalf("build error = %v\nstderr: %s", err, stderr)
	}
	for _, want := range []string{
		`menu main "Studio"`,
		`greet "Greet" (definition -> greet)`,
		"---",
		"[shelfwright test]",
		"shelf tools",
	} {
		if !strings.Contains(stdout, want) {
			t.Errorf("stdout missing %q:\n%s", want, stdout)
		}
	}
	if strings.Contains(stdout, "odd") {
		t.Errorf("unknown item type leaked into output:\n%s", stdout)
	}
	if !strings.Contains(stderr, "menu: 1 document, 1 leaf built, 1 skipped") {
		t.Errorf("stderr summary missing:\n%s", stderr)
	}
}

func TestBuild_JSONAndExecRoundTrip(t *testing.T) {
	cfg := testWorkspace(t)
	stdout, _, err := executeCommand(t, "build", "--config", cfg, "--format", "json")
	if err != nil {
		t.Fatalf("build error = %v", err)
	}

	var out buildOutput
	if err := json.Unmarshal([]byte(stdout), &out); err != nil {
		t.Fatalf("invalid JSON: %v\n%s", err, stdout)
	}
	if out.Report.RunID == "" {
		t.Error("report should carry a run id")
	}

	var payload string
	for _, ins := range out.Instructions {
		if ins.Op == orchestrator.OpItem && ins.ID == "greet" && ins.Command != nil {
			payload = ins.Command.Payload
			if ins.Attrs["tooltip"] != "Say hello" {
				t.Errorf("tooltip = %v, want definition description", ins.Attrs["tooltip"])
			}
			break
		}
	}
	if payload == "" {
		t.Fatal("no payload for greet")
	}

	stdout, _, err = executeCommand(t, "exec", "--config", cfg, payload)
	if err != nil {
		t.Fatalf("exec error = %v", err)
	}
	var outputs map[string]any
	if err := json.Unmarshal([]byte(stdout), &outputs); err != nil {
		t.Fatalf("invalid exec output: %v\n%s", err, stdout)
	}
	if outputs["name"] != "ada" {
		t.Errorf("outputs = %v, want echoed arguments", outputs)
	}

	stdout, _, err = executeCommand(t, "definitions", "history", "--config", cfg)
	if err != nil {
		t.Fatalf("history error = %v", err)
	}
	if !strings.Contains(stdout, "greet") || !strings.Contains(stdout, "ok") {
		t.Errorf("history should list the execution:\n%s", stdout)
	}
}

func TestBuild_Tree(t *testing.T) {
	cfg := testWorkspace(t)
	stdout, _, err := executeCommand(t, "build", "--config", cfg, "--format", "tree")
	if err != nil {
		t.Fatalf("build error = %v", err)
	}
	if !strings.Contains(stdout, "# menu\nmenu main\n") || !strings.Contains(stdout, "label shelfwright_status") {
		t.Errorf("tree output:\n%s", stdout)
	}
}

func TestBuild_UnknownFormat(t *testing.T) {
	_, _, err := executeCommand(t, "build", "--format", "xml")
	if exitCode(err) != exitInputParse {
		t.Errorf("exit code = %d, want %d (err: %v)", exitCode(err), exitInputParse, err)
	}
}

func TestBuild_ConfigNotFound(t *testing.T) {
	_, _, err := executeCommand(t, "build", "--config", filepath.Join(t.TempDir(), "missing.yaml"))
	if exitCode(err) != exitFileNotFound {
		t.Errorf("exit code = %d, want %d (err: %v)", exitCode(err), exitFileNotFound, err)
	}
}

func TestExec_PluginFlags(t *testing.T) {
	cfg := testWorkspace(t)
	stdout, _, err := executeCommand(t, "exec", "--config", cfg, "--plugin", "greet", "--arg", "count=3", "--arg", "loud=true")
	if err != nil {
		t.Fatalf("exec error = %v", err)
	}
	var outputs map[string]any
	if err := json.Unmarshal([]byte(stdout), &outputs); err != nil {
		t.Fatal(err)
	}
	if outputs["count"] != float64(3) || outputs["loud"] != true {
		t.Errorf("outputs = %v", outputs)
	}
}

func TestExec_Errors(t *testing.T) {
	cfg := testWorkspace(t)
	valid, _ := tool.EncodePayload("missing", nil)

	tests := []struct {
		name string
		args []string
		code int
	}{
		{"no source", []string{"exec", "--config", cfg}, exitInputParse},
		{"two sources", []string{"exec", "--config", cfg, "--plugin", "greet", valid}, exitInputParse},
		{"garbage payload", []string{"exec", "--config", cfg, "{nope"}, exitInputParse},
		{"bad arg", []string{"exec", "--config", cfg, "--plugin", "greet", "--arg", "novalue"}, exitInputParse},
		{"unknown definition", []string{"exec", "--config", cfg, valid}, exitRuntime},
		{"missing payload file", []string{"exec", "--config", cfg, "--payload-file", filepath.Join(t.TempDir(), "p.json")}, exitFileNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := executeCommand(t, tt.args...)
			if got := exitCode(err); got != tt.code {
				t.Errorf("exit code = %d, want %d (err: %v)", got, tt.code, err)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	cfg := testWorkspace(t)
	stdout, _, err := executeCommand(t, "validate", "--config", cfg)
	if err != nil {
		t.Fatalf("validate error = %v\n%s", err, stdout)
	}
	if !strings.Contains(stdout, "Valid!") {
		t.Errorf("stdout = %s", stdout)
	}
}

func TestValidate_ReportsProblems(t *testing.T) {
	dir := t.TempDir()
	bad := writeTestFile(t, dir, "bad.json", `{"menus":[{"id":"m","children":[{"id":"a","kind":"toolbar"},{"id":"b","sortOrder":-2}]}]}`)
	broken := writeTestFile(t, dir, "broken.json", `{"menus":`)

	stdout, _, err := executeCommand(t, "validate", "--family", "menu", bad, broken)
	if exitCode(err) != exitValidation {
		t.Fatalf("exit code = %d, want %d (err: %v)", exitCode(err), exitValidation, err)
	}
	for _, want := range []string{"MG-001", "DC-002", "LD-001", "2 errors, 1 warning"} {
		if !strings.Contains(stdout, want) {
			t.Errorf("stdout missing %q:\n%s", want, stdout)
		}
	}
}

func TestValidate_StrictAndJSON(t *testing.T) {
	dir := t.TempDir()
	warn := writeTestFile(t, dir, "warn.json", `{"menus":[{"id":"m","sortOrder":-1}]}`)

	stdout, _, err := executeCommand(t, "validate", "--family", "menu", "--format", "json", warn)
	if err != nil {
		t.Fatalf("non-strict validate error = %v", err)
	}
	var diags []map[string]any
	if err := json.Unmarshal([]byte(stdout), &diags); err != nil || len(diags) != 1 {
		t.Fatalf("diagnostics = %s (err %v)", stdout, err)
	}

	_, _, err = executeCommand(t, "validate", "--family", "menu", "--strict", warn)
	if exitCode(err) != exitValidation {
		t.Errorf("strict exit code = %d, want %d", exitCode(err), exitValidation)
	}
}

func TestValidate_ArgumentErrors(t *testing.T) {
	_, _, err := executeCommand(t, "validate", "some.json")
	if exitCode(err) != exitInputParse {
		t.Errorf("paths without --family: exit code = %d", exitCode(err))
	}
	_, _, err = executeCommand(t, "validate", "--family", "toolbar")
	if exitCode(err) != exitInputParse {
		t.Errorf("unknown family: exit code = %d", exitCode(err))
	}
	_, _, err = executeCommand(t, "validate", "--family", "menu", filepath.Join(t.TempDir(), "gone.json"))
	if exitCode(err) != exitFileNotFound {
		t.Errorf("missing file: exit code = %d", exitCode(err))
	}
}

func TestDefinitionsListAndTypes(t *testing.T) {
	cfg := testWorkspace(t)
	stdout, _, err := executeCommand(t, "defs", "list", "--config", cfg)
	if err != nil {
		t.Fatalf("defs list error = %v", err)
	}
	if !strings.Contains(stdout, "greet") || !strings.Contains(stdout, "Say hello") {
		t.Errorf("defs list:\n%s", stdout)
	}

	stdout, _, err = executeCommand(t, "types", "--config", cfg)
	if err != nil {
		t.Fatalf("types error = %v", err)
	}
	if !strings.Contains(stdout, "definition") {
		t.Errorf("types:\n%s", stdout)
	}
	if !strings.Contains(stdout, "render_preset") || !strings.Contains(stdout, "draft") {
		t.Errorf("types should list manifest resolvers:\n%s", stdout)
	}
}

func TestParseArgs(t *testing.T) {
	got, err := parseArgs([]string{"n=1.5", "flag=false", "name=t", "empty="})
	if err != nil {
		t.Fatal(err)
	}
	if got["n"] != 1.5 || got["flag"] != false || got["name"] != "t" || got["empty"] != "" {
		t.Errorf("parseArgs = %v", got)
	}
}

func TestCode(t *testing.T) {
	if Code(nil) != 0 || Code(errors.New("x")) != 1 || Code(exitError(exitConfig, "bad")) != exitConfig {
		t.Error("Code mapping mismatch")
	}
}
