package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/petal-labs/shelfwright/core"
	"github.com/petal-labs/shelfwright/layout"
	"github.com/petal-labs/shelfwright/loader"
)

// NewValidateCmd creates the "validate" subcommand.
func NewValidateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate [path...]",
		Short: "Validate layout documents without building",
		Long: "Validate loads the layout documents on the configured search paths, " +
			"or the given files and directories, and reports authoring problems.",
		RunE: runValidate,
	}

	cmd.Flags().String("format", "text", "Output format: text | json")
	cmd.Flags().Bool("strict", false, "Treat warnings as errors")
	cmd.Flags().String("family", "all", "Layout family: menu | shelf | all")

	return cmd
}

func runValidate(cmd *cobra.Command, args []string) error {
	format, _ := cmd.Flags().GetString("format")
	strict, _ := cmd.Flags().GetBool("strict")
	familyFlag, _ := cmd.Flags().GetString("family")

	families, err := selectFamilies(familyFlag)
	if err != nil {
		return exitError(exitInputParse, "%v", err)
	}
	if len(args) > 0 && len(families) > 1 {
		return exitError(exitInputParse, "--family menu or --family shelf is required when paths are given")
	}
	for _, p := range args {
		if _, err := os.Stat(p); errors.Is(err, os.ErrNotExist) {
			return exitError(exitFileNotFound, "file not found: %s", p)
		}
	}

	settings, _, err := loadSettings(cmd)
	if err != nil {
		return err
	}
	logger := newLogger(cmd)
	ctx := commandContext(cmd)

	var diags []layout.Diagnostic
	for _, family := range families {
		paths := settings.Paths(family)
		if len(args) > 0 {
			paths = args
		}
		res, err := loader.Load(ctx, loader.Options{Family: family, Paths: paths, Logger: logger})
		if err != nil {
			return exitError(exitRuntime, "loading %s documents: %v", family, err)
		}
		diags = append(diags, res.Diagnostics...)
		for _, doc := range res.Documents {
			diags = append(diags, doc.Validate()...)
		}
	}

	printValidateDiagnostics(cmd.OutOrStdout(), diags, format)

	if layout.HasErrors(diags) || (strict && len(layout.Warnings(diags)) > 0) {
		return exitError(exitValidation, "validation failed")
	}
	return nil
}

func selectFamilies(flag string) ([]core.Family, error) {
	switch strings.ToLower(strings.TrimSpace(flag)) {
	case "", "all":
		return core.Families, nil
	case string(core.FamilyMenu):
		return []core.Family{core.FamilyMenu}, nil
	case string(core.FamilyShelf):
		return []core.Family{core.FamilyShelf}, nil
	}
	return nil, fmt.Errorf("unknown family %q (use menu, shelf, or all)", flag)
}

// printValidateDiagnostics writes diagnostics to the writer in the requested
// format, followed by a summary line (for text format).
func printValidateDiagnostics(w io.Writer, diags []layout.Diagnostic, format string) {
	if format == "json" {
		printDiagnosticsJSON(w, diags)
		return
	}
	printDiagnosticsText(w, diags)
}

func printDiagnosticsText(w io.Writer, diags []layout.Diagnostic) {
	for _, d := range diags {
		sev := strings.ToUpper(d.Severity)
		where := d.Source
		if d.Path != "" {
			where += ":" + d.Path
		}
		if where != "" {
			fmt.Fprintf(w, "%s [%s]: %s (at %s)\n", sev, d.Code, d.Message, where)
		} else {
			fmt.Fprintf(w, "%s [%s]: %s\n", sev, d.Code, d.Message)
		}
	}

	errs := layout.Errors(diags)
	warns := layout.Warnings(diags)

	switch {
	case len(errs) == 0 && len(warns) == 0:
		fmt.Fprintln(w, "Valid!")
	case len(errs) == 0 && len(warns) > 0:
		fmt.Fprintf(w, "\nValid! (%d %s)\n", len(warns), pluralize("warning", len(warns)))
	default:
		fmt.Fprintf(w, "\n%d %s, %d %s\n",
			len(errs), pluralize("error", len(errs)),
			len(warns), pluralize("warning", len(warns)))
	}
}

func printDiagnosticsJSON(w io.Writer, diags []layout.Diagnostic) {
	// Output an empty array rather than null when there are no diagnostics.
	if diags == nil {
		diags = []layout.Diagnostic{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(diags)
}
