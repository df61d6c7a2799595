package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/petal-labs/shelfwright/core"
	"github.com/petal-labs/shelfwright/layout"
	"github.com/petal-labs/shelfwright/orchestrator"
)

// NewBuildCmd creates the "build" subcommand.
func NewBuildCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "build",
		Short: "Build every layout family and print the host instructions",
		Args:  cobra.NoArgs,
		RunE:  runBuild,
	}
	cmd.Flags().String("format", "text", "Output format: text | json | tree")
	cmd.Flags().Bool("events", false, "Stream orchestrator events to stderr as JSON lines")
	return cmd
}

// buildOutput is the JSON shape printed by "build --format json".
type buildOutput struct {
	Report       orchestrator.Report        `json:"report"`
	Instructions []orchestrator.Instruction `json:"instructions"`
}

func runBuild(cmd *cobra.Command, _ []string) error {
	format, _ := cmd.Flags().GetString("format")
	switch format {
	case "text", "json", "tree":
	default:
		return exitError(exitInputParse, "unknown format %q (use text, json, or tree)", format)
	}

	var events orchestrator.EventHandler
	if stream, _ := cmd.Flags().GetBool("events"); stream {
		events = jsonEventHandler(cmd.ErrOrStderr())
	}

	s, err := openSession(cmd, events)
	if err != nil {
		return err
	}
	ctx := commandContext(cmd)
	defer s.close(ctx)

	host := &orchestrator.RecordingHost{}
	report, err := s.orch.Build(ctx, host)
	if err != nil {
		return exitError(exitRuntime, "build failed: %v", err)
	}

	out := cmd.OutOrStdout()
	switch format {
	case "json":
		instructions := host.Instructions()
		if instructions == nil {
			instructions = []orchestrator.Instruction{}
		}
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(buildOutput{Report: report, Instructions: instructions})
	case "tree":
		for _, family := range core.Families {
			tree, ok := s.orch.Tree(family)
			if !ok {
				continue
			}
			fmt.Fprintf(out, "# %s\n%s", family, layout.Dump(tree.Root))
		}
	default:
		printInstructions(out, host.Instructions())
	}

	for _, fr := range report.Families {
		fmt.Fprintf(cmd.ErrOrStderr(), "%s: %d %s, %d %s built, %d skipped\n",
			fr.Family,
			len(fr.Documents), pluralize("document", len(fr.Documents)),
			fr.Leaves, pluralize("leaf", fr.Leaves),
			fr.SkippedLeaves)
	}
	return nil
}

// printInstructions writes one indented line per instruction.
func printInstructions(w io.Writer, instructions []orchestrator.Instruction) {
	for _, ins := range instructions {
		indent := strings.Repeat("  ", ins.Depth)
		switch ins.Op {
		case orchestrator.OpOpen:
			fmt.Fprintf(w, "%s%s %s %q\n", indent, ins.Kind, ins.ID, ins.Attrs.String(core.AttrLabel))
		case orchestrator.OpClose:
			// Indentation already shows nesting.
		case orchestrator.OpSeparator:
			fmt.Fprintf(w, "%s---\n", indent)
		case orchestrator.OpLabel:
			fmt.Fprintf(w, "%s[%s]\n", indent, ins.Attrs.String(core.AttrLabel))
		case orchestrator.OpItem:
			plugin := "-"
			if ins.Command != nil {
				plugin = ins.Command.PluginID
			}
			fmt.Fprintf(w, "%s%s %q (%s -> %s)\n", indent, ins.ID, ins.Attrs.String(core.AttrLabel), ins.Type, plugin)
		}
	}
}

// jsonEventHandler writes each event as one JSON line.
func jsonEventHandler(w io.Writer) orchestrator.EventHandler {
	enc := json.NewEncoder(w)
	return func(e orchestrator.Event) {
		_ = enc.Encode(map[string]any{
			"kind":     e.Kind,
			"run_id":   e.RunID,
			"family":   e.Family,
			"node_id":  e.NodeID,
			"time":     e.Time,
			"elapsed":  e.Elapsed.String(),
			"payload":  e.Payload,
			"trace_id": e.TraceID,
		})
	}
}

func pluralize(word string, n int) string {
	if n == 1 {
		return word
	}
	if strings.HasSuffix(word, "f") {
		return strings.TrimSuffix(word, "f") + "ves"
	}
	return word + "s"
}
