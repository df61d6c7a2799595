package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/petal-labs/shelfwright/tool"
)

// NewExecCmd creates the "exec" subcommand.
func NewExecCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "exec [payload]",
		Short: "Dispatch a stored command payload",
		Long: "Exec decodes a command payload as stored by a host and runs the definition it names. " +
			"Pass the payload as an argument, with --payload-file (use - for stdin), " +
			"or build one with --plugin and --arg.",
		Args: cobra.MaximumNArgs(1),
		RunE: runExec,
	}
	cmd.Flags().String("payload-file", "", "Read the payload from a file (- for stdin)")
	cmd.Flags().String("plugin", "", "Plugin id to invoke instead of a payload")
	cmd.Flags().StringArray("arg", nil, "Argument KEY=VALUE for --plugin (repeatable)")
	return cmd
}

func runExec(cmd *cobra.Command, args []string) error {
	payload, err := resolvePayload(cmd, args)
	if err != nil {
		return err
	}

	s, err := openSession(cmd, nil)
	if err != nil {
		return err
	}
	ctx := commandContext(cmd)
	defer s.close(ctx)

	outputs, err := s.orch.Execute(ctx, payload)
	if err != nil {
		if errors.Is(err, tool.ErrInvalidPayload) {
			return exitError(exitInputParse, "%v", err)
		}
		return exitError(exitRuntime, "execution failed: %v", err)
	}

	if outputs == nil {
		outputs = map[string]any{}
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(outputs)
}

// resolvePayload returns the payload from the argument, --payload-file or
// --plugin/--arg. Exactly one source must be given.
func resolvePayload(cmd *cobra.Command, args []string) (string, error) {
	file, _ := cmd.Flags().GetString("payload-file")
	plugin, _ := cmd.Flags().GetString("plugin")
	kvs, _ := cmd.Flags().GetStringArray("arg")

	sources := 0
	for _, set := range []bool{len(args) == 1, file != "", plugin != ""} {
		if set {
			sources++
		}
	}
	if sources != 1 {
		return "", exitError(exitInputParse, "exactly one of a payload argument, --payload-file or --plugin is required")
	}
	if len(kvs) > 0 && plugin == "" {
		return "", exitError(exitInputParse, "--arg requires --plugin")
	}

	switch {
	case len(args) == 1:
		return args[0], nil
	case file != "":
		var (
			data []byte
			err  error
		)
		if file == "-" {
			data, err = io.ReadAll(cmd.InOrStdin())
		} else {
			data, err = os.ReadFile(file)
		}
		if errors.Is(err, os.ErrNotExist) {
			return "", exitError(exitFileNotFound, "file not found: %s", file)
		}
		if err != nil {
			return "", fmt.Errorf("reading payload: %w", err)
		}
		return strings.TrimSpace(string(data)), nil
	}

	arguments, err := parseArgs(kvs)
	if err != nil {
		return "", exitError(exitInputParse, "%v", err)
	}
	payload, err := tool.EncodePayload(plugin, arguments)
	if err != nil {
		return "", exitError(exitInputParse, "%v", err)
	}
	return payload, nil
}

// parseArgs turns KEY=VALUE pairs into arguments. "true", "false" and
// numbers keep their type; everything else is a string.
func parseArgs(kvs []string) (map[string]any, error) {
	out := make(map[string]any, len(kvs))
	for _, kv := range kvs {
		key, value, ok := strings.Cut(kv, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid --arg %q (want KEY=VALUE)", kv)
		}
		switch value {
		case "true":
			out[key] = true
		case "false":
			out[key] = false
		default:
			if f, err := strconv.ParseFloat(value, 64); err == nil {
				out[key] = f
			} else {
				out[key] = value
			}
		}
	}
	return out, nil
}
