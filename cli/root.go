// Package cli implements the shelfwright command line: building layouts
// against a recording host, validating documents, dispatching stored
// command payloads and inspecting definitions.
package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
)

// NewRootCmd creates the shelfwright root command with every subcommand attached.
func NewRootCmd(version string) *cobra.Command {
	root := &cobra.Command{
		Use:   "shelfwright",
		Short: "Compose menus and shelves from layout documents",
		Long: "shelfwright merges partial menu and shelf layout documents into one tree, " +
			"resolves every leaf through its item type and dispatches the resulting commands.",
		SilenceUsage: true,
		Version:      version,
	}
	root.SetVersionTemplate(fmt.Sprintf("shelfwright version %s\n", version))

	flags := root.PersistentFlags()
	flags.String("config", "", "Path to config file (default: ./shelfwright.yaml, then ~/.shelfwright/config.yaml)")
	flags.Bool("verbose", false, "Enable verbose/debug logging")
	flags.Bool("quiet", false, "Suppress all log output except errors")
	flags.String("otlp-endpoint", "", "Export traces to this OTLP/HTTP endpoint (host:port)")
	flags.Bool("otlp-insecure", true, "Use plain HTTP for the OTLP exporter")

	root.AddCommand(NewBuildCmd())
	root.AddCommand(NewValidateCmd())
	root.AddCommand(NewExecCmd())
	root.AddCommand(NewDefinitionsCmd())
	root.AddCommand(NewTypesCmd())
	return root
}

// newLogger builds the command's logger from --verbose and --quiet.
// Logs go to stderr so stdout stays machine readable.
func newLogger(cmd *cobra.Command) *slog.Logger {
	verbose, _ := cmd.Flags().GetBool("verbose")
	quiet, _ := cmd.Flags().GetBool("quiet")

	level := slog.LevelWarn
	switch {
	case quiet:
		level = slog.LevelError
	case verbose:
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
