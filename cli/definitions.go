package cli

import (
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/petal-labs/shelfwright/tool"
)

// NewDefinitionsCmd creates the "definitions" command group.
func NewDefinitionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "definitions",
		Aliases: []string{"defs"},
		Short:   "Inspect command definitions",
	}
	cmd.AddCommand(newDefinitionsListCmd())
	cmd.AddCommand(newDefinitionsHistoryCmd())
	return cmd
}

func newDefinitionsListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List resident definitions",
		Args:  cobra.NoArgs,
		RunE:  runDefinitionsList,
	}
	cmd.Flags().Bool("json", false, "Print manifests as JSON")
	return cmd
}

func runDefinitionsList(cmd *cobra.Command, _ []string) error {
	s, err := openSession(cmd, nil)
	if err != nil {
		return err
	}
	defer s.close(commandContext(cmd))

	manifests := s.orch.Definitions().Manifests()
	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		if manifests == nil {
			manifests = []tool.Manifest{}
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(manifests)
	}

	writer := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 2, 2, ' ', 0)
	fmt.Fprintln(writer, "ID\tRUNNER\tSOURCE\tDESCRIPTION")
	for _, m := range manifests {
		fmt.Fprintf(writer, "%s\t%s\t%s\t%s\n", m.ID, m.Runner, dash(m.Source), dash(m.Description))
	}
	return writer.Flush()
}

func newDefinitionsHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history [plugin-id]",
		Short: "Show recorded executions, newest first",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runDefinitionsHistory,
	}
	cmd.Flags().Int("limit", 20, "Maximum records to show (0 for all)")
	cmd.Flags().String("history-dsn", "", "SQLite history path (default: settings, then ~/.shelfwright/history.db)")
	return cmd
}

func runDefinitionsHistory(cmd *cobra.Command, args []string) error {
	limit, _ := cmd.Flags().GetInt("limit")
	dsn, err := resolveHistoryDSN(cmd)
	if err != nil {
		return err
	}

	history, err := tool.NewSQLiteHistory(dsn)
	if err != nil {
		return exitError(exitRuntime, "opening history: %v", err)
	}
	defer func() {
		_ = history.Close()
	}()

	pluginID := ""
	if len(args) == 1 {
		pluginID = args[0]
	}
	records, err := history.List(commandContext(cmd), pluginID, limit)
	if err != nil {
		return exitError(exitRuntime, "listing history: %v", err)
	}

	writer := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 2, 2, ' ', 0)
	fmt.Fprintln(writer, "STARTED\tPLUGIN\tDURATION\tRESULT")
	for _, rec := range records {
		result := "ok"
		if !rec.Success {
			result = strings.TrimSpace(rec.ErrorCode + " " + rec.Error)
		}
		fmt.Fprintf(writer, "%s\t%s\t%s\t%s\n",
			rec.StartedAt.Local().Format(time.DateTime),
			rec.PluginID,
			rec.Duration.Round(time.Microsecond),
			result)
	}
	return writer.Flush()
}

func resolveHistoryDSN(cmd *cobra.Command) (string, error) {
	dsn, _ := cmd.Flags().GetString("history-dsn")
	if dsn = strings.TrimSpace(dsn); dsn != "" {
		return dsn, nil
	}
	settings, _, err := loadSettings(cmd)
	if err != nil {
		return "", err
	}
	if settings.HistoryDSN != "" {
		return settings.HistoryDSN, nil
	}
	defaultPath, err := tool.DefaultSQLiteHistoryPath()
	if err != nil {
		return "", fmt.Errorf("resolving default history path: %w", err)
	}
	return defaultPath, nil
}

func dash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}
