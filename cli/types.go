package cli

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

// NewTypesCmd creates the "types" subcommand.
func NewTypesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "types",
		Short: "List registered item types and the plugin ids they own",
		Args:  cobra.NoArgs,
		RunE:  runTypes,
	}
}

func runTypes(cmd *cobra.Command, _ []string) error {
	s, err := openSession(cmd, nil)
	if err != nil {
		return err
	}
	defer s.close(commandContext(cmd))

	resolvers := s.orch.Resolvers()
	writer := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 2, 2, ' ', 0)
	fmt.Fprintln(writer, "TYPE\tPLUGINS")
	for _, itemType := range resolvers.Types() {
		res, ok := resolvers.Get(itemType)
		if !ok {
			continue
		}
		fmt.Fprintf(writer, "%s\t%s\n", itemType, dash(strings.Join(res.OwnedPluginIDs(), ",")))
	}
	return writer.Flush()
}
