package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/eunmann/idxbench/pkg/index"
)

func newIndexesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "indexes",
		Short: "List built-in indexes",
		Long: "List built-in indexes. Any other index can be loaded from a Go plugin\n" +
			"by passing its path to --index; the plugin must export " + index.PluginSymbol + ".",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			for _, name := range index.Names() {
				if _, err := fmt.Fprintln(cmd.OutOrStdout(), name); err != nil {
					return err
				}
			}
			return nil
		},
	}
}
