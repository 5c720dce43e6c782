// Package cli implements the idxbench command line.
package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/eunmann/idxbench/pkg/logging"
)

// Run executes the CLI with the given arguments. SIGINT and SIGTERM cancel
// the running phase; the partial report is still written.
func Run(args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := NewRootCommand()
	root.SetArgs(args)
	return root.ExecuteContext(ctx)
}

// NewRootCommand builds the idxbench command tree.
func NewRootCommand() *cobra.Command {
	var debug, human bool

	root := &cobra.Command{
		Use:           "idxbench",
		Short:         "Micro-benchmark key-value indexes",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(*cobra.Command, []string) {
			logging.Init(debug, human)
		},
	}
	root.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
	root.PersistentFlags().BoolVar(&human, "human", false, "human-readable console logs")

	root.AddCommand(newRunCommand(), newEnvCommand(), newIndexesCommand())
	return root
}
