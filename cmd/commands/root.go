package commands

import (
	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "pipeline",
		Short: "Media processing pipeline worker",
	}

	rootCmd.AddCommand(
		NewWorkerCommand(),
		NewMigrateCommand(),
		NewSelfTestCommand(),
		NewVersionCommand(),
	)

	return rootCmd
}
