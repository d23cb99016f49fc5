package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sliceflow/pipeline/version"
)

// NewVersionCommand creates the version command
func NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			info := version.GetVersionInfo()
			fmt.Printf("pipeline %s (%s) built %s with %s\n",
				info.Version, info.Revision, info.BuiltAt, info.GoVersion)
		},
	}
}
