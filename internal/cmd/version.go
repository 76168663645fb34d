package cmd

import (
	"github.com/spf13/cobra"

	"github.com/stepline-org/stepline/internal/build"
)

// CmdVersion creates the command that prints the binary version.
func CmdVersion() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Display the binary version",
		Run: func(_ *cobra.Command, _ []string) {
			println(build.Version)
		},
	}
}
