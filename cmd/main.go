package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/stepline-org/stepline/internal/build"
	"github.com/stepline-org/stepline/internal/cmd"
	"github.com/stepline-org/stepline/internal/errs"

	// Register the step-run store drivers.
	_ "github.com/stepline-org/stepline/internal/recorder/drivers/postgres"
	_ "github.com/stepline-org/stepline/internal/recorder/drivers/sqlite"
)

var rootCmd = &cobra.Command{
	Use:   build.Slug,
	Short: "Stepline is a lightweight pipeline runner",
	Long: `Stepline is a lightweight pipeline runner.

It executes YAML-defined steps in dependency order with bounded
concurrency and records every step run so job history stays queryable.
`,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(errs.ExitCode(err))
	}
}

func init() {
	rootCmd.PersistentFlags().String("config", "",
		"config file (default is $HOME/.config/stepline/config.yaml)")

	rootCmd.AddCommand(cmd.CmdStart())
	rootCmd.AddCommand(cmd.CmdValidate())
	rootCmd.AddCommand(cmd.CmdHistory())
	rootCmd.AddCommand(cmd.CmdPrune())
	rootCmd.AddCommand(cmd.CmdVersion())
}
