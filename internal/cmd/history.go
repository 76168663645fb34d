package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/stepline-org/stepline/internal/recorder"
	"github.com/stepline-org/stepline/internal/stringutil"
)

// CmdHistory creates the command that lists recorded step runs.
func CmdHistory() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history [flags]",
		Short: "List recorded step runs",
		Long: `Print the most recent step runs from the step-run store, newest first.

Example:
  stepline history --job nightly --limit 20
`,
		Args: cobra.NoArgs,
	}
	cmd.Flags().StringP("job", "j", "", "only show runs of this job")
	cmd.Flags().IntP("limit", "n", 50, "maximum number of runs to show")
	return NewCommand(cmd, runHistory)
}

func runHistory(ctx *Context, _ []string) error {
	job, _ := ctx.Command.Flags().GetString("job")
	limit, _ := ctx.Command.Flags().GetInt("limit")

	store, err := recorder.Open(ctx, ctx.Config.Store)
	if err != nil {
		return fmt.Errorf("failed to open step-run store: %w", err)
	}
	defer func() {
		_ = store.Close()
	}()

	runs, err := store.Recent(ctx, job, limit)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "RUN ID\tJOB\tSTEP\tSTATUS\tPARTITION\tSTARTED\tENDED\tERROR")
	for _, run := range runs {
		started, ended := "-", "-"
		if run.StartedAt != nil {
			started = stringutil.FormatTime(*run.StartedAt)
		}
		if run.EndedAt != nil {
			ended = stringutil.FormatTime(*run.EndedAt)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			run.RunID, run.JobName, run.StepName, run.Status,
			run.PartitionValue, started, ended, run.ErrorMessage)
	}
	return w.Flush()
}
