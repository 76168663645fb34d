package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/stepline-org/stepline/internal/action"
	"github.com/stepline-org/stepline/internal/digraph"
	"github.com/stepline-org/stepline/internal/errs"
	"github.com/stepline-org/stepline/internal/logger"
	"github.com/stepline-org/stepline/internal/logger/tag"
)

// CmdValidate creates the command that checks a pipeline without
// running it.
func CmdValidate() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <pipeline file>",
		Short: "Check a pipeline definition without running it",
		Long: `Parse the pipeline file, build its dependency graph and resolve every
step action. Cycles, duplicate or self dependencies, unknown steps and
unregistered actions are reported as errors.`,
		Args: cobra.ExactArgs(1),
	}
	return NewCommand(cmd, runValidate)
}

func runValidate(ctx *Context, args []string) error {
	d, err := digraph.Load(args[0])
	if err != nil {
		return fmt.Errorf("pipeline is invalid: %w", err)
	}

	registry := action.Builtin()
	var list errs.ErrorList
	for _, step := range d.Steps() {
		if _, err := registry.Resolve(step.Action); err != nil {
			list.Add(&errs.StepError{Step: step.Name, Err: err})
		}
	}
	if len(list) > 0 {
		return fmt.Errorf("pipeline is invalid: %w", list)
	}

	logger.Info(ctx, "Pipeline is valid",
		tag.Job(d.Name),
		"steps", d.Len(),
		"edges", d.EdgeCount(),
	)
	return nil
}
