package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/stepline-org/stepline/internal/logger"
	"github.com/stepline-org/stepline/internal/recorder"
)

// CmdPrune creates the command that removes expired step-run rows.
func CmdPrune() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete step runs whose retention period has passed",
		Args:  cobra.NoArgs,
	}
	return NewCommand(cmd, runPrune)
}

func runPrune(ctx *Context, _ []string) error {
	store, err := recorder.Open(ctx, ctx.Config.Store)
	if err != nil {
		return fmt.Errorf("failed to open step-run store: %w", err)
	}
	defer func() {
		_ = store.Close()
	}()

	removed, err := store.Prune(ctx, time.Now())
	if err != nil {
		return err
	}
	logger.Info(ctx, "Pruned expired step runs", "removed", removed)
	return nil
}
