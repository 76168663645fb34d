package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/stepline-org/stepline/internal/action"
	"github.com/stepline-org/stepline/internal/agent"
	"github.com/stepline-org/stepline/internal/digraph"
	"github.com/stepline-org/stepline/internal/logger"
	"github.com/stepline-org/stepline/internal/logger/tag"
)

// CmdStart creates the command that runs a pipeline.
func CmdStart() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "start [flags] <pipeline file>",
		Short: "Run a pipeline",
		Long: `Execute every step of a pipeline definition in dependency order.

The partition value is injected into every step invocation and recorded
with each step run. The process exits with the code derived from the
worst step failure, or zero on success.

Example:
  stepline start nightly.yaml --partition 2024-01-01
`,
		Args: cobra.ExactArgs(1),
	}
	cmd.Flags().StringP("partition", "p", "", "partition value injected into every step")
	return NewCommand(cmd, runStart)
}

func runStart(ctx *Context, args []string) error {
	exitCode, err := executeStart(ctx, args)
	if err != nil {
		return err
	}
	if exitCode != 0 {
		// Exit only after executeStart has returned, so its deferred
		// cleanup (the job log file) has already run.
		os.Exit(exitCode)
	}
	return nil
}

func executeStart(ctx *Context, args []string) (int, error) {
	partition, _ := ctx.Command.Flags().GetString("partition")

	d, err := digraph.Load(args[0])
	if err != nil {
		return 0, fmt.Errorf("failed to load pipeline: %w", err)
	}

	runCtx := context.Context(ctx)
	var agentOpts []agent.Option

	logFile, logPath, err := openLogFile(ctx.Config.Paths.LogDir, d.Name)
	if err != nil {
		logger.Warn(ctx, "Failed to open job log file, logging to console only", tag.Error(err))
	} else {
		defer func() {
			_ = logFile.Close()
		}()
		// Fan the logger out to the job log file for the rest of the run.
		opts := append(loggerOptions(ctx.Config), logger.WithWriter(logFile))
		runCtx = logger.WithLogger(runCtx, logger.NewLogger(opts...))
		agentOpts = append(agentOpts, agent.WithLogPath(logPath))
	}

	report, err := agent.New(d, action.Builtin(), ctx.Config, agentOpts...).Run(runCtx, partition)
	if err != nil {
		return 0, err
	}
	if report.ExitCode != 0 {
		logger.Error(runCtx, "Job finished with failures",
			tag.Job(d.Name), tag.ExitCode(report.ExitCode))
	}
	return report.ExitCode, nil
}

// openLogFile creates the per-run job log file under logDir.
func openLogFile(logDir, jobName string) (*os.File, string, error) {
	if err := os.MkdirAll(logDir, 0750); err != nil {
		return nil, "", err
	}
	path := filepath.Join(logDir,
		fmt.Sprintf("%s.%s.log", jobName, time.Now().Format("20060102_150405")))
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0640)
	if err != nil {
		return nil, "", err
	}
	return f, path, nil
}
