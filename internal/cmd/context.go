// Package cmd implements the stepline subcommands. Each command loads
// the configuration, builds the logger and runs with both attached to
// the context.
package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/stepline-org/stepline/internal/config"
	"github.com/stepline-org/stepline/internal/logger"
)

// Context carries the per-invocation dependencies assembled before a
// command body runs.
type Context struct {
	context.Context

	Config  *config.Config
	Logger  logger.Logger
	Command *cobra.Command
}

// NewCommand wraps a cobra command so its body receives a fully set up
// Context. Usage help is suppressed for runtime errors.
func NewCommand(cmd *cobra.Command, run func(ctx *Context, args []string) error) *cobra.Command {
	cmd.SilenceUsage = true
	cmd.RunE = func(c *cobra.Command, args []string) error {
		ctx, err := setup(c)
		if err != nil {
			return err
		}
		return run(ctx, args)
	}
	return cmd
}

func setup(cmd *cobra.Command) (*Context, error) {
	var opts []config.LoaderOption
	if cfgFile, _ := cmd.Flags().GetString("config"); cfgFile != "" {
		opts = append(opts, config.WithConfigFile(cfgFile))
	}
	cfg, err := config.Load(opts...)
	if err != nil {
		return nil, err
	}

	lg := logger.NewLogger(loggerOptions(cfg)...)

	for _, warning := range cfg.Warnings {
		lg.Warn(warning)
	}

	return &Context{
		Context: logger.WithLogger(cmd.Context(), lg),
		Config:  cfg,
		Logger:  lg,
		Command: cmd,
	}, nil
}

func loggerOptions(cfg *config.Config) []logger.Option {
	opts := []logger.Option{logger.WithFormat(cfg.Global.LogFormat)}
	if cfg.Global.Debug {
		opts = append(opts, logger.WithDebug())
	}
	if cfg.Global.Quiet {
		opts = append(opts, logger.WithQuiet())
	}
	return opts
}
