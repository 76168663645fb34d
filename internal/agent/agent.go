// Package agent drives a single job run: it owns the step-run store
// connection for the duration of the run, assembles the scheduler from
// the configuration and reports the outcome.
package agent

import (
	"context"

	"github.com/stepline-org/stepline/internal/action"
	"github.com/stepline-org/stepline/internal/config"
	"github.com/stepline-org/stepline/internal/digraph"
	"github.com/stepline-org/stepline/internal/logger"
	"github.com/stepline-org/stepline/internal/logger/tag"
	"github.com/stepline-org/stepline/internal/policy"
	"github.com/stepline-org/stepline/internal/recorder"
	"github.com/stepline-org/stepline/internal/scheduler"
)

// Agent runs one pipeline.
type Agent struct {
	dag      *digraph.DAG
	registry *action.Registry
	cfg      *config.Config
	logPath  string
}

// Option configures an Agent.
type Option func(*Agent)

// WithLogPath records the job log file location on every step run.
func WithLogPath(path string) Option {
	return func(a *Agent) {
		a.logPath = path
	}
}

// New creates an agent for the given pipeline.
func New(dag *digraph.DAG, registry *action.Registry, cfg *config.Config, opts ...Option) *Agent {
	a := &Agent{dag: dag, registry: registry, cfg: cfg}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Run executes the pipeline for the given partition value and returns
// the job report. The store connection is scoped to this call: opened
// before the first step and released when the run finishes. A store
// that cannot be opened downgrades the run to unrecorded instead of
// failing it.
func (a *Agent) Run(ctx context.Context, partitionValue string) (*scheduler.JobReport, error) {
	pol, err := policy.New(a.cfg.Runner.ErrorPolicy)
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "Job started",
		tag.Job(a.dag.Name),
		tag.Partition(partitionValue),
		"steps", a.dag.Len(),
		"workers", a.cfg.Runner.Workers,
		"policy", a.cfg.Runner.ErrorPolicy,
	)

	store, err := recorder.Open(ctx, a.cfg.Store)
	if err != nil {
		logger.Error(ctx, "Step-run store unavailable, running unrecorded", tag.Error(err))
		store = nil
	}
	if store != nil {
		defer func() {
			if err := store.Close(); err != nil {
				logger.Warn(ctx, "Failed to close step-run store", tag.Error(err))
			}
		}()
	}

	sc := scheduler.New(a.registry, scheduler.Config{
		Workers:     a.cfg.Runner.Workers,
		StepTimeout: a.cfg.Runner.StepTimeout,
		Policy:      pol,
		Store:       store,
		LogPath:     a.logPath,
	})

	report, err := sc.Schedule(ctx, a.dag, partitionValue)
	if report != nil {
		logger.Info(ctx, "Job finished",
			tag.Job(a.dag.Name),
			tag.ExitCode(report.ExitCode),
			tag.Duration(report.Duration()),
		)
		logger.Info(ctx, report.Summary())
	}
	return report, err
}
