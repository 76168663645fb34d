// Package scheduler executes a validated DAG with a concurrent Kahn's
// algorithm: steps dispatch the moment their last prerequisite finishes,
// bounded by a worker pool, and completions are received over a channel
// rather than polled.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/stepline-org/stepline/internal/action"
	"github.com/stepline-org/stepline/internal/digraph"
	"github.com/stepline-org/stepline/internal/errs"
	"github.com/stepline-org/stepline/internal/logger"
	"github.com/stepline-org/stepline/internal/logger/tag"
	"github.com/stepline-org/stepline/internal/policy"
	"github.com/stepline-org/stepline/internal/recorder"
	"github.com/stepline-org/stepline/internal/retry"
)

// Config holds the execution settings for one scheduler.
type Config struct {
	// Workers bounds the number of concurrently executing steps.
	// Zero means unbounded.
	Workers int

	// StepTimeout is the per-step execution deadline, covering all retry
	// attempts of the step. Zero disables it.
	StepTimeout time.Duration

	// Policy decides whether the job continues after a step failure.
	// Defaults to continue-unless-critical.
	Policy policy.ErrorPolicy

	// Store persists step runs. Nil disables recording.
	Store *recorder.Store

	// LogPath is the job log file recorded on every step run, if any.
	LogPath string
}

// Scheduler runs DAGs against a registry of actions.
type Scheduler struct {
	cfg      Config
	registry *action.Registry
}

// New creates a scheduler.
func New(registry *action.Registry, cfg Config) *Scheduler {
	if cfg.Policy == nil {
		cfg.Policy = &policy.ContinueUnlessCritical{}
	}
	return &Scheduler{cfg: cfg, registry: registry}
}

type stepResult struct {
	name string
	err  error
}

// Schedule runs every step of the DAG for the given partition value and
// returns the job report. Step failures are collected in the report; the
// returned error is reserved for configuration problems detected before
// execution and for internal defects.
func (sc *Scheduler) Schedule(ctx context.Context, d *digraph.DAG, partitionValue string) (*JobReport, error) {
	report := newReport(d.Name, partitionValue)
	defer report.finish()

	// Resolve every action up front so a misconfigured step fails the job
	// before anything executes.
	nodes := make(map[string]*Node, d.Len())
	for _, step := range d.Steps() {
		act, err := sc.registry.Resolve(step.Action)
		if err != nil {
			stepErr := &errs.StepError{Step: step.Name, Err: err}
			report.addError(stepErr)
			return report, stepErr
		}
		nodes[step.Name] = newNode(step, act)
	}

	total := d.Len()
	if total == 0 {
		return report, nil
	}

	// Run-local in-degree copy: the DAG itself stays read-only so it can
	// be scheduled again for another partition.
	indeg := d.InDegrees()

	results := make(chan stepResult, total)
	var sem chan struct{}
	if sc.cfg.Workers > 0 {
		sem = make(chan struct{}, sc.cfg.Workers)
	}

	var wg sync.WaitGroup
	inflight := 0
	completed := 0
	aborted := false
	skipped := make(map[string]bool)

	dispatch := func(name string) {
		node := nodes[name]
		inflight++
		wg.Add(1)
		go func() {
			defer wg.Done()
			if sem != nil {
				sem <- struct{}{}
				defer func() { <-sem }()
			}
			results <- stepResult{name: name, err: sc.runStep(ctx, d.Name, node, partitionValue)}
		}()
	}

	// release and settle recurse into each other: finishing a step may
	// zero a successor's in-degree, and a skipped successor settles
	// immediately, releasing its own successors in turn.
	var release func(name string)
	settle := func(name string) {
		node := nodes[name]
		node.skip()
		sc.recordSkip(ctx, d.Name, node, partitionValue)
		report.Skipped++
		report.Order = append(report.Order, name)
		completed++
		logger.Info(ctx, "Step skipped", tag.Step(name), tag.Job(d.Name))
		release(name)
	}
	release = func(name string) {
		for _, succ := range d.Successors(name) {
			indeg[succ]--
			if indeg[succ] > 0 || aborted {
				continue
			}
			if skipped[succ] {
				settle(succ)
			} else {
				dispatch(succ)
			}
		}
	}

	for _, step := range d.Steps() {
		if indeg[step.Name] == 0 {
			dispatch(step.Name)
		}
	}

	// Block on completions. On abort, new dispatches stop but every
	// in-flight step is still drained here.
	for completed < total && inflight > 0 {
		res := <-results
		inflight--
		completed++
		report.Order = append(report.Order, res.name)

		if res.err == nil {
			report.Succeeded++
			release(res.name)
			continue
		}

		report.Failed++
		report.addError(&errs.StepError{Step: res.name, Err: res.err})

		decision := sc.cfg.Policy.Decide(ctx, res.err, policy.StepContext{
			JobName:        d.Name,
			StepName:       res.name,
			PartitionValue: partitionValue,
		})
		switch decision {
		case policy.AbortJob:
			aborted = true
		case policy.SkipDependents:
			for _, desc := range d.Descendants(res.name) {
				skipped[desc] = true
			}
			release(res.name)
		default:
			release(res.name)
		}
	}
	wg.Wait()

	if !aborted && completed < total {
		// The DAG is validated acyclic at build time, so stalling with
		// nothing in flight is a scheduler defect, not a user error.
		return report, fmt.Errorf("scheduler stalled: %d of %d steps completed", completed, total)
	}
	return report, nil
}

func (sc *Scheduler) runStep(ctx context.Context, jobName string, node *Node, partitionValue string) error {
	step := node.Step()

	sess := sc.newSession(ctx, jobName, step, partitionValue)
	if sess != nil {
		node.setRunID(sess.RunID())
		sc.record(ctx, step.Name, sess.Create)
	}

	node.start()
	logger.Info(ctx, "Step started",
		tag.Step(step.Name), tag.Job(jobName), tag.Action(step.Action), tag.RunID(node.State().RunID))
	if sess != nil {
		sc.record(ctx, step.Name, sess.Start)
	}

	params := action.Params(step.Params).Merge(action.Params{
		action.ParamStepName:       step.Name,
		action.ParamPartitionValue: partitionValue,
	})

	execCtx := ctx
	if sc.cfg.StepTimeout > 0 {
		var cancel context.CancelFunc
		execCtx, cancel = context.WithTimeout(ctx, sc.cfg.StepTimeout)
		defer cancel()
	}

	// A panicking action is contained here so the node and the step run
	// still reach a terminal state.
	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("step panicked: %v", r)
			}
		}()
		return retry.Do(execCtx, step.Name, step.Retries, func(ctx context.Context) error {
			return node.action.Run(ctx, params)
		})
	}()
	if err != nil && errors.Is(execCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
		err = fmt.Errorf("%w after %s", errs.ErrStepTimeout, sc.cfg.StepTimeout)
	}

	node.finish(err)
	state := node.State()
	if err != nil {
		if sess != nil {
			sc.record(ctx, step.Name, func(ctx context.Context) error {
				return sess.Fail(ctx, err)
			})
		}
		logger.Error(ctx, "Step failed",
			tag.Step(step.Name), tag.Job(jobName), tag.Error(err),
			tag.Duration(state.FinishedAt.Sub(state.StartedAt)))
		return err
	}

	if sess != nil {
		sc.record(ctx, step.Name, sess.Succeed)
	}
	logger.Info(ctx, "Step finished",
		tag.Step(step.Name), tag.Job(jobName), tag.Status(state.Status.String()),
		tag.Duration(state.FinishedAt.Sub(state.StartedAt)))
	return nil
}

func (sc *Scheduler) newSession(ctx context.Context, jobName string, step *digraph.Step, partitionValue string) *recorder.Session {
	if sc.cfg.Store == nil {
		return nil
	}
	sess, err := sc.cfg.Store.Session(jobName, step.Name, partitionValue, step.Params)
	if err != nil {
		logger.Error(ctx, "Failed to open step-run session", tag.Step(step.Name), tag.Error(err))
		return nil
	}
	if sc.cfg.LogPath != "" {
		sess.SetLogPath(sc.cfg.LogPath)
	}
	return sess
}

func (sc *Scheduler) recordSkip(ctx context.Context, jobName string, node *Node, partitionValue string) {
	sess := sc.newSession(ctx, jobName, node.Step(), partitionValue)
	if sess == nil {
		return
	}
	node.setRunID(sess.RunID())
	sc.record(ctx, node.Step().Name, sess.Create)
	sc.record(ctx, node.Step().Name, sess.Skip)
}

// record runs one recorder write and logs failures without propagating
// them: recorder trouble never fails the job.
func (sc *Scheduler) record(ctx context.Context, stepName string, write func(context.Context) error) {
	if err := write(ctx); err != nil {
		logger.Error(ctx, "Failed to record step run", tag.Step(stepName), tag.Error(err))
	}
}
