package scheduler_test

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stepline-org/stepline/internal/action"
	"github.com/stepline-org/stepline/internal/config"
	"github.com/stepline-org/stepline/internal/digraph"
	"github.com/stepline-org/stepline/internal/errs"
	"github.com/stepline-org/stepline/internal/policy"
	"github.com/stepline-org/stepline/internal/recorder"
	"github.com/stepline-org/stepline/internal/scheduler"

	_ "github.com/stepline-org/stepline/internal/recorder/drivers/sqlite"
)

// trace records step executions in completion order.
type trace struct {
	mu    sync.Mutex
	order []string
}

func (tr *trace) add(name string) {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	tr.order = append(tr.order, name)
}

func (tr *trace) names() []string {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	return append([]string(nil), tr.order...)
}

func (tr *trace) index(name string) int {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	for i, n := range tr.order {
		if n == name {
			return i
		}
	}
	return -1
}

// trackRegistry registers a "track" action that records its step name
// and a "fail" action that records and returns an error.
func trackRegistry(tr *trace) *action.Registry {
	reg := action.NewRegistry()
	reg.Register("track", action.Func(func(_ context.Context, params action.Params) error {
		tr.add(params.String(action.ParamStepName, ""))
		return nil
	}))
	reg.Register("fail", action.Func(func(_ context.Context, params action.Params) error {
		tr.add(params.String(action.ParamStepName, ""))
		return errors.New("exit status 1")
	}))
	return reg
}

func loadDAG(t *testing.T, yaml string) *digraph.DAG {
	t.Helper()

	d, err := digraph.LoadYAML([]byte(yaml), "test-job")
	require.NoError(t, err)
	return d
}

func TestScheduleLinearOrder(t *testing.T) {
	t.Parallel()

	tr := &trace{}
	d := loadDAG(t, `
steps:
  extract:
    action: track
  transform:
    action: track
    dependsOn: extract
  load:
    action: track
    dependsOn: transform
`)

	sc := scheduler.New(trackRegistry(tr), scheduler.Config{})
	report, err := sc.Schedule(context.Background(), d, "2024-01-01")
	require.NoError(t, err)

	assert.Equal(t, []string{"extract", "transform", "load"}, tr.names())
	assert.Equal(t, []string{"extract", "transform", "load"}, report.Order)
	assert.Equal(t, 3, report.Succeeded)
	assert.True(t, report.OK())
	assert.Equal(t, errs.ExitSuccess, report.ExitCode)
}

func TestScheduleDiamondRespectsEdges(t *testing.T) {
	t.Parallel()

	tr := &trace{}
	d := loadDAG(t, `
steps:
  root:
    action: track
  left:
    action: track
    dependsOn: root
  right:
    action: track
    dependsOn: root
  sink:
    action: track
    dependsOn: left
`)

	sc := scheduler.New(trackRegistry(tr), scheduler.Config{Workers: 2})
	report, err := sc.Schedule(context.Background(), d, "")
	require.NoError(t, err)
	assert.Equal(t, 4, report.Succeeded)

	// Every prerequisite completes before its dependent starts.
	assert.Less(t, tr.index("root"), tr.index("left"))
	assert.Less(t, tr.index("root"), tr.index("right"))
	assert.Less(t, tr.index("left"), tr.index("sink"))
}

func TestScheduleIndependentStepsOverlap(t *testing.T) {
	t.Parallel()

	// Both steps block until the other has started, which only resolves
	// if they run concurrently.
	started := make(chan string, 2)
	release := make(chan struct{})
	var once sync.Once

	reg := action.NewRegistry()
	reg.Register("rendezvous", action.Func(func(ctx context.Context, params action.Params) error {
		started <- params.String(action.ParamStepName, "")
		if len(started) == 2 {
			once.Do(func() { close(release) })
		}
		select {
		case <-release:
			return nil
		case <-time.After(5 * time.Second):
			return errors.New("steps never overlapped")
		}
	}))

	d := loadDAG(t, `
steps:
  a:
    action: rendezvous
  b:
    action: rendezvous
`)

	sc := scheduler.New(reg, scheduler.Config{Workers: 2})
	report, err := sc.Schedule(context.Background(), d, "")
	require.NoError(t, err)
	assert.Equal(t, 2, report.Succeeded)
}

func TestScheduleSingleWorkerSerializes(t *testing.T) {
	t.Parallel()

	var mu sync.Mutex
	running, maxRunning := 0, 0

	reg := action.NewRegistry()
	reg.Register("count", action.Func(func(context.Context, action.Params) error {
		mu.Lock()
		running++
		if running > maxRunning {
			maxRunning = running
		}
		mu.Unlock()

		time.Sleep(10 * time.Millisecond)

		mu.Lock()
		running--
		mu.Unlock()
		return nil
	}))

	d := loadDAG(t, `
steps:
  a:
    action: count
  b:
    action: count
  c:
    action: count
`)

	sc := scheduler.New(reg, scheduler.Config{Workers: 1})
	report, err := sc.Schedule(context.Background(), d, "")
	require.NoError(t, err)
	assert.Equal(t, 3, report.Succeeded)
	assert.Equal(t, 1, maxRunning)
}

func TestScheduleContinueDispatchesDependentsOfFailedStep(t *testing.T) {
	t.Parallel()

	tr := &trace{}
	d := loadDAG(t, `
steps:
  extract:
    action: track
  transform:
    action: fail
    dependsOn: extract
  load:
    action: track
    dependsOn: transform
`)

	sc := scheduler.New(trackRegistry(tr), scheduler.Config{
		Policy: &policy.ContinueUnlessCritical{},
	})
	report, err := sc.Schedule(context.Background(), d, "")
	require.NoError(t, err)

	// The dependent of the failed step still ran.
	assert.Equal(t, []string{"extract", "transform", "load"}, tr.names())
	assert.Equal(t, 2, report.Succeeded)
	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, errs.ExitFailure, report.ExitCode)
	require.Len(t, report.Errors, 1)
	assert.Contains(t, report.Errors[0].Error(), "transform")
}

func TestScheduleFailFastStopsDispatching(t *testing.T) {
	t.Parallel()

	tr := &trace{}
	d := loadDAG(t, `
steps:
  extract:
    action: fail
  transform:
    action: track
    dependsOn: extract
  load:
    action: track
    dependsOn: transform
`)

	sc := scheduler.New(trackRegistry(tr), scheduler.Config{Policy: &policy.FailFast{}})
	report, err := sc.Schedule(context.Background(), d, "")
	require.NoError(t, err)

	assert.Equal(t, []string{"extract"}, tr.names())
	assert.Equal(t, 0, report.Succeeded)
	assert.Equal(t, 1, report.Failed)
	assert.False(t, report.OK())
}

func TestScheduleFailFastDrainsInFlight(t *testing.T) {
	t.Parallel()

	slowDone := make(chan struct{})
	reg := action.NewRegistry()
	reg.Register("fail", action.Func(func(context.Context, action.Params) error {
		return errors.New("exit status 1")
	}))
	reg.Register("slow", action.Func(func(context.Context, action.Params) error {
		time.Sleep(50 * time.Millisecond)
		close(slowDone)
		return nil
	}))

	d := loadDAG(t, `
steps:
  fast:
    action: fail
  slow:
    action: slow
`)

	sc := scheduler.New(reg, scheduler.Config{Policy: &policy.FailFast{}, Workers: 2})
	report, err := sc.Schedule(context.Background(), d, "")
	require.NoError(t, err)

	// Schedule returned only after the in-flight slow step finished.
	select {
	case <-slowDone:
	default:
		t.Fatal("slow step was not drained before Schedule returned")
	}
	assert.Equal(t, 1, report.Succeeded)
	assert.Equal(t, 1, report.Failed)
}

func TestScheduleCriticalErrorAbortsContinuePolicy(t *testing.T) {
	t.Parallel()

	tr := &trace{}
	reg := trackRegistry(tr)
	reg.Register("critical", action.Func(func(_ context.Context, params action.Params) error {
		tr.add(params.String(action.ParamStepName, ""))
		return fmt.Errorf("%w: /missing", errs.ErrInvalidSource)
	}))

	d := loadDAG(t, `
steps:
  extract:
    action: critical
  load:
    action: track
    dependsOn: extract
`)

	sc := scheduler.New(reg, scheduler.Config{Policy: &policy.ContinueUnlessCritical{}})
	report, err := sc.Schedule(context.Background(), d, "")
	require.NoError(t, err)

	assert.Equal(t, []string{"extract"}, tr.names())
	assert.Equal(t, errs.ExitInvalidSource, report.ExitCode)
}

func TestScheduleSkipDependents(t *testing.T) {
	t.Parallel()

	tr := &trace{}
	d := loadDAG(t, `
steps:
  extract:
    action: fail
  transform:
    action: track
    dependsOn: extract
  load:
    action: track
    dependsOn: transform
  audit:
    action: track
`)

	sc := scheduler.New(trackRegistry(tr), scheduler.Config{
		Policy: &policy.SkipDependentsOnFailure{},
	})
	report, err := sc.Schedule(context.Background(), d, "")
	require.NoError(t, err)

	// The independent branch ran, the failed step's descendants did not.
	assert.ElementsMatch(t, []string{"extract", "audit"}, tr.names())
	assert.Equal(t, 1, report.Succeeded)
	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, 2, report.Skipped)
}

func TestScheduleStepTimeout(t *testing.T) {
	t.Parallel()

	reg := action.NewRegistry()
	reg.Register("hang", action.Func(func(ctx context.Context, _ action.Params) error {
		<-ctx.Done()
		return ctx.Err()
	}))

	d := loadDAG(t, `
steps:
  stuck:
    action: hang
`)

	sc := scheduler.New(reg, scheduler.Config{
		StepTimeout: 20 * time.Millisecond,
		Policy:      &policy.FailFast{},
	})
	report, err := sc.Schedule(context.Background(), d, "")
	require.NoError(t, err)

	require.Len(t, report.Errors, 1)
	assert.ErrorIs(t, report.Errors[0], errs.ErrStepTimeout)
	assert.Equal(t, errs.ExitTimeout, report.ExitCode)
}

func TestScheduleUnknownActionFailsBeforeExecution(t *testing.T) {
	t.Parallel()

	tr := &trace{}
	d := loadDAG(t, `
steps:
  extract:
    action: track
  transform:
    action: nosuch
    dependsOn: extract
`)

	sc := scheduler.New(trackRegistry(tr), scheduler.Config{})
	report, err := sc.Schedule(context.Background(), d, "")
	require.Error(t, err)
	assert.ErrorIs(t, err, errs.ErrActionNotFound)

	// Nothing ran, including the step whose action did resolve.
	assert.Empty(t, tr.names())
	assert.Equal(t, errs.ExitInvalidConfig, report.ExitCode)
}

func TestSchedulePanicIsContained(t *testing.T) {
	t.Parallel()

	store, err := recorder.Open(context.Background(), config.Store{
		Driver:    "sqlite",
		DSN:       filepath.Join(t.TempDir(), "steprun.db"),
		Table:     "step_runs",
		Retention: config.DefaultRetention,
	})
	require.NoError(t, err)
	defer func() {
		_ = store.Close()
	}()

	tr := &trace{}
	reg := trackRegistry(tr)
	reg.Register("panic", action.Func(func(context.Context, action.Params) error {
		panic("boom")
	}))

	d := loadDAG(t, `
steps:
  bad:
    action: panic
  good:
    action: track
`)

	sc := scheduler.New(reg, scheduler.Config{
		Policy: &policy.ContinueUnlessCritical{},
		Store:  store,
	})
	report, err := sc.Schedule(context.Background(), d, "")
	require.NoError(t, err)

	assert.Equal(t, []string{"good"}, tr.names())
	assert.Equal(t, 1, report.Failed)
	require.Len(t, report.Errors, 1)
	assert.Contains(t, report.Errors[0].Error(), "panicked")

	// The panicking step must still reach a terminal recorded state,
	// not stick at RUNNING.
	runs, err := store.Recent(context.Background(), "test-job", 0)
	require.NoError(t, err)
	byStep := map[string]recorder.StepRun{}
	for _, run := range runs {
		byStep[run.StepName] = run
	}
	require.Contains(t, byStep, "bad")
	assert.Equal(t, recorder.StatusFailed, byStep["bad"].Status)
	assert.Contains(t, byStep["bad"].ErrorMessage, "panicked")
	require.NotNil(t, byStep["bad"].EndedAt)
}

func TestScheduleRetriesTransientFailures(t *testing.T) {
	t.Parallel()

	var mu sync.Mutex
	calls := 0
	reg := action.NewRegistry()
	reg.Register("flaky", action.Func(func(context.Context, action.Params) error {
		mu.Lock()
		defer mu.Unlock()
		calls++
		if calls < 2 {
			return errors.New("exit status 1")
		}
		return nil
	}))

	d := loadDAG(t, `
steps:
  wobble:
    action: flaky
    retries: 2
`)

	sc := scheduler.New(reg, scheduler.Config{})
	report, err := sc.Schedule(context.Background(), d, "")
	require.NoError(t, err)
	assert.Equal(t, 1, report.Succeeded)
	assert.Equal(t, 2, calls)
}

func TestSchedulePartitionValueIsInjected(t *testing.T) {
	t.Parallel()

	var mu sync.Mutex
	var seen string
	reg := action.NewRegistry()
	reg.Register("capture", action.Func(func(_ context.Context, params action.Params) error {
		mu.Lock()
		defer mu.Unlock()
		seen = params.String(action.ParamPartitionValue, "")
		return nil
	}))

	d := loadDAG(t, `
steps:
  only:
    action: capture
`)

	sc := scheduler.New(reg, scheduler.Config{})
	_, err := sc.Schedule(context.Background(), d, "2024-06-30")
	require.NoError(t, err)
	assert.Equal(t, "2024-06-30", seen)
}

func TestScheduleRecordsSkippedSteps(t *testing.T) {
	t.Parallel()

	store, err := recorder.Open(context.Background(), config.Store{
		Driver:    "sqlite",
		DSN:       filepath.Join(t.TempDir(), "steprun.db"),
		Table:     "step_runs",
		Retention: config.DefaultRetention,
	})
	require.NoError(t, err)
	defer func() {
		_ = store.Close()
	}()

	tr := &trace{}
	d := loadDAG(t, `
steps:
  extract:
    action: fail
  load:
    action: track
    dependsOn: extract
`)

	sc := scheduler.New(trackRegistry(tr), scheduler.Config{
		Policy: &policy.SkipDependentsOnFailure{},
		Store:  store,
	})
	report, err := sc.Schedule(context.Background(), d, "2024-01-01")
	require.NoError(t, err)
	assert.Equal(t, 1, report.Skipped)

	runs, err := store.Recent(context.Background(), "test-job", 0)
	require.NoError(t, err)
	require.Len(t, runs, 2)

	byStep := map[string]string{}
	for _, run := range runs {
		byStep[run.StepName] = run.Status
		assert.Equal(t, "2024-01-01", run.PartitionValue)
	}
	assert.Equal(t, recorder.StatusFailed, byStep["extract"])
	assert.Equal(t, recorder.StatusSkipped, byStep["load"])
}

func TestScheduleEmptyDAG(t *testing.T) {
	t.Parallel()

	sc := scheduler.New(action.NewRegistry(), scheduler.Config{})
	report, err := sc.Schedule(context.Background(), digraph.New("empty"), "")
	require.NoError(t, err)
	assert.True(t, report.OK())
	assert.Equal(t, errs.ExitSuccess, report.ExitCode)
}
