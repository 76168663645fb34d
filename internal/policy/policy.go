// Package policy decides how a job proceeds after a step fails. The
// variant set is closed and selected by configuration name; adding a
// policy means adding a type here and a case to New.
package policy

import (
	"context"
	"fmt"

	"github.com/stepline-org/stepline/internal/errs"
	"github.com/stepline-org/stepline/internal/logger"
	"github.com/stepline-org/stepline/internal/logger/tag"
)

// Decision is the outcome of an error policy for a failed step.
type Decision int

const (
	// Continue keeps dispatching: successors of the failed step still run
	// with whatever upstream context exists.
	Continue Decision = iota
	// AbortJob stops dispatching new steps. In-flight steps finish.
	AbortJob
	// SkipDependents continues the job but marks every descendant of the
	// failed step as skipped instead of dispatching it.
	SkipDependents
)

func (d Decision) String() string {
	switch d {
	case Continue:
		return "continue"
	case AbortJob:
		return "abort"
	case SkipDependents:
		return "skip-dependents"
	default:
		return "unknown"
	}
}

// StepContext carries the identity of the failed step into the decision.
type StepContext struct {
	JobName        string
	StepName       string
	PartitionValue string
}

// ErrorPolicy decides whether a failed step aborts the job.
type ErrorPolicy interface {
	Decide(ctx context.Context, err error, stepCtx StepContext) Decision
}

// Policy names accepted by New.
const (
	NameFailFast               = "failFast"
	NameContinueUnlessCritical = "continueUnlessCritical"
	NameSkipDependents         = "skipDependents"
)

// New returns the policy registered under the given configuration name.
func New(name string) (ErrorPolicy, error) {
	switch name {
	case NameFailFast:
		return &FailFast{}, nil
	case NameContinueUnlessCritical:
		return &ContinueUnlessCritical{}, nil
	case NameSkipDependents:
		return &SkipDependentsOnFailure{}, nil
	default:
		return nil, fmt.Errorf("unknown error policy: %q", name)
	}
}

// FailFast aborts the job on any step failure.
type FailFast struct{}

// Decide implements ErrorPolicy.
func (p *FailFast) Decide(ctx context.Context, err error, stepCtx StepContext) Decision {
	logger.Error(ctx, "Step failed, aborting job", tag.Step(stepCtx.StepName), tag.Error(err))
	return AbortJob
}

// ContinueUnlessCritical aborts only on the critical error category.
// On any other failure the job continues: successors of the failed step
// are still dispatched. This is intentional, not an oversight — dependents
// run with whatever upstream context exists.
type ContinueUnlessCritical struct{}

// Decide implements ErrorPolicy.
func (p *ContinueUnlessCritical) Decide(ctx context.Context, err error, stepCtx StepContext) Decision {
	if errs.IsCritical(err) {
		logger.Error(ctx, "Critical step failure, aborting job", tag.Step(stepCtx.StepName), tag.Error(err))
		return AbortJob
	}
	logger.Warn(ctx, "Step failed, continuing job", tag.Step(stepCtx.StepName), tag.Error(err))
	return Continue
}

// SkipDependentsOnFailure is the stricter continue variant: non-critical
// failures keep the job running but descendants of the failed step are
// marked skipped instead of dispatched.
type SkipDependentsOnFailure struct{}

// Decide implements ErrorPolicy.
func (p *SkipDependentsOnFailure) Decide(ctx context.Context, err error, stepCtx StepContext) Decision {
	if errs.IsCritical(err) {
		logger.Error(ctx, "Critical step failure, aborting job", tag.Step(stepCtx.StepName), tag.Error(err))
		return AbortJob
	}
	logger.Warn(ctx, "Step failed, skipping dependents", tag.Step(stepCtx.StepName), tag.Error(err))
	return SkipDependents
}
