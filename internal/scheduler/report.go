package scheduler

import (
	"fmt"
	"strings"
	"time"

	"github.com/stepline-org/stepline/internal/errs"
	"github.com/stepline-org/stepline/internal/stringutil"
)

// JobReport summarizes one job run: timing, per-status counts and the
// exit code derived from the worst error observed.
type JobReport struct {
	JobName        string
	PartitionValue string
	StartedAt      time.Time
	FinishedAt     time.Time
	ExitCode       int

	Succeeded int
	Failed    int
	Skipped   int

	// Order lists step names in completion order, skipped steps included
	// at the point they were settled.
	Order []string

	// Errors holds one entry per failed step, wrapped with the step name.
	Errors []error
}

func newReport(jobName, partitionValue string) *JobReport {
	return &JobReport{
		JobName:        jobName,
		PartitionValue: partitionValue,
		StartedAt:      time.Now(),
	}
}

// finish stamps the end time and derives the exit code: success when no
// step failed, otherwise the code of the most severe error category.
func (r *JobReport) finish() {
	r.FinishedAt = time.Now()
	r.ExitCode = errs.ExitSuccess
	for _, err := range r.Errors {
		if code := errs.ExitCode(err); code > r.ExitCode {
			r.ExitCode = code
		}
	}
}

func (r *JobReport) addError(err error) {
	if err != nil {
		r.Errors = append(r.Errors, err)
	}
}

// OK reports whether the job finished without step failures.
func (r *JobReport) OK() bool {
	return len(r.Errors) == 0
}

// Duration returns the wall-clock time of the run.
func (r *JobReport) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return time.Since(r.StartedAt)
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// Err returns all step errors as one error, or nil.
func (r *JobReport) Err() error {
	if len(r.Errors) == 0 {
		return nil
	}
	var list errs.ErrorList
	for _, err := range r.Errors {
		list.Add(err)
	}
	return list
}

// Summary renders the human-readable completion banner.
func (r *JobReport) Summary() string {
	var b strings.Builder
	fmt.Fprintf(&b, "job %s finished in %s", r.JobName, stringutil.FormatClockDuration(r.Duration()))
	if r.PartitionValue != "" {
		fmt.Fprintf(&b, " (partition %s)", r.PartitionValue)
	}
	fmt.Fprintf(&b, ": %d succeeded, %d failed, %d skipped, exit code %d",
		r.Succeeded, r.Failed, r.Skipped, r.ExitCode)
	return b.String()
}
