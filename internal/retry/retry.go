// Package retry re-runs failed step invocations with exponential
// backoff. Critical errors and context cancellation are permanent and
// end the retry loop immediately.
package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/stepline-org/stepline/internal/errs"
	"github.com/stepline-org/stepline/internal/logger"
	"github.com/stepline-org/stepline/internal/logger/tag"
)

var (
	initialInterval = 500 * time.Millisecond
	maxInterval     = 30 * time.Second
)

// Do runs op, retrying up to attempts additional times on transient
// failure. attempts <= 0 means a single try with no retry machinery.
func Do(ctx context.Context, stepName string, attempts int, op func(ctx context.Context) error) error {
	if attempts <= 0 {
		return op(ctx)
	}

	attempt := 0
	operation := func() error {
		attempt++
		err := op(ctx)
		if err == nil {
			return nil
		}
		if errs.IsCritical(err) || ctx.Err() != nil {
			return backoff.Permanent(err)
		}
		if attempt <= attempts {
			logger.Warn(ctx, "Step attempt failed, retrying",
				tag.Step(stepName), tag.Attempt(attempt), tag.Error(err))
		}
		return err
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = initialInterval
	policy.MaxInterval = maxInterval

	b := backoff.WithMaxRetries(policy, uint64(attempts))
	return backoff.Retry(operation, backoff.WithContext(b, ctx))
}
