package action

import (
	"context"

	"github.com/stepline-org/stepline/internal/logger"
	"github.com/stepline-org/stepline/internal/logger/tag"
)

// printAction logs its message parameter. Useful for smoke-testing a
// pipeline definition before wiring real actions.
type printAction struct{}

func (a *printAction) Run(ctx context.Context, params Params) error {
	logger.Info(ctx, params.String("message", "print"),
		tag.Step(params.String(ParamStepName, "")),
		tag.Partition(params.String(ParamPartitionValue, "")),
	)
	return nil
}
