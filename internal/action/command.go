package action

import (
	"context"
	"fmt"
	"os/exec"

	"github.com/stepline-org/stepline/internal/logger"
	"github.com/stepline-org/stepline/internal/logger/tag"
)

// commandAction executes a program with arguments. Params:
//
//	command: the program to run (required)
//	args:    list of arguments
//	dir:     working directory
type commandAction struct{}

func (a *commandAction) Run(ctx context.Context, params Params) error {
	command := params.String("command", "")
	if command == "" {
		return fmt.Errorf("command action requires a %q parameter", "command")
	}

	cmd := exec.CommandContext(ctx, command, params.StringSlice("args")...)
	cmd.Dir = params.String("dir", "")

	output, err := cmd.CombinedOutput()
	if len(output) > 0 {
		logger.Debug(ctx, "Command output",
			tag.Step(params.String(ParamStepName, "")),
			"output", string(output),
		)
	}
	if err != nil {
		return fmt.Errorf("command %q failed: %w", command, err)
	}
	return nil
}
