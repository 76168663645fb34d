package action

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/stepline-org/stepline/internal/errs"
	"github.com/stepline-org/stepline/internal/logger"
	"github.com/stepline-org/stepline/internal/logger/tag"
)

// filesystemAction copies files matching a glob from a source directory to
// a destination directory. Params:
//
//	source:      source directory (required)
//	destination: destination directory (required)
//	pattern:     glob matched against file names, default "*"
//
// A missing or unreadable source directory is a critical error: the data
// source is unusable and every policy aborts the job on it.
type filesystemAction struct{}

func (a *filesystemAction) Run(ctx context.Context, params Params) error {
	source := params.String("source", "")
	destination := params.String("destination", "")
	if source == "" || destination == "" {
		return fmt.Errorf("filesystem action requires %q and %q parameters", "source", "destination")
	}
	pattern := params.String("pattern", "*")

	info, err := os.Stat(source)
	if err != nil || !info.IsDir() {
		return fmt.Errorf("%w: %s", errs.ErrInvalidSource, source)
	}

	matches, err := filepath.Glob(filepath.Join(source, pattern))
	if err != nil {
		return fmt.Errorf("invalid pattern %q: %w", pattern, err)
	}

	if err := os.MkdirAll(destination, 0755); err != nil {
		return fmt.Errorf("failed to create destination directory: %w", err)
	}

	copied := 0
	for _, match := range matches {
		if err := ctx.Err(); err != nil {
			return err
		}
		info, err := os.Stat(match)
		if err != nil || info.IsDir() {
			continue
		}
		if err := copyFile(match, filepath.Join(destination, filepath.Base(match))); err != nil {
			return fmt.Errorf("failed to copy %q: %w", match, err)
		}
		copied++
	}

	logger.Info(ctx, "Files copied",
		tag.Step(params.String(ParamStepName, "")),
		"source", source,
		"destination", destination,
		"count", copied,
	)
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() {
		_ = in.Close()
	}()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}
