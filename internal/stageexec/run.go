// Package stageexec executes a pipeline stage against one unit and
// persists the resulting queue transition.
package stageexec

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"loom/internal/logging"
	"loom/internal/queue"
	"loom/internal/stage"
)

// Options controls stage execution and queue persistence behavior.
type Options struct {
	Logger    *slog.Logger
	Store     *queue.Store
	Handler   stage.Handler
	StageName string
	Done      queue.Status
	Unit      *queue.Unit
}

// Run executes a stage and applies the queue transition. On success the
// unit advances to Done unless the handler already moved it; on failure
// the unit is marked failed with the error message persisted.
func Run(ctx context.Context, opts Options) error {
	if opts.Handler == nil {
		return fmt.Errorf("stage handler unavailable: %s", opts.StageName)
	}
	if opts.Store == nil {
		return fmt.Errorf("queue store is required")
	}
	if opts.Unit == nil {
		return fmt.Errorf("queue unit is required")
	}

	stageLogger := logging.WithStage(opts.Logger, opts.StageName, opts.Unit.ID)
	if aware, ok := opts.Handler.(stage.LoggerAware); ok {
		aware.SetLogger(stageLogger)
	}

	stageLogger.Info("stage started",
		logging.String(logging.FieldEventType, "stage_start"),
		logging.String("slug", opts.Unit.Slug))

	if err := opts.Handler.Prepare(ctx, opts.Unit); err != nil {
		return handleFailure(ctx, stageLogger, opts.Store, opts.Unit, err)
	}
	if err := opts.Store.Update(ctx, opts.Unit); err != nil {
		return fmt.Errorf("persist stage preparation: %w", err)
	}

	if err := opts.Handler.Execute(ctx, opts.Unit); err != nil {
		return handleFailure(ctx, stageLogger, opts.Store, opts.Unit, err)
	}

	if opts.Done != "" && !opts.Unit.Status.AtLeast(opts.Done) {
		opts.Unit.Status = opts.Done
	}
	opts.Unit.ErrorMessage = ""
	if err := opts.Store.Update(ctx, opts.Unit); err != nil {
		return fmt.Errorf("persist stage result: %w", err)
	}

	stageLogger.Info("stage completed",
		logging.String(logging.FieldEventType, "stage_complete"),
		logging.String("next_status", string(opts.Unit.Status)))
	return nil
}

func handleFailure(ctx context.Context, logger *slog.Logger, store *queue.Store, unit *queue.Unit, stageErr error) error {
	message := "stage failed"
	if stageErr != nil {
		message = strings.TrimSpace(stageErr.Error())
	}
	unit.SetFailed(message)

	logger.Error("stage failed",
		logging.String(logging.FieldEventType, "stage_failure"),
		logging.Error(stageErr))

	if err := store.Update(ctx, unit); err != nil {
		logger.Error("failed to persist stage failure", logging.Error(err))
	}
	return stageErr
}
