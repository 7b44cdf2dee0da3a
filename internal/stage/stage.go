// Package stage defines the contract pipeline stages implement.
package stage

import (
	"context"
	"log/slog"

	"loom/internal/queue"
)

// Handler describes one pipeline stage. Prepare validates inputs and
// mutates the unit where needed; Execute performs the work.
type Handler interface {
	Prepare(context.Context, *queue.Unit) error
	Execute(context.Context, *queue.Unit) error
}

// LoggerAware lets the executor hand a stage a unit-scoped logger.
type LoggerAware interface {
	SetLogger(*slog.Logger)
}
