package main

import (
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"loom/internal/config"
	"loom/internal/project"
	"loom/internal/queue"
	"loom/internal/stage"
	"loom/internal/stageexec"
	"loom/internal/stages"
)

type stageDeps struct {
	cfg    *config.Config
	logger *slog.Logger
	layout project.ProjectLayout
}

// runStage executes one stage handler for one unit under that unit's lock.
func runStage(ctx *commandContext, cmd *cobra.Command, slug, stageName string, done queue.Status, build func(stageDeps, *queue.Store) stage.Handler) error {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return err
	}
	logger, err := ctx.ensureLogger()
	if err != nil {
		return err
	}
	layout, err := ctx.projectLayout()
	if err != nil {
		return err
	}
	deps := stageDeps{cfg: cfg, logger: logger, layout: layout}

	return withUnitLock(cfg, slug, func() error {
		return ctx.withStore(func(store *queue.Store) error {
			unit, err := store.GetBySlug(cmd.Context(), layout.Root, strings.TrimSpace(slug))
			if err != nil {
				return err
			}
			return stageexec.Run(cmd.Context(), stageexec.Options{
				Logger:    logger,
				Store:     store,
				Handler:   build(deps, store),
				StageName: stageName,
				Done:      done,
				Unit:      unit,
			})
		})
	})
}

func newRenderCommand(ctx *commandContext) *cobra.Command {
	var shorts bool

	cmd := &cobra.Command{
		Use:   "render <slug>",
		Short: "Render every scene of a unit into clips",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStage(ctx, cmd, args[0], "render", "", func(deps stageDeps, _ *queue.Store) stage.Handler {
				return stages.NewRenderStage(deps.cfg, deps.layout, ctx.mediaEngine(deps.logger), ctx.prober(), shorts)
			})
		},
	}
	cmd.Flags().BoolVar(&shorts, "shorts", false, "Render in portrait (1080x1920) format")
	return cmd
}

func newMergeCommand(ctx *commandContext) *cobra.Command {
	var shorts bool

	cmd := &cobra.Command{
		Use:   "merge <slug>",
		Short: "Concatenate a unit's clips into its chapter video",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStage(ctx, cmd, args[0], "merge", queue.StatusRendered, func(deps stageDeps, _ *queue.Store) stage.Handler {
				return stages.NewMergeStage(deps.cfg, deps.layout, ctx.mediaEngine(deps.logger), ctx.prober(), shorts)
			})
		},
	}
	cmd.Flags().BoolVar(&shorts, "shorts", false, "Merge the portrait-format clips")
	return cmd
}

func newAssembleCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "assemble <slug>",
		Short: "Fill a derived unit's scenes by matching footage from the rest of the project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStage(ctx, cmd, args[0], "assemble", queue.StatusScenesReady, func(deps stageDeps, store *queue.Store) stage.Handler {
				return stages.NewAssembleStage(deps.cfg, deps.layout, store)
			})
		},
	}
}
