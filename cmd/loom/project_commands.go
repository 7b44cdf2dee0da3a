package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"loom/internal/merge"
	"loom/internal/queue"
)

func newMergeProjectCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "merge-project",
		Short: "Concatenate rendered chapter videos into the project master",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}
			layout, err := ctx.projectLayout()
			if err != nil {
				return err
			}

			return ctx.withStore(func(store *queue.Store) error {
				// All units go in: a rebuilt master must include chapters
				// merged on an earlier run, and the merger skips anything
				// without a finished chapter video.
				units, err := store.List(cmd.Context(), layout.Root)
				if err != nil {
					return err
				}
				if len(units) == 0 {
					return fmt.Errorf("no units in %s; plan and merge chapters first", layout.Root)
				}

				pm := merge.NewProjectMerger(layout, store, ctx.mediaEngine(logger), ctx.prober(), logger)
				output, err := pm.Merge(cmd.Context(), units)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "master video: %s\n", output)

				for _, stamp := range pm.Timestamps(cmd.Context(), units) {
					fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", stamp.Offset, stamp.Title)
				}
				return nil
			})
		},
	}
}

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the project's pipeline progress",
		RunE: func(cmd *cobra.Command, args []string) error {
			layout, err := ctx.projectLayout()
			if err != nil {
				return err
			}
			return ctx.withStore(func(store *queue.Store) error {
				health, err := store.Health(cmd.Context(), layout.Root)
				if err != nil {
					return err
				}

				rows := [][]string{
					{"total", strconv.Itoa(health.Total)},
					{"pending", strconv.Itoa(health.Pending)},
					{"rendered", strconv.Itoa(health.Rendered)},
					{"merged", strconv.Itoa(health.Merged)},
					{"failed", strconv.Itoa(health.Failed)},
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(
					[]string{"STATE", "UNITS"},
					rows,
					[]columnAlignment{alignLeft, alignRight},
				))
				return nil
			})
		},
	}
}
