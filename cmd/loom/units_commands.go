package main

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"loom/internal/project"
	"loom/internal/queue"
)

func newUnitsCommand(ctx *commandContext) *cobra.Command {
	unitsCmd := &cobra.Command{
		Use:   "units",
		Short: "Inspect and manage the unit queue",
	}

	unitsCmd.AddCommand(newUnitsPlanCommand(ctx))
	unitsCmd.AddCommand(newUnitsListCommand(ctx))
	unitsCmd.AddCommand(newUnitsMarkCommand(ctx))

	return unitsCmd
}

var chapterDirPattern = regexp.MustCompile(`^ch(\d{2})_(.+)$`)

// newUnitsPlanCommand registers a queue unit for every chapter directory
// in the project that carries a script. Already-known units are left alone.
func newUnitsPlanCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "plan",
		Short: "Register queue units for the project's chapter directories",
		RunE: func(cmd *cobra.Command, args []string) error {
			layout, err := ctx.projectLayout()
			if err != nil {
				return err
			}

			entries, err := os.ReadDir(layout.Root)
			if err != nil {
				return fmt.Errorf("read project directory: %w", err)
			}

			return ctx.withStore(func(store *queue.Store) error {
				created := 0
				for _, entry := range entries {
					if !entry.IsDir() {
						continue
					}
					m := chapterDirPattern.FindStringSubmatch(entry.Name())
					if m == nil {
						continue
					}
					index, err := strconv.Atoi(m[1])
					if err != nil {
						continue
					}
					slug := m[2]

					chapter := layout.ChapterDir(entry.Name())
					script, err := project.LoadScript(chapter.ScriptFile())
					if err != nil {
						fmt.Fprintf(cmd.OutOrStdout(), "skipping %s: %v\n", entry.Name(), err)
						continue
					}

					if _, err := store.GetBySlug(cmd.Context(), layout.Root, slug); err == nil {
						continue
					} else if !errors.Is(err, queue.ErrNotFound) {
						return err
					}

					unit := &queue.Unit{
						ProjectDir:   layout.Root,
						Slug:         slug,
						Title:        script.Title,
						ChapterIndex: index,
						Status:       queue.StatusScripted,
					}
					if err := store.Create(cmd.Context(), unit); err != nil {
						return err
					}
					created++
					fmt.Fprintf(cmd.OutOrStdout(), "registered %s (chapter %d)\n", slug, index)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%d unit(s) registered\n", created)
				return nil
			})
		},
	}
}

func newUnitsListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the project's queue units",
		RunE: func(cmd *cobra.Command, args []string) error {
			layout, err := ctx.projectLayout()
			if err != nil {
				return err
			}
			return ctx.withStore(func(store *queue.Store) error {
				units, err := store.List(cmd.Context(), layout.Root)
				if err != nil {
					return err
				}
				if len(units) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "no units registered; run `loom units plan`")
					return nil
				}

				rows := make([][]string, 0, len(units))
				for _, unit := range units {
					detail := unit.ErrorMessage
					if detail == "" {
						detail = unit.Title
					}
					rows = append(rows, []string{
						strconv.FormatInt(unit.ID, 10),
						fmt.Sprintf("%02d", unit.ChapterIndex),
						unit.Slug,
						string(unit.Status),
						detail,
					})
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(
					[]string{"ID", "CH", "SLUG", "STATUS", "DETAIL"},
					rows,
					[]columnAlignment{alignRight, alignRight, alignLeft, alignLeft, alignLeft},
				))
				return nil
			})
		},
	}
}

// newUnitsMarkCommand records progress made outside this tool: scripting,
// narration synthesis, and footage drops all happen elsewhere.
func newUnitsMarkCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "mark <slug> <status>",
		Short: "Set a unit's status after an external step completed",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			slug := strings.TrimSpace(args[0])
			status, ok := queue.ParseStatus(args[1])
			if !ok {
				return fmt.Errorf("unknown status %q (known: %v)", args[1], queue.AllStatuses())
			}

			layout, err := ctx.projectLayout()
			if err != nil {
				return err
			}
			return ctx.withStore(func(store *queue.Store) error {
				unit, err := store.GetBySlug(cmd.Context(), layout.Root, slug)
				if err != nil {
					return err
				}
				unit.Status = status
				if status != queue.StatusFailed {
					unit.ErrorMessage = ""
				}
				if err := store.Update(cmd.Context(), unit); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s -> %s\n", slug, status)
				return nil
			})
		},
	}
}
