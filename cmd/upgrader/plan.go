package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/alexisbeaulieu97/commons/internal/upgrade"
	commonserrors "github.com/alexisbeaulieu97/commons/pkg/errors"
)

func newPlanCmd(root *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "plan [site...]",
		Short: "Show the steps each site would run, without changing anything",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPlan(cmd, root, args)
		},
	}
}

func runPlan(cmd *cobra.Command, flags *rootFlags, names []string) error {
	ctx := cmd.Context()

	a, err := newApp(cmd, flags)
	if err != nil {
		return err
	}
	factory, err := a.factory(flags.pipeline)
	if err != nil {
		return err
	}

	targets, err := a.selectTargets(names).Targets(ctx)
	if err != nil {
		return commonserrors.NewEnumerationError(err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, titleStyle.Render("Upgrade plan"))

	rows := make([][]string, 0, len(targets))
	failed := 0
	for _, target := range targets {
		uctx, err := a.contexts.NewContext(ctx, target)
		if err != nil {
			failed++
			rows = append(rows, []string{target.Name, "-", "-", "error: " + errorText(err)})
			continue
		}
		pipeline, err := factory.Pipeline(ctx, uctx)
		if err != nil {
			failed++
			rows = append(rows, []string{target.Name, "-", "-", "error: " + errorText(err)})
			continue
		}
		rows = append(rows, planRow(target.Name, pipeline))
	}

	t := newTable("SITE", "FROM", "TO", "STEPS").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row < 0:
				return headerStyle
			case strings.HasPrefix(rows[row][3], "error: "):
				return cellStyle.Foreground(errorColor)
			case rows[row][3] == "up to date":
				return cellStyle.Foreground(mutedColor)
			default:
				return cellStyle
			}
		})
	fmt.Fprintln(out, t.Render())

	if failed > 0 {
		return fmt.Errorf("%d site(s) could not be planned", failed)
	}
	return nil
}

func planRow[T any](name string, pipeline *upgrade.Pipeline[T]) []string {
	if pipeline.Empty() {
		return []string{name, pipeline.From().String(), pipeline.To().String(), "up to date"}
	}

	steps := make([]string, 0, pipeline.Len())
	for _, op := range pipeline.Operations() {
		step := op.Name()
		if !op.Enabled() {
			step += " (disabled)"
		}
		steps = append(steps, step)
	}
	return []string{name, pipeline.From().String(), pipeline.To().String(), strings.Join(steps, ", ")}
}
