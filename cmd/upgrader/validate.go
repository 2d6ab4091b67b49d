package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newValidateCmd(root *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check the upgrade descriptor and every step's parameters",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(cmd, root)
		},
	}
}

func runValidate(cmd *cobra.Command, flags *rootFlags) error {
	ctx := cmd.Context()

	a, err := newApp(cmd, flags)
	if err != nil {
		return err
	}

	doc, err := a.provider.Configuration(ctx)
	if err != nil {
		return err
	}

	lists := []string{""}
	if len(doc.Upgrades) == 0 {
		lists = nil
	}
	lists = append(lists, doc.PipelineNames()...)

	out := cmd.OutOrStdout()
	for _, name := range lists {
		factory, err := a.factory(name)
		if err != nil {
			return err
		}
		checked, err := factory.Validate(ctx)
		if err != nil {
			return err
		}

		label := "upgrades"
		if name != "" {
			label = "pipeline " + name
		}
		fmt.Fprintf(out, "%s: %d step(s) OK\n", label, checked)
	}
	return nil
}
