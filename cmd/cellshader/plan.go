package main

import (
	"fmt"
	"strconv"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/nvr-ai/go-cellshade/shading"
)

func (a *app) planCmd() *cobra.Command {
	var params paramFlags

	cmd := &cobra.Command{
		Use:   "plan <width> <height>",
		Short: "Print the output size chosen for a source size",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			w, err := strconv.Atoi(args[0])
			if err != nil {
				return errors.Wrap(err, "width")
			}
			h, err := strconv.Atoi(args[1])
			if err != nil {
				return errors.Wrap(err, "height")
			}

			raw, err := params.raw(cmd)
			if err != nil {
				return err
			}
			p, err := shading.Normalize(raw)
			if err != nil {
				return err
			}
			plan, err := shading.PlanDimensions(w, h, p)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), plan)
			return nil
		},
	}

	params.register(cmd, false)
	return cmd
}

func (a *app) versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "cellshader %s\n", a.version)
		},
	}
}
