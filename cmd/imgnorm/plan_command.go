package main

import (
	"fmt"
	"strconv"

	"image-normalizer/internal/domain"
	"image-normalizer/internal/usecase/normalizer"

	"github.com/spf13/cobra"
)

func newPlanCommand() *cobra.Command {
	var maxDimension int

	cmd := &cobra.Command{
		Use:   "plan <width> <height>",
		Short: "Print the size an image would be scaled to",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			width, err := strconv.Atoi(args[0])
			if err != nil || width <= 0 {
				return fmt.Errorf("invalid width %q", args[0])
			}
			height, err := strconv.Atoi(args[1])
			if err != nil || height <= 0 {
				return fmt.Errorf("invalid height %q", args[1])
			}

			target := normalizer.PlanTargetSize(width, height, maxDimension)
			fmt.Fprintf(cmd.OutOrStdout(), "%dx%d\n", target.Width, target.Height)
			return nil
		},
	}

	cmd.Flags().IntVar(&maxDimension, "max-dimension", domain.DefaultMaxDimension, "Longest allowed edge in pixels")

	return cmd
}
