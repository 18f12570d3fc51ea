package main

import (
	"github.com/spf13/cobra"
	"github.com/wb-go/wbf/zlog"
)

type commandContext struct {
	verbose bool
}

func (c *commandContext) logger() *zlog.Zerolog {
	if !c.verbose {
		return &zlog.Zerolog{}
	}
	zlog.Init()
	return &zlog.Logger
}

func newRootCommand() *cobra.Command {
	ctx := &commandContext{}

	rootCmd := &cobra.Command{
		Use:           "imgnorm",
		Short:         "Downscale and recompress images to fit an upload budget",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().BoolVarP(&ctx.verbose, "verbose", "v", false, "Log pipeline steps to stderr")

	rootCmd.AddCommand(newNormalizeCommand(ctx))
	rootCmd.AddCommand(newPlanCommand())

	return rootCmd
}
